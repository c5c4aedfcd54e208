package field

import "github.com/model-collapse/diagon-sub003/errs"

// FieldInfos is the immutable, validated collection of FieldInfo for one
// segment, indexed by both name and number with precomputed aggregate
// flags.
type FieldInfos struct {
	ordered  []*FieldInfo
	byNumber map[int32]*FieldInfo
	byName   map[string]*FieldInfo

	hasFreq        bool
	hasPostings    bool
	hasProx        bool
	hasPayloads    bool
	hasOffsets     bool
	hasTermVectors bool
	hasNorms       bool
	hasDocValues   bool
	hasPointValues bool

	softDeletesField string
	parentField      string
}

// NewFieldInfos validates infos and builds a FieldInfos collection. It
// rejects duplicate names or numbers and more than one soft-deletes or
// parent field.
func NewFieldInfos(infos []FieldInfo) (*FieldInfos, error) {
	const op = "field.NewFieldInfos"
	fis := &FieldInfos{
		byName:   make(map[string]*FieldInfo, len(infos)),
		byNumber: make(map[int32]*FieldInfo, len(infos)),
	}

	for i := range infos {
		fi := &infos[i]
		if err := fi.Validate(); err != nil {
			return nil, err
		}
		if _, dup := fis.byName[fi.Name]; dup {
			return nil, errs.New(op, errs.InvalidArgument, "duplicate field name: "+fi.Name)
		}
		if _, dup := fis.byNumber[fi.Number]; dup {
			return nil, errs.New(op, errs.InvalidArgument, "duplicate field number")
		}
		fis.byName[fi.Name] = fi
		fis.byNumber[fi.Number] = fi

		if fi.SoftDeletesField {
			if fis.softDeletesField != "" {
				return nil, errs.New(op, errs.InvalidArgument, "more than one soft-deletes field")
			}
			fis.softDeletesField = fi.Name
		}
		if fi.IsParentField {
			if fis.parentField != "" {
				return nil, errs.New(op, errs.InvalidArgument, "more than one parent field")
			}
			fis.parentField = fi.Name
		}

		if fi.HasPostings() {
			fis.hasPostings = true
		}
		if fi.HasFreqs() {
			fis.hasFreq = true
		}
		if fi.HasPositions() {
			fis.hasProx = true
		}
		if fi.StorePayloads {
			fis.hasPayloads = true
		}
		if fi.HasOffsets() {
			fis.hasOffsets = true
		}
		if fi.StoreTermVector {
			fis.hasTermVectors = true
		}
		if fi.HasNorms() {
			fis.hasNorms = true
		}
		if fi.HasDocValues() {
			fis.hasDocValues = true
		}
		if fi.HasPointValues() {
			fis.hasPointValues = true
		}
	}

	fis.ordered = make([]*FieldInfo, 0, len(infos))
	for i := range infos {
		fis.ordered = append(fis.ordered, &infos[i])
	}
	sortFieldInfosByNumber(fis.ordered)

	return fis, nil
}

func sortFieldInfosByNumber(infos []*FieldInfo) {
	// Insertion sort: segments carry at most a few hundred fields, and
	// this keeps the dependency list free of a sort import for one tiny
	// comparator.
	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j].Number < infos[j-1].Number; j-- {
			infos[j], infos[j-1] = infos[j-1], infos[j]
		}
	}
}

// FieldInfoByName returns the field named name, or nil if absent.
func (fis *FieldInfos) FieldInfoByName(name string) *FieldInfo {
	return fis.byName[name]
}

// FieldInfoByNumber returns the field numbered number, or nil if absent.
func (fis *FieldInfos) FieldInfoByNumber(number int32) *FieldInfo {
	return fis.byNumber[number]
}

// Size returns the number of fields.
func (fis *FieldInfos) Size() int { return len(fis.ordered) }

// List returns fields in field-number order. The caller must not mutate
// the returned slice's FieldInfo values.
func (fis *FieldInfos) List() []*FieldInfo { return fis.ordered }

func (fis *FieldInfos) HasFreq() bool        { return fis.hasFreq }
func (fis *FieldInfos) HasPostings() bool    { return fis.hasPostings }
func (fis *FieldInfos) HasProx() bool        { return fis.hasProx }
func (fis *FieldInfos) HasPayloads() bool    { return fis.hasPayloads }
func (fis *FieldInfos) HasOffsets() bool     { return fis.hasOffsets }
func (fis *FieldInfos) HasTermVectors() bool { return fis.hasTermVectors }
func (fis *FieldInfos) HasNorms() bool       { return fis.hasNorms }
func (fis *FieldInfos) HasDocValues() bool   { return fis.hasDocValues }
func (fis *FieldInfos) HasPointValues() bool { return fis.hasPointValues }

// SoftDeletesField returns the soft-deletes field's name, or "" if none.
func (fis *FieldInfos) SoftDeletesField() string { return fis.softDeletesField }

// ParentField returns the parent-document field's name, or "" if none.
func (fis *FieldInfos) ParentField() string { return fis.parentField }
