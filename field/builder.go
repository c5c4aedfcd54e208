package field

import "github.com/model-collapse/diagon-sub003/errs"

// Builder accumulates FieldInfo during indexing, allocating field numbers
// monotonically and merging repeated updates to the same field.
type Builder struct {
	byName          map[string]*FieldInfo
	order           []string
	nextFieldNumber int32
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]*FieldInfo)}
}

// GetOrAdd returns the field number for name, creating an unindexed
// FieldInfo for it if this is the first time it has been seen.
func (b *Builder) GetOrAdd(name string) int32 {
	if fi, ok := b.byName[name]; ok {
		return fi.Number
	}
	fi := &FieldInfo{Name: name, Number: b.nextFieldNumber}
	b.nextFieldNumber++
	b.byName[name] = fi
	b.order = append(b.order, name)
	return fi.Number
}

// FieldInfo returns the field named name, or nil if it has not been added.
func (b *Builder) FieldInfo(name string) *FieldInfo {
	return b.byName[name]
}

// FieldNumber returns the field number for name, or -1 if unknown.
func (b *Builder) FieldNumber(name string) int32 {
	if fi, ok := b.byName[name]; ok {
		return fi.Number
	}
	return -1
}

// FieldCount returns the number of fields seen so far.
func (b *Builder) FieldCount() int32 { return int32(len(b.order)) }

// UpdateIndexOptions upgrades name's IndexOptions to opts. A downgrade attempt (opts below the field's current
// value) is a silent no-op: the higher value is kept. Updating a field
// that was never seen via GetOrAdd/UpdateDocValuesType is a hard error.
func (b *Builder) UpdateIndexOptions(name string, opts IndexOptions) error {
	fi, ok := b.byName[name]
	if !ok {
		return errs.New("Builder.UpdateIndexOptions", errs.InvalidArgument, "unknown field: "+name)
	}
	if opts > fi.IndexOptions {
		fi.IndexOptions = opts
	}
	return nil
}

// UpdateDocValuesType sets name's doc-values type, creating the field if
// necessary. Changing an already-non-NONE type to a different non-NONE
// type is a conflict and a hard error; setting the same type again, or
// setting it for the first time, is fine.
func (b *Builder) UpdateDocValuesType(name string, dvType DocValuesType) error {
	fi, ok := b.byName[name]
	if !ok {
		b.GetOrAdd(name)
		fi = b.byName[name]
	}
	if fi.DocValuesType != DocValuesNone && dvType != DocValuesNone && fi.DocValuesType != dvType {
		return errs.New("Builder.UpdateDocValuesType", errs.InvalidArgument,
			"doc-values type conflict for field "+name)
	}
	if dvType != DocValuesNone {
		fi.DocValuesType = dvType
	}
	return nil
}

// Reset clears all accumulated fields and restarts field numbering, for
// builder reuse across segments.
func (b *Builder) Reset() {
	b.byName = make(map[string]*FieldInfo)
	b.order = nil
	b.nextFieldNumber = 0
}

// Finish builds the immutable FieldInfos from everything accumulated so
// far.
func (b *Builder) Finish() (*FieldInfos, error) {
	infos := make([]FieldInfo, len(b.order))
	for i, name := range b.order {
		infos[i] = *b.byName[name]
	}
	return NewFieldInfos(infos)
}
