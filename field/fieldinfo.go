// Package field implements per-field schema metadata: FieldInfo, the
// immutable FieldInfos collection built once per segment, and
// Builder, the mutable accumulator used while a segment is
// being indexed.
package field

import (
	"github.com/model-collapse/diagon-sub003/errs"
)

// IndexOptions controls what posting detail is stored for a field. It is
// ordered: NONE < DOCS < DOCS_AND_FREQS < DOCS_AND_FREQS_AND_POSITIONS <
// DOCS_AND_FREQS_AND_POSITIONS_AND_OFFSETS.
type IndexOptions uint8

const (
	IndexOptionsNone IndexOptions = iota
	IndexOptionsDocs
	IndexOptionsDocsAndFreqs
	IndexOptionsDocsAndFreqsAndPositions
	IndexOptionsDocsAndFreqsAndPositionsAndOffsets
)

// DocValuesType is the column-storage type for a field's doc values.
type DocValuesType uint8

const (
	DocValuesNone DocValuesType = iota
	DocValuesNumeric
	DocValuesBinary
	DocValuesSorted
	DocValuesSortedNumeric
	DocValuesSortedSet
)

// DocValuesSkipIndexType is the skip-index flavor layered over a field's
// doc values, if any.
type DocValuesSkipIndexType uint8

const (
	DocValuesSkipIndexNone DocValuesSkipIndexType = iota
	DocValuesSkipIndexRange
)

// FieldInfo is a per-field schema record, validated once at construction.
type FieldInfo struct {
	Name   string
	Number int32

	IndexOptions   IndexOptions
	StoreTermVector bool
	OmitNorms       bool
	StorePayloads   bool

	DocValuesType      DocValuesType
	DocValuesSkipIndex DocValuesSkipIndexType
	DVGen              int64

	PointDimensionCount      int32
	PointIndexDimensionCount int32
	PointNumBytes            int32

	SoftDeletesField bool
	IsParentField    bool

	Attributes map[string]string
}

// HasPostings reports whether the field is indexed at all.
func (f *FieldInfo) HasPostings() bool { return f.IndexOptions != IndexOptionsNone }

// HasFreqs reports whether term frequencies are stored.
func (f *FieldInfo) HasFreqs() bool { return f.IndexOptions >= IndexOptionsDocsAndFreqs }

// HasPositions reports whether positions are stored.
func (f *FieldInfo) HasPositions() bool {
	return f.IndexOptions >= IndexOptionsDocsAndFreqsAndPositions
}

// HasOffsets reports whether character offsets are stored.
func (f *FieldInfo) HasOffsets() bool {
	return f.IndexOptions == IndexOptionsDocsAndFreqsAndPositionsAndOffsets
}

// HasNorms reports whether length-normalization values are stored.
func (f *FieldInfo) HasNorms() bool { return !f.OmitNorms && f.HasPostings() }

// HasDocValues reports whether the field has any doc-values column.
func (f *FieldInfo) HasDocValues() bool { return f.DocValuesType != DocValuesNone }

// HasPointValues reports whether the field indexes point/spatial values.
func (f *FieldInfo) HasPointValues() bool { return f.PointDimensionCount > 0 }

// GetAttribute looks up a codec-specific attribute.
func (f *FieldInfo) GetAttribute(key string) (string, bool) {
	v, ok := f.Attributes[key]
	return v, ok
}

// PutAttribute sets a codec-specific attribute, allocating the map if
// necessary.
func (f *FieldInfo) PutAttribute(key, value string) {
	if f.Attributes == nil {
		f.Attributes = make(map[string]string)
	}
	f.Attributes[key] = value
}

// docValuesSkipIndexCompatible reports whether t can carry a skip index:
// numeric and sorted families only.
func docValuesSkipIndexCompatible(t DocValuesType) bool {
	switch t {
	case DocValuesNumeric, DocValuesSorted, DocValuesSortedNumeric, DocValuesSortedSet:
		return true
	default:
		return false
	}
}

// Validate enforces the invariants of §3: payloads imply positions,
// term-vectors/payloads are forbidden on unindexed fields, a skip index is
// only compatible with numeric/sorted doc-values families, and point
// dimension counts are internally consistent.
func (f *FieldInfo) Validate() error {
	const op = "FieldInfo.Validate"
	if f.Number < 0 {
		return errs.New(op, errs.InvalidArgument, "field number must be >= 0")
	}
	if f.StorePayloads && !f.HasPositions() {
		return errs.New(op, errs.InvalidArgument, "payloads require positions to be indexed")
	}
	if !f.HasPostings() {
		if f.StoreTermVector {
			return errs.New(op, errs.InvalidArgument, "term vectors require the field to be indexed")
		}
		if f.StorePayloads {
			return errs.New(op, errs.InvalidArgument, "payloads require the field to be indexed")
		}
	}
	if f.DocValuesSkipIndex != DocValuesSkipIndexNone && !docValuesSkipIndexCompatible(f.DocValuesType) {
		return errs.New(op, errs.InvalidArgument, "doc-values skip index is only compatible with numeric/sorted doc-values types")
	}
	if f.PointDimensionCount < 0 || f.PointIndexDimensionCount < 0 || f.PointNumBytes < 0 {
		return errs.New(op, errs.InvalidArgument, "point dimension fields must be non-negative")
	}
	if f.PointIndexDimensionCount > f.PointDimensionCount {
		return errs.New(op, errs.InvalidArgument, "point index dimension count cannot exceed point dimension count")
	}
	if f.PointDimensionCount > 0 && f.PointNumBytes == 0 {
		return errs.New(op, errs.InvalidArgument, "a field with point dimensions must declare point_num_bytes")
	}
	if f.PointDimensionCount == 0 && (f.PointIndexDimensionCount != 0 || f.PointNumBytes != 0) {
		return errs.New(op, errs.InvalidArgument, "point_index_dims/point_num_bytes must be zero when point_dims is zero")
	}
	return nil
}
