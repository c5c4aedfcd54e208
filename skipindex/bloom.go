package skipindex

import (
	"log/slog"

	"github.com/model-collapse/diagon-sub003/bloom"
	"github.com/model-collapse/diagon-sub003/errs"
	"github.com/model-collapse/diagon-sub003/store"
)

// BloomGranule holds one Bloom filter per indexed column plus the row
// count the filters were sized against.
type BloomGranule struct {
	filters   []*bloom.Filter
	totalRows int64
}

func (g *BloomGranule) Empty() bool { return g.totalRows == 0 }

func (g *BloomGranule) MemoryUsageBytes() int64 {
	var total int64
	for _, f := range g.filters {
		total += f.MemoryUsageBytes()
	}
	return total
}

// Serialize writes total_rows, then for each column its filter byte
// length and raw bits.
func (g *BloomGranule) Serialize(out store.IndexOutput) error {
	if err := out.WriteVLong(g.totalRows); err != nil {
		return err
	}
	for _, f := range g.filters {
		raw := f.Bytes()
		if err := out.WriteVLong(int64(len(raw))); err != nil {
			return err
		}
		if err := out.WriteBytes(raw); err != nil {
			return err
		}
	}
	return nil
}

// DeserializeBloomGranule reads a granule serialized by Serialize.
// numColumns, numHashes and seed come from the owning index's
// configuration, since they are not repeated per granule.
func DeserializeBloomGranule(in store.IndexInput, numColumns, numHashes int, seed uint64) (*BloomGranule, error) {
	totalRows, err := in.ReadVLong()
	if err != nil {
		return nil, err
	}
	filters := make([]*bloom.Filter, numColumns)
	for i := 0; i < numColumns; i++ {
		n, err := in.ReadVLong()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if err := in.ReadBytes(raw); err != nil {
			return nil, err
		}
		f, err := bloom.FromBytes(int(n), numHashes, seed, raw)
		if err != nil {
			return nil, err
		}
		filters[i] = f
	}
	return &BloomGranule{filters: filters, totalRows: totalRows}, nil
}

// BloomAggregator accumulates per-column hash sets across a granule's
// rows, then instantiates the column filters on GetGranuleAndReset.
type BloomAggregator struct {
	numColumns int
	bitsPerRow int
	numHashes  int
	seed       uint64

	columnHashes []map[uint64]struct{}
	rows         int64
	log          *slog.Logger
}

// NewBloomAggregator creates an aggregator for numColumns columns, sizing
// each granule's filters at bitsPerRow bits per row.
func NewBloomAggregator(numColumns, bitsPerRow, numHashes int, seed uint64, opts ...AggregatorOption) *BloomAggregator {
	a := &BloomAggregator{
		numColumns:   numColumns,
		bitsPerRow:   bitsPerRow,
		numHashes:    numHashes,
		seed:         seed,
		columnHashes: make([]map[uint64]struct{}, numColumns),
		log:          resolveLogger(opts),
	}
	for i := range a.columnHashes {
		a.columnHashes[i] = make(map[uint64]struct{})
	}
	return a
}

func (a *BloomAggregator) Empty() bool { return a.rows == 0 }

// AddRow folds one row's per-column hash values into the running sets.
// hashes must have length numColumns.
func (a *BloomAggregator) AddRow(hashes []uint64) error {
	if len(hashes) != a.numColumns {
		return errs.New("BloomAggregator.AddRow", errs.InvalidArgument, "hash count must equal numColumns")
	}
	for col, h := range hashes {
		a.columnHashes[col][h] = struct{}{}
	}
	a.rows++
	return nil
}

func (a *BloomAggregator) GetGranuleAndReset() Granule {
	sizeBytes := int((int64(a.bitsPerRow)*a.rows + 7) / 8)
	if sizeBytes < 1 {
		sizeBytes = 1
	}
	filters := make([]*bloom.Filter, a.numColumns)
	for col, hashes := range a.columnHashes {
		f, _ := bloom.New(sizeBytes, a.numHashes, a.seed)
		for h := range hashes {
			f.AddHash(h)
		}
		filters[col] = f
	}
	granule := &BloomGranule{filters: filters, totalRows: a.rows}
	a.log.Debug("bloom granule closed",
		slog.Int64("rows", a.rows),
		slog.Int("size_bytes", sizeBytes))

	a.rows = 0
	for i := range a.columnHashes {
		a.columnHashes[i] = make(map[uint64]struct{})
	}
	return granule
}

// bloomPredicate is one column's set of acceptable hash values (a single
// entry for EQUALS, several for IN); the predicate is satisfied if the
// column's filter contains any one of them.
type bloomPredicate struct {
	column int
	hashes []uint64
}

// BloomCondition evaluates EQUALS/IN predicates against a BloomGranule.
type BloomCondition struct {
	predicates []bloomPredicate
}

// NewBloomCondition returns a condition with no predicates yet (always
// matches until one is added).
func NewBloomCondition() *BloomCondition {
	return &BloomCondition{}
}

// AddEquals adds a WHERE col = value predicate, given value's hash.
func (c *BloomCondition) AddEquals(column int, hash uint64) {
	c.predicates = append(c.predicates, bloomPredicate{column: column, hashes: []uint64{hash}})
}

// AddIn adds a WHERE col IN (values) predicate, given their hashes.
func (c *BloomCondition) AddIn(column int, hashes []uint64) {
	c.predicates = append(c.predicates, bloomPredicate{column: column, hashes: hashes})
}

func (c *BloomCondition) AlwaysUnknownOrTrue() bool { return len(c.predicates) == 0 }

// MayBeTrueOnGranule returns false only if some predicate's column filter
// contains none of its candidate hashes. Predicates referencing a column
// beyond the granule's filter count are ignored (no filtering possible
// for them). A granule of an unrecognized type fails open.
func (c *BloomCondition) MayBeTrueOnGranule(granule Granule) bool {
	bg, ok := granule.(*BloomGranule)
	if !ok || bg.Empty() {
		return true
	}
	for _, pred := range c.predicates {
		if pred.column < 0 || pred.column >= len(bg.filters) {
			continue
		}
		filter := bg.filters[pred.column]
		matched := false
		for _, h := range pred.hashes {
			if filter.ContainsHash(h) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (c *BloomCondition) Description() string { return "Bloom filter condition" }

// BloomIndex is the Bloom-filter skip-index factory.
type BloomIndex struct {
	name        string
	granularity int
	numColumns  int
	bitsPerRow  int
	numHashes   int
	seed        uint64
}

// NewBloomIndex returns a Bloom-filter index over numColumns columns,
// each granule's filters sized at bitsPerRow bits per row and using
// numHashes hash functions.
func NewBloomIndex(name string, granularity, numColumns, bitsPerRow, numHashes int, seed uint64) *BloomIndex {
	return &BloomIndex{
		name:        name,
		granularity: granularity,
		numColumns:  numColumns,
		bitsPerRow:  bitsPerRow,
		numHashes:   numHashes,
		seed:        seed,
	}
}

func (idx *BloomIndex) Name() string     { return idx.name }
func (idx *BloomIndex) FileName() string { return fileNameFor(idx.name) }
func (idx *BloomIndex) Granularity() int { return idx.granularity }

func (idx *BloomIndex) CreateGranule() Granule {
	filters := make([]*bloom.Filter, idx.numColumns)
	return &BloomGranule{filters: filters}
}

func (idx *BloomIndex) CreateAggregator() Aggregator {
	return NewBloomAggregator(idx.numColumns, idx.bitsPerRow, idx.numHashes, idx.seed)
}

func (idx *BloomIndex) CreateCondition() Condition {
	return NewBloomCondition()
}
