package skipindex

import (
	"log/slog"
	"math"
)

// MinMaxGranule stores the (min, max) range observed over one index
// granule's worth of rows.
type MinMaxGranule struct {
	hasValue bool
	min, max float64
}

func (g *MinMaxGranule) Empty() bool { return !g.hasValue }

func (g *MinMaxGranule) MemoryUsageBytes() int64 { return 16 }

// Min returns the granule's minimum value (0 if empty).
func (g *MinMaxGranule) Min() float64 {
	if !g.hasValue {
		return 0
	}
	return g.min
}

// Max returns the granule's maximum value (0 if empty).
func (g *MinMaxGranule) Max() float64 {
	if !g.hasValue {
		return 0
	}
	return g.max
}

// MinMaxAggregator tracks a running (min, max) over AddValue calls until
// a granule boundary is reached.
type MinMaxAggregator struct {
	granule *MinMaxGranule
	log     *slog.Logger
}

// NewMinMaxAggregator returns an aggregator with an empty current granule.
func NewMinMaxAggregator(opts ...AggregatorOption) *MinMaxAggregator {
	return &MinMaxAggregator{granule: &MinMaxGranule{}, log: resolveLogger(opts)}
}

func (a *MinMaxAggregator) Empty() bool { return a.granule.Empty() }

// AddValue folds value into the current granule's running min/max.
func (a *MinMaxAggregator) AddValue(value float64) {
	if !a.granule.hasValue {
		a.granule.hasValue = true
		a.granule.min = value
		a.granule.max = value
		return
	}
	if value < a.granule.min {
		a.granule.min = value
	}
	if value > a.granule.max {
		a.granule.max = value
	}
}

func (a *MinMaxAggregator) GetGranuleAndReset() Granule {
	result := a.granule
	a.log.Debug("minmax granule closed",
		slog.Bool("empty", result.Empty()),
		slog.Float64("min", result.Min()),
		slog.Float64("max", result.Max()))
	a.granule = &MinMaxGranule{}
	return result
}

// MinMaxCondition tests whether a granule's range overlaps [min, max].
type MinMaxCondition struct {
	minThreshold float64
	maxThreshold float64
}

// NewMinMaxCondition returns a condition matching any range (no filtering)
// until SetRange narrows it.
func NewMinMaxCondition() *MinMaxCondition {
	return &MinMaxCondition{
		minThreshold: -math.MaxFloat64,
		maxThreshold: math.MaxFloat64,
	}
}

// SetRange narrows the condition to [lo, hi].
func (c *MinMaxCondition) SetRange(lo, hi float64) {
	c.minThreshold = lo
	c.maxThreshold = hi
}

func (c *MinMaxCondition) AlwaysUnknownOrTrue() bool { return false }

// MayBeTrueOnGranule returns false only when granule's range provably
// does not overlap [minThreshold, maxThreshold]. A granule of an
// unrecognized type, or one with no recorded values, fails open (assumed
// to possibly match).
func (c *MinMaxCondition) MayBeTrueOnGranule(granule Granule) bool {
	mm, ok := granule.(*MinMaxGranule)
	if !ok || mm.Empty() {
		return true
	}
	if mm.max < c.minThreshold || mm.min > c.maxThreshold {
		return false
	}
	return true
}

func (c *MinMaxCondition) Description() string { return "MinMax condition" }

// MinMaxIndex is the MinMax skip-index factory.
type MinMaxIndex struct {
	name        string
	granularity int
}

// NewMinMaxIndex returns a MinMax index named name with the given
// granularity (data granules per index granule).
func NewMinMaxIndex(name string, granularity int) *MinMaxIndex {
	return &MinMaxIndex{name: name, granularity: granularity}
}

func (idx *MinMaxIndex) Name() string        { return idx.name }
func (idx *MinMaxIndex) FileName() string    { return fileNameFor(idx.name) }
func (idx *MinMaxIndex) Granularity() int    { return idx.granularity }
func (idx *MinMaxIndex) CreateGranule() Granule       { return &MinMaxGranule{} }
func (idx *MinMaxIndex) CreateAggregator() Aggregator { return NewMinMaxAggregator() }
func (idx *MinMaxIndex) CreateCondition() Condition   { return NewMinMaxCondition() }
