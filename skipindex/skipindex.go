// Package skipindex implements the granule-based skip-index framework
// used to prune data granules at query time: an abstract
// Index/Aggregator/Condition/Granule contract, plus concrete MinMax and
// Bloom-filter indexes.
package skipindex

import "log/slog"

// aggregatorConfig holds the diagnostics state shared by every concrete
// Aggregator's constructor.
type aggregatorConfig struct {
	log *slog.Logger
}

// AggregatorOption configures a concrete Aggregator's diagnostics beyond
// its required sizing parameters.
type AggregatorOption func(*aggregatorConfig)

// WithAggregatorLogger sets the logger an aggregator reports granule
// resets to. If nil or unset, slog.Default is used.
func WithAggregatorLogger(l *slog.Logger) AggregatorOption {
	return func(c *aggregatorConfig) { c.log = l }
}

func resolveLogger(opts []AggregatorOption) *slog.Logger {
	c := &aggregatorConfig{}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c.log
}

// Granule is the opaque, serializable per-index-type payload stored every
// Granularity data granules.
type Granule interface {
	Empty() bool
	MemoryUsageBytes() int64
}

// Aggregator accumulates rows between granule boundaries and emits a
// Granule, resetting its own state, each time one is reached.
type Aggregator interface {
	Empty() bool
	GetGranuleAndReset() Granule
}

// Condition evaluates, at query time, whether a granule could possibly
// satisfy a predicate.
type Condition interface {
	// AlwaysUnknownOrTrue reports whether this index is unable to help
	// filter the current query at all.
	AlwaysUnknownOrTrue() bool
	// MayBeTrueOnGranule returns false only when the index proves
	// granule cannot contain a match; query planners treat false as
	// "skip this granule".
	MayBeTrueOnGranule(granule Granule) bool
	Description() string
}

// Index is the factory and file-naming contract for one configured skip
// index.
type Index interface {
	Name() string
	// FileName is "skp_idx_<name>", without an extension.
	FileName() string
	Granularity() int
	CreateGranule() Granule
	CreateAggregator() Aggregator
	CreateCondition() Condition
}

func fileNameFor(name string) string {
	return "skp_idx_" + name
}
