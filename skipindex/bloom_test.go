package skipindex

import (
	"testing"

	"github.com/model-collapse/diagon-sub003/store"
)

func TestBloomAggregatorBuildsContainingFilters(t *testing.T) {
	a := NewBloomAggregator(2, 10, 3, 7)
	if !a.Empty() {
		t.Fatal("fresh aggregator should be empty")
	}
	rows := [][]uint64{
		{111, 222},
		{333, 222},
		{111, 444},
	}
	for _, r := range rows {
		if err := a.AddRow(r); err != nil {
			t.Fatal(err)
		}
	}
	if a.Empty() {
		t.Fatal("aggregator with rows should not be empty")
	}
	g := a.GetGranuleAndReset().(*BloomGranule)
	if g.totalRows != 3 {
		t.Errorf("totalRows = %d, want 3", g.totalRows)
	}
	if !g.filters[0].ContainsHash(111) || !g.filters[0].ContainsHash(333) {
		t.Error("column 0 filter should contain inserted hashes")
	}
	if !g.filters[1].ContainsHash(222) || !g.filters[1].ContainsHash(444) {
		t.Error("column 1 filter should contain inserted hashes")
	}
	if !a.Empty() {
		t.Error("aggregator should be empty again after GetGranuleAndReset")
	}
}

func TestBloomAggregatorRejectsWrongRowWidth(t *testing.T) {
	a := NewBloomAggregator(2, 10, 3, 0)
	if err := a.AddRow([]uint64{1}); err == nil {
		t.Fatal("expected error for row width mismatch")
	}
}

func TestBloomConditionEqualsAndIn(t *testing.T) {
	a := NewBloomAggregator(2, 64, 4, 1)
	_ = a.AddRow([]uint64{10, 100})
	_ = a.AddRow([]uint64{20, 200})
	g := a.GetGranuleAndReset()

	eq := NewBloomCondition()
	eq.AddEquals(0, 10)
	if !eq.MayBeTrueOnGranule(g) {
		t.Error("EQUALS predicate on a present hash should not exclude the granule")
	}

	eqMiss := NewBloomCondition()
	eqMiss.AddEquals(0, 999999)
	if eqMiss.MayBeTrueOnGranule(g) {
		t.Error("EQUALS predicate on an absent hash should exclude the granule")
	}

	in := NewBloomCondition()
	in.AddIn(1, []uint64{777, 200})
	if !in.MayBeTrueOnGranule(g) {
		t.Error("IN predicate matching any candidate hash should not exclude the granule")
	}

	combined := NewBloomCondition()
	combined.AddEquals(0, 10)
	combined.AddEquals(1, 999999)
	if combined.MayBeTrueOnGranule(g) {
		t.Error("a granule failing any predicate should be excluded")
	}
}

func TestBloomConditionIgnoresUnknownColumn(t *testing.T) {
	a := NewBloomAggregator(1, 64, 4, 0)
	_ = a.AddRow([]uint64{5})
	g := a.GetGranuleAndReset()

	c := NewBloomCondition()
	c.AddEquals(7, 123)
	if !c.MayBeTrueOnGranule(g) {
		t.Error("predicate on an out-of-range column should be ignored, not exclude the granule")
	}
}

func TestBloomConditionFailsOpenOnEmptyOrWrongType(t *testing.T) {
	c := NewBloomCondition()
	c.AddEquals(0, 1)

	empty := &BloomGranule{}
	if !c.MayBeTrueOnGranule(empty) {
		t.Error("condition should fail open on an empty granule")
	}
	other := &MinMaxGranule{hasValue: true, min: 0, max: 1}
	if !c.MayBeTrueOnGranule(other) {
		t.Error("condition should fail open on a granule of a different type")
	}
}

func TestBloomConditionAlwaysUnknownOrTrueWithNoPredicates(t *testing.T) {
	c := NewBloomCondition()
	if !c.AlwaysUnknownOrTrue() {
		t.Error("a condition with no predicates should report AlwaysUnknownOrTrue")
	}
}

func TestBloomGranuleSerializeRoundTrip(t *testing.T) {
	a := NewBloomAggregator(2, 64, 3, 42)
	_ = a.AddRow([]uint64{1, 2})
	_ = a.AddRow([]uint64{3, 4})
	g := a.GetGranuleAndReset().(*BloomGranule)

	out := store.NewRAMOutput("granule")
	if err := g.Serialize(out); err != nil {
		t.Fatal(err)
	}
	in := store.NewRAMInput("granule", out.Bytes())
	got, err := DeserializeBloomGranule(in, 2, 3, 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.totalRows != g.totalRows {
		t.Errorf("totalRows = %d, want %d", got.totalRows, g.totalRows)
	}
	if !got.filters[0].ContainsHash(1) || !got.filters[1].ContainsHash(4) {
		t.Error("deserialized granule should preserve filter membership")
	}
}

func TestBloomIndexFactory(t *testing.T) {
	idx := NewBloomIndex("tags", 8, 2, 16, 3, 1)
	if idx.Name() != "tags" {
		t.Errorf("Name() = %q, want %q", idx.Name(), "tags")
	}
	if idx.FileName() != "skp_idx_tags" {
		t.Errorf("FileName() = %q, want %q", idx.FileName(), "skp_idx_tags")
	}
	if idx.Granularity() != 8 {
		t.Errorf("Granularity() = %d, want 8", idx.Granularity())
	}
	if _, ok := idx.CreateGranule().(*BloomGranule); !ok {
		t.Error("CreateGranule() should return a *BloomGranule")
	}
	if _, ok := idx.CreateAggregator().(*BloomAggregator); !ok {
		t.Error("CreateAggregator() should return a *BloomAggregator")
	}
	if _, ok := idx.CreateCondition().(*BloomCondition); !ok {
		t.Error("CreateCondition() should return a *BloomCondition")
	}
}
