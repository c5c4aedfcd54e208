package freqprox

import (
	"testing"

	"github.com/model-collapse/diagon-sub003/field"
)

func docsAndFreqs(text ...string) []Token {
	toks := make([]Token, len(text))
	for i, t := range text {
		toks[i] = Token{Text: t, Position: int32(i)}
	}
	return toks
}

func TestAddDocumentBuildsPostingList(t *testing.T) {
	b := field.NewBuilder()
	w := NewWriter(b)

	doc0 := Document{{Name: "body", Tokens: docsAndFreqs("the", "cat", "sat"), IndexOptions: field.IndexOptionsDocsAndFreqs}}
	doc1 := Document{{Name: "body", Tokens: docsAndFreqs("the", "dog", "the"), IndexOptions: field.IndexOptionsDocsAndFreqs}}

	if err := w.AddDocument(doc0, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDocument(doc1, 1); err != nil {
		t.Fatal(err)
	}

	got, err := w.GetPostingList("body", "the")
	if err != nil {
		t.Fatal(err)
	}
	want := []int32{0, 1, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("GetPostingList(the) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetPostingList(the) = %v, want %v", got, want)
		}
	}
}

func TestAddDocumentWithPositions(t *testing.T) {
	b := field.NewBuilder()
	w := NewWriter(b)

	doc := Document{{
		Name:         "body",
		Tokens:       docsAndFreqs("run", "fast", "run"),
		IndexOptions: field.IndexOptionsDocsAndFreqsAndPositions,
	}}
	if err := w.AddDocument(doc, 5); err != nil {
		t.Fatal(err)
	}

	got, err := w.GetPostingList("body", "run")
	if err != nil {
		t.Fatal(err)
	}
	// docID=5, freq=2, positions 0 and 2
	if len(got) != 4 || got[0] != 5 || got[1] != 2 {
		t.Fatalf("GetPostingList(run) = %v, want [5 2 <pos0> <pos1>]", got)
	}
}

func TestUnindexedFieldSkipsPostingsButRecordsDocValues(t *testing.T) {
	b := field.NewBuilder()
	w := NewWriter(b)

	doc := Document{{
		Name:         "id",
		Tokens:       nil,
		IndexOptions: field.IndexOptionsNone,
		DocValues:    field.DocValuesNumeric,
	}}
	if err := w.AddDocument(doc, 0); err != nil {
		t.Fatal(err)
	}
	if fi := b.FieldInfo("id"); fi == nil || fi.DocValuesType != field.DocValuesNumeric {
		t.Fatal("expected doc-values type recorded for an unindexed field")
	}
	if terms := w.GetTermsForField("id"); len(terms) != 0 {
		t.Errorf("expected no posting terms for an unindexed field, got %v", terms)
	}
}

func TestGetTermsSortedAndDeduped(t *testing.T) {
	b := field.NewBuilder()
	w := NewWriter(b)
	doc := Document{{Name: "f", Tokens: docsAndFreqs("zeta", "alpha", "mid", "alpha"), IndexOptions: field.IndexOptionsDocs}}
	if err := w.AddDocument(doc, 0); err != nil {
		t.Fatal(err)
	}
	got := w.GetTermsForField("f")
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("GetTermsForField = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetTermsForField = %v, want %v", got, want)
		}
	}
}

func TestFieldStatsAccumulate(t *testing.T) {
	b := field.NewBuilder()
	w := NewWriter(b)
	doc0 := Document{{Name: "f", Tokens: docsAndFreqs("a", "b"), IndexOptions: field.IndexOptionsDocs}}
	doc1 := Document{{Name: "f", Tokens: docsAndFreqs("a", "a", "c"), IndexOptions: field.IndexOptionsDocs}}
	if err := w.AddDocument(doc0, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDocument(doc1, 1); err != nil {
		t.Fatal(err)
	}
	stats := w.GetFieldStats("f")
	if stats.DocCount != 2 {
		t.Errorf("DocCount = %d, want 2", stats.DocCount)
	}
	if stats.SumTotalTermFreq != 5 {
		t.Errorf("SumTotalTermFreq = %d, want 5", stats.SumTotalTermFreq)
	}
	if stats.SumDocFreq != 4 {
		t.Errorf("SumDocFreq = %d, want 4", stats.SumDocFreq)
	}
}

func TestDuplicateEmissionSameDocIsIgnored(t *testing.T) {
	b := field.NewBuilder()
	w := NewWriter(b)
	doc := Document{{Name: "f", Tokens: docsAndFreqs("x"), IndexOptions: field.IndexOptionsDocs}}
	if err := w.AddDocument(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDocument(doc, 0); err != nil {
		t.Fatal(err)
	}
	got, err := w.GetPostingList("f", "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the second add_document with the same docID to be a no-op, got %v", got)
	}
}

func TestResetKeepsPoolMemoryClearsState(t *testing.T) {
	b := field.NewBuilder()
	w := NewWriter(b)
	doc := Document{{Name: "f", Tokens: docsAndFreqs("a", "b", "c"), IndexOptions: field.IndexOptionsDocs}}
	if err := w.AddDocument(doc, 0); err != nil {
		t.Fatal(err)
	}
	before := w.termBytePool.BytesUsed()
	w.Reset()
	if after := w.termBytePool.BytesUsed(); after != before {
		t.Errorf("Reset should keep pool-allocated memory: before=%d after=%d", before, after)
	}
	if terms := w.GetTermsForField("f"); len(terms) != 0 {
		t.Error("Reset should clear accumulated posting state")
	}
}

func TestPostingListSpansMultipleBlocksAcrossManyDocuments(t *testing.T) {
	// A term appearing in enough documents pushes its posting list past a
	// single IntBlockPool block (8192 ints); the writer must chain
	// further pool slices rather than require one oversized allocation.
	b := field.NewBuilder()
	w := NewWriter(b)

	const numDocs = 5000 // 2 ints/doc (docID, freq) = 10000 ints, > 8192
	for docID := int32(0); docID < numDocs; docID++ {
		doc := Document{{Name: "body", Tokens: docsAndFreqs("common"), IndexOptions: field.IndexOptionsDocsAndFreqs}}
		if err := w.AddDocument(doc, docID); err != nil {
			t.Fatalf("AddDocument(%d): %v", docID, err)
		}
	}

	got, err := w.GetPostingList("body", "common")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != numDocs*2 {
		t.Fatalf("GetPostingList(common) returned %d ints, want %d", len(got), numDocs*2)
	}
	for docID := int32(0); docID < numDocs; docID++ {
		gotDocID, gotFreq := got[docID*2], got[docID*2+1]
		if gotDocID != docID || gotFreq != 1 {
			t.Fatalf("entry %d = [%d %d], want [%d 1]", docID, gotDocID, gotFreq, docID)
		}
	}
}

func TestPostingListSpansMultipleBlocksWithinSingleHighFrequencyEntry(t *testing.T) {
	// A single document whose field has a term occurring more than 8190
	// times produces one entry (docID, freq, positions...) that alone
	// exceeds a block; it must span slices mid-entry.
	const occurrences = 8200
	text := make([]string, occurrences)
	for i := range text {
		text[i] = "word"
	}

	b := field.NewBuilder()
	w := NewWriter(b)
	doc := Document{{
		Name:         "body",
		Tokens:       docsAndFreqs(text...),
		IndexOptions: field.IndexOptionsDocsAndFreqsAndPositions,
	}}
	if err := w.AddDocument(doc, 7); err != nil {
		t.Fatal(err)
	}

	got, err := w.GetPostingList("body", "word")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2+occurrences {
		t.Fatalf("GetPostingList(word) returned %d ints, want %d", len(got), 2+occurrences)
	}
	if got[0] != 7 || got[1] != occurrences {
		t.Fatalf("GetPostingList(word) header = [%d %d], want [7 %d]", got[0], got[1], occurrences)
	}
	for i := 0; i < occurrences; i++ {
		if got[2+i] != int32(i) {
			t.Fatalf("GetPostingList(word) position %d = %d, want %d", i, got[2+i], i)
		}
	}
}

func TestClearReleasesPoolMemory(t *testing.T) {
	b := field.NewBuilder()
	w := NewWriter(b)
	doc := Document{{Name: "f", Tokens: docsAndFreqs("a", "b", "c"), IndexOptions: field.IndexOptionsDocs}}
	if err := w.AddDocument(doc, 0); err != nil {
		t.Fatal(err)
	}
	w.Clear()
	if w.termBytePool.BytesUsed() != 0 {
		t.Error("Clear should release all block-pool memory")
	}
}
