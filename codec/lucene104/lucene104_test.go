package lucene104

import (
	"testing"

	"github.com/model-collapse/diagon-sub003/codec"
	"github.com/model-collapse/diagon-sub003/field"
	"github.com/model-collapse/diagon-sub003/store"
)

func fieldInfoWithFreqs(t *testing.T, freqs bool) *field.FieldInfo {
	t.Helper()
	opts := field.IndexOptionsDocs
	if freqs {
		opts = field.IndexOptionsDocsAndFreqs
	}
	fi := &field.FieldInfo{Name: "body", Number: 0, IndexOptions: opts}
	if err := fi.Validate(); err != nil {
		t.Fatalf("invalid FieldInfo: %v", err)
	}
	return fi
}

func writePostings(t *testing.T, fi *field.FieldInfo, docs []int32, freqs []int32) ([]byte, TermState) {
	t.Helper()
	out := store.NewRAMOutput("doc")
	w := NewWriter(out)
	w.SetField(fi)
	w.StartTerm()
	for i, d := range docs {
		if err := w.StartDoc(d, freqs[i]); err != nil {
			t.Fatalf("StartDoc(%d): %v", d, err)
		}
	}
	state, err := w.FinishTerm()
	if err != nil {
		t.Fatalf("FinishTerm: %v", err)
	}
	return out.Bytes(), state
}

func collect(t *testing.T, fi *field.FieldInfo, raw []byte, state TermState) ([]int32, []int32) {
	t.Helper()
	in := store.NewRAMInput("doc", raw)
	r := NewReader(in)
	enum, err := r.Postings(fi, state)
	if err != nil {
		t.Fatalf("Postings: %v", err)
	}
	var docs, freqs []int32
	for {
		d, err := enum.NextDoc()
		if err != nil {
			t.Fatalf("NextDoc: %v", err)
		}
		if d == codec.NoMoreDocs {
			break
		}
		f, err := enum.Freq()
		if err != nil {
			t.Fatalf("Freq: %v", err)
		}
		docs = append(docs, d)
		freqs = append(freqs, f)
	}
	return docs, freqs
}

func TestRoundTripExactGroupMultiple(t *testing.T) {
	fi := fieldInfoWithFreqs(t, true)
	docs := []int32{1, 5, 9, 20, 21, 22, 23, 100}
	freqs := []int32{1, 2, 3, 4, 1, 1, 1, 7}
	raw, state := writePostings(t, fi, docs, freqs)
	if state.DocFreq != int32(len(docs)) {
		t.Fatalf("DocFreq = %d, want %d", state.DocFreq, len(docs))
	}
	gotDocs, gotFreqs := collect(t, fi, raw, state)
	if len(gotDocs) != len(docs) {
		t.Fatalf("got %d docs, want %d", len(gotDocs), len(docs))
	}
	for i := range docs {
		if gotDocs[i] != docs[i] || gotFreqs[i] != freqs[i] {
			t.Errorf("doc %d: got (%d,%d), want (%d,%d)", i, gotDocs[i], gotFreqs[i], docs[i], freqs[i])
		}
	}
}

func TestRoundTripWithTail(t *testing.T) {
	fi := fieldInfoWithFreqs(t, true)
	docs := []int32{3, 4, 9, 10, 11, 50}
	freqs := []int32{1, 1, 2, 1, 1, 9}
	raw, state := writePostings(t, fi, docs, freqs)
	gotDocs, gotFreqs := collect(t, fi, raw, state)
	for i := range docs {
		if gotDocs[i] != docs[i] || gotFreqs[i] != freqs[i] {
			t.Errorf("doc %d: got (%d,%d), want (%d,%d)", i, gotDocs[i], gotFreqs[i], docs[i], freqs[i])
		}
	}
}

func TestNoFreqsFillsOnes(t *testing.T) {
	fi := fieldInfoWithFreqs(t, false)
	docs := []int32{1, 2, 3}
	freqs := []int32{5, 6, 7} // ignored by the writer since the field omits freqs
	raw, state := writePostings(t, fi, docs, freqs)
	if state.TotalTermFreq != -1 {
		t.Errorf("TotalTermFreq = %d, want -1 for a field without freqs", state.TotalTermFreq)
	}
	_, gotFreqs := collect(t, fi, raw, state)
	for _, f := range gotFreqs {
		if f != 1 {
			t.Errorf("freq = %d, want 1 when frequencies are not stored", f)
		}
	}
}

func TestAdvanceSkipsAhead(t *testing.T) {
	fi := fieldInfoWithFreqs(t, true)
	docs := []int32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	freqs := make([]int32, len(docs))
	for i := range freqs {
		freqs[i] = int32(i + 1)
	}
	raw, state := writePostings(t, fi, docs, freqs)
	in := store.NewRAMInput("doc", raw)
	r := NewReader(in)
	enum, err := r.Postings(fi, state)
	if err != nil {
		t.Fatal(err)
	}
	got, err := enum.Advance(5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("Advance(5) = %d, want 5", got)
	}
	f, _ := enum.Freq()
	if f != 5 {
		t.Errorf("Freq() after Advance(5) = %d, want 5", f)
	}
}

func TestStartDocRejectsNonIncreasingDocID(t *testing.T) {
	out := store.NewRAMOutput("doc")
	w := NewWriter(out)
	w.SetField(fieldInfoWithFreqs(t, true))
	w.StartTerm()
	if err := w.StartDoc(5, 1); err != nil {
		t.Fatal(err)
	}
	if err := w.StartDoc(5, 1); err == nil {
		t.Error("expected error for a repeated doc ID")
	}
	if err := w.StartDoc(3, 1); err == nil {
		t.Error("expected error for a decreasing doc ID")
	}
}

func TestStartDocRejectsNonPositiveFreq(t *testing.T) {
	out := store.NewRAMOutput("doc")
	w := NewWriter(out)
	w.SetField(fieldInfoWithFreqs(t, true))
	w.StartTerm()
	if err := w.StartDoc(1, 0); err == nil {
		t.Error("expected error for a zero freq")
	}
}

func TestNextBatchReturnsAbsoluteDocsAndFreqs(t *testing.T) {
	fi := fieldInfoWithFreqs(t, true)
	docs := make([]int32, 20)
	freqs := make([]int32, 20)
	for i := range docs {
		docs[i] = int32(i + 1)
		freqs[i] = int32(i%3 + 1)
	}
	raw, state := writePostings(t, fi, docs, freqs)
	in := store.NewRAMInput("doc", raw)
	enum, err := NewReader(in).Postings(fi, state)
	if err != nil {
		t.Fatal(err)
	}

	batch, err := enum.NextBatch(8)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Docs) != 8 {
		t.Fatalf("first batch size = %d, want 8", len(batch.Docs))
	}
	for i := 0; i < 8; i++ {
		if batch.Docs[i] != docs[i] || batch.Freqs[i] != freqs[i] {
			t.Errorf("batch[%d] = (%d,%d), want (%d,%d)", i, batch.Docs[i], batch.Freqs[i], docs[i], freqs[i])
		}
	}
	if enum.DocID() != docs[7] {
		t.Errorf("DocID after batch = %d, want %d", enum.DocID(), docs[7])
	}

	batch2, err := enum.NextBatch(32)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch2.Docs) != 12 {
		t.Fatalf("second batch size = %d, want 12 (remaining docs)", len(batch2.Docs))
	}
	for i, want := range docs[8:] {
		if batch2.Docs[i] != want {
			t.Errorf("batch2[%d] = %d, want %d", i, batch2.Docs[i], want)
		}
	}

	batch3, err := enum.NextBatch(4)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch3.Docs) != 0 {
		t.Errorf("batch past exhaustion = %v, want empty", batch3.Docs)
	}
}

func TestCostReturnsDocFreq(t *testing.T) {
	fi := fieldInfoWithFreqs(t, true)
	docs := []int32{1, 2, 3, 4, 5}
	freqs := []int32{1, 1, 1, 1, 1}
	raw, state := writePostings(t, fi, docs, freqs)
	in := store.NewRAMInput("doc", raw)
	enum, err := NewReader(in).Postings(fi, state)
	if err != nil {
		t.Fatal(err)
	}
	if enum.Cost() != int64(len(docs)) {
		t.Errorf("Cost() = %d, want %d", enum.Cost(), len(docs))
	}
}
