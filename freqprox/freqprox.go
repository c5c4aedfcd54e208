// Package freqprox implements FreqProxTermsWriter, the in-memory posting
// accumulator a DocumentsWriterPerThread uses while a segment is open:
// term bytes and posting tuples live in block pools, and posting lists,
// field statistics, and per-field sorted term sets are all maintained
// incrementally so a flush never rescans the documents that built them.
package freqprox

import (
	"sort"

	"github.com/model-collapse/diagon-sub003/field"
	"github.com/model-collapse/diagon-sub003/pool"
)

// Token is one analyzed occurrence of a term in a field, produced by
// whatever analysis pipeline sits outside the index core.
type Token struct {
	Text        string
	Position    int32
	StartOffset int32
	EndOffset   int32
	Type        string
}

// Field is one field's contribution to a document being added.
type Field struct {
	Name         string
	Tokens       []Token
	IndexOptions field.IndexOptions
	DocValues    field.DocValuesType
}

// Document is the set of fields making up one document.
type Document []Field

// FieldStats are the aggregate, incrementally-maintained statistics for
// one field, matching what a Terms implementation needs at flush time.
type FieldStats struct {
	SumTotalTermFreq int64
	SumDocFreq        int64
	DocCount          int
}

// postingData is one term's accumulated posting tuples: a forward-linked
// chain of intPool slices, mirroring the original's slice-chained
// ByteBlockPool/IntBlockPool posting storage so a term's postings can
// outgrow a single pool block. Each slice's last int is reserved for the
// absolute start offset of the next slice (-1 while still the newest
// slice in the chain). Entries are [docID, freq] or
// [docID, freq, pos0, ..., posF-1] depending on whether the field
// indexes positions.
type postingData struct {
	lastDocID  int32
	firstStart int   // start of the chain's first slice
	curStart   int   // start of the slice currently being written
	curCap     int   // capacity (ints, including the reserved trailing pointer) of curStart's slice
	curUsed    int   // ints written into curStart's slice so far, excluding the reserved slot
	length     int   // total entry ints across every slice in the chain
	termOffset int64 // term bytes' location in termBytePool
}

type termKey struct {
	fieldID int32
	term    string
}

// Writer is FreqProxTermsWriter: an in-memory, per-segment posting
// accumulator. Not safe for concurrent use.
type Writer struct {
	builder *field.Builder

	fieldNameToID map[string]int32
	nextFieldID   int32

	termBytePool *pool.ByteBlockPool
	intPool      *pool.IntBlockPool

	postings map[termKey]*postingData

	fieldLengths map[string]map[int32]int32
	fieldStats   map[string]*FieldStats
	sortedTerms  map[string][]string

	scratchFreq map[string]int32
	scratchPos  map[string][]int32

	bytesUsed int64
}

// NewWriter creates an empty accumulator that registers field numbers
// through builder.
func NewWriter(builder *field.Builder) *Writer {
	return &Writer{
		builder:       builder,
		fieldNameToID: make(map[string]int32),
		termBytePool:  pool.NewByteBlockPool(),
		intPool:       pool.NewIntBlockPool(),
		postings:      make(map[termKey]*postingData),
		fieldLengths:  make(map[string]map[int32]int32),
		fieldStats:    make(map[string]*FieldStats),
		sortedTerms:   make(map[string][]string),
		scratchFreq:   make(map[string]int32),
		scratchPos:    make(map[string][]int32),
	}
}

func (w *Writer) fieldID(name string) int32 {
	if id, ok := w.fieldNameToID[name]; ok {
		return id
	}
	id := w.nextFieldID
	w.nextFieldID++
	w.fieldNameToID[name] = id
	return id
}

// AddDocument accumulates postings and statistics for doc, identified by
// the absolute segment-local docID.
func (w *Writer) AddDocument(doc Document, docID int32) error {
	for _, f := range doc {
		w.builder.GetOrAdd(f.Name)
		if err := w.builder.UpdateIndexOptions(f.Name, f.IndexOptions); err != nil {
			return err
		}
		if err := w.builder.UpdateDocValuesType(f.Name, f.DocValues); err != nil {
			return err
		}

		if f.IndexOptions == field.IndexOptionsNone {
			continue
		}

		withPositions := f.IndexOptions >= field.IndexOptionsDocsAndFreqsAndPositions

		clear(w.scratchFreq)
		clear(w.scratchPos)
		for _, tok := range f.Tokens {
			w.scratchFreq[tok.Text]++
			if withPositions {
				w.scratchPos[tok.Text] = append(w.scratchPos[tok.Text], tok.Position)
			}
		}

		fieldID := w.fieldID(f.Name)
		distinctTerms := 0
		for term, freq := range w.scratchFreq {
			distinctTerms++
			if err := w.addTermOccurrence(fieldID, f.Name, term, docID, freq, w.scratchPos[term]); err != nil {
				return err
			}
		}

		if w.fieldLengths[f.Name] == nil {
			w.fieldLengths[f.Name] = make(map[int32]int32)
		}
		w.fieldLengths[f.Name][docID] = int32(len(f.Tokens))

		stats := w.fieldStats[f.Name]
		if stats == nil {
			stats = &FieldStats{}
			w.fieldStats[f.Name] = stats
		}
		stats.SumTotalTermFreq += int64(len(f.Tokens))
		stats.SumDocFreq += int64(distinctTerms)
		stats.DocCount++
	}
	return nil
}

func (w *Writer) addTermOccurrence(fieldID int32, fieldName, term string, docID int32, freq int32, positions []int32) error {
	key := termKey{fieldID: fieldID, term: term}
	data, exists := w.postings[key]
	if !exists {
		termOffset, err := w.termBytePool.AppendString(term)
		if err != nil {
			return err
		}
		created, err := w.createPostingList(docID, freq, positions)
		if err != nil {
			return err
		}
		created.termOffset = termOffset
		w.postings[key] = created
		w.insertSortedTerm(fieldName, term)
		w.bytesUsed += int64(len(term)) + 1
		return nil
	}
	if data.lastDocID == docID {
		// Duplicate emission for a document already recorded; ignore.
		return nil
	}
	return w.appendToPostingList(data, docID, freq, positions)
}

func entryInts(docID int32, freq int32, positions []int32) []int32 {
	ints := make([]int32, 0, 2+len(positions))
	ints = append(ints, docID, freq)
	ints = append(ints, positions...)
	return ints
}

// firstSliceCapacity is the size, in ints, of a posting's first pool
// slice. Every slice reserves its last int as a forwarding pointer to
// the next slice in the chain, so only capacity-1 ints hold entry data.
const firstSliceCapacity = 8

// maxSliceCapacity caps slice growth at IntBlockPool's own per-Allocate
// limit, so a slice request never itself fails; a posting list that
// needs more room simply chains on another maxSliceCapacity slice.
const maxSliceCapacity = pool.IntBlockSize

// noNextSlice marks a slice as the newest in its chain.
const noNextSlice = -1

// nextSliceCapacity doubles capacity on each new slice in a chain, up to
// maxSliceCapacity, where it then stays fixed.
func nextSliceCapacity(capacity int) int {
	next := capacity * 2
	if next > maxSliceCapacity || next <= capacity {
		next = maxSliceCapacity
	}
	return next
}

func (w *Writer) newSlice(capacity int) (int, error) {
	start, err := w.intPool.Allocate(capacity)
	if err != nil {
		return 0, err
	}
	if err := w.intPool.WriteInt(start+capacity-1, noNextSlice); err != nil {
		return 0, err
	}
	w.bytesUsed += int64(capacity) * 4
	return start, nil
}

func (w *Writer) createPostingList(docID int32, freq int32, positions []int32) (*postingData, error) {
	start, err := w.newSlice(firstSliceCapacity)
	if err != nil {
		return nil, err
	}
	data := &postingData{
		lastDocID:  docID,
		firstStart: start,
		curStart:   start,
		curCap:     firstSliceCapacity,
	}
	if err := w.appendEntry(data, docID, freq, positions); err != nil {
		return nil, err
	}
	return data, nil
}

func (w *Writer) appendToPostingList(data *postingData, docID int32, freq int32, positions []int32) error {
	return w.appendEntry(data, docID, freq, positions)
}

// appendEntry writes one posting entry's ints into data's slice chain,
// allocating and linking a new slice whenever the current one fills up.
func (w *Writer) appendEntry(data *postingData, docID int32, freq int32, positions []int32) error {
	ints := entryInts(docID, freq, positions)
	for _, v := range ints {
		if data.curUsed == data.curCap-1 {
			newCap := nextSliceCapacity(data.curCap)
			newStart, err := w.newSlice(newCap)
			if err != nil {
				return err
			}
			if err := w.intPool.WriteInt(data.curStart+data.curCap-1, int32(newStart)); err != nil {
				return err
			}
			data.curStart = newStart
			data.curCap = newCap
			data.curUsed = 0
		}
		if err := w.intPool.WriteInt(data.curStart+data.curUsed, v); err != nil {
			return err
		}
		data.curUsed++
		data.length++
	}
	data.lastDocID = docID
	return nil
}

func (w *Writer) insertSortedTerm(fieldName, term string) {
	terms := w.sortedTerms[fieldName]
	i := sort.SearchStrings(terms, term)
	if i < len(terms) && terms[i] == term {
		return
	}
	terms = append(terms, "")
	copy(terms[i+1:], terms[i:])
	terms[i] = term
	w.sortedTerms[fieldName] = terms
}

// GetPostingList returns the accumulated [doc, freq, (positions...), ...]
// tuples for (field, term), or nil if the term was never seen in that
// field.
func (w *Writer) GetPostingList(fieldName, term string) ([]int32, error) {
	data, ok := w.lookupPosting(fieldName, term)
	if !ok {
		return nil, nil
	}
	out := make([]int32, 0, data.length)
	start := data.firstStart
	capacity := firstSliceCapacity
	remaining := data.length
	for remaining > 0 {
		usable := capacity - 1
		n := usable
		if n > remaining {
			n = remaining
		}
		for i := 0; i < n; i++ {
			v, err := w.intPool.ReadInt(start + i)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		remaining -= n
		if remaining == 0 {
			break
		}
		next, err := w.intPool.ReadInt(start + capacity - 1)
		if err != nil {
			return nil, err
		}
		start = int(next)
		capacity = nextSliceCapacity(capacity)
	}
	return out, nil
}

// TermBytes returns the pool-resident copy of (field, term)'s own text,
// which a flush-time codec writer reads instead of holding onto the Go
// string that produced it.
func (w *Writer) TermBytes(fieldName, term string) (string, error) {
	data, ok := w.lookupPosting(fieldName, term)
	if !ok {
		return "", nil
	}
	return w.termBytePool.ReadString(data.termOffset)
}

func (w *Writer) lookupPosting(fieldName, term string) (*postingData, bool) {
	fieldID, ok := w.fieldNameToID[fieldName]
	if !ok {
		return nil, false
	}
	data, ok := w.postings[termKey{fieldID: fieldID, term: term}]
	return data, ok
}

// GetTermsForField returns the sorted, deduplicated terms seen in
// fieldName.
func (w *Writer) GetTermsForField(fieldName string) []string {
	terms := w.sortedTerms[fieldName]
	out := make([]string, len(terms))
	copy(out, terms)
	return out
}

// GetTerms returns every distinct term seen across all fields, sorted.
func (w *Writer) GetTerms() []string {
	seen := make(map[string]struct{})
	for _, terms := range w.sortedTerms {
		for _, t := range terms {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// GetFieldStats returns fieldName's accumulated statistics, or a zero
// value if the field was never indexed.
func (w *Writer) GetFieldStats(fieldName string) FieldStats {
	if s := w.fieldStats[fieldName]; s != nil {
		return *s
	}
	return FieldStats{}
}

// GetFieldLength returns the token count recorded for (fieldName, docID),
// and whether it was recorded at all.
func (w *Writer) GetFieldLength(fieldName string, docID int32) (int32, bool) {
	lengths, ok := w.fieldLengths[fieldName]
	if !ok {
		return 0, false
	}
	v, ok := lengths[docID]
	return v, ok
}

// BytesUsed returns the approximate memory footprint tracked
// incrementally during indexing.
func (w *Writer) BytesUsed() int64 {
	return w.bytesUsed + w.termBytePool.BytesUsed() + w.intPool.BytesUsed()
}

// Reset zeroes accumulated state but keeps the block pools' allocated
// memory, for reuse across segments.
func (w *Writer) Reset() {
	clear(w.fieldNameToID)
	w.nextFieldID = 0
	clear(w.postings)
	clear(w.fieldLengths)
	clear(w.fieldStats)
	clear(w.sortedTerms)
	clear(w.scratchFreq)
	clear(w.scratchPos)
	w.bytesUsed = 0
	w.termBytePool.Reset()
	w.intPool.Reset()
}

// Clear releases all memory, including the block pools' allocated blocks.
func (w *Writer) Clear() {
	w.Reset()
	w.termBytePool.Clear()
	w.intPool.Clear()
}
