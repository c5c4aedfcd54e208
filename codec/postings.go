// Package codec defines the shared postings-enumeration contract the
// lucene104 and lucene105 sub-packages implement, plus a minimal term
// dictionary adapter standing in for the out-of-scope external term index.
package codec

import "math"

// NoMoreDocs is the sentinel DocID/NextDoc/Advance return once a postings
// enumerator is exhausted.
const NoMoreDocs int32 = math.MaxInt32

// SkipInterval is the number of documents between skip entries in formats
// that carry a skip list (lucene105).
const SkipInterval = 128

// PostingsEnum iterates one term's postings in increasing doc-ID order.
type PostingsEnum interface {
	// DocID returns the current document, or -1 before the first NextDoc.
	DocID() int32
	// NextDoc advances to the next document, returning NoMoreDocs when
	// exhausted.
	NextDoc() (int32, error)
	// Advance moves forward to the first document >= target, scanning
	// ahead using skip data when available.
	Advance(target int32) (int32, error)
	// Freq returns the current document's term frequency (1 when the
	// field does not store frequencies).
	Freq() (int32, error)
	// Cost returns the term's total document frequency.
	Cost() int64
}

// Batch is the output buffer next_batch-style refills fill with absolute
// doc IDs and their frequencies.
type Batch struct {
	Docs  []int32
	Freqs []int32
}

// TermDictionary is a minimal per-field term to TermState map; it keeps
// no term order. A
// full FST-backed term index is an external collaborator out of scope for
// this module (spec's term dictionary is named only at its interface);
// this adapter is enough to drive a term lookup end to end.
type TermDictionary[TermState any] struct {
	byField map[string]map[string]TermState
}

// NewTermDictionary returns an empty dictionary.
func NewTermDictionary[TermState any]() *TermDictionary[TermState] {
	return &TermDictionary[TermState]{byField: make(map[string]map[string]TermState)}
}

// Put records term's state for field.
func (d *TermDictionary[TermState]) Put(field, term string, state TermState) {
	terms := d.byField[field]
	if terms == nil {
		terms = make(map[string]TermState)
		d.byField[field] = terms
	}
	terms[term] = state
}

// Get returns term's state for field, and whether it was found.
func (d *TermDictionary[TermState]) Get(field, term string) (TermState, bool) {
	terms, ok := d.byField[field]
	if !ok {
		var zero TermState
		return zero, false
	}
	state, ok := terms[term]
	return state, ok
}
