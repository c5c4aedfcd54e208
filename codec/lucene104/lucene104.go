// Package lucene104 implements the baseline posting format: StreamVByte
// group-of-4 blocks of doc-deltas and (optionally) frequencies, with a
// plain VInt tail for a term's last 1-3 postings. It carries no skip list
// — lucene105 extends this format with one for Block-Max WAND pruning.
package lucene104

import (
	"log/slog"

	"github.com/model-collapse/diagon-sub003/codec"
	"github.com/model-collapse/diagon-sub003/errs"
	"github.com/model-collapse/diagon-sub003/field"
	"github.com/model-collapse/diagon-sub003/store"
	"github.com/model-collapse/diagon-sub003/svbyte"
)

// Option configures a Writer beyond its required docOut stream.
type Option func(*Writer)

// WithLogger sets the logger a Writer reports term completions to. If
// nil or unset, slog.Default is used.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.log = l }
}

// ReaderOption configures a Reader beyond its required docIn stream.
type ReaderOption func(*Reader)

// WithReaderLogger sets the logger a Reader reports opened terms to. If
// nil or unset, slog.Default is used.
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) { r.log = l }
}

// TermState locates a term's postings in the .doc file and carries its
// aggregate stats, enough for a reader to reopen the term without
// rescanning it.
type TermState struct {
	DocStartFP    int64
	DocFreq       int32
	TotalTermFreq int64 // -1 when frequencies are not stored
	SkipOffset    int64 // reserved for formats that extend this state; -1 here
}

// Writer serializes one field's terms to a .doc stream.
type Writer struct {
	docOut store.IndexOutput
	log    *slog.Logger

	writeFreqs bool

	fieldName string

	docStartFP    int64
	lastDocID     int32
	docCount      int32
	totalTermFreq int64

	groupDeltas [svbyte.GroupSize]uint32
	groupFreqs  [svbyte.GroupSize]uint32
	groupLen    int
}

// NewWriter serializes to docOut.
func NewWriter(docOut store.IndexOutput, opts ...Option) *Writer {
	w := &Writer{docOut: docOut}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w
}

// SetField records whether the field being written stores frequencies.
func (w *Writer) SetField(fi *field.FieldInfo) {
	w.writeFreqs = fi.HasFreqs()
	w.fieldName = fi.Name
}

// StartTerm begins a new term: its .doc position becomes DocStartFP, and
// all per-term counters reset.
func (w *Writer) StartTerm() {
	w.docStartFP = w.docOut.FilePointer()
	w.lastDocID = 0
	w.docCount = 0
	w.totalTermFreq = 0
	w.groupLen = 0
}

// StartDoc appends one posting to the current term. docID must be
// strictly greater than the previously added docID; freq must be
// positive.
func (w *Writer) StartDoc(docID, freq int32) error {
	if docID <= w.lastDocID && w.docCount > 0 {
		return errs.New("lucene104.Writer.StartDoc", errs.OutOfOrder, "doc ID did not increase")
	}
	if docID < 0 {
		return errs.New("lucene104.Writer.StartDoc", errs.InvalidArgument, "negative doc ID")
	}
	if freq <= 0 {
		return errs.New("lucene104.Writer.StartDoc", errs.InvalidArgument, "freq must be positive")
	}

	delta := uint32(docID - w.lastDocID)
	w.groupDeltas[w.groupLen] = delta
	w.groupFreqs[w.groupLen] = uint32(freq)
	w.groupLen++

	if w.groupLen == svbyte.GroupSize {
		if err := w.flushGroup(); err != nil {
			return err
		}
	}

	w.lastDocID = docID
	w.docCount++
	if w.writeFreqs {
		w.totalTermFreq += int64(freq)
	}
	return nil
}

func (w *Writer) flushGroup() error {
	var buf [1 + 4*4]byte
	n, err := svbyte.Encode(w.groupDeltas[:], buf[:])
	if err != nil {
		return err
	}
	if err := w.docOut.WriteBytes(buf[:n]); err != nil {
		return err
	}
	if w.writeFreqs {
		n, err := svbyte.Encode(w.groupFreqs[:], buf[:])
		if err != nil {
			return err
		}
		if err := w.docOut.WriteBytes(buf[:n]); err != nil {
			return err
		}
	}
	w.groupLen = 0
	return nil
}

// flushTail writes the 1-3 postings left over after the last full group,
// as plain (VInt docDelta, VInt freq) pairs delta-encoded against the
// last doc written in the preceding group.
func (w *Writer) flushTail() error {
	if w.groupLen == 0 {
		return nil
	}
	// The deltas in groupDeltas are already relative to the doc before
	// them, so they chain correctly written in order.
	for i := 0; i < w.groupLen; i++ {
		if err := w.docOut.WriteVInt(int32(w.groupDeltas[i])); err != nil {
			return err
		}
		if w.writeFreqs {
			if err := w.docOut.WriteVInt(int32(w.groupFreqs[i])); err != nil {
				return err
			}
		}
	}
	w.groupLen = 0
	return nil
}

// FinishTerm flushes any buffered tail postings and returns the term's
// assembled state.
func (w *Writer) FinishTerm() (TermState, error) {
	if err := w.flushTail(); err != nil {
		return TermState{}, err
	}
	totalTermFreq := w.totalTermFreq
	if !w.writeFreqs {
		totalTermFreq = -1
	}
	w.log.Debug("lucene104 term flushed",
		slog.String("field", w.fieldName),
		slog.Int("doc_freq", int(w.docCount)),
		slog.Int64("doc_start_fp", w.docStartFP))
	return TermState{
		DocStartFP:    w.docStartFP,
		DocFreq:       w.docCount,
		TotalTermFreq: totalTermFreq,
		SkipOffset:    -1,
	}, nil
}

// FilePointer returns the current position in the .doc stream.
func (w *Writer) FilePointer() int64 { return w.docOut.FilePointer() }

// Reader opens terms written by Writer.
type Reader struct {
	docIn store.IndexInput
	log   *slog.Logger
}

// NewReader reads postings from docIn.
func NewReader(docIn store.IndexInput, opts ...ReaderOption) *Reader {
	r := &Reader{docIn: docIn}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Postings returns a cursor over term's postings.
func (r *Reader) Postings(fi *field.FieldInfo, term TermState) (*Enum, error) {
	in := r.docIn.Clone()
	if err := in.Seek(term.DocStartFP); err != nil {
		return nil, err
	}
	r.log.Debug("lucene104 term opened",
		slog.String("field", fi.Name),
		slog.Int("doc_freq", int(term.DocFreq)))
	return &Enum{
		docIn:      in,
		docFreq:    term.DocFreq,
		writeFreqs: fi.HasFreqs(),
		currentDoc: -1,
	}, nil
}

// Enum is the lucene104 PostingsEnum implementation: a flat linear scan
// with no skip data.
type Enum struct {
	docIn store.IndexInput

	docFreq    int32
	writeFreqs bool

	// last is the most recently decoded absolute doc ID, the running base
	// for delta accumulation; it starts at 0 per the format's "first
	// group's first delta is absolute" rule. currentDoc is the
	// caller-visible cursor position and starts at -1 (before the first
	// NextDoc).
	last        int32
	currentDoc  int32
	currentFreq int32
	docsRead    int32

	bufDocs  [svbyte.GroupSize]uint32
	bufFreqs [svbyte.GroupSize]uint32
	bufLen   int
	bufPos   int
}

var _ codec.PostingsEnum = (*Enum)(nil)

func (e *Enum) DocID() int32 { return e.currentDoc }

func (e *Enum) Cost() int64 { return int64(e.docFreq) }

func (e *Enum) Freq() (int32, error) {
	if e.writeFreqs {
		return e.currentFreq, nil
	}
	return 1, nil
}

// readGroup reads one StreamVByte group (control byte plus its data
// bytes) from in and decodes it, per the refill algorithm in §4.10: read
// the control byte, compute the group's data-byte length from the
// lengths it encodes, read exactly that many data bytes, then decode.
func readGroup(in store.IndexInput) ([svbyte.GroupSize]uint32, error) {
	var group [svbyte.GroupSize]uint32
	control, err := in.ReadByte()
	if err != nil {
		return group, err
	}
	dataLen := 0
	lens := [svbyte.GroupSize]int{}
	for i := 0; i < svbyte.GroupSize; i++ {
		l := int((control>>(uint(i)*2))&0x3) + 1
		lens[i] = l
		dataLen += l
	}
	buf := make([]byte, 1+dataLen)
	buf[0] = control
	if err := in.ReadBytes(buf[1:]); err != nil {
		return group, err
	}
	group, _, err = svbyte.Decode4(buf)
	return group, err
}

// refill decodes the next group of up to GroupSize postings, choosing the
// StreamVByte group path while docsRead+4 <= docFreq and the VInt tail
// path for the final 1-3 entries.
func (e *Enum) refill() error {
	remaining := e.docFreq - e.docsRead
	if remaining <= 0 {
		e.bufLen = 0
		e.bufPos = 0
		return nil
	}
	if remaining >= svbyte.GroupSize {
		deltas, err := readGroup(e.docIn)
		if err != nil {
			return err
		}
		e.bufDocs = deltas
		if e.writeFreqs {
			freqs, err := readGroup(e.docIn)
			if err != nil {
				return err
			}
			e.bufFreqs = freqs
		}
		e.bufLen = svbyte.GroupSize
		e.bufPos = 0
		return nil
	}

	for i := int32(0); i < remaining; i++ {
		delta, err := e.docIn.ReadVInt()
		if err != nil {
			return err
		}
		e.bufDocs[i] = uint32(delta)
		if e.writeFreqs {
			freq, err := e.docIn.ReadVInt()
			if err != nil {
				return err
			}
			e.bufFreqs[i] = uint32(freq)
		} else {
			e.bufFreqs[i] = 1
		}
	}
	e.bufLen = int(remaining)
	e.bufPos = 0
	return nil
}

func (e *Enum) NextDoc() (int32, error) {
	if e.docsRead >= e.docFreq {
		e.currentDoc = codec.NoMoreDocs
		return codec.NoMoreDocs, nil
	}
	if e.bufPos >= e.bufLen {
		if err := e.refill(); err != nil {
			return 0, err
		}
	}
	delta := e.bufDocs[e.bufPos]
	freq := e.bufFreqs[e.bufPos]
	e.bufPos++
	e.docsRead++

	e.last += int32(delta)
	e.currentDoc = e.last
	if e.writeFreqs {
		e.currentFreq = int32(freq)
	} else {
		e.currentFreq = 1
	}
	return e.currentDoc, nil
}

// NextBatch refills an internal buffer of up to capacity postings,
// reading StreamVByte groups directly rather than decoding one posting
// at a time, and returns their absolute doc IDs and frequencies.
// Remaining delta runs of 8 or 16 are converted through
// svbyte.BatchPrefixSum's SIMD-capable path; shorter runs fall back to a
// scalar running sum.
func (e *Enum) NextBatch(capacity int) (codec.Batch, error) {
	if capacity <= 0 {
		capacity = 32
	}
	deltas := make([]uint32, 0, capacity)
	freqs := make([]int32, 0, capacity)
	for len(deltas) < capacity && e.docsRead < e.docFreq {
		if e.bufPos >= e.bufLen {
			if err := e.refill(); err != nil {
				return codec.Batch{}, err
			}
			if e.bufLen == 0 {
				break
			}
		}
		take := e.bufLen - e.bufPos
		if room := capacity - len(deltas); take > room {
			take = room
		}
		for i := 0; i < take; i++ {
			deltas = append(deltas, e.bufDocs[e.bufPos+i])
			if e.writeFreqs {
				freqs = append(freqs, int32(e.bufFreqs[e.bufPos+i]))
			} else {
				freqs = append(freqs, 1)
			}
		}
		e.bufPos += take
		e.docsRead += int32(take)
	}

	absDocs := svbyte.BatchPrefixSum(deltas, uint32(e.last))
	docs := make([]int32, len(absDocs))
	for i, d := range absDocs {
		docs[i] = int32(d)
	}
	if len(docs) > 0 {
		e.last = docs[len(docs)-1]
		e.currentDoc = docs[len(docs)-1]
		e.currentFreq = freqs[len(freqs)-1]
	}
	return codec.Batch{Docs: docs, Freqs: freqs}, nil
}

// Advance scans forward to the first doc >= target. lucene104 carries no
// skip data, so this is always a linear NextDoc scan.
func (e *Enum) Advance(target int32) (int32, error) {
	if target < e.currentDoc {
		return 0, errs.New("lucene104.Enum.Advance", errs.OutOfOrder, "advance target behind current position")
	}
	for {
		doc, err := e.NextDoc()
		if err != nil {
			return 0, err
		}
		if doc == codec.NoMoreDocs || doc >= target {
			return doc, nil
		}
	}
}
