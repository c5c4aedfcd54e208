// Package lucene105 extends lucene104 with a skip list carrying per-block
// impact metadata (max_freq, max_norm), enabling Block-Max WAND-style
// pruning: advance_shallow and get_max_score/get_max_freq/get_max_norm let
// a query skip blocks that cannot beat the current top-k threshold.
package lucene105

import (
	"log/slog"
	"math"
	"sort"

	"github.com/model-collapse/diagon-sub003/codec"
	"github.com/model-collapse/diagon-sub003/errs"
	"github.com/model-collapse/diagon-sub003/field"
	"github.com/model-collapse/diagon-sub003/store"
	"github.com/model-collapse/diagon-sub003/svbyte"
)

// Option configures a Writer beyond its required output streams.
type Option func(*Writer)

// WithLogger sets the logger a Writer reports term and skip-block
// completions to. If nil or unset, slog.Default is used.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.log = l }
}

// SkipInterval is the number of documents between skip entries.
const SkipInterval = codec.SkipInterval

// SkipEntry records the doc/file-pointer position and impact bounds at
// the end of one SkipInterval-sized block.
type SkipEntry struct {
	Doc     int32
	DocFP   int64
	MaxFreq int32
	MaxNorm int8
}

// TermState extends lucene104's with skip-list location and, when the
// field indexes positions, the start of its position stream.
type TermState struct {
	DocStartFP     int64
	SkipStartFP    int64 // -1 when the term has no skip data
	PosStartFP     int64 // -1 when the field does not index positions
	DocFreq        int32
	TotalTermFreq  int64 // -1 when frequencies are not stored
	SkipEntryCount int32
}

// Writer serializes one field's terms plus their skip lists and, when
// the field indexes positions, their position streams.
type Writer struct {
	docOut  store.IndexOutput
	skipOut store.IndexOutput
	posOut  store.IndexOutput // nil when the field does not index positions
	log     *slog.Logger

	writeFreqs     bool
	writePositions bool

	fieldName string

	docStartFP    int64
	skipStartFP   int64
	posStartFP    int64
	lastDocID     int32
	lastPosition  int32
	docCount      int32
	totalTermFreq int64

	groupDeltas [svbyte.GroupSize]uint32
	groupFreqs  [svbyte.GroupSize]uint32
	groupLen    int

	blockMaxFreq  int32
	blockMaxNorm  int8
	docsSinceSkip int32
	skipEntries   []SkipEntry
}

// NewWriter serializes doc postings to docOut and skip lists to skipOut.
// posOut may be nil for fields that do not index positions.
func NewWriter(docOut, skipOut, posOut store.IndexOutput, opts ...Option) *Writer {
	w := &Writer{docOut: docOut, skipOut: skipOut, posOut: posOut}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w
}

// SetField records whether the field being written stores frequencies
// and positions.
func (w *Writer) SetField(fi *field.FieldInfo) {
	w.writeFreqs = fi.HasFreqs()
	w.writePositions = fi.HasPositions() && w.posOut != nil
	w.fieldName = fi.Name
}

// StartTerm begins a new term.
func (w *Writer) StartTerm() {
	w.docStartFP = w.docOut.FilePointer()
	w.skipStartFP = -1
	w.posStartFP = -1
	if w.writePositions {
		w.posStartFP = w.posOut.FilePointer()
	}
	w.lastDocID = 0
	w.lastPosition = 0
	w.docCount = 0
	w.totalTermFreq = 0
	w.groupLen = 0
	w.blockMaxFreq = 0
	w.blockMaxNorm = 0
	w.docsSinceSkip = 0
	w.skipEntries = nil
}

// AddPosition appends one position delta for the document currently
// being written to the .pos stream; lastPosition resets to 0 on every
// StartDoc call.
func (w *Writer) AddPosition(pos int32) error {
	if !w.writePositions {
		return errs.New("lucene105.Writer.AddPosition", errs.UnsupportedOperation, "field does not index positions")
	}
	if err := w.posOut.WriteVInt(pos - w.lastPosition); err != nil {
		return err
	}
	w.lastPosition = pos
	return nil
}

// StartDoc appends one posting, with norm (0-127) feeding the block's
// impact bound for Block-Max WAND pruning.
func (w *Writer) StartDoc(docID, freq int32, norm int8) error {
	if docID <= w.lastDocID && w.docCount > 0 {
		return errs.New("lucene105.Writer.StartDoc", errs.OutOfOrder, "doc ID did not increase")
	}
	if docID < 0 {
		return errs.New("lucene105.Writer.StartDoc", errs.InvalidArgument, "negative doc ID")
	}
	if freq <= 0 {
		return errs.New("lucene105.Writer.StartDoc", errs.InvalidArgument, "freq must be positive")
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
	w.lastPosition = 0
	w.docCount++
	if w.writeFreqs {
		w.totalTermFreq += int64(freq)
	}

	// Impact bounds and the skip check happen after the doc is fully
	// written, so an emitted entry's DocFP is always the clean,
	// group-aligned position immediately after its doc (SkipInterval is a
	// multiple of the StreamVByte group size, so a flush always lands
	// exactly on a skip boundary).
	if freq > w.blockMaxFreq {
		w.blockMaxFreq = freq
	}
	if norm > w.blockMaxNorm {
		w.blockMaxNorm = norm
	}
	w.docsSinceSkip++

	if w.docsSinceSkip == SkipInterval {
		w.emitSkipEntry(w.lastDocID, w.docOut.FilePointer())
		w.blockMaxFreq = 0
		w.blockMaxNorm = 0
		w.docsSinceSkip = 0
	}
	return nil
}

func (w *Writer) emitSkipEntry(doc int32, docFP int64) {
	w.skipEntries = append(w.skipEntries, SkipEntry{
		Doc:     doc,
		DocFP:   docFP,
		MaxFreq: w.blockMaxFreq,
		MaxNorm: w.blockMaxNorm,
	})
	w.log.Debug("lucene105 skip entry emitted",
		slog.String("field", w.fieldName),
		slog.Int("doc", int(doc)),
		slog.Int("max_freq", int(w.blockMaxFreq)),
		slog.Int("max_norm", int(w.blockMaxNorm)))
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

func (w *Writer) flushTail() error {
	if w.groupLen == 0 {
		return nil
	}
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

// writeSkipData writes the accumulated skip entries to .skp and records
// SkipStartFP. Each entry is delta-encoded against the previous entry; the
// first one is encoded against (doc=0, fp=docStartFP).
func (w *Writer) writeSkipData() error {
	if len(w.skipEntries) == 0 {
		w.skipStartFP = -1
		return nil
	}
	w.skipStartFP = w.skipOut.FilePointer()
	if err := w.skipOut.WriteVInt(int32(len(w.skipEntries))); err != nil {
		return err
	}
	lastDoc := int32(0)
	lastFP := w.docStartFP
	for _, e := range w.skipEntries {
		if err := w.skipOut.WriteVInt(e.Doc - lastDoc); err != nil {
			return err
		}
		if err := w.skipOut.WriteVLong(e.DocFP - lastFP); err != nil {
			return err
		}
		if err := w.skipOut.WriteVInt(e.MaxFreq); err != nil {
			return err
		}
		if err := w.skipOut.WriteByte(byte(e.MaxNorm)); err != nil {
			return err
		}
		lastDoc = e.Doc
		lastFP = e.DocFP
	}
	return nil
}

// FinishTerm flushes the tail, the final skip entry if uncounted docs
// remain, and the skip list itself, returning the assembled TermState.
func (w *Writer) FinishTerm() (TermState, error) {
	if err := w.flushTail(); err != nil {
		return TermState{}, err
	}
	if len(w.skipEntries) > 0 && w.docsSinceSkip > 0 {
		w.emitSkipEntry(w.lastDocID, w.docOut.FilePointer())
	}
	if err := w.writeSkipData(); err != nil {
		return TermState{}, err
	}

	totalTermFreq := w.totalTermFreq
	if !w.writeFreqs {
		totalTermFreq = -1
	}
	w.log.Debug("lucene105 term flushed",
		slog.String("field", w.fieldName),
		slog.Int("doc_freq", int(w.docCount)),
		slog.Int("skip_entry_count", len(w.skipEntries)))
	return TermState{
		DocStartFP:     w.docStartFP,
		SkipStartFP:    w.skipStartFP,
		PosStartFP:     w.posStartFP,
		DocFreq:        w.docCount,
		TotalTermFreq:  totalTermFreq,
		SkipEntryCount: int32(len(w.skipEntries)),
	}, nil
}

// FilePointer returns the current position in the .doc stream.
func (w *Writer) FilePointer() int64 { return w.docOut.FilePointer() }

// Reader opens terms written by Writer.
type Reader struct {
	docIn  store.IndexInput
	skipIn store.IndexInput
	posIn  store.IndexInput // nil if the field never indexes positions
	log    *slog.Logger
}

// ReaderOption configures a Reader beyond its required input streams.
type ReaderOption func(*Reader)

// WithReaderLogger sets the logger a Reader reports opened terms to. If
// nil or unset, slog.Default is used.
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) { r.log = l }
}

// NewReader reads postings from docIn and skip lists from skipIn. skipIn
// and posIn may be nil if no term written by this reader's caller
// carries skip data or positions, respectively.
func NewReader(docIn, skipIn, posIn store.IndexInput, opts ...ReaderOption) *Reader {
	r := &Reader{docIn: docIn, skipIn: skipIn, posIn: posIn}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Postings returns a cursor over term's postings, loading its skip list
// (if any) eagerly since it is small and query-time pruning needs it
// before the first doc is read.
func (r *Reader) Postings(fi *field.FieldInfo, term TermState) (*Enum, error) {
	in := r.docIn.Clone()
	if err := in.Seek(term.DocStartFP); err != nil {
		return nil, err
	}
	var posIn store.IndexInput
	if term.PosStartFP >= 0 && r.posIn != nil {
		posIn = r.posIn.Clone()
		if err := posIn.Seek(term.PosStartFP); err != nil {
			return nil, err
		}
	}
	var entries []SkipEntry
	if term.SkipStartFP >= 0 {
		skipIn := r.skipIn.Clone()
		if err := skipIn.Seek(term.SkipStartFP); err != nil {
			return nil, err
		}
		n, err := skipIn.ReadVInt()
		if err != nil {
			return nil, err
		}
		entries = make([]SkipEntry, n)
		lastDoc := int32(0)
		lastFP := term.DocStartFP
		for i := int32(0); i < n; i++ {
			docDelta, err := skipIn.ReadVInt()
			if err != nil {
				return nil, err
			}
			fpDelta, err := skipIn.ReadVLong()
			if err != nil {
				return nil, err
			}
			maxFreq, err := skipIn.ReadVInt()
			if err != nil {
				return nil, err
			}
			maxNormByte, err := skipIn.ReadByte()
			if err != nil {
				return nil, err
			}
			lastDoc += docDelta
			lastFP += fpDelta
			entries[i] = SkipEntry{Doc: lastDoc, DocFP: lastFP, MaxFreq: maxFreq, MaxNorm: int8(maxNormByte)}
		}
	}
	r.log.Debug("lucene105 term opened",
		slog.String("field", fi.Name),
		slog.Int("doc_freq", int(term.DocFreq)),
		slog.Int("skip_entry_count", len(entries)))
	return &Enum{
		docIn:      in,
		posIn:      posIn,
		docFreq:    term.DocFreq,
		writeFreqs: fi.HasFreqs(),
		currentDoc: -1,
		skip:       entries,
	}, nil
}

// Enum is the lucene105 PostingsEnum: a group-buffered linear scan plus
// skip-list-assisted advance and impact queries for Block-Max WAND.
type Enum struct {
	docIn store.IndexInput
	posIn store.IndexInput // nil if the term carries no position stream

	docFreq    int32
	writeFreqs bool

	last        int32
	currentDoc  int32
	currentFreq int32
	docsRead    int32

	bufDocs  [svbyte.GroupSize]uint32
	bufFreqs [svbyte.GroupSize]uint32
	bufLen   int
	bufPos   int

	lastPosition       int32
	positionsLeftInDoc int32

	skip []SkipEntry
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

func readGroup(in store.IndexInput) ([svbyte.GroupSize]uint32, error) {
	var group [svbyte.GroupSize]uint32
	control, err := in.ReadByte()
	if err != nil {
		return group, err
	}
	dataLen := 0
	for i := 0; i < svbyte.GroupSize; i++ {
		dataLen += int((control>>(uint(i)*2))&0x3) + 1
	}
	buf := make([]byte, 1+dataLen)
	buf[0] = control
	if err := in.ReadBytes(buf[1:]); err != nil {
		return group, err
	}
	group, _, err = svbyte.Decode4(buf)
	return group, err
}

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
	if err := e.skipRemainingPositions(); err != nil {
		return 0, err
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
	e.lastPosition = 0
	e.positionsLeftInDoc = e.currentFreq
	return e.currentDoc, nil
}

// skipRemainingPositions discards any positions of the previously
// current doc the caller never read, keeping the .pos cursor aligned
// with the .doc cursor for the next NextDoc/NextPosition call.
func (e *Enum) skipRemainingPositions() error {
	if e.posIn == nil {
		return nil
	}
	for e.positionsLeftInDoc > 0 {
		if _, err := e.posIn.ReadVInt(); err != nil {
			return err
		}
		e.positionsLeftInDoc--
	}
	return nil
}

// NextPosition returns the next position delta-decoded for the current
// document. It must be called exactly Freq() times per document; a
// skip-list-assisted Advance invalidates position decoding since skip
// entries do not carry a .pos file pointer, so NextPosition is only
// meaningful between sequential NextDoc calls.
func (e *Enum) NextPosition() (int32, error) {
	if e.posIn == nil {
		return 0, errs.New("lucene105.Enum.NextPosition", errs.UnsupportedOperation, "term has no position stream")
	}
	if e.positionsLeftInDoc <= 0 {
		return 0, errs.New("lucene105.Enum.NextPosition", errs.OutOfOrder, "no more positions for current document")
	}
	delta, err := e.posIn.ReadVInt()
	if err != nil {
		return 0, err
	}
	e.lastPosition += delta
	e.positionsLeftInDoc--
	return e.lastPosition, nil
}

// NextBatch refills an internal buffer of up to capacity postings,
// reading StreamVByte groups directly, and returns their absolute doc
// IDs and frequencies via svbyte.BatchPrefixSum. It is not valid to mix
// NextBatch with NextPosition: a batch advances past every doc it
// returns without leaving the .pos cursor positioned on any single one
// of them.
func (e *Enum) NextBatch(capacity int) (codec.Batch, error) {
	if capacity <= 0 {
		capacity = 32
	}
	if err := e.skipRemainingPositions(); err != nil {
		return codec.Batch{}, err
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
		e.positionsLeftInDoc = 0
	}
	return codec.Batch{Docs: docs, Freqs: freqs}, nil
}

// Advance moves to the first doc >= target, using the skip list to jump
// the .doc cursor ahead when the jump would skip more than one interval.
func (e *Enum) Advance(target int32) (int32, error) {
	if target < e.currentDoc {
		return 0, errs.New("lucene105.Enum.Advance", errs.OutOfOrder, "advance target behind current position")
	}
	if len(e.skip) > 0 && target > e.currentDoc+SkipInterval {
		idx := sort.Search(len(e.skip), func(i int) bool { return e.skip[i].Doc > target-1 }) - 1
		if idx >= 0 {
			entry := e.skip[idx]
			if err := e.docIn.Seek(entry.DocFP); err != nil {
				return 0, err
			}
			e.bufLen = 0
			e.bufPos = 0
			e.last = entry.Doc
			e.currentDoc = entry.Doc
			e.docsRead = int32(idx+1) * SkipInterval
			// Skip entries carry no .pos file pointer, so the position
			// stream cannot be resynchronized to the landed-on doc. Rather
			// than let a later NextPosition silently read whatever stale
			// offset the cursor was left at, disable it for this Enum.
			e.posIn = nil
			e.positionsLeftInDoc = 0
		}
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

// AdvanceShallow returns the doc of the last skip entry whose doc <=
// target, without decoding any postings. If target precedes every entry
// it returns the first entry's doc; if the term has no skip data it
// returns NoMoreDocs. It keeps no shallow cursor: each call searches the
// whole skip-entry slice and changes no state of the Enum.
func (e *Enum) AdvanceShallow(target int32) int32 {
	if len(e.skip) == 0 {
		return codec.NoMoreDocs
	}
	idx := sort.Search(len(e.skip), func(i int) bool { return e.skip[i].Doc > target }) - 1
	if idx < 0 {
		idx = 0
	}
	return e.skip[idx].Doc
}

// bm25UpperBound computes f*(k1+1) / (f + k1*(1 - b + b/(norm+1))), the
// BM25 score upper bound for one block given its impact values. avgFieldLength
// is accepted for parameter symmetry with GetMaxScore's signature; the
// block bound folds length normalization into norm itself.
func bm25UpperBound(maxFreq int32, maxNorm int8, k1, b, avgFieldLength float64) float64 {
	f := float64(maxFreq)
	norm := float64(maxNorm)
	denom := f + k1*(1-b+b/(norm+1))
	if denom <= 0 {
		return 0
	}
	return f * (k1 + 1) / denom
}

// GetMaxScore returns the maximum BM25 upper bound over every skip block
// whose doc <= upTo. With no skip data, pruning is disabled by returning
// +Inf.
func (e *Enum) GetMaxScore(upTo int32, k1, b, avgFieldLength float64) float64 {
	if len(e.skip) == 0 {
		return math.Inf(1)
	}
	max := 0.0
	found := false
	for _, entry := range e.skip {
		if entry.Doc > upTo {
			break
		}
		found = true
		score := bm25UpperBound(entry.MaxFreq, entry.MaxNorm, k1, b, avgFieldLength)
		if score > max {
			max = score
		}
	}
	if !found {
		return math.Inf(1)
	}
	return max
}

// GetMaxFreq returns the maximum max_freq across skip blocks overlapping
// up to upTo; if upTo precedes the first skip entry, the first entry's
// value is used conservatively.
func (e *Enum) GetMaxFreq(upTo int32) int32 {
	if len(e.skip) == 0 {
		return math.MaxInt32
	}
	if upTo < e.skip[0].Doc {
		return e.skip[0].MaxFreq
	}
	var max int32
	for _, entry := range e.skip {
		if entry.Doc > upTo {
			break
		}
		if entry.MaxFreq > max {
			max = entry.MaxFreq
		}
	}
	return max
}

// GetMaxNorm returns the maximum max_norm across skip blocks overlapping
// up to upTo, with the same first-entry fallback as GetMaxFreq.
func (e *Enum) GetMaxNorm(upTo int32) int8 {
	if len(e.skip) == 0 {
		return math.MaxInt8
	}
	if upTo < e.skip[0].Doc {
		return e.skip[0].MaxNorm
	}
	var max int8
	for _, entry := range e.skip {
		if entry.Doc > upTo {
			break
		}
		if entry.MaxNorm > max {
			max = entry.MaxNorm
		}
	}
	return max
}
