// Package dwpt implements DocumentsWriterPerThread: the single-threaded
// ingest lane that accumulates documents into a FreqProxTermsWriter and
// drives the codec over it once a buffering threshold is crossed.
package dwpt

import (
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/model-collapse/diagon-sub003/codec"
	"github.com/model-collapse/diagon-sub003/codec/lucene104"
	"github.com/model-collapse/diagon-sub003/codec/lucene105"
	"github.com/model-collapse/diagon-sub003/errs"
	"github.com/model-collapse/diagon-sub003/field"
	"github.com/model-collapse/diagon-sub003/freqprox"
	"github.com/model-collapse/diagon-sub003/store"
)

// CodecName selects which posting format a flush writes.
type CodecName string

const (
	CodecLucene104 CodecName = "lucene104"
	CodecLucene105 CodecName = "lucene105"
)

// segmentCounter is the one cross-cutting atomic spec.md §5 allows: a
// process-wide, not-necessarily-monotonic-across-processes segment-name
// disambiguator.
var segmentCounter atomic.Int64

// SegmentInfo describes one immutable, independently readable unit
// produced by a single flush. Blobs holds the flushed file contents
// in-memory, keyed by file name, standing in for the out-of-scope
// directory/filesystem layer.
type SegmentInfo struct {
	Name        string
	DocCount    int32
	Files       []string
	Blobs       map[string][]byte
	FieldInfos  *field.FieldInfos
	Diagnostics map[string]string

	// Exactly one of these is populated, matching Diagnostics["codec"].
	Terms104 *codec.TermDictionary[lucene104.TermState]
	Terms105 *codec.TermDictionary[lucene105.TermState]
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger. If nil, slog.Default is used.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithMaxBufferedDocs sets the document-count flush threshold.
func WithMaxBufferedDocs(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.maxBufferedDocs = n
		}
	}
}

// WithRAMBufferSizeMB sets the memory flush threshold, in megabytes.
func WithRAMBufferSizeMB(mb int) Option {
	return func(w *Writer) {
		if mb > 0 {
			w.ramBufferSizeMB = mb
		}
	}
}

// WithCodecName selects the posting format a flush writes.
func WithCodecName(name CodecName) Option {
	return func(w *Writer) {
		if name != "" {
			w.codecName = name
		}
	}
}

// Writer is DocumentsWriterPerThread: one ingest lane that owns a
// FreqProxTermsWriter plus per-doc counters, decides when to flush, and
// drives the flush. Not safe for concurrent use; a higher layer pools
// Writers across threads for parallel ingest.
type Writer struct {
	log *slog.Logger

	maxBufferedDocs int
	ramBufferSizeMB int
	codecName       CodecName

	builder *field.Builder
	terms   *freqprox.Writer

	nextDocID int32
}

// New returns an empty Writer ready to accept documents.
func New(opts ...Option) *Writer {
	builder := field.NewBuilder()
	w := &Writer{
		maxBufferedDocs: 1000,
		ramBufferSizeMB: 16,
		codecName:       CodecLucene105,
		builder:         builder,
		terms:           freqprox.NewWriter(builder),
	}
	for _, o := range opts {
		o(w)
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w
}

// ramThresholdBytes returns the configured RAM buffer size in bytes.
func (w *Writer) ramThresholdBytes() int64 {
	return int64(w.ramBufferSizeMB) << 20
}

// AddDocument delegates doc to the terms writer under the next
// monotonically increasing docID, and reports whether a flush is now
// required.
func (w *Writer) AddDocument(doc freqprox.Document) (bool, error) {
	docID := w.nextDocID
	if err := w.terms.AddDocument(doc, docID); err != nil {
		return false, errs.Wrap("dwpt.Writer.AddDocument", errs.InvalidArgument, err)
	}
	w.nextDocID++

	flushNeeded := int(w.nextDocID) >= w.maxBufferedDocs || w.terms.BytesUsed() >= w.ramThresholdBytes()
	w.log.Debug("document added",
		slog.Int("doc_id", int(docID)),
		slog.Int64("bytes_used", w.terms.BytesUsed()),
		slog.Bool("flush_needed", flushNeeded))
	return flushNeeded, nil
}

// generateSegmentName reproduces DocumentsWriterPerThread.cpp's format:
// an underscore, the flush timestamp in hex, another underscore, and a
// process-wide atomic counter — unique, not necessarily monotonic across
// processes. nowMillis is supplied by the caller since the core forbids
// wall-clock reads mid-algorithm.
func generateSegmentName(nowMillis int64) string {
	n := segmentCounter.Add(1)
	return "_" + hex.EncodeToString(bigEndian(nowMillis)) + "_" + strconv.FormatInt(n, 10)
}

func bigEndian(v int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// normForLength quantizes a field's token count into the 0-127 range
// lucene105 block impact metadata expects, via a simple monotonic
// log2-style compression: longer fields get a larger byte, matching the
// "higher raw length, higher norm magnitude" direction spec.md's
// FreqProxTermsWriter field-length tracking exists to support, without
// reproducing a particular IEEE-754-derived SmallFloat table (out of
// scope: no query-time scoring formula is specified beyond BM25's
// upper-bound shape already implemented in lucene105.GetMaxScore).
func normForLength(length int32) int8 {
	if length <= 0 {
		return 0
	}
	n := 0
	for length > 0 {
		length >>= 1
		n++
	}
	if n > 127 {
		n = 127
	}
	return int8(n)
}

// Flush finalizes the buffered documents into a new segment: it builds
// the segment's FieldInfos, runs the configured codec over every term in
// every field, collects the resulting files, and resets internal state
// for the next segment. It returns nil if no documents are buffered.
// nowMillis is the flush timestamp, supplied by the caller.
func (w *Writer) Flush(nowMillis int64) (*SegmentInfo, error) {
	const op = "dwpt.Writer.Flush"
	if w.nextDocID == 0 {
		return nil, nil
	}

	fieldInfos, err := w.builder.Finish()
	if err != nil {
		return nil, errs.Wrap(op, errs.InvalidArgument, err)
	}

	blobs := make(map[string][]byte)
	var files []string

	info := &SegmentInfo{
		FieldInfos: fieldInfos,
		Diagnostics: map[string]string{
			"flush-id": uuid.NewString(),
			"codec":    string(w.codecName),
		},
	}
	if w.codecName == CodecLucene104 {
		info.Terms104 = codec.NewTermDictionary[lucene104.TermState]()
	} else {
		info.Terms105 = codec.NewTermDictionary[lucene105.TermState]()
	}

	for _, fi := range fieldInfos.List() {
		if !fi.HasPostings() {
			continue
		}
		fieldBlobs, fieldFiles, err := w.flushField(fi, info)
		if err != nil {
			// The codec failed mid-flush: the segment is discarded and
			// this Writer is reset so the caller may retry with a
			// different configuration.
			w.Reset()
			return nil, errs.Wrap(op, errs.Io, err)
		}
		for name, blob := range fieldBlobs {
			blobs[name] = blob
		}
		files = append(files, fieldFiles...)
	}

	info.Name = generateSegmentName(nowMillis)
	info.DocCount = w.nextDocID
	info.Files = files
	info.Blobs = blobs

	w.log.Info("segment flushed",
		slog.String("segment", info.Name),
		slog.Int("doc_count", int(info.DocCount)),
		slog.Int("file_count", len(info.Files)))

	w.Reset()
	return info, nil
}

// flushField runs the configured codec over every term in one field,
// recording each term's state into info's term dictionary and returning
// the file blobs it produced (namespaced by field name so multiple
// fields don't collide) and their names.
func (w *Writer) flushField(fi *field.FieldInfo, info *SegmentInfo) (map[string][]byte, []string, error) {
	docOut := store.NewRAMOutput(fi.Name + ".doc")
	docFile := fi.Name + ".doc"

	terms := w.terms.GetTermsForField(fi.Name)

	if w.codecName == CodecLucene104 {
		writer := lucene104.NewWriter(docOut, lucene104.WithLogger(w.log))
		writer.SetField(fi)
		for _, term := range terms {
			state, err := w.flushTerm104(writer, fi, term)
			if err != nil {
				return nil, nil, err
			}
			info.Terms104.Put(fi.Name, term, state)
		}
		return map[string][]byte{docFile: docOut.Bytes()}, []string{docFile}, nil
	}

	skipOut := store.NewRAMOutput(fi.Name + ".skp")
	skipFile := fi.Name + ".skp"

	var posOut store.IndexOutput
	blobs := map[string][]byte{}
	files := []string{docFile, skipFile}
	if fi.HasPositions() {
		posOut = store.NewRAMOutput(fi.Name + ".pos")
		files = append(files, fi.Name+".pos")
	}

	writer := lucene105.NewWriter(docOut, skipOut, posOut, lucene105.WithLogger(w.log))
	writer.SetField(fi)
	for _, term := range terms {
		state, err := w.flushTerm105(writer, fi, term)
		if err != nil {
			return nil, nil, err
		}
		info.Terms105.Put(fi.Name, term, state)
	}

	blobs[docFile] = docOut.Bytes()
	blobs[skipFile] = skipOut.Bytes()
	if posOut != nil {
		blobs[fi.Name+".pos"] = posOut.Bytes()
	}
	return blobs, files, nil
}

func (w *Writer) flushTerm104(writer *lucene104.Writer, fi *field.FieldInfo, term string) (lucene104.TermState, error) {
	postings, err := w.terms.GetPostingList(fi.Name, term)
	if err != nil {
		return lucene104.TermState{}, err
	}
	withPositions := fi.HasPositions()
	writer.StartTerm()
	for i := 0; i < len(postings); {
		docID, freq := postings[i], postings[i+1]
		i += 2
		if withPositions {
			i += int(freq)
		}
		if err := writer.StartDoc(docID, freq); err != nil {
			return lucene104.TermState{}, err
		}
	}
	return writer.FinishTerm()
}

func (w *Writer) flushTerm105(writer *lucene105.Writer, fi *field.FieldInfo, term string) (lucene105.TermState, error) {
	postings, err := w.terms.GetPostingList(fi.Name, term)
	if err != nil {
		return lucene105.TermState{}, err
	}
	withPositions := fi.HasPositions()
	writer.StartTerm()
	for i := 0; i < len(postings); {
		docID, freq := postings[i], postings[i+1]
		i += 2
		length, _ := w.terms.GetFieldLength(fi.Name, docID)
		if err := writer.StartDoc(docID, freq, normForLength(length)); err != nil {
			return lucene105.TermState{}, err
		}
		if withPositions {
			for p := int32(0); p < freq; p++ {
				if err := writer.AddPosition(postings[i]); err != nil {
					return lucene105.TermState{}, err
				}
				i++
			}
		}
	}
	return writer.FinishTerm()
}

// Reset discards buffered documents and accumulated state, leaving the
// Writer functionally indistinguishable from a freshly constructed
// instance except for possibly larger pre-allocated pool capacity.
func (w *Writer) Reset() {
	w.builder.Reset()
	w.terms.Reset()
	w.nextDocID = 0
}
