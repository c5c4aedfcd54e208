package packed

import (
	"math"

	"github.com/model-collapse/diagon-sub003/errs"
	"github.com/model-collapse/diagon-sub003/store"
)

// MonotonicBlockMeta is the per-block metadata DirectMonotonicWriter emits:
// (min, avg_slope, min_deviation, data_offset, bits_per_value) — 29 bytes
// per block (int64 + float32 + int64 + int64 + byte).
type MonotonicBlockMeta struct {
	Min          int64
	AvgSlope     float32
	MinDeviation int64
	DataOffset   int64
	BitsPerValue byte
}

// MonotonicMeta describes a full DirectMonotonic-encoded sequence.
type MonotonicMeta struct {
	NumValues  int64
	BlockShift int
	Min        int64
	Max        int64
	Blocks     []MonotonicBlockMeta
}

// DirectMonotonicWriter encodes a monotonically non-decreasing sequence as
// a series of blocks, each a linear approximation (average slope) plus
// bit-packed deviations from it.
type DirectMonotonicWriter struct {
	data       store.IndexOutput
	numValues  int64
	blockShift int
	blockSize  int

	count     int64
	lastValue int64
	buffer    []int64
	blocks    []MonotonicBlockMeta

	haveMin bool
	seqMin  int64
	seqMax  int64
}

// NewDirectMonotonicWriter creates a writer for numValues values, with
// blocks of size 1<<blockShift.
func NewDirectMonotonicWriter(data store.IndexOutput, numValues int64, blockShift int) (*DirectMonotonicWriter, error) {
	if blockShift <= 0 || blockShift > 30 {
		return nil, errs.New("packed.NewDirectMonotonicWriter", errs.InvalidArgument, "invalid blockShift")
	}
	return &DirectMonotonicWriter{
		data:       data,
		numValues:  numValues,
		blockShift: blockShift,
		blockSize:  1 << blockShift,
	}, nil
}

// Add appends value, which must be >= the previous value added.
func (w *DirectMonotonicWriter) Add(value int64) error {
	if w.count >= w.numValues {
		return errs.New("DirectMonotonicWriter.Add", errs.InvalidArgument, "more values added than declared")
	}
	if w.count > 0 && value < w.lastValue {
		return errs.New("DirectMonotonicWriter.Add", errs.OutOfOrder, "sequence must be non-decreasing")
	}
	w.lastValue = value
	w.buffer = append(w.buffer, value)
	if !w.haveMin || value < w.seqMin {
		w.seqMin = value
		w.haveMin = true
	}
	if value > w.seqMax {
		w.seqMax = value
	}
	w.count++
	if len(w.buffer) == w.blockSize {
		if err := w.flushBlock(); err != nil {
			return err
		}
	}
	return nil
}

func (w *DirectMonotonicWriter) flushBlock() error {
	if len(w.buffer) == 0 {
		return nil
	}
	n := len(w.buffer)
	first := w.buffer[0]
	last := w.buffer[n-1]

	var avgSlope float64
	if n > 1 {
		avgSlope = float64(last-first) / float64(n-1)
	}
	// Deviations must be computed against the same narrowed slope the
	// reader reconstructs from the stored float32, or the two sides
	// round to different "expected" values whenever avgSlope is not
	// exactly representable in float32.
	narrowSlope := float64(float32(avgSlope))

	deviations := make([]int64, n)
	minDev := int64(math.MaxInt64)
	maxDev := int64(math.MinInt64)
	for i, v := range w.buffer {
		expected := first + int64(math.Round(narrowSlope*float64(i)))
		dev := v - expected
		deviations[i] = dev
		if dev < minDev {
			minDev = dev
		}
		if dev > maxDev {
			maxDev = dev
		}
	}

	bitsPerValue := BitsRequired(maxDev - minDev)
	dataOffset := w.data.FilePointer()

	dw, err := NewDirectWriter(w.data, int64(n), bitsPerValue)
	if err != nil {
		return err
	}
	for _, dev := range deviations {
		if err := dw.Add(dev - minDev); err != nil {
			return err
		}
	}
	if err := dw.Finish(); err != nil {
		return err
	}

	w.blocks = append(w.blocks, MonotonicBlockMeta{
		Min:          first,
		AvgSlope:     float32(avgSlope),
		MinDeviation: minDev,
		DataOffset:   dataOffset,
		BitsPerValue: byte(bitsPerValue),
	})
	w.buffer = w.buffer[:0]
	return nil
}

// Finish flushes any partial trailing block and returns the sequence
// metadata needed to read it back.
func (w *DirectMonotonicWriter) Finish() (MonotonicMeta, error) {
	if w.count != w.numValues {
		return MonotonicMeta{}, errs.New("DirectMonotonicWriter.Finish", errs.InvalidArgument,
			"fewer values added than declared")
	}
	if err := w.flushBlock(); err != nil {
		return MonotonicMeta{}, err
	}
	min, max := int64(0), int64(0)
	if w.haveMin {
		min, max = w.seqMin, w.seqMax
	}
	return MonotonicMeta{
		NumValues:  w.numValues,
		BlockShift: w.blockShift,
		Min:        min,
		Max:        max,
		Blocks:     w.blocks,
	}, nil
}

// ReadMonotonic decodes every value of a DirectMonotonic-encoded sequence.
// data must support random access (Seek) to each block's DataOffset.
func ReadMonotonic(meta MonotonicMeta, data store.IndexInput) ([]int64, error) {
	out := make([]int64, 0, meta.NumValues)
	blockSize := 1 << meta.BlockShift
	for bi, block := range meta.Blocks {
		n := blockSize
		remaining := int(meta.NumValues) - bi*blockSize
		if remaining < n {
			n = remaining
		}
		if err := data.Seek(block.DataOffset); err != nil {
			return nil, err
		}
		deviations, err := Read(data, int(block.BitsPerValue), int64(n))
		if err != nil {
			return nil, err
		}
		for i, dev := range deviations {
			expected := block.Min + int64(math.Round(float64(block.AvgSlope)*float64(i)))
			out = append(out, expected+dev+block.MinDeviation)
		}
	}
	return out, nil
}

// GetMonotonic reads a single value at index without decoding its whole
// block's neighbors other than the ones needed to seek.
func GetMonotonic(meta MonotonicMeta, data store.IndexInput, index int64) (int64, error) {
	if index < 0 || index >= meta.NumValues {
		return 0, errs.New("packed.GetMonotonic", errs.InvalidArgument, "index out of range")
	}
	blockSize := int64(1) << meta.BlockShift
	bi := index / blockSize
	offsetInBlock := index % blockSize
	block := meta.Blocks[bi]

	if err := data.Seek(block.DataOffset); err != nil {
		return 0, err
	}
	dev, err := GetInstance(data, int(block.BitsPerValue), offsetInBlock)
	if err != nil {
		return 0, err
	}
	expected := block.Min + int64(math.Round(float64(block.AvgSlope)*float64(offsetInBlock)))
	return expected + dev + block.MinDeviation, nil
}
