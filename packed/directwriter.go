// Package packed implements fixed-bit-width integer packing (DirectWriter
// / DirectReader) and piecewise-linear monotonic sequence compression
// (DirectMonotonicWriter / ReadMonotonic / GetMonotonic) over the store
// byte-stream interfaces.
package packed

import (
	"math/bits"

	"github.com/model-collapse/diagon-sub003/errs"
	"github.com/model-collapse/diagon-sub003/store"
)

// BitsRequired returns ceil(log2(value+1)) bits needed to represent value,
// with BitsRequired(0) == 0.
func BitsRequired(value int64) int {
	return UnsignedBitsRequired(uint64(value))
}

// UnsignedBitsRequired is the unsigned counterpart to BitsRequired.
func UnsignedBitsRequired(value uint64) int {
	return bits.Len64(value)
}

// bitWriter packs bits MSB-first into whole bytes written to an
// IndexOutput.
type bitWriter struct {
	out   store.IndexOutput
	cur   byte
	nbits uint
}

func (w *bitWriter) writeBits(value uint64, n int) error {
	for n > 0 {
		n--
		bit := byte((value >> uint(n)) & 1)
		w.cur |= bit << (7 - w.nbits)
		w.nbits++
		if w.nbits == 8 {
			if err := w.out.WriteByte(w.cur); err != nil {
				return err
			}
			w.cur = 0
			w.nbits = 0
		}
	}
	return nil
}

func (w *bitWriter) finish() error {
	if w.nbits > 0 {
		if err := w.out.WriteByte(w.cur); err != nil {
			return err
		}
		w.cur = 0
		w.nbits = 0
	}
	return nil
}

// DirectWriter packs a fixed-width sequence of integers into an
// IndexOutput. Byte-aligned widths (8, 16, 32, 64) use the output's
// native fixed-width writes; other widths accumulate through a bit
// buffer.
type DirectWriter struct {
	output       store.IndexOutput
	numValues    int64
	bitsPerValue int
	count        int64
	bits         bitWriter
}

// NewDirectWriter creates a writer for numValues integers, each
// bitsPerValue bits wide (0..64).
func NewDirectWriter(output store.IndexOutput, numValues int64, bitsPerValue int) (*DirectWriter, error) {
	if bitsPerValue < 0 || bitsPerValue > 64 {
		return nil, errs.New("packed.NewDirectWriter", errs.InvalidArgument, "bitsPerValue must be 0..64")
	}
	return &DirectWriter{
		output:       output,
		numValues:    numValues,
		bitsPerValue: bitsPerValue,
		bits:         bitWriter{out: output},
	}, nil
}

// Add writes the next value, which must fit in bitsPerValue bits.
func (w *DirectWriter) Add(value int64) error {
	if w.count >= w.numValues {
		return errs.New("DirectWriter.Add", errs.InvalidArgument, "more values added than declared")
	}
	switch w.bitsPerValue {
	case 0:
		// Nothing to store; width 0 only represents the constant 0.
	case 8:
		if err := w.output.WriteByte(byte(value)); err != nil {
			return err
		}
	case 16:
		if err := w.output.WriteShort(int16(value)); err != nil {
			return err
		}
	case 32:
		if err := w.output.WriteInt(int32(value)); err != nil {
			return err
		}
	case 64:
		if err := w.output.WriteLong(value); err != nil {
			return err
		}
	default:
		mask := uint64(1)<<uint(w.bitsPerValue) - 1
		if err := w.bits.writeBits(uint64(value)&mask, w.bitsPerValue); err != nil {
			return err
		}
	}
	w.count++
	return nil
}

// Finish flushes any pending partial byte, padded with zero bits.
func (w *DirectWriter) Finish() error {
	return w.bits.finish()
}

// bitReader reads MSB-first packed bits from an IndexInput.
type bitReader struct {
	in    store.IndexInput
	cur   byte
	nbits uint
}

func (r *bitReader) readBits(n int) (uint64, error) {
	var result uint64
	for n > 0 {
		if r.nbits == 0 {
			b, err := r.in.ReadByte()
			if err != nil {
				return 0, err
			}
			r.cur = b
			r.nbits = 8
		}
		n--
		r.nbits--
		bit := (r.cur >> r.nbits) & 1
		result = result<<1 | uint64(bit)
	}
	return result, nil
}

// DirectReader reads values written by DirectWriter.
type DirectReader struct{}

// Read decodes count values of bitsPerValue width from input, starting at
// its current position.
func Read(input store.IndexInput, bitsPerValue int, count int64) ([]int64, error) {
	out := make([]int64, count)
	switch bitsPerValue {
	case 0:
		// all zero
	case 8:
		for i := range out {
			b, err := input.ReadByte()
			if err != nil {
				return nil, err
			}
			out[i] = int64(b)
		}
	case 16:
		for i := range out {
			v, err := input.ReadShort()
			if err != nil {
				return nil, err
			}
			out[i] = int64(uint16(v))
		}
	case 32:
		for i := range out {
			v, err := input.ReadInt()
			if err != nil {
				return nil, err
			}
			out[i] = int64(uint32(v))
		}
	case 64:
		for i := range out {
			v, err := input.ReadLong()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
	default:
		br := bitReader{in: input}
		for i := range out {
			v, err := br.readBits(bitsPerValue)
			if err != nil {
				return nil, err
			}
			out[i] = int64(v)
		}
	}
	return out, nil
}

// GetInstance reads a single value at index without decoding the values
// preceding it, by seeking to its bit offset from the stream's starting
// position (input's current position at call time).
func GetInstance(input store.IndexInput, bitsPerValue int, index int64) (int64, error) {
	if bitsPerValue == 0 {
		return 0, nil
	}
	startFP := input.FilePointer()
	bitOffset := index * int64(bitsPerValue)
	byteOffset := startFP + bitOffset/8
	if err := input.Seek(byteOffset); err != nil {
		return 0, err
	}
	br := bitReader{in: input}
	if rem := bitOffset % 8; rem > 0 {
		if _, err := br.readBits(int(rem)); err != nil {
			return 0, err
		}
	}
	v, err := br.readBits(bitsPerValue)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}
