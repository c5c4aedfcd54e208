// Package svbyte implements StreamVByte, a group-of-4 variable-byte
// integer codec: one control byte (2 bits per integer, encoding length-1)
// followed by the packed data bytes for the group.
//
// Based on Lemire et al., "Stream VByte: Faster Byte-Oriented Integer
// Compression" (https://arxiv.org/abs/1709.08990).
package svbyte

import (
	"github.com/klauspost/cpuid/v2"

	"github.com/model-collapse/diagon-sub003/errs"
)

// GroupSize is the number of integers packed per control byte.
const GroupSize = 4

// lengthTable[control][i] gives length_i (1..4) for slot i, decoded from
// bits [2i+1:2i] of the control byte.
var lengthTable [256][GroupSize]int

func init() {
	for c := 0; c < 256; c++ {
		for i := 0; i < GroupSize; i++ {
			lengthTable[c][i] = int((c>>(uint(i)*2))&0x3) + 1
		}
	}
}

// wideDecodeAvailable gates the "wide" decode path that stands in for a
// SIMD shuffle implementation. Both paths here are value-identical; the
// capability check marks the seam where an asm-backed pshufb decode would
// be substituted on hosts that support it.
var wideDecodeAvailable = cpuid.CPU.Supports(cpuid.SSE2)

// EncodedSize returns the number of bytes required to encode value
// (1 to 4).
func EncodedSize(value uint32) int {
	switch {
	case value < 1<<8:
		return 1
	case value < 1<<16:
		return 2
	case value < 1<<24:
		return 3
	default:
		return 4
	}
}

func buildControl(lens [GroupSize]int) byte {
	var c byte
	for i, l := range lens {
		c |= byte(l-1) << (uint(i) * 2)
	}
	return c
}

// Encode packs up to GroupSize values into out, returning the number of
// bytes written. Unused slots (when len(values) < GroupSize) are treated
// as zero and still occupy one data byte each, keeping Decode4 symmetric
// with Encode for every group this package produces.
func Encode(values []uint32, out []byte) (int, error) {
	if len(values) == 0 || len(values) > GroupSize {
		return 0, errs.New("svbyte.Encode", errs.InvalidArgument, "values must have length 1..4")
	}
	var group [GroupSize]uint32
	copy(group[:], values)

	var lens [GroupSize]int
	for i, v := range group {
		lens[i] = EncodedSize(v)
	}
	n := 1
	for _, l := range lens {
		n += l
	}
	if len(out) < n {
		return 0, errs.New("svbyte.Encode", errs.InvalidArgument, "output buffer too small")
	}

	out[0] = buildControl(lens)
	pos := 1
	for i, v := range group {
		l := lens[i]
		for b := 0; b < l; b++ {
			out[pos+b] = byte(v >> (uint(b) * 8))
		}
		pos += l
	}
	return pos, nil
}

// EncodedSizeArray returns the total bytes Encode would write for values
// (1 to GroupSize), including the control byte.
func EncodedSizeArray(values []uint32) int {
	n := 1
	for i := 0; i < GroupSize; i++ {
		var v uint32
		if i < len(values) {
			v = values[i]
		}
		n += EncodedSize(v)
	}
	return n
}

func decode4Scalar(in []byte) ([GroupSize]uint32, int, error) {
	var out [GroupSize]uint32
	if len(in) < 1 {
		return out, 0, errs.New("svbyte.decode4", errs.Io, "missing control byte")
	}
	control := in[0]
	lens := lengthTable[control]
	pos := 1
	for i, l := range lens {
		if pos+l > len(in) {
			return out, 0, errs.New("svbyte.decode4", errs.Corruption, "group data truncated")
		}
		var v uint32
		for b := 0; b < l; b++ {
			v |= uint32(in[pos+b]) << (uint(b) * 8)
		}
		out[i] = v
		pos += l
	}
	return out, pos, nil
}

// decode4Wide is the capability-gated counterpart to decode4Scalar. It
// produces identical output; a real SIMD implementation (pshufb against
// the precomputed shuffle-mask table indexed by control byte) would
// replace this body on hosts wideDecodeAvailable reports true.
func decode4Wide(in []byte) ([GroupSize]uint32, int, error) {
	return decode4Scalar(in)
}

// Decode4 decodes one group of 4 integers, returning bytes consumed.
func Decode4(in []byte) ([GroupSize]uint32, int, error) {
	if wideDecodeAvailable {
		return decode4Wide(in)
	}
	return decode4Scalar(in)
}

// DecodeBulk decodes count integers (a multiple of GroupSize) into out,
// returning bytes consumed.
func DecodeBulk(in []byte, count int, out []uint32) (int, error) {
	if count%GroupSize != 0 {
		return 0, errs.New("svbyte.DecodeBulk", errs.InvalidArgument, "count must be a multiple of 4")
	}
	if len(out) < count {
		return 0, errs.New("svbyte.DecodeBulk", errs.InvalidArgument, "output slice too small")
	}
	pos := 0
	for i := 0; i < count; i += GroupSize {
		group, n, err := Decode4(in[pos:])
		if err != nil {
			return 0, err
		}
		copy(out[i:i+GroupSize], group[:])
		pos += n
	}
	return pos, nil
}

// Decode decodes count integers (any non-negative count) into out,
// handling a final 1..3 remainder group with the same group decode used
// for full groups.
func Decode(in []byte, count int, out []uint32) (int, error) {
	if len(out) < count {
		return 0, errs.New("svbyte.Decode", errs.InvalidArgument, "output slice too small")
	}
	full := count / GroupSize * GroupSize
	pos := 0
	if full > 0 {
		n, err := DecodeBulk(in, full, out[:full])
		if err != nil {
			return 0, err
		}
		pos = n
	}
	remainder := count - full
	if remainder > 0 {
		group, n, err := Decode4(in[pos:])
		if err != nil {
			return 0, err
		}
		copy(out[full:count], group[:remainder])
		pos += n
	}
	return pos, nil
}
