package svbyte

import "github.com/klauspost/cpuid/v2"

// wide8Available and wide16Available gate the Kogge-Stone paths sized for
// 8-wide and 16-wide batches; both resolve to the same stage-based
// computation as the scalar fallback, marking the seam a real SIMD
// shift-and-add implementation would occupy on a qualifying host.
var (
	wide8Available  = cpuid.CPU.Supports(cpuid.SSE2)
	wide16Available = cpuid.CPU.Supports(cpuid.AVX2)
)

// PrefixSum converts a delta vector into absolute values given base, the
// last absolute value before the block. The widest Kogge-Stone path whose
// lane count equals len(deltas) is used when the host advertises support
// for it; any other length falls through to the scalar running sum.
func PrefixSum(deltas []uint32, base uint32) []uint32 {
	switch len(deltas) {
	case 16:
		if wide16Available {
			return koggeStone(deltas, base)
		}
	case 8:
		if wide8Available {
			return koggeStone(deltas, base)
		}
	}
	return scalarPrefixSum(deltas, base)
}

// koggeStone performs log2(n) stages of shift-and-add: at stage s (shift =
// 2^s), lane i accumulates lane i-shift, doubling the running-sum window
// each stage until every lane holds the full prefix sum. base is then
// broadcast into every lane.
func koggeStone(deltas []uint32, base uint32) []uint32 {
	n := len(deltas)
	out := make([]uint32, n)
	copy(out, deltas)
	for shift := 1; shift < n; shift <<= 1 {
		for i := n - 1; i >= shift; i-- {
			out[i] += out[i-shift]
		}
	}
	for i := range out {
		out[i] += base
	}
	return out
}

func scalarPrefixSum(deltas []uint32, base uint32) []uint32 {
	out := make([]uint32, len(deltas))
	running := base
	for i, d := range deltas {
		running += d
		out[i] = running
	}
	return out
}

// BatchPrefixSum converts a longer delta run into absolute values by
// walking it in chunks, taking the widest chunk size PrefixSum has a
// dedicated lane width for (16, then 8) before falling back to a scalar
// chunk for what's left. base carries the running absolute value across
// chunk boundaries, matching next_batch's "convert using SIMD prefix sum
// when the batch count is 8 or 16, otherwise scalar" rule.
func BatchPrefixSum(deltas []uint32, base uint32) []uint32 {
	out := make([]uint32, len(deltas))
	running := base
	i := 0
	for i < len(deltas) {
		remaining := len(deltas) - i
		chunk := remaining
		switch {
		case remaining >= 16:
			chunk = 16
		case remaining >= 8:
			chunk = 8
		}
		abs := PrefixSum(deltas[i:i+chunk], running)
		copy(out[i:i+chunk], abs)
		running = abs[chunk-1]
		i += chunk
	}
	return out
}
