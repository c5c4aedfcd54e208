// Package bloom implements a fixed-size double-hashing Bloom filter backed
// by a word-addressed bit vector, for skip-index equality pruning.
package bloom

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"

	"github.com/model-collapse/diagon-sub003/errs"
)

// Seed-derivation constants for the second hash function, carried over
// unchanged from the filter this module's double hashing is grounded on.
const (
	seedGenA uint64 = 845897321
	seedGenB uint64 = 217728422
)

// Filter is a fixed-size Bloom filter using double hashing: the i-th bit
// position for an element is (h1 + i*h2 + i*i) mod numBits.
type Filter struct {
	sizeBytes int
	numHashes int
	seed      uint64
	numBits   uint

	bits *bitset.BitSet
}

// New creates an empty filter of sizeBytes bytes (8*sizeBytes bits) using
// numHashes hash functions and seed.
func New(sizeBytes, numHashes int, seed uint64) (*Filter, error) {
	if sizeBytes <= 0 {
		return nil, errs.New("bloom.New", errs.InvalidArgument, "sizeBytes must be > 0")
	}
	if numHashes < 1 {
		return nil, errs.New("bloom.New", errs.InvalidArgument, "numHashes must be >= 1")
	}
	numBits := uint(sizeBytes) * 8
	return &Filter{
		sizeBytes: sizeBytes,
		numHashes: numHashes,
		seed:      seed,
		numBits:   numBits,
		bits:      bitset.New(numBits),
	}, nil
}

// SizeBytes returns the filter's declared size in bytes.
func (f *Filter) SizeBytes() int { return f.sizeBytes }

// NumHashes returns the number of hash functions used per element.
func (f *Filter) NumHashes() int { return f.numHashes }

// Seed returns the filter's seed.
func (f *Filter) Seed() uint64 { return f.seed }

// hash1 and hash2 are two hash functions mixed from independent algorithms
// (xxhash64 and xxh3, the latter reseeded) so the double-hashing positions
// they derive behave as if independent.
func (f *Filter) hash1(data []byte) uint64 {
	return xxhash.Sum64(data) ^ f.seed
}

func (f *Filter) hash2(data []byte) uint64 {
	return xxh3.HashSeed(data, f.seed*seedGenA+seedGenB)
}

// mix64 is a Murmur3-style finalizer, used to derive a second hash value
// from a single pre-computed one when no original bytes are available to
// hash a second time (the AddHash/ContainsHash path).
func mix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

func (f *Filter) positions(h1, h2 uint64) []uint {
	pos := make([]uint, f.numHashes)
	for i := 0; i < f.numHashes; i++ {
		ii := uint64(i)
		p := h1 + ii*h2 + ii*ii
		pos[i] = uint(p % uint64(f.numBits))
	}
	return pos
}

// Add inserts data into the filter.
func (f *Filter) Add(data []byte) {
	for _, p := range f.positions(f.hash1(data), f.hash2(data)) {
		f.bits.Set(p)
	}
}

// AddHash inserts a pre-computed hash value into the filter directly,
// useful when a caller already hashed an element for other purposes. The
// second double-hashing position is derived from hash itself, reseeded
// with this filter's seed.
func (f *Filter) AddHash(hash uint64) {
	h2 := mix64(hash ^ (f.seed*seedGenA + seedGenB))
	for _, p := range f.positions(hash, h2) {
		f.bits.Set(p)
	}
}

// Contains reports whether data might be in the filter. A false result
// means data is definitely absent; a true result may be a false positive.
func (f *Filter) Contains(data []byte) bool {
	for _, p := range f.positions(f.hash1(data), f.hash2(data)) {
		if !f.bits.Test(p) {
			return false
		}
	}
	return true
}

// ContainsHash is the pre-computed-hash counterpart to Contains.
func (f *Filter) ContainsHash(hash uint64) bool {
	h2 := mix64(hash ^ (f.seed*seedGenA + seedGenB))
	for _, p := range f.positions(hash, h2) {
		if !f.bits.Test(p) {
			return false
		}
	}
	return true
}

// Clear resets every bit to zero without changing parameters.
func (f *Filter) Clear() {
	f.bits.ClearAll()
}

// sameParams reports whether f and other can be compared/combined:
// identical size and seed (number of hash functions may differ in
// principle, but set operations below require it to match too since a
// differing hash-function count means a differing bit-position function).
func (f *Filter) sameParams(other *Filter) bool {
	return f.sizeBytes == other.sizeBytes && f.seed == other.seed && f.numHashes == other.numHashes
}

// ContainsAll reports whether f is a superset of other: every bit set in
// other is also set in f. Both filters must share (sizeBytes, seed,
// numHashes).
func (f *Filter) ContainsAll(other *Filter) (bool, error) {
	if !f.sameParams(other) {
		return false, errs.New("bloom.ContainsAll", errs.InvalidArgument, "filters must share size_bytes, seed and num_hashes")
	}
	diff := other.bits.Difference(f.bits)
	return diff.None(), nil
}

// Merge ORs other's bits into f (set union). Both filters must share
// (sizeBytes, seed, numHashes).
func (f *Filter) Merge(other *Filter) error {
	if !f.sameParams(other) {
		return errs.New("bloom.Merge", errs.InvalidArgument, "filters must share size_bytes, seed and num_hashes")
	}
	f.bits.InPlaceUnion(other.bits)
	return nil
}

// Empty reports whether no bit is set.
func (f *Filter) Empty() bool {
	return f.bits.None()
}

// Popcount returns the number of set bits.
func (f *Filter) Popcount() uint {
	return f.bits.Count()
}

// EstimateFalsePositiveRate estimates the current false-positive
// probability as (popcount/numBits)^numHashes.
func (f *Filter) EstimateFalsePositiveRate() float64 {
	if f.numBits == 0 {
		return 0
	}
	ratio := float64(f.Popcount()) / float64(f.numBits)
	return math.Pow(ratio, float64(f.numHashes))
}

// MemoryUsageBytes estimates the filter's in-memory footprint.
func (f *Filter) MemoryUsageBytes() int64 {
	return int64(f.sizeBytes)
}

// Equal reports whether f and other have identical parameters and bit
// vectors.
func (f *Filter) Equal(other *Filter) bool {
	if !f.sameParams(other) {
		return false
	}
	return f.bits.Equal(other.bits)
}

// Bytes returns the filter's bit vector as a byte slice, little-endian
// word order, for serialization.
func (f *Filter) Bytes() []byte {
	words := f.bits.Bytes()
	out := make([]byte, f.sizeBytes)
	for i, w := range words {
		for b := 0; b < 8 && i*8+b < f.sizeBytes; b++ {
			out[i*8+b] = byte(w >> (8 * uint(b)))
		}
	}
	return out
}

// FromBytes rebuilds a filter's bit vector from raw bytes previously
// produced by Bytes, keeping the given parameters.
func FromBytes(sizeBytes, numHashes int, seed uint64, raw []byte) (*Filter, error) {
	f, err := New(sizeBytes, numHashes, seed)
	if err != nil {
		return nil, err
	}
	if len(raw) != sizeBytes {
		return nil, errs.New("bloom.FromBytes", errs.InvalidArgument, "raw length must equal sizeBytes")
	}
	numWords := (sizeBytes + 7) / 8
	words := make([]uint64, numWords)
	for i := range words {
		var w uint64
		for b := 0; b < 8 && i*8+b < sizeBytes; b++ {
			w |= uint64(raw[i*8+b]) << (8 * uint(b))
		}
		words[i] = w
	}
	f.bits = bitset.From(words)
	return f, nil
}
