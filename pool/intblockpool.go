package pool

import (
	"fmt"

	"github.com/model-collapse/diagon-sub003/errs"
)

// IntBlockSize is the fixed block size in ints (8 Ki ints = 32 KiB,
// matching ByteBlockSize).
const IntBlockSize = 8192

// IntBlockPool allocates int storage from 8 Ki-int blocks, used for
// [docID, freq, ...] posting tuples. Mirrors ByteBlockPool's
// pointer-stable addressing scheme.
//
// Not safe for concurrent use; callers must synchronize externally.
type IntBlockPool struct {
	buffers  [][]int32
	bufferUp int
	intUp    int
}

// NewIntBlockPool returns an empty pool with no blocks allocated yet.
func NewIntBlockPool() *IntBlockPool {
	return &IntBlockPool{}
}

func (p *IntBlockPool) nextBuffer() {
	p.bufferUp++
	if p.bufferUp >= len(p.buffers) {
		p.buffers = append(p.buffers, make([]int32, IntBlockSize))
	}
	p.intUp = 0
}

func (p *IntBlockPool) current() []int32 {
	if len(p.buffers) == 0 {
		p.buffers = append(p.buffers, make([]int32, IntBlockSize))
		p.bufferUp = 0
		p.intUp = 0
	}
	return p.buffers[p.bufferUp]
}

// Size returns the total number of ints written.
func (p *IntBlockPool) Size() int {
	if len(p.buffers) == 0 {
		return 0
	}
	return p.bufferUp*IntBlockSize + p.intUp
}

// BytesUsed returns the total memory allocated to blocks.
func (p *IntBlockPool) BytesUsed() int64 {
	return int64(len(p.buffers)) * IntBlockSize * 4
}

// Append writes value and returns the absolute offset (in ints) where it
// was written.
func (p *IntBlockPool) Append(value int32) int {
	buf := p.current()
	if p.intUp >= IntBlockSize {
		p.nextBuffer()
		buf = p.buffers[p.bufferUp]
	}
	off := p.bufferUp*IntBlockSize + p.intUp
	buf[p.intUp] = value
	p.intUp++
	return off
}

// Allocate reserves count contiguous ints and returns the starting
// absolute offset. The caller writes into the reservation with WriteInt.
// Requests larger than a block are rejected.
func (p *IntBlockPool) Allocate(count int) (int, error) {
	if count <= 0 || count > IntBlockSize {
		return 0, errs.New("IntBlockPool.Allocate", errs.InvalidArgument,
			fmt.Sprintf("invalid allocation count %d", count))
	}
	p.current()
	if p.intUp+count > IntBlockSize {
		p.nextBuffer()
	}
	off := p.bufferUp*IntBlockSize + p.intUp
	p.intUp += count
	return off, nil
}

func (p *IntBlockPool) locate(off int) (block, idx int, err error) {
	if off < 0 || off >= p.Size() {
		return 0, 0, errs.New("IntBlockPool.locate", errs.InvalidArgument,
			fmt.Sprintf("offset %d out of range", off))
	}
	return off / IntBlockSize, off % IntBlockSize, nil
}

// WriteInt writes value at absolute offset off, which must already be
// allocated (via Allocate or a prior Append).
func (p *IntBlockPool) WriteInt(off int, value int32) error {
	block, idx, err := p.locate(off)
	if err != nil {
		return err
	}
	p.buffers[block][idx] = value
	return nil
}

// ReadInt reads the int stored at absolute offset off.
func (p *IntBlockPool) ReadInt(off int) (int32, error) {
	block, idx, err := p.locate(off)
	if err != nil {
		return 0, err
	}
	return p.buffers[block][idx], nil
}

// Reset zeroes write positions but keeps allocated blocks for reuse.
func (p *IntBlockPool) Reset() {
	p.bufferUp = 0
	p.intUp = 0
}

// Clear releases all allocated blocks.
func (p *IntBlockPool) Clear() {
	p.buffers = nil
	p.bufferUp = 0
	p.intUp = 0
}
