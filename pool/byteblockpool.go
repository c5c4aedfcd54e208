// Package pool implements the append-only, pointer-stable block
// allocators that back term-byte and posting-int storage:
// ByteBlockPool and IntBlockPool.
package pool

import (
	"fmt"

	"github.com/model-collapse/diagon-sub003/errs"
)

// ByteBlockSize is the fixed block size in bytes (Lucene's choice for
// cache-friendly access).
const ByteBlockSize = 32768

// ByteBlockPool allocates byte storage from 32 KiB blocks chained in a
// slice of slices, so a previously returned offset stays valid across
// further allocation (growing the pool never reallocates existing blocks).
//
// Not safe for concurrent use; callers must synchronize externally.
type ByteBlockPool struct {
	buffers  [][]byte
	bufferUp int // index of current buffer
	byteUp   int // write position within current buffer
}

// NewByteBlockPool returns an empty pool with no blocks allocated yet.
func NewByteBlockPool() *ByteBlockPool {
	return &ByteBlockPool{}
}

// nextBuffer advances to the next block, allocating a fresh one only when
// reuse after Reset has exhausted the previously allocated blocks.
func (p *ByteBlockPool) nextBuffer() {
	p.bufferUp++
	if p.bufferUp >= len(p.buffers) {
		p.buffers = append(p.buffers, make([]byte, ByteBlockSize))
	}
	p.byteUp = 0
}

func (p *ByteBlockPool) current() []byte {
	if len(p.buffers) == 0 {
		p.buffers = append(p.buffers, make([]byte, ByteBlockSize))
		p.bufferUp = 0
		p.byteUp = 0
	}
	return p.buffers[p.bufferUp]
}

// Size returns the total number of bytes written.
func (p *ByteBlockPool) Size() int64 {
	if len(p.buffers) == 0 {
		return 0
	}
	return int64(p.bufferUp)*ByteBlockSize + int64(p.byteUp)
}

// BytesUsed returns the total memory allocated to blocks, including unused
// tail space in the current block.
func (p *ByteBlockPool) BytesUsed() int64 {
	return int64(len(p.buffers)) * ByteBlockSize
}

// Allocate reserves size contiguous bytes in the current block, rolling to
// a new block first if the current one lacks room. Requests larger than a
// block are rejected. The returned slice is valid until the next Allocate
// or Reset.
func (p *ByteBlockPool) Allocate(size int) ([]byte, error) {
	if size <= 0 || size > ByteBlockSize {
		return nil, errs.New("ByteBlockPool.Allocate", errs.InvalidArgument,
			fmt.Sprintf("invalid allocation size %d", size))
	}
	buf := p.current()
	if p.byteUp+size > ByteBlockSize {
		p.nextBuffer()
		buf = p.buffers[p.bufferUp]
	}
	start := p.byteUp
	p.byteUp += size
	return buf[start:p.byteUp], nil
}

// Append copies bytes into the pool and returns the absolute offset where
// they start.
func (p *ByteBlockPool) Append(b []byte) (int64, error) {
	off := p.Size()
	remaining := b
	for len(remaining) > 0 {
		buf := p.current()
		room := ByteBlockSize - p.byteUp
		if room == 0 {
			p.nextBuffer()
			buf = p.buffers[p.bufferUp]
			room = ByteBlockSize
		}
		n := len(remaining)
		if n > room {
			n = room
		}
		copy(buf[p.byteUp:p.byteUp+n], remaining[:n])
		p.byteUp += n
		remaining = remaining[n:]
	}
	return off, nil
}

// AppendString copies s into the pool null-terminated and returns the
// absolute offset where it starts.
func (p *ByteBlockPool) AppendString(s string) (int64, error) {
	off, err := p.Append([]byte(s))
	if err != nil {
		return 0, err
	}
	if _, err := p.Append([]byte{0}); err != nil {
		return 0, err
	}
	return off, nil
}

func (p *ByteBlockPool) locate(off int64) (block, idx int, err error) {
	if off < 0 || off >= p.Size() {
		return 0, 0, errs.New("ByteBlockPool.locate", errs.InvalidArgument,
			fmt.Sprintf("offset %d out of range", off))
	}
	return int(off / ByteBlockSize), int(off % ByteBlockSize), nil
}

// ReadByte returns the byte stored at absolute offset off.
func (p *ByteBlockPool) ReadByte(off int64) (byte, error) {
	block, idx, err := p.locate(off)
	if err != nil {
		return 0, err
	}
	return p.buffers[block][idx], nil
}

// ReadBytes copies length bytes starting at absolute offset off into dst.
func (p *ByteBlockPool) ReadBytes(off int64, dst []byte) error {
	if off < 0 || off+int64(len(dst)) > p.Size() {
		return errs.New("ByteBlockPool.ReadBytes", errs.InvalidArgument,
			fmt.Sprintf("range [%d, %d) out of bounds", off, off+int64(len(dst))))
	}
	remaining := dst
	cur := off
	for len(remaining) > 0 {
		block := int(cur / ByteBlockSize)
		idx := int(cur % ByteBlockSize)
		n := ByteBlockSize - idx
		if n > len(remaining) {
			n = len(remaining)
		}
		copy(remaining[:n], p.buffers[block][idx:idx+n])
		remaining = remaining[n:]
		cur += int64(n)
	}
	return nil
}

// ReadString reads a null-terminated string starting at absolute offset
// off, returning it without the terminator.
func (p *ByteBlockPool) ReadString(off int64) (string, error) {
	if off < 0 || off >= p.Size() {
		return "", errs.New("ByteBlockPool.ReadString", errs.InvalidArgument,
			fmt.Sprintf("offset %d out of range", off))
	}
	var out []byte
	cur := off
	for {
		b, err := p.ReadByte(cur)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		out = append(out, b)
		cur++
	}
	return string(out), nil
}

// Reset zeroes write positions but keeps allocated blocks for reuse.
func (p *ByteBlockPool) Reset() {
	p.bufferUp = 0
	p.byteUp = 0
}

// Clear releases all allocated blocks.
func (p *ByteBlockPool) Clear() {
	p.buffers = nil
	p.bufferUp = 0
	p.byteUp = 0
}
