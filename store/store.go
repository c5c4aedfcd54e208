// Package store defines the byte-stream boundary between the codec layer
// and whatever durable storage backs a segment: sequential IndexOutput for
// writing, random-access IndexInput for reading, plus a RAM-backed pair of
// implementations (a directory/filesystem layer is out of scope).
package store

import (
	"hash/crc32"

	"github.com/model-collapse/diagon-sub003/errs"
)

// IndexOutput is a sequential writer for one index file. Implementations
// must guarantee that after Close, reopening the same name for input
// observes exactly the bytes written.
type IndexOutput interface {
	WriteByte(b byte) error
	WriteBytes(p []byte) error
	WriteShort(v int16) error
	WriteInt(v int32) error
	WriteLong(v int64) error
	// WriteVInt writes a variable-length integer: 7 bits per byte, MSB
	// set means another byte follows.
	WriteVInt(v int32) error
	WriteVLong(v int64) error
	WriteString(s string) error

	FilePointer() int64
	// Checksum returns the running checksum of bytes written so far.
	// Implementations that don't track one return an UnsupportedOperation
	// error.
	Checksum() (uint32, error)
	Close() error
	Name() string
}

// IndexInput is a random-access reader for one index file. Clone and Slice
// each return an independent cursor; concurrent clones may read the same
// backing storage safely.
type IndexInput interface {
	ReadByte() (byte, error)
	ReadBytes(p []byte) error
	ReadShort() (int16, error)
	ReadInt() (int32, error)
	ReadLong() (int64, error)
	ReadVInt() (int32, error)
	ReadVLong() (int64, error)
	ReadString() (string, error)

	FilePointer() int64
	Seek(pos int64) error
	Length() int64
	SkipBytes(n int64) error
	EOF() bool

	Clone() IndexInput
	Slice(desc string, offset, length int64) (IndexInput, error)

	Name() string
}

// RAMOutput accumulates written bytes in memory. It is the only IndexOutput
// implementation this module ships, since a filesystem/directory layer is
// explicitly out of scope.
type RAMOutput struct {
	name string
	buf  []byte
	crc  uint32
	closed bool
}

// NewRAMOutput creates an empty in-memory output named name (used only for
// diagnostics).
func NewRAMOutput(name string) *RAMOutput {
	return &RAMOutput{name: name}
}

func (o *RAMOutput) checkOpen(op string) error {
	if o.closed {
		return errs.New(op, errs.AlreadyClosed, "write after close")
	}
	return nil
}

func (o *RAMOutput) WriteByte(b byte) error {
	if err := o.checkOpen("RAMOutput.WriteByte"); err != nil {
		return err
	}
	o.buf = append(o.buf, b)
	o.crc = crc32.Update(o.crc, crc32.IEEETable, []byte{b})
	return nil
}

func (o *RAMOutput) WriteBytes(p []byte) error {
	if err := o.checkOpen("RAMOutput.WriteBytes"); err != nil {
		return err
	}
	o.buf = append(o.buf, p...)
	o.crc = crc32.Update(o.crc, crc32.IEEETable, p)
	return nil
}

func (o *RAMOutput) WriteShort(v int16) error {
	return o.WriteBytes([]byte{byte(v >> 8), byte(v)})
}

func (o *RAMOutput) WriteInt(v int32) error {
	return o.WriteBytes([]byte{
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	})
}

func (o *RAMOutput) WriteLong(v int64) error {
	if err := o.WriteInt(int32(v >> 32)); err != nil {
		return err
	}
	return o.WriteInt(int32(v))
}

func (o *RAMOutput) WriteVInt(v int32) error {
	u := uint32(v)
	for u&^0x7f != 0 {
		if err := o.WriteByte(byte(u&0x7f) | 0x80); err != nil {
			return err
		}
		u >>= 7
	}
	return o.WriteByte(byte(u))
}

func (o *RAMOutput) WriteVLong(v int64) error {
	u := uint64(v)
	for u&^0x7f != 0 {
		if err := o.WriteByte(byte(u&0x7f) | 0x80); err != nil {
			return err
		}
		u >>= 7
	}
	return o.WriteByte(byte(u))
}

func (o *RAMOutput) WriteString(s string) error {
	if err := o.WriteVInt(int32(len(s))); err != nil {
		return err
	}
	return o.WriteBytes([]byte(s))
}

func (o *RAMOutput) FilePointer() int64 { return int64(len(o.buf)) }

func (o *RAMOutput) Checksum() (uint32, error) { return o.crc, nil }

func (o *RAMOutput) Close() error {
	o.closed = true
	return nil
}

func (o *RAMOutput) Name() string { return o.name }

// Bytes returns the bytes written so far. Valid before or after Close.
func (o *RAMOutput) Bytes() []byte { return o.buf }

// RAMInput is an IndexInput over an in-memory byte slice, typically
// produced by (*RAMOutput).Bytes.
type RAMInput struct {
	name string
	buf  []byte
	pos  int64
	base int64 // offset of buf[0] in the logical parent, for diagnostics only
}

// NewRAMInput wraps buf for reading, named name for diagnostics.
func NewRAMInput(name string, buf []byte) *RAMInput {
	return &RAMInput{name: name, buf: buf}
}

func (in *RAMInput) ReadByte() (byte, error) {
	if in.pos >= int64(len(in.buf)) {
		return 0, errs.New("RAMInput.ReadByte", errs.Io, "read past end of input")
	}
	b := in.buf[in.pos]
	in.pos++
	return b, nil
}

func (in *RAMInput) ReadBytes(p []byte) error {
	if in.pos+int64(len(p)) > int64(len(in.buf)) {
		return errs.New("RAMInput.ReadBytes", errs.Io, "read past end of input")
	}
	copy(p, in.buf[in.pos:in.pos+int64(len(p))])
	in.pos += int64(len(p))
	return nil
}

func (in *RAMInput) ReadShort() (int16, error) {
	var tmp [2]byte
	if err := in.ReadBytes(tmp[:]); err != nil {
		return 0, err
	}
	return int16(tmp[0])<<8 | int16(tmp[1]), nil
}

func (in *RAMInput) ReadInt() (int32, error) {
	var tmp [4]byte
	if err := in.ReadBytes(tmp[:]); err != nil {
		return 0, err
	}
	return int32(tmp[0])<<24 | int32(tmp[1])<<16 | int32(tmp[2])<<8 | int32(tmp[3]), nil
}

func (in *RAMInput) ReadLong() (int64, error) {
	hi, err := in.ReadInt()
	if err != nil {
		return 0, err
	}
	lo, err := in.ReadInt()
	if err != nil {
		return 0, err
	}
	return int64(hi)<<32 | int64(uint32(lo)), nil
}

func (in *RAMInput) ReadVInt() (int32, error) {
	var result uint32
	var shift uint
	for {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return int32(result), nil
		}
		shift += 7
		if shift > 35 {
			return 0, errs.New("RAMInput.ReadVInt", errs.Corruption, "vint too long")
		}
	}
}

func (in *RAMInput) ReadVLong() (int64, error) {
	var result uint64
	var shift uint
	for {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return int64(result), nil
		}
		shift += 7
		if shift > 63 {
			return 0, errs.New("RAMInput.ReadVLong", errs.Corruption, "vlong too long")
		}
	}
}

func (in *RAMInput) ReadString() (string, error) {
	n, err := in.ReadVInt()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", errs.New("RAMInput.ReadString", errs.Corruption, "negative string length")
	}
	buf := make([]byte, n)
	if err := in.ReadBytes(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (in *RAMInput) FilePointer() int64 { return in.pos }

func (in *RAMInput) Seek(pos int64) error {
	if pos < 0 || pos > int64(len(in.buf)) {
		return errs.New("RAMInput.Seek", errs.InvalidArgument, "seek out of range")
	}
	in.pos = pos
	return nil
}

func (in *RAMInput) Length() int64 { return int64(len(in.buf)) }

func (in *RAMInput) SkipBytes(n int64) error { return in.Seek(in.pos + n) }

func (in *RAMInput) EOF() bool { return in.pos >= int64(len(in.buf)) }

func (in *RAMInput) Clone() IndexInput {
	return &RAMInput{name: in.name, buf: in.buf, pos: in.pos, base: in.base}
}

func (in *RAMInput) Slice(desc string, offset, length int64) (IndexInput, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(in.buf)) {
		return nil, errs.New("RAMInput.Slice", errs.InvalidArgument, "slice out of range")
	}
	return &RAMInput{
		name: in.name + ":" + desc,
		buf:  in.buf[offset : offset+length],
		base: in.base + offset,
	}, nil
}

func (in *RAMInput) Name() string { return in.name }
