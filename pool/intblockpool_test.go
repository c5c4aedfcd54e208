package pool

import "testing"

func TestIntBlockPoolAppendAndRead(t *testing.T) {
	p := NewIntBlockPool()
	offs := make([]int, 0, 10)
	for i := int32(0); i < 10; i++ {
		offs = append(offs, p.Append(i*7))
	}
	for i, off := range offs {
		v, err := p.ReadInt(off)
		if err != nil {
			t.Fatal(err)
		}
		if v != int32(i)*7 {
			t.Errorf("ReadInt(%d) = %d, want %d", off, v, int32(i)*7)
		}
	}
}

func TestIntBlockPoolAllocateAndWrite(t *testing.T) {
	p := NewIntBlockPool()
	off, err := p.Allocate(4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := p.WriteInt(off+i, int32(i*100)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 4; i++ {
		v, err := p.ReadInt(off + i)
		if err != nil {
			t.Fatal(err)
		}
		if v != int32(i*100) {
			t.Errorf("ReadInt(off+%d) = %d, want %d", i, v, i*100)
		}
	}
}

func TestIntBlockPoolCrossesBlockBoundary(t *testing.T) {
	p := NewIntBlockPool()
	for i := 0; i < IntBlockSize; i++ {
		p.Append(int32(i))
	}
	off := p.Append(999)
	v, err := p.ReadInt(off)
	if err != nil {
		t.Fatal(err)
	}
	if v != 999 {
		t.Errorf("ReadInt across boundary = %d, want 999", v)
	}
	if len(p.buffers) != 2 {
		t.Errorf("expected 2 blocks, got %d", len(p.buffers))
	}
}

func TestIntBlockPoolResetAndClear(t *testing.T) {
	p := NewIntBlockPool()
	p.Append(1)
	p.Append(2)
	blocksBefore := len(p.buffers)

	p.Reset()
	if p.Size() != 0 {
		t.Errorf("Size after Reset = %d, want 0", p.Size())
	}
	if len(p.buffers) != blocksBefore {
		t.Errorf("Reset should retain blocks")
	}

	p.Clear()
	if len(p.buffers) != 0 {
		t.Errorf("Clear should release blocks")
	}
}

func TestIntBlockPoolAllocateRejectsOversize(t *testing.T) {
	p := NewIntBlockPool()
	if _, err := p.Allocate(IntBlockSize + 1); err == nil {
		t.Fatal("expected error allocating more than one block")
	}
}
