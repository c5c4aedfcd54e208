package svbyte

import (
	"reflect"
	"testing"
)

func TestEncodedSize(t *testing.T) {
	cases := []struct {
		v    uint32
		want int
	}{
		{0, 1},
		{255, 1},
		{256, 2},
		{1<<16 - 1, 2},
		{1 << 16, 3},
		{1<<24 - 1, 3},
		{1 << 24, 4},
		{1<<32 - 1, 4},
	}
	for _, tc := range cases {
		if got := EncodedSize(tc.v); got != tc.want {
			t.Errorf("EncodedSize(%d) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

func TestEncodeDecode4RoundTrip(t *testing.T) {
	values := []uint32{0, 300, 70000, 1<<31 + 7}
	buf := make([]byte, EncodedSizeArray(values))
	n, err := Encode(values, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("Encode wrote %d bytes, EncodedSizeArray said %d", n, len(buf))
	}

	got, consumed, err := Decode4(buf)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != n {
		t.Errorf("Decode4 consumed %d bytes, want %d", consumed, n)
	}
	want := [4]uint32{values[0], values[1], values[2], values[3]}
	if got != want {
		t.Errorf("Decode4 = %v, want %v", got, want)
	}
}

func TestEncodePartialGroup(t *testing.T) {
	values := []uint32{42, 99, 1000}
	buf := make([]byte, EncodedSizeArray(values))
	n, err := Encode(values, buf)
	if err != nil {
		t.Fatal(err)
	}

	out := make([]uint32, len(values))
	consumed, err := Decode(buf[:n], len(values), out)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != n {
		t.Errorf("Decode consumed %d, want %d", consumed, n)
	}
	if !reflect.DeepEqual(out, values) {
		t.Errorf("Decode = %v, want %v", out, values)
	}
}

func TestDecodeBulkMultipleGroups(t *testing.T) {
	values := []uint32{1, 2, 3, 4, 1000, 2000, 3000, 4000}
	var buf []byte
	for i := 0; i < len(values); i += 4 {
		group := values[i : i+4]
		b := make([]byte, EncodedSizeArray(group))
		n, err := Encode(group, b)
		if err != nil {
			t.Fatal(err)
		}
		buf = append(buf, b[:n]...)
	}

	out := make([]uint32, len(values))
	consumed, err := DecodeBulk(buf, len(values), out)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(buf) {
		t.Errorf("DecodeBulk consumed %d, want %d", consumed, len(buf))
	}
	if !reflect.DeepEqual(out, values) {
		t.Errorf("DecodeBulk = %v, want %v", out, values)
	}
}

func TestDecodeBulkRejectsNonMultipleOf4(t *testing.T) {
	if _, err := DecodeBulk(nil, 5, make([]uint32, 5)); err == nil {
		t.Fatal("expected error for count not a multiple of 4")
	}
}

func TestDecode4TruncatedData(t *testing.T) {
	buf := []byte{0xFF} // control byte claims 4-byte lengths for all 4 slots, no data follows
	if _, _, err := Decode4(buf); err == nil {
		t.Fatal("expected error decoding truncated group")
	}
}

func TestPrefixSumScalarAndWideAgree(t *testing.T) {
	base := uint32(1000)
	deltas8 := []uint32{1, 2, 3, 4, 5, 6, 7, 8}
	got8 := PrefixSum(deltas8, base)
	want8 := scalarPrefixSum(deltas8, base)
	if !reflect.DeepEqual(got8, want8) {
		t.Errorf("PrefixSum(8-wide) = %v, want %v", got8, want8)
	}

	deltas16 := make([]uint32, 16)
	for i := range deltas16 {
		deltas16[i] = uint32(i + 1)
	}
	got16 := PrefixSum(deltas16, base)
	want16 := scalarPrefixSum(deltas16, base)
	if !reflect.DeepEqual(got16, want16) {
		t.Errorf("PrefixSum(16-wide) = %v, want %v", got16, want16)
	}

	oddLen := []uint32{5, 5, 5}
	gotOdd := PrefixSum(oddLen, base)
	wantOdd := []uint32{base + 5, base + 10, base + 15}
	if !reflect.DeepEqual(gotOdd, wantOdd) {
		t.Errorf("PrefixSum(odd length) = %v, want %v", gotOdd, wantOdd)
	}
}

func TestBatchPrefixSumMatchesRunningSumAcrossChunkSizes(t *testing.T) {
	base := uint32(10)
	deltas := make([]uint32, 32)
	for i := range deltas {
		deltas[i] = uint32(i + 1)
	}
	got := BatchPrefixSum(deltas, base)
	want := scalarPrefixSum(deltas, base)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BatchPrefixSum(32) = %v, want %v", got, want)
	}

	// A length that forces a 16-chunk, an 8-chunk, then a scalar tail.
	deltas27 := make([]uint32, 27)
	for i := range deltas27 {
		deltas27[i] = uint32(2)
	}
	got27 := BatchPrefixSum(deltas27, base)
	want27 := scalarPrefixSum(deltas27, base)
	if !reflect.DeepEqual(got27, want27) {
		t.Errorf("BatchPrefixSum(27) = %v, want %v", got27, want27)
	}

	if out := BatchPrefixSum(nil, base); len(out) != 0 {
		t.Errorf("BatchPrefixSum(nil) = %v, want empty", out)
	}
}
