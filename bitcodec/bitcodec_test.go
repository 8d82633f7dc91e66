package bitcodec

import "testing"

func TestWrite6RoundTrip(t *testing.T) {
	for v := uint32(0); v < 64; v++ {
		w := NewWriter()
		w.Write6(v)
		r := NewReader(w.Finish())
		got, err := r.Read6()
		if err != nil {
			t.Fatalf("Read6(%d): unexpected error: %v", v, err)
		}
		if got != v {
			t.Fatalf("Read6(%d): got %d", v, got)
		}
	}
}

func TestWriteExtU32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 31, 32, 33, 1023, 1 << 16, 1<<32 - 1, 0xdeadbeef}
	for _, v := range values {
		w := NewWriter()
		w.WriteExtU32(v)
		r := NewReader(w.Finish())
		got, err := r.ReadExtU32()
		if err != nil {
			t.Fatalf("ReadExtU32(%d): unexpected error: %v", v, err)
		}
		if got != v {
			t.Fatalf("ReadExtU32(%d): got %d", v, got)
		}
	}
}

func TestWriteU64AsU32PairRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 1 << 32, 1<<64 - 1, 0x1122334455667788}
	for _, v := range values {
		w := NewWriter()
		WriteU64AsU32Pair(w, v)
		r := NewReader(w.Finish())
		got, err := ReadU64FromU32Pair(r)
		if err != nil {
			t.Fatalf("ReadU64FromU32Pair(%d): unexpected error: %v", v, err)
		}
		if got != v {
			t.Fatalf("ReadU64FromU32Pair(%d): got %d", v, got)
		}
	}
}

func TestMultipleValuesInterleaved(t *testing.T) {
	w := NewWriter()
	w.Write6(5)
	w.WriteExtU32(123456)
	WriteU64AsU32Pair(w, 0xcafebabedeadbeef)
	w.WriteExtU32(7)

	r := NewReader(w.Finish())
	if v, err := r.Read6(); err != nil || v != 5 {
		t.Fatalf("Read6: got %d, %v", v, err)
	}
	if v, err := r.ReadExtU32(); err != nil || v != 123456 {
		t.Fatalf("ReadExtU32: got %d, %v", v, err)
	}
	if v, err := ReadU64FromU32Pair(r); err != nil || v != 0xcafebabedeadbeef {
		t.Fatalf("ReadU64FromU32Pair: got %#x, %v", v, err)
	}
	if v, err := r.ReadExtU32(); err != nil || v != 7 {
		t.Fatalf("ReadExtU32: got %d, %v", v, err)
	}
}

func TestReadPastEndFails(t *testing.T) {
	r := NewReader(nil)
	if _, err := r.Read6(); err == nil {
		t.Fatal("expected error reading from empty stream")
	}
}

func TestReadExtU32GuardsAgainstRunaway(t *testing.T) {
	// 8 chunks all with the continuation bit set decode no value and
	// should be rejected rather than looping or overflowing silently.
	w := NewWriter()
	for i := 0; i < 8; i++ {
		w.Write6(0x20 | 0x1f)
	}
	r := NewReader(w.Finish())
	if _, err := r.ReadExtU32(); err == nil {
		t.Fatal("expected guard error for runaway continuation stream")
	}
}
