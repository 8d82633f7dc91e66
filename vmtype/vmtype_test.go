package vmtype

import "testing"

func TestCreateFromTagPrimitives(t *testing.T) {
	cases := []struct {
		tag    uint32
		kind   Kind
		width  int
		signed bool
	}{
		{uint32(TagInt8), KindInt8, 8, true},
		{uint32(TagUint8), KindUint8, 8, false},
		{uint32(TagInt16), KindInt16, 16, true},
		{uint32(TagUint16), KindUint16, 16, false},
		{uint32(TagInt32), KindInt32, 32, true},
		{uint32(TagUint32), KindUint32, 32, false},
		{uint32(TagInt64), KindInt64, 64, true},
		{uint32(TagUint64), KindUint64, 64, false},
	}
	for _, c := range cases {
		a := NewArena()
		typ, err := a.CreateFromTag(c.tag)
		if err != nil {
			t.Fatalf("CreateFromTag(%d): unexpected error: %v", c.tag, err)
		}
		if typ.Kind != c.kind || typ.WidthBits != c.width || typ.Signed != c.signed {
			t.Fatalf("CreateFromTag(%d): got %+v, want kind=%v width=%d signed=%v", c.tag, typ, c.kind, c.width, c.signed)
		}
	}
}

func TestCreateFromTagStruct(t *testing.T) {
	a := NewArena()
	typ, err := a.CreateFromTag(uint32(tagStructBase) + 3)
	if err != nil {
		t.Fatalf("CreateFromTag: unexpected error: %v", err)
	}
	if typ.Kind != KindStruct || typ.StructID != 3 {
		t.Fatalf("got %+v, want struct id 3", typ)
	}
}

func TestCreateFromTagRejectsUnknownTag(t *testing.T) {
	a := NewArena()
	if _, err := a.CreateFromTag(0xff); err == nil {
		t.Fatal("expected error for unknown tag between primitive range and struct base")
	}
}

func TestArenaReleaseAndLen(t *testing.T) {
	a := NewArena()
	if a.Len() != 0 {
		t.Fatalf("new arena should be empty, got len %d", a.Len())
	}
	if _, err := a.CreateFromTag(uint32(TagInt32)); err != nil {
		t.Fatalf("CreateFromTag: %v", err)
	}
	if _, err := a.CreateFromTag(uint32(TagUint64)); err != nil {
		t.Fatalf("CreateFromTag: %v", err)
	}
	if a.Len() != 2 {
		t.Fatalf("expected len 2, got %d", a.Len())
	}
	a.Release()
	if a.Len() != 0 {
		t.Fatalf("expected len 0 after Release, got %d", a.Len())
	}
	// Release must be idempotent.
	a.Release()
}

func TestIsSignature(t *testing.T) {
	if IsSignature(nil) {
		t.Fatal("empty tag slice must not be a signature")
	}
	if IsSignature([]uint32{uint32(TagInt32)}) {
		t.Fatal("primitive first tag must not be treated as a signature")
	}
	if !IsSignature([]uint32{uint32(tagStructBase) + 1}) {
		t.Fatal("struct first tag must be treated as a signature")
	}
}
