package translator

import (
	"encoding/binary"
	"testing"
)

func encodeWords(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func TestTranslateAddThenRet(t *testing.T) {
	// add x0, x1, x2 ; ret
	code := encodeWords(0x8B020020, 0xD65F03C0)
	rec, err := New().Translate(code, 0x1000, 0x2000)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if rec.FunctionOffset != 0x2000 {
		t.Fatalf("FunctionOffset = %#x, want 0x2000", rec.FunctionOffset)
	}
	if rec.RegisterCount < 4 {
		t.Fatalf("RegisterCount = %d, want >= 4", rec.RegisterCount)
	}
	if rec.BranchCount != 0 {
		t.Fatalf("BranchCount = %d, want 0 (no local branches in this function)", rec.BranchCount)
	}
	// Prelude (4 words) + OP_BINARY (6 words) + OP_RETURN (3 words).
	if len(rec.InstWords) < 9 {
		t.Fatalf("InstWords too short: %v", rec.InstWords)
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("translated record failed validation: %v", err)
	}
}

func TestTranslateSubImmediate(t *testing.T) {
	// sub x0, x0, #1 ; ret
	code := encodeWords(0xD1000400, 0xD65F03C0)
	rec, err := New().Translate(code, 0x1000, 0x3000)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("translated record failed validation: %v", err)
	}
}

func TestTranslateUnconditionalBranch(t *testing.T) {
	// b #8 (skip the next instruction) ; ret ; ret
	code := encodeWords(0x14000002, 0xD65F03C0, 0xD65F03C0)
	rec, err := New().Translate(code, 0x1000, 0x4000)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if rec.BranchCount != 1 {
		t.Fatalf("BranchCount = %d, want 1", rec.BranchCount)
	}
	// The branch target (addr 0x1008, the second ret) must resolve to a
	// PC inside the instruction stream, not the zero-fill sentinel.
	if rec.BranchWords[0] == 0 {
		t.Fatalf("branch target PC was zero-filled; want resolved PC")
	}
}

func TestTranslateRejectsUnrecognizedInstruction(t *testing.T) {
	code := encodeWords(0x00000000)
	if _, err := New().Translate(code, 0x1000, 0x5000); err == nil {
		t.Fatal("expected translation error for unrecognized instruction word")
	}
}

func TestTranslateRejectsMisalignedLength(t *testing.T) {
	if _, err := New().Translate([]byte{1, 2, 3}, 0x1000, 0x6000); err == nil {
		t.Fatal("expected error for non-multiple-of-4 code length")
	}
}

func TestTranslateMulAndDiv(t *testing.T) {
	// mul x0, x1, x2 (madd x0, x1, x2, xzr) ; udiv x3, x4, x5 ; ret
	// mul is encoded as MADD with Ra=XZR(31).
	// sf=1 op54=00 11011 000 Rm Ra Rn Rd ; MADD: o0=0
	madd := uint32(0x9B027C20) // madd x0, x1, x2, xzr  (field layout above)
	udiv := uint32(0x9AC50883) // udiv x3, x4, x5
	code := encodeWords(madd, udiv, 0xD65F03C0)
	rec, err := New().Translate(code, 0x2000, 0x7000)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("translated record failed validation: %v", err)
	}
}
