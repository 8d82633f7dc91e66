package vmengine

import (
	"testing"

	"github.com/xyproto/vmarmcore/vmopcode"
)

func TestEvalBinaryAddOverflow32(t *testing.T) {
	res, f := evalBinary(vmopcode.BinAdd|vmopcode.BinUpdateFlags, 0x7fffffff, 1, 32, true)
	if res != 0x80000000 {
		t.Fatalf("res = %#x, want 0x80000000", res)
	}
	if !f.v {
		t.Fatalf("expected signed overflow flag set")
	}
	if f.c {
		t.Fatalf("expected no unsigned carry")
	}
	if !f.n {
		t.Fatalf("expected N flag set (result's top bit is 1)")
	}
}

func TestEvalBinarySubZeroFlag(t *testing.T) {
	_, f := evalBinary(vmopcode.BinSub, 5, 5, 32, false)
	if !f.z {
		t.Fatalf("expected Z flag set for equal operands")
	}
}

func TestEvalBinaryUnsignedDivide(t *testing.T) {
	res, _ := evalBinary(vmopcode.BinIdiv, 7, 2, 32, false)
	if res != 3 {
		t.Fatalf("res = %d, want 3", res)
	}
}

func TestEvalBinarySignedDivideTruncatesTowardZero(t *testing.T) {
	res, _ := evalBinary(vmopcode.BinIdiv, uint64(uint32(int32(-7))), 2, 32, true)
	if int32(uint32(res)) != -3 {
		t.Fatalf("res = %d, want -3", int32(uint32(res)))
	}
}

func TestEvalBinaryShiftMasksWidth8(t *testing.T) {
	res, _ := evalBinary(vmopcode.BinShl, 0xff, 4, 8, false)
	if res != 0xf0 {
		t.Fatalf("res = %#x, want 0xf0", res)
	}
}

func TestEvalUnaryNegWidth16(t *testing.T) {
	res := evalUnary(vmopcode.UnaryNeg, 1, 16)
	if res != 0xffff {
		t.Fatalf("res = %#x, want 0xffff", res)
	}
}

func TestEvalCondGTandLE(t *testing.T) {
	f := flags{n: false, z: false, v: false}
	if !evalCond(vmopcode.CondGT, f) {
		t.Fatalf("expected GT true when Z=0, N==V")
	}
	if evalCond(vmopcode.CondLE, f) {
		t.Fatalf("expected LE false when Z=0, N==V")
	}
}
