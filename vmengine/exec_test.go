package vmengine

import (
	"testing"

	"github.com/ebitengine/purego"
	"github.com/xyproto/vmarmcore/funcdata"
	"github.com/xyproto/vmarmcore/vmopcode"
)

// asm is a minimal test-only instruction-word builder: forward branches are
// reserved with newBranch and patched once their target pc is known via
// setBranchHere; backward branches (loop heads) just reuse an already-known
// pc via setBranchTo.
type asm struct {
	words    []uint32
	branches []uint32
}

func (a *asm) pc() uint32 { return uint32(len(a.words)) }

func (a *asm) emit(op vmopcode.Op, args ...uint32) {
	a.words = append(a.words, uint32(op))
	a.words = append(a.words, args...)
}

func (a *asm) newBranch() uint32 {
	a.branches = append(a.branches, 0)
	return uint32(len(a.branches) - 1)
}

func (a *asm) setBranchHere(id uint32)     { a.branches[id] = a.pc() }
func (a *asm) setBranchTo(id, pc uint32)   { a.branches[id] = pc }

// tagUint32 is vmtype.TagUint32's raw value (see vmtype.go's Tag block),
// referenced here to avoid importing vmtype just for one constant. typeIdx0
// is the corresponding instruction-word operand: every test function below
// carries exactly one type tag, so its type index is always 0.
const (
	tagUint32 = 5
	typeIdx0  = 0
)

func cacheRecord(t *testing.T, e *Engine, soName string, offset uint64, a *asm, regCount uint32) {
	t.Helper()
	rec := &funcdata.Record{
		RegisterCount:  regCount,
		TypeCount:      1,
		TypeTags:       []uint32{tagUint32},
		InstCount:      uint32(len(a.words)),
		InstWords:      a.words,
		BranchCount:    uint32(len(a.branches)),
		BranchWords:    a.branches,
		FunctionOffset: offset,
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("invalid test record: %v", err)
	}
	fn, err := NewFunction(soName, rec)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	e.CacheFunction(fn)
}

func TestExecuteAdd(t *testing.T) {
	e := New()
	var a asm
	a.emit(vmopcode.OpBinary, uint32(vmopcode.BinAdd), 0, 0, 1, 0) // x0 = x0 + x1
	a.emit(vmopcode.OpReturn, 1, 0)

	cacheRecord(t, e, "libfoo.so", 0x1000, &a, 6)

	got, err := e.Execute(0, "libfoo.so", 0x1000, []uint64{2, 4})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != 6 {
		t.Fatalf("got %d, want 6", got)
	}
}

// TestExecuteLoopSum sums i = 0..n-1 into an accumulator using
// OP_CMP/OP_BRANCH_IF_CC/OP_BRANCH, exercising the branch-table indirection
// both forward (loop exit) and backward (loop head).
func TestExecuteLoopSum(t *testing.T) {
	e := New()
	var a asm

	// registers: 0 = n (param), 1 = i, 2 = acc, 3 = scratch cmp result
	a.emit(vmopcode.OpLoadImm, 1, 0) // i = 0
	a.emit(vmopcode.OpLoadImm, 2, 0) // acc = 0

	loopHead := a.pc()
	exitBranch := a.newBranch()
	a.emit(vmopcode.OpCmp, typeIdx0, 1, 0, 3, 0) // i - n
	a.emit(vmopcode.OpBranchIfCC, uint32(vmopcode.CondGE), exitBranch)

	a.emit(vmopcode.OpBinary, uint32(vmopcode.BinAdd), typeIdx0, 2, 1, 2) // acc += i
	a.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAdd), typeIdx0, 1, 1, 1) // i += 1
	loopBranch := a.newBranch()
	a.setBranchTo(loopBranch, loopHead)
	a.emit(vmopcode.OpBranch, loopBranch)

	a.setBranchHere(exitBranch)
	a.emit(vmopcode.OpReturn, 1, 2)

	cacheRecord(t, e, "libfoo.so", 0x2000, &a, 6)

	got, err := e.Execute(0, "libfoo.so", 0x2000, []uint64{4})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != 6 { // 0+1+2+3
		t.Fatalf("got %d, want 6", got)
	}
}

// TestExecuteSwitchDispatch models a two-armed dispatch: when x0 == 2,
// compute x0 + x1*2, matching the (2, 4) -> 10 scenario.
func TestExecuteSwitchDispatch(t *testing.T) {
	e := New()
	var a asm

	a.emit(vmopcode.OpLoadImm, 2, 2) // reg2 = 2 (case constant)
	a.emit(vmopcode.OpCmp, typeIdx0, 0, 2, 3, 0)
	caseBranch := a.newBranch()
	a.emit(vmopcode.OpBranchIfCC, uint32(vmopcode.CondEQ), caseBranch)

	a.emit(vmopcode.OpLoadImm, 0, 0) // default: return 0
	a.emit(vmopcode.OpReturn, 1, 0)

	a.setBranchHere(caseBranch)
	a.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinMul), typeIdx0, 1, 2, 4) // reg4 = x1*2
	a.emit(vmopcode.OpBinary, uint32(vmopcode.BinAdd), typeIdx0, 0, 4, 0)    // x0 += reg4
	a.emit(vmopcode.OpReturn, 1, 0)

	cacheRecord(t, e, "libfoo.so", 0x3000, &a, 6)

	got, err := e.Execute(0, "libfoo.so", 0x3000, []uint64{2, 4})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != 10 {
		t.Fatalf("got %d, want 10", got)
	}
}

// TestExecuteBitmaskUnary exercises OP_UNARY's NOT variant, independent of
// its inputs: NOT(1) on a 32-bit value is the fixed bit pattern 0xfffffffe.
func TestExecuteBitmaskUnary(t *testing.T) {
	e := New()
	var a asm

	a.emit(vmopcode.OpLoadImm, 2, 1)
	a.emit(vmopcode.OpUnary, uint32(vmopcode.UnaryNot), typeIdx0, 2, 0)
	a.emit(vmopcode.OpReturn, 1, 0)

	cacheRecord(t, e, "libfoo.so", 0x4000, &a, 6)

	got, err := e.Execute(0, "libfoo.so", 0x4000, []uint64{2, 4})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != 0xfffffffe {
		t.Fatalf("got %#x, want 0xfffffffe", got)
	}
}

// TestExecuteOpBLSharedBranchTable calls libc's abs() through OP_BL,
// resolving the call target purely via Engine.SetSharedBranchAddrs —
// exactly the indirection spec.md describes for direct-call lowering.
// Skips if libc can't be opened (no dlopen, unusual sandboxing), rather
// than failing on an environment precondition this package doesn't own.
func TestExecuteOpBLSharedBranchTable(t *testing.T) {
	handle, err := purego.Dlopen("libc.so.6", purego.RTLD_NOW)
	if err != nil {
		t.Skipf("libc.so.6 not available: %v", err)
	}
	absAddr, err := purego.Dlsym(handle, "abs")
	if err != nil || absAddr == 0 {
		t.Skipf("abs not resolvable: %v", err)
	}

	e := New()
	e.SetSharedBranchAddrs("libfoo.so", []uint64{absAddr})

	var a asm
	a.emit(vmopcode.OpBL, 0)
	a.emit(vmopcode.OpReturn, 1, 0)

	cacheRecord(t, e, "libfoo.so", 0x5000, &a, 6)

	const negFive = uint64(0xfffffffffffffffb) // -5 as int64 bit pattern
	got, err := e.Execute(0, "libfoo.so", 0x5000, []uint64{negFive})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestExecuteNotCached(t *testing.T) {
	e := New()
	_, err := e.Execute(0, "libfoo.so", 0xdead, nil)
	if _, ok := err.(*NotCachedError); !ok {
		t.Fatalf("expected *NotCachedError, got %v", err)
	}
}
