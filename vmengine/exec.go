package vmengine

import (
	"unsafe"

	"github.com/xyproto/vmarmcore/vmopcode"
	"github.com/xyproto/vmarmcore/vmtype"
)

// scratchFrameSize is the size of the stack-like scratch buffer OP_ALLOC_VSP
// hands out; functions never need more than a handful of spilled locals
// (spec.md §4.7 "OP_ALLOC_VSP ... establishes a VM-private stack frame").
const scratchFrameSize = 4096

// execState is one call's interpreter state: live only for the duration of
// a single Execute call, never shared or cached.
type execState struct {
	engine *Engine
	soName string
	fn     *Function
	regs   []uint64
	f      flags
	// scratch retains every OP_ALLOC_VSP/OP_ALLOC_MEMORY buffer's backing
	// array alive for the call's duration: its address is handed to guest
	// code as a bare uint64, so nothing else keeps the Go allocator from
	// collecting it otherwise.
	scratch [][]byte
}

func (st *execState) getReg(idx uint32) uint64 {
	if int(idx) >= len(st.regs) {
		return 0
	}
	return st.regs[idx]
}

func (st *execState) setReg(idx uint32, val uint64) {
	if int(idx) >= len(st.regs) {
		return
	}
	st.regs[idx] = val
}

// valueOrZero resolves an OP_SET_FIELD/OP_ATOMIC_STORE value operand,
// honoring vmopcode.ValueSentinel as "store zero" (spec.md §4.7).
func (st *execState) valueOrZero(idx uint32) uint64 {
	if idx == vmopcode.ValueSentinel {
		return 0
	}
	return st.getReg(idx)
}

func (st *execState) alloc(size uint32) uint64 {
	buf := make([]byte, size)
	st.scratch = append(st.scratch, buf)
	if size == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&buf[0])))
}

// branchPC resolves a branch_id operand to an instruction-word index via
// Record.BranchWords (spec.md §4.7 "branch_words_ptr[branch_id]").
func (st *execState) branchPC(branchID uint32) (int, error) {
	if int(branchID) >= len(st.fn.Record.BranchWords) {
		return 0, &ExecError{SoName: st.soName, Offset: st.fn.Record.FunctionOffset, Reason: "branch_id out of range"}
	}
	return int(st.fn.Record.BranchWords[branchID]), nil
}

// lookupIndirectTarget resolves a register-indirect branch target against
// the indirect-branch lookup table (SPEC_FULL.md §3): if the native address
// the register holds matches a translated local instruction's recorded
// native address, the branch lands inside this same function and execution
// continues there; otherwise the target is opaque guest/native code outside
// this function and OP_BRANCH_REG degrades to a native tail call.
func (st *execState) lookupIndirectTarget(addr uint64) (int, bool) {
	addrs := st.fn.Record.BranchLookupAddrs
	words := st.fn.Record.BranchLookupWords
	for i, a := range addrs {
		if a == addr {
			return int(words[i]), true
		}
	}
	return 0, false
}

// Execute runs the cached function identified by (soName, functionOffset)
// to completion (spec.md §4.7 "Execution entry").
func (e *Engine) Execute(retBuffer uint64, soName string, functionOffset uint64, params []uint64) (uint64, error) {
	fn, ok := e.lookup(soName, functionOffset)
	if !ok {
		return 0, &NotCachedError{SoName: soName, Offset: functionOffset}
	}

	regCount := fn.Record.RegisterCount
	if regCount < 31 {
		regCount = 31
	}
	st := &execState{engine: e, soName: soName, fn: fn, regs: make([]uint64, regCount)}

	for i, p := range params {
		if i >= 6 {
			break
		}
		st.setReg(uint32(i), p)
	}
	if retBuffer != 0 {
		st.setReg(8, retBuffer)
	}

	return st.run()
}

func (st *execState) run() (uint64, error) {
	words := st.fn.Record.InstWords
	pc := 0

	for {
		if pc < 0 || pc >= len(words) {
			return 0, &ExecError{SoName: st.soName, Offset: st.fn.Record.FunctionOffset, PC: pc, Reason: "pc out of range"}
		}
		op := vmopcode.Op(words[pc])

		switch op {
		case vmopcode.OpNop:
			pc++

		case vmopcode.OpEnd:
			return st.getReg(0), nil

		case vmopcode.OpUnreachable:
			return 0, &ExecError{SoName: st.soName, Offset: st.fn.Record.FunctionOffset, PC: pc, Reason: "reached OP_UNREACHABLE"}

		case vmopcode.OpAllocReturn:
			pc++

		case vmopcode.OpAllocVsp:
			fpReg, spReg := words[pc+1], words[pc+2]
			addr := st.alloc(scratchFrameSize)
			top := addr + scratchFrameSize
			st.setReg(fpReg, top)
			st.setReg(spReg, top)
			pc += 3

		case vmopcode.OpLoadImm:
			dst, val := words[pc+1], words[pc+2]
			st.setReg(dst, uint64(val))
			pc += 3

		case vmopcode.OpLoadConst64, vmopcode.OpAdrp:
			dst, lo, hi := words[pc+1], words[pc+2], words[pc+3]
			st.setReg(dst, uint64(lo)|uint64(hi)<<32)
			pc += 4

		case vmopcode.OpMov:
			src, dst := words[pc+1], words[pc+2]
			st.setReg(dst, st.getReg(src))
			pc += 3

		case vmopcode.OpBinary:
			binOp, typeIdx, lhs, rhs, dst := words[pc+1], words[pc+2], words[pc+3], words[pc+4], words[pc+5]
			t, err := st.fn.typeAt(typeIdx)
			if err != nil {
				return 0, err
			}
			res, f := evalBinary(vmopcode.BinOp(binOp), st.getReg(lhs), st.getReg(rhs), width(t), t.Signed)
			if vmopcode.BinOp(binOp).UpdatesFlags() {
				st.f = f
			}
			st.setReg(dst, res)
			pc += 6

		case vmopcode.OpBinaryImm:
			binOp, typeIdx, lhs, imm, dst := words[pc+1], words[pc+2], words[pc+3], words[pc+4], words[pc+5]
			t, err := st.fn.typeAt(typeIdx)
			if err != nil {
				return 0, err
			}
			res, f := evalBinary(vmopcode.BinOp(binOp), st.getReg(lhs), uint64(imm), width(t), t.Signed)
			if vmopcode.BinOp(binOp).UpdatesFlags() {
				st.f = f
			}
			st.setReg(dst, res)
			pc += 6

		case vmopcode.OpUnary:
			variant, typeIdx, src, dst := words[pc+1], words[pc+2], words[pc+3], words[pc+4]
			t, err := st.fn.typeAt(typeIdx)
			if err != nil {
				return 0, err
			}
			st.setReg(dst, evalUnary(vmopcode.UnaryOp(variant), st.getReg(src), width(t)))
			pc += 5

		case vmopcode.OpSignExtend:
			fromWidth, toWidth, src, dst := words[pc+1], words[pc+2], words[pc+3], words[pc+4]
			st.setReg(dst, signExtend(st.getReg(src), int(fromWidth), int(toWidth)))
			pc += 5

		case vmopcode.OpGetField, vmopcode.OpRead:
			typeIdx, base, offset, dst := words[pc+1], words[pc+2], words[pc+3], words[pc+4]
			t, err := st.fn.typeAt(typeIdx)
			if err != nil {
				return 0, err
			}
			st.setReg(dst, readMem(st.getReg(base)+uint64(offset), width(t)))
			pc += 5

		case vmopcode.OpSetField, vmopcode.OpWrite:
			typeIdx, base, offset, valueIdx := words[pc+1], words[pc+2], words[pc+3], words[pc+4]
			t, err := st.fn.typeAt(typeIdx)
			if err != nil {
				return 0, err
			}
			writeMem(st.getReg(base)+uint64(offset), width(t), st.valueOrZero(valueIdx))
			pc += 5

		case vmopcode.OpAtomicLoad:
			typeIdx, base, _, _order, dst := words[pc+1], words[pc+2], words[pc+3], words[pc+4], words[pc+5]
			_ = _order
			t, err := st.fn.typeAt(typeIdx)
			if err != nil {
				return 0, err
			}
			st.setReg(dst, readMem(st.getReg(base), width(t)))
			pc += 6

		case vmopcode.OpAtomicStore:
			typeIdx, base, _, valueIdx, _order := words[pc+1], words[pc+2], words[pc+3], words[pc+4], words[pc+5]
			_ = _order
			t, err := st.fn.typeAt(typeIdx)
			if err != nil {
				return 0, err
			}
			writeMem(st.getReg(base), width(t), st.valueOrZero(valueIdx))
			pc += 6

		case vmopcode.OpCmp:
			typeIdx, lhs, rhs, dst, _mode := words[pc+1], words[pc+2], words[pc+3], words[pc+4], words[pc+5]
			_ = _mode
			t, err := st.fn.typeAt(typeIdx)
			if err != nil {
				return 0, err
			}
			res, f := evalBinary(vmopcode.BinSub, st.getReg(lhs), st.getReg(rhs), width(t), t.Signed)
			st.f = f
			st.setReg(dst, res)
			pc += 6

		case vmopcode.OpBranch:
			target, err := st.branchPC(words[pc+1])
			if err != nil {
				return 0, err
			}
			pc = target

		case vmopcode.OpBranchIfCC:
			cond, branchID := words[pc+1], words[pc+2]
			if evalCond(vmopcode.CondCode(cond), st.f) {
				target, err := st.branchPC(branchID)
				if err != nil {
					return 0, err
				}
				pc = target
			} else {
				pc += 3
			}

		case vmopcode.OpBranchReg:
			addr := st.getReg(words[pc+1])
			if target, ok := st.lookupIndirectTarget(addr); ok {
				pc = target
				continue
			}
			result := callNative(addr, st.regs[:min(6, len(st.regs))])
			st.setReg(0, result)
			return st.getReg(0), nil

		case vmopcode.OpCall:
			argc, retc, ret0, funcReg := words[pc+2], words[pc+3], words[pc+4], words[pc+5]
			_ = retc
			argRegs := words[pc+6 : pc+6+int(argc)]
			args := make([]uint64, len(argRegs))
			for i, r := range argRegs {
				args[i] = st.getReg(r)
			}
			result := callNative(st.getReg(funcReg), args)
			st.setReg(ret0, result)
			pc += 6 + int(argc)

		case vmopcode.OpBL:
			idx := words[pc+1]
			addr, ok := st.engine.branchAddr(st.soName, idx)
			if !ok {
				return 0, &ExecError{SoName: st.soName, Offset: st.fn.Record.FunctionOffset, PC: pc, Reason: "no shared branch address for OP_BL index"}
			}
			result := callNative(addr, st.regs[:min(6, len(st.regs))])
			st.setReg(0, result)
			pc += 2

		case vmopcode.OpReturn:
			_, srcReg := words[pc+1], words[pc+2]
			return st.getReg(srcReg), nil

		case vmopcode.OpRestoreReg:
			pc += 2

		case vmopcode.OpAllocMemory:
			dst, size := words[pc+1], words[pc+2]
			st.setReg(dst, st.alloc(size))
			pc += 3

		case vmopcode.OpLea:
			pc += 2

		default:
			return 0, &ExecError{SoName: st.soName, Offset: st.fn.Record.FunctionOffset, PC: pc, Reason: "unknown opcode"}
		}
	}
}

// width returns t's bit width, defaulting to 64 for struct-kind types
// (vmtype.Type leaves WidthBits unset for those; field accesses never
// target a struct-typed slot directly).
func width(t *vmtype.Type) int {
	if t.WidthBits == 0 {
		return 64
	}
	return t.WidthBits
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// signExtend sign-extends the low fromWidth bits of v and truncates the
// result to toWidth bits.
func signExtend(v uint64, fromWidth, toWidth int) uint64 {
	if fromWidth <= 0 || fromWidth >= 64 {
		return maskWidth(v, toWidth)
	}
	shift := uint(64 - fromWidth)
	sx := uint64(int64(v<<shift) >> shift)
	return maskWidth(sx, toWidth)
}
