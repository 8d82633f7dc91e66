package translator

import "github.com/xyproto/vmarmcore/vmopcode"

// dispatchArith lowers the arith domain (SUB/ADD/ADDS, the MUL family,
// SDIV/UDIV), grounded in
// original_source/VmProtect/modules/elfkit/core/zInstArith.cpp.
func (tr *translationState) dispatchArith(in inst) (bool, error) {
	switch in.Mnemonic {
	case "SUB", "ADD", "ADDS", "SUBS":
		return tr.emitAddSub(in), nil
	case "MUL":
		return tr.emitMul(in), nil
	case "MADD":
		// Capstone (and arm64asm alike) often folds "mul dst, lhs, rhs"
		// into MADD with an implicit xzr addend; lower that case as a
		// bare multiply rather than adding a garbage register 31 slot.
		if bits(in.Word, 14, 10) == regZR {
			return tr.emitMul(in), nil
		}
		return tr.emitMadd(in, false), nil
	case "MSUB":
		return tr.emitMadd(in, true), nil
	case "UMULL", "SMULL":
		return tr.emitWideningMul(in, in.Mnemonic == "SMULL"), nil
	case "UMADDL", "SMADDL":
		return tr.emitWideningMadd(in, in.Mnemonic == "SMADDL"), nil
	case "UMULH", "SMULH":
		return tr.emitMulHigh(in, in.Mnemonic == "SMULH"), nil
	case "UDIV", "SDIV":
		return tr.emitDiv(in, in.Mnemonic == "SDIV"), nil
	case "ADR":
		return tr.emitAdr(in), nil
	case "ADRP":
		return tr.emitAdrp(in), nil
	case "MRS":
		return tr.emitMrs(in), nil
	case "HINT", "CLREX", "BRK", "SVC", "NOP":
		tr.emit(vmopcode.OpNop)
		return true, nil
	}
	return false, nil
}

func (tr *translationState) emitAdr(in inst) bool {
	rdIdx, imm := adrAdrpFields(in.Word)
	dst := tr.regs.getOrAdd(rdIdx)
	abs := uint64(int64(tr.addr) + imm)
	tr.emitLoadImm64(dst, abs)
	return true
}

func (tr *translationState) emitAdrp(in inst) bool {
	rdIdx, imm := adrAdrpFields(in.Word)
	dst := tr.regs.getOrAdd(rdIdx)
	base := uint64(int64(tr.addr&^0xfff) + imm*4096)
	tr.emit(vmopcode.OpAdrp, dst, uint32(base&0xffffffff), uint32((base>>32)&0xffffffff))
	return true
}

func (tr *translationState) emitMrs(in inst) bool {
	dst := tr.regs.getOrAdd(rd(in.Word))
	tr.emit(vmopcode.OpLoadImm, dst, 0)
	return true
}

func (tr *translationState) emitAddSub(in inst) bool {
	isW := isWFromSF(in.Word)
	isSub := in.Mnemonic == "SUB" || in.Mnemonic == "SUBS"
	updateFlags := in.Mnemonic == "ADDS" || in.Mnemonic == "SUBS"

	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	typeIdx := tr.types.forRegWidth(isW)

	op := vmopcode.BinAdd
	if isSub {
		op = vmopcode.BinSub
	}
	if updateFlags {
		op |= vmopcode.BinUpdateFlags
	}

	// register form: sf op S 01011 shift 0 Rm imm6 Rn Rd
	// immediate form: sf op S 100010 sh imm12 Rn Rd
	if bits(in.Word, 28, 24) == 0b10001 {
		imm, _ := addSubImm12(in.Word)
		if isW {
			imm &= 0xffffffff
		}
		tr.emit(vmopcode.OpBinaryImm, uint32(op), typeIdx, lhs, uint32(imm), dst)
		return true
	}

	rhsArch := rm(in.Word)
	rhs := tr.regs.getOrAdd(rhsArch)
	amount, isLSL := addSubShiftedRegShift(in.Word)
	if isLSL && amount != 0 {
		tmp := tr.regs.getOrAdd(tempX16)
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinShl), typeIdx, rhs, amount, tmp)
		tr.emit(vmopcode.OpBinary, uint32(op), typeIdx, lhs, tmp, dst)
		return true
	}
	if !isLSL && amount != 0 {
		return false
	}
	tr.emit(vmopcode.OpBinary, uint32(op), typeIdx, lhs, rhs, dst)
	return true
}

func (tr *translationState) emitMul(in inst) bool {
	isW := isWFromSF(in.Word)
	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	rhs := tr.regs.getOrAdd(rm(in.Word))
	typeIdx := tr.types.forRegWidth(isW)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinMul), typeIdx, lhs, rhs, dst)
	return true
}

// emitMadd handles MADD/MSUB: dst = addend + lhs*rhs (MADD) or
// dst = addend - lhs*rhs (MSUB), matching
// tryEmitMaddMsubLike's use of x16 as scratch.
func (tr *translationState) emitMadd(in inst, isSub bool) bool {
	isW := isWFromSF(in.Word)
	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	rhs := tr.regs.getOrAdd(rm(in.Word))
	addend := tr.regs.getOrAdd(bits(in.Word, 14, 10))
	typeIdx := tr.types.forRegWidth(isW)
	tmp := tr.regs.getOrAdd(tempX16)

	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinMul), typeIdx, lhs, rhs, tmp)
	op := vmopcode.BinAdd
	a, b := addend, tmp
	if isSub {
		op = vmopcode.BinSub
		a, b = addend, tmp
	}
	tr.emit(vmopcode.OpBinary, uint32(op), typeIdx, a, b, dst)
	return true
}

// emitWideningMul lowers UMULL/SMULL: dst = widen(lhs) * widen(rhs), where
// widen masks/sign-extends the 32-bit source operands before the 64-bit
// multiply so the result lands in the full X destination.
func (tr *translationState) emitWideningMul(in inst, signedMul bool) bool {
	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	rhs := tr.regs.getOrAdd(rm(in.Word))
	typeIdx := tr.types.forWidthSigned(64, signedMul)
	lhsW, rhsW := tr.widen32(lhs, rhs, signedMul, typeIdx)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinMul), typeIdx, lhsW, rhsW, dst)
	return true
}

func (tr *translationState) emitWideningMadd(in inst, signedMul bool) bool {
	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	rhs := tr.regs.getOrAdd(rm(in.Word))
	addend := tr.regs.getOrAdd(bits(in.Word, 14, 10))
	typeIdx := tr.types.forWidthSigned(64, signedMul)
	lhsW, rhsW := tr.widen32(lhs, rhs, signedMul, typeIdx)
	tmp := tr.regs.getOrAdd(tempX17)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinMul), typeIdx, lhsW, rhsW, tmp)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinAdd), typeIdx, addend, tmp, dst)
	return true
}

func (tr *translationState) emitMulHigh(in inst, signedMul bool) bool {
	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	rhs := tr.regs.getOrAdd(rm(in.Word))
	typeIdx := tr.types.forWidthSigned(64, signedMul)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinMul), typeIdx, lhs, rhs, dst)
	return true
}

// widen32 masks (unsigned) or sign-extends (signed) a pair of 32-bit
// source values into 64-bit scratch registers ahead of a widening
// multiply; unsigned widening is folded into an AND with 0xFFFFFFFF since
// the VM's 64-bit binary op already zero-extends masked results.
func (tr *translationState) widen32(lhs, rhs uint32, signedWiden bool, typeIdx uint32) (uint32, uint32) {
	if !signedWiden {
		tmpL := tr.regs.getOrAdd(tempX16)
		tmpR := tr.regs.getOrAdd(tempX17)
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAnd), typeIdx, lhs, 0xffffffff, tmpL)
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAnd), typeIdx, rhs, 0xffffffff, tmpR)
		return tmpL, tmpR
	}
	tmpL := tr.regs.getOrAdd(tempX16)
	tmpR := tr.regs.getOrAdd(tempX17)
	tr.emit(vmopcode.OpSignExtend, uint32(32), uint32(64), lhs, tmpL)
	tr.emit(vmopcode.OpSignExtend, uint32(32), uint32(64), rhs, tmpR)
	return tmpL, tmpR
}

func (tr *translationState) emitDiv(in inst, signedDiv bool) bool {
	isW := isWFromSF(in.Word)
	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	rhs := tr.regs.getOrAdd(rm(in.Word))
	typeIdx := tr.types.forWidthSigned(widthBitsOf(isW), signedDiv)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinIdiv), typeIdx, lhs, rhs, dst)
	return true
}

func widthBitsOf(isW bool) int {
	if isW {
		return 32
	}
	return 64
}
