package translator

import "github.com/xyproto/vmarmcore/vmopcode"

// dispatchLogic lowers the logic domain (bitwise ops, shifts, extends,
// bitfield instructions, MOV family), grounded in
// original_source/VmProtect/modules/elfkit/core/zInstLogic.cpp.
func (tr *translationState) dispatchLogic(in inst) (bool, error) {
	switch in.Mnemonic {
	case "AND", "ANDS", "ORR", "EOR", "BIC", "BICS":
		return tr.emitLogicalBinary(in), nil
	case "EON", "ORN":
		return tr.emitNotRhsBinary(in), nil
	case "MOVZ", "MOVN":
		return tr.emitMovWideImm(in), nil
	case "MOVK":
		return tr.emitMovk(in), nil
	case "MOV":
		return tr.emitMovReg(in), nil
	case "LSL", "LSLV":
		return tr.emitShift(in, vmopcode.BinShl), nil
	case "LSR", "LSRV":
		return tr.emitShift(in, vmopcode.BinLsr), nil
	case "ASR", "ASRV":
		return tr.emitShift(in, vmopcode.BinAsr), nil
	case "ROR", "RORV":
		return tr.emitRor(in), nil
	case "CLZ":
		return tr.emitClz(in), nil
	case "SXTB", "SXTH", "SXTW", "UXTB", "UXTH", "UXTW":
		return tr.emitExtend(in), nil
	case "UBFX", "SBFX", "UBFIZ", "SBFIZ", "UBFM", "SBFM", "BFM":
		return tr.emitBitfield(in), nil
	case "EXTR":
		return tr.emitExtr(in), nil
	case "REV", "REV32":
		tr.emitUnary(in, vmopcode.UnaryRev)
		return true, nil
	case "REV16":
		tr.emitUnary(in, vmopcode.UnaryRev16)
		return true, nil
	case "MVN":
		tr.emitUnary(in, vmopcode.UnaryNot)
		return true, nil
	case "NEG", "NEGS":
		tr.emitUnary(in, vmopcode.UnaryNeg)
		return true, nil
	}
	return false, nil
}

const binUpdateFlagsConst = uint32(vmopcode.BinUpdateFlags)

func (tr *translationState) emitLogicalBinary(in inst) bool {
	isW := isWFromSF(in.Word)
	updateFlags := in.Mnemonic == "ANDS" || in.Mnemonic == "BICS"
	var op vmopcode.BinOp
	switch in.Mnemonic {
	case "AND", "ANDS":
		op = vmopcode.BinAnd
	case "ORR":
		op = vmopcode.BinOr
	case "EOR":
		op = vmopcode.BinXor
	case "BIC", "BICS":
		op = vmopcode.BinAnd // BIC = AND with inverted rhs; see emitNotRhsBinary for register form.
	}
	if updateFlags {
		op |= vmopcode.BinUpdateFlags
	}

	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	typeIdx := tr.types.forRegWidthUnsigned(isW)

	isImmediateClass := bits(in.Word, 28, 23) == 0b100100
	if isImmediateClass {
		n, immr, imms := logicalImmField(in.Word)
		imm := logicalImmediateValue(n, immr, imms, !isW)
		tr.emit(vmopcode.OpBinaryImm, uint32(op), typeIdx, lhs, uint32(imm), dst)
		return true
	}

	if in.Mnemonic == "BIC" || in.Mnemonic == "BICS" {
		return tr.emitNotRhsBinary(in)
	}

	rhsArch := rm(in.Word)
	if isZeroReg(rhsArch) && in.Mnemonic == "ORR" {
		// ORR dst, wN, wzr degenerates to a MOV of wN. The
		// ORR dst, wzr, wN form decodes as the MOV alias and is lowered
		// by emitMovReg.
		src := tr.regs.getOrAdd(bits(in.Word, 9, 5))
		tr.emit(vmopcode.OpMov, src, dst)
		return true
	}
	rhs := tr.regs.getOrAdd(rhsArch)
	tr.emit(vmopcode.OpBinary, uint32(op), typeIdx, lhs, rhs, dst)
	return true
}

// emitNotRhsBinary lowers BIC/BICS/ORN/EON: dst = lhs <op> ^rhs, grounded
// in tryEmitNotRhsBinaryLike's mask+xor+combine sequence using x16/x17.
func (tr *translationState) emitNotRhsBinary(in inst) bool {
	isW := isWFromSF(in.Word)
	updateFlags := in.Mnemonic == "BICS"
	var combine vmopcode.BinOp
	switch in.Mnemonic {
	case "BIC", "BICS":
		combine = vmopcode.BinAnd
	case "ORN":
		combine = vmopcode.BinOr
	case "EON":
		combine = vmopcode.BinXor
	}
	if updateFlags {
		combine |= vmopcode.BinUpdateFlags
	}

	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	rhs := tr.regs.getOrAdd(rm(in.Word))
	typeIdx := tr.types.forRegWidthUnsigned(isW)

	mask := uint32(0xffffffff)
	var mask64 uint64 = 0xffffffffffffffff
	tmpMask := tr.regs.getOrAdd(tempX16)
	tmpNot := tr.regs.getOrAdd(tempX17)
	if isW {
		tr.emit(vmopcode.OpLoadImm, tmpMask, mask)
	} else {
		tr.emitLoadImm64(tmpMask, mask64)
	}
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinXor), typeIdx, rhs, tmpMask, tmpNot)
	tr.emit(vmopcode.OpBinary, uint32(combine), typeIdx, lhs, tmpNot, dst)
	return true
}

func (tr *translationState) emitMovWideImm(in inst) bool {
	rdIdx, imm16, shift, _ := movWideFields(in.Word)
	dst := tr.regs.getOrAdd(rdIdx)
	val := imm16 << shift
	if in.Mnemonic == "MOVN" {
		val = ^val
		if isWFromSF(in.Word) {
			val &= 0xffffffff
		}
	}
	tr.emitLoadImm64(dst, val)
	return true
}

// emitMovk implements MOVK as load-mask+AND+load-value+OR using temporaries
// x16/x17, matching the original's ARM64_INS_MOVK case exactly.
func (tr *translationState) emitMovk(in inst) bool {
	rdIdx, imm16, shift, _ := movWideFields(in.Word)
	isW := isWFromSF(in.Word)
	dst := tr.regs.getOrAdd(rdIdx)

	immVal := imm16 << shift
	mask := ^(uint64(0xffff) << shift)
	if isW {
		immVal &= 0xffffffff
		mask &= 0xffffffff
	}

	tmp1 := tr.regs.getOrAdd(tempX16)
	tmp2 := tr.regs.getOrAdd(tempX17)
	typeIdx := tr.types.forWidthSigned(64, true)

	tr.emitLoadImm64(tmp1, mask)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinAnd), typeIdx, dst, tmp1, dst)
	tr.emitLoadImm64(tmp2, immVal)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinOr), typeIdx, dst, tmp2, dst)
	return true
}

func (tr *translationState) emitMovReg(in inst) bool {
	dst := tr.regs.getOrAdd(rd(in.Word))
	src := tr.regs.getOrAdd(rm(in.Word))
	tr.emit(vmopcode.OpMov, src, dst)
	return true
}

func (tr *translationState) emitShift(in inst, op vmopcode.BinOp) bool {
	isW := isWFromSF(in.Word)
	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	typeIdx := tr.types.forRegWidthUnsigned(isW)

	isImmediateClass := bits(in.Word, 28, 23) == 0b100110
	if isImmediateClass {
		rdIdx, rnIdx, immr, imms := bitfieldFields(in.Word)
		_ = rdIdx
		_ = rnIdx
		width := uint32(64)
		if isW {
			width = 32
		}
		var amount uint32
		switch op {
		case vmopcode.BinLsr, vmopcode.BinAsr:
			amount = immr
		default: // LSL is encoded as UBFM with imms = width-1-shift
			amount = width - 1 - imms
		}
		tr.emit(vmopcode.OpBinaryImm, uint32(op), typeIdx, lhs, amount, dst)
		return true
	}

	rhs := tr.regs.getOrAdd(rm(in.Word))
	tr.emit(vmopcode.OpBinary, uint32(op), typeIdx, lhs, rhs, dst)
	return true
}

func (tr *translationState) emitRor(in inst) bool {
	isW := isWFromSF(in.Word)
	dst := tr.regs.getOrAdd(rd(in.Word))
	lhs := tr.regs.getOrAdd(rn(in.Word))
	typeIdx := tr.types.forRegWidthUnsigned(isW)
	width := uint32(64)
	if isW {
		width = 32
	}

	// ROR Rd, Rs, #shift is encoded as the EXTR Rd, Rs, Rs, #shift alias.
	if bits(in.Word, 28, 23) == 0b100111 {
		_, _, _, shift := extrFields(in.Word)
		tmpHi := tr.regs.getOrAdd(tempX16)
		tmpLo := tr.regs.getOrAdd(tempX17)
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinShl), typeIdx, lhs, width-shift, tmpHi)
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinLsr), typeIdx, lhs, shift, tmpLo)
		tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinOr), typeIdx, tmpHi, tmpLo, dst)
		return true
	}

	// RORV (register-amount rotate): lo = lhs >> rhs; hi = lhs <<
	// (width-rhs); dst = lo | hi, all computed at runtime since the
	// rotate amount is itself a register value.
	rhs := tr.regs.getOrAdd(rm(in.Word))
	widthReg := tr.regs.getOrAdd(14)
	tr.emit(vmopcode.OpLoadImm, widthReg, width)
	complement := tr.regs.getOrAdd(tempX15)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinSub), typeIdx, widthReg, rhs, complement)
	lo := tr.regs.getOrAdd(tempX16)
	hi := tr.regs.getOrAdd(tempX17)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinLsr), typeIdx, lhs, rhs, lo)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinShl), typeIdx, lhs, complement, hi)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinOr), typeIdx, lo, hi, dst)
	return true
}

func (tr *translationState) emitClz(in inst) bool {
	isW := isWFromSF(in.Word)
	dst := tr.regs.getOrAdd(rd(in.Word))
	src := tr.regs.getOrAdd(rn(in.Word))
	typeIdx := tr.types.forRegWidthUnsigned(isW)
	tr.emit(vmopcode.OpUnary, uint32(vmopcode.UnaryCLZ), typeIdx, src, dst)
	return true
}

func (tr *translationState) emitExtend(in inst) bool {
	dst := tr.regs.getOrAdd(rd(in.Word))
	src := tr.regs.getOrAdd(rn(in.Word))
	var srcWidth uint32
	var signedSrc bool
	switch in.Mnemonic {
	case "SXTB":
		srcWidth, signedSrc = 8, true
	case "SXTH":
		srcWidth, signedSrc = 16, true
	case "SXTW":
		srcWidth, signedSrc = 32, true
	case "UXTB":
		srcWidth, signedSrc = 8, false
	case "UXTH":
		srcWidth, signedSrc = 16, false
	case "UXTW":
		srcWidth, signedSrc = 32, false
	}
	if signedSrc {
		tr.emit(vmopcode.OpSignExtend, srcWidth, 64, src, dst)
	} else {
		typeIdx := tr.types.forWidthSigned(64, false)
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAnd), typeIdx, src, (uint32(1)<<srcWidth)-1, dst)
	}
	return true
}

// emitBitfield covers UBFX/SBFX/UBFIZ/SBFIZ and the generic UBFM/SBFM/BFM
// moves, lowering each to a shift-extract sequence in x16/x17.
func (tr *translationState) emitBitfield(in inst) bool {
	isW := isWFromSF(in.Word)
	width := uint32(64)
	if isW {
		width = 32
	}
	dst := tr.regs.getOrAdd(rd(in.Word))
	src := tr.regs.getOrAdd(rn(in.Word))
	_, _, immr, imms := bitfieldFields(in.Word)
	typeIdx := tr.types.forRegWidthUnsigned(isW)

	signedExtract := in.Mnemonic == "SBFX" || in.Mnemonic == "SBFM" || in.Mnemonic == "SBFIZ"

	if in.Mnemonic == "UBFX" || in.Mnemonic == "SBFX" {
		lsb := immr
		extractWidth := imms - immr + 1
		tmp := tr.regs.getOrAdd(tempX16)
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinLsr), typeIdx, src, lsb, tmp)
		if signedExtract {
			tr.emit(vmopcode.OpSignExtend, extractWidth, width, tmp, dst)
		} else {
			tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAnd), typeIdx, tmp, (uint32(1)<<extractWidth)-1, dst)
		}
		return true
	}

	// UBFIZ/SBFIZ/generic UBFM/SBFM: mask then shift using immr/imms as
	// encoded: keep the low imms+1 source bits (sign-extended for the
	// signed forms), then shift them left by (width-immr)%width.
	lsb := (width - immr) % width
	tmp := tr.regs.getOrAdd(tempX17)
	field := src
	if fieldWidth := imms + 1; fieldWidth < width {
		drop := width - fieldWidth
		right := vmopcode.BinLsr
		if signedExtract {
			right = vmopcode.BinAsr
		}
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinShl), typeIdx, src, drop, tmp)
		tr.emit(vmopcode.OpBinaryImm, uint32(right), typeIdx, tmp, drop, tmp)
		field = tmp
	}
	tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinShl), typeIdx, field, lsb, tmp)
	tr.emit(vmopcode.OpMov, tmp, dst)
	return true
}

// emitExtr lowers EXTR dst, hi, lo, #lsb as (hi << (bw-lsb)) | (lo >>
// lsb), masked to 32 bits for W targets, matching tryEmitExtrLike.
func (tr *translationState) emitExtr(in inst) bool {
	isW := isWFromSF(in.Word)
	width := uint32(64)
	if isW {
		width = 32
	}
	dst := tr.regs.getOrAdd(rd(in.Word))
	hi := tr.regs.getOrAdd(rn(in.Word))
	lo := tr.regs.getOrAdd(rm(in.Word))
	_, _, _, lsb := extrFields(in.Word)
	lsb %= width
	typeIdx := tr.types.forRegWidthUnsigned(isW)

	if lsb == 0 {
		tr.emit(vmopcode.OpMov, lo, dst)
		return true
	}

	tmpLo := tr.regs.getOrAdd(tempX16)
	tmpHi := tr.regs.getOrAdd(tempX17)
	tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinLsr), typeIdx, lo, lsb, tmpLo)
	tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinShl), typeIdx, hi, width-lsb, tmpHi)
	tr.emit(vmopcode.OpBinary, uint32(vmopcode.BinOr), typeIdx, tmpLo, tmpHi, dst)
	if isW {
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAnd), typeIdx, dst, 0xffffffff, dst)
	}
	return true
}

func (tr *translationState) emitUnary(in inst, variant vmopcode.UnaryOp) {
	isW := isWFromSF(in.Word)
	dst := tr.regs.getOrAdd(rd(in.Word))
	src := tr.regs.getOrAdd(rn(in.Word))
	typeIdx := tr.types.forRegWidthUnsigned(isW)
	tr.emit(vmopcode.OpUnary, uint32(variant), typeIdx, src, dst)
}
