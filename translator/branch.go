package translator

import "github.com/xyproto/vmarmcore/vmopcode"

// dispatchBranch lowers the branch domain (unconditional/conditional
// branches, compare/test-and-branch, conditional select, BL/BLR/RET/BR),
// grounded in
// original_source/VmProtect/modules/elfkit/core/zInstBranch.cpp.
//
// Branch-class instructions are distinguished by their top-level encoding
// group rather than by mnemonic text, since that classification is a
// stable architectural fact independent of any particular disassembler's
// naming.
func (tr *translationState) dispatchBranch(in inst) (bool, error) {
	w := in.Word

	if bits(w, 31, 26) == 0b000101 {
		target := uint64(int64(in.Addr) + branchImm26(w))
		id := tr.branchID(target)
		tr.emit(vmopcode.OpBranch, id)
		return true, nil
	}
	if bits(w, 31, 26) == 0b100101 {
		target := uint64(int64(in.Addr) + branchImm26(w))
		idx := tr.blTarget(target)
		tr.emit(vmopcode.OpBL, idx)
		return true, nil
	}
	if bits(w, 31, 24) == 0b01010100 && bit(w, 4) == 0 {
		imm19, cond := condBranchFields(w)
		target := uint64(int64(in.Addr) + imm19)
		id := tr.branchID(target)
		tr.emit(vmopcode.OpBranchIfCC, cond, id)
		return true, nil
	}
	if bits(w, 30, 25) == 0b011010 {
		return tr.emitCompareBranch(in), nil
	}
	if bits(w, 30, 25) == 0b011011 {
		return tr.emitTestBranch(in), nil
	}
	if bits(w, 28, 21) == 0b11010100 && bit(w, 29) == 0 {
		return tr.emitCondSelect(in), nil
	}
	if bits(w, 31, 25) == 0b1101011 {
		return tr.emitBranchRegClass(in), nil
	}
	return false, nil
}

func (tr *translationState) emitCompareBranch(in inst) bool {
	w := in.Word
	rt, imm19 := compareBranchFields(w)
	isNZ := bit(w, 24) == 1
	isW := isWFromSF(w)

	if isZeroReg(rt) {
		target := uint64(int64(in.Addr) + imm19)
		if !isNZ {
			id := tr.branchID(target)
			tr.emit(vmopcode.OpBranch, id)
		} else {
			tr.emit(vmopcode.OpNop)
		}
		return true
	}

	src := tr.regs.getOrAdd(rt)
	tmp := tr.regs.getOrAdd(tempX16)
	typeIdx := tr.types.forRegWidth(isW)
	tr.emit(vmopcode.OpLoadImm, tmp, 0)
	cmpDst := tr.regs.getOrAdd(tempX17)
	tr.emit(vmopcode.OpCmp, typeIdx, src, tmp, cmpDst, 0)
	cc := vmopcode.CondEQ
	if isNZ {
		cc = vmopcode.CondNE
	}
	target := uint64(int64(in.Addr) + imm19)
	id := tr.branchID(target)
	tr.emit(vmopcode.OpBranchIfCC, uint32(cc), id)
	return true
}

func (tr *translationState) emitTestBranch(in inst) bool {
	w := in.Word
	rt, bitPos, imm14 := testBranchFields(w)
	isNZ := bit(w, 24) == 1
	isW := bitPos < 32 && bit(w, 31) == 0

	src := tr.regs.getOrAdd(rt)
	typeIdx := tr.types.forRegWidthUnsigned(isW)
	masked := tr.regs.getOrAdd(tempX16)
	tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinLsr), typeIdx, src, bitPos, masked)
	tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAnd)|uint32(vmopcode.BinUpdateFlags), typeIdx, masked, 1, masked)

	cc := vmopcode.CondEQ
	if isNZ {
		cc = vmopcode.CondNE
	}
	target := uint64(int64(in.Addr) + imm14)
	id := tr.branchID(target)
	tr.emit(vmopcode.OpBranchIfCC, uint32(cc), id)
	return true
}

// emitCondSelect lowers CSEL/CSINC/CSINV/CSNEG (and the CSET/CSETM
// all-zero-operand aliases arm64asm folds into them): assign_true;
// branch-if-cc skip; assign_false[+1 | ~ | neg].
func (tr *translationState) emitCondSelect(in inst) bool {
	w := in.Word
	rdIdx, rnIdx, rmIdx, cond, op2 := condSelectFields(w)
	isW := isWFromSF(w)
	isInvert := bit(w, 30) == 1

	dst := tr.regs.getOrAdd(rdIdx)
	trueVal := tr.regs.getOrAdd(rnIdx)
	falseVal := tr.regs.getOrAdd(rmIdx)
	typeIdx := tr.types.forRegWidth(isW)

	tr.emit(vmopcode.OpMov, trueVal, dst)
	skip := tr.branchID(in.Addr + 4)
	tr.emit(vmopcode.OpBranchIfCC, cond, skip)

	switch {
	case !isInvert && op2 == 0b01: // CSINC
		tmp := tr.regs.getOrAdd(tempX16)
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAdd), typeIdx, falseVal, 1, tmp)
		tr.emit(vmopcode.OpMov, tmp, dst)
	case isInvert && op2 == 0b00: // CSINV
		tmp := tr.regs.getOrAdd(tempX16)
		tr.emit(vmopcode.OpUnary, uint32(vmopcode.UnaryNot), typeIdx, falseVal, tmp)
		tr.emit(vmopcode.OpMov, tmp, dst)
	case isInvert && op2 == 0b01: // CSNEG
		tmp := tr.regs.getOrAdd(tempX16)
		tr.emit(vmopcode.OpUnary, uint32(vmopcode.UnaryNeg), typeIdx, falseVal, tmp)
		tr.emit(vmopcode.OpMov, tmp, dst)
	default: // CSEL
		tr.emit(vmopcode.OpMov, falseVal, dst)
	}

	return true
}

// emitBranchRegClass handles RET/BR/BLR: RET and BR LR lower to a
// function return; other BR xN is an indirect jump; BLR xN is an
// indirect call with six argument registers.
func (tr *translationState) emitBranchRegClass(in inst) bool {
	w := in.Word
	opc := bits(w, 24, 21)
	rn := bits(w, 9, 5)

	switch opc {
	case 0b0010: // RET
		tr.emit(vmopcode.OpReturn, 1, tr.regs.getOrAdd(0))
		return true
	case 0b0000: // BR
		if rn == regLR {
			tr.emit(vmopcode.OpReturn, 1, tr.regs.getOrAdd(0))
			return true
		}
		target := tr.regs.getOrAdd(rn)
		tr.emit(vmopcode.OpBranchReg, target)
		return true
	case 0b0001: // BLR
		target := tr.regs.getOrAdd(rn)
		args := []uint32{0, 6, 1, tr.regs.getOrAdd(0), target}
		for i := uint32(0); i <= 5; i++ {
			args = append(args, tr.regs.getOrAdd(i))
		}
		tr.emit(vmopcode.OpCall, args...)
		return true
	}
	return false
}
