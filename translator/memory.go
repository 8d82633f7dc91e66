package translator

import "github.com/xyproto/vmarmcore/vmopcode"

// dispatchMemory lowers the memory domain (loads, stores, pairs, atomics),
// grounded in
// original_source/VmProtect/modules/elfkit/core/zInstMemory.cpp.
func (tr *translationState) dispatchMemory(in inst) (bool, error) {
	switch in.Mnemonic {
	case "LDR", "LDRB", "LDRH", "LDRSB", "LDRSH", "LDRSW":
		return tr.emitLoadImm12(in), nil
	case "LDUR", "LDURB", "LDURH", "LDURSB", "LDURSH", "LDURSW":
		return tr.emitLoadUnscaled(in), nil
	case "STR", "STRB", "STRH":
		return tr.emitStoreImm12(in), nil
	case "STUR", "STURB", "STURH":
		return tr.emitStoreUnscaled(in), nil
	case "LDP":
		return tr.emitLdp(in), nil
	case "STP":
		return tr.emitStp(in), nil
	case "LDAR", "LDARB", "LDARH", "LDAXR", "LDXR":
		return tr.emitAtomicLoad(in), nil
	case "STLR", "STLRB", "STLRH", "STLXR", "STXR":
		return tr.emitAtomicStore(in), nil
	}
	return false, nil
}

func widthAndSignFromMnemonic(mnemonic string) (widthBits uint32, signed bool, widenToX bool) {
	switch mnemonic {
	case "LDR", "STR", "LDUR", "STUR":
		return 64, false, false
	case "LDRB", "STRB", "LDURB", "STURB":
		return 8, false, false
	case "LDRH", "STRH", "LDURH", "STURH":
		return 16, false, false
	case "LDRSB", "LDURSB":
		return 8, true, true
	case "LDRSH", "LDURSH":
		return 16, true, true
	case "LDRSW", "LDURSW":
		return 32, true, true
	}
	return 64, false, false
}

// memTypeTagFromOpcode reconstructs the access width from the raw size
// field. The 32- vs 64-bit LDR/STR/LDUR/STUR forms share a mnemonic and
// differ only there; the exclusive/acquire-release classes use it too.
func (tr *translationState) memTypeTagFromOpcode(size uint32) (widthBits uint32) {
	switch size {
	case 0:
		return 8
	case 1:
		return 16
	case 2:
		return 32
	default:
		return 64
	}
}

func (tr *translationState) emitLoadImm12(in inst) bool {
	size, _, imm12, rnIdx, rt := ldStImm12Fields(in.Word)
	scale := size
	offset := imm12 << scale
	return tr.emitLoad(in.Mnemonic, rnIdx, rt, offset, size)
}

func (tr *translationState) emitLoadUnscaled(in inst) bool {
	size, _, imm9, rnIdx, rt := ldStUnscaledFields(in.Word)
	return tr.emitLoad(in.Mnemonic, rnIdx, rt, uint64(imm9), size)
}

func (tr *translationState) emitLoad(mnemonic string, rnArch, rtArch uint32, offset uint64, size uint32) bool {
	widthBits, signed, widenToX := widthAndSignFromMnemonic(mnemonic)
	if mnemonic == "LDR" || mnemonic == "LDUR" {
		widthBits = tr.memTypeTagFromOpcode(size)
	}
	base := tr.regs.getOrAdd(rnArch)
	dst := tr.regs.getOrAdd(rtArch)
	typeIdx := tr.types.forWidthSigned(int(widthBits), signed)
	if widthBits == 32 && !signed {
		typeIdx = tr.types.forWidthSigned(32, false)
	}
	tr.emit(vmopcode.OpGetField, typeIdx, base, uint32(offset), dst)
	if widenToX {
		tr.emit(vmopcode.OpSignExtend, widthBits, 64, dst, dst)
	} else if widthBits < 32 {
		tr.emit(vmopcode.OpBinaryImm, uint32(vmopcode.BinAnd), typeIdx, dst, (uint32(1)<<widthBits)-1, dst)
	}
	return true
}

func (tr *translationState) emitStoreImm12(in inst) bool {
	size, _, imm12, rnIdx, rt := ldStImm12Fields(in.Word)
	offset := imm12 << size
	return tr.emitStore(in.Mnemonic, rnIdx, rt, offset, size)
}

func (tr *translationState) emitStoreUnscaled(in inst) bool {
	size, _, imm9, rnIdx, rt := ldStUnscaledFields(in.Word)
	return tr.emitStore(in.Mnemonic, rnIdx, rt, uint64(imm9), size)
}

func (tr *translationState) emitStore(mnemonic string, rnArch, rtArch uint32, offset uint64, size uint32) bool {
	widthBits, _, _ := widthAndSignFromMnemonic(mnemonic)
	if mnemonic == "STR" || mnemonic == "STUR" {
		widthBits = tr.memTypeTagFromOpcode(size)
	}
	base := tr.regs.getOrAdd(rnArch)
	typeIdx := tr.types.forWidthSigned(int(widthBits), false)

	valueReg := vmopcode.ValueSentinel
	if !isZeroReg(rtArch) {
		valueReg = tr.regs.getOrAdd(rtArch)
	}
	tr.emit(vmopcode.OpSetField, typeIdx, base, uint32(offset), valueReg)
	return true
}

func (tr *translationState) emitLdp(in inst) bool {
	opc, _, imm7, rt2Arch, rnArch, rtArch := ldpStpFields(in.Word)
	is64 := opc == 0b10
	pairSize := uint64(4)
	widthBits := uint32(32)
	if is64 {
		pairSize = 8
		widthBits = 64
	}
	off := uint64(imm7) * pairSize
	base := tr.regs.getOrAdd(rnArch)
	typeIdx := tr.types.forWidthSigned(int(widthBits), true)

	dst1 := tr.regs.getOrAdd(rtArch)
	tr.emit(vmopcode.OpGetField, typeIdx, base, uint32(off), dst1)
	dst2 := tr.regs.getOrAdd(rt2Arch)
	tr.emit(vmopcode.OpGetField, typeIdx, base, uint32(off+pairSize), dst2)
	return true
}

func (tr *translationState) emitStp(in inst) bool {
	opc, _, imm7, rt2Arch, rnArch, rtArch := ldpStpFields(in.Word)
	is64 := opc == 0b10
	pairSize := uint64(4)
	widthBits := uint32(32)
	if is64 {
		pairSize = 8
		widthBits = 64
	}
	off := uint64(imm7) * pairSize
	base := tr.regs.getOrAdd(rnArch)
	typeIdx := tr.types.forWidthSigned(int(widthBits), false)

	value1 := vmopcode.ValueSentinel
	if !isZeroReg(rtArch) {
		value1 = tr.regs.getOrAdd(rtArch)
	}
	tr.emit(vmopcode.OpSetField, typeIdx, base, uint32(off), value1)

	value2 := vmopcode.ValueSentinel
	if !isZeroReg(rt2Arch) {
		value2 = tr.regs.getOrAdd(rt2Arch)
	}
	tr.emit(vmopcode.OpSetField, typeIdx, base, uint32(off+pairSize), value2)
	return true
}

func (tr *translationState) emitAtomicLoad(in inst) bool {
	size, _, _, _, _, rnArch, rtArch := exclusiveFields(in.Word)
	order := vmopcode.OrderRelaxed
	switch in.Mnemonic {
	case "LDAR", "LDAXR", "LDARB", "LDARH":
		order = vmopcode.OrderAcquire
	}
	widthBits := tr.memTypeTagFromOpcode(size)
	base := tr.regs.getOrAdd(rnArch)
	dst := tr.regs.getOrAdd(rtArch)
	typeIdx := tr.types.forWidthSigned(int(widthBits), false)
	tr.emit(vmopcode.OpAtomicLoad, typeIdx, base, 0, uint32(order), dst)
	return true
}

func (tr *translationState) emitAtomicStore(in inst) bool {
	size, _, _, _, _, rnArch, rtArch := exclusiveFields(in.Word)
	order := vmopcode.OrderRelaxed
	switch in.Mnemonic {
	case "STLR", "STLXR", "STLRB", "STLRH":
		order = vmopcode.OrderRelease
	}
	widthBits := tr.memTypeTagFromOpcode(size)
	base := tr.regs.getOrAdd(rnArch)
	typeIdx := tr.types.forWidthSigned(int(widthBits), false)

	valueReg := vmopcode.ValueSentinel
	if !isZeroReg(rtArch) {
		valueReg = tr.regs.getOrAdd(rtArch)
	}
	tr.emit(vmopcode.OpAtomicStore, typeIdx, base, 0, valueReg, uint32(order))

	// STXR/STLXR also write an exclusive-store status register, always
	// zero in this model (spec.md §4.3).
	if in.Mnemonic == "STXR" || in.Mnemonic == "STLXR" {
		statusArch := bits(in.Word, 20, 16)
		status := tr.regs.getOrAdd(statusArch)
		tr.emit(vmopcode.OpLoadImm, status, 0)
	}
	return true
}
