package translator

import (
	"encoding/binary"

	"golang.org/x/arch/arm64/arm64asm"
)

// inst is one decoded ARM64 instruction: the raw 32-bit word (for this
// package's own field extraction, grounded in the AArch64 encoding tables)
// plus the mnemonic golang.org/x/arch/arm64/arm64asm assigns it, used the
// way the original used Capstone's instruction id — as a fixed-contract
// classifier the domain dispatchers switch on.
type inst struct {
	Addr     uint64
	Word     uint32
	Mnemonic string
}

// decodeOne decodes the 4 bytes at code[0:4]. Every A64 instruction is
// exactly 4 bytes, so callers step forward by 4 regardless of decode
// success; a decode failure still yields the raw word, letting domain
// dispatch fall back to structural bit tests for aliases arm64asm folds
// into a generic mnemonic.
func decodeOne(code []byte, addr uint64) inst {
	word := binary.LittleEndian.Uint32(code)
	mnemonic := ""
	if in, err := arm64asm.Decode(code); err == nil {
		mnemonic = in.Op.String()
	}
	return inst{Addr: addr, Word: word, Mnemonic: mnemonic}
}

// bits extracts the inclusive [hi:lo] bit field from w.
func bits(w uint32, hi, lo uint) uint32 {
	width := hi - lo + 1
	mask := uint32(1)<<width - 1
	return (w >> lo) & mask
}

func bit(w uint32, n uint) uint32 { return bits(w, n, n) }

func signExtend(v uint32, bitsWide uint) int64 {
	shift := 32 - bitsWide
	return int64(int32(v<<shift)) >> shift
}

func signExtend64(v uint64, bitsWide uint) int64 {
	shift := 64 - bitsWide
	return int64(v<<shift) >> shift
}

// isWFromSF reports whether the instruction's sf bit (bit 31) selects the
// 32-bit (W) register form. Load/store widths come from their size field
// instead.
func isWFromSF(w uint32) bool { return bit(w, 31) == 0 }

// Common field extractors for the add/sub (shifted/immediate register)
// instruction classes: sf(31) op(30) S(29) ... Rd(4:0) Rn(9:5).
func rd(w uint32) uint32 { return bits(w, 4, 0) }
func rn(w uint32) uint32 { return bits(w, 9, 5) }
func rm(w uint32) uint32 { return bits(w, 20, 16) }

// addSubImm12 extracts the immediate (already shifted left by 12 when sh
// is set) and the sh flag from the add/sub (immediate) encoding:
// sf op S 100010 sh(1) imm12(12) Rn(5) Rd(5).
func addSubImm12(w uint32) (imm uint64, shift12 bool) {
	imm = uint64(bits(w, 21, 10))
	shift12 = bit(w, 22) == 1
	if shift12 {
		imm <<= 12
	}
	return imm, shift12
}

// addSubShiftedRegShift extracts the LSL-only shift amount from the
// add/sub (shifted register) encoding: sf op S 01011 shift(2) 0 Rm(5)
// imm6(6) Rn(5) Rd(5). Only LSL (shift==00) is folded per spec.md §4.3;
// other shift kinds are left unhandled by the caller.
func addSubShiftedRegShift(w uint32) (amount uint32, isLSL bool) {
	kind := bits(w, 23, 22)
	amount = bits(w, 15, 10)
	return amount, kind == 0
}

// logicalImmField extracts the raw logical-immediate fields (N, immr, imms
// at bits 22, 21:16, 15:10); logicalImmediateValue turns them into the
// bitmask value.
func logicalImmField(w uint32) (n, immr, imms uint32) {
	return bit(w, 22), bits(w, 21, 16), bits(w, 15, 10)
}

// logicalImmediateValue implements the AArch64 DecodeBitMasks algorithm
// for the 32/64-bit logical-immediate encoding.
func logicalImmediateValue(n, immr, imms uint32, is64 bool) uint64 {
	var length uint
	combined := (n << 6) | (^imms & 0x3f)
	for length = 6; length > 0; length-- {
		if combined&(1<<length) != 0 {
			break
		}
	}
	if length == 0 {
		return 0
	}
	esize := uint32(1) << length
	levels := esize - 1
	s := imms & levels
	r := immr & levels
	d := s // rotation handled below

	welem := uint64(1)<<(s+1) - 1
	if s == esize-1 {
		welem = uint64(1)<<esize - 1
	}

	rotated := ror64(welem, uint(r), uint(esize))
	_ = d

	width := uint(64)
	if !is64 {
		width = 32
	}
	var result uint64
	for i := uint(0); i < width; i += uint(esize) {
		result |= (rotated & (uint64(1)<<esize - 1)) << i
	}
	if !is64 {
		result &= 0xffffffff
	}
	return result
}

func ror64(v uint64, amount, width uint) uint64 {
	if amount == 0 {
		return v
	}
	mask := uint64(1)<<width - 1
	v &= mask
	return ((v >> amount) | (v << (width - amount))) & mask
}

// movWideFields extracts (Rd, imm16, hw-shift, opc) from the MOVZ/MOVN/MOVK
// encoding: sf opc(2) 100101 hw(2) imm16(16) Rd(5).
func movWideFields(w uint32) (rdIdx uint32, imm16 uint64, shift uint32, opc uint32) {
	return rd(w), uint64(bits(w, 20, 5)), bits(w, 22, 21) * 16, bits(w, 30, 29)
}

// condBranchFields extracts (imm19, cond) from the B.cond encoding:
// 0101010 0 imm19(19) 0 cond(4).
func condBranchFields(w uint32) (imm19 int64, cond uint32) {
	return signExtend(bits(w, 23, 5), 19) * 4, bits(w, 3, 0)
}

// branchImm26 extracts the signed word-offset immediate shared by B/BL:
// op(1) 00101 imm26(26).
func branchImm26(w uint32) int64 {
	return signExtend(bits(w, 25, 0), 26) * 4
}

// compareBranchFields extracts (Rt, imm19) from CBZ/CBNZ: sf 011010 op
// imm19(19) Rt(5).
func compareBranchFields(w uint32) (rt uint32, imm19 int64) {
	return rd(w), signExtend(bits(w, 23, 5), 19) * 4
}

// testBranchFields extracts (Rt, bitPos, imm14) from TBZ/TBNZ: b5(1)
// 011011 op(1) b40(5) imm14(14) Rt(5).
func testBranchFields(w uint32) (rt uint32, bitPos uint32, imm14 int64) {
	b5 := bit(w, 31)
	b40 := bits(w, 23, 19)
	return rd(w), (b5 << 5) | b40, signExtend(bits(w, 18, 5), 14) * 4
}

// condSelectFields extracts (Rd, Rn, Rm, cond, op2) from the CSEL family: sf op
// S 11010100 Rm(5) cond(4) op2(2) Rn(5) Rd(5).
func condSelectFields(w uint32) (rdIdx, rnIdx, rmIdx, cond, op2 uint32) {
	return rd(w), rn(w), rm(w), bits(w, 15, 12), bits(w, 11, 10)
}

// ldStImm12Fields extracts (size, opc, imm12, Rn, Rt) from the load/store
// register (unsigned immediate) class: size(2) 111 0 01 opc(2) imm12(12)
// Rn(5) Rt(5).
func ldStImm12Fields(w uint32) (size, opc uint32, imm12 uint64, rnIdx, rt uint32) {
	return bits(w, 31, 30), bits(w, 23, 22), uint64(bits(w, 21, 10)), rn(w), rd(w)
}

// ldStUnscaledFields extracts (size, opc, imm9, Rn, Rt) from the load/store
// (unscaled immediate, LDUR/STUR family): size(2) 111 0 00 opc(2) 0 imm9(9)
// 00 Rn(5) Rt(5).
func ldStUnscaledFields(w uint32) (size, opc uint32, imm9 int64, rnIdx, rt uint32) {
	return bits(w, 31, 30), bits(w, 23, 22), signExtend(bits(w, 20, 12), 9), rn(w), rd(w)
}

// ldpStpFields extracts (opc, L, imm7, Rt2, Rn, Rt) from the load/store
// pair (signed offset) class: opc(2) 101 0 010 L(1) imm7(7) Rt2(5) Rn(5)
// Rt(5).
func ldpStpFields(w uint32) (opc, l uint32, imm7 int64, rt2, rnIdx, rt uint32) {
	return bits(w, 31, 30), bit(w, 22), signExtend(bits(w, 21, 15), 7), bits(w, 14, 10), rn(w), rd(w)
}

// exclusiveFields extracts (size, L, o2, o1, o0, Rn, Rt) from the
// load/store exclusive class: size(2) 001000 o2(1) L(1) o1(1) Rs(5) o0(1)
// Rt2(5) Rn(5) Rt(5).
func exclusiveFields(w uint32) (size, l, o2, o1, o0, rnIdx, rt uint32) {
	return bits(w, 31, 30), bit(w, 22), bit(w, 23), bit(w, 21), bit(w, 15), rn(w), rd(w)
}

// adrAdrpFields extracts (Rd, imm) from ADR/ADRP: op(1) immlo(2) 10000
// immhi(19) Rd(5).
func adrAdrpFields(w uint32) (rdIdx uint32, imm int64) {
	immlo := bits(w, 30, 29)
	immhi := bits(w, 23, 5)
	raw := (immhi << 2) | immlo
	return rd(w), signExtend(raw, 21)
}

// bitfieldFields extracts (Rd, Rn, immr, imms) from UBFM/SBFM/BFM: sf opc
// 100110 N immr(6) imms(6) Rn(5) Rd(5).
func bitfieldFields(w uint32) (rdIdx, rnIdx, immr, imms uint32) {
	return rd(w), rn(w), bits(w, 21, 16), bits(w, 15, 10)
}

// extrFields extracts (Rd, Rn, Rm, lsb) from EXTR: sf 00 100111 N 0 Rm(5)
// imms(6) Rn(5) Rd(5).
func extrFields(w uint32) (rdIdx, rnIdx, rmIdx, lsb uint32) {
	return rd(w), rn(w), rm(w), bits(w, 15, 10)
}
