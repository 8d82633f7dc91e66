package translator

// AArch64 general-purpose register encodings 0-31 map directly onto VM
// register slots; 31 is context-dependent (SP in most addressing forms,
// ZR as a source/dest operand) per spec.md §4.3 "Register mapping":
// "SP/WSP → 31, FP/X29 → 29, LR/X30 → 30".
const (
	regFP  = 29
	regLR  = 30
	regSP  = 31
	regZR  = 31
	tempX15 = 15
	tempX16 = 16
	tempX17 = 17
)

// registerTable mirrors the original's reg_id_list: a get-or-add list of VM
// register indices, pre-seeded with x0..x30 so lowered index values stay
// stable across runs of the same function (spec.md §4.3).
type registerTable struct {
	regs  []uint32
	index map[uint32]uint32
}

func newRegisterTable() *registerTable {
	t := &registerTable{index: make(map[uint32]uint32)}
	for i := uint32(0); i <= 30; i++ {
		t.getOrAdd(i)
	}
	return t
}

// getOrAdd returns the VM register-list index for architectural register
// archReg (0-31), appending it on first use.
func (t *registerTable) getOrAdd(archReg uint32) uint32 {
	if idx, ok := t.index[archReg]; ok {
		return idx
	}
	idx := uint32(len(t.regs))
	t.regs = append(t.regs, archReg)
	t.index[archReg] = idx
	return idx
}

// count returns the register_count field, padded to at least 4 (spec.md
// §4.3: "The initial register count is padded to at least 4").
func (t *registerTable) count() uint32 {
	if len(t.regs) < 4 {
		return 4
	}
	return uint32(len(t.regs))
}

func isZeroReg(archReg uint32) bool {
	return archReg == regZR
}
