// Package vmopcode defines the VM instruction-word opcode and sub-operation
// constants shared by the translator (which emits inst_words) and vmengine
// (which interprets them). spec.md §4.3/§4.7 name every opcode and binary/
// unary sub-operation symbolically but, consistent with the rest of the
// original zVmOpcodes contract, never pins a numeric encoding in the
// material retrieved for this module; the numbering below is this
// module's own stable assignment, kept in one place so translator and
// vmengine can never drift apart.
package vmopcode

// Op identifies an instruction word's opcode.
type Op uint32

const (
	OpNop Op = iota
	OpEnd
	OpUnreachable
	OpAllocReturn
	OpAllocVsp
	OpLoadImm
	OpLoadConst64
	OpAdrp
	OpMov
	OpBinary
	OpBinaryImm
	OpGetField
	OpSetField
	OpAtomicLoad
	OpAtomicStore
	OpCmp
	OpBranch
	OpBranchIfCC
	OpBranchReg
	OpCall
	OpBL
	OpUnary
	OpReturn
	OpSignExtend
	OpRestoreReg  // open question: conservative no-op, see DESIGN.md
	OpAllocMemory // open question: allocates a VM-owned scratch buffer, see DESIGN.md
	OpRead        // open question: aliases OpGetField, see DESIGN.md
	OpWrite       // open question: aliases OpSetField, see DESIGN.md
	OpLea         // open question: conservative no-op, see DESIGN.md
)

// BinOp is the low-5-bit operation selector of OP_BINARY/OP_BINARY_IMM;
// BinUpdateFlags is OR'd in to request condition-flag updates (spec.md
// §4.7: "the 0x40 bit sets processor condition flags").
type BinOp uint32

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinIdiv
	BinAnd
	BinOr
	BinXor
	BinShl
	BinLsr
	BinAsr
	BinRem
)

// BinUpdateFlags is the flags-update modifier bit, combined with a BinOp via
// bitwise OR (e.g. BinSub|BinUpdateFlags for SUBS/CMP).
const BinUpdateFlags BinOp = 0x40

// Op returns the bare operation selector with the flags-update bit masked
// off.
func (b BinOp) Op() BinOp { return b &^ BinUpdateFlags }

// UpdatesFlags reports whether the flags-update modifier is set.
func (b BinOp) UpdatesFlags() bool { return b&BinUpdateFlags != 0 }

// UnaryOp selects the OP_UNARY variant.
type UnaryOp uint32

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryAbs
	UnarySqrt
	UnaryCeil
	UnaryFloor
	UnaryRound
	UnaryCLZ
	UnaryRev
	UnaryRev16
)

// MemOrder is the memory-ordering tag carried by OP_ATOMIC_LOAD/STORE.
type MemOrder uint32

const (
	OrderRelaxed MemOrder = iota
	OrderAcquire
	OrderRelease
	OrderAcqRel
	OrderSeqCst
)

// CondCode is an ARM64 condition code, used verbatim by OP_BRANCH_IF_CC.
type CondCode uint32

const (
	CondEQ CondCode = iota
	CondNE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
	CondNV
)

// ValueSentinel marks a OP_SET_FIELD/OP_ATOMIC_STORE value register index
// that means "store zero" (spec.md §4.7: "a source of WZR/XZR is signaled
// by a sentinel value index of UINT32_MAX").
const ValueSentinel uint32 = 0xffffffff
