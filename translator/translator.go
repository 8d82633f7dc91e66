// Package translator lowers ARM64 machine code into the VM's instruction
// word stream (spec.md §4.3 "Translator"), grounded in
// original_source/VmProtect/modules/elfkit/core/zInst*.cpp and
// zFunction.cpp, and using golang.org/x/arch/arm64/arm64asm as the fixed
// disassembler contract the original built against Capstone for: it
// supplies the mnemonic used for dispatch and for translation-failure
// diagnostics. A word it cannot decode gets an empty mnemonic; only the
// branch lowerings, which test raw bit patterns, can still claim it. Operand field extraction (register/immediate values) is
// done directly against the architecturally-stable AArch64 encoding
// tables in decode.go, mirroring how the original walked Capstone's
// cs_arm64_op array.
package translator

import (
	"fmt"

	"github.com/xyproto/vmarmcore/funcdata"
	"github.com/xyproto/vmarmcore/vmopcode"
)

// Translator lowers one ARM64 function at a time; it carries no state
// between calls to Translate.
type Translator struct{}

// New returns a ready-to-use Translator.
func New() *Translator { return &Translator{} }

// translationState accumulates one function's lowering.
type translationState struct {
	regs  *registerTable
	types *typeTagTable

	addr uint64 // address of the instruction currently being lowered

	instWords []uint32
	addrToPC  map[uint64]uint32

	branchAddrs []uint64
	branchIndex map[uint64]uint32

	blTargets []uint64
}

func (tr *translationState) emit(op vmopcode.Op, args ...uint32) {
	tr.instWords = append(tr.instWords, uint32(op))
	tr.instWords = append(tr.instWords, args...)
}

func (tr *translationState) emitLoadImm64(dst uint32, val uint64) {
	if val <= 0xffffffff {
		tr.emit(vmopcode.OpLoadImm, dst, uint32(val))
		return
	}
	tr.emit(vmopcode.OpLoadConst64, dst, uint32(val&0xffffffff), uint32((val>>32)&0xffffffff))
}

// branchID returns the local branch id for target, a get-or-add lookup
// over the per-function branch-address list.
func (tr *translationState) branchID(target uint64) uint32 {
	if id, ok := tr.branchIndex[target]; ok {
		return id
	}
	id := uint32(len(tr.branchAddrs))
	tr.branchAddrs = append(tr.branchAddrs, target)
	tr.branchIndex[target] = id
	return id
}

// blTarget always appends: each BL call site gets its own slot in the
// per-function BL target list (spec.md §4.3: "append the immediate to the
// per-function BL target list").
func (tr *translationState) blTarget(target uint64) uint32 {
	idx := uint32(len(tr.blTargets))
	tr.blTargets = append(tr.blTargets, target)
	return idx
}

// Translate lowers the ARM64 bytes at code, whose first byte is located at
// baseAddr, into a funcdata.Record. functionOffset is the guest function's
// address used as the VM cache key (spec.md §3 "function_offset").
func (tr *Translator) Translate(code []byte, baseAddr, functionOffset uint64) (*funcdata.Record, error) {
	if len(code)%4 != 0 || len(code) == 0 {
		return nil, &TranslationError{Addr: baseAddr, Reason: "code length must be a non-zero multiple of 4"}
	}

	st := &translationState{
		regs:        newRegisterTable(),
		types:       newTypeTagTable(),
		addrToPC:    make(map[uint64]uint32),
		branchIndex: make(map[uint64]uint32),
	}

	// Prelude: OP_ALLOC_RETURN (zero params) then OP_ALLOC_VSP fp, sp
	// (spec.md §4.3 "Prelude").
	st.emit(vmopcode.OpAllocReturn)
	st.emit(vmopcode.OpAllocVsp, st.regs.getOrAdd(regFP), st.regs.getOrAdd(regSP))

	for off := 0; off < len(code); off += 4 {
		addr := baseAddr + uint64(off)
		st.addr = addr
		st.addrToPC[addr] = uint32(len(st.instWords))

		d := decodeOne(code[off:off+4], addr)

		ok, err := st.dispatchBranch(d)
		if err != nil {
			return nil, err
		}
		if !ok {
			ok, err = st.dispatchArith(d)
			if err != nil {
				return nil, err
			}
		}
		if !ok {
			ok, err = st.dispatchLogic(d)
			if err != nil {
				return nil, err
			}
		}
		if !ok {
			ok, err = st.dispatchMemory(d)
			if err != nil {
				return nil, err
			}
		}
		if !ok {
			return nil, &TranslationError{
				Addr:      addr,
				Mnemonic:  d.Mnemonic,
				Word:      d.Word,
				Reason:    "no domain or mnemonic-fallback lowering claimed this instruction",
			}
		}
	}

	branchWords := make([]uint32, len(st.branchAddrs))
	for i, target := range st.branchAddrs {
		// Zero-fill entries whose address has no lowering (spec.md §4.3):
		// a branch target outside [baseAddr, baseAddr+len(code)).
		branchWords[i] = st.addrToPC[target]
	}

	rec := &funcdata.Record{
		Marker:         1,
		RegisterCount:  st.regs.count(),
		TypeCount:      uint32(len(st.types.tags)),
		TypeTags:       st.types.tags,
		InstCount:      uint32(len(st.instWords)),
		InstWords:      st.instWords,
		BranchCount:    uint32(len(branchWords)),
		BranchWords:    branchWords,
		BranchAddrs:    st.blTargets,
		FunctionOffset: functionOffset,
	}
	if err := rec.Validate(); err != nil {
		return nil, &TranslationError{Addr: baseAddr, Reason: fmt.Sprintf("translated record failed validation: %v", err)}
	}
	return rec, nil
}
