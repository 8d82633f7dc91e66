package vmengine

import "github.com/xyproto/vmarmcore/vmopcode"

// flags is the ARM64 NZCV condition-flag set, updated by OP_BINARY/
// OP_BINARY_IMM (when the 0x40 bit is set) and OP_CMP.
type flags struct {
	n, z, c, v bool
}

// evalCond implements the ARM64 condition-code table exactly (spec.md
// §4.7 "OP_BRANCH_IF_CC ... using ARM64 condition codes").
func evalCond(cc vmopcode.CondCode, f flags) bool {
	switch cc {
	case vmopcode.CondEQ:
		return f.z
	case vmopcode.CondNE:
		return !f.z
	case vmopcode.CondCS:
		return f.c
	case vmopcode.CondCC:
		return !f.c
	case vmopcode.CondMI:
		return f.n
	case vmopcode.CondPL:
		return !f.n
	case vmopcode.CondVS:
		return f.v
	case vmopcode.CondVC:
		return !f.v
	case vmopcode.CondHI:
		return f.c && !f.z
	case vmopcode.CondLS:
		return !(f.c && !f.z)
	case vmopcode.CondGE:
		return f.n == f.v
	case vmopcode.CondLT:
		return f.n != f.v
	case vmopcode.CondGT:
		return !f.z && f.n == f.v
	case vmopcode.CondLE:
		return f.z || f.n != f.v
	case vmopcode.CondAL, vmopcode.CondNV:
		return true
	default:
		return true
	}
}
