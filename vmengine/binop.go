package vmengine

import "github.com/xyproto/vmarmcore/vmopcode"

// maskWidth truncates v to width bits (8, 16, 32, or 64 — the full set
// vmtype.CreateFromTag produces for integer kinds).
func maskWidth(v uint64, width int) uint64 {
	switch width {
	case 8:
		return v & 0xff
	case 16:
		return v & 0xffff
	case 32:
		return v & 0xffffffff
	default:
		return v
	}
}

// evalBinary evaluates op on lhs/rhs (already masked to width) matching
// the low-5-bit operation selector described in spec.md §4.7, and derives
// NZCV the way ADD/SUBS/ANDS would on real AArch64 hardware. Only
// add/sub produce a meaningful carry/overflow; every other op leaves C/V
// clear, matching the logical and shift instruction classes they lower.
func evalBinary(op vmopcode.BinOp, lhs, rhs uint64, width int, signed bool) (result uint64, f flags) {
	bare := op.Op()
	l, r := maskWidth(lhs, width), maskWidth(rhs, width)

	var res uint64
	var carry, overflow bool

	switch bare {
	case vmopcode.BinAdd:
		res = l + r
		res = maskWidth(res, width)
		carry = addCarry(l, r, width)
		overflow = addOverflow(l, r, res, width)
	case vmopcode.BinSub:
		res = maskWidth(l-r, width)
		carry = l >= r
		overflow = subOverflow(l, r, res, width)
	case vmopcode.BinMul:
		res = maskWidth(l*r, width)
	case vmopcode.BinIdiv:
		if r == 0 {
			res = 0
		} else if signed {
			res = maskWidth(uint64(signedVal(l, width)/signedVal(r, width)), width)
		} else {
			res = l / r
		}
	case vmopcode.BinAnd:
		res = l & r
	case vmopcode.BinOr:
		res = l | r
	case vmopcode.BinXor:
		res = l ^ r
	case vmopcode.BinShl:
		res = maskWidth(l<<(r&uint64(width-1)), width)
	case vmopcode.BinLsr:
		res = l >> (r & uint64(width-1))
	case vmopcode.BinAsr:
		res = maskWidth(uint64(signedVal(l, width)>>(r&uint64(width-1))), width)
	case vmopcode.BinRem:
		if r == 0 {
			res = 0
		} else if signed {
			res = maskWidth(uint64(signedVal(l, width)%signedVal(r, width)), width)
		} else {
			res = l % r
		}
	default:
		res = l
	}

	f.n = (res>>(uint(width)-1))&1 != 0
	f.z = res == 0
	f.c = carry
	f.v = overflow
	return res, f
}

func signedVal(v uint64, width int) int64 {
	switch width {
	case 8:
		return int64(int8(uint8(v)))
	case 16:
		return int64(int16(uint16(v)))
	case 32:
		return int64(int32(uint32(v)))
	default:
		return int64(v)
	}
}

func addCarry(l, r uint64, width int) bool {
	if width == 64 {
		sum := l + r
		return sum < l
	}
	lim := uint64(1) << uint(width)
	return l+r >= lim
}

func addOverflow(l, r, res uint64, width int) bool {
	signBit := uint64(1) << (uint(width) - 1)
	return (l^res)&(r^res)&signBit != 0
}

func subOverflow(l, r, res uint64, width int) bool {
	signBit := uint64(1) << (uint(width) - 1)
	return (l^r)&(l^res)&signBit != 0
}
