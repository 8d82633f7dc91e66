package vmengine

import (
	"math"
	"math/bits"

	"github.com/xyproto/vmarmcore/vmopcode"
)

func evalUnary(op vmopcode.UnaryOp, src uint64, width int) uint64 {
	v := maskWidth(src, width)
	switch op {
	case vmopcode.UnaryNeg:
		return maskWidth(uint64(-int64(v)), width)
	case vmopcode.UnaryNot:
		return maskWidth(^v, width)
	case vmopcode.UnaryAbs:
		s := signedVal(v, width)
		if s < 0 {
			s = -s
		}
		return maskWidth(uint64(s), width)
	case vmopcode.UnarySqrt:
		return maskWidth(uint64(math.Sqrt(float64(v))), width)
	case vmopcode.UnaryCeil:
		return maskWidth(uint64(math.Ceil(float64(v))), width)
	case vmopcode.UnaryFloor:
		return maskWidth(uint64(math.Floor(float64(v))), width)
	case vmopcode.UnaryRound:
		return maskWidth(uint64(math.Round(float64(v))), width)
	case vmopcode.UnaryCLZ:
		if width == 32 {
			return uint64(bits.LeadingZeros32(uint32(v)))
		}
		return uint64(bits.LeadingZeros64(v))
	case vmopcode.UnaryRev:
		if width == 32 {
			return uint64(bits.ReverseBytes32(uint32(v)))
		}
		return bits.ReverseBytes64(v)
	case vmopcode.UnaryRev16:
		return reverseHalfwordBytes(v, width)
	default:
		return v
	}
}

// reverseHalfwordBytes reverses the byte order within each 16-bit
// halfword independently, matching REV16's semantics.
func reverseHalfwordBytes(v uint64, width int) uint64 {
	n := width / 16
	var out uint64
	for i := 0; i < n; i++ {
		h := uint16(v >> (uint(i) * 16))
		swapped := (h >> 8) | (h << 8)
		out |= uint64(swapped) << (uint(i) * 16)
	}
	return out
}
