package vmengine

import "unsafe"

// readMem and writeMem dereference a guest-supplied address directly
// against real process memory: guest OP_GET_FIELD/OP_SET_FIELD operands
// may point into a linker-loaded image, a native heap allocation, or a
// VM-allocated stack/scratch buffer (OP_ALLOC_VSP/OP_ALLOC_MEMORY) — there
// is no way to express "arbitrary native address" as a Go-managed slice,
// so this is the same unsafe.Pointer(uintptr(...)) pattern linker/page.go
// uses to recover a mmap reservation's runtime address, generalized to
// reads/writes instead of just address arithmetic.
func readMem(addr uint64, widthBits int) uint64 {
	switch widthBits {
	case 8:
		return uint64(*(*uint8)(unsafe.Pointer(uintptr(addr))))
	case 16:
		return uint64(*(*uint16)(unsafe.Pointer(uintptr(addr))))
	case 32:
		return uint64(*(*uint32)(unsafe.Pointer(uintptr(addr))))
	default:
		return *(*uint64)(unsafe.Pointer(uintptr(addr)))
	}
}

func writeMem(addr uint64, widthBits int, val uint64) {
	switch widthBits {
	case 8:
		*(*uint8)(unsafe.Pointer(uintptr(addr))) = uint8(val)
	case 16:
		*(*uint16)(unsafe.Pointer(uintptr(addr))) = uint16(val)
	case 32:
		*(*uint32)(unsafe.Pointer(uintptr(addr))) = uint32(val)
	default:
		*(*uint64)(unsafe.Pointer(uintptr(addr))) = val
	}
}
