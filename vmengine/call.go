package vmengine

import "github.com/ebitengine/purego"

// callNative invokes the native function at addr with the given uint64
// arguments under the AArch64 ABI, the no-cgo mechanism OP_CALL/OP_BL both
// rely on (same purego.SyscallN primitive linker/reloc.go uses for
// DT_INIT/DT_INIT_ARRAY/IRELATIVE resolvers).
func callNative(addr uint64, args []uint64) uint64 {
	uargs := make([]uintptr, len(args))
	for i, a := range args {
		uargs[i] = uintptr(a)
	}
	r1, _, _ := purego.SyscallN(uintptr(addr), uargs...)
	return uint64(r1)
}
