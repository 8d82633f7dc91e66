package linker

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

const (
	protNone  = unix.PROT_NONE
	protRead  = unix.PROT_READ
	protWrite = unix.PROT_WRITE
	protExec  = unix.PROT_EXEC
)

func pageStart(addr uint64) uint64 {
	return addr &^ (pageSize - 1)
}

func pageEnd(addr uint64) uint64 {
	return pageStart(addr + pageSize - 1)
}

// imageAddr returns the runtime address backing a reservation made by
// unix.Mmap, the actual base address relocations and loaded code run at.
func imageAddr(image []byte) uint64 {
	if len(image) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&image[0])))
}

// protectRange calls mprotect on the page range covering [addr, addr+size)
// of the reservation backing image, mirroring zLinker.cpp's PageStart/
// PageEnd + mprotect pattern.
func protectRange(image []byte, addr, size uint64, prot int) error {
	if size == 0 {
		return nil
	}
	base := imageAddr(image)
	pageAddr := pageStart(addr)
	end := pageEnd(addr + size)
	if pageAddr < base || end > base+uint64(len(image)) {
		return &LoadError{Stage: "mprotect", Reason: "page range outside reservation"}
	}
	start := pageAddr - base
	return unix.Mprotect(image[start:start+(end-pageAddr)], prot)
}
