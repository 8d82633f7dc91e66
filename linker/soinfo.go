package linker

import "encoding/binary"

// soinfo is the linker's view of one loaded library: its mapped image,
// load bias, and the dynamic-section tables symbol lookup and relocation
// need. Addresses are absolute offsets into the backing image (i.e.
// runtime addresses, since image is the real mmap reservation), matching
// zLinker.h's soinfo — but as byte offsets tracked alongside the image
// slice rather than raw C pointers. Grounded in
// original_source/VmEngine/app/src/main/cpp/zLinker.{h,cpp}.
type soinfo struct {
	name string

	image     []byte // the full reservation backing this library's image
	base      uint64 // runtime address of image[0]
	size      uint64
	loadBias  uint64
	phdr      uint64 // runtime address of the loaded program-header table
	phnum     int
	entry     uint64
	dynamic   uint64
	dynCount  int

	strtab uint64 // 0 means absent
	symtab uint64

	nbucket uint64
	nchain  uint64
	bucket  uint64
	chain   uint64

	pltRela      uint64
	pltRelaCount int
	rela         uint64
	relaCount    int

	gnuNbucket     uint32
	gnuBucket      uint64
	gnuChain       uint64
	gnuMaskwords   uint32
	gnuShift2      uint32
	gnuBloomFilter uint64

	initFunc       uint64
	initArray      uint64
	initArrayCount int
	finiArray      uint64
	finiArrayCount int

	neededLibs []string
	flags      uint64
}

func (si *soinfo) inBounds(addr, size uint64) bool {
	return addr >= si.base && addr+size <= si.base+uint64(len(si.image))
}

func (si *soinfo) offset(addr uint64) uint64 { return addr - si.base }

func (si *soinfo) readU32At(addr uint64) (uint32, bool) {
	if !si.inBounds(addr, 4) {
		return 0, false
	}
	o := si.offset(addr)
	return binary.LittleEndian.Uint32(si.image[o:]), true
}

func (si *soinfo) readAddrAt(addr uint64) (uint64, bool) {
	if !si.inBounds(addr, 8) {
		return 0, false
	}
	o := si.offset(addr)
	return binary.LittleEndian.Uint64(si.image[o:]), true
}

func (si *soinfo) symAt(idx uint64) (elfSym, bool) {
	addr := si.symtab + idx*symEntSize
	if !si.inBounds(addr, symEntSize) {
		return elfSym{}, false
	}
	return readSym(si.image, si.offset(addr)), true
}

func (si *soinfo) stringAt(nameOff uint32) string {
	addr := si.strtab + uint64(nameOff)
	if addr < si.base || addr >= si.base+uint64(len(si.image)) {
		return ""
	}
	return cString(si.image, si.offset(addr))
}
