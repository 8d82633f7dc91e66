package linker

import "encoding/binary"

// ELF64/AArch64 structures, parsed by hand with encoding/binary rather
// than debug/elf: the loader needs raw control over segment mapping and
// relocation application that debug/elf's read-only view doesn't expose,
// matching the teacher's own direct-byte-layout approach in
// elf_complete.go/codegen_elf_writer.go. Grounded in
// original_source/VmEngine/app/src/main/cpp/zLinker.{h,cpp}.
const (
	elfMagic0, elfMagic1, elfMagic2, elfMagic3 = 0x7f, 'E', 'L', 'F'

	elfClass64   = 2
	elfData2LSB  = 1
	evCurrent    = 1
	etDyn        = 3
	emAArch64    = 183
	ehdrSize     = 64
	phdrSize     = 56
	dynEntrySize = 16
	symEntSize   = 24
	relaEntSize  = 24

	ptLoad    = 1
	ptDynamic = 2
	ptPhdr    = 6

	pfX = 1
	pfW = 2
	pfR = 4

	dtNull        = 0
	dtNeeded      = 1
	dtPltRelSz    = 2
	dtHash        = 4
	dtStrTab      = 5
	dtSymTab      = 6
	dtRela        = 7
	dtRelaSz      = 8
	dtInit        = 12
	dtInitArray   = 25
	dtFiniArray   = 26
	dtInitArraySz = 27
	dtFiniArraySz = 28
	dtFlags       = 30
	dtJmpRel      = 23
	dtGnuHash     = 0x6ffffef5

	shnUndef = 0

	maxDynamicEntries = 1000
	maxRelaEntries    = 100000
	maxPltRelaEntries = 10000
	maxInitArray      = 1000
)

// elfHeader is the subset of Elf64_Ehdr the loader consults.
type elfHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

func parseElfHeader(data []byte) (*elfHeader, error) {
	if len(data) < ehdrSize {
		return nil, &LoadError{Stage: "elf_header", Reason: "file too small for ELF header"}
	}
	var h elfHeader
	copy(h.Ident[:], data[0:16])
	h.Type = binary.LittleEndian.Uint16(data[16:])
	h.Machine = binary.LittleEndian.Uint16(data[18:])
	h.Version = binary.LittleEndian.Uint32(data[20:])
	h.Entry = binary.LittleEndian.Uint64(data[24:])
	h.Phoff = binary.LittleEndian.Uint64(data[32:])
	h.Shoff = binary.LittleEndian.Uint64(data[40:])
	h.Flags = binary.LittleEndian.Uint32(data[48:])
	h.Ehsize = binary.LittleEndian.Uint16(data[52:])
	h.Phentsize = binary.LittleEndian.Uint16(data[54:])
	h.Phnum = binary.LittleEndian.Uint16(data[56:])
	h.Shentsize = binary.LittleEndian.Uint16(data[58:])
	h.Shnum = binary.LittleEndian.Uint16(data[60:])
	h.Shstrndx = binary.LittleEndian.Uint16(data[62:])
	return &h, nil
}

func (h *elfHeader) verify() error {
	if h.Ident[0] != elfMagic0 || h.Ident[1] != elfMagic1 || h.Ident[2] != elfMagic2 || h.Ident[3] != elfMagic3 {
		return &LoadError{Stage: "elf_header", Reason: "invalid ELF magic"}
	}
	if h.Ident[4] != elfClass64 {
		return &LoadError{Stage: "elf_header", Reason: "not a 64-bit ELF file"}
	}
	if h.Ident[5] != elfData2LSB {
		return &LoadError{Stage: "elf_header", Reason: "not little-endian"}
	}
	if h.Machine != emAArch64 {
		return &LoadError{Stage: "elf_header", Reason: "not an AArch64 ELF file"}
	}
	if h.Version != evCurrent {
		return &LoadError{Stage: "elf_header", Reason: "invalid ELF version"}
	}
	if h.Type != etDyn {
		return &LoadError{Stage: "elf_header", Reason: "not a shared object (ET_DYN)"}
	}
	if h.Phentsize != phdrSize {
		return &LoadError{Stage: "elf_header", Reason: "unexpected program header entry size"}
	}
	return nil
}

// programHeader is Elf64_Phdr.
type programHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

func parseProgramHeaders(data []byte, h *elfHeader) ([]programHeader, error) {
	if h.Phnum == 0 {
		return nil, &LoadError{Stage: "program_headers", Reason: "no program headers"}
	}
	size := uint64(h.Phnum) * phdrSize
	if h.Phoff+size > uint64(len(data)) {
		return nil, &LoadError{Stage: "program_headers", Reason: "program header table out of file bounds"}
	}
	out := make([]programHeader, h.Phnum)
	for i := range out {
		off := h.Phoff + uint64(i)*phdrSize
		p := data[off : off+phdrSize]
		out[i] = programHeader{
			Type:   binary.LittleEndian.Uint32(p[0:]),
			Flags:  binary.LittleEndian.Uint32(p[4:]),
			Offset: binary.LittleEndian.Uint64(p[8:]),
			Vaddr:  binary.LittleEndian.Uint64(p[16:]),
			Paddr:  binary.LittleEndian.Uint64(p[24:]),
			Filesz: binary.LittleEndian.Uint64(p[32:]),
			Memsz:  binary.LittleEndian.Uint64(p[40:]),
			Align:  binary.LittleEndian.Uint64(p[48:]),
		}
	}
	return out, nil
}

func pFlagsToProt(flags uint32) int {
	prot := 0
	if flags&pfR != 0 {
		prot |= protRead
	}
	if flags&pfW != 0 {
		prot |= protWrite
	}
	if flags&pfX != 0 {
		prot |= protExec
	}
	return prot
}

// dynEntry is Elf64_Dyn.
type dynEntry struct {
	Tag int64
	Val uint64
}

func readDynEntry(image []byte, addr uint64) dynEntry {
	return dynEntry{
		Tag: int64(binary.LittleEndian.Uint64(image[addr:])),
		Val: binary.LittleEndian.Uint64(image[addr+8:]),
	}
}

// elfSym is Elf64_Sym.
type elfSym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

func readSym(image []byte, addr uint64) elfSym {
	b := image[addr : addr+symEntSize]
	return elfSym{
		Name:  binary.LittleEndian.Uint32(b[0:]),
		Info:  b[4],
		Other: b[5],
		Shndx: binary.LittleEndian.Uint16(b[6:]),
		Value: binary.LittleEndian.Uint64(b[8:]),
		Size:  binary.LittleEndian.Uint64(b[16:]),
	}
}

// elfRela is Elf64_Rela.
type elfRela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

func readRela(image []byte, addr uint64) elfRela {
	b := image[addr : addr+relaEntSize]
	return elfRela{
		Offset: binary.LittleEndian.Uint64(b[0:]),
		Info:   binary.LittleEndian.Uint64(b[8:]),
		Addend: int64(binary.LittleEndian.Uint64(b[16:])),
	}
}

func (r elfRela) symIndex() uint32 { return uint32(r.Info >> 32) }
func (r elfRela) relType() uint32  { return uint32(r.Info) }

func cString(image []byte, addr uint64) string {
	end := addr
	for end < uint64(len(image)) && image[end] != 0 {
		end++
	}
	return string(image[addr:end])
}
