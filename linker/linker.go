// Package linker is a custom ELF64/AArch64 mmap loader: it maps a shared
// object's PT_LOAD segments into a fresh anonymous reservation, resolves
// its PT_DYNAMIC relocations, and runs its constructors, all without
// going through the host's own dynamic linker. Grounded in
// original_source/VmEngine/app/src/main/cpp/zLinker.{h,cpp}.
package linker

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/xyproto/vmarmcore/internal/vmconfig"
	"github.com/xyproto/vmarmcore/internal/vmlog"
)

// Mode controls how an unresolved symbol required by a relocation is
// handled (spec.md Open Question, resolved in DESIGN.md).
type Mode int

const (
	// Permissive continues past an unresolved symbol, writing a zero
	// address and logging a warning — the historical behavior.
	Permissive Mode = iota
	// Strict turns an unresolved relocation that requires an address
	// into a LoadError.
	Strict
)

// ModeFromConfig resolves the linker's unresolved-symbol strictness from
// VMARMCORE_STRICT_SYMBOLS (internal/vmconfig).
func ModeFromConfig() Mode {
	if vmconfig.StrictSymbols() {
		return Strict
	}
	return Permissive
}

// Linker owns every library it has loaded for the lifetime of the
// process; soinfo entries are never unloaded individually.
type Linker struct {
	mode Mode

	mu        sync.RWMutex
	soinfoMap map[string]*soinfo
}

// New returns a Linker using mode for unresolved-symbol handling.
func New(mode Mode) *Linker {
	return &Linker{mode: mode, soinfoMap: make(map[string]*soinfo)}
}

// LoadFile reads path, maps it, relocates it, and runs its constructors,
// publishing it under its basename.
func (l *Linker) LoadFile(path string) (*soinfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{SoName: path, Stage: "open", Reason: err.Error()}
	}
	return l.LoadBytes(basename(path), data)
}

// LoadBytes loads an ELF image already resident in memory, keyed under
// soName, avoiding a temp-file round trip (mirrors
// zLinker::LoadLibraryFromMemory).
func (l *Linker) LoadBytes(soName string, data []byte) (*soinfo, error) {
	vmlog.With("so_name", soName, "size", len(data)).Info("linker: loading library")

	hdr, err := parseElfHeader(data)
	if err != nil {
		return nil, err
	}
	if err := hdr.verify(); err != nil {
		return nil, err
	}
	phdrs, err := parseProgramHeaders(data, hdr)
	if err != nil {
		return nil, err
	}

	minVaddr, loadSize := loadSpan(phdrs)
	if loadSize == 0 {
		return nil, &LoadError{SoName: soName, Stage: "reserve", Reason: "no loadable segments"}
	}

	image, err := unix.Mmap(-1, 0, int(loadSize), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, &LoadError{SoName: soName, Stage: "reserve", Reason: err.Error()}
	}
	base := imageAddr(image)
	loadBias := base - minVaddr

	si := &soinfo{name: soName, image: image, base: base, size: loadSize, loadBias: loadBias}

	if err := loadSegments(data, phdrs, si); err != nil {
		return nil, err
	}
	if err := findPhdr(phdrs, hdr, si); err != nil {
		return nil, err
	}
	if err := l.parseDynamic(phdrs, si); err != nil {
		return nil, err
	}
	if err := l.relocateImage(si); err != nil {
		return nil, err
	}
	if err := protectSegments(phdrs, si); err != nil {
		return nil, err
	}
	if err := l.runConstructors(si); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.soinfoMap[soName] = si
	l.mu.Unlock()

	vmlog.With("so_name", soName, "base", si.base, "bias", si.loadBias).Info("linker: loaded")
	return si, nil
}

// GetSoinfo returns the previously loaded library by basename, without
// triggering a load.
func (l *Linker) GetSoinfo(name string) (*soinfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	si, ok := l.soinfoMap[name]
	return si, ok
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// loadSpan computes the page-aligned [minVaddr, minVaddr+loadSize) span
// across all PT_LOAD segments, grounded in zLinker.cpp's
// PhdrTableGetLoadSize.
func loadSpan(phdrs []programHeader) (minVaddr, loadSize uint64) {
	min := ^uint64(0)
	max := uint64(0)
	found := false
	for _, p := range phdrs {
		if p.Type != ptLoad {
			continue
		}
		found = true
		if p.Vaddr < min {
			min = p.Vaddr
		}
		if p.Vaddr+p.Memsz > max {
			max = p.Vaddr + p.Memsz
		}
	}
	if !found {
		return 0, 0
	}
	min = pageStart(min)
	max = pageEnd(max)
	return min, max - min
}

// loadSegments copies each PT_LOAD's file bytes into the reservation,
// zero-fills BSS, and zero-fills any page-tail gap, grounded in
// zLinker.cpp's LoadSegments.
func loadSegments(data []byte, phdrs []programHeader, si *soinfo) error {
	for _, p := range phdrs {
		if p.Type != ptLoad {
			continue
		}

		segStart := p.Vaddr + si.loadBias
		segEnd := segStart + p.Memsz
		segPageStart := pageStart(segStart)
		segPageEnd := pageEnd(segEnd)
		segFileEnd := segStart + p.Filesz

		fileEnd := p.Offset + p.Filesz
		if fileEnd > uint64(len(data)) {
			return &LoadError{SoName: si.name, Stage: "load_segments", Reason: "segment file range out of bounds"}
		}

		if err := protectRange(si.image, segPageStart, segPageEnd-segPageStart, protRead|protWrite); err != nil {
			return &LoadError{SoName: si.name, Stage: "load_segments", Reason: err.Error()}
		}
		if p.Filesz > 0 {
			dstOff := segStart - si.base
			if dstOff+p.Filesz > uint64(len(si.image)) {
				return &LoadError{SoName: si.name, Stage: "load_segments", Reason: "destination copy exceeds reservation"}
			}
			copy(si.image[dstOff:dstOff+p.Filesz], data[p.Offset:p.Offset+p.Filesz])
		}

		if p.Memsz > p.Filesz {
			bssStart := segStart + p.Filesz - si.base
			bssEnd := segStart + p.Memsz - si.base
			for i := bssStart; i < bssEnd; i++ {
				si.image[i] = 0
			}
		}

		alignedFileEnd := pageEnd(segFileEnd)
		if segPageEnd > alignedFileEnd {
			// The gap between the file-backed tail and the page
			// boundary is cleared explicitly, under the RW protection
			// applied above.
			gapStart := alignedFileEnd - si.base
			gapEnd := segPageEnd - si.base
			for i := gapStart; i < gapEnd && i < uint64(len(si.image)); i++ {
				si.image[i] = 0
			}
		}
	}
	return nil
}

// findPhdr locates the runtime program-header table: PT_PHDR if present,
// else derived from the PT_LOAD at file offset 0 plus e_phoff, grounded in
// zLinker.cpp's FindPhdr/CheckPhdr. When neither exists, si.phdr stays
// zero and only si.phnum is set.
func findPhdr(phdrs []programHeader, hdr *elfHeader, si *soinfo) error {
	checkPhdr := func(loaded uint64) bool {
		loadedEnd := loaded + uint64(len(phdrs))*phdrSize
		for _, p := range phdrs {
			if p.Type != ptLoad {
				continue
			}
			segStart := p.Vaddr + si.loadBias
			segEnd := p.Filesz + segStart
			if segStart <= loaded && loadedEnd <= segEnd {
				return true
			}
		}
		return false
	}

	for _, p := range phdrs {
		if p.Type == ptPhdr {
			loaded := si.loadBias + p.Vaddr
			if !checkPhdr(loaded) {
				return &LoadError{SoName: si.name, Stage: "find_phdr", Reason: "PT_PHDR not within a loaded segment"}
			}
			si.phdr = loaded
			si.phnum = len(phdrs)
			return nil
		}
	}

	for _, p := range phdrs {
		if p.Type == ptLoad && p.Offset == 0 {
			loaded := si.loadBias + p.Vaddr + hdr.Phoff
			if !checkPhdr(loaded) {
				return &LoadError{SoName: si.name, Stage: "find_phdr", Reason: "derived phdr not within a loaded segment"}
			}
			si.phdr = loaded
			si.phnum = len(phdrs)
			return nil
		}
	}

	// No PT_PHDR and no PT_LOAD at file offset 0: si.phdr is left zero
	// (no address is recorded for the table) and only the count is kept.
	si.phnum = len(phdrs)
	return nil
}

// protectSegments restores each PT_LOAD's final page permissions after
// loading, grounded in zLinker.cpp's ProtectSegments.
func protectSegments(phdrs []programHeader, si *soinfo) error {
	for _, p := range phdrs {
		if p.Type != ptLoad {
			continue
		}
		segStart := p.Vaddr + si.loadBias
		prot := pFlagsToProt(p.Flags)
		if err := protectRange(si.image, segStart, p.Memsz, prot); err != nil {
			return &LoadError{SoName: si.name, Stage: "protect_segments", Reason: err.Error()}
		}
	}
	return nil
}
