package linker

import (
	"encoding/binary"

	"github.com/ebitengine/purego"

	"github.com/xyproto/vmarmcore/internal/vmlog"
)

// AArch64 RELA types actually produced for this project's relocation
// subset, grounded in zLinker.cpp's kRelAarch64* constants.
const (
	relAarch64None      = 0
	relAarch64Abs64     = 257
	relAarch64GlobDat   = 1025
	relAarch64JumpSlot  = 1026
	relAarch64Relative  = 1027
	relAarch64IRelative = 1032
)

// rtldNoload is Linux's RTLD_NOLOAD (reuse an already-loaded library,
// never trigger a fresh load) — purego exposes RTLD_NOW but not this
// Linux-only flag, so it is defined locally.
const rtldNoload = 0x4

func (l *Linker) relocateImage(si *soinfo) error {
	if si.relaCount > maxRelaEntries {
		return &LoadError{SoName: si.name, Stage: "relocate", Reason: "RELA count too large"}
	}
	if si.pltRelaCount > maxPltRelaEntries {
		return &LoadError{SoName: si.name, Stage: "relocate", Reason: "PLT RELA count too large"}
	}

	for i := 0; i < si.relaCount; i++ {
		rela := readRela(si.image, si.offset(si.rela+uint64(i)*relaEntSize))
		if err := l.processRela(si, rela); err != nil {
			vmlog.With("so_name", si.name, "index", i, "err", err).Error("linker: RELA relocation failed")
			if _, unresolved := err.(*LookupError); unresolved {
				return &LoadError{SoName: si.name, Stage: "relocate", Reason: err.Error()}
			}
		}
	}
	for i := 0; i < si.pltRelaCount; i++ {
		rela := readRela(si.image, si.offset(si.pltRela+uint64(i)*relaEntSize))
		if err := l.processRela(si, rela); err != nil {
			vmlog.With("so_name", si.name, "index", i, "err", err).Error("linker: PLT RELA relocation failed")
			if _, unresolved := err.(*LookupError); unresolved {
				return &LoadError{SoName: si.name, Stage: "relocate", Reason: err.Error()}
			}
		}
	}
	return nil
}

func (l *Linker) processRela(si *soinfo, rela elfRela) error {
	reloc := uint64(int64(rela.Offset) + int64(si.loadBias))
	relType := rela.relType()
	symIdx := rela.symIndex()

	if reloc < si.base || reloc >= si.base+si.size {
		return &LoadError{SoName: si.name, Stage: "relocate", Reason: "relocation address out of range"}
	}

	var symAddr uint64
	var symName string
	if symIdx != 0 {
		sym, ok := si.symAt(uint64(symIdx))
		if !ok {
			return &LoadError{SoName: si.name, Stage: "relocate", Reason: "symbol index out of bounds"}
		}
		if sym.Name != 0 {
			symName = si.stringAt(sym.Name)
		}
		if sym.Shndx != shnUndef {
			symAddr = sym.Value + si.loadBias
		} else if symName != "" {
			addr, err := l.findSymbolAddress(si, symName)
			if err != nil {
				if l.mode == Strict && relType != relAarch64None {
					return err
				}
				vmlog.With("so_name", si.name, "symbol", symName).Warn("linker: unresolved symbol, writing zero")
			}
			symAddr = addr
		}
	}

	if err := protectRange(si.image, pageStart(reloc), pageSize, protRead|protWrite); err != nil {
		vmlog.With("so_name", si.name, "err", err).Debug("linker: mprotect failed for relocation, trying anyway")
	}

	off := si.offset(reloc)
	switch relType {
	case relAarch64None:
	case relAarch64Abs64, relAarch64GlobDat, relAarch64JumpSlot:
		binary.LittleEndian.PutUint64(si.image[off:], symAddr+uint64(rela.Addend))
	case relAarch64Relative:
		binary.LittleEndian.PutUint64(si.image[off:], si.loadBias+uint64(rela.Addend))
	case relAarch64IRelative:
		resolver := si.loadBias + uint64(rela.Addend)
		if resolver < si.base || resolver >= si.base+si.size {
			return &LoadError{SoName: si.name, Stage: "relocate", Reason: "IRELATIVE resolver out of range"}
		}
		r1, _, errno := purego.SyscallN(resolver)
		if errno != 0 {
			return &LoadError{SoName: si.name, Stage: "relocate", Reason: "IRELATIVE resolver call failed"}
		}
		binary.LittleEndian.PutUint64(si.image[off:], uint64(r1))
	default:
		vmlog.With("so_name", si.name, "type", relType).Debug("linker: unknown relocation type, skipping")
	}
	return nil
}

// findSymbolAddress resolves an undefined symbol (the caller uses the
// symbol's own value when its Shndx is not SHN_UNDEF); this covers the
// DT_NEEDED and process-global fallbacks from zLinker.cpp's
// FindSymbolAddress, using purego's no-cgo Dlopen/Dlsym in place of libdl.
func (l *Linker) findSymbolAddress(si *soinfo, name string) (uint64, error) {
	for _, lib := range si.neededLibs {
		handle, err := purego.Dlopen(lib, purego.RTLD_NOW|rtldNoload)
		if err != nil || handle == 0 {
			continue
		}
		if addr, err := purego.Dlsym(handle, name); err == nil && addr != 0 {
			return uint64(addr), nil
		}
	}

	if addr, err := purego.Dlsym(purego.RTLD_DEFAULT, name); err == nil && addr != 0 {
		return uint64(addr), nil
	}

	return 0, &LookupError{SoName: si.name, Symbol: name}
}

func (l *Linker) runConstructors(si *soinfo) error {
	if si.initFunc != 0 {
		if _, _, errno := purego.SyscallN(si.initFunc); errno != 0 {
			return &LoadError{SoName: si.name, Stage: "init", Reason: "DT_INIT call failed"}
		}
	}

	if si.initArrayCount > maxInitArray {
		return &LoadError{SoName: si.name, Stage: "init_array", Reason: "init_array_count too large"}
	}
	for i := 0; i < si.initArrayCount; i++ {
		addr, ok := si.readAddrAt(si.initArray + uint64(i)*8)
		if !ok || addr == 0 {
			continue
		}
		if _, _, errno := purego.SyscallN(addr); errno != 0 {
			return &LoadError{SoName: si.name, Stage: "init_array", Reason: "constructor call failed"}
		}
	}
	return nil
}
