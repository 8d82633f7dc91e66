package linker

// LookupSymbol resolves name within si first (GNU hash preferred, falling
// back to the SysV hash table), then through si's DT_NEEDED libraries and
// finally the process-global symbol space, matching spec.md's symbol
// lookup order.
func (l *Linker) LookupSymbol(si *soinfo, name string) (uint64, error) {
	if si.gnuBucket != 0 {
		if sym, ok := si.gnuLookup(gnuHash(name), name); ok && sym.Shndx != shnUndef {
			return sym.Value + si.loadBias, nil
		}
	}
	if si.bucket != 0 {
		if sym, ok := si.elfLookup(elfHash(name), name); ok && sym.Shndx != shnUndef {
			return sym.Value + si.loadBias, nil
		}
	}
	return l.findSymbolAddress(si, name)
}

// FunctionAddress returns the runtime address of a function at a given
// file offset within si's image, the form bundle.Entry.FunAddr and
// branch-address tables use to address code within a loaded library.
func (si *soinfo) FunctionAddress(fileOffset uint64) uint64 {
	return si.base + fileOffset
}
