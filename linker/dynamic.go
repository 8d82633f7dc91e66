package linker

import "github.com/xyproto/vmarmcore/internal/vmlog"

// parseDynamic walks PT_DYNAMIC twice: once to populate every table
// address/count soinfo needs, once more to collect DT_NEEDED names (they
// require strtab, itself discovered in the first pass). Grounded in
// zLinker.cpp's ParseDynamic.
func (l *Linker) parseDynamic(phdrs []programHeader, si *soinfo) error {
	var dynAddr uint64
	var dynSize uint64
	for _, p := range phdrs {
		if p.Type == ptDynamic {
			dynAddr = p.Vaddr + si.loadBias
			dynSize = p.Filesz
			break
		}
	}
	if dynAddr == 0 {
		return &LoadError{SoName: si.name, Stage: "parse_dynamic", Reason: "no PT_DYNAMIC segment"}
	}

	count := dynSize / dynEntrySize
	if count > maxDynamicEntries {
		return &LoadError{SoName: si.name, Stage: "parse_dynamic", Reason: "dynamic section too large"}
	}
	si.dynamic = dynAddr
	si.dynCount = int(count)

	var pltRelSz, relaSz uint64
	var gnuHashAddr uint64
	var sysvHashAddr uint64

	for i := uint64(0); i < count; i++ {
		addr := dynAddr + i*dynEntrySize
		if !si.inBounds(addr, dynEntrySize) {
			return &LoadError{SoName: si.name, Stage: "parse_dynamic", Reason: "dynamic entry out of bounds"}
		}
		e := readDynEntry(si.image, si.offset(addr))
		switch e.Tag {
		case dtNull:
			i = count // terminate
		case dtStrTab:
			si.strtab = e.Val + si.loadBias
		case dtSymTab:
			si.symtab = e.Val + si.loadBias
		case dtHash:
			sysvHashAddr = e.Val + si.loadBias
		case dtGnuHash:
			gnuHashAddr = e.Val + si.loadBias
		case dtRela:
			si.rela = e.Val + si.loadBias
		case dtRelaSz:
			relaSz = e.Val
		case dtJmpRel:
			si.pltRela = e.Val + si.loadBias
		case dtPltRelSz:
			pltRelSz = e.Val
		case dtInit:
			si.initFunc = e.Val + si.loadBias
		case dtInitArray:
			si.initArray = e.Val + si.loadBias
		case dtInitArraySz:
			si.initArrayCount = int(e.Val / 8)
		case dtFiniArray:
			si.finiArray = e.Val + si.loadBias
		case dtFiniArraySz:
			si.finiArrayCount = int(e.Val / 8)
		case dtFlags:
			si.flags = e.Val
		}
	}

	si.relaCount = int(relaSz / relaEntSize)
	si.pltRelaCount = int(pltRelSz / relaEntSize)

	if sysvHashAddr != 0 {
		if nb, ok := si.readU32At(sysvHashAddr); ok {
			si.nbucket = uint64(nb)
		}
		if nc, ok := si.readU32At(sysvHashAddr + 4); ok {
			si.nchain = uint64(nc)
		}
		si.bucket = sysvHashAddr + 8
		si.chain = sysvHashAddr + 8 + si.nbucket*4
	}

	if gnuHashAddr != 0 {
		if err := parseGnuHash(si, gnuHashAddr); err != nil {
			return err
		}
	}

	if err := collectNeeded(si); err != nil {
		return err
	}

	vmlog.With("so_name", si.name, "needed", si.neededLibs, "rela", si.relaCount, "plt_rela", si.pltRelaCount).
		Debug("linker: parsed dynamic section")
	return nil
}

// parseGnuHash reads the GNU hash header (nbucket, symndx, maskwords,
// shift2) and derives the bucket/chain/bloom-filter addresses, including
// the maskwords-1 pre-decrement and power-of-two validation zLinker.cpp's
// ParseDynamic performs before using it as a mask.
func parseGnuHash(si *soinfo, addr uint64) error {
	nbucket, ok := si.readU32At(addr)
	if !ok {
		return &LoadError{SoName: si.name, Stage: "parse_dynamic", Reason: "DT_GNU_HASH header out of bounds"}
	}
	symndx, ok := si.readU32At(addr + 4)
	if !ok {
		return &LoadError{SoName: si.name, Stage: "parse_dynamic", Reason: "DT_GNU_HASH header out of bounds"}
	}
	maskwords, ok := si.readU32At(addr + 8)
	if !ok {
		return &LoadError{SoName: si.name, Stage: "parse_dynamic", Reason: "DT_GNU_HASH header out of bounds"}
	}
	shift2, ok := si.readU32At(addr + 12)
	if !ok {
		return &LoadError{SoName: si.name, Stage: "parse_dynamic", Reason: "DT_GNU_HASH header out of bounds"}
	}
	if maskwords == 0 || maskwords&(maskwords-1) != 0 {
		return &LoadError{SoName: si.name, Stage: "parse_dynamic", Reason: "DT_GNU_HASH maskwords not a power of two"}
	}

	si.gnuNbucket = nbucket
	si.gnuMaskwords = maskwords - 1
	si.gnuShift2 = shift2
	si.gnuBloomFilter = addr + 16
	si.gnuBucket = si.gnuBloomFilter + uint64(maskwords)*8
	si.gnuChain = si.gnuBucket + uint64(nbucket)*4 - uint64(symndx)*4
	return nil
}

// collectNeeded walks the dynamic section a second time to collect
// DT_NEEDED string offsets, now that strtab is known.
func collectNeeded(si *soinfo) error {
	for i := 0; i < si.dynCount; i++ {
		addr := si.dynamic + uint64(i)*dynEntrySize
		if !si.inBounds(addr, dynEntrySize) {
			break
		}
		e := readDynEntry(si.image, si.offset(addr))
		if e.Tag == dtNull {
			break
		}
		if e.Tag != dtNeeded {
			continue
		}
		name := si.stringAt(uint32(e.Val))
		if len(name) == 0 || len(name) > 256 {
			continue
		}
		si.neededLibs = append(si.neededLibs, name)
	}
	return nil
}
