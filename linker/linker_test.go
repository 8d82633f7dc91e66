package linker

import (
	"encoding/binary"
	"testing"
)

// buildMinimalSO hand-assembles a minimal valid ELF64/AArch64 ET_DYN
// image: one RWX PT_LOAD covering the whole file, one PT_DYNAMIC with a
// DT_STRTAB/DT_SYMTAB/DT_HASH triple defining a single symbol "foo", no
// relocations, and no DT_NEEDED entries — enough to exercise LoadBytes
// end to end without touching a real dynamic linker.
func buildMinimalSO(t *testing.T) []byte {
	t.Helper()

	const (
		phoff      = 64
		strtabOff  = 176
		strtabSize = 5 // "\0foo\0"
		symtabOff  = 184
		symCount   = 2
		hashOff    = symtabOff + symCount*symEntSize // 232
		dynOff     = 256
		dynCount   = 4
	)
	fileSize := dynOff + dynCount*dynEntrySize // 320

	buf := make([]byte, fileSize)

	// e_ident
	buf[0], buf[1], buf[2], buf[3] = elfMagic0, elfMagic1, elfMagic2, elfMagic3
	buf[4] = elfClass64
	buf[5] = elfData2LSB
	binary.LittleEndian.PutUint16(buf[16:], etDyn)
	binary.LittleEndian.PutUint16(buf[18:], emAArch64)
	binary.LittleEndian.PutUint32(buf[20:], evCurrent)
	binary.LittleEndian.PutUint64(buf[32:], phoff)
	binary.LittleEndian.PutUint16(buf[54:], phdrSize)
	binary.LittleEndian.PutUint16(buf[56:], 2) // phnum

	putPhdr := func(idx int, typ, flags uint32, off, vaddr, filesz, memsz uint64) {
		base := phoff + idx*phdrSize
		binary.LittleEndian.PutUint32(buf[base:], typ)
		binary.LittleEndian.PutUint32(buf[base+4:], flags)
		binary.LittleEndian.PutUint64(buf[base+8:], off)
		binary.LittleEndian.PutUint64(buf[base+16:], vaddr)
		binary.LittleEndian.PutUint64(buf[base+24:], vaddr) // paddr
		binary.LittleEndian.PutUint64(buf[base+32:], filesz)
		binary.LittleEndian.PutUint64(buf[base+40:], memsz)
		binary.LittleEndian.PutUint64(buf[base+48:], 0x1000)
	}
	putPhdr(0, ptLoad, pfR|pfW|pfX, 0, 0, uint64(fileSize), uint64(fileSize))
	putPhdr(1, ptDynamic, pfR|pfW, dynOff, dynOff, dynCount*dynEntrySize, dynCount*dynEntrySize)

	// dynstr: "\0foo\0"
	copy(buf[strtabOff:], []byte{0, 'f', 'o', 'o', 0})

	// symtab[0] = null symbol, symtab[1] = "foo"
	sym1 := symtabOff + symEntSize
	binary.LittleEndian.PutUint32(buf[sym1:], 1)      // st_name -> "foo"
	buf[sym1+4] = 0                                   // st_info
	buf[sym1+5] = 0                                   // st_other
	binary.LittleEndian.PutUint16(buf[sym1+6:], 1)    // st_shndx (defined)
	binary.LittleEndian.PutUint64(buf[sym1+8:], 0x1000) // st_value

	// SysV hash: nbucket=1, nchain=2, bucket=[1], chain=[0,0]
	binary.LittleEndian.PutUint32(buf[hashOff:], 1)
	binary.LittleEndian.PutUint32(buf[hashOff+4:], 2)
	binary.LittleEndian.PutUint32(buf[hashOff+8:], 1) // bucket[0] = symbol index 1
	binary.LittleEndian.PutUint32(buf[hashOff+12:], 0)
	binary.LittleEndian.PutUint32(buf[hashOff+16:], 0)

	putDyn := func(idx int, tag int64, val uint64) {
		base := dynOff + idx*dynEntrySize
		binary.LittleEndian.PutUint64(buf[base:], uint64(tag))
		binary.LittleEndian.PutUint64(buf[base+8:], val)
	}
	putDyn(0, dtStrTab, strtabOff)
	putDyn(1, dtSymTab, symtabOff)
	putDyn(2, dtHash, hashOff)
	putDyn(3, dtNull, 0)

	return buf
}

func TestLoadBytesRoundTrip(t *testing.T) {
	data := buildMinimalSO(t)
	l := New(Permissive)

	si, err := l.LoadBytes("libtest.so", data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if si.strtab == 0 || si.symtab == 0 || si.bucket == 0 {
		t.Fatalf("expected dynamic tables to be populated, got %+v", si)
	}
	if got, ok := l.GetSoinfo("libtest.so"); !ok || got != si {
		t.Fatalf("GetSoinfo did not return the loaded soinfo")
	}
}

func TestLoadBytesLookupSymbol(t *testing.T) {
	data := buildMinimalSO(t)
	l := New(Permissive)

	si, err := l.LoadBytes("libtest.so", data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	addr, err := l.LookupSymbol(si, "foo")
	if err != nil {
		t.Fatalf("LookupSymbol: %v", err)
	}
	want := si.loadBias + 0x1000
	if addr != want {
		t.Fatalf("LookupSymbol = %#x, want %#x", addr, want)
	}

	if _, err := l.LookupSymbol(si, "does_not_exist"); err == nil {
		t.Fatal("expected LookupSymbol to fail for an unknown symbol")
	}
}

func TestLoadBytesRejectsBadMagic(t *testing.T) {
	data := buildMinimalSO(t)
	data[0] = 0x00
	l := New(Permissive)
	if _, err := l.LoadBytes("libtest.so", data); err == nil {
		t.Fatal("expected an error for corrupted ELF magic")
	}
}

func TestLoadBytesRejectsTruncatedHeader(t *testing.T) {
	l := New(Permissive)
	if _, err := l.LoadBytes("libtest.so", make([]byte, 10)); err == nil {
		t.Fatal("expected an error for a truncated header")
	}
}
