package bundle

import (
	"encoding/binary"
	"testing"
)

// buildBundle assembles a well-formed tail bundle byte-for-byte, mirroring
// the writer side the original protects with zSoBinBundle's reader.
func buildBundle(t *testing.T, entries []Entry, branchAddrs []uint64) []byte {
	t.Helper()

	headerTableLen := len(entries) * entrySize
	branchTableLen := len(branchAddrs) * 8

	var payload []byte
	offsets := make([]uint64, len(entries))
	for i, e := range entries {
		offsets[i] = uint64(headerSize + headerTableLen + branchTableLen + len(payload))
		payload = append(payload, e.Data...)
	}

	bundleSize := uint64(headerSize + headerTableLen + branchTableLen + len(payload) + footerSize)

	buf := make([]byte, 0, bundleSize)

	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:], headerMagic)
	binary.LittleEndian.PutUint32(hdr[4:], version)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(entries)))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(len(branchAddrs)))
	buf = append(buf, hdr...)

	for i, e := range entries {
		ent := make([]byte, entrySize)
		binary.LittleEndian.PutUint64(ent[0:], e.FunAddr)
		binary.LittleEndian.PutUint64(ent[8:], offsets[i])
		binary.LittleEndian.PutUint64(ent[16:], uint64(len(e.Data)))
		buf = append(buf, ent...)
	}

	for _, a := range branchAddrs {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, a)
		buf = append(buf, b...)
	}

	buf = append(buf, payload...)

	ftr := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(ftr[0:], footerMagic)
	binary.LittleEndian.PutUint32(ftr[4:], version)
	binary.LittleEndian.PutUint64(ftr[8:], bundleSize)
	buf = append(buf, ftr...)

	return buf
}

func TestParseRoundTrip(t *testing.T) {
	entries := []Entry{
		{FunAddr: 0x1000, Data: []byte{1, 2, 3, 4}},
		{FunAddr: 0x2000, Data: []byte{5, 6, 7}},
	}
	branchAddrs := []uint64{0x1000, 0x1004, 0x2000}

	raw := buildBundle(t, entries, branchAddrs)
	// Simulate the bundle appended after an arbitrary ELF image.
	fakeElfPrefix := []byte{0x7f, 'E', 'L', 'F', 0, 0, 0, 0}
	data := append(append([]byte{}, fakeElfPrefix...), raw...)

	res, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("Entries len = %d, want 2", len(res.Entries))
	}
	if res.Entries[0].FunAddr != 0x1000 || string(res.Entries[0].Data) != "\x01\x02\x03\x04" {
		t.Fatalf("entry 0 mismatch: %+v", res.Entries[0])
	}
	if res.Entries[1].FunAddr != 0x2000 || string(res.Entries[1].Data) != "\x05\x06\x07" {
		t.Fatalf("entry 1 mismatch: %+v", res.Entries[1])
	}
	if len(res.SharedBranchAddrs) != 3 || res.SharedBranchAddrs[1] != 0x1004 {
		t.Fatalf("branch addrs mismatch: %v", res.SharedBranchAddrs)
	}
}

func TestParseRejectsTooSmall(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for buffer smaller than a footer")
	}
}

func TestParseRejectsBadFooterMagic(t *testing.T) {
	raw := buildBundle(t, []Entry{{FunAddr: 1, Data: []byte{9}}}, nil)
	raw[len(raw)-footerSize] ^= 0xff
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for corrupted footer magic")
	}
}

func TestParseRejectsBadHeaderMagic(t *testing.T) {
	raw := buildBundle(t, []Entry{{FunAddr: 1, Data: []byte{9}}}, nil)
	raw[0] ^= 0xff
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for corrupted header magic")
	}
}

func TestParseRejectsZeroFunAddr(t *testing.T) {
	raw := buildBundle(t, []Entry{{FunAddr: 0, Data: []byte{9}}}, nil)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for zero fun_addr")
	}
}

func TestParseRejectsDuplicateFunAddr(t *testing.T) {
	raw := buildBundle(t, []Entry{
		{FunAddr: 0x10, Data: []byte{1}},
		{FunAddr: 0x10, Data: []byte{2}},
	}, nil)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for duplicate fun_addr")
	}
}

func TestParseRejectsOutOfRangeDataOffset(t *testing.T) {
	raw := buildBundle(t, []Entry{{FunAddr: 1, Data: []byte{9, 9}}}, nil)
	// Corrupt the entry's data_offset field to point past the payload area.
	entryOff := headerSize
	binary.LittleEndian.PutUint64(raw[entryOff+8:], 100000)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for out-of-range data_offset")
	}
}

func TestParseRejectsBundleSizeExceedingBuffer(t *testing.T) {
	raw := buildBundle(t, []Entry{{FunAddr: 1, Data: []byte{9}}}, nil)
	binary.LittleEndian.PutUint64(raw[len(raw)-8:], uint64(len(raw)+1000))
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for bundle_size exceeding buffer length")
	}
}
