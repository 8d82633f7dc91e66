// Package bundle reads the tail-appended container that
// libdemo_expand.so carries after its ELF image: a header, an entry
// table, a shared branch-address table, and a footer, holding one
// encoded funcdata.Record payload per protected function. Grounded in
// original_source/VmEngine/app/src/main/cpp/zSoBinBundle.{h,cpp}.
package bundle

import (
	"encoding/binary"
	"os"

	"github.com/xyproto/vmarmcore/internal/vmlog"
)

const (
	headerMagic uint32 = 0x48424d56 // "VMBH"
	footerMagic uint32 = 0x46424d56 // "VMBF"
	version     uint32 = 1

	headerSize = 16 // magic, version, payload_count, branch_addr_count: 4 u32s
	entrySize  = 24 // fun_addr, data_offset, data_size: 3 u64s
	footerSize = 16 // magic, version, bundle_size: 2 u32s + 1 u64
)

// Entry is one function's encoded payload recovered from the bundle,
// keyed by its guest function address.
type Entry struct {
	FunAddr uint64
	Data    []byte
}

// Result is everything recovered from a bundle: per-function payloads
// plus the branch-address table shared across all of them.
type Result struct {
	Entries           []Entry
	SharedBranchAddrs []uint64
}

// ReadFile loads the named expanded .so and parses its tail bundle.
func ReadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		vmlog.With("path", path, "err", err).Error("bundle: failed to read file")
		return nil, &ParseError{Field: "file", Reason: err.Error()}
	}
	return Parse(data)
}

// Parse recovers the bundle from an in-memory copy of an expanded .so's
// bytes (or any buffer carrying the same tail-appended container),
// avoiding a temp-file round trip.
func Parse(data []byte) (*Result, error) {
	if len(data) < footerSize {
		return nil, &ParseError{Field: "footer", Reason: "file too small to contain a footer"}
	}

	footerOff := len(data) - footerSize
	fMagic := binary.LittleEndian.Uint32(data[footerOff:])
	fVersion := binary.LittleEndian.Uint32(data[footerOff+4:])
	bundleSize := binary.LittleEndian.Uint64(data[footerOff+8:])
	if fMagic != footerMagic || fVersion != version {
		return nil, &ParseError{Field: "footer", Reason: "invalid footer magic/version"}
	}

	minBundleSize := uint64(headerSize + footerSize)
	if bundleSize < minBundleSize || bundleSize > uint64(len(data)) {
		return nil, &ParseError{Field: "footer.bundle_size", Reason: "out of range"}
	}

	bundleStart := uint64(len(data)) - bundleSize
	if int(bundleStart)+headerSize > len(data) {
		return nil, &ParseError{Field: "header", Reason: "truncated"}
	}
	hMagic := binary.LittleEndian.Uint32(data[bundleStart:])
	hVersion := binary.LittleEndian.Uint32(data[bundleStart+4:])
	payloadCount := binary.LittleEndian.Uint32(data[bundleStart+8:])
	branchAddrCount := binary.LittleEndian.Uint32(data[bundleStart+12:])
	if hMagic != headerMagic || hVersion != version {
		return nil, &ParseError{Field: "header", Reason: "invalid header magic/version"}
	}

	requiredPrefix := uint64(headerSize) +
		uint64(payloadCount)*uint64(entrySize) +
		uint64(branchAddrCount)*8 +
		uint64(footerSize)
	if requiredPrefix > bundleSize {
		vmlog.With("payload_count", payloadCount, "branch_addr_count", branchAddrCount).
			Error("bundle: payload_count/branch_addr_count overruns bundle_size")
		return nil, &ParseError{Field: "header.payload_count", Reason: "table sizes overrun bundle_size"}
	}

	entryTableOff := bundleStart + headerSize
	branchAddrTableOff := entryTableOff + uint64(payloadCount)*entrySize
	payloadDataBeginMin := branchAddrTableOff + uint64(branchAddrCount)*8
	payloadDataEnd := bundleStart + bundleSize - footerSize

	branchAddrs := make([]uint64, branchAddrCount)
	for i := uint32(0); i < branchAddrCount; i++ {
		off := branchAddrTableOff + uint64(i)*8
		branchAddrs[i] = binary.LittleEndian.Uint64(data[off:])
	}

	seen := make(map[uint64]bool, payloadCount)
	entries := make([]Entry, 0, payloadCount)
	for i := uint32(0); i < payloadCount; i++ {
		off := entryTableOff + uint64(i)*entrySize
		funAddr := binary.LittleEndian.Uint64(data[off:])
		dataOffset := binary.LittleEndian.Uint64(data[off+8:])
		dataSize := binary.LittleEndian.Uint64(data[off+16:])

		if funAddr == 0 || dataSize == 0 {
			return nil, &ParseError{Field: "entry.fun_addr", Reason: "zero fun_addr or data_size"}
		}
		if seen[funAddr] {
			return nil, &ParseError{Field: "entry.fun_addr", Reason: "duplicate fun_addr"}
		}
		seen[funAddr] = true

		absBegin := bundleStart + dataOffset
		absEnd := absBegin + dataSize
		if absBegin < payloadDataBeginMin || absEnd > payloadDataEnd || absBegin >= absEnd {
			return nil, &ParseError{Field: "entry.data_offset", Reason: "payload range out of bounds"}
		}

		buf := make([]byte, dataSize)
		copy(buf, data[absBegin:absEnd])
		entries = append(entries, Entry{FunAddr: funAddr, Data: buf})
	}

	vmlog.With("payload_count", len(entries), "branch_addr_count", len(branchAddrs)).
		Debug("bundle: parsed")
	return &Result{Entries: entries, SharedBranchAddrs: branchAddrs}, nil
}
