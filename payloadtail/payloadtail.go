// Package payloadtail reads the small CRC-guarded footer a host .so
// carries when it embeds a second expanded .so's bytes as its own
// payload (route4's embedded-payload path), grounded in
// original_source/VmEngine/app/src/main/cpp/zEmbeddedPayload.{h,cpp}.
package payloadtail

import (
	"encoding/binary"
	"hash/crc32"
	"os"

	"github.com/xyproto/vmarmcore/internal/vmlog"
)

const (
	footerMagic   uint32 = 0x34454d56 // "VME4"
	footerVersion uint32 = 1
	footerSize           = 24 // magic, version u32 + payloadSize u64 + crc32, reserved u32
)

// Status reports what was found at the tail of the host .so.
type Status int

const (
	// StatusOk means a footer was found and the payload's CRC matched.
	StatusOk Status = iota
	// StatusNotFound means the file is too short to carry a footer, or
	// the tail bytes don't match this footer's magic/version — a normal
	// "not wired up" condition, not an error.
	StatusNotFound
	// StatusInvalid means a footer was found but its size or CRC didn't
	// check out.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ReadFile loads hostSoPath and extracts its embedded payload, if any.
func ReadFile(hostSoPath string) ([]byte, Status, error) {
	data, err := os.ReadFile(hostSoPath)
	if err != nil {
		return nil, StatusInvalid, err
	}
	return Parse(data)
}

// Parse recovers the embedded payload from the tail of hostBytes, the
// full bytes of a host .so. The standard library's crc32.ChecksumIEEE is
// used in place of the original's hand-rolled CRC table construction,
// since both compute the identical CRC-32/ISO-HDLC checksum.
func Parse(hostBytes []byte) ([]byte, Status, error) {
	if len(hostBytes) < footerSize {
		return nil, StatusNotFound, nil
	}

	footerOff := len(hostBytes) - footerSize
	magic := binary.LittleEndian.Uint32(hostBytes[footerOff:])
	ver := binary.LittleEndian.Uint32(hostBytes[footerOff+4:])
	if magic != footerMagic || ver != footerVersion {
		return nil, StatusNotFound, nil
	}

	payloadSize := binary.LittleEndian.Uint64(hostBytes[footerOff+8:])
	expectedCrc := binary.LittleEndian.Uint32(hostBytes[footerOff+16:])

	available := uint64(len(hostBytes) - footerSize)
	if payloadSize == 0 || payloadSize > available {
		vmlog.With("payload_size", payloadSize, "available", available).
			Error("payloadtail: invalid payloadSize")
		return nil, StatusInvalid, &ParseError{Reason: "payloadSize is zero or exceeds available bytes"}
	}

	payloadBegin := available - payloadSize
	payload := hostBytes[payloadBegin : payloadBegin+payloadSize]

	actualCrc := crc32.ChecksumIEEE(payload)
	if actualCrc != expectedCrc {
		vmlog.With("expected_crc", expectedCrc, "actual_crc", actualCrc).
			Error("payloadtail: crc mismatch")
		return nil, StatusInvalid, &ParseError{Reason: "payload CRC-32 mismatch"}
	}

	out := make([]byte, payloadSize)
	copy(out, payload)
	return out, StatusOk, nil
}
