package payloadtail

import (
	"encoding/binary"
	"hash/crc32"
	"testing"
)

func buildFooter(t *testing.T, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(buf[0:], footerMagic)
	binary.LittleEndian.PutUint32(buf[4:], footerVersion)
	binary.LittleEndian.PutUint64(buf[8:], uint64(len(payload)))
	binary.LittleEndian.PutUint32(buf[16:], crc32.ChecksumIEEE(payload))
	return buf
}

func TestParseRoundTrip(t *testing.T) {
	payload := []byte("expanded so bytes go here")
	hostPrefix := []byte{0x7f, 'E', 'L', 'F'}
	data := append(append(append([]byte{}, hostPrefix...), payload...), buildFooter(t, payload)...)

	out, status, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if status != StatusOk {
		t.Fatalf("status = %v, want StatusOk", status)
	}
	if string(out) != string(payload) {
		t.Fatalf("payload mismatch: got %q want %q", out, payload)
	}
}

func TestParseTooShortIsNotFound(t *testing.T) {
	_, status, err := Parse([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusNotFound {
		t.Fatalf("status = %v, want StatusNotFound", status)
	}
}

func TestParseBadMagicIsNotFound(t *testing.T) {
	footer := buildFooter(t, []byte("x"))
	footer[0] ^= 0xff
	data := append([]byte("x"), footer...)
	_, status, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusNotFound {
		t.Fatalf("status = %v, want StatusNotFound", status)
	}
}

func TestParseCrcMismatchIsInvalid(t *testing.T) {
	payload := []byte("hello world")
	footer := buildFooter(t, payload)
	corrupted := append([]byte{}, payload...)
	corrupted[0] ^= 0xff
	data := append(corrupted, footer...)

	_, status, err := Parse(data)
	if err == nil {
		t.Fatal("expected error for CRC mismatch")
	}
	if status != StatusInvalid {
		t.Fatalf("status = %v, want StatusInvalid", status)
	}
}

func TestParseZeroPayloadSizeIsInvalid(t *testing.T) {
	footer := buildFooter(t, nil)
	_, status, err := Parse(footer)
	if err == nil {
		t.Fatal("expected error for zero payloadSize")
	}
	if status != StatusInvalid {
		t.Fatalf("status = %v, want StatusInvalid", status)
	}
}

func TestParseOversizedPayloadIsInvalid(t *testing.T) {
	footer := buildFooter(t, make([]byte, 1000))
	// Truncate so the claimed payload size exceeds what's actually present.
	data := footer
	_, status, err := Parse(data)
	if err == nil {
		t.Fatal("expected error for payloadSize exceeding available bytes")
	}
	if status != StatusInvalid {
		t.Fatalf("status = %v, want StatusInvalid", status)
	}
}
