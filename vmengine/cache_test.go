package vmengine

import (
	"testing"

	"github.com/xyproto/vmarmcore/funcdata"
)

func minimalRecord(offset uint64) *funcdata.Record {
	return &funcdata.Record{
		FunctionOffset: offset,
	}
}

func TestCacheFunctionReplacesEntry(t *testing.T) {
	e := New()
	fn1, err := NewFunction("libfoo.so", minimalRecord(0x10))
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	e.CacheFunction(fn1)

	fn2, err := NewFunction("libfoo.so", minimalRecord(0x10))
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	e.CacheFunction(fn2)

	got, ok := e.lookup("libfoo.so", 0x10)
	if !ok {
		t.Fatalf("expected cached entry")
	}
	if got != fn2 {
		t.Fatalf("expected the second cached function to win")
	}
}

func TestClearCacheDropsEntries(t *testing.T) {
	e := New()
	fn, err := NewFunction("libfoo.so", minimalRecord(0x20))
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	e.CacheFunction(fn)
	e.ClearCache()

	if _, ok := e.lookup("libfoo.so", 0x20); ok {
		t.Fatalf("expected cache to be empty after ClearCache")
	}
}

func TestSharedBranchAddrsRoundTripAndBounds(t *testing.T) {
	e := New()
	e.SetSharedBranchAddrs("libfoo.so", []uint64{0x1000, 0x2000})

	addr, ok := e.branchAddr("libfoo.so", 1)
	if !ok || addr != 0x2000 {
		t.Fatalf("branchAddr(1) = (%#x, %v), want (0x2000, true)", addr, ok)
	}
	if _, ok := e.branchAddr("libfoo.so", 2); ok {
		t.Fatalf("expected index 2 to be out of range")
	}

	e.ClearSharedBranchAddrs("libfoo.so")
	if _, ok := e.branchAddr("libfoo.so", 0); ok {
		t.Fatalf("expected no branch addrs after Clear")
	}
}

func TestSharedBranchAddrsAreCopiedNotAliased(t *testing.T) {
	e := New()
	addrs := []uint64{0x1000}
	e.SetSharedBranchAddrs("libfoo.so", addrs)
	addrs[0] = 0xdead

	got, ok := e.branchAddr("libfoo.so", 0)
	if !ok || got != 0x1000 {
		t.Fatalf("branchAddr(0) = (%#x, %v), want (0x1000, true); SetSharedBranchAddrs must defensively copy", got, ok)
	}
}
