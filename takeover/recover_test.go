package takeover

import "testing"

func TestRecoverSlotMap(t *testing.T) {
	symbols := []DynsymEntry{
		{Name: "vm_takeover_slot_0007", Value: 0x1000, Size: 0},
		{Name: "vm_takeover_slot_0012", Value: 0x2000, Size: 0},
		{Name: "donor_alias_a", Value: 0x1000, Size: 0x500},
		{Name: "donor_alias_b", Value: 0x2000, Size: 0x900},
		{Name: "unrelated", Value: 0x3000, Size: 0x10},
	}

	got, err := RecoverSlotMap(symbols)
	if err != nil {
		t.Fatalf("RecoverSlotMap: %v", err)
	}
	if got[7] != 0x500 {
		t.Fatalf("slot 7 = %#x, want 0x500", got[7])
	}
	if got[12] != 0x900 {
		t.Fatalf("slot 12 = %#x, want 0x900", got[12])
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}

func TestRecoverSlotMapIgnoresZeroSizeAndUnmatchedAddresses(t *testing.T) {
	symbols := []DynsymEntry{
		{Name: "vm_takeover_slot_0001", Value: 0x1000, Size: 0},
		{Name: "zero_size_alias", Value: 0x1000, Size: 0},
		{Name: "other_address", Value: 0x9999, Size: 0x40},
	}
	_, err := RecoverSlotMap(symbols)
	if err == nil {
		t.Fatalf("expected error when no mapping can be recovered")
	}
}

func TestRecoverSlotMapRejectsConflictingSizes(t *testing.T) {
	symbols := []DynsymEntry{
		{Name: "vm_takeover_slot_0001", Value: 0x1000, Size: 0},
		{Name: "alias_a", Value: 0x1000, Size: 0x40},
		{Name: "alias_b", Value: 0x1000, Size: 0x80},
	}
	_, err := RecoverSlotMap(symbols)
	if err == nil {
		t.Fatalf("expected a conflicting-slot ValidationError")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}
