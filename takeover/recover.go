// Package takeover implements the symbol-takeover dispatcher: the
// slot_id -> function_offset table that binds a patched host library's
// exported stub symbols to VM entry points, plus its mutex-protected,
// atomically-readable init state machine.
//
// Grounded in original_source/VmProtect/modules/elfkit/core/
// zSymbolTakeover.{h,cpp} and zElfTakeoverDynsym.h.
package takeover

import (
	"regexp"
	"strconv"
)

var slotSymbolPattern = regexp.MustCompile(`^vm_takeover_slot_([0-9]+)$`)

// DynsymEntry is one symbol from a host SO's .dynsym, reduced to the three
// fields recovery needs (name, value, size). Callers assemble this slice
// from whatever ELF symbol-table representation they have on hand (a
// *linker.soinfo's symtab walk, or a real self-introspecting dynsym reader —
// both outside this package's concern; recovery itself is a pure function
// over already-parsed symbols, per spec.md §4.8).
type DynsymEntry struct {
	Name  string
	Value uint64
	Size  uint64
}

// RecoverSlotMap implements spec.md §4.8's two-pass dynsym scan: symbols
// named vm_takeover_slot_NNNN identify a slot's native address; for every
// other symbol sharing that address with a nonzero size, its size is the
// guest function_offset for that slot (the "Takeover alias recovery
// contract", spec.md §6). A slot_id recovered from two donor symbols with
// different sizes is a hard ValidationError; at least one mapping must be
// recovered, or the scan is itself a ValidationError.
func RecoverSlotMap(symbols []DynsymEntry) (map[uint32]uint64, error) {
	valueToSlot := make(map[uint64]uint32)
	for _, s := range symbols {
		m := slotSymbolPattern.FindStringSubmatch(s.Name)
		if m == nil {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		valueToSlot[s.Value] = uint32(id)
	}

	result := make(map[uint32]uint64)
	for _, s := range symbols {
		if slotSymbolPattern.MatchString(s.Name) {
			continue
		}
		slotID, ok := valueToSlot[s.Value]
		if !ok || s.Size == 0 {
			continue
		}
		if existing, ok := result[slotID]; ok && existing != s.Size {
			return nil, &ValidationError{Field: "slot_id", Reason: "conflicting function_offset recovered for the same slot"}
		}
		result[slotID] = s.Size
	}

	if len(result) == 0 {
		return nil, &ValidationError{Field: "entries", Reason: "no takeover slot mappings recovered from dynsym"}
	}
	return result, nil
}
