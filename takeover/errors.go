package takeover

import "fmt"

// ValidationError reports a structurally well-formed but invariant-violating
// takeover init call (spec.md §7 "ValidationError"): empty entries, a zero
// function_offset, or conflicting slot_id recoveries.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("takeover: validation error at %s: %s", e.Field, e.Reason)
}

// DispatchError reports a dispatch_by_id call that could not run because
// the dispatcher failed to reach Ready. An unknown slot_id produces no
// DispatchError: DispatchByID returns 0 for it directly.
type DispatchError struct {
	SlotID uint32
	Reason string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("takeover: dispatch error for slot %d: %s", e.SlotID, e.Reason)
}
