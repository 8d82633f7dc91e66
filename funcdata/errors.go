package funcdata

import "fmt"

// ParseError reports a failure decoding the bit stream itself (truncation,
// codec guard rejection).
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("funcdata: parse error at %s: %s", e.Field, e.Reason)
}

// ValidationError reports a structurally decodable payload that violates an
// invariant from spec.md §3.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("funcdata: validation error at %s: %s", e.Field, e.Reason)
}
