package bundle

import "fmt"

// ParseError reports a structural failure reading the tail-appended
// container: a bad magic/version, a size that doesn't fit, or an entry
// whose data range escapes the payload area.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bundle: parse error at %s: %s", e.Field, e.Reason)
}
