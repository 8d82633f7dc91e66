package payloadtail

import "fmt"

// ParseError reports a footer that parses structurally but fails its
// size or CRC check.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("payloadtail: %s", e.Reason)
}
