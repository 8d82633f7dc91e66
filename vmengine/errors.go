package vmengine

import "fmt"

// ExecError reports a fatal condition raised while interpreting one
// runtime function's inst_words — an unknown opcode, an out-of-range PC,
// a malformed operand. Per spec.md §4.7 "Failure semantics": there is no
// partial state written back.
type ExecError struct {
	SoName string
	Offset uint64
	PC     int
	Reason string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("vmengine: %s@%#x pc=%d: %s", e.SoName, e.Offset, e.PC, e.Reason)
}

// NotCachedError is returned by Execute when no runtime function is
// cached for (so_name, function_offset).
type NotCachedError struct {
	SoName string
	Offset uint64
}

func (e *NotCachedError) Error() string {
	return fmt.Sprintf("vmengine: no cached function for %s@%#x", e.SoName, e.Offset)
}
