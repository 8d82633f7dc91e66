package linker

import "fmt"

// LoadError reports a failure anywhere in the open/map/relocate pipeline
// (spec.md §4.6): a malformed ELF header, an out-of-bounds program-header
// table, a failed reservation, or (in Strict mode) an unresolved symbol.
type LoadError struct {
	SoName string
	Stage  string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("linker: load %s failed at %s: %s", e.SoName, e.Stage, e.Reason)
}

// LookupError reports a symbol that could not be resolved locally, in any
// DT_NEEDED library, or in the process-global table.
type LookupError struct {
	SoName string
	Symbol string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("linker: symbol %q not found while loading %s", e.Symbol, e.SoName)
}
