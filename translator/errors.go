package translator

import "fmt"

// TranslationError reports a hard translation failure, locating the
// address, mnemonic, and raw instruction word involved (spec.md §4.3:
// "a message locating address, mnemonic, operand string, and reason").
type TranslationError struct {
	Addr     uint64
	Mnemonic string
	Word     uint32
	Reason   string
}

func (e *TranslationError) Error() string {
	mnemonic := e.Mnemonic
	if mnemonic == "" {
		mnemonic = "<unknown>"
	}
	return fmt.Sprintf("translator: failed at addr=0x%x mnemonic=%s word=0x%08x: %s", e.Addr, mnemonic, e.Word, e.Reason)
}
