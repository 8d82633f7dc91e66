// Package vmengine is the register-based VM interpreter: it caches
// translated runtime functions keyed by (so_name, function_offset) and
// dispatches their inst_words, implementing every opcode spec.md §4.7
// names. Grounded in
// original_source/VmEngine/app/src/main/cpp/zVmEngine.{h,cpp} and
// zVmOpcodes.{h,cpp}.
package vmengine

import (
	"github.com/xyproto/vmarmcore/funcdata"
	"github.com/xyproto/vmarmcore/vmtype"
)

// Function is a cached, ready-to-run runtime function: a translated
// record plus its resolved type objects. It owns its type arena for its
// entire cached lifetime (spec.md §9 "Manual memory in soinfo and type
// pool"); ClearCache releases every Function's arena in one step.
type Function struct {
	SoName string
	Record *funcdata.Record

	arena *vmtype.Arena
	types []*vmtype.Type
}

// NewFunction resolves rec's type_tags into vmtype.Type objects under a
// fresh arena, ready to be cached.
func NewFunction(soName string, rec *funcdata.Record) (*Function, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	arena := vmtype.NewArena()
	types := make([]*vmtype.Type, len(rec.TypeTags))
	for i, tag := range rec.TypeTags {
		t, err := arena.CreateFromTag(tag)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return &Function{SoName: soName, Record: rec, arena: arena, types: types}, nil
}

// release drops the function's type arena; called from ClearCache.
func (f *Function) release() { f.arena.Release() }

func (f *Function) typeAt(idx uint32) (*vmtype.Type, error) {
	if idx >= uint32(len(f.types)) {
		return nil, &ExecError{SoName: f.SoName, Offset: f.Record.FunctionOffset, Reason: "type_idx out of range"}
	}
	return f.types[idx], nil
}
