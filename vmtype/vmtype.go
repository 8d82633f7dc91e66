// Package vmtype implements the VM's runtime type objects: the tagged
// variant built from a function's type_tag stream (spec.md §3 "Type
// object"), and the per-function arena that owns them.
//
// Grounded in original_source's zTypeManager (a near-empty stub in the
// original — the real type semantics live in the opcode lowering tables,
// so this package only needs to carry tag -> kind/width mapping) and in
// xyproto-vibe67's arena.go arena-allocation pattern, adapted from a
// code-generation-time bump allocator to a per-function-object arena that
// owns Type values for the runtime function's lifetime.
package vmtype

import "fmt"

// Kind distinguishes the primitive/struct variants a Type can hold.
type Kind uint8

const (
	// KindInvalid marks a zero-value Type; never produced by CreateFromTag.
	KindInvalid Kind = iota
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindStruct
)

// Tag is the small integer encoding read from a function's type_tags
// stream. The low bits select the Kind; tags at or above tagStructBase identify a
// struct type, carrying a struct index in the remaining bits.
type Tag uint32

const tagStructBase Tag = 0x100

// primitive tags, matching the translator's width/signedness choices
// (spec.md §4.3 "Type-tag mapping").
const (
	TagInt8 Tag = iota
	TagUint8
	TagInt16
	TagUint16
	TagInt32
	TagUint32
	TagInt64
	TagUint64
)

// Type is a tagged variant: a primitive width/signedness pair, or a struct
// reference. Lifetime is scoped to the owning runtime function via Arena.
type Type struct {
	Kind       Kind
	WidthBits  int
	Signed     bool
	StructID   uint32 // meaningful only when Kind == KindStruct
}

// Arena owns every Type constructed for one runtime function. It exists so
// the VM cache can free an entire function's type objects in one step on
// eviction, mirroring spec.md §9's "per-function arena keyed to the runtime
// function's lifetime."
type Arena struct {
	types []*Type
}

// NewArena returns an empty, ready-to-use arena.
func NewArena() *Arena {
	return &Arena{}
}

// CreateFromTag builds (or, for simple primitives, synthesizes) a Type from
// a raw tag value and records it in the arena for bulk release later.
func (a *Arena) CreateFromTag(tag uint32) (*Type, error) {
	t, err := fromTag(Tag(tag))
	if err != nil {
		return nil, err
	}
	a.types = append(a.types, t)
	return t, nil
}

// Release drops every Type this arena owns. Safe to call multiple times.
func (a *Arena) Release() {
	a.types = nil
}

// Len reports how many Type objects the arena currently owns.
func (a *Arena) Len() int {
	return len(a.types)
}

func fromTag(tag Tag) (*Type, error) {
	if tag >= tagStructBase {
		return &Type{Kind: KindStruct, StructID: uint32(tag - tagStructBase)}, nil
	}
	switch tag {
	case TagInt8:
		return &Type{Kind: KindInt8, WidthBits: 8, Signed: true}, nil
	case TagUint8:
		return &Type{Kind: KindUint8, WidthBits: 8, Signed: false}, nil
	case TagInt16:
		return &Type{Kind: KindInt16, WidthBits: 16, Signed: true}, nil
	case TagUint16:
		return &Type{Kind: KindUint16, WidthBits: 16, Signed: false}, nil
	case TagInt32:
		return &Type{Kind: KindInt32, WidthBits: 32, Signed: true}, nil
	case TagUint32:
		return &Type{Kind: KindUint32, WidthBits: 32, Signed: false}, nil
	case TagInt64:
		return &Type{Kind: KindInt64, WidthBits: 64, Signed: true}, nil
	case TagUint64:
		return &Type{Kind: KindUint64, WidthBits: 64, Signed: false}, nil
	default:
		return nil, fmt.Errorf("vmtype: unknown type tag %d", tag)
	}
}

// IsSignature reports whether tag 0 of a function's type_tags represents
// the function's own signature type (spec.md §3: "type_tags[0], if a
// struct kind, is the function's signature type").
func IsSignature(tags []uint32) bool {
	if len(tags) == 0 {
		return false
	}
	return Tag(tags[0]) >= tagStructBase
}
