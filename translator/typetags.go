package translator

import "github.com/xyproto/vmarmcore/vmtype"

// typeTagTable mirrors the original's type_id_list: a get-or-add list of
// type tags, uniqued by value (spec.md §4.3 "Type-tag mapping").
type typeTagTable struct {
	tags  []uint32
	index map[uint32]uint32
}

func newTypeTagTable() *typeTagTable {
	return &typeTagTable{index: make(map[uint32]uint32)}
}

func (t *typeTagTable) getOrAdd(tag vmtype.Tag) uint32 {
	v := uint32(tag)
	if idx, ok := t.index[v]; ok {
		return idx
	}
	idx := uint32(len(t.tags))
	t.tags = append(t.tags, v)
	t.index[v] = idx
	return idx
}

// forWidthSigned picks the tag for a width in bits (32 or 64) and
// signedness, matching "32-bit W* → signed-int32 tag, else signed-int64
// tag" with unsigned variants available for operations that require them.
func (t *typeTagTable) forWidthSigned(widthBits int, signed bool) uint32 {
	switch {
	case widthBits == 32 && signed:
		return t.getOrAdd(vmtype.TagInt32)
	case widthBits == 32 && !signed:
		return t.getOrAdd(vmtype.TagUint32)
	case signed:
		return t.getOrAdd(vmtype.TagInt64)
	default:
		return t.getOrAdd(vmtype.TagUint64)
	}
}

// forRegWidth chooses a signed tag sized to the destination register's
// width (W -> int32, X -> int64), the default used by most arithmetic
// lowerings.
func (t *typeTagTable) forRegWidth(isW bool) uint32 {
	if isW {
		return t.forWidthSigned(32, true)
	}
	return t.forWidthSigned(64, true)
}

func (t *typeTagTable) forRegWidthUnsigned(isW bool) uint32 {
	if isW {
		return t.forWidthSigned(32, false)
	}
	return t.forWidthSigned(64, false)
}
