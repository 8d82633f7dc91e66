// Package funcdata implements the encoded function payload: the central
// artifact of vmarmcore (spec.md §3 "Encoded function payload"), its
// structural validation, and its bit-stream (de)serialization (spec.md
// §4.2).
//
// Grounded field-for-field on
// original_source/VmProtect/modules/elfkit/core/zFunctionData.{h,cpp},
// including the indirect-branch lookup table
// (branch_lookup_words/branch_lookup_addrs) the distilled spec.md dropped
// but the original always encodes (see SPEC_FULL.md §3).
package funcdata

import (
	"fmt"

	"github.com/xyproto/vmarmcore/bitcodec"
)

// Record is the encoded function payload plus optional debug metadata that
// is never part of the wire format.
type Record struct {
	// FunctionName and FunctionBytes are debug-only metadata for logging;
	// never serialized. translator.Translate leaves them empty.
	FunctionName  string
	FunctionBytes []byte

	Marker           uint32
	RegisterCount    uint32
	FirstInstCount   uint32
	FirstInstOpcodes []uint32
	ExternalInitWords []uint32
	TypeCount        uint32
	TypeTags         []uint32
	InitValueCount   uint32
	InitValueWords   []uint32
	InstCount        uint32
	InstWords        []uint32
	BranchCount      uint32
	BranchWords      []uint32
	// BranchLookupWords/BranchLookupAddrs form the indirect-branch lookup
	// table (SPEC_FULL.md §3): parallel arrays, always equal length.
	BranchLookupWords []uint32
	BranchLookupAddrs []uint64
	BranchAddrs       []uint64
	FunctionOffset    uint64
}

// firstInstOpcode values (spec.md §3).
const (
	FirstInstImm32 = 0
	FirstInstImm64 = 1
	FirstInstTypeTable = 2
)

// Validate enforces every invariant from spec.md §3 / original's
// zFunctionData::validate. It returns the first violated invariant.
func (r *Record) Validate() error {
	if r.Marker > 0x3f {
		return &ValidationError{Field: "marker", Reason: "must fit into 6 bits"}
	}
	if r.FirstInstCount != uint32(len(r.FirstInstOpcodes)) {
		return &ValidationError{Field: "first_inst_count", Reason: "does not match len(first_inst_opcodes)"}
	}
	if len(r.ExternalInitWords) != 0 && len(r.ExternalInitWords) != int(r.FirstInstCount)*2 {
		return &ValidationError{Field: "external_init_words", Reason: "must be empty or 2*first_inst_count"}
	}
	if r.TypeCount != uint32(len(r.TypeTags)) {
		return &ValidationError{Field: "type_count", Reason: "does not match len(type_tags)"}
	}
	if r.InstCount != uint32(len(r.InstWords)) {
		return &ValidationError{Field: "inst_count", Reason: "does not match len(inst_words)"}
	}
	if r.BranchCount != uint32(len(r.BranchWords)) {
		return &ValidationError{Field: "branch_count", Reason: "does not match len(branch_words)"}
	}
	if len(r.BranchLookupWords) != len(r.BranchLookupAddrs) {
		return &ValidationError{Field: "branch_lookup_words", Reason: "does not match len(branch_lookup_addrs)"}
	}
	if r.InitValueCount > r.FirstInstCount {
		return &ValidationError{Field: "init_value_count", Reason: "cannot exceed first_inst_count"}
	}
	if r.InitValueCount == 0 {
		if len(r.InitValueWords) != 0 {
			return &ValidationError{Field: "init_value_words", Reason: "must be empty when init_value_count == 0"}
		}
		return nil
	}
	if uint32(len(r.FirstInstOpcodes)) < r.InitValueCount {
		return &ValidationError{Field: "first_inst_opcodes", Reason: "shorter than init_value_count"}
	}
	expected := expectedInitWordCount(r)
	if uint32(len(r.InitValueWords)) != expected {
		return &ValidationError{Field: "init_value_words", Reason: "unexpected size for init opcode layout"}
	}
	return nil
}

func expectedInitWordCount(r *Record) uint32 {
	var expected uint32
	for i := uint32(0); i < r.InitValueCount; i++ {
		opcode := r.FirstInstOpcodes[i]
		expected++
		if opcode == FirstInstImm64 {
			expected += 2
		} else {
			expected++
		}
	}
	return expected
}

// Serialize writes the record's fields in the exact protocol order (spec.md
// §4.2), validating first.
func (r *Record) Serialize() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	w := bitcodec.NewWriter()
	w.Write6(r.Marker)
	w.WriteExtU32(r.RegisterCount)
	w.WriteExtU32(r.FirstInstCount)
	for _, v := range r.FirstInstOpcodes {
		w.WriteExtU32(v)
	}
	for _, v := range r.ExternalInitWords {
		w.WriteExtU32(v)
	}
	w.WriteExtU32(r.TypeCount)
	for _, v := range r.TypeTags {
		w.WriteExtU32(v)
	}
	w.WriteExtU32(r.InitValueCount)
	for _, v := range r.InitValueWords {
		w.WriteExtU32(v)
	}
	w.WriteExtU32(r.InstCount)
	for _, v := range r.InstWords {
		w.WriteExtU32(v)
	}
	w.WriteExtU32(r.BranchCount)
	for _, v := range r.BranchWords {
		w.WriteExtU32(v)
	}
	w.WriteExtU32(uint32(len(r.BranchLookupWords)))
	for _, v := range r.BranchLookupWords {
		w.WriteExtU32(v)
	}
	w.WriteExtU32(uint32(len(r.BranchLookupAddrs)))
	for _, v := range r.BranchLookupAddrs {
		bitcodec.WriteU64AsU32Pair(w, v)
	}
	w.WriteExtU32(uint32(len(r.BranchAddrs)))
	for _, v := range r.BranchAddrs {
		bitcodec.WriteU64AsU32Pair(w, v)
	}
	bitcodec.WriteU64AsU32Pair(w, r.FunctionOffset)

	return w.Finish(), nil
}

// Deserialize is the inverse of Serialize, followed by a full Validate.
func Deserialize(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, &ParseError{Field: "input", Reason: "buffer is empty"}
	}
	r := &Record{}
	reader := bitcodec.NewReader(data)

	marker, err := reader.Read6()
	if err != nil {
		return nil, &ParseError{Field: "marker", Reason: err.Error()}
	}
	r.Marker = marker

	if r.RegisterCount, err = reader.ReadExtU32(); err != nil {
		return nil, &ParseError{Field: "register_count", Reason: err.Error()}
	}
	if r.FirstInstCount, err = reader.ReadExtU32(); err != nil {
		return nil, &ParseError{Field: "first_inst_count", Reason: err.Error()}
	}

	r.FirstInstOpcodes = make([]uint32, r.FirstInstCount)
	for i := range r.FirstInstOpcodes {
		if r.FirstInstOpcodes[i], err = reader.ReadExtU32(); err != nil {
			return nil, &ParseError{Field: "first_inst_opcodes", Reason: err.Error()}
		}
	}

	if r.FirstInstCount > 0 {
		r.ExternalInitWords = make([]uint32, int(r.FirstInstCount)*2)
		for i := range r.ExternalInitWords {
			if r.ExternalInitWords[i], err = reader.ReadExtU32(); err != nil {
				return nil, &ParseError{Field: "external_init_words", Reason: err.Error()}
			}
		}
	}

	if r.TypeCount, err = reader.ReadExtU32(); err != nil {
		return nil, &ParseError{Field: "type_count", Reason: err.Error()}
	}
	r.TypeTags = make([]uint32, r.TypeCount)
	for i := range r.TypeTags {
		if r.TypeTags[i], err = reader.ReadExtU32(); err != nil {
			return nil, &ParseError{Field: "type_tags", Reason: err.Error()}
		}
	}

	if r.InitValueCount, err = reader.ReadExtU32(); err != nil {
		return nil, &ParseError{Field: "init_value_count", Reason: err.Error()}
	}
	if r.InitValueCount > r.FirstInstCount {
		return nil, &ValidationError{Field: "init_value_count", Reason: "exceeds first_inst_count"}
	}
	for i := uint32(0); i < r.InitValueCount; i++ {
		regIndex, err := reader.ReadExtU32()
		if err != nil {
			return nil, &ParseError{Field: "init_value_words", Reason: "reg index: " + err.Error()}
		}
		r.InitValueWords = append(r.InitValueWords, regIndex)

		word, err := reader.ReadExtU32()
		if err != nil {
			return nil, &ParseError{Field: "init_value_words", Reason: "value: " + err.Error()}
		}
		r.InitValueWords = append(r.InitValueWords, word)

		if r.FirstInstOpcodes[i] == FirstInstImm64 {
			high, err := reader.ReadExtU32()
			if err != nil {
				return nil, &ParseError{Field: "init_value_words", Reason: "high value: " + err.Error()}
			}
			r.InitValueWords = append(r.InitValueWords, high)
		}
	}

	if r.InstCount, err = reader.ReadExtU32(); err != nil {
		return nil, &ParseError{Field: "inst_count", Reason: err.Error()}
	}
	r.InstWords = make([]uint32, r.InstCount)
	for i := range r.InstWords {
		if r.InstWords[i], err = reader.ReadExtU32(); err != nil {
			return nil, &ParseError{Field: "inst_words", Reason: err.Error()}
		}
	}

	if r.BranchCount, err = reader.ReadExtU32(); err != nil {
		return nil, &ParseError{Field: "branch_count", Reason: err.Error()}
	}
	r.BranchWords = make([]uint32, r.BranchCount)
	for i := range r.BranchWords {
		if r.BranchWords[i], err = reader.ReadExtU32(); err != nil {
			return nil, &ParseError{Field: "branch_words", Reason: err.Error()}
		}
	}

	branchLookupCount, err := reader.ReadExtU32()
	if err != nil {
		return nil, &ParseError{Field: "branch_lookup_count", Reason: err.Error()}
	}
	r.BranchLookupWords = make([]uint32, branchLookupCount)
	for i := range r.BranchLookupWords {
		if r.BranchLookupWords[i], err = reader.ReadExtU32(); err != nil {
			return nil, &ParseError{Field: "branch_lookup_words", Reason: err.Error()}
		}
	}
	branchLookupAddrCount, err := reader.ReadExtU32()
	if err != nil {
		return nil, &ParseError{Field: "branch_lookup_addr_count", Reason: err.Error()}
	}
	if branchLookupAddrCount != branchLookupCount {
		return nil, &ValidationError{Field: "branch_lookup_addr_count", Reason: "does not match branch_lookup_count"}
	}
	r.BranchLookupAddrs = make([]uint64, branchLookupAddrCount)
	for i := range r.BranchLookupAddrs {
		if r.BranchLookupAddrs[i], err = bitcodec.ReadU64FromU32Pair(reader); err != nil {
			return nil, &ParseError{Field: "branch_lookup_addrs", Reason: err.Error()}
		}
	}

	branchAddrCount, err := reader.ReadExtU32()
	if err != nil {
		return nil, &ParseError{Field: "branch_addr_count", Reason: err.Error()}
	}
	r.BranchAddrs = make([]uint64, branchAddrCount)
	for i := range r.BranchAddrs {
		if r.BranchAddrs[i], err = bitcodec.ReadU64FromU32Pair(reader); err != nil {
			return nil, &ParseError{Field: "branch_addrs", Reason: err.Error()}
		}
	}

	if r.FunctionOffset, err = bitcodec.ReadU64FromU32Pair(reader); err != nil {
		return nil, &ParseError{Field: "function_offset", Reason: err.Error()}
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// EncodedEquals compares every encoded-relevant field between r and other,
// returning the first field that differs. Intended as a round-trip
// harness, matching original's zFunctionData::encodedEquals.
func (r *Record) EncodedEquals(other *Record) error {
	if r.Marker != other.Marker {
		return mismatch("marker", r.Marker, other.Marker)
	}
	if r.RegisterCount != other.RegisterCount {
		return mismatch("register_count", r.RegisterCount, other.RegisterCount)
	}
	if r.FirstInstCount != other.FirstInstCount {
		return mismatch("first_inst_count", r.FirstInstCount, other.FirstInstCount)
	}
	if !equalU32(r.FirstInstOpcodes, other.FirstInstOpcodes) {
		return fmt.Errorf("encodedEquals mismatch: first_inst_opcodes")
	}
	if !equalU32(r.ExternalInitWords, other.ExternalInitWords) {
		return fmt.Errorf("encodedEquals mismatch: external_init_words")
	}
	if r.TypeCount != other.TypeCount {
		return mismatch("type_count", r.TypeCount, other.TypeCount)
	}
	if !equalU32(r.TypeTags, other.TypeTags) {
		return fmt.Errorf("encodedEquals mismatch: type_tags")
	}
	if r.InitValueCount != other.InitValueCount {
		return mismatch("init_value_count", r.InitValueCount, other.InitValueCount)
	}
	if !equalU32(r.InitValueWords, other.InitValueWords) {
		return fmt.Errorf("encodedEquals mismatch: init_value_words")
	}
	if r.InstCount != other.InstCount {
		return mismatch("inst_count", r.InstCount, other.InstCount)
	}
	if !equalU32(r.InstWords, other.InstWords) {
		return fmt.Errorf("encodedEquals mismatch: inst_words")
	}
	if r.BranchCount != other.BranchCount {
		return mismatch("branch_count", r.BranchCount, other.BranchCount)
	}
	if !equalU32(r.BranchWords, other.BranchWords) {
		return fmt.Errorf("encodedEquals mismatch: branch_words")
	}
	if !equalU32(r.BranchLookupWords, other.BranchLookupWords) {
		return fmt.Errorf("encodedEquals mismatch: branch_lookup_words")
	}
	if !equalU64(r.BranchLookupAddrs, other.BranchLookupAddrs) {
		return fmt.Errorf("encodedEquals mismatch: branch_lookup_addrs")
	}
	if !equalU64(r.BranchAddrs, other.BranchAddrs) {
		return fmt.Errorf("encodedEquals mismatch: branch_addrs")
	}
	if r.FunctionOffset != other.FunctionOffset {
		return mismatch("function_offset", r.FunctionOffset, other.FunctionOffset)
	}
	return nil
}

func mismatch(field string, lhs, rhs interface{}) error {
	return fmt.Errorf("encodedEquals mismatch: %s lhs=%v rhs=%v", field, lhs, rhs)
}

func equalU32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalU64(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
