package bitcodec

import "errors"

// ErrShortStream is returned when fewer bits remain than a read requires.
var ErrShortStream = errors.New("not enough bits remaining in stream")

// ErrTooManyChunks is returned when a readExtU32 continuation run exceeds
// the bound needed to cover a 32-bit value, which can only happen on a
// corrupt or hostile stream.
var ErrTooManyChunks = errors.New("extended u32 continuation run too long")
