// Package wire implements the server's length-prefixed packet framing and
// the typed packet schemas carried in each frame's body.
package wire

import (
	"encoding/binary"
	"errors"
)

// MaxFrameBody is the hard cap on a single frame's body size (spec §4.1).
const MaxFrameBody = 1 << 20 // 1 MiB

// LengthPrefixSize is the size of the int32 LE length header preceding each body.
const LengthPrefixSize = 4

// ErrProtocol is returned by Extract when a frame's declared length is
// negative or exceeds MaxFrameBody. Extract has already reset the
// accumulator by then; the caller MUST disconnect the owning session
// (spec §4.1, §7).
var ErrProtocol = errors.New("wire: invalid frame length")

// Accumulator reassembles frames from a stream of arbitrarily-chunked reads.
// One Accumulator belongs to exactly one session; it is not safe for
// concurrent use by multiple goroutines.
type Accumulator struct {
	buf []byte
}

// NewAccumulator returns an empty Accumulator with room for a handful of
// small frames before its first grow.
func NewAccumulator() *Accumulator {
	return &Accumulator{buf: make([]byte, 0, 4096)}
}

// Append adds freshly-read bytes to the accumulator.
func (a *Accumulator) Append(p []byte) {
	a.buf = append(a.buf, p...)
}

// Extract consumes every complete frame currently buffered and returns
// their bodies in arrival order. Incomplete trailing bytes are left in
// place for the next Append. On a protocol violation it resets the
// accumulator entirely and returns ErrProtocol; the caller must disconnect.
func (a *Accumulator) Extract() ([][]byte, error) {
	var bodies [][]byte

	for {
		if len(a.buf) < LengthPrefixSize {
			break
		}

		length := int32(binary.LittleEndian.Uint32(a.buf[:LengthPrefixSize]))
		if length < 0 || int(length) > MaxFrameBody {
			a.buf = a.buf[:0]
			return nil, ErrProtocol
		}

		total := LengthPrefixSize + int(length)
		if len(a.buf) < total {
			break // partial frame, wait for more bytes
		}

		body := make([]byte, length)
		copy(body, a.buf[LengthPrefixSize:total])
		bodies = append(bodies, body)

		a.buf = a.buf[total:]
	}

	// Compact so the backing array doesn't grow unbounded across many
	// small partial reads.
	if len(a.buf) > 0 && cap(a.buf) > 2*len(a.buf) && cap(a.buf) > 8192 {
		compacted := make([]byte, len(a.buf), max(len(a.buf), 4096))
		copy(compacted, a.buf)
		a.buf = compacted
	}

	return bodies, nil
}

// EncodeFrame prefixes body with its int32 LE length, ready for a single
// socket write.
func EncodeFrame(body []byte) []byte {
	frame := make([]byte, LengthPrefixSize+len(body))
	binary.LittleEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(body)))
	copy(frame[LengthPrefixSize:], body)
	return frame
}
