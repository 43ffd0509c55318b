package wire

import (
	"bytes"
	"testing"
)

func TestAccumulatorExtractsWholeFramesAcrossArbitrarySplits(t *testing.T) {
	frames := [][]byte{
		{0x01, 0x02, 0x03},
		{},
		{0xAA, 0xBB, 0xCC, 0xDD, 0xEE},
	}

	var wire []byte
	for _, f := range frames {
		wire = append(wire, EncodeFrame(f)...)
	}

	for chunkSize := 1; chunkSize <= len(wire); chunkSize++ {
		acc := NewAccumulator()
		var got [][]byte
		for i := 0; i < len(wire); i += chunkSize {
			end := min(i+chunkSize, len(wire))
			acc.Append(wire[i:end])
			bodies, err := acc.Extract()
			if err != nil {
				t.Fatalf("chunkSize=%d: Extract returned error: %v", chunkSize, err)
			}
			got = append(got, bodies...)
		}

		if len(got) != len(frames) {
			t.Fatalf("chunkSize=%d: got %d frames, want %d", chunkSize, len(got), len(frames))
		}
		for i, f := range frames {
			if !bytes.Equal(got[i], f) {
				t.Errorf("chunkSize=%d: frame %d = %v, want %v", chunkSize, i, got[i], f)
			}
		}
	}
}

func TestAccumulatorRejectsOversizeFrame(t *testing.T) {
	acc := NewAccumulator()
	header := make([]byte, LengthPrefixSize)
	// length field = MaxFrameBody+1, LE
	over := uint32(MaxFrameBody + 1)
	header[0] = byte(over)
	header[1] = byte(over >> 8)
	header[2] = byte(over >> 16)
	header[3] = byte(over >> 24)

	acc.Append(header)
	_, err := acc.Extract()
	if err != ErrProtocol {
		t.Fatalf("Extract() error = %v, want ErrProtocol", err)
	}
}

func TestAccumulatorRejectsNegativeLength(t *testing.T) {
	acc := NewAccumulator()
	acc.Append([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // -1 as int32 LE
	_, err := acc.Extract()
	if err != ErrProtocol {
		t.Fatalf("Extract() error = %v, want ErrProtocol", err)
	}
}

func TestAccumulatorYieldsPartialProgress(t *testing.T) {
	acc := NewAccumulator()
	full := EncodeFrame([]byte{1, 2, 3, 4})

	acc.Append(full[:2])
	bodies, err := acc.Extract()
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(bodies) != 0 {
		t.Fatalf("got %d frames from a partial header, want 0", len(bodies))
	}

	acc.Append(full[2:])
	bodies, err = acc.Extract()
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(bodies) != 1 || !bytes.Equal(bodies[0], []byte{1, 2, 3, 4}) {
		t.Fatalf("got %v, want one frame [1 2 3 4]", bodies)
	}
}
