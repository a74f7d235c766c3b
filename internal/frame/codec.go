package frame

import (
	"encoding/binary"
	"fmt"
)

// PrefixSize is the size of the length prefix preceding every frame payload.
const PrefixSize = 4

// DefaultMaxFrameSize bounds the declared payload length a decoder will
// accept. A corrupt or adversarial prefix must not cause unbounded buffering.
const DefaultMaxFrameSize = 1 << 20 // 1 MiB

// ErrFrameTooLarge reports a declared payload length above the decoder's
// configured maximum. The frame is rejected; the caller decides whether to
// drop the connection.
type ErrFrameTooLarge struct {
	Declared uint32
	Max      uint32
}

func (e *ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("declared frame length %d exceeds maximum %d", e.Declared, e.Max)
}

// Encode prepends the little-endian length prefix to payload and returns the
// encoded frame. The empty payload encodes to the bare prefix.
func Encode(payload []byte) []byte {
	buf := make([]byte, PrefixSize+len(payload))
	binary.LittleEndian.PutUint32(buf[:PrefixSize], uint32(len(payload)))
	copy(buf[PrefixSize:], payload)
	return buf
}

// Decoder incrementally reassembles frames from a byte stream. Feed it
// transport deliveries in arrival order; it emits each fully received payload
// exactly once. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf  []byte
	max  uint32
	dead bool
}

// NewDecoder returns a Decoder that rejects frames whose declared length
// exceeds maxFrameSize. A non-positive maxFrameSize selects
// DefaultMaxFrameSize.
func NewDecoder(maxFrameSize int) *Decoder {
	max := uint32(DefaultMaxFrameSize)
	if maxFrameSize > 0 {
		max = uint32(maxFrameSize)
	}
	return &Decoder{max: max}
}

// Decode appends data to the accumulation buffer and returns every payload
// completed by it, in arrival order. A prefix or payload may span any number
// of Decode calls, and one call may complete several frames.
//
// On a framing error the decoder returns the payloads completed before the
// bad prefix together with the error, and refuses further input: the byte
// stream has no recovery point past a corrupt length.
func (d *Decoder) Decode(data []byte) ([][]byte, error) {
	if d.dead {
		return nil, fmt.Errorf("decode after framing error")
	}
	d.buf = append(d.buf, data...)

	var frames [][]byte
	for len(d.buf) >= PrefixSize {
		declared := binary.LittleEndian.Uint32(d.buf[:PrefixSize])
		if declared > d.max {
			d.dead = true
			d.buf = nil
			return frames, &ErrFrameTooLarge{Declared: declared, Max: d.max}
		}
		total := PrefixSize + int(declared)
		if len(d.buf) < total {
			break
		}
		payload := make([]byte, declared)
		copy(payload, d.buf[PrefixSize:total])
		frames = append(frames, payload)
		d.buf = d.buf[total:]
	}

	// Compact so a long-lived connection does not pin every delivery slice.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames, nil
}

// Buffered returns the number of bytes held for a frame still in flight.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
