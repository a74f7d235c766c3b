package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeLayout(t *testing.T) {
	payload := []byte("hello")
	encoded := Encode(payload)

	if len(encoded) != PrefixSize+len(payload) {
		t.Fatalf("expected %d bytes, got %d", PrefixSize+len(payload), len(encoded))
	}
	if got := binary.LittleEndian.Uint32(encoded[:PrefixSize]); got != uint32(len(payload)) {
		t.Errorf("prefix declares %d, want %d", got, len(payload))
	}
	if !bytes.Equal(encoded[PrefixSize:], payload) {
		t.Errorf("payload corrupted: %q", encoded[PrefixSize:])
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	encoded := Encode(nil)
	if len(encoded) != PrefixSize {
		t.Fatalf("empty payload should encode to bare prefix, got %d bytes", len(encoded))
	}

	dec := NewDecoder(0)
	frames, err := dec.Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if len(frames[0]) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(frames[0]))
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("a"),
		[]byte("voice segment"),
		bytes.Repeat([]byte{0xAB}, 4096),
		{},
	}

	dec := NewDecoder(0)
	for _, payload := range payloads {
		frames, err := dec.Decode(Encode(payload))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 1 {
			t.Fatalf("expected 1 frame, got %d", len(frames))
		}
		if !bytes.Equal(frames[0], payload) {
			t.Errorf("round trip mismatch: got %d bytes, want %d", len(frames[0]), len(payload))
		}
	}
}

// A single encoded frame split at every possible byte boundary must decode to
// the same single payload as delivering it whole.
func TestDecodeSplitAtEveryBoundary(t *testing.T) {
	payload := []byte("incremental decoding across delivery boundaries")
	encoded := Encode(payload)

	for cut := 0; cut <= len(encoded); cut++ {
		dec := NewDecoder(0)

		frames, err := dec.Decode(encoded[:cut])
		if err != nil {
			t.Fatalf("cut %d: unexpected error on first delivery: %v", cut, err)
		}
		rest, err := dec.Decode(encoded[cut:])
		if err != nil {
			t.Fatalf("cut %d: unexpected error on second delivery: %v", cut, err)
		}
		frames = append(frames, rest...)

		if len(frames) != 1 {
			t.Fatalf("cut %d: expected 1 frame, got %d", cut, len(frames))
		}
		if !bytes.Equal(frames[0], payload) {
			t.Errorf("cut %d: payload mismatch", cut)
		}
		if dec.Buffered() != 0 {
			t.Errorf("cut %d: %d bytes left buffered", cut, dec.Buffered())
		}
	}
}

func TestDecodeMultipleFramesInOneDelivery(t *testing.T) {
	payloads := [][]byte{
		[]byte("first"),
		[]byte("second"),
		{},
		[]byte("fourth"),
	}

	var delivery []byte
	for _, p := range payloads {
		delivery = append(delivery, Encode(p)...)
	}

	dec := NewDecoder(0)
	frames, err := dec.Decode(delivery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != len(payloads) {
		t.Fatalf("expected %d frames, got %d", len(payloads), len(frames))
	}
	for i, p := range payloads {
		if !bytes.Equal(frames[i], p) {
			t.Errorf("frame %d out of order or corrupted", i)
		}
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	dec := NewDecoder(16)

	// A valid frame first, then a prefix declaring far too much.
	delivery := Encode([]byte("ok"))
	oversized := make([]byte, PrefixSize)
	binary.LittleEndian.PutUint32(oversized, 1<<24)
	delivery = append(delivery, oversized...)

	frames, err := dec.Decode(delivery)
	if err == nil {
		t.Fatal("expected framing error")
	}
	var tooLarge *ErrFrameTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if tooLarge.Declared != 1<<24 || tooLarge.Max != 16 {
		t.Errorf("error carries wrong sizes: %+v", tooLarge)
	}
	if len(frames) != 1 || string(frames[0]) != "ok" {
		t.Errorf("frames completed before the bad prefix should still be emitted")
	}

	// The decoder is unusable after a framing error but must not panic.
	if _, err := dec.Decode([]byte{0, 0, 0, 0}); err == nil {
		t.Error("expected error on decode after framing error")
	}
}

func TestDecodePayloadExactlyAtMax(t *testing.T) {
	dec := NewDecoder(8)
	payload := bytes.Repeat([]byte{1}, 8)

	frames, err := dec.Decode(Encode(payload))
	if err != nil {
		t.Fatalf("payload at the configured maximum must be accepted: %v", err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], payload) {
		t.Errorf("payload at max mismatch")
	}
}

func TestDecodeRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(payload)) == [payload] for any byte sequence", prop.ForAll(
		func(payload []byte) bool {
			dec := NewDecoder(0)
			frames, err := dec.Decode(Encode(payload))
			if err != nil || len(frames) != 1 {
				return false
			}
			return bytes.Equal(frames[0], payload)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("chunked delivery preserves frame order and content", prop.ForAll(
		func(payloads [][]byte, chunkSize int) bool {
			if chunkSize <= 0 {
				chunkSize = 1
			}

			var stream []byte
			for _, p := range payloads {
				stream = append(stream, Encode(p)...)
			}

			dec := NewDecoder(0)
			var frames [][]byte
			for off := 0; off < len(stream); off += chunkSize {
				end := off + chunkSize
				if end > len(stream) {
					end = len(stream)
				}
				out, err := dec.Decode(stream[off:end])
				if err != nil {
					return false
				}
				frames = append(frames, out...)
			}

			if len(frames) != len(payloads) {
				return false
			}
			for i := range payloads {
				if !bytes.Equal(frames[i], payloads[i]) {
					return false
				}
			}
			return dec.Buffered() == 0
		},
		gen.SliceOf(gen.SliceOf(gen.UInt8())),
		gen.IntRange(1, 16),
	))

	properties.TestingRun(t)
}
