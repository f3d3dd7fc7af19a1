// Package steg hides payload bytes in the least significant bits of a raw
// pixel buffer at positions chosen by a seeded schedule.
package steg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/icza/bitio"
	"github.com/rs/zerolog/log"

	"github.com/aswearingen91/pngsteg/internal/schedule"
)

// Framing selects how the payload length is recovered on extraction. The two
// framings are not interchangeable: an image must be read with the framing
// it was written with.
type Framing int

const (
	// LengthPrefixed writes a 32-bit big-endian byte count before the
	// payload. It is the canonical framing.
	LengthPrefixed Framing = iota
	// Terminated appends a single 0x00 byte and needs a length hint to
	// extract.
	Terminated
)

const lengthBits = 32

var (
	// ErrEmbeddedNUL is returned when a payload for the Terminated framing
	// contains a 0x00 byte, which would cut it short on extraction.
	ErrEmbeddedNUL = errors.New("payload contains a NUL byte; use the length-prefixed framing")
	// ErrBadLength is returned when a length prefix declares more bytes than
	// the image can hold, which usually means the wrong seed or no payload.
	ErrBadLength = errors.New("declared payload length exceeds image capacity")
	// ErrNoHint is returned when extracting a Terminated payload without a
	// positive length hint.
	ErrNoHint = errors.New("terminated framing needs a positive length hint")
)

func (f Framing) String() string {
	switch f {
	case LengthPrefixed:
		return "length"
	case Terminated:
		return "nul"
	default:
		return fmt.Sprintf("Framing(%d)", int(f))
	}
}

// ParseFraming parses the names produced by Framing.String.
func ParseFraming(s string) (Framing, error) {
	switch s {
	case "length", "":
		return LengthPrefixed, nil
	case "nul":
		return Terminated, nil
	}
	return 0, fmt.Errorf("unknown framing %q (want length or nul)", s)
}

// Frame returns payload wrapped in framing f.
func Frame(payload []byte, f Framing) ([]byte, error) {
	switch f {
	case LengthPrefixed:
		if uint64(len(payload)) > math.MaxUint32 {
			return nil, fmt.Errorf("payload of %d bytes does not fit a 32-bit length", len(payload))
		}
		out := make([]byte, 4, 4+len(payload))
		binary.BigEndian.PutUint32(out, uint32(len(payload)))
		return append(out, payload...), nil
	case Terminated:
		if bytes.IndexByte(payload, 0) >= 0 {
			return nil, ErrEmbeddedNUL
		}
		out := make([]byte, 0, len(payload)+1)
		out = append(out, payload...)
		return append(out, 0), nil
	default:
		return nil, fmt.Errorf("unknown framing %v", f)
	}
}

// Capacity returns the largest payload in bytes that fits in totalSlots
// pixel bytes under framing f.
func Capacity(totalSlots int, f Framing) int {
	var n int
	switch f {
	case LengthPrefixed:
		n = (totalSlots - lengthBits) / 8
	case Terminated:
		n = totalSlots/8 - 1
	}
	return max(n, 0)
}

// Embed frames payload and writes its bits, most significant first, into
// the least significant bits of pixels at the positions scheduled from seed.
// pixels is modified in place. Bytes not on the schedule are left untouched.
func Embed(pixels, payload []byte, seed uint64, f Framing) error {
	framed, err := Frame(payload, f)
	if err != nil {
		return err
	}
	bits := len(framed) * 8
	log.Debug().Int("required", bits).Int("available", len(pixels)).Str("framing", f.String()).Msg("embedding payload")

	idx, err := schedule.Schedule(seed, len(pixels), bits)
	if err != nil {
		return err
	}
	r := bitio.NewReader(bytes.NewReader(framed))
	for _, i := range idx {
		bit, err := r.ReadBool()
		if err != nil {
			return err
		}
		pixels[i] &= 0xFE
		if bit {
			pixels[i] |= 1
		}
	}
	return nil
}

// Extract recovers a payload written by Embed with the same seed and
// framing. For Terminated, hint is the number of bytes to read, terminator
// included; reading stops at the first 0x00. A hint larger than the image
// is clamped, but if no terminator turns up in the clamped range the hint
// could not be honoured and a CapacityError is returned. hint is ignored
// for LengthPrefixed.
func Extract(pixels []byte, seed uint64, f Framing, hint int) ([]byte, error) {
	switch f {
	case LengthPrefixed:
		return extractPrefixed(pixels, seed)
	case Terminated:
		return extractTerminated(pixels, seed, hint)
	default:
		return nil, fmt.Errorf("unknown framing %v", f)
	}
}

func extractPrefixed(pixels []byte, seed uint64) ([]byte, error) {
	total := len(pixels)
	idx, err := schedule.Schedule(seed, total, lengthBits)
	if err != nil {
		return nil, err
	}
	prefix, err := readBits(pixels, idx)
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix)
	if need := lengthBits + uint64(n)*8; need > uint64(total) {
		return nil, fmt.Errorf("%w: %d bytes declared, %d fit", ErrBadLength, n, Capacity(total, LengthPrefixed))
	}
	log.Debug().Uint32("length", n).Msg("read payload length prefix")

	idx, err = schedule.Schedule(seed, total, lengthBits+int(n)*8)
	if err != nil {
		return nil, err
	}
	return readBits(pixels, idx[lengthBits:])
}

func extractTerminated(pixels []byte, seed uint64, hint int) ([]byte, error) {
	if hint <= 0 {
		return nil, ErrNoHint
	}
	requested := hint
	if limit := len(pixels) / 8; hint > limit {
		log.Debug().Int("hint", hint).Int("limit", limit).Msg("clamping length hint to image capacity")
		hint = limit
	}
	idx, err := schedule.Schedule(seed, len(pixels), hint*8)
	if err != nil {
		return nil, err
	}
	data, err := readBits(pixels, idx)
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return data[:i], nil
	}
	if requested > hint {
		return nil, &schedule.CapacityError{Need: requested * 8, Have: len(pixels)}
	}
	log.Debug().Int("hint", hint).Msg("no terminator found within hint")
	return data, nil
}

// readBits assembles the LSBs at idx, most significant bit first, into
// len(idx)/8 bytes.
func readBits(pixels []byte, idx []int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(idx) / 8)
	w := bitio.NewWriter(&buf)
	for _, i := range idx {
		if err := w.WriteBool(pixels[i]&1 == 1); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
