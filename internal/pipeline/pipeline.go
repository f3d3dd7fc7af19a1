// Package pipeline ties the PNG container, scanline filtering, compression
// and LSB embedding together into whole-image operations.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/aswearingen91/pngsteg/internal/deflate"
	"github.com/aswearingen91/pngsteg/internal/pngio"
	"github.com/aswearingen91/pngsteg/internal/steg"
)

// DefaultSeed is the schedule seed used when none is configured.
const DefaultSeed = 100

// DefaultHint is the number of bytes read when extracting a Terminated
// payload without an explicit hint.
const DefaultHint = 1000

// ErrImageData wraps failures to decompress the IDAT stream.
var ErrImageData = errors.New("corrupt image data")

// Options configures a pipeline run.
type Options struct {
	Seed     uint64
	Framing  steg.Framing
	Hint     int  // bytes to read for steg.Terminated, terminator included
	Adaptive bool // adaptive scanline filters instead of filter type None
	Codec    deflate.Codec
}

// DefaultOptions returns the canonical settings: seed 100, length-prefixed
// framing, unfiltered rows and default zlib compression.
func DefaultOptions() Options {
	return Options{
		Seed:    DefaultSeed,
		Framing: steg.LengthPrefixed,
		Hint:    DefaultHint,
		Codec:   deflate.Zlib{Level: deflate.DefaultCompression},
	}
}

func (o Options) codec() deflate.Codec {
	if o.Codec == nil {
		return deflate.Zlib{Level: deflate.DefaultCompression}
	}
	return o.Codec
}

// Image is a decoded 8-bit truecolor image. Pixels holds Width*Height*3
// unfiltered bytes, row-major.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// Decode reads a PNG from r and returns its raw pixels.
func Decode(r io.Reader, codec deflate.Codec) (*Image, error) {
	if err := pngio.ReadSignature(r); err != nil {
		return nil, err
	}
	chunks, err := pngio.ReadChunks(r)
	if err != nil {
		return nil, err
	}
	hdr, err := pngio.ExtractHeader(chunks)
	if err != nil {
		return nil, err
	}
	if err := hdr.Validate(); err != nil {
		return nil, err
	}
	if err := pngio.CheckOrder(chunks); err != nil {
		return nil, err
	}
	log.Debug().Uint32("width", hdr.Width).Uint32("height", hdr.Height).Int("chunks", len(chunks)).Msg("read PNG header")

	idat := pngio.ConcatIDAT(chunks)
	log.Debug().Int("length", len(idat)).Msg("concatenated IDAT data")

	filteredSize := int64(hdr.Height) * int64(1+hdr.Stride())
	filtered, err := deflate.WithLimit(codec, filteredSize).Decompress(idat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageData, err)
	}
	raw, err := pngio.Defilter(filtered, int(hdr.Width), int(hdr.Height), pngio.BytesPerPixel)
	if err != nil {
		return nil, err
	}
	return &Image{Width: hdr.Width, Height: hdr.Height, Pixels: raw}, nil
}

// Encode filters, compresses and writes img as a PNG. Nothing is written to
// w unless encoding succeeds.
func (img *Image) Encode(w io.Writer, codec deflate.Codec, adaptive bool) error {
	filter := pngio.Filter
	if adaptive {
		filter = pngio.FilterAdaptive
	}
	filtered, err := filter(img.Pixels, int(img.Width), int(img.Height), pngio.BytesPerPixel)
	if err != nil {
		return err
	}
	idat, err := codec.Compress(filtered)
	if err != nil {
		return fmt.Errorf("compressing image data: %w", err)
	}
	var buf bytes.Buffer
	if err := pngio.WriteImage(&buf, img.Width, img.Height, idat); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// Embed reads a PNG from r, hides payload in it and writes the result to w.
func Embed(r io.Reader, w io.Writer, payload []byte, opts Options) error {
	img, err := Decode(r, opts.codec())
	if err != nil {
		return err
	}
	if err := steg.Embed(img.Pixels, payload, opts.Seed, opts.Framing); err != nil {
		return err
	}
	return img.Encode(w, opts.codec(), opts.Adaptive)
}

// Extract reads a PNG from r and returns the payload hidden in it.
func Extract(r io.Reader, opts Options) ([]byte, error) {
	img, err := Decode(r, opts.codec())
	if err != nil {
		return nil, err
	}
	return steg.Extract(img.Pixels, opts.Seed, opts.Framing, opts.Hint)
}

// Report describes how much payload an image can carry.
type Report struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Slots  int    `json:"slots"`
	Bytes  int    `json:"bytes"`
}

// Capacity reads a PNG from r and reports its payload capacity under the
// configured framing.
func Capacity(r io.Reader, opts Options) (Report, error) {
	img, err := Decode(r, opts.codec())
	if err != nil {
		return Report{}, err
	}
	return Report{
		Width:  img.Width,
		Height: img.Height,
		Slots:  len(img.Pixels),
		Bytes:  steg.Capacity(len(img.Pixels), opts.Framing),
	}, nil
}

// EmbedFile hides payload in the PNG at inPath and writes the result to
// outPath. The output is written to a temporary file in the same directory
// and renamed into place, so a failed run never leaves a partial file.
func EmbedFile(inPath, outPath string, payload []byte, opts Options) (err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}

	if err = Embed(in, tmp, payload, opts); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), outPath); err != nil {
		return err
	}
	log.Debug().Str("output", outPath).Msg("wrote PNG")
	return nil
}

// ExtractFile returns the payload hidden in the PNG at path.
func ExtractFile(path string, opts Options) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Extract(f, opts)
}

// CapacityFile reports the payload capacity of the PNG at path.
func CapacityFile(path string, opts Options) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()
	return Capacity(f, opts)
}
