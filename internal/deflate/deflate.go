// Package deflate provides the zlib-wrapped DEFLATE codec used for PNG
// image data.
package deflate

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compression levels accepted by Zlib.
const (
	DefaultCompression = zlib.DefaultCompression
	BestSpeed          = zlib.BestSpeed
	BestCompression    = zlib.BestCompression
)

// Codec compresses and decompresses a complete byte stream.
type Codec interface {
	Compress(p []byte) ([]byte, error)
	Decompress(p []byte) ([]byte, error)
}

// Zlib is a Codec producing zlib streams as required by PNG IDAT chunks.
// Limit, when positive, caps the decompressed size.
type Zlib struct {
	Level int
	Limit int64
}

// Compress implements Codec.
func (z Zlib) Compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, z.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(p); err != nil {
		w.Close()
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress implements Codec.
func (z Zlib) Decompress(p []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	defer r.Close()

	var src io.Reader = r
	if z.Limit > 0 {
		src = io.LimitReader(r, z.Limit+1)
	}
	out, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	if z.Limit > 0 && int64(len(out)) > z.Limit {
		return nil, fmt.Errorf("zlib decompress: stream exceeds %d bytes", z.Limit)
	}
	return out, nil
}

// WithLimit returns c with its decompressed size capped at n bytes when c
// supports a cap, and c unchanged otherwise.
func WithLimit(c Codec, n int64) Codec {
	if z, ok := c.(Zlib); ok && (z.Limit == 0 || z.Limit > n) {
		z.Limit = n
		return z
	}
	return c
}
