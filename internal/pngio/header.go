package pngio

import (
	"encoding/binary"
	"fmt"
)

// Fixed image layout handled by this package.
const (
	BitDepth           = 8
	ColorTypeTruecolor = 2
	BytesPerPixel      = 3
)

const (
	headerLength = 13
	// Upper bound on the raw pixel buffer, keeping every offset within int
	// on 32-bit platforms.
	maxPixelBytes = 1 << 30
)

// Header is the decoded content of an IHDR chunk.
type Header struct {
	Width       uint32
	Height      uint32
	BitDepth    uint8
	ColorType   uint8
	Compression uint8
	Filter      uint8
	Interlace   uint8
}

// ParseHeader decodes the 13-byte IHDR payload.
func ParseHeader(data []byte) (Header, error) {
	if len(data) != headerLength {
		return Header{}, FormatError(fmt.Sprintf("bad IHDR length: %d", len(data)))
	}
	return Header{
		Width:       binary.BigEndian.Uint32(data[0:4]),
		Height:      binary.BigEndian.Uint32(data[4:8]),
		BitDepth:    data[8],
		ColorType:   data[9],
		Compression: data[10],
		Filter:      data[11],
		Interlace:   data[12],
	}, nil
}

// ExtractHeader locates the unique IHDR chunk and decodes it.
func ExtractHeader(chunks []Chunk) (Header, error) {
	c, err := findHeader(chunks)
	if err != nil {
		return Header{}, err
	}
	return ParseHeader(c.Data)
}

func findHeader(chunks []Chunk) (Chunk, error) {
	var (
		found Chunk
		n     int
	)
	for _, c := range chunks {
		if c.Type == TypeIHDR {
			found = c
			n++
		}
	}
	switch n {
	case 0:
		return Chunk{}, MissingChunkError(TypeIHDR)
	case 1:
		return found, nil
	default:
		return Chunk{}, FormatError("duplicate IHDR chunk")
	}
}

// Validate reports whether h describes an image this package can process.
func (h Header) Validate() error {
	if h.Width == 0 || h.Height == 0 {
		return FormatError(fmt.Sprintf("invalid dimensions %dx%d", h.Width, h.Height))
	}
	if h.Width > maxChunkLength || h.Height > maxChunkLength {
		return FormatError(fmt.Sprintf("dimensions %dx%d out of range", h.Width, h.Height))
	}
	if uint64(h.Width)*uint64(h.Height)*BytesPerPixel > maxPixelBytes {
		return UnsupportedError(fmt.Sprintf("image too large: %dx%d", h.Width, h.Height))
	}
	if h.BitDepth != BitDepth || h.ColorType != ColorTypeTruecolor {
		return UnsupportedError(fmt.Sprintf("bit depth %d, color type %d", h.BitDepth, h.ColorType))
	}
	if h.Compression != 0 {
		return UnsupportedError(fmt.Sprintf("compression method %d", h.Compression))
	}
	if h.Filter != 0 {
		return UnsupportedError(fmt.Sprintf("filter method %d", h.Filter))
	}
	if h.Interlace != 0 {
		return UnsupportedError("interlaced image")
	}
	return nil
}

// Bytes encodes h as an IHDR payload.
func (h Header) Bytes() []byte {
	b := make([]byte, headerLength)
	binary.BigEndian.PutUint32(b[0:4], h.Width)
	binary.BigEndian.PutUint32(b[4:8], h.Height)
	b[8] = h.BitDepth
	b[9] = h.ColorType
	b[10] = h.Compression
	b[11] = h.Filter
	b[12] = h.Interlace
	return b
}

// Stride is the number of raw pixel bytes in one row.
func (h Header) Stride() int { return int(h.Width) * BytesPerPixel }

// RawSize is the length of the unfiltered pixel buffer.
func (h Header) RawSize() int { return h.Stride() * int(h.Height) }
