// Package pngio reads and writes the subset of the PNG container used for
// steganography: signature, IHDR, IDAT and IEND chunks carrying 8-bit
// truecolor scanlines.
package pngio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Signature is the fixed 8-byte PNG magic.
const Signature = "\x89PNG\r\n\x1a\n"

const maxChunkLength = 0x7fffffff

// Chunk types used by this package.
const (
	TypeIHDR = "IHDR"
	TypeIDAT = "IDAT"
	TypeIEND = "IEND"
)

// A Chunk is a single length-prefixed, CRC-protected PNG record. Its length
// is len(Data) and its CRC is always recomputed, never stored.
type Chunk struct {
	Type string
	Data []byte
}

// CRC returns the CRC-32 (IEEE) of the chunk type followed by its data.
func (c Chunk) CRC() uint32 {
	crc := crc32.NewIEEE()
	crc.Write([]byte(c.Type))
	crc.Write(c.Data)
	return crc.Sum32()
}

// ReadSignature consumes the first 8 bytes of r and checks them against the
// PNG magic.
func ReadSignature(r io.Reader) error {
	var sig [len(Signature)]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return FormatError("not a PNG file")
		}
		return err
	}
	if string(sig[:]) != Signature {
		return FormatError("not a PNG file")
	}
	return nil
}

// ReadChunks reads chunks from r until end of stream or until an IEND chunk
// has been read. Every chunk's CRC is verified.
func ReadChunks(r io.Reader) ([]Chunk, error) {
	var (
		chunks []Chunk
		tmp    [8]byte
	)
	for {
		n, err := io.ReadFull(r, tmp[:4])
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				return nil, &TruncatedError{What: "chunk length", Want: 4, Got: n}
			}
			return nil, err
		}
		length := binary.BigEndian.Uint32(tmp[:4])
		if length > maxChunkLength {
			return nil, FormatError(fmt.Sprintf("bad chunk length: %d", length))
		}

		if n, err := io.ReadFull(r, tmp[4:8]); err != nil {
			return nil, truncated(err, "chunk type", 4, n)
		}
		typ := string(tmp[4:8])
		if !validType(typ) {
			return nil, FormatError(fmt.Sprintf("invalid chunk type %q", typ))
		}

		// Copy through a buffer so a bogus length does not allocate up front.
		var data bytes.Buffer
		if n, err := io.CopyN(&data, r, int64(length)); err != nil {
			return nil, truncated(err, typ+" chunk data", int(length), int(n))
		}

		if n, err := io.ReadFull(r, tmp[:4]); err != nil {
			return nil, truncated(err, typ+" chunk CRC", 4, n)
		}
		c := Chunk{Type: typ, Data: data.Bytes()}
		if stored, computed := binary.BigEndian.Uint32(tmp[:4]), c.CRC(); stored != computed {
			return nil, &IntegrityError{Type: typ, Want: stored, Got: computed}
		}

		chunks = append(chunks, c)
		if typ == TypeIEND {
			return chunks, nil
		}
	}
}

func truncated(err error, what string, want, got int) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &TruncatedError{What: what, Want: want, Got: got}
	}
	return err
}

func validType(typ string) bool {
	for i := 0; i < len(typ); i++ {
		c := typ[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// ConcatIDAT joins the data of all IDAT chunks in file order into one
// compressed stream.
func ConcatIDAT(chunks []Chunk) []byte {
	var buf bytes.Buffer
	for _, c := range chunks {
		if c.Type == TypeIDAT {
			buf.Write(c.Data)
		}
	}
	return buf.Bytes()
}

// CheckOrder verifies that chunks start with IHDR, end with IEND, hold at
// least one IDAT and keep the IDAT chunks contiguous.
func CheckOrder(chunks []Chunk) error {
	if len(chunks) == 0 || chunks[0].Type != TypeIHDR {
		if _, err := findHeader(chunks); err != nil {
			return err
		}
		return FormatError("IHDR is not the first chunk")
	}
	if chunks[len(chunks)-1].Type != TypeIEND {
		return MissingChunkError(TypeIEND)
	}
	seen, ended := false, false
	for _, c := range chunks {
		switch {
		case c.Type == TypeIDAT && ended:
			return FormatError("IDAT chunks are not contiguous")
		case c.Type == TypeIDAT:
			seen = true
		case seen:
			ended = true
		}
	}
	if !seen {
		return MissingChunkError(TypeIDAT)
	}
	return nil
}

// WriteChunk writes c to w as length, type, data and a freshly computed CRC.
func WriteChunk(w io.Writer, c Chunk) error {
	if len(c.Type) != 4 || !validType(c.Type) {
		return FormatError(fmt.Sprintf("invalid chunk type %q", c.Type))
	}
	if len(c.Data) > maxChunkLength {
		return FormatError(fmt.Sprintf("chunk too large: %d bytes", len(c.Data)))
	}
	var tmp [8]byte
	binary.BigEndian.PutUint32(tmp[:4], uint32(len(c.Data)))
	copy(tmp[4:], c.Type)
	if _, err := w.Write(tmp[:8]); err != nil {
		return err
	}
	if _, err := w.Write(c.Data); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(tmp[:4], c.CRC())
	_, err := w.Write(tmp[:4])
	return err
}

// WriteImage writes a complete PNG: signature, an 8-bit truecolor IHDR for
// width x height, a single IDAT wrapping the already-compressed idat
// stream, and IEND.
func WriteImage(w io.Writer, width, height uint32, idat []byte) error {
	h := Header{Width: width, Height: height, BitDepth: BitDepth, ColorType: ColorTypeTruecolor}
	if err := h.Validate(); err != nil {
		return err
	}
	if _, err := io.WriteString(w, Signature); err != nil {
		return err
	}
	for _, c := range []Chunk{
		{Type: TypeIHDR, Data: h.Bytes()},
		{Type: TypeIDAT, Data: idat},
		{Type: TypeIEND},
	} {
		if err := WriteChunk(w, c); err != nil {
			return fmt.Errorf("writing %s chunk: %w", c.Type, err)
		}
	}
	return nil
}
