package pngio

import "fmt"

// A FormatError reports that the input is not a valid PNG.
type FormatError string

func (e FormatError) Error() string { return "png: invalid format: " + string(e) }

// An UnsupportedError reports that the input uses a valid but unimplemented
// PNG feature (anything other than 8-bit, non-interlaced truecolor).
type UnsupportedError string

func (e UnsupportedError) Error() string { return "png: unsupported feature: " + string(e) }

// A MissingChunkError names a required chunk that was not found.
type MissingChunkError string

func (e MissingChunkError) Error() string { return "png: missing " + string(e) + " chunk" }

// An UnknownFilterError carries a scanline filter selector outside 0-4.
type UnknownFilterError byte

func (e UnknownFilterError) Error() string {
	return fmt.Sprintf("png: unknown filter type %d", byte(e))
}

// IntegrityError is returned when a chunk's stored CRC does not match the
// CRC computed over its type and data.
type IntegrityError struct {
	Type string
	Want uint32 // stored in the file
	Got  uint32 // computed
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("png: %s chunk CRC mismatch: stored %08x, computed %08x", e.Type, e.Want, e.Got)
}

// TruncatedError is returned when fewer bytes remain than a length field or
// a scanline layout requires.
type TruncatedError struct {
	What string
	Want int
	Got  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("png: truncated %s: need %d bytes, have %d", e.What, e.Want, e.Got)
}
