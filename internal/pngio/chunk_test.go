package pngio

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeChunks(t *testing.T, chunks ...Chunk) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, c := range chunks {
		require.NoError(t, WriteChunk(&buf, c))
	}
	return buf.Bytes()
}

func TestReadSignature(t *testing.T) {
	require.NoError(t, ReadSignature(bytes.NewReader([]byte(Signature+"rest"))))

	for _, in := range []string{"", "\x89PN", "GIF89a\x00\x00", "\x89PNG\r\n\x1a\x00"} {
		err := ReadSignature(bytes.NewReader([]byte(in)))
		var fe FormatError
		assert.True(t, errors.As(err, &fe), "input %q: got %v", in, err)
	}
}

func TestReadChunksRoundTrip(t *testing.T) {
	h := Header{Width: 4, Height: 2, BitDepth: BitDepth, ColorType: ColorTypeTruecolor}
	in := []Chunk{
		{Type: TypeIHDR, Data: h.Bytes()},
		{Type: "tEXt", Data: []byte("Comment\x00hello")},
		{Type: TypeIDAT, Data: []byte{1, 2, 3}},
		{Type: TypeIDAT, Data: []byte{4, 5}},
		{Type: TypeIEND},
	}
	out, err := ReadChunks(bytes.NewReader(encodeChunks(t, in...)))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].Type, out[i].Type)
		assert.True(t, bytes.Equal(in[i].Data, out[i].Data), "chunk %d %s data", i, in[i].Type)
	}

	got, err := ExtractHeader(out)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, ConcatIDAT(out))
	assert.NoError(t, CheckOrder(out))
}

func TestReadChunksStopsAtIEND(t *testing.T) {
	data := encodeChunks(t, Chunk{Type: TypeIDAT, Data: []byte{9}}, Chunk{Type: TypeIEND})
	data = append(data, "trailing garbage"...)
	out, err := ReadChunks(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, TypeIEND, out[1].Type)
}

func TestReadChunksCorruptData(t *testing.T) {
	data := encodeChunks(t, Chunk{Type: TypeIDAT, Data: []byte("pixels")}, Chunk{Type: TypeIEND})
	data[8] ^= 0x01 // first data byte of the IDAT chunk

	_, err := ReadChunks(bytes.NewReader(data))
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, TypeIDAT, ie.Type)
	assert.NotEqual(t, ie.Want, ie.Got)
}

func TestReadChunksTruncated(t *testing.T) {
	full := encodeChunks(t, Chunk{Type: TypeIDAT, Data: []byte("0123456789")})
	for _, tc := range []struct {
		name string
		n    int
	}{
		{"length", 2},
		{"type", 6},
		{"data", 12},
		{"crc", len(full) - 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadChunks(bytes.NewReader(full[:tc.n]))
			var te *TruncatedError
			require.True(t, errors.As(err, &te), "got %v", err)
		})
	}
}

func TestReadChunksBadType(t *testing.T) {
	data := encodeChunks(t, Chunk{Type: TypeIDAT})
	copy(data[4:8], "ID\x00T")
	_, err := ReadChunks(bytes.NewReader(data))
	var fe FormatError
	assert.True(t, errors.As(err, &fe), "got %v", err)
}

func TestExtractHeader(t *testing.T) {
	_, err := ExtractHeader([]Chunk{{Type: TypeIDAT}, {Type: TypeIEND}})
	assert.Equal(t, MissingChunkError(TypeIHDR), err)

	h := Header{Width: 1, Height: 1}
	_, err = ExtractHeader([]Chunk{{Type: TypeIHDR, Data: h.Bytes()}, {Type: TypeIHDR, Data: h.Bytes()}})
	var fe FormatError
	assert.True(t, errors.As(err, &fe))

	_, err = ExtractHeader([]Chunk{{Type: TypeIHDR, Data: []byte{0, 0, 0, 1}}})
	assert.True(t, errors.As(err, &fe))

	got, err := ExtractHeader([]Chunk{{Type: TypeIHDR, Data: []byte{0, 0, 1, 0, 0, 0, 0, 3, 8, 2, 0, 0, 0}}})
	require.NoError(t, err)
	assert.Equal(t, uint32(256), got.Width)
	assert.Equal(t, uint32(3), got.Height)
}

func TestHeaderValidate(t *testing.T) {
	ok := Header{Width: 3, Height: 3, BitDepth: 8, ColorType: 2}
	require.NoError(t, ok.Validate())
	assert.Equal(t, 9, ok.Stride())
	assert.Equal(t, 27, ok.RawSize())

	for _, tc := range []struct {
		name        string
		mutate      func(*Header)
		unsupported bool
	}{
		{"zero width", func(h *Header) { h.Width = 0 }, false},
		{"zero height", func(h *Header) { h.Height = 0 }, false},
		{"16-bit", func(h *Header) { h.BitDepth = 16 }, true},
		{"rgba", func(h *Header) { h.ColorType = 6 }, true},
		{"compression", func(h *Header) { h.Compression = 1 }, true},
		{"filter method", func(h *Header) { h.Filter = 1 }, true},
		{"interlaced", func(h *Header) { h.Interlace = 1 }, true},
		{"huge", func(h *Header) { h.Width, h.Height = 1<<20, 1<<20 }, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := ok
			tc.mutate(&h)
			err := h.Validate()
			require.Error(t, err)
			var ue UnsupportedError
			assert.Equal(t, tc.unsupported, errors.As(err, &ue), "got %v", err)
		})
	}
}

func TestCheckOrder(t *testing.T) {
	ihdr := Chunk{Type: TypeIHDR, Data: Header{Width: 1, Height: 1}.Bytes()}
	idat := Chunk{Type: TypeIDAT}
	iend := Chunk{Type: TypeIEND}
	text := Chunk{Type: "tEXt"}

	assert.NoError(t, CheckOrder([]Chunk{ihdr, text, idat, idat, iend}))
	assert.Equal(t, MissingChunkError(TypeIHDR), CheckOrder([]Chunk{idat, iend}))
	assert.Equal(t, MissingChunkError(TypeIEND), CheckOrder([]Chunk{ihdr, idat}))
	assert.Equal(t, MissingChunkError(TypeIDAT), CheckOrder([]Chunk{ihdr, iend}))
	assert.Equal(t, FormatError("IHDR is not the first chunk"), CheckOrder([]Chunk{idat, ihdr, iend}))
	assert.Equal(t, FormatError("IDAT chunks are not contiguous"), CheckOrder([]Chunk{ihdr, idat, text, idat, iend}))
}

func TestWriteImageIEND(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteImage(&buf, 1, 1, []byte{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte(Signature)))
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\x00\x00\x00\x00IEND\xaeB`\x82")))
}

func TestWriteImageDecodesWithStdlib(t *testing.T) {
	const w, h = 5, 4
	raw := make([]byte, w*h*BytesPerPixel)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	filtered, err := FilterAdaptive(raw, w, h, BytesPerPixel)
	require.NoError(t, err)

	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err = zw.Write(filtered)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var out bytes.Buffer
	require.NoError(t, WriteImage(&out, w, h, z.Bytes()))

	img, err := png.Decode(&out)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			i := (y*w + x) * BytesPerPixel
			assert.Equal(t, raw[i:i+3], []byte{byte(r >> 8), byte(g >> 8), byte(b >> 8)}, "pixel (%d,%d)", x, y)
		}
	}
}

func TestWriteImageRejectsEmptyDimensions(t *testing.T) {
	var buf bytes.Buffer
	err := WriteImage(&buf, 0, 4, nil)
	var fe FormatError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, buf.Len())
}
