package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aswearingen91/pngsteg/internal/pipeline"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 9), G: uint8(y * 5), B: uint8(x + y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "cover.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(pipeline.DefaultOptions(), 32<<20).Register(mux)
	return mux
}

func TestEmbedThenExtract(t *testing.T) {
	mux := newMux()
	for _, fields := range []map[string]string{
		{},
		{"framing": "nul", "hint": "64"},
		{"seed": "12345"},
		{"passphrase": "hunter2"},
	} {
		embed := map[string]string{"message": "hello from the handler"}
		for k, v := range fields {
			embed[k] = v
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, multipartRequest(t, "/embed", testPNG(t, 32, 32), embed))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "cover_steg.png")

		stego := rec.Body.Bytes()
		_, err := png.Decode(bytes.NewReader(stego))
		require.NoError(t, err)

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, multipartRequest(t, "/extract", stego, fields))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "hello from the handler", resp["message"])
	}
}

func TestCapacityHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux().ServeHTTP(rec, multipartRequest(t, "/capacity", testPNG(t, 8, 8), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep pipeline.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, pipeline.Report{Width: 8, Height: 8, Slots: 192, Bytes: 20}, rep)
}

func TestHandlerErrors(t *testing.T) {
	mux := newMux()
	for _, tc := range []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"method", httptest.NewRequest(http.MethodGet, "/embed", nil), http.StatusMethodNotAllowed},
		{"no image", multipartRequest(t, "/embed", nil, map[string]string{"message": "x"}), http.StatusBadRequest},
		{"no message", multipartRequest(t, "/embed", testPNG(t, 4, 4), nil), http.StatusBadRequest},
		{"not png", multipartRequest(t, "/extract", []byte("GIF89a not a png"), nil), http.StatusBadRequest},
		{"too small", multipartRequest(t, "/embed", testPNG(t, 2, 2), map[string]string{"message": "far too long"}), http.StatusBadRequest},
		{"bad framing", multipartRequest(t, "/extract", testPNG(t, 4, 4), map[string]string{"framing": "xml"}), http.StatusBadRequest},
		{"bad seed", multipartRequest(t, "/extract", testPNG(t, 4, 4), map[string]string{"seed": "-1"}), http.StatusBadRequest},
		{"bad hint", multipartRequest(t, "/extract", testPNG(t, 4, 4), map[string]string{"hint": "0"}), http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, tc.req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}
