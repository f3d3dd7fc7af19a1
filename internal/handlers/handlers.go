package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/aswearingen91/pngsteg/internal/crypto"
	"github.com/aswearingen91/pngsteg/internal/pipeline"
	"github.com/aswearingen91/pngsteg/internal/pngio"
	"github.com/aswearingen91/pngsteg/internal/schedule"
	"github.com/aswearingen91/pngsteg/internal/steg"
)

type Handler struct {
	opts      pipeline.Options
	maxUpload int64
}

func NewHandler(opts pipeline.Options, maxUpload int64) *Handler {
	return &Handler{opts: opts, maxUpload: maxUpload}
}

// Register mounts the handler's endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/embed", h.EmbedHandler)
	mux.HandleFunc("/extract", h.ExtractHandler)
	mux.HandleFunc("/capacity", h.CapacityHandler)
}

// helper: JSON response
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps pipeline failures caused by the uploaded image or payload
// to 400 and everything else to 500.
func statusFor(err error) int {
	var (
		fe pngio.FormatError
		ue pngio.UnsupportedError
		me pngio.MissingChunkError
		uf pngio.UnknownFilterError
		ie *pngio.IntegrityError
		te *pngio.TruncatedError
		ce *schedule.CapacityError
	)
	switch {
	case errors.As(err, &fe), errors.As(err, &ue), errors.As(err, &me), errors.As(err, &uf),
		errors.As(err, &ie), errors.As(err, &te), errors.As(err, &ce),
		errors.Is(err, steg.ErrBadLength), errors.Is(err, steg.ErrEmbeddedNUL), errors.Is(err, steg.ErrNoHint),
		errors.Is(err, pipeline.ErrImageData):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// parseRequest reads the multipart form, the uploaded image and any
// per-request overrides of the service defaults.
func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, pipeline.Options, bool) {
	opts := h.opts
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return nil, nil, opts, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "bad form: "+err.Error())
		return nil, nil, opts, false
	}

	if v := r.FormValue("framing"); v != "" {
		f, err := steg.ParseFraming(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, nil, opts, false
		}
		opts.Framing = f
	}
	if v := r.FormValue("hint"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "hint must be a positive integer")
			return nil, nil, opts, false
		}
		opts.Hint = n
	}
	if v := r.FormValue("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "seed must be an unsigned integer")
			return nil, nil, opts, false
		}
		opts.Seed = seed
	}
	if v := r.FormValue("passphrase"); v != "" {
		seed, err := crypto.DeriveSeed(v)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "deriving seed: "+err.Error())
			return nil, nil, opts, false
		}
		opts.Seed = seed
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return nil, nil, opts, false
	}
	return file, header, opts, true
}

// ------------------------------------------------------------
// EmbedHandler: multipart form: image (file), message (text) or payload (file)
// ------------------------------------------------------------
func (h *Handler) EmbedHandler(w http.ResponseWriter, r *http.Request) {
	file, header, opts, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	defer file.Close()

	payload := []byte(r.FormValue("message"))
	if pf, _, err := r.FormFile("payload"); err == nil {
		payload, err = io.ReadAll(pf)
		pf.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading payload: "+err.Error())
			return
		}
	}
	if len(payload) == 0 {
		writeError(w, http.StatusBadRequest, "missing message")
		return
	}

	log.Debug().Str("name", header.Filename).Int("payload", len(payload)).Str("framing", opts.Framing.String()).Msg("embed request")

	var out bytes.Buffer
	if err := pipeline.Embed(file, &out, payload, opts); err != nil {
		writeError(w, statusFor(err), "embed failed: "+err.Error())
		return
	}

	// return as downloadable PNG
	outName := strings.TrimSuffix(header.Filename, ".png") + "_steg.png"
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outName))

	if _, err := io.Copy(w, &out); err != nil {
		log.Error().Err(err).Msg("writing PNG to response")
	}
}

// ------------------------------------------------------------
// ExtractHandler: multipart form: image (file)
// ------------------------------------------------------------
func (h *Handler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	file, _, opts, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	defer file.Close()

	payload, err := pipeline.Extract(file, opts)
	if err != nil {
		writeError(w, statusFor(err), "extract failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": string(payload)})
}

// ------------------------------------------------------------
// CapacityHandler: multipart form: image (file)
// ------------------------------------------------------------
func (h *Handler) CapacityHandler(w http.ResponseWriter, r *http.Request) {
	file, _, opts, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rep, err := pipeline.Capacity(file, opts)
	if err != nil {
		writeError(w, statusFor(err), "capacity failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
