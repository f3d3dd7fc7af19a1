package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"lukechampine.com/flagg"

	"github.com/aswearingen91/pngsteg/internal/handlers"
	"github.com/aswearingen91/pngsteg/internal/logging"
	"github.com/aswearingen91/pngsteg/internal/pipeline"
)

func main() {
	var (
		addr      string
		seed      uint64
		maxUpload int64
		adaptive  bool
		verbose   bool
	)
	flagg.Root.Usage = flagg.SimpleUsage(flagg.Root, `Usage: stegsvc [flags]

Serves POST /embed, /extract and /capacity over HTTP.
`)
	flagg.Root.StringVar(&addr, "addr", ":8080", "listen address")
	flagg.Root.Uint64Var(&seed, "seed", pipeline.DefaultSeed, "default schedule seed")
	flagg.Root.Int64Var(&maxUpload, "max-upload", 32<<20, "maximum request size in bytes")
	flagg.Root.BoolVar(&adaptive, "adaptive", false, "use adaptive scanline filters when writing")
	flagg.Root.BoolVar(&verbose, "v", false, "debug logging")
	flagg.Parse(flagg.Tree{Cmd: flagg.Root})

	logging.Setup(nil, verbose)

	opts := pipeline.DefaultOptions()
	opts.Seed = seed
	opts.Adaptive = adaptive

	mux := http.NewServeMux()
	handlers.NewHandler(opts, maxUpload).Register(mux)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stegsvc: service up\n"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Msg("stegsvc starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Simple request logger
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
