// Package gateway is the HTTP front end of the watermark remover.
//
// POST /process accepts {"image": "data:image/...;base64,..."}, validates the
// upload, runs the removal in-process and answers with the edited image as a
// data URI plus the name of the stored artifact. Every request gets its own
// ID and scratch directory, and the scratch directory is removed on every
// exit path.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/assets"
	"github.com/fpang/gemini-watermark-remover/internal/intake"
	"github.com/fpang/gemini-watermark-remover/internal/store"
	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "gemini-watermark-remover"

// DefaultMaxUploadBytes bounds the JSON request body.
const DefaultMaxUploadBytes = 20 << 20

// Remover is the removal workflow. *watermark.Remover implements it.
type Remover interface {
	Remove(ctx context.Context, img *intake.Image) (*watermark.Result, error)
}

// Options wire a Server. Remover and Artifacts are required.
type Options struct {
	Remover   Remover
	Artifacts artifact.Store
	Records   store.RequestStore

	Intake           intake.Options
	ScratchRoot      string
	MaxUploadBytes   int64
	DefaultExtension string

	AllowedOrigins []string
	// RateLimit is requests per second per client IP on POST /process
	// (0 disables limiting).
	RateLimit float64
	RateBurst int
}

// Server handles the HTTP API.
type Server struct {
	opts    Options
	limiter *rateLimiter
	web     fs.FS
}

// New validates opts and prepares the scratch root.
func New(opts Options) (*Server, error) {
	if opts.Remover == nil {
		return nil, errors.New("gateway: remover is required")
	}
	if opts.Artifacts == nil {
		return nil, errors.New("gateway: artifact store is required")
	}
	if opts.Records == nil {
		opts.Records = store.Nop{}
	}
	if opts.ScratchRoot == "" {
		opts.ScratchRoot = os.TempDir()
	}
	if err := os.MkdirAll(opts.ScratchRoot, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.DefaultExtension == "" {
		opts.DefaultExtension = artifact.DefaultExtension
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{opts: opts, web: assets.Web()}
	if opts.RateLimit > 0 {
		s.limiter = newRateLimiter(opts.RateLimit, opts.RateBurst)
	}
	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var process http.Handler = http.HandlerFunc(s.handleProcess)
	if s.limiter != nil {
		process = s.limiter.Middleware(process)
	}
	mux.Handle("POST /process", process)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /requests/{id}", s.handleRequest)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /", s.handleIndex())

	return withLogging(withMetrics(s.withCORS(gzhttp.GzipHandler(mux))))
}

// ScratchRoot is where per-request scratch directories are created.
func (s *Server) ScratchRoot() string { return s.opts.ScratchRoot }

// Close removes scratch directories left behind by interrupted requests.
func (s *Server) Close() error {
	n, err := SweepScratch(s.opts.ScratchRoot)
	if n > 0 {
		log.Info().Int("removed", n).Str("root", s.opts.ScratchRoot).Msg("Swept scratch directories")
	}
	return err
}
