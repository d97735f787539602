package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/intake"
	"github.com/fpang/gemini-watermark-remover/internal/jobs"
	"github.com/fpang/gemini-watermark-remover/internal/store"
	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

type processRequest struct {
	Image string `json:"image"`
}

// handleProcess runs one removal request end to end.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	requestID := jobs.NewRequestID()
	logger := log.With().Str("requestId", requestID).Logger()
	ctx := logger.WithContext(r.Context())

	fail := func(status int, kind string, err error, attempts int) {
		respondJSON(w, status, errorResponse{
			Error:     err.Error(),
			Kind:      kind,
			RequestID: requestID,
			Attempts:  attempts,
		})
	}

	var req processRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(http.StatusRequestEntityTooLarge, kindTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit), 0)
			return
		}
		fail(http.StatusBadRequest, kindBadRequest, errors.New("invalid JSON body"), 0)
		return
	}
	if req.Image == "" {
		fail(http.StatusBadRequest, kindBadRequest, errors.New("no image provided"), 0)
		return
	}

	mimeType, data, err := intake.ParseDataURI(req.Image)
	if err != nil {
		logger.Info().Err(err).Msg("Rejected upload")
		fail(http.StatusBadRequest, intake.KindBadDataURI.String(), err, 0)
		return
	}

	rec := &store.Request{
		ID:        requestID,
		Status:    store.StatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
	rec.UpdatedAt = rec.CreatedAt
	s.saveRecord(ctx, rec)

	out, err := s.process(ctx, requestID, mimeType, data, rec)
	if err != nil {
		status, kind := classify(err)
		attempts := watermark.AttemptCount(err)

		event := logger.Warn()
		if kind == kindInternal {
			event = logger.Error()
		}
		event.Err(err).Str("kind", kind).Int("status", status).Int("attempts", attempts).Msg("Request failed")

		msg := err.Error()
		var inErr *intake.Error
		switch {
		case kind == kindInternal:
			msg = "internal error"
		case errors.As(err, &inErr):
			// The scratch path means nothing to the client.
			inErr.Path = ""
			msg = inErr.Error()
		}

		rec.Status = store.StatusFailed
		rec.ErrorKind = kind
		rec.Error = msg
		rec.Attempts = attempts
		rec.UpdatedAt = time.Now().UTC()
		s.saveRecord(ctx, rec)

		fail(status, kind, errors.New(msg), attempts)
		return
	}

	rec.Status = store.StatusComplete
	rec.Attempt = out.result.Attempt.Index
	rec.Attempts = len(out.result.Reports)
	rec.Instruction = out.result.Attempt.Instruction
	rec.OutputName = out.name
	rec.OutputMIME = out.mimeType
	rec.UpdatedAt = time.Now().UTC()
	s.saveRecord(ctx, rec)

	respondJSON(w, http.StatusOK, processResponse{
		Success:     true,
		RequestID:   requestID,
		ImageData:   intake.EncodeDataURI(out.mimeType, out.result.Data),
		OutputPath:  out.name,
		MIMEType:    out.mimeType,
		Attempt:     out.result.Attempt.Index,
		Instruction: out.result.Attempt.Instruction,
	})
}

type processed struct {
	result   *watermark.Result
	name     string
	mimeType string
}

// process validates the upload in a private scratch directory, runs the
// removal and stores the artifact. The scratch directory is removed before
// it returns.
func (s *Server) process(ctx context.Context, requestID, mimeType string, data []byte, rec *store.Request) (*processed, error) {
	logger := zerolog.Ctx(ctx)

	scratch, err := newScratch(s.opts.ScratchRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn().Err(err).Str("scratch", scratch).Msg("Failed to remove scratch dir")
		}
	}()

	inputPath := filepath.Join(scratch, "input"+artifact.ExtensionFor(mimeType, s.opts.DefaultExtension))
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write intake file %s: %w", inputPath, err)
	}

	img, err := intake.Validate(inputPath, s.opts.Intake)
	if err != nil {
		return nil, err
	}
	img.DeclaredMIME = mimeType
	rec.SourceFormat = img.SourceFormat
	rec.Width, rec.Height = img.SourceWidth, img.SourceHeight

	logger.Info().
		Str("format", img.Format).
		Int("width", img.Width).
		Int("height", img.Height).
		Bool("normalized", img.Normalized).
		Msg("Upload validated")

	result, err := s.opts.Remover.Remove(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, errors.New("model returned an empty image")
	}

	outMIME := result.MIMEType
	if outMIME == "" {
		outMIME = http.DetectContentType(result.Data)
	}
	name := artifact.Name(requestID, artifact.ExtensionFor(outMIME, s.opts.DefaultExtension))
	location, err := s.opts.Artifacts.Put(ctx, name, result.Data, outMIME)
	if err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}

	logger.Info().
		Str("artifact", location).
		Int("attempt", result.Attempt.Index).
		Int("bytes", len(result.Data)).
		Msg("Artifact stored")

	return &processed{result: result, name: name, mimeType: outMIME}, nil
}

// classify maps a processing error to an HTTP status and error kind.
func classify(err error) (int, string) {
	var inErr *intake.Error
	switch {
	case errors.As(err, &inErr):
		if inErr.Kind == intake.KindTooLarge {
			return http.StatusRequestEntityTooLarge, inErr.Kind.String()
		}
		return http.StatusBadRequest, inErr.Kind.String()
	case errors.Is(err, watermark.ErrQuota):
		return http.StatusTooManyRequests, kindQuota
	case errors.Is(err, watermark.ErrExhausted):
		return http.StatusInternalServerError, kindExhausted
	case errors.Is(err, watermark.ErrTransport):
		return http.StatusBadGateway, kindTransport
	default:
		return http.StatusInternalServerError, kindInternal
	}
}

func (s *Server) saveRecord(ctx context.Context, rec *store.Request) {
	if err := s.opts.Records.PutRequest(ctx, rec); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("status", rec.Status).Msg("Failed to save request record")
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name, err := artifact.SanitizeName(r.PathValue("filename"))
	if err != nil {
		httpError(w, http.StatusBadRequest, kindBadRequest, "invalid file name")
		return
	}
	obj, err := s.opts.Artifacts.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			httpError(w, http.StatusNotFound, kindNotFound, "file not found")
			return
		}
		log.Error().Err(err).Str("name", name).Msg("Failed to read artifact")
		httpError(w, http.StatusInternalServerError, kindInternal, "internal error")
		return
	}
	w.Header().Set("Content-Type", obj.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", obj.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !jobs.ValidRequestID(id) {
		httpError(w, http.StatusBadRequest, kindBadRequest, "invalid request id")
		return
	}
	rec, err := s.opts.Records.GetRequest(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("requestId", id).Msg("Failed to read request record")
		httpError(w, http.StatusInternalServerError, kindInternal, "internal error")
		return
	}
	if rec == nil {
		httpError(w, http.StatusNotFound, kindNotFound, "request not found")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

func (s *Server) handleIndex() http.Handler {
	fileServer := http.FileServer(http.FS(s.web))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		fileServer.ServeHTTP(w, r)
	})
}
