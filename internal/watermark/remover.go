// Package watermark asks a remote image model to remove the watermark from an
// image, walking an ordered list of instructions until one yields an image.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-watermark-remover/internal/auth"
	"github.com/fpang/gemini-watermark-remover/internal/intake"
	"github.com/fpang/gemini-watermark-remover/internal/metrics"
)

// DefaultAttemptDelay separates consecutive attempts.
const DefaultAttemptDelay = 2 * time.Second

const deleteTimeout = 10 * time.Second

// Options configure a Remover.
type Options struct {
	// Prompts are tried in order. At least one is required.
	Prompts []string
	// AttemptDelay precedes every attempt after the first. Zero means no delay.
	AttemptDelay time.Duration
	// Sleep waits for d or until ctx is done. Defaults to SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Attempt identifies one instruction in the list. Index is 1-based.
type Attempt struct {
	Index       int
	Instruction string
}

// Outcome is how a single attempt ended.
type Outcome string

const (
	OutcomeImage    Outcome = "image"
	OutcomeTextOnly Outcome = "text_only"
	OutcomeEmpty    Outcome = "empty"
	OutcomeError    Outcome = "error"
)

// Report records one attempt.
type Report struct {
	Attempt
	Outcome  Outcome
	Chunks   int
	Fallback bool
	Text     string
	Err      error
	Duration time.Duration
}

// Result is a successful removal.
type Result struct {
	Data     []byte
	MIMEType string
	Attempt  Attempt
	Reports  []Report
}

// Remover runs the instruction fallback loop against an ImageService.
type Remover struct {
	svc  ImageService
	opts Options
}

// New returns a Remover. It fails if svc is nil or the prompt list is empty.
func New(svc ImageService, opts Options) (*Remover, error) {
	if svc == nil {
		return nil, errors.New("watermark: nil image service")
	}
	prompts := make([]string, 0, len(opts.Prompts))
	for _, p := range opts.Prompts {
		if p = strings.TrimSpace(p); p != "" {
			prompts = append(prompts, p)
		}
	}
	if len(prompts) == 0 {
		return nil, errors.New("watermark: at least one instruction is required")
	}
	opts.Prompts = prompts
	if opts.AttemptDelay < 0 {
		opts.AttemptDelay = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	return &Remover{svc: svc, opts: opts}, nil
}

// Prompts returns the instruction list in use.
func (r *Remover) Prompts() []string {
	return append([]string(nil), r.opts.Prompts...)
}

// Remove uploads img once and tries each instruction in order. It returns the
// first image produced, or an error matching ErrExhausted, ErrQuota or
// ErrTransport. Later instructions are never issued once one succeeds.
func (r *Remover) Remove(ctx context.Context, img *intake.Image) (*Result, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, errors.New("watermark: empty image")
	}
	start := time.Now()

	file, err := r.svc.Upload(ctx, img.Data, img.MIMEType)
	if err != nil {
		emitRequest("upload_failed", 0, time.Since(start))
		log.Error().Err(err).Str("mime_type", img.MIMEType).Msg("Failed to upload image")
		if auth.IsQuota(err) {
			return nil, &QuotaError{Err: fmt.Errorf("upload: %w", err)}
		}
		return nil, &TransportError{Err: fmt.Errorf("upload: %w", err)}
	}
	defer r.deleteRemote(ctx, file)

	log.Info().
		Str("file", file.Name).
		Str("mime_type", file.MIMEType).
		Int("instructions", len(r.opts.Prompts)).
		Msg("Image uploaded, starting removal attempts")

	reports := make([]Report, 0, len(r.opts.Prompts))
	for i, instruction := range r.opts.Prompts {
		if i > 0 && r.opts.AttemptDelay > 0 {
			if err := r.opts.Sleep(ctx, r.opts.AttemptDelay); err != nil {
				emitRequest("cancelled", len(reports), time.Since(start))
				return nil, fmt.Errorf("watermark: waiting before attempt %d: %w", i+1, err)
			}
		}

		at := Attempt{Index: i + 1, Instruction: instruction}
		report, chunk := r.attempt(ctx, file, at)
		reports = append(reports, report)
		emitAttempt(report)

		if chunk != nil {
			emitRequest("success", len(reports), time.Since(start))
			log.Info().
				Int("attempt", at.Index).
				Str("mime_type", chunk.MIMEType).
				Int("bytes", len(chunk.Data)).
				Dur("duration", time.Since(start)).
				Msg("Watermark removed")
			return &Result{
				Data:     chunk.Data,
				MIMEType: chunk.MIMEType,
				Attempt:  at,
				Reports:  reports,
			}, nil
		}

		if report.Err != nil {
			if auth.IsQuota(report.Err) {
				emitRequest("quota", len(reports), time.Since(start))
				log.Warn().Err(report.Err).Int("attempt", at.Index).Msg("Quota exceeded, skipping remaining instructions")
				return nil, &QuotaError{Reports: reports, Err: report.Err}
			}
			if auth.IsAuth(report.Err) {
				emitRequest("auth_failed", len(reports), time.Since(start))
				log.Error().Err(report.Err).Int("attempt", at.Index).Msg("API key rejected, skipping remaining instructions")
				return nil, &TransportError{Reports: reports, Err: report.Err}
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				emitRequest("cancelled", len(reports), time.Since(start))
				return nil, fmt.Errorf("watermark: attempt %d: %w", at.Index, ctxErr)
			}
		}
	}

	emitRequest("exhausted", len(reports), time.Since(start))
	log.Warn().Int("attempts", len(reports)).Msg("No instruction produced an image")
	return nil, &ExhaustedError{Reports: reports}
}

// attempt runs one instruction: a streaming request, then a single
// non-streaming request if the stream produced nothing at all.
func (r *Remover) attempt(ctx context.Context, file *RemoteFile, at Attempt) (Report, *Chunk) {
	start := time.Now()
	report := Report{Attempt: at}
	var texts []string
	logger := log.With().Int("attempt", at.Index).Logger()

	logger.Debug().Str("instruction", at.Instruction).Msg("Streaming edit request")
	for chunk, err := range r.svc.Stream(ctx, file, at.Instruction) {
		if err != nil {
			report.Outcome = OutcomeError
			report.Err = err
			report.Duration = time.Since(start)
			logger.Warn().Err(err).Int("chunks", report.Chunks).Msg("Streaming edit request failed")
			return report, nil
		}
		report.Chunks++
		if chunk.HasImage() {
			report.Outcome = OutcomeImage
			report.Duration = time.Since(start)
			return report, &chunk
		}
		if chunk.Text != "" {
			texts = append(texts, chunk.Text)
			logger.Debug().Str("text", chunk.Text).Msg("Text-only chunk")
		}
	}

	if report.Chunks > 0 {
		report.Outcome = OutcomeTextOnly
		report.Text = strings.Join(texts, "")
		report.Duration = time.Since(start)
		logger.Info().Int("chunks", report.Chunks).Msg("Stream returned no image")
		return report, nil
	}

	logger.Debug().Msg("Stream returned nothing, trying non-streaming request")
	report.Fallback = true
	chunks, err := r.svc.Generate(ctx, file, at.Instruction)
	report.Duration = time.Since(start)
	if err != nil {
		report.Outcome = OutcomeError
		report.Err = err
		logger.Warn().Err(err).Msg("Non-streaming edit request failed")
		return report, nil
	}
	for i := range chunks {
		if chunks[i].HasImage() {
			report.Outcome = OutcomeImage
			return report, &chunks[i]
		}
		if chunks[i].Text != "" {
			texts = append(texts, chunks[i].Text)
		}
	}
	if len(chunks) == 0 {
		report.Outcome = OutcomeEmpty
	} else {
		report.Outcome = OutcomeTextOnly
		report.Text = strings.Join(texts, "")
	}
	logger.Info().Str("outcome", string(report.Outcome)).Msg("Non-streaming request returned no image")
	return report, nil
}

// deleteRemote removes the uploaded file even if ctx is already cancelled.
func (r *Remover) deleteRemote(ctx context.Context, file *RemoteFile) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := r.svc.Delete(dctx, file); err != nil {
		log.Warn().Err(err).Str("file", file.Name).Msg("Failed to delete uploaded file")
	}
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func emitAttempt(r Report) {
	rec := metrics.New(metrics.Namespace).
		Dimension("Outcome", string(r.Outcome)).
		Duration("RemovalAttemptMs", r.Duration).
		Count("RemovalAttempts")
	if r.Fallback {
		rec.Count("RemovalFallbacks")
	}
	rec.Flush()
}

func emitRequest(result string, attempts int, elapsed time.Duration) {
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Duration("RemovalMs", elapsed).
		Metric("RemovalAttemptsPerRequest", float64(attempts), metrics.UnitCount).
		Flush()
}
