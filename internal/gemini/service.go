package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/gemini-watermark-remover/internal/metrics"
	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

const (
	// DefaultUploadPollInterval is how often an uploaded file's state is checked.
	DefaultUploadPollInterval = 2 * time.Second
	// DefaultUploadTimeout caps the wait for an uploaded file to become active.
	DefaultUploadTimeout = 30 * time.Second
)

// Options configure a Service.
type Options struct {
	Model              string
	SystemInstruction  string
	UploadPollInterval time.Duration
	UploadTimeout      time.Duration
}

// Service implements watermark.ImageService on the Gemini API.
type Service struct {
	client *genai.Client
	opts   Options
}

var _ watermark.ImageService = (*Service)(nil)

// NewService wraps client. Zero option fields take their defaults.
func NewService(client *genai.Client, opts Options) *Service {
	if opts.Model == "" {
		opts.Model = DefaultImageModel
	}
	if opts.UploadPollInterval <= 0 {
		opts.UploadPollInterval = DefaultUploadPollInterval
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	return &Service{client: client, opts: opts}
}

// Model returns the model ID edit requests are sent to.
func (s *Service) Model() string { return s.opts.Model }

// Upload sends data to the Files API and waits until it leaves the
// PROCESSING state, polling every UploadPollInterval up to UploadTimeout.
func (s *Service) Upload(ctx context.Context, data []byte, mimeType string) (*watermark.RemoteFile, error) {
	log.Debug().
		Int("size_bytes", len(data)).
		Str("mime_type", mimeType).
		Msg("Starting Gemini Files API upload")

	uploadStart := time.Now()
	file, err := s.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	log.Debug().
		Str("name", file.Name).
		Str("uri", file.URI).
		Dur("upload_duration", time.Since(uploadStart)).
		Msg("Image uploaded, waiting for processing...")

	if err := s.waitActive(ctx, file); err != nil {
		s.discard(ctx, file.Name)
		return nil, err
	}

	total := time.Since(uploadStart)
	log.Info().
		Str("name", file.Name).
		Dur("total_time", total).
		Msg("File ready for inference")

	metrics.New(metrics.Namespace).
		Dimension("Operation", "filesApiUpload").
		Duration("GeminiFilesApiUploadMs", total).
		Metric("GeminiFilesApiUploadBytes", float64(len(data)), metrics.UnitBytes).
		Count("GeminiApiCalls").
		Flush()

	remoteMIME := file.MIMEType
	if remoteMIME == "" {
		remoteMIME = mimeType
	}
	return &watermark.RemoteFile{Name: file.Name, URI: file.URI, MIMEType: remoteMIME}, nil
}

// waitActive polls file until it leaves PROCESSING. file is updated in place.
func (s *Service) waitActive(ctx context.Context, file *genai.File) error {
	deadline := time.Now().Add(s.opts.UploadTimeout)
	pollIteration := 0
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for file processing after %v", s.opts.UploadTimeout)
		}
		pollIteration++
		log.Debug().
			Str("state", string(file.State)).
			Int("poll_iteration", pollIteration).
			Msg("File still processing, waiting...")

		if err := watermark.SleepContext(ctx, s.opts.UploadPollInterval); err != nil {
			return err
		}
		latest, err := s.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return fmt.Errorf("failed to get file state: %w", err)
		}
		*file = *latest
	}
	if file.State == genai.FileStateFailed {
		return errors.New("file processing failed")
	}
	return nil
}

// discard deletes an upload that never became usable. Failures are logged;
// the Files API expires uploads on its own.
func (s *Service) discard(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := s.client.Files.Delete(ctx, name, nil); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("Failed to delete unusable upload")
		return
	}
	log.Debug().Str("name", name).Msg("Unusable upload deleted")
}

// Stream sends one streaming edit request. Every response part becomes a chunk.
func (s *Service) Stream(ctx context.Context, file *watermark.RemoteFile, instruction string) iter.Seq2[watermark.Chunk, error] {
	return func(yield func(watermark.Chunk, error) bool) {
		start := time.Now()
		defer s.emitCall("stream", start)
		for resp, err := range s.client.Models.GenerateContentStream(ctx, s.opts.Model, s.contents(file, instruction), s.config()) {
			if err != nil {
				yield(watermark.Chunk{}, fmt.Errorf("stream edit request: %w", err))
				return
			}
			for _, c := range chunksOf(resp) {
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}

// Generate sends one non-streaming edit request.
func (s *Service) Generate(ctx context.Context, file *watermark.RemoteFile, instruction string) ([]watermark.Chunk, error) {
	start := time.Now()
	defer s.emitCall("generate", start)
	resp, err := s.client.Models.GenerateContent(ctx, s.opts.Model, s.contents(file, instruction), s.config())
	if err != nil {
		return nil, fmt.Errorf("edit request: %w", err)
	}
	return chunksOf(resp), nil
}

// Delete removes the uploaded file from the Files API.
func (s *Service) Delete(ctx context.Context, file *watermark.RemoteFile) error {
	if _, err := s.client.Files.Delete(ctx, file.Name, nil); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", file.Name, err)
	}
	log.Debug().Str("name", file.Name).Msg("Uploaded file deleted")
	return nil
}

func (s *Service) contents(file *watermark.RemoteFile, instruction string) []*genai.Content {
	parts := []*genai.Part{
		genai.NewPartFromURI(file.URI, file.MIMEType),
		genai.NewPartFromText(instruction),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func (s *Service) config() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if s.opts.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: s.opts.SystemInstruction}},
		}
	}
	return cfg
}

func (s *Service) emitCall(op string, start time.Time) {
	metrics.New(metrics.Namespace).
		Dimension("Operation", op).
		Dimension("Model", s.opts.Model).
		Duration("GeminiApiLatencyMs", time.Since(start)).
		Count("GeminiApiCalls").
		Flush()
}

// chunksOf flattens the parts of the first candidate into chunks.
func chunksOf(resp *genai.GenerateContentResponse) []watermark.Chunk {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return nil
	}
	var out []watermark.Chunk
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		var c watermark.Chunk
		if part.InlineData != nil {
			c.Data = part.InlineData.Data
			c.MIMEType = part.InlineData.MIMEType
		}
		if !part.Thought {
			c.Text = part.Text
		}
		if c.HasImage() || c.Text != "" {
			out = append(out, c)
		}
	}
	return out
}
