// Package watermarktest provides an in-memory watermark.ImageService for tests.
package watermarktest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

// Response scripts what the fake returns for one instruction.
type Response struct {
	Stream      []watermark.Chunk
	StreamErr   error
	Generate    []watermark.Chunk
	GenerateErr error
}

// Service is a scripted ImageService. Instructions without a Response get an
// empty stream and an empty non-streaming reply.
type Service struct {
	UploadErr error
	Responses map[string]Response
	// Edit, when set, answers every instruction by transforming the uploaded
	// bytes and wins over Responses.
	Edit func(data []byte, mimeType string) []byte

	mu            sync.Mutex
	uploads       int
	deletes       int
	streamCalls   int
	generateCalls int
	instructions  []string
	files         map[string][]byte
}

// Image returns a chunk carrying image bytes.
func Image(data []byte, mimeType string) watermark.Chunk {
	return watermark.Chunk{Data: data, MIMEType: mimeType}
}

// Text returns a text-only chunk.
func Text(s string) watermark.Chunk {
	return watermark.Chunk{Text: s}
}

func (s *Service) Upload(ctx context.Context, data []byte, mimeType string) (*watermark.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.UploadErr != nil {
		return nil, s.UploadErr
	}
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	name := fmt.Sprintf("files/fake-%d", s.uploads)
	s.files[name] = append([]byte(nil), data...)
	return &watermark.RemoteFile{Name: name, URI: "https://example.invalid/" + name, MIMEType: mimeType}, nil
}

func (s *Service) Stream(ctx context.Context, file *watermark.RemoteFile, instruction string) iter.Seq2[watermark.Chunk, error] {
	s.mu.Lock()
	s.streamCalls++
	s.instructions = append(s.instructions, instruction)
	resp := s.Responses[instruction]
	var edited []byte
	if s.Edit != nil {
		edited = s.Edit(s.files[file.Name], file.MIMEType)
	}
	s.mu.Unlock()

	return func(yield func(watermark.Chunk, error) bool) {
		if edited != nil {
			yield(Image(edited, file.MIMEType), nil)
			return
		}
		for _, c := range resp.Stream {
			if !yield(c, nil) {
				return
			}
		}
		if resp.StreamErr != nil {
			yield(watermark.Chunk{}, resp.StreamErr)
		}
	}
}

func (s *Service) Generate(ctx context.Context, file *watermark.RemoteFile, instruction string) ([]watermark.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generateCalls++
	resp := s.Responses[instruction]
	return resp.Generate, resp.GenerateErr
}

func (s *Service) Delete(ctx context.Context, file *watermark.RemoteFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.Name]; !ok {
		return errors.New("unknown file " + file.Name)
	}
	delete(s.files, file.Name)
	s.deletes++
	return nil
}

// Counts returns how many calls of each kind were made.
func (s *Service) Counts() (uploads, streams, generates, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads, s.streamCalls, s.generateCalls, s.deletes
}

// Instructions returns the instructions streamed, in order.
func (s *Service) Instructions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.instructions...)
}

// RemoteCalls is the total number of calls that reached the service.
func (s *Service) RemoteCalls() int {
	u, st, g, d := s.Counts()
	return u + st + g + d
}
