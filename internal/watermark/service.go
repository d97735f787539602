package watermark

import (
	"context"
	"iter"
)

// RemoteFile is a handle to an image uploaded to the remote service.
type RemoteFile struct {
	Name     string
	URI      string
	MIMEType string
}

// Chunk is one piece of a model response. A chunk carries inline image bytes,
// text, or both.
type Chunk struct {
	Data     []byte
	MIMEType string
	Text     string
}

// HasImage reports whether the chunk carries non-empty inline image bytes.
func (c Chunk) HasImage() bool {
	return len(c.Data) > 0
}

// ImageService is the remote image-editing model.
type ImageService interface {
	// Upload stores data remotely and returns once the file is usable.
	Upload(ctx context.Context, data []byte, mimeType string) (*RemoteFile, error)
	// Stream issues a streaming edit request for file with the instruction.
	// Iteration stops after the first error.
	Stream(ctx context.Context, file *RemoteFile, instruction string) iter.Seq2[Chunk, error]
	// Generate issues a single non-streaming edit request.
	Generate(ctx context.Context, file *RemoteFile, instruction string) ([]Chunk, error)
	// Delete removes the remote file.
	Delete(ctx context.Context, file *RemoteFile) error
}
