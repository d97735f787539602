// Package intake validates uploaded images before they are sent to Gemini.
//
// A file or buffer passes when it exists, is non-empty and decodes with one
// of the registered codecs (JPEG, PNG, GIF, WebP). Formats the model does not
// accept, oversized images and a configured canonical format trigger a
// re-encode into a new buffer; the caller's bytes are never modified.
// Validation failures are returned as *Error and are never retried.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/rs/zerolog/log"
)

// DefaultMaxPixels bounds width*height when Options.MaxPixels is zero.
const DefaultMaxPixels = 50_000_000

// Options control normalisation. The zero value validates without resizing
// and applies DefaultMaxPixels.
type Options struct {
	// MaxPixels rejects images whose declared width*height exceeds it before
	// any pixel data is decoded (0 = DefaultMaxPixels, negative = off).
	MaxPixels int
	// MaxDimension downscales images whose width or height exceeds it (0 = off).
	MaxDimension int
	// ForceFormat re-encodes every image as "png" or "jpeg" ("" = keep).
	ForceFormat string
}

// Image is a validated upload ready to be sent to the model.
type Image struct {
	// Data holds the bytes to upload: the original bytes, or the re-encoded
	// bytes when Normalized is true.
	Data     []byte
	MIMEType string
	// Format is the codec name of Data ("jpeg", "png", "webp", "gif").
	Format string
	Width  int
	Height int

	// SourceFormat, SourceWidth and SourceHeight describe the upload as received.
	SourceFormat string
	SourceWidth  int
	SourceHeight int
	DeclaredMIME string
	Normalized   bool

	Metadata *Metadata
}

func (o Options) pixelLimit() int64 {
	switch {
	case o.MaxPixels < 0:
		return 0
	case o.MaxPixels == 0:
		return DefaultMaxPixels
	default:
		return int64(o.MaxPixels)
	}
}

// Validate reads and validates the image at path.
func Validate(path string, opts Options) (*Image, error) {
	log.Debug().Str("path", path).Msg("Validating image file")

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(KindNotFound, path, nil)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, newError(KindNotFound, path, errors.New("path is a directory"))
	}
	if info.Size() == 0 {
		return nil, newError(KindEmpty, path, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, err := validate(data, "", opts, false)
	if err != nil {
		var inErr *Error
		if errors.As(err, &inErr) {
			inErr.Path = path
		}
		return nil, err
	}
	return img, nil
}

// ValidateBytes validates an in-memory upload. declaredMIME is what the
// client claimed and is kept for diagnostics only; the detected format wins.
func ValidateBytes(data []byte, declaredMIME string, opts Options) (*Image, error) {
	return validate(data, declaredMIME, opts, true)
}

func validate(data []byte, declaredMIME string, opts Options, borrowed bool) (*Image, error) {
	if len(data) == 0 {
		return nil, newError(KindEmpty, "", nil)
	}

	start := time.Now()
	// Header first: a few bytes can declare a canvas far larger than memory.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindUnreadable, "", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, newError(KindUnreadable, "", fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height))
	}
	if limit := opts.pixelLimit(); limit > 0 && int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, newError(KindTooLarge, "", fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, limit))
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindUnreadable, "", err)
	}
	bounds := decoded.Bounds()

	img := &Image{
		Data:         data,
		MIMEType:     MIMETypeForFormat(format),
		Format:       format,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceFormat: format,
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
		DeclaredMIME: declaredMIME,
		Metadata:     extractMetadata(data, format),
	}

	if plan := planNormalize(format, img.Width, img.Height, opts); plan.needed {
		out, err := normalize(decoded, plan)
		if err != nil {
			return nil, fmt.Errorf("normalize image: %w", err)
		}
		img.Data = out.data
		img.Format = out.format
		img.MIMEType = MIMETypeForFormat(out.format)
		img.Width, img.Height = out.width, out.height
		img.Normalized = true
	} else if borrowed {
		img.Data = bytes.Clone(data)
	}

	log.Debug().
		Str("source_format", img.SourceFormat).
		Str("format", img.Format).
		Int("width", img.Width).
		Int("height", img.Height).
		Bool("normalized", img.Normalized).
		Int("bytes", len(img.Data)).
		Dur("duration", time.Since(start)).
		Msg("Image validated")

	return img, nil
}

// MIMETypeForFormat maps an image codec name to its MIME type.
func MIMETypeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
