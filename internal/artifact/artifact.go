// Package artifact names and stores the images produced by watermark removal.
//
// Every artifact is keyed by its request ID, so concurrent requests never
// write to the same name. Stores write atomically: a reader sees either the
// complete artifact or nothing.
package artifact

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"
)

// BaseName prefixes every artifact name.
const BaseName = "watermark_removed"

// DefaultExtension is used when a MIME type is not recognised.
const DefaultExtension = ".png"

var (
	// ErrNotFound is returned by Get for a name that was never stored.
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidName is returned for names that cannot address an artifact.
	ErrInvalidName = errors.New("invalid artifact name")
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
	"image/heif": ".heif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
}

// ExtensionFor maps an image MIME type to a file extension including the dot.
// Parameters and case are ignored. Unknown types yield fallback, or
// DefaultExtension when fallback is empty.
func ExtensionFor(mimeType, fallback string) string {
	if fallback == "" {
		fallback = DefaultExtension
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if ext, ok := extensions[mediaType]; ok {
		return ext
	}
	return fallback
}

// MIMETypeFor maps an artifact name to its MIME type by extension.
func MIMETypeFor(name string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	return "application/octet-stream"
}

// Name returns the artifact name for a request.
func Name(requestID, ext string) string {
	return BaseName + "_" + requestID + ext
}

// SanitizeName reduces a client-supplied name to its base name and rejects
// names that cannot refer to a stored artifact.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	if name == "" || strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	base := filepath.Base(name)
	switch base {
	case ".", "..", "/", "":
		return "", ErrInvalidName
	}
	if strings.HasPrefix(base, ".") {
		return "", ErrInvalidName
	}
	return base, nil
}

// Object is a stored artifact.
type Object struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Store persists artifacts.
type Store interface {
	// Put stores data under name and returns its location (a path or URL).
	Put(ctx context.Context, name string, data []byte, mimeType string) (string, error)
	Get(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
	// Location describes where artifacts are kept, for logs.
	Location() string
}
