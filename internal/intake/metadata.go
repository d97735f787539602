package intake

import (
	"bytes"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// Metadata is EXIF information kept for diagnostics. It is never sent to
// the model.
type Metadata struct {
	CameraMake  string
	CameraModel string
	DateTaken   time.Time
	HasDate     bool
}

// extractMetadata reads EXIF from JPEG uploads. Missing or corrupt EXIF is
// not an error: the image itself already decoded.
func extractMetadata(data []byte, format string) *Metadata {
	if format != "jpeg" {
		return nil
	}
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata in upload")
		return nil
	}

	meta := &Metadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}
	if t := exifData.DateTimeOriginal(); !t.IsZero() {
		meta.DateTaken, meta.HasDate = t, true
	} else if t := exifData.CreateDate(); !t.IsZero() {
		meta.DateTaken, meta.HasDate = t, true
	}
	if meta.CameraMake == "" && meta.CameraModel == "" && !meta.HasDate {
		return nil
	}
	return meta
}
