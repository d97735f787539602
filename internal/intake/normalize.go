package intake

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

const jpegQuality = 92

// modelFormats are the decoded formats Gemini accepts as-is.
var modelFormats = map[string]bool{"jpeg": true, "png": true, "webp": true}

type normalizePlan struct {
	needed        bool
	target        string
	width, height int
}

type normalized struct {
	data          []byte
	format        string
	width, height int
}

func planNormalize(format string, w, h int, opts Options) normalizePlan {
	plan := normalizePlan{target: format, width: w, height: h}

	if !modelFormats[format] {
		plan.needed = true
		plan.target = "png"
	}
	if opts.ForceFormat != "" && opts.ForceFormat != format {
		plan.needed = true
		plan.target = opts.ForceFormat
	}
	if limit := opts.MaxDimension; limit > 0 && (w > limit || h > limit) {
		plan.needed = true
		if w >= h {
			plan.width, plan.height = limit, scaleSide(h, limit, w)
		} else {
			plan.width, plan.height = scaleSide(w, limit, h), limit
		}
	}
	// No encoder for WebP: a resized WebP is written losslessly as PNG.
	if plan.needed && plan.target == "webp" {
		plan.target = "png"
	}
	return plan
}

func scaleSide(side, limit, longest int) int {
	s := side * limit / longest
	if s < 1 {
		s = 1
	}
	return s
}

func normalize(src image.Image, plan normalizePlan) (*normalized, error) {
	out := src
	b := src.Bounds()
	if plan.width != b.Dx() || plan.height != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, plan.width, plan.height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	switch plan.target {
	case "png":
		if err := png.Encode(&buf, out); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported target format %q", plan.target)
	}

	return &normalized{
		data:   buf.Bytes(),
		format: plan.target,
		width:  plan.width,
		height: plan.height,
	}, nil
}
