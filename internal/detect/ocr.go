package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// SidecarOCR reads recognized-text fragments from a JSON file the external
// OCR engine writes next to the image (default "<image>.ocr.json"). The
// engine itself stays outside this process; the sidecar is its interface.
//
// A missing sidecar means the image contains no recognized text. An
// unreadable or malformed sidecar is a provider failure.
type SidecarOCR struct {
	Suffix        string
	MinConfidence float64
}

func NewSidecarOCR(suffix string, minConfidence float64) *SidecarOCR {
	if suffix == "" {
		suffix = ".ocr.json"
	}
	return &SidecarOCR{Suffix: suffix, MinConfidence: minConfidence}
}

func (s *SidecarOCR) Name() string { return "ocr" }

// Extract loads the sidecar fragments, dropping entries below the
// configured confidence floor and entries with degenerate rectangles.
func (s *SidecarOCR) Extract(ctx context.Context, r Raster) ([]Fragment, error) {
	if r.Path == "" {
		return nil, Unavailable(errors.New("no source path for sidecar lookup"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.Path + s.Suffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, Unavailable(fmt.Errorf("read sidecar: %w", err))
	}

	var fragments []Fragment
	if err := json.Unmarshal(data, &fragments); err != nil {
		return nil, Unavailable(fmt.Errorf("decode sidecar: %w", err))
	}

	out := fragments[:0]
	for _, f := range fragments {
		if f.Text == "" || !f.Rect.Valid() {
			continue
		}
		if f.Confidence < s.MinConfidence {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// UnavailableOCR stands in for an OCR engine that is disabled or missing.
type UnavailableOCR struct {
	Err error
}

func (u UnavailableOCR) Name() string { return "ocr" }

func (u UnavailableOCR) Extract(context.Context, Raster) ([]Fragment, error) {
	return nil, Unavailable(u.Err)
}
