// Package detect defines the provider interfaces the fusion layer consumes
// and ships the built-in detector implementations. Providers are opaque
// capability providers from the core's perspective: they may fail, and a
// failed or timed-out provider degrades the pipeline rather than aborting it.
package detect

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// ErrUnavailable marks a detector backend that cannot run at all.
// Callers fold context deadline errors into the same treatment.
var ErrUnavailable = errors.New("detector unavailable")

// Fixed confidence prior for detectors with no native score.
const RegexPrior = 0.95

// TextProvider detects sensitive spans over the exact text it is given.
type TextProvider interface {
	Name() string
	Detect(ctx context.Context, text string) ([]entity.DetectedEntity, error)
}

// Raster is a decoded image plus the path it came from, when known.
// Sidecar-based providers need the path; pure pixel providers ignore it.
type Raster struct {
	Path  string
	Image image.Image
}

// FaceProvider emits FACE rectangles for a raster image.
type FaceProvider interface {
	Name() string
	Detect(ctx context.Context, r Raster) ([]entity.DetectedEntity, error)
}

// Fragment is one recognized text region from an OCR engine.
type Fragment struct {
	Rect       entity.Rect `json:"rect"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
}

// OCRProvider extracts text fragments with bounding rectangles.
type OCRProvider interface {
	Name() string
	Extract(ctx context.Context, r Raster) ([]Fragment, error)
}

// Unavailable wraps a cause as an ErrUnavailable.
func Unavailable(cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, cause)
}

// IsUnavailable reports whether err should degrade instead of failing the
// pipeline: explicit unavailability and provider timeouts are equivalent.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
