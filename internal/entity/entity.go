package entity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Modality is the content type a detector or mitigator operates on.
// Audio and video inputs are funneled into the text and image pipelines
// by adapters, but the original modality tag survives into the audit trail.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityVideo Modality = "video"
)

// Span is a half-open character range [Start, End) over a specific text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Valid() bool { return s.Start >= 0 && s.Start < s.End }

func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether the two ranges share at least one index.
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (r Rect) Valid() bool { return r.W > 0 && r.H > 0 }

func (r Rect) Area() int { return r.W * r.H }

// Intersect returns the shared region, or a zero-area Rect when disjoint.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.W, o.X+o.W)
	y2 := min(r.Y+r.H, o.Y+o.H)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// IoU is intersection area over union area, in [0,1].
func (r Rect) IoU(o Rect) float64 {
	inter := r.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := r.Area() + o.Area() - inter
	return float64(inter) / float64(union)
}

// DetectedEntity is one raw finding from a single detector. Exactly one of
// Span or Rect is set, matching the modality the locator belongs to.
type DetectedEntity struct {
	ID         string   `json:"id"`
	Modality   Modality `json:"modality"`
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Span       *Span    `json:"span,omitempty"`
	Rect       *Rect    `json:"rect,omitempty"`
	Source     string   `json:"source_detector"`
	RawValue   string   `json:"raw_value,omitempty"`
}

// Validate enforces the locator invariants from the data model.
func (e DetectedEntity) Validate() error {
	if e.ID == "" {
		return errors.New("entity id is empty")
	}
	if e.Category == "" {
		return fmt.Errorf("entity %s has no category", e.ID)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("entity %s confidence %v outside [0,1]", e.ID, e.Confidence)
	}
	switch {
	case e.Span != nil && e.Rect != nil:
		return fmt.Errorf("entity %s carries both span and rect locators", e.ID)
	case e.Span != nil:
		if !e.Span.Valid() {
			return fmt.Errorf("entity %s span [%d,%d) invalid", e.ID, e.Span.Start, e.Span.End)
		}
	case e.Rect != nil:
		if !e.Rect.Valid() {
			return fmt.Errorf("entity %s rect %dx%d invalid", e.ID, e.Rect.W, e.Rect.H)
		}
	default:
		return fmt.Errorf("entity %s has no locator", e.ID)
	}
	return nil
}

// AuthoritativeEntity is a resolver-accepted entity plus the ids of the
// candidates it subsumed. Within one resolved set no two locators overlap.
type AuthoritativeEntity struct {
	DetectedEntity
	Absorbed []string `json:"absorbed,omitempty"`
}

// Strategy is the closed set of mitigation kinds. New strategies require an
// explicit constant here and a dispatch arm in the mitigation engine.
type Strategy string

const (
	StrategyMask             Strategy = "mask"
	StrategySyntheticReplace Strategy = "synthetic_replace"
	StrategyBlur             Strategy = "blur"
	StrategyInpaint          Strategy = "inpaint"
	StrategyMosaic           Strategy = "mosaic"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMask, StrategySyntheticReplace, StrategyBlur, StrategyInpaint, StrategyMosaic:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown mitigation strategy %q", s)
}

// TextCapable reports whether the strategy can edit character spans. Mask
// and synthetic replacement also apply to pixel regions; the pixel
// strategies never apply to text.
func (s Strategy) TextCapable() bool {
	return s == StrategyMask || s == StrategySyntheticReplace
}

// MitigationAction records what was done for one authoritative entity.
// Created once, immutable after creation. Applied is false only when the
// strategy's provider signaled a non-fatal failure.
type MitigationAction struct {
	EntityID        string   `json:"entity_id"`
	Strategy        Strategy `json:"strategy"`
	Applied         bool     `json:"applied"`
	ReasonIfSkipped string   `json:"reason_if_skipped,omitempty"`
	OutputSpan      *Span    `json:"output_span,omitempty"`
	OutputRect      *Rect    `json:"output_rect,omitempty"`
}

// PartialFailure is a non-fatal degradation note: one provider or stage
// failed but the pipeline still produced a usable result.
type PartialFailure struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// NewID returns a fresh entity/input identifier.
func NewID() string { return uuid.NewString() }
