package fuse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veilguard-ai/veilguard/internal/detect"
	"github.com/veilguard-ai/veilguard/internal/entity"
)

// ImageFuser runs the face detector and OCR over a raster, re-runs the text
// detectors on every recognized fragment, remaps nested text hits into image
// coordinates, and resolves everything into one authoritative rectangle set.
type ImageFuser struct {
	face             detect.FaceProvider
	ocr              detect.OCRProvider
	text             *TextFuser
	resolver         *Resolver
	includeSceneText bool
	timeout          time.Duration
	log              *zap.Logger
}

type ImageFuserConfig struct {
	IncludeSceneText bool
	Timeout          time.Duration
}

// NewImageFuser builds a fuser. Either provider may be nil (disabled); the
// nested text fuser handles fragments and may itself degrade independently.
func NewImageFuser(face detect.FaceProvider, ocr detect.OCRProvider, text *TextFuser, resolver *Resolver, cfg ImageFuserConfig, log *zap.Logger) *ImageFuser {
	return &ImageFuser{
		face:             face,
		ocr:              ocr,
		text:             text,
		resolver:         resolver,
		includeSceneText: cfg.IncludeSceneText,
		timeout:          cfg.Timeout,
		log:              log,
	}
}

// Fuse detects and resolves sensitive regions in an image. The error return
// is non-nil only when every configured image detector failed.
func (f *ImageFuser) Fuse(ctx context.Context, r detect.Raster) ([]entity.AuthoritativeEntity, []entity.PartialFailure, error) {
	var (
		candidates []entity.DetectedEntity
		failures   []entity.PartialFailure
		attempted  int
		succeeded  int
	)

	if f.face != nil {
		attempted++
		ents, err := callWithTimeout(ctx, f.timeout, func(cctx context.Context) ([]entity.DetectedEntity, error) {
			return f.face.Detect(cctx, r)
		})
		if err != nil {
			f.log.Warn("face detector failed",
				zap.String("detector", f.face.Name()),
				zap.Error(err))
			failures = append(failures, entity.PartialFailure{Stage: f.face.Name(), Detail: err.Error()})
		} else {
			succeeded++
			candidates = append(candidates, ents...)
		}
	}

	if f.ocr != nil {
		attempted++
		fragments, err := callWithTimeout(ctx, f.timeout, func(cctx context.Context) ([]detect.Fragment, error) {
			return f.ocr.Extract(cctx, r)
		})
		if err != nil {
			f.log.Warn("ocr failed",
				zap.String("detector", f.ocr.Name()),
				zap.Error(err))
			failures = append(failures, entity.PartialFailure{Stage: f.ocr.Name(), Detail: err.Error()})
		} else {
			succeeded++
			ents, fragFailures := f.fuseFragments(ctx, fragments)
			candidates = append(candidates, ents...)
			failures = appendDistinct(failures, fragFailures)
		}
	}

	if attempted == 0 {
		return nil, nil, fmt.Errorf("%w: no image detectors configured", ErrNoDetectors)
	}
	if succeeded == 0 {
		return nil, failures, fmt.Errorf("%w: all %d image detectors failed", ErrNoDetectors, attempted)
	}

	return f.resolver.Resolve(candidates), failures, nil
}

// fuseFragments runs the text detectors over each OCR fragment and remaps
// nested span hits into image rectangles. A fragment whose text cannot be
// judged at all is retained whole as SCENE_TEXT: losing the text detectors
// must never silently drop text the OCR engine located.
func (f *ImageFuser) fuseFragments(ctx context.Context, fragments []detect.Fragment) ([]entity.DetectedEntity, []entity.PartialFailure) {
	var (
		out      []entity.DetectedEntity
		failures []entity.PartialFailure
	)
	for _, frag := range fragments {
		if frag.Text == "" || !frag.Rect.Valid() {
			continue
		}

		nested, nestedFailures, err := f.text.Fuse(ctx, frag.Text)
		failures = appendDistinct(failures, nestedFailures)
		if err != nil {
			out = append(out, f.sceneText(frag))
			continue
		}

		if len(nested) == 0 {
			if f.includeSceneText {
				out = append(out, f.sceneText(frag))
			}
			continue
		}
		for _, n := range nested {
			rect := remapSpan(frag, *n.Span)
			out = append(out, entity.DetectedEntity{
				ID:         entity.NewID(),
				Modality:   entity.ModalityImage,
				Category:   n.Category,
				Confidence: frag.Confidence,
				Rect:       &rect,
				Source:     "ocr",
				RawValue:   n.RawValue,
			})
		}
	}
	return out, failures
}

func (f *ImageFuser) sceneText(frag detect.Fragment) entity.DetectedEntity {
	rect := frag.Rect
	return entity.DetectedEntity{
		ID:         entity.NewID(),
		Modality:   entity.ModalityImage,
		Category:   "SCENE_TEXT",
		Confidence: frag.Confidence,
		Rect:       &rect,
		Source:     "ocr",
		RawValue:   frag.Text,
	}
}

// remapSpan maps a character span inside a fragment to a sub-rectangle of
// the fragment box, assuming uniform glyph width. The result always spans
// at least one pixel.
func remapSpan(frag detect.Fragment, span entity.Span) entity.Rect {
	n := len(frag.Text)
	if n == 0 {
		return frag.Rect
	}
	x0 := frag.Rect.X + span.Start*frag.Rect.W/n
	x1 := frag.Rect.X + span.End*frag.Rect.W/n
	if x1 <= x0 {
		x1 = x0 + 1
	}
	return entity.Rect{X: x0, Y: frag.Rect.Y, W: x1 - x0, H: frag.Rect.H}
}

// appendDistinct merges failure lists, keeping one entry per stage. Nested
// fragment fusion repeats the same detector failure per fragment; the audit
// record needs it once.
func appendDistinct(dst, src []entity.PartialFailure) []entity.PartialFailure {
	for _, pf := range src {
		seen := false
		for _, have := range dst {
			if have.Stage == pf.Stage {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, pf)
		}
	}
	return dst
}
