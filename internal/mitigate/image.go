package mitigate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"go.uber.org/zap"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// ImageMitigator edits sensitive regions out of an image. Pixel operations
// run through a PixelProvider; when a strategy's operation fails the
// mitigator walks a fixed fallback chain, ending at an unconditional solid
// fill so a detected region is never left untouched.
type ImageMitigator struct {
	planner    *Planner
	synth      *Synthesizer
	pixels     PixelProvider
	blurKernel int
	mosaicBloc int
	log        *zap.Logger
}

func NewImageMitigator(planner *Planner, synth *Synthesizer, pixels PixelProvider, blurKernel, mosaicBlock int, log *zap.Logger) *ImageMitigator {
	return &ImageMitigator{
		planner:    planner,
		synth:      synth,
		pixels:     pixels,
		blurKernel: blurKernel,
		mosaicBloc: mosaicBlock,
		log:        log,
	}
}

// Apply edits every entity's region and returns the sanitized image, one
// action per entity, and partial-failure notes for each fallback taken.
func (m *ImageMitigator) Apply(src image.Image, ents []entity.AuthoritativeEntity) (*image.RGBA, []entity.MitigationAction, []entity.PartialFailure, error) {
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)

	var (
		actions  []entity.MitigationAction
		failures []entity.PartialFailure
	)
	for _, e := range ents {
		if e.Rect == nil {
			return nil, nil, nil, fmt.Errorf("entity %s has no rect locator", e.ID)
		}
		strategy := m.planner.StrategyFor(e)
		applied, fallbackNote := m.applyOne(out, e, strategy)
		if fallbackNote != "" {
			m.log.Warn("mitigation degraded",
				zap.String("entity", e.ID),
				zap.String("requested", string(strategy)),
				zap.String("applied", string(applied)))
			failures = append(failures, entity.PartialFailure{
				Stage:  "mitigate",
				Detail: fallbackNote,
			})
		}
		rect := *e.Rect
		actions = append(actions, entity.MitigationAction{
			EntityID:   e.ID,
			Strategy:   applied,
			Applied:    true,
			OutputRect: &rect,
		})
	}
	return out, actions, failures, nil
}

// applyOne runs the strategy and its fallback chain on one region. It
// returns the strategy that actually landed and, when that differs from the
// request, a note describing the degradation.
func (m *ImageMitigator) applyOne(img *image.RGBA, e entity.AuthoritativeEntity, strategy entity.Strategy) (entity.Strategy, string) {
	r := *e.Rect
	var err error
	switch strategy {
	case entity.StrategyBlur:
		if err = m.pixels.Blur(img, r, m.blurKernel); err == nil {
			return strategy, ""
		}
	case entity.StrategyInpaint:
		if err = m.pixels.Inpaint(img, r); err == nil {
			return strategy, ""
		}
	case entity.StrategyMosaic:
		if err = m.pixels.Mosaic(img, r, m.mosaicBloc); err == nil {
			return strategy, ""
		}
	case entity.StrategySyntheticReplace:
		replacement := m.synth.ReplaceShaped(e.Category, e.RawValue)
		if err = m.pixels.RenderText(img, r, replacement); err == nil {
			return strategy, ""
		}
		// A failed text render degrades straight to a solid fill.
		solidFill(img, r)
		return entity.StrategyMask, fmt.Sprintf("entity %s: render failed (%v), region filled", e.ID, err)
	default:
		// mask and anything unexpected: solid fill is the baseline.
		solidFill(img, r)
		return entity.StrategyMask, ""
	}

	// blur, inpaint, and mosaic all degrade to mosaic, then to solid fill.
	if strategy != entity.StrategyMosaic {
		if merr := m.pixels.Mosaic(img, r, m.mosaicBloc); merr == nil {
			return entity.StrategyMosaic, fmt.Sprintf("entity %s: %s failed (%v), mosaic applied", e.ID, strategy, err)
		}
	}
	solidFill(img, r)
	return entity.StrategyMask, fmt.Sprintf("entity %s: %s failed (%v), region filled", e.ID, strategy, err)
}

func solidFill(img *image.RGBA, r entity.Rect) {
	b := clampRect(img, r)
	draw.Draw(img, b, image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
}
