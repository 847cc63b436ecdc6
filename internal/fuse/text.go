package fuse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veilguard-ai/veilguard/internal/detect"
	"github.com/veilguard-ai/veilguard/internal/entity"
)

// ErrNoDetectors means every configured detector for an input failed, so no
// defensible judgement about the input is possible.
var ErrNoDetectors = errors.New("no detector could run")

// TextFuser runs the text detectors, filters by confidence floor, and
// resolves overlaps into an authoritative entity set.
type TextFuser struct {
	providers    []detect.TextProvider
	resolver     *Resolver
	floors       map[string]float64
	defaultFloor float64
	maxDocLen    int
	timeout      time.Duration
	log          *zap.Logger
}

// TextFuserConfig carries the knobs a TextFuser needs.
type TextFuserConfig struct {
	Floors       map[string]float64
	DefaultFloor float64
	MaxDocLength int
	Timeout      time.Duration
}

// NewTextFuser builds a fuser over the given providers. Nil providers are
// permitted and skipped, so disabled detectors cost nothing per call.
func NewTextFuser(providers []detect.TextProvider, resolver *Resolver, cfg TextFuserConfig, log *zap.Logger) *TextFuser {
	var active []detect.TextProvider
	for _, p := range providers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &TextFuser{
		providers:    active,
		resolver:     resolver,
		floors:       cfg.Floors,
		defaultFloor: cfg.DefaultFloor,
		maxDocLen:    cfg.MaxDocLength,
		timeout:      cfg.Timeout,
		log:          log,
	}
}

// Fuse detects and resolves sensitive spans in text. Provider failures and
// timeouts are recorded as partial failures; the error return is non-nil
// only when every provider failed.
func (f *TextFuser) Fuse(ctx context.Context, text string) ([]entity.AuthoritativeEntity, []entity.PartialFailure, error) {
	if len(f.providers) == 0 {
		return nil, nil, fmt.Errorf("%w: no text detectors configured", ErrNoDetectors)
	}

	doc := text
	if f.maxDocLen > 0 && len(doc) > f.maxDocLen {
		doc = doc[:f.maxDocLen]
	}

	var (
		candidates []entity.DetectedEntity
		failures   []entity.PartialFailure
		succeeded  int
	)
	for _, p := range f.providers {
		ents, err := callWithTimeout(ctx, f.timeout, func(cctx context.Context) ([]entity.DetectedEntity, error) {
			return p.Detect(cctx, doc)
		})
		if err != nil {
			f.log.Warn("text detector failed",
				zap.String("detector", p.Name()),
				zap.Error(err))
			failures = append(failures, entity.PartialFailure{
				Stage:  p.Name(),
				Detail: err.Error(),
			})
			continue
		}
		succeeded++
		candidates = append(candidates, ents...)
	}

	if succeeded == 0 {
		return nil, failures, fmt.Errorf("%w: all %d text detectors failed", ErrNoDetectors, len(f.providers))
	}

	kept := candidates[:0]
	for _, e := range candidates {
		if e.Confidence >= f.floor(e.Category) {
			kept = append(kept, e)
		}
	}

	return f.resolver.Resolve(kept), failures, nil
}

func (f *TextFuser) floor(category string) float64 {
	if v, ok := f.floors[category]; ok {
		return v
	}
	return f.defaultFloor
}
