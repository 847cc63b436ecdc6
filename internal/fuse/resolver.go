// Package fuse reconciles raw detections from independent providers into a
// single authoritative, non-overlapping set of sensitive regions per input.
package fuse

import (
	"sort"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// ResolverConfig tunes overlap resolution.
type ResolverConfig struct {
	// ReplaceMargin is the confidence gap a candidate needs over an
	// already-accepted entity to take its place.
	ReplaceMargin float64
	// IoUThreshold applies to rectangle locators. Zero keeps the
	// conservative default: any nonzero intersection counts as overlap.
	IoUThreshold float64
	// SourcePriority breaks ties between detectors; earlier wins.
	SourcePriority []string
}

// Resolver merges candidate detections of one modality into an
// authoritative set. It is stateless across inputs and safe for
// concurrent use.
type Resolver struct {
	replaceMargin float64
	iouThreshold  float64
	priority      map[string]int
}

func NewResolver(cfg ResolverConfig) *Resolver {
	priority := make(map[string]int, len(cfg.SourcePriority))
	for i, src := range cfg.SourcePriority {
		priority[src] = i
	}
	return &Resolver{
		replaceMargin: cfg.ReplaceMargin,
		iouThreshold:  cfg.IoUThreshold,
		priority:      priority,
	}
}

// Resolve sweeps the candidates in a deterministic order and produces a
// non-overlapping authoritative set. Candidates that lose to an accepted
// entity are retained in its Absorbed list for the audit trail. The result
// is independent of input ordering; an empty input yields an empty set.
func (r *Resolver) Resolve(candidates []entity.DetectedEntity) []entity.AuthoritativeEntity {
	if len(candidates) == 0 {
		return nil
	}

	ordered := append([]entity.DetectedEntity(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool { return r.less(ordered[i], ordered[j]) })

	var accepted []entity.AuthoritativeEntity
	for _, cand := range ordered {
		var hits []int
		for i := range accepted {
			if r.overlaps(cand, accepted[i].DetectedEntity) {
				hits = append(hits, i)
			}
		}

		switch len(hits) {
		case 0:
			accepted = append(accepted, entity.AuthoritativeEntity{DetectedEntity: cand})
		case 1:
			acc := &accepted[hits[0]]
			if cand.Confidence > acc.Confidence+r.replaceMargin {
				absorbed := append(append([]string(nil), acc.Absorbed...), acc.ID)
				*acc = entity.AuthoritativeEntity{DetectedEntity: cand, Absorbed: absorbed}
			} else {
				acc.Absorbed = append(acc.Absorbed, cand.ID)
			}
		default:
			// Never fragment an already-finalized region: the candidate
			// becomes audit context on every region it touches.
			for _, i := range hits {
				accepted[i].Absorbed = append(accepted[i].Absorbed, cand.ID)
			}
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		pi, pj := position(accepted[i].DetectedEntity), position(accepted[j].DetectedEntity)
		if pi != pj {
			return pi < pj
		}
		return accepted[i].ID < accepted[j].ID
	})
	return accepted
}

// less orders candidates by (position asc, confidence desc, size desc,
// source priority, id). The id leg makes the order total, so resolution is
// deterministic for any input permutation.
func (r *Resolver) less(a, b entity.DetectedEntity) bool {
	pa, pb := position(a), position(b)
	if pa != pb {
		return pa < pb
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	sa, sb := size(a), size(b)
	if sa != sb {
		return sa > sb
	}
	ra, rb := r.sourceRank(a.Source), r.sourceRank(b.Source)
	if ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

func (r *Resolver) sourceRank(src string) int {
	if rank, ok := r.priority[src]; ok {
		return rank
	}
	return len(r.priority)
}

func (r *Resolver) overlaps(a, b entity.DetectedEntity) bool {
	switch {
	case a.Span != nil && b.Span != nil:
		return a.Span.Overlaps(*b.Span)
	case a.Rect != nil && b.Rect != nil:
		if r.iouThreshold <= 0 {
			return a.Rect.Intersect(*b.Rect).Valid()
		}
		return a.Rect.IoU(*b.Rect) >= r.iouThreshold
	default:
		return false
	}
}

func position(e entity.DetectedEntity) int {
	if e.Span != nil {
		return e.Span.Start
	}
	if e.Rect != nil {
		// Row-major reading order.
		return e.Rect.Y*1000000 + e.Rect.X
	}
	return 0
}

func size(e entity.DetectedEntity) int {
	if e.Span != nil {
		return e.Span.Len()
	}
	if e.Rect != nil {
		return e.Rect.Area()
	}
	return 0
}
