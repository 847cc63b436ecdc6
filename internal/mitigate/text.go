package mitigate

import (
	"fmt"
	"sort"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// TextMitigator rewrites sensitive spans in a document.
type TextMitigator struct {
	planner   *Planner
	synth     *Synthesizer
	maskStyle string
}

func NewTextMitigator(planner *Planner, synth *Synthesizer, maskStyle string) *TextMitigator {
	return &TextMitigator{planner: planner, synth: synth, maskStyle: maskStyle}
}

type textEdit struct {
	entityID    string
	strategy    entity.Strategy
	span        entity.Span
	replacement string
}

// Apply rewrites every entity's span and returns the sanitized text plus one
// action per entity. Spans are edited from the highest start offset down, so
// no edit invalidates the offsets of the ones still pending. Entities whose
// spans fall outside the document are skipped with a recorded reason, never
// silently dropped.
func (m *TextMitigator) Apply(text string, ents []entity.AuthoritativeEntity) (string, []entity.MitigationAction, error) {
	var (
		edits   []textEdit
		actions []entity.MitigationAction
	)
	for _, e := range ents {
		if e.Span == nil {
			return "", nil, fmt.Errorf("entity %s has no span locator", e.ID)
		}
		strategy := m.planner.StrategyFor(e)
		if e.Span.Start >= len(text) || e.Span.End > len(text) {
			actions = append(actions, entity.MitigationAction{
				EntityID:        e.ID,
				Strategy:        strategy,
				Applied:         false,
				ReasonIfSkipped: "span outside document bounds",
			})
			continue
		}

		raw := e.RawValue
		if raw == "" {
			raw = text[e.Span.Start:e.Span.End]
		}
		var replacement string
		switch strategy {
		case entity.StrategyMask:
			replacement = Mask(m.maskStyle, e.Category, raw)
		case entity.StrategySyntheticReplace:
			replacement = m.synth.Replace(e.Category, raw)
		default:
			return "", nil, fmt.Errorf("entity %s: strategy %s cannot edit text", e.ID, strategy)
		}
		edits = append(edits, textEdit{
			entityID:    e.ID,
			strategy:    strategy,
			span:        *e.Span,
			replacement: replacement,
		})
	}

	// Back to front.
	sort.Slice(edits, func(i, j int) bool { return edits[i].span.Start > edits[j].span.Start })
	out := []byte(text)
	for _, ed := range edits {
		out = append(out[:ed.span.Start], append([]byte(ed.replacement), out[ed.span.End:]...)...)
	}

	// Forward pass over the same edits to place each replacement in the
	// sanitized document's coordinates.
	sort.Slice(edits, func(i, j int) bool { return edits[i].span.Start < edits[j].span.Start })
	shift := 0
	for _, ed := range edits {
		start := ed.span.Start + shift
		span := entity.Span{Start: start, End: start + len(ed.replacement)}
		shift += len(ed.replacement) - ed.span.Len()
		actions = append(actions, entity.MitigationAction{
			EntityID:   ed.entityID,
			Strategy:   ed.strategy,
			Applied:    true,
			OutputSpan: &span,
		})
	}

	return string(out), actions, nil
}
