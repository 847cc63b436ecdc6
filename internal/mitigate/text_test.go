package mitigate

import (
	"strings"
	"testing"

	"github.com/veilguard-ai/veilguard/internal/config"
	"github.com/veilguard-ai/veilguard/internal/entity"
)

func testPlanner(t *testing.T, strategies map[string]string) *Planner {
	t.Helper()
	p, err := NewPlanner(config.MitigationConfig{
		Strategies:          strategies,
		DefaultTextStrategy: "mask",
		DefaultImgStrategy:  "blur",
	})
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	return p
}

func auth(id, category string, start, end int, raw string) entity.AuthoritativeEntity {
	return entity.AuthoritativeEntity{DetectedEntity: entity.DetectedEntity{
		ID:         id,
		Modality:   entity.ModalityText,
		Category:   category,
		Confidence: 0.9,
		Span:       &entity.Span{Start: start, End: end},
		Source:     "regex",
		RawValue:   raw,
	}}
}

func TestTextMaskMultipleSpans(t *testing.T) {
	text := "Call me at 555-123-4567 or email bob@co.com"
	ents := []entity.AuthoritativeEntity{
		auth("p", "PHONE", 11, 23, "555-123-4567"),
		auth("e", "EMAIL", 33, 43, "bob@co.com"),
	}
	m := NewTextMitigator(testPlanner(t, nil), NewSynthesizer(0, nil), "full")

	out, actions, err := m.Apply(text, ents)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := "Call me at [PHONE] or email [EMAIL]"
	if out != want {
		t.Fatalf("out = %q, want %q", out, want)
	}
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	for _, a := range actions {
		if !a.Applied {
			t.Fatalf("action %s not applied: %s", a.EntityID, a.ReasonIfSkipped)
		}
	}
	// Output spans address the sanitized document.
	if got := out[actions[0].OutputSpan.Start:actions[0].OutputSpan.End]; got != "[PHONE]" {
		t.Fatalf("phone output span covers %q", got)
	}
	if got := out[actions[1].OutputSpan.Start:actions[1].OutputSpan.End]; got != "[EMAIL]" {
		t.Fatalf("email output span covers %q", got)
	}
}

func TestTextPartialMask(t *testing.T) {
	text := "card 4111111111111111 end"
	ents := []entity.AuthoritativeEntity{auth("c", "CREDIT_CARD", 5, 21, "4111111111111111")}
	m := NewTextMitigator(testPlanner(t, nil), NewSynthesizer(0, nil), "partial")

	out, _, err := m.Apply(text, ents)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := "card " + strings.Repeat("*", 14) + "16 end"
	if out != want {
		t.Fatalf("out = %q, want %q", out, want)
	}
}

func TestTextPartialMaskShortValueFallsBackToFull(t *testing.T) {
	m := NewTextMitigator(testPlanner(t, nil), NewSynthesizer(0, nil), "partial")
	out, _, err := m.Apply("pin 1234", []entity.AuthoritativeEntity{auth("p", "PIN", 4, 8, "1234")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != "pin [PIN]" {
		t.Fatalf("out = %q; short values must be fully masked", out)
	}
}

func TestTextSyntheticReplaceDeterministic(t *testing.T) {
	text := "mail bob@co.com now"
	ents := []entity.AuthoritativeEntity{auth("e", "EMAIL", 5, 15, "bob@co.com")}
	m := NewTextMitigator(testPlanner(t, map[string]string{"EMAIL": "synthetic_replace"}), NewSynthesizer(7, nil), "full")

	first, _, err := m.Apply(text, ents)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	second, _, err := m.Apply(text, ents)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if first != second {
		t.Fatalf("same input diverged: %q vs %q", first, second)
	}
	if strings.Contains(first, "bob@co.com") {
		t.Fatalf("raw value survived: %q", first)
	}
}

func TestTextSpanOutOfBoundsSkippedWithReason(t *testing.T) {
	m := NewTextMitigator(testPlanner(t, nil), NewSynthesizer(0, nil), "full")
	out, actions, err := m.Apply("short", []entity.AuthoritativeEntity{auth("x", "EMAIL", 10, 20, "")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != "short" {
		t.Fatalf("out = %q, want untouched input", out)
	}
	if len(actions) != 1 || actions[0].Applied || actions[0].ReasonIfSkipped == "" {
		t.Fatalf("actions = %+v, want one skipped with a reason", actions)
	}
}

func TestSynthesizerStability(t *testing.T) {
	s := NewSynthesizer(42, nil)
	a := s.Replace("EMAIL", "alice@example.com")
	b := s.Replace("EMAIL", "alice@example.com")
	if a != b {
		t.Fatalf("same raw value mapped to %q then %q", a, b)
	}
	if s.Replace("UNKNOWN_CATEGORY", "zzz") != "[UNKNOWN_CATEGORY]" {
		t.Fatal("unpooled category must get a generic placeholder")
	}
}

func TestPlannerModalityMismatchFallsBack(t *testing.T) {
	p := testPlanner(t, map[string]string{"FACE": "blur", "EMAIL": "mosaic"})

	textEnt := auth("e", "EMAIL", 0, 5, "")
	if got := p.StrategyFor(textEnt); got != entity.StrategyMask {
		t.Fatalf("pixel strategy on a span entity: got %s, want mask default", got)
	}

	rect := entity.Rect{X: 0, Y: 0, W: 10, H: 10}
	faceEnt := entity.AuthoritativeEntity{DetectedEntity: entity.DetectedEntity{
		ID: "f", Category: "FACE", Confidence: 0.9, Rect: &rect, Source: "face",
	}}
	if got := p.StrategyFor(faceEnt); got != entity.StrategyBlur {
		t.Fatalf("got %s, want blur", got)
	}
}
