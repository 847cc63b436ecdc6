package detect

import (
	"context"
	"testing"

	"github.com/veilguard-ai/veilguard/internal/config"
)

func TestRegexProviderDetectsDefaults(t *testing.T) {
	p, err := NewRegexProvider(config.DefaultRegexRules)
	if err != nil {
		t.Fatalf("compile default rules: %v", err)
	}

	text := "Call me at 555-123-4567 or email bob@co.com"
	ents, err := p.Detect(context.Background(), text)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	var gotEmail, gotPhone bool
	for _, e := range ents {
		if err := e.Validate(); err != nil {
			t.Errorf("invalid entity: %v", err)
		}
		if e.Confidence != RegexPrior {
			t.Errorf("confidence = %v, want fixed prior %v", e.Confidence, RegexPrior)
		}
		if e.RawValue != text[e.Span.Start:e.Span.End] {
			t.Errorf("raw value %q does not match span text", e.RawValue)
		}
		switch e.Category {
		case "EMAIL":
			gotEmail = true
			if e.RawValue != "bob@co.com" {
				t.Errorf("email raw = %q", e.RawValue)
			}
		case "PHONE":
			gotPhone = true
		}
	}
	if !gotEmail || !gotPhone {
		t.Fatalf("missing categories: email=%v phone=%v", gotEmail, gotPhone)
	}
}

func TestRegexProviderEmptyText(t *testing.T) {
	p, err := NewRegexProvider(config.DefaultRegexRules)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ents, err := p.Detect(context.Background(), "")
	if err != nil || len(ents) != 0 {
		t.Fatalf("empty text: ents=%d err=%v", len(ents), err)
	}
}

func TestRegexProviderBadPattern(t *testing.T) {
	if _, err := NewRegexProvider([]config.RegexRule{{Category: "X", Pattern: "("}}); err == nil {
		t.Fatal("bad pattern accepted")
	}
}

func TestRegexProviderHonorsCancel(t *testing.T) {
	p, err := NewRegexProvider(config.DefaultRegexRules)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Detect(ctx, "bob@co.com"); err == nil {
		t.Fatal("cancelled context ignored")
	}
}
