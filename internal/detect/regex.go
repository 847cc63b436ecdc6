package detect

import (
	"context"
	"fmt"
	"regexp"

	"github.com/veilguard-ai/veilguard/internal/config"
	"github.com/veilguard-ai/veilguard/internal/entity"
)

type compiledRule struct {
	category string
	re       *regexp.Regexp
}

// RegexProvider matches configured per-category patterns against text.
// It has no native confidence, so every hit carries the fixed RegexPrior.
type RegexProvider struct {
	rules []compiledRule
}

// NewRegexProvider compiles the configured rule set. Pattern validity is
// also enforced at config validation; compile errors here are programmer
// errors in hand-built rule slices.
func NewRegexProvider(rules []config.RegexRule) (*RegexProvider, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Category, err)
		}
		compiled = append(compiled, compiledRule{category: rule.Category, re: re})
	}
	return &RegexProvider{rules: compiled}, nil
}

func (p *RegexProvider) Name() string { return "regex" }

// Detect returns one entity per pattern match, with spans over text.
func (p *RegexProvider) Detect(ctx context.Context, text string) ([]entity.DetectedEntity, error) {
	if text == "" {
		return nil, nil
	}
	var out []entity.DetectedEntity
	for _, rule := range p.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			out = append(out, entity.DetectedEntity{
				ID:         entity.NewID(),
				Modality:   entity.ModalityText,
				Category:   rule.category,
				Confidence: RegexPrior,
				Span:       &entity.Span{Start: loc[0], End: loc[1]},
				Source:     p.Name(),
				RawValue:   text[loc[0]:loc[1]],
			})
		}
	}
	return out, nil
}
