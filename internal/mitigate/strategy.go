// Package mitigate turns authoritative entities into sanitized outputs. Every
// authoritative entity receives exactly one mitigation action; edits to text
// are applied back to front so earlier spans stay valid while later ones are
// rewritten.
package mitigate

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/veilguard-ai/veilguard/internal/config"
	"github.com/veilguard-ai/veilguard/internal/entity"
)

// Planner maps an authoritative entity to the strategy that mitigates it.
type Planner struct {
	strategies   map[string]entity.Strategy
	defaultText  entity.Strategy
	defaultImage entity.Strategy
}

// NewPlanner parses the configured category table. Validation has already
// checked the names; this re-parse keeps the package usable on its own.
func NewPlanner(cfg config.MitigationConfig) (*Planner, error) {
	table := make(map[string]entity.Strategy, len(cfg.Strategies))
	for category, name := range cfg.Strategies {
		s, err := entity.ParseStrategy(name)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		table[category] = s
	}
	defaultText, err := entity.ParseStrategy(cfg.DefaultTextStrategy)
	if err != nil {
		return nil, fmt.Errorf("default text strategy: %w", err)
	}
	if !defaultText.TextCapable() {
		return nil, fmt.Errorf("default text strategy %s operates on pixels", defaultText)
	}
	defaultImage, err := entity.ParseStrategy(cfg.DefaultImgStrategy)
	if err != nil {
		return nil, fmt.Errorf("default image strategy: %w", err)
	}
	return &Planner{
		strategies:   table,
		defaultText:  defaultText,
		defaultImage: defaultImage,
	}, nil
}

// StrategyFor picks the strategy for one entity. A pixel strategy configured
// for a category that shows up in text falls back to the text default rather
// than being misapplied; every strategy is legal on a pixel region.
func (p *Planner) StrategyFor(e entity.AuthoritativeEntity) entity.Strategy {
	isText := e.Span != nil
	if s, ok := p.strategies[e.Category]; ok {
		if !isText || s.TextCapable() {
			return s
		}
	}
	if isText {
		return p.defaultText
	}
	return p.defaultImage
}

// DefaultTemplates seeds the synthetic replacement pools. All values are
// reserved or documentation-range identifiers that cannot collide with a
// real person.
var DefaultTemplates = map[string][]string{
	"EMAIL":       {"user1@example.com", "contact@example.org", "jane.doe@example.net"},
	"PHONE":       {"555-0100", "555-0142", "555-0199"},
	"PERSON":      {"Alex Johnson", "Sam Taylor", "Jordan Lee"},
	"SSN":         {"000-00-0000"},
	"CREDIT_CARD": {"4000 0000 0000 0000"},
	"IBAN":        {"DE00 0000 0000 0000 0000 00"},
	"DATE":        {"01/01/1970"},
	"LOCATION":    {"Springfield", "Riverton"},
	"ORG":         {"Acme Corp", "Initech"},
}

// Synthesizer produces deterministic synthetic replacements. The same raw
// value under the same seed always maps to the same template, so repeated
// runs over one corpus stay consistent.
type Synthesizer struct {
	seed      int64
	templates map[string][]string
}

func NewSynthesizer(seed int64, overrides map[string][]string) *Synthesizer {
	templates := make(map[string][]string, len(DefaultTemplates)+len(overrides))
	for k, v := range DefaultTemplates {
		templates[k] = v
	}
	for k, v := range overrides {
		if len(v) > 0 {
			templates[k] = v
		}
	}
	return &Synthesizer{seed: seed, templates: templates}
}

// Replace returns the synthetic stand-in for a raw value. Categories with no
// template pool get a generic placeholder rather than leaking the raw value.
func (s *Synthesizer) Replace(category, raw string) string {
	pool := s.templates[category]
	if len(pool) == 0 {
		return "[" + category + "]"
	}
	h := fnv.New64a()
	h.Write([]byte(raw))
	idx := (h.Sum64() ^ uint64(s.seed)) % uint64(len(pool))
	return pool[idx]
}

// Mask renders the masked form of a raw value. Full style replaces the whole
// value with its category tag; partial keeps the last two characters of
// values long enough to stay unidentifiable.
func Mask(style, category, raw string) string {
	if style == "partial" && len(raw) > 4 {
		return strings.Repeat("*", len(raw)-2) + raw[len(raw)-2:]
	}
	return "[" + category + "]"
}
