package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// Validate checks the loaded config for required fields and safe values.
// Configuration errors are fatal at startup and never silently ignored.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.App.OutputDir) == "" {
		return errors.New("app.output_dir must be set")
	}
	if strings.TrimSpace(cfg.Audit.Path) == "" {
		return errors.New("audit.path must be set")
	}

	for i, rule := range cfg.Text.RegexRules {
		if strings.TrimSpace(rule.Category) == "" {
			return fmt.Errorf("text.regex_rules[%d] missing category", i)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("text.regex_rules[%d] (%s) invalid pattern: %w", i, rule.Category, err)
		}
	}
	if cfg.Text.NER.Enabled && strings.TrimSpace(cfg.Text.NER.BundleDir) == "" {
		return errors.New("text.ner enabled but bundle_dir is empty")
	}
	if err := validateFloor("text.default_floor", cfg.Text.DefaultFloor); err != nil {
		return err
	}
	for cat, floor := range cfg.Text.Floors {
		if err := validateFloor("text.floors."+cat, floor); err != nil {
			return err
		}
	}

	if cfg.Image.Face.Enabled && strings.TrimSpace(cfg.Image.Face.BundleDir) == "" {
		return errors.New("image.face enabled but bundle_dir is empty")
	}
	if cfg.Image.IoUThreshold < 0 || cfg.Image.IoUThreshold >= 1 {
		return fmt.Errorf("image.iou_threshold must be in [0,1), got %v", cfg.Image.IoUThreshold)
	}

	if cfg.Fusion.ReplaceMargin < 0 || cfg.Fusion.ReplaceMargin > 1 {
		return fmt.Errorf("fusion.replace_margin must be in [0,1], got %v", cfg.Fusion.ReplaceMargin)
	}
	if err := validateSourcePriority(cfg.Fusion.SourcePriority); err != nil {
		return err
	}

	return validateMitigation(cfg.Mitigation)
}

func validateFloor(field string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1], got %v", field, v)
	}
	return nil
}

func validateSourcePriority(priority []string) error {
	if len(priority) == 0 {
		return errors.New("fusion.source_priority must list at least one detector")
	}
	seen := make(map[string]struct{}, len(priority))
	for _, src := range priority {
		src = strings.TrimSpace(src)
		if src == "" {
			return errors.New("fusion.source_priority contains an empty entry")
		}
		if _, dup := seen[src]; dup {
			return fmt.Errorf("fusion.source_priority lists %q twice", src)
		}
		seen[src] = struct{}{}
	}
	return nil
}

func validateMitigation(m MitigationConfig) error {
	def, err := entity.ParseStrategy(m.DefaultTextStrategy)
	if err != nil {
		return fmt.Errorf("mitigation.default_text_strategy: %w", err)
	}
	if !def.TextCapable() {
		return fmt.Errorf("mitigation.default_text_strategy %q cannot apply to spans", def)
	}
	if _, err := entity.ParseStrategy(m.DefaultImgStrategy); err != nil {
		return fmt.Errorf("mitigation.default_image_strategy: %w", err)
	}

	for cat, name := range m.Strategies {
		if _, err := entity.ParseStrategy(name); err != nil {
			return fmt.Errorf("mitigation.strategies.%s: %w", cat, err)
		}
	}

	switch m.MaskStyle {
	case "full", "partial":
	default:
		return fmt.Errorf("mitigation.mask_style must be full or partial, got %q", m.MaskStyle)
	}

	if m.FaceBlurKernel%2 == 0 {
		return fmt.Errorf("mitigation.face_blur_kernel must be odd, got %d", m.FaceBlurKernel)
	}
	for cat, entries := range m.Templates {
		if len(entries) == 0 {
			return fmt.Errorf("mitigation.templates.%s is empty", cat)
		}
	}
	return nil
}
