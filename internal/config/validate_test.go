package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadRegex(t *testing.T) {
	cfg := validConfig()
	cfg.Text.RegexRules = append(cfg.Text.RegexRules, RegexRule{Category: "BAD", Pattern: "("})
	if err := Validate(cfg); err == nil {
		t.Fatal("invalid pattern accepted")
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Mitigation.Strategies = map[string]string{"EMAIL": "pixelate"}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("unknown strategy accepted")
	}
	if !strings.Contains(err.Error(), "pixelate") {
		t.Fatalf("error should name the strategy, got %v", err)
	}
}

func TestValidateRejectsPixelDefaultForText(t *testing.T) {
	cfg := validConfig()
	cfg.Mitigation.DefaultTextStrategy = "blur"
	if err := Validate(cfg); err == nil {
		t.Fatal("pixel strategy accepted as text default")
	}
}

func TestValidateRejectsDuplicatePriority(t *testing.T) {
	cfg := validConfig()
	cfg.Fusion.SourcePriority = []string{"regex", "ner", "regex"}
	if err := Validate(cfg); err == nil {
		t.Fatal("duplicate source priority accepted")
	}
}

func TestValidateRejectsEvenKernel(t *testing.T) {
	cfg := validConfig()
	cfg.Mitigation.FaceBlurKernel = 34
	if err := Validate(cfg); err == nil {
		t.Fatal("even blur kernel accepted")
	}
}

func TestValidateRejectsBadFloor(t *testing.T) {
	cfg := validConfig()
	cfg.Text.Floors = map[string]float64{"PERSON": 1.2}
	if err := Validate(cfg); err == nil {
		t.Fatal("floor above 1 accepted")
	}
}

func TestApplyDefaultsBumpsEvenKernel(t *testing.T) {
	cfg := &Config{}
	cfg.Mitigation.FaceBlurKernel = 10
	applyDefaults(cfg)
	if cfg.Mitigation.FaceBlurKernel != 11 {
		t.Fatalf("kernel = %d, want 11", cfg.Mitigation.FaceBlurKernel)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("does-not-exist.yaml")
	if err != nil {
		t.Fatalf("missing file should yield defaults, got %v", err)
	}
	if cfg.App.OutputDir != "artifacts" {
		t.Fatalf("output dir = %q", cfg.App.OutputDir)
	}
	if len(cfg.Fusion.SourcePriority) == 0 {
		t.Fatal("source priority not defaulted")
	}
	if !cfg.Explain.TextSpans() || !cfg.Explain.ImageOverlays() {
		t.Fatal("explainability should default on")
	}
}
