package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds Veilguard configuration.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Text       TextConfig       `yaml:"text"`
	Image      ImageConfig      `yaml:"image"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Mitigation MitigationConfig `yaml:"mitigation"`
	Audit      AuditConfig      `yaml:"audit"`
	Explain    ExplainConfig    `yaml:"explainability"`
	Audio      ModalityToggle   `yaml:"audio"`
	Video      ModalityToggle   `yaml:"video"`
}

type AppConfig struct {
	OutputDir string `yaml:"output_dir"` // sanitized artifacts land here
	Workers   int    `yaml:"workers"`    // folder scan concurrency bound
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// RegexRule is one configured pattern for the regex text detector.
type RegexRule struct {
	Category string `yaml:"category"` // e.g. EMAIL, PHONE, SSN
	Pattern  string `yaml:"pattern"`
}

type NERConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BundleDir string `yaml:"bundle_dir"` // model + tokenizer assets
	SeqLen    int    `yaml:"seq_len"`
}

type TextConfig struct {
	MaxDocLength int                `yaml:"max_doc_length"`
	NER          NERConfig          `yaml:"ner"`
	RegexRules   []RegexRule        `yaml:"regex_rules"`
	DefaultFloor float64            `yaml:"default_floor"` // confidence floor when no per-category entry exists
	Floors       map[string]float64 `yaml:"floors"`
}

type FaceConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BundleDir      string  `yaml:"bundle_dir"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

type OCRConfig struct {
	Enabled       bool    `yaml:"enabled"`
	SidecarSuffix string  `yaml:"sidecar_suffix"` // fragment file next to the image
	MinConfidence float64 `yaml:"min_confidence"`
}

type ImageConfig struct {
	Face             FaceConfig `yaml:"face"`
	OCR              OCRConfig  `yaml:"ocr"`
	IncludeSceneText bool       `yaml:"include_scene_text"` // keep OCR fragments with no nested entity as SCENE_TEXT
	IoUThreshold     float64    `yaml:"iou_threshold"`      // 0 means any nonzero intersection counts as overlap
}

type FusionConfig struct {
	ReplaceMargin     float64  `yaml:"replace_margin"`  // confidence gap required to replace an accepted entity
	SourcePriority    []string `yaml:"source_priority"` // earlier entries win resolver ties
	ProviderTimeoutMS int      `yaml:"provider_timeout_ms"`
}

type MitigationConfig struct {
	Strategies          map[string]string   `yaml:"strategies"` // category -> strategy
	DefaultTextStrategy string              `yaml:"default_text_strategy"`
	DefaultImgStrategy  string              `yaml:"default_image_strategy"`
	MaskStyle           string              `yaml:"mask_style"` // full | partial
	Seed                int64               `yaml:"seed"`
	Templates           map[string][]string `yaml:"templates"` // category -> synthetic replacements
	FaceBlurKernel      int                 `yaml:"face_blur_kernel"`
	MosaicBlock         int                 `yaml:"mosaic_block"`
}

type AuditConfig struct {
	Path string `yaml:"path"` // append-only JSONL log
}

type ExplainConfig struct {
	SaveTextSpans     *bool `yaml:"save_text_spans"`
	SaveImageOverlays *bool `yaml:"save_image_overlays"`
}

// TextSpans reports whether span reports are written. Defaults to on.
func (e ExplainConfig) TextSpans() bool {
	return e.SaveTextSpans == nil || *e.SaveTextSpans
}

// ImageOverlays reports whether overlay images are written. Defaults to on.
func (e ExplainConfig) ImageOverlays() bool {
	return e.SaveImageOverlays == nil || *e.SaveImageOverlays
}

type ModalityToggle struct {
	Enabled bool `yaml:"enabled"`
}

// ProviderTimeout returns the time allowed per provider call.
func (f FusionConfig) ProviderTimeout() time.Duration {
	if f.ProviderTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(f.ProviderTimeoutMS) * time.Millisecond
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// DefaultRegexRules covers the categories the regex detector ships with.
var DefaultRegexRules = []RegexRule{
	{Category: "EMAIL", Pattern: `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`},
	{Category: "PHONE", Pattern: `\+?\d[\d\s\-().]{6,}\d`},
	{Category: "SSN", Pattern: `\b\d{3}-\d{2}-\d{4}\b`},
	{Category: "CREDIT_CARD", Pattern: `\b(?:\d[ \-]?){13,16}\b`},
	{Category: "IBAN", Pattern: `\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`},
	{Category: "DATE", Pattern: `\b\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`},
}

// DefaultSourcePriority is the documented detector tie-break order for the
// overlap resolver. Earlier sources win when position, confidence, and size
// are all equal.
var DefaultSourcePriority = []string{"regex", "ner", "face", "ocr"}

func applyDefaults(cfg *Config) {
	if cfg.App.OutputDir == "" {
		cfg.App.OutputDir = "artifacts"
	}
	if cfg.App.Workers <= 0 {
		cfg.App.Workers = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Text.MaxDocLength <= 0 {
		cfg.Text.MaxDocLength = 10000
	}
	if cfg.Text.NER.SeqLen <= 0 {
		cfg.Text.NER.SeqLen = 256
	}
	if len(cfg.Text.RegexRules) == 0 {
		cfg.Text.RegexRules = append([]RegexRule(nil), DefaultRegexRules...)
	}
	if cfg.Text.DefaultFloor <= 0 {
		cfg.Text.DefaultFloor = 0.5
	}

	if cfg.Image.Face.ScoreThreshold <= 0 {
		cfg.Image.Face.ScoreThreshold = 0.7
	}
	if cfg.Image.OCR.SidecarSuffix == "" {
		cfg.Image.OCR.SidecarSuffix = ".ocr.json"
	}
	if cfg.Image.OCR.MinConfidence <= 0 {
		cfg.Image.OCR.MinConfidence = 0.3
	}

	if cfg.Fusion.ReplaceMargin <= 0 {
		cfg.Fusion.ReplaceMargin = 0.1
	}
	if len(cfg.Fusion.SourcePriority) == 0 {
		cfg.Fusion.SourcePriority = append([]string(nil), DefaultSourcePriority...)
	}

	if cfg.Mitigation.DefaultTextStrategy == "" {
		cfg.Mitigation.DefaultTextStrategy = "mask"
	}
	if cfg.Mitigation.DefaultImgStrategy == "" {
		cfg.Mitigation.DefaultImgStrategy = "blur"
	}
	if cfg.Mitigation.MaskStyle == "" {
		cfg.Mitigation.MaskStyle = "full"
	}
	if cfg.Mitigation.FaceBlurKernel <= 0 {
		cfg.Mitigation.FaceBlurKernel = 35
	}
	// Blur kernels must be odd.
	if cfg.Mitigation.FaceBlurKernel%2 == 0 {
		cfg.Mitigation.FaceBlurKernel++
	}
	if cfg.Mitigation.MosaicBlock <= 0 {
		cfg.Mitigation.MosaicBlock = 12
	}

	if cfg.Audit.Path == "" {
		cfg.Audit.Path = "artifacts/audit.jsonl"
	}
}
