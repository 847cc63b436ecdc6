package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veilguard-ai/veilguard/internal/adapter"
	"github.com/veilguard-ai/veilguard/internal/audit"
	"github.com/veilguard-ai/veilguard/internal/config"
	"github.com/veilguard-ai/veilguard/internal/detect"
	"github.com/veilguard-ai/veilguard/internal/fuse"
	"github.com/veilguard-ai/veilguard/internal/logging"
	"github.com/veilguard-ai/veilguard/internal/mitigate"
	"github.com/veilguard-ai/veilguard/internal/pipeline"
)

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	sink    audit.Sink
	manager *pipeline.Manager
}

// buildApp loads config and assembles the pipeline. A detector whose model
// bundle cannot be loaded is wired in as an unavailable stand-in, so the
// pipeline degrades at runtime instead of refusing to start.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	regex, err := detect.NewRegexProvider(cfg.Text.RegexRules)
	if err != nil {
		return nil, fmt.Errorf("compile regex rules: %w", err)
	}
	textProviders := []detect.TextProvider{regex}
	if cfg.Text.NER.Enabled {
		ner, err := detect.NewNERProvider(cfg.Text.NER.BundleDir, cfg.Text.NER.SeqLen)
		if err != nil {
			log.Warn("ner model unavailable", zap.Error(err))
			textProviders = append(textProviders, detect.UnavailableText{Provider: "ner", Err: err})
		} else {
			textProviders = append(textProviders, ner)
		}
	}

	var face detect.FaceProvider
	if cfg.Image.Face.Enabled {
		p, err := detect.NewFaceONNXProvider(cfg.Image.Face.BundleDir, cfg.Image.Face.ScoreThreshold)
		if err != nil {
			log.Warn("face model unavailable", zap.Error(err))
			face = detect.UnavailableFace{Err: err}
		} else {
			face = p
		}
	}
	var ocr detect.OCRProvider
	if cfg.Image.OCR.Enabled {
		ocr = detect.NewSidecarOCR(cfg.Image.OCR.SidecarSuffix, cfg.Image.OCR.MinConfidence)
	}

	resolver := fuse.NewResolver(fuse.ResolverConfig{
		ReplaceMargin:  cfg.Fusion.ReplaceMargin,
		IoUThreshold:   cfg.Image.IoUThreshold,
		SourcePriority: cfg.Fusion.SourcePriority,
	})
	textFuser := fuse.NewTextFuser(textProviders, resolver, fuse.TextFuserConfig{
		Floors:       cfg.Text.Floors,
		DefaultFloor: cfg.Text.DefaultFloor,
		MaxDocLength: cfg.Text.MaxDocLength,
		Timeout:      cfg.Fusion.ProviderTimeout(),
	}, log)
	imageFuser := fuse.NewImageFuser(face, ocr, textFuser, resolver, fuse.ImageFuserConfig{
		IncludeSceneText: cfg.Image.IncludeSceneText,
		Timeout:          cfg.Fusion.ProviderTimeout(),
	}, log)

	planner, err := mitigate.NewPlanner(cfg.Mitigation)
	if err != nil {
		return nil, fmt.Errorf("mitigation plan: %w", err)
	}
	synth := mitigate.NewSynthesizer(cfg.Mitigation.Seed, cfg.Mitigation.Templates)

	sink, err := audit.NewFileSink(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	manager := pipeline.New(pipeline.Options{
		TextFuser:  textFuser,
		ImageFuser: imageFuser,
		TextMit:    mitigate.NewTextMitigator(planner, synth, cfg.Mitigation.MaskStyle),
		ImageMit: mitigate.NewImageMitigator(planner, synth, mitigate.StdProvider{},
			cfg.Mitigation.FaceBlurKernel, cfg.Mitigation.MosaicBlock, log),
		Sink:         sink,
		Audio:        adapter.Audio{Log: log},
		Video:        adapter.Video{Log: log},
		OutputDir:    cfg.App.OutputDir,
		Explain:      cfg.Explain,
		AudioEnabled: cfg.Audio.Enabled,
		VideoEnabled: cfg.Video.Enabled,
		Workers:      cfg.App.Workers,
		Log:          log,
	})

	return &app{cfg: cfg, log: log, sink: sink, manager: manager}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.sink.Close(ctx); err != nil {
		a.log.Warn("close audit sink", zap.Error(err))
	}
	_ = a.log.Sync()
}
