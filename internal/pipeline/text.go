package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/veilguard-ai/veilguard/internal/entity"
	"github.com/veilguard-ai/veilguard/internal/explain"
	"github.com/veilguard-ai/veilguard/internal/fuse"
	"github.com/veilguard-ai/veilguard/internal/redact"
)

// ProcessText runs a document through the full text pipeline. The returned
// Result is non-nil even on failure so callers always see the terminal
// state.
func (m *Manager) ProcessText(ctx context.Context, source, text string) (*Result, error) {
	return m.processText(ctx, newResult(entity.ModalityText, source), text)
}

func (m *Manager) processText(ctx context.Context, res *Result, text string) (*Result, error) {
	m.log.Debug("text input received",
		zap.String("input", res.InputID),
		zap.String("preview", redact.Preview(text, 80)))

	m.transition(res, StateDetecting)
	m.transition(res, StateFusing)
	ents, failures, err := m.textFuser.Fuse(ctx, text)
	res.PartialFailures = append(res.PartialFailures, failures...)
	if err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, err)
	}
	res.Entities = ents

	m.transition(res, StateMitigating)
	sanitized, actions, err := m.textMit.Apply(text, ents)
	if err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, fmt.Errorf("mitigate text: %w", err))
	}
	res.SanitizedText = sanitized
	res.Actions = actions

	base := stem(res.Source, res.InputID)
	outPath := filepath.Join(m.outputDir, base+".sanitized.txt")
	if err := writeFileArtifact(outPath, []byte(sanitized)); err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, err)
	}
	res.ArtifactPaths["sanitized"] = outPath

	if m.explain.TextSpans() {
		reportPath := filepath.Join(m.outputDir, base+".spans.txt")
		if _, err := explain.WriteSpanReport(reportPath, sanitized, ents, actions); err != nil {
			// Explainability is best effort; losing the report degrades.
			res.PartialFailures = append(res.PartialFailures, entity.PartialFailure{
				Stage:  "explain",
				Detail: err.Error(),
			})
		} else {
			res.ArtifactPaths["span_report"] = reportPath
		}
	}

	if err := m.record(ctx, res); err != nil {
		return m.fail(res, err)
	}
	return m.finish(res), nil
}

// ProcessAudio maps an audio input onto the text pipeline via its companion
// transcript. A missing transcript degrades the run rather than failing it;
// there is simply nothing to judge, and the audit trail says so.
func (m *Manager) ProcessAudio(ctx context.Context, path string) (*Result, error) {
	res := newResult(entity.ModalityAudio, path)
	if !m.audioEnabled {
		return m.fail(res, fuse.ErrNoDetectors)
	}

	transcript, err := m.audio.ToText(path)
	if err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, fmt.Errorf("audio transcript: %w", err))
	}
	if transcript == "" {
		res.PartialFailures = append(res.PartialFailures, entity.PartialFailure{
			Stage:  "transcribe",
			Detail: "no transcript available for audio input",
		})
		if err := m.record(ctx, res); err != nil {
			return m.fail(res, err)
		}
		return m.finish(res), nil
	}
	return m.processText(ctx, res, transcript)
}

func writeFileArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
