// Package pipeline drives an input through detection, fusion, mitigation,
// and audit recording. Each input moves through a fixed state sequence;
// provider loss degrades a run, a missing audit line fails it.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/veilguard-ai/veilguard/internal/adapter"
	"github.com/veilguard-ai/veilguard/internal/audit"
	"github.com/veilguard-ai/veilguard/internal/config"
	"github.com/veilguard-ai/veilguard/internal/entity"
	"github.com/veilguard-ai/veilguard/internal/fuse"
	"github.com/veilguard-ai/veilguard/internal/mitigate"
)

// State is where an input currently is in its lifecycle.
type State string

const (
	StateReceived   State = "received"
	StateDetecting  State = "detecting"
	StateFusing     State = "fusing"
	StateMitigating State = "mitigating"
	StateRecording  State = "recording"
	StateCompleted  State = "completed"
	StateDegraded   State = "degraded"
	StateFailed     State = "failed"
)

// Result is the terminal outcome for one input.
type Result struct {
	InputID         string                       `json:"input_id"`
	State           State                        `json:"state"`
	Modality        entity.Modality              `json:"modality"`
	Source          string                       `json:"source,omitempty"`
	SanitizedText   string                       `json:"sanitized_text,omitempty"`
	ArtifactPaths   map[string]string            `json:"artifact_paths,omitempty"`
	Entities        []entity.AuthoritativeEntity `json:"entities"`
	Actions         []entity.MitigationAction    `json:"actions"`
	PartialFailures []entity.PartialFailure      `json:"partial_failures,omitempty"`
	Error           string                       `json:"error,omitempty"`
}

// Manager wires the stages together and owns artifact placement.
type Manager struct {
	textFuser  *fuse.TextFuser
	imageFuser *fuse.ImageFuser
	textMit    *mitigate.TextMitigator
	imageMit   *mitigate.ImageMitigator
	sink       audit.Sink
	audio      adapter.Audio
	video      adapter.Video

	outputDir    string
	explain      config.ExplainConfig
	audioEnabled bool
	videoEnabled bool
	workers      int
	log          *zap.Logger
}

// Options collects the Manager's collaborators. All detector wiring happens
// upstream; the pipeline only sequences whatever it is given.
type Options struct {
	TextFuser    *fuse.TextFuser
	ImageFuser   *fuse.ImageFuser
	TextMit      *mitigate.TextMitigator
	ImageMit     *mitigate.ImageMitigator
	Sink         audit.Sink
	Audio        adapter.Audio
	Video        adapter.Video
	OutputDir    string
	Explain      config.ExplainConfig
	AudioEnabled bool
	VideoEnabled bool
	Workers      int
	Log          *zap.Logger
}

func New(opts Options) *Manager {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Manager{
		textFuser:    opts.TextFuser,
		imageFuser:   opts.ImageFuser,
		textMit:      opts.TextMit,
		imageMit:     opts.ImageMit,
		sink:         opts.Sink,
		audio:        opts.Audio,
		video:        opts.Video,
		outputDir:    opts.OutputDir,
		explain:      opts.Explain,
		audioEnabled: opts.AudioEnabled,
		videoEnabled: opts.VideoEnabled,
		workers:      workers,
		log:          opts.Log,
	}
}

func (m *Manager) transition(res *Result, to State) {
	res.State = to
	m.log.Debug("state transition",
		zap.String("input", res.InputID),
		zap.String("state", string(to)))
}

// finish settles the terminal state: any partial failure on an otherwise
// successful run means degraded, never silently completed.
func (m *Manager) finish(res *Result) *Result {
	if len(res.PartialFailures) > 0 {
		m.transition(res, StateDegraded)
	} else {
		m.transition(res, StateCompleted)
	}
	m.log.Info("input processed",
		zap.String("input", res.InputID),
		zap.String("modality", string(res.Modality)),
		zap.String("state", string(res.State)),
		zap.Int("entities", len(res.Entities)))
	return res
}

func (m *Manager) fail(res *Result, err error) (*Result, error) {
	res.Error = err.Error()
	m.transition(res, StateFailed)
	m.log.Error("input failed",
		zap.String("input", res.InputID),
		zap.String("modality", string(res.Modality)),
		zap.Error(err))
	return res, err
}

// stem derives the artifact basename for an input. Inputs with no source
// path fall back to the input id.
func stem(source, inputID string) string {
	if source == "" {
		return inputID
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newResult(modality entity.Modality, source string) *Result {
	return &Result{
		InputID:       entity.NewID(),
		State:         StateReceived,
		Modality:      modality,
		Source:        source,
		ArtifactPaths: map[string]string{},
		Entities:      []entity.AuthoritativeEntity{},
		Actions:       []entity.MitigationAction{},
	}
}

// record writes the audit line. It is the one stage whose failure is always
// fatal for the input.
func (m *Manager) record(ctx context.Context, res *Result) error {
	m.transition(res, StateRecording)
	rec := audit.New(res.InputID, res.Modality, res.Source)
	rec.Entities = res.Entities
	rec.Actions = res.Actions
	rec.ArtifactPaths = res.ArtifactPaths
	rec.PartialFailures = res.PartialFailures
	if err := m.sink.Record(ctx, rec); err != nil {
		return fmt.Errorf("audit record: %w", err)
	}
	return nil
}
