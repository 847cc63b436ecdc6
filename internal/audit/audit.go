// Package audit builds and persists the append-only record of every
// processed input. A record is written exactly once, after mitigation, and
// failure to write it fails the input: a sanitized artifact without its
// audit line must never be reported as success.
package audit

import (
	"context"
	"time"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// SchemaVersion tags every record so readers can survive format evolution.
const SchemaVersion = "1"

// Record is the canonical audit payload for one processed input.
type Record struct {
	Version         string                       `json:"version"`
	InputID         string                       `json:"input_id"`
	Modality        entity.Modality              `json:"modality"`
	Timestamp       time.Time                    `json:"timestamp"`
	Source          string                       `json:"source,omitempty"`
	Entities        []entity.AuthoritativeEntity `json:"entities"`
	Actions         []entity.MitigationAction    `json:"actions"`
	ArtifactPaths   map[string]string            `json:"artifact_paths,omitempty"`
	PartialFailures []entity.PartialFailure      `json:"partial_failures,omitempty"`
}

// New assembles a record with the current schema version and timestamp.
func New(inputID string, modality entity.Modality, source string) *Record {
	return &Record{
		Version:   SchemaVersion,
		InputID:   inputID,
		Modality:  modality,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Entities:  []entity.AuthoritativeEntity{},
		Actions:   []entity.MitigationAction{},
	}
}

// Sink persists records. Implementations must be safe for concurrent use
// and must make a record durable before returning.
type Sink interface {
	Name() string
	Record(ctx context.Context, rec *Record) error
	Close(ctx context.Context) error
}
