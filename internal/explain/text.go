// Package explain writes the human-readable companions to sanitized
// outputs: span reports for text and annotated overlays for images. These
// artifacts show the sanitized result only, never the raw sensitive values.
package explain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/veilguard-ai/veilguard/internal/entity"
)

// WriteSpanReport renders a plain-text summary of what was mitigated where,
// addressed in the sanitized document's coordinates. Returns the path it
// wrote.
func WriteSpanReport(path, sanitized string, ents []entity.AuthoritativeEntity, actions []entity.MitigationAction) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsExist(err) {
		return "", fmt.Errorf("create dirs: %w", err)
	}

	categories := make(map[string]string, len(ents))
	for _, e := range ents {
		categories[e.ID] = e.Category
	}

	var applied []entity.MitigationAction
	for _, a := range actions {
		if a.Applied && a.OutputSpan != nil {
			applied = append(applied, a)
		}
	}
	if len(applied) == 0 {
		if err := os.WriteFile(path, []byte("No sensitive spans detected.\n"), 0o644); err != nil {
			return "", fmt.Errorf("write report: %w", err)
		}
		return path, nil
	}

	sort.Slice(applied, func(i, j int) bool { return applied[i].OutputSpan.Start < applied[j].OutputSpan.Start })

	var b strings.Builder
	b.WriteString("Detected sensitive spans:\n\n")
	for _, a := range applied {
		span := *a.OutputSpan
		snippet := ""
		if span.Start >= 0 && span.End <= len(sanitized) {
			snippet = sanitized[span.Start:span.End]
		}
		fmt.Fprintf(&b, "- %s | mitigation=%s | span=(%d, %d) | text=%q\n",
			categories[a.EntityID], a.Strategy, span.Start, span.End, snippet)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
