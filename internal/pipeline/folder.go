package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var extModality = map[string]string{
	".txt":  "text",
	".md":   "text",
	".png":  "image",
	".jpg":  "image",
	".jpeg": "image",
	".gif":  "image",
	".wav":  "audio",
	".mp3":  "audio",
	".flac": "audio",
	".mp4":  "video",
	".mov":  "video",
	".avi":  "video",
}

// ProcessFolder walks a directory tree and runs every recognized file
// through its modality pipeline, bounded by the configured worker count.
// One failed input does not stop the others; every result comes back, in
// path order, with its own terminal state.
func (m *Manager) ProcessFolder(ctx context.Context, dir string) ([]*Result, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := extModality[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	results := make([]*Result, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res, err := m.ProcessFile(gctx, path)
			if err != nil {
				// Already reflected in the result's state; keep going.
				m.log.Warn("folder entry failed",
					zap.String("path", path),
					zap.Error(err))
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ProcessFile dispatches one file to the pipeline matching its extension.
func (m *Manager) ProcessFile(ctx context.Context, path string) (*Result, error) {
	switch extModality[strings.ToLower(filepath.Ext(path))] {
	case "text":
		data, err := os.ReadFile(path)
		if err != nil {
			res := newResult("text", path)
			return m.fail(res, fmt.Errorf("read text input: %w", err))
		}
		return m.ProcessText(ctx, path, string(data))
	case "image":
		return m.ProcessImage(ctx, path)
	case "audio":
		return m.ProcessAudio(ctx, path)
	case "video":
		return m.ProcessVideo(ctx, path)
	default:
		res := newResult("", path)
		return m.fail(res, fmt.Errorf("unsupported input type %q", filepath.Ext(path)))
	}
}
