package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"

	"go.uber.org/zap"

	"github.com/veilguard-ai/veilguard/internal/detect"
	"github.com/veilguard-ai/veilguard/internal/entity"
	"github.com/veilguard-ai/veilguard/internal/explain"
	"github.com/veilguard-ai/veilguard/internal/fuse"
)

// ProcessImage runs one image file through the full image pipeline.
func (m *Manager) ProcessImage(ctx context.Context, path string) (*Result, error) {
	res := newResult(entity.ModalityImage, path)

	img, err := loadImage(path)
	if err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, err)
	}
	return m.processImage(ctx, res, detect.Raster{Path: path, Image: img}, stem(path, res.InputID))
}

func (m *Manager) processImage(ctx context.Context, res *Result, raster detect.Raster, base string) (*Result, error) {
	m.transition(res, StateDetecting)
	m.transition(res, StateFusing)
	ents, failures, err := m.imageFuser.Fuse(ctx, raster)
	res.PartialFailures = append(res.PartialFailures, failures...)
	if err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, err)
	}
	res.Entities = ents

	m.transition(res, StateMitigating)
	sanitized, actions, mitFailures, err := m.imageMit.Apply(raster.Image, ents)
	if err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, fmt.Errorf("mitigate image: %w", err))
	}
	res.Actions = actions
	res.PartialFailures = append(res.PartialFailures, mitFailures...)

	outPath := filepath.Join(m.outputDir, base+".sanitized.png")
	if err := savePNG(outPath, sanitized); err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, err)
	}
	res.ArtifactPaths["sanitized"] = outPath

	if m.explain.ImageOverlays() {
		overlayPath := filepath.Join(m.outputDir, base+".overlay.png")
		if _, err := explain.WriteOverlay(overlayPath, sanitized, ents, actions); err != nil {
			res.PartialFailures = append(res.PartialFailures, entity.PartialFailure{
				Stage:  "explain",
				Detail: err.Error(),
			})
		} else {
			res.ArtifactPaths["overlay"] = overlayPath
		}
	}

	if err := m.record(ctx, res); err != nil {
		return m.fail(res, err)
	}
	return m.finish(res), nil
}

// ProcessVideo funnels a video's pre-extracted frames through the image
// pipeline and emits one aggregate result and audit record. A video with no
// frames degrades; the trail still shows it was seen.
func (m *Manager) ProcessVideo(ctx context.Context, path string) (*Result, error) {
	res := newResult(entity.ModalityVideo, path)
	if !m.videoEnabled {
		return m.fail(res, fuse.ErrNoDetectors)
	}

	frames, err := m.video.Frames(path)
	if err != nil {
		if recErr := m.record(ctx, res); recErr != nil {
			err = errors.Join(err, recErr)
		}
		return m.fail(res, fmt.Errorf("video frames: %w", err))
	}
	if len(frames) == 0 {
		res.PartialFailures = append(res.PartialFailures, entity.PartialFailure{
			Stage:  "frames",
			Detail: "no extracted frames for video input",
		})
		if err := m.record(ctx, res); err != nil {
			return m.fail(res, err)
		}
		return m.finish(res), nil
	}

	base := stem(path, res.InputID)
	for i, framePath := range frames {
		img, err := loadImage(framePath)
		if err != nil {
			res.PartialFailures = append(res.PartialFailures, entity.PartialFailure{
				Stage:  "frames",
				Detail: fmt.Sprintf("frame %s: %v", filepath.Base(framePath), err),
			})
			continue
		}
		raster := detect.Raster{Path: framePath, Image: img}
		frameBase := fmt.Sprintf("%s_frame_%03d", base, i)

		ents, failures, err := m.imageFuser.Fuse(ctx, raster)
		res.PartialFailures = append(res.PartialFailures, failures...)
		if err != nil {
			if recErr := m.record(ctx, res); recErr != nil {
				err = errors.Join(err, recErr)
			}
			return m.fail(res, err)
		}
		sanitized, actions, mitFailures, err := m.imageMit.Apply(img, ents)
		if err != nil {
			if recErr := m.record(ctx, res); recErr != nil {
				err = errors.Join(err, recErr)
			}
			return m.fail(res, fmt.Errorf("mitigate frame %d: %w", i, err))
		}
		res.Entities = append(res.Entities, ents...)
		res.Actions = append(res.Actions, actions...)
		res.PartialFailures = append(res.PartialFailures, mitFailures...)

		outPath := filepath.Join(m.outputDir, frameBase+".sanitized.png")
		if err := savePNG(outPath, sanitized); err != nil {
			if recErr := m.record(ctx, res); recErr != nil {
				err = errors.Join(err, recErr)
			}
			return m.fail(res, err)
		}
		res.ArtifactPaths[fmt.Sprintf("frame_%03d", i)] = outPath
	}
	m.log.Debug("video frames processed",
		zap.String("input", res.InputID),
		zap.Int("frames", len(frames)))

	if err := m.record(ctx, res); err != nil {
		return m.fail(res, err)
	}
	return m.finish(res), nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func savePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
