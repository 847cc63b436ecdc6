// Package adapter funnels audio and video inputs into the text and image
// pipelines. No transcription or frame decoding happens here: audio rides on
// a companion transcript file, video on a directory of pre-extracted frames.
package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Audio resolves an audio input to transcript text.
type Audio struct {
	// TranscriptExt is the companion transcript extension, default ".txt".
	TranscriptExt string
	Log           *zap.Logger
}

// ToText returns the transcript for an audio input. A .txt path is read
// directly; otherwise a sibling file with the transcript extension is used.
// A missing transcript is not an error: the input simply has no text to
// judge, and the caller records that.
func (a Audio) ToText(path string) (string, error) {
	ext := a.TranscriptExt
	if ext == "" {
		ext = ".txt"
	}
	if strings.EqualFold(filepath.Ext(path), ext) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read transcript: %w", err)
		}
		return string(data), nil
	}

	candidate := strings.TrimSuffix(path, filepath.Ext(path)) + ext
	data, err := os.ReadFile(candidate)
	if err != nil {
		if os.IsNotExist(err) {
			a.Log.Warn("no transcript for audio input",
				zap.String("input", filepath.Base(path)))
			return "", nil
		}
		return "", fmt.Errorf("read transcript: %w", err)
	}
	a.Log.Info("using companion transcript",
		zap.String("transcript", filepath.Base(candidate)))
	return string(data), nil
}

// Video resolves a video input to pre-extracted frame images.
type Video struct {
	// MaxFrames caps how many frames are processed, default 5.
	MaxFrames int
	Log       *zap.Logger
}

var frameExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Frames lists frame images for a video input. The input is either a
// directory of frames or a video file with a sibling "<stem>_frames/"
// directory. Frames come back in name order so runs are reproducible.
func (v Video) Frames(path string) ([]string, error) {
	dir := path
	if info, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat video input: %w", err)
	} else if !info.IsDir() {
		dir = strings.TrimSuffix(path, filepath.Ext(path)) + "_frames"
		if _, err := os.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				v.Log.Warn("no frame directory for video input",
					zap.String("input", filepath.Base(path)))
				return nil, nil
			}
			return nil, fmt.Errorf("stat frame dir: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		frames = append(frames, filepath.Join(dir, e.Name()))
	}
	sort.Strings(frames)

	maxFrames := v.MaxFrames
	if maxFrames <= 0 {
		maxFrames = 5
	}
	if len(frames) > maxFrames {
		frames = frames[:maxFrames]
	}
	return frames, nil
}
