package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestAudioReadsTranscriptDirectly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "call.txt")
	if err := os.WriteFile(path, []byte("hello 555-0100"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Audio{Log: zap.NewNop()}.ToText(path)
	if err != nil {
		t.Fatalf("ToText: %v", err)
	}
	if got != "hello 555-0100" {
		t.Fatalf("got %q", got)
	}
}

func TestAudioFindsCompanionTranscript(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "call.txt"), []byte("transcript body"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Audio{Log: zap.NewNop()}.ToText(filepath.Join(dir, "call.wav"))
	if err != nil {
		t.Fatalf("ToText: %v", err)
	}
	if got != "transcript body" {
		t.Fatalf("got %q", got)
	}
}

func TestAudioMissingTranscriptIsNotAnError(t *testing.T) {
	got, err := Audio{Log: zap.NewNop()}.ToText(filepath.Join(t.TempDir(), "nothing.wav"))
	if err != nil {
		t.Fatalf("ToText: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty transcript", got)
	}
}

func TestVideoFramesFromDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.png", "notes.txt", "c.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	frames, err := Video{Log: zap.NewNop()}.Frames(dir)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if filepath.Base(frames[0]) != "a.png" {
		t.Fatalf("frames not name-ordered: %v", frames)
	}
}

func TestVideoSiblingFrameDirAndCap(t *testing.T) {
	dir := t.TempDir()
	frameDir := filepath.Join(dir, "clip_frames")
	if err := os.Mkdir(frameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 8; i++ {
		name := filepath.Join(frameDir, string(rune('a'+i))+".png")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	videoPath := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(videoPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	frames, err := Video{MaxFrames: 3, Log: zap.NewNop()}.Frames(videoPath)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want the configured cap of 3", len(frames))
	}
}

func TestVideoMissingFrameDirIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(videoPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	frames, err := Video{Log: zap.NewNop()}.Frames(videoPath)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if frames != nil {
		t.Fatalf("got %v, want no frames", frames)
	}
}
