package logging

import "testing"

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "warning", "error", " Info "} {
		log, err := New(level)
		if err != nil {
			t.Fatalf("New(%q): %v", level, err)
		}
		if log == nil {
			t.Fatalf("New(%q) returned nil logger", level)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("verbose"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
