package entity

import "testing"

func TestSpanOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Span
		want bool
	}{
		{"disjoint", Span{0, 5}, Span{5, 10}, false},
		{"touching interior", Span{0, 6}, Span{5, 10}, true},
		{"contained", Span{2, 4}, Span{0, 10}, true},
		{"identical", Span{3, 7}, Span{3, 7}, true},
	}
	for _, tc := range cases {
		if got := tc.a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
		if got := tc.b.Overlaps(tc.a); got != tc.want {
			t.Errorf("%s (reversed): Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRectIoU(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	if got := a.IoU(Rect{X: 20, Y: 20, W: 5, H: 5}); got != 0 {
		t.Fatalf("disjoint IoU = %v, want 0", got)
	}
	if got := a.IoU(a); got != 1 {
		t.Fatalf("identical IoU = %v, want 1", got)
	}
	// 5x10 shared over 10x10 + 10x10 - 50 union.
	got := a.IoU(Rect{X: 5, Y: 0, W: 10, H: 10})
	want := 50.0 / 150.0
	if got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("half overlap IoU = %v, want %v", got, want)
	}
}

func TestRectIntersectDisjoint(t *testing.T) {
	inter := Rect{X: 0, Y: 0, W: 3, H: 3}.Intersect(Rect{X: 3, Y: 0, W: 3, H: 3})
	if inter.Valid() {
		t.Fatalf("edge-touching rects should not intersect, got %+v", inter)
	}
}

func TestDetectedEntityValidate(t *testing.T) {
	valid := DetectedEntity{
		ID:         NewID(),
		Modality:   ModalityText,
		Category:   "EMAIL",
		Confidence: 0.95,
		Span:       &Span{Start: 3, End: 10},
		Source:     "regex",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid entity rejected: %v", err)
	}

	bad := valid
	bad.Span = &Span{Start: 10, End: 10}
	if err := bad.Validate(); err == nil {
		t.Fatal("empty span accepted")
	}

	bad = valid
	bad.Span = nil
	if err := bad.Validate(); err == nil {
		t.Fatal("entity without locator accepted")
	}

	bad = valid
	bad.Confidence = 1.5
	if err := bad.Validate(); err == nil {
		t.Fatal("confidence above 1 accepted")
	}

	bad = valid
	bad.Span = nil
	bad.Rect = &Rect{X: 1, Y: 1, W: 0, H: 5}
	if err := bad.Validate(); err == nil {
		t.Fatal("zero-width rect accepted")
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"mask", "synthetic_replace", "blur", "inpaint", "mosaic"} {
		if _, err := ParseStrategy(s); err != nil {
			t.Errorf("ParseStrategy(%q): %v", s, err)
		}
	}
	if _, err := ParseStrategy("pixelate"); err == nil {
		t.Fatal("unknown strategy accepted")
	}
}
