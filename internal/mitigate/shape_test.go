package mitigate

import "testing"

func TestShapeMaskDate(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"15/03/1987", "1x/0a/19xx"},
		{"4-12-2021", "4x/1a/20xx"},
		{"born 15/03/1987 in Oslo", "born 1x/0a/19xx in Oslo"},
	}
	for _, tc := range cases {
		got := shapeMask("DATE", tc.raw)
		if got != tc.want {
			t.Fatalf("shapeMask(DATE, %q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestShapeMaskPhoneKeepsEdgesAndSeparators(t *testing.T) {
	got := shapeMask("PHONE", "555-123-4567")
	want := "55x-xxx-xx67"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	got = shapeMask("PHONE", "(02) 9999 8888")
	want = "(02) xxxx xx88"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestShapeMaskPhoneTooFewDigits(t *testing.T) {
	if got := shapeMask("PHONE", "911"); got != "XXX-XXXX" {
		t.Fatalf("got %q", got)
	}
}

func TestShapeMaskSSN(t *testing.T) {
	if got := shapeMask("SSN", "123-45-6789"); got != "XX-XX-XXXX" {
		t.Fatalf("got %q", got)
	}
}

func TestShapeMaskNameLike(t *testing.T) {
	got := shapeMask("PERSON", "Bob Smith")
	want := "BxxB 3 SxxH 5"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := shapeMask("PERSON", "J"); got != "Jx" {
		t.Fatalf("single letter: got %q", got)
	}
}

func TestShapeMaskDetectsPhoneByDigits(t *testing.T) {
	// No category hint: ten digits read as a phone number.
	got := shapeMask("UNKNOWN", "5551234567")
	want := "55xxxxxx67"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReplaceShapedPrefersPool(t *testing.T) {
	s := NewSynthesizer(1, nil)
	pooled := s.Replace("EMAIL", "bob@co.com")
	if got := s.ReplaceShaped("EMAIL", "bob@co.com"); got != pooled {
		t.Fatalf("pooled category: got %q, want %q", got, pooled)
	}
	if got := s.ReplaceShaped("BADGE_ID", "AB 1234 99"); got == "[BADGE_ID]" {
		t.Fatalf("unpooled category should shape-mask, got placeholder")
	}
}
