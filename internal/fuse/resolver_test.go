package fuse

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/veilguard-ai/veilguard/internal/config"
	"github.com/veilguard-ai/veilguard/internal/entity"
)

func testResolver() *Resolver {
	return NewResolver(ResolverConfig{
		ReplaceMargin:  0.1,
		SourcePriority: config.DefaultSourcePriority,
	})
}

func spanEnt(id string, start, end int, conf float64, source string) entity.DetectedEntity {
	return entity.DetectedEntity{
		ID:         id,
		Modality:   entity.ModalityText,
		Category:   "EMAIL",
		Confidence: conf,
		Span:       &entity.Span{Start: start, End: end},
		Source:     source,
	}
}

func rectEnt(id string, x, y, w, h int, conf float64, source string) entity.DetectedEntity {
	return entity.DetectedEntity{
		ID:         id,
		Modality:   entity.ModalityImage,
		Category:   "FACE",
		Confidence: conf,
		Span:       nil,
		Rect:       &entity.Rect{X: x, Y: y, W: w, H: h},
		Source:     source,
	}
}

func TestResolveEmpty(t *testing.T) {
	if got := testResolver().Resolve(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %d entities", len(got))
	}
}

func TestResolveDisjointAllAccepted(t *testing.T) {
	in := []entity.DetectedEntity{
		spanEnt("a", 10, 20, 0.9, "regex"),
		spanEnt("b", 30, 40, 0.6, "ner"),
		spanEnt("c", 0, 5, 0.7, "ner"),
	}
	got := testResolver().Resolve(in)
	if len(got) != 3 {
		t.Fatalf("got %d entities, want 3", len(got))
	}
	// Output is position-ordered.
	if got[0].ID != "c" || got[1].ID != "a" || got[2].ID != "b" {
		t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
	for _, e := range got {
		if len(e.Absorbed) != 0 {
			t.Fatalf("entity %s absorbed %v, want none", e.ID, e.Absorbed)
		}
	}
}

func TestResolveAbsorbWithinMargin(t *testing.T) {
	in := []entity.DetectedEntity{
		spanEnt("strong", 0, 10, 0.9, "regex"),
		spanEnt("weak", 5, 12, 0.85, "ner"),
	}
	got := testResolver().Resolve(in)
	if len(got) != 1 {
		t.Fatalf("got %d entities, want 1", len(got))
	}
	if got[0].ID != "strong" {
		t.Fatalf("accepted %s, want strong", got[0].ID)
	}
	if !reflect.DeepEqual(got[0].Absorbed, []string{"weak"}) {
		t.Fatalf("absorbed %v, want [weak]", got[0].Absorbed)
	}
}

func TestResolveReplaceBeyondMargin(t *testing.T) {
	in := []entity.DetectedEntity{
		spanEnt("early", 0, 10, 0.5, "ner"),
		spanEnt("late", 5, 12, 0.9, "ner"),
	}
	got := testResolver().Resolve(in)
	if len(got) != 1 {
		t.Fatalf("got %d entities, want 1", len(got))
	}
	if got[0].ID != "late" {
		t.Fatalf("accepted %s, want late", got[0].ID)
	}
	if !reflect.DeepEqual(got[0].Absorbed, []string{"early"}) {
		t.Fatalf("absorbed %v, want [early]", got[0].Absorbed)
	}
}

func TestResolveReplacementCarriesAbsorbedChain(t *testing.T) {
	// b is absorbed into a, then c replaces a; c must keep both ids.
	in := []entity.DetectedEntity{
		spanEnt("a", 0, 10, 0.5, "ner"),
		spanEnt("b", 2, 8, 0.45, "ner"),
		spanEnt("c", 3, 12, 0.95, "ner"),
	}
	got := testResolver().Resolve(in)
	if len(got) != 1 {
		t.Fatalf("got %d entities, want 1", len(got))
	}
	if got[0].ID != "c" {
		t.Fatalf("accepted %s, want c", got[0].ID)
	}
	if !reflect.DeepEqual(got[0].Absorbed, []string{"b", "a"}) {
		t.Fatalf("absorbed %v, want [b a]", got[0].Absorbed)
	}
}

func TestResolveMultiOverlapAlwaysAbsorbs(t *testing.T) {
	// The bridge sorts after both accepted rects and touches each; even
	// with a huge confidence it must not replace or fragment either.
	in := []entity.DetectedEntity{
		rectEnt("top", 20, 0, 10, 20, 0.6, "face"),
		rectEnt("left", 0, 5, 10, 10, 0.6, "face"),
		rectEnt("bridge", 5, 8, 30, 4, 1.0, "face"),
	}
	got := testResolver().Resolve(in)
	if len(got) != 2 {
		t.Fatalf("got %d entities, want 2", len(got))
	}
	for _, e := range got {
		if !reflect.DeepEqual(e.Absorbed, []string{"bridge"}) {
			t.Fatalf("entity %s absorbed %v, want [bridge]", e.ID, e.Absorbed)
		}
	}
}

func TestResolveSourcePriorityBreaksTies(t *testing.T) {
	in := []entity.DetectedEntity{
		spanEnt("fromNER", 0, 10, 0.8, "ner"),
		spanEnt("fromRegex", 0, 10, 0.8, "regex"),
	}
	got := testResolver().Resolve(in)
	if len(got) != 1 {
		t.Fatalf("got %d entities, want 1", len(got))
	}
	if got[0].ID != "fromRegex" {
		t.Fatalf("accepted %s, want fromRegex", got[0].ID)
	}
}

func TestResolveRectIoUThreshold(t *testing.T) {
	a := rectEnt("a", 0, 0, 100, 100, 0.9, "face")
	b := rectEnt("b", 90, 90, 100, 100, 0.8, "face") // IoU ~ 0.005

	strict := NewResolver(ResolverConfig{ReplaceMargin: 0.1, SourcePriority: config.DefaultSourcePriority})
	if got := strict.Resolve([]entity.DetectedEntity{a, b}); len(got) != 1 {
		t.Fatalf("zero threshold: got %d entities, want 1 (any intersection overlaps)", len(got))
	}

	lax := NewResolver(ResolverConfig{ReplaceMargin: 0.1, IoUThreshold: 0.5, SourcePriority: config.DefaultSourcePriority})
	if got := lax.Resolve([]entity.DetectedEntity{a, b}); len(got) != 2 {
		t.Fatalf("0.5 threshold: got %d entities, want 2", len(got))
	}
}

func TestResolveMixedLocatorsNeverOverlap(t *testing.T) {
	// A span and a rect in one pool (shouldn't happen, but must not merge).
	in := []entity.DetectedEntity{
		spanEnt("s", 0, 10, 0.9, "regex"),
		rectEnt("r", 0, 0, 10, 10, 0.9, "face"),
	}
	if got := testResolver().Resolve(in); len(got) != 2 {
		t.Fatalf("got %d entities, want 2", len(got))
	}
}

func genSpanEntities(t *rapid.T) []entity.DetectedEntity {
	n := rapid.IntRange(0, 12).Draw(t, "n")
	ents := make([]entity.DetectedEntity, n)
	for i := range ents {
		start := rapid.IntRange(0, 80).Draw(t, fmt.Sprintf("start%d", i))
		length := rapid.IntRange(1, 20).Draw(t, fmt.Sprintf("len%d", i))
		conf := float64(rapid.IntRange(0, 100).Draw(t, fmt.Sprintf("conf%d", i))) / 100
		src := rapid.SampledFrom([]string{"regex", "ner"}).Draw(t, fmt.Sprintf("src%d", i))
		ents[i] = spanEnt(fmt.Sprintf("e%02d", i), start, start+length, conf, src)
	}
	return ents
}

func TestResolvePropertyNoOverlaps(t *testing.T) {
	r := testResolver()
	rapid.Check(t, func(t *rapid.T) {
		got := r.Resolve(genSpanEntities(t))
		for i := range got {
			for j := i + 1; j < len(got); j++ {
				if got[i].Span.Overlaps(*got[j].Span) {
					t.Fatalf("accepted entities %s and %s overlap", got[i].ID, got[j].ID)
				}
			}
		}
	})
}

func TestResolvePropertyOrderIndependent(t *testing.T) {
	r := testResolver()
	rapid.Check(t, func(t *rapid.T) {
		in := genSpanEntities(t)
		want := r.Resolve(in)

		shuffled := append([]entity.DetectedEntity(nil), in...)
		seed := rapid.Int64().Draw(t, "seed")
		rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := r.Resolve(shuffled)
		if !sameAccepted(want, got) {
			t.Fatalf("resolution depends on input order:\n%v\nvs\n%v", want, got)
		}
	})
}

func TestResolvePropertyIdempotent(t *testing.T) {
	r := testResolver()
	rapid.Check(t, func(t *rapid.T) {
		once := r.Resolve(genSpanEntities(t))
		again := make([]entity.DetectedEntity, len(once))
		for i, e := range once {
			again[i] = e.DetectedEntity
		}
		twice := r.Resolve(again)
		if !sameAccepted(once, twice) {
			t.Fatalf("re-resolving an authoritative set changed it:\n%v\nvs\n%v", once, twice)
		}
	})
}

// sameAccepted compares accepted ids and locators. Absorbed order may differ
// across permutations; the accepted set itself must not.
func sameAccepted(a, b []entity.AuthoritativeEntity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || *a[i].Span != *b[i].Span {
			return false
		}
	}
	return true
}
