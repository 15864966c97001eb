package taxonomy

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/semtag/internal/store"
)

type fakeLoader struct {
	entries []store.TaxonomyEntry
	err     error
	calls   atomic.Int32
}

func (f *fakeLoader) ActiveTaxonomy(ctx context.Context) ([]store.TaxonomyEntry, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func testEntries() []store.TaxonomyEntry {
	return []store.TaxonomyEntry{
		{Code: "X", Name: "Root", Active: true},
		{Code: "X.Y", Name: "Child", Description: "a child", Examples: []string{"a", "b", "c", "d"}, Active: true},
		{Code: "X.Y.W", Name: "Grandchild", Active: true},
		{Code: "Q", Name: "Other", Active: true},
		{Code: "Q.R", Name: "Retired", Active: false},
	}
}

func TestDepthAndLevels(t *testing.T) {
	tests := []struct {
		code   string
		depth  int
		levels [4]string
	}{
		{"", 0, [4]string{}},
		{"A", 1, [4]string{"A"}},
		{"A.B", 2, [4]string{"A", "A.B"}},
		{"A.B.C.D", 4, [4]string{"A", "A.B", "A.B.C", "A.B.C.D"}},
		{"A.B.C.D.E", 5, [4]string{"A", "A.B", "A.B.C", "A.B.C.D"}},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := Depth(tt.code); got != tt.depth {
				t.Errorf("Depth(%q) = %d, want %d", tt.code, got, tt.depth)
			}
			if got := Levels(tt.code); got != tt.levels {
				t.Errorf("Levels(%q) = %v, want %v", tt.code, got, tt.levels)
			}
		})
	}
}

func TestIsRefinement(t *testing.T) {
	tests := []struct {
		old, new string
		want     bool
	}{
		{"X", "X.Y", true},
		{"", "X.Y", true},
		{"X", "X", false},
		{"X", "Q", false},
		{"X.Y", "X.Y", false},
		{"X.Y", "X.Y.W", true},
	}
	for _, tt := range tests {
		if got := IsRefinement(tt.old, tt.new); got != tt.want {
			t.Errorf("IsRefinement(%q, %q) = %v, want %v", tt.old, tt.new, got, tt.want)
		}
	}
}

func TestSet_Resolve(t *testing.T) {
	set := NewSet(testEntries(), time.Now())

	t.Run("valid code is unchanged", func(t *testing.T) {
		for _, e := range set.Entries() {
			got, ok := set.Resolve(e.Code)
			if !ok || got != e.Code {
				t.Errorf("Resolve(%q) = %q, %v", e.Code, got, ok)
			}
		}
	})

	t.Run("invalid code falls back to nearest ancestor", func(t *testing.T) {
		got, ok := set.Resolve("X.Y.Z")
		if !ok || got != "X.Y" {
			t.Errorf("Resolve(X.Y.Z) = %q, %v, want X.Y", got, ok)
		}
		got, ok = set.Resolve("X.Z.Z.Z")
		if !ok || got != "X" {
			t.Errorf("Resolve(X.Z.Z.Z) = %q, %v, want X", got, ok)
		}
	})

	t.Run("inactive codes are not valid", func(t *testing.T) {
		if set.IsValid("Q.R") {
			t.Error("inactive code should be invalid")
		}
		got, _ := set.Resolve("Q.R")
		if got != "Q" {
			t.Errorf("Resolve(Q.R) = %q, want Q", got)
		}
	})

	t.Run("no valid prefix", func(t *testing.T) {
		if got, ok := set.Resolve("Z.Z"); ok {
			t.Errorf("Resolve(Z.Z) = %q, want no match", got)
		}
	})

	t.Run("resolved codes are always valid", func(t *testing.T) {
		for _, code := range []string{"X.Y.Z", " X.Y. ", "Q.R.S", "X..Y", "nonsense"} {
			if got, ok := set.Resolve(code); ok && !set.IsValid(got) {
				t.Errorf("Resolve(%q) returned invalid %q", code, got)
			}
		}
	})
}

func TestSet_Render(t *testing.T) {
	set := NewSet(testEntries(), time.Now())

	out := set.Render("")
	if !strings.Contains(out, "X.Y  Child: a child (e.g. a, b, c)") {
		t.Errorf("missing child line:\n%s", out)
	}
	if strings.Contains(out, ", d") {
		t.Errorf("examples should be capped at three:\n%s", out)
	}
	if !strings.Contains(out, "\n    X.Y.W  Grandchild") {
		t.Errorf("expected indentation by depth:\n%s", out)
	}

	scoped := set.Render("X.Y")
	if strings.Contains(scoped, "Q  Other") || strings.Contains(scoped, "X  Root") {
		t.Errorf("scope should restrict to subtree:\n%s", scoped)
	}
}

func TestCache_TTL(t *testing.T) {
	loader := &fakeLoader{entries: testEntries()}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCache(CacheConfig{
		Loader: loader,
		Now:    func() time.Time { return now },
	})
	ctx := context.Background()

	if _, err := cache.LoadActive(ctx); err != nil {
		t.Fatalf("LoadActive() error = %v", err)
	}
	now = now.Add(4 * time.Minute)
	if _, err := cache.LoadActive(ctx); err != nil {
		t.Fatalf("LoadActive() error = %v", err)
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader calls within TTL = %d, want 1", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := cache.LoadActive(ctx); err != nil {
		t.Fatalf("LoadActive() error = %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Errorf("loader calls after TTL = %d, want 2", got)
	}

	cache.Invalidate()
	if _, err := cache.LoadActive(ctx); err != nil {
		t.Fatalf("LoadActive() error = %v", err)
	}
	if got := loader.calls.Load(); got != 3 {
		t.Errorf("loader calls after Invalidate = %d, want 3", got)
	}
}

func TestCache_ServesLastGoodOnFailure(t *testing.T) {
	loader := &fakeLoader{entries: testEntries()}
	now := time.Now()
	cache := NewCache(CacheConfig{
		Loader: loader,
		TTL:    time.Minute,
		Now:    func() time.Time { return now },
	})
	ctx := context.Background()

	first, err := cache.LoadActive(ctx)
	if err != nil {
		t.Fatalf("LoadActive() error = %v", err)
	}

	loader.err = errors.New("db down")
	now = now.Add(2 * time.Minute)
	got, err := cache.LoadActive(ctx)
	if err != nil {
		t.Fatalf("LoadActive() should serve cached set, got error %v", err)
	}
	if got != first {
		t.Error("expected the last good set")
	}
	if !cache.IsValid("X.Y") {
		t.Error("cached snapshot should still validate codes")
	}
}

func TestCache_FailureWithoutCache(t *testing.T) {
	cache := NewCache(CacheConfig{Loader: &fakeLoader{err: errors.New("db down")}})
	if _, err := cache.LoadActive(context.Background()); err == nil {
		t.Fatal("expected error with nothing cached")
	}
	if cache.IsValid("X") {
		t.Error("empty cache should validate nothing")
	}
	if _, ok := cache.Resolve("X.Y"); ok {
		t.Error("empty cache should resolve nothing")
	}
}
