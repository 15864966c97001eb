package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/semtag/internal/store"
)

// DefaultTTL is how long a loaded taxonomy is served before reloading.
const DefaultTTL = 5 * time.Minute

// Loader reads the active taxonomy.
type Loader interface {
	ActiveTaxonomy(ctx context.Context) ([]store.TaxonomyEntry, error)
}

// Set is an immutable snapshot of the active taxonomy.
type Set struct {
	byCode   map[string]store.TaxonomyEntry
	ordered  []store.TaxonomyEntry
	LoadedAt time.Time
}

// NewSet indexes entries. Inactive and blank entries are skipped.
func NewSet(entries []store.TaxonomyEntry, loadedAt time.Time) *Set {
	s := &Set{
		byCode:   make(map[string]store.TaxonomyEntry, len(entries)),
		LoadedAt: loadedAt,
	}
	for _, e := range entries {
		e.Code = Normalize(e.Code)
		if e.Code == "" || !e.Active {
			continue
		}
		if e.Depth == 0 {
			e.Depth = Depth(e.Code)
		}
		if e.Parent == "" {
			e.Parent = Parent(e.Code)
		}
		s.byCode[e.Code] = e
	}
	s.ordered = make([]store.TaxonomyEntry, 0, len(s.byCode))
	for _, e := range s.byCode {
		s.ordered = append(s.ordered, e)
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].Code < s.ordered[j].Code })
	return s
}

// Len returns the number of active codes.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byCode)
}

// Entries returns the active entries sorted by code.
func (s *Set) Entries() []store.TaxonomyEntry {
	if s == nil {
		return nil
	}
	return append([]store.TaxonomyEntry(nil), s.ordered...)
}

// IsValid reports whether code is an active taxonomy code.
func (s *Set) IsValid(code string) bool {
	if s == nil || code == "" {
		return false
	}
	_, ok := s.byCode[code]
	return ok
}

// Get returns the entry for code.
func (s *Set) Get(code string) (store.TaxonomyEntry, bool) {
	if s == nil {
		return store.TaxonomyEntry{}, false
	}
	e, ok := s.byCode[code]
	return e, ok
}

// Resolve returns code when it is valid, otherwise its most specific valid
// ancestor. It returns false when no prefix of code is valid, in which case
// the caller keeps the entry's original code.
func (s *Set) Resolve(code string) (string, bool) {
	for c := Normalize(code); c != ""; c = Parent(c) {
		if s.IsValid(c) {
			return c, true
		}
	}
	return "", false
}

// Render writes the hierarchy as indented lines for a prompt. A non-empty
// scope restricts the output to that subtree.
func (s *Set) Render(scope string) string {
	var b strings.Builder
	for _, e := range s.Entries() {
		if !Within(e.Code, scope) {
			continue
		}
		b.WriteString(strings.Repeat("  ", max(e.Depth-1, 0)))
		b.WriteString(e.Code)
		b.WriteString("  ")
		b.WriteString(e.Name)
		if e.Description != "" {
			b.WriteString(": ")
			b.WriteString(e.Description)
		}
		if len(e.Examples) > 0 {
			n := min(len(e.Examples), 3)
			fmt.Fprintf(&b, " (e.g. %s)", strings.Join(e.Examples[:n], ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	Loader Loader
	TTL    time.Duration
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Cache serves the active taxonomy, reloading it once the TTL has elapsed.
// A failed reload keeps serving the last good set.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	set     *Set
	expires time.Time
}

// NewCache creates a cache. Nothing is loaded until the first call.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		loader: cfg.Loader,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// LoadActive returns the cached set, reloading it when expired.
func (c *Cache) LoadActive(ctx context.Context) (*Set, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.set != nil && now.Before(c.expires) {
		return c.set, nil
	}

	entries, err := c.loader.ActiveTaxonomy(ctx)
	if err != nil {
		if c.set != nil {
			c.logger.Warn("taxonomy reload failed, serving cached set",
				"error", err,
				"loaded_at", c.set.LoadedAt,
				"codes", c.set.Len())
			return c.set, nil
		}
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}

	c.set = NewSet(entries, now)
	c.expires = now.Add(c.ttl)
	c.logger.Debug("taxonomy loaded", "codes", c.set.Len())
	return c.set, nil
}

// Invalidate forces the next LoadActive to reload. The current set is kept
// as the fallback.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.expires = time.Time{}
	c.mu.Unlock()
}

// Snapshot returns the current set without loading. It is nil before the
// first successful load.
func (c *Cache) Snapshot() *Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// IsValid checks code against the current snapshot.
func (c *Cache) IsValid(code string) bool {
	return c.Snapshot().IsValid(code)
}

// Get looks code up in the current snapshot.
func (c *Cache) Get(code string) (store.TaxonomyEntry, bool) {
	return c.Snapshot().Get(code)
}

// Resolve applies ancestor fallback against the current snapshot.
func (c *Cache) Resolve(code string) (string, bool) {
	return c.Snapshot().Resolve(code)
}
