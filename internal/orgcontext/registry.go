package orgcontext

import (
	"context"
	"sync"
	"time"

	"backend/internal/directory"

	"go.uber.org/zap"
)

// DefaultTTL is how long a cached branding snapshot stays fresh before
// the next read triggers a refetch.
const DefaultTTL = 30 * time.Second

type entry struct {
	provider *Provider
	fetched  time.Time
}

// Registry caches branding per organization slug. Reads are served from
// the per-slug snapshot and refreshed when older than the TTL; when the
// directory is unavailable a stale snapshot keeps being served.
type Registry struct {
	source   BrandingSource
	fallback directory.Branding
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry constructs a registry over source with the given TTL.
// A non-positive ttl falls back to DefaultTTL.
func NewRegistry(source BrandingSource, defaultBrand directory.Branding, ttl time.Duration, log *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		source:   source,
		fallback: defaultBrand,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Branding returns the branding for slug, from cache when fresh. When a
// refresh fails but an earlier snapshot exists, the stale snapshot is
// returned; the fetch error surfaces only when nothing was ever cached,
// so unknown slugs still report directory.ErrNotFound.
func (r *Registry) Branding(ctx context.Context, slug string) (*directory.Branding, error) {
	r.mu.Lock()
	e, ok := r.entries[slug]
	if !ok {
		e = &entry{provider: NewProvider(r.source, r.fallback, r.log)}
		r.entries[slug] = e
	}
	stale := e.fetched.IsZero() || r.now().Sub(e.fetched) > r.ttl
	r.mu.Unlock()

	var err error
	if !ok {
		err = e.provider.SetSlug(ctx, slug)
	} else if stale {
		err = e.provider.Refetch(ctx)
	}
	if err == nil && stale {
		r.mu.Lock()
		e.fetched = r.now()
		r.mu.Unlock()
	}

	if e.provider.Populated() {
		return e.provider.Current().Branding, nil
	}
	return nil, err
}

// Invalidate drops the cached entry for slug so the next read fetches
// fresh branding. Called after a branding update.
func (r *Registry) Invalidate(slug string) {
	r.mu.Lock()
	delete(r.entries, slug)
	r.mu.Unlock()
}
