// Package orgcontext keeps a per-scope snapshot of organization
// branding so request handling and rendering never block on repeated
// directory lookups. The snapshot is refreshed asynchronously and a
// failed refresh keeps serving the last good value.
package orgcontext

import (
	"context"
	"sync"

	"backend/internal/directory"

	"go.uber.org/zap"
)

// BrandingSource fetches the branding for a slug.
type BrandingSource interface {
	Branding(ctx context.Context, slug string) (*directory.Branding, error)
}

// Snapshot is the immutable view handed to consumers.
type Snapshot struct {
	Slug     string
	Branding *directory.Branding
	Loading  bool
}

// Provider holds the branding for the currently scoped organization.
// A zero slug means the unscoped platform context and yields default
// branding. Concurrent SetSlug and Refetch calls resolve last-write-wins:
// a fetch result is discarded when a newer fetch has started since.
type Provider struct {
	source   BrandingSource
	fallback directory.Branding
	log      *zap.Logger

	mu      sync.Mutex
	slug    string
	current *directory.Branding
	loading bool
	gen     uint64
}

// NewProvider constructs a provider serving defaultBrand until a slug
// is set and fetched.
func NewProvider(source BrandingSource, defaultBrand directory.Branding, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{source: source, fallback: defaultBrand, log: log}
}

// Current returns the latest snapshot. It never blocks on a fetch.
func (p *Provider) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	branding := p.current
	if branding == nil {
		b := p.fallback
		branding = &b
	}
	return Snapshot{Slug: p.slug, Branding: branding, Loading: p.loading}
}

// Populated reports whether a fetched snapshot is available, as opposed
// to the fallback branding served before the first successful fetch.
func (p *Provider) Populated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// SetSlug switches the scoped organization and fetches its branding.
// Setting the same slug again is a no-op; an empty slug clears the
// scope and restores default branding immediately. The returned error
// reports the fetch outcome; the snapshot itself keeps the last good
// value on failure.
func (p *Provider) SetSlug(ctx context.Context, slug string) error {
	p.mu.Lock()
	if slug == p.slug {
		p.mu.Unlock()
		return nil
	}
	p.slug = slug
	if slug == "" {
		p.current = nil
		p.loading = false
		p.gen++
		p.mu.Unlock()
		return nil
	}
	// Scope changed, the old snapshot must not leak across tenants.
	p.current = nil
	p.loading = true
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	return p.fetch(ctx, slug, gen)
}

// Refetch reloads branding for the current slug, keeping the existing
// snapshot visible while the fetch runs and on fetch failure.
func (p *Provider) Refetch(ctx context.Context) error {
	p.mu.Lock()
	slug := p.slug
	if slug == "" {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	return p.fetch(ctx, slug, gen)
}

func (p *Provider) fetch(ctx context.Context, slug string, gen uint64) error {
	branding, err := p.source.Branding(ctx, slug)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		// A newer SetSlug or Refetch superseded this fetch.
		return nil
	}
	p.loading = false
	if err != nil {
		p.log.Warn("branding refresh failed, keeping previous snapshot",
			zap.String("slug", slug), zap.Error(err))
		return err
	}
	p.current = branding
	return nil
}
