package routing

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend/internal/directory"

	"go.uber.org/zap"
)

// Resolution is the explicit result of mapping a host header to a
// tenant. OK=false means no tenant is resolvable from the host; callers
// that also receive an error are expected to collapse it to an unscoped
// Resolution, making the fail-open policy a visible branch. Source
// records which rule matched.
type Resolution struct {
	Slug   string
	Source string // SourceDomain or SourceSubdomain when OK
	OK     bool
}

// Resolution sources.
const (
	SourceDomain    = "domain"
	SourceSubdomain = "subdomain"
)

// Unscoped is the empty resolution.
var Unscoped = Resolution{}

// Directory is the subset of the tenant directory the resolver needs.
type Directory interface {
	ResolveDomain(ctx context.Context, host string) (string, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*directory.Organization, error)
}

// Resolver maps an inbound host header to an organization slug:
// exact custom-domain match first, then the subdomain convention.
type Resolver struct {
	dir      Directory
	reserved map[string]struct{}
	timeout  time.Duration
	log      *zap.Logger
}

// NewResolver builds a Resolver. reservedHosts (e.g. localhost) never
// resolve; timeout bounds each directory lookup.
func NewResolver(dir Directory, reservedHosts []string, timeout time.Duration, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	reserved := make(map[string]struct{}, len(reservedHosts))
	for _, h := range reservedHosts {
		reserved[directory.NormalizeHost(h)] = struct{}{}
	}
	return &Resolver{dir: dir, reserved: reserved, timeout: timeout, log: log}
}

// Resolve maps a raw host header to a tenant slug. A returned error
// means the directory lookup itself failed; the host is then not
// resolvable, but the caller decides how that degrades. The request
// gate falls back to unscoped routing, the resolve API reports null.
func (r *Resolver) Resolve(ctx context.Context, host string) (Resolution, error) {
	h := directory.NormalizeHost(host)
	if h == "" {
		return Unscoped, nil
	}
	if _, ok := r.reserved[h]; ok {
		return Unscoped, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Exact custom-domain match wins.
	slug, err := r.dir.ResolveDomain(ctx, h)
	if err == nil {
		return Resolution{Slug: slug, Source: SourceDomain, OK: true}, nil
	}
	if !errors.Is(err, directory.ErrNotFound) {
		return Unscoped, err
	}

	// Subdomain convention: first label, unless it is "www".
	label, rest, found := strings.Cut(h, ".")
	if !found || label == "www" || label == "" || rest == "" {
		return Unscoped, nil
	}
	org, err := r.dir.GetOrganizationBySlug(ctx, label)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Unscoped, nil
		}
		return Unscoped, err
	}
	return Resolution{Slug: org.Slug, Source: SourceSubdomain, OK: true}, nil
}

// ResolveLenient collapses lookup failures to the unscoped resolution,
// logging them server-side. Resolution failures must never crash
// request handling.
func (r *Resolver) ResolveLenient(ctx context.Context, host string) Resolution {
	res, err := r.Resolve(ctx, host)
	if err != nil {
		r.log.Warn("host resolution failed, falling back to unscoped",
			zap.String("host", host),
			zap.Error(err),
		)
		return Unscoped
	}
	return res
}
