package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend/internal/directory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDirectory struct {
	domains map[string]string                    // hostname -> slug
	orgs    map[string]*directory.Organization   // slug -> org
	err     error
}

func (f *fakeDirectory) ResolveDomain(_ context.Context, host string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if slug, ok := f.domains[host]; ok {
		return slug, nil
	}
	return "", directory.ErrNotFound
}

func (f *fakeDirectory) GetOrganizationBySlug(_ context.Context, slug string) (*directory.Organization, error) {
	if f.err != nil {
		return nil, f.err
	}
	if org, ok := f.orgs[slug]; ok {
		return org, nil
	}
	return nil, directory.ErrNotFound
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		domains: map[string]string{
			"learn.acme.edu": "acme",
		},
		orgs: map[string]*directory.Organization{
			"acme":     {ID: "org-1", Slug: "acme"},
			"umbrella": {ID: "org-2", Slug: "umbrella"},
		},
	}
}

func newTestResolver(dir Directory) *Resolver {
	return NewResolver(dir, []string{"localhost", "127.0.0.1"}, 100*time.Millisecond, zap.NewNop())
}

func TestResolveCustomDomain(t *testing.T) {
	r := newTestResolver(newFakeDirectory())

	res, err := r.Resolve(context.Background(), "learn.acme.edu")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Slug: "acme", Source: SourceDomain, OK: true}, res)

	// Host headers arrive with ports and mixed case.
	res, err = r.Resolve(context.Background(), "Learn.ACME.edu:443")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Slug: "acme", Source: SourceDomain, OK: true}, res)
}

func TestResolveSubdomainFallback(t *testing.T) {
	r := newTestResolver(newFakeDirectory())

	res, err := r.Resolve(context.Background(), "umbrella.lms.example.com")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Slug: "umbrella", Source: SourceSubdomain, OK: true}, res)

	// Custom domain wins over the subdomain convention.
	dir := newFakeDirectory()
	dir.domains["umbrella.lms.example.com"] = "acme"
	r = newTestResolver(dir)
	res, err = r.Resolve(context.Background(), "umbrella.lms.example.com")
	require.NoError(t, err)
	assert.Equal(t, "acme", res.Slug)
	assert.Equal(t, SourceDomain, res.Source)
}

func TestResolveUnscoped(t *testing.T) {
	r := newTestResolver(newFakeDirectory())

	for _, host := range []string{
		"",
		"localhost:3000",
		"127.0.0.1",
		"www.lms.example.com",        // www is never a tenant
		"ghost.lms.example.com",      // unknown subdomain label
		"nodots",                     // no label to try
	} {
		res, err := r.Resolve(context.Background(), host)
		require.NoError(t, err, host)
		assert.Equal(t, Unscoped, res, host)
	}
}

func TestResolveLookupFailure(t *testing.T) {
	dir := newFakeDirectory()
	dir.err = errors.New("connection refused")
	r := newTestResolver(dir)

	_, err := r.Resolve(context.Background(), "learn.acme.edu")
	require.Error(t, err)

	// Lenient mode collapses the failure to unscoped.
	res := r.ResolveLenient(context.Background(), "learn.acme.edu")
	assert.Equal(t, Unscoped, res)
}
