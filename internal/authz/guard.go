package authz

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/auth"
	"backend/internal/directory"
	"backend/internal/metrics"

	"go.uber.org/zap"
)

var (
	// ErrUnauthenticated means no verifiable session: the caller should
	// redirect to the appropriate login page.
	ErrUnauthenticated = errors.New("authz: unauthenticated")
	// ErrForbidden means the caller is authenticated but lacks the
	// required role, status, or super-admin flag. It is never silently
	// downgraded to a different role's view.
	ErrForbidden = errors.New("authz: forbidden")
	// ErrTenantNotFound means the slug resolves to no organization.
	ErrTenantNotFound = errors.New("authz: tenant not found")
)

// Identity is the verified caller.
type Identity struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// Grant is the successful result of an organization-scoped check.
type Grant struct {
	Identity   Identity
	Membership *directory.Membership
	Org        *directory.Organization
}

// Directory is the subset of the tenant directory the guard needs.
type Directory interface {
	GetOrganizationBySlug(ctx context.Context, slug string) (*directory.Organization, error)
	GetUserByID(ctx context.Context, id string) (*directory.User, error)
	FindMembership(ctx context.Context, orgID, userID string) (*directory.Membership, error)
}

// Sessions verifies session tokens.
type Sessions interface {
	Verify(ctx context.Context, token string) (*auth.SessionClaims, error)
}

// Guard performs the fine-grained access checks invoked by every
// tenant-scoped handler. All checks are read-only and fail closed.
type Guard struct {
	dir      Directory
	sessions Sessions
	log      *zap.Logger
}

// NewGuard constructs the guard.
func NewGuard(dir Directory, sessions Sessions, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{dir: dir, sessions: sessions, log: log}
}

// resolveIdentity verifies the token and loads the caller's user record.
// The super-admin flag is read from the database, not the token, so a
// revoked privilege takes effect without waiting for token expiry.
func (g *Guard) resolveIdentity(ctx context.Context, token string) (Identity, error) {
	claims, err := g.sessions.Verify(ctx, token)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}

	user, err := g.dir.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, fmt.Errorf("load identity: %w", err)
	}

	return Identity{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		IsSuperAdmin: user.IsSuperAdmin,
	}, nil
}

// RequireOrgRole authorizes the caller against an organization: the
// session must verify, the slug must resolve, the membership must exist
// with status active, and its role must be in the allowed set.
func (g *Guard) RequireOrgRole(ctx context.Context, token, orgSlug string, allowed ...directory.Role) (*Grant, error) {
	identity, err := g.resolveIdentity(ctx, token)
	if err != nil {
		metrics.AuthzChecksTotal.WithLabelValues("unauthenticated").Inc()
		return nil, err
	}

	org, err := g.dir.GetOrganizationBySlug(ctx, orgSlug)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			metrics.AuthzChecksTotal.WithLabelValues("tenant_not_found").Inc()
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("resolve organization: %w", err)
	}

	membership, err := g.dir.FindMembership(ctx, org.ID, identity.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			metrics.AuthzChecksTotal.WithLabelValues("forbidden").Inc()
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("lookup membership: %w", err)
	}
	if membership.Status != directory.StatusActive {
		metrics.AuthzChecksTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrForbidden
	}

	roleAllowed := false
	for _, r := range allowed {
		if membership.Role == r {
			roleAllowed = true
			break
		}
	}
	if !roleAllowed {
		metrics.AuthzChecksTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrForbidden
	}

	metrics.AuthzChecksTotal.WithLabelValues("granted").Inc()
	return &Grant{Identity: identity, Membership: membership, Org: org}, nil
}

// RequireOrgAdminOrSuperAdmin grants org admins and, as the platform
// escape hatch, global super-admins. Used by branding mutation.
func (g *Guard) RequireOrgAdminOrSuperAdmin(ctx context.Context, token, orgSlug string) (*Grant, error) {
	grant, err := g.RequireOrgRole(ctx, token, orgSlug, directory.RoleAdmin)
	if err == nil || errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrTenantNotFound) {
		return grant, err
	}

	// Not an org admin; a super-admin may still proceed.
	identity, idErr := g.resolveIdentity(ctx, token)
	if idErr != nil {
		return nil, idErr
	}
	if !identity.IsSuperAdmin {
		return nil, err
	}

	org, orgErr := g.dir.GetOrganizationBySlug(ctx, orgSlug)
	if orgErr != nil {
		if errors.Is(orgErr, directory.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("resolve organization: %w", orgErr)
	}
	metrics.AuthzChecksTotal.WithLabelValues("granted").Inc()
	return &Grant{Identity: identity, Org: org}, nil
}

// RequireSuperAdmin ignores organization scoping entirely and checks
// only the global super-admin flag.
func (g *Guard) RequireSuperAdmin(ctx context.Context, token string) (*Identity, error) {
	identity, err := g.resolveIdentity(ctx, token)
	if err != nil {
		metrics.AuthzChecksTotal.WithLabelValues("unauthenticated").Inc()
		return nil, err
	}
	if !identity.IsSuperAdmin {
		metrics.AuthzChecksTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrForbidden
	}
	metrics.AuthzChecksTotal.WithLabelValues("granted").Inc()
	return &identity, nil
}
