package authz

import (
	"errors"
	"net/url"

	"backend/internal/common"
	"backend/internal/directory"

	"github.com/gin-gonic/gin"
)

const (
	ctxGrantKey    = "authz_grant"
	ctxIdentityKey = "authz_identity"
)

// CookieToken extracts the session token from the request cookie.
// Empty string means no session.
func CookieToken(c *gin.Context, cookieName string) string {
	token, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return token
}

// RequireRole builds a gin middleware guarding tenant-scoped routes.
// The organization slug is taken from the :slug path parameter. On
// failure the middleware aborts with the matching status; it never
// falls through to the handler with a partial grant.
func RequireRole(guard *Guard, cookieName string, allowed ...directory.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		token := CookieToken(c, cookieName)

		grant, err := guard.RequireOrgRole(c.Request.Context(), token, slug, allowed...)
		if err != nil {
			abortAuthz(c, slug, err)
			return
		}

		c.Set(ctxGrantKey, grant)
		c.Next()
	}
}

// RequireOrgAdmin guards branding mutation: org admins plus global
// super-admins.
func RequireOrgAdmin(guard *Guard, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		token := CookieToken(c, cookieName)

		grant, err := guard.RequireOrgAdminOrSuperAdmin(c.Request.Context(), token, slug)
		if err != nil {
			abortAuthz(c, slug, err)
			return
		}

		c.Set(ctxGrantKey, grant)
		c.Next()
	}
}

// RequireSuperAdmin guards the platform-level surface.
func RequireSuperAdmin(guard *Guard, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := CookieToken(c, cookieName)

		identity, err := guard.RequireSuperAdmin(c.Request.Context(), token)
		if err != nil {
			abortAuthz(c, "", err)
			return
		}

		c.Set(ctxIdentityKey, identity)
		c.Next()
	}
}

// GrantFrom returns the grant stored by RequireRole or RequireOrgAdmin.
func GrantFrom(c *gin.Context) (*Grant, bool) {
	v, ok := c.Get(ctxGrantKey)
	if !ok {
		return nil, false
	}
	grant, ok := v.(*Grant)
	return grant, ok
}

// IdentityFrom returns the identity stored by RequireSuperAdmin.
func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok
}

func abortAuthz(c *gin.Context, slug string, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		// The JSON body carries the login URL so API clients can
		// redirect the same way the request gate does for pages.
		loginURL := "/login"
		if slug != "" {
			loginURL = "/" + slug + "/login"
		}
		loginURL += "?callbackUrl=" + url.QueryEscape(c.Request.URL.Path)
		c.AbortWithStatusJSON(401, common.APIResponse{
			Success: false,
			Message: "authentication required",
			Code:    common.CodeUnauthorized,
			Data:    gin.H{"loginUrl": loginURL},
		})
	case errors.Is(err, ErrTenantNotFound):
		common.AbortWithError(c, common.CodeTenantNotFound, "organization not found")
	case errors.Is(err, ErrForbidden):
		common.AbortWithError(c, common.CodeForbidden, "insufficient permissions")
	default:
		common.AbortWithError(c, common.CodeInternalError, "authorization check failed")
	}
}
