package org

import (
	"errors"

	"backend/internal/common"
	"backend/internal/directory"
	"backend/internal/orgcontext"
	"backend/internal/routing"

	"github.com/gin-gonic/gin"
)

// OrgHandler serves the public host resolution and branding endpoints
// consumed by the web client on every page load.
type OrgHandler struct {
	resolver  *routing.Resolver
	directory directory.Service
	branding  *orgcontext.Registry
}

// NewOrgHandler creates the handler.
func NewOrgHandler(resolver *routing.Resolver, dir directory.Service, branding *orgcontext.Registry) *OrgHandler {
	return &OrgHandler{resolver: resolver, directory: dir, branding: branding}
}

// Resolve maps a hostname to an organization slug.
//
//	GET /api/org/resolve?host=learn.acme.edu
//
// The response carries orgSlug null rather than an error status when
// nothing matches, so callers can always fall back to platform mode.
func (h *OrgHandler) Resolve(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		host = c.Request.Host
	}

	res := h.resolver.ResolveLenient(c.Request.Context(), host)
	if !res.OK {
		common.ResponseSuccess(c, gin.H{"orgSlug": nil})
		return
	}
	common.ResponseSuccess(c, gin.H{"orgSlug": res.Slug})
}

// GetBranding returns the branding view of one organization. Branding
// is read on every page load, so responses come from the per-slug
// cache; a stale snapshot is served when the directory is unreachable.
//
//	GET /api/org/:slug/branding
func (h *OrgHandler) GetBranding(c *gin.Context) {
	slug := c.Param("slug")

	branding, err := h.branding.Branding(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			common.ResponseError(c, common.CodeTenantNotFound, "organization not found")
			return
		}
		common.ResponseServerError(c, "failed to load branding")
		return
	}

	common.ResponseSuccess(c, branding)
}

// UpdateBranding applies a partial branding update. Fields absent from
// the body stay untouched, explicit nulls clear the value. Requires
// org admin, enforced by route middleware.
//
//	PATCH /api/org/:slug/branding
func (h *OrgHandler) UpdateBranding(c *gin.Context) {
	slug := c.Param("slug")

	var patch directory.BrandingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		common.ResponseBadRequest(c, "invalid branding payload")
		return
	}
	if err := patch.Validate(); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	branding, err := h.directory.UpdateBranding(c.Request.Context(), slug, patch)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrNotFound):
			common.ResponseError(c, common.CodeTenantNotFound, "organization not found")
		case errors.Is(err, directory.ErrInvalidInput):
			common.ResponseBadRequest(c, err.Error())
		default:
			common.ResponseServerError(c, "failed to update branding")
		}
		return
	}

	h.branding.Invalidate(slug)
	common.ResponseSuccess(c, branding)
}
