package superadmin

import (
	"errors"

	"backend/internal/audit"
	"backend/internal/auth"
	"backend/internal/authz"
	"backend/internal/common"
	"backend/internal/directory"
	"backend/internal/infra/queue"
	"backend/internal/worker/tasks"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SuperAdminHandler serves the platform-level management surface. All
// routes mounting it require the global super-admin flag.
type SuperAdminHandler struct {
	directory    directory.Service
	hasher       auth.PasswordHasher
	queue        queue.Client
	audit        *audit.Recorder
	platformName string
	log          *zap.Logger
}

// NewSuperAdminHandler creates the handler. queue and recorder may be
// nil in tests; invitations and audit entries are then skipped.
func NewSuperAdminHandler(
	dir directory.Service,
	hasher auth.PasswordHasher,
	q queue.Client,
	recorder *audit.Recorder,
	platformName string,
	log *zap.Logger,
) *SuperAdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SuperAdminHandler{
		directory:    dir,
		hasher:       hasher,
		queue:        q,
		audit:        recorder,
		platformName: platformName,
		log:          log,
	}
}

// record writes an audit entry attributed to the authenticated
// super-admin.
func (h *SuperAdminHandler) record(c *gin.Context, action, resource string, details any) {
	identity, ok := authz.IdentityFrom(c)
	if !ok {
		return
	}
	h.audit.Record(c.Request.Context(), audit.Entry{
		ActorID:  identity.UserID,
		Action:   action,
		Resource: resource,
		Details:  details,
	})
}

// CreateOrgRequest is the POST body for a new organization.
type CreateOrgRequest struct {
	Slug string `json:"slug" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// CreateOrg registers a new organization.
//
//	POST /api/superadmin/orgs
func (h *SuperAdminHandler) CreateOrg(c *gin.Context) {
	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid organization payload")
		return
	}

	org, err := h.directory.CreateOrganization(c.Request.Context(), req.Slug, req.Name)
	if err != nil {
		respondDirectoryError(c, err)
		return
	}
	h.record(c, "org.create", "org/"+org.Slug, gin.H{"orgId": org.ID, "name": org.Name})
	common.ResponseCreated(c, org)
}

// ListOrgs pages through all organizations.
//
//	GET /api/superadmin/orgs
func (h *SuperAdminHandler) ListOrgs(c *gin.Context) {
	var page common.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		common.ResponseBadRequest(c, "invalid pagination")
		return
	}
	orgs, total, err := h.directory.ListOrganizations(c.Request.Context(), page.GetPageSize(), page.GetOffset())
	if err != nil {
		common.ResponseServerError(c, "failed to list organizations")
		return
	}
	common.ResponseList(c, orgs, total, &page)
}

// DeleteOrg removes an empty organization and its domains. Refused
// while memberships or courses still reference it.
//
//	DELETE /api/superadmin/orgs/:id
func (h *SuperAdminHandler) DeleteOrg(c *gin.Context) {
	id := c.Param("id")

	if err := h.directory.DeleteOrganization(c.Request.Context(), id); err != nil {
		respondDirectoryError(c, err)
		return
	}
	h.record(c, "org.delete", "org/"+id, nil)
	common.ResponseNoContent(c)
}

// AddDomainRequest is the POST body for a custom domain.
type AddDomainRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// AddDomain attaches a custom domain to an organization.
//
//	POST /api/superadmin/orgs/:id/domains
func (h *SuperAdminHandler) AddDomain(c *gin.Context) {
	var req AddDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid domain payload")
		return
	}

	domain, err := h.directory.AddDomain(c.Request.Context(), c.Param("id"), req.Domain)
	if err != nil {
		respondDirectoryError(c, err)
		return
	}
	h.record(c, "domain.add", "org/"+c.Param("id"), gin.H{"domain": domain.Domain})
	common.ResponseCreated(c, domain)
}

// RemoveDomain detaches a custom domain.
//
//	DELETE /api/superadmin/orgs/:id/domains/:domain
func (h *SuperAdminHandler) RemoveDomain(c *gin.Context) {
	err := h.directory.RemoveDomain(c.Request.Context(), c.Param("id"), c.Param("domain"))
	if err != nil {
		respondDirectoryError(c, err)
		return
	}
	h.record(c, "domain.remove", "org/"+c.Param("id"), gin.H{"domain": c.Param("domain")})
	common.ResponseNoContent(c)
}

// UpsertMemberRequest assigns or updates a user's role in an org.
type UpsertMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"required"`
	Status string `json:"status"`
}

// UpsertMember creates or updates the membership for (org, user).
// A user holds exactly one role per organization, assigning a new role
// replaces the old one. New invited members get an invitation mail.
//
//	PUT /api/superadmin/orgs/:id/members
func (h *SuperAdminHandler) UpsertMember(c *gin.Context) {
	var req UpsertMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid membership payload")
		return
	}

	role, err := directory.ParseRole(req.Role)
	if err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}
	status := directory.StatusActive
	if req.Status != "" {
		status, err = directory.ParseMembershipStatus(req.Status)
		if err != nil {
			common.ResponseBadRequest(c, err.Error())
			return
		}
	}

	orgID := c.Param("id")
	membership, err := h.directory.UpsertMembership(c.Request.Context(), orgID, req.UserID, role, status)
	if err != nil {
		respondDirectoryError(c, err)
		return
	}

	if status == directory.StatusInvited {
		h.enqueueInvite(c, orgID, req.UserID, role)
	}

	h.record(c, "membership.upsert", "org/"+orgID,
		gin.H{"userId": req.UserID, "role": role, "status": status})
	common.ResponseSuccess(c, membership)
}

// SuspendMember soft-deletes a membership by flipping its status. The
// row stays so history and re-activation keep working.
//
//	DELETE /api/superadmin/orgs/:id/members/:userId
func (h *SuperAdminHandler) SuspendMember(c *gin.Context) {
	membership, err := h.directory.SuspendMembership(c.Request.Context(), c.Param("id"), c.Param("userId"))
	if err != nil {
		respondDirectoryError(c, err)
		return
	}
	h.record(c, "membership.suspend", "org/"+c.Param("id"), gin.H{"userId": c.Param("userId")})
	common.ResponseSuccess(c, membership)
}

// ListMembers pages through an organization's memberships.
//
//	GET /api/superadmin/orgs/:id/members
func (h *SuperAdminHandler) ListMembers(c *gin.Context) {
	var page common.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		common.ResponseBadRequest(c, "invalid pagination")
		return
	}
	members, total, err := h.directory.ListMembers(c.Request.Context(), c.Param("id"), page.GetPageSize(), page.GetOffset())
	if err != nil {
		common.ResponseServerError(c, "failed to list members")
		return
	}
	common.ResponseList(c, members, total, &page)
}

// CreateUserRequest registers a platform user.
type CreateUserRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Name         string `json:"name" binding:"required"`
	Password     string `json:"password" binding:"required,min=8"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// CreateUser registers a user account.
//
//	POST /api/superadmin/users
func (h *SuperAdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid user payload")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		common.ResponseServerError(c, "failed to hash password")
		return
	}

	user, err := h.directory.CreateUser(c.Request.Context(), directory.CreateUserParams{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		IsSuperAdmin: req.IsSuperAdmin,
	})
	if err != nil {
		respondDirectoryError(c, err)
		return
	}
	h.record(c, "user.create", "user/"+user.ID,
		gin.H{"email": user.Email, "isSuperAdmin": user.IsSuperAdmin})
	common.ResponseCreated(c, user)
}

// ListAudit pages through the platform audit trail, optionally filtered
// by actor or action.
//
//	GET /api/superadmin/audit
func (h *SuperAdminHandler) ListAudit(c *gin.Context) {
	if h.audit == nil {
		common.ResponseSuccess(c, gin.H{"logs": []any{}})
		return
	}

	var page common.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		common.ResponseBadRequest(c, "invalid pagination")
		return
	}

	filter := audit.Filter{
		ActorID: c.Query("actorId"),
		Action:  c.Query("action"),
	}
	logs, total, err := h.audit.List(c.Request.Context(), filter, page.GetPageSize(), page.GetOffset())
	if err != nil {
		common.ResponseServerError(c, "failed to list audit logs")
		return
	}
	common.ResponseList(c, logs, total, &page)
}

// enqueueInvite fires the invitation mail task. Failure is logged, not
// surfaced, the membership mutation already committed.
func (h *SuperAdminHandler) enqueueInvite(c *gin.Context, orgID, userID string, role directory.Role) {
	if h.queue == nil {
		return
	}

	ctx := c.Request.Context()
	org, err := h.directory.GetOrganizationByID(ctx, orgID)
	if err != nil {
		h.log.Warn("invite mail skipped, org lookup failed", zap.String("org_id", orgID), zap.Error(err))
		return
	}
	user, err := h.directory.GetUserByID(ctx, userID)
	if err != nil {
		h.log.Warn("invite mail skipped, user lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	platformName := h.platformName
	if org.PlatformName != nil && *org.PlatformName != "" {
		platformName = *org.PlatformName
	}

	err = h.queue.EnqueueMembershipInvite(tasks.MembershipInvitePayload{
		Email:        user.Email,
		OrgSlug:      org.Slug,
		OrgName:      org.Name,
		PlatformName: platformName,
		Role:         string(role),
	})
	if err != nil {
		h.log.Warn("invite mail enqueue failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func respondDirectoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		common.ResponseNotFound(c, err.Error())
	case errors.Is(err, directory.ErrConflict):
		common.ResponseError(c, common.CodeConflict, err.Error())
	case errors.Is(err, directory.ErrOrgNotEmpty):
		common.ResponseError(c, common.CodeOrgNotEmpty, err.Error())
	case errors.Is(err, directory.ErrInvalidInput):
		common.ResponseBadRequest(c, err.Error())
	default:
		common.ResponseServerError(c, "directory operation failed")
	}
}
