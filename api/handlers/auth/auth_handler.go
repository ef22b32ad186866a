package auth

import (
	"errors"
	"net/http"
	"strings"

	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/directory"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves login, logout and session introspection. Sessions
// travel in an HTTP-only cookie so the request gate can see them.
type AuthHandler struct {
	sessions     *auth.SessionService
	directory    directory.Service
	hasher       auth.PasswordHasher
	cookieName   string
	cookieMaxAge int
	cookieSecure bool
}

// NewAuthHandler creates the handler.
func NewAuthHandler(
	sessions *auth.SessionService,
	dir directory.Service,
	hasher auth.PasswordHasher,
	cookieName string,
	cookieMaxAge int,
	cookieSecure bool,
) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		directory:    dir,
		hasher:       hasher,
		cookieName:   cookieName,
		cookieMaxAge: cookieMaxAge,
		cookieSecure: cookieSecure,
	}
}

// LoginRequest carries the credential pair. CallbackURL is echoed back
// so the client lands on the page that triggered the login redirect.
type LoginRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	CallbackURL string `json:"callbackUrl"`
}

// UserInfo is the public projection of a user.
type UserInfo struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// Login verifies credentials, issues a session cookie and reports the
// redirect target. Unknown email and wrong password are reported the
// same way so the endpoint does not leak which addresses exist.
func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, "/")
}

func (h *AuthHandler) login(c *gin.Context, defaultRedirect string) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "invalid login request")
		return
	}

	user, err := h.directory.GetUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			common.ResponseError(c, common.CodeInvalidCredentials, "invalid email or password")
			return
		}
		common.ResponseServerError(c, "login failed")
		return
	}

	if !h.hasher.Compare(user.PasswordHash, req.Password) {
		common.ResponseError(c, common.CodeInvalidCredentials, "invalid email or password")
		return
	}

	token, err := h.sessions.Issue(user.ID, user.Email, user.IsSuperAdmin)
	if err != nil {
		common.ResponseServerError(c, "failed to create session")
		return
	}

	_ = h.directory.TouchLastActive(c.Request.Context(), user.ID)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, h.cookieMaxAge, "/", "", h.cookieSecure, true)

	redirect := sanitizeCallback(req.CallbackURL, defaultRedirect)
	common.ResponseSuccess(c, gin.H{
		"user":     toUserInfo(user),
		"redirect": redirect,
	})
}

// TenantLogin is Login scoped to an organization's login page. The org
// must exist (404 otherwise) and a missing callback defaults to the
// tenant root instead of the platform root.
func (h *AuthHandler) TenantLogin(c *gin.Context) {
	slug := c.Param("slug")
	org, err := h.directory.GetOrganizationBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			common.ResponseError(c, common.CodeTenantNotFound, "organization not found")
			return
		}
		common.ResponseServerError(c, "login failed")
		return
	}

	h.login(c, "/"+org.Slug)
}

// Logout revokes the session and clears the cookie. Always succeeds so
// a stale cookie never traps a client in a failed-logout loop.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err == nil && token != "" {
		_ = h.sessions.Revoke(c.Request.Context(), token)
	}

	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
	common.ResponseSuccess(c, gin.H{"loggedOut": true})
}

// Me returns the identity behind the current session cookie.
func (h *AuthHandler) Me(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil || token == "" {
		common.ResponseUnauthorized(c, "no active session")
		return
	}

	claims, err := h.sessions.Verify(c.Request.Context(), token)
	if err != nil {
		common.ResponseUnauthorized(c, "session expired or invalid")
		return
	}

	user, err := h.directory.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		common.ResponseUnauthorized(c, "session user no longer exists")
		return
	}

	common.ResponseSuccess(c, toUserInfo(user))
}

func toUserInfo(u *directory.User) UserInfo {
	return UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		IsSuperAdmin: u.IsSuperAdmin,
	}
}

// sanitizeCallback only accepts same-site absolute paths, anything else
// becomes the fallback. Prevents open redirects via callbackUrl.
func sanitizeCallback(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return fallback
	}
	return raw
}
