package dashboard

import (
	"backend/internal/authz"
	"backend/internal/common"
	"backend/internal/directory"

	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the role-scoped dashboard data endpoints.
// Authorization happens in route middleware; by the time a handler
// runs, the grant in the context is already role-checked.
type DashboardHandler struct {
	directory directory.Service
}

// NewDashboardHandler creates the handler.
func NewDashboardHandler(dir directory.Service) *DashboardHandler {
	return &DashboardHandler{directory: dir}
}

// AdminOverview returns org-wide counts for the admin dashboard.
//
//	GET /api/:slug/admin/overview
func (h *DashboardHandler) AdminOverview(c *gin.Context) {
	grant, ok := authz.GrantFrom(c)
	if !ok {
		common.ResponseForbidden(c, "missing authorization grant")
		return
	}

	stats, err := h.directory.OrgStats(c.Request.Context(), grant.Org.ID)
	if err != nil {
		common.ResponseServerError(c, "failed to load organization stats")
		return
	}

	common.ResponseSuccess(c, gin.H{
		"organization": grant.Org,
		"stats":        stats,
	})
}

// TeacherCourses lists the courses the caller teaches in this org.
//
//	GET /api/:slug/teacher/courses
func (h *DashboardHandler) TeacherCourses(c *gin.Context) {
	grant, ok := authz.GrantFrom(c)
	if !ok {
		common.ResponseForbidden(c, "missing authorization grant")
		return
	}

	courses, err := h.directory.CoursesByTeacher(c.Request.Context(), grant.Org.ID, grant.Identity.UserID)
	if err != nil {
		common.ResponseServerError(c, "failed to load courses")
		return
	}
	common.ResponseSuccess(c, gin.H{"courses": courses})
}

// StudentCourses lists the caller's enrolled courses in this org.
//
//	GET /api/:slug/student/courses
func (h *DashboardHandler) StudentCourses(c *gin.Context) {
	grant, ok := authz.GrantFrom(c)
	if !ok {
		common.ResponseForbidden(c, "missing authorization grant")
		return
	}

	courses, err := h.directory.CoursesForStudent(c.Request.Context(), grant.Org.ID, grant.Identity.UserID)
	if err != nil {
		common.ResponseServerError(c, "failed to load courses")
		return
	}
	common.ResponseSuccess(c, gin.H{"courses": courses})
}

// Profile returns the caller's identity and membership in this org.
// Mounted under every role group.
//
//	GET /api/:slug/student/profile (and admin/teacher variants)
func (h *DashboardHandler) Profile(c *gin.Context) {
	grant, ok := authz.GrantFrom(c)
	if !ok {
		common.ResponseForbidden(c, "missing authorization grant")
		return
	}

	common.ResponseSuccess(c, gin.H{
		"user":       grant.Identity,
		"membership": grant.Membership,
	})
}
