package api

import (
	"backend/internal/authz"
	"backend/internal/directory"
	"backend/internal/metrics"
	middlewarepkg "backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts every API route group.
func RegisterRoutes(router *gin.Engine, container *AppContainer, handlers *Handlers) {
	router.Use(metrics.PrometheusMiddleware())

	router.GET("/healthz", HealthCheck())
	router.GET("/readyz", ReadinessCheck(container.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cookieName := container.Config.Session.CookieName

	registerAuthRoutes(router, container, handlers)
	registerOrgRoutes(router, container, handlers, cookieName)
	registerSuperAdminRoutes(router, container, handlers, cookieName)
	registerDashboardRoutes(router, container, handlers, cookieName)
}

// registerAuthRoutes mounts the public session endpoints. Login is
// rate limited per client IP.
func registerAuthRoutes(router *gin.Engine, c *AppContainer, h *Handlers) {
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", middlewarepkg.RateLimitMiddleware(c.LoginRate), h.Auth.Login)
		authGroup.POST("/:slug/login", middlewarepkg.RateLimitMiddleware(c.LoginRate), h.Auth.TenantLogin)
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.GET("/me", h.Auth.Me)
	}
}

// registerOrgRoutes mounts host resolution and branding. Resolution and
// branding reads are public, the web client needs them before login.
func registerOrgRoutes(router *gin.Engine, c *AppContainer, h *Handlers, cookieName string) {
	orgGroup := router.Group("/api/org")
	{
		orgGroup.GET("/resolve", h.Org.Resolve)
		orgGroup.GET("/:slug/branding", h.Org.GetBranding)
		orgGroup.PATCH("/:slug/branding", authz.RequireOrgAdmin(c.Guard, cookieName), h.Org.UpdateBranding)
	}
}

// registerSuperAdminRoutes mounts the platform management surface.
func registerSuperAdminRoutes(router *gin.Engine, c *AppContainer, h *Handlers, cookieName string) {
	group := router.Group("/api/superadmin")
	group.Use(authz.RequireSuperAdmin(c.Guard, cookieName))
	{
		group.POST("/orgs", h.SuperAdmin.CreateOrg)
		group.GET("/orgs", h.SuperAdmin.ListOrgs)
		group.DELETE("/orgs/:id", h.SuperAdmin.DeleteOrg)

		group.POST("/orgs/:id/domains", h.SuperAdmin.AddDomain)
		group.DELETE("/orgs/:id/domains/:domain", h.SuperAdmin.RemoveDomain)

		group.GET("/orgs/:id/members", h.SuperAdmin.ListMembers)
		group.PUT("/orgs/:id/members", h.SuperAdmin.UpsertMember)
		group.DELETE("/orgs/:id/members/:userId", h.SuperAdmin.SuspendMember)

		group.POST("/users", h.SuperAdmin.CreateUser)

		group.GET("/audit", h.SuperAdmin.ListAudit)
	}
}

// registerDashboardRoutes mounts the role-scoped tenant endpoints. Each
// group carries its own role requirement; the admin group also accepts
// nothing less than the admin role.
func registerDashboardRoutes(router *gin.Engine, c *AppContainer, h *Handlers, cookieName string) {
	tenant := router.Group("/api/:slug")

	adminGroup := tenant.Group("/admin")
	adminGroup.Use(authz.RequireRole(c.Guard, cookieName, directory.RoleAdmin))
	{
		adminGroup.GET("/overview", h.Dashboard.AdminOverview)
		adminGroup.GET("/profile", h.Dashboard.Profile)
	}

	teacherGroup := tenant.Group("/teacher")
	teacherGroup.Use(authz.RequireRole(c.Guard, cookieName, directory.RoleTeacher, directory.RoleAdmin))
	{
		teacherGroup.GET("/courses", h.Dashboard.TeacherCourses)
		teacherGroup.GET("/profile", h.Dashboard.Profile)
	}

	studentGroup := tenant.Group("/student")
	studentGroup.Use(authz.RequireRole(c.Guard, cookieName, directory.RoleStudent, directory.RoleTeacher, directory.RoleAdmin))
	{
		studentGroup.GET("/courses", h.Dashboard.StudentCourses)
		studentGroup.GET("/profile", h.Dashboard.Profile)
	}
}
