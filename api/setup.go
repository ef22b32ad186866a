package api

import (
	"fmt"
	"net/http"
	"time"

	authHandlers "backend/api/handlers/auth"
	dashboardHandlers "backend/api/handlers/dashboard"
	orgHandlers "backend/api/handlers/org"
	superadminHandlers "backend/api/handlers/superadmin"
	"backend/internal/audit"
	"backend/internal/auth"
	"backend/internal/authz"
	"backend/internal/config"
	"backend/internal/directory"
	"backend/internal/infra/queue"
	"backend/internal/logger"
	middlewarepkg "backend/internal/middleware"
	"backend/internal/orgcontext"
	"backend/internal/routing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// AppContainer wires the long-lived application services.
type AppContainer struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     redis.UniversalClient
	Directory directory.Service
	Sessions  *auth.SessionService
	Hasher    auth.PasswordHasher
	Resolver  *routing.Resolver
	Gate      *routing.Gate
	Guard     *authz.Guard
	Queue     queue.Client
	Audit     *audit.Recorder
	Branding  *orgcontext.Registry
	LoginRate *middlewarepkg.RateLimiter
}

// NewAppContainer builds all services from configuration and the
// shared infrastructure handles.
func NewAppContainer(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *AppContainer {
	log := logger.Get()

	dir := directory.NewService(db)
	sessions := auth.NewSessionService(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL(), redisClient)
	resolver := routing.NewResolver(dir, cfg.Platform.ReservedHosts, cfg.Platform.ResolveTimeoutDuration(), log)
	gate := routing.NewGate(resolver, routing.GateConfig{CookieName: cfg.Session.CookieName}, log)
	guard := authz.NewGuard(dir, sessions, log)

	return &AppContainer{
		Config:    cfg,
		DB:        db,
		Redis:     redisClient,
		Directory: dir,
		Sessions:  sessions,
		Hasher:    auth.NewBcryptHasher(),
		Resolver:  resolver,
		Gate:      gate,
		Guard:     guard,
		Queue:     queue.NewClient(cfg.Redis),
		Audit:     audit.NewRecorder(db, log),
		Branding:  orgcontext.NewRegistry(dir, directory.Branding{Name: cfg.Platform.DefaultBrand}, orgcontext.DefaultTTL, log),
		LoginRate: middlewarepkg.NewRateLimiter(middlewarepkg.DefaultLoginRateLimiterConfig()),
	}
}

// Close releases container-owned resources.
func (c *AppContainer) Close() {
	if c.Queue != nil {
		_ = c.Queue.Close()
	}
	if c.LoginRate != nil {
		c.LoginRate.Stop()
	}
}

// Handlers groups the HTTP handlers by surface.
type Handlers struct {
	Auth       *authHandlers.AuthHandler
	Org        *orgHandlers.OrgHandler
	SuperAdmin *superadminHandlers.SuperAdminHandler
	Dashboard  *dashboardHandlers.DashboardHandler
}

// NewHandlers builds the handler set over the container.
func NewHandlers(c *AppContainer) *Handlers {
	cookieMaxAge := int(c.Config.Session.TTL() / time.Second)

	return &Handlers{
		Auth: authHandlers.NewAuthHandler(
			c.Sessions, c.Directory, c.Hasher,
			c.Config.Session.CookieName, cookieMaxAge, c.Config.Session.CookieSecure,
		),
		Org: orgHandlers.NewOrgHandler(c.Resolver, c.Directory, c.Branding),
		SuperAdmin: superadminHandlers.NewSuperAdminHandler(
			c.Directory, c.Hasher, c.Queue, c.Audit, c.Config.Platform.DefaultBrand, logger.Get(),
		),
		Dashboard: dashboardHandlers.NewDashboardHandler(c.Directory),
	}
}

// NewRouter assembles the gin engine with the full middleware chain.
func NewRouter(container *AppContainer, handlers *Handlers) *gin.Engine {
	gin.SetMode(container.Config.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())

	RegisterRoutes(router, container, handlers)
	return router
}

// BuildHTTPServer wraps the router in the tenant request gate. The gate
// runs before gin so host-based path rewrites happen ahead of route
// matching.
func BuildHTTPServer(container *AppContainer, router *gin.Engine) *http.Server {
	cfg := container.Config.Server

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      container.Gate.Middleware(router),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
}
