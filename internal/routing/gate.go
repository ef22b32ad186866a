package routing

import (
	"net/http"
	"net/url"
	"strings"

	"backend/internal/metrics"

	"go.uber.org/zap"
)

// Bare role segments the gate owns. A first path segment outside this
// set is treated as an explicit tenant slug.
var bareSegments = map[string]struct{}{
	"admin": {}, "teacher": {}, "student": {}, "superadmin": {}, "login": {},
}

// Prefixes the gate never touches.
var exemptPrefixes = []string{
	"/api/", "/static/", "/assets/",
}

var exemptExact = map[string]struct{}{
	"/api": {}, "/healthz": {}, "/readyz": {}, "/metrics": {}, "/favicon.ico": {},
}

// GateConfig carries the request gate's settings.
type GateConfig struct {
	// CookieName is the session cookie whose presence is checked at
	// this layer. Full verification happens downstream in the guard.
	CookieName string
}

// Gate is the tenant routing layer in front of the application router.
// It decides, per request, whether the path already carries a tenant
// slug, needs one injected from host resolution, or is exempt, and
// redirects unauthenticated tenant-scoped page requests to that
// tenant's login page. It is best-effort: any internal failure lets the
// request through unscoped rather than blocking traffic.
type Gate struct {
	resolver *Resolver
	cfg      GateConfig
	log      *zap.Logger
}

// NewGate constructs the gate middleware.
func NewGate(resolver *Resolver, cfg GateConfig, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "lms_session"
	}
	return &Gate{resolver: resolver, cfg: cfg, log: log}
}

// Middleware wraps the application handler with the gate's decision
// tree.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if isExempt(path) {
			next.ServeHTTP(w, r)
			return
		}

		// The platform login page and the superadmin console stay
		// untouched; they are never tenant-scoped, whatever host the
		// request arrived on. Tenant login pages live at /{slug}/login.
		if path == "/login" || path == "/superadmin" || strings.HasPrefix(path, "/superadmin/") {
			metrics.GateDecisionsTotal.WithLabelValues("passthrough").Inc()
			next.ServeHTTP(w, r)
			return
		}

		first, rest := splitFirstSegment(path)
		if first == "" {
			metrics.GateDecisionsTotal.WithLabelValues("unscoped").Inc()
			next.ServeHTTP(w, r)
			return
		}

		if _, bare := bareSegments[first]; !bare {
			// Explicit tenant slug already embedded in the path.
			g.serveTenantScoped(w, r, next, first, rest)
			return
		}

		// Bare role path: the tenant must come from the host header.
		res := g.resolveHost(r)
		if !res.OK {
			metrics.GateDecisionsTotal.WithLabelValues("unscoped").Inc()
			next.ServeHTTP(w, r)
			return
		}

		// Internal rewrite only; the client-observed URL is unchanged.
		// The rewritten request is tenant-scoped, so the same cookie
		// check applies as for an explicit slug path.
		r.URL.Path = "/" + res.Slug + path
		r.URL.RawPath = ""
		metrics.GateDecisionsTotal.WithLabelValues("rewrite").Inc()
		g.serveTenantScoped(w, r, next, res.Slug, path)
	})
}

func (g *Gate) serveTenantScoped(w http.ResponseWriter, r *http.Request, next http.Handler, slug, rest string) {
	// The tenant login page itself is reachable without a session.
	if rest == "/login" || rest == "/login/" {
		metrics.GateDecisionsTotal.WithLabelValues("passthrough").Inc()
		next.ServeHTTP(w, r)
		return
	}

	// Coarse check only: cookie presence. Signature and membership are
	// verified downstream by the authorization guard.
	if _, err := r.Cookie(g.cfg.CookieName); err != nil {
		target := "/" + slug + "/login?callbackUrl=" + url.QueryEscape(r.URL.Path)
		metrics.GateDecisionsTotal.WithLabelValues("redirect_login").Inc()
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		return
	}

	metrics.GateDecisionsTotal.WithLabelValues("passthrough").Inc()
	next.ServeHTTP(w, r)
}

func (g *Gate) resolveHost(r *http.Request) Resolution {
	res, err := g.resolver.Resolve(r.Context(), r.Host)
	if err != nil {
		// Fail open: a directory outage degrades to unscoped routing.
		metrics.HostResolutionsTotal.WithLabelValues("error").Inc()
		g.log.Warn("request gate host resolution failed",
			zap.String("host", r.Host),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		return Unscoped
	}
	if res.OK {
		metrics.HostResolutionsTotal.WithLabelValues(res.Source).Inc()
	} else {
		metrics.HostResolutionsTotal.WithLabelValues("none").Inc()
	}
	return res
}

func isExempt(path string) bool {
	if _, ok := exemptExact[path]; ok {
		return true
	}
	for _, p := range exemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// splitFirstSegment returns the first path segment and the remainder
// (leading slash included, "" when nothing follows).
func splitFirstSegment(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return "", ""
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i], trimmed[i:]
	}
	return trimmed, ""
}
