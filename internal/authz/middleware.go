package authz

import (
	"net/http"

	"github.com/shiurfinder/shiurfinder/internal/auth"
	"github.com/shiurfinder/shiurfinder/internal/httputil"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/metrics"
)

// Middleware enforces the policy for requests that already passed RequireAuth.
type Middleware struct {
	enforcer *Enforcer
}

func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// AuthorizeRequest checks the caller's role against the request path and
// method. Authenticated callers without permission get 403.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		role := string(claims.Role)
		allowed, err := m.enforcer.Enforce(role, r.URL.Path, MethodToAction(r.Method))
		if err != nil {
			metrics.AuthzDecisionsTotal.WithLabelValues(role, "error").Inc()
			httputil.RespondInternal(w, r, "authorization check failed", err)
			return
		}

		if !allowed {
			metrics.AuthzDecisionsTotal.WithLabelValues(role, "denied").Inc()
			logger.Warn("forbidden", "role", role, "path", r.URL.Path, "method", r.Method)
			httputil.RespondErrorWithCode(w, "forbidden: insufficient permissions", httputil.CodeForbidden, http.StatusForbidden)
			return
		}

		metrics.AuthzDecisionsTotal.WithLabelValues(role, "allowed").Inc()
		next.ServeHTTP(w, r)
	})
}
