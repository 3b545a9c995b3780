package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/shiurfinder/shiurfinder/internal/auth"
	"github.com/shiurfinder/shiurfinder/internal/authz"
	"github.com/shiurfinder/shiurfinder/internal/backup"
	"github.com/shiurfinder/shiurfinder/internal/catalog"
	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/feed"
	"github.com/shiurfinder/shiurfinder/internal/httputil"
	"github.com/shiurfinder/shiurfinder/internal/importer"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/metrics"
	"github.com/shiurfinder/shiurfinder/internal/store"
	"github.com/shiurfinder/shiurfinder/internal/user"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *auth.Handler
	User     *user.Handler
	Catalog  *catalog.Handler
	Importer *importer.Handler
	Backup   *backup.Handler
	Feed     *feed.Handler

	AuthMiddleware  *auth.Middleware
	AuthzMiddleware *authz.Middleware

	Store store.Store
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)               // Security headers on all responses
	r.Use(middleware.Recoverer)          // Recover from panics
	r.Use(middleware.RequestID)          // Add request ID
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(logging.RequestLogger(logger)) // Structured logging with request context
	r.Use(metrics.Middleware)            // Request counts and latency
	if cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimit, time.Minute))
	}
	r.Use(middleware.Compress(5)) // Compress responses

	if cfg.Server.MetricsAddr == "" {
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireAuth)
			r.Use(h.AuthzMiddleware.AuthorizeRequest)
			r.Handle("/metrics", promhttp.Handler())
		})
	}

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth(h.Store))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Auth.Signup)
			r.Post("/login", h.Auth.Login)
			r.Post("/reset-password", h.Auth.RequestPasswordReset)
			r.Post("/reset-password/confirm", h.Auth.ConfirmPasswordReset)
		})

		// Public catalog and feed export
		r.Get("/shiurim", h.Catalog.ListShiurim)
		r.Get("/shiurim/{id}", h.Catalog.GetShiur)
		r.Get("/rabbis", h.Catalog.ListRabbis)
		r.Post("/export-favorites", h.Feed.ExportFavorites)

		// Authenticated routes; the policy decides which roles reach each one
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireAuth)
			r.Use(h.AuthzMiddleware.AuthorizeRequest)

			r.Route("/user", h.User.Routes)
			r.Get("/rss/{username}", h.Feed.UserRSS)

			r.Post("/shiurim", h.Catalog.CreateShiur)
			r.Put("/shiurim/{id}", h.Catalog.UpdateShiur)
			r.Delete("/shiurim/{id}", h.Catalog.DeleteShiur)
			r.Post("/rabbis", h.Catalog.CreateRabbi)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/upload-shiurim", h.Importer.Upload)
				r.Post("/backup-mongodb", h.Backup.Backup)
			})
		})
	})

	return r
}

// NewMetricsRouter serves /metrics alone, for the listener at METRICS_ADDR.
func NewMetricsRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Store     string    `json:"store"`
}

// handleHealth reports liveness and the store in use
// @Summary      Health check
// @Description  Check if the API is running and which store backs it
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Router       /api/health [get]
func handleHealth(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, HealthResponse{
			Status:    "Server is running",
			Timestamp: time.Now().UTC(),
			Store:     st.Name(),
		}, http.StatusOK)
	}
}
