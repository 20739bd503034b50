package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"codedrop/internal/api"
	"codedrop/internal/auth"
	"codedrop/internal/metrics"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	if s.config.Env == "dev" || s.config.Env == "development" {
		r.Use(middleware.NoCache)
	}

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Token from header or cookie, verified once for every route
	r.Use(auth.Verifier(s.authService.GetAuth()))

	r.NotFound(s.handleError404)
	r.MethodNotAllowed(s.handleError405)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/health", s.healthHandler)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())

		// Stored objects by public key
		r.Get("/f/*", s.uploadHandler.HandleServeObject)

		r.Post("/api/auth/register", s.userHandler.HandleRegister)
		r.Post("/api/auth/login", s.userHandler.HandleLogin)
		r.Post("/api/auth/logout", s.userHandler.HandleLogout)
	})

	// Anonymous sharing, rate limited per client address
	r.Group(func(r chi.Router) {
		if s.config.AnonymousRateLimit > 0 {
			r.Use(httprate.Limit(
				s.config.AnonymousRateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					api.WriteError(w, http.StatusTooManyRequests, "Too many requests")
				}),
			))
		}

		r.Get("/api/anonymous-code", s.uploadHandler.HandleNewCode)
		r.Get("/api/anonymous-download", s.uploadHandler.HandleAnonymousDownload)
		r.Post("/api/anonymous-upload", s.uploadHandler.HandleAnonymousUpload)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Get("/api/auth/me", s.userHandler.HandleMe)

		r.Route("/api/uploads", func(r chi.Router) {
			r.Get("/", s.uploadHandler.HandleListUploads)
			r.Post("/", s.uploadHandler.HandleCreateUpload)
			r.Delete("/{id}", s.uploadHandler.HandleDeleteUpload)
		})

		r.Get("/api/dashboard/stats", s.dashboardHandler.HandleGetDashboardStats)
	})

	return r
}
