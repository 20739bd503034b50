package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"codedrop/internal/api"
	"codedrop/internal/auth"
	"codedrop/internal/config"
	"codedrop/internal/dashboard"
	"codedrop/internal/database"
	"codedrop/internal/storage"
	"codedrop/internal/uploads"
	"codedrop/internal/user"
)

// Server represents the HTTP server and its dependencies
type Server struct {
	config           *config.Config
	db               *database.DB
	authService      auth.Service
	uploadService    uploads.Service
	userHandler      *user.Handler
	uploadHandler    *uploads.Handler
	dashboardHandler *dashboard.Handler
}

// NewServer creates a new server instance
func NewServer(config *config.Config, db *database.DB, provider storage.Provider) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("storage provider is required")
	}

	// Initialize repositories
	userRepo := user.NewRepository(db)
	uploadRepo := uploads.NewPostgresRepository(db)
	dashboardRepo := dashboard.NewRepository(db)

	// Initialize services
	authService := auth.NewService(config.Secret)
	userService := user.NewService(userRepo)
	uploadService := uploads.NewService(uploadRepo, provider, config)
	dashboardService := dashboard.NewService(dashboardRepo, config.StorageQuota)

	return &Server{
		config:           config,
		db:               db,
		authService:      authService,
		uploadService:    uploadService,
		userHandler:      user.NewHandler(userService, authService),
		uploadHandler:    uploads.NewHandler(uploadService, config.UploadMaxSize),
		dashboardHandler: dashboard.NewHandler(dashboardService),
	}, nil
}

// Uploads exposes the upload service so the caller can schedule purges
func (s *Server) Uploads() uploads.Service {
	return s.uploadService
}

// Start builds the HTTP server. Write timeout scales with the upload limit
// so slow clients can still stream a full object.
func (s *Server) Start() (*http.Server, error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       transferTimeout(s.config.UploadMaxSize),
		WriteTimeout:      transferTimeout(s.config.UploadMaxSize),
	}

	log.Info().
		Int("port", s.config.Port).
		Str("env", s.config.Env).
		Dur("transfer_timeout", srv.WriteTimeout).
		Msg("starting server")

	return srv, nil
}

// transferTimeout allows 30s plus one second per MiB of the upload limit
func transferTimeout(maxSize int64) time.Duration {
	return 30*time.Second + time.Duration(maxSize>>20)*time.Second
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	status := http.StatusOK
	if health["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	api.WriteJSON(w, status, health)
}

func (s *Server) handleError404(w http.ResponseWriter, r *http.Request) {
	api.WriteError(w, http.StatusNotFound, "Not found")
}

func (s *Server) handleError405(w http.ResponseWriter, r *http.Request) {
	api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
