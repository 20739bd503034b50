package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"codedrop/internal/config"
	"codedrop/internal/database"
	"codedrop/internal/database/migrate"
	"codedrop/internal/logger"
	"codedrop/internal/server"
	"codedrop/internal/storage"
	"codedrop/internal/uploads"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "codedrop-api",
		Short:         "File and text sharing service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run migrations and start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe()
			},
		},
		newMigrateCommand(),
		&cobra.Command{
			Use:   "purge",
			Short: "Delete expired anonymous uploads once and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPurge(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("codedrop %s\n", formatVersionInfo())
			},
		},
	)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(func(_ *config.Config, db *database.DB) error {
					return migrate.RunMigrations(db.DB)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(func(_ *config.Config, db *database.DB) error {
					return migrate.RollbackMigrations(db.DB)
				})
			},
		},
	)
	return cmd
}

// withDatabase loads configuration, initializes logging and opens the
// database for the duration of fn
func withDatabase(fn func(cfg *config.Config, db *database.DB) error) error {
	// Log to the console until the configuration is known
	logger.Init(os.Getenv("APP_ENV"), "")

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger.Init(cfg.Env, cfg.LogFile)

	db, err := database.NewFromEnv()
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}()

	return fn(cfg, db)
}

func runPurge(ctx context.Context) error {
	return withDatabase(func(cfg *config.Config, db *database.DB) error {
		provider, err := storage.NewProvider(ctx, cfg.Storage, cfg.BaseURL)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		defer closeProvider(provider)

		service := uploads.NewService(uploads.NewPostgresRepository(db), provider, cfg)
		total, err := service.PurgeExpired(ctx)
		if err != nil {
			return err
		}

		log.Info().
			Int("purged", total).
			Msg("purge completed")
		return nil
	})
}

func runServe() error {
	return withDatabase(func(cfg *config.Config, db *database.DB) error {
		log.Info().
			Str("log_level", zerolog.GlobalLevel().String()).
			Str("version", version).
			Str("commit", commit).
			Str("built", date).
			Msg("Starting codedrop")
		cfg.Log()

		// Create a base context for the application
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Run database health check
		if health := db.Health(ctx); health["status"] != "up" {
			return fmt.Errorf("database health check failed: %s", health["error"])
		}

		// Run migrations
		if err := migrate.RunMigrations(db.DB); err != nil {
			log.Error().Err(err).Msg("Failed to run migrations")
			log.Info().Msg("Attempting to rollback migrations...")

			if rbErr := migrate.RollbackMigrations(db.DB); rbErr != nil {
				return fmt.Errorf("rolling back after %v: %w", err, rbErr)
			}
			return fmt.Errorf("migrations rolled back due to error: %w", err)
		}

		provider, err := storage.NewProvider(ctx, cfg.Storage, cfg.BaseURL)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		defer closeProvider(provider)

		srv, err := server.NewServer(cfg, db, provider)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		// Expired anonymous uploads are only purged when a schedule is set
		if cfg.PurgeSchedule != "" {
			worker := uploads.NewPurgeWorker(srv.Uploads(), cfg.PurgeSchedule)
			if err := worker.Start(ctx); err != nil {
				return err
			}
			defer worker.Stop()
		}

		httpServer, err := srv.Start()
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}

		// Set up graceful shutdown
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
		done := make(chan struct{})

		go func() {
			defer close(done)
			<-shutdown
			log.Info().Msg("Shutdown signal received")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			// Disable keep-alives for new connections
			httpServer.SetKeepAlivesEnabled(false)

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("HTTP server shutdown error")
			}

			// Stop background jobs
			cancel()
		}()

		log.Info().
			Str("url", cfg.BaseURL).
			Msg("Server is ready to handle requests")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}

		<-done
		log.Info().Msg("Server shutdown completed")
		return nil
	})
}

func closeProvider(provider storage.Provider) {
	if err := provider.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing storage provider")
	}
}

func formatVersionInfo() string {
	return fmt.Sprintf(`Version: %s
Commit: %s
Built: %s`, version, commit, date)
}
