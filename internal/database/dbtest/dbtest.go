// Package dbtest starts a throwaway PostgreSQL container for repository tests.
package dbtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"codedrop/internal/database"
	"codedrop/internal/database/migrate"
)

var (
	sharedOnce     sync.Once
	sharedConfig   database.Config
	sharedTeardown func(context.Context) error
	sharedErr      error
)

// StartPostgres runs a postgres container and returns the connection config
// plus a teardown func.
func StartPostgres(ctx context.Context) (database.Config, func(context.Context) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "testpass"
		dbUser = "testuser"
	)

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return database.Config{}, nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return database.Config{}, container.Terminate, err
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return database.Config{}, container.Terminate, err
	}

	return database.Config{
		Host:     host,
		Port:     port.Port(),
		Database: dbName,
		Username: dbUser,
		Password: dbPwd,
		Schema:   "public",
	}, container.Terminate, nil
}

// Open returns a migrated connection to a container shared by the whole test
// binary. The container is started on first use so packages mixing unit and
// repository tests only need Docker for the latter.
func Open(t testing.TB) *database.DB {
	t.Helper()

	sharedOnce.Do(func() {
		sharedConfig, sharedTeardown, sharedErr = StartPostgres(context.Background())
	})
	if sharedErr != nil {
		t.Fatalf("could not start postgres container: %v", sharedErr)
	}

	db, err := database.New(sharedConfig)
	if err != nil {
		t.Fatalf("could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrate.RunMigrations(db.DB); err != nil {
		t.Fatalf("could not run migrations: %v", err)
	}
	return db
}

// Teardown stops the shared container if Open started one
func Teardown() error {
	if sharedTeardown == nil {
		return nil
	}
	return sharedTeardown(context.Background())
}
