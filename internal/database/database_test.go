package database_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codedrop/internal/database"
	"codedrop/internal/database/dbtest"
)

var testConfig database.Config

func TestMain(m *testing.M) {
	cfg, teardown, err := dbtest.StartPostgres(context.Background())
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("could not start postgres container")
	}
	testConfig = cfg

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatal().
				Err(err).
				Msg("could not teardown postgres container")
		}
	}
	os.Exit(code)
}

func TestNew(t *testing.T) {
	db, err := database.New(testConfig)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()
}

func TestNew_Unreachable(t *testing.T) {
	cfg := testConfig
	cfg.Port = "1"
	_, err := database.New(cfg)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	db, err := database.New(testConfig)
	require.NoError(t, err)
	defer db.Close()

	stats := db.Health(context.Background())

	assert.Equal(t, "up", stats["status"])
	assert.NotContains(t, stats, "error")
}

func TestHealth_AfterClose(t *testing.T) {
	db, err := database.New(testConfig)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	stats := db.Health(context.Background())
	assert.Equal(t, "down", stats["status"])
	assert.Contains(t, stats, "error")
}
