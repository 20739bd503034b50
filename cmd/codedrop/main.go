package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"codedrop/internal/logger"
)

func main() {
	logger.Init("production", "")

	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
