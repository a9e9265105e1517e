package main

import (
	"errors"
	"log"
	"log/slog"
	"os"

	"sampling-backend/cmd"
	"sampling-backend/internal/config"
)

func main() {
	cfg, _, err := cmd.BuildConfig(os.Args)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cmd.Sample(cfg, config.ModeUnconditional); err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			log.Fatalf("Invalid configuration: %v", err)
		}
		slog.Error("sampling run finished with errors", "error", err)
		os.Exit(1)
	}
}
