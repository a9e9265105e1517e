package main

import (
	"errors"
	"log"
	"log/slog"
	"os"

	"sampling-backend/cmd"
	"sampling-backend/internal/config"
)

// generate dispatches to scaffold or unconditional sampling based on the mode
// named in the run configuration file.
func main() {
	cfg, configFile, err := cmd.BuildConfig(os.Args)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if configFile == "" {
		log.Fatalf("generate requires a -config file naming the sampling mode")
	}

	if err := cmd.Sample(cfg, cfg.Mode); err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			log.Fatalf("Invalid configuration: %v", err)
		}
		slog.Error("sampling run finished with errors", "error", err)
		os.Exit(1)
	}
}
