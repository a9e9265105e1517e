package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"sampling-backend/internal/api"
	"sampling-backend/internal/config"
	"sampling-backend/internal/core"
	"sampling-backend/internal/database"
	"sampling-backend/internal/runner"
	"sampling-backend/internal/storage"
)

// BuildConfig assembles the run configuration for a sampling entrypoint.
// Values layer in order: built-in defaults, the -config YAML file, the
// environment (optionally seeded from a -env file), and finally flags. The
// returned config file path is empty when none was given.
func BuildConfig(args []string) (*config.Config, string, error) {
	// -env and -config are read before the value flags are bound, so file and
	// environment values become the flag defaults.
	envFile := peekFlag(args[1:], "env")
	configFile := peekFlag(args[1:], "config")

	if envFile != "" {
		log.Printf("loading env from file %s", envFile)
		if err := godotenv.Load(envFile); err != nil {
			return nil, "", err
		}
	}

	cfg := config.Default()
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return nil, "", err
		}
	}
	if err := cfg.FromEnv(); err != nil {
		return nil, "", err
	}

	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	fs.String("env", envFile, "path to load env from")
	fs.String("config", configFile, "path to a YAML run configuration file")
	cfg.BindFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return nil, "", err
	}

	return &cfg, configFile, nil
}

func peekFlag(args []string, name string) string {
	for i, arg := range args {
		for _, form := range []string{"-" + name, "--" + name} {
			if arg == form && i+1 < len(args) {
				return args[i+1]
			}
			if strings.HasPrefix(arg, form+"=") {
				return strings.TrimPrefix(arg, form+"=")
			}
		}
	}
	return ""
}

// OpenManifest connects the run manifest database. An empty URL defaults to a
// sqlite file under the output directory, so every run is recorded even
// without configuration.
func OpenManifest(cfg *config.Config) (*gorm.DB, error) {
	url := cfg.DatabaseURL
	if url == "" {
		path := filepath.Join(cfg.OutDir, "manifest.db")
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, err
		}
		url = path
	}
	return database.Connect(url)
}

// NewObjectStore builds the checkpoint/artifact store named by the config.
// Returns nil when no endpoint or bucket is configured: checkpoints then live
// on local disk only.
func NewObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.CheckpointBucket == "" && cfg.ArtifactBucket == "" {
		return nil, nil
	}

	return storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
	})
}

// NewDriver wires the sampling driver from the configuration: model backend
// loaders, object store, manifest recorder, and progress tracking.
func NewDriver(cfg *config.Config, db *gorm.DB, store storage.ObjectStore, tracker *runner.Tracker) *core.Driver {
	var recorder runner.Recorder = runner.NoopRecorder{}
	if db != nil {
		recorder = database.NewRecorder(db)
	}

	loaders := core.NewModelLoaders(cfg.PythonExec, cfg.PluginScript, cfg.RemoteURL, cfg.OnnxLibrary)

	return core.NewDriver(core.Backend(cfg.Backend), loaders, store, cfg.CheckpointBucket, recorder, tracker)
}

// Sample executes one sampling run in the given mode, wiring the manifest
// database, object store, progress tracking, and optional status server
// around the driver. Configuration problems surface before anything starts.
func Sample(cfg *config.Config, mode string) error {
	cfg.Mode = mode
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	db, err := OpenManifest(cfg)
	if err != nil {
		return fmt.Errorf("error opening manifest database: %w", err)
	}

	store, err := NewObjectStore(cfg)
	if err != nil {
		return fmt.Errorf("error creating object store: %w", err)
	}

	tracker := runner.NewTracker("sampling "+cfg.Name, cfg.Progress)

	if cfg.StatusAddr != "" {
		stop := StartStatusServer(cfg.StatusAddr, db, tracker)
		defer stop()
	}

	ctx, cancel := RunContext()
	defer cancel()

	runErr := NewDriver(cfg, db, store, tracker).Generate(ctx, cfg)

	if store != nil && cfg.ArtifactBucket != "" {
		uploadArtifacts(store, cfg)
	}

	return runErr
}

// uploadArtifacts pushes the output directory to the artifact bucket. Upload
// is best-effort and runs even after a failed run: partial output is still
// output.
func uploadArtifacts(store storage.ObjectStore, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := store.CreateBucket(ctx, cfg.ArtifactBucket); err != nil {
		slog.Error("error creating artifact bucket", "bucket", cfg.ArtifactBucket, "error", err)
		return
	}

	prefix := filepath.Base(cfg.OutDir)
	if err := store.UploadDir(ctx, cfg.ArtifactBucket, prefix, cfg.OutDir); err != nil {
		slog.Error("error uploading artifacts", "bucket", cfg.ArtifactBucket, "prefix", prefix, "error", err)
		return
	}

	slog.Info("artifacts uploaded", "bucket", cfg.ArtifactBucket, "prefix", prefix)
}

// StartStatusServer serves the read-only status API for the duration of the
// run. The returned stop function shuts the server down gracefully.
func StartStatusServer(addr string, db *gorm.DB, tracker *runner.Tracker) func() {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	statusHandler := api.NewStatusService(db, tracker)
	r.Route("/api/v1", func(r chi.Router) {
		statusHandler.AddRoutes(r)
	})

	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		slog.Info("status server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("error shutting down status server", "error", err)
		}
	}
}

// RunContext returns a context cancelled by SIGINT/SIGTERM. Cancellation stops
// workers between batches; in-flight sampling calls still complete.
func RunContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
