package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"

	"sampling-backend/internal/contig"
	"sampling-backend/internal/device"
)

const (
	ModeScaffold      = "scaffold"
	ModeUnconditional = "unconditional"
)

const (
	BackendPython = "python"
	BackendRemote = "remote"
	BackendONNX   = "onnx"
)

// ErrInvalidConfig marks configuration problems detected before any worker is
// started. Check with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// Errorf wraps ErrInvalidConfig with detail.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Config holds every knob of a sampling run. Values are layered in order:
// built-in defaults, config file, environment, flags.
type Config struct {
	// Model identity and sampling hyperparameters.
	Name       string   `env:"MODEL_NAME" yaml:"name"`
	Epoch      int      `env:"MODEL_EPOCH" yaml:"epoch"`
	RootDir    string   `env:"ROOT_DIR" yaml:"rootdir"`
	Scale      float64  `env:"NOISE_SCALE" yaml:"scale"`
	Strength   float64  `env:"GUIDANCE_STRENGTH" yaml:"strength"`
	OutDir     string   `env:"OUT_DIR" yaml:"outdir"`
	NumSamples int      `env:"NUM_SAMPLES" yaml:"num_samples"`
	BatchSize  int      `env:"BATCH_SIZE" yaml:"batch_size"`
	MotifNames []string `env:"MOTIF_NAMES" yaml:"motif_names"`
	DataDir    string   `env:"DATA_DIR" yaml:"datadir"`
	NumDevices int      `env:"NUM_DEVICES" yaml:"num_devices"`
	Structures string   `env:"STRUCTURES" yaml:"structures"`
	Contigs    []string `yaml:"contigs"`

	// Dispatch mode for the generate entrypoint.
	Mode string `env:"SAMPLING_MODE" yaml:"mode"`

	// Unconditional sampling length sweep.
	MinLength  int `env:"MIN_LENGTH" yaml:"min_length"`
	MaxLength  int `env:"MAX_LENGTH" yaml:"max_length"`
	LengthStep int `env:"LENGTH_STEP" yaml:"length_step"`

	// Model backend selection.
	Backend      string `env:"MODEL_BACKEND" yaml:"backend"`
	PythonExec   string `env:"PYTHON_EXEC" yaml:"python_exec"`
	PluginScript string `env:"PLUGIN_SCRIPT" yaml:"plugin_script"`
	RemoteURL    string `env:"REMOTE_URL" yaml:"remote_url"`
	OnnxLibrary  string `env:"ONNX_RUNTIME_DYLIB" yaml:"onnx_library"`
	DeviceKind   string `env:"DEVICE_KIND" yaml:"device"`

	// Bookkeeping and observability.
	DatabaseURL string `env:"DATABASE_URL" yaml:"database_url"`
	StatusAddr  string `env:"STATUS_ADDR" yaml:"status_addr"`
	Progress    bool   `env:"PROGRESS" yaml:"progress"`

	// Checkpoint and artifact storage.
	S3EndpointURL    string `env:"S3_ENDPOINT_URL" yaml:"s3_endpoint_url"`
	S3AccessKey      string `env:"AWS_ACCESS_KEY_ID" yaml:"-"`
	S3SecretKey      string `env:"AWS_SECRET_ACCESS_KEY" yaml:"-"`
	S3Region         string `env:"AWS_REGION" yaml:"s3_region"`
	CheckpointBucket string `env:"CHECKPOINT_BUCKET" yaml:"checkpoint_bucket"`
	ArtifactBucket   string `env:"ARTIFACT_BUCKET" yaml:"artifact_bucket"`
}

func Default() Config {
	return Config{
		RootDir:      "results",
		NumSamples:   100,
		BatchSize:    4,
		DataDir:      "data/design25",
		NumDevices:   1,
		Mode:         ModeScaffold,
		MinLength:    50,
		MaxLength:    256,
		LengthStep:   1,
		Backend:      BackendPython,
		PythonExec:   "python3",
		PluginScript: "plugin/plugin-python/plugin.py",
		DeviceKind:   device.KindCUDA,
		S3Region:     "us-east-1",
		Progress:     true,
	}
}

// LoadFile populates the config from a YAML file. Fields already set remain
// unless overwritten by corresponding entries in the file. A contigs list in
// the file is joined into the structures string when no explicit structures
// value was given.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	if c.Structures == "" && len(c.Contigs) > 0 {
		c.Structures = strings.Join(c.Contigs, "/")
	}
	return nil
}

func (c *Config) FromEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("error parsing config from environment: %w", err)
	}
	return nil
}

// BindFlags registers one flag per run field, defaulting to the current value
// so file- or env-supplied settings survive an unset flag.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Name, "name", c.Name, "name of the trained model under the root directory")
	fs.IntVar(&c.Epoch, "epoch", c.Epoch, "checkpoint epoch to sample from")
	fs.StringVar(&c.RootDir, "rootdir", c.RootDir, "root directory of trained models")
	fs.Float64Var(&c.Scale, "scale", c.Scale, "sampling noise scale")
	fs.StringVar(&c.OutDir, "outdir", c.OutDir, "output directory for generated structures")
	fs.Float64Var(&c.Strength, "strength", c.Strength, "classifier-free guidance strength")
	fs.IntVar(&c.NumSamples, "num_samples", c.NumSamples, "number of samples per task")
	fs.IntVar(&c.BatchSize, "batch_size", c.BatchSize, "maximum number of samples per batch")
	fs.Func("motif_name", "comma separated motif names (default: scan datadir)", func(v string) error {
		c.MotifNames = splitList(v)
		return nil
	})
	fs.StringVar(&c.DataDir, "datadir", c.DataDir, "directory of motif structure files")
	fs.IntVar(&c.NumDevices, "num_devices", c.NumDevices, "number of devices to sample on")
	fs.StringVar(&c.Structures, "structures", c.Structures, "structure (contig) specification")

	fs.IntVar(&c.MinLength, "min_length", c.MinLength, "minimum sequence length for unconditional sampling")
	fs.IntVar(&c.MaxLength, "max_length", c.MaxLength, "maximum sequence length for unconditional sampling")
	fs.IntVar(&c.LengthStep, "length_step", c.LengthStep, "length increment between unconditional tasks")

	fs.StringVar(&c.Backend, "backend", c.Backend, "model backend: python, remote, or onnx")
	fs.StringVar(&c.PythonExec, "python-exec", c.PythonExec, "python interpreter used for the plugin backend")
	fs.StringVar(&c.PluginScript, "plugin-script", c.PluginScript, "path to the model plugin script")
	fs.StringVar(&c.RemoteURL, "remote-url", c.RemoteURL, "base URL of a remote inference server")
	fs.StringVar(&c.OnnxLibrary, "onnx-lib", c.OnnxLibrary, "path to the onnxruntime shared library")
	fs.StringVar(&c.DeviceKind, "device", c.DeviceKind, "device kind: cuda or cpu")

	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "manifest database URL (default: sqlite under outdir)")
	fs.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "listen address for the status API (disabled when empty)")
	fs.BoolVar(&c.Progress, "progress", c.Progress, "render a progress bar")
}

// Validate checks every field a run of the given mode depends on, so that bad
// configuration fails before any worker or model load starts.
func (c *Config) Validate(mode string) error {
	if c.Name == "" {
		return Errorf("model name is required")
	}
	if c.Epoch < 0 {
		return Errorf("epoch must be non-negative, got %d", c.Epoch)
	}
	if c.RootDir == "" {
		return Errorf("root directory is required")
	}
	if c.OutDir == "" {
		return Errorf("output directory is required")
	}
	if c.Scale <= 0 {
		return Errorf("sampling noise scale must be positive, got %v", c.Scale)
	}
	if c.NumSamples <= 0 {
		return Errorf("samples per task must be positive, got %d", c.NumSamples)
	}
	if c.BatchSize <= 0 {
		return Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.NumDevices <= 0 {
		return Errorf("device count must be positive, got %d", c.NumDevices)
	}
	if c.DeviceKind != device.KindCUDA && c.DeviceKind != device.KindCPU {
		return Errorf("unknown device kind %q", c.DeviceKind)
	}

	switch c.Backend {
	case BackendPython, BackendONNX:
	case BackendRemote:
		if c.RemoteURL == "" {
			return Errorf("remote backend requires a remote URL")
		}
	default:
		return Errorf("unknown model backend %q", c.Backend)
	}

	switch mode {
	case ModeScaffold:
		if c.DataDir == "" {
			return Errorf("data directory is required for scaffold sampling")
		}
		if c.Structures != "" {
			if _, err := contig.Parse(c.Structures); err != nil {
				return Errorf("bad structures value: %v", err)
			}
		}
	case ModeUnconditional:
		if c.MinLength <= 0 {
			return Errorf("minimum length must be positive, got %d", c.MinLength)
		}
		if c.MaxLength < c.MinLength {
			return Errorf("maximum length %d is below minimum length %d", c.MaxLength, c.MinLength)
		}
		if c.LengthStep <= 0 {
			return Errorf("length step must be positive, got %d", c.LengthStep)
		}
	default:
		return Errorf("unknown sampling mode %q", mode)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
