package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.Name = "scope-l30"
	cfg.Epoch = 40
	cfg.Scale = 0.6
	cfg.OutDir = "runs/test"
	return cfg
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate(ModeScaffold))
	require.NoError(t, cfg.Validate(ModeUnconditional))
}

func TestValidateRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		mode   string
	}{
		{"missing name", func(c *Config) { c.Name = "" }, ModeScaffold},
		{"negative epoch", func(c *Config) { c.Epoch = -1 }, ModeScaffold},
		{"missing rootdir", func(c *Config) { c.RootDir = "" }, ModeScaffold},
		{"missing outdir", func(c *Config) { c.OutDir = "" }, ModeScaffold},
		{"zero scale", func(c *Config) { c.Scale = 0 }, ModeScaffold},
		{"zero samples", func(c *Config) { c.NumSamples = 0 }, ModeScaffold},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ModeScaffold},
		{"zero devices", func(c *Config) { c.NumDevices = 0 }, ModeScaffold},
		{"negative devices", func(c *Config) { c.NumDevices = -2 }, ModeScaffold},
		{"bad device kind", func(c *Config) { c.DeviceKind = "tpu" }, ModeScaffold},
		{"bad backend", func(c *Config) { c.Backend = "torchscript" }, ModeScaffold},
		{"remote without url", func(c *Config) { c.Backend = BackendRemote }, ModeScaffold},
		{"missing datadir", func(c *Config) { c.DataDir = "" }, ModeScaffold},
		{"bad structures", func(c *Config) { c.Structures = "A35-16" }, ModeScaffold},
		{"zero min length", func(c *Config) { c.MinLength = 0 }, ModeUnconditional},
		{"inverted length range", func(c *Config) { c.MinLength = 100; c.MaxLength = 50 }, ModeUnconditional},
		{"zero length step", func(c *Config) { c.LengthStep = 0 }, ModeUnconditional},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := validConfig()
			test.mutate(&cfg)

			err := cfg.Validate(test.mode)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validConfig()
	err := cfg.Validate("conditional")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: scope-l30
epoch: 40
scale: 0.6
outdir: runs/test
batch_size: 8
motif_names: [1PRW, 3IXT]
contigs: ["5-20", "A16-35", "10-25"]
`), 0o644))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "scope-l30", cfg.Name)
	assert.Equal(t, 40, cfg.Epoch)
	assert.Equal(t, 0.6, cfg.Scale)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, []string{"1PRW", "3IXT"}, cfg.MotifNames)
	assert.Equal(t, "5-20/A16-35/10-25", cfg.Structures)

	// Untouched fields keep their defaults.
	assert.Equal(t, "results", cfg.RootDir)
	assert.Equal(t, 1, cfg.NumDevices)
}

func TestLoadFileKeepsExplicitStructures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
structures: "10-10"
contigs: ["5-20"]
`), 0o644))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, "10-10", cfg.Structures)
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MODEL_NAME", "scope-l30")
	t.Setenv("NUM_DEVICES", "4")
	t.Setenv("MOTIF_NAMES", "1PRW,3IXT")

	cfg := Default()
	require.NoError(t, cfg.FromEnv())

	assert.Equal(t, "scope-l30", cfg.Name)
	assert.Equal(t, 4, cfg.NumDevices)
	assert.Equal(t, []string{"1PRW", "3IXT"}, cfg.MotifNames)
	assert.Equal(t, 4, cfg.BatchSize, "fields without env vars keep defaults")
}

func TestBindFlags(t *testing.T) {
	cfg := Default()
	cfg.Name = "from-file"

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--epoch", "30",
		"--scale", "0.4",
		"--motif_name", "1PRW, 5TPN",
		"--num_devices", "2",
	}))

	assert.Equal(t, "from-file", cfg.Name, "unset flags keep prior values")
	assert.Equal(t, 30, cfg.Epoch)
	assert.Equal(t, 0.4, cfg.Scale)
	assert.Equal(t, []string{"1PRW", "5TPN"}, cfg.MotifNames)
	assert.Equal(t, 2, cfg.NumDevices)
}
