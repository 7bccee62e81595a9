package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 256, cfg.Data.HighResCropSize)
	assert.Equal(t, 4, cfg.Data.Scale)
	assert.Equal(t, 16, cfg.Loader.BatchSize)
	assert.True(t, cfg.Loader.Shuffle)
	assert.Equal(t, "64_numfeatures", cfg.Checkpoint.Suffix)
	assert.Equal(t, "json", cfg.Checkpoint.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	content := `
data:
  lowres_dir: /data/lr
  highres_dir: /data/hr
  highres_crop_size: 128
  scale: 2
loader:
  batch_size: 8
  shuffle: false
checkpoint:
  dir: /ckpt
  suffix: sr_test
  format: binary
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/lr", cfg.Data.LowResDir)
	assert.Equal(t, "/data/hr", cfg.Data.HighResDir)
	assert.Equal(t, 128, cfg.Data.HighResCropSize)
	assert.Equal(t, 2, cfg.Data.Scale)
	assert.Equal(t, 8, cfg.Loader.BatchSize)
	assert.False(t, cfg.Loader.Shuffle)
	assert.Equal(t, "sr_test", cfg.Checkpoint.Suffix)
	assert.Equal(t, "binary", cfg.Checkpoint.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unspecified fields keep their defaults
	assert.Equal(t, 4, cfg.Loader.NumWorkers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\nnot yaml: ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SUPERRES_LOWRES_DIR", "/env/lr")
	t.Setenv("SUPERRES_SCALE", "8")
	t.Setenv("SUPERRES_BATCH_SIZE", "32")
	t.Setenv("SUPERRES_SHUFFLE", "false")
	t.Setenv("SUPERRES_HIGHRES_CROP_SIZE", "512")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/lr", cfg.Data.LowResDir)
	assert.Equal(t, 8, cfg.Data.Scale)
	assert.Equal(t, 512, cfg.Data.HighResCropSize)
	assert.Equal(t, 32, cfg.Loader.BatchSize)
	assert.False(t, cfg.Loader.Shuffle)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "NonPositiveCropSize",
			mutate:  func(c *Config) { c.Data.HighResCropSize = 0 },
			wantErr: "highres_crop_size",
		},
		{
			name:    "NonPositiveScale",
			mutate:  func(c *Config) { c.Data.Scale = -1 },
			wantErr: "scale",
		},
		{
			name:    "NotDivisible",
			mutate:  func(c *Config) { c.Data.HighResCropSize = 250 },
			wantErr: "divisible",
		},
		{
			name:    "NonPositiveBatchSize",
			mutate:  func(c *Config) { c.Loader.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "NegativeWorkers",
			mutate:  func(c *Config) { c.Loader.NumWorkers = -2 },
			wantErr: "num_workers",
		},
		{
			name:    "BadCheckpointFormat",
			mutate:  func(c *Config) { c.Checkpoint.Format = "onnx" },
			wantErr: "checkpoint format",
		},
		{
			name:    "BadLogLevel",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
