// Package config handles configuration for the super-resolution data
// preparation pipeline. Configuration is loaded from a YAML file, with
// optional overrides from a .env file and SUPERRES_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the pipeline
type Config struct {
	// Dataset directories and crop geometry
	Data DataConfig `yaml:"data" json:"data"`

	// Batch loading settings
	Loader LoaderConfig `yaml:"loader" json:"loader"`

	// Checkpoint persistence settings
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DataConfig holds the paired-directory layout and crop geometry
type DataConfig struct {
	LowResDir       string `yaml:"lowres_dir" json:"lowres_dir"`
	HighResDir      string `yaml:"highres_dir" json:"highres_dir"`
	HighResCropSize int    `yaml:"highres_crop_size" json:"highres_crop_size"`
	Scale           int    `yaml:"scale" json:"scale"`
}

// LoaderConfig holds batch assembly configuration
type LoaderConfig struct {
	BatchSize    int   `yaml:"batch_size" json:"batch_size"`
	Shuffle      bool  `yaml:"shuffle" json:"shuffle"`
	NumWorkers   int   `yaml:"num_workers" json:"num_workers"`
	MaxCacheSize int   `yaml:"max_cache_size" json:"max_cache_size"`
	Seed         int64 `yaml:"seed" json:"seed"`
}

// CheckpointConfig holds checkpoint persistence configuration
type CheckpointConfig struct {
	Dir    string `yaml:"dir" json:"dir"`
	Suffix string `yaml:"suffix" json:"suffix"`
	Format string `yaml:"format" json:"format"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			LowResDir:       "data/lowres",
			HighResDir:      "data/highres",
			HighResCropSize: 256,
			Scale:           4,
		},
		Loader: LoaderConfig{
			BatchSize:    16,
			Shuffle:      true,
			NumWorkers:   4,
			MaxCacheSize: 1000,
		},
		Checkpoint: CheckpointConfig{
			Dir:    "checkpoints",
			Suffix: "64_numfeatures",
			Format: "json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file, applying .env and
// environment variable overrides on top of the defaults. An empty path
// skips the file and uses defaults plus overrides.
func Load(path string) (*Config, error) {
	// Load .env file if present; a missing file is not an error
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies SUPERRES_* environment variables on top of the
// loaded configuration
func (c *Config) applyEnvOverrides() {
	setString(&c.Data.LowResDir, "SUPERRES_LOWRES_DIR")
	setString(&c.Data.HighResDir, "SUPERRES_HIGHRES_DIR")
	setInt(&c.Data.HighResCropSize, "SUPERRES_HIGHRES_CROP_SIZE")
	setInt(&c.Data.Scale, "SUPERRES_SCALE")

	setInt(&c.Loader.BatchSize, "SUPERRES_BATCH_SIZE")
	setBool(&c.Loader.Shuffle, "SUPERRES_SHUFFLE")
	setInt(&c.Loader.NumWorkers, "SUPERRES_NUM_WORKERS")
	setInt64(&c.Loader.Seed, "SUPERRES_SEED")

	setString(&c.Checkpoint.Dir, "SUPERRES_CHECKPOINT_DIR")
	setString(&c.Checkpoint.Suffix, "SUPERRES_CHECKPOINT_SUFFIX")
	setString(&c.Checkpoint.Format, "SUPERRES_CHECKPOINT_FORMAT")

	setString(&c.Logging.Level, "SUPERRES_LOG_LEVEL")
	setString(&c.Logging.File, "SUPERRES_LOG_FILE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Data.HighResCropSize <= 0 {
		return fmt.Errorf("highres_crop_size must be positive, got %d", c.Data.HighResCropSize)
	}
	if c.Data.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %d", c.Data.Scale)
	}
	if c.Data.HighResCropSize%c.Data.Scale != 0 {
		return fmt.Errorf("highres_crop_size %d must be divisible by scale %d",
			c.Data.HighResCropSize, c.Data.Scale)
	}
	if c.Loader.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.Loader.BatchSize)
	}
	if c.Loader.NumWorkers < 0 {
		return fmt.Errorf("num_workers must not be negative, got %d", c.Loader.NumWorkers)
	}
	switch c.Checkpoint.Format {
	case "json", "binary":
	default:
		return fmt.Errorf("checkpoint format must be json or binary, got %q", c.Checkpoint.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "disabled", "":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}
