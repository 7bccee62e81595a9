// Command superres prepares paired low-resolution/high-resolution training
// data for super-resolution models and inspects training checkpoints.
package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-superres/config"
	"github.com/tsawler/go-superres/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "superres",
	Short: "Super-resolution training data preparation",
	Long: "Prepares paired low-resolution/high-resolution crop samples for " +
		"super-resolution training and inspects model checkpoints.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (optional)")
}

// setup loads configuration and builds the logger shared by all commands
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}
