// Package main provides the coverme command: job posting detection for
// pages on disk, on the web, or posted by the browser extension.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/config"
	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/logging"
)

var (
	configPath string
	logLevel   string
	verbose    bool

	appCfg config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:               "coverme",
	Short:             "Job posting detector",
	Long:              "coverme decides whether a web page is a job posting and extracts its title, company and description.",
	PersistentPreRunE: loadAppConfig,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed output")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadAppConfig merges the config file, environment and global flags, then
// builds the logger.
func loadAppConfig(cmd *cobra.Command, _ []string) error {
	cfg := config.Config{}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.Verbose = true
	}
	cfg.ApplyEnv()
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logging.New(cfg.LogLevel, cfg.Verbose)
	if err != nil {
		return err
	}
	appCfg = cfg
	logger = l
	return nil
}

// buildDetector creates a detector from the configuration, loading a custom
// registry when one is named.
func buildDetector(cfg config.Config, log *zap.Logger) (*detect.Detector, error) {
	registry := detect.DefaultRegistry()
	if cfg.Registry != "" {
		r, err := detect.LoadRegistryFile(cfg.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
		registry = r
	}
	return detect.New(
		detect.WithConfig(cfg.DetectorConfig()),
		detect.WithRegistry(registry),
		detect.WithLogger(log),
	)
}
