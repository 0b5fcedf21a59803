package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetforge/internal/config"
	"fleetforge/internal/logging"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:          "fleetforge",
	Short:        "fleetforge discovers bare-metal nodes and manages their network topology",
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "f", "", "Path to config file (YAML)")
}

// loadConfig reads --config when given, otherwise searches the default
// locations, then validates and configures logging
func loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configFlag != "" {
		cfg, path, err = config.LoadFromPath(configFlag)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("config validation error: %w", err)
	}

	logging.InitLogger(cfg.Logging)
	return cfg, path, nil
}
