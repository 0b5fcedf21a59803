package main

import (
	"github.com/spf13/cobra"

	"fleetforge/internal/logging"
	"fleetforge/internal/repository/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		repo, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer repo.Close()
		logging.WithComponent("migrate").WithField("path", cfg.Database.Path).Info("Database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
