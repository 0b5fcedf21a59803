package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetforge/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build info",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\nCommit: %s\nDirty: %v\nGo: %s\n",
			info.Version, info.Commit, info.Dirty, info.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
