package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "sleuth",
	Short: "Streaming research agent over an indexed documentation corpus",
}

// Execute runs the CLI.
func Execute() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config, .)")
	rootCmd.AddCommand(serveCMD(), askCMD(), indexCMD(), tokenCMD(), versionCMD())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
