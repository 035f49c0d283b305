package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pooriaast/sleuth/config"
	srv "github.com/pooriaast/sleuth/internal/server"
)

func serveCMD() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return srv.Run(cfg)
		},
	}
	return serve
}
