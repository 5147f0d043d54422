package main

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/dbkit/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve validation tools over the Model Context Protocol (stdio)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		// stdout carries the protocol
		if cfg.Logging.Path == "" || cfg.Logging.Path == "stdout" {
			cfg.Logging.Path = "stderr"
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return mcpserver.New(a.Validator, a.Tables, a.Meta(), a.Log).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
