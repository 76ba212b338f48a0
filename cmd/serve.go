package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/openneurolab/neurostream/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the NeuroStream web server to control acquisition via a web interface.
This allows you to control sessions and watch the live sample feed from any
device on the same network.

The server will display the local network URL for easy access.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		// Handle config file path - use default if not specified
		configPath := cfgFile
		if configPath == "" {
			configPath = os.ExpandEnv("$HOME/.config/neurostream.yaml")
		}

		// Create and start the web server
		srv, err := server.New(configPath, port)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		slog.Info("NeuroStream web server starting", "port", port, "config", configPath)

		// Start server (this blocks)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "port for the web server")
}
