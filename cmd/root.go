package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/openneurolab/neurostream/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "neurostream [session-name]",
	Short: "Biosignal acquisition and conditioning tool",
	Long: `NeuroStream is a CLI tool for streaming samples from EEG acquisition
boards, conditioning the signal and saving recordings as CSV.

It talks to OpenBCI Cyton boards over a serial port, generates synthetic
signals for bench work, and replays saved recordings for offline analysis.

When a session name is provided, it acts as 'neurostream stream [session-name]'.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		// Skip config loading for commands that don't need it
		if cmd.Name() == "serve" || cmd.Name() == "boards" {
			return nil
		}

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/neurostream.yaml")
		}

		// Without a config file the built-in synthetic board still works
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			slog.Debug("No config file found, using built-in defaults", "path", cfgFile)
			cfg = config.Default()
			return nil
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If a session name is provided, delegate to stream command
		if len(args) == 1 {
			return streamCmd.RunE(cmd, args)
		}
		// Otherwise show help
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/neurostream.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	// Flags for direct session execution
	rootCmd.Flags().IntP("duration", "d", 0, "stream duration in seconds (overrides config)")
	rootCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(boardsCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
