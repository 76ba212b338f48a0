package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openneurolab/neurostream/internal/config"
	"github.com/openneurolab/neurostream/internal/service"

	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:   "stream [session-name]",
	Short: "Stream from the configured board and save a recording",
	Long: `Open the configured board, stream samples for the configured duration,
condition the signal and save the recording as CSV with a session sidecar.

Conditioning follows the filters section of the active profile unless
overridden on the command line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionName := args[0]
		slog.Info("Stream command started", "session_name", sessionName, "board", cfg.Board.Type)

		// Apply command line overrides
		if duration, _ := cmd.Flags().GetInt("duration"); duration > 0 {
			cfg.Stream.DurationSeconds = duration
		}
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.Output.Directory = output
		}
		if cmd.Flags().Changed("dc-offset") {
			cfg.Filters.DCOffset, _ = cmd.Flags().GetBool("dc-offset")
		}
		if bandpass, _ := cmd.Flags().GetString("bandpass"); bandpass != "" {
			band, err := parseBand(bandpass)
			if err != nil {
				return fmt.Errorf("invalid --bandpass: %w", err)
			}
			cfg.Filters.Bandpass = band
		}
		if notch, _ := cmd.Flags().GetString("notch"); notch != "" {
			band, err := parseBand(notch)
			if err != nil {
				return fmt.Errorf("invalid --notch: %w", err)
			}
			cfg.Filters.Notch = band
		}

		duration := time.Duration(cfg.Stream.DurationSeconds) * time.Second

		fmt.Printf("Board: %s (%s)\n", cfg.Board.Name, cfg.Board.Type)
		fmt.Printf("Duration: %s\n", duration)
		if cfg.Filters.DCOffset {
			fmt.Println("Conditioning: DC offset removal")
		}
		if b := cfg.Filters.Bandpass; b != nil {
			fmt.Printf("Conditioning: band-pass %.1f-%.1f Hz\n", b.Low, b.High)
		}
		if n := cfg.Filters.Notch; n != nil {
			fmt.Printf("Conditioning: notch %.1f-%.1f Hz\n", n.Low, n.High)
		}

		svc := service.New(cfg, cfgFile)
		result, err := svc.Capture(sessionName, duration)
		if err != nil {
			return fmt.Errorf("capture failed: %w", err)
		}

		fmt.Printf("\nCaptured %d samples\n", result.Samples)
		fmt.Printf("Recording: %s\n", result.CSVPath)
		fmt.Printf("Session:   %s\n", result.MetaPath)
		return nil
	},
}

// parseBand parses a "low:high" frequency range in Hz
func parseBand(s string) (*config.Band, error) {
	var low, high float64
	if _, err := fmt.Sscanf(s, "%f:%f", &low, &high); err != nil {
		return nil, fmt.Errorf("expected low:high in Hz, got %q", s)
	}
	if low <= 0 || high <= low {
		return nil, fmt.Errorf("range must satisfy 0 < low < high, got %q", s)
	}
	return &config.Band{Low: low, High: high}, nil
}

func init() {
	streamCmd.Flags().IntP("duration", "d", 0, "stream duration in seconds (overrides config)")
	streamCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	streamCmd.Flags().Bool("dc-offset", true, "remove the per-channel DC offset (overrides config)")
	streamCmd.Flags().String("bandpass", "", "band-pass range as low:high in Hz (overrides config)")
	streamCmd.Flags().String("notch", "", "notch range as low:high in Hz (overrides config)")
}
