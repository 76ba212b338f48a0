package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openneurolab/neurostream/internal/config"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [session-name]",
	Short: "Show resolved configuration and file paths for a session",
	Long:  `Display the resolved configuration with inheritance indicators and file paths for the given session name. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionName := args[0]

		// Clean session name using the same logic as the service
		cleanName := cleanFileName(sessionName)

		// Build file paths
		csvPath := filepath.Join(cfg.Output.Directory, cleanName+".csv")
		metaPath := filepath.Join(cfg.Output.Directory, cleanName+".session.yaml")

		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("recording: %s\n", csvPath)
		fmt.Printf("session:   %s\n", metaPath)
		fmt.Printf("clean_name: %s\n", cleanName)

		// Display resolved configuration with inheritance indicators
		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		inh := inheritanceInfo()

		fmt.Printf("\n[Board]\n")
		fmt.Printf("ref: %s %s\n", cfg.Board.Ref, getInheritanceIndicator(inh.Board.Selection))
		fmt.Printf("name: %s\n", cfg.Board.Name)
		fmt.Printf("type: %s\n", cfg.Board.Type)
		if cfg.Board.Port != "" {
			fmt.Printf("port: %s %s\n", cfg.Board.Port, getInheritanceIndicator(inh.Board.Port))
		}
		fmt.Printf("gain: %.1f %s\n", cfg.Board.Gain, getInheritanceIndicator(inh.Board.Gain))

		fmt.Printf("\n[Stream]\n")
		fmt.Printf("duration_seconds: %d %s\n", cfg.Stream.DurationSeconds, getInheritanceIndicator(inh.Stream.Duration))
		fmt.Printf("buffer_samples: %d %s\n", cfg.Stream.BufferSamples, getInheritanceIndicator(inh.Stream.Buffer))

		fmt.Printf("\n[Filters]\n")
		fmt.Printf("dc_offset: %t %s\n", cfg.Filters.DCOffset, getInheritanceIndicator(inh.Filters))
		if b := cfg.Filters.Bandpass; b != nil {
			fmt.Printf("bandpass: %.1f-%.1f Hz\n", b.Low, b.High)
		}
		if n := cfg.Filters.Notch; n != nil {
			fmt.Printf("notch: %.1f-%.1f Hz\n", n.Low, n.High)
		}

		fmt.Printf("\n[Output]\n")
		fmt.Printf("directory: %s %s\n", cfg.Output.Directory, getInheritanceIndicator(inh.Output.Directory))
		fmt.Printf("format: %s %s\n", cfg.Output.Format, getInheritanceIndicator(inh.Output.Format))

		return nil
	},
}

// cleanFileName replicates the logic from the service
func cleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == ' ' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

// inheritanceInfo returns the tracked inheritance, empty when the profile was
// resolved without a default fallback.
func inheritanceInfo() config.InheritanceInfo {
	if cfg.Inheritance != nil {
		return *cfg.Inheritance
	}
	return config.InheritanceInfo{}
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return ""
	}
}
