package cmd

import (
	"fmt"

	"github.com/openneurolab/neurostream/internal/board"

	"github.com/spf13/cobra"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List supported acquisition boards",
	Long:  `List all supported acquisition boards with their sample rates and channel layouts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		boards := board.Boards()

		fmt.Printf("SUPPORTED BOARDS (%d):\n\n", len(boards))
		for _, desc := range boards {
			fmt.Printf("  %s (id %d)\n", desc.Name, desc.ID)
			fmt.Printf("    sample rate:  %d Hz\n", desc.SampleRate)
			fmt.Printf("    eeg channels: %d\n", desc.EEGChannels)
			fmt.Printf("    accel rows:   %d\n", desc.AccelRows)
			fmt.Printf("    packet rows:  %d (+1 timestamp)\n", desc.PacketSize)
			fmt.Println()
		}

		fmt.Println("Configure under definitions.boards with type: synthetic, cyton or playback.")
		fmt.Println("Cyton boards need a serial port; playback boards take a CSV path as port.")
		return nil
	},
}
