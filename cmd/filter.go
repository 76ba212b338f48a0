package cmd

import (
	"fmt"
	"strings"

	"github.com/openneurolab/neurostream/internal/board"
	"github.com/openneurolab/neurostream/internal/dataset"
	"github.com/openneurolab/neurostream/internal/filter"

	"github.com/spf13/cobra"
)

var filterCmd = &cobra.Command{
	Use:   "filter [recording.csv]",
	Short: "Condition a saved recording offline",
	Long: `Apply signal conditioning to a saved recording: DC offset removal,
Butterworth band filters, mains notch, smoothing and downsampling.

Operations run in the order listed here and write the result back to disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath := args[0]

		boardName, _ := cmd.Flags().GetString("board")
		desc, err := board.Lookup(boardName)
		if err != nil {
			return err
		}

		rec, err := dataset.Load(desc, inputPath)
		if err != nil {
			return fmt.Errorf("failed to load recording: %w", err)
		}
		fmt.Printf("Loaded %s: %d samples at %d Hz\n", inputPath, rec.Samples(), desc.SampleRate)

		applied := 0

		if dc, _ := cmd.Flags().GetBool("dc-offset"); dc {
			filter.RemoveDCOffset(rec)
			fmt.Println("Applied: DC offset removal")
			applied++
		}
		if v, _ := cmd.Flags().GetFloat64("highpass"); v > 0 {
			if err := filter.HighPass(rec, v); err != nil {
				return err
			}
			fmt.Printf("Applied: high-pass %.1f Hz\n", v)
			applied++
		}
		if v, _ := cmd.Flags().GetFloat64("lowpass"); v > 0 {
			if err := filter.LowPass(rec, v); err != nil {
				return err
			}
			fmt.Printf("Applied: low-pass %.1f Hz\n", v)
			applied++
		}
		if s, _ := cmd.Flags().GetString("bandpass"); s != "" {
			band, err := parseBand(s)
			if err != nil {
				return fmt.Errorf("invalid --bandpass: %w", err)
			}
			if err := filter.BandPass(rec, band.Low, band.High); err != nil {
				return err
			}
			fmt.Printf("Applied: band-pass %.1f-%.1f Hz\n", band.Low, band.High)
			applied++
		}
		if s, _ := cmd.Flags().GetString("notch"); s != "" {
			band, err := parseBand(s)
			if err != nil {
				return fmt.Errorf("invalid --notch: %w", err)
			}
			if err := filter.BandStop(rec, band.Low, band.High); err != nil {
				return err
			}
			fmt.Printf("Applied: notch %.1f-%.1f Hz\n", band.Low, band.High)
			applied++
		}
		if w, _ := cmd.Flags().GetInt("smooth"); w > 1 {
			if err := filter.RollingAverage(rec, w); err != nil {
				return err
			}
			fmt.Printf("Applied: rolling average, window %d\n", w)
			applied++
		}
		if f, _ := cmd.Flags().GetInt("downsample"); f > 1 {
			down, err := filter.Downsample(rec, f)
			if err != nil {
				return err
			}
			rec = down
			fmt.Printf("Applied: downsample by %d, new rate %d Hz\n", f, rec.Board().SampleRate)
			applied++
		}

		if applied == 0 {
			return fmt.Errorf("no operations requested, see --help")
		}

		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath == "" {
			outputPath = strings.TrimSuffix(inputPath, ".csv") + "_filtered.csv"
		}

		if err := rec.SaveCSV(outputPath); err != nil {
			return fmt.Errorf("failed to save recording: %w", err)
		}

		fmt.Printf("Saved %d samples to %s\n", rec.Samples(), outputPath)
		return nil
	},
}

func init() {
	filterCmd.Flags().String("board", "synthetic", "board the recording was captured with (synthetic, cyton, playback)")
	filterCmd.Flags().StringP("output", "o", "", "output path (default: <input>_filtered.csv)")
	filterCmd.Flags().Bool("dc-offset", false, "remove the per-channel DC offset")
	filterCmd.Flags().Float64("highpass", 0, "high-pass cutoff in Hz")
	filterCmd.Flags().Float64("lowpass", 0, "low-pass cutoff in Hz")
	filterCmd.Flags().String("bandpass", "", "band-pass range as low:high in Hz")
	filterCmd.Flags().String("notch", "", "notch range as low:high in Hz")
	filterCmd.Flags().Int("smooth", 0, "rolling average window in samples")
	filterCmd.Flags().Int("downsample", 0, "downsample factor (must divide the sample rate)")
}
