package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "goaudioctl",
	Short: "Real-time multi-source audio mixing and sync-group playback",
	Long: `goaudioctl drives the mixing engine: a Master Clock, a pull-based
Mixer and one FileSource per attached file, rendered to a PortAudio output
stream.

Commands:
  - play:    play one or more audio files, optionally looped,
             tempo/pitch-adjusted and recorded to WAV
  - devices: list PortAudio output/input devices`,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
