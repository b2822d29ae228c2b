package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "musicengine",
	Short: "Realtime audio playback engine with EQ and spectrum visualization",
	Long: `musicengine - a command-driven audio playback engine built on a
lock-free SPSC ringbuffer and a realtime PortAudio output callback.

Features:
  - Decodes MP3, FLAC, and WAV from local files or HTTP streams
  - 10-band parametric equalizer (shelf/peaking biquads)
  - Sample-rate conversion when the output device doesn't match the source
  - FFT spectrum and waveform visualization events
  - Command-driven play/pause/resume/stop/seek/volume/EQ control with
    inaudible fade transitions between tracks

Commands:
  - play: open a source and drive it interactively from the terminal
  - dump: decode a source through the full EQ/resample pipeline to a WAV file`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
