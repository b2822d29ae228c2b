package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/drgolem/musicengine/internal/engine"
)

var (
	playDeviceIdx     int
	playVerbose       bool
	playVisualize     bool
	playBufferSeconds float64
	playVolume        float64
	playEqBands       string
)

// playCmd represents the play command.
var playCmd = &cobra.Command{
	Use:   "play <source>",
	Short: "Play a local audio file or HTTP stream",
	Long: `Plays a source (a local .mp3/.flac/.wav path, or an http(s):// URL serving
one of those formats) through the audio engine.

While playing, type commands on stdin:
  pause            fade out and stop feeding the device
  resume           fade back in from where playback paused
  stop             fade out and release the source
  seek <secs>            jump to an absolute position
  volume <0-1>           set linear volume
  eq-bands <10 db values> set all 10 band gains at once
  eq-on / eq-off         toggle the equalizer
  viz-on / viz-off  toggle spectrum/waveform events
  quit              stop playback and exit

Flags let you set the output device, ring buffer size, initial volume, and
an initial 10-band EQ curve before playback starts.

Examples:
  musicengine play song.mp3
  musicengine play https://example.com/stream.mp3 --visualize
  musicengine play song.flac --volume 0.8 --eq-bands 3,2,0,0,0,0,0,-2,-2,0`,
	Args: cobra.ExactArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", 1, "Audio output device index")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "Verbose output (debug logging)")
	playCmd.Flags().BoolVar(&playVisualize, "visualize", false, "Enable FFT/waveform events from the start")
	playCmd.Flags().Float64Var(&playBufferSeconds, "buffer-seconds", 2.0, "Output ring buffer size, in seconds of audio")
	playCmd.Flags().Float64Var(&playVolume, "volume", 1.0, "Initial linear volume, 0-1")
	playCmd.Flags().StringVar(&playEqBands, "eq-bands", "", "Comma-separated list of 10 initial band gains in dB")
}

func runPlay(cmd *cobra.Command, args []string) {
	source := args[0]

	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("failed to initialize PortAudio", "error", err)
		slog.Error("hint: make sure PortAudio is installed on your system")
		os.Exit(1)
	}
	defer portaudio.Terminate()

	eng := engine.NewEngine(playDeviceIdx, playBufferSeconds, logger)
	defer eng.Close()

	eng.EnableVisualization(playVisualize)
	eng.SetVolume(float32(playVolume))
	if gains, ok := parseEqBands(playEqBands); ok {
		eng.SetEqBands(gains)
		eng.SetEqEnabled(true)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eventsDone := make(chan struct{})
	go watchEvents(eng, eventsDone)

	slog.Info("opening source", "source", source)
	eng.Play(source)

	inputDone := make(chan struct{})
	go readCommands(eng, inputDone)

	select {
	case <-inputDone:
		slog.Info("exiting")
	case sig := <-sigChan:
		slog.Info("signal received, stopping playback", "signal", sig)
		eng.Stop()
	}
	close(eventsDone)
}

func watchEvents(eng *engine.Engine, done chan struct{}) {
	for {
		select {
		case evt := <-eng.Events():
			logEvent(evt)
		case <-done:
			return
		}
	}
}

func logEvent(evt engine.Event) {
	switch e := evt.(type) {
	case engine.TimeEvent:
		slog.Debug("time", "position", e.PositionSecs, "duration", e.DurationSecs)
	case engine.FFTEvent:
		slog.Debug("fft", "bins", len(e.Frequency))
	case engine.StateChangedEvent:
		slog.Info("state changed", "is_playing", e.IsPlaying)
	case engine.EndedEvent:
		slog.Info("playback ended")
	case engine.ErrorEvent:
		slog.Error("engine error", "message", e.Message)
	}
}

// readCommands implements the stdin control surface described in playCmd's
// Long help text, closing done once the user asks to quit or stdin closes.
func readCommands(eng *engine.Engine, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "pause":
			eng.Pause()
		case "resume":
			eng.Resume()
		case "stop":
			eng.Stop()
		case "seek":
			if len(fields) < 2 {
				fmt.Println("usage: seek <secs>")
				continue
			}
			secs, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				fmt.Println("invalid seconds:", err)
				continue
			}
			eng.Seek(secs)
		case "volume":
			if len(fields) < 2 {
				fmt.Println("usage: volume <0-1>")
				continue
			}
			vol, err := strconv.ParseFloat(fields[1], 32)
			if err != nil {
				fmt.Println("invalid volume:", err)
				continue
			}
			eng.SetVolume(float32(vol))
		case "eq-bands":
			if len(fields) != 11 {
				fmt.Println("usage: eq-bands <10 db values>")
				continue
			}
			var gains [10]float32
			ok := true
			for i := 0; i < 10; i++ {
				v, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					fmt.Println("invalid gain:", err)
					ok = false
					break
				}
				gains[i] = float32(v)
			}
			if ok {
				eng.SetEqBands(gains)
			}
		case "eq-on":
			eng.SetEqEnabled(true)
		case "eq-off":
			eng.SetEqEnabled(false)
		case "viz-on":
			eng.EnableVisualization(true)
		case "viz-off":
			eng.EnableVisualization(false)
		case "quit", "exit":
			eng.Stop()
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
