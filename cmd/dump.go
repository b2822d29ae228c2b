package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	wav "github.com/youpy/go-wav"

	"github.com/drgolem/musicengine/internal/decoder"
	"github.com/drgolem/musicengine/internal/eq"
	"github.com/drgolem/musicengine/internal/resampler"
)

// dumpCmd runs one source through the same decode -> resample -> EQ
// pipeline the engine uses live, writing the result to a WAV file for
// offline inspection. It has no realtime/output-device component: the
// whole source is processed in one pass, the way the teacher's own
// transform command works.
var dumpCmd = &cobra.Command{
	Use:   "dump <source>",
	Short: "Render a source through the EQ/resample pipeline to a WAV file",
	Long: `Decodes a local file or HTTP stream, applies the 10-band equalizer and an
optional sample-rate conversion, and writes the result as a 16-bit PCM WAV
file — useful for checking EQ settings or resampler quality offline.

Examples:
  musicengine dump song.mp3 --out song.eq.wav --eq-bands 3,0,0,0,0,0,0,0,0,4
  musicengine dump song.flac --new-samplerate 48000 --out song.48k.wav`,
	Args: cobra.ExactArgs(1),
	Run:  runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().Int("new-samplerate", 0, "Target sample rate in Hz (0 = keep source rate)")
	dumpCmd.Flags().String("out", "out_dump.wav", "Output WAV file path")
	dumpCmd.Flags().String("eq-bands", "", "Comma-separated list of 10 band gains in dB")
}

func runDump(cmd *cobra.Command, args []string) {
	source := args[0]

	newRate, _ := cmd.Flags().GetInt("new-samplerate")
	outFile, _ := cmd.Flags().GetString("out")
	eqBandsFlag, _ := cmd.Flags().GetString("eq-bands")

	dec, err := decoder.Open(source)
	if err != nil {
		slog.Error("failed to open source", "error", err)
		os.Exit(1)
	}
	defer dec.Close()

	info := dec.Info()
	slog.Info("source opened",
		"source", source,
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
		"duration_secs", info.DurationSecs)

	equalizer := eq.New(info.SampleRate, info.Channels)
	if gains, ok := parseEqBands(eqBandsFlag); ok {
		equalizer.SetGains(gains)
		equalizer.SetEnabled(true)
	}

	outRate := info.SampleRate
	var rs *resampler.Resampler
	if newRate > 0 && newRate != info.SampleRate {
		outRate = newRate
		rs, err = resampler.New(info.SampleRate, outRate, info.Channels)
		if err != nil {
			slog.Error("failed to create resampler", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("decoding", "to_sample_rate", outRate)
	samples, err := decodeAll(dec, equalizer, rs, info.Channels)
	if err != nil {
		slog.Error("decode failed", "error", err)
		os.Exit(1)
	}

	pcm := floatToInt16LE(samples)
	numFrames := uint32(len(samples) / info.Channels)

	if err := writeDumpWAV(outFile, pcm, numFrames, uint16(info.Channels), uint32(outRate)); err != nil {
		slog.Error("failed to write WAV file", "error", err)
		os.Exit(1)
	}

	slog.Info("dump complete", "output_file", outFile, "frames", numFrames)
}

// decodeAll drains dec to completion, applying eq (and rs, if non-nil) to
// every decoded packet, and returns the concatenated float32 samples.
func decodeAll(dec *decoder.Decoder, equalizer *eq.Equalizer, rs *resampler.Resampler, channels int) ([]float32, error) {
	var out []float32
	var resampleBuf []float32

	for {
		packet, err := dec.DecodeNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}

		if rs == nil {
			equalizer.Process(packet)
			out = append(out, packet...)
			continue
		}

		resampleBuf = append(resampleBuf, packet...)
		needed := rs.InputFramesNeeded() * channels
		for len(resampleBuf) >= needed {
			chunk := resampleBuf[:needed]
			resampleBuf = append([]float32(nil), resampleBuf[needed:]...)

			resampled, err := rs.Process(chunk)
			if err != nil {
				return nil, fmt.Errorf("resample: %w", err)
			}
			equalizer.Process(resampled)
			out = append(out, resampled...)
		}
	}

	if rs != nil {
		tail, err := rs.Close()
		if err != nil {
			return nil, fmt.Errorf("resampler flush: %w", err)
		}
		equalizer.Process(tail)
		out = append(out, tail...)
	}

	return out, nil
}

func floatToInt16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

func parseEqBands(flag string) ([10]float32, bool) {
	var gains [10]float32
	if flag == "" {
		return gains, false
	}

	rawParts := strings.Split(flag, ",")
	parts := make([]string, len(rawParts))
	for i, p := range rawParts {
		parts[i] = strings.TrimSpace(p)
	}
	if len(parts) != 10 {
		slog.Warn("eq-bands needs exactly 10 comma-separated values, ignoring", "got", len(parts))
		return gains, false
	}
	for i, p := range parts {
		var v float32
		if _, err := fmt.Sscanf(p, "%f", &v); err != nil {
			slog.Warn("invalid eq-bands value, ignoring flag", "value", p)
			return gains, false
		}
		gains[i] = v
	}
	return gains, true
}

func writeDumpWAV(fileName string, pcm []byte, numSamples uint32, channels uint16, sampleRate uint32) error {
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	writer := wav.NewWriter(f, numSamples, channels, sampleRate, 16)
	if _, err := writer.Write(pcm); err != nil {
		return fmt.Errorf("write WAV data: %w", err)
	}
	return nil
}
