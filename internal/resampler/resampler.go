// Package resampler implements the engine's sample-rate converter: a
// fixed-input/fixed-output contract (InputFramesNeeded/Process) matching
// the one original_source/resampler.rs exposes over rubato's
// FftFixedInOut, backed here by github.com/zaf/resample (libsoxr bindings),
// the teacher's own dependency, exercised directly in cmd/transform.go.
package resampler

import (
	"bytes"
	"fmt"

	soxr "github.com/zaf/resample"
)

// chunkFrames is the fixed number of input frames each Process call
// consumes, matching rubato's chunk_size in the original resampler.
const chunkFrames = 1024

// Resampler converts interleaved float32 samples between sample rates,
// holding one soxr pipe open across calls so its internal filter state
// carries continuously from one packet to the next.
type Resampler struct {
	fromRate, toRate int
	channels         int

	out  bytes.Buffer
	soxr *soxr.Resample
}

// New creates a Resampler for channels-interleaved audio converting
// fromRate to toRate. Returns an error if fromRate == toRate — callers
// should simply not construct a resampler in that case (spec §4.5: "created
// only when device rate ≠ source rate").
func New(fromRate, toRate, channels int) (*Resampler, error) {
	if fromRate == toRate {
		return nil, fmt.Errorf("resampler: fromRate == toRate (%d), no conversion needed", fromRate)
	}

	r := &Resampler{fromRate: fromRate, toRate: toRate, channels: channels}

	s, err := soxr.New(&r.out, float64(fromRate), float64(toRate), channels, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("resampler: create soxr pipe: %w", err)
	}
	r.soxr = s
	return r, nil
}

// InputFramesNeeded returns the frame count the next Process call consumes.
// Unlike rubato's variable per-call count, soxr's own buffering makes a
// precise number unnecessary: this always reports the fixed chunk size, a
// documented simplification (see DESIGN.md).
func (r *Resampler) InputFramesNeeded() int {
	return chunkFrames
}

// Process consumes exactly InputFramesNeeded()*channels interleaved input
// samples, resamples them, and returns whatever output frames soxr has
// produced so far (interleaved, same channel count, at toRate).
func (r *Resampler) Process(interleaved []float32) ([]float32, error) {
	wantSamples := chunkFrames * r.channels
	if len(interleaved) != wantSamples {
		return nil, fmt.Errorf("resampler: Process expects %d samples, got %d", wantSamples, len(interleaved))
	}

	in := make([]byte, wantSamples*2)
	for i, s := range interleaved {
		v := int16(clampFloat(s) * 32767)
		in[2*i] = byte(v & 0xFF)
		in[2*i+1] = byte((v >> 8) & 0xFF)
	}

	if _, err := r.soxr.Write(in); err != nil {
		return nil, fmt.Errorf("resampler: write: %w", err)
	}

	raw := r.out.Bytes()
	r.out.Reset()

	frames := len(raw) / 2
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

// Close flushes any samples soxr is still holding internally and releases
// the pipe. Callers should drain the returned samples the same way as a
// Process call's output.
func (r *Resampler) Close() ([]float32, error) {
	if err := r.soxr.Close(); err != nil {
		return nil, fmt.Errorf("resampler: close: %w", err)
	}
	raw := r.out.Bytes()
	frames := len(raw) / 2
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

func clampFloat(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
