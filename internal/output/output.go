// Package output selects a device configuration and drives it from a
// lock-free ring buffer via a realtime PortAudio callback.
//
// Grounded on internal/fileplayer.go's initializeStream/audioCallback (the
// teacher's own realtime-callback consumer), adapted from its
// AudioFrameRingBuffer (whole-byte-frame) to this engine's float32 SPSC
// ring, and from original_source/output.rs's playing/flushing atomic-flag
// contract (spec §4.9), which the teacher's callback doesn't need since it
// never pauses or flushes mid-stream.
package output

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/musicengine/internal/ringbuffer"
)

// minRingFrames is the ring buffer's floor, independent of the 2-second
// sizing rule, per spec §4.9 ("≥ 4096 samples floor").
const minRingFrames = 4096

// Device owns the output ring buffer (producer side for the engine,
// consumer side for the realtime callback) and the PortAudio stream.
type Device struct {
	ring       *ringbuffer.RingBuffer
	stream     *portaudio.PaStream
	channels   int
	sampleRate int

	// scratch is preallocated at Open for audioCallback to read into —
	// the callback runs on PortAudio's realtime thread and must not
	// allocate per invocation.
	scratch []float32

	playing  atomic.Bool
	flushing atomic.Bool

	log *slog.Logger
}

// Open picks a device config matching (rate, channels), preferring the
// exact rate (device enumeration/fallback is left to the PortAudio host API
// defaults, as the teacher's own player does — it always opens deviceIndex
// at the requested rate rather than walking a device list). Builds a ring
// sized for at least bufferSeconds of audio, floored at minRingFrames.
//
// The retrieved go-portaudio binding only demonstrates Int16/Int24/Int32
// output formats (internal/fileplayer.go, pkg/audioplayer/player.go); no
// example exercises a float-32 device format, so the callback below outputs
// signed 16-bit samples, converting from the engine's internal float32
// pipeline at the device boundary — the same conversion the teacher's own
// fileplayer/audioplayer packages perform before handing samples to
// PortAudio.
func Open(deviceIndex, sampleRate, channels, framesPerBuffer int, bufferSeconds float64, logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSeconds <= 0 {
		bufferSeconds = 2
	}

	ringFrames := uint64(float64(sampleRate*channels) * bufferSeconds)
	if ringFrames < minRingFrames {
		ringFrames = minRingFrames
	}

	d := &Device{
		ring:       ringbuffer.New(ringFrames),
		channels:   channels,
		sampleRate: sampleRate,
		scratch:    make([]float32, framesPerBuffer*channels),
		log:        logger,
	}
	d.playing.Store(true)

	d.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  deviceIndex,
			ChannelCount: channels,
			SampleFormat: portaudio.SampleFmtInt16,
		},
		SampleRate: float64(sampleRate),
	}

	if err := d.stream.OpenCallback(framesPerBuffer, d.audioCallback); err != nil {
		return nil, fmt.Errorf("output: open callback stream: %w", err)
	}
	if err := d.stream.StartStream(); err != nil {
		return nil, fmt.Errorf("output: start stream: %w", err)
	}

	return d, nil
}

// Producer returns the ring buffer's producer side, exclusively for the
// audio thread to enqueue processed samples into.
func (d *Device) Producer() *ringbuffer.RingBuffer {
	return d.ring
}

// SampleRate reports the device's opened sample rate.
func (d *Device) SampleRate() int {
	return d.sampleRate
}

// Channels reports the device's opened channel count.
func (d *Device) Channels() int {
	return d.channels
}

// Pause clears the playing flag; the callback emits silence until Resume.
func (d *Device) Pause() {
	d.playing.Store(false)
}

// Resume sets the playing flag, letting the callback drain the ring again.
func (d *Device) Resume() {
	d.playing.Store(true)
}

// Flush sets the flushing flag. The callback drains the ring and emits one
// buffer of silence, then clears the flag — used on seek and mid-play track
// changes so stale audio never reaches the speakers.
func (d *Device) Flush() {
	d.flushing.Store(true)
}

// audioCallback runs on PortAudio's realtime thread: must not allocate,
// lock, or block.
func (d *Device) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	samplesNeeded := int(frameCount) * d.channels

	if d.flushing.Load() {
		d.ring.Flush()
		d.flushing.Store(false)
		clear(output)
		return portaudio.Continue
	}

	if !d.playing.Load() {
		clear(output)
		return portaudio.Continue
	}

	// Read into the preallocated scratch buffer — never grow it here, the
	// callback must not allocate. A samplesNeeded beyond what Open sized
	// scratch for (frameCount exceeding the negotiated framesPerBuffer)
	// is truncated rather than allocated around.
	readLen := samplesNeeded
	if readLen > len(d.scratch) {
		readLen = len(d.scratch)
	}
	samples := d.scratch[:readLen]
	n, _ := d.ring.Read(samples)

	for i := 0; i < n; i++ {
		v := int16(clampFloat(samples[i]) * 32767)
		o := i * 2
		output[o] = byte(v)
		output[o+1] = byte(v >> 8)
	}
	if n < samplesNeeded {
		clear(output[n*2:])
	}

	return portaudio.Continue
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

// Close stops and releases the PortAudio stream.
func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.StopStream(); err != nil {
		d.log.Warn("stop stream", "err", err)
	}
	if err := d.stream.CloseCallback(); err != nil {
		d.log.Warn("close stream", "err", err)
	}
	d.stream = nil
	return nil
}
