package output

import (
	"testing"

	"github.com/drgolem/musicengine/internal/ringbuffer"
)

// callback touches no PortAudio state beyond the two atomic flags and the
// ring buffer, so it can be exercised directly without an open stream.
func newTestDevice(channels int) *Device {
	d := &Device{
		ring:     ringbuffer.New(8192),
		channels: channels,
		scratch:  make([]float32, 64*channels),
	}
	d.playing.Store(true)
	return d
}

func TestCallbackEmitsSilenceWhenPaused(t *testing.T) {
	d := newTestDevice(2)
	d.Pause()

	samples := []float32{0.5, 0.5, 0.5, 0.5}
	if _, err := d.ring.Write(samples); err != nil {
		t.Fatalf("Write: %v", err)
	}

	output := make([]byte, 4*2) // 2 frames * 2 channels * 2 bytes (int16)
	for i := range output {
		output[i] = 0xFF
	}
	d.audioCallback(nil, output, 2, nil, 0)

	for i, b := range output {
		if b != 0 {
			t.Fatalf("output[%d] = %d, want 0 while paused", i, b)
		}
	}
}

func TestCallbackFlushesAndClearsFlag(t *testing.T) {
	d := newTestDevice(1)
	samples := []float32{1, 1, 1, 1}
	if _, err := d.ring.Write(samples); err != nil {
		t.Fatalf("Write: %v", err)
	}
	d.Flush()

	output := make([]byte, 4*2)
	d.audioCallback(nil, output, 4, nil, 0)

	if d.flushing.Load() {
		t.Fatal("flushing flag should clear after one callback")
	}
	if d.ring.AvailableRead() != 0 {
		t.Fatal("ring should be drained by a flush")
	}
	for i, b := range output {
		if b != 0 {
			t.Fatalf("output[%d] = %d, want silence on the flushing callback", i, b)
		}
	}
}

func TestCallbackConvertsFloatToInt16AndPadsShortfall(t *testing.T) {
	d := newTestDevice(1)
	if _, err := d.ring.Write([]float32{1.0}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	output := make([]byte, 2*2) // 2 frames requested, only 1 available
	d.audioCallback(nil, output, 2, nil, 0)

	got := int16(uint16(output[0]) | uint16(output[1])<<8)
	if got != 32767 {
		t.Fatalf("first sample = %d, want 32767", got)
	}
	if output[2] != 0 || output[3] != 0 {
		t.Fatal("shortfall frame should be silence")
	}
}

func TestClampFloat(t *testing.T) {
	cases := map[float32]float32{1.5: 1, -1.5: -1, 0.25: 0.25}
	for in, want := range cases {
		if got := clampFloat(in); got != want {
			t.Fatalf("clampFloat(%v) = %v, want %v", in, got, want)
		}
	}
}
