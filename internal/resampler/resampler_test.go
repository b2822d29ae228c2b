package resampler

import "testing"

func TestNewRejectsEqualRates(t *testing.T) {
	if _, err := New(44100, 44100, 2); err == nil {
		t.Fatal("expected error when fromRate == toRate")
	}
}

func TestInputFramesNeededIsFixedChunkSize(t *testing.T) {
	r, err := New(44100, 48000, 2)
	if err != nil {
		t.Skipf("soxr unavailable in this environment: %v", err)
	}
	defer r.Close()

	if got := r.InputFramesNeeded(); got != chunkFrames {
		t.Fatalf("InputFramesNeeded() = %d, want %d", got, chunkFrames)
	}
}

func TestProcessRejectsWrongFrameCount(t *testing.T) {
	r, err := New(44100, 48000, 2)
	if err != nil {
		t.Skipf("soxr unavailable in this environment: %v", err)
	}
	defer r.Close()

	if _, err := r.Process(make([]float32, 3)); err == nil {
		t.Fatal("expected error for wrong sample count")
	}
}
