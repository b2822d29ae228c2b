package fftproc

import "testing"

func TestDisabledReturnsZeroSpectrumAndMidlineWaveform(t *testing.T) {
	p := New()
	freq, wave := p.Compute()

	if len(freq) != freqBins {
		t.Fatalf("len(freq) = %d, want %d", len(freq), freqBins)
	}
	for i, v := range freq {
		if v != 0 {
			t.Fatalf("freq[%d] = %d, want 0 when disabled", i, v)
		}
	}

	if len(wave) != waveformPoints {
		t.Fatalf("len(wave) = %d, want %d", len(wave), waveformPoints)
	}
	for i, v := range wave {
		if v != 128 {
			t.Fatalf("wave[%d] = %d, want 128 when disabled", i, v)
		}
	}
}

func TestEnabledSilenceProducesLowEnergySpectrum(t *testing.T) {
	p := New()
	p.SetEnabled(true)
	silence := make([]float32, fftSize*2)
	p.PushSamples(silence, 2)

	freq, wave := p.Compute()
	for i, v := range freq {
		if v > 5 {
			t.Fatalf("freq[%d] = %d, expected near-zero for silence", i, v)
		}
	}
	for _, v := range wave {
		if v != 128 {
			t.Fatalf("waveform of silence should sit at the zero line, got %d", v)
		}
	}
}

func TestPushSamplesDownmixesToMono(t *testing.T) {
	p := New()
	p.SetEnabled(true)
	// Stereo: left = 1.0, right = -1.0 -> mono average = 0.
	stereo := []float32{1.0, -1.0}
	p.PushSamples(stereo, 2)

	idx := (p.writePos - 1 + fftSize) % fftSize
	if p.buffer[idx] != 0 {
		t.Fatalf("downmixed sample = %v, want 0", p.buffer[idx])
	}
}

func TestDisablingZeroesBuffer(t *testing.T) {
	p := New()
	p.SetEnabled(true)
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.5
	}
	p.PushSamples(samples, 1)
	p.SetEnabled(false)

	for i, v := range p.buffer {
		if v != 0 {
			t.Fatalf("buffer[%d] = %v, want 0 after disable", i, v)
		}
	}
}
