package engine

import "testing"

func TestFadeStepCompletesInDuration(t *testing.T) {
	step := fadeStep(200, 44100, 2)
	samplesInDuration := 0.2 * 44100 * 2
	// gain should cross 1.0 after approximately samplesInDuration steps
	gain := float32(0)
	n := 0
	for gain < 1.0 && n < int(samplesInDuration)*2 {
		gain += step
		n++
	}
	if n < int(samplesInDuration)-10 || n > int(samplesInDuration)+10 {
		t.Fatalf("fade completed in %d steps, want ~%v", n, samplesInDuration)
	}
}

func TestApplyVolumeNoFadeMultipliesVolume(t *testing.T) {
	fade := &FadeState{Kind: FadeNone}
	samples := []float32{1, 1, 1}
	applyVolumeWithFade(samples, 0.5, fade)
	for i, s := range samples {
		if s != 0.5 {
			t.Fatalf("samples[%d] = %v, want 0.5", i, s)
		}
	}
}

func TestApplyVolumeFadeInReachesFullGain(t *testing.T) {
	fade := &FadeState{Kind: FadeIn, Gain: 0, Step: 0.5}
	samples := make([]float32, 10)
	for i := range samples {
		samples[i] = 1
	}
	applyVolumeWithFade(samples, 1.0, fade)
	if fade.Kind != FadeNone {
		t.Fatalf("fade kind = %v, want FadeNone once gain saturates", fade.Kind)
	}
	if samples[len(samples)-1] == 0 {
		t.Fatal("last sample should not be silent once fade completes")
	}
}

func TestApplyVolumeFadeOutReportsCompletion(t *testing.T) {
	fade := &FadeState{Kind: FadeOut, Gain: 0.1, Step: 0.5, Action: ActionStop}
	samples := make([]float32, 4)
	for i := range samples {
		samples[i] = 1
	}
	done := applyVolumeWithFade(samples, 1.0, fade)
	if !done {
		t.Fatal("expected fade-out to report completion")
	}
	if fade.Gain != 0 {
		t.Fatalf("gain = %v, want 0 (clamped)", fade.Gain)
	}
}

func TestCurrentGainDefaultsToOneWhenNoFade(t *testing.T) {
	fade := &FadeState{Kind: FadeNone}
	if got := fade.currentGain(); got != 1.0 {
		t.Fatalf("currentGain() = %v, want 1.0", got)
	}
}

func TestCurrentGainReturnsInFlightGain(t *testing.T) {
	fade := &FadeState{Kind: FadeOut, Gain: 0.37}
	if got := fade.currentGain(); got != 0.37 {
		t.Fatalf("currentGain() = %v, want 0.37", got)
	}
}
