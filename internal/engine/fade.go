package engine

// Ported from original_source/engine.rs's FadeState/FadeAction enums and
// fade_step/apply_volume_with_fade functions. Go has no sum types, so the
// three-way enum becomes a Kind tag plus the fields each kind actually uses,
// per spec §9's guidance for languages in that position.

const (
	fadeOutMs = 150.0
	fadeInMs  = 200.0
)

// FadeKind tags which envelope, if any, is currently shaping output gain.
type FadeKind int

const (
	FadeNone FadeKind = iota
	FadeIn
	FadeOut
)

// FadeAction names what happens once a FadeOut envelope reaches silence.
// Only meaningful when Kind == FadeOut.
type FadeAction int

const (
	ActionNone FadeAction = iota
	ActionPause
	ActionStop
	ActionPlayNext
)

// FadeState is the audio thread's single fade-envelope slot; only one fade
// runs at a time.
type FadeState struct {
	Kind FadeKind
	Gain float32
	Step float32

	// Action and NextSource are only meaningful when Kind == FadeOut.
	Action     FadeAction
	NextSource string
}

// fadeStep returns the per-sample gain increment/decrement that completes a
// durationMs fade at the given output rate and channel count (gain changes
// once per interleaved sample, so a stereo stream needs half the per-sample
// step of mono to finish in the same wall-clock time).
func fadeStep(durationMs float32, sampleRate int, channels int) float32 {
	return 1.0 / (durationMs * 0.001 * float32(sampleRate) * float32(channels))
}

// applyVolumeWithFade multiplies samples in place by volume and by the
// active fade envelope, advancing the envelope by len(samples) steps.
// Returns true exactly when a FadeOut envelope has just reached silence,
// telling the caller to execute fade.Action in step 3 of the same loop
// iteration — but after this call still pushes the just-faded samples to
// output, matching the source's "enqueue the silent tail, then act".
func applyVolumeWithFade(samples []float32, volume float32, fade *FadeState) bool {
	switch fade.Kind {
	case FadeNone:
		if volume != 1.0 {
			for i := range samples {
				samples[i] *= volume
			}
		}
		return false

	case FadeIn:
		for i := range samples {
			samples[i] *= volume * fade.Gain
			fade.Gain += fade.Step
			if fade.Gain > 1.0 {
				fade.Gain = 1.0
			}
		}
		if fade.Gain >= 1.0 {
			*fade = FadeState{Kind: FadeNone}
		}
		return false

	case FadeOut:
		for i := range samples {
			samples[i] *= volume * fade.Gain
			fade.Gain -= fade.Step
			if fade.Gain < 0 {
				fade.Gain = 0
			}
		}
		return fade.Gain <= 0

	default:
		return false
	}
}

// currentGain returns the envelope's in-flight gain, or 1.0 when no fade is
// active — used when starting a new fade-out so it continues from wherever
// the previous envelope left off instead of jumping.
func (f *FadeState) currentGain() float32 {
	if f.Kind == FadeNone {
		return 1.0
	}
	return f.Gain
}
