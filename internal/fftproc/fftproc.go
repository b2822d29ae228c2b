// Package fftproc turns a running stream of post-EQ audio into a 64-bin
// frequency spectrum and a 128-point waveform, for UI visualization.
//
// Ported from original_source/fft.rs. Uses mjibson/go-dsp/fft for the
// transform itself, the same library and Hann-window-then-FFTReal idiom
// richinsley-goshadertoy/inputs/mic.go uses for mic-input spectrum display.
package fftproc

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	fftSize        = 2048
	freqBins       = 64
	waveformPoints = 128
)

// Processor accumulates mono samples in a cyclic buffer and computes a
// spectrum + waveform snapshot on demand.
type Processor struct {
	buffer   []float64
	writePos int
	window   []float64
	enabled  bool
}

// New builds a disabled Processor with a precomputed Hann window.
func New() *Processor {
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	return &Processor{
		buffer: make([]float64, fftSize),
		window: window,
	}
}

// SetEnabled toggles visualization. Disabling zeroes the ring so a later
// re-enable doesn't show stale audio.
func (p *Processor) SetEnabled(enabled bool) {
	p.enabled = enabled
	if !enabled {
		for i := range p.buffer {
			p.buffer[i] = 0
		}
		p.writePos = 0
	}
}

// Enabled reports whether visualization is currently active.
func (p *Processor) Enabled() bool {
	return p.enabled
}

// PushSamples feeds interleaved multi-channel samples, downmixing to mono
// before writing into the cyclic buffer. A no-op when disabled.
func (p *Processor) PushSamples(samples []float32, channels int) {
	if !p.enabled || channels == 0 {
		return
	}

	frames := len(samples) / channels
	for frame := 0; frame < frames; frame++ {
		var mono float64
		for ch := 0; ch < channels; ch++ {
			mono += float64(samples[frame*channels+ch])
		}
		mono /= float64(channels)

		p.buffer[p.writePos] = mono
		p.writePos = (p.writePos + 1) % fftSize
	}
}

// Compute returns (frequency[64], waveform[128]) as u8-range byte arrays.
// When disabled, returns a zero spectrum and a mid-line waveform.
func (p *Processor) Compute() ([]byte, []byte) {
	if !p.enabled {
		freq := make([]byte, freqBins)
		wave := make([]byte, waveformPoints)
		for i := range wave {
			wave[i] = 128
		}
		return freq, wave
	}

	input := make([]float64, fftSize)
	for i := 0; i < fftSize; i++ {
		idx := (p.writePos + i) % fftSize
		input[i] = p.buffer[idx] * p.window[i]
	}

	spectrum := fft.FFTReal(input)

	half := fftSize / 2
	magnitudes := make([]float64, half)
	for i := 0; i < half; i++ {
		c := spectrum[i]
		magnitudes[i] = math.Sqrt(real(c)*real(c)+imag(c)*imag(c)) / float64(fftSize)
	}

	frequency := logBinMagnitudes(magnitudes, freqBins)
	waveform := sampleWaveform(p.buffer, p.writePos, waveformPoints)
	return frequency, waveform
}

// logBinMagnitudes bins magnitudes into numBins bands using square-law
// spacing: bin i aggregates [⌊(i/numBins)²·len⌋, ⌊((i+1)/numBins)²·len⌋),
// taking the max, then maps [-60dB, 0dB] linearly onto [0, 255].
func logBinMagnitudes(magnitudes []float64, numBins int) []byte {
	length := len(magnitudes)
	bins := make([]byte, numBins)

	for i := 0; i < numBins; i++ {
		lo := int(math.Pow(float64(i)/float64(numBins), 2) * float64(length))
		hi := int(math.Pow(float64(i+1)/float64(numBins), 2) * float64(length))
		if lo > length-1 {
			lo = length - 1
		}
		if hi < lo+1 {
			hi = lo + 1
		}
		if hi > length {
			hi = length
		}

		var maxVal float64
		for j := lo; j < hi; j++ {
			if magnitudes[j] > maxVal {
				maxVal = magnitudes[j]
			}
		}

		db := 20 * math.Log10(math.Max(maxVal, 1e-10))
		normalized := (db + 60) / 60
		if normalized < 0 {
			normalized = 0
		} else if normalized > 1 {
			normalized = 1
		}
		bins[i] = byte(normalized * 255)
	}

	return bins
}

// sampleWaveform samples numPoints evenly spaced points from the ring
// buffer, mapping [-1,1] to [0,255] with 128 as the zero line.
func sampleWaveform(buffer []float64, writePos int, numPoints int) []byte {
	length := len(buffer)
	points := make([]byte, numPoints)

	for i := 0; i < numPoints; i++ {
		idx := (writePos + i*length/numPoints) % length
		val := buffer[idx]*127 + 128
		if val < 0 {
			val = 0
		} else if val > 255 {
			val = 255
		}
		points[i] = byte(val)
	}

	return points
}
