// Package engine runs the audio thread: a single goroutine that owns the
// decoder, resampler, equalizer, visualizer, and output device, driven by a
// command channel and reporting back over an event channel.
//
// The per-iteration loop order — drain commands, decode and feed output,
// resolve a just-completed fade, emit a time event, emit an FFT event,
// sleep — is ported directly from original_source/engine.rs's audio_thread
// function. The realtime device callback itself lives in internal/output;
// this package only ever writes into its ring buffer from a normal
// goroutine, never from the PortAudio callback.
package engine

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/drgolem/musicengine/internal/decoder"
	"github.com/drgolem/musicengine/internal/eq"
	"github.com/drgolem/musicengine/internal/fftproc"
	"github.com/drgolem/musicengine/internal/output"
	"github.com/drgolem/musicengine/internal/resampler"
	"github.com/drgolem/musicengine/pkg/types"
)

const (
	// decodeBatchIterations bounds how many packets a single loop iteration
	// decodes before checking commands/events again, matching the source's
	// `for _ in 0..32`.
	decodeBatchIterations = 32
	// lowWaterSamples is the output-ring headroom below which the thread
	// stops decoding for this iteration (source: `available < 8192`).
	lowWaterSamples = 8192

	timeEmitInterval = 250 * time.Millisecond
	fftEmitInterval  = 33 * time.Millisecond

	playingSleep = 1 * time.Millisecond
	idleSleep    = 10 * time.Millisecond

	defaultFramesPerBuffer = 1024
	// fallbackSampleRate is tried if the device rejects the source's native
	// rate; 44100 Hz is the one virtually every output device supports.
	fallbackSampleRate = 44100
)

// Engine owns the audio thread and exposes a command/event API to callers.
type Engine struct {
	cmdCh   chan Command
	eventCh chan Event
	snap    *snapshotStore
	log     *slog.Logger

	deviceIndex   int
	bufferSeconds float64
	done          chan struct{}
}

// NewEngine starts the audio thread and returns a handle to it. deviceIndex
// selects the PortAudio output device (see cmd/play.go's --device flag).
// bufferSeconds sizes the output ring buffer; 0 uses the default (2s).
func NewEngine(deviceIndex int, bufferSeconds float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cmdCh:         make(chan Command, 256),
		eventCh:       make(chan Event, 64),
		snap:          newSnapshotStore(),
		log:           logger,
		deviceIndex:   deviceIndex,
		bufferSeconds: bufferSeconds,
		done:          make(chan struct{}),
	}
	go e.run()
	return e
}

// Events returns the channel events are published on. Delivery is
// fire-and-forget: a full channel drops the event rather than blocking the
// audio thread.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// Snapshot returns a copy of the current playback state.
func (e *Engine) Snapshot() types.Snapshot {
	return e.snap.get()
}

// Close stops the audio thread and releases its decoder/output device.
func (e *Engine) Close() {
	close(e.done)
}

func (e *Engine) send(cmd Command) {
	select {
	case e.cmdCh <- cmd:
	default:
		e.log.Warn("command channel full, dropping command")
	}
}

func (e *Engine) Play(source string)               { e.send(PlayCmd{Source: source}) }
func (e *Engine) Pause()                           { e.send(PauseCmd{}) }
func (e *Engine) Resume()                          { e.send(ResumeCmd{}) }
func (e *Engine) Stop()                            { e.send(StopCmd{}) }
func (e *Engine) Seek(positionSecs float64)        { e.send(SeekCmd{PositionSecs: positionSecs}) }
func (e *Engine) SetVolume(volume float32)         { e.send(SetVolumeCmd{Volume: volume}) }
func (e *Engine) SetEqBands(gains [10]float32)     { e.send(SetEqBandsCmd{Gains: gains}) }
func (e *Engine) SetEqEnabled(enabled bool)        { e.send(SetEqEnabledCmd{Enabled: enabled}) }
func (e *Engine) EnableVisualization(enabled bool) { e.send(EnableVisualizationCmd{Enabled: enabled}) }

func (e *Engine) emit(evt Event) {
	select {
	case e.eventCh <- evt:
	default:
	}
}

// audioState holds everything the audio thread goroutine owns exclusively.
// No other goroutine touches these fields; cross-goroutine visibility goes
// through cmdCh, eventCh, and snap only.
type audioState struct {
	dec    *decoder.Decoder
	out    *output.Device
	rs     *resampler.Resampler
	rsBuf  []float32
	eq     *eq.Equalizer
	gains  [10]float32
	fft    *fftproc.Processor
	fade   FadeState
	volume float32

	positionSecs     float64
	durationSecs     float64
	isPlaying        bool
	sourceSampleRate int
	sourceChannels   int
}

func (e *Engine) run() {
	st := &audioState{
		eq:               eq.New(44100, 2),
		fft:              fftproc.New(),
		volume:           1.0,
		sourceSampleRate: 44100,
		sourceChannels:   2,
	}
	defer e.teardown(st)

	lastTimeEmit := time.Time{}
	lastFFTEmit := time.Time{}

	for {
		select {
		case <-e.done:
			return
		default:
		}

		e.drainCommands(st)

		fadeCompleted := e.decodeAndFeed(st)

		if fadeCompleted {
			e.resolveFadeCompletion(st)
		}

		now := time.Now()
		if st.isPlaying && now.Sub(lastTimeEmit) >= timeEmitInterval {
			e.emitTime(st)
			lastTimeEmit = now
		}
		if st.fft.Enabled() && now.Sub(lastFFTEmit) >= fftEmitInterval {
			freq, wave := st.fft.Compute()
			e.emit(FFTEvent{Frequency: freq, Waveform: wave})
			lastFFTEmit = now
		}

		if st.isPlaying {
			time.Sleep(playingSleep)
		} else {
			time.Sleep(idleSleep)
		}
	}
}

func (e *Engine) teardown(st *audioState) {
	if st.dec != nil {
		st.dec.Close()
	}
	if st.out != nil {
		st.out.Close()
	}
}

func (e *Engine) drainCommands(st *audioState) {
	for {
		select {
		case cmd := <-e.cmdCh:
			e.handleCommand(st, cmd)
		default:
			return
		}
	}
}

func (e *Engine) handleCommand(st *audioState, cmd Command) {
	switch c := cmd.(type) {
	case PlayCmd:
		e.handlePlay(st, c.Source)
	case PauseCmd:
		e.handlePause(st)
	case ResumeCmd:
		e.handleResume(st)
	case StopCmd:
		e.handleStop(st)
	case SeekCmd:
		e.handleSeek(st, c.PositionSecs)
	case SetVolumeCmd:
		// c.Volume != c.Volume is only true for NaN; clampVolume can't
		// distinguish "clamp to a bound" from "reject", so the no-change
		// guard lives here, where the prior st.volume is still in scope.
		if c.Volume == c.Volume {
			st.volume = clampVolume(c.Volume)
			e.updateSnapshot(st)
		}
	case SetEqBandsCmd:
		st.gains = c.Gains
		st.eq.SetGains(c.Gains)
	case SetEqEnabledCmd:
		st.eq.SetEnabled(c.Enabled)
	case EnableVisualizationCmd:
		st.fft.SetEnabled(c.Enabled)
	}
}

func (e *Engine) handlePlay(st *audioState, source string) {
	if st.isPlaying {
		if st.out != nil {
			st.out.Flush()
		}
		outRate, outCh := st.outputFormat()
		st.fade = FadeState{
			Kind:       FadeOut,
			Gain:       st.fade.currentGain(),
			Step:       fadeStep(fadeOutMs, outRate, outCh),
			Action:     ActionPlayNext,
			NextSource: source,
		}
		return
	}
	e.executePlay(st, source, true)
}

func (e *Engine) handlePause(st *audioState) {
	if !st.isPlaying {
		return
	}
	if st.out != nil {
		st.out.Flush()
	}
	outRate, outCh := st.outputFormat()
	st.fade = FadeState{
		Kind:   FadeOut,
		Gain:   st.fade.currentGain(),
		Step:   fadeStep(fadeOutMs, outRate, outCh),
		Action: ActionPause,
	}
}

func (e *Engine) handleResume(st *audioState) {
	if !st.isPlaying && st.dec != nil {
		st.isPlaying = true
		if st.out != nil {
			st.out.Resume()
		}
		outRate, outCh := st.outputFormat()
		st.fade = FadeState{Kind: FadeIn, Gain: 0, Step: fadeStep(fadeInMs, outRate, outCh)}
		e.updateSnapshot(st)
		e.emit(StateChangedEvent{IsPlaying: true})
		return
	}
	if st.isPlaying && st.fade.Kind == FadeOut && st.fade.Action == ActionPause {
		outRate, outCh := st.outputFormat()
		st.fade = FadeState{Kind: FadeIn, Gain: st.fade.Gain, Step: fadeStep(fadeInMs, outRate, outCh)}
	}
}

func (e *Engine) handleStop(st *audioState) {
	if st.isPlaying {
		if st.out != nil {
			st.out.Flush()
		}
		outRate, outCh := st.outputFormat()
		st.fade = FadeState{
			Kind:   FadeOut,
			Gain:   st.fade.currentGain(),
			Step:   fadeStep(fadeOutMs, outRate, outCh),
			Action: ActionStop,
		}
		return
	}
	e.resetToStopped(st)
}

func (e *Engine) handleSeek(st *audioState, positionSecs float64) {
	if st.dec == nil {
		return
	}
	if err := st.dec.Seek(positionSecs); err != nil {
		e.log.Warn("seek failed", "err", err)
		return
	}
	st.positionSecs = positionSecs
	if st.out != nil {
		st.out.Flush()
	}
	st.eq.Reset()
	e.updateSnapshot(st)
}

// resetToStopped releases everything and returns the thread to its idle
// state, without going through a fade (used when Stop arrives while already
// stopped, and as the terminal step of a Stop-triggered fade-out).
func (e *Engine) resetToStopped(st *audioState) {
	if st.dec != nil {
		st.dec.Close()
		st.dec = nil
	}
	if st.out != nil {
		st.out.Close()
		st.out = nil
	}
	st.rs = nil
	st.rsBuf = nil
	st.positionSecs = 0
	st.durationSecs = 0
	st.isPlaying = false
	st.fade = FadeState{}
	st.fft.SetEnabled(false)
	e.updateSnapshot(st)
	e.emit(StateChangedEvent{IsPlaying: false})
}

// executePlay opens source fresh, wires up output/resampler/EQ for its
// format, and starts playback (optionally fading in).
func (e *Engine) executePlay(st *audioState, source string, withFadeIn bool) {
	if st.dec != nil {
		st.dec.Close()
	}
	if st.out != nil {
		st.out.Close()
	}
	st.dec, st.out, st.rs, st.rsBuf = nil, nil, nil, nil
	st.isPlaying = false
	st.positionSecs = 0

	dec, err := decoder.OpenWithLogger(source, e.log)
	if err != nil {
		e.emit(ErrorEvent{Message: err.Error()})
		return
	}
	info := dec.Info()
	st.sourceSampleRate = info.SampleRate
	st.sourceChannels = info.Channels
	st.durationSecs = info.DurationSecs

	outChannels := info.Channels
	if outChannels > 2 {
		outChannels = 2
	}

	// Prefer opening the device at the source's own rate (no conversion
	// needed). Some devices only accept a fixed set of standard rates, so a
	// failure here falls back to a known-good rate and resamples into it —
	// the same "resampler created only when device rate != source rate"
	// gate the original engine applies, just reached from the other
	// direction since this binding has no device-capability enumeration to
	// consult up front.
	outRate := info.SampleRate
	out, err := output.Open(e.deviceIndex, outRate, outChannels, defaultFramesPerBuffer, e.bufferSeconds, e.log)
	if err != nil {
		outRate = fallbackSampleRate
		out, err = output.Open(e.deviceIndex, outRate, outChannels, defaultFramesPerBuffer, e.bufferSeconds, e.log)
		if err != nil {
			dec.Close()
			e.emit(ErrorEvent{Message: err.Error()})
			return
		}
	}

	var rs *resampler.Resampler
	if outRate != info.SampleRate {
		rs, err = resampler.New(info.SampleRate, outRate, outChannels)
		if err != nil {
			e.log.Warn("resampler init warning", "err", err)
			rs = nil
		}
	}

	effectiveRate := info.SampleRate
	if rs != nil {
		effectiveRate = outRate
	}
	wasEnabled := st.eq.Enabled()
	st.eq = eq.New(effectiveRate, outChannels)
	st.eq.SetGains(st.gains)
	st.eq.SetEnabled(wasEnabled)

	st.dec = dec
	st.out = out
	st.rs = rs
	st.isPlaying = true

	if withFadeIn {
		fadeRate, fadeCh := effectiveRate, outChannels
		st.fade = FadeState{Kind: FadeIn, Gain: 0, Step: fadeStep(fadeInMs, fadeRate, fadeCh)}
	} else {
		st.fade = FadeState{}
	}

	e.updateSnapshot(st)
	e.emit(StateChangedEvent{IsPlaying: true})
}

// outputFormat reports the rate/channel count fades should be timed
// against: the output device's format when one is open, else the source's.
func (st *audioState) outputFormat() (rate, channels int) {
	if st.out != nil {
		return st.out.SampleRate(), st.out.Channels()
	}
	return st.sourceSampleRate, st.sourceChannels
}

// decodeAndFeed decodes up to decodeBatchIterations packets, running them
// through channel conversion, resampling, EQ, visualization, and the fade
// envelope before pushing to the output device. Returns true if a fade-out
// reached silence during this call.
func (e *Engine) decodeAndFeed(st *audioState) bool {
	if !st.isPlaying || st.dec == nil || st.out == nil {
		return false
	}
	outCh := st.out.Channels()

	for i := 0; i < decodeBatchIterations; i++ {
		if st.out.Producer().AvailableWrite() < lowWaterSamples {
			break
		}

		samples, err := st.dec.DecodeNext()
		if errors.Is(err, io.EOF) {
			st.isPlaying = false
			st.fade = FadeState{}
			e.updateSnapshot(st)
			e.emit(EndedEvent{})
			e.emit(StateChangedEvent{IsPlaying: false})
			return false
		}
		if err != nil {
			st.isPlaying = false
			st.fade = FadeState{}
			e.emit(ErrorEvent{Message: err.Error()})
			return false
		}

		decodedCh := st.sourceChannels
		decodedFrames := len(samples) / decodedCh
		if decodedCh != outCh {
			samples = convertChannels(samples, decodedCh, outCh)
		}

		completed := e.pushProcessed(st, samples, outCh)
		if completed {
			return true
		}

		st.positionSecs += float64(decodedFrames) / float64(st.sourceSampleRate)
		if st.durationSecs > 0 && st.positionSecs > st.durationSecs {
			st.positionSecs = st.durationSecs
		}
	}
	return false
}

// pushProcessed resamples (if needed), EQs, feeds the visualizer, applies
// volume/fade, and writes to the output ring. Returns true once a fade-out
// reaches silence.
func (e *Engine) pushProcessed(st *audioState, samples []float32, outCh int) bool {
	if st.rs == nil {
		st.eq.Process(samples)
		st.fft.PushSamples(samples, outCh)
		completed := applyVolumeWithFade(samples, st.volume, &st.fade)
		if _, err := st.out.Producer().Write(samples); err != nil {
			e.log.Warn("output ring overrun, dropping samples", "err", err)
		}
		return completed
	}

	st.rsBuf = append(st.rsBuf, samples...)
	needed := st.rs.InputFramesNeeded() * outCh
	for len(st.rsBuf) >= needed {
		chunk := st.rsBuf[:needed]
		st.rsBuf = append([]float32(nil), st.rsBuf[needed:]...)

		resampled, err := st.rs.Process(chunk)
		if err != nil {
			e.log.Warn("resample error", "err", err)
			continue
		}
		st.eq.Process(resampled)
		st.fft.PushSamples(resampled, outCh)
		completed := applyVolumeWithFade(resampled, st.volume, &st.fade)
		if _, err := st.out.Producer().Write(resampled); err != nil {
			e.log.Warn("output ring overrun, dropping samples", "err", err)
		}
		if completed {
			return true
		}
	}
	return false
}

func (e *Engine) resolveFadeCompletion(st *audioState) {
	fade := st.fade
	st.fade = FadeState{}

	switch fade.Action {
	case ActionPause:
		st.isPlaying = false
		if st.out != nil {
			st.out.Pause()
		}
		e.updateSnapshot(st)
		e.emit(StateChangedEvent{IsPlaying: false})
	case ActionStop:
		e.resetToStopped(st)
	case ActionPlayNext:
		e.executePlay(st, fade.NextSource, true)
	}
}

func (e *Engine) emitTime(st *audioState) {
	playbackPos := st.positionSecs
	if st.out != nil {
		bufferedSamples := float64(st.out.Producer().AvailableRead())
		rate, ch := st.outputFormat()
		bufferedSecs := bufferedSamples / (float64(rate) * float64(ch))
		playbackPos -= bufferedSecs
		if playbackPos < 0 {
			playbackPos = 0
		}
	}
	e.snap.set(st.isPlaying, playbackPos, st.durationSecs, st.volume)
	e.emit(TimeEvent{PositionSecs: playbackPos, DurationSecs: st.durationSecs})
}

func (e *Engine) updateSnapshot(st *audioState) {
	e.snap.set(st.isPlaying, st.positionSecs, st.durationSecs, st.volume)
}

func clampVolume(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// convertChannels remaps interleaved samples between channel counts: plain
// duplication for mono->stereo, averaging for stereo->mono, first-N for a
// wider downmix, and last-channel duplication to fill an upmix.
func convertChannels(samples []float32, fromCh, toCh int) []float32 {
	if fromCh == toCh {
		return samples
	}
	frames := len(samples) / fromCh
	out := make([]float32, 0, frames*toCh)

	switch {
	case fromCh == 1 && toCh == 2:
		for i := 0; i < frames; i++ {
			s := samples[i]
			out = append(out, s, s)
		}
	case fromCh == 2 && toCh == 1:
		for i := 0; i < frames; i++ {
			l, r := samples[i*2], samples[i*2+1]
			out = append(out, (l+r)*0.5)
		}
	case fromCh > toCh:
		for i := 0; i < frames; i++ {
			for ch := 0; ch < toCh; ch++ {
				out = append(out, samples[i*fromCh+ch])
			}
		}
	default:
		for i := 0; i < frames; i++ {
			for ch := 0; ch < toCh; ch++ {
				srcCh := ch
				if srcCh >= fromCh {
					srcCh = fromCh - 1
				}
				out = append(out, samples[i*fromCh+srcCh])
			}
		}
	}
	return out
}
