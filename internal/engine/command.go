package engine

// Command is a request sent from the controlling goroutine (CLI, IPC layer,
// etc.) to the audio thread. The thread drains every pending command at the
// top of each loop iteration before touching audio, so senders never block
// waiting on playback.
type Command interface {
	isCommand()
}

// PlayCmd opens source and starts playback. If something is already
// playing, the engine fades it out first and switches once the fade
// completes (see FadeState).
type PlayCmd struct {
	Source string
}

// PauseCmd fades the current playback out, then stops feeding the device.
type PauseCmd struct{}

// ResumeCmd restarts a paused source with a fade-in, or — if sent while a
// pause-triggered fade-out is still in flight — reverses that fade back
// into a fade-in without ever reaching silence.
type ResumeCmd struct{}

// StopCmd fades the current playback out, then releases the decoder and
// output device entirely.
type StopCmd struct{}

// SeekCmd jumps to an absolute position in the current source. Does not
// cancel any fade already in progress.
type SeekCmd struct {
	PositionSecs float64
}

// SetVolumeCmd sets the linear volume multiplier, clamped to [0, 1].
type SetVolumeCmd struct {
	Volume float32
}

// SetEqBandsCmd replaces all 10 band gains (dB) at once.
type SetEqBandsCmd struct {
	Gains [10]float32
}

// SetEqEnabledCmd toggles the equalizer on or off.
type SetEqEnabledCmd struct {
	Enabled bool
}

// EnableVisualizationCmd toggles FFT/waveform computation and emission.
type EnableVisualizationCmd struct {
	Enabled bool
}

func (PlayCmd) isCommand()                {}
func (PauseCmd) isCommand()               {}
func (ResumeCmd) isCommand()              {}
func (StopCmd) isCommand()                {}
func (SeekCmd) isCommand()                {}
func (SetVolumeCmd) isCommand()           {}
func (SetEqBandsCmd) isCommand()          {}
func (SetEqEnabledCmd) isCommand()        {}
func (EnableVisualizationCmd) isCommand() {}
