// Package decoder opens a local file or HTTP(S) URL via a probe-then-codec
// pattern and exposes decoded audio as interleaved float32 samples in
// [-1, 1], regardless of the source codec's native bit depth.
package decoder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/drgolem/musicengine/internal/decoder/flac"
	"github.com/drgolem/musicengine/internal/decoder/mp3"
	"github.com/drgolem/musicengine/internal/decoder/wav"
)

// packetFrames is the number of frames requested per DecodeNext call. Kept
// small so volume/EQ parameter changes (which apply "from the next enqueued
// packet", spec §4.2) are audibly smooth rather than chunky.
const packetFrames = 1024

// Info holds the constant attributes of the active source, set once at open.
type Info struct {
	SampleRate   int
	Channels     int
	DurationSecs float64 // 0 if unknown (e.g. live/streamed source)
}

// rawDecoder is the shape every codec-specific wrapper implements: decode
// into raw, native-bit-depth PCM bytes. This is the teacher's own
// pkg/types.AudioDecoder shape, kept because every codec package already
// speaks it.
type rawDecoder interface {
	Open(fileName string) error
	Close() error
	GetFormat() (rate, channels, bitsPerSample int)
	DecodeSamples(samples int, audio []byte) (int, error)
}

// Decoder wraps a codec-specific rawDecoder, normalizing its native PCM
// output into interleaved float32 samples and providing seek.
type Decoder struct {
	source   string
	raw      rawDecoder
	newRaw   func() rawDecoder
	info     Info
	bps      int
	channels int

	// framesDecoded tracks the logical read position in frames, used to
	// implement Seek by reopen-and-discard for codecs with no native
	// mid-stream seek API.
	framesDecoded int64

	// tmp is set only for HTTP sources: codec libraries here take file
	// paths, so the stream is spooled into a growing temp file that the
	// codec decoder reads from as bytes arrive.
	tmp *spooledFile

	log *slog.Logger
}

// Open resolves source (a filesystem path or http(s):// URL), probes its
// extension for a format hint, and returns a ready-to-decode Decoder.
func Open(source string) (*Decoder, error) {
	return OpenWithLogger(source, slog.Default())
}

// OpenWithLogger is Open with an explicit logger, used by tests and by the
// engine so HTTP-worker logs carry the engine's own logger.
func OpenWithLogger(source string, logger *slog.Logger) (*Decoder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	isHTTP := strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")

	ext := strings.ToLower(filepath.Ext(source))
	newRaw, err := newRawDecoderFor(ext)
	if err != nil {
		return nil, err
	}

	d := &Decoder{source: source, newRaw: newRaw, log: logger}

	path := source
	if isHTTP {
		sp, err := newSpooledFile(source, logger)
		if err != nil {
			return nil, fmt.Errorf("open http source: %w", err)
		}
		d.tmp = sp
		path = sp.path
	} else {
		if _, err := os.Stat(source); err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
	}

	raw := newRaw()
	if err := raw.Open(path); err != nil {
		if d.tmp != nil {
			d.tmp.Close()
		}
		return nil, fmt.Errorf("probe/open codec: %w", err)
	}
	d.raw = raw

	rate, channels, bps := raw.GetFormat()
	d.bps = bps
	d.channels = channels
	d.info = Info{SampleRate: rate, Channels: channels}

	return d, nil
}

// Info returns the decoded track's constant attributes.
func (d *Decoder) Info() Info {
	return d.info
}

// DecodeNext reads the next packet, returning interleaved float samples in
// [-1,1]. Returns io.EOF at end of stream. Transient decode errors are
// logged and retried with the next packet rather than propagated, per
// spec §4.3/§7.
func (d *Decoder) DecodeNext() ([]float32, error) {
	bytesPerSample := d.bps / 8
	if bytesPerSample == 0 {
		bytesPerSample = 2
	}
	buf := make([]byte, packetFrames*d.channels*bytesPerSample)

	for {
		n, err := d.raw.DecodeSamples(packetFrames, buf)
		if n == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			// Recoverable: log and retry the next packet, unless the
			// underlying stream has truly ended (HTTP spool not yet caught
			// up looks the same as EOF to some decoders; retrying is safe
			// because DecodeSamples is idempotent on a stalled stream).
			d.log.Warn("decode error, skipping packet", "source", d.source, "err", err)
			continue
		}
		if n == 0 {
			return nil, io.EOF
		}

		samples := normalize(buf[:n*d.channels*bytesPerSample], d.bps, n*d.channels)
		d.framesDecoded += int64(n)
		return samples, nil
	}
}

// Seek repositions to positionSecs. Codec libraries here have no native
// mid-stream seek API, so Seek reopens the source and discards decoded
// packets until the target time is reached or passed — "accurate enough"
// per spec §4.3's "at or near the target time", bounded by packet size.
func (d *Decoder) Seek(positionSecs float64) error {
	if positionSecs < 0 {
		positionSecs = 0
	}

	if err := d.raw.Close(); err != nil {
		d.log.Warn("close before seek", "err", err)
	}

	path := d.source
	if d.tmp != nil {
		path = d.tmp.path
	}

	raw := d.newRaw()
	if err := raw.Open(path); err != nil {
		return fmt.Errorf("reopen for seek: %w", err)
	}
	d.raw = raw
	d.framesDecoded = 0

	targetFrames := int64(positionSecs * float64(d.info.SampleRate))
	bytesPerSample := d.bps / 8
	if bytesPerSample == 0 {
		bytesPerSample = 2
	}
	buf := make([]byte, packetFrames*d.channels*bytesPerSample)
	for d.framesDecoded < targetFrames {
		n, err := raw.DecodeSamples(packetFrames, buf)
		if n == 0 {
			if err != nil {
				return nil // ran out of stream before reaching target; stay at EOF
			}
			break
		}
		d.framesDecoded += int64(n)
	}
	return nil
}

// Close releases the codec decoder and any spooled HTTP temp file.
func (d *Decoder) Close() error {
	var err error
	if d.raw != nil {
		err = d.raw.Close()
	}
	if d.tmp != nil {
		d.tmp.Close()
	}
	return err
}

func newRawDecoderFor(ext string) (func() rawDecoder, error) {
	switch ext {
	case ".mp3":
		return func() rawDecoder { return mp3.NewDecoder() }, nil
	case ".flac", ".fla":
		return func() rawDecoder { return flac.NewDecoder() }, nil
	case ".wav":
		return func() rawDecoder { return wav.NewDecoder() }, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", ext)
	}
}

// normalize converts raw native-bit-depth PCM bytes into interleaved float32
// samples in [-1,1], per the conversion table in original_source's
// audio_buf_to_f32 (u8 unsigned-offset, s16/s24/s32 signed full-scale).
func normalize(raw []byte, bitsPerSample int, count int) []float32 {
	out := make([]float32, 0, count)
	switch bitsPerSample {
	case 8:
		for i := 0; i < count && i < len(raw); i++ {
			out = append(out, (float32(raw[i])-128.0)/128.0)
		}
	case 16:
		for i := 0; i+1 < len(raw) && len(out) < count; i += 2 {
			v := int16(uint16(raw[i]) | uint16(raw[i+1])<<8)
			out = append(out, float32(v)/32768.0)
		}
	case 24:
		for i := 0; i+2 < len(raw) && len(out) < count; i += 3 {
			v := int32(uint32(raw[i]) | uint32(raw[i+1])<<8 | uint32(raw[i+2])<<16)
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF // sign-extend
			}
			out = append(out, float32(v)/8388608.0)
		}
	case 32:
		for i := 0; i+3 < len(raw) && len(out) < count; i += 4 {
			v := int32(uint32(raw[i]) | uint32(raw[i+1])<<8 | uint32(raw[i+2])<<16 | uint32(raw[i+3])<<24)
			out = append(out, float32(v)/2147483648.0)
		}
	default:
		// Unsupported native depth: treat as silence rather than
		// misinterpreting bytes, matching original_source's "skip packet".
		for len(out) < count {
			out = append(out, 0)
		}
	}
	return out
}
