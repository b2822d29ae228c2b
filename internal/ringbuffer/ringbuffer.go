// Package ringbuffer implements a lock-free single-producer single-consumer
// queue of float32 samples sized for a few seconds of interleaved audio.
package ringbuffer

import (
	"sync/atomic"

	"github.com/drgolem/musicengine/pkg/types"
)

// Re-export common ringbuffer errors for callers that already import pkg/types.
var (
	ErrInsufficientSpace = types.ErrInsufficientSpace
	ErrInsufficientData  = types.ErrInsufficientData
)

// RingBuffer is a lock-free SPSC ring buffer of float32 samples.
//
// The producer side (Write, AvailableWrite) is exclusively owned by the audio
// thread; the consumer side (Read, AvailableRead) is exclusively owned by the
// realtime device callback. Write never blocks and never partially writes:
// it either writes every sample or returns ErrInsufficientSpace having
// written nothing. Read may return fewer samples than requested.
type RingBuffer struct {
	buffer   []float32
	size     uint64 // power of 2
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a ring buffer sized for at least `size` samples, rounded up to
// the next power of 2.
func New(size uint64) *RingBuffer {
	size = nextPowerOf2(size)
	return &RingBuffer{
		buffer: make([]float32, size),
		size:   size,
		mask:   size - 1,
	}
}

// Write writes every sample in data or none of them.
func (rb *RingBuffer) Write(data []float32) (int, error) {
	dataLen := uint64(len(data))
	if dataLen == 0 {
		return 0, nil
	}

	if dataLen > rb.AvailableWrite() {
		return 0, ErrInsufficientSpace
	}

	writePos := rb.writePos.Load()
	start := writePos & rb.mask
	end := (writePos + dataLen) & rb.mask

	if end > start || dataLen == 0 {
		copy(rb.buffer[start:start+dataLen], data)
	} else {
		firstChunk := rb.size - start
		copy(rb.buffer[start:], data[:firstChunk])
		copy(rb.buffer[:end], data[firstChunk:])
	}

	rb.writePos.Store(writePos + dataLen)
	return int(dataLen), nil
}

// Read copies up to len(data) samples into data, returning how many were
// actually available. Returns ErrInsufficientData only when nothing at all
// is available, matching io.Reader-style "no data yet" semantics.
func (rb *RingBuffer) Read(data []float32) (int, error) {
	dataLen := uint64(len(data))
	if dataLen == 0 {
		return 0, nil
	}

	available := rb.AvailableRead()
	if available == 0 {
		return 0, ErrInsufficientData
	}

	toRead := min(dataLen, available)
	readPos := rb.readPos.Load()
	start := readPos & rb.mask
	end := (readPos + toRead) & rb.mask

	if end > start {
		copy(data[:toRead], rb.buffer[start:end])
	} else {
		firstChunk := rb.size - start
		copy(data[:firstChunk], rb.buffer[start:])
		copy(data[firstChunk:toRead], rb.buffer[:end])
	}

	rb.readPos.Store(readPos + toRead)
	return int(toRead), nil
}

// AvailableWrite returns the number of samples that can be written right now.
func (rb *RingBuffer) AvailableWrite() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return rb.size - (writePos - readPos)
}

// AvailableRead returns the number of samples that can be read right now.
func (rb *RingBuffer) AvailableRead() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return writePos - readPos
}

// Size returns the buffer's capacity in samples.
func (rb *RingBuffer) Size() uint64 {
	return rb.size
}

// Flush discards all buffered samples without copying, used on seek and
// mid-play track changes so stale audio never reaches the device.
func (rb *RingBuffer) Flush() {
	readPos := rb.writePos.Load()
	rb.readPos.Store(readPos)
}

// Reset clears both positions, returning the buffer to empty.
func (rb *RingBuffer) Reset() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}

func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
