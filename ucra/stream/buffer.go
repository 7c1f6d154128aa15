package stream

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// MinBufferFrames is the smallest ring a session allocates.
const MinBufferFrames = 4096

// FrameBuffer is a growable FIFO of interleaved PCM frames backed by a
// ring. It never drops frames: writes that do not fit grow the ring.
type FrameBuffer struct {
	// Ring buffer storage, in samples
	data     []float32
	channels int

	// Ring buffer indices, in samples
	head int // write position
	tail int // read position
	size int32

	mu sync.Mutex

	stats BufferStats
}

// BufferStats tracks buffer performance metrics.
type BufferStats struct {
	TotalWritten uint64 // Frames appended
	TotalRead    uint64 // Frames consumed
	Grows        uint64 // Times the ring was enlarged
	CurrentSize  int    // Frames buffered now
	PeakSize     int    // Most frames ever buffered
	Capacity     int    // Ring capacity in frames
}

// NewFrameBuffer creates a buffer holding at least capacity frames of the
// given channel count.
func NewFrameBuffer(capacity, channels int) *FrameBuffer {
	if channels <= 0 {
		channels = 1
	}
	if capacity < MinBufferFrames {
		capacity = MinBufferFrames
	}
	return &FrameBuffer{
		data:     make([]float32, capacity*channels),
		channels: channels,
		stats:    BufferStats{Capacity: capacity},
	}
}

// Channels returns the interleave width of the buffer.
func (b *FrameBuffer) Channels() int {
	return b.channels
}

// Frames returns the number of buffered frames.
func (b *FrameBuffer) Frames() int {
	return int(atomic.LoadInt32(&b.size)) / b.channels
}

// Capacity returns the current ring size in frames.
func (b *FrameBuffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data) / b.channels
}

// Write appends whole frames from samples. A trailing partial frame is an
// error and nothing is written.
func (b *FrameBuffer) Write(samples []float32) error {
	if len(samples)%b.channels != 0 {
		return fmt.Errorf("frame buffer: %d samples is not a multiple of %d channels", len(samples), b.channels)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.ensure(len(samples))
	n := copy(b.data[b.head:], samples)
	if n < len(samples) {
		copy(b.data, samples[n:])
	}
	b.head = (b.head + len(samples)) % len(b.data)
	b.added(len(samples) / b.channels)
	return nil
}

// WriteSilence appends frames of zeros.
func (b *FrameBuffer) WriteSilence(frames int) {
	if frames <= 0 {
		return
	}
	samples := frames * b.channels

	b.mu.Lock()
	defer b.mu.Unlock()

	b.ensure(samples)
	for i := 0; i < samples; i++ {
		b.data[(b.head+i)%len(b.data)] = 0
	}
	b.head = (b.head + samples) % len(b.data)
	b.added(frames)
}

// Read moves up to frames frames into dst and returns how many were moved.
// dst must hold frames*Channels() samples.
func (b *FrameBuffer) Read(dst []float32, frames int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	avail := int(b.size) / b.channels
	if frames > avail {
		frames = avail
	}
	if room := len(dst) / b.channels; frames > room {
		frames = room
	}
	if frames <= 0 {
		return 0
	}

	samples := frames * b.channels
	n := copy(dst[:samples], b.data[b.tail:])
	if n < samples {
		copy(dst[n:samples], b.data)
	}
	b.tail = (b.tail + samples) % len(b.data)
	atomic.AddInt32(&b.size, -int32(samples))

	b.stats.TotalRead += uint64(frames)
	b.stats.CurrentSize = int(b.size) / b.channels
	return frames
}

// Clear drops all buffered frames.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.tail = 0
	atomic.StoreInt32(&b.size, 0)
	b.stats.CurrentSize = 0
}

// GetStats returns buffer statistics.
func (b *FrameBuffer) GetStats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// ensure grows the ring so that extra more samples fit. Caller holds mu.
func (b *FrameBuffer) ensure(extra int) {
	need := int(b.size) + extra
	if need <= len(b.data) {
		return
	}

	capacity := len(b.data)
	for capacity < need {
		capacity *= 2
	}

	grown := make([]float32, capacity)
	size := int(b.size)
	n := copy(grown, b.data[b.tail:])
	if n < size {
		copy(grown[n:], b.data[:b.head])
	}
	b.data = grown
	b.tail = 0
	b.head = size

	b.stats.Grows++
	b.stats.Capacity = capacity / b.channels
}

// added records frames appended. Caller holds mu.
func (b *FrameBuffer) added(frames int) {
	atomic.AddInt32(&b.size, int32(frames*b.channels))
	b.stats.TotalWritten += uint64(frames)
	b.stats.CurrentSize = int(b.size) / b.channels
	if b.stats.CurrentSize > b.stats.PeakSize {
		b.stats.PeakSize = b.stats.CurrentSize
	}
}

// String returns a summary of the statistics.
func (s BufferStats) String() string {
	return fmt.Sprintf("written=%d read=%d buffered=%d peak=%d capacity=%d grows=%d",
		s.TotalWritten, s.TotalRead, s.CurrentSize, s.PeakSize, s.Capacity, s.Grows)
}
