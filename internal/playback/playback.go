// Package playback plays rendered PCM on the local audio device using
// oto/v3. Builds with the nocgo tag get a player that always reports
// ErrUnavailable.
package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrUnavailable is returned when no audio device can be used.
var ErrUnavailable = errors.New("audio playback not available")

// Config describes the PCM format handed to a player.
type Config struct {
	SampleRate int
	Channels   int
	// Buffer is the device buffer length. Zero lets oto choose.
	Buffer time.Duration
}

// DefaultConfig returns a mono 44.1 kHz configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		Channels:   1,
		Buffer:     100 * time.Millisecond,
	}
}

// Validate checks the format against what the device layer accepts.
func (c Config) Validate() error {
	if c.SampleRate <= 0 || c.SampleRate > 192000 {
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Channels)
	}
	if c.Buffer < 0 {
		return fmt.Errorf("invalid buffer length: %v", c.Buffer)
	}
	return nil
}

// Duration returns how long frames frames last at this format.
func (c Config) Duration(frames int) time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// encode appends interleaved samples as float32 little endian, the byte
// layout the device context is opened with.
func encode(dst []byte, pcm []float32) []byte {
	for _, s := range pcm {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}

// Recorder is a player that keeps everything written to it. The stream
// command uses it for --dry-run and tests use it in place of a device.
type Recorder struct {
	mu     sync.Mutex
	cfg    Config
	pcm    []float32
	writes int
	closed bool
}

// NewRecorder creates a recorder for cfg.
func NewRecorder(cfg Config) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Recorder{cfg: cfg}, nil
}

// Write records pcm.
func (r *Recorder) Write(pcm []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("recorder is closed")
	}
	if len(pcm)%r.cfg.Channels != 0 {
		return fmt.Errorf("partial frame: %d samples for %d channels", len(pcm), r.cfg.Channels)
	}
	r.pcm = append(r.pcm, pcm...)
	r.writes++
	return nil
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// PCM returns a copy of the recorded samples.
func (r *Recorder) PCM() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float32(nil), r.pcm...)
}

// Writes returns the number of successful writes.
func (r *Recorder) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Played returns the duration of the recorded audio.
func (r *Recorder) Played() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Duration(len(r.pcm) / r.cfg.Channels)
}
