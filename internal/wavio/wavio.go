// Package wavio reads and writes PCM WAV files holding interleaved float
// samples in [-1, 1].
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultBitDepth is the sample size used when none is given.
const DefaultBitDepth = 16

// ErrInvalidFile is returned for files that are not PCM WAV.
var ErrInvalidFile = errors.New("invalid WAV file")

// Audio is decoded WAV content.
type Audio struct {
	PCM        []float32 // Interleaved samples
	Channels   int
	SampleRate int
	BitDepth   int
}

// Frames returns the number of frames in a.
func (a *Audio) Frames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.PCM) / a.Channels
}

// Mono returns the first channel of a.
func (a *Audio) Mono() []float32 {
	if a.Channels <= 1 {
		return a.PCM
	}
	out := make([]float32, a.Frames())
	for i := range out {
		out[i] = a.PCM[i*a.Channels]
	}
	return out
}

// Writer encodes float frames into a WAV stream.
type Writer struct {
	enc      *wav.Encoder
	buf      *audio.IntBuffer
	channels int
	scale    float64
	frames   int
}

// NewWriter starts a WAV stream on w. bitDepth 0 selects 16 bits.
func NewWriter(w io.WriteSeeker, sampleRate, channels, bitDepth int) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wav: invalid format %d Hz, %d channels", sampleRate, channels)
	}
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("wav: unsupported bit depth %d", bitDepth)
	}

	return &Writer{
		enc: wav.NewEncoder(w, sampleRate, bitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		channels: channels,
		scale:    math.Pow(2, float64(bitDepth-1)) - 1,
	}, nil
}

// Write appends interleaved frames. len(pcm) must be a whole number of
// frames.
func (w *Writer) Write(pcm []float32) error {
	if len(pcm)%w.channels != 0 {
		return fmt.Errorf("wav: %d samples is not a whole number of %d-channel frames", len(pcm), w.channels)
	}
	if cap(w.buf.Data) < len(pcm) {
		w.buf.Data = make([]int, len(pcm))
	}
	w.buf.Data = w.buf.Data[:len(pcm)]
	for i, v := range pcm {
		w.buf.Data[i] = int(math.Round(clamp(float64(v)) * w.scale))
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	w.frames += len(pcm) / w.channels
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int { return w.frames }

// Close finishes the header. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.enc.Close()
}

// WriteFile writes pcm to a new file at path.
func WriteFile(path string, pcm []float32, sampleRate, channels, bitDepth int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := NewWriter(f, sampleRate, channels, bitDepth)
	if err != nil {
		return err
	}
	if err := w.Write(pcm); err != nil {
		return err
	}
	return w.Close()
}

// Read decodes a whole WAV stream.
func Read(r io.ReadSeeker) (*Audio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	depth := int(dec.BitDepth)
	if depth == 0 || buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, ErrInvalidFile
	}

	factor := math.Pow(2, float64(depth-1))
	a := &Audio{
		PCM:        make([]float32, len(buf.Data)),
		Channels:   buf.Format.NumChannels,
		SampleRate: buf.Format.SampleRate,
		BitDepth:   depth,
	}
	for i, v := range buf.Data {
		a.PCM[i] = float32(float64(v) / factor)
	}
	return a, nil
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return Read(f)
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
