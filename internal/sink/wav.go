package sink

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/internal/wavio"
)

// WAV writes blocks to a WAV file, finishing the header on Close.
type WAV struct {
	f *os.File
	w *wavio.Writer
}

// NewWAV creates path and starts a WAV stream in it.
func NewWAV(path string, sampleRate, channels, bitDepth int) (*WAV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w, err := wavio.NewWriter(f, sampleRate, channels, bitDepth)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &WAV{f: f, w: w}, nil
}

func (s *WAV) Write(pcm []float32) error {
	return s.w.Write(pcm)
}

// Frames returns the number of frames written.
func (s *WAV) Frames() int { return s.w.Frames() }

func (s *WAV) Close() error {
	err := s.w.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	log.Debug("WAV sink closed", "file", s.f.Name(), "frames", s.w.Frames())
	return err
}
