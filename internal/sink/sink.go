// Package sink delivers streamed PCM blocks to their destinations: WAV
// files, NATS subjects, the audio device, or several of those at once.
package sink

import "errors"

// Sink consumes interleaved PCM blocks in order.
type Sink interface {
	Write(pcm []float32) error
	Close() error
}

// Multi writes every block to each sink in turn.
type Multi []Sink

// Write stops at the first failing sink.
func (m Multi) Write(pcm []float32) error {
	for _, s := range m {
		if err := s.Write(pcm); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Discard drops everything written to it.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write([]float32) error { return nil }
func (discard) Close() error          { return nil }
