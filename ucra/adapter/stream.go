package adapter

import (
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/internal/handle"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/abi"
	"github.com/openucra/ucra-go/ucra/stream"
)

// Source supplies notes to a stream. Next returns io.EOF or
// ucra.ErrEndOfStream once it has nothing more to give; an empty slice with
// a nil error asks for one block of silence.
type Source interface {
	Next() ([]ucra.NoteSegment, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() ([]ucra.NoteSegment, error)

// Next calls f.
func (f SourceFunc) Next() ([]ucra.NoteSegment, error) {
	return f()
}

// SliceSource returns a source that yields each batch once and then ends.
func SliceSource(batches ...[]ucra.NoteSegment) Source {
	i := 0
	return SourceFunc(func() ([]ucra.NoteSegment, error) {
		if i >= len(batches) {
			return nil, io.EOF
		}
		b := batches[i]
		i++
		return b, nil
	})
}

// binding is what a pull callback needs to reach its Go source. Bindings
// live in a registry so the user data crossing the entry points is a plain
// token rather than a Go pointer.
type binding struct {
	src     Source
	scratch *Scratch
	err     error
}

var bindings = handle.NewTable[*binding]()

// pullCallback resolves the token and asks the source for notes.
func pullCallback(userData any, out *ucra.RenderConfig) ucra.Status {
	token, ok := userData.(handle.Handle)
	if !ok {
		return ucra.StatusInvalidArgument
	}
	b, ok := bindings.Get(token)
	if !ok {
		return ucra.StatusInvalidArgument
	}

	notes, err := b.src.Next()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, ucra.ErrEndOfStream) {
			return ucra.StatusEndOfStream
		}
		b.err = err
		return ucra.StatusOf(err)
	}
	out.Notes = b.scratch.CopyNotes(notes)
	return ucra.StatusSuccess
}

// Stream reads audio from a stream opened through the entry points.
type Stream struct {
	mu       sync.Mutex
	h        abi.StreamHandle
	token    handle.Handle
	b        *binding
	channels uint32
	rate     uint32
}

// OpenStream opens a stream whose notes come from src. opts are passed to
// stream.Open, e.g. stream.WithEngineOptions or stream.WithRenderer.
func OpenStream(cfg *ucra.RenderConfig, src Source, opts ...stream.Option) (*Stream, error) {
	if cfg == nil || src == nil {
		return nil, &StatusError{Code: ucra.StatusInvalidArgument, Op: "stream_open"}
	}

	b := &binding{src: src, scratch: new(Scratch)}
	token := bindings.Put(b)

	var h abi.StreamHandle
	if err := Check("stream_open", abi.StreamOpen(&h, cfg, pullCallback, token, opts...)); err != nil {
		bindings.Take(token)
		return nil, err
	}
	return &Stream{
		h:        h,
		token:    token,
		b:        b,
		channels: cfg.Channels,
		rate:     cfg.SampleRate,
	}, nil
}

// SampleRate returns the stream's sample rate.
func (s *Stream) SampleRate() uint32 { return s.rate }

// Channels returns the stream's channel count.
func (s *Stream) Channels() uint32 { return s.channels }

// Read fills buf with whole interleaved frames and returns the number of
// frames written. At the end of the stream it returns the remaining frames
// and an error matching ucra.ErrEndOfStream. Source errors are returned
// with their original cause attached.
func (s *Stream) Read(buf []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.b.scratch.Release()

	if s.h == 0 {
		return 0, &StatusError{Code: ucra.StatusInvalidArgument, Op: "stream_read"}
	}
	frames := uint32(len(buf) / int(s.channels))

	var n uint32
	st := abi.StreamRead(s.h, buf, frames, &n)
	if st == ucra.StatusSuccess {
		return int(n), nil
	}
	err := &StatusError{Code: st, Op: "stream_read"}
	if s.b.err != nil {
		err.Cause = s.b.err
		s.b.err = nil
	}
	return int(n), err
}

// Close closes the stream and drops its source. It is safe to call more
// than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h == 0 {
		return
	}
	abi.StreamClose(s.h)
	bindings.Take(s.token)
	s.b.scratch.Release()
	s.h = 0
	log.Debug("Closed adapter stream", "token", s.token)
}

// LiveBindings returns the number of sources kept alive by open streams.
func LiveBindings() int {
	return bindings.Len()
}
