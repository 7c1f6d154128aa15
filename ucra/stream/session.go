// Package stream implements pull-based streaming sessions. A session asks
// its caller for notes through a pull callback, renders them and hands out
// the audio in whatever frame counts the reader requests.
package stream

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/engines/reference"
)

// PullFunc fills out with the next batch of notes. out arrives pre-filled
// with the negotiated format; the callback sets Notes and may add Options.
// Returning ucra.ErrEndOfStream ends the stream; any other error aborts the
// read that triggered the pull.
type PullFunc func(userData any, out *ucra.RenderConfig) error

// Option configures a session.
type Option func(*Session)

// WithRenderer renders pulled notes with r instead of a private reference
// engine. The session does not take ownership of r.
func WithRenderer(r ucra.Renderer) Option {
	return func(s *Session) {
		s.renderer = r
	}
}

// WithEngineOptions creates the session's private reference engine with
// options, as reference.Create takes them. The sample rate is always the
// stream's. Ignored when WithRenderer is also given.
func WithEngineOptions(options map[string]string) Option {
	return func(s *Session) {
		s.engineOptions = options
	}
}

// WithBufferFrames sets the initial FIFO capacity.
func WithBufferFrames(frames int) Option {
	return func(s *Session) {
		s.bufferFrames = frames
	}
}

// Stats describes session activity.
type Stats struct {
	Pulls         uint64      // Pull callbacks made
	SilenceBlocks uint64      // Pulls that produced no audio
	FramesRead    uint64      // Frames handed to readers
	Buffer        BufferStats // FIFO statistics
	Ended         bool        // The callback signalled end of stream
}

// Session is an open stream. Reads on one session must not overlap.
type Session struct {
	format   ucra.RenderConfig
	pull     PullFunc
	userData any

	renderer      ucra.Renderer
	owned         *reference.Engine
	engineOptions map[string]string
	bufferFrames  int
	buf          *FrameBuffer

	busy   atomic.Bool
	ended  bool
	closed bool
	stats  Stats
}

// Open validates the initial configuration and starts a session. The
// sample rate, channel count and block size must be non-zero and pull must
// be non-nil. Nothing is allocated when validation fails.
func Open(initial *ucra.RenderConfig, pull PullFunc, userData any, opts ...Option) (*Session, error) {
	if initial == nil {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "stream", "open").WithContext("reason", "nil config")
	}
	if initial.SampleRate == 0 || initial.Channels == 0 || initial.BlockSize == 0 {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "stream", "open").
			WithContext("sample_rate", initial.SampleRate).
			WithContext("channels", initial.Channels).
			WithContext("block_size", initial.BlockSize)
	}
	if pull == nil {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "stream", "open").WithContext("reason", "nil pull callback")
	}

	s := &Session{
		format: ucra.RenderConfig{
			SampleRate: initial.SampleRate,
			Channels:   initial.Channels,
			BlockSize:  initial.BlockSize,
			Flags:      initial.Flags,
		},
		pull:     pull,
		userData: userData,
	}
	if len(initial.Options) > 0 {
		s.format.Options = make(map[string]string, len(initial.Options))
		for k, v := range initial.Options {
			s.format.Options[k] = v
		}
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.renderer == nil {
		options := make(map[string]string, len(s.engineOptions)+1)
		for k, v := range s.engineOptions {
			options[k] = v
		}
		options[reference.OptionSampleRate] = strconv.FormatUint(uint64(initial.SampleRate), 10)
		e, err := reference.Create(options)
		if err != nil {
			return nil, err
		}
		s.renderer = e
		s.owned = e
	}

	if c, ok := s.renderer.(ucra.Capable); ok {
		caps := c.Capabilities()
		if !caps.Streaming || !caps.SupportsFormat(initial.SampleRate, initial.Channels) {
			s.owned.Destroy()
			return nil, ucra.NewError(ucra.ErrNotSupported, "stream", "open").
				WithContext("sample_rate", initial.SampleRate).
				WithContext("channels", initial.Channels).
				WithContext("streaming", caps.Streaming)
		}
	}

	frames := 4 * int(initial.BlockSize)
	if s.bufferFrames > frames {
		frames = s.bufferFrames
	}
	s.buf = NewFrameBuffer(frames, int(initial.Channels))

	log.Debug("Opened stream", "sample_rate", initial.SampleRate, "channels", initial.Channels, "block_size", initial.BlockSize)
	return s, nil
}

// SampleRate returns the negotiated sample rate.
func (s *Session) SampleRate() uint32 { return s.format.SampleRate }

// Channels returns the negotiated channel count.
func (s *Session) Channels() uint32 { return s.format.Channels }

// BlockSize returns the negotiated block size.
func (s *Session) BlockSize() uint32 { return s.format.BlockSize }

// Buffered returns the number of frames waiting in the FIFO.
func (s *Session) Buffered() int {
	if s == nil || s.buf == nil {
		return 0
	}
	return s.buf.Frames()
}

// Ended reports whether the pull callback has signalled end of stream.
func (s *Session) Ended() bool { return s.ended }

// Read fills out with up to frames interleaved frames and returns how many
// it wrote. It pulls and renders more notes while the FIFO holds fewer
// frames than requested. When the stream has ended Read returns the
// remaining frames together with ucra.ErrEndOfStream. If the callback
// fails, Read returns 0 and the error; frames already buffered are kept
// for the next call.
func (s *Session) Read(out []float32, frames int) (int, error) {
	if s == nil || s.closed {
		return 0, ucra.NewError(ucra.ErrInvalidArgument, "stream", "read").WithContext("reason", "closed session")
	}
	if frames < 0 || len(out) < frames*int(s.format.Channels) {
		return 0, ucra.NewError(ucra.ErrInvalidArgument, "stream", "read").
			WithContext("frames", frames).
			WithContext("buffer", len(out))
	}
	if frames == 0 {
		return 0, nil
	}
	if !s.busy.CompareAndSwap(false, true) {
		return 0, ucra.NewError(ucra.ErrInternal, "stream", "read").WithContext("reason", "overlapping read")
	}
	defer s.busy.Store(false)

	for s.buf.Frames() < frames && !s.ended {
		if err := s.fill(); err != nil {
			if errors.Is(err, ucra.ErrEndOfStream) {
				s.ended = true
				s.stats.Ended = true
				log.Debug("Stream ended", "buffered", s.buf.Frames(), "pulls", s.stats.Pulls)
				break
			}
			return 0, err
		}
	}

	n := s.buf.Read(out, frames)
	s.stats.FramesRead += uint64(n)
	if n < frames && s.ended {
		return n, ucra.ErrEndOfStream
	}
	return n, nil
}

// fill pulls one batch of notes and appends its audio to the FIFO.
func (s *Session) fill() error {
	cfg := s.format
	if s.format.Options != nil {
		cfg.Options = make(map[string]string, len(s.format.Options))
		for k, v := range s.format.Options {
			cfg.Options[k] = v
		}
	}

	s.stats.Pulls++
	if err := s.pull(s.userData, &cfg); err != nil {
		if errors.Is(err, ucra.ErrEndOfStream) {
			return err
		}
		return fmt.Errorf("stream pull: %w", err)
	}

	// The negotiated format wins over anything the callback wrote.
	cfg.SampleRate = s.format.SampleRate
	cfg.Channels = s.format.Channels
	cfg.BlockSize = s.format.BlockSize

	res, err := s.renderer.Render(&cfg)
	if err != nil {
		return fmt.Errorf("stream render: %w", err)
	}

	if res.Frames == 0 {
		s.stats.SilenceBlocks++
		s.buf.WriteSilence(int(s.format.BlockSize))
		return nil
	}
	if res.Channels != s.format.Channels {
		return ucra.NewError(ucra.ErrInternal, "stream", "render").
			WithContext("channels", res.Channels).
			WithContext("want", s.format.Channels)
	}

	samples := res.Frames * uint64(res.Channels)
	if uint64(len(res.PCM)) < samples {
		return ucra.NewError(ucra.ErrInternal, "stream", "render").WithContext("reason", "short pcm")
	}
	return s.buf.Write(res.PCM[:samples])
}

// Stats returns a snapshot of session activity.
func (s *Session) Stats() Stats {
	st := s.stats
	if s.buf != nil {
		st.Buffer = s.buf.GetStats()
	}
	return st
}

// Close releases the session. It is safe to call on a nil session and more
// than once.
func (s *Session) Close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	s.owned.Destroy()
	s.owned = nil
	s.renderer = nil
	s.pull = nil
	s.userData = nil
	if s.buf != nil {
		s.buf.Clear()
		s.buf = nil
	}
	log.Debug("Closed stream", "pulls", s.stats.Pulls, "frames_read", s.stats.FramesRead)
}
