//go:build !nocgo

package playback

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so its format is fixed by the
// first player.
var (
	deviceOnce sync.Once
	device     *oto.Context
	deviceCfg  Config
	deviceErr  error
)

func openDevice(cfg Config) (*oto.Context, error) {
	deviceOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   cfg.Buffer,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			deviceErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		<-ready
		device, deviceCfg = ctx, cfg
		log.Debug("Audio device ready", "sample_rate", cfg.SampleRate, "channels", cfg.Channels)
	})
	if deviceErr != nil {
		return nil, deviceErr
	}
	if deviceCfg.SampleRate != cfg.SampleRate || deviceCfg.Channels != cfg.Channels {
		return nil, fmt.Errorf("audio device already open at %d Hz, %d channels",
			deviceCfg.SampleRate, deviceCfg.Channels)
	}
	return device, nil
}

// Player feeds PCM blocks to the audio device as they arrive. Write blocks
// while the device buffer is full, which paces a producer to real time.
type Player struct {
	cfg    Config
	player *oto.Player
	pw     *io.PipeWriter
	buf    []byte

	mu     sync.Mutex
	frames int
	closed bool
}

// New opens the audio device for cfg and starts playback.
func New(cfg Config) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, err := openDevice(cfg)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	p := &Player{cfg: cfg, pw: pw}
	p.player = ctx.NewPlayer(pr)
	p.player.Play()
	return p, nil
}

// Write queues interleaved samples for playback.
func (p *Player) Write(pcm []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("player is closed")
	}
	if len(pcm)%p.cfg.Channels != 0 {
		return fmt.Errorf("partial frame: %d samples for %d channels", len(pcm), p.cfg.Channels)
	}
	p.buf = encode(p.buf[:0], pcm)
	if _, err := p.pw.Write(p.buf); err != nil {
		return fmt.Errorf("failed to queue audio: %w", err)
	}
	p.frames += len(pcm) / p.cfg.Channels
	return nil
}

// Played returns the duration handed to the device so far.
func (p *Player) Played() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Duration(p.frames)
}

// Close waits for queued audio to drain and releases the player.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	_ = p.pw.Close()
	for p.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return p.player.Close()
}
