package sink

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Paced holds each block back until its frames are due at the sample
// rate, so sinks without a device clock receive audio in real time.
type Paced struct {
	ctx      context.Context
	next     Sink
	lim      *rate.Limiter
	channels int
}

// NewPaced paces writes to next at sampleRate frames per second. Up to
// burst frames may pass without waiting; zero allows a tenth of a second.
func NewPaced(ctx context.Context, next Sink, sampleRate, channels, burst int) (*Paced, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid format %d Hz, %d channels", sampleRate, channels)
	}
	if burst <= 0 {
		burst = max(sampleRate/10, 1)
	}
	return &Paced{
		ctx:      ctx,
		next:     next,
		lim:      rate.NewLimiter(rate.Limit(sampleRate), burst),
		channels: channels,
	}, nil
}

// Write waits for the block's frames and forwards it. Blocks larger than
// the burst are forwarded in pieces.
func (p *Paced) Write(pcm []float32) error {
	step := p.lim.Burst() * p.channels
	for len(pcm) > 0 {
		n := min(len(pcm), step)
		if err := p.lim.WaitN(p.ctx, n/p.channels); err != nil {
			return fmt.Errorf("pacing cancelled: %w", err)
		}
		if err := p.next.Write(pcm[:n]); err != nil {
			return err
		}
		pcm = pcm[n:]
	}
	return nil
}

func (p *Paced) Close() error {
	return p.next.Close()
}
