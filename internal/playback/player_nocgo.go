//go:build nocgo

package playback

import "time"

// Player is unavailable in nocgo builds.
type Player struct{}

// New always fails with ErrUnavailable.
func New(cfg Config) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}

func (p *Player) Write([]float32) error { return ErrUnavailable }

func (p *Player) Played() time.Duration { return 0 }

func (p *Player) Close() error { return nil }
