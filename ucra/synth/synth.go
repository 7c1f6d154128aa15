package synth

import (
	"math"

	"github.com/openucra/ucra-go/ucra"
)

// MaxSamples bounds the interleaved samples of one render regardless of
// the engine's own limit.
const MaxSamples int64 = 1 << 30

// Gain is the peak amplitude of a full velocity note with a unit envelope.
const Gain = 0.2

// Output describes a finished render. PCM aliases the buffer handed to
// Render when it was large enough.
type Output struct {
	PCM        []float32
	Frames     uint64
	Channels   uint32
	SampleRate uint32
}

// Samples returns the interleaved sample count.
func (o Output) Samples() uint64 {
	return o.Frames * uint64(o.Channels)
}

// Format resolves the output channel count and sample rate for cfg. A zero
// rate in cfg keeps current.
func Format(cfg *ucra.RenderConfig, current uint32) (channels, rate uint32) {
	channels = cfg.Channels
	if channels == 0 {
		channels = 1
	}
	rate = current
	if cfg.SampleRate > 0 {
		rate = cfg.SampleRate
	}
	return channels, rate
}

// FrameCount returns the number of frames needed for duration seconds at
// rate, rounded to nearest and never less than one.
func FrameCount(duration float64, rate uint32) uint64 {
	frames := uint64(duration*float64(rate) + 0.5)
	if frames == 0 {
		frames = 1
	}
	return frames
}

// Render mixes the notes of cfg into buf. A buffer with enough capacity is
// reused; otherwise a new one is allocated. maxSamples > 0 caps the number
// of interleaved samples a single render may produce, never more than
// MaxSamples; exceeding it returns ucra.ErrOutOfMemory and leaves buf
// untouched.
func Render(cfg *ucra.RenderConfig, rate uint32, buf []float32, maxSamples int64) (Output, error) {
	if cfg == nil {
		return Output{}, ucra.NewError(ucra.ErrInvalidArgument, "synth", "render").WithContext("reason", "nil config")
	}
	channels, rate := Format(cfg, rate)
	if rate == 0 {
		return Output{}, ucra.NewError(ucra.ErrInvalidArgument, "synth", "render").WithContext("reason", "zero sample rate")
	}

	out := Output{Channels: channels, SampleRate: rate}

	duration := cfg.Duration()
	if duration <= 0 {
		return out, nil
	}

	limit := maxSamples
	if limit <= 0 || limit > MaxSamples {
		limit = MaxSamples
	}
	if duration*float64(rate)*float64(channels) > float64(limit) {
		return Output{}, ucra.NewError(ucra.ErrOutOfMemory, "synth", "render").
			WithContext("seconds", duration).
			WithContext("limit", limit)
	}
	frames := FrameCount(duration, rate)
	samples := frames * uint64(channels)
	if samples > uint64(limit) {
		return Output{}, ucra.NewError(ucra.ErrOutOfMemory, "synth", "render").
			WithContext("samples", samples).
			WithContext("limit", limit)
	}

	var pcm []float32
	if uint64(cap(buf)) >= samples {
		pcm = buf[:samples]
	} else {
		pcm = make([]float32, samples)
	}

	mixNotes(cfg.Notes, pcm, frames, channels, rate)

	out.PCM = pcm
	out.Frames = frames
	return out, nil
}

func mixNotes(notes []ucra.NoteSegment, pcm []float32, frames uint64, channels, rate uint32) {
	sr := float64(rate)
	for n := uint64(0); n < frames; n++ {
		t := float64(n) / sr
		var mix float64
		for i := range notes {
			mix += noteSample(&notes[i], t)
		}
		s := float32(clamp(mix))
		base := n * uint64(channels)
		for ch := uint64(0); ch < uint64(channels); ch++ {
			pcm[base+ch] = s
		}
	}
}

// noteSample returns the contribution of note at absolute time t.
func noteSample(note *ucra.NoteSegment, t float64) float64 {
	if t < note.StartSec || t > note.EndSec() {
		return 0
	}
	rel := t - note.StartSec

	f := SampleCurve(note.F0Override, rel, ucra.MIDIToHz(note.MIDINote))
	if f <= 0 {
		return 0
	}
	env := SampleCurve(note.EnvOverride, rel, 1)
	amp := Gain * (float64(note.Velocity) / 127.0) * env

	return amp * math.Sin(2*math.Pi*f*t)
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
