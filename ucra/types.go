// Package ucra defines the data model shared by UCRA engines, streaming
// sessions and foreign adapters: note segments, curves, render
// configurations and results, status codes and errors.
package ucra

import (
	"fmt"
	"math"
	"sort"
)

// DefaultSampleRate is the rate a freshly created engine renders at when the
// render configuration leaves the sample rate unset.
const DefaultSampleRate = 44100

// Unvoiced marks a note segment that carries no pitch of its own.
const Unvoiced int16 = -1

// Note number and velocity ranges.
const (
	MaxMIDINote int16 = 127
	MaxVelocity uint8 = 127
)

// CurvePoint is a single (time, value) control point.
type CurvePoint struct {
	Time  float64 `yaml:"time" json:"time" msgpack:"t"`   // Seconds relative to the note start
	Value float64 `yaml:"value" json:"value" msgpack:"v"` // Hz for F0 curves, gain for envelopes
}

// Curve is a time series of control points. An empty curve means the
// owning note has no override.
type Curve []CurvePoint

// Validate reports whether the curve times are finite and non-decreasing.
// Repeated times are allowed and make a step: the later point wins.
func (c Curve) Validate() error {
	for i, p := range c {
		if math.IsNaN(p.Time) || math.IsInf(p.Time, 0) {
			return fmt.Errorf("curve point %d: non-finite time", i)
		}
		if i > 0 && p.Time < c[i-1].Time {
			return fmt.Errorf("curve point %d: time %.6g before %.6g", i, p.Time, c[i-1].Time)
		}
	}
	return nil
}

// NewCurve builds a curve from parallel time and value slices.
func NewCurve(times, values []float64) (Curve, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("curve: %d times but %d values", len(times), len(values))
	}
	c := make(Curve, len(times))
	for i := range times {
		c[i] = CurvePoint{Time: times[i], Value: values[i]}
	}
	return c, c.Validate()
}

// NoteSegment is one note event in a render request.
type NoteSegment struct {
	StartSec    float64 `yaml:"start" json:"start" msgpack:"start"`
	DurationSec float64 `yaml:"duration" json:"duration" msgpack:"dur"`
	MIDINote    int16   `yaml:"midi" json:"midi" msgpack:"midi"` // Unvoiced (-1) for no pitch
	Velocity    uint8   `yaml:"velocity" json:"velocity" msgpack:"vel"`
	Lyric       string  `yaml:"lyric,omitempty" json:"lyric,omitempty" msgpack:"lyric,omitempty"`

	F0Override  Curve `yaml:"f0,omitempty" json:"f0,omitempty" msgpack:"f0,omitempty"`
	EnvOverride Curve `yaml:"env,omitempty" json:"env,omitempty" msgpack:"env,omitempty"`
}

// EndSec returns the time at which the note stops sounding.
func (n NoteSegment) EndSec() float64 {
	return n.StartSec + n.DurationSec
}

// Validate checks that the note and its curves are well formed.
func (n NoteSegment) Validate() error {
	if !finite(n.StartSec) || !finite(n.DurationSec) {
		return fmt.Errorf("note: non-finite timing")
	}
	if n.DurationSec < 0 {
		return fmt.Errorf("note: negative duration %.6g", n.DurationSec)
	}
	if n.MIDINote < Unvoiced || n.MIDINote > MaxMIDINote {
		return fmt.Errorf("note: midi note %d outside [%d, %d]", n.MIDINote, Unvoiced, MaxMIDINote)
	}
	if n.Velocity > MaxVelocity {
		return fmt.Errorf("note: velocity %d above %d", n.Velocity, MaxVelocity)
	}
	if err := n.F0Override.Validate(); err != nil {
		return fmt.Errorf("note f0: %w", err)
	}
	if err := n.EnvOverride.Validate(); err != nil {
		return fmt.Errorf("note env: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// KeyValue is a single ordered engine option.
type KeyValue struct {
	Key   string `yaml:"key" msgpack:"k"`
	Value string `yaml:"value" msgpack:"v"`
}

// RenderConfig describes a render request. Engines never mutate it.
type RenderConfig struct {
	SampleRate uint32 `yaml:"sample_rate" msgpack:"rate"`   // 0 keeps the engine's current rate
	Channels   uint32 `yaml:"channels" msgpack:"channels"`  // 0 means mono
	BlockSize  uint32 `yaml:"block_size" msgpack:"block"`   // Streaming hint, frames per block
	Flags      uint32 `yaml:"flags" msgpack:"flags"`        // Reserved

	Notes   []NoteSegment     `yaml:"notes" msgpack:"notes"`
	Options map[string]string `yaml:"options,omitempty" msgpack:"options,omitempty"`
}

// Validate checks every note of the configuration.
func (c *RenderConfig) Validate() error {
	if c == nil {
		return NewError(ErrInvalidArgument, "config", "validate").WithContext("reason", "nil config")
	}
	for i, n := range c.Notes {
		if err := n.Validate(); err != nil {
			return NewError(ErrInvalidArgument, "config", "validate").
				WithContext("note", i).
				WithCause(err)
		}
	}
	return nil
}

// Duration returns the end time of the latest note, in seconds.
func (c *RenderConfig) Duration() float64 {
	var d float64
	for _, n := range c.Notes {
		if end := n.EndSec(); end > d {
			d = end
		}
	}
	return d
}

// OptionKeys returns the option keys in sorted order.
func (c *RenderConfig) OptionKeys() []string {
	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the configuration.
func (c *RenderConfig) Clone() *RenderConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.Notes != nil {
		out.Notes = make([]NoteSegment, len(c.Notes))
		for i, n := range c.Notes {
			n.F0Override = append(Curve(nil), n.F0Override...)
			n.EnvOverride = append(Curve(nil), n.EnvOverride...)
			out.Notes[i] = n
		}
	}
	if c.Options != nil {
		out.Options = make(map[string]string, len(c.Options))
		for k, v := range c.Options {
			out.Options[k] = v
		}
	}
	return &out
}

// RenderResult holds rendered audio. PCM and Metadata belong to the engine
// that produced them and stay valid only until that engine renders again or
// is destroyed.
type RenderResult struct {
	PCM        []float32         `msgpack:"pcm"`            // Interleaved samples, Frames*Channels long
	Frames     uint64            `msgpack:"frames"`         // Frames rendered
	Channels   uint32            `msgpack:"channels"`       // Channel count of PCM
	SampleRate uint32            `msgpack:"rate"`           // Sample rate of PCM
	Metadata   map[string]string `msgpack:"meta,omitempty"` // Engine supplied metadata, may be nil
	Status     Status            `msgpack:"status"`         // Status of the render that produced this result
}

// Seconds returns the duration of the rendered audio.
func (r *RenderResult) Seconds() float64 {
	if r == nil || r.SampleRate == 0 {
		return 0
	}
	return float64(r.Frames) / float64(r.SampleRate)
}

// Copy returns a result whose PCM and metadata the caller owns.
func (r *RenderResult) Copy() *RenderResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.PCM != nil {
		out.PCM = append([]float32(nil), r.PCM...)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// MIDIToHz converts a MIDI note number to its equal tempered frequency.
// Negative notes are unvoiced and return 0.
func MIDIToHz(note int16) float64 {
	if note < 0 {
		return 0
	}
	return 440.0 * math.Pow(2.0, (float64(note)-69.0)/12.0)
}
