package synth

import (
	"errors"
	"math"
	"testing"

	"github.com/openucra/ucra-go/ucra"
)

// TestSampleCurve tests step-hold sampling.
func TestSampleCurve(t *testing.T) {
	c := ucra.Curve{{Time: 0, Value: 440}, {Time: 0.5, Value: 550}, {Time: 1, Value: 660}}

	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{"between first and second", 0.25, 440},
		{"exactly on a point", 0.5, 550},
		{"before first point", -1, 440},
		{"after last point", 2, 660},
		{"exactly on last point", 1, 660},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SampleCurve(c, tt.t, 0); got != tt.want {
				t.Errorf("SampleCurve(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}

	if got := SampleCurve(nil, 3, 7); got != 7 {
		t.Errorf("empty curve = %v, want fallback 7", got)
	}

	step := ucra.Curve{{Time: 0, Value: 1}, {Time: 0.5, Value: 2}, {Time: 0.5, Value: 3}}
	if got := SampleCurve(step, 0.5, 0); got != 3 {
		t.Errorf("repeated time = %v, want the later point 3", got)
	}
	if got := SampleCurve(step, 0.49, 0); got != 1 {
		t.Errorf("before the step = %v, want 1", got)
	}
}

// TestRenderNoNotes tests that an empty request yields zero frames.
func TestRenderNoNotes(t *testing.T) {
	out, err := Render(&ucra.RenderConfig{SampleRate: 48000}, ucra.DefaultSampleRate, nil, 0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.Frames != 0 || out.PCM != nil {
		t.Errorf("expected empty output, got %d frames", out.Frames)
	}
	if out.SampleRate != 48000 || out.Channels != 1 {
		t.Errorf("format = %d/%d", out.SampleRate, out.Channels)
	}
}

// TestRenderA4 tests a one second A4 note.
func TestRenderA4(t *testing.T) {
	cfg := &ucra.RenderConfig{
		SampleRate: 44100,
		Channels:   1,
		Notes:      []ucra.NoteSegment{{StartSec: 0, DurationSec: 1, MIDINote: 69, Velocity: 100}},
	}

	out, err := Render(cfg, ucra.DefaultSampleRate, nil, 0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.Frames != 44100 {
		t.Fatalf("Frames = %d, want 44100", out.Frames)
	}

	peak := Gain * 100.0 / 127.0
	var maxAbs float64
	for _, s := range out.PCM {
		if s < -1 || s > 1 {
			t.Fatalf("sample %v out of range", s)
		}
		maxAbs = math.Max(maxAbs, math.Abs(float64(s)))
	}
	if maxAbs > peak+1e-6 || maxAbs < peak*0.99 {
		t.Errorf("peak = %v, want about %v", maxAbs, peak)
	}

	// A sine at f Hz crosses zero 2f times per second.
	crossings := 0
	for i := 1; i < len(out.PCM); i++ {
		if (out.PCM[i-1] < 0) != (out.PCM[i] < 0) {
			crossings++
		}
	}
	freq := float64(crossings) / 2
	if math.Abs(freq-440) > 4.4 {
		t.Errorf("estimated frequency %v, want 440 +/- 1%%", freq)
	}
}

// TestRenderStereoBroadcast tests that every channel carries the same sample.
func TestRenderStereoBroadcast(t *testing.T) {
	cfg := &ucra.RenderConfig{
		Channels: 2,
		Notes:    []ucra.NoteSegment{{DurationSec: 0.01, MIDINote: 60, Velocity: 127}},
	}
	out, err := Render(cfg, 8000, nil, 0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want inherited 8000", out.SampleRate)
	}
	if uint64(len(out.PCM)) != out.Frames*2 {
		t.Fatalf("len(PCM) = %d, frames = %d", len(out.PCM), out.Frames)
	}
	for i := 0; i < len(out.PCM); i += 2 {
		if out.PCM[i] != out.PCM[i+1] {
			t.Fatalf("frame %d: channels differ", i/2)
		}
	}
}

// TestRenderOverrides tests F0 and envelope overrides.
func TestRenderOverrides(t *testing.T) {
	tests := []struct {
		name   string
		note   ucra.NoteSegment
		silent bool
	}{
		{
			name:   "unvoiced without override",
			note:   ucra.NoteSegment{DurationSec: 0.1, MIDINote: ucra.Unvoiced, Velocity: 100},
			silent: true,
		},
		{
			name: "unvoiced with f0 override",
			note: ucra.NoteSegment{DurationSec: 0.1, MIDINote: ucra.Unvoiced, Velocity: 100,
				F0Override: ucra.Curve{{Time: 0, Value: 220}}},
		},
		{
			name: "zero f0 override",
			note: ucra.NoteSegment{DurationSec: 0.1, MIDINote: 69, Velocity: 100,
				F0Override: ucra.Curve{{Time: 0, Value: 0}}},
			silent: true,
		},
		{
			name: "zero envelope",
			note: ucra.NoteSegment{DurationSec: 0.1, MIDINote: 69, Velocity: 100,
				EnvOverride: ucra.Curve{{Time: 0, Value: 0}}},
			silent: true,
		},
		{
			name:   "zero velocity",
			note:   ucra.NoteSegment{DurationSec: 0.1, MIDINote: 69, Velocity: 0},
			silent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(&ucra.RenderConfig{Notes: []ucra.NoteSegment{tt.note}}, 8000, nil, 0)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			nonZero := false
			for _, s := range out.PCM {
				if s != 0 {
					nonZero = true
					break
				}
			}
			if tt.silent && nonZero {
				t.Error("expected silence")
			}
			if !tt.silent && !nonZero {
				t.Error("expected sound")
			}
		})
	}
}

// TestRenderClamp tests hard clipping of loud mixes.
func TestRenderClamp(t *testing.T) {
	notes := make([]ucra.NoteSegment, 10)
	for i := range notes {
		notes[i] = ucra.NoteSegment{DurationSec: 0.05, MIDINote: 69, Velocity: 127}
	}
	out, err := Render(&ucra.RenderConfig{Notes: notes}, 8000, nil, 0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	clipped := false
	for _, s := range out.PCM {
		if s > 1 || s < -1 {
			t.Fatalf("sample %v escaped clamp", s)
		}
		if s == 1 || s == -1 {
			clipped = true
		}
	}
	if !clipped {
		t.Error("expected ten full-velocity notes to clip")
	}
}

// TestRenderReusesBuffer tests buffer reuse and the sample limit.
func TestRenderReusesBuffer(t *testing.T) {
	cfg := &ucra.RenderConfig{Notes: []ucra.NoteSegment{{DurationSec: 0.01, MIDINote: 69, Velocity: 100}}}
	buf := make([]float32, 0, 1024)

	out, err := Render(cfg, 8000, buf, 0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if &out.PCM[0] != &buf[:1][0] {
		t.Error("expected the provided buffer to be reused")
	}

	_, err = Render(cfg, 8000, buf, 10)
	if !errors.Is(err, ucra.ErrOutOfMemory) {
		t.Errorf("expected out of memory, got %v", err)
	}
}

// TestRenderHugeDuration tests that renders too large to allocate fail
// cleanly even without an engine limit.
func TestRenderHugeDuration(t *testing.T) {
	buf := make([]float32, 16)
	for _, dur := range []float64{1e13, math.MaxFloat64, math.Inf(1)} {
		cfg := &ucra.RenderConfig{Notes: []ucra.NoteSegment{{DurationSec: dur, MIDINote: 69, Velocity: 100}}}
		_, err := Render(cfg, 44100, buf, 0)
		if !errors.Is(err, ucra.ErrOutOfMemory) {
			t.Errorf("duration %v: error = %v, want out of memory", dur, err)
		}
	}

	late := &ucra.RenderConfig{Notes: []ucra.NoteSegment{{StartSec: 1e12, DurationSec: 0.1, MIDINote: 69, Velocity: 100}}}
	if _, err := Render(late, 44100, nil, 0); !errors.Is(err, ucra.ErrOutOfMemory) {
		t.Errorf("late start: error = %v, want out of memory", err)
	}

	// One past the hard cap, with an engine limit that would allow it.
	frames := float64(MaxSamples+1) / 8000
	over := &ucra.RenderConfig{Notes: []ucra.NoteSegment{{DurationSec: frames, MIDINote: 69, Velocity: 100}}}
	if _, err := Render(over, 8000, nil, 2*MaxSamples); !errors.Is(err, ucra.ErrOutOfMemory) {
		t.Errorf("over hard cap: error = %v, want out of memory", err)
	}
}

// TestFrameCount tests rounding.
func TestFrameCount(t *testing.T) {
	tests := []struct {
		dur  float64
		rate uint32
		want uint64
	}{
		{1, 44100, 44100},
		{0.5, 8000, 4000},
		{1e-9, 8000, 1},
		{0.00006, 8000, 1},
		{0.0000625, 8000, 1},
		{0.00025, 8000, 2},
	}
	for _, tt := range tests {
		if got := FrameCount(tt.dur, tt.rate); got != tt.want {
			t.Errorf("FrameCount(%v, %d) = %d, want %d", tt.dur, tt.rate, got, tt.want)
		}
	}
}
