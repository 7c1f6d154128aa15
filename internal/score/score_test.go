package score

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/engines/reference"
)

const demo = `
title: scale
sample_rate: 8000
channels: 1
tempo: 120
flags: "g=0.5"
options:
  voice: alto
notes:
  - {start: 1, duration: 1, midi: 62, velocity: 100, lyric: re}
  - {start: 0, duration: 1, midi: 60, velocity: 100, lyric: do}
  - {start: 3, duration: 1, midi: 64, velocity: 100, lyric: mi}
`

// TestParse tests score decoding and tempo conversion.
func TestParse(t *testing.T) {
	s, err := Parse([]byte(demo))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg := s.Config(map[string]string{"voice": "bass", "extra": "1"})
	if cfg.SampleRate != 8000 || len(cfg.Notes) != 3 {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Notes[0].Lyric != "do" || cfg.Notes[1].StartSec != 0.5 || cfg.Notes[2].DurationSec != 0.5 {
		t.Errorf("notes = %+v", cfg.Notes)
	}
	if cfg.Options["voice"] != "bass" || cfg.Options["extra"] != "1" {
		t.Errorf("options = %v", cfg.Options)
	}
	if s.Flags != "g=0.5" || s.String() != "scale: 3 notes, 2.00s" {
		t.Errorf("String() = %q", s.String())
	}
}

// TestParseErrors tests rejected scores.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"bad yaml", "notes: [", ucra.ErrInvalidJSON},
		{"bad json", `{"notes": 3}`, ucra.ErrInvalidJSON},
		{"negative duration", "notes:\n  - {duration: -1, midi: 60}\n", ucra.ErrInvalidArgument},
		{"negative tempo", "tempo: -5\n", ucra.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); !errors.Is(err, tt.want) {
				t.Errorf("Parse = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); !errors.Is(err, ucra.ErrFileNotFound) {
		t.Errorf("Load(missing) = %v", err)
	}
}

// TestLoad tests reading a JSON score from disk.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	doc := `{"sample_rate": 22050, "notes": [{"start": 0, "duration": 0.5, "midi": 69, "velocity": 90}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.SampleRate != 22050 || s.Notes[0].Velocity != 90 {
		t.Errorf("score = %+v", s)
	}
}

// TestFeedChunks tests chunk boundaries and rebasing.
func TestFeedChunks(t *testing.T) {
	notes := []ucra.NoteSegment{
		{StartSec: 0, DurationSec: 1, MIDINote: 60},
		{StartSec: 0.5, DurationSec: 1, MIDINote: 62}, // overlaps the first
		{StartSec: 2, DurationSec: 1, MIDINote: 64},
		{StartSec: 3, DurationSec: 0.5, MIDINote: 65},
	}
	f := NewFeed(notes, 1)

	var chunks [][]ucra.NoteSegment
	for {
		c, err := f.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		chunks = append(chunks, c)
	}

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if len(chunks[0]) != 2 {
		t.Errorf("overlapping notes split: %+v", chunks[0])
	}
	// Second chunk starts at 1.5 s, after the first chunk's window.
	if chunks[1][0].StartSec != 0.5 {
		t.Errorf("rebased start = %v", chunks[1][0].StartSec)
	}
	if chunks[2][0].StartSec != 0 {
		t.Errorf("third chunk start = %v", chunks[2][0].StartSec)
	}
	if f.Remaining() != 0 {
		t.Errorf("Remaining() = %d", f.Remaining())
	}
	if notes[2].StartSec != 2 {
		t.Error("feed modified the caller's notes")
	}
}

// TestFeedPreservesTimeline tests that chunked rendering matches the total
// length of a one-shot render.
func TestFeedPreservesTimeline(t *testing.T) {
	s, err := Parse([]byte(demo))
	if err != nil {
		t.Fatal(err)
	}
	e, _ := reference.Create(nil)
	defer e.Destroy()

	whole, err := e.Render(s.Config())
	if err != nil {
		t.Fatal(err)
	}
	total := whole.Frames

	f := NewFeed(s.Seconds(), 1)
	var chunked uint64
	for {
		notes, err := f.Next()
		if err != nil {
			break
		}
		res, err := e.Render(&ucra.RenderConfig{SampleRate: 8000, Notes: notes})
		if err != nil {
			t.Fatal(err)
		}
		chunked += res.Frames
	}
	if math.Abs(float64(chunked)-float64(total)) > 2 {
		t.Errorf("chunked frames = %d, whole = %d", chunked, total)
	}
}
