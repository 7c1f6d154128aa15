// Package score reads note scores from YAML or JSON files and feeds them
// to streaming sessions in chunks.
package score

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/openucra/ucra-go/internal/decode"
	"github.com/openucra/ucra-go/ucra"
)

// Score is a renderable note list with its output format.
type Score struct {
	Title      string             `yaml:"title" json:"title"`
	SampleRate uint32             `yaml:"sample_rate" json:"sample_rate"`
	Channels   uint32             `yaml:"channels" json:"channels"`
	Tempo      float64            `yaml:"tempo,omitempty" json:"tempo,omitempty"` // BPM; when set, note times are in beats
	Flags      string             `yaml:"flags,omitempty" json:"flags,omitempty"` // Legacy "k=v;k=v" flags
	Options    map[string]string  `yaml:"options,omitempty" json:"options,omitempty"`
	Notes      []ucra.NoteSegment `yaml:"notes" json:"notes"`
}

// Load reads a score file.
func Load(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ucra.NewError(ucra.ErrFileNotFound, "score", "load").WithContext("path", path)
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and checks a score document.
func Parse(data []byte) (*Score, error) {
	var s Score
	if err := decode.Document(data, &s); err != nil {
		return nil, ucra.NewError(ucra.ErrInvalidJSON, "score", "parse").WithCause(err)
	}
	if s.Tempo < 0 {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "score", "parse").WithContext("tempo", s.Tempo)
	}
	if err := s.Config().Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Seconds returns the notes with times converted to seconds and sorted by
// start.
func (s *Score) Seconds() []ucra.NoteSegment {
	notes := make([]ucra.NoteSegment, len(s.Notes))
	copy(notes, s.Notes)
	if s.Tempo > 0 {
		beat := 60 / s.Tempo
		for i := range notes {
			notes[i].StartSec *= beat
			notes[i].DurationSec *= beat
		}
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].StartSec < notes[j].StartSec
	})
	return notes
}

// Config returns a render configuration for the whole score. Options in
// extra override the score's own.
func (s *Score) Config(extra ...map[string]string) *ucra.RenderConfig {
	cfg := &ucra.RenderConfig{
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		Notes:      s.Seconds(),
	}
	if len(s.Options) > 0 || len(extra) > 0 {
		cfg.Options = make(map[string]string, len(s.Options))
		for k, v := range s.Options {
			cfg.Options[k] = v
		}
		for _, m := range extra {
			for k, v := range m {
				cfg.Options[k] = v
			}
		}
	}
	return cfg
}

// String summarizes the score.
func (s *Score) String() string {
	title := s.Title
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("%s: %d notes, %.2fs", title, len(s.Notes), s.Config().Duration())
}
