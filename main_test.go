package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openucra/ucra-go/internal/playback"
	"github.com/openucra/ucra-go/internal/wavio"
	"github.com/openucra/ucra-go/ucra"
)

const testScore = `
title: fifth
sample_rate: 8000
channels: 1
flags: "g=2"
notes:
  - {start: 0, duration: 0.25, midi: 69, velocity: 100, lyric: la}
  - {start: 0.25, duration: 0.25, midi: 76, velocity: 100, lyric: mi}
`

const testRules = `
engine: reference
version: "1"
rules:
  - source: {name: g}
    target: {name: gender}
  - source: {name: m}
    target: {name: mode, default: fast}
    transform: {kind: map, map: {"1": fast, "2": best}}
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// withConfig swaps the resolved configuration for the duration of a test.
func withConfig(t *testing.T, c ucra.Config) {
	t.Helper()
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

// TestLoadScoreOptions tests option resolution with and without rules.
func TestLoadScoreOptions(t *testing.T) {
	path := writeTemp(t, "song.yml", testScore)

	c := ucra.DefaultConfig()
	withConfig(t, c)
	_, opts, err := loadScore(path, "x=1")
	if err != nil {
		t.Fatalf("loadScore() error = %v", err)
	}
	if opts["g"] != "2" || opts["x"] != "1" {
		t.Errorf("options without rules = %v", opts)
	}

	c.Engine.FlagRules = writeTemp(t, "rules.yml", testRules)
	withConfig(t, c)
	sc, opts, err := loadScore(path, "m=2")
	if err != nil {
		t.Fatalf("loadScore() error = %v", err)
	}
	if opts["gender"] != "2" || opts["mode"] != "best" {
		t.Errorf("options with rules = %v", opts)
	}
	if _, ok := opts["g"]; ok {
		t.Error("legacy key should not pass through the rules")
	}
	if sc.SampleRate != 8000 || sc.Channels != 1 {
		t.Errorf("format = %d Hz, %d ch", sc.SampleRate, sc.Channels)
	}

	if _, _, err := loadScore(filepath.Join(t.TempDir(), "missing.yml"), ""); !errors.Is(err, ucra.ErrFileNotFound) {
		t.Errorf("missing score error = %v", err)
	}
}

// TestLoadScoreDefaults tests that scores without a format take the
// engine's.
func TestLoadScoreDefaults(t *testing.T) {
	path := writeTemp(t, "bare.yml", "notes:\n  - {start: 0, duration: 0.1, midi: 60, velocity: 90}\n")
	c := ucra.DefaultConfig()
	c.Engine.SampleRate = 22050
	c.Engine.Channels = 2
	withConfig(t, c)

	sc, _, err := loadScore(path, "")
	if err != nil {
		t.Fatalf("loadScore() error = %v", err)
	}
	if sc.SampleRate != 22050 || sc.Channels != 2 {
		t.Errorf("format = %d Hz, %d ch", sc.SampleRate, sc.Channels)
	}
}

// TestEncodeRaw tests the raw PCM layout.
func TestEncodeRaw(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeRaw(&buf, []float32{0.5, -1}); err != nil {
		t.Fatalf("encodeRaw() error = %v", err)
	}
	b := buf.Bytes()
	if len(b) != 8 {
		t.Fatalf("wrote %d bytes", len(b))
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(b[4:])); v != -1 {
		t.Errorf("second sample = %v", v)
	}
}

// TestPump tests that every read block reaches the sink.
func TestPump(t *testing.T) {
	reads := 0
	read := func(buf []float32) (int, error) {
		reads++
		switch reads {
		case 1, 2:
			return len(buf) / 2, nil
		default:
			return 3, &ucraEnd{}
		}
	}
	rec, _ := playback.NewRecorder(playback.Config{SampleRate: 8000, Channels: 2})

	frames, blocks, err := pump(context.Background(), read, rec, 2, 10)
	if err != nil {
		t.Fatalf("pump() error = %v", err)
	}
	if frames != 23 || blocks != 3 {
		t.Errorf("pump() = %d frames, %d blocks", frames, blocks)
	}
	if len(rec.PCM()) != 46 {
		t.Errorf("sink got %d samples", len(rec.PCM()))
	}

	failing := func([]float32) (int, error) { return 0, ucra.ErrNotSupported }
	if _, _, err := pump(context.Background(), failing, rec, 2, 10); !errors.Is(err, ucra.ErrNotSupported) {
		t.Errorf("pump() error = %v", err)
	}
}

type ucraEnd struct{}

func (*ucraEnd) Error() string        { return "end of stream" }
func (*ucraEnd) Is(target error) bool { return target == ucra.ErrEndOfStream }

// TestRenderCommand tests a score rendered to a WAV file end to end.
func TestRenderCommand(t *testing.T) {
	withConfig(t, ucra.DefaultConfig())
	path := writeTemp(t, "song.yml", testScore)
	out := filepath.Join(t.TempDir(), "song.wav")

	var stdout bytes.Buffer
	renderCmd.SetOut(&stdout)
	defer renderCmd.SetOut(nil)
	renderOutput, renderBits = out, 16
	defer func() { renderOutput = "" }()

	if err := runRender(renderCmd, []string{path}); err != nil {
		t.Fatalf("runRender() error = %v", err)
	}
	a, err := wavio.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if a.SampleRate != 8000 || a.Frames() != 4000 {
		t.Errorf("wrote %d Hz, %d frames", a.SampleRate, a.Frames())
	}
	if !strings.Contains(stdout.String(), "4000 frames") {
		t.Errorf("output = %q", stdout.String())
	}
}

// TestStreamCommand tests a score streamed into a WAV file.
func TestStreamCommand(t *testing.T) {
	c := ucra.DefaultConfig()
	c.Stream.ChunkSize = 1
	c.Stream.ReadSize = 300
	withConfig(t, c)
	path := writeTemp(t, "song.yml", testScore)
	out := filepath.Join(t.TempDir(), "stream.wav")

	var stdout bytes.Buffer
	streamCmd.SetOut(&stdout)
	defer streamCmd.SetOut(nil)
	streamCmd.SetContext(context.Background())
	streamOutput = out
	defer func() { streamOutput = "" }()

	if err := runStream(streamCmd, []string{path}); err != nil {
		t.Fatalf("runStream() error = %v", err)
	}
	a, err := wavio.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if a.Frames() != 4000 {
		t.Errorf("streamed %d frames, want 4000", a.Frames())
	}
}

// TestStreamCommandEngineConfig tests that local streams use the configured
// engine, like render does.
func TestStreamCommandEngineConfig(t *testing.T) {
	path := writeTemp(t, "song.yml", testScore)
	manifest := writeTemp(t, "engine.json", `{"name": "fixed", "version": "1",
		"entry": {"type": "ipc", "path": "ws://localhost"},
		"audio": {"rates": [48000], "channels": [1], "streaming": true}}`)

	streamCmd.SetOut(io.Discard)
	defer streamCmd.SetOut(nil)
	streamCmd.SetContext(context.Background())
	streamOutput = filepath.Join(t.TempDir(), "stream.wav")
	defer func() { streamOutput = "" }()

	c := ucra.DefaultConfig()
	c.Engine.Manifest = manifest
	withConfig(t, c)
	if err := runStream(streamCmd, []string{path}); !errors.Is(err, ucra.ErrNotSupported) {
		t.Errorf("manifest rate error = %v, want not supported", err)
	}

	c = ucra.DefaultConfig()
	c.Engine.MaxSamples = 100
	withConfig(t, c)
	if err := runStream(streamCmd, []string{path}); !errors.Is(err, ucra.ErrOutOfMemory) {
		t.Errorf("max samples error = %v, want out of memory", err)
	}
}

// TestOpenSinksNone tests that streaming needs somewhere to go.
func TestOpenSinksNone(t *testing.T) {
	if _, err := openSinks(context.Background(), 8000, 1); err == nil {
		t.Error("expected error with no sinks selected")
	}
}

// TestExitCode tests status codes surfacing as exit codes.
func TestExitCode(t *testing.T) {
	if got := exitCode(ucra.NewError(ucra.ErrFileNotFound, "score", "load")); got != int(ucra.StatusFileNotFound) {
		t.Errorf("exitCode() = %d", got)
	}
	if got := exitCode(errors.New("plain")); got != int(ucra.StatusInternal) {
		t.Errorf("exitCode(plain) = %d", got)
	}
}
