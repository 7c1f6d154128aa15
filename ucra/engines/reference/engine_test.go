package reference

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/openucra/ucra-go/ucra"
)

func a4(dur float64) *ucra.RenderConfig {
	return &ucra.RenderConfig{
		SampleRate: 44100,
		Channels:   1,
		Notes:      []ucra.NoteSegment{{StartSec: 0, DurationSec: dur, MIDINote: 69, Velocity: 100}},
	}
}

// TestCreateDefaults tests engine creation with no options.
func TestCreateDefaults(t *testing.T) {
	e, err := Create(nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer e.Destroy()

	if e.SampleRate() != ucra.DefaultSampleRate {
		t.Errorf("SampleRate = %d", e.SampleRate())
	}
	if e.Info() != Info {
		t.Errorf("Info = %q", e.Info())
	}
}

// TestCreateOptions tests recognized and unknown options.
func TestCreateOptions(t *testing.T) {
	e, err := Create(map[string]string{"sample_rate": "22050", "whatever": "x"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if e.SampleRate() != 22050 {
		t.Errorf("SampleRate = %d", e.SampleRate())
	}

	for _, opts := range []map[string]string{
		{"sample_rate": "0"},
		{"sample_rate": "fast"},
		{"max_samples": "-1"},
	} {
		if _, err := Create(opts); !errors.Is(err, ucra.ErrInvalidArgument) {
			t.Errorf("Create(%v) error = %v, want invalid argument", opts, err)
		}
	}

	if _, err := Create(map[string]string{"manifest": filepath.Join(t.TempDir(), "missing.json")}); !errors.Is(err, ucra.ErrFileNotFound) {
		t.Errorf("missing manifest error = %v", err)
	}
}

// TestGetInfo tests writing the info string.
func TestGetInfo(t *testing.T) {
	e, _ := Create(nil)
	defer e.Destroy()

	buf := make([]byte, 256)
	n, err := e.GetInfo(buf)
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if string(buf[:n]) != Info || buf[n] != 0 {
		t.Errorf("GetInfo wrote %q", buf[:n+1])
	}

	small := make([]byte, len(Info))
	for i := range small {
		small[i] = 'x'
	}
	if _, err := e.GetInfo(small); !errors.Is(err, ucra.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
	for i, b := range small {
		if b != 'x' {
			t.Fatalf("partial write at %d", i)
		}
	}

	exact := make([]byte, len(Info)+1)
	if _, err := e.GetInfo(exact); err != nil {
		t.Errorf("exact buffer: %v", err)
	}
}

// TestRenderA4 tests the A4 reference render.
func TestRenderA4(t *testing.T) {
	e, _ := Create(nil)
	defer e.Destroy()

	res, err := e.Render(a4(1))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if res.Frames != 44100 || res.Channels != 1 || res.SampleRate != 44100 {
		t.Errorf("result = %d frames, %d ch, %d Hz", res.Frames, res.Channels, res.SampleRate)
	}
	if res.Status != ucra.StatusSuccess {
		t.Errorf("Status = %v", res.Status)
	}
	if res.Metadata["engine"] != "reference" {
		t.Errorf("Metadata = %v", res.Metadata)
	}
}

// TestRenderEmpty tests the zero-note case.
func TestRenderEmpty(t *testing.T) {
	e, _ := Create(nil)
	defer e.Destroy()

	res, err := e.Render(&ucra.RenderConfig{SampleRate: 48000, Channels: 1})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if res.Frames != 0 || res.PCM != nil {
		t.Errorf("expected empty result, got %d frames", res.Frames)
	}
}

// TestRenderSupersedes tests that a second render replaces the first result.
func TestRenderSupersedes(t *testing.T) {
	e, _ := Create(nil)
	defer e.Destroy()

	first, err := e.Render(a4(0.5))
	if err != nil {
		t.Fatalf("first Render failed: %v", err)
	}
	firstPCM := first.PCM

	second, err := e.Render(a4(0.25))
	if err != nil {
		t.Fatalf("second Render failed: %v", err)
	}
	if first != second {
		t.Error("expected the engine to hand out its single owned result")
	}
	if &firstPCM[0] != &second.PCM[0] {
		t.Error("expected the owned buffer to be reused")
	}
	if second.Frames != 11025 {
		t.Errorf("Frames = %d", second.Frames)
	}
}

// TestRenderBoundedMemory tests that repeated renders do not grow the buffer.
func TestRenderBoundedMemory(t *testing.T) {
	e, _ := Create(nil)
	defer e.Destroy()

	if _, err := e.Render(a4(0.2)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	capacity := e.BufferCap()
	for i := 0; i < 50; i++ {
		if _, err := e.Render(a4(0.2)); err != nil {
			t.Fatalf("Render %d failed: %v", i, err)
		}
	}
	if e.BufferCap() != capacity {
		t.Errorf("buffer grew from %d to %d", capacity, e.BufferCap())
	}
}

// TestRenderLimitKeepsPrevious tests that a resource error keeps the prior result.
func TestRenderLimitKeepsPrevious(t *testing.T) {
	e, err := Create(map[string]string{"max_samples": "44100"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer e.Destroy()

	res, err := e.Render(a4(0.5))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	sample := res.PCM[100]

	if _, err := e.Render(a4(2)); !errors.Is(err, ucra.ErrOutOfMemory) {
		t.Fatalf("expected out of memory, got %v", err)
	}
	if res.Frames != 22050 || res.PCM[100] != sample {
		t.Error("previous result was disturbed by a failed render")
	}
}

// TestRenderHugeDuration tests that oversized and non-finite notes are
// refused without disturbing the previous result.
func TestRenderHugeDuration(t *testing.T) {
	e, err := Create(nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer e.Destroy()

	res, err := e.Render(a4(0.1))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	frames := res.Frames

	if _, err := e.Render(a4(1e13)); !errors.Is(err, ucra.ErrOutOfMemory) {
		t.Errorf("1e13 s error = %v, want out of memory", err)
	}
	if _, err := e.Render(a4(math.Inf(1))); !errors.Is(err, ucra.ErrInvalidArgument) {
		t.Errorf("infinite duration error = %v, want invalid argument", err)
	}
	if res.Frames != frames {
		t.Error("previous result was disturbed by a failed render")
	}
}

// TestRenderInvalid tests argument errors.
func TestRenderInvalid(t *testing.T) {
	e, _ := Create(nil)

	if _, err := e.Render(nil); !errors.Is(err, ucra.ErrInvalidArgument) {
		t.Errorf("nil config error = %v", err)
	}

	bad := a4(1)
	bad.Notes[0].F0Override = ucra.Curve{{Time: 1, Value: 1}, {Time: 0, Value: 2}}
	if _, err := e.Render(bad); !errors.Is(err, ucra.ErrInvalidArgument) {
		t.Errorf("bad curve error = %v", err)
	}

	e.Destroy()
	if _, err := e.Render(a4(1)); !errors.Is(err, ucra.ErrInvalidArgument) {
		t.Errorf("render after destroy error = %v", err)
	}

	var nilEngine *Engine
	nilEngine.Destroy()
	if _, err := nilEngine.Render(a4(1)); !errors.Is(err, ucra.ErrInvalidArgument) {
		t.Errorf("nil engine error = %v", err)
	}
}

// TestManifestCapabilities tests that manifest formats gate renders.
func TestManifestCapabilities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	doc := `{"name": "tiny", "version": "0.9", "entry": {"type": "ipc", "path": "ws://localhost"},
		"audio": {"rates": [44100], "channels": [1], "streaming": true}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := Create(map[string]string{"manifest": path})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer e.Destroy()

	if e.Info() != "tiny 0.9 ("+Info+")" {
		t.Errorf("Info = %q", e.Info())
	}

	if _, err := e.Render(a4(0.1)); err != nil {
		t.Errorf("supported format failed: %v", err)
	}

	stereo := a4(0.1)
	stereo.Channels = 2
	if _, err := e.Render(stereo); !errors.Is(err, ucra.ErrNotSupported) {
		t.Errorf("stereo error = %v, want not supported", err)
	}
}
