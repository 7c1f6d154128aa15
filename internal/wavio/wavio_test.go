package wavio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestRoundTrip tests writing and reading back stereo audio.
func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")

	pcm := make([]float32, 2*800)
	for i := 0; i < 800; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/8000))
		pcm[2*i] = v
		pcm[2*i+1] = -v
	}
	pcm[10] = 1.5 // clipped on write

	if err := WriteFile(path, pcm, 8000, 2, 16); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	a, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if a.SampleRate != 8000 || a.Channels != 2 || a.BitDepth != 16 || a.Frames() != 800 {
		t.Fatalf("read %d Hz, %d ch, %d bit, %d frames", a.SampleRate, a.Channels, a.BitDepth, a.Frames())
	}
	for i, v := range a.PCM {
		want := pcm[i]
		if want > 1 {
			want = 1
		}
		if math.Abs(float64(v-want)) > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, v, want)
		}
	}
	if mono := a.Mono(); len(mono) != 800 || mono[1] != a.PCM[2] {
		t.Error("Mono() did not take the first channel")
	}
}

// TestWriterErrors tests format and framing checks.
func TestWriterErrors(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "x.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := NewWriter(f, 0, 1, 16); err == nil {
		t.Error("expected error for zero rate")
	}
	if _, err := NewWriter(f, 8000, 1, 12); err == nil {
		t.Error("expected error for 12-bit")
	}

	w, err := NewWriter(f, 8000, 2, 0)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Write(make([]float32, 3)); err == nil {
		t.Error("expected error for partial frame")
	}
	if err := w.Write(make([]float32, 4)); err != nil || w.Frames() != 2 {
		t.Errorf("Write = %v, frames %d", err, w.Frames())
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// TestReadInvalid tests that non-WAV input is rejected.
func TestReadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	_ = os.WriteFile(path, []byte("definitely not a riff file"), 0o644)
	if _, err := ReadFile(path); !errors.Is(err, ErrInvalidFile) {
		t.Errorf("ReadFile = %v", err)
	}
}
