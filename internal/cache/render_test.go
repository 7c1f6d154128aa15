package cache

import (
	"testing"

	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/engines/reference"
)

func testConfig(note int16) *ucra.RenderConfig {
	return &ucra.RenderConfig{
		SampleRate: 8000,
		Notes:      []ucra.NoteSegment{{DurationSec: 0.2, MIDINote: note, Velocity: 100}},
		Options:    map[string]string{"b": "2", "a": "1"},
	}
}

// TestKey tests that keys depend on content only.
func TestKey(t *testing.T) {
	a, err := Key("engine", testConfig(60))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Key("engine", testConfig(60))
	if a != b || len(a) != 64 {
		t.Errorf("keys differ: %s vs %s", a, b)
	}
	if c, _ := Key("engine", testConfig(61)); c == a {
		t.Error("different notes share a key")
	}
	if c, _ := Key("other", testConfig(60)); c == a {
		t.Error("different engines share a key")
	}
}

// TestRendererCaches tests that repeated renders hit the store.
func TestRendererCaches(t *testing.T) {
	e, err := reference.Create(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Destroy()

	calls := 0
	counting := ucra.RendererFunc(func(cfg *ucra.RenderConfig) (*ucra.RenderResult, error) {
		calls++
		return e.Render(cfg)
	})

	store, err := Open(Config{MemoryCapacity: 1 << 20, DiskCapacity: 1 << 20, Dir: t.TempDir(), CompressionLevel: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	r := NewRenderer(counting, store)

	first, err := r.Render(testConfig(69))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := append([]float32(nil), first.PCM...)

	second, err := r.Render(testConfig(69))
	if err != nil {
		t.Fatalf("cached Render failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("engine called %d times", calls)
	}
	if second.Frames != 1600 || len(second.PCM) != len(want) {
		t.Fatalf("cached result = %d frames", second.Frames)
	}
	for i := range want {
		if second.PCM[i] != want[i] {
			t.Fatalf("sample %d differs", i)
		}
	}
	if second.Metadata["engine"] != "reference" {
		t.Errorf("metadata = %v", second.Metadata)
	}

	if _, err := r.Render(&ucra.RenderConfig{Notes: []ucra.NoteSegment{{DurationSec: -1}}}); err == nil {
		t.Error("invalid render succeeded")
	}
	if hits, misses := r.Counts(); hits != 1 || misses != 1 {
		t.Errorf("Counts() = %d, %d", hits, misses)
	}
	if !r.Capabilities().Streaming {
		t.Error("wrapped renderer should stream")
	}
}

// TestTieredPromotion tests that disk hits move into memory.
func TestTieredPromotion(t *testing.T) {
	dir := t.TempDir()
	disk, err := Open(Config{DiskCapacity: 1 << 20, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	_ = disk.Put("k", []byte("v"))
	_ = disk.Close()

	tiered, err := Open(Config{MemoryCapacity: 1 << 10, DiskCapacity: 1 << 20, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer tiered.Close()

	if v, ok := tiered.Get("k"); !ok || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if tiered.Promotions() != 1 {
		t.Errorf("Promotions() = %d", tiered.Promotions())
	}
	if mem, _ := tiered.Level(LevelMemory); mem.Items != 1 {
		t.Errorf("memory items = %d", mem.Items)
	}
	if st := tiered.Stats(); st.Hits != 1 || st.Misses != 0 {
		t.Errorf("stats = %+v", st)
	}
	if !tiered.Contains("k") {
		t.Error("Contains(k) = false")
	}
}
