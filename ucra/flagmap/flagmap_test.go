package flagmap

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/openucra/ucra-go/ucra"
)

const rulesJSON = `{
	"engine": "moresampler",
	"version": "1.0",
	"rules": [
		{"source": {"name": "g"}, "target": {"name": "gender", "default": 0}, "transform": {"kind": "scale", "scale": [-1, 1]}},
		{"source": {"name": "v"}, "target": {"name": "voicing"}},
		{"source": {"name": "mode"}, "target": {"name": "mode"}, "transform": {"kind": "map", "map": {"1": "fast", "2": "best"}}},
		{"source": {"name": "e"}, "target": {"name": "engine"}, "transform": {"kind": "constant", "value": "world"}},
		{"source": {"name": "bre"}, "target": {"name": "breathiness", "default": "0.1"}},
		{"source": {}, "target": {"name": "broken"}}
	]
}`

// TestParseLegacy tests legacy flag string splitting.
func TestParseLegacy(t *testing.T) {
	tests := []struct {
		in   string
		want []ucra.KeyValue
	}{
		{"", nil},
		{"g=0.5", []ucra.KeyValue{{Key: "g", Value: "0.5"}}},
		{"g=0.5;v=100;mode=1", []ucra.KeyValue{{Key: "g", Value: "0.5"}, {Key: "v", Value: "100"}, {Key: "mode", Value: "1"}}},
		{" g = 0.5 ;junk;;v=", []ucra.KeyValue{{Key: "g", Value: "0.5"}, {Key: "v", Value: ""}}},
	}
	for _, tt := range tests {
		if got := ParseLegacy(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseLegacy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestApply tests every transform kind.
func TestApply(t *testing.T) {
	m, err := Parse([]byte(rulesJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.Engine != "moresampler" || len(m.Rules) != 5 {
		t.Fatalf("parsed %q with %d rules", m.Engine, len(m.Rules))
	}

	tests := []struct {
		name     string
		flags    string
		want     map[string]string
		warnings []string
	}{
		{
			name:  "all",
			flags: "g=0.75;v=80;mode=2;e=anything",
			want:  map[string]string{"gender": "0.5", "voicing": "80", "mode": "best", "engine": "world", "breathiness": "0.1"},
		},
		{
			name:  "defaults only",
			flags: "",
			want:  map[string]string{"gender": "0", "breathiness": "0.1"},
		},
		{
			name:     "bad scale",
			flags:    "g=loud",
			want:     map[string]string{"breathiness": "0.1"},
			warnings: []string{"scale: invalid number format"},
		},
		{
			name:     "unmapped value",
			flags:    "mode=9",
			want:     map[string]string{"gender": "0", "breathiness": "0.1"},
			warnings: []string{"map: value '9' not found in mapping"},
		},
		{
			name:     "unknown flag",
			flags:    "bre=0.3;vx=1",
			want:     map[string]string{"gender": "0", "breathiness": "0.3"},
			warnings: []string{"unknown flag 'vx'"},
		},
		{
			name:     "suggestion",
			flags:    "md=1",
			want:     map[string]string{"gender": "0", "breathiness": "0.1"},
			warnings: []string{"unknown flag 'md', did you mean 'mode'?"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.ApplyString(tt.flags)
			if got := res.Map(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("options = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(res.Warnings, tt.warnings) {
				t.Errorf("warnings = %q, want %q", res.Warnings, tt.warnings)
			}
		})
	}
}

// TestApplyOrder tests that options follow rule order.
func TestApplyOrder(t *testing.T) {
	m, _ := Parse([]byte(rulesJSON))
	res := m.ApplyString("e=1;v=3")
	var keys []string
	for _, kv := range res.Options {
		keys = append(keys, kv.Key)
	}
	if got := strings.Join(keys, ","); got != "gender,voicing,engine,breathiness" {
		t.Errorf("order = %s", got)
	}
}

// TestLoad tests loading rule files from disk.
func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "rules.yaml")
	yamlRules := "engine: demo\nversion: \"2\"\nrules:\n  - source: {name: t}\n    target: {name: tension}\n    transform: {kind: scale, scale: [0, 100]}\n"
	if err := os.WriteFile(path, []byte(yamlRules), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := m.ApplyString("t=0.25").Map()["tension"]; got != "25" {
		t.Errorf("tension = %q", got)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, ucra.ErrFileNotFound) {
		t.Errorf("missing file = %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{\"rules\": ["), 0o644)
	if _, err := Load(bad); !errors.Is(err, ucra.ErrInvalidJSON) {
		t.Errorf("bad json = %v", err)
	}

	var nilMapper *Mapper
	if res := nilMapper.ApplyString("g=1"); len(res.Options) != 0 {
		t.Error("nil mapper produced options")
	}
}
