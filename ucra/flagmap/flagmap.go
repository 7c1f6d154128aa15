// Package flagmap translates legacy resampler flag strings such as
// "g=0.5;v=100" into engine options, driven by a per-engine rule file.
package flagmap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/internal/decode"
	"github.com/openucra/ucra-go/ucra"
	"github.com/sahilm/fuzzy"
)

// Transform kinds.
const (
	KindCopy     = "copy"
	KindScale    = "scale"
	KindMap      = "map"
	KindConstant = "constant"
)

// Source names the legacy flag a rule reads.
type Source struct {
	Name string `json:"name" yaml:"name"`
}

// Target names the engine option a rule writes.
type Target struct {
	Name    string      `json:"name" yaml:"name"`
	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// Transform converts a legacy value. Unknown kinds copy the value.
type Transform struct {
	Kind  string            `json:"kind" yaml:"kind"`
	Scale []float64         `json:"scale,omitempty" yaml:"scale,omitempty"`
	Map   map[string]string `json:"map,omitempty" yaml:"map,omitempty"`
	Value string            `json:"value,omitempty" yaml:"value,omitempty"`
}

// Rule maps one legacy flag to one engine option.
type Rule struct {
	Source    Source     `json:"source" yaml:"source"`
	Target    Target     `json:"target" yaml:"target"`
	Transform *Transform `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// Mapper holds the rules of one engine.
type Mapper struct {
	Engine  string `json:"engine" yaml:"engine"`
	Version string `json:"version" yaml:"version"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// Result is the outcome of Apply.
type Result struct {
	Options  []ucra.KeyValue // Engine options in rule order
	Warnings []string        // Values that could not be translated
}

// Map returns the options as a map.
func (r Result) Map() map[string]string {
	m := make(map[string]string, len(r.Options))
	for _, kv := range r.Options {
		m[kv.Key] = kv.Value
	}
	return m
}

// Load reads a rule file.
func Load(path string) (*Mapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ucra.NewError(ucra.ErrFileNotFound, "flagmap", "load").WithContext("path", path)
		}
		return nil, ucra.NewError(ucra.ErrInternal, "flagmap", "load").WithCause(err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Debug("Loaded flag rules", "engine", m.Engine, "rules", len(m.Rules), "path", path)
	return m, nil
}

// Parse decodes a rule document. Rules without a source or target name
// are dropped.
func Parse(data []byte) (*Mapper, error) {
	var m Mapper
	if err := decode.Document(data, &m); err != nil {
		return nil, ucra.NewError(ucra.ErrInvalidJSON, "flagmap", "parse").WithCause(err)
	}

	rules := m.Rules[:0]
	for i, r := range m.Rules {
		if r.Source.Name == "" || r.Target.Name == "" {
			log.Warn("Skipping incomplete flag rule", "index", i)
			continue
		}
		rules = append(rules, r)
	}
	m.Rules = rules
	return &m, nil
}

// ParseLegacy splits a "k=v;k=v" flag string. Segments without '=' are
// ignored and whitespace around keys and values is trimmed.
func ParseLegacy(s string) []ucra.KeyValue {
	var out []ucra.KeyValue
	for _, seg := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		out = append(out, ucra.KeyValue{
			Key:   strings.TrimSpace(k),
			Value: strings.TrimSpace(v),
		})
	}
	return out
}

// Apply translates flags. Each rule reads the first flag with its source
// name; absent flags fall back to the rule default, and rules with neither
// produce nothing. Flags no rule reads are reported with a suggestion.
func (m *Mapper) Apply(flags []ucra.KeyValue) Result {
	var res Result
	if m == nil {
		return res
	}

	for _, r := range m.Rules {
		value, found := lookup(flags, r.Source.Name)

		var out string
		var ok bool
		if found {
			var warning string
			out, ok, warning = r.apply(value)
			if warning != "" {
				res.Warnings = append(res.Warnings, warning)
			}
		} else if def, has := r.Target.defaultString(); has {
			out, ok = def, true
		}

		if ok {
			res.Options = append(res.Options, ucra.KeyValue{Key: r.Target.Name, Value: out})
		}
	}

	res.Warnings = append(res.Warnings, m.unknown(flags)...)
	return res
}

// ApplyString parses a legacy flag string and translates it.
func (m *Mapper) ApplyString(s string) Result {
	return m.Apply(ParseLegacy(s))
}

// Sources returns the legacy flag names the rules read.
func (m *Mapper) Sources() []string {
	names := make([]string, 0, len(m.Rules))
	for _, r := range m.Rules {
		names = append(names, r.Source.Name)
	}
	return names
}

func (m *Mapper) unknown(flags []ucra.KeyValue) []string {
	sources := m.Sources()
	known := make(map[string]struct{}, len(sources))
	for _, name := range sources {
		known[name] = struct{}{}
	}

	var warnings []string
	for _, kv := range flags {
		if _, ok := known[kv.Key]; ok || kv.Key == "" {
			continue
		}
		w := fmt.Sprintf("unknown flag '%s'", kv.Key)
		if matches := fuzzy.Find(kv.Key, sources); len(matches) > 0 {
			w += fmt.Sprintf(", did you mean '%s'?", matches[0].Str)
		}
		warnings = append(warnings, w)
	}
	return warnings
}

func lookup(flags []ucra.KeyValue, key string) (string, bool) {
	for _, kv := range flags {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// apply runs the rule's transform on value.
func (r Rule) apply(value string) (string, bool, string) {
	t := r.Transform
	if t == nil {
		return value, true, ""
	}

	switch t.Kind {
	case KindScale:
		v, err := strconv.ParseFloat(strings.TrimLeft(value, " \t"), 64)
		if err != nil {
			return "", false, "scale: invalid number format"
		}
		var lo, hi float64
		if len(t.Scale) >= 2 {
			lo, hi = t.Scale[0], t.Scale[1]
		}
		return formatNumber(lo + (hi-lo)*v), true, ""

	case KindMap:
		if out, ok := t.Map[value]; ok {
			return out, true, ""
		}
		return "", false, fmt.Sprintf("map: value '%s' not found in mapping", value)

	case KindConstant:
		return t.Value, true, ""

	default:
		return value, true, ""
	}
}

func (t Target) defaultString() (string, bool) {
	switch v := t.Default.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return formatNumber(v), true
	case int:
		return formatNumber(float64(v)), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprint(v), true
	}
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
