// Package manifest loads UCRA engine manifests. Manifests are JSON
// documents; YAML is accepted as well.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/openucra/ucra-go/internal/decode"
	"github.com/openucra/ucra-go/ucra"
)

// Entry types.
const (
	EntryDLL = "dll"
	EntryCLI = "cli"
	EntryIPC = "ipc"
)

// Flag types.
const (
	FlagFloat  = "float"
	FlagInt    = "int"
	FlagBool   = "bool"
	FlagString = "string"
	FlagEnum   = "enum"
)

// Manifest describes an engine package.
type Manifest struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Vendor  string `yaml:"vendor,omitempty" json:"vendor,omitempty"`
	License string `yaml:"license,omitempty" json:"license,omitempty"`
	Entry   Entry  `yaml:"entry" json:"entry"`
	Audio   Audio  `yaml:"audio" json:"audio"`
	Flags   []Flag `yaml:"flags,omitempty" json:"flags,omitempty"`

	// Path is the file the manifest was loaded from.
	Path string `yaml:"-" json:"-"`
}

// Entry tells a host how to reach the engine.
type Entry struct {
	Type   string `yaml:"type" json:"type"`
	Path   string `yaml:"path" json:"path"`
	Symbol string `yaml:"symbol,omitempty" json:"symbol,omitempty"`
}

// Audio lists the formats the engine accepts.
type Audio struct {
	Rates     []uint32 `yaml:"rates" json:"rates"`
	Channels  []uint32 `yaml:"channels" json:"channels"`
	Streaming bool     `yaml:"streaming" json:"streaming"`
}

// Flag documents one engine option.
type Flag struct {
	Key     string      `yaml:"key" json:"key"`
	Type    string      `yaml:"type" json:"type"`
	Desc    string      `yaml:"desc" json:"desc"`
	Default interface{} `yaml:"default,omitempty" json:"default,omitempty"`
	Range   []float64   `yaml:"range,omitempty" json:"range,omitempty"`
	Values  []string    `yaml:"values,omitempty" json:"values,omitempty"`
}

// DefaultString renders the flag default the way it is passed as an engine
// option.
func (f Flag) DefaultString() string {
	switch v := f.Default.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', 6, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Load reads and checks a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ucra.NewError(ucra.ErrFileNotFound, "manifest", "load").WithContext("path", path)
		}
		return nil, ucra.NewError(ucra.ErrInternal, "manifest", "load").WithContext("path", path).WithCause(err)
	}

	m, err := Parse(data)
	if err != nil {
		var ue *ucra.Error
		if errors.As(err, &ue) {
			ue.WithContext("path", path)
		}
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Parse decodes and checks a manifest document.
func Parse(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ucra.NewError(ucra.ErrInvalidJSON, "manifest", "parse").WithContext("reason", "empty document")
	}

	var m Manifest
	if err := decode.Document(data, &m); err != nil {
		return nil, ucra.NewError(ucra.ErrInvalidJSON, "manifest", "parse").WithCause(err)
	}

	if err := m.check(); err != nil {
		return nil, ucra.NewError(ucra.ErrInvalidManifest, "manifest", "parse").WithCause(err)
	}
	return &m, nil
}

// check enforces the fields a host needs to load the engine.
func (m *Manifest) check() error {
	if m.Name == "" {
		return errors.New("missing name")
	}
	if m.Version == "" {
		return errors.New("missing version")
	}

	switch m.Entry.Type {
	case EntryDLL, EntryCLI, EntryIPC:
	default:
		return fmt.Errorf("entry type %q is not one of dll, cli, ipc", m.Entry.Type)
	}
	if m.Entry.Path == "" {
		return errors.New("missing entry path")
	}

	if len(m.Audio.Rates) == 0 {
		return errors.New("audio rates must not be empty")
	}
	for _, r := range m.Audio.Rates {
		if r == 0 || r > 192000 {
			return fmt.Errorf("audio rate %d out of range", r)
		}
	}
	if len(m.Audio.Channels) == 0 {
		return errors.New("audio channels must not be empty")
	}
	for _, c := range m.Audio.Channels {
		if c == 0 || c > 8 {
			return fmt.Errorf("channel count %d out of range", c)
		}
	}

	for i, f := range m.Flags {
		if f.Key == "" {
			return fmt.Errorf("flag %d: missing key", i)
		}
		switch f.Type {
		case FlagFloat, FlagInt, FlagBool, FlagString, FlagEnum:
		default:
			return fmt.Errorf("flag %s: unknown type %q", f.Key, f.Type)
		}
		if f.Desc == "" {
			return fmt.Errorf("flag %s: missing desc", f.Key)
		}
		if f.Range != nil && len(f.Range) != 2 {
			return fmt.Errorf("flag %s: range needs two values", f.Key)
		}
		if f.Type == FlagEnum && len(f.Values) == 0 {
			return fmt.Errorf("flag %s: enum without values", f.Key)
		}
	}
	return nil
}

// Capabilities converts the audio section.
func (m *Manifest) Capabilities() ucra.Capabilities {
	return ucra.Capabilities{
		SampleRates: append([]uint32(nil), m.Audio.Rates...),
		Channels:    append([]uint32(nil), m.Audio.Channels...),
		Streaming:   m.Audio.Streaming,
	}
}

// Flag returns the flag with the given key.
func (m *Manifest) Flag(key string) (Flag, bool) {
	for _, f := range m.Flags {
		if f.Key == key {
			return f, true
		}
	}
	return Flag{}, false
}

// DefaultOptions returns the defaults of every flag that declares one.
func (m *Manifest) DefaultOptions() map[string]string {
	opts := make(map[string]string)
	for _, f := range m.Flags {
		if f.Default != nil {
			opts[f.Key] = f.DefaultString()
		}
	}
	return opts
}

// CheckOption validates value against the declaration of key. Unknown keys
// are accepted.
func (m *Manifest) CheckOption(key, value string) error {
	f, ok := m.Flag(key)
	if !ok {
		return nil
	}
	switch f.Type {
	case FlagFloat, FlagInt:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", key, value)
		}
		if f.Type == FlagInt && v != float64(int64(v)) {
			return fmt.Errorf("%s: %q is not an integer", key, value)
		}
		if len(f.Range) == 2 && (v < f.Range[0] || v > f.Range[1]) {
			return fmt.Errorf("%s: %s outside [%g, %g]", key, value, f.Range[0], f.Range[1])
		}
	case FlagBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%s: %q is not a bool", key, value)
		}
	case FlagEnum:
		for _, allowed := range f.Values {
			if allowed == value {
				return nil
			}
		}
		return fmt.Errorf("%s: %q is not one of %v", key, value, f.Values)
	}
	return nil
}
