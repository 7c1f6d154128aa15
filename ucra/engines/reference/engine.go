// Package reference provides the UCRA reference engine: an additive sine
// synthesizer with no vocoder behind it.
package reference

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/manifest"
	"github.com/openucra/ucra-go/ucra/synth"
)

// Info is the identification string of the reference engine.
const Info = "UCRA Reference Engine (no WORLD) v1.0"

// Option keys understood by Create.
const (
	OptionSampleRate = "sample_rate"
	OptionMaxSamples = "max_samples"
	OptionManifest   = "manifest"
)

// Engine is a reference engine instance. It owns the PCM buffer of its most
// recent render; every call to Render supersedes the previous result.
// An Engine must not be used from more than one goroutine at a time.
type Engine struct {
	sampleRate uint32
	maxSamples int64
	manifest   *manifest.Manifest
	info       string

	// Owned output of the latest render
	buf      []float32
	metadata map[string]string
	result   ucra.RenderResult

	renders   uint64
	destroyed bool
}

// Create makes a new engine. Recognized options are sample_rate (default
// rate for configs that leave it unset), max_samples (per-render sample
// limit) and manifest (path of an engine manifest). Unknown keys are
// ignored.
func Create(options map[string]string) (*Engine, error) {
	e := &Engine{
		sampleRate: ucra.DefaultSampleRate,
		info:       Info,
		metadata:   make(map[string]string),
	}

	if v, ok := options[OptionSampleRate]; ok {
		rate, err := strconv.ParseUint(v, 10, 32)
		if err != nil || rate == 0 {
			return nil, ucra.NewError(ucra.ErrInvalidArgument, "engine", "create").
				WithContext(OptionSampleRate, v)
		}
		e.sampleRate = uint32(rate)
	}

	if v, ok := options[OptionMaxSamples]; ok {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || limit < 0 {
			return nil, ucra.NewError(ucra.ErrInvalidArgument, "engine", "create").
				WithContext(OptionMaxSamples, v)
		}
		e.maxSamples = limit
	}

	if path, ok := options[OptionManifest]; ok && path != "" {
		m, err := manifest.Load(path)
		if err != nil {
			return nil, err
		}
		e.manifest = m
		e.info = fmt.Sprintf("%s %s (%s)", m.Name, m.Version, Info)
	}

	log.Debug("Created reference engine", "sample_rate", e.sampleRate, "max_samples", e.maxSamples, "manifest", e.manifest != nil)
	return e, nil
}

// Destroy releases the engine and its owned buffer. It is safe to call on a
// nil engine.
func (e *Engine) Destroy() {
	if e == nil || e.destroyed {
		return
	}
	e.destroyed = true
	e.buf = nil
	e.metadata = nil
	e.result = ucra.RenderResult{}
	log.Debug("Destroyed reference engine", "renders", e.renders)
}

// Info returns the engine identification string.
func (e *Engine) Info() string {
	if e == nil {
		return ""
	}
	return e.info
}

// GetInfo writes the identification string into buf followed by a NUL
// byte and returns the string length. If buf cannot hold both it returns
// ucra.ErrInvalidArgument and leaves buf untouched.
func (e *Engine) GetInfo(buf []byte) (int, error) {
	if e == nil || e.destroyed {
		return 0, ucra.NewError(ucra.ErrInvalidArgument, "engine", "getinfo").WithContext("reason", "no engine")
	}
	if len(buf) < len(e.info)+1 {
		return 0, ucra.NewError(ucra.ErrInvalidArgument, "engine", "getinfo").
			WithContext("need", len(e.info)+1).
			WithContext("have", len(buf))
	}
	n := copy(buf, e.info)
	buf[n] = 0
	return n, nil
}

// Capabilities returns the formats declared by the engine manifest, or an
// unrestricted set when the engine was created without one.
func (e *Engine) Capabilities() ucra.Capabilities {
	if e == nil || e.manifest == nil {
		return ucra.Capabilities{Streaming: true}
	}
	return e.manifest.Capabilities()
}

// SampleRate returns the rate used for configs that leave it unset.
func (e *Engine) SampleRate() uint32 {
	return e.sampleRate
}

// Render synthesizes cfg. The returned result and its PCM are owned by the
// engine and are superseded by the next Render or by Destroy. On error the
// previous result stays valid.
func (e *Engine) Render(cfg *ucra.RenderConfig) (*ucra.RenderResult, error) {
	if e == nil || e.destroyed {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "engine", "render").WithContext("reason", "no engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	channels, rate := synth.Format(cfg, e.sampleRate)
	if caps := e.Capabilities(); !caps.SupportsFormat(rate, channels) {
		return nil, ucra.NewError(ucra.ErrNotSupported, "engine", "render").
			WithContext("sample_rate", rate).
			WithContext("channels", channels)
	}

	out, err := synth.Render(cfg, e.sampleRate, e.buf, e.maxSamples)
	if err != nil {
		return nil, err
	}

	e.sampleRate = out.SampleRate
	if cap(out.PCM) > cap(e.buf) {
		e.buf = out.PCM[:cap(out.PCM)]
	}
	e.renders++

	clear(e.metadata)
	e.metadata["engine"] = "reference"
	e.metadata["notes"] = strconv.Itoa(len(cfg.Notes))

	e.result = ucra.RenderResult{
		PCM:        out.PCM,
		Frames:     out.Frames,
		Channels:   out.Channels,
		SampleRate: out.SampleRate,
		Metadata:   e.metadata,
		Status:     ucra.StatusSuccess,
	}

	log.Debug("Rendered", "frames", out.Frames, "channels", out.Channels, "sample_rate", out.SampleRate, "notes", len(cfg.Notes))
	return &e.result, nil
}

// BufferCap returns the capacity, in samples, of the owned output buffer.
func (e *Engine) BufferCap() int {
	return cap(e.buf)
}
