package adapter

import (
	"bytes"
	"sync"

	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/abi"
)

const infoBufferSize = 512

// Engine is a Go handle on an engine created through the entry points.
// Results returned by Render are copies the caller owns.
type Engine struct {
	mu sync.Mutex
	h  abi.EngineHandle
}

// NewEngine creates an engine with the given options.
func NewEngine(options map[string]string) (*Engine, error) {
	var h abi.EngineHandle
	if err := Check("engine_create", abi.EngineCreate(&h, options)); err != nil {
		return nil, err
	}
	return &Engine{h: h}, nil
}

// Info returns the engine description.
func (e *Engine) Info() string {
	s, _ := e.GetInfo()
	return s
}

// GetInfo returns the engine description or the status error.
func (e *Engine) GetInfo() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf := make([]byte, infoBufferSize)
	if err := Check("engine_getinfo", abi.EngineGetInfo(e.h, buf)); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

// Render renders cfg and returns a copy of the result.
func (e *Engine) Render(cfg *ucra.RenderConfig) (*ucra.RenderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var scratch Scratch
	defer scratch.Release()

	var in *ucra.RenderConfig
	if cfg != nil {
		c := *cfg
		c.Notes = scratch.CopyNotes(cfg.Notes)
		in = &c
	}

	var res ucra.RenderResult
	if err := Check("render", abi.Render(e.h, in, &res)); err != nil {
		return nil, err
	}
	return res.Copy(), nil
}

// Close destroys the engine. It is safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	abi.EngineDestroy(e.h)
	e.h = 0
}
