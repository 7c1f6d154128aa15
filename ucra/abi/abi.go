// Package abi is the status-code surface of UCRA. Every entry point
// returns a ucra.Status instead of an error, refers to engines and streams
// by integer handle, and never lets a panic escape to the caller.
package abi

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/internal/handle"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/engines/reference"
	"github.com/openucra/ucra-go/ucra/stream"
)

// EngineHandle refers to a live engine. Zero is the null handle.
type EngineHandle = handle.Handle

// StreamHandle refers to a live stream. Zero is the null handle.
type StreamHandle = handle.Handle

// PullCallback supplies the next notes for a stream. Returning
// ucra.StatusEndOfStream ends the stream.
type PullCallback func(userData any, out *ucra.RenderConfig) ucra.Status

var (
	engines = handle.NewTable[*reference.Engine]()
	streams = handle.NewTable[*stream.Session]()
)

// guard converts a panic into StatusInternal.
func guard(op string, st *ucra.Status) {
	if r := recover(); r != nil {
		log.Error("Recovered panic at entry point", "op", op, "panic", fmt.Sprint(r))
		*st = ucra.StatusInternal
	}
}

// EngineCreate creates an engine and stores its handle in out. On failure
// out is left unchanged.
func EngineCreate(out *EngineHandle, options map[string]string) (st ucra.Status) {
	defer guard("engine_create", &st)
	if out == nil {
		return ucra.StatusInvalidArgument
	}
	e, err := reference.Create(options)
	if err != nil {
		return ucra.StatusOf(err)
	}
	*out = engines.Put(e)
	return ucra.StatusSuccess
}

// EngineDestroy releases an engine. Null and unknown handles are ignored.
func EngineDestroy(h EngineHandle) {
	defer guard("engine_destroy", new(ucra.Status))
	if e, ok := engines.Take(h); ok {
		e.Destroy()
	}
}

// EngineGetInfo writes the NUL-terminated engine description into buf.
func EngineGetInfo(h EngineHandle, buf []byte) (st ucra.Status) {
	defer guard("engine_getinfo", &st)
	e, ok := engines.Get(h)
	if !ok || len(buf) == 0 {
		return ucra.StatusInvalidArgument
	}
	_, err := e.GetInfo(buf)
	return ucra.StatusOf(err)
}

// Render renders cfg on the engine and fills out. out.PCM is owned by the
// engine and is invalidated by the next Render on h or by EngineDestroy.
func Render(h EngineHandle, cfg *ucra.RenderConfig, out *ucra.RenderResult) (st ucra.Status) {
	defer guard("render", &st)
	e, ok := engines.Get(h)
	if !ok || cfg == nil || out == nil {
		return ucra.StatusInvalidArgument
	}
	res, err := e.Render(cfg)
	if err != nil {
		log.Debug("Render failed", "error", err)
		return ucra.StatusOf(err)
	}
	*out = *res
	return ucra.StatusSuccess
}

// StreamOpen opens a stream that pulls notes through cb. opts choose the
// engine behind the stream; without them it is a reference engine at the
// stream's rate. On failure out is left unchanged.
func StreamOpen(out *StreamHandle, cfg *ucra.RenderConfig, cb PullCallback, userData any, opts ...stream.Option) (st ucra.Status) {
	defer guard("stream_open", &st)
	if out == nil || cb == nil {
		return ucra.StatusInvalidArgument
	}
	pull := func(ud any, rc *ucra.RenderConfig) error {
		return cb(ud, rc).Err()
	}
	s, err := stream.Open(cfg, pull, userData, opts...)
	if err != nil {
		return ucra.StatusOf(err)
	}
	*out = streams.Put(s)
	return ucra.StatusSuccess
}

// StreamRead reads up to frames frames into buf and stores the count in
// framesRead. A stream that has ended reports StatusEndOfStream together
// with the frames it could still deliver.
func StreamRead(h StreamHandle, buf []float32, frames uint32, framesRead *uint32) (st ucra.Status) {
	defer guard("stream_read", &st)
	if framesRead == nil {
		return ucra.StatusInvalidArgument
	}
	*framesRead = 0
	s, ok := streams.Get(h)
	if !ok || (buf == nil && frames > 0) {
		return ucra.StatusInvalidArgument
	}
	n, err := s.Read(buf, int(frames))
	*framesRead = uint32(n)
	return ucra.StatusOf(err)
}

// StreamClose releases a stream. Null and unknown handles are ignored.
func StreamClose(h StreamHandle) {
	defer guard("stream_close", new(ucra.Status))
	if s, ok := streams.Take(h); ok {
		s.Close()
	}
}

// Live returns the number of open engines and streams.
func Live() (engineCount, streamCount int) {
	return engines.Len(), streams.Len()
}
