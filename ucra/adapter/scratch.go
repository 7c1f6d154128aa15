package adapter

import (
	"sync"

	"github.com/openucra/ucra-go/ucra"
)

var (
	notePool = sync.Pool{
		New: func() interface{} {
			s := make([]ucra.NoteSegment, 0, 16)
			return &s
		},
	}
	curvePool = sync.Pool{
		New: func() interface{} {
			c := make(ucra.Curve, 0, 32)
			return &c
		},
	}
)

// Scratch tracks memory handed to the engine while a pull callback runs.
// Everything allocated from it stays valid until Release, which callers
// run exactly once per top-level call, on every exit path.
type Scratch struct {
	mu     sync.Mutex
	notes  []*[]ucra.NoteSegment
	curves []*ucra.Curve

	allocated uint64
	released  uint64
}

// Notes returns a zeroed slice of n notes.
func (s *Scratch) Notes(n int) []ucra.NoteSegment {
	p := notePool.Get().(*[]ucra.NoteSegment)
	if cap(*p) < n {
		*p = make([]ucra.NoteSegment, n)
	}
	*p = (*p)[:n]
	clear(*p)

	s.mu.Lock()
	s.notes = append(s.notes, p)
	s.allocated++
	s.mu.Unlock()
	return *p
}

// Curve returns a curve of n zero points.
func (s *Scratch) Curve(n int) ucra.Curve {
	if n == 0 {
		return nil
	}
	p := curvePool.Get().(*ucra.Curve)
	if cap(*p) < n {
		*p = make(ucra.Curve, n)
	}
	*p = (*p)[:n]
	clear(*p)

	s.mu.Lock()
	s.curves = append(s.curves, p)
	s.allocated++
	s.mu.Unlock()
	return *p
}

// Pending returns the number of allocations not yet released.
func (s *Scratch) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes) + len(s.curves)
}

// Release returns every pending allocation to the pools. Calling it with
// nothing pending is a no-op.
func (s *Scratch) Release() {
	s.mu.Lock()
	notes, curves := s.notes, s.curves
	s.notes, s.curves = nil, nil
	s.released += uint64(len(notes) + len(curves))
	s.mu.Unlock()

	for _, p := range notes {
		clear(*p)
		*p = (*p)[:0]
		notePool.Put(p)
	}
	for _, p := range curves {
		clear(*p)
		*p = (*p)[:0]
		curvePool.Put(p)
	}
}

// Counts returns the lifetime allocation and release totals.
func (s *Scratch) Counts() (allocated, released uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocated, s.released
}

// CopyNotes copies notes into scratch memory, normalizing lyrics.
func (s *Scratch) CopyNotes(notes []ucra.NoteSegment) []ucra.NoteSegment {
	if len(notes) == 0 {
		return nil
	}
	out := s.Notes(len(notes))
	for i, n := range notes {
		out[i] = n
		out[i].Lyric = NormalizeLyric(n.Lyric)
		out[i].F0Override = s.copyCurve(n.F0Override)
		out[i].EnvOverride = s.copyCurve(n.EnvOverride)
	}
	return out
}

func (s *Scratch) copyCurve(c ucra.Curve) ucra.Curve {
	if len(c) == 0 {
		return nil
	}
	out := s.Curve(len(c))
	copy(out, c)
	return out
}
