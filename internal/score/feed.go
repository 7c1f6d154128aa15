package score

import (
	"io"

	"github.com/openucra/ucra-go/ucra"
)

// Feed hands out a note list in chunks. Each chunk covers the time from
// the end of the previous chunk to the end of its last note, with start
// times rebased onto that window, so rendering the chunks back to back
// reproduces the original timeline including rests.
type Feed struct {
	notes     []ucra.NoteSegment
	maxNotes  int
	next      int
	windowEnd float64
}

// NewFeed creates a feed over notes sorted by start time. maxNotes below 1
// is treated as 1; overlapping notes always travel together.
func NewFeed(notes []ucra.NoteSegment, maxNotes int) *Feed {
	if maxNotes < 1 {
		maxNotes = 1
	}
	return &Feed{notes: notes, maxNotes: maxNotes}
}

// Next returns the next chunk, or io.EOF when the notes are exhausted.
func (f *Feed) Next() ([]ucra.NoteSegment, error) {
	if f.next >= len(f.notes) {
		return nil, io.EOF
	}

	start := f.windowEnd
	end := start
	i := f.next
	for i < len(f.notes) {
		n := f.notes[i]
		if i-f.next >= f.maxNotes && n.StartSec >= end {
			break
		}
		if e := n.EndSec(); e > end {
			end = e
		}
		i++
	}

	chunk := make([]ucra.NoteSegment, 0, i-f.next)
	for _, n := range f.notes[f.next:i] {
		n.StartSec -= start
		chunk = append(chunk, n)
	}
	f.next = i
	f.windowEnd = end
	return chunk, nil
}

// Remaining returns the number of notes not yet handed out.
func (f *Feed) Remaining() int {
	return len(f.notes) - f.next
}
