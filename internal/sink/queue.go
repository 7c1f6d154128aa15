package sink

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrQueueClosed is returned by writes to a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// QueueStats tracks queue activity.
type QueueStats struct {
	Enqueued  int64
	Delivered int64
	PeakSize  int
	Waits     int64         // Writes that blocked on a full queue
	Waited    time.Duration // Total time writers spent blocked
}

// Queue decouples a producer from a slow sink. Blocks are copied into a
// bounded FIFO and written to the sink by a background goroutine; Write
// blocks while the FIFO is full. The first sink error is returned by every
// later Write and by Close.
type Queue struct {
	next Sink
	max  int

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	blocks   [][]float32
	closed   bool
	err      error
	stats    QueueStats

	done chan struct{}
}

// NewQueue starts a queue holding up to size blocks in front of next.
func NewQueue(next Sink, size int) *Queue {
	if size < 1 {
		size = 1
	}
	q := &Queue{
		next:   next,
		max:    size,
		blocks: make([][]float32, 0, size),
		done:   make(chan struct{}),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Write copies pcm into the queue.
func (q *Queue) Write(pcm []float32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.blocks) >= q.max && !q.closed && q.err == nil {
		start := time.Now()
		for len(q.blocks) >= q.max && !q.closed && q.err == nil {
			q.notFull.Wait()
		}
		q.stats.Waits++
		q.stats.Waited += time.Since(start)
	}
	if q.err != nil {
		return q.err
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.blocks = append(q.blocks, append([]float32(nil), pcm...))
	q.stats.Enqueued++
	if len(q.blocks) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.blocks)
	}
	q.notEmpty.Signal()
	return nil
}

// Close delivers the queued blocks, closes the sink and returns the first
// error seen.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return q.err
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()

	<-q.done
	cerr := q.next.Close()

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err == nil {
		q.err = cerr
	}
	log.Debug("Block queue closed", "delivered", q.stats.Delivered, "peak", q.stats.PeakSize, "waits", q.stats.Waits)
	return q.err
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.blocks) == 0 && !q.closed {
			q.notEmpty.Wait()
		}
		if len(q.blocks) == 0 {
			q.mu.Unlock()
			return
		}
		b := q.blocks[0]
		q.blocks[0] = nil
		q.blocks = q.blocks[1:]
		q.notFull.Signal()
		q.mu.Unlock()

		err := q.next.Write(b)

		q.mu.Lock()
		if err != nil {
			q.err = err
			q.blocks = nil
			q.notFull.Broadcast()
			q.mu.Unlock()
			return
		}
		q.stats.Delivered++
		q.mu.Unlock()
	}
}
