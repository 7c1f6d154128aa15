package sink

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
)

// Publisher is the part of *nats.Conn the NATS sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	Flush() error
}

// Block is the msgpack message published for every PCM block. The last
// message of a stream carries End and no samples.
type Block struct {
	Stream     string    `msgpack:"stream"`
	Seq        uint64    `msgpack:"seq"`
	SampleRate int       `msgpack:"rate"`
	Channels   int       `msgpack:"channels"`
	Frames     int       `msgpack:"frames"`
	PCM        []float32 `msgpack:"pcm,omitempty"`
	End        bool      `msgpack:"end,omitempty"`
}

// NATS publishes blocks to a subject.
type NATS struct {
	pub      Publisher
	conn     *nats.Conn
	subject  string
	stream   string
	rate     int
	channels int
	seq      uint64
}

// DialNATS connects to url, retrying a few times.
func DialNATS(url, subject string, sampleRate, channels int) (*NATS, error) {
	var nc *nats.Conn
	var err error
	for i := 0; i < 3; i++ {
		nc, err = nats.Connect(url, nats.Name("ucra"))
		if err == nil {
			break
		}
		log.Warn("Failed to connect to NATS", "url", url, "attempt", i+1, "error", err)
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	log.Info("Connected to NATS", "url", url, "subject", subject)

	s := NewNATS(nc, subject, sampleRate, channels)
	s.conn = nc
	return s, nil
}

// NewNATS publishes through an existing connection, which Close leaves
// open.
func NewNATS(pub Publisher, subject string, sampleRate, channels int) *NATS {
	return &NATS{
		pub:      pub,
		subject:  subject,
		stream:   uuid.New().String(),
		rate:     sampleRate,
		channels: channels,
	}
}

// Stream returns the id stamped on every block.
func (s *NATS) Stream() string { return s.stream }

func (s *NATS) Write(pcm []float32) error {
	if len(pcm)%s.channels != 0 {
		return fmt.Errorf("partial frame: %d samples for %d channels", len(pcm), s.channels)
	}
	return s.publish(Block{PCM: pcm, Frames: len(pcm) / s.channels})
}

// Close publishes the end marker and flushes.
func (s *NATS) Close() error {
	err := s.publish(Block{End: true})
	if err == nil {
		err = s.pub.Flush()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return err
}

func (s *NATS) publish(b Block) error {
	b.Stream = s.stream
	b.Seq = s.seq
	b.SampleRate = s.rate
	b.Channels = s.channels
	data, err := msgpack.Marshal(&b)
	if err != nil {
		return fmt.Errorf("failed to encode block: %w", err)
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.subject, err)
	}
	s.seq++
	return nil
}
