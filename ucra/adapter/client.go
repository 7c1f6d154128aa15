package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/openucra/ucra-go/ucra"
)

// DefaultHandshakeTimeout bounds the websocket handshake in Dial.
const DefaultHandshakeTimeout = 10 * time.Second

// Client talks to a Server. Requests on one client are serialized.
type Client struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	session string
	stream  *RemoteStream
}

// Dial connects to the server at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Session returns the server's session id, known after the first Info.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func newRequestID() string {
	return "req_" + uuid.New().String()[:12]
}

func (c *Client) deadline(ctx context.Context) {
	d, ok := ctx.Deadline()
	if !ok {
		d = time.Time{}
	}
	_ = c.conn.SetReadDeadline(d)
	_ = c.conn.SetWriteDeadline(d)
}

func (c *Client) send(typ, id string, body interface{}) error {
	data, err := Encode(typ, id, body)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *Client) recv() (*Envelope, error) {
	typ, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if typ != websocket.BinaryMessage {
		return nil, fmt.Errorf("unexpected websocket message type %d", typ)
	}
	return Decode(data)
}

// call sends one request and waits for its reply of type want.
func (c *Client) call(ctx context.Context, op, typ, want string, req, reply interface{}) error {
	c.deadline(ctx)
	if err := c.send(typ, newRequestID(), req); err != nil {
		return err
	}
	env, err := c.recv()
	if err != nil {
		return err
	}
	switch env.Type {
	case want:
		if reply == nil {
			return nil
		}
		return env.Unpack(reply)
	case TypeError:
		return errorOf(op, env)
	default:
		return fmt.Errorf("%s: unexpected reply %q", op, env.Type)
	}
}

// Info returns the remote engine description.
func (c *Client) Info(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var reply InfoReply
	if err := c.call(ctx, "engine_getinfo", TypeInfo, TypeInfoReply, nil, &reply); err != nil {
		return "", err
	}
	c.session = reply.Session
	return reply.Info, nil
}

// Render renders cfg on the remote engine.
func (c *Client) Render(ctx context.Context, cfg *ucra.RenderConfig) (*ucra.RenderResult, error) {
	if cfg == nil {
		return nil, &StatusError{Code: ucra.StatusInvalidArgument, Op: "render"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var reply RenderReply
	if err := c.call(ctx, "render", TypeRender, TypeRenderReply, &RenderRequest{Config: *cfg}, &reply); err != nil {
		return nil, err
	}
	return &reply.Result, nil
}

// OpenStream opens the connection's stream. Notes come from src, which is
// called on the goroutine running RemoteStream.Read. Opening a new stream
// closes the previous one.
func (c *Client) OpenStream(ctx context.Context, cfg *ucra.RenderConfig, src Source) (*RemoteStream, error) {
	if cfg == nil || src == nil {
		return nil, &StatusError{Code: ucra.StatusInvalidArgument, Op: "stream_open"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.call(ctx, "stream_open", TypeOpen, TypeOpenReply, &OpenRequest{Config: *cfg}, nil); err != nil {
		return nil, err
	}
	if c.stream != nil {
		c.stream.closed = true
	}
	c.stream = &RemoteStream{c: c, src: src, channels: max(cfg.Channels, 1)}
	return c.stream, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

// RemoteStream reads audio from a stream on the server.
type RemoteStream struct {
	c        *Client
	src      Source
	channels uint32
	ended    bool
	closed   bool
}

// Read fills buf with whole interleaved frames and returns the frame
// count. At the end of the stream it returns the remaining frames and an
// error matching ucra.ErrEndOfStream.
func (s *RemoteStream) Read(ctx context.Context, buf []float32) (int, error) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed {
		return 0, &StatusError{Code: ucra.StatusInvalidArgument, Op: "stream_read"}
	}
	frames := uint32(len(buf) / int(s.channels))

	c.deadline(ctx)
	if err := c.send(TypeRead, newRequestID(), &ReadRequest{Frames: frames}); err != nil {
		return 0, err
	}

	var srcErr error
	for {
		env, err := c.recv()
		if err != nil {
			return 0, err
		}
		switch env.Type {
		case TypePull:
			reply := s.pull()
			if reply.Code != ucra.StatusSuccess {
				srcErr = errors.New(reply.Message)
			}
			if err := c.send(TypePullReply, env.ID, reply); err != nil {
				return 0, err
			}

		case TypeReadReply:
			var reply ReadReply
			if err := env.Unpack(&reply); err != nil {
				return 0, err
			}
			n := copy(buf, reply.PCM) / int(s.channels)
			if reply.End {
				s.ended = true
				return n, &StatusError{Code: ucra.StatusEndOfStream, Op: "stream_read"}
			}
			return n, nil

		case TypeError:
			err := errorOf("stream_read", env)
			var se *StatusError
			if srcErr != nil && errors.As(err, &se) {
				se.Cause = srcErr
			}
			return 0, err

		default:
			return 0, fmt.Errorf("stream_read: unexpected message %q", env.Type)
		}
	}
}

func (s *RemoteStream) pull() *PullReply {
	notes, err := s.src.Next()
	switch {
	case err == nil:
		return &PullReply{Notes: notes}
	case errors.Is(err, io.EOF), errors.Is(err, ucra.ErrEndOfStream):
		return &PullReply{End: true}
	default:
		return &PullReply{Code: ucra.StatusOf(err), Message: err.Error()}
	}
}

// Ended reports whether the server signalled end of stream.
func (s *RemoteStream) Ended() bool { return s.ended }

// Close closes the stream on the server.
func (s *RemoteStream) Close(ctx context.Context) error {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if c.stream == s {
		c.stream = nil
	}
	return c.call(ctx, "stream_close", TypeClose, TypeClose, nil, nil)
}
