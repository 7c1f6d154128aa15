package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/engines/reference"
	"github.com/openucra/ucra-go/ucra/stream"
)

// MaxReadFrames caps the frames a single remote read may request.
const MaxReadFrames = 1 << 20

// Server serves engines to remote clients over websocket. Each connection
// gets its own engine and at most one open stream.
type Server struct {
	// EngineOptions are passed to every engine the server creates.
	EngineOptions map[string]string

	// Wrap, if set, decorates each connection's engine before use.
	Wrap func(ucra.Renderer) ucra.Renderer

	// IdleTimeout closes connections that send nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration

	// MaxMessage limits the size of incoming messages in bytes. Zero
	// means no limit.
	MaxMessage int64

	upgrader websocket.Upgrader
	active   atomic.Int64
	served   atomic.Uint64
}

// NewServer creates a server that creates engines with options.
func NewServer(options map[string]string) *Server {
	return &Server{
		EngineOptions: options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Active returns the number of open connections.
func (s *Server) Active() int64 { return s.active.Load() }

// Served returns the number of connections accepted so far.
func (s *Server) Served() uint64 { return s.served.Load() }

// ServeHTTP upgrades the request and serves the connection until the
// client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck
	if s.MaxMessage > 0 {
		conn.SetReadLimit(s.MaxMessage)
	}

	engine, err := reference.Create(s.EngineOptions)
	if err != nil {
		log.Error("Failed to create engine", "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		return
	}

	c := &serverConn{
		id:          uuid.NewString(),
		conn:        conn,
		engine:      engine,
		renderer:    engine,
		idleTimeout: s.IdleTimeout,
	}
	if s.Wrap != nil {
		c.renderer = s.Wrap(engine)
	}

	s.active.Add(1)
	s.served.Add(1)
	defer s.active.Add(-1)

	log.Info("Client connected", "session", c.id, "remote", r.RemoteAddr)
	c.serve()
	log.Info("Client disconnected", "session", c.id, "renders", c.renders, "reads", c.reads)
}

type serverConn struct {
	id          string
	conn        *websocket.Conn
	engine      *reference.Engine
	renderer    ucra.Renderer
	stream      *stream.Session
	idleTimeout time.Duration

	renders uint64
	reads   uint64
}

func (c *serverConn) serve() {
	defer c.engine.Destroy()
	defer func() { c.stream.Close() }()

	for {
		env, err := c.next()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Connection read ended", "session", c.id, "error", err)
			}
			return
		}

		if err := c.handle(env); err != nil {
			log.Debug("Request failed", "session", c.id, "type", env.Type, "error", err)
			if werr := c.sendError(env.ID, err); werr != nil {
				return
			}
		}
	}
}

// next reads the next envelope from the client.
func (c *serverConn) next() (*Envelope, error) {
	if c.idleTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	}
	typ, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if typ != websocket.BinaryMessage {
		return nil, fmt.Errorf("unexpected websocket message type %d", typ)
	}
	return Decode(data)
}

func (c *serverConn) send(typ, id string, body interface{}) error {
	data, err := Encode(typ, id, body)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *serverConn) sendError(id string, err error) error {
	return c.send(TypeError, id, &ErrorReply{Code: ucra.StatusOf(err), Message: err.Error()})
}

func (c *serverConn) handle(env *Envelope) error {
	switch env.Type {
	case TypeInfo:
		return c.send(TypeInfoReply, env.ID, &InfoReply{Info: c.engine.Info(), Session: c.id})

	case TypeRender:
		var req RenderRequest
		if err := env.Unpack(&req); err != nil {
			return err
		}
		res, err := c.renderer.Render(&req.Config)
		if err != nil {
			return err
		}
		c.renders++
		return c.send(TypeRenderReply, env.ID, &RenderReply{Result: *res})

	case TypeOpen:
		var req OpenRequest
		if err := env.Unpack(&req); err != nil {
			return err
		}
		c.stream.Close()
		c.stream = nil
		st, err := stream.Open(&req.Config, c.pull, env.ID, stream.WithRenderer(c.renderer))
		if err != nil {
			return err
		}
		c.stream = st
		return c.send(TypeOpenReply, env.ID, nil)

	case TypeRead:
		if c.stream == nil {
			return ucra.NewError(ucra.ErrInvalidArgument, "serve", "read").WithContext("reason", "no open stream")
		}
		var req ReadRequest
		if err := env.Unpack(&req); err != nil {
			return err
		}
		if req.Frames > MaxReadFrames {
			return ucra.NewError(ucra.ErrInvalidArgument, "serve", "read").WithContext("frames", req.Frames)
		}
		ch := int(c.stream.Channels())
		buf := make([]float32, int(req.Frames)*ch)
		n, err := c.stream.Read(buf, int(req.Frames))
		end := errors.Is(err, ucra.ErrEndOfStream)
		if err != nil && !end {
			return err
		}
		c.reads++
		return c.send(TypeReadReply, env.ID, &ReadReply{PCM: buf[:n*ch], Frames: uint32(n), End: end})

	case TypeClose:
		c.stream.Close()
		c.stream = nil
		return c.send(TypeClose, env.ID, nil)

	default:
		return ucra.NewError(ucra.ErrNotSupported, "serve", "dispatch").WithContext("type", env.Type)
	}
}

// pull asks the client for notes and blocks until it answers. It runs
// inside a stream read, so the connection is otherwise idle.
func (c *serverConn) pull(userData any, out *ucra.RenderConfig) error {
	id, _ := userData.(string)
	if err := c.send(TypePull, id, &PullRequest{Format: *out}); err != nil {
		return ucra.NewError(ucra.ErrInternal, "serve", "pull").WithCause(err)
	}

	env, err := c.next()
	if err != nil {
		return ucra.NewError(ucra.ErrInternal, "serve", "pull").WithCause(err)
	}
	if env.Type != TypePullReply {
		return ucra.NewError(ucra.ErrInternal, "serve", "pull").WithContext("unexpected", env.Type)
	}

	var reply PullReply
	if err := env.Unpack(&reply); err != nil {
		return err
	}
	if reply.End {
		return ucra.ErrEndOfStream
	}
	if reply.Code != ucra.StatusSuccess {
		return ucra.NewError(reply.Code.Err(), "serve", "pull").WithContext("message", reply.Message)
	}
	for i := range reply.Notes {
		reply.Notes[i].Lyric = NormalizeLyric(reply.Notes[i].Lyric)
	}
	out.Notes = reply.Notes
	return nil
}
