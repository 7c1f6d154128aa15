package adapter

import (
	"fmt"

	"github.com/openucra/ucra-go/ucra"
	"github.com/vmihailenco/msgpack/v5"
)

// Message types carried in an Envelope.
const (
	TypeInfo        = "info"
	TypeInfoReply   = "info_reply"
	TypeRender      = "render"
	TypeRenderReply = "render_reply"
	TypeOpen        = "open"
	TypeOpenReply   = "open_reply"
	TypeRead        = "read"
	TypeReadReply   = "read_reply"
	TypePull        = "pull"
	TypePullReply   = "pull_reply"
	TypeClose       = "close"
	TypeError       = "error"
)

// Envelope is one websocket binary frame.
type Envelope struct {
	Type string             `msgpack:"type"`
	ID   string             `msgpack:"id,omitempty"`
	Body msgpack.RawMessage `msgpack:"body,omitempty"`
}

// InfoReply answers an info request.
type InfoReply struct {
	Info    string `msgpack:"info"`
	Session string `msgpack:"session"`
}

// RenderRequest asks for a one-shot render.
type RenderRequest struct {
	Config ucra.RenderConfig `msgpack:"config"`
}

// RenderReply carries a rendered result.
type RenderReply struct {
	Result ucra.RenderResult `msgpack:"result"`
}

// OpenRequest opens the connection's stream.
type OpenRequest struct {
	Config ucra.RenderConfig `msgpack:"config"`
}

// ReadRequest asks the stream for frames.
type ReadRequest struct {
	Frames uint32 `msgpack:"frames"`
}

// ReadReply carries frames read from the stream.
type ReadReply struct {
	PCM    []float32 `msgpack:"pcm"`
	Frames uint32    `msgpack:"frames"`
	End    bool      `msgpack:"end"`
}

// PullRequest asks the client for the next notes.
type PullRequest struct {
	Format ucra.RenderConfig `msgpack:"format"`
}

// PullReply returns notes to the server. End marks the end of the stream
// and Code a failure in the client's source.
type PullReply struct {
	Notes   []ucra.NoteSegment `msgpack:"notes"`
	End     bool               `msgpack:"end"`
	Code    ucra.Status        `msgpack:"code,omitempty"`
	Message string             `msgpack:"message,omitempty"`
}

// ErrorReply reports a failed request.
type ErrorReply struct {
	Code    ucra.Status `msgpack:"code"`
	Message string      `msgpack:"message"`
}

// Encode packs body into an envelope of the given type.
func Encode(typ, id string, body interface{}) ([]byte, error) {
	env := Envelope{Type: typ, ID: id}
	if body != nil {
		raw, err := msgpack.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s body: %w", typ, err)
		}
		env.Body = raw
	}
	return msgpack.Marshal(&env)
}

// Decode unpacks an envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "wire", "decode").WithCause(err)
	}
	if env.Type == "" {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "wire", "decode").WithContext("reason", "missing type")
	}
	return &env, nil
}

// Unpack decodes the envelope body into v.
func (e *Envelope) Unpack(v interface{}) error {
	if len(e.Body) == 0 {
		return nil
	}
	if err := msgpack.Unmarshal(e.Body, v); err != nil {
		return ucra.NewError(ucra.ErrInvalidArgument, "wire", "unpack").
			WithContext("type", e.Type).
			WithCause(err)
	}
	return nil
}

// errorOf converts an error envelope into a StatusError.
func errorOf(op string, env *Envelope) error {
	var reply ErrorReply
	if err := env.Unpack(&reply); err != nil {
		return err
	}
	se := &StatusError{Code: reply.Code, Op: op}
	if reply.Message != "" {
		se.Cause = fmt.Errorf("%s", reply.Message)
	}
	return se
}
