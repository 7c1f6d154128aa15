package ucra

// Renderer renders a configuration into PCM. The returned result is owned by
// the renderer and superseded by its next call to Render.
type Renderer interface {
	// Render synthesizes audio for cfg.
	Render(cfg *RenderConfig) (*RenderResult, error)
}

// Informer describes an engine in one line.
type Informer interface {
	Info() string
}

// Capable is implemented by renderers that restrict the formats they accept.
type Capable interface {
	Capabilities() Capabilities
}

// Capabilities describes what an engine can do.
type Capabilities struct {
	SampleRates []uint32 // Accepted sample rates, empty accepts any
	Channels    []uint32 // Accepted channel counts, empty accepts any
	Streaming   bool     // Can back a streaming session
}

// SupportsFormat reports whether rate and channels are accepted.
func (c Capabilities) SupportsFormat(rate, channels uint32) bool {
	return contains(c.SampleRates, rate) && contains(c.Channels, channels)
}

func contains(list []uint32, v uint32) bool {
	if len(list) == 0 {
		return true
	}
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(cfg *RenderConfig) (*RenderResult, error)

// Render calls f(cfg).
func (f RendererFunc) Render(cfg *RenderConfig) (*RenderResult, error) {
	return f(cfg)
}
