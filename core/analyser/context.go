// Package analyser models a small audio processing graph (source, analyser,
// destination) on top of an audio.Element and exposes per-frame
// frequency-magnitude snapshots.
package analyser

import (
	"errors"
	"fmt"
	"sync"

	"songforge/core/audio"

	"github.com/gopxl/beep/v2"
)

var (
	ErrContextClosed = errors.New("analyser: context is closed")
	// ErrSourceExists is returned when a context already has a media source.
	ErrSourceExists = errors.New("analyser: context already has a media element source")
	ErrForeignNode  = errors.New("analyser: nodes belong to different contexts")
	ErrNoOutput     = errors.New("analyser: destination has no outputs")
)

// State 处理上下文状态
type State int

const (
	Suspended State = iota
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	default:
		return "closed"
	}
}

// Context owns one node graph. Audio flows only while it is Running, and
// only to the extent the source reaches the destination.
type Context struct {
	mu     sync.Mutex
	state  State
	source *MediaElementSourceNode
	dest   *DestinationNode
}

// NewContext creates a suspended context.
func NewContext() *Context {
	c := &Context{state: Suspended}
	c.dest = &DestinationNode{base: base{ctx: c}}
	return c
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return ErrContextClosed
	}
	c.state = Running
	return nil
}

func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return ErrContextClosed
	}
	c.state = Suspended
	return nil
}

// Close releases the graph and unbinds the media element. Closing twice is a no-op.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.state = Closed
	src := c.source
	c.source = nil
	c.mu.Unlock()

	// 不能持有 c.mu 调用 BindGraph：输出协程在 Stream 中会获取 c.mu
	if src != nil {
		return src.el.BindGraph(nil)
	}
	return nil
}

// Destination is the context's audible output.
func (c *Context) Destination() *DestinationNode { return c.dest }

// CreateMediaElementSource binds el to this context. An element can feed
// only one open context at a time.
func (c *Context) CreateMediaElementSource(el audio.Element) (*MediaElementSourceNode, error) {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil, ErrContextClosed
	}
	if c.source != nil {
		c.mu.Unlock()
		return nil, ErrSourceExists
	}
	src := &MediaElementSourceNode{base: base{ctx: c}, el: el}
	c.source = src
	c.mu.Unlock()

	if err := el.BindGraph(c); err != nil {
		c.mu.Lock()
		c.source = nil
		c.mu.Unlock()
		return nil, fmt.Errorf("bind media element: %w", err)
	}
	return src, nil
}

// CreateAnalyser creates an analyser with FFT size 256.
func (c *Context) CreateAnalyser() (*AnalyserNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return nil, ErrContextClosed
	}
	return newAnalyserNode(c, DefaultFFTSize), nil
}

// Process implements audio.Graph.
func (c *Context) Process(in beep.Streamer) beep.Streamer {
	return &renderer{ctx: c, in: in}
}

type renderer struct {
	ctx *Context
	in  beep.Streamer
}

// Stream pulls the source and pushes it through the graph. The source always
// advances; what comes out is silence unless the context is running and a
// path reaches the destination.
func (r *renderer) Stream(samples [][2]float64) (int, bool) {
	n, ok := r.in.Stream(samples)
	c := r.ctx
	c.mu.Lock()
	audible := false
	if c.state == Running && c.source != nil {
		audible = deliver(c.source, samples[:n], 0)
	}
	c.mu.Unlock()
	if !audible {
		clear(samples[:n])
	}
	return n, ok
}

func (r *renderer) Err() error { return r.in.Err() }

// maxDepth bounds graph traversal; the graphs built here are three nodes deep.
const maxDepth = 16

func deliver(n Node, samples [][2]float64, depth int) bool {
	if depth > maxDepth {
		return false
	}
	switch node := n.(type) {
	case *DestinationNode:
		return true
	case *AnalyserNode:
		node.write(samples)
	}
	audible := false
	for _, out := range n.outputs() {
		if deliver(out, samples, depth+1) {
			audible = true
		}
	}
	return audible
}
