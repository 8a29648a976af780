package analyser

import "songforge/core/audio"

// Node is a vertex in a Context's graph.
type Node interface {
	// Connect wires this node's output into dst and returns dst for chaining.
	Connect(dst Node) (Node, error)
	Disconnect()
	Context() *Context
	outputs() []Node
}

type base struct {
	ctx  *Context
	outs []Node
}

func (b *base) Context() *Context { return b.ctx }

// outputs is read under ctx.mu.
func (b *base) outputs() []Node { return b.outs }

func (b *base) connect(dst Node) (Node, error) {
	if dst == nil || dst.Context() != b.ctx {
		return nil, ErrForeignNode
	}
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	if b.ctx.state == Closed {
		return nil, ErrContextClosed
	}
	for _, o := range b.outs {
		if o == dst {
			return dst, nil
		}
	}
	b.outs = append(b.outs, dst)
	return dst, nil
}

func (b *base) Disconnect() {
	b.ctx.mu.Lock()
	b.outs = nil
	b.ctx.mu.Unlock()
}

// MediaElementSourceNode feeds an element's signal into the graph.
type MediaElementSourceNode struct {
	base
	el audio.Element
}

func (s *MediaElementSourceNode) Connect(dst Node) (Node, error) { return s.connect(dst) }

// Element returns the bound media element.
func (s *MediaElementSourceNode) Element() audio.Element { return s.el }

// DestinationNode is the audible output.
type DestinationNode struct {
	base
}

func (d *DestinationNode) Connect(Node) (Node, error) { return nil, ErrNoOutput }
