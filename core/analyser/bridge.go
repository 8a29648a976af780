package analyser

import (
	"fmt"
	"sync"

	"songforge/core/audio"
)

// Bridge owns at most one Context at a time and binds it to a media element.
type Bridge struct {
	mu       sync.Mutex
	ctx      *Context
	analyser *AnalyserNode
}

func NewBridge() *Bridge { return &Bridge{} }

// Attach builds source -> analyser -> destination for el and resumes the
// context. Any previous graph is detached first. On failure no analyser is
// returned and the element plays on unrouted.
func (b *Bridge) Attach(el audio.Element) (*AnalyserNode, error) {
	b.Detach()

	ctx := NewContext()
	an, err := build(ctx, el)
	if err != nil {
		_ = ctx.Close()
		return nil, err
	}

	b.mu.Lock()
	b.ctx = ctx
	b.analyser = an
	b.mu.Unlock()
	return an, nil
}

func build(ctx *Context, el audio.Element) (*AnalyserNode, error) {
	src, err := ctx.CreateMediaElementSource(el)
	if err != nil {
		return nil, err
	}
	an, err := ctx.CreateAnalyser()
	if err != nil {
		return nil, err
	}
	if _, err := src.Connect(an); err != nil {
		return nil, fmt.Errorf("connect source: %w", err)
	}
	if _, err := an.Connect(ctx.Destination()); err != nil {
		return nil, fmt.Errorf("connect analyser: %w", err)
	}
	if ctx.State() == Suspended {
		if err := ctx.Resume(); err != nil {
			return nil, err
		}
	}
	return an, nil
}

// Detach closes the current context, if any.
func (b *Bridge) Detach() {
	b.mu.Lock()
	ctx := b.ctx
	b.ctx = nil
	b.analyser = nil
	b.mu.Unlock()
	if ctx != nil {
		_ = ctx.Close()
	}
}

// Analyser returns the live analyser or nil.
func (b *Bridge) Analyser() *AnalyserNode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analyser
}
