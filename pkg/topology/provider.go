package topology

import (
	"context"
	"sync/atomic"
)

// Provider hands the current topology snapshot to the resilience engine.
// Implementations must return a fully formed snapshot that the caller may
// read without synchronization.
type Provider interface {
	Current(ctx context.Context) (*Topology, error)
}

// Watcher is implemented by providers that can signal that the topology
// changed. Notifications are coalesced: a receiver that is busy sees one
// pending signal, not one per change.
type Watcher interface {
	Changes() <-chan struct{}
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*Topology, error)

// Current calls f.
func (f ProviderFunc) Current(ctx context.Context) (*Topology, error) {
	return f(ctx)
}

// StaticProvider always returns the same snapshot.
type StaticProvider struct {
	snapshot *Topology
}

// NewStaticProvider wraps a snapshot.
func NewStaticProvider(t *Topology) *StaticProvider {
	return &StaticProvider{snapshot: t}
}

// Current returns the wrapped snapshot.
func (p *StaticProvider) Current(ctx context.Context) (*Topology, error) {
	if p.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return p.snapshot, nil
}

// MutableProvider holds a snapshot that fleet management replaces as the
// fleet changes. Set swaps the snapshot atomically and signals Changes.
type MutableProvider struct {
	current atomic.Pointer[Topology]
	changes chan struct{}
}

// NewMutableProvider creates a provider seeded with t (which may be nil).
func NewMutableProvider(t *Topology) *MutableProvider {
	p := &MutableProvider{changes: make(chan struct{}, 1)}
	if t != nil {
		p.current.Store(t.Clone())
	}
	return p
}

// Set publishes a new snapshot. The snapshot is copied so later mutation of
// the argument cannot tear a snapshot that an analysis is reading.
func (p *MutableProvider) Set(t *Topology) {
	p.current.Store(t.Clone())
	notify(p.changes)
}

// Current returns the latest published snapshot.
func (p *MutableProvider) Current(ctx context.Context) (*Topology, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := p.current.Load()
	if t == nil {
		return nil, ErrNoSnapshot
	}
	return t, nil
}

// Changes implements Watcher.
func (p *MutableProvider) Changes() <-chan struct{} {
	return p.changes
}

// notify performs a non-blocking send on a one-slot channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
