package swipe

import (
	"context"
	"sync"
	"time"
)

type registryEntry struct {
	controller *Controller
	lastUsed   time.Time
}

// Registry keeps one controller per viewer. Controllers hold transient feed
// state only; Sweep drops the ones nobody has touched for a while.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	newFn   func(viewerID string) *Controller

	// Now is the clock used for idle tracking.
	Now func() time.Time
}

func NewRegistry(resolver Resolver, opts ...Option) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		newFn: func(viewerID string) *Controller {
			return NewController(viewerID, resolver, opts...)
		},
		Now: time.Now,
	}
}

// Get returns the viewer's controller, creating an empty one on first use.
func (r *Registry) Get(viewerID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[viewerID]
	if !ok {
		e = &registryEntry{controller: r.newFn(viewerID)}
		r.entries[viewerID] = e
	}
	e.lastUsed = r.Now()
	return e.controller
}

// Len reports how many viewers have a live controller.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops controllers unused for longer than idle and returns how many it
// dropped. A caller still holding a dropped controller may finish with it;
// the viewer's next Get starts from an empty feed.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.Now().Add(-idle)
	n := 0
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx ends. idle <= 0 disables eviction.
func (r *Registry) Run(ctx context.Context, idle, interval time.Duration) {
	if idle <= 0 {
		return
	}
	if interval <= 0 {
		interval = idle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}
