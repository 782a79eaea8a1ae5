package session

import (
	"context"
	"sync/atomic"

	"rallymatch/backend/internal/models"
)

// State of a Resolution.
type State int32

const (
	Unresolved State = iota
	Resolving
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unresolved"
	}
}

// Resolution is the pending outcome of an asynchronous Resolve. It moves from
// Resolving to exactly one of Resolved or Failed and never changes again.
// The zero value is Unresolved and never completes.
type Resolution struct {
	state   atomic.Int32
	done    chan struct{}
	session *models.ChatSession
	err     error
}

// Async runs fn on its own goroutine and returns the Resolution tracking it.
func Async(fn func() (*models.ChatSession, error)) *Resolution {
	r := &Resolution{done: make(chan struct{})}
	r.state.Store(int32(Resolving))
	go func() {
		cs, err := fn()
		r.complete(cs, err)
	}()
	return r
}

func (r *Resolution) complete(cs *models.ChatSession, err error) {
	r.session, r.err = cs, err
	if err != nil {
		r.state.Store(int32(Failed))
	} else {
		r.state.Store(int32(Resolved))
	}
	close(r.done)
}

func (r *Resolution) State() State {
	return State(r.state.Load())
}

// Done is closed once the resolution leaves Resolving.
func (r *Resolution) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the resolution completes or ctx ends.
func (r *Resolution) Wait(ctx context.Context) (*models.ChatSession, error) {
	select {
	case <-r.done:
		return r.session, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Session is nil until the state is Resolved.
func (r *Resolution) Session() *models.ChatSession {
	if r.State() != Resolved {
		return nil
	}
	return r.session
}

// Err is nil unless the state is Failed.
func (r *Resolution) Err() error {
	if r.State() != Failed {
		return nil
	}
	return r.err
}
