package authflow

import (
	"context"
	"sync"
)

// Pending is the result of a Send. It resolves exactly once, after the router
// processed the event, with nil or the error the event produced.
type Pending struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolvedPending(err error) *Pending {
	p := newPending()
	p.resolve(err)
	return p
}

// resolve reports whether this call settled the pending result.
func (p *Pending) resolve(err error) bool {
	settled := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		settled = true
	})
	return settled
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the result, or nil while unresolved.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the result is available or ctx ends. Giving up on the
// wait does not cancel the event.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
