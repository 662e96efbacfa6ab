// Package actor provides the mailbox runtime shared by every flow actor.
//
// An actor owns its state and processes one message at a time on its own
// goroutine. Sending is asynchronous and never blocks the sender: messages are
// appended to an unbounded FIFO mailbox and delivered strictly in send order.
// The parent that spawned an actor owns its lifecycle; children only keep a
// Ref to send events upward.
package actor

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Handler processes a single message. It runs on the actor goroutine and is
// never invoked concurrently with itself.
type Handler[M any] func(ctx context.Context, msg M)

// Hooks observe the actor lifecycle. All fields are optional.
type Hooks struct {
	AfterStart func(id string)
	AfterStop  func(id string)
	OnPanic    func(id string, recovered any)
}

// Option customizes a spawned actor.
type Option func(*options)

type options struct {
	id    string
	hooks Hooks
}

// WithID sets a stable identifier. Defaults to a random UUID.
func WithID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.id = id
		}
	}
}

// WithHooks attaches lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		o.hooks = h
	}
}

// Ref is the handle used to address a running actor.
type Ref[M any] struct {
	id      string
	handler Handler[M]
	hooks   Hooks

	mu      sync.Mutex
	queue   []M
	stopped bool
	signal  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Spawn starts a new actor bound to parent. Cancelling parent stops the actor.
func Spawn[M any](parent context.Context, handler Handler[M], opts ...Option) *Ref[M] {
	o := options{id: uuid.NewString()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)
	ref := &Ref[M]{
		id:      o.id,
		handler: handler,
		hooks:   o.hooks,
		signal:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go ref.loop()
	return ref
}

// ID returns the actor identifier.
func (r *Ref[M]) ID() string {
	if r == nil {
		return ""
	}
	return r.id
}

// Send enqueues msg. It returns ErrStopped once the actor has been stopped.
func (r *Ref[M]) Send(msg M) error {
	if r == nil {
		return ErrStopped
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrStopped
	}
	r.queue = append(r.queue, msg)
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
	return nil
}

// Stop cancels the actor and waits for the message in progress to finish.
// Queued messages that were not yet delivered are dropped. Stop is idempotent
// and must not be called from the actor's own handler.
func (r *Ref[M]) Stop() {
	if r == nil {
		return
	}
	r.markStopped()
	r.cancel()
	<-r.done
}

// Stopped reports whether the actor no longer accepts messages.
func (r *Ref[M]) Stopped() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Done is closed when the actor loop exits.
func (r *Ref[M]) Done() <-chan struct{} {
	return r.done
}

// Context is cancelled when the actor stops. Work started on behalf of the
// actor should be bound to it.
func (r *Ref[M]) Context() context.Context {
	return r.ctx
}

func (r *Ref[M]) markStopped() {
	r.mu.Lock()
	r.stopped = true
	r.queue = nil
	r.mu.Unlock()
}

func (r *Ref[M]) next() (M, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero M
	if len(r.queue) == 0 {
		return zero, false
	}
	msg := r.queue[0]
	r.queue[0] = zero
	r.queue = r.queue[1:]
	return msg, true
}

func (r *Ref[M]) loop() {
	defer func() {
		r.markStopped()
		close(r.done)
		if r.hooks.AfterStop != nil {
			r.hooks.AfterStop(r.id)
		}
	}()

	if r.hooks.AfterStart != nil {
		r.hooks.AfterStart(r.id)
	}

	for {
		for {
			if r.ctx.Err() != nil {
				return
			}
			msg, ok := r.next()
			if !ok {
				break
			}
			r.deliver(msg)
		}

		select {
		case <-r.ctx.Done():
			return
		case <-r.signal:
		}
	}
}

func (r *Ref[M]) deliver(msg M) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.hooks.OnPanic == nil {
				panic(rec)
			}
			r.hooks.OnPanic(r.id, rec)
		}
	}()
	r.handler(r.ctx, msg)
}

// Text codes of the runtime errors.
const (
	TextCodeStopped             = "actor_stopped"
	TextCodeAlreadyRegistered   = "actor_already_registered"
	TextCodeInvalidRegistration = "actor_invalid_registration"
)

// ErrStopped is returned when sending to an actor that is no longer running.
var ErrStopped = goerrors.New("actor stopped", goerrors.CategoryOperation).
	WithTextCode(TextCodeStopped).
	WithCode(goerrors.CodeInternal)

// ErrAlreadyRegistered is the base error for a duplicate registry id.
var ErrAlreadyRegistered = goerrors.New("actor id already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyRegistered).
	WithCode(goerrors.CodeConflict)

// ErrInvalidRegistration is the base error for registering a nil ref or into a
// nil registry.
var ErrInvalidRegistration = goerrors.New("cannot register actor", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidRegistration).
	WithCode(goerrors.CodeInternal)
