// Package timer implements the countdown actor used for resend cooldowns and
// code expiry displays.
//
// A timer sits in Idle until START or TOGGLE moves it to Running. While running
// it wakes up once per tick interval: when the remaining seconds are already at
// or below zero it moves to the terminal Complete state and emits a single
// complete event, otherwise it decrements and emits a tick carrying the new
// value. RESET is accepted from every state and re-seeds the countdown without
// starting it.
package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/enetx/fsm"
	"github.com/goliatone/go-auth-flow/actor"
	"github.com/goliatone/go-auth-flow/internal/logging"
	"github.com/goliatone/go-logger/glog"
)

// Timer states.
const (
	StateIdle     fsm.State = "Idle"
	StateRunning  fsm.State = "Running"
	StateComplete fsm.State = "Complete"
)

const (
	eventStart  fsm.Event = "START"
	eventStop   fsm.Event = "STOP"
	eventToggle fsm.Event = "TOGGLE"
	eventReset  fsm.Event = "RESET"
	eventTick   fsm.Event = "TICK"
)

// EventType identifies events emitted to subscribers.
type EventType string

const (
	EventTick     EventType = "tick"
	EventComplete EventType = "complete"
)

// Event is emitted to subscribers.
type Event struct {
	Type      EventType
	Remaining int
}

// Snapshot is a read-only view of the timer.
type Snapshot struct {
	State     fsm.State
	Initial   int
	Remaining int
	Timeout   time.Duration
}

// Done reports whether the timer reached its terminal state.
func (s Snapshot) Done() bool {
	return s.State == StateComplete
}

// Stopper cancels a scheduled callback. *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Stopper

// DefaultTimeout is the tick interval used when none is configured.
const DefaultTimeout = time.Second

// Option customizes a Timer.
type Option func(*Timer)

// WithInitial sets the starting number of seconds.
func WithInitial(seconds int) Option {
	return func(t *Timer) {
		t.initial = seconds
		t.remaining = seconds
	}
}

// WithTimeout sets the tick interval.
func WithTimeout(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithAfterFunc overrides the scheduler (useful for tests).
func WithAfterFunc(fn AfterFunc) Option {
	return func(t *Timer) {
		if fn != nil {
			t.afterFunc = fn
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger glog.Logger) Option {
	return func(t *Timer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithID sets the actor identifier.
func WithID(id string) Option {
	return func(t *Timer) {
		t.id = id
	}
}

// ResetOption customizes a RESET event.
type ResetOption func(*resetArgs)

type resetArgs struct {
	initial *int
	timeout time.Duration
}

// ResetInitial re-seeds the countdown with n seconds.
func ResetInitial(n int) ResetOption {
	return func(a *resetArgs) {
		a.initial = &n
	}
}

// ResetTimeout changes the tick interval.
func ResetTimeout(d time.Duration) ResetOption {
	return func(a *resetArgs) {
		a.timeout = d
	}
}

type message struct {
	event fsm.Event
	reset resetArgs
	gen   uint64
}

// Timer is the countdown actor. Its fields are owned by the actor goroutine;
// other goroutines read through Snapshot.
type Timer struct {
	id        string
	initial   int
	remaining int
	timeout   time.Duration
	afterFunc AfterFunc
	logger    glog.Logger

	machine *fsm.FSM
	ref     *actor.Ref[message]
	gen     uint64
	pending Stopper

	snapshot atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// New spawns a timer bound to ctx.
func New(ctx context.Context, opts ...Option) *Timer {
	t := &Timer{
		timeout: DefaultTimeout,
		afterFunc: func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		},
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.logger == nil {
		_, t.logger = logging.Resolve("authflow.timer", nil, logging.Nop())
	}

	t.machine = t.buildMachine()
	t.publish()

	actorOpts := []actor.Option{}
	if t.id != "" {
		actorOpts = append(actorOpts, actor.WithID(t.id))
	}
	t.ref = actor.Spawn(ctx, t.receive, actorOpts...)
	return t
}

func (t *Timer) buildMachine() *fsm.FSM {
	expired := func(*fsm.Context) bool { return t.remaining <= 0 }
	running := func(*fsm.Context) bool { return t.remaining > 0 }

	return fsm.New(StateIdle).
		Transition(StateIdle, eventStart, StateRunning).
		Transition(StateIdle, eventToggle, StateRunning).
		Transition(StateIdle, eventReset, StateIdle).
		Transition(StateRunning, eventStop, StateIdle).
		Transition(StateRunning, eventToggle, StateIdle).
		Transition(StateRunning, eventReset, StateIdle).
		TransitionWhen(StateRunning, eventTick, StateComplete, expired).
		TransitionWhen(StateRunning, eventTick, StateRunning, running).
		Transition(StateComplete, eventReset, StateIdle)
}

// Start moves an idle timer to Running.
func (t *Timer) Start() error { return t.ref.Send(message{event: eventStart}) }

// Stop pauses a running timer.
func (t *Timer) Stop() error { return t.ref.Send(message{event: eventStop}) }

// Toggle starts an idle timer or pauses a running one.
func (t *Timer) Toggle() error { return t.ref.Send(message{event: eventToggle}) }

// Reset re-seeds the countdown from any state without starting it.
func (t *Timer) Reset(opts ...ResetOption) error {
	args := resetArgs{}
	for _, opt := range opts {
		if opt != nil {
			opt(&args)
		}
	}
	return t.ref.Send(message{event: eventReset, reset: args})
}

// Close stops the actor and any scheduled tick.
func (t *Timer) Close() {
	t.ref.Stop()
	if t.pending != nil {
		t.pending.Stop()
	}
}

// Snapshot returns the last committed state.
func (t *Timer) Snapshot() Snapshot {
	if s := t.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{State: StateIdle}
}

// Subscribe registers fn for tick and complete events. fn runs on the timer
// goroutine and must not block.
func (t *Timer) Subscribe(fn func(Event)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.listeners[id] = fn

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *Timer) receive(_ context.Context, msg message) {
	if msg.event == eventTick && msg.gen != t.gen {
		return
	}

	from := t.machine.Current()
	if err := t.machine.Trigger(msg.event); err != nil {
		t.logger.Trace("timer event ignored", "event", msg.event, "state", from)
		return
	}
	to := t.machine.Current()

	switch msg.event {
	case eventReset:
		t.cancelTick()
		if msg.reset.initial != nil {
			t.initial = *msg.reset.initial
		}
		if msg.reset.timeout > 0 {
			t.timeout = msg.reset.timeout
		}
		t.remaining = t.initial
	case eventTick:
		if to == StateComplete {
			t.pending = nil
			t.publish()
			t.emit(Event{Type: EventComplete, Remaining: t.remaining})
			return
		}
		t.remaining--
		t.publish()
		t.emit(Event{Type: EventTick, Remaining: t.remaining})
		t.scheduleTick()
		return
	default:
		if to == StateRunning && from != StateRunning {
			t.scheduleTick()
		}
		if to == StateIdle {
			t.cancelTick()
		}
	}

	t.publish()
}

func (t *Timer) scheduleTick() {
	t.cancelTick()
	gen := t.gen
	t.pending = t.afterFunc(t.timeout, func() {
		_ = t.ref.Send(message{event: eventTick, gen: gen})
	})
}

// cancelTick invalidates any tick already scheduled or queued.
func (t *Timer) cancelTick() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) publish() {
	t.snapshot.Store(&Snapshot{
		State:     t.machine.Current(),
		Initial:   t.initial,
		Remaining: t.remaining,
		Timeout:   t.timeout,
	})
}

func (t *Timer) emit(evt Event) {
	t.mu.Lock()
	listeners := make([]func(Event), 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(evt)
	}
}
