package authflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/enetx/fsm"
	"github.com/goliatone/go-auth-flow/actor"
	"github.com/goliatone/go-auth-flow/form"
	"github.com/goliatone/go-auth-flow/timer"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// FlowContext is the router context exposed through Snapshot.
type FlowContext struct {
	FlowID      string
	Flow        FlowKind
	Resource    *Resource
	CurrentStep StepID
	// Error holds the last business or redirect error.
	Error *goerrors.Error
	// ConfigError holds the last configuration error. It is never mixed with
	// Error so hosts can tell rejected credentials from a misconfigured build.
	ConfigError *goerrors.Error
	Loading     LoadingState
	Step        *StepSnapshot
	ThirdParty  fsm.State
}

// Snapshot is a read-only view of a Router.
type Snapshot struct {
	State   StepID
	Context FlowContext
	Done    bool
}

type routerMessage interface{}

type envelope struct {
	event   Event
	pending *Pending
}

type routerInit struct{}

type stepLoading struct {
	instance string
	loading  LoadingState
}

type stepDone struct {
	instance string
	step     StepID
	strategy Strategy
	resource *Resource
}

type stepResource struct {
	instance string
	resource *Resource
}

type stepFailed struct {
	instance string
	step     StepID
	strategy Strategy
	err      *goerrors.Error
	redirect bool
}

type stepTimer struct {
	instance string
	event    timer.Event
}

type callbackReply struct {
	result CallbackResult
}

// committed is the router owned part of a snapshot.
type committed struct {
	state       StepID
	resource    *Resource
	err         *goerrors.Error
	configError *goerrors.Error
	loading     LoadingState
	step        *stepActor
}

// Router orchestrates one sign-in or sign-up flow. It owns the form, the
// shared third-party actor and at most one step actor at a time. Events are
// processed strictly in arrival order on the router goroutine.
type Router struct {
	flow     FlowKind
	flowID   string
	client   Client
	config   Config
	provider LoggerProvider
	logger   Logger
	activity ActivitySink

	initial   *Resource
	callback  *CallbackParams
	extra     []fieldDef
	timerOpts []timer.Option

	ref        *actor.Ref[routerMessage]
	form       *form.Form
	registry   *actor.Registry
	thirdParty *thirdParty
	machine    *fsm.FSM

	current     StepID
	resource    *Resource
	err         *goerrors.Error
	configError *goerrors.Error
	loading     LoadingState
	step        *stepActor

	snapshot atomic.Pointer[committed]

	mu          sync.Mutex
	starting    bool
	started     bool
	closed      bool
	outstanding map[*Pending]struct{}
	listeners   map[int]func(HostEvent)
	nextID      int
	changed     chan struct{}
	spawned     []*stepActor

	teardownOnce sync.Once
	torndown     chan struct{}
}

// NewRouter creates a router for flow. Call Start to run it.
func NewRouter(flow FlowKind, client Client, opts ...Option) *Router {
	r := &Router{
		flow:        flow,
		flowID:      newID(),
		client:      client,
		config:      DefaultOptions(),
		current:     StepInit,
		outstanding: make(map[*Pending]struct{}),
		listeners:   make(map[int]func(HostEvent)),
		changed:     make(chan struct{}),
		torndown:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	r.provider, r.logger = ResolveLogger(LoggerRouter, r.provider, r.logger)
	r.activity = normalizeActivitySink(r.activity)
	r.machine = buildRouterMachine(flow)
	r.publish()
	return r
}

// NewSignIn creates a sign-in router.
func NewSignIn(client Client, opts ...Option) *Router {
	return NewRouter(FlowSignIn, client, opts...)
}

// NewSignUp creates a sign-up router.
func NewSignUp(client Client, opts ...Option) *Router {
	return NewRouter(FlowSignUp, client, opts...)
}

func gotoEvent(step StepID) fsm.Event {
	return fsm.Event("goto:" + string(step))
}

func buildRouterMachine(flow FlowKind) *fsm.FSM {
	steps := flowSteps(flow)
	m := fsm.New(fsm.State(StepInit))
	sources := append([]StepID{StepInit}, steps...)
	for _, from := range sources {
		if from == StepComplete {
			continue
		}
		for _, to := range steps {
			m.Transition(fsm.State(from), gotoEvent(to), fsm.State(to))
		}
	}
	return m
}

// Start spawns the router and its children. The first step is chosen from the
// initial resource, or Callback when started on the SSO-callback route.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.starting {
		r.mu.Unlock()
		return withMeta(ErrInvalidEvent, map[string]any{"reason": "router already started"})
	}
	r.starting = true
	r.mu.Unlock()

	if r.client == nil {
		return goerrors.New("authflow: client is required", goerrors.CategoryBadInput).
			WithTextCode("authflow_client_required").
			WithCode(goerrors.CodeBadRequest)
	}

	r.ref = actor.Spawn[routerMessage](ctx, r.receive, actor.WithID(LoggerRouter+":"+r.flowID))
	actorCtx := r.ref.Context()

	r.form = form.New(actorCtx, form.WithLogger(r.provider.GetLogger(LoggerForm)))
	r.registry = actor.NewRegistry()
	r.thirdParty = newThirdParty(r.client, r.config, r.provider.GetLogger(LoggerThirdParty))

	err := registerFields(actorCtx, r.form, r.flow, r.extra)
	if err == nil {
		err = r.thirdParty.start(actorCtx, r.registry)
	}
	if err == nil {
		err = r.ref.Send(routerInit{})
	}
	if err != nil {
		r.ref.Stop()
		r.teardown()
		return err
	}

	go func() {
		<-r.ref.Done()
		r.teardown()
	}()

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	r.logger.Info("router started", "flow", r.flow, "flow_id", r.flowID)
	return nil
}

// Stop tears down the router and every child. Pending results that were not
// processed yet resolve with ErrRouterStopped.
func (r *Router) Stop() {
	if r.ref == nil {
		r.teardown()
		return
	}
	r.ref.Stop()
	<-r.torndown
}

func (r *Router) teardown() {
	r.teardownOnce.Do(func() {
		if r.step != nil {
			r.step.stop()
		}
		if r.thirdParty != nil {
			r.thirdParty.stop(r.registry)
		}
		if r.form != nil {
			r.form.Close()
		}

		r.mu.Lock()
		r.closed = true
		pending := r.outstanding
		r.outstanding = make(map[*Pending]struct{})
		r.mu.Unlock()

		for p := range pending {
			p.resolve(withMeta(ErrRouterStopped, map[string]any{"flow_id": r.flowID}))
		}
		r.logger.Info("router stopped", "flow", r.flow, "flow_id", r.flowID)
		r.notifyChanged()
		close(r.torndown)
	})
}

// Stopped is closed once the router and its children are torn down.
func (r *Router) Stopped() <-chan struct{} {
	return r.torndown
}

// Send enqueues ev and returns immediately. The returned Pending resolves once
// the router processed ev. Pending results resolve in send order.
func (r *Router) Send(ev Event) *Pending {
	if ev == nil {
		return resolvedPending(withMeta(ErrInvalidEvent, map[string]any{"reason": "nil event"}))
	}

	p := newPending()
	r.mu.Lock()
	if r.closed || !r.started || r.ref == nil {
		r.mu.Unlock()
		return resolvedPending(withMeta(ErrRouterStopped, map[string]any{"event": ev.Type()}))
	}
	r.outstanding[p] = struct{}{}
	r.mu.Unlock()

	if err := r.ref.Send(envelope{event: ev, pending: p}); err != nil {
		r.settle(p, withMeta(ErrRouterStopped, map[string]any{"event": ev.Type()}))
	}
	return p
}

// Navigate sends ev and waits until the router processed it. Cancelling ctx
// abandons the wait, not the event.
func (r *Router) Navigate(ctx context.Context, ev Event) error {
	return r.Send(ev).Wait(ctx)
}

// Snapshot returns the current router state. Reads never block.
func (r *Router) Snapshot() Snapshot {
	c := r.snapshot.Load()
	snap := Snapshot{
		State: c.state,
		Done:  c.state == StepComplete,
		Context: FlowContext{
			FlowID:      r.flowID,
			Flow:        r.flow,
			Resource:    c.resource.Clone(),
			CurrentStep: c.state,
			Error:       c.err,
			ConfigError: c.configError,
			Loading:     c.loading,
			ThirdParty:  ThirdPartyIdle,
		},
	}
	if c.step != nil {
		step := c.step.Snapshot()
		snap.Context.Step = &step
	}
	if r.thirdParty != nil {
		snap.Context.ThirdParty = r.thirdParty.State()
	}
	return snap
}

// Form returns the current form state.
func (r *Router) Form() form.Snapshot {
	if r.form == nil {
		return form.Snapshot{}
	}
	return r.form.Snapshot()
}

// ActiveSteps lists the step actors that are still running.
func (r *Router) ActiveSteps() []StepID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []StepID
	for _, s := range r.spawned {
		if !s.ref.Stopped() {
			out = append(out, s.id)
		}
	}
	return out
}

// Subscribe registers fn for host events. fn runs on the router goroutine: it
// may call Send but must not wait on a Pending.
func (r *Router) Subscribe(fn func(HostEvent)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = fn

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// WaitFor blocks until pred holds for a snapshot, ctx ends or the router stops.
func (r *Router) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		r.mu.Lock()
		changed := r.changed
		r.mu.Unlock()

		snap := r.Snapshot()
		if pred(snap) {
			return snap, nil
		}

		select {
		case <-changed:
		case <-r.torndown:
			snap = r.Snapshot()
			if pred(snap) {
				return snap, nil
			}
			return snap, withMeta(ErrRouterStopped, map[string]any{"flow_id": r.flowID})
		case <-ctx.Done():
			return r.Snapshot(), ctx.Err()
		}
	}
}

func (r *Router) receive(ctx context.Context, msg routerMessage) {
	switch m := msg.(type) {
	case routerInit:
		r.init(ctx)
	case envelope:
		err := r.handle(ctx, m.event)
		r.publish()
		r.settle(m.pending, err)
		return
	case stepLoading:
		if r.isCurrent(m.instance) {
			r.loading = m.loading
			r.emit(HostEvent{Type: HostEventLoading, Loading: m.loading, Step: r.current})
		}
	case stepDone:
		if r.isCurrent(m.instance) {
			r.stepDone(ctx, m)
		}
	case stepResource:
		if r.isCurrent(m.instance) {
			r.resource = m.resource
		}
	case stepFailed:
		if r.isCurrent(m.instance) {
			r.stepFailed(ctx, m)
		}
	case stepTimer:
		if r.isCurrent(m.instance) {
			r.relayTimer(m.event)
		}
	case callbackReply:
		r.callbackSettled(ctx, m.result)
	default:
		r.logger.Error("router: unknown message", "type", typeName(msg))
	}
	r.publish()
}

func (r *Router) init(ctx context.Context) {
	if r.callback != nil {
		_ = r.redirectCallback(ctx, *r.callback)
		return
	}

	target, err := StepForStatus(r.flow, r.initial)
	if err != nil {
		r.fail(ctx, err)
		return
	}
	if err := r.advance(ctx, target, r.initial); err != nil {
		r.fail(ctx, err)
	}
}

func (r *Router) handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case Submit:
		return r.forward(ev, stepSubmit{})
	case Authenticate:
		return r.forward(ev, stepAuthenticate{event: e})
	case FieldSet:
		if err := r.form.Set(ctx, e.Name, e.Value); err != nil {
			r.fail(ctx, err)
			return err
		}
		return nil
	case FieldClear:
		if err := r.form.Clear(ctx, e.Names...); err != nil {
			r.fail(ctx, err)
			return err
		}
		return nil
	case Reset:
		return r.reset(ctx)
	case RedirectCallback:
		return r.redirectCallback(ctx, e.Params)
	case TimerControl, StrategySet, Retry, PasswordForgot:
		if r.current != StepVerifications {
			return r.rejected(ev)
		}
		return r.forward(ev, stepControl{event: ev})
	default:
		return r.rejected(ev)
	}
}

func (r *Router) forward(ev Event, msg stepMessage) error {
	if r.step == nil {
		return r.rejected(ev)
	}
	if err := r.step.send(msg); err != nil {
		return r.rejected(ev)
	}
	return nil
}

func (r *Router) rejected(ev Event) error {
	r.logger.Debug("event rejected", "event", ev.Type(), "state", r.current)
	return withMeta(ErrInvalidEvent, map[string]any{
		"event": ev.Type(),
		"state": string(r.current),
	})
}

// advance moves the router to target. A step actor is replaced when the step
// changes, or when the resource status changed under the same step.
func (r *Router) advance(ctx context.Context, target StepID, res *Resource) error {
	previousStatus := StatusOf(r.resource)
	if res != nil {
		r.resource = res.Clone()
	}
	if target == r.current && r.step != nil && StatusOf(res) == previousStatus {
		return nil
	}

	if err := r.machine.Trigger(gotoEvent(target)); err != nil {
		r.logger.Debug("transition ignored", "from", r.current, "to", target)
		return withMeta(ErrInvalidEvent, map[string]any{
			"event": string(gotoEvent(target)),
			"state": string(r.current),
		})
	}

	r.stopStep()
	r.current = target
	if target.HasActor() {
		if err := r.spawnStep(ctx, target); err != nil {
			return err
		}
	}

	r.logger.Debug("step entered", "flow", r.flow, "step", target, "status", StatusOf(r.resource))
	r.record(ctx, ActivityEvent{EventType: ActivityEventStepEntered, Step: target})
	r.emit(HostEvent{Type: HostEventNext, Step: target})

	if target == StepComplete {
		r.logger.Info("flow complete", "flow", r.flow, "resource_id", r.resourceID())
		r.record(ctx, ActivityEvent{EventType: ActivityEventFlowComplete, Step: target})
		r.emit(HostEvent{Type: HostEventFlowComplete, Step: target})
	}
	return nil
}

func (r *Router) spawnStep(ctx context.Context, id StepID) error {
	step, err := spawnStep(ctx, id, r.resource, stepDeps{
		flow:      r.flow,
		form:      r.form,
		registry:  r.registry,
		client:    r.client,
		config:    r.config,
		provider:  r.provider,
		report:    r.report,
		changed:   r.notifyChanged,
		timerOpts: r.timerOpts,
	})
	if err != nil {
		return err
	}

	r.step = step
	r.mu.Lock()
	alive := r.spawned[:0]
	for _, s := range r.spawned {
		if !s.ref.Stopped() {
			alive = append(alive, s)
		}
	}
	r.spawned = append(alive, step)
	r.mu.Unlock()
	return nil
}

func (r *Router) stopStep() {
	if r.step != nil {
		r.step.stop()
		r.step = nil
	}
	if r.loading.IsLoading {
		r.loading = LoadingState{}
		r.emit(HostEvent{Type: HostEventLoading, Loading: r.loading, Step: r.current})
	}
}

func (r *Router) stepDone(ctx context.Context, m stepDone) {
	r.err = nil
	r.record(ctx, ActivityEvent{
		EventType:  ActivityEventAttemptSucceeded,
		Step:       m.step,
		Strategy:   m.strategy,
		ResourceID: resourceID(m.resource),
	})

	target, err := StepForStatus(r.flow, m.resource)
	if err != nil {
		r.resource = m.resource
		r.fail(ctx, err)
		return
	}
	if err := r.advance(ctx, target, m.resource); err != nil {
		r.fail(ctx, err)
	}
}

func (r *Router) stepFailed(ctx context.Context, m stepFailed) {
	if IsConfigurationError(m.err) {
		r.fail(ctx, m.err)
		return
	}

	r.err = m.err
	event := ActivityEventAttemptFailed
	if m.redirect {
		event = ActivityEventRedirectFailed
		r.logger.Warn("redirect failed", "step", m.step, "strategy", m.strategy, "code", m.err.TextCode)
	} else {
		r.logger.Debug("attempt failed", "step", m.step, "strategy", m.strategy, "code", m.err.TextCode)
	}
	r.record(ctx, ActivityEvent{EventType: event, Step: m.step, Strategy: m.strategy, Code: m.err.TextCode})
	r.emit(HostEvent{Type: HostEventError, Step: m.step, Error: m.err})
}

// fail records err. Configuration errors go to their own slot and are logged
// at error level.
func (r *Router) fail(ctx context.Context, err error) {
	normalized := NormalizeError(err)
	if normalized == nil {
		return
	}

	if IsConfigurationError(err) {
		r.configError = normalized
		r.logger.Error("configuration error", "flow", r.flow, "step", r.current, "code", normalized.TextCode, "meta", normalized.Metadata)
		r.record(ctx, ActivityEvent{EventType: ActivityEventConfigError, Step: r.current, Code: normalized.TextCode})
	} else {
		r.err = normalized
		r.logger.Debug("flow error", "step", r.current, "code", normalized.TextCode)
	}
	r.emit(HostEvent{Type: HostEventError, Step: r.current, Error: normalized})
}

func (r *Router) reset(ctx context.Context) error {
	if r.current == StepComplete {
		return r.rejected(Reset{})
	}

	r.stopStep()
	if err := r.form.Clear(ctx); err != nil {
		r.logger.Error("reset: clear form failed", "error", err)
	}
	if err := r.form.ClearErrors(ctx); err != nil {
		r.logger.Error("reset: clear form errors failed", "error", err)
	}
	r.resource = nil
	r.err = nil
	r.configError = nil
	return r.advance(ctx, StepStart, nil)
}

func (r *Router) redirectCallback(ctx context.Context, params CallbackParams) error {
	if err := r.machine.Trigger(gotoEvent(StepCallback)); err != nil {
		return r.rejected(RedirectCallback{Params: params})
	}
	r.stopStep()
	r.current = StepCallback

	unavailable := withMeta(ErrThirdPartyUnavailable, map[string]any{"id": ThirdPartyID})
	ref, ok := actor.Lookup[thirdPartyMessage](r.registry, ThirdPartyID)
	if !ok {
		r.fail(ctx, unavailable)
		return unavailable
	}

	reply := func(result CallbackResult) { _ = r.ref.Send(callbackReply{result: result}) }
	if err := ref.Send(callbackMsg{flow: r.flow, params: params, reply: reply}); err != nil {
		r.fail(ctx, unavailable)
		return unavailable
	}

	r.loading = LoadingState{IsLoading: true, Step: StepCallback}
	r.emit(HostEvent{Type: HostEventLoading, Loading: r.loading, Step: StepCallback})
	r.record(ctx, ActivityEvent{EventType: ActivityEventStepEntered, Step: StepCallback})
	return nil
}

func (r *Router) callbackSettled(ctx context.Context, result CallbackResult) {
	if r.current != StepCallback {
		r.logger.Debug("late callback result dropped", "state", r.current)
		return
	}

	r.loading = LoadingState{}
	r.emit(HostEvent{Type: HostEventLoading, Loading: r.loading, Step: StepCallback})

	if result.Err != nil {
		r.err = result.Err
		r.logger.Warn("callback failed", "code", result.Err.TextCode)
		r.record(ctx, ActivityEvent{EventType: ActivityEventRedirectFailed, Step: StepCallback, Code: result.Err.TextCode})
		r.emit(HostEvent{Type: HostEventError, Step: StepCallback, Error: result.Err})
		if err := r.advance(ctx, StepStart, nil); err != nil {
			r.fail(ctx, err)
		}
		return
	}

	res := result.Resource
	if res == nil {
		res = r.resource
	}

	directive := DefaultCallbackDirective
	for _, d := range result.Directives {
		r.emit(HostEvent{Type: HostEventNavigate, Step: StepCallback, Directive: d})
		directive = d
	}
	if !directive.Known() {
		r.logger.Debug("unrecognized callback directive, using default", "directive", directive, "default", DefaultCallbackDirective)
		directive = DefaultCallbackDirective
	}

	var err error
	switch directive {
	case DirectiveVerification:
		err = r.advance(ctx, StepVerifications, res)
	case DirectiveSignIn:
		if r.flow == FlowSignIn {
			err = r.advance(ctx, StepStart, res)
		}
	case DirectiveSignUp:
		if r.flow == FlowSignUp {
			err = r.advance(ctx, StepStart, res)
		}
	default:
		var target StepID
		if target, err = StepForStatus(r.flow, res); err == nil {
			err = r.advance(ctx, target, res)
		}
	}
	if err != nil {
		r.fail(ctx, err)
	}
}

func (r *Router) relayTimer(e timer.Event) {
	switch e.Type {
	case timer.EventTick:
		r.emit(HostEvent{Type: HostEventTick, Step: r.current, Remaining: e.Remaining})
	case timer.EventComplete:
		r.emit(HostEvent{Type: HostEventTimerComplete, Step: r.current, Remaining: e.Remaining})
	}
}

// report is handed to step actors as their only way to reach the router.
func (r *Router) report(msg routerMessage) {
	_ = r.ref.Send(msg)
}

func (r *Router) isCurrent(instance string) bool {
	return r.step != nil && r.step.instance() == instance
}

func (r *Router) settle(p *Pending, err error) {
	if p == nil {
		return
	}
	r.mu.Lock()
	delete(r.outstanding, p)
	r.mu.Unlock()
	p.resolve(err)
}

func (r *Router) emit(ev HostEvent) {
	ev.Flow = r.flow

	r.mu.Lock()
	listeners := make([]func(HostEvent), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func (r *Router) record(ctx context.Context, ev ActivityEvent) {
	ev.Flow = r.flow
	ev.FlowID = r.flowID
	if ev.ResourceID == "" {
		ev.ResourceID = r.resourceID()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := r.activity.Record(ctx, ev); err != nil {
		r.logger.Warn("activity sink failed", "event", ev.EventType, "error", err)
	}
}

func (r *Router) publish() {
	r.snapshot.Store(&committed{
		state:       r.current,
		resource:    r.resource.Clone(),
		err:         r.err,
		configError: r.configError,
		loading:     r.loading,
		step:        r.step,
	})
	r.notifyChanged()
}

func (r *Router) notifyChanged() {
	r.mu.Lock()
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
}

func (r *Router) resourceID() string {
	return resourceID(r.resource)
}

func resourceID(res *Resource) string {
	if res == nil {
		return ""
	}
	return res.ID
}

func newID() string {
	return uuid.NewString()
}
