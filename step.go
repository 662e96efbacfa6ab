package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/enetx/fsm"
	"github.com/goliatone/go-auth-flow/actor"
	"github.com/goliatone/go-auth-flow/form"
	"github.com/goliatone/go-auth-flow/timer"
	goerrors "github.com/goliatone/go-errors"
)

// Step actor states.
const (
	StepStatePending     fsm.State = "Pending"
	StepStateAttempting  fsm.State = "Attempting"
	StepStateRedirecting fsm.State = "Redirecting"
)

const (
	stepEventSubmit   fsm.Event = "SUBMIT"
	stepEventPrepare  fsm.Event = "PREPARE"
	stepEventRedirect fsm.Event = "REDIRECT"
	stepEventSettled  fsm.Event = "SETTLED"
)

// StepSnapshot is a read-only view of the active step actor.
type StepSnapshot struct {
	ID       StepID
	Instance string
	State    fsm.State
	Strategy Strategy
	Error    *goerrors.Error
	Timer    *timer.Snapshot
}

// Busy reports whether the step is waiting on the API or a redirect.
func (s StepSnapshot) Busy() bool {
	return isBusy(s.State)
}

func isBusy(state fsm.State) bool {
	return state == StepStateAttempting || state == StepStateRedirecting
}

type attemptPurpose int

const (
	purposeSubmit attemptPurpose = iota
	purposePrepare
)

type stepMessage interface{}

type stepEnter struct{}

type stepSubmit struct{}

type stepAuthenticate struct {
	event Authenticate
}

type stepControl struct {
	event Event
}

type attemptSettled struct {
	purpose attemptPurpose
	req     AttemptRequest
	res     *Resource
	err     error
}

type redirectReply struct {
	result RedirectResult
}

// stepBehavior is the business logic plugged into the generic step actor.
type stepBehavior interface {
	enter(ctx context.Context, s *stepActor)
	submit(ctx context.Context, s *stepActor, values map[string]string) (AttemptRequest, error)
	succeeded(ctx context.Context, s *stepActor, purpose attemptPurpose, res *Resource)
	control(ctx context.Context, s *stepActor, ev Event) bool
	timerSnapshot() *timer.Snapshot
	close()
}

type baseBehavior struct{}

func (baseBehavior) enter(context.Context, *stepActor) {}

func (baseBehavior) succeeded(_ context.Context, s *stepActor, _ attemptPurpose, res *Resource) {
	s.done(res)
}

func (baseBehavior) control(context.Context, *stepActor, Event) bool { return false }
func (baseBehavior) timerSnapshot() *timer.Snapshot                  { return nil }
func (baseBehavior) close()                                          {}

// stepDeps are the collaborators a router hands to every step it spawns.
type stepDeps struct {
	flow      FlowKind
	form      *form.Form
	registry  *actor.Registry
	client    Client
	config    Config
	provider  LoggerProvider
	report    func(routerMessage)
	changed   func()
	timerOpts []timer.Option
}

type stepActor struct {
	id       StepID
	flow     FlowKind
	resource *Resource
	form     *form.Form
	registry *actor.Registry
	client   Client
	config   Config
	basePath string
	logger   Logger
	report   func(routerMessage)
	deps     stepDeps

	behavior stepBehavior
	machine  *fsm.FSM
	ref      *actor.Ref[stepMessage]
	strategy Strategy
	err      *goerrors.Error
	snapshot atomic.Pointer[StepSnapshot]
}

func spawnStep(ctx context.Context, id StepID, res *Resource, deps stepDeps) (*stepActor, error) {
	behavior, err := newBehavior(deps.flow, id)
	if err != nil {
		return nil, err
	}

	s := &stepActor{
		id:       id,
		flow:     deps.flow,
		resource: res.Clone(),
		form:     deps.form,
		registry: deps.registry,
		client:   deps.client,
		config:   deps.config,
		basePath: basePath(deps.config, deps.flow),
		logger:   deps.provider.GetLogger(stepLoggerName(id)),
		report:   deps.report,
		deps:     deps,
		behavior: behavior,
	}
	s.machine = fsm.New(StepStatePending).
		Transition(StepStatePending, stepEventSubmit, StepStateAttempting).
		Transition(StepStatePending, stepEventPrepare, StepStateAttempting).
		Transition(StepStatePending, stepEventRedirect, StepStateRedirecting).
		Transition(StepStateAttempting, stepEventSettled, StepStatePending).
		Transition(StepStateRedirecting, stepEventSettled, StepStatePending)
	s.machine.OnTransition(func(from, to fsm.State, _ fsm.Event, _ *fsm.Context) error {
		switch {
		case isBusy(to) && !isBusy(from):
			s.emitLoading(LoadingState{IsLoading: true, Step: s.id, Strategy: s.strategy})
		case isBusy(from) && !isBusy(to):
			s.emitLoading(LoadingState{IsLoading: false})
		}
		return nil
	})

	actorID := fmt.Sprintf("%s:%s", id, newID())
	s.snapshot.Store(&StepSnapshot{ID: id, Instance: actorID, State: StepStatePending})
	s.ref = actor.Spawn[stepMessage](ctx, s.receive, actor.WithID(actorID))
	if err := s.ref.Send(stepEnter{}); err != nil {
		s.ref.Stop()
		return nil, err
	}
	return s, nil
}

func newBehavior(flow FlowKind, id StepID) (stepBehavior, error) {
	switch {
	case id == StepStart:
		return &startStep{}, nil
	case id == StepVerifications:
		return &verificationStep{}, nil
	case id == StepContinue && flow == FlowSignUp:
		return &continueStep{}, nil
	case id == StepResetPassword && flow == FlowSignIn:
		return &resetPasswordStep{}, nil
	default:
		return nil, withMeta(ErrInvalidStep, map[string]any{"flow": string(flow), "step": string(id)})
	}
}

func (s *stepActor) instance() string {
	return s.ref.ID()
}

// Snapshot returns the last committed step state.
func (s *stepActor) Snapshot() StepSnapshot {
	if snap := s.snapshot.Load(); snap != nil {
		return *snap
	}
	return StepSnapshot{ID: s.id, State: StepStatePending}
}

func (s *stepActor) stop() {
	s.ref.Stop()
	s.behavior.close()
}

func (s *stepActor) send(msg stepMessage) error {
	return s.ref.Send(msg)
}

func (s *stepActor) receive(ctx context.Context, msg stepMessage) {
	switch m := msg.(type) {
	case stepEnter:
		s.logger.Debug("step entered", "flow", s.flow, "status", StatusOf(s.resource))
		s.behavior.enter(ctx, s)
	case stepSubmit:
		s.submit(ctx)
	case stepAuthenticate:
		s.authenticate(ctx, m.event)
	case stepControl:
		if !s.behavior.control(ctx, s, m.event) {
			s.logger.Debug("event ignored by step", "event", m.event.Type())
		}
	case attemptSettled:
		s.settleAttempt(ctx, m)
	case redirectReply:
		s.settleRedirect(ctx, m.result)
	default:
		s.logger.Error("step: unknown message", "type", typeName(msg))
	}
	s.publish()
}

func (s *stepActor) submit(ctx context.Context) {
	if state := s.machine.Current(); state != StepStatePending {
		s.logger.Debug("submit ignored while busy", "state", state)
		return
	}

	snap := s.form.Snapshot()
	if invalid := invalidFields(snap); invalid != nil {
		s.err = invalid
		s.logger.Debug("submit blocked by field validation", "code", invalid.TextCode)
		s.report(stepFailed{instance: s.instance(), step: s.id, err: invalid})
		return
	}

	req, err := s.behavior.submit(ctx, s, snap.Values())
	if err != nil {
		s.fail(ctx, err, false)
		return
	}
	s.attempt(ctx, stepEventSubmit, purposeSubmit, req)
}

// attempt moves the step to Attempting and runs the API call off the actor
// goroutine. The result comes back as an attemptSettled message.
func (s *stepActor) attempt(ctx context.Context, event fsm.Event, purpose attemptPurpose, req AttemptRequest) bool {
	previous := s.strategy
	s.strategy = req.Strategy
	if err := s.machine.Trigger(event); err != nil {
		s.strategy = previous
		s.logger.Debug("attempt ignored", "event", event, "state", s.machine.Current())
		return false
	}

	apiCtx := context.WithoutCancel(ctx)
	s.logger.Debug("attempt started", "action", req.Action, "strategy", req.Strategy)
	go func() {
		res, err := s.client.Attempt(apiCtx, s.flow, req)
		_ = s.ref.Send(attemptSettled{purpose: purpose, req: req, res: res, err: err})
	}()
	return true
}

func (s *stepActor) settleAttempt(ctx context.Context, m attemptSettled) {
	if err := s.machine.Trigger(stepEventSettled); err != nil {
		s.logger.Error("attempt settled outside Attempting", "state", s.machine.Current())
	}

	err := m.err
	if err == nil && m.res == nil {
		err = withMeta(ErrAttemptFailed, map[string]any{"action": string(m.req.Action)})
	}
	if err != nil {
		s.fail(ctx, err, false)
		return
	}

	s.err = nil
	s.resource = m.res.Clone()
	if cerr := s.form.ClearErrors(ctx); cerr != nil {
		s.logger.Warn("clear form errors failed", "error", cerr)
	}
	s.behavior.succeeded(ctx, s, m.purpose, m.res)
}

func (s *stepActor) authenticate(ctx context.Context, ev Authenticate) {
	if state := s.machine.Current(); state != StepStatePending {
		s.logger.Debug("authenticate ignored while busy", "state", state, "strategy", ev.Strategy)
		return
	}

	ref, ok := actor.Lookup[thirdPartyMessage](s.registry, ThirdPartyID)
	if !ok {
		s.fail(ctx, withMeta(ErrThirdPartyUnavailable, map[string]any{"id": ThirdPartyID}), true)
		return
	}

	identifier := ev.Identifier
	if identifier == "" && ev.Kind == AuthSAML {
		identifier = s.identifierValue()
	}
	req := RedirectRequest{
		Strategy:            ev.Strategy,
		RedirectURL:         ssoCallbackURL(s.basePath, s.config),
		RedirectURLComplete: afterAuthURL(s.config, s.flow),
		Identifier:          identifier,
	}

	s.strategy = ev.Strategy
	if err := s.machine.Trigger(stepEventRedirect); err != nil {
		s.logger.Debug("authenticate ignored", "state", s.machine.Current())
		return
	}

	reply := func(r RedirectResult) { _ = s.ref.Send(redirectReply{result: r}) }
	if err := ref.Send(redirectMsg{flow: s.flow, kind: ev.Kind, req: req, reply: reply}); err != nil {
		_ = s.machine.Trigger(stepEventSettled)
		s.fail(ctx, withMeta(ErrThirdPartyUnavailable, map[string]any{"id": ThirdPartyID}), true)
	}
}

func (s *stepActor) settleRedirect(ctx context.Context, r RedirectResult) {
	if err := s.machine.Trigger(stepEventSettled); err != nil {
		s.logger.Error("redirect settled outside Redirecting", "state", s.machine.Current())
	}

	switch r.Outcome {
	case RedirectFailed:
		s.fail(ctx, r.Err, true)
	case RedirectResolved:
		s.err = nil
		s.resource = r.Resource.Clone()
		s.behavior.succeeded(ctx, s, purposeSubmit, r.Resource)
	case RedirectStarted:
		s.logger.Info("redirect started", "strategy", r.Strategy)
	}
}

// fail normalizes err, routes it onto the form (unless it is a redirect error,
// which has no field to attach to), waits for the form to acknowledge and only
// then reports to the router.
func (s *stepActor) fail(ctx context.Context, err error, redirect bool) {
	normalized := NormalizeError(err)
	if normalized == nil {
		return
	}
	s.err = normalized

	if !redirect {
		if ferr := s.form.SetErrors(ctx, err); ferr != nil {
			s.logger.Error("set form errors failed", "error", ferr)
		}
	}

	s.logger.Debug("step failed", "code", normalized.TextCode, "redirect", redirect)
	s.report(stepFailed{
		instance: s.instance(),
		step:     s.id,
		strategy: s.strategy,
		err:      normalized,
		redirect: redirect,
	})
}

// done tells the router the attempt finished. The router decides what is next.
func (s *stepActor) done(res *Resource) {
	s.report(stepDone{instance: s.instance(), step: s.id, strategy: s.strategy, resource: res.Clone()})
}

func (s *stepActor) emitLoading(state LoadingState) {
	s.report(stepLoading{instance: s.instance(), loading: state})
}

func (s *stepActor) identifierValue() string {
	snap := s.form.Snapshot()
	if v := snap.Value(FieldIdentifier); v != "" {
		return v
	}
	return snap.Value(FieldEmailAddress)
}

func (s *stepActor) publish() {
	s.snapshot.Store(&StepSnapshot{
		ID:       s.id,
		Instance: s.instance(),
		State:    s.machine.Current(),
		Strategy: s.strategy,
		Error:    s.err,
		Timer:    s.behavior.timerSnapshot(),
	})
	if s.deps.changed != nil {
		s.deps.changed()
	}
}

// invalidFields joins the client-side validation errors currently on the form.
func invalidFields(snap form.Snapshot) *goerrors.Error {
	var errs []error
	for _, f := range snap.Fields {
		if f.Error != nil && f.Error.TextCode == form.TextCodeInvalidValue {
			errs = append(errs, f.Error)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return NormalizeError(errors.Join(errs...))
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
