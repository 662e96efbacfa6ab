package authflow

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/enetx/fsm"
	"github.com/enetx/g"
	"github.com/goliatone/go-auth-flow/actor"
	"github.com/goliatone/go-auth-flow/internal/structured"
	goerrors "github.com/goliatone/go-errors"
)

// ThirdPartyID is the registry identifier of the flow's shared third-party actor.
const ThirdPartyID = "authflow.third-party"

// Third-party actor states.
const (
	ThirdPartyIdle              fsm.State = "Idle"
	ThirdPartyRedirectingSignIn fsm.State = "RedirectingSignIn"
	ThirdPartyRedirectingSignUp fsm.State = "RedirectingSignUp"
	ThirdPartyHandlingCallback  fsm.State = "HandlingCallback"
)

const (
	tpEventRedirectSignIn fsm.Event = "REDIRECT.SIGN_IN"
	tpEventRedirectSignUp fsm.Event = "REDIRECT.SIGN_UP"
	tpEventCallback       fsm.Event = "REDIRECT.CALLBACK"
	tpEventSettled        fsm.Event = "SETTLED"
)

// RedirectOutcome classifies how a third-party request settled.
type RedirectOutcome string

const (
	// RedirectStarted means navigation away from the page was initiated.
	RedirectStarted RedirectOutcome = "started"
	// RedirectFailed means the request failed before navigating.
	RedirectFailed RedirectOutcome = "failed"
	// RedirectResolved means the strategy completed in process (wallets).
	RedirectResolved RedirectOutcome = "resolved"
)

// RedirectResult is the normalized report a step receives for REDIRECT.
type RedirectResult struct {
	Outcome  RedirectOutcome
	Strategy Strategy
	Resource *Resource
	Err      *goerrors.Error
}

// CallbackResult is the report the router receives for REDIRECT.CALLBACK.
type CallbackResult struct {
	Directives []Directive
	Resource   *Resource
	Err        *goerrors.Error
}

type thirdPartyMessage interface{}

type redirectMsg struct {
	flow  FlowKind
	kind  AuthKind
	req   RedirectRequest
	reply func(RedirectResult)
}

type callbackMsg struct {
	flow   FlowKind
	params CallbackParams
	reply  func(CallbackResult)
}

type redirectSettled struct {
	result RedirectResult
	reply  func(RedirectResult)
}

type callbackSettled struct {
	result CallbackResult
	reply  func(CallbackResult)
}

// thirdParty owns every redirect based strategy of one router.
type thirdParty struct {
	client   Client
	config   Config
	logger   Logger
	enabled  g.Set[Strategy]
	saml     bool
	machine  *fsm.FSM
	ref      *actor.Ref[thirdPartyMessage]
	state    atomic.Value
	inFlight Strategy
}

func newThirdParty(client Client, cfg Config, logger Logger) *thirdParty {
	tp := &thirdParty{
		client:  client,
		config:  cfg,
		logger:  logger,
		enabled: enabledStrategies(cfg),
		saml:    cfg.GetEnterpriseSSO(),
	}
	tp.machine = fsm.New(ThirdPartyIdle).
		Transition(ThirdPartyIdle, tpEventRedirectSignIn, ThirdPartyRedirectingSignIn).
		Transition(ThirdPartyIdle, tpEventRedirectSignUp, ThirdPartyRedirectingSignUp).
		Transition(ThirdPartyIdle, tpEventCallback, ThirdPartyHandlingCallback).
		Transition(ThirdPartyRedirectingSignIn, tpEventSettled, ThirdPartyIdle).
		Transition(ThirdPartyRedirectingSignUp, tpEventSettled, ThirdPartyIdle).
		Transition(ThirdPartyHandlingCallback, tpEventSettled, ThirdPartyIdle)
	tp.state.Store(ThirdPartyIdle)
	return tp
}

// enabledStrategies snapshots the configured providers once.
func enabledStrategies(cfg Config) g.Set[Strategy] {
	set := g.NewSet[Strategy]()
	for _, s := range cfg.GetOAuthStrategies() {
		set.Insert(Strategy(s))
	}
	for _, s := range cfg.GetWeb3Strategies() {
		set.Insert(Strategy(s))
	}
	return set
}

func (tp *thirdParty) start(ctx context.Context, reg *actor.Registry) error {
	tp.ref = actor.Spawn[thirdPartyMessage](ctx, tp.receive, actor.WithID(ThirdPartyID))
	if err := actor.Register(reg, ThirdPartyID, tp.ref); err != nil {
		tp.ref.Stop()
		return err
	}
	return nil
}

func (tp *thirdParty) stop(reg *actor.Registry) {
	if tp == nil || tp.ref == nil {
		return
	}
	reg.Unregister(ThirdPartyID)
	tp.ref.Stop()
}

// State returns the current actor state.
func (tp *thirdParty) State() fsm.State {
	return tp.state.Load().(fsm.State)
}

func (tp *thirdParty) isEnabled(kind AuthKind, strategy Strategy) bool {
	switch kind {
	case AuthOAuth:
		return strategy.IsOAuth() && tp.enabled.Contains(strategy)
	case AuthSAML:
		return tp.saml && strategy == StrategySAML
	case AuthWeb3:
		return strategy.IsWeb3() && tp.enabled.Contains(strategy)
	default:
		return false
	}
}

func (tp *thirdParty) receive(ctx context.Context, msg thirdPartyMessage) {
	switch m := msg.(type) {
	case redirectMsg:
		tp.redirect(ctx, m)
	case callbackMsg:
		tp.callback(ctx, m)
	case redirectSettled:
		tp.settle()
		m.reply(m.result)
	case callbackSettled:
		tp.settle()
		m.reply(m.result)
	default:
		tp.logger.Error("third-party: unknown message", "type", typeName(msg))
	}
}

func (tp *thirdParty) redirect(ctx context.Context, m redirectMsg) {
	strategy := m.req.Strategy
	if !tp.isEnabled(m.kind, strategy) {
		tp.logger.Warn("redirect strategy not enabled", "strategy", strategy, "kind", m.kind)
		m.reply(RedirectResult{Outcome: RedirectFailed, Strategy: strategy, Err: strategyNotEnabled(strategy)})
		return
	}

	event := tpEventRedirectSignIn
	if m.flow == FlowSignUp {
		event = tpEventRedirectSignUp
	}
	if err := tp.machine.Trigger(event); err != nil {
		tp.logger.Warn("redirect ignored while busy", "strategy", strategy, "state", tp.machine.Current(), "busy_with", tp.inFlight)
		m.reply(RedirectResult{Outcome: RedirectFailed, Strategy: strategy, Err: withMeta(ErrInvalidEvent, map[string]any{
			"event": string(event),
			"state": string(tp.machine.Current()),
		})})
		return
	}
	tp.inFlight = strategy
	tp.publish()

	req := tp.withDefaults(m.flow, m.req)
	apiCtx := context.WithoutCancel(ctx)
	tp.logger.Debug("redirect requested", "flow", m.flow, "strategy", strategy, "redirect_url", req.RedirectURL)

	go func() {
		result := RedirectResult{Strategy: strategy}
		if m.kind == AuthWeb3 {
			res, err := tp.client.AuthenticateWithWeb3(apiCtx, m.flow, strategy)
			switch {
			case err != nil:
				result.Outcome, result.Err = RedirectFailed, redirectError(err, strategy)
			case res == nil:
				result.Outcome, result.Err = RedirectFailed, withMeta(ErrAttemptFailed, map[string]any{"strategy": string(strategy)})
			default:
				result.Outcome, result.Resource = RedirectResolved, res
			}
		} else if err := tp.client.AuthenticateWithRedirect(apiCtx, m.flow, req); err != nil {
			result.Outcome, result.Err = RedirectFailed, redirectError(err, strategy)
		} else {
			result.Outcome = RedirectStarted
		}
		_ = tp.ref.Send(redirectSettled{result: result, reply: m.reply})
	}()
}

func (tp *thirdParty) callback(ctx context.Context, m callbackMsg) {
	if err := tp.machine.Trigger(tpEventCallback); err != nil {
		tp.logger.Warn("callback ignored while busy", "state", tp.machine.Current())
		m.reply(CallbackResult{Err: withMeta(ErrInvalidEvent, map[string]any{
			"event": string(tpEventCallback),
			"state": string(tp.machine.Current()),
		})})
		return
	}
	tp.publish()

	apiCtx := context.WithoutCancel(ctx)
	go func() {
		var (
			mu         sync.Mutex
			directives []Directive
		)
		navigate := func(d Directive) {
			mu.Lock()
			directives = append(directives, d)
			mu.Unlock()
		}

		res, err := tp.client.HandleRedirectCallback(apiCtx, m.flow, m.params, navigate)

		mu.Lock()
		result := CallbackResult{Directives: directives, Resource: res}
		mu.Unlock()
		if err != nil {
			result.Err = NormalizeError(err)
		} else if len(result.Directives) == 0 {
			result.Directives = []Directive{DefaultCallbackDirective}
		}
		_ = tp.ref.Send(callbackSettled{result: result, reply: m.reply})
	}()
}

func (tp *thirdParty) settle() {
	if err := tp.machine.Trigger(tpEventSettled); err != nil {
		tp.logger.Error("third-party settled while idle", "state", tp.machine.Current())
	}
	tp.inFlight = ""
	tp.publish()
}

func (tp *thirdParty) publish() {
	tp.state.Store(tp.machine.Current())
}

// withDefaults fills redirect URLs from configuration.
func (tp *thirdParty) withDefaults(flow FlowKind, req RedirectRequest) RedirectRequest {
	if req.RedirectURL == "" {
		req.RedirectURL = ssoCallbackURL(basePath(tp.config, flow), tp.config)
	}
	if req.RedirectURLComplete == "" {
		req.RedirectURLComplete = afterAuthURL(tp.config, flow)
	}
	return req
}

func redirectError(err error, strategy Strategy) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich
	}
	return structured.WithCause(ErrRedirectFailed, err, map[string]any{"strategy": string(strategy)})
}
