package authflow

import (
	"context"
	"net/url"
)

// AttemptAction tells the client which API call an attempt maps to.
type AttemptAction string

const (
	ActionCreate              AttemptAction = "create"
	ActionUpdate              AttemptAction = "update"
	ActionPrepareFirstFactor  AttemptAction = "prepare_first_factor"
	ActionAttemptFirstFactor  AttemptAction = "attempt_first_factor"
	ActionPrepareSecondFactor AttemptAction = "prepare_second_factor"
	ActionAttemptSecondFactor AttemptAction = "attempt_second_factor"
	ActionPrepareVerification AttemptAction = "prepare_verification"
	ActionAttemptVerification AttemptAction = "attempt_verification"
	ActionResetPassword       AttemptAction = "reset_password"
)

// AttemptRequest is the strategy-tagged payload a step sends to the API.
type AttemptRequest struct {
	Action   AttemptAction
	Strategy Strategy
	FactorID string
	Fields   map[string]string
}

// RedirectRequest starts a redirect-based strategy.
type RedirectRequest struct {
	Strategy Strategy
	// RedirectURL is where the provider sends the browser back to (the
	// SSO-callback route).
	RedirectURL string
	// RedirectURLComplete is where the browser lands once the flow completes.
	RedirectURLComplete string
	// Identifier carries the email address for enterprise SSO discovery.
	Identifier string
}

// CallbackParams are the query parameters received on the SSO-callback route.
type CallbackParams struct {
	Query url.Values
}

// Directive is a navigation instruction emitted while resolving a callback.
type Directive string

const (
	DirectiveNext         Directive = "NEXT"
	DirectiveSignIn       Directive = "NAVIGATE.SIGN_IN"
	DirectiveSignUp       Directive = "NAVIGATE.SIGN_UP"
	DirectiveVerification Directive = "NAVIGATE.VERIFICATION"
)

// DefaultCallbackDirective is applied when a callback resolver emits no
// directive, or one the engine does not recognize.
const DefaultCallbackDirective = DirectiveNext

// Known reports whether d is one of the recognized directives.
func (d Directive) Known() bool {
	switch d {
	case DirectiveNext, DirectiveSignIn, DirectiveSignUp, DirectiveVerification:
		return true
	}
	return false
}

// Navigator receives directives emitted during callback resolution.
type Navigator func(Directive)

// Attempter performs create/attempt style API calls.
type Attempter interface {
	Attempt(ctx context.Context, flow FlowKind, req AttemptRequest) (*Resource, error)
}

// Redirector initiates a redirect. It returns nil once browser navigation has
// been initiated, or an error when it failed before navigating.
type Redirector interface {
	AuthenticateWithRedirect(ctx context.Context, flow FlowKind, req RedirectRequest) error
}

// Web3Authenticator signs in with a wallet. Unlike redirects it resolves in
// process with an updated resource.
type Web3Authenticator interface {
	AuthenticateWithWeb3(ctx context.Context, flow FlowKind, strategy Strategy) (*Resource, error)
}

// CallbackHandler resolves the SSO-callback route.
type CallbackHandler interface {
	HandleRedirectCallback(ctx context.Context, flow FlowKind, params CallbackParams, navigate Navigator) (*Resource, error)
}

// Client is the external API resource the engine drives.
type Client interface {
	Attempter
	Redirector
	Web3Authenticator
	CallbackHandler
}

// ComposeClient assembles a Client from independent parts. Nil parts fail
// with ErrStrategyNotEnabled when used.
func ComposeClient(a Attempter, r Redirector, w Web3Authenticator, c CallbackHandler) Client {
	return composedClient{attempter: a, redirector: r, web3: w, callback: c}
}

type composedClient struct {
	attempter  Attempter
	redirector Redirector
	web3       Web3Authenticator
	callback   CallbackHandler
}

func (c composedClient) Attempt(ctx context.Context, flow FlowKind, req AttemptRequest) (*Resource, error) {
	if c.attempter == nil {
		return nil, strategyNotEnabled(req.Strategy)
	}
	return c.attempter.Attempt(ctx, flow, req)
}

func (c composedClient) AuthenticateWithRedirect(ctx context.Context, flow FlowKind, req RedirectRequest) error {
	if c.redirector == nil {
		return strategyNotEnabled(req.Strategy)
	}
	return c.redirector.AuthenticateWithRedirect(ctx, flow, req)
}

func (c composedClient) AuthenticateWithWeb3(ctx context.Context, flow FlowKind, strategy Strategy) (*Resource, error) {
	if c.web3 == nil {
		return nil, strategyNotEnabled(strategy)
	}
	return c.web3.AuthenticateWithWeb3(ctx, flow, strategy)
}

func (c composedClient) HandleRedirectCallback(ctx context.Context, flow FlowKind, params CallbackParams, navigate Navigator) (*Resource, error) {
	if c.callback == nil {
		return nil, strategyNotEnabled("")
	}
	return c.callback.HandleRedirectCallback(ctx, flow, params, navigate)
}
