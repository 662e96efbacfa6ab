// Package thirdparty adapts OAuth2 providers to the authflow redirect
// contracts. It builds authorization URLs with PKCE and a sealed state token,
// asks the host to open them, and turns the SSO-callback query back into a
// resource and navigation directives.
package thirdparty

import (
	"context"
	"net/http"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/goliatone/go-auth-flow/internal/logging"
	"github.com/goliatone/go-auth-flow/internal/structured"
	"github.com/goliatone/go-logger/glog"
	"golang.org/x/oauth2"
)

// Opener navigates the host to url. It returns once navigation started.
type Opener func(ctx context.Context, url string) error

// FinishRequest is handed to the Finisher after a successful code exchange.
type FinishRequest struct {
	Strategy authflow.Strategy
	Token    *oauth2.Token
	State    *RedirectState
	Navigate authflow.Navigator
}

// Finisher trades the provider token with the authentication API. It may call
// Navigate, for example to transfer an unknown account to sign-up.
type Finisher func(ctx context.Context, flow authflow.FlowKind, req FinishRequest) (*authflow.Resource, error)

// Option customizes an OAuth2Redirector.
type Option func(*OAuth2Redirector)

// WithProvider registers the OAuth2 config used for strategy.
func WithProvider(strategy authflow.Strategy, cfg *oauth2.Config) Option {
	return func(r *OAuth2Redirector) {
		if cfg != nil {
			r.providers[strategy] = cfg
		}
	}
}

// WithHTTPClient sets the client used for token exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(r *OAuth2Redirector) {
		r.httpClient = client
	}
}

// WithLogger overrides the logger.
func WithLogger(logger glog.Logger) Option {
	return func(r *OAuth2Redirector) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithAuthParams adds static query parameters to every authorization URL.
func WithAuthParams(params map[string]string) Option {
	return func(r *OAuth2Redirector) {
		for k, v := range params {
			r.authParams[k] = v
		}
	}
}

// OAuth2Redirector implements authflow.Redirector and authflow.CallbackHandler.
type OAuth2Redirector struct {
	providers  map[authflow.Strategy]*oauth2.Config
	states     StateManager
	open       Opener
	finish     Finisher
	httpClient *http.Client
	authParams map[string]string
	logger     glog.Logger
}

var (
	_ authflow.Redirector      = (*OAuth2Redirector)(nil)
	_ authflow.CallbackHandler = (*OAuth2Redirector)(nil)
)

// NewOAuth2Redirector creates a redirector.
func NewOAuth2Redirector(states StateManager, open Opener, finish Finisher, opts ...Option) *OAuth2Redirector {
	r := &OAuth2Redirector{
		providers:  map[authflow.Strategy]*oauth2.Config{},
		states:     states,
		open:       open,
		finish:     finish,
		authParams: map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = logging.Nop()
	}
	return r
}

// Strategies lists the configured strategies.
func (r *OAuth2Redirector) Strategies() []authflow.Strategy {
	out := make([]authflow.Strategy, 0, len(r.providers))
	for s := range r.providers {
		out = append(out, s)
	}
	return out
}

// AuthCodeURL builds the provider URL for req without opening it.
func (r *OAuth2Redirector) AuthCodeURL(flow authflow.FlowKind, req authflow.RedirectRequest) (string, error) {
	cfg, ok := r.providers[req.Strategy]
	if !ok {
		return "", structured.WithMetadata(ErrProviderNotFound, map[string]any{"strategy": string(req.Strategy)})
	}

	verifier := oauth2.GenerateVerifier()
	state := &RedirectState{
		Strategy:     req.Strategy,
		Flow:         flow,
		CodeVerifier: verifier,
		CallbackURL:  req.RedirectURL,
		CompleteURL:  req.RedirectURLComplete,
	}
	token, err := r.states.Encode(state)
	if err != nil {
		return "", err
	}

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier)}
	if req.Identifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", req.Identifier))
	}
	for k, v := range r.authParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	return withRedirect(cfg, req.RedirectURL).AuthCodeURL(token, opts...), nil
}

// AuthenticateWithRedirect builds the provider URL and asks the host to open it.
func (r *OAuth2Redirector) AuthenticateWithRedirect(ctx context.Context, flow authflow.FlowKind, req authflow.RedirectRequest) error {
	url, err := r.AuthCodeURL(flow, req)
	if err != nil {
		r.logger.Warn("auth url failed", "strategy", req.Strategy, "error", err)
		return err
	}

	r.logger.Debug("opening provider", "strategy", req.Strategy, "flow", flow)
	if err := r.open(ctx, url); err != nil {
		return structured.WithCause(ErrOpenFailed, err, map[string]any{"strategy": string(req.Strategy)})
	}
	return nil
}

// HandleRedirectCallback verifies the state, exchanges the code and hands the
// token to the Finisher. A callback for the other flow emits the matching
// navigation directive before finishing.
func (r *OAuth2Redirector) HandleRedirectCallback(ctx context.Context, flow authflow.FlowKind, params authflow.CallbackParams, navigate authflow.Navigator) (*authflow.Resource, error) {
	q := params.Query
	if code := q.Get("error"); code != "" {
		return nil, structured.WithMetadata(ErrProviderDenied, map[string]any{
			"error":       code,
			"description": q.Get("error_description"),
		})
	}

	state, err := r.states.Decode(q.Get("state"))
	if err != nil {
		r.logger.Warn("callback state rejected", "error", err)
		return nil, err
	}

	code := q.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	cfg, ok := r.providers[state.Strategy]
	if !ok {
		return nil, structured.WithMetadata(ErrProviderNotFound, map[string]any{"strategy": string(state.Strategy)})
	}

	if state.Flow != "" && state.Flow != flow && navigate != nil {
		navigate(directiveFor(state.Flow))
	}

	exchangeCtx := ctx
	if r.httpClient != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}
	token, err := withRedirect(cfg, state.CallbackURL).Exchange(exchangeCtx, code, oauth2.VerifierOption(state.CodeVerifier))
	if err != nil {
		r.logger.Warn("token exchange failed", "strategy", state.Strategy, "error", err)
		return nil, structured.WithCause(ErrTokenExchangeFailed, err, map[string]any{"strategy": string(state.Strategy)})
	}

	if r.finish == nil {
		return nil, nil
	}

	finishFlow := flow
	if state.Flow != "" {
		finishFlow = state.Flow
	}
	return r.finish(ctx, finishFlow, FinishRequest{
		Strategy: state.Strategy,
		Token:    token,
		State:    state,
		Navigate: navigate,
	})
}

func withRedirect(cfg *oauth2.Config, redirectURL string) *oauth2.Config {
	c := *cfg
	if c.RedirectURL == "" {
		c.RedirectURL = redirectURL
	}
	return &c
}

func directiveFor(flow authflow.FlowKind) authflow.Directive {
	if flow == authflow.FlowSignUp {
		return authflow.DirectiveSignUp
	}
	return authflow.DirectiveSignIn
}
