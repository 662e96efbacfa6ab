package authflow

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// StepID names a router state. Start, Verifications, Continue and
// ResetPassword are backed by a step actor; the others are router-only.
type StepID string

const (
	StepInit          StepID = "init"
	StepStart         StepID = "start"
	StepVerifications StepID = "verifications"
	StepContinue      StepID = "continue"
	StepResetPassword StepID = "reset-password"
	StepCallback      StepID = "callback"
	StepComplete      StepID = "complete"
)

// HasActor reports whether the step runs as a step actor.
func (s StepID) HasActor() bool {
	switch s {
	case StepStart, StepVerifications, StepContinue, StepResetPassword:
		return true
	}
	return false
}

// LoadingState is the normalized loading descriptor surfaced to the host.
type LoadingState struct {
	IsLoading bool
	Step      StepID
	Strategy  Strategy
}

// Event is anything the host can send to a Router.
type Event interface {
	Type() string
}

// AuthKind selects the third-party family of an Authenticate event.
type AuthKind string

const (
	AuthOAuth AuthKind = "OAUTH"
	AuthSAML  AuthKind = "SAML"
	AuthWeb3  AuthKind = "WEB3"
)

// TimerAction is a host control for the active step's timer.
type TimerAction string

const (
	TimerStart  TimerAction = "START"
	TimerStop   TimerAction = "STOP"
	TimerToggle TimerAction = "TOGGLE"
	TimerReset  TimerAction = "RESET"
)

// Submit attempts the active step with the current form values.
type Submit struct{}

// Authenticate starts a redirect or wallet strategy from the active step.
type Authenticate struct {
	Kind     AuthKind
	Strategy Strategy
	// Identifier is used by SAML for enterprise connection discovery. When
	// empty the form identifier is used.
	Identifier string
}

// FieldSet assigns a form value.
type FieldSet struct {
	Name  string
	Value string
}

// FieldClear empties the named fields, or every field when Names is empty.
type FieldClear struct {
	Names []string
}

// Reset restarts the flow at Start.
type Reset struct{}

// RedirectCallback resolves the SSO-callback route.
type RedirectCallback struct {
	Params CallbackParams
}

// TimerControl drives the active step's timer. Initial and Timeout only apply
// to RESET; nil and zero keep the current values.
type TimerControl struct {
	Action  TimerAction
	Initial *int
	Timeout time.Duration
}

// StrategySet switches the verification step to another supported factor.
type StrategySet struct {
	Strategy Strategy
}

// Retry asks the verification step to resend its code once the cooldown ended.
type Retry struct{}

// PasswordForgot switches verification to the reset-password strategy.
type PasswordForgot struct{}

func (Submit) Type() string           { return "SUBMIT" }
func (e Authenticate) Type() string   { return "AUTHENTICATE." + string(e.Kind) }
func (FieldSet) Type() string         { return "FIELD.SET" }
func (FieldClear) Type() string       { return "FIELD.CLEAR" }
func (Reset) Type() string            { return "RESET" }
func (RedirectCallback) Type() string { return "REDIRECT.CALLBACK" }
func (e TimerControl) Type() string   { return string(e.Action) }
func (StrategySet) Type() string      { return "STRATEGY.SET" }
func (Retry) Type() string            { return "RETRY" }
func (PasswordForgot) Type() string   { return "PASSWORD.FORGOT" }

// AuthenticateOAuth is shorthand for an OAuth Authenticate event.
func AuthenticateOAuth(strategy Strategy) Authenticate {
	return Authenticate{Kind: AuthOAuth, Strategy: strategy}
}

// AuthenticateSAML is shorthand for a SAML Authenticate event.
func AuthenticateSAML(identifier string) Authenticate {
	return Authenticate{Kind: AuthSAML, Strategy: StrategySAML, Identifier: identifier}
}

// AuthenticateWeb3 is shorthand for a wallet Authenticate event.
func AuthenticateWeb3(strategy Strategy) Authenticate {
	return Authenticate{Kind: AuthWeb3, Strategy: strategy}
}

// HostEventType enumerates engine to host notifications.
type HostEventType string

const (
	HostEventLoading       HostEventType = "LOADING"
	HostEventNext          HostEventType = "NEXT"
	HostEventNavigate      HostEventType = "NAVIGATE"
	HostEventError         HostEventType = "ERROR"
	HostEventTick          HostEventType = "tick"
	HostEventTimerComplete HostEventType = "complete"
	HostEventFlowComplete  HostEventType = "FLOW.COMPLETE"
)

// HostEvent is delivered to Subscribe listeners.
type HostEvent struct {
	Type      HostEventType
	Flow      FlowKind
	Step      StepID
	Loading   LoadingState
	Directive Directive
	Error     *goerrors.Error
	Remaining int
}
