package authflow

import (
	"github.com/goliatone/go-auth-flow/form"
	"github.com/goliatone/go-auth-flow/internal/structured"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnmappedStatus       = structured.TextCodeUnmappedStatus
	TextCodeUnknownField         = structured.TextCodeUnknownField
	TextCodeInvalidStep          = structured.TextCodeInvalidStep
	TextCodeThirdPartyMissing    = structured.TextCodeNoThirdParty
	TextCodeUnexpected           = structured.TextCodeUnexpected
	TextCodeStrategyNotEnabled   = "authflow_strategy_not_enabled"
	TextCodeStrategyNotSupported = "authflow_strategy_not_supported"
	TextCodeRedirectFailed       = "authflow_redirect_failed"
	TextCodeRouterStopped        = "authflow_router_stopped"
	TextCodeAttemptFailed        = "authflow_attempt_failed"
	TextCodeInvalidEvent         = "authflow_invalid_event"
	TextCodePasswordMismatch     = "form_password_mismatch"
)

// MetaParamName is the metadata key routing an error onto a form field.
const MetaParamName = structured.MetaParamName

// ErrUnmappedStatus is a configuration error: the API reported a status the
// flow has no step for.
var ErrUnmappedStatus = goerrors.New("resource status has no mapped step", goerrors.CategoryInternal).
	WithTextCode(TextCodeUnmappedStatus).
	WithCode(goerrors.CodeInternal)

// ErrUnknownField is a configuration error: a field was set before it was
// registered on the flow form.
var ErrUnknownField = form.ErrUnknownField

// ErrInvalidStep is a configuration error: the flow has no such step.
var ErrInvalidStep = goerrors.New("step is not part of this flow", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidStep).
	WithCode(goerrors.CodeInternal)

// ErrThirdPartyUnavailable is a configuration error: no third-party actor is
// registered under ThirdPartyID.
var ErrThirdPartyUnavailable = goerrors.New("third-party actor is not registered", goerrors.CategoryInternal).
	WithTextCode(TextCodeThirdPartyMissing).
	WithCode(goerrors.CodeInternal)

// ErrStrategyNotEnabled is returned when a redirect strategy is not in the
// enabled set captured at start.
var ErrStrategyNotEnabled = goerrors.New("strategy is not enabled", goerrors.CategoryBadInput).
	WithTextCode(TextCodeStrategyNotEnabled).
	WithCode(goerrors.CodeBadRequest)

// ErrStrategyNotSupported is returned when the resource does not offer the
// requested verification factor.
var ErrStrategyNotSupported = goerrors.New("strategy is not supported by the resource", goerrors.CategoryBadInput).
	WithTextCode(TextCodeStrategyNotSupported).
	WithCode(goerrors.CodeBadRequest)

// ErrRedirectFailed wraps failures raised before a redirect navigated away.
var ErrRedirectFailed = goerrors.New("redirect failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeRedirectFailed).
	WithCode(goerrors.CodeInternal)

// ErrRouterStopped resolves every pending navigation once the router stops.
var ErrRouterStopped = goerrors.New("router stopped", goerrors.CategoryOperation).
	WithTextCode(TextCodeRouterStopped).
	WithCode(goerrors.CodeConflict)

// ErrAttemptFailed is used when the API returned neither a resource nor an error.
var ErrAttemptFailed = goerrors.New("attempt returned no resource", goerrors.CategoryOperation).
	WithTextCode(TextCodeAttemptFailed).
	WithCode(goerrors.CodeInternal)

// ErrInvalidEvent is returned when the router cannot accept an event in its
// current state.
var ErrInvalidEvent = goerrors.New("event not accepted in current state", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidEvent).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordMismatch is raised client side when the confirmation differs.
var ErrPasswordMismatch = goerrors.New("passwords do not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// NormalizeError converts any error into a structured error. Joined errors
// keep their first structured leaf as the summary and every leaf in metadata.
func NormalizeError(err error) *goerrors.Error {
	leaves := structured.Flatten(err)
	switch len(leaves) {
	case 0:
		return nil
	case 1:
		return structured.Normalize(leaves[0])
	}

	first := structured.Normalize(leaves[0])
	causes := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		causes = append(causes, structured.Normalize(leaf).TextCode)
	}
	return structured.WithMetadata(first, map[string]any{"causes": causes})
}

// IsConfigurationError reports whether err is a programming error (unmapped
// status, unknown field, missing third-party actor) rather than a rejected
// attempt.
func IsConfigurationError(err error) bool {
	return structured.IsConfiguration(err)
}

// HasTextCode reports whether err, or any error it joins, carries code.
func HasTextCode(err error, code string) bool {
	for _, leaf := range structured.Flatten(err) {
		var rich *goerrors.Error
		if goerrors.As(leaf, &rich) && rich != nil && rich.TextCode == code {
			return true
		}
	}
	return false
}

func withMeta(base *goerrors.Error, meta map[string]any) *goerrors.Error {
	return structured.WithMetadata(base, meta)
}

func strategyNotEnabled(strategy Strategy) *goerrors.Error {
	return withMeta(ErrStrategyNotEnabled, map[string]any{"strategy": string(strategy)})
}
