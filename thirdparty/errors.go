package thirdparty

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "thirdparty_provider_not_found"
	TextCodeInvalidState      = "thirdparty_invalid_state"
	TextCodeStateExpired      = "thirdparty_state_expired"
	TextCodeMissingCode       = "thirdparty_missing_code"
	TextCodeProviderDenied    = "thirdparty_provider_denied"
	TextCodeTokenExchangeFail = "thirdparty_token_exchange_failed"
	TextCodeOpenFailed        = "thirdparty_open_failed"
)

// ErrProviderNotFound is returned when no OAuth2 config is registered for a strategy.
var ErrProviderNotFound = errors.New("oauth provider not configured", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the redirect state is invalid or tampered.
var ErrInvalidState = errors.New("invalid redirect state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the redirect state has expired.
var ErrStateExpired = errors.New("redirect state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrMissingCode is returned when the callback carries no authorization code.
var ErrMissingCode = errors.New("authorization code missing", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingCode).
	WithCode(errors.CodeBadRequest)

// ErrProviderDenied is returned when the provider redirected back with an error.
var ErrProviderDenied = errors.New("provider denied authorization", errors.CategoryAuth).
	WithTextCode(TextCodeProviderDenied).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExchangeFailed is returned when the code exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrOpenFailed is returned when the host could not navigate to the provider.
var ErrOpenFailed = errors.New("could not open provider url", errors.CategoryOperation).
	WithTextCode(TextCodeOpenFailed).
	WithCode(errors.CodeInternal)
