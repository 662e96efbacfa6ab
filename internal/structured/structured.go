// Package structured normalizes arbitrary errors into go-errors values that
// carry a stable text code and a metadata map.
package structured

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// MetaParamName is the metadata key naming the form field an error refers to.
const MetaParamName = "param_name"

// legacyParamName is accepted when reading metadata produced by JSON clients.
const legacyParamName = "paramName"

// Text codes that mark programming errors rather than business failures.
const (
	TextCodeUnmappedStatus = "authflow_unmapped_status"
	TextCodeUnknownField   = "form_unknown_field"
	TextCodeInvalidStep    = "authflow_invalid_step"
	TextCodeNoThirdParty   = "authflow_third_party_unavailable"
	TextCodeUnexpected     = "authflow_unexpected_error"
)

var configurationCodes = map[string]struct{}{
	TextCodeUnmappedStatus: {},
	TextCodeUnknownField:   {},
	TextCodeInvalidStep:    {},
	TextCodeNoThirdParty:   {},
}

// Normalize returns err as a structured error. Errors that already carry a
// go-errors value are returned untouched; anything else is wrapped with the
// unexpected-error text code so callers never see raw transport errors.
func Normalize(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich
	}

	return goerrors.Wrap(err, goerrors.CategoryOperation, err.Error()).
		WithTextCode(TextCodeUnexpected)
}

// Flatten expands joined errors into their leaves.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, Flatten(e)...)
		}
		return out
	}

	return []error{err}
}

// ParamName returns the field name carried by err metadata, if any.
func ParamName(err *goerrors.Error) string {
	if err == nil || err.Metadata == nil {
		return ""
	}
	for _, key := range []string{MetaParamName, legacyParamName} {
		if v, ok := err.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// CanonicalName folds snake_case and camelCase spellings onto one key so
// "email_address" and "emailAddress" address the same field.
func CanonicalName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// IsConfiguration reports whether err (or any error it joins) is a
// configuration error.
func IsConfiguration(err error) bool {
	for _, e := range Flatten(err) {
		var rich *goerrors.Error
		if goerrors.As(e, &rich) && rich != nil {
			if _, ok := configurationCodes[rich.TextCode]; ok {
				return true
			}
		}
	}
	return false
}

// WithMetadata clones base and attaches meta, leaving the sentinel untouched.
func WithMetadata(base *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// WithCause clones base with cause as its source and meta attached.
func WithCause(base *goerrors.Error, cause error, meta map[string]any) *goerrors.Error {
	clone := WithMetadata(base, meta)
	clone.Source = cause
	return clone
}
