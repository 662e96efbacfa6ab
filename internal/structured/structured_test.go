package structured

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWrapsPlainErrors(t *testing.T) {
	got := Normalize(errors.New("timeout"))
	require.NotNil(t, got)
	assert.Equal(t, TextCodeUnexpected, got.TextCode)
	assert.Nil(t, Normalize(nil))
}

func TestFlattenNestedJoins(t *testing.T) {
	a, b, c := errors.New("a"), errors.New("b"), errors.New("c")
	leaves := Flatten(errors.Join(a, errors.Join(b, c)))
	assert.Equal(t, []error{a, b, c}, leaves)
}

func TestParamNameAcceptsBothSpellings(t *testing.T) {
	snake := goerrors.New("x", goerrors.CategoryValidation).WithMetadata(map[string]any{"param_name": "email_address"})
	camel := goerrors.New("x", goerrors.CategoryValidation).WithMetadata(map[string]any{"paramName": "password"})

	assert.Equal(t, "email_address", ParamName(snake))
	assert.Equal(t, "password", ParamName(camel))
	assert.Empty(t, ParamName(goerrors.New("x", goerrors.CategoryValidation)))
}

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, CanonicalName("email_address"), CanonicalName("emailAddress"))
	assert.NotEqual(t, CanonicalName("username"), CanonicalName("firstName"))
}

func TestWithMetadataLeavesBaseUntouched(t *testing.T) {
	base := goerrors.New("base", goerrors.CategoryInternal).WithTextCode(TextCodeUnmappedStatus)
	clone := WithMetadata(base, map[string]any{"status": "weird"})

	assert.Equal(t, "weird", clone.Metadata["status"])
	assert.Nil(t, base.Metadata["status"])
	assert.True(t, IsConfiguration(clone))
}

func TestWithCauseKeepsSourceOnClone(t *testing.T) {
	base := goerrors.New("redirect failed", goerrors.CategoryOperation).WithTextCode("authflow_redirect_failed")
	cause := errors.New("popup blocked")

	got := WithCause(base, cause, map[string]any{"strategy": "oauth_google"})

	assert.Equal(t, "authflow_redirect_failed", got.TextCode)
	assert.Equal(t, "oauth_google", got.Metadata["strategy"])
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, base.Source)
	assert.Nil(t, base.Metadata)
}
