package thirdparty

import (
	"strings"
	"testing"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testEncKey  = []byte("0123456789abcdef0123456789abcdef")
	testHMACKey = []byte("fedcba9876543210fedcba9876543210")
)

func TestStateManager_EncryptDecrypt(t *testing.T) {
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, 10*time.Minute)

	state := &RedirectState{
		Strategy:     "oauth_github",
		Flow:         authflow.FlowSignIn,
		CallbackURL:  "/sign-in/sso-callback",
		CompleteURL:  "/dashboard",
		CodeVerifier: "test-verifier",
	}

	encoded, err := sm.Encode(state)
	require.NoError(t, err)

	decoded, err := sm.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, state.Strategy, decoded.Strategy)
	assert.Equal(t, state.Flow, decoded.Flow)
	assert.Equal(t, state.CallbackURL, decoded.CallbackURL)
	assert.Equal(t, state.CompleteURL, decoded.CompleteURL)
	assert.Equal(t, state.CodeVerifier, decoded.CodeVerifier)
	assert.NotEmpty(t, decoded.Nonce)
}

func TestStateManager_ExpiredState(t *testing.T) {
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, -1*time.Minute)

	encoded, err := sm.Encode(&RedirectState{Strategy: "oauth_github"})
	require.NoError(t, err)

	_, err = sm.Decode(encoded)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestStateManager_TamperedState(t *testing.T) {
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, 10*time.Minute)

	encoded, err := sm.Encode(&RedirectState{Strategy: "oauth_github"})
	require.NoError(t, err)

	pos := len(encoded) / 2
	replacement := byte('A')
	if encoded[pos] == 'A' {
		replacement = 'B'
	}
	tampered := encoded[:pos] + string(replacement) + encoded[pos+1:]

	_, err = sm.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateManager_WrongKey(t *testing.T) {
	sm1 := NewEncryptedStateManager(testEncKey, testHMACKey, 10*time.Minute)
	sm2 := NewEncryptedStateManager(testEncKey, []byte(strings.Repeat("x", 32)), 10*time.Minute)

	encoded, err := sm1.Encode(&RedirectState{Strategy: "oauth_github"})
	require.NoError(t, err)

	_, err = sm2.Decode(encoded)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateManager_Garbage(t *testing.T) {
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, 0)

	_, err := sm.Decode("not base64 !!")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = sm.Decode("")
	assert.ErrorIs(t, err, ErrInvalidState)
}
