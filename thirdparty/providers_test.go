package thirdparty

import (
	"context"
	"net/url"
	"testing"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderPresets(t *testing.T) {
	r := NewOAuth2Redirector(NewEncryptedStateManager(testEncKey, testHMACKey, time.Minute), (&opened{}).open, nil,
		WithGoogle("g-client", "g-secret"),
		WithGitHub("gh-client", "gh-secret", "read:user"),
	)

	assert.ElementsMatch(t, []authflow.Strategy{StrategyGoogle, StrategyGitHub}, r.Strategies())

	cases := []struct {
		strategy authflow.Strategy
		host     string
		clientID string
		scope    string
	}{
		{StrategyGoogle, "accounts.google.com", "g-client", "openid email profile"},
		{StrategyGitHub, "github.com", "gh-client", "read:user"},
	}

	for _, tc := range cases {
		t.Run(string(tc.strategy), func(t *testing.T) {
			raw, err := r.AuthCodeURL(authflow.FlowSignIn, authflow.RedirectRequest{Strategy: tc.strategy})
			require.NoError(t, err)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, tc.host, u.Host)
			assert.Equal(t, tc.clientID, u.Query().Get("client_id"))
			assert.Equal(t, tc.scope, u.Query().Get("scope"))
		})
	}
}

func TestProviderPresetOpens(t *testing.T) {
	o := &opened{}
	r := NewOAuth2Redirector(NewEncryptedStateManager(testEncKey, testHMACKey, time.Minute), o.open, nil,
		WithGitHub("gh-client", ""),
	)

	require.NoError(t, r.AuthenticateWithRedirect(context.Background(), authflow.FlowSignUp, authflow.RedirectRequest{Strategy: StrategyGitHub}))
	assert.Contains(t, o.url, "https://github.com/login/oauth/authorize")
}
