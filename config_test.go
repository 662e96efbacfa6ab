package authflow_test

import (
	"testing"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := authflow.LoadConfig()

	assert.Equal(t, authflow.DefaultOptions(), cfg)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHFLOW_SIGN_IN_PATH", "/login")
	t.Setenv("AUTHFLOW_OAUTH_STRATEGIES", "oauth_google, oauth_github,")
	t.Setenv("AUTHFLOW_WEB3_STRATEGIES", "web3_metamask_signature")
	t.Setenv("AUTHFLOW_ENTERPRISE_SSO", "true")
	t.Setenv("AUTHFLOW_RESEND_COOLDOWN", "60")
	t.Setenv("AUTHFLOW_TIMER_TICK", "250")
	t.Setenv("AUTHFLOW_AFTER_SIGN_UP_URL", "/welcome")

	cfg := authflow.LoadConfig()

	assert.Equal(t, "/login", cfg.GetSignInPath())
	assert.Equal(t, "/sign-up", cfg.GetSignUpPath())
	assert.Equal(t, []string{"oauth_google", "oauth_github"}, cfg.GetOAuthStrategies())
	assert.Equal(t, []string{"web3_metamask_signature"}, cfg.GetWeb3Strategies())
	assert.True(t, cfg.GetEnterpriseSSO())
	assert.Equal(t, 60, cfg.GetResendCooldown())
	assert.Equal(t, 250*time.Millisecond, cfg.GetTimerTick())
	assert.Equal(t, "/welcome", cfg.GetAfterSignUpURL())
}

func TestLoadConfigRejectsInvalidNumbers(t *testing.T) {
	t.Setenv("AUTHFLOW_RESEND_COOLDOWN", "-5")
	t.Setenv("AUTHFLOW_TIMER_TICK", "0")

	cfg := authflow.LoadConfig()

	assert.Equal(t, 0, cfg.GetResendCooldown())
	assert.Equal(t, time.Second, cfg.GetTimerTick())
}
