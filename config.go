package authflow

import (
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds flow options.
type Config interface {
	GetSignInPath() string
	GetSignUpPath() string
	GetSSOCallbackPath() string
	GetAfterSignInURL() string
	GetAfterSignUpURL() string
	GetOAuthStrategies() []string
	GetEnterpriseSSO() bool
	GetWeb3Strategies() []string
	GetResendCooldown() int
	GetTimerTick() time.Duration
}

const envPrefix = "AUTHFLOW"

const (
	keySignInPath      = "sign_in_path"
	keySignUpPath      = "sign_up_path"
	keySSOCallbackPath = "sso_callback_path"
	keyAfterSignInURL  = "after_sign_in_url"
	keyAfterSignUpURL  = "after_sign_up_url"
	keyOAuthStrategies = "oauth_strategies"
	keyEnterpriseSSO   = "enterprise_sso"
	keyWeb3Strategies  = "web3_strategies"
	keyResendCooldown  = "resend_cooldown"
	keyTimerTick       = "timer_tick"
)

// Options is the default Config implementation.
type Options struct {
	SignInPath      string        `mapstructure:"sign_in_path"`
	SignUpPath      string        `mapstructure:"sign_up_path"`
	SSOCallbackPath string        `mapstructure:"sso_callback_path"`
	AfterSignInURL  string        `mapstructure:"after_sign_in_url"`
	AfterSignUpURL  string        `mapstructure:"after_sign_up_url"`
	OAuthStrategies []string      `mapstructure:"oauth_strategies"`
	EnterpriseSSO   bool          `mapstructure:"enterprise_sso"`
	Web3Strategies  []string      `mapstructure:"web3_strategies"`
	ResendCooldown  int           `mapstructure:"resend_cooldown"`
	TimerTick       time.Duration `mapstructure:"timer_tick"`
}

func (o Options) GetSignInPath() string        { return o.SignInPath }
func (o Options) GetSignUpPath() string        { return o.SignUpPath }
func (o Options) GetSSOCallbackPath() string   { return o.SSOCallbackPath }
func (o Options) GetAfterSignInURL() string    { return o.AfterSignInURL }
func (o Options) GetAfterSignUpURL() string    { return o.AfterSignUpURL }
func (o Options) GetOAuthStrategies() []string { return o.OAuthStrategies }
func (o Options) GetEnterpriseSSO() bool       { return o.EnterpriseSSO }
func (o Options) GetWeb3Strategies() []string  { return o.Web3Strategies }
func (o Options) GetResendCooldown() int       { return o.ResendCooldown }
func (o Options) GetTimerTick() time.Duration  { return o.TimerTick }

// DefaultOptions returns the options used when no environment is set.
func DefaultOptions() Options {
	return Options{
		SignInPath:      "/sign-in",
		SignUpPath:      "/sign-up",
		SSOCallbackPath: "sso-callback",
		AfterSignInURL:  "/",
		AfterSignUpURL:  "/",
		ResendCooldown:  30,
		TimerTick:       time.Second,
	}
}

// LoadConfig reads AUTHFLOW_* environment variables on top of the defaults.
// List values are comma separated.
func LoadConfig() Options {
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) Options {
	def := DefaultOptions()

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault(keySignInPath, def.SignInPath)
	v.SetDefault(keySignUpPath, def.SignUpPath)
	v.SetDefault(keySSOCallbackPath, def.SSOCallbackPath)
	v.SetDefault(keyAfterSignInURL, def.AfterSignInURL)
	v.SetDefault(keyAfterSignUpURL, def.AfterSignUpURL)
	v.SetDefault(keyOAuthStrategies, "")
	v.SetDefault(keyEnterpriseSSO, false)
	v.SetDefault(keyWeb3Strategies, "")
	v.SetDefault(keyResendCooldown, def.ResendCooldown)
	v.SetDefault(keyTimerTick, int(def.TimerTick/time.Millisecond))

	tick := time.Duration(v.GetInt(keyTimerTick)) * time.Millisecond
	if tick <= 0 {
		tick = def.TimerTick
	}

	cooldown := v.GetInt(keyResendCooldown)
	if cooldown < 0 {
		cooldown = 0
	}

	return Options{
		SignInPath:      v.GetString(keySignInPath),
		SignUpPath:      v.GetString(keySignUpPath),
		SSOCallbackPath: v.GetString(keySSOCallbackPath),
		AfterSignInURL:  v.GetString(keyAfterSignInURL),
		AfterSignUpURL:  v.GetString(keyAfterSignUpURL),
		OAuthStrategies: splitList(v.GetString(keyOAuthStrategies)),
		EnterpriseSSO:   v.GetBool(keyEnterpriseSSO),
		Web3Strategies:  splitList(v.GetString(keyWeb3Strategies)),
		ResendCooldown:  cooldown,
		TimerTick:       tick,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// basePath returns the route prefix of flow.
func basePath(cfg Config, flow FlowKind) string {
	if flow == FlowSignUp {
		return cfg.GetSignUpPath()
	}
	return cfg.GetSignInPath()
}

// afterAuthURL returns where the browser lands after flow completes.
func afterAuthURL(cfg Config, flow FlowKind) string {
	if flow == FlowSignUp {
		return cfg.GetAfterSignUpURL()
	}
	return cfg.GetAfterSignInURL()
}

// ssoCallbackURL joins the flow base path with the SSO-callback segment.
func ssoCallbackURL(base string, cfg Config) string {
	cb := cfg.GetSSOCallbackPath()
	if strings.HasPrefix(cb, "/") || strings.Contains(cb, "://") {
		return cb
	}
	if base == "" {
		base = "/"
	}
	return path.Join(base, cb)
}
