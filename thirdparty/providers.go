package thirdparty

import (
	authflow "github.com/goliatone/go-auth-flow"
	"golang.org/x/oauth2"
)

// Strategies registered by the provider presets.
const (
	StrategyGoogle authflow.Strategy = "oauth_google"
	StrategyGitHub authflow.Strategy = "oauth_github"
)

// Google endpoints.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// GitHub endpoints.
var GitHubEndpoint = oauth2.Endpoint{
	AuthURL:  "https://github.com/login/oauth/authorize",
	TokenURL: "https://github.com/login/oauth/access_token",
}

// GoogleScopes returns the default Google scopes.
func GoogleScopes() []string {
	return []string{"openid", "email", "profile"}
}

// GitHubScopes returns the default GitHub scopes.
func GitHubScopes() []string {
	return []string{"user:email", "read:user"}
}

// WithGoogle registers Google under StrategyGoogle. Default scopes apply
// when none are given.
func WithGoogle(clientID, clientSecret string, scopes ...string) Option {
	if len(scopes) == 0 {
		scopes = GoogleScopes()
	}
	return WithProvider(StrategyGoogle, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		Endpoint:     GoogleEndpoint,
	})
}

// WithGitHub registers GitHub under StrategyGitHub.
func WithGitHub(clientID, clientSecret string, scopes ...string) Option {
	if len(scopes) == 0 {
		scopes = GitHubScopes()
	}
	return WithProvider(StrategyGitHub, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		Endpoint:     GitHubEndpoint,
	})
}
