package authflow

import "strings"

// FlowKind identifies which flow a Router drives.
type FlowKind string

const (
	FlowSignIn FlowKind = "sign_in"
	FlowSignUp FlowKind = "sign_up"
)

// Status is the discriminator reported by the external API on every resource.
type Status string

// Sign-in statuses.
const (
	StatusNeedsIdentifier   Status = "needs_identifier"
	StatusNeedsFirstFactor  Status = "needs_first_factor"
	StatusNeedsSecondFactor Status = "needs_second_factor"
	StatusNeedsNewPassword  Status = "needs_new_password"
)

// Sign-up statuses.
const (
	StatusMissingRequirements Status = "missing_requirements"
	StatusAbandoned           Status = "abandoned"
)

// StatusComplete is shared by both flows.
const StatusComplete Status = "complete"

// Strategy names an authentication method.
type Strategy string

const (
	StrategyPassword               Strategy = "password"
	StrategyEmailCode              Strategy = "email_code"
	StrategyEmailLink              Strategy = "email_link"
	StrategyPhoneCode              Strategy = "phone_code"
	StrategyTOTP                   Strategy = "totp"
	StrategyBackupCode             Strategy = "backup_code"
	StrategyResetPasswordEmailCode Strategy = "reset_password_email_code"
	StrategyResetPasswordPhoneCode Strategy = "reset_password_phone_code"
	StrategySAML                   Strategy = "saml"
)

const (
	oauthPrefix = "oauth_"
	web3Prefix  = "web3_"
)

// IsOAuth reports whether s is a provider OAuth strategy such as oauth_google.
func (s Strategy) IsOAuth() bool {
	return strings.HasPrefix(string(s), oauthPrefix) && len(s) > len(oauthPrefix)
}

// IsWeb3 reports whether s is a wallet strategy such as web3_metamask_signature.
func (s Strategy) IsWeb3() bool {
	return strings.HasPrefix(string(s), web3Prefix) && len(s) > len(web3Prefix)
}

// NeedsPreparation reports whether the strategy requires the API to deliver
// something (a code or a link) before it can be attempted.
func (s Strategy) NeedsPreparation() bool {
	switch s {
	case StrategyEmailCode, StrategyEmailLink, StrategyPhoneCode,
		StrategyResetPasswordEmailCode, StrategyResetPasswordPhoneCode:
		return true
	}
	return false
}

// IsResetPassword reports whether s starts the password reset sub-flow.
func (s Strategy) IsResetPassword() bool {
	return s == StrategyResetPasswordEmailCode || s == StrategyResetPasswordPhoneCode
}

// Factor is one verification method the resource supports.
type Factor struct {
	Strategy       Strategy
	ID             string
	SafeIdentifier string
}

// Verification is the API state of the factor being verified.
type Verification struct {
	Strategy Strategy
	Status   string
	Attempts int
}

// Resource is the in-progress sign-in or sign-up record returned by the API.
// The engine only branches on Status; the remaining fields feed step
// decisions such as which factor to prepare.
type Resource struct {
	ID                      string
	Status                  Status
	Identifier              string
	SupportedFirstFactors   []Factor
	SupportedSecondFactors  []Factor
	FirstFactorVerification *Verification
	MissingFields           []string
	UnverifiedFields        []string
	CreatedSessionID        string
}

// Clone returns a deep copy so snapshots never alias actor state.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	out := *r
	out.SupportedFirstFactors = append([]Factor(nil), r.SupportedFirstFactors...)
	out.SupportedSecondFactors = append([]Factor(nil), r.SupportedSecondFactors...)
	out.MissingFields = append([]string(nil), r.MissingFields...)
	out.UnverifiedFields = append([]string(nil), r.UnverifiedFields...)
	if r.FirstFactorVerification != nil {
		v := *r.FirstFactorVerification
		out.FirstFactorVerification = &v
	}
	return &out
}

// StatusOf returns the resource status, treating nil as the empty status.
func StatusOf(r *Resource) Status {
	if r == nil {
		return ""
	}
	return r.Status
}

func findFactor(factors []Factor, strategy Strategy) (Factor, bool) {
	for _, f := range factors {
		if f.Strategy == strategy {
			return f, true
		}
	}
	return Factor{}, false
}
