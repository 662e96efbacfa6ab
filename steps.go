package authflow

import (
	"context"

	"github.com/goliatone/go-auth-flow/internal/structured"
)

// startStep creates the resource from the identifier (and password, when
// given) on sign-in, or from the registration fields on sign-up.
type startStep struct {
	baseBehavior
}

func (startStep) submit(_ context.Context, s *stepActor, values map[string]string) (AttemptRequest, error) {
	if s.flow == FlowSignUp {
		fields := pick(values, FieldEmailAddress, FieldPhoneNumber, FieldUsername,
			FieldFirstName, FieldLastName, FieldPassword)
		if len(fields) == 0 {
			return AttemptRequest{}, missingField(FieldEmailAddress)
		}
		req := AttemptRequest{Action: ActionCreate, Fields: fields}
		if fields[FieldPassword] != "" {
			req.Strategy = StrategyPassword
		}
		return req, nil
	}

	identifier := values[FieldIdentifier]
	if identifier == "" {
		return AttemptRequest{}, missingField(FieldIdentifier)
	}
	req := AttemptRequest{
		Action: ActionCreate,
		Fields: pick(values, FieldIdentifier, FieldPassword),
	}
	if req.Fields[FieldPassword] != "" {
		req.Strategy = StrategyPassword
	}
	return req, nil
}

// continueStep fills the sign-up requirements the API reported missing.
type continueStep struct {
	baseBehavior
}

func (continueStep) submit(_ context.Context, s *stepActor, values map[string]string) (AttemptRequest, error) {
	fields := map[string]string{}
	missing := map[string]bool{}
	if s.resource != nil {
		for _, name := range s.resource.MissingFields {
			missing[structured.CanonicalName(name)] = true
		}
	}

	for name, value := range values {
		if name == FieldCode {
			continue
		}
		if len(missing) == 0 || missing[structured.CanonicalName(name)] {
			fields[name] = value
		}
	}
	for canonical := range missing {
		if !hasCanonical(fields, canonical) {
			return AttemptRequest{}, missingField(fieldForCanonical(values, canonical))
		}
	}
	return AttemptRequest{Action: ActionUpdate, Fields: fields}, nil
}

func hasCanonical(fields map[string]string, canonical string) bool {
	for name := range fields {
		if structured.CanonicalName(name) == canonical {
			return true
		}
	}
	return false
}

func fieldForCanonical(values map[string]string, canonical string) string {
	for _, name := range []string{FieldEmailAddress, FieldPhoneNumber, FieldUsername, FieldFirstName, FieldLastName, FieldPassword} {
		if structured.CanonicalName(name) == canonical {
			return name
		}
	}
	for name := range values {
		if structured.CanonicalName(name) == canonical {
			return name
		}
	}
	return canonical
}

// resetPasswordStep sets the new password after a reset code was verified.
type resetPasswordStep struct {
	baseBehavior
}

func (resetPasswordStep) submit(_ context.Context, _ *stepActor, values map[string]string) (AttemptRequest, error) {
	password := values[FieldPassword]
	if password == "" {
		return AttemptRequest{}, missingField(FieldPassword)
	}
	if confirm := values[FieldConfirmPassword]; confirm != "" && confirm != password {
		return AttemptRequest{}, withMeta(ErrPasswordMismatch, map[string]any{MetaParamName: FieldConfirmPassword})
	}
	return AttemptRequest{
		Action: ActionResetPassword,
		Fields: map[string]string{FieldPassword: password},
	}, nil
}
