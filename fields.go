package authflow

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-auth-flow/form"
	goerrors "github.com/goliatone/go-errors"
)

// Form field names registered by the flows.
const (
	FieldIdentifier      = "identifier"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldCode            = "code"
	FieldEmailAddress    = "emailAddress"
	FieldPhoneNumber     = "phoneNumber"
	FieldUsername        = "username"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
)

// TextCodeFieldMissing marks a required field left empty on submit.
const TextCodeFieldMissing = "form_param_missing"

// ErrFieldMissing is raised when a step needs a value the form does not hold.
var ErrFieldMissing = goerrors.New("required field is empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeFieldMissing).
	WithCode(goerrors.CodeBadRequest)

type fieldDef struct {
	name  string
	rules []validation.Rule
}

func flowFields(flow FlowKind) []fieldDef {
	if flow == FlowSignUp {
		return []fieldDef{
			{name: FieldEmailAddress, rules: []validation.Rule{is.Email}},
			{name: FieldPhoneNumber},
			{name: FieldUsername, rules: []validation.Rule{validation.Length(3, 64)}},
			{name: FieldFirstName, rules: []validation.Rule{validation.Length(0, 256)}},
			{name: FieldLastName, rules: []validation.Rule{validation.Length(0, 256)}},
			{name: FieldPassword, rules: []validation.Rule{validation.Length(8, 256)}},
			{name: FieldCode, rules: []validation.Rule{is.Digit}},
		}
	}
	return []fieldDef{
		{name: FieldIdentifier, rules: []validation.Rule{validation.Length(1, 256)}},
		{name: FieldPassword},
		{name: FieldCode, rules: []validation.Rule{is.Digit}},
		{name: FieldConfirmPassword},
	}
}

func registerFields(ctx context.Context, f *form.Form, flow FlowKind, extra []fieldDef) error {
	for _, def := range append(flowFields(flow), extra...) {
		if err := f.Register(ctx, def.name, form.WithRules(def.rules...)); err != nil {
			return err
		}
	}
	return nil
}

func missingField(name string) error {
	return withMeta(ErrFieldMissing, map[string]any{MetaParamName: name})
}

// pick copies the non-empty values of names.
func pick(values map[string]string, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v := values[name]; v != "" {
			out[name] = v
		}
	}
	return out
}
