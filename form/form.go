// Package form implements the Form actor: field values plus per-field and
// form-level validation errors, decoupled from any step's business logic.
//
// Fields must be registered before use. Setting a value for a field that was
// never registered is a configuration error and is reported to the caller
// instead of silently creating the field.
package form

import (
	"context"
	"sync/atomic"

	"github.com/enetx/g"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-auth-flow/actor"
	"github.com/goliatone/go-auth-flow/internal/logging"
	"github.com/goliatone/go-auth-flow/internal/structured"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// TextCodeInvalidValue marks client-side validation failures.
const TextCodeInvalidValue = "form_param_invalid"

// ErrUnknownField is returned when addressing a field that was never registered.
var ErrUnknownField = goerrors.New("unknown form field", goerrors.CategoryInternal).
	WithTextCode(structured.TextCodeUnknownField).
	WithCode(goerrors.CodeInternal)

// ErrInvalidValue is the base for field validation failures.
var ErrInvalidValue = goerrors.New("invalid field value", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidValue).
	WithCode(goerrors.CodeBadRequest)

// Field is a read-only view of one registered field.
type Field struct {
	Name  string
	Value string
	Error *goerrors.Error
}

// Snapshot is a read-only view of the whole form.
type Snapshot struct {
	Fields g.Slice[Field]
	Errors []*goerrors.Error
}

// Get returns the named field.
func (s Snapshot) Get(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Value returns the value of name, or "" when it is not registered.
func (s Snapshot) Value(name string) string {
	f, _ := s.Get(name)
	return f.Value
}

// Values returns the non-empty field values keyed by name.
func (s Snapshot) Values() map[string]string {
	out := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		if f.Value != "" {
			out[f.Name] = f.Value
		}
	}
	return out
}

// HasErrors reports whether any field or form-level error is set.
func (s Snapshot) HasErrors() bool {
	if len(s.Errors) > 0 {
		return true
	}
	for _, f := range s.Fields {
		if f.Error != nil {
			return true
		}
	}
	return false
}

// FieldOption customizes a field at registration.
type FieldOption func(*entry)

// WithRules attaches ozzo-validation rules evaluated on every set.
func WithRules(rules ...validation.Rule) FieldOption {
	return func(e *entry) {
		e.rules = append(e.rules, rules...)
	}
}

// WithValue seeds the field with an initial value.
func WithValue(value string) FieldOption {
	return func(e *entry) {
		e.value = value
	}
}

type entry struct {
	value   string
	invalid *goerrors.Error
	server  *goerrors.Error
	rules   []validation.Rule
}

// err reports the rule error first; a server error only shows on a value that
// passes its rules.
func (e *entry) err() *goerrors.Error {
	if e.invalid != nil {
		return e.invalid
	}
	return e.server
}

// Option customizes the Form actor.
type Option func(*Form)

// WithLogger overrides the logger.
func WithLogger(logger glog.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

type command struct {
	apply func(f *Form) error
	reply chan error
}

// Form is the field-state actor.
type Form struct {
	order  g.Slice[string]
	fields g.Map[string, *entry]
	errors []*goerrors.Error
	logger glog.Logger

	ref      *actor.Ref[command]
	snapshot atomic.Pointer[Snapshot]
}

// New spawns a Form actor bound to ctx.
func New(ctx context.Context, opts ...Option) *Form {
	f := &Form{
		fields: g.Map[string, *entry]{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.logger == nil {
		f.logger = logging.Nop()
	}

	f.publish()
	f.ref = actor.Spawn(ctx, func(_ context.Context, cmd command) {
		err := cmd.apply(f)
		f.publish()
		if cmd.reply != nil {
			cmd.reply <- err
		}
	})
	return f
}

// Close stops the actor.
func (f *Form) Close() {
	f.ref.Stop()
}

// Snapshot returns the last committed form state. Reads never block.
func (f *Form) Snapshot() Snapshot {
	if s := f.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Register adds a field. Registering an existing field updates its rules and
// keeps its current value.
func (f *Form) Register(ctx context.Context, name string, opts ...FieldOption) error {
	return f.do(ctx, func(f *Form) error {
		if e, ok := f.fields[name]; ok {
			for _, opt := range opts {
				if opt != nil {
					opt(e)
				}
			}
			return nil
		}

		e := &entry{}
		for _, opt := range opts {
			if opt != nil {
				opt(e)
			}
		}
		f.fields[name] = e
		f.order = append(f.order, name)
		return nil
	})
}

// Set assigns value to name (FIELD.SET) and runs its validation rules. A
// validation failure is recorded against the field only; the returned error is
// reserved for unknown fields.
func (f *Form) Set(ctx context.Context, name, value string) error {
	return f.do(ctx, func(f *Form) error {
		e, ok := f.fields[name]
		if !ok {
			f.logger.Error("set on unregistered field", "field", name)
			return structured.WithMetadata(ErrUnknownField, map[string]any{"field": name})
		}

		e.value = value
		e.invalid = e.validate(name)
		e.server = nil
		return nil
	})
}

// SetErrors routes a structured error onto the field its param_name metadata
// names, or onto the form-level slot (ERRORS.SET). Joined errors are routed
// one by one.
func (f *Form) SetErrors(ctx context.Context, err error) error {
	return f.do(ctx, func(f *Form) error {
		f.resetErrors()
		for _, leaf := range structured.Flatten(err) {
			rich := structured.Normalize(leaf)
			if name, ok := f.lookup(structured.ParamName(rich)); ok {
				f.fields[name].server = rich
				continue
			}
			f.errors = append(f.errors, rich)
		}
		return nil
	})
}

// ClearErrors removes every server error. Rule errors stay until the field is
// set again.
func (f *Form) ClearErrors(ctx context.Context) error {
	return f.do(ctx, func(f *Form) error {
		f.resetErrors()
		return nil
	})
}

// Clear empties the named fields, or every field when none are given
// (FIELD.CLEAR). Unknown names are configuration errors.
func (f *Form) Clear(ctx context.Context, names ...string) error {
	return f.do(ctx, func(f *Form) error {
		if len(names) == 0 {
			names = f.order
		}
		for _, name := range names {
			if _, ok := f.fields[name]; !ok {
				return structured.WithMetadata(ErrUnknownField, map[string]any{"field": name})
			}
		}
		for _, name := range names {
			e := f.fields[name]
			e.value = ""
			e.invalid = nil
			e.server = nil
		}
		return nil
	})
}

func (f *Form) resetErrors() {
	f.errors = nil
	for _, e := range f.fields {
		e.server = nil
	}
}

func (e *entry) validate(name string) *goerrors.Error {
	if len(e.rules) == 0 {
		return nil
	}
	verr := validation.Validate(e.value, e.rules...)
	if verr == nil {
		return nil
	}
	return structured.WithMetadata(ErrInvalidValue, map[string]any{
		structured.MetaParamName: name,
		"reason":                 verr.Error(),
	})
}

// lookup resolves a server param name to a registered field name.
func (f *Form) lookup(param string) (string, bool) {
	if param == "" {
		return "", false
	}
	if _, ok := f.fields[param]; ok {
		return param, true
	}
	canonical := structured.CanonicalName(param)
	for _, name := range f.order {
		if structured.CanonicalName(name) == canonical {
			return name, true
		}
	}
	return "", false
}

func (f *Form) do(ctx context.Context, apply func(f *Form) error) error {
	reply := make(chan error, 1)
	if err := f.ref.Send(command{apply: apply, reply: reply}); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-f.ref.Done():
		return actor.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Form) publish() {
	snap := Snapshot{
		Fields: make(g.Slice[Field], 0, len(f.order)),
		Errors: append([]*goerrors.Error(nil), f.errors...),
	}
	for _, name := range f.order {
		e := f.fields[name]
		snap.Fields = append(snap.Fields, Field{Name: name, Value: e.value, Error: e.err()})
	}
	f.snapshot.Store(&snap)
}
