package authflow

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-auth-flow/timer"
)

// Option customizes a Router.
type Option func(*Router)

// WithConfig sets the flow configuration. Defaults to DefaultOptions().
func WithConfig(cfg Config) Option {
	return func(r *Router) {
		if cfg != nil {
			r.config = cfg
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(logger Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithLoggerProvider sets the provider every actor resolves its named logger
// from. It takes precedence over WithLogger.
func WithLoggerProvider(provider LoggerProvider) Option {
	return func(r *Router) {
		r.provider = provider
	}
}

// WithActivitySink registers a best-effort activity sink.
func WithActivitySink(sink ActivitySink) Option {
	return func(r *Router) {
		r.activity = sink
	}
}

// WithInitialResource resumes a flow from a resource the host already holds.
func WithInitialResource(res *Resource) Option {
	return func(r *Router) {
		r.initial = res.Clone()
	}
}

// WithCallback starts the router on the SSO-callback route.
func WithCallback(params CallbackParams) Option {
	return func(r *Router) {
		r.callback = &params
	}
}

// WithField registers an extra form field next to the flow defaults.
func WithField(name string, rules ...validation.Rule) Option {
	return func(r *Router) {
		r.extra = append(r.extra, fieldDef{name: name, rules: rules})
	}
}

// WithTimerOptions customizes the timers verification steps spawn.
func WithTimerOptions(opts ...timer.Option) Option {
	return func(r *Router) {
		r.timerOpts = append(r.timerOpts, opts...)
	}
}

// WithFlowID overrides the generated flow identifier.
func WithFlowID(id string) Option {
	return func(r *Router) {
		if id != "" {
			r.flowID = id
		}
	}
}
