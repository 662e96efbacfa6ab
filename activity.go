package authflow

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventStepEntered      ActivityEventType = "authflow.step.entered"
	ActivityEventAttemptSucceeded ActivityEventType = "authflow.attempt.success"
	ActivityEventAttemptFailed    ActivityEventType = "authflow.attempt.failure"
	ActivityEventRedirectFailed   ActivityEventType = "authflow.redirect.failure"
	ActivityEventFlowComplete     ActivityEventType = "authflow.flow.complete"
	ActivityEventConfigError      ActivityEventType = "authflow.config.error"
)

// ActivityEvent captures audit-friendly information about flow progress.
type ActivityEvent struct {
	EventType  ActivityEventType
	Flow       FlowKind
	FlowID     string
	ResourceID string
	Step       StepID
	Strategy   Strategy
	Code       string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
