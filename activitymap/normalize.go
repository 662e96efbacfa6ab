package activitymap

import (
	"context"
	"strings"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
)

const (
	// MetadataKeyStep stores the router step the event happened in.
	MetadataKeyStep = "step"
	// MetadataKeyStrategy stores the strategy of the attempt or redirect.
	MetadataKeyStrategy = "strategy"
	// MetadataKeyCode stores the error text code of failure events.
	MetadataKeyCode = "code"
	// MetadataKeyResourceID stores the API resource id when it is not the object id.
	MetadataKeyResourceID = "resource_id"
)

const (
	defaultChannel = "authflow"
	defaultActorID = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(authflow.ActivityEvent) string
}

// Normalize converts an authflow.ActivityEvent into a generic normalized shape.
// The flow id identifies the actor and the API resource is the object. The
// object type defaults to the flow kind.
func Normalize(event authflow.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	objectID := resolveObjectID(event, options.objectIDResolver)

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.FlowID), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: firstNonEmpty(options.objectType, string(event.Flow)),
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event, objectID),
		OccurredAt: occurredAt,
	}
}

// NewSink returns an authflow.ActivitySink that normalizes every event before
// handing it to record.
func NewSink(record func(ctx context.Context, n Normalized) error, opts ...Option) authflow.ActivitySink {
	return authflow.ActivitySinkFunc(func(ctx context.Context, event authflow.ActivityEvent) error {
		if record == nil {
			return nil
		}
		return record(ctx, Normalize(event, opts...))
	})
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType overrides the flow kind as object type.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(authflow.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used when the event has no flow id.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
	}
}

func resolveObjectID(event authflow.ActivityEvent, resolver func(authflow.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return strings.TrimSpace(event.ResourceID)
}

func normalizeMetadata(event authflow.ActivityEvent, objectID string) map[string]any {
	metadata := cloneMap(event.Metadata)
	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyStep, string(event.Step))
	set(MetadataKeyStrategy, string(event.Strategy))
	set(MetadataKeyCode, event.Code)
	if event.ResourceID != objectID {
		set(MetadataKeyResourceID, event.ResourceID)
	}
	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
