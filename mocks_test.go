package authflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	waitFor   = 2 * time.Second
	pollEvery = 2 * time.Millisecond
)

// MockClient implements authflow.Client
type MockClient struct {
	mock.Mock

	mu       sync.Mutex
	attempts []authflow.AttemptRequest
}

func (m *MockClient) Attempt(ctx context.Context, flow authflow.FlowKind, req authflow.AttemptRequest) (*authflow.Resource, error) {
	m.mu.Lock()
	m.attempts = append(m.attempts, req)
	m.mu.Unlock()

	args := m.Called(ctx, flow, req)
	res, _ := args.Get(0).(*authflow.Resource)
	return res, args.Error(1)
}

func (m *MockClient) AuthenticateWithRedirect(ctx context.Context, flow authflow.FlowKind, req authflow.RedirectRequest) error {
	args := m.Called(ctx, flow, req)
	return args.Error(0)
}

func (m *MockClient) AuthenticateWithWeb3(ctx context.Context, flow authflow.FlowKind, strategy authflow.Strategy) (*authflow.Resource, error) {
	args := m.Called(ctx, flow, strategy)
	res, _ := args.Get(0).(*authflow.Resource)
	return res, args.Error(1)
}

func (m *MockClient) HandleRedirectCallback(ctx context.Context, flow authflow.FlowKind, params authflow.CallbackParams, navigate authflow.Navigator) (*authflow.Resource, error) {
	args := m.Called(ctx, flow, params, navigate)
	res, _ := args.Get(0).(*authflow.Resource)
	return res, args.Error(1)
}

// callsFor lists the Attempt requests made with action.
func (m *MockClient) callsFor(action authflow.AttemptAction) []authflow.AttemptRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []authflow.AttemptRequest
	for _, req := range m.attempts {
		if req.Action == action {
			out = append(out, req)
		}
	}
	return out
}

func action(a authflow.AttemptAction) any {
	return mock.MatchedBy(func(req authflow.AttemptRequest) bool {
		return req.Action == a
	})
}

func actionWith(a authflow.AttemptAction, strategy authflow.Strategy) any {
	return mock.MatchedBy(func(req authflow.AttemptRequest) bool {
		return req.Action == a && req.Strategy == strategy
	})
}

// recorder collects host events.
type recorder struct {
	mu     sync.Mutex
	events []authflow.HostEvent
}

func (r *recorder) record(ev authflow.HostEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []authflow.HostEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]authflow.HostEvent(nil), r.events...)
}

func (r *recorder) ofType(t authflow.HostEventType) []authflow.HostEvent {
	var out []authflow.HostEvent
	for _, ev := range r.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) nextSteps() []authflow.StepID {
	var out []authflow.StepID
	for _, ev := range r.ofType(authflow.HostEventNext) {
		out = append(out, ev.Step)
	}
	return out
}

// activities collects activity events.
type activities struct {
	mu     sync.Mutex
	events []authflow.ActivityEvent
}

func (a *activities) sink() authflow.ActivitySink {
	return authflow.ActivitySinkFunc(func(_ context.Context, ev authflow.ActivityEvent) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.events = append(a.events, ev)
		return nil
	})
}

func (a *activities) ofType(t authflow.ActivityEventType) []authflow.ActivityEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []authflow.ActivityEvent
	for _, ev := range a.events {
		if ev.EventType == t {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	router *authflow.Router
	client *MockClient
	events *recorder
}

func newHarness(t *testing.T, flow authflow.FlowKind, opts ...authflow.Option) *harness {
	t.Helper()
	client := &MockClient{}
	return newHarnessWith(t, flow, client, opts...)
}

func newHarnessWith(t *testing.T, flow authflow.FlowKind, client *MockClient, opts ...authflow.Option) *harness {
	t.Helper()
	h := &harness{
		router: authflow.NewRouter(flow, client, opts...),
		client: client,
		events: &recorder{},
	}
	h.router.Subscribe(h.events.record)
	return h
}

func (h *harness) start(t *testing.T) *harness {
	t.Helper()
	require.NoError(t, h.router.Start(context.Background()))
	t.Cleanup(h.router.Stop)
	return h
}

func (h *harness) navigate(t *testing.T, ev authflow.Event) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.router.Navigate(ctx, ev))
}

func (h *harness) set(t *testing.T, name, value string) {
	t.Helper()
	h.navigate(t, authflow.FieldSet{Name: name, Value: value})
}

func (h *harness) waitFor(t *testing.T, pred func(authflow.Snapshot) bool) authflow.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	snap, err := h.router.WaitFor(ctx, pred)
	require.NoError(t, err, "last snapshot: state=%s error=%v config=%v", snap.State, snap.Context.Error, snap.Context.ConfigError)
	return snap
}

func (h *harness) waitState(t *testing.T, step authflow.StepID) authflow.Snapshot {
	t.Helper()
	return h.waitFor(t, func(s authflow.Snapshot) bool { return s.State == step })
}

func (h *harness) waitIdle(t *testing.T, step authflow.StepID) authflow.Snapshot {
	t.Helper()
	return h.waitFor(t, func(s authflow.Snapshot) bool {
		return s.State == step && !s.Context.Loading.IsLoading &&
			s.Context.Step != nil && !s.Context.Step.Busy()
	})
}

// waitStrategy waits until the active step settled on strategy.
func (h *harness) waitStrategy(t *testing.T, step authflow.StepID, strategy authflow.Strategy) authflow.Snapshot {
	t.Helper()
	return h.waitFor(t, func(s authflow.Snapshot) bool {
		return s.State == step && s.Context.Step != nil &&
			s.Context.Step.Strategy == strategy && !s.Context.Step.Busy()
	})
}

// loadingPaired checks every loading=true is followed by a loading=false
// before the next loading=true.
func loadingPaired(events []authflow.HostEvent) bool {
	open := false
	for _, ev := range events {
		if ev.Type != authflow.HostEventLoading {
			continue
		}
		if ev.Loading.IsLoading {
			if open {
				return false
			}
			open = true
			continue
		}
		open = false
	}
	return !open
}
