package logging

import (
	"context"
	"testing"

	"github.com/goliatone/go-logger/glog"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	calls []string
}

func (l *captureLogger) Trace(msg string, _ ...any) { l.calls = append(l.calls, "trace:"+msg) }
func (l *captureLogger) Debug(msg string, _ ...any) { l.calls = append(l.calls, "debug:"+msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.calls = append(l.calls, "info:"+msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.calls = append(l.calls, "warn:"+msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.calls = append(l.calls, "error:"+msg) }
func (l *captureLogger) Fatal(msg string, _ ...any) { l.calls = append(l.calls, "fatal:"+msg) }
func (l *captureLogger) WithContext(context.Context) glog.Logger {
	return l
}

type providerSpy struct {
	byName map[string]glog.Logger
	names  []string
}

func (p *providerSpy) GetLogger(name string) glog.Logger {
	p.names = append(p.names, name)
	return p.byName[name]
}

func TestResolvePrefersProvider(t *testing.T) {
	scoped := &captureLogger{}
	provider := &providerSpy{byName: map[string]glog.Logger{"authflow.router": scoped}}

	resolvedProvider, logger := Resolve("authflow.router", provider, &captureLogger{})
	require.Same(t, provider, resolvedProvider)
	require.Same(t, scoped, logger)
	require.Equal(t, []string{"authflow.router"}, provider.names)
}

func TestResolveFallsBackToLogger(t *testing.T) {
	fallback := &captureLogger{}
	provider := &providerSpy{byName: map[string]glog.Logger{}}

	resolvedProvider, logger := Resolve("authflow.form", provider, fallback)
	require.Same(t, fallback, logger)
	require.Same(t, fallback, resolvedProvider.GetLogger("anything"))
}

func TestResolveDefaultsWhenNothingGiven(t *testing.T) {
	provider, logger := Resolve("authflow.timer", nil, nil)
	require.NotNil(t, provider)
	require.NotNil(t, logger)
	require.NotPanics(t, func() {
		logger.Debug("tick", "remaining", 3)
		logger.WithContext(context.Background()).Info("odd args", "dangling")
	})
}

func TestResolveDefaultNamesEveryLogger(t *testing.T) {
	provider, logger := Resolve("authflow.router", nil, nil)

	router, ok := logger.(*consoleLogger)
	require.True(t, ok)
	require.Equal(t, "AUTHFLOW.ROUTER", router.name)

	step, ok := provider.GetLogger("authflow.step.start").(*consoleLogger)
	require.True(t, ok)
	require.Equal(t, "AUTHFLOW.STEP.START", step.name)
}

func TestNopLoggerIsSafe(t *testing.T) {
	logger := Nop()
	require.NotPanics(t, func() {
		logger.Error("ignored", "k", "v")
		logger.WithContext(context.Background()).Warn("ignored")
	})
}
