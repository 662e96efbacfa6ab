// Package logging resolves named glog loggers for the flow actors.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-logger/glog"
)

// Provider returns scoped loggers by name. It has the method set of
// glog.LoggerProvider.
type Provider interface {
	GetLogger(name string) glog.Logger
}

// Resolve picks the logger for name. A provider wins over a bare logger; when
// the provider yields nil the bare logger is used for every name, and when
// both are missing each name gets its own console logger. The returned
// provider is never nil.
func Resolve(name string, provider Provider, logger glog.Logger) (Provider, glog.Logger) {
	if provider != nil {
		if scoped := provider.GetLogger(name); scoped != nil {
			return provider, scoped
		}
	}

	if logger == nil {
		return defaultProvider{}, Default(name)
	}

	return fixedProvider{logger: logger}, logger
}

type defaultProvider struct{}

func (defaultProvider) GetLogger(name string) glog.Logger {
	return Default(name)
}

type fixedProvider struct {
	logger glog.Logger
}

func (p fixedProvider) GetLogger(string) glog.Logger {
	return p.logger
}

// Default returns a console logger that prefixes lines with the logger name.
func Default(name string) glog.Logger {
	return &consoleLogger{name: strings.ToUpper(name)}
}

type consoleLogger struct {
	name string
}

func (l *consoleLogger) Trace(msg string, args ...any) { l.print("TRC", msg, args...) }
func (l *consoleLogger) Debug(msg string, args ...any) { l.print("DBG", msg, args...) }
func (l *consoleLogger) Info(msg string, args ...any)  { l.print("INF", msg, args...) }
func (l *consoleLogger) Warn(msg string, args ...any)  { l.print("WRN", msg, args...) }
func (l *consoleLogger) Error(msg string, args ...any) { l.print("ERR", msg, args...) }
func (l *consoleLogger) Fatal(msg string, args ...any) {
	l.print("FTL", msg, args...)
	os.Exit(1)
}

func (l *consoleLogger) WithContext(context.Context) glog.Logger {
	return l
}

func (l *consoleLogger) print(level, msg string, args ...any) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", level, l.name, msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&b, " %v", args[len(args)-1])
	}
	fmt.Fprintln(os.Stdout, b.String())
}

// Nop discards everything.
func Nop() glog.Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Trace(string, ...any)                     {}
func (nopLogger) Debug(string, ...any)                     {}
func (nopLogger) Info(string, ...any)                      {}
func (nopLogger) Warn(string, ...any)                      {}
func (nopLogger) Error(string, ...any)                     {}
func (nopLogger) Fatal(string, ...any)                     {}
func (n nopLogger) WithContext(context.Context) glog.Logger { return n }
