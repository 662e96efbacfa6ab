package authflow

import (
	"github.com/goliatone/go-auth-flow/internal/logging"
	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger every actor writes to.
type Logger = glog.Logger

// LoggerProvider hands out named loggers. *glog.BaseLogger needs a small
// adapter since its GetLogger returns the concrete type.
type LoggerProvider = logging.Provider

// Logger names used by the engine.
const (
	LoggerRouter     = "authflow.router"
	LoggerForm       = "authflow.form"
	LoggerThirdParty = "authflow.thirdparty"
	LoggerTimer      = "authflow.timer"
	loggerStepPrefix = "authflow.step."
)

// ResolveLogger returns the logger for name, preferring provider over logger
// and falling back to a console logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	return logging.Resolve(name, provider, logger)
}

func stepLoggerName(id StepID) string {
	return loggerStepPrefix + string(id)
}
