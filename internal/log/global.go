package log

import (
	"sync"
)

var (
	defaultLogger *Logger
	loggerMu      sync.Mutex
)

// SetDefaultLogger sets the process-wide fallback logger.
func SetDefaultLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// DefaultLogger returns the process-wide fallback logger, creating it on first use.
func DefaultLogger() *Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = Default()
	}
	return defaultLogger
}

// OrDefault returns l, or the fallback logger when l is nil.
// Constructors accept a nil logger through this.
func OrDefault(l *Logger) *Logger {
	if l != nil {
		return l
	}
	return DefaultLogger()
}
