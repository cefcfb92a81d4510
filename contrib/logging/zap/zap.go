// Package zap adapts a zap logger to the reprise Logger interface.
//
//	logger, _ := zap.NewProduction()
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithLogger(zapadapter.New(logger)),
//	)
package zap

import (
	"go.uber.org/zap"

	"github.com/arloliu/reprise/types"
)

// Logger wraps a zap SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Compile-time assertion that Logger implements types.Logger.
var _ types.Logger = (*Logger)(nil)

// New creates a Logger from a zap.Logger.
//
// A nil logger is replaced with zap.NewNop().
func New(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}

	return &Logger{sugar: l.Sugar()}
}

// NewSugared creates a Logger from a zap.SugaredLogger.
func NewSugared(s *zap.SugaredLogger) *Logger {
	if s == nil {
		s = zap.NewNop().Sugar()
	}

	return &Logger{sugar: s}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
