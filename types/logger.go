package types

// Logger is the structured logger used throughout reprise.
//
// Methods take a message followed by alternating key/value pairs.
// *slog.Logger satisfies this interface, and contrib/logging/zap adapts a
// zap SugaredLogger. Implementations must be safe for concurrent use.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message.
	Error(msg string, keysAndValues ...any)
}
