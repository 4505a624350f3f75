package core

import "context"

// sessionLoggerKey is the context key for storing a per-session logger.
type sessionLoggerKey struct{}

// ContextWithSessionLogger returns a new context carrying the session logger.
func ContextWithSessionLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, sessionLoggerKey{}, logger)
}

// SessionLoggerFromContext extracts the session logger from the context, or nil.
func SessionLoggerFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(sessionLoggerKey{}).(*Logger); ok {
		return l
	}
	return nil
}

// LoggerFromContext returns the session logger carrying fallback's attributes
// as well. Without a session logger it returns fallback, or the global logger.
func LoggerFromContext(ctx context.Context, fallback *Logger) *Logger {
	session := SessionLoggerFromContext(ctx)
	switch {
	case session != nil && fallback != nil:
		return session.With(fallback.attrs)
	case session != nil:
		return session
	case fallback != nil:
		return fallback
	default:
		return GetLogger()
	}
}
