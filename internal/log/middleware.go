package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPEnd logs the completion of an HTTP request
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogEntryRecorded logs a session appended to the table
func (sl *StructuredLogger) LogEntryRecorded(ctx context.Context, child, date, weekStart, activity string) {
	fields := NewFields().
		WithEntry(child, date, weekStart, activity).
		WithOperation(OpRecord).
		WithComponent(ComponentEntries)

	sl.logger.Logger.InfoContext(ctx, "Session recorded", fields.ToSlice()...)
}

// LogStatus logs a computed weekly status
func (sl *StructuredLogger) LogStatus(ctx context.Context, child, weekStart string, count int, tier string) {
	fields := NewFields().
		WithStatus(child, weekStart, count, tier).
		WithOperation(OpStatus).
		WithComponent(ComponentRewards)

	sl.logger.Logger.DebugContext(ctx, "Weekly status computed", fields.ToSlice()...)
}

// LogTableReplaced logs a bulk replace or reset of the table
func (sl *StructuredLogger) LogTableReplaced(ctx context.Context, op string, rows int) {
	fields := NewFields().
		WithRows(rows).
		WithOperation(op).
		WithComponent(ComponentEntries)

	sl.logger.Logger.InfoContext(ctx, "Table replaced", fields.ToSlice()...)
}

// LogLoadDegraded logs a load that did not produce a readable table
func (sl *StructuredLogger) LogLoadDegraded(ctx context.Context, outcome string, err error) {
	fields := NewFields().
		WithLoadOutcome(outcome).
		WithError(err).
		WithOperation(OpLoad).
		WithComponent(ComponentStorage)

	sl.logger.Logger.WarnContext(ctx, "Record table not loaded", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
