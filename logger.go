package knowhere

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with index-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithIndexType tags the logger with the index family.
func (l *Logger) WithIndexType(typ string) *Logger {
	return &Logger{Logger: l.Logger.With("index_type", typ)}
}

// LogBuild logs a Build or Add call.
func (l *Logger) LogBuild(ctx context.Context, rows, dim int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"rows", rows,
			"dimension", dim,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"rows", rows,
		"dimension", dim,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, nq, k int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"nq", nq,
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"nq", nq,
		"k", k,
	)
}

// LogSerialize logs a Serialize call.
func (l *Logger) LogSerialize(ctx context.Context, sections int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "serialize failed", "error", err)
		return
	}
	l.DebugContext(ctx, "serialize completed",
		"sections", sections,
		"bytes", bytes,
	)
}

// LogDeserialize logs a Deserialize call.
func (l *Logger) LogDeserialize(ctx context.Context, count int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "deserialize failed", "error", err)
		return
	}
	l.InfoContext(ctx, "deserialize completed", "count", count)
}

// LogDump logs writing a dump.
func (l *Logger) LogDump(ctx context.Context, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "dump failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "dump saved",
		"name", name,
		"bytes", bytes,
	)
}

// LogLoad logs reading a dump.
func (l *Logger) LogLoad(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "dump loaded", "name", name)
}
