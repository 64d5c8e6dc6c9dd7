package evidgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with evidgo-specific context.
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
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithOrigin adds an origin-file field to the logger.
func (l *Logger) WithOrigin(origin string) *Logger {
	return &Logger{Logger: l.Logger.With("origin", origin)}
}

// WithClaim adds a claim ID field to the logger.
func (l *Logger) WithClaim(id string) *Logger {
	return &Logger{Logger: l.Logger.With("claim", id)}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{Logger: l.Logger.With("count", count)}
}

// LogEmbed logs an embedding request.
func (l *Logger) LogEmbed(ctx context.Context, fingerprint string, hit bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "embed failed",
			"fingerprint", fingerprint,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "embed completed",
			"fingerprint", fingerprint,
			"cache_hit", hit,
		)
	}
}

// LogEmbedBatch logs a batched embedding request.
func (l *Logger) LogEmbedBatch(ctx context.Context, total, misses int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "embed batch failed",
			"total", total,
			"misses", misses,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "embed batch completed",
			"total", total,
			"misses", misses,
		)
	}
}

// LogUpsert logs an index upsert operation.
func (l *Logger) LogUpsert(ctx context.Context, origin string, count int, skipped bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upsert failed",
			"origin", origin,
			"count", count,
			"error", err,
		)
	} else if skipped {
		l.DebugContext(ctx, "upsert skipped, origin unchanged",
			"origin", origin,
		)
	} else {
		l.InfoContext(ctx, "upsert completed",
			"origin", origin,
			"count", count,
		)
	}
}

// LogQuery logs an index query.
func (l *Logger) LogQuery(ctx context.Context, limit, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"limit", limit,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"limit", limit,
			"results", resultsFound,
		)
	}
}

// LogStrength logs a strength computation.
func (l *Logger) LogStrength(ctx context.Context, claimID string, supporting, contradicting int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "strength computation failed",
			"claim", claimID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "strength computed",
			"claim", claimID,
			"supporting", supporting,
			"contradicting", contradicting,
		)
	}
}
