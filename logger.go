package bitrow

import (
	"log/slog"
	"os"

	"github.com/hupe1980/bitrow/index"
)

// Logger wraps slog.Logger with bitrow-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDoc adds a document id field to the logger.
func (l *Logger) WithDoc(id index.DocId) *Logger {
	return &Logger{
		Logger: l.Logger.With("doc", uint64(id)),
	}
}

// WithShard adds a shard id field to the logger.
func (l *Logger) WithShard(id index.ShardId) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", int(id)),
	}
}

// LogAdd logs a document add operation.
func (l *Logger) LogAdd(id index.DocId, postings int, err error) {
	if err != nil {
		l.Error("add failed",
			"doc", uint64(id),
			"postings", postings,
			"error", err,
		)
	} else {
		l.Debug("add completed",
			"doc", uint64(id),
			"postings", postings,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(id index.DocId, found bool) {
	l.Debug("delete completed",
		"doc", uint64(id),
		"found", found,
	)
}

// LogStatisticsWrite logs a statistics side-file write pass.
func (l *Logger) LogStatisticsWrite(shards int, err error) {
	if err != nil {
		l.Error("statistics write failed",
			"shards", shards,
			"error", err,
		)
	} else {
		l.Info("statistics written",
			"shards", shards,
		)
	}
}
