package bitrow

import (
	"log/slog"

	"github.com/hupe1980/bitrow/allocator"
	"github.com/hupe1980/bitrow/query"
	"github.com/hupe1980/bitrow/resource"
)

type options struct {
	allocator        allocator.Allocator
	controller       *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
	streams          query.StreamResolver
	statistics       bool
}

// Option configures Index constructor behavior.
type Option func(*options)

// WithAllocator overrides the slice buffer allocator. The allocator's
// buffer size determines the per-shard slice capacity. When not set, a
// pooled allocator over Config.SliceBufferSize is used.
func WithAllocator(a allocator.Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// WithResourceController bounds slice buffer memory and background
// statistics workers against ctrl's budgets. Pass nil to run
// unbounded.
func WithResourceController(ctrl *resource.Controller) Option {
	return func(o *options) {
		o.controller = ctrl
	}
}

// WithStatistics enables per-shard term frequency collection and the
// document length histogram behind WriteStatistics. Collection adds a
// lock acquisition per posting.
func WithStatistics(enabled bool) Option {
	return func(o *options) {
		o.statistics = enabled
	}
}

// WithStreamResolver configures how ParseQuery resolves `name:token`
// stream prefixes. Without a resolver, stream prefixes are parse
// errors.
func WithStreamResolver(r query.StreamResolver) Option {
	return func(o *options) {
		o.streams = r
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bitrow.BasicMetricsCollector{}
//	idx, _ := bitrow.New(cfg, bitrow.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := bitrow.NewJSONLogger(slog.LevelInfo)
//	idx, _ := bitrow.New(cfg, bitrow.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets
// it. Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
