package knowhere

import (
	"github.com/alwayslove2013/knowhere/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	resources        *resource.Controller
}

// Option configures CreateIndex.
type Option func(*options)

// WithLogger sets the logger. Pass nil to disable logging.
//
// Example:
//
//	logger := knowhere.NewJSONLogger(slog.LevelDebug)
//	idx, _ := knowhere.CreateIndex("IVF_FLAT", knowhere.GetCurrentVersion(), knowhere.WithLogger(logger))
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &knowhere.BasicMetricsCollector{}
//	idx, _ := knowhere.CreateIndex("FLAT", knowhere.GetCurrentVersion(), knowhere.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceController runs the index on rc instead of the package default.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		if rc != nil {
			o.resources = rc
		}
	}
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		resources:        defaultController,
	}
}
