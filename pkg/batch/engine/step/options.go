// Package step holds what tasklet and chunk-oriented steps share: the StepExecution
// lifecycle and the construction options.
package step

import (
	"database/sql"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/retry"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/skip"
)

// Options configures a step. Fields a step kind does not use are ignored.
type Options struct {
	StepListeners    []port.StepExecutionListener
	ChunkListeners   []port.ChunkListener
	ReadListeners    []port.ItemReadListener
	ProcessListeners []port.ItemProcessListener
	WriteListeners   []port.ItemWriteListener
	SkipListeners    []port.SkipListener
	RetryListeners   []port.RetryItemListener

	// Promotion copies step context keys into the job context when the step completes.
	Promotion *model.ExecutionContextPromotion

	RetryPolicy retry.Policy
	SkipPolicy  skip.Policy

	// TxOptions are passed to TransactionManager.Begin for every chunk.
	TxOptions *sql.TxOptions

	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
}

// Option mutates Options.
type Option func(*Options)

// NewOptions applies opts over the defaults: no listeners, no promotion, no retry, no skip
// and no-op observability.
func NewOptions(opts ...Option) Options {
	o := Options{
		RetryPolicy:    retry.NeverRetry,
		SkipPolicy:     skip.NeverSkip,
		MetricRecorder: metrics.NewNoOpMetricRecorder(),
		Tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithListener registers l under every listener interface it implements.
func WithListener(l interface{}) Option {
	return func(o *Options) {
		if v, ok := l.(port.StepExecutionListener); ok {
			o.StepListeners = append(o.StepListeners, v)
		}
		if v, ok := l.(port.ChunkListener); ok {
			o.ChunkListeners = append(o.ChunkListeners, v)
		}
		if v, ok := l.(port.ItemReadListener); ok {
			o.ReadListeners = append(o.ReadListeners, v)
		}
		if v, ok := l.(port.ItemProcessListener); ok {
			o.ProcessListeners = append(o.ProcessListeners, v)
		}
		if v, ok := l.(port.ItemWriteListener); ok {
			o.WriteListeners = append(o.WriteListeners, v)
		}
		if v, ok := l.(port.SkipListener); ok {
			o.SkipListeners = append(o.SkipListeners, v)
		}
		if v, ok := l.(port.RetryItemListener); ok {
			o.RetryListeners = append(o.RetryListeners, v)
		}
	}
}

// WithPromotion promotes the given step context keys to the job context on completion.
func WithPromotion(p *model.ExecutionContextPromotion) Option {
	return func(o *Options) { o.Promotion = p }
}

// WithRetryPolicy sets the item retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Options) {
		if p != nil {
			o.RetryPolicy = p
		}
	}
}

// WithSkipPolicy sets the item skip policy.
func WithSkipPolicy(p skip.Policy) Option {
	return func(o *Options) {
		if p != nil {
			o.SkipPolicy = p
		}
	}
}

// WithIsolation sets the isolation level of chunk transactions.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(o *Options) { o.TxOptions = &sql.TxOptions{Isolation: level} }
}

// WithMetricRecorder sets the metric recorder.
func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(o *Options) {
		if r != nil {
			o.MetricRecorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t metrics.Tracer) Option {
	return func(o *Options) {
		if t != nil {
			o.Tracer = t
		}
	}
}

// ParseIsolationLevel converts a configured name such as "READ_COMMITTED" to an
// sql.IsolationLevel. Unknown names give sql.LevelDefault.
func ParseIsolationLevel(level string) sql.IsolationLevel {
	switch level {
	case "READ_UNCOMMITTED":
		return sql.LevelReadUncommitted
	case "READ_COMMITTED":
		return sql.LevelReadCommitted
	case "WRITE_COMMITTED":
		return sql.LevelWriteCommitted
	case "REPEATABLE_READ":
		return sql.LevelRepeatableRead
	case "SERIALIZABLE":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
