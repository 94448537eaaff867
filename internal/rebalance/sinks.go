package rebalance

import (
	"context"

	"auction_rebalancer/internal/core"
	"auction_rebalancer/pkg/concurrency"
)

// NopSink drops every event. Default when no sink is configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, core.Event) {}

// LoggerSink writes events to the structured log.
type LoggerSink struct {
	logger core.ILogger
}

// NewLoggerSink creates a sink logging at info level.
func NewLoggerSink(logger core.ILogger) *LoggerSink {
	return &LoggerSink{logger: logger.WithField("component", "event_sink")}
}

func (s *LoggerSink) Publish(_ context.Context, event core.Event) {
	s.logger.Info("Engine event", "event_type", event.EventType(), "event", event)
}

// FuncSink adapts a function to core.IEventSink.
type FuncSink func(ctx context.Context, event core.Event)

func (f FuncSink) Publish(ctx context.Context, event core.Event) { f(ctx, event) }

// MultiSink fans an event out to every child sink in order.
type MultiSink []core.IEventSink

func (s MultiSink) Publish(ctx context.Context, event core.Event) {
	for _, sink := range s {
		sink.Publish(ctx, event)
	}
}

// AsyncSink hands events to a worker pool so slow observers never stall
// settlement. Events may be delivered out of order under load.
type AsyncSink struct {
	pool *concurrency.WorkerPool
	next core.IEventSink
}

// NewAsyncSink wraps next with pool-backed delivery.
func NewAsyncSink(pool *concurrency.WorkerPool, next core.IEventSink) *AsyncSink {
	return &AsyncSink{pool: pool, next: next}
}

func (s *AsyncSink) Publish(_ context.Context, event core.Event) {
	// Detach from the caller's context; delivery outlives the settlement call.
	_ = s.pool.Submit(func() {
		s.next.Publish(context.Background(), event)
	})
}
