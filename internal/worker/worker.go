package worker

import (
	"context"
	"log"
	"time"

	"qms/ticket-queue/internal/store"
	"qms/ticket-queue/internal/telemetry"

	"go.uber.org/atomic"
)

const defaultConsumer = "relay"

// Sink receives durable queue events in commit-safe cursor order.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event store.OutboxEvent) error
}

type Config struct {
	Consumer  string
	BatchSize int
}

// Worker relays outbox events to its sinks and remembers how far it got.
type Worker struct {
	store     store.OutboxStore
	sinks     []Sink
	consumer  string
	batchSize int
	running   *atomic.Bool
}

func New(outbox store.OutboxStore, cfg Config, sinks ...Sink) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = defaultConsumer
	}
	return &Worker{
		store:     outbox,
		sinks:     sinks,
		consumer:  consumer,
		batchSize: batch,
		running:   atomic.NewBool(false),
	}
}

// Run processes one batch. A sink failure is logged and does not hold back
// the offset. Overlapping calls return immediately.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return nil
	}
	defer w.running.Store(false)

	last, err := w.store.GetOutboxOffset(ctx, w.consumer)
	if err != nil {
		return err
	}

	events, err := w.store.ListOutboxEvents(ctx, last, w.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		for _, sink := range w.sinks {
			err := sink.Deliver(ctx, event)
			telemetry.OutboxDeliveries.WithLabelValues(sink.Name(), telemetry.Result(err)).Inc()
			if err != nil {
				log.Printf("outbox deliver error sink=%s seq=%d type=%s: %v", sink.Name(), event.Seq, event.Type, err)
			}
		}
		last = event.Cursor()
	}

	return w.store.UpdateOutboxOffset(ctx, w.consumer, last)
}

func Start(ctx context.Context, interval time.Duration, w *Worker) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				log.Printf("outbox worker error: %v", err)
			}
		}
	}
}
