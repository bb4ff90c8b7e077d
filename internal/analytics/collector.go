// Package analytics ships search events to Kafka off the request path.
// Events are buffered in a channel and published in batches by a single
// background loop.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/kafka"
)

// Publisher is the subset of kafka.Producer the collector needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// OnDrop is called for every event dropped because the buffer is full.
	OnDrop func()
}

func (o *Options) withDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	if o.OnDrop == nil {
		o.OnDrop = func() {}
	}
}

type Collector struct {
	publisher Publisher
	opts      Options
	eventCh   chan SearchEvent
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewCollector(publisher Publisher, opts Options) *Collector {
	opts.withDefaults()
	return &Collector{
		publisher: publisher,
		opts:      opts,
		eventCh:   make(chan SearchEvent, opts.BufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publishing loop. It publishes a batch when it is full
// or FlushInterval has passed, and flushes what is left when ctx ends or
// the collector is closed.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.opts.FlushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.opts.BatchSize)
		flush := func(ctx context.Context) {
			if len(batch) == 0 {
				return
			}
			if err := c.publisher.PublishBatch(ctx, batch); err != nil {
				c.logger.Error("failed to publish search events", "count", len(batch), "error", err)
			}
			batch = batch[:0]
		}
		finalFlush := func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			flush(flushCtx)
		}

		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					finalFlush()
					return
				}
				batch = append(batch, toKafka(event))
				if len(batch) >= c.opts.BatchSize {
					flush(ctx)
				}
			case <-ticker.C:
				flush(ctx)
			case <-ctx.Done():
				c.drainInto(&batch)
				finalFlush()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"batch_size", c.opts.BatchSize,
		"flush_interval", c.opts.FlushInterval,
	)
}

// Track queues event without blocking; it is dropped when the buffer is
// full.
func (c *Collector) Track(event SearchEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.opts.OnDrop()
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the loop to publish the rest.
// Track must not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}

func (c *Collector) drainInto(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, toKafka(event))
		default:
			return
		}
	}
}

func toKafka(e SearchEvent) kafka.Event {
	return kafka.Event{Key: e.RequestID, Type: string(e.Type), Value: e}
}
