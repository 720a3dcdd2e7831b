// Package historian drains the event queue filled by the game server into postgres.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/sirupsen/logrus"
)

// Queue is the source of event records, normally cache.EventQueue.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.EventRecord, error)
}

// Sink stores batches, normally database.EventSink.
type Sink interface {
	InsertEvents(ctx context.Context, recs []models.EventRecord) error
}

// Options tune batching.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	PopTimeout    time.Duration
	// MaxPending caps the records kept while the sink is failing; the oldest are dropped beyond it.
	MaxPending int
}

// Service accumulates popped records and flushes them when the batch is full or the interval elapses.
type Service struct {
	queue Queue
	sink  Sink
	opts  Options
	log   logrus.FieldLogger

	batch []models.EventRecord
}

func New(queue Queue, sink Sink, opts Options, logger logrus.FieldLogger) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.MaxPending < opts.BatchSize {
		opts.MaxPending = 50 * opts.BatchSize
	}
	return &Service{
		queue: queue,
		sink:  sink,
		opts:  opts,
		log:   logger,
		batch: make([]models.EventRecord, 0, opts.BatchSize),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what it holds.
func (hs *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(hs.opts.FlushInterval)
	defer ticker.Stop()

	hs.log.Info("historian started")
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			hs.flush(flushCtx)
			cancel()
			hs.log.Info("historian stopped")
			return nil

		case <-ticker.C:
			hs.flush(ctx)

		default:
			rec, err := hs.queue.Pop(ctx, hs.opts.PopTimeout)
			if err != nil {
				if ctx.Err() == nil {
					hs.log.WithError(err).Warn("pop failed")
				}
				continue
			}
			if rec == nil {
				continue
			}
			hs.batch = append(hs.batch, *rec)
			if len(hs.batch) >= hs.opts.BatchSize {
				hs.flush(ctx)
			}
		}
	}
}

// flush writes the pending batch. On failure the records stay pending for the next attempt.
func (hs *Service) flush(ctx context.Context) {
	if len(hs.batch) == 0 {
		return
	}
	if err := hs.sink.InsertEvents(ctx, hs.batch); err != nil {
		hs.log.WithError(err).WithField("pending", len(hs.batch)).Error("flush failed")
		if over := len(hs.batch) - hs.opts.MaxPending; over > 0 {
			hs.log.WithField("dropped", over).Error("pending events over limit, dropping oldest")
			hs.batch = append(hs.batch[:0], hs.batch[over:]...)
		}
		return
	}
	hs.log.WithField("count", len(hs.batch)).Debug("flushed events")
	hs.batch = hs.batch[:0]
}
