package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Async hands records to a background worker so request latency does not
// include the sink write. When the buffer is full the record is logged and
// dropped.
type Async struct {
	sink    Sink
	logger  zerolog.Logger
	queue   chan Record
	timeout time.Duration

	once sync.Once
	done chan struct{}
}

// NewAsync starts the worker. Call Close to drain it.
func NewAsync(sink Sink, buffer int, logger zerolog.Logger) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	a := &Async{
		sink:    sink,
		logger:  logger,
		queue:   make(chan Record, buffer),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Record enqueues rec. It never blocks and never returns an error.
func (a *Async) Record(_ context.Context, rec Record) (err error) {
	defer func() {
		// Record after Close lands on a closed channel.
		if r := recover(); r != nil {
			a.logger.Warn().Str("entity_id", rec.EntityID).Msg("audit record after close dropped")
			err = nil
		}
	}()

	select {
	case a.queue <- rec:
	default:
		a.logger.Warn().
			Str("entity_type", rec.EntityType).
			Str("entity_id", rec.EntityID).
			Str("action", rec.Action).
			Msg("audit buffer full, record dropped")
	}
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for rec := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.sink.Record(ctx, rec); err != nil {
			a.logger.Error().Err(err).
				Str("entity_type", rec.EntityType).
				Str("entity_id", rec.EntityID).
				Str("action", rec.Action).
				Msg("audit sink failed")
		}
		cancel()
	}
}

// Close stops accepting records and waits for the queue to drain or ctx to
// expire, whichever comes first.
func (a *Async) Close(ctx context.Context) error {
	a.once.Do(func() { close(a.queue) })
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
