package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"LoanLedger/internal/observability"
)

// Worker drains the persist channel and batch-writes to Postgres. The channel
// uses BLOCKING sends from the controller, so if this worker falls behind the
// controller stalls — guaranteeing no event is lost.
type Worker struct {
	writer       *EventLogWriter
	db           *sql.DB
	inputChan    <-chan Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		logger:       observability.NewLogger("persistence"),
	}
}

// Run starts the worker loop. It batches incoming outputs and flushes either
// when the batch is full or the flush timeout expires. Blocks until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	events := make([]EventRow, 0, w.batchSize)
	journals := make([]JournalRow, 0, w.batchSize*2)
	positions := make([]PositionRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(events) > 0 {
				if err := w.flush(context.Background(), events, journals, positions); err != nil {
					w.logger.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				if len(events) > 0 {
					if err := w.flush(context.Background(), events, journals, positions); err != nil {
						w.logger.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			events = append(events, output.EventRow)
			journals = append(journals, output.JournalRows...)
			if output.PositionRow != nil {
				positions = append(positions, *output.PositionRow)
			}

			if len(events) >= w.batchSize {
				if err := w.flushWithRetry(ctx, events, journals, positions); err != nil {
					w.logger.Error().Err(err).Msg("batch flush failed after retries")
				}
				events = events[:0]
				journals = journals[:0]
				positions = positions[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(events) > 0 {
				if err := w.flushWithRetry(ctx, events, journals, positions); err != nil {
					w.logger.Error().Err(err).Msg("timeout flush failed after retries")
				}
				events = events[:0]
				journals = journals[:0]
				positions = positions[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops
// events; it retries until the write succeeds or the context is cancelled,
// and on shutdown attempts one last flush with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, journals []JournalRow, positions []PositionRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(events)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if finalErr := w.flush(context.Background(), events, journals, positions); finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, events, journals, positions)
		if err == nil {
			if attempt > 0 {
				w.logger.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistRetry.Inc()
		}
	}
}

// flush writes events, journals and the positions projection in one
// transaction.
func (w *Worker) flush(ctx context.Context, events []EventRow, journals []JournalRow, positions []PositionRow) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.persistError("tx_begin")
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		w.persistError("write_events")
		return err
	}

	if err := w.writer.WriteJournalBatch(ctx, tx, journals); err != nil {
		w.persistError("write_journals")
		return err
	}

	if err := w.writer.UpsertPositions(ctx, tx, positions); err != nil {
		w.persistError("upsert_positions")
		return err
	}

	if err := tx.Commit(); err != nil {
		w.persistError("tx_commit")
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistJournalsWritten.Add(float64(len(journals)))
		if len(events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
		}
	}

	return nil
}

func (w *Worker) persistError(errType string) {
	if w.metrics != nil {
		w.metrics.PersistErrors.WithLabelValues(errType).Inc()
	}
}
