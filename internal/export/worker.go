package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ebisaa944/ExpenseTracker/internal/core"
	"github.com/ebisaa944/ExpenseTracker/internal/events"
	"github.com/ebisaa944/ExpenseTracker/internal/log"
	"github.com/ebisaa944/ExpenseTracker/internal/storage"
)

// Store is the read surface the worker needs to resolve event IDs.
type Store interface {
	Get(ctx context.Context, id int64) (core.Transaction, error)
	List(ctx context.Context) ([]core.Transaction, error)
}

// Consumer delivers transaction events from the broker.
type Consumer interface {
	Consume(ctx context.Context, handler func(*events.TransactionEvent) error) error
}

// Snapshotter is implemented by targets that can also take a full-dataset
// snapshot. The CSV ledger does; the Sheets mirror does not.
type Snapshotter interface {
	WriteSnapshot(ctx context.Context, txs []core.Transaction) error
}

// Worker consumes mutation events and fans them out to the export targets.
// A periodic snapshot covers events lost while the worker was down.
type Worker struct {
	store    Store
	consumer Consumer
	targets  []Target
	interval time.Duration
	logger   *log.Logger
}

func NewWorker(store Store, consumer Consumer, targets []Target, interval time.Duration, logger *log.Logger) *Worker {
	return &Worker{
		store:    store,
		consumer: consumer,
		targets:  targets,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes events and takes periodic snapshots until the context is
// cancelled. An initial snapshot runs at startup to catch up on anything
// missed while the worker was offline.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Snapshot(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup snapshot failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.consumer.Consume(ctx, func(ev *events.TransactionEvent) error {
			return w.Handle(ctx, ev)
		}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consuming events: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := w.Snapshot(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Periodic snapshot failed", log.FieldError, err)
				}
			}
		}
	})

	return g.Wait()
}

// Handle processes one event. A nil return acknowledges the message; an
// error requeues it. An ID that no longer exists is acknowledged and
// dropped, since the record was deleted before we got to it.
func (w *Worker) Handle(ctx context.Context, ev *events.TransactionEvent) error {
	logger := w.logger.With(log.FieldTransactionID, ev.ID, log.FieldAction, string(ev.Action))

	switch ev.Action {
	case events.ActionCreated:
		tx, err := w.store.Get(ctx, ev.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				logger.WarnContext(ctx, "Transaction vanished before export, dropping event")
				return nil
			}
			return fmt.Errorf("load transaction %d: %w", ev.ID, err)
		}
		for _, target := range w.targets {
			if err := target.RecordCreated(ctx, tx); err != nil {
				return fmt.Errorf("record created: %w", err)
			}
		}
	case events.ActionDeleted:
		for _, target := range w.targets {
			if err := target.RecordDeleted(ctx, ev.ID, ev.Timestamp); err != nil {
				return fmt.Errorf("record deleted: %w", err)
			}
		}
	default:
		logger.WarnContext(ctx, "Unknown event action, dropping")
		return nil
	}

	logger.InfoContext(ctx, "Event exported", log.FieldOperation, log.OpSync)
	return nil
}

// Snapshot writes the full dataset to every target that supports it.
func (w *Worker) Snapshot(ctx context.Context) error {
	txs, err := w.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list transactions for snapshot: %w", err)
	}
	for _, target := range w.targets {
		snap, ok := target.(Snapshotter)
		if !ok {
			continue
		}
		if err := snap.WriteSnapshot(ctx, txs); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	w.logger.DebugContext(ctx, "Snapshot written", "count", len(txs))
	return nil
}
