package worker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"khoroch/internal/amqp"
	"khoroch/internal/core"
	"khoroch/internal/sheets"
	"khoroch/internal/storage"
)

// SyncWorker keeps a sheet mirror in step with the record store.
type SyncWorker struct {
	store  storage.Reader
	mirror sheets.Mirror
	logger *slog.Logger
}

func NewSyncWorker(store storage.Reader, mirror sheets.Mirror, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{store: store, mirror: mirror, logger: logger}
}

// HandleEvent applies one change event to the mirror. For created and
// updated events the store is read again so that a late event never
// overwrites a newer row; a row that is gone from the store is removed.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	id := ev.Expense.ID
	w.logger.InfoContext(ctx, "Processing expense event",
		"event_type", ev.Type,
		"expense_id", id,
		"user", ev.Actor)

	switch ev.Type {
	case amqp.EventCreated, amqp.EventUpdated:
		rows, err := w.store.Select(ctx, storage.Query{}.Where(storage.FieldID, id))
		if err != nil {
			return fmt.Errorf("read expense %s: %w", id, err)
		}
		if len(rows) == 0 {
			w.logger.InfoContext(ctx, "Expense no longer stored, removing from mirror", "expense_id", id)
			return w.remove(ctx, id)
		}
		if err := w.mirror.Upsert(ctx, rows[0]); err != nil {
			return fmt.Errorf("upsert expense %s: %w", id, err)
		}
		w.logger.InfoContext(ctx, "Mirrored expense",
			"expense_id", id,
			"amount_cents", rows[0].Amount.Cents)
		return nil

	case amqp.EventDeleted:
		return w.remove(ctx, id)

	default:
		return fmt.Errorf("%w: unknown type %q", amqp.ErrInvalidEvent, ev.Type)
	}
}

func (w *SyncWorker) remove(ctx context.Context, id string) error {
	if err := w.mirror.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove expense %s: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Removed expense from mirror", "expense_id", id)
	return nil
}

// Reconcile rewrites the mirror from the store. This is the backup path
// for lost events and worker downtime. When the mirror can be read back and
// already matches, nothing is written.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	rows, err := w.store.Select(ctx, storage.ByDateDesc())
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	if lister, ok := w.mirror.(sheets.Lister); ok {
		current, err := lister.Rows(ctx)
		if err != nil {
			w.logger.WarnContext(ctx, "Could not read mirror, rewriting it", "error", err)
		} else if sameRows(current, rows) {
			w.logger.DebugContext(ctx, "Mirror already up to date", "count", len(rows))
			return nil
		}
	}

	if err := w.mirror.ReplaceAll(ctx, rows); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror reconciled", "count", len(rows))
	return nil
}

// StartupSyncCheck reconciles once before the consumer starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if err := w.Reconcile(ctx); err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	return nil
}

func sameRows(a, b []core.Expense) bool {
	return slices.EqualFunc(a, b, func(x, y core.Expense) bool {
		x.Scope = x.Scope.Normalize()
		y.Scope = y.Scope.Normalize()
		return x == y
	})
}
