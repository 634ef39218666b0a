package worker

import (
	"context"
	"errors"
	"testing"

	"khoroch/internal/amqp"
	"khoroch/internal/core"
	"khoroch/internal/sheets/memory"
	"khoroch/internal/storage"
)

func seeded(t *testing.T) (*storage.MemoryStore, []core.Expense) {
	t.Helper()
	store := storage.NewMemoryStore()
	rows, err := store.Insert(context.Background(),
		core.Expense{Name: "niloy", Category: "food", Date: "2024-05-01", Amount: core.Money{Cents: 500}, Scope: core.ScopeJoint},
		core.Expense{Name: "sejuti", Category: "rent", Date: "2024-05-03", Amount: core.Money{Cents: 90000}, Scope: core.ScopeJoint},
	)
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store, rows
}

func TestSyncWorker_HandleCreatedUsesStoredRow(t *testing.T) {
	store, rows := seeded(t)
	mirror := memory.New()
	w := NewSyncWorker(store, mirror, nil)
	ctx := context.Background()

	stale := rows[0]
	stale.Category = "stale"
	if err := w.HandleEvent(ctx, amqp.NewExpenseEvent(amqp.EventCreated, stale, "niloy")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	got, _ := mirror.Rows(ctx)
	if len(got) != 1 || got[0] != rows[0] {
		t.Fatalf("mirror should hold the stored row, got %+v", got)
	}
}

func TestSyncWorker_HandleUpdatedForDeletedRowRemoves(t *testing.T) {
	store, rows := seeded(t)
	mirror := memory.New()
	w := NewSyncWorker(store, mirror, nil)
	ctx := context.Background()

	_ = mirror.Upsert(ctx, rows[0])
	if err := store.Delete(ctx, rows[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := w.HandleEvent(ctx, amqp.NewExpenseEvent(amqp.EventUpdated, rows[0], "niloy")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if got, _ := mirror.Rows(ctx); len(got) != 0 {
		t.Fatalf("expected empty mirror, got %+v", got)
	}
}

func TestSyncWorker_HandleDeleted(t *testing.T) {
	store, rows := seeded(t)
	mirror := memory.New()
	w := NewSyncWorker(store, mirror, nil)
	ctx := context.Background()

	_ = mirror.ReplaceAll(ctx, rows)
	if err := w.HandleEvent(ctx, amqp.NewExpenseEvent(amqp.EventDeleted, rows[1], "sejuti")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	got, _ := mirror.Rows(ctx)
	if len(got) != 1 || got[0].ID != rows[0].ID {
		t.Fatalf("unexpected mirror %+v", got)
	}
}

func TestSyncWorker_HandleUnknownType(t *testing.T) {
	store, rows := seeded(t)
	w := NewSyncWorker(store, memory.New(), nil)

	ev := amqp.NewExpenseEvent("renamed", rows[0], "niloy")
	if err := w.HandleEvent(context.Background(), ev); !errors.Is(err, amqp.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

type countingMirror struct {
	*memory.Mirror
	replaced int
}

func (c *countingMirror) ReplaceAll(ctx context.Context, es []core.Expense) error {
	c.replaced++
	return c.Mirror.ReplaceAll(ctx, es)
}

func TestSyncWorker_Reconcile(t *testing.T) {
	store, _ := seeded(t)
	mirror := &countingMirror{Mirror: memory.New()}
	w := NewSyncWorker(store, mirror, nil)
	ctx := context.Background()

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	got, _ := mirror.Rows(ctx)
	if len(got) != 2 || got[0].Date != "2024-05-03" {
		t.Fatalf("mirror should hold every row newest first, got %+v", got)
	}

	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if mirror.replaced != 1 {
		t.Fatalf("an up to date mirror should not be rewritten, replaced=%d", mirror.replaced)
	}
}
