package memory

import (
	"context"
	"testing"

	"khoroch/internal/core"
)

func exp(id, category string) core.Expense {
	return core.Expense{ID: id, Name: "niloy", Category: category, Date: "2024-05-01", Amount: core.Money{Cents: 100}, Scope: core.ScopeJoint}
}

func TestMirrorUpsertRemove(t *testing.T) {
	ctx := context.Background()
	m := New()

	_ = m.Upsert(ctx, exp("a", "food"))
	_ = m.Upsert(ctx, exp("b", "rent"))
	_ = m.Upsert(ctx, exp("a", "groceries"))

	rows, _ := m.Rows(ctx)
	if len(rows) != 2 || rows[0].ID != "a" || rows[0].Category != "groceries" || rows[1].ID != "b" {
		t.Fatalf("unexpected rows after upsert: %+v", rows)
	}

	if err := m.Remove(ctx, "missing"); err != nil {
		t.Fatalf("removing a missing row should not fail: %v", err)
	}
	_ = m.Remove(ctx, "a")
	if rows, _ := m.Rows(ctx); len(rows) != 1 || rows[0].ID != "b" {
		t.Fatalf("unexpected rows after remove: %+v", rows)
	}
}

func TestMirrorReplaceAll(t *testing.T) {
	m := New()
	_ = m.Upsert(context.Background(), exp("old", "x"))

	in := []core.Expense{exp("1", "a"), exp("2", "b")}
	_ = m.ReplaceAll(context.Background(), in)
	in[0].Category = "mutated"

	rows, _ := m.Rows(context.Background())
	if len(rows) != 2 || rows[0].Category != "a" {
		t.Fatalf("ReplaceAll should copy its input: %+v", rows)
	}
}
