package sheets

import (
	"context"

	"khoroch/internal/core"
)

// Mirror is a read-only copy of the expense table kept outside the store,
// keyed by expense id.
type Mirror interface {
	// Upsert writes e over the row with the same id, or appends it.
	Upsert(ctx context.Context, e core.Expense) error
	// Remove deletes the row with id. Missing rows are not an error.
	Remove(ctx context.Context, id string) error
	// ReplaceAll rewrites the whole mirror with es in the given order.
	ReplaceAll(ctx context.Context, es []core.Expense) error
}

// Lister reads the mirrored rows back, in sheet order.
type Lister interface {
	Rows(ctx context.Context) ([]core.Expense, error)
}
