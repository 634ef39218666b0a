package storage

import (
	"context"
	"errors"

	"khoroch/internal/core"
)

var (
	ErrNotFound     = errors.New("expense not found")
	ErrUnknownField = errors.New("unknown field")
)

// Field names a column of the expenses table that can be filtered or ordered on.
type Field string

const (
	FieldID       Field = "id"
	FieldName     Field = "name"
	FieldCategory Field = "category"
	FieldDate     Field = "date"
	FieldScope    Field = "scope"
)

func (f Field) Valid() bool {
	switch f {
	case FieldID, FieldName, FieldCategory, FieldDate, FieldScope:
		return true
	default:
		return false
	}
}

type (
	// Filter is an equality match on one field.
	Filter struct {
		Field Field
		Value string
	}

	Order struct {
		Field Field
		Desc  bool
	}

	// Query describes a select. Filters are ANDed; a nil Order leaves rows in
	// insertion order.
	Query struct {
		Filters []Filter
		Order   *Order
	}
)

// ByDateDesc is the query used to load a session: every row, newest first.
func ByDateDesc() Query {
	return Query{Order: &Order{Field: FieldDate, Desc: true}}
}

// Where appends an equality filter.
func (q Query) Where(f Field, value string) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: f, Value: value})
	return q
}

func (q Query) validate() error {
	for _, f := range q.Filters {
		if !f.Field.Valid() {
			return ErrUnknownField
		}
	}
	if q.Order != nil && !q.Order.Field.Valid() {
		return ErrUnknownField
	}
	return nil
}

// Ports for outbound adapters.
type (
	Reader interface {
		Select(ctx context.Context, q Query) ([]core.Expense, error)
	}

	// Writer persists expenses. Insert assigns ids and returns the stored rows.
	Writer interface {
		Insert(ctx context.Context, rows ...core.Expense) ([]core.Expense, error)
		Update(ctx context.Context, e core.Expense) (core.Expense, error)
		Delete(ctx context.Context, id string) error
	}

	Store interface {
		Reader
		Writer
		Ping(ctx context.Context) error
		Close() error
	}
)
