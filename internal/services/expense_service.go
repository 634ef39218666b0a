package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"khoroch/internal/amqp"
	"khoroch/internal/core"
	applog "khoroch/internal/log"
	"khoroch/internal/session"
	"khoroch/internal/storage"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("only the owner may change this expense")
)

type (
	// Broadcaster pushes acknowledged writes into live sessions.
	Broadcaster interface {
		Broadcast(ch session.Change) int
	}

	// EventPublisher announces acknowledged writes to other processes.
	EventPublisher interface {
		PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
	}

	// WriteObserver counts store writes by operation and outcome.
	WriteObserver interface {
		ObserveWrite(op, result string)
	}
)

// ExpenseInput is what a user may set on an expense. The owner is always the
// acting user.
type ExpenseInput struct {
	Category string
	Amount   core.Money
	Date     string
	Scope    core.Scope
}

func (in ExpenseInput) toExpense(id, owner string) core.Expense {
	return core.Expense{
		ID:       id,
		Name:     owner,
		Category: strings.TrimSpace(in.Category),
		Date:     strings.TrimSpace(in.Date),
		Amount:   in.Amount,
		Scope:    in.Scope.Normalize(),
	}
}

// ExpenseService orchestrates writes: validate, store, update sessions, then
// publish. A publish failure is logged and does not fail the write.
type ExpenseService struct {
	store     storage.Store
	sessions  Broadcaster
	publisher EventPublisher
	observer  WriteObserver
	logger    *slog.Logger
}

type Option func(*ExpenseService)

func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithObserver(o WriteObserver) Option {
	return func(s *ExpenseService) { s.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ExpenseService) { s.logger = l }
}

func NewExpenseService(store storage.Store, sessions Broadcaster, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		store:    store,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new expense owned by actor.
func (s *ExpenseService) Create(ctx context.Context, actor string, in ExpenseInput) (core.Expense, error) {
	e := in.toExpense("", actor)
	if err := e.Validate(); err != nil {
		s.observe("create", "invalid")
		return core.Expense{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	rows, err := s.store.Insert(ctx, e)
	if err != nil {
		s.observe("create", "error")
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	if len(rows) != 1 {
		s.observe("create", "error")
		return core.Expense{}, fmt.Errorf("save expense: store returned %d rows", len(rows))
	}
	saved := rows[0]
	s.observe("create", "ok")

	s.acknowledged(ctx, session.OpInsert, amqp.EventCreated, saved, actor)
	return saved, nil
}

// Update replaces every field of an expense owned by actor.
func (s *ExpenseService) Update(ctx context.Context, actor, id string, in ExpenseInput) (core.Expense, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		s.observe("update", resultOf(err))
		return core.Expense{}, err
	}

	e := in.toExpense(id, actor)
	if err := e.Validate(); err != nil {
		s.observe("update", "invalid")
		return core.Expense{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	saved, err := s.store.Update(ctx, e)
	if err != nil {
		s.observe("update", resultOf(err))
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.observe("update", "ok")

	s.acknowledged(ctx, session.OpUpdate, amqp.EventUpdated, saved, actor)
	return saved, nil
}

// Delete removes an expense owned by actor.
func (s *ExpenseService) Delete(ctx context.Context, actor, id string) error {
	existing, err := s.owned(ctx, actor, id)
	if err != nil {
		s.observe("delete", resultOf(err))
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.observe("delete", resultOf(err))
		return fmt.Errorf("delete expense: %w", err)
	}
	s.observe("delete", "ok")

	s.acknowledged(ctx, session.OpDelete, amqp.EventDeleted, existing, actor)
	return nil
}

// Get reads one expense from the store.
func (s *ExpenseService) Get(ctx context.Context, id string) (core.Expense, error) {
	rows, err := s.store.Select(ctx, storage.Query{}.Where(storage.FieldID, id))
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	if len(rows) == 0 {
		return core.Expense{}, storage.ErrNotFound
	}
	return rows[0], nil
}

func (s *ExpenseService) owned(ctx context.Context, actor, id string) (core.Expense, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if e.Name != actor {
		return core.Expense{}, ErrForbidden
	}
	return e, nil
}

func (s *ExpenseService) acknowledged(ctx context.Context, op session.Op, evType amqp.EventType, e core.Expense, actor string) {
	if s.sessions != nil {
		n := s.sessions.Broadcast(session.Change{Op: op, Expense: e})
		s.logger.DebugContext(ctx, "Change applied to sessions", "operation", op, "expense_id", e.ID, "sessions", n)
	}

	// The request logger, when present, ties the write to its request id.
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogExpenseWritten(ctx, string(op), actor, e.ID, e.Category, e.Date, string(e.Scope), e.Amount.Cents)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(evType, e, actor)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			"event_type", evType, "expense_id", e.ID, "error", err)
	}
}

func (s *ExpenseService) observe(op, result string) {
	if s.observer != nil {
		s.observer.ObserveWrite(op, result)
	}
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

// Close releases the store.
func (s *ExpenseService) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close expense service: %w", err)
		}
	}
	return nil
}
