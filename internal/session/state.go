// Package session holds per-login application state: who is logged in and
// the expenses loaded for them.
package session

import (
	"context"
	"fmt"
	"sync"

	"khoroch/internal/core"
	"khoroch/internal/storage"
)

// Op is the kind of acknowledged write carried by a Change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is a write the record store has acknowledged.
type Change struct {
	Op      Op
	Expense core.Expense
}

// State is one login's view of the data. Expenses are kept ordered by date,
// newest first, matching the store read.
type State struct {
	id   string
	user string

	mu       sync.RWMutex
	expenses []core.Expense
	loaded   bool
}

func NewState(id, user string) *State {
	return &State{id: id, user: user}
}

func (s *State) ID() string   { return s.id }
func (s *State) User() string { return s.user }

// Load replaces the cached expenses with a fresh read from src.
func (s *State) Load(ctx context.Context, src storage.Reader) error {
	rows, err := src.Select(ctx, storage.ByDateDesc())
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	s.mu.Lock()
	s.expenses = rows
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Clear drops the cached expenses.
func (s *State) Clear() {
	s.mu.Lock()
	s.expenses = nil
	s.loaded = false
	s.mu.Unlock()
}

// Loaded reports whether Load has succeeded since the last Clear.
func (s *State) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Expenses returns a copy of the cached collection.
func (s *State) Expenses() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Expense(nil), s.expenses...)
}

// Find returns the cached expense with the given id.
func (s *State) Find(id string) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}

// Apply folds an acknowledged write into the cache. States that were never
// loaded ignore changes; their next Load picks them up.
func (s *State) Apply(ch Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return
	}
	switch ch.Op {
	case OpInsert, OpUpdate:
		s.remove(ch.Expense.ID)
		s.insertSorted(ch.Expense)
	case OpDelete:
		s.remove(ch.Expense.ID)
	}
}

func (s *State) insertSorted(e core.Expense) {
	i := len(s.expenses)
	for j, cur := range s.expenses {
		if cur.Date < e.Date {
			i = j
			break
		}
	}
	s.expenses = append(s.expenses, core.Expense{})
	copy(s.expenses[i+1:], s.expenses[i:])
	s.expenses[i] = e
}

func (s *State) remove(id string) {
	for i, e := range s.expenses {
		if e.ID == id {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			return
		}
	}
}
