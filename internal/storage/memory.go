package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"khoroch/internal/core"
)

// MemoryStore is an in-process Store used for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items []core.Expense
}

func NewMemoryStore(seed ...core.Expense) *MemoryStore {
	s := &MemoryStore{}
	for _, e := range seed {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.items = append(s.items, e)
	}
	return s
}

// NewMemoryStoreFromFile seeds the store from a pipe-separated file with one
// expense per line: name|category|date|amount|scope. Blank lines and lines
// starting with # are ignored, as are lines that do not parse. A missing file
// yields an empty store.
func NewMemoryStoreFromFile(path string) *MemoryStore {
	var seed []core.Expense
	for _, line := range readLines(path) {
		parts := strings.Split(line, "|")
		if len(parts) < 4 {
			continue
		}
		amount, err := core.ParseAmount(parts[3])
		if err != nil {
			continue
		}
		e := core.Expense{
			Name:     strings.TrimSpace(parts[0]),
			Category: strings.TrimSpace(parts[1]),
			Date:     strings.TrimSpace(parts[2]),
			Amount:   amount,
		}
		if len(parts) > 4 {
			e.Scope = core.Scope(parts[4])
		}
		e.Scope = e.Scope.Normalize()
		seed = append(seed, e)
	}
	return NewMemoryStore(seed...)
}

// Select implements Reader.
func (s *MemoryStore) Select(_ context.Context, q Query) ([]core.Expense, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if matches(e, q.Filters) {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	if q.Order != nil {
		field := q.Order.Field
		desc := q.Order.Desc
		sort.SliceStable(out, func(i, j int) bool {
			a, b := fieldValue(out[i], field), fieldValue(out[j], field)
			if desc {
				return a > b
			}
			return a < b
		})
	}
	return out, nil
}

// Insert implements Writer.
func (s *MemoryStore) Insert(_ context.Context, rows ...core.Expense) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(rows))
	for _, e := range rows {
		if err := e.Amount.Validate(); err != nil {
			return nil, err
		}
		e.ID = uuid.NewString()
		out = append(out, e)
	}
	s.items = append(s.items, out...)
	return out, nil
}

// Update implements Writer.
func (s *MemoryStore) Update(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == e.ID {
			s.items[i] = e
			return e, nil
		}
	}
	return core.Expense{}, ErrNotFound
}

// Delete implements Writer.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored expenses.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func matches(e core.Expense, filters []Filter) bool {
	for _, f := range filters {
		if fieldValue(e, f.Field) != f.Value {
			return false
		}
	}
	return true
}

func fieldValue(e core.Expense, f Field) string {
	switch f {
	case FieldID:
		return e.ID
	case FieldName:
		return e.Name
	case FieldCategory:
		return e.Category
	case FieldDate:
		return e.Date
	case FieldScope:
		return string(e.Scope)
	default:
		panic(fmt.Sprintf("storage: unchecked field %q", f))
	}
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
