package memory

import (
	"context"
	"sync"

	"khoroch/internal/core"
	"khoroch/internal/sheets"
)

var (
	_ sheets.Mirror = (*Mirror)(nil)
	_ sheets.Lister = (*Mirror)(nil)
)

// Mirror keeps rows in memory in sheet order.
type Mirror struct {
	mu   sync.Mutex
	rows []core.Expense
}

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Upsert(_ context.Context, e core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(e.ID); i >= 0 {
		m.rows[i] = e
		return nil
	}
	m.rows = append(m.rows, e)
	return nil
}

func (m *Mirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		m.rows = append(m.rows[:i], m.rows[i+1:]...)
	}
	return nil
}

func (m *Mirror) ReplaceAll(_ context.Context, es []core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append([]core.Expense(nil), es...)
	return nil
}

// Rows returns a copy of the mirrored rows.
func (m *Mirror) Rows(context.Context) ([]core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Expense(nil), m.rows...), nil
}

func (m *Mirror) indexOf(id string) int {
	for i, e := range m.rows {
		if e.ID == id {
			return i
		}
	}
	return -1
}
