package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khoroch/internal/core"
	"khoroch/internal/storage"
)

func seedStore() *storage.MemoryStore {
	return storage.NewMemoryStore(
		core.Expense{ID: "a", Name: "niloy", Category: "food", Date: "2024-05-01", Amount: core.Money{Cents: 100}, Scope: core.ScopeJoint},
		core.Expense{ID: "b", Name: "sejuti", Category: "rent", Date: "2024-05-03", Amount: core.Money{Cents: 900}, Scope: core.ScopeJoint},
	)
}

type countingReader struct {
	storage.Reader
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (c *countingReader) Select(ctx context.Context, q storage.Query) ([]core.Expense, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.Reader.Select(ctx, q)
}

func ids(es []core.Expense) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestStateLoadAndClear(t *testing.T) {
	s := NewState("s1", "niloy")
	assert.False(t, s.Loaded())

	require.NoError(t, s.Load(context.Background(), seedStore()))
	assert.True(t, s.Loaded())
	assert.Equal(t, []string{"b", "a"}, ids(s.Expenses()))

	got := s.Expenses()
	got[0].Category = "mutated"
	e, ok := s.Find("b")
	require.True(t, ok)
	assert.Equal(t, "rent", e.Category)

	s.Clear()
	assert.False(t, s.Loaded())
	assert.Empty(t, s.Expenses())
}

func TestStateApply(t *testing.T) {
	s := NewState("s1", "niloy")
	require.NoError(t, s.Load(context.Background(), seedStore()))

	s.Apply(Change{Op: OpInsert, Expense: core.Expense{ID: "c", Date: "2024-05-02"}})
	assert.Equal(t, []string{"b", "c", "a"}, ids(s.Expenses()))

	s.Apply(Change{Op: OpInsert, Expense: core.Expense{ID: "d", Date: "2024-06-01"}})
	s.Apply(Change{Op: OpInsert, Expense: core.Expense{ID: "e", Date: "2024-01-01"}})
	assert.Equal(t, []string{"d", "b", "c", "a", "e"}, ids(s.Expenses()))

	s.Apply(Change{Op: OpUpdate, Expense: core.Expense{ID: "e", Date: "2024-05-04", Category: "moved"}})
	assert.Equal(t, []string{"d", "e", "b", "c", "a"}, ids(s.Expenses()))

	s.Apply(Change{Op: OpDelete, Expense: core.Expense{ID: "b"}})
	assert.Equal(t, []string{"d", "e", "c", "a"}, ids(s.Expenses()))

	unloaded := NewState("s2", "sejuti")
	unloaded.Apply(Change{Op: OpInsert, Expense: core.Expense{ID: "x"}})
	assert.Empty(t, unloaded.Expenses())
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(seedStore(), time.Hour, 10)

	s, err := m.Start(ctx, "niloy")
	require.NoError(t, err)
	assert.Len(t, s.Expenses(), 2)
	assert.Equal(t, 1, m.Active())

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	m.End(s.ID())
	_, ok = m.Get(s.ID())
	assert.False(t, ok)
	assert.False(t, s.Loaded(), "ending a session clears its state")
	assert.ErrorIs(t, m.Refresh(ctx, s.ID()), ErrNoSession)
}

func TestManagerStartFailsWithoutSession(t *testing.T) {
	r := &countingReader{Reader: seedStore(), err: errors.New("store down")}
	m := NewManager(r, time.Hour, 10)
	_, err := m.Start(context.Background(), "niloy")
	require.Error(t, err)
	assert.Equal(t, 0, m.Active())
}

func TestManagerExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewManager(seedStore(), 30*time.Minute, 10, WithClock(clock))

	s, err := m.Start(context.Background(), "niloy")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	_, ok := m.Get(s.ID())
	require.True(t, ok, "activity renews the idle timer")

	now = now.Add(20 * time.Minute)
	_, ok = m.Get(s.ID())
	require.True(t, ok)

	now = now.Add(31 * time.Minute)
	assert.Equal(t, 1, m.Cache().CleanExpired())
	_, ok = m.Get(s.ID())
	assert.False(t, ok)
	assert.False(t, s.Loaded())
}

func TestManagerBroadcast(t *testing.T) {
	ctx := context.Background()
	m := NewManager(seedStore(), time.Hour, 10)
	a, err := m.Start(ctx, "niloy")
	require.NoError(t, err)
	b, err := m.Start(ctx, "sejuti")
	require.NoError(t, err)

	n := m.Broadcast(Change{Op: OpInsert, Expense: core.Expense{ID: "new", Date: "2024-05-10"}})
	assert.Equal(t, 2, n)
	assert.Equal(t, a.Expenses(), b.Expenses())
	assert.Equal(t, "new", a.Expenses()[0].ID)
}

func TestManagerRefreshSharesLoad(t *testing.T) {
	ctx := context.Background()
	r := &countingReader{Reader: seedStore()}
	m := NewManager(r, time.Hour, 10)
	s, err := m.Start(ctx, "niloy")
	require.NoError(t, err)
	require.Equal(t, int32(1), r.calls.Load())

	r.gate = make(chan struct{})
	var wg sync.WaitGroup
	started := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			assert.NoError(t, m.Refresh(ctx, s.ID()))
		}()
	}
	for i := 0; i < 5; i++ {
		<-started
	}
	// let the goroutines reach singleflight before releasing the read
	time.Sleep(50 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	assert.Less(t, r.calls.Load(), int32(6))
}

// pausingReader reads the store, then holds the result until released.
type pausingReader struct {
	storage.Reader
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingReader) Select(ctx context.Context, q storage.Query) ([]core.Expense, error) {
	rows, err := p.Reader.Select(ctx, q)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return rows, err
}

func TestManagerStartCatchesWriteDuringLoad(t *testing.T) {
	ctx := context.Background()
	store := seedStore()
	r := &pausingReader{Reader: store, read: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(r, time.Hour, 10)

	type result struct {
		s   *State
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := m.Start(ctx, "niloy")
		done <- result{s, err}
	}()

	<-r.read
	rows, err := store.Insert(ctx, core.Expense{Name: "sejuti", Category: "fuel", Date: "2024-05-10", Amount: core.Money{Cents: 50}, Scope: core.ScopeJoint})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Broadcast(Change{Op: OpInsert, Expense: rows[0]}))
	close(r.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []string{rows[0].ID, "b", "a"}, ids(res.s.Expenses()))
}

func TestStateApplyInsertIsIdempotent(t *testing.T) {
	s := NewState("s1", "niloy")
	require.NoError(t, s.Load(context.Background(), seedStore()))
	e := core.Expense{ID: "c", Date: "2024-05-02"}
	s.Apply(Change{Op: OpInsert, Expense: e})
	s.Apply(Change{Op: OpInsert, Expense: e})
	assert.Equal(t, []string{"b", "c", "a"}, ids(s.Expenses()))
}
