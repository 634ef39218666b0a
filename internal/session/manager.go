package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"khoroch/internal/cache"
	"khoroch/internal/storage"
)

var ErrNoSession = errors.New("session not found or expired")

// Manager owns every live State. Sessions idle for longer than the TTL
// expire; the oldest are dropped once MaxSessions is reached.
type Manager struct {
	src      storage.Reader
	sessions *cache.LRUCache[*State]
	loads    singleflight.Group
	logger   *slog.Logger

	// broadcasts counts Broadcast calls so Start can spot one that ran
	// while its session was loading but not yet registered.
	broadcasts atomic.Uint64
}

type ManagerOption func(*managerOptions)

type managerOptions struct {
	logger *slog.Logger
	clock  func() time.Time
}

func WithLogger(l *slog.Logger) ManagerOption {
	return func(o *managerOptions) { o.logger = l }
}

// WithClock overrides time.Now for expiry, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(o *managerOptions) { o.clock = now }
}

func NewManager(src storage.Reader, ttl time.Duration, maxSessions int, opts ...ManagerOption) *Manager {
	o := managerOptions{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	m := &Manager{src: src, logger: o.logger}
	m.sessions = cache.NewLRUCache[*State](maxSessions, ttl,
		cache.WithSlidingExpiry[*State](),
		cache.WithClock[*State](o.clock),
		cache.WithEvictHook(func(id string, s *State) {
			s.Clear()
			m.logger.Debug("Session ended", "session_id", id, "user", s.User())
		}),
	)
	return m
}

// Start creates a session for user and loads its expenses. A failed load
// leaves no session behind.
func (m *Manager) Start(ctx context.Context, user string) (*State, error) {
	s := NewState(uuid.NewString(), user)
	seen := m.broadcasts.Load()
	if err := s.Load(ctx, m.src); err != nil {
		return nil, err
	}
	m.sessions.Set(s.ID(), s)
	if m.broadcasts.Load() != seen {
		if err := s.Load(ctx, m.src); err != nil {
			m.sessions.Delete(s.ID())
			return nil, err
		}
	}
	m.logger.InfoContext(ctx, "Session started", "session_id", s.ID(), "user", user, "count", len(s.Expenses()))
	return s, nil
}

// Get returns the live session with id and renews its idle timer.
func (m *Manager) Get(id string) (*State, bool) {
	if id == "" {
		return nil, false
	}
	return m.sessions.Get(id)
}

// End clears and forgets the session. Unknown ids are ignored.
func (m *Manager) End(id string) {
	m.sessions.Delete(id)
}

// Refresh reloads a session from the store. Concurrent refreshes of the
// same session share one read.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrNoSession
	}
	_, err, _ := m.loads.Do(id, func() (any, error) {
		return nil, s.Load(ctx, m.src)
	})
	return err
}

// Broadcast applies an acknowledged change to every live session and
// returns how many received it.
func (m *Manager) Broadcast(ch Change) int {
	m.broadcasts.Add(1)
	n := 0
	m.sessions.Range(func(_ string, s *State) {
		s.Apply(ch)
		n++
	})
	return n
}

// Active returns the number of sessions currently held.
func (m *Manager) Active() int {
	return m.sessions.Size()
}

// Cache exposes the session store for the periodic expiry sweep.
func (m *Manager) Cache() cache.Cleaner {
	return m.sessions
}
