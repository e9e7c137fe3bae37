package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apeckham/streamlit-assemblyai/internal/metrics"
)

// Reasons a session is removed
const (
	RemovedExpired = "expired"
	RemovedReset   = "reset"
)

// entry holds one browser session. Its mutex serialises the actions of a
// single user so a transcription is never started twice for one click.
type entry struct {
	mu           sync.Mutex
	state        State
	createdAt    time.Time
	lastActivity time.Time
}

// Store keeps session State per browser session and removes idle sessions
type Store struct {
	sessions map[string]*entry
	mu       sync.Mutex
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	interval time.Duration

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// StoreConfig contains Store configuration
type StoreConfig struct {
	IdleTimeout   time.Duration
	CheckInterval time.Duration
}

// NewStore creates a session store and starts its cleanup routine
func NewStore(logger *slog.Logger, m *metrics.Metrics, cfg StoreConfig) *Store {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &Store{
		sessions: make(map[string]*entry),
		logger:   logger,
		metrics:  m,
		timeout:  cfg.IdleTimeout,
		interval: cfg.CheckInterval,
		ctx:      ctx,
		cancel:   cancel,
		cleanup:  make(chan struct{}),
	}

	go st.startCleanupRoutine()

	return st
}

// NewID returns a fresh session identifier
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape of an identifier from NewID
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// acquire returns the entry for id, creating it when absent
func (st *Store) acquire(id string) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.sessions[id]
	if !ok {
		now := time.Now()
		e = &entry{createdAt: now, lastActivity: now}
		st.sessions[id] = e

		st.metrics.RecordSessionCreated()
		st.metrics.SetActiveSessions(len(st.sessions))
		st.logger.Debug("Session created", slog.String("session_id", id))
	}
	return e
}

// Get returns the state for id, creating an empty session when absent
func (st *Store) Get(id string) State {
	e := st.acquire(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActivity = time.Now()
	return e.state
}

// Update runs fn with the session's current state and stores what it
// returns. Calls for the same id run one at a time.
func (st *Store) Update(id string, fn func(State) State) State {
	e := st.acquire(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = fn(e.state)
	e.lastActivity = time.Now()

	st.mu.Lock()
	if _, ok := st.sessions[id]; !ok {
		// expired while fn was running; keep the fresh result
		st.sessions[id] = e
		st.metrics.SetActiveSessions(len(st.sessions))
	}
	st.mu.Unlock()

	return e.state
}

// Remove deletes a session
func (st *Store) Remove(id string) bool {
	return st.remove(id, RemovedReset)
}

func (st *Store) remove(id, reason string) bool {
	st.mu.Lock()
	e, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
		st.metrics.SetActiveSessions(len(st.sessions))
	}
	st.mu.Unlock()

	if !ok {
		return false
	}

	lifetime := time.Since(e.createdAt)
	st.metrics.RecordSessionRemoved(reason, lifetime.Seconds())
	st.logger.Debug("Session removed",
		slog.String("session_id", id),
		slog.String("reason", reason),
		slog.Duration("lifetime", lifetime),
	)
	return true
}

// Count returns the number of live sessions
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Stop stops the cleanup routine
func (st *Store) Stop() {
	st.logger.Info("Stopping session store...")

	st.cancel()
	<-st.cleanup

	st.logger.Info("Session store stopped",
		slog.Int("remaining_sessions", st.Count()),
	)
}

// startCleanupRoutine runs in a separate goroutine to remove idle sessions
func (st *Store) startCleanupRoutine() {
	defer close(st.cleanup)

	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	st.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", st.timeout),
		slog.Duration("check_interval", st.interval),
	)

	for {
		select {
		case <-st.ctx.Done():
			st.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			st.cleanupExpiredSessions(time.Now())
		}
	}
}

// cleanupExpiredSessions removes sessions inactive for longer than the timeout.
// Sessions with an action in progress are skipped.
func (st *Store) cleanupExpiredSessions(now time.Time) int {
	expired := make([]string, 0)

	st.mu.Lock()
	for id, e := range st.sessions {
		if !e.mu.TryLock() {
			continue
		}
		idle := now.Sub(e.lastActivity)
		e.mu.Unlock()

		if idle > st.timeout {
			expired = append(expired, id)
		}
	}
	st.mu.Unlock()

	if len(expired) > 0 {
		st.logger.Info("Cleaning up expired sessions",
			slog.Int("expired_count", len(expired)),
		)

		for _, id := range expired {
			st.remove(id, RemovedExpired)
		}
	}

	return len(expired)
}
