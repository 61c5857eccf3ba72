package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"bmai-api/internal/domain"
	"bmai-api/internal/observability/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ManagerConfig tunes session lifetime and refresh fan-out.
type ManagerConfig struct {
	// IdleTimeout evicts sessions unused for longer; zero disables eviction.
	IdleTimeout time.Duration
	// RefreshWorkers bounds concurrent refreshes in InvalidateAll.
	RefreshWorkers int
}

// Manager is the registry of live sessions keyed by principal id.
type Manager struct {
	deps Deps
	cfg  ManagerConfig
	log  *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty registry. deps are shared by every session it
// opens.
func NewManager(deps Deps, cfg ManagerConfig) *Manager {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.RefreshWorkers <= 0 {
		cfg.RefreshWorkers = 4
	}
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		log:      deps.Log,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the session of principalID, opening and loading it when
// needed.
//
// Fatal errors (domain.ErrNotAuthenticated, domain.ErrProfileMissing) leave no
// session behind. A *domain.FetchError returns the session together with the
// error; the session keeps whatever state it had.
func (m *Manager) Acquire(ctx context.Context, principalID string) (*Session, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, domain.ErrNotAuthenticated
	}

	m.mu.Lock()
	s, ok := m.sessions[principalID]
	if !ok {
		s = New(principalID, m.deps)
		m.sessions[principalID] = s
		m.deps.Observer.SessionsOpen(len(m.sessions))
		m.log.Info(ctx, "session opened",
			logger.Module("session"),
			logger.Action("acquire"),
			zap.String("principal_id", principalID),
		)
	}
	m.mu.Unlock()

	s.touch()
	if s.Loaded() {
		return s, nil
	}

	err := s.Refresh(ctx)
	if err == nil {
		return s, nil
	}
	if IsFatal(err) {
		m.drop(principalID, s)
		return nil, err
	}
	return s, err
}

// Get returns the live session of principalID without loading it.
func (m *Manager) Get(principalID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[principalID]
	return s, ok
}

// Invalidate refreshes the session of principalID if one is open, after its
// role or scope changed. A fatal result drops the session.
func (m *Manager) Invalidate(ctx context.Context, principalID string) error {
	s, ok := m.Get(principalID)
	if !ok {
		return nil
	}

	err := s.Refresh(ctx)
	if err != nil && IsFatal(err) {
		m.drop(principalID, s)
		if errors.Is(err, ErrSessionClosed) {
			return nil
		}
	}
	return err
}

// InvalidateAll refreshes every open session after a catalog change, with at
// most RefreshWorkers refreshes running at once. Every session is attempted;
// the returned error joins the individual failures.
func (m *Manager) InvalidateAll(ctx context.Context) error {
	m.mu.Lock()
	snapshot := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		snapshot[id] = s
	}
	m.mu.Unlock()

	var (
		g      errgroup.Group
		errMu  sync.Mutex
		failed []error
	)
	g.SetLimit(m.cfg.RefreshWorkers)

	for id, s := range snapshot {
		g.Go(func() error {
			err := s.Refresh(ctx)
			if err == nil {
				return nil
			}
			if IsFatal(err) {
				m.drop(id, s)
				if errors.Is(err, ErrSessionClosed) {
					return nil
				}
			}
			errMu.Lock()
			failed = append(failed, err)
			errMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.log.Info(ctx, "sessions invalidated",
		logger.Module("session"),
		logger.Action("invalidate_all"),
		zap.Int("sessions", len(snapshot)),
		zap.Int("failed", len(failed)),
	)
	return errors.Join(failed...)
}

// Close signs principalID out. It is a no-op without an open session.
func (m *Manager) Close(principalID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[principalID]
	if ok {
		delete(m.sessions, principalID)
		m.deps.Observer.SessionsOpen(len(m.sessions))
	}
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Sweep closes sessions idle for longer than IdleTimeout at now and returns
// how many were evicted.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.cfg.IdleTimeout {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	if len(expired) > 0 {
		m.deps.Observer.SessionsOpen(len(m.sessions))
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// CloseAll signs every session out; used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.deps.Observer.SessionsOpen(0)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// drop removes s if it is still the registered session of principalID.
func (m *Manager) drop(principalID string, s *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[principalID]; ok && cur == s {
		delete(m.sessions, principalID)
		m.deps.Observer.SessionsOpen(len(m.sessions))
	}
	m.mu.Unlock()
	s.Close()
}
