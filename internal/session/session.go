package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"bmai-api/internal/domain"
	"bmai-api/internal/observability/logger"

	"go.uber.org/zap"
)

// ErrSessionClosed is returned by operations on a signed-out session. A
// refresh that was in flight at sign-out returns it and its result is dropped.
var ErrSessionClosed = errors.New("session closed")

// AccessibleView is the read model of the accessible building set.
type AccessibleView struct {
	Buildings []domain.Building
	Loading   bool
	Err       error
}

// SelectionView is the read model of the active building.
type SelectionView struct {
	Selected *domain.Building
	Loading  bool
	Err      error
}

// Session owns the (accessible set, selection) pair of one principal.
// All mutation goes through Refresh, Select and Close.
type Session struct {
	principalID string
	resolver    *Resolver
	catalog     CatalogSource
	store       SelectionStore
	observer    Observer
	log         *logger.Logger
	now         func() time.Time

	mu          sync.Mutex
	principal   *domain.Principal
	selector    *domain.Selector
	loaded      bool
	err         error
	closed      bool
	inflight    *refreshCall
	lastUsed    time.Time

	// persistedID is the id the store holds; storeStale marks a restored id
	// that was refused, so the next persist must overwrite or clear it.
	persistedID string
	storeStale  bool
}

// refreshTimeout bounds a refresh, which runs detached from the caller.
const refreshTimeout = 30 * time.Second

// refreshCall is the refresh currently running; late callers wait on done.
type refreshCall struct {
	done    chan struct{}
	err     error
	waiters int
}

// Deps are the collaborators of a Session.
type Deps struct {
	Resolver *Resolver
	Catalog  CatalogSource
	Store    SelectionStore // optional
	Observer Observer       // optional
	Log      *logger.Logger // optional
	Now      func() time.Time
}

// New creates an Unselected session for principalID. Call Refresh to load it.
func New(principalID string, deps Deps) *Session {
	s := &Session{
		principalID: principalID,
		resolver:    deps.Resolver,
		catalog:     deps.Catalog,
		store:       deps.Store,
		observer:    deps.Observer,
		log:         deps.Log,
		now:         deps.Now,
		selector:    domain.NewSelector(),
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.lastUsed = s.now()
	return s
}

// PrincipalID returns the identity this session belongs to.
func (s *Session) PrincipalID() string {
	return s.principalID
}

// Principal returns the last resolved principal, or nil before the first
// successful refresh.
func (s *Session) Principal() *domain.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// Loaded reports whether at least one refresh succeeded.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Err returns the error of the last refresh, nil after a success.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Accessible returns the current accessible set view.
func (s *Session) Accessible() AccessibleView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AccessibleView{
		Buildings: s.selector.Accessible(),
		Loading:   s.inflight != nil,
		Err:       s.err,
	}
}

// Selection returns the current selection view.
func (s *Session) Selection() SelectionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SelectionView{Loading: s.inflight != nil, Err: s.err}
	if b, ok := s.selector.Selected(); ok {
		v.Selected = &b
	}
	return v
}

// CanAccess reports whether buildingID is in the current accessible set.
func (s *Session) CanAccess(buildingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.Contains(buildingID)
}

// Select makes buildingID the active building. It returns
// domain.ErrNotAccessible for ids outside the accessible set.
func (s *Session) Select(ctx context.Context, buildingID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastUsed = s.now()
	if err := s.selector.Select(buildingID); err != nil {
		s.mu.Unlock()
		s.log.Debug(ctx, "selection rejected",
			logger.Module("session"),
			logger.Action("select"),
			zap.String("building_id", buildingID),
		)
		return err
	}
	s.mu.Unlock()

	s.persistSelection(ctx)
	return nil
}

// Refresh re-resolves the principal, re-fetches the catalog and feeds the new
// accessible set into the selector.
//
// At most one refresh runs at a time; a call made while one is running waits
// for it and returns its result. The refresh itself is detached from ctx:
// a caller whose ctx ends stops waiting and gets ctx.Err(), while the refresh
// completes for everyone else. A *domain.FetchError keeps the previous set
// and selection. domain.ErrProfileMissing clears them.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastUsed = s.now()
	c := s.inflight
	if c != nil {
		c.waiters++
		s.mu.Unlock()
		s.observer.RefreshCoalesced()
	} else {
		c = &refreshCall{done: make(chan struct{})}
		s.inflight = c
		restore := !s.loaded && s.store != nil
		s.mu.Unlock()

		go s.finishRefresh(context.WithoutCancel(ctx), c, restore)
	}

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finishRefresh runs one refresh to completion and releases its waiters.
func (s *Session) finishRefresh(ctx context.Context, c *refreshCall, restore bool) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	err := s.runRefresh(ctx, restore)
	if err == nil {
		s.persistSelection(ctx)
	}

	s.mu.Lock()
	c.err = err
	s.inflight = nil
	close(c.done)
	s.mu.Unlock()
}

func (s *Session) runRefresh(ctx context.Context, restore bool) error {
	start := s.now()

	principal, err := s.resolver.ResolveSession(ctx, s.principalID)
	var catalog []domain.Building
	if err == nil {
		catalog, err = s.catalog.ListActive(ctx)
		if err != nil {
			if _, ok := domain.IsFetchError(err); !ok {
				err = domain.NewFetchError("list buildings", err)
			}
		}
	}

	var persisted string
	if err == nil && restore {
		persisted = s.loadPersisted(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.observer.RefreshCompleted(OutcomeDiscarded)
		s.log.Debug(ctx, "discarding refresh result for closed session",
			logger.Module("session"),
			logger.Action("refresh"),
		)
		return ErrSessionClosed
	}

	if err != nil {
		s.err = err
		switch {
		case errors.Is(err, domain.ErrProfileMissing):
			s.principal = nil
			s.selector.Reset()
			s.loaded = false
			s.observer.RefreshCompleted(OutcomeProfileMissing)
		case isFetchError(err):
			s.observer.RefreshCompleted(OutcomeFetchError)
			s.log.Warn(ctx, "refresh failed, keeping previous state",
				logger.Module("session"),
				logger.Action("refresh"),
				zap.Bool("has_previous", s.loaded),
				zap.Error(err),
			)
		default:
			s.observer.RefreshCompleted(OutcomeError)
		}
		return err
	}

	accessible := domain.ComputeAccessible(principal, catalog)
	s.principal = principal
	s.selector.OnAccessibleSetChanged(accessible)
	if persisted != "" {
		if s.selector.Select(persisted) == nil {
			s.persistedID = persisted
		} else {
			s.storeStale = true
		}
	}
	s.loaded = true
	s.err = nil
	s.observer.RefreshCompleted(OutcomeOK)

	selectedID := ""
	if b, ok := s.selector.Selected(); ok {
		selectedID = b.ID
	}
	s.log.Debug(ctx, "session refreshed",
		logger.Module("session"),
		logger.Action("refresh"),
		zap.String("role", principal.Role().String()),
		zap.Int("catalog_size", len(catalog)),
		zap.Int("accessible", len(accessible)),
		zap.String("selected_building_id", selectedID),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return nil
}

func (s *Session) loadPersisted(ctx context.Context) string {
	id, ok, err := s.store.Load(ctx, s.principalID)
	if err != nil {
		s.log.Warn(ctx, "failed to load persisted selection",
			logger.Module("session"),
			logger.Action("restore_selection"),
			zap.Error(err),
		)
		return ""
	}
	if !ok {
		return ""
	}
	return id
}

// persistSelection writes the current selection to the store when it changed.
// Store failures are logged and otherwise ignored.
func (s *Session) persistSelection(ctx context.Context) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	current := ""
	if b, ok := s.selector.Selected(); ok {
		current = b.ID
	}
	if current == s.persistedID && !s.storeStale {
		s.mu.Unlock()
		return
	}
	s.persistedID = current
	s.storeStale = false
	s.mu.Unlock()

	var err error
	if current == "" {
		err = s.store.Clear(ctx, s.principalID)
	} else {
		err = s.store.Save(ctx, s.principalID, current)
	}
	if err != nil {
		s.log.Warn(ctx, "failed to persist selection",
			logger.Module("session"),
			logger.Action("persist_selection"),
			zap.Error(err),
		)
	}
}

// Close signs the session out. The state is cleared and any refresh still in
// flight has its result discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.principal = nil
	s.selector.Reset()
	s.loaded = false
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.now()
	s.mu.Unlock()
}

// waiting returns how many callers are attached to the in-flight refresh.
func (s *Session) waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		return 0
	}
	return s.inflight.waiters
}

// IsFatal reports whether err ends the session rather than leaving stale state.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrNotAuthenticated) ||
		errors.Is(err, domain.ErrProfileMissing) ||
		errors.Is(err, ErrSessionClosed)
}

func isFetchError(err error) bool {
	_, ok := domain.IsFetchError(err)
	return ok
}
