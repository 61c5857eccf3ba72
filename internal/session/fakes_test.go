package session

import (
	"context"
	"sync"
	"time"

	"bmai-api/internal/domain"
)

type fakePrincipals struct {
	mu         sync.Mutex
	principals map[string]*domain.Principal
	err        error
	calls      int
}

func newFakePrincipals(ps ...*domain.Principal) *fakePrincipals {
	f := &fakePrincipals{principals: make(map[string]*domain.Principal)}
	for _, p := range ps {
		f.principals[p.ID] = p
	}
	return f
}

func (f *fakePrincipals) GetPrincipal(_ context.Context, id string) (*domain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.principals[id]
	if !ok {
		return nil, domain.ErrProfileMissing
	}
	return p, nil
}

func (f *fakePrincipals) set(p *domain.Principal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principals[p.ID] = p
}

func (f *fakePrincipals) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.principals, id)
}

func (f *fakePrincipals) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeCatalog struct {
	mu        sync.Mutex
	buildings []domain.Building
	err       error
	calls     int
	gate      chan struct{}
	started   chan struct{}
}

func newFakeCatalog(bs ...domain.Building) *fakeCatalog {
	return &fakeCatalog{buildings: bs}
}

func (f *fakeCatalog) ListActive(ctx context.Context) ([]domain.Building, error) {
	f.mu.Lock()
	f.calls++
	gate, started := f.gate, f.started
	out := make([]domain.Building, len(f.buildings))
	copy(out, f.buildings)
	err := f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// block makes the next fetches wait until release is called.
func (f *fakeCatalog) block() (started chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 16)
	gate := f.gate
	return f.started, func() {
		f.mu.Lock()
		f.gate = nil
		f.started = nil
		f.mu.Unlock()
		close(gate)
	}
}

func (f *fakeCatalog) setBuildings(bs ...domain.Building) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildings = bs
}

func (f *fakeCatalog) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Load(_ context.Context, principalID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	id, ok := m.data[principalID]
	return id, ok, nil
}

func (m *memoryStore) Save(_ context.Context, principalID, buildingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[principalID] = buildingID
	return nil
}

func (m *memoryStore) Clear(_ context.Context, principalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, principalID)
	return nil
}

func (m *memoryStore) get(principalID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.data[principalID]
	return id, ok
}

type countingObserver struct {
	mu        sync.Mutex
	outcomes  map[string]int
	coalesced int
	open      int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{outcomes: make(map[string]int)}
}

func (o *countingObserver) RefreshCompleted(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *countingObserver) RefreshCoalesced() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.coalesced++
}

func (o *countingObserver) SessionsOpen(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open = n
}

func (o *countingObserver) outcome(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[name]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func bld(id, name, region string) domain.Building {
	return domain.Building{ID: id, Name: name, Region: region, Status: domain.BuildingStatusOnline}
}

func admin(id string) *domain.Principal {
	return &domain.Principal{ID: id, Scope: domain.AdminScope{}}
}

func technician(id, region string) *domain.Principal {
	return &domain.Principal{ID: id, Scope: domain.TechnicianScope{Region: region}}
}

func client(id string, buildingIDs ...string) *domain.Principal {
	return &domain.Principal{ID: id, Scope: domain.ClientScope{BuildingIDs: buildingIDs}}
}

func selectedID(s *Session) string {
	v := s.Selection()
	if v.Selected == nil {
		return ""
	}
	return v.Selected.ID
}

func accessibleIDs(s *Session) []string {
	var out []string
	for _, b := range s.Accessible().Buildings {
		out = append(out, b.ID)
	}
	return out
}
