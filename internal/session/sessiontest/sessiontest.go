// Package sessiontest provides in-memory backing stores for tests of code
// that depends on session.Manager.
package sessiontest

import (
	"context"
	"sync"

	"bmai-api/internal/domain"
	"bmai-api/internal/session"
)

// Principals is an in-memory session.PrincipalSource.
type Principals struct {
	mu         sync.Mutex
	principals map[string]*domain.Principal
	err        error
}

// NewPrincipals returns a source holding principals keyed by ID.
func NewPrincipals(principals ...*domain.Principal) *Principals {
	p := &Principals{principals: make(map[string]*domain.Principal)}
	for _, pr := range principals {
		p.principals[pr.ID] = pr
	}
	return p
}

// Set adds or replaces a principal.
func (p *Principals) Set(pr *domain.Principal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.principals[pr.ID] = pr
}

// FailWith makes every lookup return err; nil restores normal behavior.
func (p *Principals) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// GetPrincipal implements session.PrincipalSource.
func (p *Principals) GetPrincipal(_ context.Context, id string) (*domain.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	pr, ok := p.principals[id]
	if !ok {
		return nil, domain.ErrProfileMissing
	}
	cp := *pr
	return &cp, nil
}

// Catalog is an in-memory session.CatalogSource.
type Catalog struct {
	mu        sync.Mutex
	buildings []domain.Building
	err       error
}

// NewCatalog returns a catalog holding buildings.
func NewCatalog(buildings ...domain.Building) *Catalog {
	return &Catalog{buildings: buildings}
}

// SetBuildings replaces the catalog contents.
func (c *Catalog) SetBuildings(buildings ...domain.Building) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buildings = buildings
}

// FailWith makes every listing return err; nil restores normal behavior.
func (c *Catalog) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// ListActive implements session.CatalogSource.
func (c *Catalog) ListActive(context.Context) ([]domain.Building, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]domain.Building, len(c.buildings))
	copy(out, c.buildings)
	return out, nil
}

// NewManager wires a session.Manager over principals and catalog without a
// selection store.
func NewManager(principals *Principals, catalog *Catalog) *session.Manager {
	return session.NewManager(session.Deps{
		Resolver: session.NewResolver(principals, nil),
		Catalog:  catalog,
	}, session.ManagerConfig{})
}
