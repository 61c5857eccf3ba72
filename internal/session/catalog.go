package session

import (
	"context"
	"time"

	"bmai-api/internal/domain"

	"golang.org/x/sync/singleflight"
)

// CatalogSource lists the active (non-archived) building catalog.
type CatalogSource interface {
	ListActive(ctx context.Context) ([]domain.Building, error)
}

// SharedCatalog de-duplicates concurrent catalog fetches across sessions.
// Callers that arrive while a fetch is running share its result.
type SharedCatalog struct {
	source CatalogSource
	group  singleflight.Group
}

func NewSharedCatalog(source CatalogSource) *SharedCatalog {
	return &SharedCatalog{source: source}
}

const (
	activeCatalogKey = "buildings:active"
	catalogTimeout   = 15 * time.Second
)

// ListActive returns a private copy of the active catalog. The shared fetch
// is detached from ctx so one caller giving up does not fail the others;
// ctx only bounds how long this caller waits.
func (c *SharedCatalog) ListActive(ctx context.Context) ([]domain.Building, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(activeCatalogKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(fetchCtx, catalogTimeout)
		defer cancel()
		return c.source.ListActive(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, domain.NewFetchError("list buildings", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			if fe, ok := domain.IsFetchError(res.Err); ok {
				return nil, fe
			}
			return nil, domain.NewFetchError("list buildings", res.Err)
		}
		shared := res.Val.([]domain.Building)
		out := make([]domain.Building, len(shared))
		copy(out, shared)
		return out, nil
	}
}
