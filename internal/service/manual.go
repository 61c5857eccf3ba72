package service

import (
	"context"
	"errors"

	"bmai-api/internal/domain"
	"bmai-api/internal/observability/logger"

	"go.uber.org/zap"
)

// AccessScope is the caller as seen by building-scoped services.
// Implemented by *session.Session.
type AccessScope interface {
	Principal() *domain.Principal
	CanAccess(buildingID string) bool
}

// ManualStore is the manual persistence used by ManualService.
type ManualStore interface {
	ListByBuilding(ctx context.Context, buildingID string, params domain.ListManualsParams) ([]domain.Manual, error)
	Get(ctx context.Context, manualID string) (*domain.Manual, error)
	ListSections(ctx context.Context, manualID string, parentID *string) ([]domain.ManualSection, error)
	SearchKeyword(ctx context.Context, params domain.SearchParams) ([]domain.SearchResult, error)
	LogSearch(ctx context.Context, entry domain.SearchLogEntry) error
}

// ManualService reads manuals, their sections and content for the buildings
// in the caller's accessible set.
type ManualService struct {
	store ManualStore
	log   *logger.Logger
}

func NewManualService(store ManualStore, log *logger.Logger) *ManualService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ManualService{store: store, log: log}
}

func requireAccess(scope AccessScope, buildingID string) error {
	if scope == nil || !scope.CanAccess(buildingID) {
		return domain.ErrNotAccessible
	}
	return nil
}

// readErr turns a store failure into a retryable fetch error. Domain
// sentinels and cancellation pass through unchanged.
func readErr(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrManualNotFound),
		errors.Is(err, domain.ErrServiceRequestNotFound),
		errors.Is(err, context.Canceled):
		return err
	}
	if _, ok := domain.IsFetchError(err); ok {
		return err
	}
	return domain.NewFetchError(op, err)
}

// ListManuals returns the active manuals of an accessible building.
func (s *ManualService) ListManuals(ctx context.Context, scope AccessScope, buildingID string, params domain.ListManualsParams) ([]domain.Manual, error) {
	if err := requireAccess(scope, buildingID); err != nil {
		return nil, err
	}

	manuals, err := s.store.ListByBuilding(ctx, buildingID, params)
	if err != nil {
		return nil, readErr("list manuals", err)
	}
	return manuals, nil
}

// ListSections returns one level of a manual's table of contents: the
// top level when parentID is nil. Manuals of inaccessible buildings are
// reported as not found.
func (s *ManualService) ListSections(ctx context.Context, scope AccessScope, manualID string, parentID *string) ([]domain.ManualSection, error) {
	manual, err := s.store.Get(ctx, manualID)
	if err != nil {
		return nil, readErr("get manual", err)
	}
	if requireAccess(scope, manual.BuildingID) != nil {
		return nil, domain.ErrManualNotFound
	}

	sections, err := s.store.ListSections(ctx, manualID, parentID)
	if err != nil {
		return nil, readErr("list manual sections", err)
	}
	return sections, nil
}

// Search runs a keyword search over an accessible building's manuals and
// records it in the search log. params must be validated. Log failures are
// not returned.
func (s *ManualService) Search(ctx context.Context, scope AccessScope, params domain.SearchParams) ([]domain.SearchResult, error) {
	if err := requireAccess(scope, params.BuildingID); err != nil {
		return nil, err
	}

	results, err := s.store.SearchKeyword(ctx, params)
	if err != nil {
		return nil, readErr("search manuals", err)
	}

	entry := domain.SearchLogEntry{
		Query:           params.Query,
		BuildingID:      params.BuildingID,
		ResultsReturned: len(results),
	}
	if p := scope.Principal(); p != nil {
		entry.UserID = p.ID
	}
	if err := s.store.LogSearch(ctx, entry); err != nil {
		s.log.Warn(ctx, "failed to record search",
			logger.Module("manuals"),
			logger.Action("search"),
			zap.String("building_id", params.BuildingID),
			zap.Error(err),
		)
	}

	return results, nil
}
