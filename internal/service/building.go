package service

import (
	"context"
	"fmt"

	"bmai-api/internal/domain"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/repo"

	"go.uber.org/zap"
)

// BuildingStore is the catalog persistence used by BuildingService.
type BuildingStore interface {
	List(ctx context.Context, params domain.ListBuildingsParams) ([]domain.Building, error)
	Get(ctx context.Context, buildingID string) (*domain.Building, error)
	Create(ctx context.Context, req *domain.CreateBuildingRequest) (*domain.Building, error)
	Update(ctx context.Context, buildingID string, req *domain.UpdateBuildingRequest) (*domain.Building, error)
	SetArchived(ctx context.Context, buildingID string, archived bool) (*domain.Building, error)
}

// BuildingService administers the building catalog. Every successful write
// re-derives all open sessions so accessible sets reflect the new catalog.
type BuildingService struct {
	store    BuildingStore
	audit    Auditor
	sessions Invalidator
	log      *logger.Logger
}

func NewBuildingService(store BuildingStore, audit Auditor, sessions Invalidator, log *logger.Logger) *BuildingService {
	if log == nil {
		log = logger.NewNop()
	}
	return &BuildingService{
		store:    store,
		audit:    audit,
		sessions: sessions,
		log:      log,
	}
}

// ListBuildings returns the full catalog, including buildings outside any
// scope. Admin only.
func (s *BuildingService) ListBuildings(ctx context.Context, actor *domain.Principal, params domain.ListBuildingsParams) ([]domain.Building, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	buildings, err := s.store.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	domain.SortByName(buildings)
	return buildings, nil
}

// GetBuilding returns one catalog entry. Admin only.
func (s *BuildingService) GetBuilding(ctx context.Context, actor *domain.Principal, buildingID string) (*domain.Building, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	building, err := s.store.Get(ctx, buildingID)
	if err != nil {
		return nil, fmt.Errorf("get building: %w", err)
	}
	return building, nil
}

// CreateBuilding inserts a validated building.
func (s *BuildingService) CreateBuilding(ctx context.Context, actor *domain.Principal, req *domain.CreateBuildingRequest) (*domain.Building, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	building, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create building: %w", err)
	}

	recordAudit(ctx, s.audit, s.log, repo.AuditEntry{
		ActorID:    actor.ID,
		Action:     repo.AuditBuildingCreated,
		EntityType: "building",
		EntityID:   building.ID,
		Metadata:   map[string]interface{}{"region": building.Region},
	})
	s.invalidateAll(ctx, "create_building")

	return building, nil
}

// UpdateBuilding applies a partial update.
func (s *BuildingService) UpdateBuilding(ctx context.Context, actor *domain.Principal, buildingID string, req *domain.UpdateBuildingRequest) (*domain.Building, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.IsEmpty() {
		return nil, ErrEmptyUpdate
	}

	building, err := s.store.Update(ctx, buildingID, req)
	if err != nil {
		return nil, fmt.Errorf("update building: %w", err)
	}

	metadata := map[string]interface{}{}
	if req.Region != nil {
		metadata["region"] = *req.Region
	}
	if req.Status != nil {
		metadata["status"] = string(*req.Status)
	}
	recordAudit(ctx, s.audit, s.log, repo.AuditEntry{
		ActorID:    actor.ID,
		Action:     repo.AuditBuildingUpdated,
		EntityType: "building",
		EntityID:   buildingID,
		Metadata:   metadata,
	})
	s.invalidateAll(ctx, "update_building")

	return building, nil
}

// ArchiveBuilding removes a building from every accessible set.
func (s *BuildingService) ArchiveBuilding(ctx context.Context, actor *domain.Principal, buildingID string) (*domain.Building, error) {
	return s.setArchived(ctx, actor, buildingID, true)
}

// RestoreBuilding returns an archived building to the catalog.
func (s *BuildingService) RestoreBuilding(ctx context.Context, actor *domain.Principal, buildingID string) (*domain.Building, error) {
	return s.setArchived(ctx, actor, buildingID, false)
}

func (s *BuildingService) setArchived(ctx context.Context, actor *domain.Principal, buildingID string, archived bool) (*domain.Building, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	building, err := s.store.SetArchived(ctx, buildingID, archived)
	if err != nil {
		return nil, fmt.Errorf("set building archived: %w", err)
	}

	action := repo.AuditBuildingArchived
	if !archived {
		action = repo.AuditBuildingRestored
	}
	recordAudit(ctx, s.audit, s.log, repo.AuditEntry{
		ActorID:    actor.ID,
		Action:     action,
		EntityType: "building",
		EntityID:   buildingID,
	})
	s.invalidateAll(ctx, action)

	return building, nil
}

// invalidateAll refreshes every open session. The write already committed,
// so failures are logged and sessions converge on their next refresh.
func (s *BuildingService) invalidateAll(ctx context.Context, action string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.InvalidateAll(ctx); err != nil {
		s.log.Warn(ctx, "session invalidation incomplete",
			logger.Module("building"),
			logger.Action(action),
			zap.Error(err),
		)
	}
}
