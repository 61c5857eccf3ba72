package service

import (
	"context"
	"fmt"

	"bmai-api/internal/domain"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/repo"

	"go.uber.org/zap"
)

// ServiceRequestStore is the persistence used by ServiceRequestService.
type ServiceRequestStore interface {
	ListByBuilding(ctx context.Context, buildingID string, params domain.ListServiceRequestsParams) ([]domain.ServiceRequest, error)
	Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error)
	Create(ctx context.Context, buildingID, createdBy string, req *domain.CreateServiceRequestRequest) (*domain.ServiceRequest, error)
	UpdateStatus(ctx context.Context, requestID, actorID string, from domain.ServiceRequestStatus, req *domain.UpdateServiceRequestStatusRequest) (*domain.ServiceRequest, error)
	Deactivate(ctx context.Context, requestID string) error
	ListComments(ctx context.Context, requestID string) ([]domain.ServiceRequestComment, error)
	AddComment(ctx context.Context, requestID, userID, text string) (*domain.ServiceRequestComment, error)
}

// ServiceRequestService manages the service requests of the buildings in the
// caller's accessible set. Requests of other buildings are reported as not
// found.
type ServiceRequestService struct {
	store ServiceRequestStore
	audit Auditor
	log   *logger.Logger
}

func NewServiceRequestService(store ServiceRequestStore, audit Auditor, log *logger.Logger) *ServiceRequestService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ServiceRequestService{store: store, audit: audit, log: log}
}

func actorOf(scope AccessScope) (*domain.Principal, error) {
	if scope == nil {
		return nil, domain.ErrNotAuthenticated
	}
	p := scope.Principal()
	if p == nil {
		return nil, domain.ErrProfileMissing
	}
	return p, nil
}

// List returns the active requests of an accessible building.
func (s *ServiceRequestService) List(ctx context.Context, scope AccessScope, buildingID string, params domain.ListServiceRequestsParams) ([]domain.ServiceRequest, error) {
	if err := requireAccess(scope, buildingID); err != nil {
		return nil, err
	}

	requests, err := s.store.ListByBuilding(ctx, buildingID, params)
	if err != nil {
		return nil, readErr("list service requests", err)
	}
	return requests, nil
}

// Get returns one request of an accessible building.
func (s *ServiceRequestService) Get(ctx context.Context, scope AccessScope, requestID string) (*domain.ServiceRequest, error) {
	sr, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, readErr("get service request", err)
	}
	if requireAccess(scope, sr.BuildingID) != nil {
		return nil, domain.ErrServiceRequestNotFound
	}
	return sr, nil
}

// Create raises a pending request against an accessible building. Any role
// may raise one. req must be validated.
func (s *ServiceRequestService) Create(ctx context.Context, scope AccessScope, buildingID string, req *domain.CreateServiceRequestRequest) (*domain.ServiceRequest, error) {
	actor, err := actorOf(scope)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(scope, buildingID); err != nil {
		return nil, err
	}

	sr, err := s.store.Create(ctx, buildingID, actor.ID, req)
	if err != nil {
		return nil, fmt.Errorf("create service request: %w", err)
	}

	recordAudit(ctx, s.audit, s.log, repo.AuditEntry{
		ActorID:    actor.ID,
		Action:     repo.AuditServiceRequestCreated,
		EntityType: "service_request",
		EntityID:   sr.ID,
		Metadata: map[string]interface{}{
			"building_id": buildingID,
			"category":    string(sr.Category),
			"priority":    string(sr.Priority),
		},
	})
	return sr, nil
}

// UpdateStatus moves a request to req.Status. Clients may not change status.
// A move the current status does not allow returns domain.ErrInvalidTransition.
func (s *ServiceRequestService) UpdateStatus(ctx context.Context, scope AccessScope, requestID string, req *domain.UpdateServiceRequestStatusRequest) (*domain.ServiceRequest, error) {
	actor, err := actorOf(scope)
	if err != nil {
		return nil, err
	}
	if actor.Role() == domain.RoleClient {
		return nil, ErrForbidden
	}

	current, err := s.Get(ctx, scope, requestID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current.Status, req.Status)
	}

	sr, err := s.store.UpdateStatus(ctx, requestID, actor.ID, current.Status, req)
	if err != nil {
		return nil, fmt.Errorf("update service request status: %w", err)
	}

	recordAudit(ctx, s.audit, s.log, repo.AuditEntry{
		ActorID:    actor.ID,
		Action:     repo.AuditServiceRequestStatus,
		EntityType: "service_request",
		EntityID:   requestID,
		Metadata:   map[string]interface{}{"from": string(current.Status), "to": string(req.Status)},
	})
	s.log.Info(ctx, "service request status changed",
		logger.Module("service_requests"),
		logger.Action("update_status"),
		zap.String("request_id", requestID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(req.Status)),
	)
	return sr, nil
}

// Delete soft-deletes a request. Only admins and the request's creator may
// delete it.
func (s *ServiceRequestService) Delete(ctx context.Context, scope AccessScope, requestID string) error {
	actor, err := actorOf(scope)
	if err != nil {
		return err
	}

	current, err := s.Get(ctx, scope, requestID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && current.CreatedByUserID != actor.ID {
		return ErrForbidden
	}

	if err := s.store.Deactivate(ctx, requestID); err != nil {
		return fmt.Errorf("delete service request: %w", err)
	}

	recordAudit(ctx, s.audit, s.log, repo.AuditEntry{
		ActorID:    actor.ID,
		Action:     repo.AuditServiceRequestDeleted,
		EntityType: "service_request",
		EntityID:   requestID,
	})
	return nil
}

// ListComments returns the thread of a request, oldest first.
func (s *ServiceRequestService) ListComments(ctx context.Context, scope AccessScope, requestID string) ([]domain.ServiceRequestComment, error) {
	if _, err := s.Get(ctx, scope, requestID); err != nil {
		return nil, err
	}

	comments, err := s.store.ListComments(ctx, requestID)
	if err != nil {
		return nil, readErr("list comments", err)
	}
	return comments, nil
}

// AddComment appends the caller's note to a request. req must be validated.
func (s *ServiceRequestService) AddComment(ctx context.Context, scope AccessScope, requestID string, req *domain.AddCommentRequest) (*domain.ServiceRequestComment, error) {
	actor, err := actorOf(scope)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, scope, requestID); err != nil {
		return nil, err
	}

	comment, err := s.store.AddComment(ctx, requestID, actor.ID, req.CommentText)
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return comment, nil
}
