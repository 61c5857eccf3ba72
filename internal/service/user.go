package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bmai-api/internal/domain"
	"bmai-api/internal/integrations/authadmin"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/repo"

	"go.uber.org/zap"
)

// ProfileStore is the profile/role persistence used by UserService.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	UpdateScope(ctx context.Context, userID string, scope *domain.UpdateUserScopeRequest) (*domain.UserProfile, error)
	Create(ctx context.Context, userID, email, fullName string, scope *domain.UpdateUserScopeRequest) (*domain.UserProfile, error)
}

// BuildingLookup reports which of a set of building ids exist.
type BuildingLookup interface {
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

// IdentityProvisioner creates identities in the auth provider.
type IdentityProvisioner interface {
	CreateUser(ctx context.Context, params authadmin.CreateUserParams) (*authadmin.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// UserService administers user roles and scopes.
type UserService struct {
	profiles  ProfileStore
	buildings BuildingLookup
	identity  IdentityProvisioner
	audit     Auditor
	sessions  Invalidator
	log       *logger.Logger
}

// NewUserService creates the service. identity may be nil, which disables
// invitations.
func NewUserService(profiles ProfileStore, buildings BuildingLookup, identity IdentityProvisioner, audit Auditor, sessions Invalidator, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.NewNop()
	}
	return &UserService{
		profiles:  profiles,
		buildings: buildings,
		identity:  identity,
		audit:     audit,
		sessions:  sessions,
		log:       log,
	}
}

// GetUser returns the profile of userID. Admin only.
func (s *UserService) GetUser(ctx context.Context, actor *domain.Principal, userID string) (*domain.UserProfile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// UpdateScope sets role and scope of userID and refreshes that user's
// session, if open. req must be validated.
func (s *UserService) UpdateScope(ctx context.Context, actor *domain.Principal, userID string, req *domain.UpdateUserScopeRequest) (*domain.UserProfile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Normalize()

	if err := s.checkBuildings(ctx, req.BuildingIDs); err != nil {
		return nil, err
	}

	profile, err := s.profiles.UpdateScope(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("update scope: %w", err)
	}

	recordAudit(ctx, s.audit, s.log, repo.AuditEntry{
		ActorID:    actor.ID,
		Action:     repo.AuditUserScopeUpdated,
		EntityType: "user",
		EntityID:   userID,
		Metadata:   scopeMetadata(req),
	})
	s.invalidate(ctx, userID, "update_scope")

	return profile, nil
}

// InviteUser creates a confirmed identity with a temporary password, then
// writes its profile, role and scope. A failed profile write removes the
// identity again.
func (s *UserService) InviteUser(ctx context.Context, actor *domain.Principal, req *domain.InviteUserRequest) (*domain.InvitedUser, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if s.identity == nil {
		return nil, ErrInvitesDisabled
	}

	scope := req.Scope()
	if err := s.checkBuildings(ctx, scope.BuildingIDs); err != nil {
		return nil, err
	}

	user, err := s.identity.CreateUser(ctx, authadmin.CreateUserParams{
		Email:    req.Email,
		Password: req.TempPassword,
		FullName: req.FullName,
	})
	if err != nil {
		if errors.Is(err, authadmin.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	if _, err := s.profiles.Create(ctx, user.ID, req.Email, req.FullName, scope); err != nil {
		if delErr := s.identity.DeleteUser(ctx, user.ID); delErr != nil {
			s.log.Error(ctx, "failed to roll back identity",
				logger.Module("user"),
				logger.Action("invite"),
				zap.String("user_id", user.ID),
				zap.Error(delErr),
			)
		}
		if errors.Is(err, repo.ErrProfileExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	recordAudit(ctx, s.audit, s.log, repo.AuditEntry{
		ActorID:    actor.ID,
		Action:     repo.AuditUserInvited,
		EntityType: "user",
		EntityID:   user.ID,
		Metadata:   scopeMetadata(scope),
	})
	s.invalidate(ctx, user.ID, "invite")

	s.log.Info(ctx, "user invited",
		logger.Module("user"),
		logger.Action("invite"),
		zap.String("user_id", user.ID),
		zap.String("role", string(req.Role)),
	)

	return &domain.InvitedUser{
		ID:       user.ID,
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
	}, nil
}

// checkBuildings rejects ids that are not in the catalog.
func (s *UserService) checkBuildings(ctx context.Context, ids []string) error {
	if len(ids) == 0 || s.buildings == nil {
		return nil
	}

	existing, err := s.buildings.ExistingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("check buildings: %w", err)
	}

	known := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownBuildings, strings.Join(missing, ", "))
	}
	return nil
}

func (s *UserService) invalidate(ctx context.Context, userID, action string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Invalidate(ctx, userID); err != nil {
		s.log.Warn(ctx, "session invalidation failed",
			logger.Module("user"),
			logger.Action(action),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func scopeMetadata(scope *domain.UpdateUserScopeRequest) map[string]interface{} {
	metadata := map[string]interface{}{"role": string(scope.Role)}
	if scope.Region != nil {
		metadata["region"] = *scope.Region
	}
	if scope.BuildingIDs != nil {
		metadata["buildingIds"] = scope.BuildingIDs
	}
	return metadata
}
