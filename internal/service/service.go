package service

import (
	"context"
	"errors"

	"bmai-api/internal/domain"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/observability/requestid"
	"bmai-api/internal/repo"

	"go.uber.org/zap"
)

var (
	ErrForbidden        = domain.ErrForbidden
	ErrBuildingNotFound = domain.ErrBuildingNotFound
	ErrProfileMissing   = domain.ErrProfileMissing

	// ErrEmptyUpdate indicates a PATCH body without any field
	ErrEmptyUpdate = errors.New("no fields to update")

	// ErrUnknownBuildings indicates a scope referencing building ids that do not exist
	ErrUnknownBuildings = errors.New("unknown building ids")

	// ErrUserExists indicates an invitation for an email that already has an identity or profile
	ErrUserExists = errors.New("user already exists")

	// ErrInvitesDisabled indicates the auth provider admin API is not configured
	ErrInvitesDisabled = errors.New("invitations are not configured")
)

// Auditor records admin writes.
type Auditor interface {
	LogAction(ctx context.Context, entry repo.AuditEntry) error
}

// Invalidator re-derives the sessions affected by an admin write.
// Implemented by *session.Manager.
type Invalidator interface {
	Invalidate(ctx context.Context, principalID string) error
	InvalidateAll(ctx context.Context) error
}

func requireAdmin(actor *domain.Principal) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// recordAudit writes the audit entry. Audit failures are logged and never
// fail the write they describe.
func recordAudit(ctx context.Context, auditor Auditor, log *logger.Logger, entry repo.AuditEntry) {
	if auditor == nil {
		return
	}
	entry.RequestID = requestid.GetRequestID(ctx)
	if err := auditor.LogAction(ctx, entry); err != nil {
		log.Error(ctx, "failed to write audit entry",
			logger.Module("audit"),
			logger.Action(entry.Action),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err),
		)
	}
}
