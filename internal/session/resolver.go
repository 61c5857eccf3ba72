package session

import (
	"context"
	"errors"
	"strings"

	"bmai-api/internal/domain"
	"bmai-api/internal/observability/logger"

	"go.uber.org/zap"
)

// PrincipalSource loads the profile and role of an identity.
// It returns domain.ErrProfileMissing when the identity has no profile.
type PrincipalSource interface {
	GetPrincipal(ctx context.Context, principalID string) (*domain.Principal, error)
}

// Resolver turns an authenticated identity reference into a Principal.
type Resolver struct {
	source PrincipalSource
	log    *logger.Logger
}

func NewResolver(source PrincipalSource, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{source: source, log: log}
}

// ResolveSession returns the principal for principalID.
//
// Errors:
//   - domain.ErrNotAuthenticated when principalID is empty
//   - domain.ErrProfileMissing when no profile exists (fatal, not retried)
//   - *domain.FetchError for store failures (retryable)
func (r *Resolver) ResolveSession(ctx context.Context, principalID string) (*domain.Principal, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, domain.ErrNotAuthenticated
	}

	p, err := r.source.GetPrincipal(ctx, principalID)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, domain.ErrProfileMissing):
		r.log.Warn(ctx, "identity has no profile",
			logger.Module("session"),
			logger.Action("resolve_session"),
			zap.String("principal_id", principalID),
		)
		return nil, domain.ErrProfileMissing
	default:
		r.log.Error(ctx, "failed to resolve principal",
			logger.Module("session"),
			logger.Action("resolve_session"),
			zap.String("principal_id", principalID),
			zap.Error(err),
		)
		if fe, ok := domain.IsFetchError(err); ok {
			return nil, fe
		}
		return nil, domain.NewFetchError("resolve principal", err)
	}
}
