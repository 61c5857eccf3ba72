package middleware

import (
	"context"
	"errors"
	"net/http"

	"bmai-api/internal/auth"
	"bmai-api/internal/domain"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionAcquirer opens or returns the session of a principal.
// Implemented by *session.Manager.
type SessionAcquirer interface {
	Acquire(ctx context.Context, principalID string) (*session.Session, error)
}

// SessionMiddleware resolves the authenticated principal into its loaded
// session and injects it into the context. Must run after auth.Middleware.
func SessionMiddleware(sessions SessionAcquirer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			principalID := ""
			if authCtx, ok := auth.GetAuthContext(ctx); ok {
				principalID = authCtx.PrincipalID
			}

			s, err := sessions.Acquire(ctx, principalID)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrNotAuthenticated):
					httperr.Unauthorized401(w, ctx, httperr.ErrCodeNotAuthenticated, "not authenticated")
				case errors.Is(err, domain.ErrProfileMissing):
					log.Warn(ctx, "authenticated identity without profile",
						logger.Module("session"),
						logger.Action("acquire"),
					)
					httperr.Forbidden403(w, ctx, httperr.ErrCodeProfileMissing, "no profile is provisioned for this user")
				default:
					if _, ok := domain.IsFetchError(err); ok {
						logger.SetRootError(ctx, err)
						httperr.FetchFailed503(w, ctx, "building catalog is temporarily unavailable", 1)
						return
					}
					logger.SetRootError(ctx, err)
					log.Error(ctx, "session acquire failed",
						logger.Module("session"),
						logger.Action("acquire"),
						zap.Error(err),
					)
					httperr.InternalError(w, ctx)
				}
				return
			}

			role := s.Principal().Role().String()
			ctx = logger.SetRoleInContext(ctx, role)
			ctx = context.WithValue(ctx, sessionKey, s)
			recordSession(ctx, s)

			trace.SpanFromContext(ctx).SetAttributes(attribute.String("principal_role", role))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession retrieves the session injected by SessionMiddleware
func GetSession(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok && s != nil
}

// WithSession stores s in ctx. Used by tests and by handlers that open a
// session outside the middleware chain.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}
