package auth

import (
	"context"
	"net/http"
	"strings"

	"bmai-api/internal/http/httperr"
	"bmai-api/internal/observability/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	authContextKey   contextKey = "auth_context"
)

const authMethodJWT = "jwt"

// AuthContext is the authenticated identity of a request.
type AuthContext struct {
	PrincipalID string
	Email       string
	Issuer      string
	AuthMethod  string
}

var rejectMessages = map[AuthFailureReason]string{
	AuthFailureMissingAuthorization: "missing authorization header",
	AuthFailureInvalidScheme:        "invalid authorization scheme, expected Bearer",
}

// Middleware validates the bearer token and injects the AuthContext and
// principal id into the request context. The token only establishes who the
// caller is; the role comes from the profile store.
func Middleware(resolver *KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, authErr := bearerToken(r.Header.Get("Authorization"))
			if authErr != nil {
				reject(w, r, authErr, "")
				return
			}

			claims, err := resolver.Resolve(ctx, tokenString)
			if err != nil {
				rejected, ok := IsAuthError(err)
				if !ok {
					rejected = NewAuthError(AuthFailureUnknown, "token rejected", err)
				}
				reject(w, r, rejected, tokenString)
				return
			}

			authCtx := &AuthContext{
				PrincipalID: claims.Subject,
				Email:       claims.Email,
				Issuer:      claims.Issuer,
				AuthMethod:  authMethodJWT,
			}

			ctx = context.WithValue(ctx, claimsContextKey, claims)
			ctx = context.WithValue(ctx, authContextKey, authCtx)
			ctx = logger.SetPrincipalIDInContext(ctx, authCtx.PrincipalID)

			trace.SpanFromContext(ctx).SetAttributes(attribute.String("principal_id", authCtx.PrincipalID))

			logger.GetLogger(ctx).Debug(ctx, "authenticated request",
				logger.Module("auth"),
				logger.Action("authenticate"),
				zap.String("issuer", claims.Issuer),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, *AuthError) {
	if header == "" {
		return "", NewAuthError(AuthFailureMissingAuthorization, "missing authorization header", nil)
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", NewAuthError(AuthFailureInvalidScheme, "invalid authorization scheme", nil)
	}
	return token, nil
}

func reject(w http.ResponseWriter, r *http.Request, authErr *AuthError, token string) {
	ctx := r.Context()

	fields := []zap.Field{
		logger.Module("auth"),
		logger.Action("authenticate"),
		zap.String("auth_failure_reason", string(authErr.Reason)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if token != "" {
		fields = append(fields, zap.String("token_prefix", maskToken(token)), zap.Error(authErr))
	}
	logger.GetLogger(ctx).Warn(ctx, "authentication failed", fields...)

	message, ok := rejectMessages[authErr.Reason]
	if !ok {
		message = "invalid or expired token"
	}
	httperr.Unauthorized401(w, ctx, authErr.Code(), message)
}

// GetClaims retrieves claims from context
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// GetAuthContext retrieves the authenticated identity from context
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*AuthContext)
	return authCtx, ok && authCtx != nil
}
