package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"bmai-api/internal/auth"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/observability/logger"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RateLimiter checks a per-principal sliding window.
// Implemented by *ratelimit.RedisRateLimiter.
type RateLimiter interface {
	AllowRequest(ctx context.Context, principalID string, limit int, window time.Duration) (bool, int, error)
}

const rateLimitWindow = time.Minute

// RateLimitMiddleware enforces rate limiting per authenticated principal.
// A limiter failure lets the request through.
func RateLimitMiddleware(limiter RateLimiter, limitPerMin int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			authCtx, ok := auth.GetAuthContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, err := limiter.AllowRequest(ctx, authCtx.PrincipalID, limitPerMin, rateLimitWindow)
			if err != nil {
				log.Error(ctx, "rate limit check failed",
					logger.Module("ratelimit"),
					logger.Action("check"),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limitPerMin))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rateLimitWindow).Unix(), 10))

			if !allowed {
				trace.SpanFromContext(ctx).AddEvent("rate_limit_exceeded")

				log.Warn(ctx, "rate limit exceeded",
					logger.Module("ratelimit"),
					logger.Action("check"),
					zap.Int("limit", limitPerMin),
				)

				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
				httperr.WriteError(w, ctx, http.StatusTooManyRequests, httperr.ErrCodeRateLimited, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
