package middleware

import (
	"bytes"
	"context"
	"net/http"

	"bmai-api/internal/auth"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/repo"

	"go.uber.org/zap"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

// IdempotencyStore persists replayable responses.
// Implemented by *repo.IdempotencyStore.
type IdempotencyStore interface {
	CheckKey(ctx context.Context, principalID, keyHash string) (*repo.CachedResponse, error)
	StoreResult(ctx context.Context, principalID, keyHash string, resp *repo.CachedResponse) error
}

// IdempotencyMiddleware replays the stored response of a write that carries an
// Idempotency-Key the same principal already used. Requests without the header
// pass through.
func IdempotencyMiddleware(store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			// Only apply to POST, PUT, PATCH methods
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get(idempotencyKeyHeader)
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if len(idempotencyKey) > maxIdempotencyKeyLen {
				httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "idempotency key must be 255 characters or less")
				return
			}

			authCtx, ok := auth.GetAuthContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			keyHash := repo.HashKey(idempotencyKey)
			w.Header().Set("X-Idempotency-Key-Hash", keyHash)

			cached, err := store.CheckKey(ctx, authCtx.PrincipalID, keyHash)
			if err != nil {
				logger.SetRootError(ctx, err)
				httperr.InternalError500(w, ctx, "failed to check idempotency key")
				return
			}

			if cached != nil {
				if cached.Method != r.Method || cached.Path != r.URL.Path {
					httperr.WriteError(w, ctx, http.StatusConflict, httperr.ErrCodeConflict, "idempotency key was already used for a different request")
					return
				}

				log.Info(ctx, "returning cached response for idempotent request",
					logger.Module("idempotency"),
					logger.Action("replay"),
					zap.String("key_hash", keyHash),
					zap.Int("status", cached.Status),
				)

				for k, v := range cached.Headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("X-Idempotency-Replay", "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(recorder, r)

			// Store result only for successful responses (2xx)
			if recorder.statusCode < 200 || recorder.statusCode >= 300 {
				return
			}

			headers := make(map[string]string)
			for _, key := range []string{"Content-Type", "Location"} {
				if val := recorder.Header().Get(key); val != "" {
					headers[key] = val
				}
			}

			err = store.StoreResult(ctx, authCtx.PrincipalID, keyHash, &repo.CachedResponse{
				Method:  r.Method,
				Path:    r.URL.Path,
				Status:  recorder.statusCode,
				Body:    recorder.body.Bytes(),
				Headers: headers,
			})
			if err != nil {
				// the write already happened; only the replay is lost
				log.Error(ctx, "failed to store idempotency result",
					logger.Module("idempotency"),
					logger.Action("store"),
					zap.Error(err),
				)
				return
			}

			log.Debug(ctx, "stored idempotent request result",
				logger.Module("idempotency"),
				logger.Action("store"),
				zap.String("key_hash", keyHash),
				zap.Int("status", recorder.statusCode),
			)
		})
	}
}

// responseRecorder captures response for storage
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.written {
		rr.statusCode = code
		rr.written = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.written {
		rr.WriteHeader(http.StatusOK)
	}
	rr.body.Write(b)
	return rr.ResponseWriter.Write(b)
}
