package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"bmai-api/internal/domain"
	"bmai-api/internal/http/client"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/observability/requestid"
	"bmai-api/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	maxRequestIDLength = 128
	maxLoggedQuery     = 200
	maxLoggedAgent     = 100
)

const summaryKey contextKey = "request_summary"

// requestSummary collects who a request ran as. RequestLoggingMiddleware
// owns it; SessionMiddleware fills it once the session is loaded.
type requestSummary struct {
	mu          sync.Mutex
	principalID string
	role        string
	buildingID  string
}

func (s *requestSummary) fields() []zap.Field {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []zap.Field
	if s.principalID != "" {
		out = append(out, zap.String("principal_id", s.principalID))
	}
	if s.role != "" {
		out = append(out, zap.String("role", s.role))
	}
	if s.buildingID != "" {
		out = append(out, zap.String("building_id", s.buildingID))
	}
	return out
}

// recordSession copies the session identity into the request summary, if one
// is being collected.
func recordSession(ctx context.Context, s *session.Session) {
	summary, ok := ctx.Value(summaryKey).(*requestSummary)
	if !ok || s == nil {
		return
	}

	summary.mu.Lock()
	defer summary.mu.Unlock()

	summary.principalID = s.PrincipalID()
	if p := s.Principal(); p != nil {
		summary.role = p.Role().String()
	}
	if sel := s.Selection().Selected; sel != nil {
		summary.buildingID = sel.ID
	}
}

// RequestIDMiddleware accepts the caller's X-Request-Id when it is sane and
// otherwise mints a "req_" id. The id is echoed back on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(client.RequestIDHeader))
		if reqID == "" || len(reqID) > maxRequestIDLength {
			reqID = requestid.NewRequestID()
		}

		w.Header().Set(client.RequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(requestid.SetRequestID(r.Context(), reqID)))
	})
}

// RequestLoggingMiddleware emits one "http request completed" line per
// request once the handler returns. Bodies and sensitive headers are never
// logged. Failed requests get a second line describing the cause:
// 503 responses log "http_unavailable" at warn, other 5xx log "http_error".
func RequestLoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			summary := &requestSummary{}

			ctx := logger.SetLoggerInContext(r.Context(), log)
			ctx = logger.InitRootErrorContext(ctx)
			ctx = context.WithValue(ctx, summaryKey, summary)

			rw := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rw, r.WithContext(ctx))

			status := rw.status()
			route := getRoutePattern(r)

			fields := []zap.Field{
				logger.Module("http"),
				logger.Action("request"),
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.String("query", sanitizeQuery(r.URL.RawQuery)),
				zap.Int("status", status),
				zap.Int("bytes", rw.bytes),
				zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
				zap.String("remote_addr", sanitizeRemoteAddr(r.RemoteAddr)),
				zap.String("user_agent", truncate(r.UserAgent(), maxLoggedAgent)),
			}
			fields = append(fields, summary.fields()...)
			log.Info(ctx, "http request completed", fields...)

			if status >= http.StatusInternalServerError {
				logFailedRequest(ctx, log, r.Method, route, status)
			}
		})
	}
}

func logFailedRequest(ctx context.Context, log *logger.Logger, method, route string, status int) {
	rootErr := logger.GetRootError(ctx)

	fields := []zap.Field{
		logger.Module("http"),
		zap.Int("status", status),
		zap.String("method", method),
		zap.String("route", route),
		zap.String("kind", classifyError(rootErr)),
	}

	if rootErr == nil {
		fields = append(fields, zap.String("err", "unspecified cause"))
	} else {
		fields = append(fields, zap.String("err", rootErr.Error()))

		if fetchErr, ok := domain.IsFetchError(rootErr); ok {
			fields = append(fields, zap.String("operation", fetchErr.Op))
		}
		var pgErr *pgconn.PgError
		if errors.As(rootErr, &pgErr) {
			fields = append(fields, zap.String("pgcode", pgErr.Code))
		}
	}

	if status == http.StatusServiceUnavailable {
		log.Warn(ctx, "http_unavailable", append(fields, logger.Action("http_unavailable"))...)
		return
	}
	log.Error(ctx, "http_error", append(fields, logger.Action("http_error"))...)
}

// RecoveryMiddleware turns a handler panic into a 500 envelope and logs the
// stack as panic_recovered.
func RecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				logger.SetRootError(ctx, fmt.Errorf("panic: %v", rec))

				log.Error(ctx, "panic_recovered",
					logger.Module("http"),
					logger.Action("panic_recovery"),
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", r.Method),
					zap.String("route", getRoutePattern(r)),
					zap.String("request_id", logger.GetRequestIDFromContext(ctx)),
				)

				httperr.InternalError(w, ctx)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder remembers the first status written and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.code == 0 {
		rw.code = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.code == 0 {
		rw.code = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *statusRecorder) status() int {
	if rw.code == 0 {
		return http.StatusOK
	}
	return rw.code
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var sensitiveQueryKeys = map[string]bool{
	"token":        true,
	"access_token": true,
	"apikey":       true,
	"password":     true,
}

// sanitizeQuery redacts credentials from the query string and bounds its length.
func sanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	if values, err := url.ParseQuery(query); err == nil {
		redacted := false
		for key := range values {
			if sensitiveQueryKeys[strings.ToLower(key)] {
				values.Set(key, "[REDACTED]")
				redacted = true
			}
		}
		if redacted {
			query = values.Encode()
		}
	}
	return truncate(query, maxLoggedQuery)
}

// sanitizeRemoteAddr drops the port: 192.168.1.100:54321 -> 192.168.1.100
func sanitizeRemoteAddr(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// getRoutePattern prefers the chi pattern so ids do not explode log cardinality.
func getRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// classifyError buckets the root cause of a failed request.
func classifyError(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case strings.HasPrefix(err.Error(), "panic:"):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	if _, ok := domain.IsFetchError(err); ok {
		return "fetch"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return "db"
	}
	if strings.Contains(strings.ToLower(err.Error()), "scan") {
		return "scan"
	}
	return "unknown"
}
