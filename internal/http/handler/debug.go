package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bmai-api/internal/auth"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/http/middleware"
	"bmai-api/internal/observability/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is the subset of pgxpool.Pool the debug endpoints use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DebugHandler provides debug endpoints for development
type DebugHandler struct {
	appEnv string
	pool   DBPool
}

// NewDebugHandler creates a debug handler. An empty appEnv is treated as
// production.
func NewDebugHandler(appEnv string, pool DBPool) *DebugHandler {
	if appEnv == "" {
		appEnv = "production"
	}
	return &DebugHandler{appEnv: appEnv, pool: pool}
}

// DebugSessionData describes the caller's identity and session state.
type DebugSessionData struct {
	PrincipalID     string  `json:"principalId"`
	AuthMethod      string  `json:"authMethod"`
	TokenIssuer     *string `json:"tokenIssuer,omitempty"`
	Role            string  `json:"role,omitempty"`
	SessionLoaded   bool    `json:"sessionLoaded"`
	AccessibleCount int     `json:"accessibleCount"`
	SelectedID      *string `json:"selectedId,omitempty"`
	Refreshing      bool    `json:"refreshing"`
	LastError       *string `json:"lastError,omitempty"`
}

func (h *DebugHandler) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.appEnv == "dev" || h.appEnv == "development" {
		return true
	}
	ctx := r.Context()
	logger.GetLogger(ctx).Warn(ctx, "debug endpoint accessed in non-dev environment",
		zap.String("app_env", h.appEnv),
	)
	http.NotFound(w, r)
	return false
}

// GetSessionDebug handles GET /debug/session. Dev only.
func (h *DebugHandler) GetSessionDebug(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	ctx := r.Context()

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeNotAuthenticated, "authentication required")
		return
	}

	data := &DebugSessionData{
		PrincipalID: authCtx.PrincipalID,
		AuthMethod:  authCtx.AuthMethod,
	}
	if authCtx.Issuer != "" {
		data.TokenIssuer = &authCtx.Issuer
	}

	if s, ok := middleware.GetSession(ctx); ok {
		data.SessionLoaded = s.Loaded()
		if p := s.Principal(); p != nil {
			data.Role = p.Role().String()
		}
		accessible := s.Accessible()
		data.AccessibleCount = len(accessible.Buildings)
		data.Refreshing = accessible.Loading
		if sel := s.Selection().Selected; sel != nil {
			id := sel.ID
			data.SelectedID = &id
		}
		if err := s.Err(); err != nil {
			msg := err.Error()
			data.LastError = &msg
		}
	}

	writeJSON(w, http.StatusOK, data)
}

// PingDB checks database connectivity with SELECT 1. Dev only.
func (h *DebugHandler) PingDB(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	if err := h.pool.QueryRow(pingCtx, "SELECT 1").Scan(&result); err != nil {
		fields := []zap.Field{zap.Error(err)}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			fields = append(fields, zap.String("pgcode", pgErr.Code))
		}
		log.Error(ctx, "db_ping_failed", fields...)

		httperr.InternalError(w, ctx)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"pong": true})
}
