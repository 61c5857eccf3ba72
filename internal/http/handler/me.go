package handler

import (
	"net/http"
	"strings"

	"bmai-api/internal/auth"
	"bmai-api/internal/domain"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/session"

	"go.uber.org/zap"
)

// SessionCloser ends the session of a principal.
// Implemented by *session.Manager.
type SessionCloser interface {
	Close(principalID string) bool
}

// MeHandler serves the caller's own principal, accessible buildings and
// active-building selection.
type MeHandler struct {
	sessions SessionCloser
}

func NewMeHandler(sessions SessionCloser) *MeHandler {
	return &MeHandler{sessions: sessions}
}

type accessibleResponse struct {
	Buildings []domain.Building `json:"buildings"`
	Loading   bool              `json:"loading"`
	Error     *errorView        `json:"error,omitempty"`
}

type selectionResponse struct {
	Selected *domain.Building `json:"selected"`
	Loading  bool             `json:"loading"`
	Error    *errorView       `json:"error,omitempty"`
}

type refreshResponse struct {
	Principal  domain.PrincipalResponse `json:"principal"`
	Accessible accessibleResponse       `json:"accessible"`
	Selection  selectionResponse        `json:"selection"`
}

type selectRequest struct {
	BuildingID string `json:"buildingId"`
}

func toAccessibleResponse(v session.AccessibleView) accessibleResponse {
	buildings := v.Buildings
	if buildings == nil {
		buildings = []domain.Building{}
	}
	return accessibleResponse{Buildings: buildings, Loading: v.Loading, Error: toErrorView(v.Err)}
}

func toSelectionResponse(v session.SelectionView) selectionResponse {
	return selectionResponse{Selected: v.Selected, Loading: v.Loading, Error: toErrorView(v.Err)}
}

// GetMe handles GET /v1/me
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	p := s.Principal()
	if p == nil {
		httperr.Forbidden403(w, r.Context(), httperr.ErrCodeProfileMissing, "no profile is provisioned for this user")
		return
	}
	writeJSON(w, http.StatusOK, p.ToResponse())
}

// ListBuildings handles GET /v1/me/buildings
func (h *MeHandler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAccessibleResponse(s.Accessible()))
}

// GetSelection handles GET /v1/me/selection
func (h *MeHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSelectionResponse(s.Selection()))
}

// Select handles PUT /v1/me/selection
func (h *MeHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return
	}
	req.BuildingID = strings.TrimSpace(req.BuildingID)
	if req.BuildingID == "" {
		httperr.BadRequest400WithFields(w, ctx, httperr.ErrCodeValidationError, "validation failed",
			map[string]string{"buildingId": "required"})
		return
	}

	if err := s.Select(ctx, req.BuildingID); err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	log.Info(ctx, "active building selected",
		logger.Module("me"),
		logger.Action("select"),
		zap.String("building_id", req.BuildingID),
	)

	writeJSON(w, http.StatusOK, toSelectionResponse(s.Selection()))
}

// Refresh handles POST /v1/me/refresh. Concurrent calls for the same
// principal share one refresh.
func (h *MeHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	if err := s.Refresh(ctx); err != nil {
		if session.IsFatal(err) {
			h.sessions.Close(s.PrincipalID())
		}
		handleServiceError(w, ctx, log, err, false)
		return
	}

	resp := refreshResponse{
		Accessible: toAccessibleResponse(s.Accessible()),
		Selection:  toSelectionResponse(s.Selection()),
	}
	if p := s.Principal(); p != nil {
		resp.Principal = p.ToResponse()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SignOut handles DELETE /v1/me/session. It only needs an authenticated
// principal, not a loaded session.
func (h *MeHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok || authCtx.PrincipalID == "" {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeNotAuthenticated, "authentication required")
		return
	}

	closed := h.sessions.Close(authCtx.PrincipalID)
	logger.GetLogger(ctx).Info(ctx, "signed out",
		logger.Module("me"),
		logger.Action("sign_out"),
		zap.Bool("had_session", closed),
	)

	w.WriteHeader(http.StatusNoContent)
}
