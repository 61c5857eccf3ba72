package handler

import (
	"net/http"

	"bmai-api/internal/domain"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler serves the admin user endpoints.
type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GetUser handles GET /v1/users/{userId}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetUser(ctx, s.Principal(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, ctx, log, err, true)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateScope handles PUT /v1/users/{userId}/scope
func (h *UserHandler) UpdateScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userId")

	var req domain.UpdateUserScopeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Warn(ctx, "invalid request body", zap.Error(err))
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	profile, err := h.service.UpdateScope(ctx, s.Principal(), userID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err, true)
		return
	}

	log.Info(ctx, "user scope updated",
		logger.Module("users"),
		logger.Action("update_scope"),
		zap.String("user_id", userID),
		zap.String("role", profile.Role.String()),
	)

	writeJSON(w, http.StatusOK, profile)
}

// InviteUser handles POST /v1/users/invite
func (h *UserHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req domain.InviteUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Warn(ctx, "invalid request body", zap.Error(err))
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	invited, err := h.service.InviteUser(ctx, s.Principal(), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	log.Info(ctx, "user invited",
		logger.Module("users"),
		logger.Action("invite"),
		zap.String("user_id", invited.ID),
		zap.String("role", invited.Role.String()),
	)

	writeJSON(w, http.StatusCreated, invited)
}
