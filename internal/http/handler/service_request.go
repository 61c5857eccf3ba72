package handler

import (
	"net/http"
	"strconv"
	"strings"

	"bmai-api/internal/domain"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ServiceRequestHandler serves the service requests of the caller's
// accessible buildings.
type ServiceRequestHandler struct {
	service *service.ServiceRequestService
}

func NewServiceRequestHandler(service *service.ServiceRequestService) *ServiceRequestHandler {
	return &ServiceRequestHandler{service: service}
}

// listParams reads the status, category, priority and includeResolved
// filters. It writes 400 and returns false on an unknown value.
func listParams(w http.ResponseWriter, r *http.Request) (domain.ListServiceRequestsParams, bool) {
	ctx := r.Context()
	q := r.URL.Query()
	var params domain.ListServiceRequestsParams

	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status := domain.ServiceRequestStatus(strings.ToLower(v))
		if !status.IsValid() {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "status must be one of pending, dispatched, in_progress, resolved")
			return params, false
		}
		params.Status = &status
	}
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		category, ok := domain.ParseEquipmentType(v)
		if !ok {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "category must be one of "+strings.Join(domain.EquipmentTypeNames(), ", "))
			return params, false
		}
		params.Category = &category
	}
	if v := strings.TrimSpace(q.Get("priority")); v != "" {
		priority := domain.ServiceRequestPriority(strings.ToLower(v))
		switch priority {
		case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
			params.Priority = &priority
		default:
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "priority must be one of low, medium, high")
			return params, false
		}
	}
	if v := q.Get("includeResolved"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "includeResolved must be true or false")
			return params, false
		}
		params.IncludeResolved = include
	}
	return params, true
}

// List handles GET /v1/me/buildings/{buildingId}/service-requests
func (h *ServiceRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	params, ok := listParams(w, r)
	if !ok {
		return
	}

	requests, err := h.service.List(ctx, s, chi.URLParam(r, "buildingId"), params)
	if err != nil {
		handleServiceError(w, ctx, logger.GetLogger(ctx), err, false)
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

// Create handles POST /v1/me/buildings/{buildingId}/service-requests
func (h *ServiceRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req domain.CreateServiceRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Warn(ctx, "invalid request body", zap.Error(err))
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	sr, err := h.service.Create(ctx, s, chi.URLParam(r, "buildingId"), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	log.Info(ctx, "service request created",
		logger.Module("service_requests"),
		logger.Action("create"),
		zap.String("request_id", sr.ID),
		zap.String("building_id", sr.BuildingID),
		zap.String("priority", string(sr.Priority)),
	)

	writeJSON(w, http.StatusCreated, sr)
}

// Get handles GET /v1/me/service-requests/{requestId}
func (h *ServiceRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	sr, err := h.service.Get(ctx, s, chi.URLParam(r, "requestId"))
	if err != nil {
		handleServiceError(w, ctx, logger.GetLogger(ctx), err, false)
		return
	}

	writeJSON(w, http.StatusOK, sr)
}

// UpdateStatus handles PATCH /v1/me/service-requests/{requestId}/status
func (h *ServiceRequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req domain.UpdateServiceRequestStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	sr, err := h.service.UpdateStatus(ctx, s, chi.URLParam(r, "requestId"), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	writeJSON(w, http.StatusOK, sr)
}

// Delete handles DELETE /v1/me/service-requests/{requestId}
func (h *ServiceRequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	requestID := chi.URLParam(r, "requestId")
	if err := h.service.Delete(ctx, s, requestID); err != nil {
		handleServiceError(w, ctx, logger.GetLogger(ctx), err, false)
		return
	}

	logger.GetLogger(ctx).Info(ctx, "service request deleted",
		logger.Module("service_requests"),
		logger.Action("delete"),
		zap.String("request_id", requestID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// ListComments handles GET /v1/me/service-requests/{requestId}/comments
func (h *ServiceRequestHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	comments, err := h.service.ListComments(ctx, s, chi.URLParam(r, "requestId"))
	if err != nil {
		handleServiceError(w, ctx, logger.GetLogger(ctx), err, false)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// AddComment handles POST /v1/me/service-requests/{requestId}/comments
func (h *ServiceRequestHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req domain.AddCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	comment, err := h.service.AddComment(ctx, s, chi.URLParam(r, "requestId"), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}
