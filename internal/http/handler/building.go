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

// BuildingHandler serves the admin catalog endpoints.
type BuildingHandler struct {
	service *service.BuildingService
}

func NewBuildingHandler(service *service.BuildingService) *BuildingHandler {
	return &BuildingHandler{service: service}
}

// ListBuildings handles GET /v1/buildings
func (h *BuildingHandler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	var params domain.ListBuildingsParams
	if region := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("region"))); region != "" {
		if !domain.IsValidRegion(region) {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "region must be one of "+strings.Join(domain.Regions, ", "))
			return
		}
		params.Region = &region
	}
	if archived := r.URL.Query().Get("archived"); archived != "" {
		v, err := strconv.ParseBool(archived)
		if err != nil {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "archived must be true or false")
			return
		}
		params.Archived = v
	}

	buildings, err := h.service.ListBuildings(ctx, s.Principal(), params)
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	writeJSON(w, http.StatusOK, buildings)
}

// GetBuilding handles GET /v1/buildings/{buildingId}
func (h *BuildingHandler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	building, err := h.service.GetBuilding(ctx, s.Principal(), chi.URLParam(r, "buildingId"))
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	writeJSON(w, http.StatusOK, building)
}

// CreateBuilding handles POST /v1/buildings
func (h *BuildingHandler) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req domain.CreateBuildingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Warn(ctx, "invalid request body", zap.Error(err))
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	building, err := h.service.CreateBuilding(ctx, s.Principal(), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	log.Info(ctx, "building created",
		logger.Module("buildings"),
		logger.Action("create"),
		zap.String("building_id", building.ID),
		zap.String("region", building.Region),
	)

	writeJSON(w, http.StatusCreated, building)
}

// UpdateBuilding handles PATCH /v1/buildings/{buildingId}
func (h *BuildingHandler) UpdateBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	buildingID := chi.URLParam(r, "buildingId")

	var req domain.UpdateBuildingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Warn(ctx, "invalid request body", zap.Error(err))
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	building, err := h.service.UpdateBuilding(ctx, s.Principal(), buildingID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	log.Info(ctx, "building updated",
		logger.Module("buildings"),
		logger.Action("update"),
		zap.String("building_id", buildingID),
	)

	writeJSON(w, http.StatusOK, building)
}

// ArchiveBuilding handles POST /v1/buildings/{buildingId}/archive
func (h *BuildingHandler) ArchiveBuilding(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// RestoreBuilding handles POST /v1/buildings/{buildingId}/restore
func (h *BuildingHandler) RestoreBuilding(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *BuildingHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	buildingID := chi.URLParam(r, "buildingId")

	var (
		building *domain.Building
		err      error
	)
	if archived {
		building, err = h.service.ArchiveBuilding(ctx, s.Principal(), buildingID)
	} else {
		building, err = h.service.RestoreBuilding(ctx, s.Principal(), buildingID)
	}
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	log.Info(ctx, "building archive state changed",
		logger.Module("buildings"),
		logger.Action("set_archived"),
		zap.String("building_id", buildingID),
		zap.Bool("archived", archived),
	)

	writeJSON(w, http.StatusOK, building)
}
