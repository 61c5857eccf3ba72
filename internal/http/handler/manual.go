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

// ManualHandler serves the manuals, table of contents and keyword search of
// the caller's accessible buildings.
type ManualHandler struct {
	service *service.ManualService
}

func NewManualHandler(service *service.ManualService) *ManualHandler {
	return &ManualHandler{service: service}
}

// equipmentTypeParam reads the optional equipmentType query parameter. It
// writes 400 and returns false when the value is not a known type.
func equipmentTypeParam(w http.ResponseWriter, r *http.Request) (*domain.EquipmentType, bool) {
	raw := r.URL.Query().Get("equipmentType")
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	t, ok := domain.ParseEquipmentType(raw)
	if !ok {
		httperr.BadRequest400(w, r.Context(), httperr.ErrCodeInvalidParameter,
			"equipmentType must be one of "+strings.Join(domain.EquipmentTypeNames(), ", "))
		return nil, false
	}
	return &t, true
}

// ListManuals handles GET /v1/me/buildings/{buildingId}/manuals
func (h *ManualHandler) ListManuals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	equipmentType, ok := equipmentTypeParam(w, r)
	if !ok {
		return
	}

	buildingID := chi.URLParam(r, "buildingId")
	manuals, err := h.service.ListManuals(ctx, s, buildingID, domain.ListManualsParams{EquipmentType: equipmentType})
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	log.Debug(ctx, "manuals listed",
		logger.Module("manuals"),
		logger.Action("list"),
		zap.String("building_id", buildingID),
		zap.Int("count", len(manuals)),
	)

	writeJSON(w, http.StatusOK, manuals)
}

// ListSections handles GET /v1/me/manuals/{manualId}/sections. Without
// parentId the top-level sections are returned.
func (h *ManualHandler) ListSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	var parentID *string
	if v := strings.TrimSpace(r.URL.Query().Get("parentId")); v != "" {
		parentID = &v
	}

	sections, err := h.service.ListSections(ctx, s, chi.URLParam(r, "manualId"), parentID)
	if err != nil {
		handleServiceError(w, ctx, logger.GetLogger(ctx), err, false)
		return
	}

	writeJSON(w, http.StatusOK, sections)
}

// Search handles GET /v1/me/buildings/{buildingId}/search
func (h *ManualHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	params, ok := searchParams(w, r)
	if !ok {
		return
	}

	results, err := h.service.Search(ctx, s, params)
	if err != nil {
		handleServiceError(w, ctx, log, err, false)
		return
	}

	log.Info(ctx, "manual search",
		logger.Module("manuals"),
		logger.Action("search"),
		zap.String("building_id", params.BuildingID),
		zap.Int("results", len(results)),
	)

	writeJSON(w, http.StatusOK, results)
}

func searchParams(w http.ResponseWriter, r *http.Request) (domain.SearchParams, bool) {
	ctx := r.Context()
	q := r.URL.Query()

	params := domain.SearchParams{
		BuildingID: chi.URLParam(r, "buildingId"),
		Query:      q.Get("q"),
	}

	equipmentType, ok := equipmentTypeParam(w, r)
	if !ok {
		return params, false
	}
	params.EquipmentType = equipmentType

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "limit must be an integer")
			return params, false
		}
		params.MaxResults = n
	}

	if err := params.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return params, false
	}
	return params, true
}
