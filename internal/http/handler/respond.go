package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"bmai-api/internal/domain"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/http/middleware"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/service"
	"bmai-api/internal/session"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// fetchRetryAfterSeconds is the Retry-After hint sent with FETCH_FAILED.
const fetchRetryAfterSeconds = 1

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	httperr.WriteData(w, status, data)
}

// decodeJSON reads a bounded JSON body into dst and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeValidationError answers 400 VALIDATION_ERROR with one entry per
// failing field, keyed by the field's JSON name.
func writeValidationError(w http.ResponseWriter, ctx context.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	httperr.BadRequest400WithFields(w, ctx, httperr.ErrCodeValidationError, "validation failed", fields)
}

// currentSession returns the session injected by SessionMiddleware. It writes
// 401 and returns false when the route was mounted without it.
func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := middleware.GetSession(r.Context())
	if !ok {
		httperr.Unauthorized401(w, r.Context(), httperr.ErrCodeNotAuthenticated, "authentication required")
		return nil, false
	}
	return s, true
}

// errorView is the inline error of a read model.
type errorView struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func toErrorView(err error) *errorView {
	if err == nil {
		return nil
	}
	if fe, ok := domain.IsFetchError(err); ok {
		return &errorView{Code: httperr.ErrCodeFetchFailed, Message: fe.Error(), Retryable: fe.Retryable()}
	}
	if errors.Is(err, domain.ErrProfileMissing) {
		return &errorView{Code: httperr.ErrCodeProfileMissing, Message: err.Error()}
	}
	return &errorView{Code: httperr.ErrCodeInternalError, Message: "internal error"}
}

// handleServiceError maps session and service errors onto the error envelope.
// Missing profiles mean different things on /v1/me (the caller has none) and
// on admin routes (the target user has none); targetNotFound selects the
// latter.
func handleServiceError(w http.ResponseWriter, ctx context.Context, log *logger.Logger, err error, targetNotFound bool) {
	if fe, ok := domain.IsFetchError(err); ok {
		log.Warn(ctx, "backing store fetch failed", zap.String("op", fe.Op), zap.Error(fe.Err))
		httperr.FetchFailed503(w, ctx, "backing store is temporarily unavailable", fetchRetryAfterSeconds)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, session.ErrSessionClosed):
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeNotAuthenticated, "not authenticated")
	case errors.Is(err, domain.ErrProfileMissing) && targetNotFound:
		httperr.NotFound404(w, ctx, "user not found")
	case errors.Is(err, domain.ErrProfileMissing):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeProfileMissing, "no profile is provisioned for this user")
	case errors.Is(err, domain.ErrNotAccessible):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeNotAccessible, "building is not accessible")
	case errors.Is(err, service.ErrForbidden):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "insufficient permissions for this action")
	case errors.Is(err, service.ErrBuildingNotFound):
		httperr.NotFound404(w, ctx, "building not found")
	case errors.Is(err, domain.ErrManualNotFound):
		httperr.NotFound404(w, ctx, "manual not found")
	case errors.Is(err, domain.ErrServiceRequestNotFound):
		httperr.NotFound404(w, ctx, "service request not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		httperr.WriteError(w, ctx, http.StatusConflict, httperr.ErrCodeConflict, err.Error())
	case errors.Is(err, service.ErrEmptyUpdate):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, "at least one field is required")
	case errors.Is(err, service.ErrUnknownBuildings):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeUnknownBuildings, err.Error())
	case errors.Is(err, service.ErrUserExists):
		httperr.WriteError(w, ctx, http.StatusConflict, httperr.ErrCodeConflict, "a user with this email already exists")
	case errors.Is(err, service.ErrInvitesDisabled):
		httperr.WriteError(w, ctx, http.StatusServiceUnavailable, httperr.ErrCodeServiceUnavailable, "user invitations are not configured")
	case errors.Is(err, context.Canceled):
		log.Debug(ctx, "request canceled by client")
	default:
		logger.SetRootError(ctx, err)
		log.Error(ctx, "unhandled internal server error", zap.Error(err))
		httperr.InternalError(w, ctx)
	}
}
