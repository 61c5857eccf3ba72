package httperr

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"bmai-api/internal/observability/logger"

	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	OK    bool         `json:"ok"`
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information
type ErrorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	ErrorID   string            `json:"error_id,omitempty"`
}

// DataResponse is the success envelope
type DataResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

// Error codes for 401 Unauthorized (authentication failures)
const (
	ErrCodeMissingAuthorization = "MISSING_AUTHORIZATION"
	ErrCodeInvalidScheme        = "INVALID_SCHEME"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeInvalidIssuer        = "INVALID_ISSUER"
	ErrCodeInvalidAudience      = "INVALID_AUDIENCE"
	ErrCodeNotAuthenticated     = "NOT_AUTHENTICATED"
)

// Error codes for 403 Forbidden (authenticated but not allowed)
const (
	ErrCodeProfileMissing = "PROFILE_MISSING"
	ErrCodeNotAccessible  = "NOT_ACCESSIBLE"
	ErrCodeForbidden      = "FORBIDDEN"
)

// Error codes for 4xx request errors
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeValidationError  = "VALIDATION_ERROR"
	ErrCodeUnknownBuildings = "UNKNOWN_BUILDINGS"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

// Error codes for 5xx
const (
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeFetchFailed        = "FETCH_FAILED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	logFailure(ctx, status, code, message)
	writeEnvelope(w, status, &ErrorDetail{Code: code, Message: message})
}

// WriteErrorWithFields writes a standardized error response with field-level details
func WriteErrorWithFields(w http.ResponseWriter, ctx context.Context, status int, code, message string, fields map[string]string) {
	extra := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		extra = append(extra, zap.String("field_"+k, v))
	}
	logFailure(ctx, status, code, message, extra...)

	writeEnvelope(w, status, &ErrorDetail{Code: code, Message: message, Fields: fields})
}

// Unauthorized401 writes a 401 Unauthorized response
func Unauthorized401(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusUnauthorized, code, message)
}

// Forbidden403 writes a 403 Forbidden response
func Forbidden403(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusForbidden, code, message)
}

// NotFound404 writes a 404 Not Found response
func NotFound404(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, message)
}

// BadRequest400 writes a 400 Bad Request response
func BadRequest400(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusBadRequest, code, message)
}

// BadRequest400WithFields writes a 400 Bad Request response with field-level errors
func BadRequest400WithFields(w http.ResponseWriter, ctx context.Context, code, message string, fields map[string]string) {
	WriteErrorWithFields(w, ctx, http.StatusBadRequest, code, message, fields)
}

// FetchFailed503 writes a retryable 503 for transient backing-store failures.
// The client keeps its last good state and may retry after retryAfterSeconds.
func FetchFailed503(w http.ResponseWriter, ctx context.Context, message string, retryAfterSeconds int) {
	logFailure(ctx, http.StatusServiceUnavailable, ErrCodeFetchFailed, message)

	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeEnvelope(w, http.StatusServiceUnavailable, &ErrorDetail{
		Code:      ErrCodeFetchFailed,
		Message:   message,
		Retryable: true,
	})
}

// InternalError500 writes a 500 Internal Server Error response
func InternalError500(w http.ResponseWriter, ctx context.Context, message string) {
	reqID := logger.GetRequestIDFromContext(ctx)

	log := logger.GetLogger(ctx)
	log.Error(ctx, "internal server error",
		zap.String("message", message),
		zap.String("request_id", reqID),
	)

	// In prod, return generic message for security
	detail := &ErrorDetail{
		Code:    ErrCodeInternalError,
		Message: "Internal Server Error",
	}
	if os.Getenv("APP_ENV") == "dev" {
		detail.ErrorID = reqID
	}

	writeEnvelope(w, http.StatusInternalServerError, detail)
}

// InternalError is an alias for InternalError500
func InternalError(w http.ResponseWriter, ctx context.Context) {
	InternalError500(w, ctx, "internal server error")
}

// WriteData writes the success envelope {"ok":true,"data":...}
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(DataResponse{OK: true, Data: data})
}

func writeEnvelope(w http.ResponseWriter, status int, detail *ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{OK: false, Error: detail})
}

// logFailure logs client errors at warn and server errors at error level.
func logFailure(ctx context.Context, status int, code, message string, extra ...zap.Field) {
	log := logger.GetLogger(ctx)

	fields := make([]zap.Field, 0, len(extra)+3)
	fields = append(fields,
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
	)
	fields = append(fields, extra...)

	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", fields...)
		return
	}
	log.Warn(ctx, "request failed", fields...)
}
