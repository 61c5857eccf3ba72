package auth

import (
	"errors"

	"bmai-api/internal/http/httperr"
)

// AuthFailureReason is the logged cause of a rejected request.
type AuthFailureReason string

const (
	AuthFailureMissingAuthorization AuthFailureReason = "missing_authorization"
	AuthFailureInvalidScheme        AuthFailureReason = "invalid_scheme"
	AuthFailureInvalidSignature     AuthFailureReason = "invalid_signature"
	AuthFailureInvalidIssuer        AuthFailureReason = "invalid_issuer"
	AuthFailureInvalidAudience      AuthFailureReason = "invalid_audience"
	AuthFailureTokenExpired         AuthFailureReason = "token_expired"
	AuthFailureUnknown              AuthFailureReason = "unknown"
)

var reasonCodes = map[AuthFailureReason]string{
	AuthFailureMissingAuthorization: httperr.ErrCodeMissingAuthorization,
	AuthFailureInvalidScheme:        httperr.ErrCodeInvalidScheme,
	AuthFailureInvalidSignature:     httperr.ErrCodeInvalidSignature,
	AuthFailureInvalidIssuer:        httperr.ErrCodeInvalidIssuer,
	AuthFailureInvalidAudience:      httperr.ErrCodeInvalidAudience,
	AuthFailureTokenExpired:         httperr.ErrCodeTokenExpired,
}

// AuthError is an authentication failure with its reason.
type AuthError struct {
	Reason  AuthFailureReason
	Message string
	Err     error
}

func NewAuthError(reason AuthFailureReason, message string, err error) *AuthError {
	return &AuthError{Reason: reason, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Code is the error code returned to the client in the 401 envelope.
func (e *AuthError) Code() string {
	if e != nil {
		if code, ok := reasonCodes[e.Reason]; ok {
			return code
		}
	}
	return httperr.ErrCodeInvalidToken
}

// IsAuthError reports whether err wraps an *AuthError and returns it.
func IsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// maskToken keeps the first 12 characters of a token for log correlation.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:12] + "..."
}
