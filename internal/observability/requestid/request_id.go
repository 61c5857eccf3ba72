package requestid

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// Prefix marks ids generated by this service.
const Prefix = "req_"

// NewRequestID generates a time-ordered request ID: "req_" + UUIDv7.
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// entropy failure: fall back to a timestamp-only id
		return fmt.Sprintf("%s%d", Prefix, time.Now().UnixNano())
	}
	return Prefix + id.String()
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// SetRequestID stores request ID in context
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}
