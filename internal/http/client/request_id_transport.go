package client

import (
	"net/http"

	"bmai-api/internal/observability/requestid"
)

// RequestIDHeader is the correlation header shared with upstream services.
const RequestIDHeader = "X-Request-Id"

// RequestIDTransport is an http.RoundTripper that copies the request id of
// the context into the X-Request-Id header of outbound requests.
type RequestIDTransport struct {
	base http.RoundTripper
}

// NewRequestIDTransport wraps base. A nil base means http.DefaultTransport.
func NewRequestIDTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RequestIDTransport{base: base}
}

// RoundTrip sets X-Request-Id unless the caller already did.
func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	reqID := requestid.GetRequestID(ctx)
	if reqID == "" {
		return t.base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request
	cloned := req.Clone(ctx)
	cloned.Header.Set(RequestIDHeader, reqID)
	return t.base.RoundTrip(cloned)
}
