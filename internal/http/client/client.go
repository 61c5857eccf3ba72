package client

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultExternalTimeout bounds calls to third-party APIs.
const DefaultExternalTimeout = 30 * time.Second

const maxRedirects = 10

// NewExternalHTTPClient creates an http.Client for third-party APIs (the auth
// provider admin API). Outbound requests carry X-Request-Id from the context
// and a client span.
//
// timeout <= 0 uses DefaultExternalTimeout; http.DefaultClient has no timeout.
func NewExternalHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}

	base := http.DefaultTransport.(*http.Transport).Clone()

	return &http.Client{
		Transport: NewRequestIDTransport(otelhttp.NewTransport(base)),
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
