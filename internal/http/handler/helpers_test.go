package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bmai-api/internal/domain"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/http/middleware"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/session"
	"bmai-api/internal/session/sessiontest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	OK    bool                 `json:"ok"`
	Data  json.RawMessage      `json:"data"`
	Error *httperr.ErrorDetail `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	env := decodeEnvelope(t, rr)
	require.True(t, env.OK, "expected success envelope, got %+v", env.Error)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rr)
	require.False(t, env.OK)
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func testCatalog() []domain.Building {
	return []domain.Building{
		{ID: "b1", Name: "Perth Tower", Region: "WA", Status: domain.BuildingStatusOnline},
		{ID: "b2", Name: "Alpha House", Region: "NSW", Status: domain.BuildingStatusWarning},
		{ID: "b3", Name: "Bunbury Plaza", Region: "WA", Status: domain.BuildingStatusOnline},
	}
}

func technician(id, region string) *domain.Principal {
	return &domain.Principal{ID: id, Email: id + "@example.com", Scope: domain.TechnicianScope{Region: region}}
}

func admin(id string) *domain.Principal {
	return &domain.Principal{ID: id, Email: id + "@example.com", Scope: domain.AdminScope{}}
}

type sessionFixture struct {
	principals *sessiontest.Principals
	catalog    *sessiontest.Catalog
	manager    *session.Manager
}

func newSessionFixture(principals ...*domain.Principal) *sessionFixture {
	f := &sessionFixture{
		principals: sessiontest.NewPrincipals(principals...),
		catalog:    sessiontest.NewCatalog(testCatalog()...),
	}
	f.manager = sessiontest.NewManager(f.principals, f.catalog)
	return f
}

func (f *sessionFixture) open(t *testing.T, principalID string) *session.Session {
	t.Helper()
	s, err := f.manager.Acquire(context.Background(), principalID)
	require.NoError(t, err)
	return s
}

// newRequest builds a request carrying a nop logger, s and the chi URL params
// given as key/value pairs.
func newRequest(method, target string, body interface{}, s *session.Session, params ...string) *http.Request {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	ctx := logger.SetLoggerInContext(req.Context(), logger.NewNop())
	if s != nil {
		ctx = middleware.WithSession(ctx, s)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for i := 0; i+1 < len(params); i += 2 {
			rctx.URLParams.Add(params[i], params[i+1])
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}
