package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"bmai-api/internal/domain"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/service"
	"bmai-api/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBuildings backs both the admin service and the session catalog so admin
// writes can be observed through open sessions.
type memBuildings struct {
	mu        sync.Mutex
	buildings map[string]domain.Building
	nextID    int
}

func newMemBuildings(buildings ...domain.Building) *memBuildings {
	m := &memBuildings{buildings: make(map[string]domain.Building)}
	for _, b := range buildings {
		m.buildings[b.ID] = b
	}
	return m
}

func (m *memBuildings) ListActive(ctx context.Context) ([]domain.Building, error) {
	return m.List(ctx, domain.ListBuildingsParams{})
}

func (m *memBuildings) List(_ context.Context, params domain.ListBuildingsParams) ([]domain.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Building, 0, len(m.buildings))
	for _, b := range m.buildings {
		if b.IsArchived != params.Archived {
			continue
		}
		if params.Region != nil && b.Region != *params.Region {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memBuildings) Get(_ context.Context, id string) (*domain.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buildings[id]
	if !ok {
		return nil, domain.ErrBuildingNotFound
	}
	return &b, nil
}

func (m *memBuildings) Create(_ context.Context, req *domain.CreateBuildingRequest) (*domain.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b := domain.Building{
		ID:      "new-" + string(rune('0'+m.nextID)),
		Name:    req.Name,
		Address: req.Address,
		Region:  req.Region,
		Status:  req.Status,
		Notes:   req.Notes,
	}
	m.buildings[b.ID] = b
	return &b, nil
}

func (m *memBuildings) Update(_ context.Context, id string, req *domain.UpdateBuildingRequest) (*domain.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buildings[id]
	if !ok {
		return nil, domain.ErrBuildingNotFound
	}
	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Region != nil {
		b.Region = *req.Region
	}
	if req.Status != nil {
		b.Status = *req.Status
	}
	m.buildings[id] = b
	return &b, nil
}

func (m *memBuildings) SetArchived(_ context.Context, id string, archived bool) (*domain.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buildings[id]
	if !ok {
		return nil, domain.ErrBuildingNotFound
	}
	b.IsArchived = archived
	m.buildings[id] = b
	return &b, nil
}

func (m *memBuildings) ExistingIDs(_ context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range ids {
		if _, ok := m.buildings[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.UserProfile
}

func (m *memProfiles) GetProfile(_ context.Context, id string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrProfileMissing
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) GetPrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	p, err := m.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.ToPrincipal(), nil
}

func (m *memProfiles) UpdateScope(_ context.Context, id string, scope *domain.UpdateUserScopeRequest) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrProfileMissing
	}
	p.Role = scope.Role
	p.Region = scope.Region
	p.BuildingIDs = scope.BuildingIDs
	cp := *p
	return &cp, nil
}

func (m *memProfiles) Create(_ context.Context, id, email, fullName string, scope *domain.UpdateUserScopeRequest) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &domain.UserProfile{UserID: id, Email: email, FullName: fullName, Role: scope.Role, Region: scope.Region, BuildingIDs: scope.BuildingIDs}
	m.profiles[id] = p
	cp := *p
	return &cp, nil
}

type adminFixture struct {
	buildings *BuildingHandler
	users     *UserHandler
	store     *memBuildings
	manager   *session.Manager
}

func newAdminFixture() *adminFixture {
	wa := "WA"
	store := newMemBuildings(testCatalog()...)
	profiles := &memProfiles{profiles: map[string]*domain.UserProfile{
		"admin-1":  {UserID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin},
		"tech-1":   {UserID: "tech-1", Email: "tech@example.com", Role: domain.RoleTechnician, Region: &wa},
		"client-1": {UserID: "client-1", Email: "client@example.com", Role: domain.RoleClient, BuildingIDs: []string{"b2"}},
	}}

	manager := session.NewManager(session.Deps{
		Resolver: session.NewResolver(profiles, nil),
		Catalog:  store,
	}, session.ManagerConfig{})

	return &adminFixture{
		buildings: NewBuildingHandler(service.NewBuildingService(store, nil, manager, nil)),
		users:     NewUserHandler(service.NewUserService(profiles, store, nil, nil, manager, nil)),
		store:     store,
		manager:   manager,
	}
}

func (f *adminFixture) open(t *testing.T, principalID string) *session.Session {
	t.Helper()
	s, err := f.manager.Acquire(context.Background(), principalID)
	require.NoError(t, err)
	return s
}

func accessibleIDs(s *session.Session) []string {
	var ids []string
	for _, b := range s.Accessible().Buildings {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestBuildingHandler_AdminOnly(t *testing.T) {
	f := newAdminFixture()
	tech := f.open(t, "tech-1")

	rr := httptest.NewRecorder()
	f.buildings.ListBuildings(rr, newRequest(http.MethodGet, "/v1/buildings", nil, tech))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, httperr.ErrCodeForbidden, errorCode(t, rr))

	rr = httptest.NewRecorder()
	f.buildings.ArchiveBuilding(rr, newRequest(http.MethodPost, "/v1/buildings/b1/archive", nil, tech, "buildingId", "b1"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Len(t, accessibleIDs(tech), 2)
}

func TestBuildingHandler_List(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")

	rr := httptest.NewRecorder()
	f.buildings.ListBuildings(rr, newRequest(http.MethodGet, "/v1/buildings?region=wa", nil, adm))

	require.Equal(t, http.StatusOK, rr.Code)
	var buildings []domain.Building
	decodeData(t, rr, &buildings)
	require.Len(t, buildings, 2)
	assert.Equal(t, "Bunbury Plaza", buildings[0].Name)
	assert.Equal(t, "Perth Tower", buildings[1].Name)
}

func TestBuildingHandler_ListInvalidParams(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")

	for _, target := range []string{"/v1/buildings?region=XX", "/v1/buildings?archived=maybe"} {
		rr := httptest.NewRecorder()
		f.buildings.ListBuildings(rr, newRequest(http.MethodGet, target, nil, adm))
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, httperr.ErrCodeInvalidParameter, errorCode(t, rr), target)
	}
}

func TestBuildingHandler_CreateValidation(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")

	rr := httptest.NewRecorder()
	f.buildings.CreateBuilding(rr, newRequest(http.MethodPost, "/v1/buildings", map[string]string{"name": " ", "region": "XX"}, adm))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	require.NotNil(t, env.Error)
	assert.Equal(t, httperr.ErrCodeValidationError, env.Error.Code)
	assert.Equal(t, "required", env.Error.Fields["name"])
	assert.Equal(t, "region", env.Error.Fields["region"])
}

func TestBuildingHandler_CreateRefreshesSessions(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")
	tech := f.open(t, "tech-1")

	rr := httptest.NewRecorder()
	f.buildings.CreateBuilding(rr, newRequest(http.MethodPost, "/v1/buildings", map[string]string{"name": "Albany Depot", "region": "WA"}, adm))

	require.Equal(t, http.StatusCreated, rr.Code)
	var created domain.Building
	decodeData(t, rr, &created)
	assert.Equal(t, domain.BuildingStatusOnline, created.Status)

	assert.Equal(t, []string{created.ID, "b3", "b1"}, accessibleIDs(tech))
	assert.Len(t, accessibleIDs(adm), 4)
}

func TestBuildingHandler_ArchiveRepairsSelection(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")
	tech := f.open(t, "tech-1")
	require.Equal(t, "b3", tech.Selection().Selected.ID)

	rr := httptest.NewRecorder()
	f.buildings.ArchiveBuilding(rr, newRequest(http.MethodPost, "/v1/buildings/b3/archive", nil, adm, "buildingId", "b3"))

	require.Equal(t, http.StatusOK, rr.Code)
	var archived domain.Building
	decodeData(t, rr, &archived)
	assert.True(t, archived.IsArchived)

	assert.Equal(t, []string{"b1"}, accessibleIDs(tech))
	assert.Equal(t, "b1", tech.Selection().Selected.ID)

	rr = httptest.NewRecorder()
	f.buildings.RestoreBuilding(rr, newRequest(http.MethodPost, "/v1/buildings/b3/restore", nil, adm, "buildingId", "b3"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"b3", "b1"}, accessibleIDs(tech))
	assert.Equal(t, "b1", tech.Selection().Selected.ID, "selection still accessible is kept")
}

func TestBuildingHandler_UpdateErrors(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")

	rr := httptest.NewRecorder()
	f.buildings.UpdateBuilding(rr, newRequest(http.MethodPatch, "/v1/buildings/b1", map[string]string{}, adm, "buildingId", "b1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, httperr.ErrCodeValidationError, errorCode(t, rr))

	rr = httptest.NewRecorder()
	f.buildings.UpdateBuilding(rr, newRequest(http.MethodPatch, "/v1/buildings/ghost", map[string]string{"name": "X"}, adm, "buildingId", "ghost"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, httperr.ErrCodeNotFound, errorCode(t, rr))

	rr = httptest.NewRecorder()
	f.buildings.GetBuilding(rr, newRequest(http.MethodGet, "/v1/buildings/b2", nil, adm, "buildingId", "b2"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBuildingHandler_UpdateRegionMovesBuilding(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")
	tech := f.open(t, "tech-1")

	rr := httptest.NewRecorder()
	f.buildings.UpdateBuilding(rr, newRequest(http.MethodPatch, "/v1/buildings/b2", map[string]string{"region": "WA"}, adm, "buildingId", "b2"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"b2", "b3", "b1"}, accessibleIDs(tech))
}

func TestUserHandler_UpdateScopeRefreshesTarget(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")
	client := f.open(t, "client-1")
	require.Equal(t, []string{"b2"}, accessibleIDs(client))

	rr := httptest.NewRecorder()
	body := map[string]interface{}{"role": "client", "buildingIds": []string{"b1", "b3"}}
	f.users.UpdateScope(rr, newRequest(http.MethodPut, "/v1/users/client-1/scope", body, adm, "userId", "client-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	var profile domain.UserProfile
	decodeData(t, rr, &profile)
	assert.Equal(t, []string{"b1", "b3"}, profile.BuildingIDs)

	assert.Equal(t, []string{"b3", "b1"}, accessibleIDs(client))
	assert.Equal(t, "b3", client.Selection().Selected.ID)
}

func TestUserHandler_UpdateScopeErrors(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		body   map[string]interface{}
		status int
		code   string
	}{
		{name: "technician without region", userID: "tech-1", body: map[string]interface{}{"role": "technician"}, status: http.StatusBadRequest, code: httperr.ErrCodeValidationError},
		{name: "unknown role", userID: "tech-1", body: map[string]interface{}{"role": "owner"}, status: http.StatusBadRequest, code: httperr.ErrCodeValidationError},
		{name: "unknown buildings", userID: "client-1", body: map[string]interface{}{"role": "client", "buildingIds": []string{"ghost"}}, status: http.StatusBadRequest, code: httperr.ErrCodeUnknownBuildings},
		{name: "unknown user", userID: "nobody", body: map[string]interface{}{"role": "admin"}, status: http.StatusNotFound, code: httperr.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			adm := f.open(t, "admin-1")

			rr := httptest.NewRecorder()
			f.users.UpdateScope(rr, newRequest(http.MethodPut, "/v1/users/"+tt.userID+"/scope", tt.body, adm, "userId", tt.userID))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, errorCode(t, rr))
		})
	}
}

func TestUserHandler_EmptyClientScopeSeesNothing(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")
	tech := f.open(t, "tech-1")

	rr := httptest.NewRecorder()
	body := map[string]interface{}{"role": "client", "buildingIds": []string{}}
	f.users.UpdateScope(rr, newRequest(http.MethodPut, "/v1/users/tech-1/scope", body, adm, "userId", "tech-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, accessibleIDs(tech))
	assert.Nil(t, tech.Selection().Selected)
}

func TestUserHandler_GetUser(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")

	rr := httptest.NewRecorder()
	f.users.GetUser(rr, newRequest(http.MethodGet, "/v1/users/tech-1", nil, adm, "userId", "tech-1"))
	require.Equal(t, http.StatusOK, rr.Code)
	var profile domain.UserProfile
	decodeData(t, rr, &profile)
	assert.Equal(t, domain.RoleTechnician, profile.Role)

	rr = httptest.NewRecorder()
	f.users.GetUser(rr, newRequest(http.MethodGet, "/v1/users/nobody", nil, adm, "userId", "nobody"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserHandler_InviteDisabled(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")

	rr := httptest.NewRecorder()
	body := map[string]interface{}{
		"email":        "new@example.com",
		"fullName":     "New Client",
		"role":         "client",
		"buildingIds":  []string{"b1"},
		"tempPassword": "temporary-pass",
	}
	f.users.InviteUser(rr, newRequest(http.MethodPost, "/v1/users/invite", body, adm))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, httperr.ErrCodeServiceUnavailable, errorCode(t, rr))
}

func TestUserHandler_InviteValidation(t *testing.T) {
	f := newAdminFixture()
	adm := f.open(t, "admin-1")

	rr := httptest.NewRecorder()
	f.users.InviteUser(rr, newRequest(http.MethodPost, "/v1/users/invite", map[string]interface{}{"email": "not-an-email"}, adm))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	require.NotNil(t, env.Error)
	assert.Equal(t, "email", env.Error.Fields["email"])
	assert.Equal(t, "required", env.Error.Fields["tempPassword"])
}
