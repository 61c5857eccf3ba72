package service

import (
	"context"
	"errors"
	"sync"

	"bmai-api/internal/domain"
	"bmai-api/internal/integrations/authadmin"
	"bmai-api/internal/repo"
)

var errStore = errors.New("store unavailable")

func adminActor() *domain.Principal {
	return &domain.Principal{ID: "admin-1", Scope: domain.AdminScope{}}
}

func technicianActor() *domain.Principal {
	return &domain.Principal{ID: "tech-1", Scope: domain.TechnicianScope{Region: "WA"}}
}

func strPtr(s string) *string { return &s }

type fakeBuildingStore struct {
	buildings map[string]domain.Building
	err       error
}

func newFakeBuildingStore(buildings ...domain.Building) *fakeBuildingStore {
	s := &fakeBuildingStore{buildings: map[string]domain.Building{}}
	for _, b := range buildings {
		s.buildings[b.ID] = b
	}
	return s
}

func (s *fakeBuildingStore) List(_ context.Context, params domain.ListBuildingsParams) ([]domain.Building, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Building, 0, len(s.buildings))
	for _, b := range s.buildings {
		if b.IsArchived != params.Archived {
			continue
		}
		if params.Region != nil && b.Region != *params.Region {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeBuildingStore) Get(_ context.Context, id string) (*domain.Building, error) {
	if s.err != nil {
		return nil, s.err
	}
	b, ok := s.buildings[id]
	if !ok {
		return nil, domain.ErrBuildingNotFound
	}
	return &b, nil
}

func (s *fakeBuildingStore) Create(_ context.Context, req *domain.CreateBuildingRequest) (*domain.Building, error) {
	if s.err != nil {
		return nil, s.err
	}
	b := domain.Building{ID: "new-building", Name: req.Name, Region: req.Region, Status: req.Status}
	s.buildings[b.ID] = b
	return &b, nil
}

func (s *fakeBuildingStore) Update(_ context.Context, id string, req *domain.UpdateBuildingRequest) (*domain.Building, error) {
	if s.err != nil {
		return nil, s.err
	}
	b, ok := s.buildings[id]
	if !ok {
		return nil, domain.ErrBuildingNotFound
	}
	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Region != nil {
		b.Region = *req.Region
	}
	s.buildings[id] = b
	return &b, nil
}

func (s *fakeBuildingStore) SetArchived(_ context.Context, id string, archived bool) (*domain.Building, error) {
	if s.err != nil {
		return nil, s.err
	}
	b, ok := s.buildings[id]
	if !ok {
		return nil, domain.ErrBuildingNotFound
	}
	b.IsArchived = archived
	s.buildings[id] = b
	return &b, nil
}

func (s *fakeBuildingStore) ExistingIDs(_ context.Context, ids []string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []string
	for _, id := range ids {
		if _, ok := s.buildings[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	entries []repo.AuditEntry
	err     error
}

func (a *fakeAuditor) LogAction(_ context.Context, entry repo.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return a.err
}

func (a *fakeAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeInvalidator struct {
	mu          sync.Mutex
	invalidated []string
	all         int
	err         error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, id)
	return f.err
}

func (f *fakeInvalidator) InvalidateAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all++
	return f.err
}

type fakeProfiles struct {
	profiles  map[string]*domain.UserProfile
	createErr error
}

func newFakeProfiles(profiles ...*domain.UserProfile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]*domain.UserProfile{}}
	for _, p := range profiles {
		f.profiles[p.UserID] = p
	}
	return f
}

func (f *fakeProfiles) GetProfile(_ context.Context, id string) (*domain.UserProfile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, domain.ErrProfileMissing
	}
	return p, nil
}

func (f *fakeProfiles) UpdateScope(_ context.Context, id string, scope *domain.UpdateUserScopeRequest) (*domain.UserProfile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, domain.ErrProfileMissing
	}
	p.Role = scope.Role
	p.Region = scope.Region
	p.BuildingIDs = scope.BuildingIDs
	return p, nil
}

func (f *fakeProfiles) Create(_ context.Context, id, email, fullName string, scope *domain.UpdateUserScopeRequest) (*domain.UserProfile, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := &domain.UserProfile{UserID: id, Email: email, FullName: fullName, Role: scope.Role, Region: scope.Region, BuildingIDs: scope.BuildingIDs}
	f.profiles[id] = p
	return p, nil
}

type fakeIdentity struct {
	createErr error
	created   []authadmin.CreateUserParams
	deleted   []string
}

func (f *fakeIdentity) CreateUser(_ context.Context, params authadmin.CreateUserParams) (*authadmin.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, params)
	return &authadmin.User{ID: "invited-1", Email: params.Email}, nil
}

func (f *fakeIdentity) DeleteUser(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func clientActor(id string, buildingIDs ...string) *domain.Principal {
	return &domain.Principal{ID: id, Scope: domain.ClientScope{BuildingIDs: buildingIDs}}
}

// fakeScope grants access to a fixed set of buildings.
type fakeScope struct {
	principal  *domain.Principal
	accessible map[string]bool
}

func scopeOf(p *domain.Principal, buildingIDs ...string) *fakeScope {
	s := &fakeScope{principal: p, accessible: map[string]bool{}}
	for _, id := range buildingIDs {
		s.accessible[id] = true
	}
	return s
}

func (s *fakeScope) Principal() *domain.Principal     { return s.principal }
func (s *fakeScope) CanAccess(buildingID string) bool { return s.accessible[buildingID] }

type fakeManualStore struct {
	manuals  map[string]domain.Manual
	sections map[string][]domain.ManualSection
	results  []domain.SearchResult
	err      error
	logErr   error

	listCalls   []string
	searchCalls []domain.SearchParams
	logged      []domain.SearchLogEntry
}

func newFakeManualStore(manuals ...domain.Manual) *fakeManualStore {
	s := &fakeManualStore{manuals: map[string]domain.Manual{}, sections: map[string][]domain.ManualSection{}}
	for _, m := range manuals {
		s.manuals[m.ID] = m
	}
	return s
}

func (s *fakeManualStore) ListByBuilding(_ context.Context, buildingID string, params domain.ListManualsParams) ([]domain.Manual, error) {
	s.listCalls = append(s.listCalls, buildingID)
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.Manual{}
	for _, m := range s.manuals {
		if m.BuildingID != buildingID {
			continue
		}
		if params.EquipmentType != nil && (m.EquipmentType == nil || *m.EquipmentType != *params.EquipmentType) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeManualStore) Get(_ context.Context, manualID string) (*domain.Manual, error) {
	if s.err != nil {
		return nil, s.err
	}
	m, ok := s.manuals[manualID]
	if !ok {
		return nil, domain.ErrManualNotFound
	}
	return &m, nil
}

func (s *fakeManualStore) ListSections(_ context.Context, manualID string, parentID *string) ([]domain.ManualSection, error) {
	out := []domain.ManualSection{}
	for _, sec := range s.sections[manualID] {
		if (parentID == nil) == (sec.ParentSectionID == nil) &&
			(parentID == nil || *parentID == *sec.ParentSectionID) {
			out = append(out, sec)
		}
	}
	return out, nil
}

func (s *fakeManualStore) SearchKeyword(_ context.Context, params domain.SearchParams) ([]domain.SearchResult, error) {
	s.searchCalls = append(s.searchCalls, params)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *fakeManualStore) LogSearch(_ context.Context, entry domain.SearchLogEntry) error {
	s.logged = append(s.logged, entry)
	return s.logErr
}

type fakeServiceRequestStore struct {
	requests map[string]*domain.ServiceRequest
	comments map[string][]domain.ServiceRequestComment
	err      error

	statusCalls int
}

func newFakeServiceRequestStore(requests ...domain.ServiceRequest) *fakeServiceRequestStore {
	s := &fakeServiceRequestStore{requests: map[string]*domain.ServiceRequest{}, comments: map[string][]domain.ServiceRequestComment{}}
	for i := range requests {
		sr := requests[i]
		s.requests[sr.ID] = &sr
	}
	return s
}

func (s *fakeServiceRequestStore) ListByBuilding(_ context.Context, buildingID string, params domain.ListServiceRequestsParams) ([]domain.ServiceRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.ServiceRequest{}
	for _, sr := range s.requests {
		if sr.BuildingID == buildingID {
			out = append(out, *sr)
		}
	}
	return out, nil
}

func (s *fakeServiceRequestStore) Get(_ context.Context, requestID string) (*domain.ServiceRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	sr, ok := s.requests[requestID]
	if !ok {
		return nil, domain.ErrServiceRequestNotFound
	}
	out := *sr
	return &out, nil
}

func (s *fakeServiceRequestStore) Create(_ context.Context, buildingID, createdBy string, req *domain.CreateServiceRequestRequest) (*domain.ServiceRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	sr := &domain.ServiceRequest{
		ID:              "sr-new",
		BuildingID:      buildingID,
		CreatedByUserID: createdBy,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Priority:        req.Priority,
		Status:          domain.StatusPending,
		Source:          req.Source,
	}
	s.requests[sr.ID] = sr
	return sr, nil
}

func (s *fakeServiceRequestStore) UpdateStatus(_ context.Context, requestID, actorID string, from domain.ServiceRequestStatus, req *domain.UpdateServiceRequestStatusRequest) (*domain.ServiceRequest, error) {
	s.statusCalls++
	sr, ok := s.requests[requestID]
	if !ok || sr.Status != from {
		return nil, domain.ErrInvalidTransition
	}
	sr.Status = req.Status
	if req.Status == domain.StatusResolved {
		sr.ResolvedByUserID = &actorID
		sr.ResolutionNotes = req.ResolutionNotes
	}
	s.comments[requestID] = append(s.comments[requestID], domain.ServiceRequestComment{
		RequestID: requestID, UserID: actorID, CommentType: domain.CommentStatusChange,
	})
	out := *sr
	return &out, nil
}

func (s *fakeServiceRequestStore) Deactivate(_ context.Context, requestID string) error {
	if _, ok := s.requests[requestID]; !ok {
		return domain.ErrServiceRequestNotFound
	}
	delete(s.requests, requestID)
	return nil
}

func (s *fakeServiceRequestStore) ListComments(_ context.Context, requestID string) ([]domain.ServiceRequestComment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.ServiceRequestComment{}, s.comments[requestID]...), nil
}

func (s *fakeServiceRequestStore) AddComment(_ context.Context, requestID, userID, text string) (*domain.ServiceRequestComment, error) {
	c := domain.ServiceRequestComment{
		ID: "c-" + requestID, RequestID: requestID, UserID: userID, CommentType: domain.CommentNote, CommentText: text,
	}
	s.comments[requestID] = append(s.comments[requestID], c)
	return &c, nil
}
