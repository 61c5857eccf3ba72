package service

import (
	"context"
	"errors"
	"testing"

	"bmai-api/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func equipment(t domain.EquipmentType) *domain.EquipmentType { return &t }

func newManualFixture() (*ManualService, *fakeManualStore) {
	store := newFakeManualStore(
		domain.Manual{ID: "m1", BuildingID: "b1", Name: "Chiller O&M", EquipmentType: equipment(domain.EquipmentHVAC)},
		domain.Manual{ID: "m2", BuildingID: "b1", Name: "Lift Controller", EquipmentType: equipment(domain.EquipmentLift)},
		domain.Manual{ID: "m9", BuildingID: "b9", Name: "Fire Panel", EquipmentType: equipment(domain.EquipmentFire)},
	)
	store.sections["m1"] = []domain.ManualSection{
		{ID: "s1", ManualID: "m1", SectionTitle: "Introduction", OrderIndex: 0},
		{ID: "s1.1", ManualID: "m1", ParentSectionID: strPtr("s1"), SectionTitle: "Safety", OrderIndex: 0},
		{ID: "s2", ManualID: "m1", SectionTitle: "Maintenance", OrderIndex: 1},
	}
	return NewManualService(store, nil), store
}

func TestManualService_ListManualsGatedByAccess(t *testing.T) {
	svc, store := newManualFixture()
	scope := scopeOf(technicianActor(), "b1")

	manuals, err := svc.ListManuals(context.Background(), scope, "b1", domain.ListManualsParams{EquipmentType: equipment(domain.EquipmentLift)})
	require.NoError(t, err)
	require.Len(t, manuals, 1)
	assert.Equal(t, "m2", manuals[0].ID)

	_, err = svc.ListManuals(context.Background(), scope, "b9", domain.ListManualsParams{})
	assert.ErrorIs(t, err, domain.ErrNotAccessible)
	assert.Equal(t, []string{"b1"}, store.listCalls, "inaccessible building never reaches the store")
}

func TestManualService_StoreFailureIsFetchError(t *testing.T) {
	svc, store := newManualFixture()
	store.err = errors.New("connection reset")

	_, err := svc.ListManuals(context.Background(), scopeOf(adminActor(), "b1"), "b1", domain.ListManualsParams{})

	fe, ok := domain.IsFetchError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "list manuals", fe.Op)
}

func TestManualService_ListSections(t *testing.T) {
	svc, _ := newManualFixture()
	ctx := context.Background()
	scope := scopeOf(clientActor("c1", "b1"), "b1")

	top, err := svc.ListSections(ctx, scope, "m1", nil)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "s1", top[0].ID)
	assert.Equal(t, "s2", top[1].ID)

	children, err := svc.ListSections(ctx, scope, "m1", strPtr("s1"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Safety", children[0].SectionTitle)
}

func TestManualService_SectionsOfInaccessibleManualNotFound(t *testing.T) {
	svc, _ := newManualFixture()
	scope := scopeOf(clientActor("c1", "b1"), "b1")

	_, err := svc.ListSections(context.Background(), scope, "m9", nil)
	assert.ErrorIs(t, err, domain.ErrManualNotFound)

	_, err = svc.ListSections(context.Background(), scope, "ghost", nil)
	assert.ErrorIs(t, err, domain.ErrManualNotFound)
}

func TestManualService_SearchLogsQuery(t *testing.T) {
	svc, store := newManualFixture()
	store.results = []domain.SearchResult{{ContentID: "c1", ManualID: "m1", ManualName: "Chiller O&M", Rank: 0.4}}
	scope := scopeOf(technicianActor(), "b1")

	params := domain.SearchParams{BuildingID: "b1", Query: "  compressor reset "}
	require.NoError(t, params.Validate())

	results, err := svc.Search(context.Background(), scope, params)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, store.searchCalls, 1)
	assert.Equal(t, "compressor reset", store.searchCalls[0].Query)
	assert.Equal(t, domain.DefaultSearchResults, store.searchCalls[0].MaxResults)

	require.Len(t, store.logged, 1)
	assert.Equal(t, domain.SearchLogEntry{Query: "compressor reset", BuildingID: "b1", UserID: "tech-1", ResultsReturned: 1}, store.logged[0])
}

func TestManualService_SearchLogFailureIgnored(t *testing.T) {
	svc, store := newManualFixture()
	store.logErr = errors.New("insert failed")

	results, err := svc.Search(context.Background(), scopeOf(adminActor(), "b1"), domain.SearchParams{BuildingID: "b1", Query: "pump", MaxResults: 5})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestManualService_SearchInaccessibleBuilding(t *testing.T) {
	svc, store := newManualFixture()

	_, err := svc.Search(context.Background(), scopeOf(technicianActor(), "b1"), domain.SearchParams{BuildingID: "b9", Query: "panel", MaxResults: 5})

	assert.ErrorIs(t, err, domain.ErrNotAccessible)
	assert.Empty(t, store.searchCalls)
	assert.Empty(t, store.logged)
}
