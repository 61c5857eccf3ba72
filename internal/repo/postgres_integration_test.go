package repo_test

import (
	"context"
	"os"
	"testing"

	"bmai-api/internal/database"
	"bmai-api/internal/domain"
	"bmai-api/internal/repo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPool migrates and connects to DATABASE_URL, skipping when unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping postgres integration test")
	}

	require.NoError(t, database.RunMigrations(url))

	pool, err := database.NewPool(context.Background(), url, database.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func containsBuilding(buildings []domain.Building, id string) bool {
	for _, b := range buildings {
		if b.ID == id {
			return true
		}
	}
	return false
}

func TestBuildingRepository_Lifecycle(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	buildings := repo.NewBuildingRepository(pool)

	req := &domain.CreateBuildingRequest{
		Name:   "Integration Tower " + uuid.NewString()[:8],
		Region: "WA",
	}
	require.NoError(t, req.Validate())

	created, err := buildings.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.BuildingStatusOnline, created.Status)
	assert.Zero(t, created.DocumentCount)

	active, err := buildings.ListActive(ctx)
	require.NoError(t, err)
	assert.True(t, containsBuilding(active, created.ID))

	existing, err := buildings.ExistingIDs(ctx, []string{created.ID, "missing-" + uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, existing)

	region := "NSW"
	updated, err := buildings.Update(ctx, created.ID, &domain.UpdateBuildingRequest{Region: &region})
	require.NoError(t, err)
	assert.Equal(t, "NSW", updated.Region)

	archived, err := buildings.SetArchived(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	active, err = buildings.ListActive(ctx)
	require.NoError(t, err)
	assert.False(t, containsBuilding(active, created.ID), "archived buildings leave the active catalog")

	_, err = buildings.Get(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrBuildingNotFound)
}

func TestProfileRepository_ScopeRoundTrip(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	profiles := repo.NewProfileRepository(pool)

	userID := uuid.NewString()
	email := userID + "@example.com"

	created, err := profiles.Create(ctx, userID, email, "Client User", &domain.UpdateUserScopeRequest{
		Role:        domain.RoleClient,
		BuildingIDs: []string{"b1", "b2"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, created.Role)
	assert.Equal(t, []string{"b1", "b2"}, created.BuildingIDs)

	principal, err := profiles.GetPrincipal(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientScope{BuildingIDs: []string{"b1", "b2"}}, principal.Scope)

	_, err = profiles.Create(ctx, userID, email, "Client User", &domain.UpdateUserScopeRequest{Role: domain.RoleClient})
	assert.ErrorIs(t, err, repo.ErrProfileExists)

	region := "QLD"
	scope := &domain.UpdateUserScopeRequest{Role: domain.RoleTechnician, Region: &region, BuildingIDs: []string{"b1"}}
	require.NoError(t, scope.Validate())

	updated, err := profiles.UpdateScope(ctx, userID, scope)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTechnician, updated.Role)
	assert.Empty(t, updated.BuildingIDs)

	principal, err = profiles.GetPrincipal(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TechnicianScope{Region: "QLD"}, principal.Scope)

	_, err = profiles.GetPrincipal(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrProfileMissing)
}

func TestManualRepository_ListSectionsAndSearch(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	b, err := repo.NewBuildingRepository(pool).Create(ctx, &domain.CreateBuildingRequest{
		Name: "Manual Tower " + uuid.NewString()[:8], Region: "WA", Status: domain.BuildingStatusOnline,
	})
	require.NoError(t, err)

	suffix := uuid.NewString()[:8]
	liftID, chillerID := "lift-"+suffix, "chiller-"+suffix
	introID, safetyID := "intro-"+suffix, "safety-"+suffix
	_, err = pool.Exec(ctx, `
		INSERT INTO manuals (id, building_id, name, equipment_type, processing_status, manufacturer)
		VALUES ($1, $3, 'Lift Controller', 'Lift', 'completed', NULL),
		       ($2, $3, 'Chiller O&M', 'HVAC', 'completed', 'Carrier')
	`, liftID, chillerID, b.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO manual_sections (id, manual_id, parent_section_id, section_title, depth_level, order_index)
		VALUES ($1, $3, NULL, 'Introduction', 0, 0),
		       ($2, $3, $1, 'Safety', 1, 0)
	`, introID, safetyID, chillerID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO manual_content (id, section_id, content_text, page_number)
		VALUES ($1, $2, 'Isolate the compressor before opening the refrigerant circuit.', 4)
	`, "content-"+suffix, safetyID)
	require.NoError(t, err)

	manuals := repo.NewManualRepository(pool)

	all, err := manuals.ListByBuilding(ctx, b.ID, domain.ListManualsParams{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Chiller O&M", all[0].Name, "ordered by name")
	assert.Equal(t, "Lift Controller", all[1].Name)

	lift := domain.EquipmentLift
	filtered, err := manuals.ListByBuilding(ctx, b.ID, domain.ListManualsParams{EquipmentType: &lift})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, liftID, filtered[0].ID)

	top, err := manuals.ListSections(ctx, chillerID, nil)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, introID, top[0].ID)

	children, err := manuals.ListSections(ctx, chillerID, &introID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, safetyID, children[0].ID)

	params := domain.SearchParams{BuildingID: b.ID, Query: "compressor"}
	require.NoError(t, params.Validate())
	results, err := manuals.SearchKeyword(ctx, params)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chillerID, results[0].ManualID)
	require.NotNil(t, results[0].PageNumber)
	assert.Equal(t, 4, *results[0].PageNumber)
	require.NotNil(t, results[0].Manufacturer)
	assert.Equal(t, "Carrier", *results[0].Manufacturer)

	params = domain.SearchParams{BuildingID: b.ID, Query: "compressor", EquipmentType: &lift}
	require.NoError(t, params.Validate())
	results, err = manuals.SearchKeyword(ctx, params)
	require.NoError(t, err)
	assert.Empty(t, results, "equipment filter excludes the chiller manual")

	require.NoError(t, manuals.LogSearch(ctx, domain.SearchLogEntry{Query: "compressor", BuildingID: b.ID, UserID: "u1", ResultsReturned: 1}))

	_, err = manuals.Get(ctx, "missing-"+suffix)
	assert.ErrorIs(t, err, domain.ErrManualNotFound)
}

func TestServiceRequestRepository_Lifecycle(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	b, err := repo.NewBuildingRepository(pool).Create(ctx, &domain.CreateBuildingRequest{
		Name: "Request Tower " + uuid.NewString()[:8], Region: "WA", Status: domain.BuildingStatusOnline,
	})
	require.NoError(t, err)

	requests := repo.NewServiceRequestRepository(pool)

	req := &domain.CreateServiceRequestRequest{Title: "Chiller noise", Description: "Grinding from plant room", Category: domain.EquipmentHVAC}
	require.NoError(t, req.Validate())
	created, err := requests.Create(ctx, b.ID, "client-1", req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, domain.PriorityMedium, created.Priority)

	notes := "replaced bearing"
	resolved, err := requests.UpdateStatus(ctx, created.ID, "tech-1", domain.StatusPending,
		&domain.UpdateServiceRequestStatusRequest{Status: domain.StatusResolved, ResolutionNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedByUserID)
	assert.Equal(t, "tech-1", *resolved.ResolvedByUserID)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = requests.UpdateStatus(ctx, created.ID, "tech-1", domain.StatusPending,
		&domain.UpdateServiceRequestStatusRequest{Status: domain.StatusDispatched})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "stale from status is rejected")

	open, err := requests.ListByBuilding(ctx, b.ID, domain.ListServiceRequestsParams{})
	require.NoError(t, err)
	assert.Empty(t, open, "resolved requests are hidden by default")

	all, err := requests.ListByBuilding(ctx, b.ID, domain.ListServiceRequestsParams{IncludeResolved: true})
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = requests.AddComment(ctx, created.ID, "client-1", "Thanks, all quiet now")
	require.NoError(t, err)

	thread, err := requests.ListComments(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, domain.CommentStatusChange, thread[0].CommentType)
	assert.Equal(t, domain.CommentNote, thread[1].CommentType)

	require.NoError(t, requests.Deactivate(ctx, created.ID))
	_, err = requests.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrServiceRequestNotFound)
	assert.ErrorIs(t, requests.Deactivate(ctx, created.ID), domain.ErrServiceRequestNotFound)
}
