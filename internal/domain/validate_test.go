package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBuildingRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateBuildingRequest
		wantErr bool
	}{
		{name: "valid", req: CreateBuildingRequest{Name: "  Swan Plaza ", Region: "WA"}},
		{name: "missing name", req: CreateBuildingRequest{Name: "   ", Region: "WA"}, wantErr: true},
		{name: "unknown region", req: CreateBuildingRequest{Name: "X", Region: "XX"}, wantErr: true},
		{name: "bad status", req: CreateBuildingRequest{Name: "X", Region: "WA", Status: "burning"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Swan Plaza", tt.req.Name)
			assert.Equal(t, BuildingStatusOnline, tt.req.Status)
		})
	}
}

func TestUpdateBuildingRequest_Validate(t *testing.T) {
	bad := "ZZ"
	req := UpdateBuildingRequest{Region: &bad}
	assert.Error(t, req.Validate())

	good := "NSW"
	req = UpdateBuildingRequest{Region: &good}
	assert.NoError(t, req.Validate())
	assert.False(t, req.IsEmpty())
	assert.True(t, (&UpdateBuildingRequest{}).IsEmpty())
}

func TestUpdateUserScopeRequest_Validate(t *testing.T) {
	t.Run("technician requires region", func(t *testing.T) {
		req := UpdateUserScopeRequest{Role: RoleTechnician}
		assert.Error(t, req.Validate())
	})

	t.Run("technician drops building list", func(t *testing.T) {
		req := UpdateUserScopeRequest{Role: RoleTechnician, Region: strPtr("QLD"), BuildingIDs: []string{"b1"}}
		require.NoError(t, req.Validate())
		assert.Nil(t, req.BuildingIDs)
		assert.Equal(t, "QLD", *req.Region)
	})

	t.Run("client drops region", func(t *testing.T) {
		req := UpdateUserScopeRequest{Role: RoleClient, Region: strPtr("QLD"), BuildingIDs: []string{"b1"}}
		require.NoError(t, req.Validate())
		assert.Nil(t, req.Region)
		assert.Equal(t, []string{"b1"}, req.BuildingIDs)
	})

	t.Run("unknown role", func(t *testing.T) {
		req := UpdateUserScopeRequest{Role: Role("owner")}
		assert.Error(t, req.Validate())
	})

	t.Run("client ignores invalid region", func(t *testing.T) {
		req := UpdateUserScopeRequest{Role: RoleClient, Region: strPtr("Atlantis"), BuildingIDs: []string{"b1"}}
		require.NoError(t, req.Validate())
		assert.Nil(t, req.Region)
	})

	t.Run("admin ignores invalid region", func(t *testing.T) {
		req := UpdateUserScopeRequest{Role: RoleAdmin, Region: strPtr("Atlantis")}
		require.NoError(t, req.Validate())
		assert.Nil(t, req.Region)
	})

	t.Run("technician region still checked", func(t *testing.T) {
		req := UpdateUserScopeRequest{Role: RoleTechnician, Region: strPtr("Atlantis")}
		assert.Error(t, req.Validate())
	})
}

func TestInviteUserRequest_Validate(t *testing.T) {
	req := InviteUserRequest{
		Email:        " Ops@Example.com ",
		FullName:     "Ops Lead",
		Role:         RoleClient,
		BuildingIDs:  []string{"b1"},
		TempPassword: "longenough",
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "ops@example.com", req.Email)

	scope := req.Scope()
	assert.Equal(t, RoleClient, scope.Role)
	assert.Equal(t, []string{"b1"}, scope.BuildingIDs)

	req.TempPassword = "short"
	assert.Error(t, req.Validate())
}

func TestInviteUserRequest_ClientIgnoresInvalidRegion(t *testing.T) {
	req := InviteUserRequest{
		Email:        "client@example.com",
		FullName:     "Client",
		Role:         RoleClient,
		Region:       strPtr("Atlantis"),
		BuildingIDs:  []string{"b1"},
		TempPassword: "longenough",
	}
	require.NoError(t, req.Validate())
	assert.Nil(t, req.Region)
}

func TestSearchParams_Validate(t *testing.T) {
	p := SearchParams{BuildingID: "b1", Query: "  chiller reset "}
	require.NoError(t, p.Validate())
	assert.Equal(t, "chiller reset", p.Query)
	assert.Equal(t, DefaultSearchResults, p.MaxResults)

	tests := []struct {
		name   string
		params SearchParams
	}{
		{name: "blank query", params: SearchParams{Query: "   "}},
		{name: "single character after trim", params: SearchParams{Query: " a "}},
		{name: "limit above max", params: SearchParams{Query: "pump", MaxResults: MaxSearchResults + 1}},
		{name: "negative limit", params: SearchParams{Query: "pump", MaxResults: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.params.Validate())
		})
	}
}

func TestCreateServiceRequestRequest_Validate(t *testing.T) {
	req := CreateServiceRequestRequest{Title: " Leaking tap ", Description: " Level 3 ", Category: EquipmentPlumbing}
	require.NoError(t, req.Validate())
	assert.Equal(t, "Leaking tap", req.Title)
	assert.Equal(t, "Level 3", req.Description)
	assert.Equal(t, PriorityMedium, req.Priority)
	assert.Equal(t, SourceManual, req.Source)

	blank := CreateServiceRequestRequest{Title: "   ", Description: "d", Category: EquipmentHVAC}
	assert.Error(t, blank.Validate(), "title is checked after trimming")

	badPriority := CreateServiceRequestRequest{Title: "t", Description: "d", Category: EquipmentHVAC, Priority: "urgent"}
	assert.Error(t, badPriority.Validate())

	badCategory := CreateServiceRequestRequest{Title: "t", Description: "d", Category: "Boiler"}
	assert.Error(t, badCategory.Validate())
}

func TestUpdateServiceRequestStatusRequest_Validate(t *testing.T) {
	notes := "  swapped fan belt "

	req := UpdateServiceRequestStatusRequest{Status: StatusDispatched, ResolutionNotes: &notes}
	require.NoError(t, req.Validate())
	assert.Nil(t, req.ResolutionNotes, "notes only kept when resolving")

	req = UpdateServiceRequestStatusRequest{Status: StatusResolved, ResolutionNotes: &notes}
	require.NoError(t, req.Validate())
	require.NotNil(t, req.ResolutionNotes)
	assert.Equal(t, "swapped fan belt", *req.ResolutionNotes)

	req = UpdateServiceRequestStatusRequest{Status: "closed"}
	assert.Error(t, req.Validate())
}

func TestAddCommentRequest_Validate(t *testing.T) {
	req := AddCommentRequest{CommentText: "  on site at 9 "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "on site at 9", req.CommentText)

	assert.Error(t, (&AddCommentRequest{CommentText: "  "}).Validate())
}
