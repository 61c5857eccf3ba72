package domain

import "time"

// UserProfile is the profiles row joined with the user's role.
type UserProfile struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Role        Role      `json:"role"`
	Region      *string   `json:"region,omitempty"`
	BuildingIDs []string  `json:"buildingIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ToPrincipal resolves the profile into a Principal.
func (u *UserProfile) ToPrincipal() *Principal {
	return &Principal{
		ID:       u.UserID,
		Email:    u.Email,
		FullName: u.FullName,
		Scope:    NewScope(u.Role, u.Region, u.BuildingIDs),
	}
}

// UpdateUserScopeRequest sets a user's role and the scope attribute of that role.
type UpdateUserScopeRequest struct {
	Role        Role     `json:"role" validate:"required,oneof=admin technician client"`
	Region      *string  `json:"region" validate:"required_if=Role technician,omitempty,region"`
	BuildingIDs []string `json:"buildingIds" validate:"omitempty,dive,required"`
}

// Normalize drops the attribute that does not belong to the role, so a
// profile never carries both a region and a building list.
func (r *UpdateUserScopeRequest) Normalize() {
	switch r.Role {
	case RoleTechnician:
		r.BuildingIDs = nil
	case RoleClient:
		r.Region = nil
		if r.BuildingIDs == nil {
			r.BuildingIDs = []string{}
		}
	default:
		r.Region = nil
		r.BuildingIDs = nil
	}
}

// InviteUserRequest provisions a new identity with role and scope.
type InviteUserRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	FullName     string   `json:"fullName" validate:"required,max=200"`
	Role         Role     `json:"role" validate:"required,oneof=admin technician client"`
	Region       *string  `json:"region" validate:"required_if=Role technician,omitempty,region"`
	BuildingIDs  []string `json:"buildingIds" validate:"omitempty,dive,required"`
	TempPassword string   `json:"tempPassword" validate:"required,min=8"`
}

// Scope returns the scope part of the invite as an UpdateUserScopeRequest.
func (r *InviteUserRequest) Scope() *UpdateUserScopeRequest {
	s := &UpdateUserScopeRequest{Role: r.Role, Region: r.Region, BuildingIDs: r.BuildingIDs}
	s.Normalize()
	return s
}

// InvitedUser is returned after a successful invitation.
type InvitedUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}
