package domain

// =====================================================
// Role Constants (Type Safety)
// =====================================================

// Role represents an application role ID as stored in user_roles.role.
type Role string

const (
	// RoleAdmin sees every building and manages buildings and users
	RoleAdmin Role = "admin"

	// RoleTechnician sees the buildings of one region
	RoleTechnician Role = "technician"

	// RoleClient (facilities manager) sees an explicit list of buildings
	RoleClient Role = "client"
)

// String returns the string representation of the Role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleClient:
		return true
	default:
		return false
	}
}

// =====================================================
// Scope (tagged union over roles)
// =====================================================

// Scope is the role-specific access attribute of a principal.
// The concrete types are AdminScope, TechnicianScope and ClientScope; the
// unexported marker method keeps the set closed to this package.
type Scope interface {
	role() Role
}

// AdminScope grants the whole catalog.
type AdminScope struct{}

// TechnicianScope grants the buildings of a single region.
type TechnicianScope struct {
	Region string
}

// ClientScope grants an explicit list of building ids.
type ClientScope struct {
	BuildingIDs []string
}

func (AdminScope) role() Role      { return RoleAdmin }
func (TechnicianScope) role() Role { return RoleTechnician }
func (ClientScope) role() Role     { return RoleClient }

// NewScope builds the scope for a role from the raw profile attributes.
// Only the attribute that belongs to the role is consulted. An unknown role
// returns nil, which grants nothing.
func NewScope(role Role, region *string, buildingIDs []string) Scope {
	switch role {
	case RoleAdmin:
		return AdminScope{}
	case RoleTechnician:
		s := TechnicianScope{}
		if region != nil {
			s.Region = *region
		}
		return s
	case RoleClient:
		ids := make([]string, len(buildingIDs))
		copy(ids, buildingIDs)
		return ClientScope{BuildingIDs: ids}
	default:
		return nil
	}
}

// =====================================================
// Principal
// =====================================================

// Principal is the authenticated user together with the resolved role and scope.
// It is immutable once resolved; a refresh produces a new value.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
	Scope    Scope  `json:"-"`
}

// Role returns the role carried by the scope, or "" when unresolved.
func (p *Principal) Role() Role {
	if p == nil || p.Scope == nil {
		return ""
	}
	return p.Scope.role()
}

// Region returns the technician region, or "" for other roles.
func (p *Principal) Region() string {
	if p == nil {
		return ""
	}
	if s, ok := p.Scope.(TechnicianScope); ok {
		return s.Region
	}
	return ""
}

// BuildingIDs returns the client building list, or nil for other roles.
func (p *Principal) BuildingIDs() []string {
	if p == nil {
		return nil
	}
	if s, ok := p.Scope.(ClientScope); ok {
		ids := make([]string, len(s.BuildingIDs))
		copy(ids, s.BuildingIDs)
		return ids
	}
	return nil
}

// IsAdmin reports whether the principal may use the administration endpoints.
func (p *Principal) IsAdmin() bool {
	return p.Role() == RoleAdmin
}

// PrincipalResponse is the JSON view of a principal.
type PrincipalResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	FullName    string   `json:"fullName,omitempty"`
	Role        Role     `json:"role"`
	Region      *string  `json:"region,omitempty"`
	BuildingIDs []string `json:"buildingIds,omitempty"`
}

// ToResponse converts the principal to its JSON view.
func (p *Principal) ToResponse() PrincipalResponse {
	resp := PrincipalResponse{
		ID:       p.ID,
		Email:    p.Email,
		FullName: p.FullName,
		Role:     p.Role(),
	}
	switch s := p.Scope.(type) {
	case TechnicianScope:
		region := s.Region
		resp.Region = &region
	case ClientScope:
		resp.BuildingIDs = p.BuildingIDs()
	}
	return resp
}
