package domain

import (
	"time"
)

// BuildingStatus is the reported operational status of a building.
type BuildingStatus string

const (
	BuildingStatusOnline  BuildingStatus = "online"
	BuildingStatusWarning BuildingStatus = "warning"
	BuildingStatusOffline BuildingStatus = "offline"
)

// IsValid checks if the status is one of the defined constants
func (s BuildingStatus) IsValid() bool {
	switch s {
	case BuildingStatusOnline, BuildingStatusWarning, BuildingStatusOffline:
		return true
	default:
		return false
	}
}

// Regions lists the region codes a building may belong to.
var Regions = []string{"WA", "NSW", "VIC", "QLD", "SA", "TAS", "NT", "ACT"}

// IsValidRegion reports whether code is one of Regions.
func IsValidRegion(code string) bool {
	for _, r := range Regions {
		if r == code {
			return true
		}
	}
	return false
}

// Building is a managed facility as read from the catalog.
// Region is never empty and ID is unique within a catalog snapshot.
type Building struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Address       *string        `json:"address,omitempty"`
	Region        string         `json:"region"`
	Status        BuildingStatus `json:"status"`
	DocumentCount int            `json:"documentCount"`
	Notes         *string        `json:"notes,omitempty"`
	IsArchived    bool           `json:"isArchived"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// CreateBuildingRequest is the DTO for creating a building.
type CreateBuildingRequest struct {
	Name    string         `json:"name" validate:"required,max=200"`
	Address *string        `json:"address" validate:"omitempty,max=500"`
	Region  string         `json:"region" validate:"required,region"`
	Status  BuildingStatus `json:"status" validate:"omitempty,oneof=online warning offline"`
	Notes   *string        `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateBuildingRequest is the DTO for partial updates.
type UpdateBuildingRequest struct {
	Name    *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Address *string         `json:"address" validate:"omitempty,max=500"`
	Region  *string         `json:"region" validate:"omitempty,region"`
	Status  *BuildingStatus `json:"status" validate:"omitempty,oneof=online warning offline"`
	Notes   *string         `json:"notes" validate:"omitempty,max=2000"`
}

// IsEmpty reports whether the update carries no field.
func (r *UpdateBuildingRequest) IsEmpty() bool {
	return r.Name == nil && r.Address == nil && r.Region == nil && r.Status == nil && r.Notes == nil
}

// ListBuildingsParams filters the admin catalog listing.
type ListBuildingsParams struct {
	Region   *string
	Archived bool
}
