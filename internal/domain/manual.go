package domain

import (
	"errors"
	"strings"
	"time"
)

// EquipmentType categorises an O&M manual.
type EquipmentType string

const (
	EquipmentHVAC       EquipmentType = "HVAC"
	EquipmentElectrical EquipmentType = "Electrical"
	EquipmentFire       EquipmentType = "Fire"
	EquipmentPlumbing   EquipmentType = "Plumbing"
	EquipmentHydraulic  EquipmentType = "Hydraulic"
	EquipmentSecurity   EquipmentType = "Security"
	EquipmentLift       EquipmentType = "Lift"
	EquipmentOther      EquipmentType = "Other"
)

// EquipmentTypes lists every equipment type in display order.
var EquipmentTypes = []EquipmentType{
	EquipmentHVAC, EquipmentElectrical, EquipmentFire, EquipmentPlumbing,
	EquipmentHydraulic, EquipmentSecurity, EquipmentLift, EquipmentOther,
}

// ParseEquipmentType matches s against EquipmentTypes, ignoring case and
// surrounding space.
func ParseEquipmentType(s string) (EquipmentType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range EquipmentTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// EquipmentTypeNames returns EquipmentTypes as strings, for error messages.
func EquipmentTypeNames() []string {
	names := make([]string, len(EquipmentTypes))
	for i, t := range EquipmentTypes {
		names[i] = string(t)
	}
	return names
}

// ErrManualNotFound indicates the manual does not exist or is inactive.
var ErrManualNotFound = errors.New("manual not found")

// Manual is an indexed O&M manual attached to a building.
type Manual struct {
	ID               string         `json:"id"`
	BuildingID       string         `json:"buildingId"`
	Name             string         `json:"name"`
	EquipmentType    *EquipmentType `json:"equipmentType,omitempty"`
	Manufacturer     *string        `json:"manufacturer,omitempty"`
	ModelNumber      *string        `json:"modelNumber,omitempty"`
	ProcessingStatus string         `json:"processingStatus"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// ListManualsParams filters the manuals of one building.
type ListManualsParams struct {
	EquipmentType *EquipmentType
}

// ManualSection is one node of a manual's table of contents.
type ManualSection struct {
	ID              string    `json:"id"`
	ManualID        string    `json:"manualId"`
	ParentSectionID *string   `json:"parentSectionId,omitempty"`
	SectionNumber   *string   `json:"sectionNumber,omitempty"`
	SectionTitle    string    `json:"sectionTitle"`
	SectionType     *string   `json:"sectionType,omitempty"`
	StartPage       *int      `json:"startPage,omitempty"`
	EndPage         *int      `json:"endPage,omitempty"`
	DepthLevel      int       `json:"depthLevel"`
	OrderIndex      int       `json:"orderIndex"`
	FullPath        *string   `json:"fullPath,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Search result limits.
const (
	DefaultSearchResults = 10
	MaxSearchResults     = 50
)

// SearchParams is a keyword search over the manual content of one building.
type SearchParams struct {
	BuildingID    string         `json:"-"`
	Query         string         `json:"q" validate:"required,min=2,max=200"`
	EquipmentType *EquipmentType `json:"equipmentType"`
	MaxResults    int            `json:"limit" validate:"min=1,max=50"`
}

// SearchResult is one matching content chunk with the section and manual it
// belongs to. Results are ordered by Rank, best first.
type SearchResult struct {
	ContentID     string  `json:"contentId"`
	SectionID     string  `json:"sectionId"`
	ManualID      string  `json:"manualId"`
	ManualName    string  `json:"manualName"`
	SectionTitle  string  `json:"sectionTitle"`
	SectionNumber *string `json:"sectionNumber,omitempty"`
	FullPath      *string `json:"fullPath,omitempty"`
	ContentText   string  `json:"contentText"`
	PageNumber    *int    `json:"pageNumber,omitempty"`
	Rank          float64 `json:"rank"`
	Manufacturer  *string `json:"manufacturer,omitempty"`
	ModelNumber   *string `json:"modelNumber,omitempty"`
}

// SearchLogEntry records one executed search.
type SearchLogEntry struct {
	Query           string
	BuildingID      string
	UserID          string
	ResultsReturned int
}
