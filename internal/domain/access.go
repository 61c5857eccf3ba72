package domain

import (
	"sort"
	"strings"
)

// ComputeAccessible returns the buildings of catalog that p may see, ordered by
// display name (case-insensitive, ties by id).
//
// Rules by scope:
//   - AdminScope: the whole catalog
//   - TechnicianScope: buildings whose region equals the principal's region
//   - ClientScope: buildings whose id is in the principal's list
//   - nil or anything else: nothing
//
// Missing scope attributes (empty region, empty list) grant nothing.
// The result never aliases catalog.
func ComputeAccessible(p *Principal, catalog []Building) []Building {
	result := make([]Building, 0)
	if p == nil {
		return result
	}

	switch s := p.Scope.(type) {
	case AdminScope:
		result = append(result, catalog...)
	case TechnicianScope:
		if s.Region == "" {
			return result
		}
		for _, b := range catalog {
			if b.Region == s.Region {
				result = append(result, b)
			}
		}
	case ClientScope:
		if len(s.BuildingIDs) == 0 {
			return result
		}
		allowed := make(map[string]struct{}, len(s.BuildingIDs))
		for _, id := range s.BuildingIDs {
			allowed[id] = struct{}{}
		}
		for _, b := range catalog {
			if _, ok := allowed[b.ID]; ok {
				result = append(result, b)
			}
		}
	default:
		return result
	}

	SortByName(result)
	return result
}

// SortByName sorts buildings in place by lower-cased name, then id.
func SortByName(buildings []Building) {
	sort.SliceStable(buildings, func(i, j int) bool {
		ni, nj := strings.ToLower(buildings[i].Name), strings.ToLower(buildings[j].Name)
		if ni != nj {
			return ni < nj
		}
		return buildings[i].ID < buildings[j].ID
	})
}
