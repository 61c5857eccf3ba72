package domain

// Selector holds the active building for one session.
//
// States are Unselected and Selected(b). The selection is always a member of
// the current accessible set; OnAccessibleSetChanged repairs it when the set
// moves and Select refuses ids outside it.
//
// Selector is not safe for concurrent use. session.Session owns one and
// serializes access with its mutex.
type Selector struct {
	accessible []Building
	selected   *Building
}

// NewSelector returns an Unselected selector with an empty accessible set.
func NewSelector() *Selector {
	return &Selector{accessible: []Building{}}
}

// Selected returns the active building and whether one is selected.
func (s *Selector) Selected() (Building, bool) {
	if s.selected == nil {
		return Building{}, false
	}
	return *s.selected, true
}

// Accessible returns a copy of the current accessible set.
func (s *Selector) Accessible() []Building {
	out := make([]Building, len(s.accessible))
	copy(out, s.accessible)
	return out
}

// Contains reports whether buildingID is in the accessible set.
func (s *Selector) Contains(buildingID string) bool {
	_, ok := s.find(buildingID)
	return ok
}

// Select makes buildingID the active building. Ids outside the accessible set
// return ErrNotAccessible and leave the selection unchanged.
func (s *Selector) Select(buildingID string) error {
	b, ok := s.find(buildingID)
	if !ok {
		return ErrNotAccessible
	}
	s.selected = &b
	return nil
}

// OnAccessibleSetChanged replaces the accessible set and re-resolves the
// selection:
//   - a selection still present in the new set is kept (its record refreshed)
//   - a selection no longer present moves to the first element
//   - an empty set clears the selection
//   - an Unselected selector picks the first element
//
// set must already be in display order (see ComputeAccessible).
func (s *Selector) OnAccessibleSetChanged(set []Building) {
	s.accessible = make([]Building, len(set))
	copy(s.accessible, set)

	if s.selected != nil {
		if b, ok := s.find(s.selected.ID); ok {
			s.selected = &b
			return
		}
	}

	if len(s.accessible) == 0 {
		s.selected = nil
		return
	}
	first := s.accessible[0]
	s.selected = &first
}

// Reset returns the selector to Unselected with an empty set.
func (s *Selector) Reset() {
	s.accessible = []Building{}
	s.selected = nil
}

func (s *Selector) find(id string) (Building, bool) {
	for _, b := range s.accessible {
		if b.ID == id {
			return b, true
		}
	}
	return Building{}, false
}
