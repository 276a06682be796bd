package player

import "slices"

// Registry holds the team roster and the player currently chosen to answer.
// It is not safe for concurrent use; the owning session serializes access.
type Registry struct {
	roster   []string
	selected string
}

func NewRegistry(members []string) *Registry {
	return &Registry{roster: slices.Clone(members)}
}

// Roster returns a copy of the team members in their original order.
func (r *Registry) Roster() []string {
	return slices.Clone(r.roster)
}

// Selected returns the current answerer, if any.
func (r *Registry) Selected() (string, bool) {
	return r.selected, r.selected != ""
}

// Select makes name the answerer. Names outside the roster are rejected and leave the selection unchanged.
func (r *Registry) Select(name string) bool {
	if name == "" || !slices.Contains(r.roster, name) {
		return false
	}

	r.selected = name
	return true
}

func (r *Registry) ClearSelection() {
	r.selected = ""
}
