package core

import "sort"

// Slot classifies one month of a group's range.
type Slot struct {
	Month      string `json:"month"`
	Reserved   bool   `json:"reserved"`
	ReservedBy string `json:"reservedBy,omitempty"`
	MemberID   string `json:"memberId,omitempty"`
}

// Registry maps a month to the assignment holding it.
type Registry map[Month]Assignment

// NewRegistry indexes assignments by month. Later entries for the same month
// overwrite earlier ones; storage uniqueness keeps that from happening.
func NewRegistry(assignments []Assignment) Registry {
	r := make(Registry, len(assignments))
	for _, a := range assignments {
		r[a.Month] = a
	}
	return r
}

func (r Registry) Has(m Month) bool {
	_, ok := r[m]
	return ok
}

// Claimant returns the holder of m, if any.
func (r Registry) Claimant(m Month) (Assignment, bool) {
	a, ok := r[m]
	return a, ok
}

// BuildSlots merges the group's month range with its assignments.
// Assignments outside the range are never enumerated.
func BuildSlots(g Group, assignments []Assignment) []Slot {
	reg := NewRegistry(assignments)
	months := g.Months()
	slots := make([]Slot, len(months))
	for i, m := range months {
		slots[i] = Slot{Month: m.String()}
		if a, ok := reg.Claimant(m); ok {
			slots[i].Reserved = true
			slots[i].ReservedBy = a.MemberName
			slots[i].MemberID = a.MemberID
		}
	}
	return slots
}

// OrphanedAssignments returns the claims lying outside the group's range,
// ordered by month.
func OrphanedAssignments(g Group, assignments []Assignment) []Assignment {
	var out []Assignment
	for _, a := range assignments {
		if !g.Covers(a.Month) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// SortAssignments orders assignments by month, then member.
func SortAssignments(as []Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if c := as[i].Month.Compare(as[j].Month); c != 0 {
			return c < 0
		}
		return as[i].MemberID < as[j].MemberID
	})
}
