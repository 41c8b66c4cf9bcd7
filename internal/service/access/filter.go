package access

import (
	"github.com/jwalitptl/clinic-api/internal/model"
)

// Record is anything the visibility filter can narrow or project.
type Record interface {
	OwnedBy(doctorID int64) bool
	Basic() model.BasicView
}

// Filter narrows rows to what the scope allows. None and a missing doctor
// profile both give an empty, non-nil slice.
func Filter[T Record](s Scope, records []T) []T {
	if s.Empty() {
		return []T{}
	}
	if s.Level != LevelOwn {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if r.OwnedBy(s.DoctorID) {
			out = append(out, r)
		}
	}
	return out
}

// CanView applies the row-level part of the filter to a single record.
func CanView[T Record](s Scope, record T) bool {
	if s.Empty() {
		return false
	}
	if s.Level == LevelOwn {
		return record.OwnedBy(s.DoctorID)
	}
	return true
}

// Present shapes already filtered rows for output: basic access gets the
// reduced projection, every other level gets the rows themselves.
func Present[T Record](s Scope, records []T) interface{} {
	if s.Level != LevelBasic {
		return records
	}
	views := make([]model.BasicView, 0, len(records))
	for _, r := range records {
		views = append(views, r.Basic())
	}
	return views
}

// PresentOne is Present for a single record.
func PresentOne[T Record](s Scope, record T) interface{} {
	if s.Level != LevelBasic {
		return record
	}
	return record.Basic()
}

// FilterRecords resolves the scope and filters in one step. The boolean is
// true when the actor is a doctor without a linked profile.
func FilterRecords[T Record](role model.Role, doctorProfile *int64, entity Entity, records []T) ([]T, bool) {
	s := ScopeFor(model.Actor{Role: role, DoctorID: doctorProfile}, entity)
	return Filter(s, records), s.ProfileMissing
}
