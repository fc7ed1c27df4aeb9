package schedule

import "slices"

// Filters is a subscriber's declared interest: the groups and/or teachers
// whose changes they want to hear about.
type Filters struct {
	Groups   []string `json:"groups"`
	Teachers []string `json:"teachers"`
}

// Matches reports whether a changed record is relevant under the filters.
// A subscriber with no filters configured matches nothing; otherwise the
// record matches when its group or its teacher is listed (exact,
// case-sensitive equality).
func Matches(r Record, f Filters) bool {
	hasGroups := len(f.Groups) > 0
	hasTeachers := len(f.Teachers) > 0

	if !hasGroups && !hasTeachers {
		return false
	}

	return (hasGroups && slices.Contains(f.Groups, r.Group)) ||
		(hasTeachers && slices.Contains(f.Teachers, r.Teacher))
}
