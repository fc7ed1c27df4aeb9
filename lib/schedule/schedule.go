// Package schedule holds the pure schedule domain: records, their identity
// across snapshots, and the diff between two snapshots. It has no I/O so the
// same semantics can be reused by any client that renders its own change
// toasts.
package schedule

// Record is one scheduled class occurrence as produced by the source feed.
// Records are never mutated; every fetch yields a fresh collection.
type Record struct {
	ID         string `json:"id,omitempty"`
	Group      string `json:"group"`
	DayOfWeek  string `json:"dayOfWeek"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Subject    string `json:"subject"`
	LessonType string `json:"lessonType"`
	Teacher    string `json:"teacher"`
	Classroom  string `json:"classroom"`
}

// Key derives the identity of a record used to align the same occurrence
// across two snapshots. The feed-assigned id wins when present. The fallback
// composite deliberately excludes classroom, day of week and lesson type:
// those fields may change while the record stays the same occurrence.
// Comparison is literal, no trimming or case folding.
func Key(r Record) string {
	if r.ID != "" {
		return r.ID
	}
	return r.Date + "-" + r.Time + "-" + r.Group + "-" + r.Subject + "-" + r.Teacher
}

// Modification pairs the previous and current version of a changed record.
type Modification struct {
	Old Record `json:"old"`
	New Record `json:"new"`
}

// ChangeSet is the result of diffing two snapshots. A record key lands in at
// most one of the three buckets; unchanged records appear in none.
type ChangeSet struct {
	Added    []Record       `json:"added"`
	Removed  []Record       `json:"removed"`
	Modified []Modification `json:"modified"`
}

func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Diff classifies every record of current against previous. Records present
// only in current are added, records present only in previous are removed,
// and records sharing a key are modified when subject, teacher, classroom or
// lesson type differ. Output order follows input order. Duplicate keys within
// one side are last-write-wins.
func Diff(previous, current []Record) ChangeSet {
	prevByKey := make(map[string]Record, len(previous))
	currByKey := make(map[string]Record, len(current))
	for _, r := range previous {
		prevByKey[Key(r)] = r
	}
	for _, r := range current {
		currByKey[Key(r)] = r
	}

	var changes ChangeSet

	for _, curr := range current {
		prev, ok := prevByKey[Key(curr)]
		switch {
		case !ok:
			changes.Added = append(changes.Added, curr)
		case prev.Subject != curr.Subject ||
			prev.Teacher != curr.Teacher ||
			prev.Classroom != curr.Classroom ||
			prev.LessonType != curr.LessonType:
			changes.Modified = append(changes.Modified, Modification{Old: prev, New: curr})
		}
	}

	for _, prev := range previous {
		if _, ok := currByKey[Key(prev)]; !ok {
			changes.Removed = append(changes.Removed, prev)
		}
	}

	return changes
}
