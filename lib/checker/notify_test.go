package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"schedpush/lib/schedule"
)

func TestFormatBody(t *testing.T) {
	tests := []struct {
		name     string
		records  []schedule.Record
		category Category
		want     string
	}{
		{
			name: "single record spells out date and time",
			records: []schedule.Record{
				{Group: "G1", Date: "01.09.2025", Time: "08.30 - 10.00", Subject: "Math"},
			},
			category: CategoryAdded,
			want:     "Добавлено: Math (01.09.2025, 08.30 - 10.00)",
		},
		{
			name: "single removed record",
			records: []schedule.Record{
				{Group: "G1", Date: "01.09.2025", Time: "08.30 - 10.00", Subject: "Math"},
			},
			category: CategoryRemoved,
			want:     "Удалено: Math (01.09.2025, 08.30 - 10.00)",
		},
		{
			name: "several records in one group name the group",
			records: []schedule.Record{
				{Group: "G1", Subject: "Math"},
				{Group: "G1", Subject: "Physics"},
			},
			category: CategoryModified,
			want:     "Изменено для G1: Math, Physics",
		},
		{
			name: "mixed groups omit the group suffix",
			records: []schedule.Record{
				{Group: "G1", Subject: "Math"},
				{Group: "G2", Subject: "Physics"},
			},
			category: CategoryAdded,
			want:     "Добавлено: Math, Physics",
		},
		{
			name: "more than three subjects are capped",
			records: []schedule.Record{
				{Group: "G1", Subject: "Math"},
				{Group: "G1", Subject: "Physics"},
				{Group: "G1", Subject: "History"},
				{Group: "G1", Subject: "Chemistry"},
				{Group: "G1", Subject: "Biology"},
			},
			category: CategoryAdded,
			want:     "Добавлено для G1: Math, Physics, History и ещё 2",
		},
		{
			name: "duplicate subjects collapse",
			records: []schedule.Record{
				{Group: "G1", Subject: "Math"},
				{Group: "G1", Subject: "Math"},
			},
			category: CategoryAdded,
			want:     "Добавлено для G1: Math",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatBody(tt.records, tt.category))
		})
	}
}
