// Package source fetches the schedule feed from the published spreadsheet
// export and maps its rows to schedule records.
package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/carlmjohnson/requests"
	"github.com/xuri/excelize/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"schedpush/config"
	"schedpush/lib/schedule"
)

// Source produces the current schedule. Fetch may fail; an empty result is
// left for the caller to interpret.
type Source interface {
	Fetch(ctx context.Context) ([]schedule.Record, error)
}

func NewSource(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) Source {
	return &sheetSource{cfg, log, transport}
}

type sheetSource struct {
	cfg       *config.Config
	log       *zap.Logger
	transport http.RoundTripper
}

func (s *sheetSource) Fetch(ctx context.Context) ([]schedule.Record, error) {
	var buf bytes.Buffer
	err := requests.URL(s.cfg.Source.URL).
		Transport(s.transport).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule feed: %w", err)
	}

	switch s.cfg.Source.Format {
	case "xlsx":
		return parseXLSX(&buf)
	default:
		return parseCSV(&buf)
	}
}

func parseCSV(r io.Reader) ([]schedule.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse schedule csv: %w", err)
	}
	return recordsFromRows(rows), nil
}

func parseXLSX(r io.Reader) ([]schedule.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open schedule xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("schedule xlsx has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read schedule xlsx: %w", err)
	}
	return recordsFromRows(rows), nil
}

// recordsFromRows maps spreadsheet rows to records. The first row is the
// header; data rows get 1-based row numbers as their stable id, matching the
// source sheet's row identity.
func recordsFromRows(rows [][]string) []schedule.Record {
	records := make([]schedule.Record, 0, len(rows))
	for i, row := range rows {
		if i == 0 || blankRow(row) {
			continue
		}
		records = append(records, schedule.Record{
			ID:         strconv.Itoa(i),
			Group:      field(row, 0),
			DayOfWeek:  field(row, 1),
			Date:       field(row, 2),
			Time:       field(row, 3),
			Subject:    field(row, 4),
			LessonType: field(row, 5),
			Teacher:    field(row, 6),
			Classroom:  field(row, 7),
		})
	}
	return records
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
