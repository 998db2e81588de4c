package importer

import (
	"strings"

	"classrecord/backend/internal/grading"
	"classrecord/backend/internal/shared"
)

// Fixed identity columns preceding the template's score columns.
const (
	colID = iota
	colLastName
	colFirstName
	firstScoreCol
)

// Row is one mapped spreadsheet row ready for the record service.
type Row struct {
	Number int            // 1-based spreadsheet row
	ID     string         // idNumber, also the document id
	Fields map[string]any // identity and raw score cells keyed by field name
}

// MapRows maps data rows (the header row is skipped) onto tmpl's field
// names. Rows missing an identity cell are returned as validation errors
// instead of rows; fully blank rows are ignored.
func MapRows(rows [][]string, tmpl *grading.Template) ([]Row, []shared.ValidationError) {
	var (
		mapped []Row
		errs   []shared.ValidationError
	)

	for i := 1; i < len(rows); i++ {
		cells := rows[i]
		if blank(cells) {
			continue
		}
		number := i + 1

		id := cell(cells, colID)
		last := cell(cells, colLastName)
		first := cell(cells, colFirstName)

		switch {
		case id == "":
			errs = append(errs, shared.ValidationError{Row: number, Field: shared.FieldIDNumber, Reason: "is required"})
			continue
		case last == "":
			errs = append(errs, shared.ValidationError{Row: number, Field: shared.FieldLastName, Reason: "is required"})
			continue
		case first == "":
			errs = append(errs, shared.ValidationError{Row: number, Field: shared.FieldFirstName, Reason: "is required"})
			continue
		}

		fields := map[string]any{
			shared.FieldIDNumber:  id,
			shared.FieldLastName:  last,
			shared.FieldFirstName: first,
		}
		for j, name := range tmpl.Columns {
			if name == "" {
				continue
			}
			fields[name] = cell(cells, firstScoreCol+j)
		}

		mapped = append(mapped, Row{Number: number, ID: id, Fields: fields})
	}
	return mapped, errs
}

func cell(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
