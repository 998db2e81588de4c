package grading

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"classrecord/backend/internal/shared"
)

// StudentRecord is one student's normalized scores for a grading period.
type StudentRecord struct {
	IDNumber  string             `json:"idNumber"`
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	Scores    map[string]float64 `json:"scores"`

	// Grade is always computed from Scores, never read from the store.
	Grade float64 `json:"grade"`
}

// Score returns a score field, 0 when the template does not declare it.
func (r StudentRecord) Score(field string) float64 {
	return r.Scores[field]
}

// Fields flattens the record into the stored document shape for tmpl.
func (r StudentRecord) Fields(tmpl *Template) map[string]any {
	fields := map[string]any{
		shared.FieldIDNumber:  r.IDNumber,
		shared.FieldFirstName: r.FirstName,
		shared.FieldLastName:  r.LastName,
	}
	for _, f := range tmpl.ScoreFields() {
		fields[f] = r.Scores[f]
	}
	fields[tmpl.GradeField] = r.Grade
	return fields
}

// Normalize coerces an external value into a number. Empty, missing and
// non-numeric input degrade to fallback; valid numbers, including the missed
// sentinel -1, pass through unchanged.
func Normalize(raw any, fallback float64) float64 {
	var n float64
	switch v := raw.(type) {
	case nil:
		return fallback
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return fallback
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fallback
		}
		n = parsed
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return fallback
		}
		n = parsed
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int8:
		n = float64(v)
	case int16:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint8:
		n = float64(v)
	case uint16:
		n = float64(v)
	case uint32:
		n = float64(v)
	case uint64:
		n = float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return fallback
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fallback
	}
	return n
}

// NormalizeString trims and stringifies an identity value. Spreadsheet and
// BSON numbers render without exponent so numeric IDs survive.
func NormalizeString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case interface{ String() string }:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

// NormalizeRecord is the parse boundary every stored or uploaded document
// passes through before it enters the grading model.
func NormalizeRecord(raw map[string]any, tmpl *Template) StudentRecord {
	rec := StudentRecord{
		IDNumber:  NormalizeString(raw[shared.FieldIDNumber]),
		FirstName: NormalizeString(raw[shared.FieldFirstName]),
		LastName:  NormalizeString(raw[shared.FieldLastName]),
		Scores:    make(map[string]float64),
	}
	for _, f := range tmpl.ScoreFields() {
		rec.Scores[f] = normalizeScore(raw[f])
	}
	rec.Grade = ComputeGrade(rec, tmpl)
	return rec
}

// normalizeScore keeps the record invariant: a score is non-negative or
// exactly the missed sentinel.
func normalizeScore(raw any) float64 {
	n := Normalize(raw, 0)
	if n < 0 && n != shared.MissedScore {
		return 0
	}
	return n
}
