package grading

import (
	"strings"

	"classrecord/backend/internal/shared"
)

// FindRecord returns the first record whose trimmed, case-folded names and
// trimmed ID match the query. Callers pass records ordered by idNumber, so
// with duplicate IDs in the store the lowest-sorted document wins.
func FindRecord(all []StudentRecord, firstName, lastName, idNumber string) (StudentRecord, error) {
	first := strings.TrimSpace(firstName)
	last := strings.TrimSpace(lastName)
	id := strings.TrimSpace(idNumber)

	for _, rec := range all {
		if strings.EqualFold(strings.TrimSpace(rec.FirstName), first) &&
			strings.EqualFold(strings.TrimSpace(rec.LastName), last) &&
			strings.TrimSpace(rec.IDNumber) == id {
			return rec, nil
		}
	}
	return StudentRecord{}, shared.ErrNotFound
}

// MatchesSearch reports whether the instructor table filter q selects rec.
// An empty query matches every record.
func MatchesSearch(rec StudentRecord, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(rec.IDNumber), q) ||
		strings.Contains(strings.ToLower(rec.FirstName), q) ||
		strings.Contains(strings.ToLower(rec.LastName), q)
}
