package grading

import (
	"strconv"
	"strings"

	"classrecord/backend/internal/shared"
)

// MissedLabel is shown in place of the missed sentinel.
const MissedLabel = "Missed"

// FormatScore renders a raw score without forced decimals.
func FormatScore(v float64) string {
	if v == shared.MissedScore {
		return MissedLabel
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatGrade renders a composite grade with exactly 2 decimals.
func FormatGrade(v float64) string {
	return strconv.FormatFloat(Round2(v), 'f', 2, 64)
}

// FullName renders "LAST, FIRST" for record headers.
func FullName(rec StudentRecord) string {
	return strings.ToUpper(rec.LastName) + ", " + strings.ToUpper(rec.FirstName)
}
