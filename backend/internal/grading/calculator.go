package grading

import (
	"math"

	"classrecord/backend/internal/shared"
)

// roundingNudge absorbs binary representation error before rounding, so
// 1.005 rounds up like its decimal spelling suggests.
const roundingNudge = 1e-9

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	scaled := v * 100
	if scaled >= 0 {
		scaled += roundingNudge
	} else {
		scaled -= roundingNudge
	}
	return math.Round(scaled) / 100
}

// ComponentResult is the weighted contribution of one component.
type ComponentResult struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"` // component percentage before weighting
	Scores []Score `json:"scores"`
}

// Score is one raw field value as displayed in the record table.
type Score struct {
	Field   string  `json:"field"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// CategoryResult is the weighted subtotal of one category.
type CategoryResult struct {
	Name       string            `json:"name"`
	Weight     float64           `json:"weight"`
	Value      float64           `json:"value"` // category percentage before weighting
	Components []ComponentResult `json:"components"`
}

// Result is the full breakdown behind a composite grade.
type Result struct {
	Percent    float64          `json:"percent"`
	Grade      float64          `json:"grade"`
	Display    string           `json:"display"`
	Passed     bool             `json:"passed"`
	Categories []CategoryResult `json:"categories"`
}

// ComputeGrade applies the template's weight tree to a normalized record and
// reports the composite on the template's scale, rounded to 2 decimals.
// A missed component counts as 0 and keeps its share of the denominator.
func ComputeGrade(rec StudentRecord, tmpl *Template) float64 {
	return Breakdown(rec, tmpl).Grade
}

// Breakdown computes the composite grade together with every subtotal.
func Breakdown(rec StudentRecord, tmpl *Template) Result {
	var res Result
	var percent float64
	for _, cat := range tmpl.Categories {
		cr := CategoryResult{Name: cat.Name, Weight: cat.Weight}
		for _, comp := range cat.Components {
			value := componentValue(rec, comp)
			cmp := ComponentResult{Name: comp.Name, Weight: comp.Weight, Value: Round2(value)}
			for _, f := range comp.Fields {
				v := rec.Score(f)
				cmp.Scores = append(cmp.Scores, Score{Field: f, Value: v, Display: FormatScore(v)})
			}
			cr.Components = append(cr.Components, cmp)
			cr.Value += comp.Weight / 100 * value
		}
		percent += cat.Weight / 100 * cr.Value
		cr.Value = Round2(cr.Value)
		res.Categories = append(res.Categories, cr)
	}

	res.Percent = Round2(percent)
	res.Grade = Round2(tmpl.Scale.Transmute(percent))
	res.Display = FormatGrade(res.Grade)
	res.Passed = tmpl.Scale.Passed(res.Grade)
	return res
}

// componentValue is the mean of the component's fields as a percentage of
// its max score.
func componentValue(rec StudentRecord, comp Component) float64 {
	if len(comp.Fields) == 0 {
		return 0
	}
	maxScore := comp.MaxScore
	if maxScore == 0 {
		maxScore = 100
	}
	var sum float64
	for _, f := range comp.Fields {
		v := rec.Score(f)
		if v == shared.MissedScore {
			v = 0
		}
		sum += v
	}
	return sum / float64(len(comp.Fields)) / maxScore * 100
}
