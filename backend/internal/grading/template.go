package grading

import (
	"fmt"
	"math"
	"sort"
)

// weightTolerance is how far a set of percentage shares may stray from 100.
const weightTolerance = 0.001

// Direction tells which end of a grading scale is better.
type Direction string

const (
	LowerIsBetter  Direction = "lower"
	HigherIsBetter Direction = "higher"
)

// Band maps a weighted percentage range [Min, 100] onto a reported grade.
// Bands are evaluated from the highest Min downwards.
type Band struct {
	Min   float64 `mapstructure:"min" json:"min"`
	Grade float64 `mapstructure:"grade" json:"grade"`
}

// Scale describes how a composite grade is reported and judged.
type Scale struct {
	Direction     Direction `mapstructure:"direction" json:"direction"`
	PassThreshold float64   `mapstructure:"pass_threshold" json:"passThreshold"`

	// Optional percentage -> grade point table. Empty reports the percentage itself.
	Transmutation []Band `mapstructure:"transmutation" json:"transmutation,omitempty"`
}

// Passed applies the pass threshold in the scale's direction.
func (s Scale) Passed(grade float64) bool {
	if s.Direction == LowerIsBetter {
		return grade <= s.PassThreshold
	}
	return grade >= s.PassThreshold
}

// Transmute maps a weighted percentage through the band table.
func (s Scale) Transmute(percent float64) float64 {
	if len(s.Transmutation) == 0 {
		return percent
	}
	for _, b := range s.Transmutation {
		if percent >= b.Min {
			return b.Grade
		}
	}
	return s.Transmutation[len(s.Transmutation)-1].Grade
}

// Component is one weighted entry of a category. Its value is the mean of
// Fields expressed as a percentage of MaxScore.
type Component struct {
	Name     string   `mapstructure:"name" json:"name"`
	Weight   float64  `mapstructure:"weight" json:"weight"`
	Fields   []string `mapstructure:"fields" json:"fields"`
	MaxScore float64  `mapstructure:"max_score" json:"maxScore,omitempty"`
}

// Category is a top-level share of the composite grade (e.g. Lecture, Laboratory).
type Category struct {
	Name       string      `mapstructure:"name" json:"name"`
	Weight     float64     `mapstructure:"weight" json:"weight"`
	Components []Component `mapstructure:"components" json:"components"`
}

// Template is the weight tree and record layout of one grading period.
type Template struct {
	Name       string `mapstructure:"name" json:"name"`
	Title      string `mapstructure:"title" json:"title"`
	Collection string `mapstructure:"collection" json:"collection"`
	GradeField string `mapstructure:"grade_field" json:"gradeField"`

	// Upload column order after the identity columns (ID, last name, first name).
	// An empty entry skips that spreadsheet column.
	Columns []string `mapstructure:"columns" json:"columns"`

	Categories []Category `mapstructure:"categories" json:"categories"`
	Scale      Scale      `mapstructure:"scale" json:"scale"`
}

// ScoreFields returns every score field of the template in column order,
// followed by weighted fields that have no upload column.
func (t *Template) ScoreFields() []string {
	seen := make(map[string]bool)
	var fields []string
	add := func(f string) {
		if f == "" || f == t.GradeField || seen[f] {
			return
		}
		seen[f] = true
		fields = append(fields, f)
	}
	for _, c := range t.Columns {
		add(c)
	}
	for _, cat := range t.Categories {
		for _, comp := range cat.Components {
			for _, f := range comp.Fields {
				add(f)
			}
		}
	}
	return fields
}

// Validate checks that the weight tree is well formed.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if t.Collection == "" {
		return fmt.Errorf("template %s: collection is required", t.Name)
	}
	if t.GradeField == "" {
		return fmt.Errorf("template %s: grade_field is required", t.Name)
	}
	if len(t.Categories) == 0 {
		return fmt.Errorf("template %s: at least one category is required", t.Name)
	}
	if t.Scale.Direction != LowerIsBetter && t.Scale.Direction != HigherIsBetter {
		return fmt.Errorf("template %s: scale direction must be %q or %q", t.Name, LowerIsBetter, HigherIsBetter)
	}

	var catSum float64
	owner := make(map[string]string)
	for _, cat := range t.Categories {
		if cat.Weight < 0 {
			return fmt.Errorf("template %s: category %s has a negative weight", t.Name, cat.Name)
		}
		catSum += cat.Weight

		if len(cat.Components) == 0 {
			return fmt.Errorf("template %s: category %s has no components", t.Name, cat.Name)
		}
		var compSum float64
		for _, comp := range cat.Components {
			if comp.Weight < 0 {
				return fmt.Errorf("template %s: component %s has a negative weight", t.Name, comp.Name)
			}
			if comp.MaxScore < 0 {
				return fmt.Errorf("template %s: component %s has a negative max score", t.Name, comp.Name)
			}
			if len(comp.Fields) == 0 {
				return fmt.Errorf("template %s: component %s has no fields", t.Name, comp.Name)
			}
			compSum += comp.Weight
			for _, f := range comp.Fields {
				if f == t.GradeField {
					return fmt.Errorf("template %s: grade field %s cannot be weighted", t.Name, f)
				}
				if prev, dup := owner[f]; dup {
					return fmt.Errorf("template %s: field %s weighted by both %s and %s", t.Name, f, prev, comp.Name)
				}
				owner[f] = comp.Name
			}
		}
		if math.Abs(compSum-100) > weightTolerance {
			return fmt.Errorf("template %s: components of %s sum to %.3f%%, want 100%%", t.Name, cat.Name, compSum)
		}
	}
	if math.Abs(catSum-100) > weightTolerance {
		return fmt.Errorf("template %s: categories sum to %.3f%%, want 100%%", t.Name, catSum)
	}

	for _, b := range t.Scale.Transmutation {
		if b.Min < 0 || b.Min > 100 {
			return fmt.Errorf("template %s: transmutation band min %.2f outside 0..100", t.Name, b.Min)
		}
	}
	return nil
}

// normalizeBands orders transmutation bands from the highest minimum down.
func (t *Template) normalizeBands() {
	sort.SliceStable(t.Scale.Transmutation, func(i, j int) bool {
		return t.Scale.Transmutation[i].Min > t.Scale.Transmutation[j].Min
	})
}

// Registry resolves templates by name.
type Registry struct {
	order     []string
	templates map[string]*Template
}

// NewRegistry validates and indexes templates. The first template is the default.
func NewRegistry(templates ...*Template) (*Registry, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("at least one grading template is required")
	}
	r := &Registry{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.templates[t.Name]; dup {
			return nil, fmt.Errorf("duplicate template %s", t.Name)
		}
		t.normalizeBands()
		r.templates[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

// Get returns the named template; an empty name selects the default.
func (r *Registry) Get(name string) (*Template, bool) {
	if name == "" {
		name = r.order[0]
	}
	t, ok := r.templates[name]
	return t, ok
}

// All returns the templates in registration order.
func (r *Registry) All() []*Template {
	out := make([]*Template, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.templates[name])
	}
	return out
}
