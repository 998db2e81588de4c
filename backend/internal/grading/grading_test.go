package grading

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"classrecord/backend/internal/shared"
)

// percentTemplate is the midterm weight tree reported as a raw percentage.
func percentTemplate() *Template {
	t := MidtermTemplate()
	t.Name = "percent"
	t.Scale = Scale{Direction: HigherIsBetter, PassThreshold: 50}
	return t
}

func sampleRaw() map[string]any {
	return map[string]any{
		"idNumber":           "2022123456",
		"firstName":          "John",
		"lastName":           "Doe",
		"attendance":         100,
		"quiz1":              "90",
		"quiz2":              80.0,
		"quiz3":              int32(70),
		"quiz4":              int64(60),
		"prelim":             85,
		"midtermwrittenexam": "88",
		"assignment1":        95,
		"activity1":          92,
		"midtermlabexam":     90,
		"midtermGrade":       "9.99",
	}
}

// ── Normalize ──

func TestNormalize_Numeric(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"12", 12},
		{" 12.5 ", 12.5},
		{"-1", -1},
		{-1, -1},
		{float32(2.5), 2.5},
		{int64(7), 7},
		{uint8(3), 3},
		{json.Number("42"), 42},
		{true, 1},
		{false, 0},
		{"1e2", 100},
		{0, 0},
	}
	for _, c := range cases {
		if got := Normalize(c.in, 99); got != c.want {
			t.Errorf("Normalize(%#v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalize_FallbackOnGarbage(t *testing.T) {
	for _, in := range []any{nil, "", "   ", "abc", "12abc", "NaN", math.NaN(), math.Inf(1), []int{1}, struct{}{}} {
		if got := Normalize(in, 7); got != 7 {
			t.Errorf("Normalize(%#v) = %v, want fallback 7", in, got)
		}
	}
}

func TestNormalize_MissedSentinelPreserved(t *testing.T) {
	if got := Normalize(-1, 0); got != -1 {
		t.Fatalf("Normalize(-1) = %v, want -1", got)
	}
}

func TestNormalizeString_NumericIDs(t *testing.T) {
	if got := NormalizeString(2022123456.0); got != "2022123456" {
		t.Errorf("float id = %q", got)
	}
	if got := NormalizeString(int64(2022123456)); got != "2022123456" {
		t.Errorf("int64 id = %q", got)
	}
	if got := NormalizeString("  Doe "); got != "Doe" {
		t.Errorf("string = %q", got)
	}
	if got := NormalizeString(nil); got != "" {
		t.Errorf("nil = %q", got)
	}
}

func TestNormalizeRecord_DefaultsAndInvariant(t *testing.T) {
	tmpl := MidtermTemplate()
	rec := NormalizeRecord(map[string]any{
		"idNumber": " 123 ",
		"quiz1":    -5,
		"quiz2":    -1,
		"quiz3":    "n/a",
	}, tmpl)

	if rec.IDNumber != "123" || rec.FirstName != "" || rec.LastName != "" {
		t.Fatalf("identity = %+v", rec)
	}
	if rec.Scores["quiz1"] != 0 {
		t.Errorf("invalid negative score kept: %v", rec.Scores["quiz1"])
	}
	if rec.Scores["quiz2"] != -1 {
		t.Errorf("missed sentinel lost: %v", rec.Scores["quiz2"])
	}
	if rec.Scores["quiz3"] != 0 {
		t.Errorf("garbage score = %v", rec.Scores["quiz3"])
	}
	for _, f := range tmpl.ScoreFields() {
		if _, ok := rec.Scores[f]; !ok {
			t.Errorf("score field %s missing", f)
		}
	}
	if _, ok := rec.Scores[tmpl.GradeField]; ok {
		t.Error("grade field must not be stored as a score")
	}
}

func TestNormalizeRecord_RoundTripThroughJSON(t *testing.T) {
	tmpl := MidtermTemplate()
	first := NormalizeRecord(sampleRaw(), tmpl)

	data, err := json.Marshal(first.Fields(tmpl))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	second := NormalizeRecord(decoded, tmpl)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("round trip changed record:\n first  %+v\n second %+v", first, second)
	}
}

func TestNormalizeRecord_IgnoresStoredGrade(t *testing.T) {
	tmpl := percentTemplate()
	rec := NormalizeRecord(sampleRaw(), tmpl)
	if rec.Grade != 88.01 {
		t.Fatalf("grade = %v, want recomputed 88.01", rec.Grade)
	}
}

// ── Calculator ──

func TestComputeGrade_DocumentedExample(t *testing.T) {
	rec := NormalizeRecord(sampleRaw(), percentTemplate())
	res := Breakdown(rec, percentTemplate())

	// Lecture: 0.2*100 + 0.4*mean(90,80,70,60,85) + 0.4*88 = 86
	// Laboratory: 0.3*95 + 0.3*92 + 0.4*90 = 92.1
	// Composite: 0.67*86 + 0.33*92.1 = 88.013
	if res.Categories[0].Value != 86 || res.Categories[1].Value != 92.1 {
		t.Errorf("subtotals = %v / %v", res.Categories[0].Value, res.Categories[1].Value)
	}
	if res.Grade != 88.01 {
		t.Errorf("grade = %v, want 88.01", res.Grade)
	}
	if res.Display != "88.01" || !res.Passed {
		t.Errorf("display=%q passed=%v", res.Display, res.Passed)
	}
}

func TestComputeGrade_MissedCountsAsZero(t *testing.T) {
	raw := sampleRaw()
	raw["quiz2"] = -1
	tmpl := percentTemplate()
	rec := NormalizeRecord(raw, tmpl)

	// Quizzes mean becomes (90+0+70+60+85)/5 = 61; composite 83.725 rounds away from zero.
	if got := ComputeGrade(rec, tmpl); got != 83.73 {
		t.Fatalf("grade = %v, want 83.73", got)
	}

	res := Breakdown(rec, tmpl)
	quizzes := res.Categories[0].Components[1]
	if quizzes.Scores[1].Display != MissedLabel {
		t.Errorf("quiz2 display = %q, want %q", quizzes.Scores[1].Display, MissedLabel)
	}
	if quizzes.Value != 61 {
		t.Errorf("quizzes component = %v, want 61", quizzes.Value)
	}
}

func TestComputeGrade_ReorderInvariant(t *testing.T) {
	tmpl := percentTemplate()
	rec := NormalizeRecord(sampleRaw(), tmpl)
	want := ComputeGrade(rec, tmpl)

	shuffled := percentTemplate()
	lecture := &shuffled.Categories[0]
	lecture.Components[0], lecture.Components[2] = lecture.Components[2], lecture.Components[0]
	quizzes := &lecture.Components[1]
	quizzes.Fields = []string{"prelim", "quiz4", "quiz2", "quiz3", "quiz1"}
	lab := &shuffled.Categories[1]
	lab.Components[0], lab.Components[1] = lab.Components[1], lab.Components[0]

	if got := ComputeGrade(rec, shuffled); got != want {
		t.Fatalf("reordered grade = %v, want %v", got, want)
	}
}

func TestComputeGrade_MidtermTransmutation(t *testing.T) {
	tmpl := MidtermTemplate()
	if err := tmpl.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	tmpl.normalizeBands()

	rec := NormalizeRecord(sampleRaw(), tmpl)
	if rec.Grade != 1.75 {
		t.Errorf("88.01%% transmuted = %v, want 1.75", rec.Grade)
	}
	if !tmpl.Scale.Passed(rec.Grade) {
		t.Error("1.75 should pass a lower-is-better 3.00 threshold")
	}

	zero := NormalizeRecord(map[string]any{"idNumber": "1"}, tmpl)
	if zero.Grade != 5 || tmpl.Scale.Passed(zero.Grade) {
		t.Errorf("empty record grade = %v passed=%v", zero.Grade, tmpl.Scale.Passed(zero.Grade))
	}
}

func TestComputeGrade_MaxScore(t *testing.T) {
	tmpl := &Template{
		Name: "quiz-points", Collection: "c", GradeField: "total",
		Categories: []Category{{
			Name: "All", Weight: 100,
			Components: []Component{{Name: "Quiz", Weight: 100, Fields: []string{"q"}, MaxScore: 20}},
		}},
		Scale: Scale{Direction: HigherIsBetter, PassThreshold: 50},
	}
	rec := NormalizeRecord(map[string]any{"q": 15}, tmpl)
	if rec.Grade != 75 {
		t.Fatalf("grade = %v, want 75", rec.Grade)
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		1.005:   1.01,
		2.675:   2.68,
		-1.005:  -1.01,
		83.725:  83.73,
		88.013:  88.01,
		0:       0,
		99.9949: 99.99,
	}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestScale_Passed(t *testing.T) {
	lower := Scale{Direction: LowerIsBetter, PassThreshold: 3}
	if !lower.Passed(3) || lower.Passed(3.25) {
		t.Error("lower-is-better threshold misapplied")
	}
	higher := Scale{Direction: HigherIsBetter, PassThreshold: 50}
	if !higher.Passed(50) || higher.Passed(49.99) {
		t.Error("higher-is-better threshold misapplied")
	}
}

// ── Template validation ──

func TestTemplate_Validate(t *testing.T) {
	for _, tmpl := range DefaultTemplates() {
		if err := tmpl.Validate(); err != nil {
			t.Errorf("%s: %v", tmpl.Name, err)
		}
	}

	bad := MidtermTemplate()
	bad.Categories[0].Weight = 60
	if err := bad.Validate(); err == nil {
		t.Error("expected category sum error")
	}

	bad = MidtermTemplate()
	bad.Categories[1].Components[0].Weight = 10
	if err := bad.Validate(); err == nil {
		t.Error("expected component sum error")
	}

	bad = MidtermTemplate()
	bad.Categories[1].Components[0].Fields = []string{"attendance"}
	if err := bad.Validate(); err == nil {
		t.Error("expected duplicate field error")
	}

	bad = MidtermTemplate()
	bad.Scale.Direction = "sideways"
	if err := bad.Validate(); err == nil {
		t.Error("expected direction error")
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(DefaultTemplates()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if def, ok := reg.Get(""); !ok || def.Name != "midterm" {
		t.Errorf("default template = %+v", def)
	}
	if _, ok := reg.Get("final"); !ok {
		t.Error("final template missing")
	}
	if _, ok := reg.Get("summer"); ok {
		t.Error("unexpected template")
	}
	if _, err := NewRegistry(MidtermTemplate(), MidtermTemplate()); err == nil {
		t.Error("expected duplicate template error")
	}
}

func TestLoadTemplates_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `
templates:
  - name: lab-only
    title: Lab Only
    collection: labrecord
    grade_field: labGrade
    columns: [act1, act2, labGrade]
    categories:
      - name: Laboratory
        weight: 100
        components:
          - name: Activities
            weight: 100
            fields: [act1, act2]
    scale:
      direction: higher
      pass_threshold: 60
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	tmpl, ok := reg.Get("lab-only")
	if !ok {
		t.Fatal("lab-only template missing")
	}
	if tmpl.GradeField != "labGrade" || tmpl.Scale.Direction != HigherIsBetter {
		t.Errorf("parsed template = %+v", tmpl)
	}

	rec := NormalizeRecord(map[string]any{"act1": 80, "act2": 50}, tmpl)
	if rec.Grade != 65 || !tmpl.Scale.Passed(rec.Grade) {
		t.Errorf("grade = %v", rec.Grade)
	}
}

func TestLoadTemplates_Defaults(t *testing.T) {
	reg, err := LoadTemplates("")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if len(reg.All()) != 2 {
		t.Fatalf("templates = %d, want 2", len(reg.All()))
	}
}

// ── Lookup ──

func TestFindRecord_CaseAndWhitespaceInsensitive(t *testing.T) {
	records := []StudentRecord{
		{IDNumber: "999", FirstName: "Jane", LastName: "Roe"},
		{IDNumber: "123", FirstName: "John", LastName: "doe"},
	}
	got, err := FindRecord(records, " John ", "DOE", "123")
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	if got.IDNumber != "123" {
		t.Fatalf("matched %+v", got)
	}
}

func TestFindRecord_NotFound(t *testing.T) {
	records := []StudentRecord{{IDNumber: "123", FirstName: "John", LastName: "Doe"}}
	cases := [][3]string{
		{"John", "Doe", "1234"},
		{"Jon", "Doe", "123"},
		{"John", "Doe", ""},
	}
	for _, c := range cases {
		if _, err := FindRecord(records, c[0], c[1], c[2]); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("FindRecord(%v) err = %v, want ErrNotFound", c, err)
		}
	}
}

func TestFindRecord_FirstMatchWins(t *testing.T) {
	records := []StudentRecord{
		{IDNumber: "1", FirstName: "A", LastName: "B", Grade: 1},
		{IDNumber: "1", FirstName: "a", LastName: "b", Grade: 2},
	}
	got, _ := FindRecord(records, "a", "b", "1")
	if got.Grade != 1 {
		t.Fatalf("expected first match, got %+v", got)
	}
}

func TestMatchesSearch(t *testing.T) {
	rec := StudentRecord{IDNumber: "2022123456", FirstName: "John", LastName: "Doe"}
	for _, q := range []string{"", "2022", "john", "DO"} {
		if !MatchesSearch(rec, q) {
			t.Errorf("query %q should match", q)
		}
	}
	if MatchesSearch(rec, "smith") {
		t.Error("query smith should not match")
	}
}

// ── Display ──

func TestDisplayFormatting(t *testing.T) {
	if FormatScore(-1) != "Missed" {
		t.Error("missed label")
	}
	if FormatScore(85) != "85" || FormatScore(85.5) != "85.5" {
		t.Error("score formatting")
	}
	if FormatGrade(3) != "3.00" || FormatGrade(1.755) != "1.76" {
		t.Errorf("grade formatting %s %s", FormatGrade(3), FormatGrade(1.755))
	}
	if got := FullName(StudentRecord{FirstName: "John", LastName: "Doe"}); got != "DOE, JOHN" {
		t.Errorf("FullName = %q", got)
	}
}
