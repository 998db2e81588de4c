package grading

// pointScale is the 1.00 (best) to 5.00 (failed) transmutation used for the
// midterm period.
var pointScale = []Band{
	{Min: 97, Grade: 1.00},
	{Min: 94, Grade: 1.25},
	{Min: 91, Grade: 1.50},
	{Min: 88, Grade: 1.75},
	{Min: 85, Grade: 2.00},
	{Min: 82, Grade: 2.25},
	{Min: 79, Grade: 2.50},
	{Min: 76, Grade: 2.75},
	{Min: 75, Grade: 3.00},
	{Min: 0, Grade: 5.00},
}

// MidtermTemplate is the midterm class record layout.
func MidtermTemplate() *Template {
	return &Template{
		Name:       "midterm",
		Title:      "Computer Programming 1 - Midterm Record",
		Collection: "classrecord",
		GradeField: "midtermGrade",
		Columns: []string{
			"attendance",
			"quiz1", "quiz2", "quiz3", "quiz4",
			"prelim",
			"midtermwrittenexam",
			"assignment1",
			"activity1",
			"midtermlabexam",
			"midtermGrade",
		},
		Categories: []Category{
			{
				Name:   "Lecture",
				Weight: 67,
				Components: []Component{
					{Name: "Attendance", Weight: 20, Fields: []string{"attendance"}},
					{Name: "Quizzes & Prelim", Weight: 40, Fields: []string{"quiz1", "quiz2", "quiz3", "quiz4", "prelim"}},
					{Name: "Midterm Written Exam", Weight: 40, Fields: []string{"midtermwrittenexam"}},
				},
			},
			{
				Name:   "Laboratory",
				Weight: 33,
				Components: []Component{
					{Name: "Assignment", Weight: 30, Fields: []string{"assignment1"}},
					{Name: "Activity", Weight: 30, Fields: []string{"activity1"}},
					{Name: "Midterm Lab Exam", Weight: 40, Fields: []string{"midtermlabexam"}},
				},
			},
		},
		Scale: Scale{
			Direction:     LowerIsBetter,
			PassThreshold: 3.00,
			Transmutation: append([]Band(nil), pointScale...),
		},
	}
}

// FinalTemplate is the final-period class record layout, reported as a percentage.
func FinalTemplate() *Template {
	return &Template{
		Name:       "final",
		Title:      "Computer Programming 1 - Final Record",
		Collection: "classrecord_final",
		GradeField: "finalGrade",
		Columns: []string{
			"attendance",
			"quiz1", "quiz2", "quiz3", "quiz4",
			"prefinal",
			"finalwrittenexam",
			"assignment1", "assignment2",
			"activity1", "activity2",
			"individualGrade", "groupGrade",
			"finallabexam",
			"finalGrade",
		},
		Categories: []Category{
			{
				Name:   "Lecture",
				Weight: 67,
				Components: []Component{
					{Name: "Attendance", Weight: 20, Fields: []string{"attendance"}},
					{Name: "Quizzes & Prefinal", Weight: 40, Fields: []string{"quiz1", "quiz2", "quiz3", "quiz4", "prefinal"}},
					{Name: "Final Written Exam", Weight: 40, Fields: []string{"finalwrittenexam"}},
				},
			},
			{
				Name:   "Laboratory",
				Weight: 33,
				Components: []Component{
					{Name: "Assignments & Activities", Weight: 30, Fields: []string{"assignment1", "assignment2", "activity1", "activity2"}},
					{Name: "Project", Weight: 30, Fields: []string{"individualGrade", "groupGrade"}},
					{Name: "Final Lab Exam", Weight: 40, Fields: []string{"finallabexam"}},
				},
			},
		},
		Scale: Scale{
			Direction:     HigherIsBetter,
			PassThreshold: 50,
		},
	}
}

// DefaultTemplates returns the built-in templates, midterm first.
func DefaultTemplates() []*Template {
	return []*Template{MidtermTemplate(), FinalTemplate()}
}
