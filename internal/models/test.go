package models

import "time"

// TestType categorizes an assessment.
type TestType string

const (
	TestTypeQuiz       TestType = "quiz"
	TestTypeMidterm    TestType = "midterm"
	TestTypeFinal      TestType = "final"
	TestTypeAssignment TestType = "assignment"
	TestTypeExam       TestType = "exam"
)

// ValidTestType reports whether t is a known assessment type.
func ValidTestType(t TestType) bool {
	switch t {
	case TestTypeQuiz, TestTypeMidterm, TestTypeFinal, TestTypeAssignment, TestTypeExam:
		return true
	}
	return false
}

// Test is a graded assessment belonging to a subject.
type Test struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	Type         TestType  `db:"type" json:"type"`
	MaxMarks     float64   `db:"max_marks" json:"max_marks"`
	PassingMarks float64   `db:"passing_marks" json:"passing_marks"`
	TestDate     time.Time `db:"test_date" json:"test_date"`
	DurationMins int       `db:"duration_mins" json:"duration_mins"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TestDetail is a test joined with subject and creator names.
type TestDetail struct {
	Test
	SubjectName   string `db:"subject_name" json:"subject_name"`
	SubjectCode   string `db:"subject_code" json:"subject_code"`
	CreatedByName string `db:"created_by_name" json:"created_by_name"`
}

// TestFilter narrows test listings. SubjectIDs restricts results to
// tests belonging to any of the given subjects.
type TestFilter struct {
	SubjectID  string
	SubjectIDs []string
	Type       *TestType
	Active     *bool
	From       *time.Time
	To         *time.Time
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
