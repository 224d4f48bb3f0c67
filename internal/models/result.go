package models

import "time"

// Result is a student's graded outcome for a single test. A student has
// at most one result per test; resubmission replaces the row in place.
type Result struct {
	ID            string    `db:"id" json:"id"`
	TestID        string    `db:"test_id" json:"test_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	MarksObtained float64   `db:"marks_obtained" json:"marks_obtained"`
	Percentage    float64   `db:"percentage" json:"percentage"`
	Grade         string    `db:"grade" json:"grade"`
	Passed        bool      `db:"passed" json:"passed"`
	Remarks       string    `db:"remarks" json:"remarks"`
	GradedBy      string    `db:"graded_by" json:"graded_by"`
	GradedAt      time.Time `db:"graded_at" json:"graded_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ResultDetail is a result joined with student and test context.
type ResultDetail struct {
	Result
	StudentName string  `db:"student_name" json:"student_name"`
	RollNumber  *string `db:"roll_number" json:"roll_number,omitempty"`
	TestTitle   string  `db:"test_title" json:"test_title"`
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	SubjectCode string  `db:"subject_code" json:"subject_code"`
	MaxMarks    float64 `db:"max_marks" json:"max_marks"`
}

// ResultFilter narrows result listings.
type ResultFilter struct {
	TestID    string
	StudentID string
	SubjectID string
	Passed    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TestResultStats are aggregates over all results of one test.
type TestResultStats struct {
	TotalStudents     int     `db:"total_students" json:"total_students"`
	AveragePercentage float64 `db:"average_percentage" json:"average_percentage"`
	HighestPercentage float64 `db:"highest_percentage" json:"highest_percentage"`
	LowestPercentage  float64 `db:"lowest_percentage" json:"lowest_percentage"`
	PassedCount       int     `db:"passed_count" json:"passed_count"`
	FailedCount       int     `db:"failed_count" json:"failed_count"`
}
