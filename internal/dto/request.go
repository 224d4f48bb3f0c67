package dto

import (
	"time"

	"github.com/campusrec/records-api/internal/models"
)

// CreateUserRequest is the admin payload for provisioning an account.
type CreateUserRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required,min=6"`
	FullName   string          `json:"full_name" validate:"required"`
	Role       models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	EmployeeID *string         `json:"employee_id,omitempty"`
	RollNumber *string         `json:"roll_number,omitempty"`
	Department *string         `json:"department,omitempty"`
	Year       *int            `json:"year,omitempty" validate:"omitempty,min=1,max=8"`
}

// UpdateUserRequest carries partial updates to an account. Nil fields
// are left untouched.
type UpdateUserRequest struct {
	FullName   *string `json:"full_name,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
	RollNumber *string `json:"roll_number,omitempty"`
	Department *string `json:"department,omitempty"`
	Year       *int    `json:"year,omitempty" validate:"omitempty,min=1,max=8"`
	Active     *bool   `json:"active,omitempty"`
}

// CreateSubjectRequest registers a new course unit.
type CreateSubjectRequest struct {
	Code        string   `json:"code" validate:"required,min=2,max=16"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Credits     int      `json:"credits" validate:"required,min=1,max=10"`
	Department  string   `json:"department" validate:"required"`
	TeacherIDs  []string `json:"teacher_ids,omitempty" validate:"omitempty,dive,required"`
}

// UpdateSubjectRequest carries partial updates to a subject.
type UpdateSubjectRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Credits     *int      `json:"credits,omitempty" validate:"omitempty,min=1,max=10"`
	Department  *string   `json:"department,omitempty"`
	TeacherIDs  *[]string `json:"teacher_ids,omitempty" validate:"omitempty,dive,required"`
	Active      *bool     `json:"active,omitempty"`
}

// CreateTestRequest schedules a new assessment.
type CreateTestRequest struct {
	Title        string          `json:"title" validate:"required"`
	Description  string          `json:"description"`
	SubjectID    string          `json:"subject_id" validate:"required"`
	Type         models.TestType `json:"type" validate:"required"`
	MaxMarks     float64         `json:"max_marks" validate:"required,gt=0"`
	PassingMarks float64         `json:"passing_marks" validate:"required,gte=0"`
	TestDate     time.Time       `json:"test_date" validate:"required"`
	DurationMins int             `json:"duration_mins" validate:"omitempty,min=0"`
}

// UpdateTestRequest carries partial updates to a test.
type UpdateTestRequest struct {
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Type         *models.TestType `json:"type,omitempty"`
	MaxMarks     *float64         `json:"max_marks,omitempty" validate:"omitempty,gt=0"`
	PassingMarks *float64         `json:"passing_marks,omitempty" validate:"omitempty,gte=0"`
	TestDate     *time.Time       `json:"test_date,omitempty"`
	DurationMins *int             `json:"duration_mins,omitempty" validate:"omitempty,min=0"`
	Active       *bool            `json:"active,omitempty"`
}

// MarkEntry is one student's score within a batch submission.
type MarkEntry struct {
	StudentID     string  `json:"student_id" validate:"required"`
	MarksObtained float64 `json:"marks_obtained" validate:"gte=0"`
	Remarks       string  `json:"remarks,omitempty"`
}

// SubmitMarksRequest uploads marks for many students of one test.
type SubmitMarksRequest struct {
	Marks []MarkEntry `json:"marks" validate:"required,min=1,dive"`
}

// MarkFailure records why a single entry in a batch was rejected.
type MarkFailure struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// SubmitMarksResponse summarizes a batch submission. Failures lists the
// entries that were skipped; the rest were written.
type SubmitMarksResponse struct {
	Results  int           `json:"results"`
	Failures []MarkFailure `json:"errors"`
}
