package models

import "time"

// Subject is a course unit taught by one or more teachers.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Credits     int       `db:"credits" json:"credits"`
	Department  string    `db:"department" json:"department"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectTeacher is an assignment row joined with the teacher's identity.
type SubjectTeacher struct {
	UserID     string  `db:"user_id" json:"user_id"`
	FullName   string  `db:"full_name" json:"full_name"`
	Email      string  `db:"email" json:"email"`
	EmployeeID *string `db:"employee_id" json:"employee_id,omitempty"`
}

// SubjectDetail is a subject together with its assigned teachers.
type SubjectDetail struct {
	Subject
	Teachers []SubjectTeacher `json:"teachers"`
}

// SubjectFilter narrows subject listings.
type SubjectFilter struct {
	Department string
	TeacherID  string
	Active     *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
