package dto

import "time"

// StudentSummary aggregates a student's full result history.
type StudentSummary struct {
	TotalTests   int     `json:"total_tests"`
	AverageScore int     `json:"average_score"`
	HighestScore float64 `json:"highest_score"`
	LowestScore  float64 `json:"lowest_score"`
	PassedTests  int     `json:"passed_tests"`
	FailedTests  int     `json:"failed_tests"`
}

// SubjectAverage is a student's mean percentage within one subject,
// rounded to the nearest integer point for display.
type SubjectAverage struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	SubjectCode string `json:"subject_code"`
	TestCount   int    `json:"test_count"`
	Average     int    `json:"average"`
}

// TrendPoint is one entry of a student's recent-performance series,
// ordered oldest first.
type TrendPoint struct {
	TestTitle  string    `json:"test_title"`
	Percentage float64   `json:"percentage"`
	Date       time.Time `json:"date"`
	Subject    string    `json:"subject"`
}

// StudentDashboardResponse is the /dashboard/student payload.
type StudentDashboardResponse struct {
	StudentID       string           `json:"student_id"`
	StudentName     string           `json:"student_name"`
	Summary         StudentSummary   `json:"summary"`
	SubjectAverages []SubjectAverage `json:"subject_averages"`
	RecentTrend     []TrendPoint     `json:"recent_trend"`
}

// TopPerformer is one entry of the class leaderboard.
type TopPerformer struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	RollNumber  string `json:"roll_number,omitempty"`
	TestCount   int    `json:"test_count"`
	Average     int    `json:"average"`
}

// Distribution buckets a cohort's percentages into performance bands.
type Distribution struct {
	Excellent        int `json:"excellent"`
	Good             int `json:"good"`
	Average          int `json:"average"`
	NeedsImprovement int `json:"needs_improvement"`
}

// ClassStats aggregates an entire cohort's results. Percentages are
// rounded to the nearest integer point for display.
type ClassStats struct {
	TotalResults      int `json:"total_results"`
	AveragePercentage int `json:"average_percentage"`
	PassRate          int `json:"pass_rate"`
}

// ClassDashboardResponse is the /dashboard/class payload.
type ClassDashboardResponse struct {
	Stats         ClassStats     `json:"stats"`
	Distribution  Distribution   `json:"distribution"`
	TopPerformers []TopPerformer `json:"top_performers"`
}

// RecentUser is a condensed account entry for the admin dashboard.
type RecentUser struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentTest is a condensed assessment entry for the admin dashboard.
type RecentTest struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SubjectName string    `json:"subject_name"`
	TestDate    time.Time `json:"test_date"`
}

// AdminDashboardResponse is the /dashboard/admin payload.
type AdminDashboardResponse struct {
	TotalStudents int          `json:"total_students"`
	TotalTeachers int          `json:"total_teachers"`
	TotalSubjects int          `json:"total_subjects"`
	TotalTests    int          `json:"total_tests"`
	TotalResults  int          `json:"total_results"`
	RecentUsers   []RecentUser `json:"recent_users"`
	RecentTests   []RecentTest `json:"recent_tests"`
}
