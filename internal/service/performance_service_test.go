package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/models"
)

type mockPerformanceResults struct {
	student map[string][]models.ResultDetail
	cohort  []models.ResultDetail
}

func (m *mockPerformanceResults) StudentRows(ctx context.Context, studentID string) ([]models.ResultDetail, error) {
	return m.student[studentID], nil
}

func (m *mockPerformanceResults) CohortRows(ctx context.Context, subjectID string) ([]models.ResultDetail, error) {
	return m.cohort, nil
}

func (m *mockPerformanceResults) CountAll(ctx context.Context) (int, error) {
	return len(m.cohort), nil
}

type mockPerformanceUsers struct {
	users map[string]models.User
}

func (m *mockPerformanceUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (m *mockPerformanceUsers) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	var n int
	for _, u := range m.users {
		if u.Role == role && u.Active {
			n++
		}
	}
	return n, nil
}

func (m *mockPerformanceUsers) ListRecent(ctx context.Context, limit int) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type mockPerformanceSubjects struct{ count int }

func (m *mockPerformanceSubjects) CountActive(ctx context.Context) (int, error) {
	return m.count, nil
}

type mockPerformanceTests struct {
	count  int
	recent []models.TestDetail
}

func (m *mockPerformanceTests) CountActive(ctx context.Context) (int, error) {
	return m.count, nil
}

func (m *mockPerformanceTests) ListRecent(ctx context.Context, limit int) ([]models.TestDetail, error) {
	return m.recent, nil
}

func cohortResult(studentID string, percentage float64, passed bool) models.ResultDetail {
	return models.ResultDetail{
		Result:      models.Result{StudentID: studentID, Percentage: percentage, Passed: passed},
		StudentName: "Student " + studentID,
	}
}

func newPerformanceService(results *mockPerformanceResults, users *mockPerformanceUsers) *PerformanceService {
	return NewPerformanceService(results, users, &mockPerformanceSubjects{}, &mockPerformanceTests{}, nil, PerformanceConfig{TopPerformers: 5, TrendLength: 10}, nil)
}

func TestClassDashboardDistribution(t *testing.T) {
	results := &mockPerformanceResults{cohort: []models.ResultDetail{
		cohortResult("s1", 95, true),
		cohortResult("s2", 72, true),
		cohortResult("s3", 40, false),
	}}
	svc := newPerformanceService(results, &mockPerformanceUsers{})

	resp, cached, err := svc.ClassDashboard(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, 1, resp.Distribution.Excellent)
	assert.Equal(t, 1, resp.Distribution.Good)
	assert.Equal(t, 0, resp.Distribution.Average)
	assert.Equal(t, 1, resp.Distribution.NeedsImprovement)

	assert.Equal(t, 3, resp.Stats.TotalResults)
	assert.Equal(t, 69, resp.Stats.AveragePercentage)
	assert.Equal(t, 67, resp.Stats.PassRate)
}

func TestClassDashboardRoundsAggregates(t *testing.T) {
	// Mean 69.33 rounds down to 69 for display.
	results := &mockPerformanceResults{cohort: []models.ResultDetail{
		cohortResult("s1", 95, true),
		cohortResult("s2", 72, true),
		cohortResult("s3", 41, false),
	}}
	svc := newPerformanceService(results, &mockPerformanceUsers{})

	resp, _, err := svc.ClassDashboard(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 69, resp.Stats.AveragePercentage)
	assert.Equal(t, 67, resp.Stats.PassRate)

	// Per-student means round half-up; s2's 72.5 displays as 73.
	results.cohort = append(results.cohort, cohortResult("s2", 73, true))
	resp, _, err = svc.ClassDashboard(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, resp.TopPerformers, 3)
	assert.Equal(t, "s2", resp.TopPerformers[1].StudentID)
	assert.Equal(t, 73, resp.TopPerformers[1].Average)
}

func TestClassDashboardTopPerformers(t *testing.T) {
	results := &mockPerformanceResults{cohort: []models.ResultDetail{
		cohortResult("s1", 90, true),
		cohortResult("s1", 70, true),
		cohortResult("s2", 80, true),
		cohortResult("s3", 80, true),
		cohortResult("s4", 50, true),
	}}
	svc := newPerformanceService(results, &mockPerformanceUsers{})

	resp, _, err := svc.ClassDashboard(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, resp.TopPerformers, 4)

	// s1, s2 and s3 all average 80; ties order by student ID.
	assert.Equal(t, "s1", resp.TopPerformers[0].StudentID)
	assert.Equal(t, "s2", resp.TopPerformers[1].StudentID)
	assert.Equal(t, "s3", resp.TopPerformers[2].StudentID)
	assert.Equal(t, "s4", resp.TopPerformers[3].StudentID)
	assert.Equal(t, 2, resp.TopPerformers[0].TestCount)
}

func TestStudentDashboardSummaryAndTrend(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	// Rows arrive most recent first, as the repository returns them.
	rows := []models.ResultDetail{
		{Result: models.Result{StudentID: "s1", Percentage: 90, Passed: true, GradedAt: base.Add(48 * time.Hour)}, TestTitle: "Final", SubjectID: "sub1", SubjectName: "Mathematics"},
		{Result: models.Result{StudentID: "s1", Percentage: 30, Passed: false, GradedAt: base.Add(24 * time.Hour)}, TestTitle: "Quiz", SubjectID: "sub2", SubjectName: "Physics"},
		{Result: models.Result{StudentID: "s1", Percentage: 60, Passed: true, GradedAt: base}, TestTitle: "Midterm", SubjectID: "sub1", SubjectName: "Mathematics"},
	}
	results := &mockPerformanceResults{student: map[string][]models.ResultDetail{"s1": rows}}
	users := &mockPerformanceUsers{users: map[string]models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, Active: true, FullName: "Student One"},
	}}
	svc := newPerformanceService(results, users)

	resp, cached, err := svc.StudentDashboard(context.Background(), "s1", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, 3, resp.Summary.TotalTests)
	assert.Equal(t, 60, resp.Summary.AverageScore)
	assert.InDelta(t, 90.0, resp.Summary.HighestScore, 0.0001)
	assert.InDelta(t, 30.0, resp.Summary.LowestScore, 0.0001)
	assert.Equal(t, 2, resp.Summary.PassedTests)
	assert.Equal(t, 1, resp.Summary.FailedTests)

	require.Len(t, resp.RecentTrend, 3)
	assert.Equal(t, "Midterm", resp.RecentTrend[0].TestTitle)
	assert.Equal(t, "Final", resp.RecentTrend[2].TestTitle)

	require.Len(t, resp.SubjectAverages, 2)
	assert.Equal(t, "Mathematics", resp.SubjectAverages[0].SubjectName)
	assert.Equal(t, 75, resp.SubjectAverages[0].Average)
	assert.Equal(t, 2, resp.SubjectAverages[0].TestCount)
}

func TestStudentDashboardWithoutResults(t *testing.T) {
	users := &mockPerformanceUsers{users: map[string]models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, Active: true, FullName: "Student One"},
	}}
	svc := newPerformanceService(&mockPerformanceResults{}, users)

	resp, _, err := svc.StudentDashboard(context.Background(), "s1", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	require.NoError(t, err)

	assert.Equal(t, dto.StudentSummary{}, resp.Summary)
	assert.Empty(t, resp.RecentTrend)
	assert.Empty(t, resp.SubjectAverages)
}

func TestStudentDashboardSelfOnly(t *testing.T) {
	svc := newPerformanceService(&mockPerformanceResults{}, &mockPerformanceUsers{})

	_, _, err := svc.StudentDashboard(context.Background(), "s1", &models.JWTClaims{UserID: "s2", Role: models.RoleStudent})
	require.Error(t, err)
}

func TestStudentDashboardUnknownStudent(t *testing.T) {
	svc := newPerformanceService(&mockPerformanceResults{}, &mockPerformanceUsers{users: map[string]models.User{}})

	_, _, err := svc.StudentDashboard(context.Background(), "missing", &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.Error(t, err)
}

func TestTrendCapsLength(t *testing.T) {
	var rows []models.ResultDetail
	for i := 0; i < 15; i++ {
		rows = append(rows, models.ResultDetail{
			Result:    models.Result{StudentID: "s1", Percentage: float64(50 + i)},
			TestTitle: "T",
		})
	}
	points := trend(rows, 10)
	assert.Len(t, points, 10)
	// Oldest of the retained window comes first.
	assert.InDelta(t, 59.0, points[0].Percentage, 0.0001)
	assert.InDelta(t, 50.0, points[9].Percentage, 0.0001)
}

func TestAdminDashboardCounts(t *testing.T) {
	users := &mockPerformanceUsers{users: map[string]models.User{
		"a1": {ID: "a1", Role: models.RoleAdmin, Active: true},
		"t1": {ID: "t1", Role: models.RoleTeacher, Active: true},
		"s1": {ID: "s1", Role: models.RoleStudent, Active: true},
		"s2": {ID: "s2", Role: models.RoleStudent, Active: true},
	}}
	results := &mockPerformanceResults{cohort: []models.ResultDetail{cohortResult("s1", 80, true)}}
	svc := NewPerformanceService(results, users, &mockPerformanceSubjects{count: 4}, &mockPerformanceTests{count: 7}, nil, PerformanceConfig{}, nil)

	resp, _, err := svc.AdminDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalStudents)
	assert.Equal(t, 1, resp.TotalTeachers)
	assert.Equal(t, 4, resp.TotalSubjects)
	assert.Equal(t, 7, resp.TotalTests)
	assert.Equal(t, 1, resp.TotalResults)
}
