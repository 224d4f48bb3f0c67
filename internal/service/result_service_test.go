package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/grading"
	"github.com/campusrec/records-api/internal/models"
)

type mockResultRepo struct {
	stored map[string]models.Result
}

func (m *mockResultRepo) key(testID, studentID string) string {
	return testID + "/" + studentID
}

func (m *mockResultRepo) Upsert(ctx context.Context, result *models.Result) error {
	if m.stored == nil {
		m.stored = make(map[string]models.Result)
	}
	m.stored[m.key(result.TestID, result.StudentID)] = *result
	return nil
}

func (m *mockResultRepo) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, int, error) {
	var out []models.ResultDetail
	for _, r := range m.stored {
		if filter.TestID != "" && r.TestID != filter.TestID {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		out = append(out, models.ResultDetail{Result: r, StudentName: "Student", MaxMarks: 100})
	}
	return out, len(out), nil
}

func (m *mockResultRepo) StatsByTest(ctx context.Context, testID string) (*models.TestResultStats, error) {
	stats := &models.TestResultStats{}
	for _, r := range m.stored {
		if r.TestID != testID {
			continue
		}
		stats.TotalStudents++
		if r.Passed {
			stats.PassedCount++
		} else {
			stats.FailedCount++
		}
	}
	return stats, nil
}

type mockTestRepo struct {
	tests map[string]models.TestDetail
}

func (m *mockTestRepo) FindByID(ctx context.Context, id string) (*models.TestDetail, error) {
	t, ok := m.tests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

type mockUserLookup struct {
	users map[string]models.User
}

func (m *mockUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

type mockSubjectLookup struct {
	byTeacher map[string][]string
}

func (m *mockSubjectLookup) ListIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	return m.byTeacher[teacherID], nil
}

func activeStudent(id string) models.User {
	return models.User{ID: id, Role: models.RoleStudent, Active: true, FullName: "Student " + id}
}

func newResultService(results *mockResultRepo, tests *mockTestRepo, users *mockUserLookup, subjects *mockSubjectLookup) *ResultService {
	return NewResultService(results, tests, users, subjects, nil, nil, grading.DefaultPolicy(), nil, nil)
}

func standardTest() models.TestDetail {
	return models.TestDetail{
		Test: models.Test{
			ID:           "t1",
			Title:        "Midterm",
			SubjectID:    "sub1",
			MaxMarks:     100,
			PassingMarks: 40,
			Active:       true,
			TestDate:     time.Now(),
		},
		SubjectName: "Mathematics",
	}
}

func TestSubmitMarksGradesAndStores(t *testing.T) {
	results := &mockResultRepo{}
	tests := &mockTestRepo{tests: map[string]models.TestDetail{"t1": standardTest()}}
	users := &mockUserLookup{users: map[string]models.User{"s1": activeStudent("s1")}}
	svc := newResultService(results, tests, users, &mockSubjectLookup{})
	claims := &models.JWTClaims{UserID: "teacher1", Role: models.RoleAdmin}

	resp, err := svc.SubmitMarks(context.Background(), "t1", dto.SubmitMarksRequest{
		Marks: []dto.MarkEntry{{StudentID: "s1", MarksObtained: 85}},
	}, claims)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Results)
	assert.Empty(t, resp.Failures)

	stored := results.stored["t1/s1"]
	assert.InDelta(t, 85.0, stored.Percentage, 0.0001)
	assert.Equal(t, "A", stored.Grade)
	assert.True(t, stored.Passed)
	assert.Equal(t, "teacher1", stored.GradedBy)
}

func TestSubmitMarksResubmissionReplaces(t *testing.T) {
	results := &mockResultRepo{}
	tests := &mockTestRepo{tests: map[string]models.TestDetail{"t1": standardTest()}}
	users := &mockUserLookup{users: map[string]models.User{"s1": activeStudent("s1")}}
	svc := newResultService(results, tests, users, &mockSubjectLookup{})
	claims := &models.JWTClaims{UserID: "teacher1", Role: models.RoleAdmin}

	_, err := svc.SubmitMarks(context.Background(), "t1", dto.SubmitMarksRequest{
		Marks: []dto.MarkEntry{{StudentID: "s1", MarksObtained: 30}},
	}, claims)
	require.NoError(t, err)
	assert.False(t, results.stored["t1/s1"].Passed)
	assert.Equal(t, "F", results.stored["t1/s1"].Grade)

	_, err = svc.SubmitMarks(context.Background(), "t1", dto.SubmitMarksRequest{
		Marks: []dto.MarkEntry{{StudentID: "s1", MarksObtained: 90}},
	}, claims)
	require.NoError(t, err)

	require.Len(t, results.stored, 1)
	stored := results.stored["t1/s1"]
	assert.Equal(t, "A+", stored.Grade)
	assert.True(t, stored.Passed)
	assert.InDelta(t, 90.0, stored.Percentage, 0.0001)
}

func TestSubmitMarksCollectsPerEntryFailures(t *testing.T) {
	results := &mockResultRepo{}
	tests := &mockTestRepo{tests: map[string]models.TestDetail{"t1": standardTest()}}
	users := &mockUserLookup{users: map[string]models.User{"s1": activeStudent("s1")}}
	svc := newResultService(results, tests, users, &mockSubjectLookup{})
	claims := &models.JWTClaims{UserID: "teacher1", Role: models.RoleAdmin}

	resp, err := svc.SubmitMarks(context.Background(), "t1", dto.SubmitMarksRequest{
		Marks: []dto.MarkEntry{
			{StudentID: "s1", MarksObtained: 40},
			{StudentID: "ghost", MarksObtained: 50},
			{StudentID: "s1", MarksObtained: 60},
			{StudentID: "s1x", MarksObtained: 120},
		},
	}, claims)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Results)
	require.Len(t, resp.Failures, 3)

	stored := results.stored["t1/s1"]
	assert.Equal(t, "C", stored.Grade)
	assert.True(t, stored.Passed)
}

func TestSubmitMarksTeacherScope(t *testing.T) {
	results := &mockResultRepo{}
	tests := &mockTestRepo{tests: map[string]models.TestDetail{"t1": standardTest()}}
	users := &mockUserLookup{users: map[string]models.User{"s1": activeStudent("s1")}}
	subjects := &mockSubjectLookup{byTeacher: map[string][]string{"teach1": {"other-subject"}}}
	svc := newResultService(results, tests, users, subjects)

	_, err := svc.SubmitMarks(context.Background(), "t1", dto.SubmitMarksRequest{
		Marks: []dto.MarkEntry{{StudentID: "s1", MarksObtained: 70}},
	}, &models.JWTClaims{UserID: "teach1", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Empty(t, results.stored)

	subjects.byTeacher["teach1"] = []string{"sub1"}
	resp, err := svc.SubmitMarks(context.Background(), "t1", dto.SubmitMarksRequest{
		Marks: []dto.MarkEntry{{StudentID: "s1", MarksObtained: 70}},
	}, &models.JWTClaims{UserID: "teach1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Results)
}

func TestSubmitMarksInactiveTest(t *testing.T) {
	inactive := standardTest()
	inactive.Active = false
	tests := &mockTestRepo{tests: map[string]models.TestDetail{"t1": inactive}}
	svc := newResultService(&mockResultRepo{}, tests, &mockUserLookup{}, &mockSubjectLookup{})

	_, err := svc.SubmitMarks(context.Background(), "t1", dto.SubmitMarksRequest{
		Marks: []dto.MarkEntry{{StudentID: "s1", MarksObtained: 50}},
	}, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.Error(t, err)
}

func TestListStudentResultsSelfOnly(t *testing.T) {
	results := &mockResultRepo{stored: map[string]models.Result{
		"t1/s1": {TestID: "t1", StudentID: "s1", Percentage: 80},
	}}
	svc := newResultService(results, &mockTestRepo{}, &mockUserLookup{}, &mockSubjectLookup{})

	_, _, err := svc.ListStudentResults(context.Background(), "s1", models.ResultFilter{}, &models.JWTClaims{UserID: "s2", Role: models.RoleStudent})
	require.Error(t, err)

	rows, total, err := svc.ListStudentResults(context.Background(), "s1", models.ResultFilter{}, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
}

func TestExportTestResultsCSV(t *testing.T) {
	results := &mockResultRepo{stored: map[string]models.Result{
		"t1/s1": {TestID: "t1", StudentID: "s1", MarksObtained: 85, Percentage: 85, Grade: "A", Passed: true},
	}}
	tests := &mockTestRepo{tests: map[string]models.TestDetail{"t1": standardTest()}}
	svc := newResultService(results, tests, &mockUserLookup{}, &mockSubjectLookup{})

	payload, contentType, err := svc.ExportTestResults(context.Background(), "t1", ExportCSV, &models.JWTClaims{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Roll Number")
	assert.Contains(t, string(payload), "PASS")
}
