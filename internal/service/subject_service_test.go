package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/models"
)

type mockSubjectRepo struct {
	subjects    map[string]models.Subject
	assignments map[string][]string
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: map[string]models.Subject{}, assignments: map[string][]string{}}
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	s, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockSubjectRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, s := range m.subjects {
		if strings.EqualFold(s.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var out []models.Subject
	for _, s := range m.subjects {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = "sub-" + subject.Code
	}
	m.subjects[subject.ID] = *subject
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	if _, ok := m.subjects[subject.ID]; !ok {
		return sql.ErrNoRows
	}
	m.subjects[subject.ID] = *subject
	return nil
}

func (m *mockSubjectRepo) Deactivate(ctx context.Context, id string) error {
	s, ok := m.subjects[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Active = false
	m.subjects[id] = s
	return nil
}

func (m *mockSubjectRepo) ReplaceTeachers(ctx context.Context, subjectID string, teacherIDs []string) error {
	m.assignments[subjectID] = append([]string(nil), teacherIDs...)
	return nil
}

func (m *mockSubjectRepo) ListTeachers(ctx context.Context, subjectID string) ([]models.SubjectTeacher, error) {
	var out []models.SubjectTeacher
	for _, id := range m.assignments[subjectID] {
		out = append(out, models.SubjectTeacher{UserID: id})
	}
	return out, nil
}

func (m *mockSubjectRepo) Reconcile(ctx context.Context) (int64, error) {
	return 0, nil
}

func newSubjectFixture() (*SubjectService, *mockSubjectRepo, *mockUserLookup) {
	repo := newMockSubjectRepo()
	users := &mockUserLookup{users: map[string]models.User{
		"teach1": {ID: "teach1", Role: models.RoleTeacher, Active: true, FullName: "Teacher One"},
		"s1":     {ID: "s1", Role: models.RoleStudent, Active: true},
	}}
	return NewSubjectService(repo, users, nil, nil), repo, users
}

func TestCreateSubjectUppercasesCode(t *testing.T) {
	svc, repo, _ := newSubjectFixture()

	detail, err := svc.Create(context.Background(), dto.CreateSubjectRequest{
		Code:       "math101",
		Name:       "Mathematics",
		Credits:    4,
		Department: "Science",
	})
	require.NoError(t, err)
	assert.Equal(t, "MATH101", detail.Code)
	assert.True(t, detail.Active)
	assert.NotNil(t, detail.Teachers)
	assert.Len(t, repo.subjects, 1)
}

func TestCreateSubjectDuplicateCode(t *testing.T) {
	svc, repo, _ := newSubjectFixture()
	repo.subjects["sub1"] = models.Subject{ID: "sub1", Code: "MATH101"}

	_, err := svc.Create(context.Background(), dto.CreateSubjectRequest{
		Code:       "Math101",
		Name:       "Mathematics",
		Credits:    4,
		Department: "Science",
	})
	require.Error(t, err)
}

func TestCreateSubjectRejectsNonTeacher(t *testing.T) {
	svc, _, _ := newSubjectFixture()

	_, err := svc.Create(context.Background(), dto.CreateSubjectRequest{
		Code:       "PHY101",
		Name:       "Physics",
		Credits:    3,
		Department: "Science",
		TeacherIDs: []string{"s1"},
	})
	require.Error(t, err)
}

func TestUpdateSubjectReplacesTeachers(t *testing.T) {
	svc, repo, _ := newSubjectFixture()
	repo.subjects["sub1"] = models.Subject{ID: "sub1", Code: "MATH101", Name: "Mathematics", Active: true}
	repo.assignments["sub1"] = []string{"old-teacher"}

	teacherIDs := []string{"teach1"}
	detail, err := svc.Update(context.Background(), "sub1", dto.UpdateSubjectRequest{TeacherIDs: &teacherIDs})
	require.NoError(t, err)
	require.Len(t, detail.Teachers, 1)
	assert.Equal(t, "teach1", detail.Teachers[0].UserID)
}

func TestDeactivateSubject(t *testing.T) {
	svc, repo, _ := newSubjectFixture()
	repo.subjects["sub1"] = models.Subject{ID: "sub1", Code: "MATH101", Active: true}
	repo.assignments["sub1"] = []string{"teach1"}

	err := svc.Deactivate(context.Background(), "sub1")
	require.NoError(t, err)
	assert.False(t, repo.subjects["sub1"].Active)

	// Assignments are cleared so the subject stops granting scope.
	assert.Empty(t, repo.assignments["sub1"])

	err = svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
}
