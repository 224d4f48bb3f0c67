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

type mockUserRepo struct {
	users    map[string]models.User
	hasAdmin bool
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]models.User{}}
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "id-" + user.Email
	}
	m.users[user.ID] = *user
	if user.Role == models.RoleAdmin {
		m.hasAdmin = true
	}
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = false
	m.users[id] = u
	return nil
}

func (m *mockUserRepo) RevokeUserTokens(ctx context.Context, userID string, ts time.Time) error {
	return nil
}

func (m *mockUserRepo) HasActiveAdmin(ctx context.Context) (bool, error) {
	return m.hasAdmin, nil
}

type mockTeacherCleanup struct {
	removed []string
}

func (m *mockTeacherCleanup) RemoveTeacher(ctx context.Context, teacherID string) error {
	m.removed = append(m.removed, teacherID)
	return nil
}

type mockStudentCleanup struct {
	removed []string
}

func (m *mockStudentCleanup) DeleteByStudent(ctx context.Context, studentID string) error {
	m.removed = append(m.removed, studentID)
	return nil
}

func strPtr(s string) *string { return &s }

func TestCreateUserRequiresRoleFields(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, &mockTeacherCleanup{}, &mockStudentCleanup{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email:    "s@example.com",
		Password: "secret123",
		FullName: "Student",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{
		Email:    "t@example.com",
		Password: "secret123",
		FullName: "Teacher",
		Role:     models.RoleTeacher,
	})
	require.Error(t, err)

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email:      "s@example.com",
		Password:   "secret123",
		FullName:   "Student",
		Role:       models.RoleStudent,
		RollNumber: strPtr("R-001"),
	})
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.NotEqual(t, "secret123", user.PasswordHash)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = models.User{ID: "u1", Email: "dup@example.com", Role: models.RoleStudent}
	svc := NewUserService(repo, &mockTeacherCleanup{}, &mockStudentCleanup{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email:      "dup@example.com",
		Password:   "secret123",
		FullName:   "Other",
		Role:       models.RoleStudent,
		RollNumber: strPtr("R-002"),
	})
	require.Error(t, err)
}

func TestDeactivateAdminForbidden(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["a1"] = models.User{ID: "a1", Role: models.RoleAdmin, Active: true}
	svc := NewUserService(repo, &mockTeacherCleanup{}, &mockStudentCleanup{}, nil, nil, nil)

	err := svc.Deactivate(context.Background(), "a1")
	require.Error(t, err)
	assert.True(t, repo.users["a1"].Active)
}

func TestDeactivateTeacherCascades(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["t1"] = models.User{ID: "t1", Role: models.RoleTeacher, Active: true}
	teachers := &mockTeacherCleanup{}
	svc := NewUserService(repo, teachers, &mockStudentCleanup{}, nil, nil, nil)

	err := svc.Deactivate(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, repo.users["t1"].Active)
	assert.Equal(t, []string{"t1"}, teachers.removed)
}

func TestDeactivateStudentCascades(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["s1"] = models.User{ID: "s1", Role: models.RoleStudent, Active: true}
	students := &mockStudentCleanup{}
	svc := NewUserService(repo, &mockTeacherCleanup{}, students, nil, nil, nil)

	err := svc.Deactivate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, students.removed)
}

func TestEnsureAdminIdempotent(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, &mockTeacherCleanup{}, &mockStudentCleanup{}, nil, nil, nil)

	err := svc.EnsureAdmin(context.Background(), "admin@records.local", "bootstrapme", "")
	require.NoError(t, err)
	require.Len(t, repo.users, 1)

	// Second call finds an admin and does nothing.
	err = svc.EnsureAdmin(context.Background(), "admin@records.local", "bootstrapme", "")
	require.NoError(t, err)
	assert.Len(t, repo.users, 1)
}

func TestEnsureAdminMissingCredentials(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, &mockTeacherCleanup{}, &mockStudentCleanup{}, nil, nil, nil)

	err := svc.EnsureAdmin(context.Background(), "", "", "")
	require.Error(t, err)
	assert.Empty(t, repo.users)
}
