package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/models"
	appErrors "github.com/campusrec/records-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	RevokeUserTokens(ctx context.Context, userID string, ts time.Time) error
	HasActiveAdmin(ctx context.Context) (bool, error)
}

type userSubjectRepository interface {
	RemoveTeacher(ctx context.Context, teacherID string) error
}

type userResultRepository interface {
	DeleteByStudent(ctx context.Context, studentID string) error
}

// UserService provides account management use cases.
type UserService struct {
	repo      userRepository
	subjects  userSubjectRepository
	results   userResultRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, subjects userSubjectRepository, results userResultRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, subjects: subjects, results: results, cache: cache, validator: validate, logger: logger}
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// Get returns a single user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create provisions a new account. Role-specific identifiers are
// required: teachers need an employee ID, students a roll number.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	switch req.Role {
	case models.RoleTeacher:
		if req.EmployeeID == nil || *req.EmployeeID == "" {
			return nil, appErrors.Validation("employee_id is required for teachers", "employee_id")
		}
	case models.RoleStudent:
		if req.RollNumber == nil || *req.RollNumber == "" {
			return nil, appErrors.Validation("roll_number is required for students", "roll_number")
		}
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		EmployeeID:   req.EmployeeID,
		RollNumber:   req.RollNumber,
		Department:   req.Department,
		Year:         req.Year,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update applies partial changes to a user profile.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.EmployeeID != nil {
		user.EmployeeID = req.EmployeeID
	}
	if req.RollNumber != nil {
		user.RollNumber = req.RollNumber
	}
	if req.Department != nil {
		user.Department = req.Department
	}
	if req.Year != nil {
		user.Year = req.Year
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	if req.Active != nil && !*req.Active {
		s.cascadeDeactivation(ctx, user)
	}

	return user, nil
}

// Deactivate soft deletes a user and cleans up role-specific references.
// Admin accounts cannot be deactivated through this path.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin accounts cannot be deactivated")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}

	if err := s.repo.RevokeUserTokens(ctx, id, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to revoke tokens for deactivated user", zap.Error(err))
	}

	s.cascadeDeactivation(ctx, user)
	return nil
}

// cascadeDeactivation removes references that must not survive a
// deactivated account: teacher assignments and, for students, their
// stored results. Dashboards are invalidated afterwards.
func (s *UserService) cascadeDeactivation(ctx context.Context, user *models.User) {
	switch user.Role {
	case models.RoleTeacher:
		if s.subjects != nil {
			if err := s.subjects.RemoveTeacher(ctx, user.ID); err != nil {
				s.logger.Warn("failed to remove teacher assignments", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
	case models.RoleStudent:
		if s.results != nil {
			if err := s.results.DeleteByStudent(ctx, user.ID); err != nil {
				s.logger.Warn("failed to remove student results", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
	}
	if s.cache.Enabled() {
		if err := s.cache.InvalidateDashboards(ctx); err != nil {
			s.logger.Warn("failed to invalidate dashboards", zap.Error(err))
		}
	}
}

// EnsureAdmin provisions the bootstrap administrator account when no
// active admin exists. Safe to call on every startup.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password, fullName string) error {
	exists, err := s.repo.HasActiveAdmin(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admin presence")
	}
	if exists {
		return nil
	}
	if email == "" || password == "" {
		return appErrors.Clone(appErrors.ErrValidation, "admin bootstrap credentials are not configured")
	}
	if fullName == "" {
		fullName = "Administrator"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash admin password")
	}

	admin := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin account")
	}

	s.logger.Info("bootstrap admin created", zap.String("email", email))
	return nil
}
