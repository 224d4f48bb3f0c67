package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/models"
	appErrors "github.com/campusrec/records-api/pkg/errors"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Deactivate(ctx context.Context, id string) error
	ReplaceTeachers(ctx context.Context, subjectID string, teacherIDs []string) error
	ListTeachers(ctx context.Context, subjectID string) ([]models.SubjectTeacher, error)
	Reconcile(ctx context.Context) (int64, error)
}

type subjectUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SubjectService provides subject management use cases.
type SubjectService struct {
	repo      subjectRepository
	users     subjectUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, users subjectUserRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubjectService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns subjects matching the filter.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, total, nil
}

// Get returns a subject together with its assigned teachers.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.SubjectDetail, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	teachers, err := s.repo.ListTeachers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject teachers")
	}
	if teachers == nil {
		teachers = []models.SubjectTeacher{}
	}

	return &models.SubjectDetail{Subject: *subject, Teachers: teachers}, nil
}

// Create registers a new subject. Codes are stored upper-cased and must
// be unique ignoring case.
func (s *SubjectService) Create(ctx context.Context, req dto.CreateSubjectRequest) (*models.SubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject code is already in use")
	}

	if err := s.verifyTeachers(ctx, req.TeacherIDs); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		Code:        code,
		Name:        req.Name,
		Description: req.Description,
		Credits:     req.Credits,
		Department:  req.Department,
		Active:      true,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	if len(req.TeacherIDs) > 0 {
		if err := s.repo.ReplaceTeachers(ctx, subject.ID, req.TeacherIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign teachers")
		}
	}

	s.logger.Info("subject created", zap.String("subject_id", subject.ID), zap.String("code", subject.Code))
	return s.Get(ctx, subject.ID)
}

// Update applies partial changes to a subject. When TeacherIDs is
// present the full assignment set is replaced.
func (s *SubjectService) Update(ctx context.Context, id string, req dto.UpdateSubjectRequest) (*models.SubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if req.Name != nil {
		subject.Name = *req.Name
	}
	if req.Description != nil {
		subject.Description = *req.Description
	}
	if req.Credits != nil {
		subject.Credits = *req.Credits
	}
	if req.Department != nil {
		subject.Department = *req.Department
	}
	if req.Active != nil {
		subject.Active = *req.Active
	}

	if err := s.repo.Update(ctx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	if req.TeacherIDs != nil {
		if err := s.verifyTeachers(ctx, *req.TeacherIDs); err != nil {
			return nil, err
		}
		if err := s.repo.ReplaceTeachers(ctx, id, *req.TeacherIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync teachers")
		}
	}

	return s.Get(ctx, id)
}

// Deactivate soft deletes a subject and clears its teacher assignments,
// so the subject stops granting teachers scope over its tests and
// results.
func (s *SubjectService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate subject")
	}
	if err := s.repo.ReplaceTeachers(ctx, id, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear teacher assignments")
	}
	s.logger.Info("subject deactivated", zap.String("subject_id", id))
	return nil
}

// Reconcile removes assignment rows pointing at users that are no longer
// active teachers.
func (s *SubjectService) Reconcile(ctx context.Context) (int64, error) {
	removed, err := s.repo.Reconcile(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile assignments")
	}
	if removed > 0 {
		s.logger.Info("stale teacher assignments removed", zap.Int64("count", removed))
	}
	return removed, nil
}

// verifyTeachers ensures every referenced user is an active teacher.
func (s *SubjectService) verifyTeachers(ctx context.Context, teacherIDs []string) error {
	for _, teacherID := range teacherIDs {
		user, err := s.users.FindByID(ctx, teacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Validation("teacher not found: "+teacherID, "teacher_ids")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify teacher")
		}
		if user.Role != models.RoleTeacher || !user.Active {
			return appErrors.Validation("user is not an active teacher: "+teacherID, "teacher_ids")
		}
	}
	return nil
}
