package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/models"
	appErrors "github.com/campusrec/records-api/pkg/errors"
)

type testRepository interface {
	FindByID(ctx context.Context, id string) (*models.TestDetail, error)
	List(ctx context.Context, filter models.TestFilter) ([]models.TestDetail, int, error)
	Create(ctx context.Context, test *models.Test) error
	Update(ctx context.Context, test *models.Test) error
	Delete(ctx context.Context, id string) error
}

type testSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListIDsByTeacher(ctx context.Context, teacherID string) ([]string, error)
}

type testResultRepository interface {
	DeleteByTest(ctx context.Context, testID string) error
}

// TestService provides assessment management use cases.
type TestService struct {
	repo      testRepository
	subjects  testSubjectRepository
	results   testResultRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTestService constructs a TestService.
func NewTestService(repo testRepository, subjects testSubjectRepository, results testResultRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TestService{repo: repo, subjects: subjects, results: results, cache: cache, validator: validate, logger: logger}
}

// List returns tests matching the filter. Teachers only see tests of
// subjects they are assigned to.
func (s *TestService) List(ctx context.Context, filter models.TestFilter, claims *models.JWTClaims) ([]models.TestDetail, int, error) {
	if claims != nil && claims.Role == models.RoleTeacher {
		subjectIDs, err := s.subjects.ListIDsByTeacher(ctx, claims.UserID)
		if err != nil {
			return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher subjects")
		}
		if len(subjectIDs) == 0 {
			return []models.TestDetail{}, 0, nil
		}
		filter.SubjectIDs = subjectIDs
	}

	tests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tests")
	}
	return tests, total, nil
}

// Get returns a single test with subject and creator context.
func (s *TestService) Get(ctx context.Context, id string) (*models.TestDetail, error) {
	test, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	return test, nil
}

// Create schedules a new test. Passing marks may never exceed the
// maximum marks.
func (s *TestService) Create(ctx context.Context, req dto.CreateTestRequest, claims *models.JWTClaims) (*models.TestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test payload")
	}
	if !models.ValidTestType(req.Type) {
		return nil, appErrors.Validation("unknown test type", "type")
	}
	if req.PassingMarks > req.MaxMarks {
		return nil, appErrors.Validation("passing marks cannot exceed max marks", "passing_marks")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if !subject.Active {
		return nil, appErrors.Validation("subject is inactive", "subject_id")
	}

	if err := s.authorizeSubject(ctx, claims, req.SubjectID); err != nil {
		return nil, err
	}

	test := &models.Test{
		Title:        req.Title,
		Description:  req.Description,
		SubjectID:    req.SubjectID,
		Type:         req.Type,
		MaxMarks:     req.MaxMarks,
		PassingMarks: req.PassingMarks,
		TestDate:     req.TestDate,
		DurationMins: req.DurationMins,
		CreatedBy:    claims.UserID,
		Active:       true,
	}
	if err := s.repo.Create(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create test")
	}

	s.logger.Info("test created", zap.String("test_id", test.ID), zap.String("subject_id", test.SubjectID))
	return s.Get(ctx, test.ID)
}

// Update applies partial changes to a test. The passing/max marks rule
// is enforced against the merged values, so raising passing marks past
// the stored maximum is rejected even when max marks is untouched.
func (s *TestService) Update(ctx context.Context, id string, req dto.UpdateTestRequest, claims *models.JWTClaims) (*models.TestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test payload")
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSubject(ctx, claims, detail.SubjectID); err != nil {
		return nil, err
	}

	test := detail.Test
	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.Type != nil {
		if !models.ValidTestType(*req.Type) {
			return nil, appErrors.Validation("unknown test type", "type")
		}
		test.Type = *req.Type
	}
	if req.MaxMarks != nil {
		test.MaxMarks = *req.MaxMarks
	}
	if req.PassingMarks != nil {
		test.PassingMarks = *req.PassingMarks
	}
	if req.TestDate != nil {
		test.TestDate = *req.TestDate
	}
	if req.DurationMins != nil {
		test.DurationMins = *req.DurationMins
	}
	if req.Active != nil {
		test.Active = *req.Active
	}

	if test.PassingMarks > test.MaxMarks {
		return nil, appErrors.Validation("passing marks cannot exceed max marks", "passing_marks")
	}

	if err := s.repo.Update(ctx, &test); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update test")
	}

	return s.Get(ctx, id)
}

// Delete soft deletes a test and removes every result recorded
// against it.
func (s *TestService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeSubject(ctx, claims, detail.SubjectID); err != nil {
		return err
	}

	if err := s.results.DeleteByTest(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete test results")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete test")
	}

	if s.cache.Enabled() {
		if err := s.cache.InvalidateDashboards(ctx); err != nil {
			s.logger.Warn("failed to invalidate dashboards", zap.Error(err))
		}
	}

	s.logger.Info("test deleted", zap.String("test_id", id))
	return nil
}

// authorizeSubject rejects teachers acting on subjects they are not
// assigned to. Admins pass unconditionally.
func (s *TestService) authorizeSubject(ctx context.Context, claims *models.JWTClaims, subjectID string) error {
	if claims == nil || claims.Role != models.RoleTeacher {
		return nil
	}
	subjectIDs, err := s.subjects.ListIDsByTeacher(ctx, claims.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher subjects")
	}
	for _, id := range subjectIDs {
		if id == subjectID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "teacher is not assigned to this subject")
}
