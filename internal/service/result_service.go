package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/grading"
	"github.com/campusrec/records-api/internal/models"
	appErrors "github.com/campusrec/records-api/pkg/errors"
	"github.com/campusrec/records-api/pkg/export"
)

type resultRepository interface {
	Upsert(ctx context.Context, result *models.Result) error
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, int, error)
	StatsByTest(ctx context.Context, testID string) (*models.TestResultStats, error)
}

type resultTestRepository interface {
	FindByID(ctx context.Context, id string) (*models.TestDetail, error)
}

type resultUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type resultSubjectRepository interface {
	ListIDsByTeacher(ctx context.Context, teacherID string) ([]string, error)
}

// ExportFormat selects the rendering of a result export.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ResultService covers mark submission, result listing and exports.
type ResultService struct {
	repo      resultRepository
	tests     resultTestRepository
	users     resultUserRepository
	subjects  resultSubjectRepository
	cache     *CacheService
	metrics   *MetricsService
	policy    grading.Policy
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResultService constructs a ResultService.
func NewResultService(repo resultRepository, tests resultTestRepository, users resultUserRepository, subjects resultSubjectRepository, cache *CacheService, metrics *MetricsService, policy grading.Policy, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResultService{
		repo:      repo,
		tests:     tests,
		users:     users,
		subjects:  subjects,
		cache:     cache,
		metrics:   metrics,
		policy:    policy,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// SubmitMarks grades and stores a batch of mark entries for one test.
// Entries are processed independently: a bad entry is reported in the
// response while the rest of the batch is still written. Resubmitting a
// student's marks replaces the previous result for that test.
func (s *ResultService) SubmitMarks(ctx context.Context, testID string, req dto.SubmitMarksRequest, claims *models.JWTClaims) (*dto.SubmitMarksResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}

	test, err := s.tests.FindByID(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	if !test.Active {
		return nil, appErrors.Validation("test is inactive", "test_id")
	}

	if err := s.authorizeTest(ctx, claims, test.SubjectID); err != nil {
		return nil, err
	}

	resp := &dto.SubmitMarksResponse{Failures: []dto.MarkFailure{}}
	now := time.Now().UTC()
	seen := make(map[string]bool, len(req.Marks))

	for _, entry := range req.Marks {
		if seen[entry.StudentID] {
			resp.Failures = append(resp.Failures, dto.MarkFailure{StudentID: entry.StudentID, Reason: "duplicate entry in batch"})
			continue
		}
		seen[entry.StudentID] = true

		if reason := s.checkStudent(ctx, entry.StudentID); reason != "" {
			resp.Failures = append(resp.Failures, dto.MarkFailure{StudentID: entry.StudentID, Reason: reason})
			continue
		}

		if entry.MarksObtained > test.MaxMarks {
			resp.Failures = append(resp.Failures, dto.MarkFailure{StudentID: entry.StudentID, Reason: "marks obtained exceed max marks"})
			continue
		}

		comp, err := s.policy.Compute(entry.MarksObtained, test.MaxMarks, test.PassingMarks)
		if err != nil {
			resp.Failures = append(resp.Failures, dto.MarkFailure{StudentID: entry.StudentID, Reason: err.Error()})
			continue
		}

		result := &models.Result{
			TestID:        testID,
			StudentID:     entry.StudentID,
			MarksObtained: entry.MarksObtained,
			Percentage:    comp.Percentage,
			Grade:         string(comp.Grade),
			Passed:        comp.Passed,
			Remarks:       entry.Remarks,
			GradedBy:      claims.UserID,
			GradedAt:      now,
		}
		if err := s.repo.Upsert(ctx, result); err != nil {
			s.logger.Error("result upsert failed", zap.String("test_id", testID), zap.String("student_id", entry.StudentID), zap.Error(err))
			resp.Failures = append(resp.Failures, dto.MarkFailure{StudentID: entry.StudentID, Reason: "storage failure"})
			continue
		}
		resp.Results++
	}

	if s.metrics != nil {
		s.metrics.RecordMarksBatch(resp.Results, len(resp.Failures))
	}

	if resp.Results > 0 && s.cache.Enabled() {
		if err := s.cache.InvalidateDashboards(ctx); err != nil {
			s.logger.Warn("failed to invalidate dashboards", zap.Error(err))
		}
	}

	s.logger.Info("marks submitted",
		zap.String("test_id", testID),
		zap.Int("accepted", resp.Results),
		zap.Int("rejected", len(resp.Failures)))
	return resp, nil
}

// TestResultsPage bundles one test's metadata with a page of its
// results and aggregate statistics.
type TestResultsPage struct {
	Test    *models.TestDetail      `json:"test"`
	Results []models.ResultDetail   `json:"results"`
	Stats   *models.TestResultStats `json:"stats"`
}

// GetTestResults returns the paginated results of a test together with
// the test itself and aggregate statistics.
func (s *ResultService) GetTestResults(ctx context.Context, testID string, filter models.ResultFilter, claims *models.JWTClaims) (*TestResultsPage, int, error) {
	test, err := s.tests.FindByID(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	if err := s.authorizeTest(ctx, claims, test.SubjectID); err != nil {
		return nil, 0, err
	}

	filter.TestID = testID
	results, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}

	stats, err := s.repo.StatsByTest(ctx, testID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate results")
	}

	return &TestResultsPage{Test: test, Results: results, Stats: stats}, total, nil
}

// ListStudentResults returns a student's results across tests. Students
// may only read their own.
func (s *ResultService) ListStudentResults(ctx context.Context, studentID string, filter models.ResultFilter, claims *models.JWTClaims) ([]models.ResultDetail, int, error) {
	if claims != nil && claims.Role == models.RoleStudent && claims.UserID != studentID {
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own results")
	}

	filter.StudentID = studentID
	results, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, total, nil
}

// ExportTestResults renders the full result sheet of a test as CSV or PDF.
func (s *ResultService) ExportTestResults(ctx context.Context, testID string, format ExportFormat, claims *models.JWTClaims) ([]byte, string, error) {
	test, err := s.tests.FindByID(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	if err := s.authorizeTest(ctx, claims, test.SubjectID); err != nil {
		return nil, "", err
	}

	results, _, err := s.repo.List(ctx, models.ResultFilter{TestID: testID, PageSize: 100, SortBy: "percentage", SortOrder: "DESC"})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}

	data := export.Dataset{
		Headers: []string{"Roll Number", "Student", "Marks", "Max Marks", "Percentage", "Grade", "Status"},
	}
	for _, r := range results {
		roll := ""
		if r.RollNumber != nil {
			roll = *r.RollNumber
		}
		status := "FAIL"
		if r.Passed {
			status = "PASS"
		}
		data.Rows = append(data.Rows, map[string]string{
			"Roll Number": roll,
			"Student":     r.StudentName,
			"Marks":       fmt.Sprintf("%.2f", r.MarksObtained),
			"Max Marks":   fmt.Sprintf("%.0f", r.MaxMarks),
			"Percentage":  fmt.Sprintf("%d%%", grading.RoundHalfUp(r.Percentage)),
			"Grade":       r.Grade,
			"Status":      status,
		})
	}

	title := fmt.Sprintf("%s (%s)", test.Title, test.SubjectName)
	switch format {
	case ExportPDF:
		payload, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", nil
	case ExportCSV, "":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Validation("unsupported export format", "format")
	}
}

// checkStudent validates that a mark entry points at an active student.
// Returns a failure reason or empty string.
func (s *ResultService) checkStudent(ctx context.Context, studentID string) string {
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "student not found"
		}
		return "failed to load student"
	}
	if user.Role != models.RoleStudent {
		return "user is not a student"
	}
	if !user.Active {
		return "student account is inactive"
	}
	return ""
}

// authorizeTest rejects teachers acting on tests outside their subjects.
func (s *ResultService) authorizeTest(ctx context.Context, claims *models.JWTClaims, subjectID string) error {
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
