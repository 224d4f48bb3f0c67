package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/grading"
	"github.com/campusrec/records-api/internal/models"
	appErrors "github.com/campusrec/records-api/pkg/errors"
)

type performanceResultRepository interface {
	StudentRows(ctx context.Context, studentID string) ([]models.ResultDetail, error)
	CohortRows(ctx context.Context, subjectID string) ([]models.ResultDetail, error)
	CountAll(ctx context.Context) (int, error)
}

type performanceUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	ListRecent(ctx context.Context, limit int) ([]models.User, error)
}

type performanceSubjectRepository interface {
	CountActive(ctx context.Context) (int, error)
}

type performanceTestRepository interface {
	CountActive(ctx context.Context) (int, error)
	ListRecent(ctx context.Context, limit int) ([]models.TestDetail, error)
}

// PerformanceConfig tunes aggregation sizes and cache lifetime.
type PerformanceConfig struct {
	CacheTTL      time.Duration
	TopPerformers int
	TrendLength   int
}

// PerformanceService aggregates results into student, class and admin
// dashboards. Payloads are cached under the dash: prefix and invalidated
// whenever marks change.
type PerformanceService struct {
	results  performanceResultRepository
	users    performanceUserRepository
	subjects performanceSubjectRepository
	tests    performanceTestRepository
	cache    *CacheService
	config   PerformanceConfig
	logger   *zap.Logger
}

// NewPerformanceService constructs a PerformanceService.
func NewPerformanceService(results performanceResultRepository, users performanceUserRepository, subjects performanceSubjectRepository, tests performanceTestRepository, cache *CacheService, config PerformanceConfig, logger *zap.Logger) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TopPerformers <= 0 {
		config.TopPerformers = 5
	}
	if config.TrendLength <= 0 {
		config.TrendLength = 10
	}
	return &PerformanceService{results: results, users: users, subjects: subjects, tests: tests, cache: cache, config: config, logger: logger}
}

// StudentDashboard summarizes one student's full result history.
// Students may only read their own dashboard.
func (s *PerformanceService) StudentDashboard(ctx context.Context, studentID string, claims *models.JWTClaims) (*dto.StudentDashboardResponse, bool, error) {
	if claims != nil && claims.Role == models.RoleStudent && claims.UserID != studentID {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own dashboard")
	}

	cacheKey := StudentDashboardKey(studentID)
	var cached dto.StudentDashboardResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	rows, err := s.results.StudentRows(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}

	resp := &dto.StudentDashboardResponse{
		StudentID:       studentID,
		StudentName:     student.FullName,
		Summary:         summarize(rows),
		SubjectAverages: subjectAverages(rows),
		RecentTrend:     trend(rows, s.config.TrendLength),
	}

	if err := s.cache.Set(ctx, cacheKey, resp, s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to cache student dashboard", zap.Error(err))
	}
	return resp, false, nil
}

// ClassDashboard aggregates the whole cohort, optionally scoped to one
// subject.
func (s *PerformanceService) ClassDashboard(ctx context.Context, subjectID string) (*dto.ClassDashboardResponse, bool, error) {
	cacheKey := ClassDashboardKey(subjectID)
	var cached dto.ClassDashboardResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	rows, err := s.results.CohortRows(ctx, subjectID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort results")
	}

	resp := &dto.ClassDashboardResponse{
		Stats:         classStats(rows),
		Distribution:  distribution(rows),
		TopPerformers: topPerformers(rows, s.config.TopPerformers),
	}

	if err := s.cache.Set(ctx, cacheKey, resp, s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to cache class dashboard", zap.Error(err))
	}
	return resp, false, nil
}

// AdminDashboard reports system-wide entity counts and recent activity.
func (s *PerformanceService) AdminDashboard(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	cacheKey := AdminDashboardKey()
	var cached dto.AdminDashboardResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	students, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	teachers, err := s.users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	subjects, err := s.subjects.CountActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subjects")
	}
	tests, err := s.tests.CountActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count tests")
	}
	results, err := s.results.CountAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count results")
	}

	recentUsers, err := s.users.ListRecent(ctx, 5)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent users")
	}
	recentTests, err := s.tests.ListRecent(ctx, 5)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent tests")
	}

	resp := &dto.AdminDashboardResponse{
		TotalStudents: students,
		TotalTeachers: teachers,
		TotalSubjects: subjects,
		TotalTests:    tests,
		TotalResults:  results,
		RecentUsers:   make([]dto.RecentUser, 0, len(recentUsers)),
		RecentTests:   make([]dto.RecentTest, 0, len(recentTests)),
	}
	for _, u := range recentUsers {
		resp.RecentUsers = append(resp.RecentUsers, dto.RecentUser{
			ID:        u.ID,
			FullName:  u.FullName,
			Email:     u.Email,
			Role:      string(u.Role),
			CreatedAt: u.CreatedAt,
		})
	}
	for _, t := range recentTests {
		resp.RecentTests = append(resp.RecentTests, dto.RecentTest{
			ID:          t.ID,
			Title:       t.Title,
			SubjectName: t.SubjectName,
			TestDate:    t.TestDate,
		})
	}

	if err := s.cache.Set(ctx, cacheKey, resp, s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to cache admin dashboard", zap.Error(err))
	}
	return resp, false, nil
}

// summarize folds a student's results into headline numbers.
func summarize(rows []models.ResultDetail) dto.StudentSummary {
	summary := dto.StudentSummary{TotalTests: len(rows)}
	if len(rows) == 0 {
		return summary
	}
	var sum float64
	highest := math.Inf(-1)
	lowest := math.Inf(1)
	for _, r := range rows {
		sum += r.Percentage
		if r.Percentage > highest {
			highest = r.Percentage
		}
		if r.Percentage < lowest {
			lowest = r.Percentage
		}
		if r.Passed {
			summary.PassedTests++
		} else {
			summary.FailedTests++
		}
	}
	summary.AverageScore = grading.RoundHalfUp(sum / float64(len(rows)))
	summary.HighestScore = highest
	summary.LowestScore = lowest
	return summary
}

// subjectAverages groups a student's results by subject, ordered by
// subject name.
func subjectAverages(rows []models.ResultDetail) []dto.SubjectAverage {
	type acc struct {
		name  string
		code  string
		sum   float64
		count int
	}
	byID := map[string]*acc{}
	for _, r := range rows {
		a, ok := byID[r.SubjectID]
		if !ok {
			a = &acc{name: r.SubjectName, code: r.SubjectCode}
			byID[r.SubjectID] = a
		}
		a.sum += r.Percentage
		a.count++
	}
	averages := make([]dto.SubjectAverage, 0, len(byID))
	for id, a := range byID {
		averages = append(averages, dto.SubjectAverage{
			SubjectID:   id,
			SubjectName: a.name,
			SubjectCode: a.code,
			TestCount:   a.count,
			Average:     grading.RoundHalfUp(a.sum / float64(a.count)),
		})
	}
	sort.Slice(averages, func(i, j int) bool {
		if averages[i].SubjectName != averages[j].SubjectName {
			return averages[i].SubjectName < averages[j].SubjectName
		}
		return averages[i].SubjectID < averages[j].SubjectID
	})
	return averages
}

// trend returns the student's most recent results, oldest first, capped
// at length entries. Rows arrive most recent first.
func trend(rows []models.ResultDetail, length int) []dto.TrendPoint {
	if len(rows) > length {
		rows = rows[:length]
	}
	points := make([]dto.TrendPoint, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		points = append(points, dto.TrendPoint{
			TestTitle:  r.TestTitle,
			Percentage: r.Percentage,
			Date:       r.GradedAt,
			Subject:    r.SubjectName,
		})
	}
	return points
}

// classStats folds cohort results into overall average and pass rate.
func classStats(rows []models.ResultDetail) dto.ClassStats {
	stats := dto.ClassStats{TotalResults: len(rows)}
	if len(rows) == 0 {
		return stats
	}
	var sum float64
	var passed int
	for _, r := range rows {
		sum += r.Percentage
		if r.Passed {
			passed++
		}
	}
	stats.AveragePercentage = grading.RoundHalfUp(sum / float64(len(rows)))
	stats.PassRate = grading.RoundHalfUp(float64(passed) / float64(len(rows)) * 100)
	return stats
}

// distribution buckets every result percentage into performance bands:
// excellent at 90 and above, good from 70, average from 50, the rest
// needing improvement.
func distribution(rows []models.ResultDetail) dto.Distribution {
	var d dto.Distribution
	for _, r := range rows {
		switch {
		case r.Percentage >= 90:
			d.Excellent++
		case r.Percentage >= 70:
			d.Good++
		case r.Percentage >= 50:
			d.Average++
		default:
			d.NeedsImprovement++
		}
	}
	return d
}

// topPerformers ranks students by their mean percentage across all
// results. Ties rank the lexicographically smaller student ID first so
// the ordering is stable.
func topPerformers(rows []models.ResultDetail, limit int) []dto.TopPerformer {
	type acc struct {
		name  string
		roll  string
		sum   float64
		count int
	}
	byStudent := map[string]*acc{}
	for _, r := range rows {
		a, ok := byStudent[r.StudentID]
		if !ok {
			a = &acc{name: r.StudentName}
			if r.RollNumber != nil {
				a.roll = *r.RollNumber
			}
			byStudent[r.StudentID] = a
		}
		a.sum += r.Percentage
		a.count++
	}
	// Rank on the full-precision mean so display rounding never
	// reorders the leaderboard.
	type ranked struct {
		entry dto.TopPerformer
		mean  float64
	}
	performers := make([]ranked, 0, len(byStudent))
	for id, a := range byStudent {
		mean := a.sum / float64(a.count)
		performers = append(performers, ranked{
			entry: dto.TopPerformer{
				StudentID:   id,
				StudentName: a.name,
				RollNumber:  a.roll,
				TestCount:   a.count,
				Average:     grading.RoundHalfUp(mean),
			},
			mean: mean,
		})
	}
	sort.Slice(performers, func(i, j int) bool {
		if performers[i].mean != performers[j].mean {
			return performers[i].mean > performers[j].mean
		}
		return performers[i].entry.StudentID < performers[j].entry.StudentID
	})
	if len(performers) > limit {
		performers = performers[:limit]
	}
	out := make([]dto.TopPerformer, 0, len(performers))
	for _, p := range performers {
		out = append(out, p.entry)
	}
	return out
}
