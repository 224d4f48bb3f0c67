package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusrec/records-api/internal/models"
)

const resultDetailColumns = `r.id, r.test_id, r.student_id, r.marks_obtained, r.percentage, r.grade, r.passed,
        r.remarks, r.graded_by, r.graded_at, r.created_at, r.updated_at,
        st.full_name AS student_name, st.roll_number, t.title AS test_title,
        t.subject_id, s.name AS subject_name, s.code AS subject_code, t.max_marks`

// ResultRepository handles graded result persistence.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Upsert inserts a result, or replaces the existing row when the student
// already has one for the test. The (test_id, student_id) pair is unique.
func (r *ResultRepository) Upsert(ctx context.Context, result *models.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	if result.GradedAt.IsZero() {
		result.GradedAt = now
	}

	const query = `INSERT INTO results (id, test_id, student_id, marks_obtained, percentage, grade, passed, remarks, graded_by, graded_at, created_at, updated_at)
        VALUES (:id, :test_id, :student_id, :marks_obtained, :percentage, :grade, :passed, :remarks, :graded_by, :graded_at, :created_at, :updated_at)
        ON CONFLICT (test_id, student_id)
        DO UPDATE SET marks_obtained = EXCLUDED.marks_obtained, percentage = EXCLUDED.percentage,
            grade = EXCLUDED.grade, passed = EXCLUDED.passed, remarks = EXCLUDED.remarks,
            graded_by = EXCLUDED.graded_by, graded_at = EXCLUDED.graded_at, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// List returns results matching the filter with total count.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, int, error) {
	baseQuery := `FROM results r
        JOIN users st ON st.id = r.student_id
        JOIN tests t ON t.id = r.test_id
        JOIN subjects s ON s.id = t.subject_id
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.TestID != "" {
		conditions = append(conditions, fmt.Sprintf("r.test_id = $%d", len(args)+1))
		args = append(args, filter.TestID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("t.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Passed != nil {
		conditions = append(conditions, fmt.Sprintf("r.passed = $%d", len(args)+1))
		args = append(args, *filter.Passed)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"percentage":     true,
		"marks_obtained": true,
		"graded_at":      true,
		"created_at":     true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "percentage"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY r.%s %s LIMIT %d OFFSET %d",
		resultDetailColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var results []models.ResultDetail
	if err := r.db.SelectContext(ctx, &results, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	return results, total, nil
}

// StatsByTest aggregates all results of one test.
func (r *ResultRepository) StatsByTest(ctx context.Context, testID string) (*models.TestResultStats, error) {
	const query = `SELECT COUNT(*) AS total_students,
        COALESCE(AVG(percentage), 0) AS average_percentage,
        COALESCE(MAX(percentage), 0) AS highest_percentage,
        COALESCE(MIN(percentage), 0) AS lowest_percentage,
        COUNT(*) FILTER (WHERE passed) AS passed_count,
        COUNT(*) FILTER (WHERE NOT passed) AS failed_count
        FROM results WHERE test_id = $1`
	var stats models.TestResultStats
	if err := r.db.GetContext(ctx, &stats, query, testID); err != nil {
		return nil, fmt.Errorf("test result stats: %w", err)
	}
	return &stats, nil
}

// StudentRows returns every result of one student, most recent test first.
func (r *ResultRepository) StudentRows(ctx context.Context, studentID string) ([]models.ResultDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM results r
        JOIN users st ON st.id = r.student_id
        JOIN tests t ON t.id = r.test_id
        JOIN subjects s ON s.id = t.subject_id
        WHERE r.student_id = $1
        ORDER BY t.test_date DESC, r.created_at DESC`, resultDetailColumns)
	var results []models.ResultDetail
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("student results: %w", err)
	}
	return results, nil
}

// CohortRows returns every result in the system, optionally scoped to one
// subject, joined with student identity.
func (r *ResultRepository) CohortRows(ctx context.Context, subjectID string) ([]models.ResultDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM results r
        JOIN users st ON st.id = r.student_id
        JOIN tests t ON t.id = r.test_id
        JOIN subjects s ON s.id = t.subject_id
        WHERE 1=1`, resultDetailColumns)
	var args []interface{}
	if subjectID != "" {
		query += fmt.Sprintf(" AND t.subject_id = $%d", len(args)+1)
		args = append(args, subjectID)
	}
	query += " ORDER BY r.created_at ASC"
	var results []models.ResultDetail
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("cohort results: %w", err)
	}
	return results, nil
}

// DeleteByTest removes all results of a test.
func (r *ResultRepository) DeleteByTest(ctx context.Context, testID string) error {
	const query = `DELETE FROM results WHERE test_id = $1`
	if _, err := r.db.ExecContext(ctx, query, testID); err != nil {
		return fmt.Errorf("delete results by test: %w", err)
	}
	return nil
}

// DeleteByStudent removes all results of a student.
func (r *ResultRepository) DeleteByStudent(ctx context.Context, studentID string) error {
	const query = `DELETE FROM results WHERE student_id = $1`
	if _, err := r.db.ExecContext(ctx, query, studentID); err != nil {
		return fmt.Errorf("delete results by student: %w", err)
	}
	return nil
}

// CountAll returns the total number of stored results.
func (r *ResultRepository) CountAll(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM results`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return count, nil
}
