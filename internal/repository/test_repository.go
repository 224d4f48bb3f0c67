package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusrec/records-api/internal/models"
)

const testDetailColumns = `t.id, t.title, t.description, t.subject_id, t.type, t.max_marks, t.passing_marks,
        t.test_date, t.duration_mins, t.created_by, t.active, t.created_at, t.updated_at,
        s.name AS subject_name, s.code AS subject_code, u.full_name AS created_by_name`

// TestRepository handles assessment persistence.
type TestRepository struct {
	db *sqlx.DB
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(db *sqlx.DB) *TestRepository {
	return &TestRepository{db: db}
}

// FindByID returns a test joined with subject and creator context.
func (r *TestRepository) FindByID(ctx context.Context, id string) (*models.TestDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM tests t
        JOIN subjects s ON s.id = t.subject_id
        JOIN users u ON u.id = t.created_by
        WHERE t.id = $1 LIMIT 1`, testDetailColumns)
	var test models.TestDetail
	if err := r.db.GetContext(ctx, &test, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find test by id: %w", err)
	}
	return &test, nil
}

// List returns tests matching the filter with total count.
func (r *TestRepository) List(ctx context.Context, filter models.TestFilter) ([]models.TestDetail, int, error) {
	baseQuery := `FROM tests t
        JOIN subjects s ON s.id = t.subject_id
        JOIN users u ON u.id = t.created_by
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("t.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if len(filter.SubjectIDs) > 0 {
		placeholders := make([]string, len(filter.SubjectIDs))
		for i, id := range filter.SubjectIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("t.subject_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("t.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("t.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("t.test_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("t.test_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(t.title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"test_date":  true,
		"title":      true,
		"created_at": true,
		"max_marks":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "test_date"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY t.%s %s LIMIT %d OFFSET %d",
		testDetailColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var tests []models.TestDetail
	if err := r.db.SelectContext(ctx, &tests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list tests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tests: %w", err)
	}

	return tests, total, nil
}

// Create inserts a new test.
func (r *TestRepository) Create(ctx context.Context, test *models.Test) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if test.CreatedAt.IsZero() {
		test.CreatedAt = now
	}
	test.UpdatedAt = now

	const query = `INSERT INTO tests (id, title, description, subject_id, type, max_marks, passing_marks, test_date, duration_mins, created_by, active, created_at, updated_at)
        VALUES (:id, :title, :description, :subject_id, :type, :max_marks, :passing_marks, :test_date, :duration_mins, :created_by, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("create test: %w", err)
	}
	return nil
}

// Update persists mutable fields of a test.
func (r *TestRepository) Update(ctx context.Context, test *models.Test) error {
	test.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tests SET title = :title, description = :description, type = :type,
        max_marks = :max_marks, passing_marks = :passing_marks, test_date = :test_date,
        duration_mins = :duration_mins, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, test)
	if err != nil {
		return fmt.Errorf("update test: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete soft deletes a test. Dependent results are removed separately.
func (r *TestRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE tests SET active = FALSE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountActive returns the number of active tests.
func (r *TestRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM tests WHERE active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count tests: %w", err)
	}
	return count, nil
}

// ListRecent returns the most recently scheduled tests.
func (r *TestRepository) ListRecent(ctx context.Context, limit int) ([]models.TestDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s FROM tests t
        JOIN subjects s ON s.id = t.subject_id
        JOIN users u ON u.id = t.created_by
        ORDER BY t.test_date DESC LIMIT %d`, testDetailColumns, limit)
	var tests []models.TestDetail
	if err := r.db.SelectContext(ctx, &tests, query); err != nil {
		return nil, fmt.Errorf("list recent tests: %w", err)
	}
	return tests, nil
}
