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

const subjectColumns = `id, code, name, description, credits, department, active, created_at, updated_at`

// SubjectRepository handles subject persistence and teacher assignments.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID returns a subject by identifier.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE id = $1 LIMIT 1`, subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by id: %w", err)
	}
	return &subject, nil
}

// ExistsByCode reports whether a subject with the given code exists,
// compared case insensitively.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM subjects WHERE UPPER(code) = UPPER($1))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return exists, nil
}

// List returns subjects matching the filter with total count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	baseQuery := `FROM subjects s WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("s.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM subject_teachers st WHERE st.subject_id = s.id AND st.user_id = $%d)", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"code":       true,
		"name":       true,
		"credits":    true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "code"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
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

	listQuery := fmt.Sprintf("SELECT s.id, s.code, s.name, s.description, s.credits, s.department, s.active, s.created_at, s.updated_at %s ORDER BY s.%s %s LIMIT %d OFFSET %d",
		baseQuery, sortBy, sortOrder, pageSize, offset)

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	return subjects, total, nil
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, code, name, description, credits, department, active, created_at, updated_at)
        VALUES (:id, :code, :name, :description, :credits, :department, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update persists mutable fields of a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, description = :description, credits = :credits,
        department = :department, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, subject)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate soft deletes a subject.
func (r *SubjectRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE subjects SET active = FALSE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceTeachers replaces the full teacher assignment set of a subject
// in a single transaction.
func (r *SubjectRepository) ReplaceTeachers(ctx context.Context, subjectID string, teacherIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin teacher sync: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subject_teachers WHERE subject_id = $1`, subjectID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear teacher assignments: %w", err)
	}
	for _, teacherID := range teacherIDs {
		const query = `INSERT INTO subject_teachers (subject_id, user_id, assigned_at) VALUES ($1, $2, $3)
            ON CONFLICT (subject_id, user_id) DO NOTHING`
		if _, err := tx.ExecContext(ctx, query, subjectID, teacherID, time.Now().UTC()); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("assign teacher: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit teacher sync: %w", err)
	}
	return nil
}

// RemoveTeacher removes a teacher from every subject they are assigned to.
func (r *SubjectRepository) RemoveTeacher(ctx context.Context, teacherID string) error {
	const query = `DELETE FROM subject_teachers WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, teacherID); err != nil {
		return fmt.Errorf("remove teacher assignments: %w", err)
	}
	return nil
}

// ListTeachers returns the teachers assigned to a subject.
func (r *SubjectRepository) ListTeachers(ctx context.Context, subjectID string) ([]models.SubjectTeacher, error) {
	const query = `SELECT u.id AS user_id, u.full_name, u.email, u.employee_id
        FROM subject_teachers st
        JOIN users u ON u.id = st.user_id
        WHERE st.subject_id = $1 AND u.active = TRUE
        ORDER BY u.full_name ASC`
	var teachers []models.SubjectTeacher
	if err := r.db.SelectContext(ctx, &teachers, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject teachers: %w", err)
	}
	return teachers, nil
}

// ListIDsByTeacher returns the IDs of active subjects a teacher is
// assigned to. Inactive subjects grant no scope.
func (r *SubjectRepository) ListIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT st.subject_id FROM subject_teachers st
        JOIN subjects s ON s.id = st.subject_id
        WHERE st.user_id = $1 AND s.active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("list subjects by teacher: %w", err)
	}
	return ids, nil
}

// CountActive returns the number of active subjects.
func (r *SubjectRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM subjects WHERE active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count subjects: %w", err)
	}
	return count, nil
}

// Reconcile drops assignment rows whose user is no longer an active
// teacher. Run after role changes or deactivations.
func (r *SubjectRepository) Reconcile(ctx context.Context) (int64, error) {
	const query = `DELETE FROM subject_teachers st
        USING users u
        WHERE u.id = st.user_id AND (u.active = FALSE OR u.role <> $1)`
	res, err := r.db.ExecContext(ctx, query, models.RoleTeacher)
	if err != nil {
		return 0, fmt.Errorf("reconcile teacher assignments: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
