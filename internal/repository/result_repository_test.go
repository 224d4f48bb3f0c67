package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrec/records-api/internal/models"
)

func resultDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "test_id", "student_id", "marks_obtained", "percentage", "grade", "passed",
		"remarks", "graded_by", "graded_at", "created_at", "updated_at",
		"student_name", "roll_number", "test_title", "subject_id", "subject_name", "subject_code", "max_marks",
	})
}

func TestUpsertResult(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec(`INSERT INTO results .+ ON CONFLICT \(test_id, student_id\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result := &models.Result{
		TestID:        "t1",
		StudentID:     "s1",
		MarksObtained: 85,
		Percentage:    85,
		Grade:         "A",
		Passed:        true,
		GradedBy:      "teacher1",
	}
	err := repo.Upsert(context.Background(), result)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.False(t, result.GradedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResultsByTest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	now := time.Now()
	roll := "R-007"
	rows := resultDetailRows().
		AddRow("r1", "t1", "s1", 85.0, 85.0, "A", true, "", "g1", now, now, now,
			"Student One", roll, "Midterm", "sub1", "Mathematics", "MATH101", 100.0)
	mock.ExpectQuery(`SELECT .+ FROM results r .+ WHERE 1=1 AND r\.test_id = \$1 ORDER BY r\.percentage DESC`).
		WithArgs("t1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM results r`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	results, total, err := repo.List(context.Background(), models.ResultFilter{TestID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "Student One", results[0].StudentName)
	assert.Equal(t, "Mathematics", results[0].SubjectName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsByTest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	rows := sqlmock.NewRows([]string{
		"total_students", "average_percentage", "highest_percentage",
		"lowest_percentage", "passed_count", "failed_count",
	}).AddRow(3, 69.0, 95.0, 40.0, 2, 1)
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total_students`).
		WithArgs("t1").
		WillReturnRows(rows)

	stats, err := repo.StatsByTest(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.InDelta(t, 69.0, stats.AveragePercentage, 0.0001)
	assert.Equal(t, 2, stats.PassedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRowsOrdering(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	now := time.Now()
	rows := resultDetailRows().
		AddRow("r2", "t2", "s1", 90.0, 90.0, "A+", true, "", "g1", now, now, now,
			"Student One", nil, "Final", "sub1", "Mathematics", "MATH101", 100.0).
		AddRow("r1", "t1", "s1", 70.0, 70.0, "B+", true, "", "g1", now, now, now,
			"Student One", nil, "Midterm", "sub1", "Mathematics", "MATH101", 100.0)
	mock.ExpectQuery(`SELECT .+ FROM results r .+ WHERE r\.student_id = \$1 ORDER BY t\.test_date DESC`).
		WithArgs("s1").
		WillReturnRows(rows)

	results, err := repo.StudentRows(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Final", results[0].TestTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByTest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec(`DELETE FROM results WHERE test_id = \$1`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	err := repo.DeleteByTest(context.Background(), "t1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
