package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/timetable-api/internal/models"
)

func newAssignmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWeeklyAssignmentRepositoryExistsForClass(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewWeeklyAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM weekly_assignments WHERE class_id = $1 AND academic_year = $2")).
		WithArgs("c1", "2025-2026").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))

	exists, err := repo.ExistsForClass(context.Background(), "c1", "2025-2026")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyAssignmentRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewWeeklyAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_id", "academic_year", "day_of_week", "period", "subject_id", "teacher_id", "created_at"}).
		AddRow("a1", "c1", "2025-2026", 1, 1, "math", "t1", time.Now()).
		AddRow("a2", "c1", "2025-2026", 1, 2, "math", "t1", time.Now())
	mock.ExpectQuery("SELECT id, class_id, academic_year, day_of_week, period, subject_id, teacher_id, created_at FROM weekly_assignments WHERE class_id = \\$1 AND academic_year = \\$2").
		WithArgs("c1", "2025-2026").
		WillReturnRows(rows)

	assignments, err := repo.ListByClass(context.Background(), "c1", "2025-2026")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "math", assignments[0].SubjectID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyAssignmentRepositoryReplaceFlow(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewWeeklyAssignmentRepository(db)

	mock.ExpectBegin()
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM weekly_assignments WHERE class_id =").
		WithArgs("c1", "2025-2026").
		WillReturnResult(sqlmock.NewResult(0, 30))
	mock.ExpectExec("INSERT INTO weekly_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.DeleteByClassWithTx(context.Background(), tx, "c1", "2025-2026"))

	cells := []models.WeeklyAssignment{{ClassID: "c1", AcademicYear: "2025-2026", DayOfWeek: 1, Period: 1, SubjectID: "math", TeacherID: "t1"}}
	require.NoError(t, repo.BulkCreateWithTx(context.Background(), tx, cells))
	assert.NotEmpty(t, cells[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
