package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/timetable-api/internal/models"
)

func newLessonRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func lessonRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "class_id", "subject_id", "teacher_id", "academic_year", "week_number",
		"day_of_week", "period", "scheduled_date", "status", "present_count", "absent_count",
		"total_count", "absent_student_ids", "topic", "notes", "evaluation", "makeup_for_id",
		"version", "created_at", "updated_at",
	}).AddRow(
		"l1", "c1", "math", "t1", "2025-2026", 1,
		1, 1, now, "SCHEDULED", 0, 0,
		0, nil, nil, nil, nil, nil,
		1, now, now,
	)
}

func TestLessonRepositoryListFiltersByClassAndStatus(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	status := models.LessonStatusScheduled
	mock.ExpectQuery("SELECT id, class_id, .+ FROM lessons WHERE 1=1 AND class_id = \\$1 AND status = \\$2 ORDER BY scheduled_date ASC, period ASC LIMIT 50 OFFSET 0").
		WithArgs("c1", "SCHEDULED").
		WillReturnRows(lessonRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lessons WHERE 1=1 AND class_id = $1 AND status = $2")).
		WithArgs("c1", "SCHEDULED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	lessons, total, err := repo.List(context.Background(), models.LessonFilter{ClassID: "c1", Status: &status})
	require.NoError(t, err)
	assert.Len(t, lessons, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpdateGuarded(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	lesson := &models.Lesson{ID: "l1", Status: models.LessonStatusCompleted, Version: 3}

	mock.ExpectExec("UPDATE lessons SET status =").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateGuarded(context.Background(), nil, lesson))
	assert.Equal(t, 4, lesson.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpdateGuardedVersionMismatch(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	lesson := &models.Lesson{ID: "l1", Status: models.LessonStatusCompleted, Version: 3}

	mock.ExpectExec("UPDATE lessons SET status =").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateGuarded(context.Background(), nil, lesson)
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.Equal(t, 3, lesson.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositorySlotTaken(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lessons WHERE academic_year = $1 AND week_number = $2 AND day_of_week = $3 AND period = $4 AND status IN ($5, $6, $7) AND (class_id = $8 OR teacher_id = $9)")).
		WithArgs("2025-2026", 10, 2, 5, "SCHEDULED", "COMPLETED", "MAKEUP", "c1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	taken, err := repo.SlotTaken(context.Background(), nil, "c1", "t1", "2025-2026", 10, 2, 5)
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryCreateWithTxTranslatesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO lessons").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "lessons_active_slot_idx"})

	lesson := &models.Lesson{
		ClassID:      "c1",
		SubjectID:    "math",
		TeacherID:    "t1",
		AcademicYear: "2025-2026",
		WeekNumber:   5,
		DayOfWeek:    3,
		Period:       6,
		Status:       models.LessonStatusMakeup,
	}
	err = repo.CreateWithTx(context.Background(), tx, lesson)
	assert.ErrorIs(t, err, ErrSlotOccupied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryOccupiedSlotsSkipsInactiveStatuses(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	rows := sqlmock.NewRows([]string{"class_id", "week_number", "day_of_week", "period"}).
		AddRow("c1", 3, 1, 2).
		AddRow("c1", 3, 4, 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT class_id, week_number, day_of_week, period FROM lessons WHERE class_id = $1 AND academic_year = $2 AND week_number = $3 AND status IN ($4, $5, $6) ORDER BY day_of_week ASC, period ASC")).
		WithArgs("c1", "2025-2026", 3, "SCHEDULED", "COMPLETED", "MAKEUP").
		WillReturnRows(rows)

	slots, err := repo.OccupiedSlots(context.Background(), "c1", "2025-2026", 3)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 1, slots[0].DayOfWeek)
	assert.Equal(t, 5, slots[1].Period)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryMarkAbsentReturnsFlippedRows(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	from := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("UPDATE lessons SET status = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE teacher_id = \\$3 AND status = \\$4 AND scheduled_date >= \\$5 AND scheduled_date <= \\$6 RETURNING").
		WithArgs("ABSENT", sqlmock.AnyArg(), "t1", "SCHEDULED", from, to).
		WillReturnRows(lessonRows())

	flipped, err := repo.MarkAbsentByTeacherRange(context.Background(), "t1", from, to)
	require.NoError(t, err)
	require.Len(t, flipped, 1)
	assert.Equal(t, "l1", flipped[0].ID)
	assert.Equal(t, "c1", flipped[0].ClassID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("COMPLETED", 12).
		AddRow("SCHEDULED", 20).
		AddRow("CANCELLED", 2)
	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS count FROM lessons WHERE class_id = \\$1 AND academic_year = \\$2 GROUP BY status").
		WithArgs("c1", "2025-2026").
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background(), "c1", "", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, 12, counts[models.LessonStatusCompleted])
	assert.Equal(t, 20, counts[models.LessonStatusScheduled])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryDeleteNonCompletedRequiresTx(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	require.Error(t, repo.DeleteNonCompletedByClassWithTx(context.Background(), nil, "c1", "2025-2026"))

	mock.ExpectBegin()
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM lessons WHERE class_id =").
		WithArgs("c1", "2025-2026", "COMPLETED").
		WillReturnResult(sqlmock.NewResult(0, 40))

	require.NoError(t, repo.DeleteNonCompletedByClassWithTx(context.Background(), tx, "c1", "2025-2026"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
