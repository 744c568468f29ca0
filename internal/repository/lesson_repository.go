package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/schoolcore/timetable-api/internal/models"
)

// ErrVersionMismatch signals that a guarded lesson update lost an optimistic
// concurrency race: the row's version no longer matches the caller's snapshot.
var ErrVersionMismatch = errors.New("lesson version mismatch")

// ErrSlotOccupied signals that an insert lost the race for a slot: the
// lessons_active_slot_idx partial unique index on (class_id, academic_year,
// week_number, day_of_week, period) over active statuses rejected the row.
var ErrSlotOccupied = errors.New("lesson slot already occupied")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// LessonRepository provides persistence for materialized lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonColumns = `id, class_id, subject_id, teacher_id, academic_year, week_number, day_of_week, period, scheduled_date, status, present_count, absent_count, total_count, absent_student_ids, topic, notes, evaluation, makeup_for_id, version, created_at, updated_at`

// List returns lessons with optional filtering and pagination.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	base := "FROM lessons WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.WeekNumber != nil {
		conditions = append(conditions, fmt.Sprintf("week_number = $%d", len(args)+1))
		args = append(args, *filter.WeekNumber)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(*filter.Status))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY scheduled_date ASC, period ASC LIMIT %d OFFSET %d", lessonColumns, base, size, offset)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}

	return lessons, total, nil
}

// FindByID loads a lesson by id.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// FindByIDForUpdate loads a lesson inside a transaction with a row lock.
func (r *LessonRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1 FOR UPDATE", lessonColumns)
	var lesson models.Lesson
	if err := tx.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// BulkCreateWithTx inserts materialized lessons using an existing transaction.
func (r *LessonRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, lessons []models.Lesson) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.bulkInsert(ctx, tx, lessons)
}

func (r *LessonRepository) bulkInsert(ctx context.Context, exec sqlx.ExtContext, lessons []models.Lesson) error {
	now := time.Now().UTC()
	for i := range lessons {
		payload := lessons[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.Version == 0 {
			payload.Version = 1
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, exec, `INSERT INTO lessons (id, class_id, subject_id, teacher_id, academic_year, week_number, day_of_week, period, scheduled_date, status, present_count, absent_count, total_count, absent_student_ids, topic, notes, evaluation, makeup_for_id, version, created_at, updated_at) VALUES (:id, :class_id, :subject_id, :teacher_id, :academic_year, :week_number, :day_of_week, :period, :scheduled_date, :status, :present_count, :absent_count, :total_count, :absent_student_ids, :topic, :notes, :evaluation, :makeup_for_id, :version, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("bulk insert lesson: %w", err)
		}
		lessons[i] = payload
	}
	return nil
}

// CreateWithTx inserts a single lesson, typically a makeup entry. A concurrent
// booking that hit the same slot first surfaces as ErrSlotOccupied through the
// active-slot unique index.
func (r *LessonRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, lesson *models.Lesson) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	single := []models.Lesson{*lesson}
	if err := r.bulkInsert(ctx, tx, single); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotOccupied
		}
		return err
	}
	*lesson = single[0]
	return nil
}

// UpdateGuarded persists lesson mutations only when the stored version still
// matches the lesson's version, then bumps it. A concurrent writer that got
// there first surfaces as ErrVersionMismatch.
func (r *LessonRepository) UpdateGuarded(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	if exec == nil {
		exec = r.db
	}
	lesson.UpdatedAt = time.Now().UTC()

	const query = `UPDATE lessons SET status = :status, present_count = :present_count, absent_count = :absent_count, total_count = :total_count, absent_student_ids = :absent_student_ids, topic = :topic, notes = :notes, evaluation = :evaluation, version = version + 1, updated_at = :updated_at WHERE id = :id AND version = :version`
	result, err := sqlx.NamedExecContext(ctx, exec, query, lesson)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lesson rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionMismatch
	}
	lesson.Version++
	return nil
}

// DeleteNonCompletedByClassWithTx removes every lesson of a class/year that is
// not COMPLETED. Regeneration preserves delivered history.
func (r *LessonRepository) DeleteNonCompletedByClassWithTx(ctx context.Context, tx *sqlx.Tx, classID, academicYear string) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE class_id = $1 AND academic_year = $2 AND status <> $3`, classID, academicYear, string(models.LessonStatusCompleted)); err != nil {
		return fmt.Errorf("delete non-completed lessons: %w", err)
	}
	return nil
}

// OccupiedSlots returns the week/day/period tuples of a class's active
// (SCHEDULED, COMPLETED or MAKEUP) lessons. ABSENT and CANCELLED rows hold no
// slot, matching the occupancy rule SlotTaken enforces on makeup booking; the
// service diffs the result against the grid to surface empty slots.
func (r *LessonRepository) OccupiedSlots(ctx context.Context, classID, academicYear string, weekNumber int) ([]models.EmptySlot, error) {
	const query = `SELECT class_id, week_number, day_of_week, period FROM lessons WHERE class_id = $1 AND academic_year = $2 AND week_number = $3 AND status IN ($4, $5, $6) ORDER BY day_of_week ASC, period ASC`
	var slots []models.EmptySlot
	if err := r.db.SelectContext(ctx, &slots, query, classID, academicYear, weekNumber,
		string(models.LessonStatusScheduled), string(models.LessonStatusCompleted), string(models.LessonStatusMakeup)); err != nil {
		return nil, fmt.Errorf("list occupied slots: %w", err)
	}
	return slots, nil
}

// CompletedSlots returns the week/day/period tuples of a class's COMPLETED
// lessons. Regeneration skips these cells so delivered history survives.
func (r *LessonRepository) CompletedSlots(ctx context.Context, classID, academicYear string) ([]models.EmptySlot, error) {
	const query = `SELECT class_id, week_number, day_of_week, period FROM lessons WHERE class_id = $1 AND academic_year = $2 AND status = $3 ORDER BY week_number ASC, day_of_week ASC, period ASC`
	var slots []models.EmptySlot
	if err := r.db.SelectContext(ctx, &slots, query, classID, academicYear, string(models.LessonStatusCompleted)); err != nil {
		return nil, fmt.Errorf("list completed slots: %w", err)
	}
	return slots, nil
}

// SlotTaken reports whether a class or a teacher already holds an active
// (SCHEDULED, COMPLETED or MAKEUP) lesson at the given slot. Run inside the
// makeup transaction so the answer stays true until commit.
func (r *LessonRepository) SlotTaken(ctx context.Context, exec sqlx.ExtContext, classID, teacherID, academicYear string, weekNumber, dayOfWeek, period int) (bool, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT COUNT(*) FROM lessons WHERE academic_year = $1 AND week_number = $2 AND day_of_week = $3 AND period = $4 AND status IN ($5, $6, $7) AND (class_id = $8 OR teacher_id = $9)`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, academicYear, weekNumber, dayOfWeek, period,
		string(models.LessonStatusScheduled), string(models.LessonStatusCompleted), string(models.LessonStatusMakeup), classID, teacherID); err != nil {
		return false, fmt.Errorf("check slot occupancy: %w", err)
	}
	return count > 0, nil
}

// MarkAbsentByTeacherRange flips a teacher's SCHEDULED lessons inside a date
// range to ABSENT and returns the flipped rows so the caller can fan out
// notifications, cache invalidation and annotation cleanup. Backs approved
// leave requests.
func (r *LessonRepository) MarkAbsentByTeacherRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error) {
	query := `UPDATE lessons SET status = $1, version = version + 1, updated_at = $2 WHERE teacher_id = $3 AND status = $4 AND scheduled_date >= $5 AND scheduled_date <= $6 RETURNING ` + lessonColumns
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, string(models.LessonStatusAbsent), time.Now().UTC(), teacherID, string(models.LessonStatusScheduled), from, to); err != nil {
		return nil, fmt.Errorf("mark lessons absent: %w", err)
	}
	return lessons, nil
}

// ProgressRows aggregates per-subject lesson counts for progress reporting.
// PastCount narrows each group to lessons already due at the reference time.
func (r *LessonRepository) ProgressRows(ctx context.Context, classID, academicYear string, now time.Time) ([]models.LessonAggregate, error) {
	const query = `SELECT subject_id, status, COUNT(*) AS count, COALESCE(SUM(present_count), 0) AS present, COALESCE(SUM(total_count), 0) AS total, COUNT(*) FILTER (WHERE scheduled_date < $3) AS past_count FROM lessons WHERE class_id = $1 AND academic_year = $2 GROUP BY subject_id, status`
	var rows []models.LessonAggregate
	if err := r.db.SelectContext(ctx, &rows, query, classID, academicYear, now); err != nil {
		return nil, fmt.Errorf("aggregate lesson progress: %w", err)
	}
	return rows, nil
}

// CountByStatus aggregates lesson counts per status for progress reporting.
func (r *LessonRepository) CountByStatus(ctx context.Context, classID, subjectID, academicYear string) (map[models.LessonStatus]int, error) {
	base := "FROM lessons WHERE class_id = $1 AND academic_year = $2"
	args := []interface{}{classID, academicYear}
	if subjectID != "" {
		base += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, subjectID)
	}

	query := "SELECT status, COUNT(*) AS count " + base + " GROUP BY status"
	rows := []struct {
		Status models.LessonStatus `db:"status"`
		Count  int                 `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count lessons by status: %w", err)
	}

	counts := make(map[models.LessonStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// BeginTxx starts a transaction on the underlying pool so services can span
// multiple repository calls atomically.
func (r *LessonRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}
