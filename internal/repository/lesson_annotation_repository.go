package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/timetable-api/internal/models"
)

// LessonAnnotationRepository stores test markers and reminders attached to lessons.
type LessonAnnotationRepository struct {
	db *sqlx.DB
}

// NewLessonAnnotationRepository constructs a new annotation repository.
func NewLessonAnnotationRepository(db *sqlx.DB) *LessonAnnotationRepository {
	return &LessonAnnotationRepository{db: db}
}

// CreateTestInfo records an upcoming test on a lesson.
func (r *LessonAnnotationRepository) CreateTestInfo(ctx context.Context, info *models.TestInfo) error {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lesson_tests (id, lesson_id, title, content, created_by, created_at) VALUES (:id, :lesson_id, :title, :content, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, info); err != nil {
		return fmt.Errorf("create test info: %w", err)
	}
	return nil
}

// ListTestsByClass returns test markers for a class's upcoming lessons.
func (r *LessonAnnotationRepository) ListTestsByClass(ctx context.Context, classID string, from time.Time) ([]models.TestInfo, error) {
	const query = `SELECT t.id, t.lesson_id, t.title, t.content, t.created_by, t.created_at FROM lesson_tests t JOIN lessons l ON l.id = t.lesson_id WHERE l.class_id = $1 AND l.scheduled_date >= $2 ORDER BY l.scheduled_date ASC`
	var tests []models.TestInfo
	if err := r.db.SelectContext(ctx, &tests, query, classID, from); err != nil {
		return nil, fmt.Errorf("list tests by class: %w", err)
	}
	return tests, nil
}

// DeleteTestInfo removes a test marker. The lesson id guards against deleting
// another lesson's marker through a guessed id.
func (r *LessonAnnotationRepository) DeleteTestInfo(ctx context.Context, lessonID, testID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lesson_tests WHERE id = $1 AND lesson_id = $2`, testID, lessonID)
	if err != nil {
		return fmt.Errorf("delete test info: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete test info: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateReminder attaches a reminder note to a lesson.
func (r *LessonAnnotationRepository) CreateReminder(ctx context.Context, reminder *models.LessonReminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lesson_reminders (id, lesson_id, message, remind_at, created_by, created_at) VALUES (:id, :lesson_id, :message, :remind_at, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reminder); err != nil {
		return fmt.Errorf("create lesson reminder: %w", err)
	}
	return nil
}

// DeleteReminder removes a reminder scoped to its lesson.
func (r *LessonAnnotationRepository) DeleteReminder(ctx context.Context, lessonID, reminderID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lesson_reminders WHERE id = $1 AND lesson_id = $2`, reminderID, lessonID)
	if err != nil {
		return fmt.Errorf("delete lesson reminder: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete lesson reminder: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByLesson drops every annotation of a lesson. Used when the lesson is
// invalidated wholesale, e.g. by a leave approval.
func (r *LessonAnnotationRepository) DeleteByLesson(ctx context.Context, lessonID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lesson_tests WHERE lesson_id = $1`, lessonID); err != nil {
		return fmt.Errorf("delete lesson tests: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lesson_reminders WHERE lesson_id = $1`, lessonID); err != nil {
		return fmt.Errorf("delete lesson reminders: %w", err)
	}
	return nil
}

// ListDueReminders returns reminders whose remind_at has passed.
func (r *LessonAnnotationRepository) ListDueReminders(ctx context.Context, before time.Time) ([]models.LessonReminder, error) {
	const query = `SELECT id, lesson_id, message, remind_at, created_by, created_at FROM lesson_reminders WHERE remind_at <= $1 ORDER BY remind_at ASC`
	var reminders []models.LessonReminder
	if err := r.db.SelectContext(ctx, &reminders, query, before); err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return reminders, nil
}
