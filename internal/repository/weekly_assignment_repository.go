package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/timetable-api/internal/models"
)

// WeeklyAssignmentRepository persists the generated weekly template of a class.
type WeeklyAssignmentRepository struct {
	db *sqlx.DB
}

// NewWeeklyAssignmentRepository constructs a new weekly assignment repository.
func NewWeeklyAssignmentRepository(db *sqlx.DB) *WeeklyAssignmentRepository {
	return &WeeklyAssignmentRepository{db: db}
}

// ExistsForClass reports whether a class already has a template for the year.
func (r *WeeklyAssignmentRepository) ExistsForClass(ctx context.Context, classID, academicYear string) (bool, error) {
	const query = `SELECT COUNT(*) FROM weekly_assignments WHERE class_id = $1 AND academic_year = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, academicYear); err != nil {
		return false, fmt.Errorf("count weekly assignments: %w", err)
	}
	return count > 0, nil
}

// ListByClass returns the template cells of one class ordered by day/period.
func (r *WeeklyAssignmentRepository) ListByClass(ctx context.Context, classID, academicYear string) ([]models.WeeklyAssignment, error) {
	const query = `SELECT id, class_id, academic_year, day_of_week, period, subject_id, teacher_id, created_at FROM weekly_assignments WHERE class_id = $1 AND academic_year = $2 ORDER BY day_of_week ASC, period ASC`
	var assignments []models.WeeklyAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, classID, academicYear); err != nil {
		return nil, fmt.Errorf("list weekly assignments by class: %w", err)
	}
	return assignments, nil
}

// ListByAcademicYear returns every template cell of the year. The scheduler
// seeds shared teacher availability from this before generating a new class.
func (r *WeeklyAssignmentRepository) ListByAcademicYear(ctx context.Context, academicYear string) ([]models.WeeklyAssignment, error) {
	const query = `SELECT id, class_id, academic_year, day_of_week, period, subject_id, teacher_id, created_at FROM weekly_assignments WHERE academic_year = $1 ORDER BY class_id ASC, day_of_week ASC, period ASC`
	var assignments []models.WeeklyAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, academicYear); err != nil {
		return nil, fmt.Errorf("list weekly assignments by year: %w", err)
	}
	return assignments, nil
}

// BulkCreateWithTx inserts template cells using an existing transaction.
func (r *WeeklyAssignmentRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, assignments []models.WeeklyAssignment) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.bulkInsert(ctx, tx, assignments)
}

// DeleteByClassWithTx drops a class's template ahead of regeneration.
func (r *WeeklyAssignmentRepository) DeleteByClassWithTx(ctx context.Context, tx *sqlx.Tx, classID, academicYear string) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_assignments WHERE class_id = $1 AND academic_year = $2`, classID, academicYear); err != nil {
		return fmt.Errorf("delete weekly assignments: %w", err)
	}
	return nil
}

func (r *WeeklyAssignmentRepository) bulkInsert(ctx context.Context, exec sqlx.ExtContext, assignments []models.WeeklyAssignment) error {
	now := time.Now().UTC()
	for i := range assignments {
		payload := assignments[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}

		if _, err := sqlx.NamedExecContext(ctx, exec, `INSERT INTO weekly_assignments (id, class_id, academic_year, day_of_week, period, subject_id, teacher_id, created_at) VALUES (:id, :class_id, :academic_year, :day_of_week, :period, :subject_id, :teacher_id, :created_at)`, &payload); err != nil {
			return fmt.Errorf("bulk insert weekly assignment: %w", err)
		}
		assignments[i] = payload
	}
	return nil
}
