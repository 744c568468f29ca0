package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/timetable-api/internal/models"
)

// TeacherRepository reads instructor records and their recurring unavailability.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a new teacher repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByID loads a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, email, full_name, active, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListBlockedSlots returns every teacher's recurring blocked cells for the
// scheduler to seed availability from.
func (r *TeacherRepository) ListBlockedSlots(ctx context.Context) ([]models.TeacherBlockedSlot, error) {
	const query = `SELECT teacher_id, day_of_week, period FROM teacher_blocked_slots ORDER BY teacher_id ASC, day_of_week ASC, period ASC`
	var slots []models.TeacherBlockedSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list teacher blocked slots: %w", err)
	}
	return slots, nil
}
