package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/timetable-api/internal/models"
)

// RequirementRepository reads curriculum requirements used as scheduler input.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs a new requirement repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// FindByClassSubject loads the single requirement binding a class, year and
// subject. Lifecycle mutations use it to re-check teacher eligibility.
func (r *RequirementRepository) FindByClassSubject(ctx context.Context, classID, academicYear, subjectID string) (*models.SubjectRequirement, error) {
	const query = `SELECT id, class_id, academic_year, subject_id, weekly_periods, eligible_teachers, subject_kind, created_at FROM subject_requirements WHERE class_id = $1 AND academic_year = $2 AND subject_id = $3`
	var req models.SubjectRequirement
	if err := r.db.GetContext(ctx, &req, query, classID, academicYear, subjectID); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByClass returns the subject requirements of one class for the year.
func (r *RequirementRepository) ListByClass(ctx context.Context, classID, academicYear string) ([]models.SubjectRequirement, error) {
	const query = `SELECT id, class_id, academic_year, subject_id, weekly_periods, eligible_teachers, subject_kind, created_at FROM subject_requirements WHERE class_id = $1 AND academic_year = $2 ORDER BY weekly_periods DESC, subject_id ASC`
	var reqs []models.SubjectRequirement
	if err := r.db.SelectContext(ctx, &reqs, query, classID, academicYear); err != nil {
		return nil, fmt.Errorf("list subject requirements: %w", err)
	}
	return reqs, nil
}
