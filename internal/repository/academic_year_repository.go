package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/timetable-api/internal/models"
)

// AcademicYearRepository reads academic year anchors and holiday calendars.
type AcademicYearRepository struct {
	db *sqlx.DB
}

// NewAcademicYearRepository constructs a new academic year repository.
func NewAcademicYearRepository(db *sqlx.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// FindByName loads a year by its display name, e.g. "2025-2026".
func (r *AcademicYearRepository) FindByName(ctx context.Context, name string) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, week_count, is_active, created_at FROM academic_years WHERE name = $1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, name); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindActive loads the currently active year.
func (r *AcademicYearRepository) FindActive(ctx context.Context) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, week_count, is_active, created_at FROM academic_years WHERE is_active = TRUE ORDER BY start_date DESC LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}

// ListHolidays returns the holiday ranges overlapping a year.
func (r *AcademicYearRepository) ListHolidays(ctx context.Context, yearID string) ([]models.Holiday, error) {
	const query = `SELECT id, name, start_date, end_date FROM holidays WHERE academic_year_id = $1 ORDER BY start_date ASC`
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, yearID); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}
