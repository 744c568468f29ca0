package models

import "time"

// AcademicYear anchors materialization: lessons for week N land on
// StartDate + (N-1) weeks plus the assignment's day offset.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	WeekCount int       `db:"week_count" json:"week_count"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Holiday is a date range during which no lessons are held. Materialized
// lessons falling inside one are created CANCELLED.
type Holiday struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}

// Contains reports whether the date falls inside the holiday range (inclusive).
func (h Holiday) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(h.StartDate.Truncate(24*time.Hour)) && !d.After(h.EndDate.Truncate(24*time.Hour))
}
