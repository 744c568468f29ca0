package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SubjectKind coarsely classifies subjects for the theory/practice balance heuristic.
type SubjectKind string

const (
	SubjectKindTheory   SubjectKind = "THEORY"
	SubjectKindPractice SubjectKind = "PRACTICE"
)

// SubjectRequirement states how many weekly periods a class needs for a subject
// and which teachers may deliver it.
type SubjectRequirement struct {
	ID               string         `db:"id" json:"id"`
	ClassID          string         `db:"class_id" json:"class_id"`
	AcademicYear     string         `db:"academic_year" json:"academic_year"`
	SubjectID        string         `db:"subject_id" json:"subject_id"`
	WeeklyPeriods    int            `db:"weekly_periods" json:"weekly_periods"`
	EligibleTeachers types.JSONText `db:"eligible_teachers" json:"eligible_teachers"`
	SubjectKind      SubjectKind    `db:"subject_kind" json:"subject_kind"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// TeacherIDs decodes the eligible teacher list.
func (r SubjectRequirement) TeacherIDs() []string {
	if len(r.EligibleTeachers) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(r.EligibleTeachers, &ids); err != nil {
		return nil
	}
	return ids
}

// Eligible reports whether the teacher may deliver this requirement's subject.
func (r SubjectRequirement) Eligible(teacherID string) bool {
	for _, id := range r.TeacherIDs() {
		if id == teacherID {
			return true
		}
	}
	return false
}
