package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// LessonStatus is the closed lifecycle state of a materialized lesson.
type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "SCHEDULED"
	LessonStatusCompleted LessonStatus = "COMPLETED"
	LessonStatusAbsent    LessonStatus = "ABSENT"
	LessonStatusMakeup    LessonStatus = "MAKEUP"
	LessonStatusCancelled LessonStatus = "CANCELLED"
)

// Valid reports whether the status is a known lifecycle state.
func (s LessonStatus) Valid() bool {
	switch s {
	case LessonStatusScheduled, LessonStatusCompleted, LessonStatusAbsent, LessonStatusMakeup, LessonStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether a lesson in this status can never be mutated again
// without administrative override.
func (s LessonStatus) Terminal() bool {
	return s == LessonStatusCompleted || s == LessonStatusCancelled
}

// lessonTransitions is the single source of truth for legal status moves.
var lessonTransitions = map[LessonStatus]map[LessonStatus]bool{
	LessonStatusScheduled: {
		LessonStatusCompleted: true,
		LessonStatusAbsent:    true,
		LessonStatusCancelled: true,
	},
	LessonStatusAbsent: {
		LessonStatusMakeup: true,
	},
	LessonStatusMakeup: {
		LessonStatusCompleted: true,
	},
}

// CanTransition reports whether moving a lesson from one status to another is legal.
func CanTransition(from, to LessonStatus) bool {
	return lessonTransitions[from][to]
}

// Lesson is one dated instance of a weekly assignment within an academic year.
type Lesson struct {
	ID            string       `db:"id" json:"id"`
	ClassID       string       `db:"class_id" json:"class_id"`
	SubjectID     string       `db:"subject_id" json:"subject_id"`
	TeacherID     string       `db:"teacher_id" json:"teacher_id"`
	AcademicYear  string       `db:"academic_year" json:"academic_year"`
	WeekNumber    int          `db:"week_number" json:"week_number"`
	DayOfWeek     int          `db:"day_of_week" json:"day_of_week"`
	Period        int          `db:"period" json:"period"`
	ScheduledDate time.Time    `db:"scheduled_date" json:"scheduled_date"`
	Status        LessonStatus `db:"status" json:"status"`

	PresentCount     int            `db:"present_count" json:"present_count"`
	AbsentCount      int            `db:"absent_count" json:"absent_count"`
	TotalCount       int            `db:"total_count" json:"total_count"`
	AbsentStudentIDs types.JSONText `db:"absent_student_ids" json:"absent_student_ids,omitempty"`

	Topic      *string `db:"topic" json:"topic,omitempty"`
	Notes      *string `db:"notes" json:"notes,omitempty"`
	Evaluation *int    `db:"evaluation" json:"evaluation,omitempty"`

	// MakeupForID references the ABSENT lesson this MAKEUP entry compensates.
	MakeupForID *string `db:"makeup_for_id" json:"makeup_for_id,omitempty"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Attendance is the reconciled head-count recorded when a lesson completes.
type Attendance struct {
	PresentCount     int      `json:"present_count"`
	AbsentCount      int      `json:"absent_count"`
	TotalCount       int      `json:"total_count"`
	AbsentStudentIDs []string `json:"absent_student_ids,omitempty"`
}

// Reconciled reports whether the head-count adds up.
func (a Attendance) Reconciled() bool {
	return a.TotalCount >= a.PresentCount+a.AbsentCount &&
		a.PresentCount >= 0 && a.AbsentCount >= 0
}

// EmptySlot is a class/week/day/period tuple with no active lesson. It is a
// derived view over the lessons table, never persisted on its own.
type EmptySlot struct {
	ClassID    string `db:"class_id" json:"class_id"`
	WeekNumber int    `db:"week_number" json:"week_number"`
	DayOfWeek  int    `db:"day_of_week" json:"day_of_week"`
	Period     int    `db:"period" json:"period"`
}

// LessonFilter narrows lesson queries.
type LessonFilter struct {
	ClassID      string
	TeacherID    string
	SubjectID    string
	AcademicYear string
	WeekNumber   *int
	Status       *LessonStatus
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
}

// LessonAggregate is one per-subject, per-status row of the progress rollup.
type LessonAggregate struct {
	SubjectID string       `db:"subject_id" json:"subject_id"`
	Status    LessonStatus `db:"status" json:"status"`
	Count     int          `db:"count" json:"count"`
	Present   int          `db:"present" json:"present"`
	Total     int          `db:"total" json:"total"`
	PastCount int          `db:"past_count" json:"past_count"`
}

// TestInfo annotates a scheduled lesson with an upcoming test.
type TestInfo struct {
	ID        string    `db:"id" json:"id"`
	LessonID  string    `db:"lesson_id" json:"lesson_id"`
	Title     string    `db:"title" json:"title"`
	Content   *string   `db:"content" json:"content,omitempty"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LessonReminder annotates a scheduled lesson with a reminder note.
type LessonReminder struct {
	ID        string    `db:"id" json:"id"`
	LessonID  string    `db:"lesson_id" json:"lesson_id"`
	Message   string    `db:"message" json:"message"`
	RemindAt  time.Time `db:"remind_at" json:"remind_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
