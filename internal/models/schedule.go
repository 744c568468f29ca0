package models

import "time"

// WeeklyAssignment is one cell of a class's generated weekly template.
type WeeklyAssignment struct {
	ID           string    `db:"id" json:"id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	Period       int       `db:"period" json:"period"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ScheduleStatus tracks whether a class/year template has materialized lessons
// and how those lessons are distributed over the lifecycle.
type ScheduleStatus struct {
	ClassID      string               `json:"class_id"`
	AcademicYear string               `json:"academic_year"`
	TotalLessons int                  `json:"total_lessons"`
	Initialized  bool                 `json:"initialized"`
	ByStatus     map[LessonStatus]int `json:"by_status,omitempty"`
}
