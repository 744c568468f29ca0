package dto

import "github.com/schoolcore/timetable-api/internal/models"

// InitializeScheduleRequest triggers template generation and materialization
// for a class. Force regenerates an existing schedule, preserving COMPLETED
// lessons.
type InitializeScheduleRequest struct {
	AcademicYear string `json:"academicYear" validate:"required"`
	Force        bool   `json:"force"`
}

// InitializeScheduleResponse reports what was generated: the week template
// that every week of the year repeats, the materialized lesson count and the
// solver's soft score for the accepted template.
type InitializeScheduleResponse struct {
	ClassID         string         `json:"classId"`
	AcademicYear    string         `json:"academicYear"`
	AssignmentCount int            `json:"assignmentCount"`
	LessonCount     int            `json:"lessonCount"`
	Score           float64        `json:"score"`
	Regenerated     bool           `json:"regenerated"`
	Cells           []ScheduleCell `json:"cells"`
}

// ScheduleCell is one rendered cell of a class's weekly timetable.
type ScheduleCell struct {
	DayOfWeek   int    `json:"dayOfWeek"`
	Period      int    `json:"period"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName,omitempty"`
	TeacherID   string `json:"teacherId"`
}

// WeeklyScheduleResponse is the full weekly view of one class.
type WeeklyScheduleResponse struct {
	ClassID      string         `json:"classId"`
	AcademicYear string         `json:"academicYear"`
	Cells        []ScheduleCell `json:"cells"`
}

// EmptySlotQuery narrows the empty slot listing.
type EmptySlotQuery struct {
	AcademicYear string `form:"academicYear" validate:"required"`
	WeekNumber   int    `form:"weekNumber" validate:"required,min=1"`
}

// EmptySlotsResponse lists unoccupied grid cells for a class week.
type EmptySlotsResponse struct {
	ClassID    string             `json:"classId"`
	WeekNumber int                `json:"weekNumber"`
	Slots      []models.EmptySlot `json:"slots"`
}

// InfeasibilityDetail names the subject the solver could not place.
type InfeasibilityDetail struct {
	SubjectID      string `json:"subjectId"`
	MissingPeriods int    `json:"missingPeriods"`
}
