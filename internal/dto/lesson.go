package dto

import (
	"time"

	"github.com/schoolcore/timetable-api/internal/models"
)

// UpdateLessonStatusRequest moves a lesson through its lifecycle. Version
// carries the caller's optimistic concurrency snapshot.
type UpdateLessonStatusRequest struct {
	Status     models.LessonStatus `json:"status" validate:"required"`
	Version    int                 `json:"version" validate:"required,min=1"`
	Attendance *AttendancePayload  `json:"attendance,omitempty"`
	Topic      *string             `json:"topic,omitempty"`
	Notes      *string             `json:"notes,omitempty"`
	Evaluation *int                `json:"evaluation,omitempty" validate:"omitempty,min=1,max=5"`
}

// AttendancePayload is the head-count recorded when completing a lesson.
type AttendancePayload struct {
	PresentCount     int      `json:"presentCount" validate:"min=0"`
	AbsentCount      int      `json:"absentCount" validate:"min=0"`
	TotalCount       int      `json:"totalCount" validate:"required,min=1"`
	AbsentStudentIDs []string `json:"absentStudentIds,omitempty"`
}

// Attendance converts the payload to its model form.
func (p *AttendancePayload) Attendance() models.Attendance {
	if p == nil {
		return models.Attendance{}
	}
	return models.Attendance{
		PresentCount:     p.PresentCount,
		AbsentCount:      p.AbsentCount,
		TotalCount:       p.TotalCount,
		AbsentStudentIDs: p.AbsentStudentIDs,
	}
}

// BulkStatusItem is one entry of a bulk status update. It carries the same
// optional completion payload as a single transition, so bulk items can move
// lessons to COMPLETED with their attendance.
type BulkStatusItem struct {
	LessonID   string              `json:"lessonId" validate:"required"`
	Status     models.LessonStatus `json:"status" validate:"required"`
	Version    int                 `json:"version" validate:"required,min=1"`
	Attendance *AttendancePayload  `json:"attendance,omitempty"`
	Topic      *string             `json:"topic,omitempty"`
	Notes      *string             `json:"notes,omitempty"`
	Evaluation *int                `json:"evaluation,omitempty" validate:"omitempty,min=1,max=5"`
}

// BulkUpdateStatusRequest applies the same lifecycle move to many lessons.
type BulkUpdateStatusRequest struct {
	Items []BulkStatusItem `json:"items" validate:"required,min=1,max=100,dive"`
}

// BulkStatusFailure reports one rejected item of a bulk update.
type BulkStatusFailure struct {
	LessonID string `json:"lessonId"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// BulkUpdateStatusResponse summarises a bulk update. Items fail independently.
type BulkUpdateStatusResponse struct {
	Updated  int                 `json:"updated"`
	Failures []BulkStatusFailure `json:"failures,omitempty"`
}

// ScheduleMakeupRequest books a makeup lesson into an empty slot.
type ScheduleMakeupRequest struct {
	WeekNumber int `json:"weekNumber" validate:"required,min=1"`
	DayOfWeek  int `json:"dayOfWeek" validate:"required,min=1,max=7"`
	Period     int `json:"period" validate:"required,min=1"`
}

// CreateTestInfoRequest marks an upcoming test on a lesson.
type CreateTestInfoRequest struct {
	Title   string  `json:"title" validate:"required,max=200"`
	Content *string `json:"content,omitempty"`
}

// CreateReminderRequest attaches a reminder to a lesson.
type CreateReminderRequest struct {
	Message  string    `json:"message" validate:"required,max=500"`
	RemindAt time.Time `json:"remindAt" validate:"required"`
}

// LeaveApprovalRequest cancels a teacher's lessons over a date range after a
// leave request is approved.
type LeaveApprovalRequest struct {
	TeacherID string    `json:"teacherId" validate:"required"`
	DateFrom  time.Time `json:"dateFrom" validate:"required"`
	DateTo    time.Time `json:"dateTo" validate:"required"`
	Reason    string    `json:"reason,omitempty"`
}

// LeaveApprovalResponse reports how many lessons were marked ABSENT.
type LeaveApprovalResponse struct {
	TeacherID string `json:"teacherId"`
	Affected  int    `json:"affected"`
}
