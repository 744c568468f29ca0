package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolcore/timetable-api/internal/models"
	"github.com/schoolcore/timetable-api/pkg/jobs"
)

// Notification event types emitted by the lifecycle and the scheduler.
const (
	EventScheduleInitialized = "schedule.initialized"
	EventGenerationFailed    = "schedule.generation_failed"
	EventLessonAbsent        = "lesson.absent"
	EventMakeupScheduled     = "lesson.makeup_scheduled"
)

// NotificationPayload is the envelope queued for asynchronous delivery.
type NotificationPayload struct {
	Event        string    `json:"event"`
	ClassID      string    `json:"classId,omitempty"`
	TeacherID    string    `json:"teacherId,omitempty"`
	LessonID     string    `json:"lessonId,omitempty"`
	AcademicYear string    `json:"academicYear,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// NotificationService fans lifecycle events out to a background worker pool.
// Delivery is fire and forget: emitters never block on it and enqueue
// failures are only logged.
type NotificationService struct {
	queue  *jobs.Queue[NotificationPayload]
	logger *zap.Logger
}

// NewNotificationService builds the service and its backing queue.
func NewNotificationService(logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start begins background delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// deliver is the worker handler. Actual transport (email, push) lives behind
// the gateway this service would call; here the event is logged as sent.
func (s *NotificationService) deliver(ctx context.Context, job jobs.Job[NotificationPayload]) error {
	payload := job.Payload
	s.logger.Info("notification delivered",
		zap.String("event", payload.Event),
		zap.String("classId", payload.ClassID),
		zap.String("teacherId", payload.TeacherID),
		zap.String("lessonId", payload.LessonID))
	return nil
}

func (s *NotificationService) emit(payload NotificationPayload) {
	payload.OccurredAt = time.Now().UTC()
	err := s.queue.Enqueue(jobs.Job[NotificationPayload]{
		ID:      uuid.NewString(),
		Type:    payload.Event,
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("notification enqueue failed", zap.String("event", payload.Event), zap.Error(err))
	}
}

// ScheduleInitialized notifies that a class schedule was generated.
func (s *NotificationService) ScheduleInitialized(classID, academicYear string, lessonCount int) {
	s.emit(NotificationPayload{
		Event:        EventScheduleInitialized,
		ClassID:      classID,
		AcademicYear: academicYear,
	})
}

// GenerationFailed notifies the requesting manager that generation was
// infeasible.
func (s *NotificationService) GenerationFailed(classID, academicYear, reason string) {
	s.emit(NotificationPayload{
		Event:        EventGenerationFailed,
		ClassID:      classID,
		AcademicYear: academicYear,
		Detail:       reason,
	})
}

// LessonAbsent notifies students that a lesson was not held.
func (s *NotificationService) LessonAbsent(lesson models.Lesson) {
	s.emit(NotificationPayload{
		Event:     EventLessonAbsent,
		ClassID:   lesson.ClassID,
		TeacherID: lesson.TeacherID,
		LessonID:  lesson.ID,
	})
}

// MakeupScheduled notifies affected students and the teacher.
func (s *NotificationService) MakeupScheduled(makeup models.Lesson) {
	s.emit(NotificationPayload{
		Event:     EventMakeupScheduled,
		ClassID:   makeup.ClassID,
		TeacherID: makeup.TeacherID,
		LessonID:  makeup.ID,
	})
}
