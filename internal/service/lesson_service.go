package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/models"
	"github.com/schoolcore/timetable-api/internal/repository"
	"github.com/schoolcore/timetable-api/internal/timetable"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
)

type lifecycleLessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Lesson, error)
	UpdateGuarded(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error
	SlotTaken(ctx context.Context, exec sqlx.ExtContext, classID, teacherID, academicYear string, weekNumber, dayOfWeek, period int) (bool, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, lesson *models.Lesson) error
	MarkAbsentByTeacherRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error)
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type lessonYearReader interface {
	FindByName(ctx context.Context, name string) (*models.AcademicYear, error)
}

type lessonRequirementReader interface {
	FindByClassSubject(ctx context.Context, classID, academicYear, subjectID string) (*models.SubjectRequirement, error)
}

type lessonAnnotationWriter interface {
	CreateTestInfo(ctx context.Context, info *models.TestInfo) error
	DeleteTestInfo(ctx context.Context, lessonID, testID string) error
	ListTestsByClass(ctx context.Context, classID string, from time.Time) ([]models.TestInfo, error)
	CreateReminder(ctx context.Context, reminder *models.LessonReminder) error
	DeleteReminder(ctx context.Context, lessonID, reminderID string) error
	DeleteByLesson(ctx context.Context, lessonID string) error
}

type transitionObserver interface {
	RecordTransition(from, to string)
}

type lessonNotifier interface {
	LessonAbsent(lesson models.Lesson)
	MakeupScheduled(makeup models.Lesson)
}

type progressInvalidator interface {
	InvalidateClass(ctx context.Context, classID string)
}

// LessonService governs the lesson lifecycle: status transitions, attendance
// recording, makeup booking and leave approval side effects.
type LessonService struct {
	lessons      lifecycleLessonRepository
	years        lessonYearReader
	requirements lessonRequirementReader
	annotations  lessonAnnotationWriter
	metrics      transitionObserver
	notifier     lessonNotifier
	progress     progressInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewLessonService wires lesson lifecycle dependencies.
func NewLessonService(
	lessons lifecycleLessonRepository,
	years lessonYearReader,
	requirements lessonRequirementReader,
	annotations lessonAnnotationWriter,
	metrics transitionObserver,
	notifier lessonNotifier,
	progress progressInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{
		lessons:      lessons,
		years:        years,
		requirements: requirements,
		annotations:  annotations,
		metrics:      metrics,
		notifier:     notifier,
		progress:     progress,
		validator:    validate,
		logger:       logger,
	}
}

// List returns lessons matching the filter. Teachers only see their own.
func (s *LessonService) List(ctx context.Context, actor models.JWTClaims, filter models.LessonFilter) ([]models.Lesson, int, error) {
	if actor.Role == models.RoleTeacher {
		filter.TeacherID = actor.UserID
	}
	lessons, total, err := s.lessons.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, total, nil
}

// UpdateStatus moves a lesson through its lifecycle with optimistic
// concurrency. The transition must be legal from the currently persisted
// status, not the one the caller last saw.
func (s *LessonService) UpdateStatus(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.UpdateLessonStatusRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown lesson status %q", req.Status))
	}

	lesson, err := s.loadOwned(ctx, actor, lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTeacherEligible(ctx, lesson); err != nil {
		return nil, err
	}
	if err := s.applyTransition(lesson, req); err != nil {
		return nil, err
	}
	if req.Version != lesson.Version {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lesson was modified concurrently, reload and retry")
	}

	from := lesson.Status
	lesson.Status = req.Status
	if err := s.lessons.UpdateGuarded(ctx, nil, lesson); err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "lesson was modified concurrently, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(string(from), string(lesson.Status))
	}
	if lesson.Status == models.LessonStatusAbsent && s.notifier != nil {
		s.notifier.LessonAbsent(*lesson)
	}
	if s.progress != nil {
		s.progress.InvalidateClass(ctx, lesson.ClassID)
	}

	s.logger.Info("lesson status updated",
		zap.String("lessonId", lesson.ID),
		zap.String("from", string(from)),
		zap.String("to", string(lesson.Status)),
		zap.String("actorId", actor.UserID))
	return lesson, nil
}

// applyTransition validates the move and folds the payload into the lesson.
func (s *LessonService) applyTransition(lesson *models.Lesson, req dto.UpdateLessonStatusRequest) error {
	if !models.CanTransition(lesson.Status, req.Status) {
		return appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("cannot move lesson from %s to %s", lesson.Status, req.Status))
	}

	if req.Status == models.LessonStatusCompleted {
		if req.Attendance == nil {
			return appErrors.Clone(appErrors.ErrValidation, "attendance is required to complete a lesson")
		}
		attendance := req.Attendance.Attendance()
		if !attendance.Reconciled() {
			return appErrors.Clone(appErrors.ErrValidation, "attendance does not reconcile: totalCount must cover present and absent")
		}
		lesson.PresentCount = attendance.PresentCount
		lesson.AbsentCount = attendance.AbsentCount
		lesson.TotalCount = attendance.TotalCount
		if len(attendance.AbsentStudentIDs) > 0 {
			encoded, err := json.Marshal(attendance.AbsentStudentIDs)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode absent students")
			}
			lesson.AbsentStudentIDs = encoded
		}
	}

	if req.Topic != nil {
		lesson.Topic = req.Topic
	}
	if req.Notes != nil {
		lesson.Notes = req.Notes
	}
	if req.Evaluation != nil {
		lesson.Evaluation = req.Evaluation
	}
	return nil
}

// BulkUpdateStatus applies lifecycle moves to many lessons. Items fail
// independently; one bad lesson never rolls back its siblings.
func (s *LessonService) BulkUpdateStatus(ctx context.Context, actor models.JWTClaims, req dto.BulkUpdateStatusRequest) (*dto.BulkUpdateStatusResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk status payload")
	}

	resp := &dto.BulkUpdateStatusResponse{}
	for _, item := range req.Items {
		_, err := s.UpdateStatus(ctx, actor, item.LessonID, dto.UpdateLessonStatusRequest{
			Status:     item.Status,
			Version:    item.Version,
			Attendance: item.Attendance,
			Topic:      item.Topic,
			Notes:      item.Notes,
			Evaluation: item.Evaluation,
		})
		if err != nil {
			appErr := appErrors.FromError(err)
			resp.Failures = append(resp.Failures, dto.BulkStatusFailure{
				LessonID: item.LessonID,
				Code:     appErr.Code,
				Message:  appErr.Message,
			})
			continue
		}
		resp.Updated++
	}
	return resp, nil
}

// ScheduleMakeup books a makeup lesson for an ABSENT origin into an empty
// slot. Occupancy is re-validated inside the transaction so concurrent
// bookings of the same slot cannot both succeed.
func (s *LessonService) ScheduleMakeup(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.ScheduleMakeupRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid makeup payload")
	}

	tx, err := s.lessons.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	origin, err := s.lessons.FindByIDForUpdate(ctx, tx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
		return nil, err
	}
	if actor.Role == models.RoleTeacher && origin.TeacherID != actor.UserID {
		err = appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
		return nil, err
	}
	if !models.CanTransition(origin.Status, models.LessonStatusMakeup) {
		err = appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("makeup requires an ABSENT lesson, current status is %s", origin.Status))
		return nil, err
	}
	if err = s.checkTeacherEligible(ctx, origin); err != nil {
		return nil, err
	}

	year, err := s.years.FindByName(ctx, origin.AcademicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrSourceDataInconsistent, "lesson references an unknown academic year")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
		return nil, err
	}
	if year.WeekCount > 0 && req.WeekNumber > year.WeekCount {
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weekNumber exceeds the academic year's %d weeks", year.WeekCount))
		return nil, err
	}

	taken, err := s.lessons.SlotTaken(ctx, tx, origin.ClassID, origin.TeacherID, origin.AcademicYear, req.WeekNumber, req.DayOfWeek, req.Period)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot occupancy")
		return nil, err
	}
	if taken {
		err = appErrors.Clone(appErrors.ErrSlotConflict, "")
		return nil, err
	}

	makeup := models.Lesson{
		ClassID:       origin.ClassID,
		SubjectID:     origin.SubjectID,
		TeacherID:     origin.TeacherID,
		AcademicYear:  origin.AcademicYear,
		WeekNumber:    req.WeekNumber,
		DayOfWeek:     req.DayOfWeek,
		Period:        req.Period,
		ScheduledDate: timetable.LessonDate(year.StartDate, req.WeekNumber, req.DayOfWeek),
		Status:        models.LessonStatusMakeup,
		MakeupForID:   &origin.ID,
	}
	if err = s.lessons.CreateWithTx(ctx, tx, &makeup); err != nil {
		// The database's active-slot unique index is the final arbiter:
		// a second booking that passed SlotTaken concurrently loses here.
		if errors.Is(err, repository.ErrSlotOccupied) {
			err = appErrors.Clone(appErrors.ErrSlotConflict, "")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create makeup lesson")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit makeup booking")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(string(models.LessonStatusAbsent), string(models.LessonStatusMakeup))
	}
	if s.notifier != nil {
		s.notifier.MakeupScheduled(makeup)
	}
	if s.progress != nil {
		s.progress.InvalidateClass(ctx, makeup.ClassID)
	}

	s.logger.Info("makeup scheduled",
		zap.String("originLessonId", origin.ID),
		zap.String("makeupLessonId", makeup.ID),
		zap.Int("week", req.WeekNumber),
		zap.Int("day", req.DayOfWeek),
		zap.Int("period", req.Period))
	return &makeup, nil
}

// HandleLeaveApproval cancels delivery of a teacher's lessons over an
// approved leave range by forcing them ABSENT. Each invalidated lesson gets
// the same side effects a single ABSENT transition does: students are
// notified, the class's cached progress is dropped and the lesson's test
// markers and reminders are deleted.
func (s *LessonService) HandleLeaveApproval(ctx context.Context, req dto.LeaveApprovalRequest) (*dto.LeaveApprovalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave approval payload")
	}
	if req.DateTo.Before(req.DateFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dateTo must not precede dateFrom")
	}

	flipped, err := s.lessons.MarkAbsentByTeacherRange(ctx, req.TeacherID, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply leave approval")
	}

	classes := make(map[string]bool, 4)
	for _, lesson := range flipped {
		classes[lesson.ClassID] = true
		if err := s.annotations.DeleteByLesson(ctx, lesson.ID); err != nil {
			s.logger.Warn("failed to drop annotations of invalidated lesson",
				zap.String("lessonId", lesson.ID), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordTransition(string(models.LessonStatusScheduled), string(models.LessonStatusAbsent))
		}
		if s.notifier != nil {
			s.notifier.LessonAbsent(lesson)
		}
	}
	if s.progress != nil {
		for classID := range classes {
			s.progress.InvalidateClass(ctx, classID)
		}
	}

	s.logger.Info("leave approval applied",
		zap.String("teacherId", req.TeacherID),
		zap.Int("affected", len(flipped)))
	return &dto.LeaveApprovalResponse{TeacherID: req.TeacherID, Affected: len(flipped)}, nil
}

// CreateTestInfo marks an upcoming test on a lesson.
func (s *LessonService) CreateTestInfo(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.CreateTestInfoRequest) (*models.TestInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test info payload")
	}
	lesson, err := s.loadOwned(ctx, actor, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Status != models.LessonStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("tests can only be announced on a SCHEDULED lesson, current status is %s", lesson.Status))
	}
	info := &models.TestInfo{
		LessonID:  lesson.ID,
		Title:     req.Title,
		Content:   req.Content,
		CreatedBy: actor.UserID,
	}
	if err := s.annotations.CreateTestInfo(ctx, info); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create test info")
	}
	return info, nil
}

// ListUpcomingTests lists test markers for a class from today onward.
func (s *LessonService) ListUpcomingTests(ctx context.Context, classID string) ([]models.TestInfo, error) {
	tests, err := s.annotations.ListTestsByClass(ctx, classID, time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tests")
	}
	return tests, nil
}

// CreateReminder attaches a reminder note to a lesson.
func (s *LessonService) CreateReminder(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.CreateReminderRequest) (*models.LessonReminder, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reminder payload")
	}
	lesson, err := s.loadOwned(ctx, actor, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Status != models.LessonStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("reminders can only be attached to a SCHEDULED lesson, current status is %s", lesson.Status))
	}
	reminder := &models.LessonReminder{
		LessonID:  lesson.ID,
		Message:   req.Message,
		RemindAt:  req.RemindAt,
		CreatedBy: actor.UserID,
	}
	if err := s.annotations.CreateReminder(ctx, reminder); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reminder")
	}
	return reminder, nil
}

// DeleteTestInfo removes a test marker from a lesson.
func (s *LessonService) DeleteTestInfo(ctx context.Context, actor models.JWTClaims, lessonID, testID string) error {
	if _, err := s.loadOwned(ctx, actor, lessonID); err != nil {
		return err
	}
	if err := s.annotations.DeleteTestInfo(ctx, lessonID, testID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "test info not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete test info")
	}
	return nil
}

// DeleteReminder removes a reminder from a lesson.
func (s *LessonService) DeleteReminder(ctx context.Context, actor models.JWTClaims, lessonID, reminderID string) error {
	if _, err := s.loadOwned(ctx, actor, lessonID); err != nil {
		return err
	}
	if err := s.annotations.DeleteReminder(ctx, lessonID, reminderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "reminder not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete reminder")
	}
	return nil
}

// checkTeacherEligible re-checks at mutation time that the lesson's teacher is
// still in the subject requirement's eligible set. The curriculum is owned by
// an upstream system, so a teacher removed after generation surfaces as stale
// source data rather than a silent mutation on an orphaned lesson.
func (s *LessonService) checkTeacherEligible(ctx context.Context, lesson *models.Lesson) error {
	if s.requirements == nil {
		return nil
	}
	requirement, err := s.requirements.FindByClassSubject(ctx, lesson.ClassID, lesson.AcademicYear, lesson.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Requirement rows of archived years may be gone; the lesson itself
			// remains mutable.
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject requirement")
	}
	if !requirement.Eligible(lesson.TeacherID) {
		return appErrors.Clone(appErrors.ErrSourceDataInconsistent,
			fmt.Sprintf("teacher %s is no longer eligible for subject %s", lesson.TeacherID, lesson.SubjectID))
	}
	return nil
}

func (s *LessonService) loadOwned(ctx context.Context, actor models.JWTClaims, lessonID string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if actor.Role == models.RoleTeacher && lesson.TeacherID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}
	return lesson, nil
}
