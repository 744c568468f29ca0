package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/models"
	"github.com/schoolcore/timetable-api/internal/service"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
	"github.com/schoolcore/timetable-api/pkg/response"
)

type lessonManager interface {
	List(ctx context.Context, actor models.JWTClaims, filter models.LessonFilter) ([]models.Lesson, int, error)
	UpdateStatus(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.UpdateLessonStatusRequest) (*models.Lesson, error)
	BulkUpdateStatus(ctx context.Context, actor models.JWTClaims, req dto.BulkUpdateStatusRequest) (*dto.BulkUpdateStatusResponse, error)
	ScheduleMakeup(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.ScheduleMakeupRequest) (*models.Lesson, error)
	HandleLeaveApproval(ctx context.Context, req dto.LeaveApprovalRequest) (*dto.LeaveApprovalResponse, error)
	CreateTestInfo(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.CreateTestInfoRequest) (*models.TestInfo, error)
	ListUpcomingTests(ctx context.Context, classID string) ([]models.TestInfo, error)
	CreateReminder(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.CreateReminderRequest) (*models.LessonReminder, error)
	DeleteTestInfo(ctx context.Context, actor models.JWTClaims, lessonID, testID string) error
	DeleteReminder(ctx context.Context, actor models.JWTClaims, lessonID, reminderID string) error
}

// LessonHandler exposes the lesson lifecycle endpoints.
type LessonHandler struct {
	service lessonManager
}

// NewLessonHandler constructs the handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// List godoc
// @Summary List lessons
// @Description Filterable lesson listing. TEACHER callers only see their own lessons.
// @Tags Lessons
// @Produce json
// @Param class_id query string false "Class ID"
// @Param teacher_id query string false "Teacher ID"
// @Param subject_id query string false "Subject ID"
// @Param academic_year query string false "Academic year"
// @Param week_number query int false "Week number"
// @Param status query string false "Lesson status"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := lessonFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	lessons, total, err := h.service.List(c.Request.Context(), *claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, lessons, pagination)
}

// UpdateStatus godoc
// @Summary Transition a lesson's lifecycle status
// @Description Applies a guarded status transition. The request must carry the lesson version last read by the client; a stale version yields 409.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body dto.UpdateLessonStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/status [patch]
func (h *LessonHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateLessonStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	lesson, err := h.service.UpdateStatus(c.Request.Context(), *claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lesson, nil)
}

// BulkUpdateStatus godoc
// @Summary Transition multiple lessons in one call
// @Description Items are processed independently; per-item failures are reported without aborting the batch.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body dto.BulkUpdateStatusRequest true "Bulk status payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/status/bulk [post]
func (h *LessonHandler) BulkUpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.BulkUpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk status payload"))
		return
	}

	result, err := h.service.BulkUpdateStatus(c.Request.Context(), *claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// ScheduleMakeup godoc
// @Summary Schedule a makeup lesson for an absent one
// @Description Books a new MAKEUP lesson in an empty slot, cross-referencing the ABSENT origin. Occupied slots yield 409 SLOT_CONFLICT.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Absent lesson ID"
// @Param payload body dto.ScheduleMakeupRequest true "Makeup slot payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/makeup [post]
func (h *LessonHandler) ScheduleMakeup(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ScheduleMakeupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid makeup payload"))
		return
	}

	lesson, err := h.service.ScheduleMakeup(c.Request.Context(), *claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, lesson)
}

// HandleLeaveApproval godoc
// @Summary Apply an approved teacher leave to the timetable
// @Description Marks the teacher's SCHEDULED lessons in the leave range ABSENT so makeups can be planned.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body dto.LeaveApprovalRequest true "Leave approval payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-approvals [post]
func (h *LessonHandler) HandleLeaveApproval(c *gin.Context) {
	var req dto.LeaveApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leave approval payload"))
		return
	}

	result, err := h.service.HandleLeaveApproval(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// CreateTestInfo godoc
// @Summary Attach test information to a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body dto.CreateTestInfoRequest true "Test info payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/tests [post]
func (h *LessonHandler) CreateTestInfo(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateTestInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid test info payload"))
		return
	}

	info, err := h.service.CreateTestInfo(c.Request.Context(), *claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, info)
}

// ListUpcomingTests godoc
// @Summary List upcoming tests of a class
// @Tags Lessons
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{classId}/tests [get]
func (h *LessonHandler) ListUpcomingTests(c *gin.Context) {
	tests, err := h.service.ListUpcomingTests(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tests, nil)
}

// CreateReminder godoc
// @Summary Create a reminder for a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body dto.CreateReminderRequest true "Reminder payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/reminders [post]
func (h *LessonHandler) CreateReminder(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reminder payload"))
		return
	}

	reminder, err := h.service.CreateReminder(c.Request.Context(), *claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, reminder)
}

// DeleteTestInfo godoc
// @Summary Remove test information from a lesson
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Param testId path string true "Test info ID"
// @Success 204
// @Security BearerAuth
// @Router /lessons/{id}/tests/{testId} [delete]
func (h *LessonHandler) DeleteTestInfo(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteTestInfo(c.Request.Context(), *claims, c.Param("id"), c.Param("testId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// DeleteReminder godoc
// @Summary Remove a reminder from a lesson
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Param reminderId path string true "Reminder ID"
// @Success 204
// @Security BearerAuth
// @Router /lessons/{id}/reminders/{reminderId} [delete]
func (h *LessonHandler) DeleteReminder(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteReminder(c.Request.Context(), *claims, c.Param("id"), c.Param("reminderId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func lessonFilterFromQuery(c *gin.Context) (models.LessonFilter, error) {
	filter := models.LessonFilter{
		ClassID:      c.Query("class_id"),
		TeacherID:    c.Query("teacher_id"),
		SubjectID:    c.Query("subject_id"),
		AcademicYear: c.Query("academic_year"),
	}

	if raw := c.Query("week_number"); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil || week < 1 {
			return filter, appErrors.Clone(appErrors.ErrValidation, "week_number must be a positive integer")
		}
		filter.WeekNumber = &week
	}

	if raw := c.Query("status"); raw != "" {
		status := models.LessonStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown lesson status")
		}
		filter.Status = &status
	}

	for _, q := range []struct {
		key  string
		dest **time.Time
	}{
		{"date_from", &filter.DateFrom},
		{"date_to", &filter.DateTo},
	} {
		if raw := c.Query(q.key); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return filter, appErrors.Clone(appErrors.ErrValidation, q.key+" must be formatted YYYY-MM-DD")
			}
			*q.dest = &parsed
		}
	}

	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	return filter, nil
}
