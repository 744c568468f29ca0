package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/middleware"
	"github.com/schoolcore/timetable-api/internal/models"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
)

type lessonManagerMock struct {
	capturedID     string
	capturedStatus dto.UpdateLessonStatusRequest
	capturedFilter models.LessonFilter
	updateErr      error
	lessons        []models.Lesson
}

func (m *lessonManagerMock) List(ctx context.Context, actor models.JWTClaims, filter models.LessonFilter) ([]models.Lesson, int, error) {
	m.capturedFilter = filter
	return m.lessons, len(m.lessons), nil
}

func (m *lessonManagerMock) UpdateStatus(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.UpdateLessonStatusRequest) (*models.Lesson, error) {
	m.capturedID = lessonID
	m.capturedStatus = req
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &models.Lesson{ID: lessonID, Status: req.Status, Version: req.Version + 1}, nil
}

func (m *lessonManagerMock) BulkUpdateStatus(ctx context.Context, actor models.JWTClaims, req dto.BulkUpdateStatusRequest) (*dto.BulkUpdateStatusResponse, error) {
	return &dto.BulkUpdateStatusResponse{Updated: len(req.Items)}, nil
}

func (m *lessonManagerMock) ScheduleMakeup(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.ScheduleMakeupRequest) (*models.Lesson, error) {
	m.capturedID = lessonID
	return &models.Lesson{ID: "makeup-1", Status: models.LessonStatusMakeup, MakeupForID: &lessonID}, nil
}

func (m *lessonManagerMock) HandleLeaveApproval(ctx context.Context, req dto.LeaveApprovalRequest) (*dto.LeaveApprovalResponse, error) {
	return &dto.LeaveApprovalResponse{TeacherID: req.TeacherID, Affected: 3}, nil
}

func (m *lessonManagerMock) CreateTestInfo(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.CreateTestInfoRequest) (*models.TestInfo, error) {
	return &models.TestInfo{LessonID: lessonID, Title: req.Title}, nil
}

func (m *lessonManagerMock) ListUpcomingTests(ctx context.Context, classID string) ([]models.TestInfo, error) {
	return nil, nil
}

func (m *lessonManagerMock) CreateReminder(ctx context.Context, actor models.JWTClaims, lessonID string, req dto.CreateReminderRequest) (*models.LessonReminder, error) {
	return &models.LessonReminder{LessonID: lessonID, Message: req.Message}, nil
}

func (m *lessonManagerMock) DeleteTestInfo(ctx context.Context, actor models.JWTClaims, lessonID, testID string) error {
	m.capturedID = lessonID
	return nil
}

func (m *lessonManagerMock) DeleteReminder(ctx context.Context, actor models.JWTClaims, lessonID, reminderID string) error {
	m.capturedID = lessonID
	return nil
}

func teacherContext(w *httptest.ResponseRecorder, req *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher})
	return c
}

func TestLessonUpdateStatusSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &lessonManagerMock{}
	handler := &LessonHandler{service: mockSvc}

	body, _ := json.Marshal(dto.UpdateLessonStatusRequest{Status: "COMPLETED", Version: 3})
	req, _ := http.NewRequest(http.MethodPatch, "/lessons/les-9/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c := teacherContext(w, req)
	c.Params = gin.Params{{Key: "id", Value: "les-9"}}

	handler.UpdateStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "les-9", mockSvc.capturedID)
	require.Equal(t, 3, mockSvc.capturedStatus.Version)
}

func TestLessonUpdateStatusConflictPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &lessonManagerMock{updateErr: appErrors.Clone(appErrors.ErrConflict, "lesson was modified concurrently")}
	handler := &LessonHandler{service: mockSvc}

	body, _ := json.Marshal(dto.UpdateLessonStatusRequest{Status: "COMPLETED", Version: 1})
	req, _ := http.NewRequest(http.MethodPatch, "/lessons/les-9/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c := teacherContext(w, req)
	c.Params = gin.Params{{Key: "id", Value: "les-9"}}

	handler.UpdateStatus(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestLessonUpdateStatusRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &LessonHandler{service: &lessonManagerMock{}}

	req, _ := http.NewRequest(http.MethodPatch, "/lessons/les-9/status", bytes.NewReader([]byte(`{"status":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c := teacherContext(w, req)

	handler.UpdateStatus(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLessonUpdateStatusRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &LessonHandler{service: &lessonManagerMock{}}

	body, _ := json.Marshal(dto.UpdateLessonStatusRequest{Status: "COMPLETED", Version: 1})
	req, _ := http.NewRequest(http.MethodPatch, "/lessons/les-9/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.UpdateStatus(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLessonListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &lessonManagerMock{}
	handler := &LessonHandler{service: mockSvc}

	req, _ := http.NewRequest(http.MethodGet, "/lessons?class_id=cls-1&week_number=12&status=SCHEDULED&date_from=2026-09-01", nil)
	w := httptest.NewRecorder()
	c := teacherContext(w, req)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "cls-1", mockSvc.capturedFilter.ClassID)
	require.NotNil(t, mockSvc.capturedFilter.WeekNumber)
	require.Equal(t, 12, *mockSvc.capturedFilter.WeekNumber)
	require.NotNil(t, mockSvc.capturedFilter.Status)
	require.Equal(t, models.LessonStatusScheduled, *mockSvc.capturedFilter.Status)
	require.NotNil(t, mockSvc.capturedFilter.DateFrom)
}

func TestLessonListRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &LessonHandler{service: &lessonManagerMock{}}

	req, _ := http.NewRequest(http.MethodGet, "/lessons?status=PENDING", nil)
	w := httptest.NewRecorder()
	c := teacherContext(w, req)

	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLessonScheduleMakeupCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &lessonManagerMock{}
	handler := &LessonHandler{service: mockSvc}

	body, _ := json.Marshal(dto.ScheduleMakeupRequest{WeekNumber: 14, DayOfWeek: 5, Period: 3})
	req, _ := http.NewRequest(http.MethodPost, "/lessons/les-2/makeup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c := teacherContext(w, req)
	c.Params = gin.Params{{Key: "id", Value: "les-2"}}

	handler.ScheduleMakeup(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "les-2", mockSvc.capturedID)
}

func TestLeaveApprovalApplied(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &LessonHandler{service: &lessonManagerMock{}}

	body, _ := json.Marshal(dto.LeaveApprovalRequest{
		TeacherID: "t-4",
		DateFrom:  time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC),
		DateTo:    time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC),
	})
	req, _ := http.NewRequest(http.MethodPost, "/leave-approvals", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.HandleLeaveApproval(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.LeaveApprovalResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "t-4", envelope.Data.TeacherID)
	require.Equal(t, 3, envelope.Data.Affected)
}
