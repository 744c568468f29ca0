package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/models"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
	"github.com/schoolcore/timetable-api/pkg/export"
)

type scheduleManagerMock struct {
	capturedClass string
	capturedReq   dto.InitializeScheduleRequest
	initErr       error
	statusErr     error
	dataset       export.Dataset
}

func (m *scheduleManagerMock) Initialize(ctx context.Context, classID string, req dto.InitializeScheduleRequest) (*dto.InitializeScheduleResponse, error) {
	m.capturedClass = classID
	m.capturedReq = req
	if m.initErr != nil {
		return nil, m.initErr
	}
	return &dto.InitializeScheduleResponse{ClassID: classID, AcademicYear: req.AcademicYear, LessonCount: 42}, nil
}

func (m *scheduleManagerMock) GetWeekly(ctx context.Context, classID, academicYear string) (*dto.WeeklyScheduleResponse, error) {
	return &dto.WeeklyScheduleResponse{ClassID: classID, AcademicYear: academicYear}, nil
}

func (m *scheduleManagerMock) EmptySlots(ctx context.Context, classID string, query dto.EmptySlotQuery) (*dto.EmptySlotsResponse, error) {
	return &dto.EmptySlotsResponse{ClassID: classID, WeekNumber: query.WeekNumber}, nil
}

func (m *scheduleManagerMock) ExportDataset(ctx context.Context, classID, academicYear string) (export.Dataset, error) {
	return m.dataset, nil
}

func (m *scheduleManagerMock) Status(ctx context.Context, classID, academicYear string) (*models.ScheduleStatus, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &models.ScheduleStatus{
		ClassID:      classID,
		AcademicYear: academicYear,
		TotalLessons: 70,
		Initialized:  true,
		ByStatus:     map[models.LessonStatus]int{models.LessonStatusScheduled: 70},
	}, nil
}

type archiveMock struct {
	saved map[string][]byte
}

func (a *archiveMock) Save(filename string, data []byte) (string, error) {
	if a.saved == nil {
		a.saved = map[string][]byte{}
	}
	a.saved[filename] = data
	return filename, nil
}

func newScheduleTestHandler(svc scheduleManager, archive exportArchive) *ScheduleHandler {
	return &ScheduleHandler{
		service: svc,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		archive: archive,
	}
}

func TestScheduleInitializeCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleManagerMock{}
	handler := newScheduleTestHandler(mockSvc, nil)

	body, _ := json.Marshal(dto.InitializeScheduleRequest{AcademicYear: "2026/2027", Force: true})
	req, _ := http.NewRequest(http.MethodPost, "/classes/cls-1/schedule/initialize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "classId", Value: "cls-1"}}

	handler.Initialize(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "cls-1", mockSvc.capturedClass)
	require.True(t, mockSvc.capturedReq.Force)
}

func TestScheduleInitializeConflictPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleManagerMock{initErr: appErrors.ErrScheduleAlreadyExists}
	handler := newScheduleTestHandler(mockSvc, nil)

	body, _ := json.Marshal(dto.InitializeScheduleRequest{AcademicYear: "2026/2027"})
	req, _ := http.NewRequest(http.MethodPost, "/classes/cls-1/schedule/initialize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "classId", Value: "cls-1"}}

	handler.Initialize(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestScheduleGetWeeklyRequiresAcademicYear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleTestHandler(&scheduleManagerMock{}, nil)

	req, _ := http.NewRequest(http.MethodGet, "/classes/cls-1/schedule", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "classId", Value: "cls-1"}}

	handler.GetWeekly(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleStatusReturnsCounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleTestHandler(&scheduleManagerMock{}, nil)

	req, _ := http.NewRequest(http.MethodGet, "/classes/cls-1/schedule/status?academicYear=2026%2F2027", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "classId", Value: "cls-1"}}

	handler.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total_lessons":70`)
	require.Contains(t, w.Body.String(), `"initialized":true`)
}

func TestScheduleStatusPropagatesValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleTestHandler(&scheduleManagerMock{statusErr: appErrors.ErrValidation}, nil)

	req, _ := http.NewRequest(http.MethodGet, "/classes/cls-1/schedule/status", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "classId", Value: "cls-1"}}

	handler.Status(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleExportCSVArchivesCopy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleManagerMock{dataset: export.Dataset{
		Headers: []string{"Day", "Period", "Subject"},
		Rows:    []map[string]string{{"Day": "1", "Period": "1", "Subject": "Mathematics"}},
	}}
	archive := &archiveMock{}
	handler := newScheduleTestHandler(mockSvc, archive)

	req, _ := http.NewRequest(http.MethodGet, "/classes/cls-1/schedule/export?academicYear=2026%2F2027&format=csv", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "classId", Value: "cls-1"}}

	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Mathematics")
	require.Contains(t, archive.saved, "schedule-cls-1.csv")
}

func TestScheduleExportRejectsUnknownFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleTestHandler(&scheduleManagerMock{}, nil)

	req, _ := http.NewRequest(http.MethodGet, "/classes/cls-1/schedule/export?academicYear=2026%2F2027&format=xlsx", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "classId", Value: "cls-1"}}

	handler.Export(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
