package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/models"
	"github.com/schoolcore/timetable-api/internal/service"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
	"github.com/schoolcore/timetable-api/pkg/export"
	"github.com/schoolcore/timetable-api/pkg/response"
)

type scheduleManager interface {
	Initialize(ctx context.Context, classID string, req dto.InitializeScheduleRequest) (*dto.InitializeScheduleResponse, error)
	GetWeekly(ctx context.Context, classID, academicYear string) (*dto.WeeklyScheduleResponse, error)
	EmptySlots(ctx context.Context, classID string, query dto.EmptySlotQuery) (*dto.EmptySlotsResponse, error)
	Status(ctx context.Context, classID, academicYear string) (*models.ScheduleStatus, error)
	ExportDataset(ctx context.Context, classID, academicYear string) (export.Dataset, error)
}

type scheduleExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

type schedulePDFExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportArchive interface {
	Save(filename string, data []byte) (string, error)
}

// ScheduleHandler exposes timetable generation and weekly view endpoints.
type ScheduleHandler struct {
	service scheduleManager
	csv     scheduleExporter
	pdf     schedulePDFExporter
	archive exportArchive
}

// NewScheduleHandler constructs the handler. The archive keeps a copy of every
// rendered export and may be nil.
func NewScheduleHandler(svc *service.ScheduleService, archive exportArchive) *ScheduleHandler {
	return &ScheduleHandler{
		service: svc,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		archive: archive,
	}
}

// Initialize godoc
// @Summary Generate and persist a class timetable
// @Description Runs the constraint solver for the class and materializes dated lessons for the academic year. Use force to regenerate; COMPLETED lessons are preserved.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.InitializeScheduleRequest true "Initialize payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{classId}/schedule/initialize [post]
func (h *ScheduleHandler) Initialize(c *gin.Context) {
	var req dto.InitializeScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid initialize payload"))
		return
	}

	result, err := h.service.Initialize(c.Request.Context(), c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetWeekly godoc
// @Summary Get the weekly timetable of a class
// @Tags Timetable
// @Produce json
// @Param classId path string true "Class ID"
// @Param academicYear query string true "Academic year, e.g. 2026/2027"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{classId}/schedule [get]
func (h *ScheduleHandler) GetWeekly(c *gin.Context) {
	academicYear := c.Query("academicYear")
	if academicYear == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear is required"))
		return
	}

	result, err := h.service.GetWeekly(c.Request.Context(), c.Param("classId"), academicYear)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// EmptySlots godoc
// @Summary List free slots of a class week
// @Description Returns grid cells holding no active lesson, usable as makeup targets.
// @Tags Timetable
// @Produce json
// @Param classId path string true "Class ID"
// @Param academicYear query string true "Academic year"
// @Param weekNumber query int true "Week number"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{classId}/schedule/empty-slots [get]
func (h *ScheduleHandler) EmptySlots(c *gin.Context) {
	var query dto.EmptySlotQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid empty slot query"))
		return
	}

	result, err := h.service.EmptySlots(c.Request.Context(), c.Param("classId"), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Status godoc
// @Summary Get the generation state of a class schedule
// @Description Reports whether the timetable is initialized for the year and the lifecycle distribution of its lessons.
// @Tags Timetable
// @Produce json
// @Param classId path string true "Class ID"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{classId}/schedule/status [get]
func (h *ScheduleHandler) Status(c *gin.Context) {
	result, err := h.service.Status(c.Request.Context(), c.Param("classId"), c.Query("academicYear"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export the weekly timetable as CSV or PDF
// @Tags Timetable
// @Produce application/octet-stream
// @Param classId path string true "Class ID"
// @Param academicYear query string true "Academic year"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /classes/{classId}/schedule/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	classID := c.Param("classId")
	academicYear := c.Query("academicYear")
	if academicYear == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear is required"))
		return
	}

	dataset, err := h.service.ExportDataset(c.Request.Context(), classID, academicYear)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		content, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export"))
			return
		}
		h.archiveExport(fmt.Sprintf("schedule-%s.csv", classID), content)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=schedule-%s.csv", classID))
		c.Data(http.StatusOK, "text/csv", content)
	case "pdf":
		content, err := h.pdf.Render(dataset, fmt.Sprintf("Weekly Schedule %s", academicYear))
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export"))
			return
		}
		h.archiveExport(fmt.Sprintf("schedule-%s.pdf", classID), content)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=schedule-%s.pdf", classID))
		c.Data(http.StatusOK, "application/pdf", content)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

func (h *ScheduleHandler) archiveExport(filename string, content []byte) {
	if h.archive == nil {
		return
	}
	_, _ = h.archive.Save(filename, content)
}
