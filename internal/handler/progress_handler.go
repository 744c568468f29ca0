package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/middleware"
	"github.com/schoolcore/timetable-api/internal/service"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
	"github.com/schoolcore/timetable-api/pkg/response"
)

type progressReader interface {
	ComputeProgress(ctx context.Context, classID, academicYear string) (*dto.ClassProgressResponse, error)
}

// ProgressHandler exposes curriculum progress reporting.
type ProgressHandler struct {
	service progressReader
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: svc}
}

// GetClassProgress godoc
// @Summary Curriculum progress of a class
// @Description Per-subject completion and attendance rates derived from lesson lifecycle states. Cancelled lessons are excluded from all rates.
// @Tags Progress
// @Produce json
// @Param classId path string true "Class ID"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{classId}/progress [get]
func (h *ProgressHandler) GetClassProgress(c *gin.Context) {
	academicYear := c.Query("academicYear")
	if academicYear == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear is required"))
		return
	}

	result, err := h.service.ComputeProgress(c.Request.Context(), c.Param("classId"), academicYear)
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.CachedAt != "" {
		middleware.AddMeta(c, "cached_at", result.CachedAt)
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}
