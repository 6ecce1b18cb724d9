package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arka-edu/timetable-api/internal/models"
	"github.com/arka-edu/timetable-api/internal/service"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
	"github.com/arka-edu/timetable-api/pkg/response"
)

type assignerService interface {
	AssignPeriod(ctx context.Context, branchID string, req service.AssignPeriodRequest) (*models.TimetablePeriod, error)
	DeactivatePeriod(ctx context.Context, branchID, periodID string) error
	GetGrid(ctx context.Context, branchID, sectionID string) (*models.SectionGrid, error)
}

// TimetableHandler exposes period assignment and the section grid.
type TimetableHandler struct {
	service assignerService
}

// NewTimetableHandler builds a new handler.
func NewTimetableHandler(svc assignerService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Assign godoc
// @Summary Assign or move a period
// @Description Places (section, subject, teacher, slot, room) on the grid.
// @Description An existing active period for the same section and slot is
// @Description updated in place; conflicts return 409 with the first violated
// @Description rule.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.AssignPeriodRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable/periods [post]
func (h *TimetableHandler) Assign(c *gin.Context) {
	var req service.AssignPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.service.AssignPeriod(c.Request.Context(), branchFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Deactivate godoc
// @Summary Remove a period from the grid
// @Tags Timetable
// @Produce json
// @Param id path string true "Period ID"
// @Success 204
// @Router /timetable/periods/{id} [delete]
func (h *TimetableHandler) Deactivate(c *gin.Context) {
	if err := h.service.DeactivatePeriod(c.Request.Context(), branchFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Grid godoc
// @Summary Section weekly grid
// @Description Slots ordered by day and slot order with the active period, if
// @Description any, attached to each regular cell.
// @Tags Timetable
// @Produce json
// @Param sectionId path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/sections/{sectionId}/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	grid, err := h.service.GetGrid(c.Request.Context(), branchFromContext(c), c.Param("sectionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}
