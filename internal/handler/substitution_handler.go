package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arka-edu/timetable-api/internal/models"
	"github.com/arka-edu/timetable-api/internal/service"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
	"github.com/arka-edu/timetable-api/pkg/response"
)

type substitutionService interface {
	Request(ctx context.Context, branchID string, req service.RequestSubstitutionRequest) (*models.Substitution, error)
	Get(ctx context.Context, branchID, id string) (*models.Substitution, error)
	List(ctx context.Context, branchID string, filter models.SubstitutionFilter) ([]models.Substitution, *models.Pagination, error)
	Approve(ctx context.Context, branchID, id string) (*models.Substitution, error)
	Complete(ctx context.Context, branchID, id string) (*models.Substitution, error)
	Cancel(ctx context.Context, branchID, id string) (*models.Substitution, error)
	FindEligibleSubstitutes(ctx context.Context, branchID, periodID, date string) ([]models.EligibleSubstitute, error)
}

// SubstitutionHandler exposes the substitution lifecycle.
type SubstitutionHandler struct {
	service substitutionService
}

// NewSubstitutionHandler builds a new handler.
func NewSubstitutionHandler(svc substitutionService) *SubstitutionHandler {
	return &SubstitutionHandler{service: svc}
}

// Request godoc
// @Summary Request a substitution
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body service.RequestSubstitutionRequest true "Substitution payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutions [post]
func (h *SubstitutionHandler) Request(c *gin.Context) {
	var req service.RequestSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sub, err := h.service.Request(c.Request.Context(), branchFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// List godoc
// @Summary List substitutions
// @Tags Substitutions
// @Produce json
// @Param periodId query string false "Filter by period"
// @Param teacherId query string false "Filter by substitute teacher"
// @Param date query string false "Filter by date (YYYY-MM-DD)"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /substitutions [get]
func (h *SubstitutionHandler) List(c *gin.Context) {
	var filter models.SubstitutionFilter
	filter.PeriodID = c.Query("periodId")
	filter.TeacherID = c.Query("teacherId")
	filter.Date = c.Query("date")
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.SubstitutionStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown substitution status"))
			return
		}
		filter.Status = &status
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	subs, pagination, err := h.service.List(c.Request.Context(), branchFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, pagination)
}

// Get godoc
// @Summary Get a substitution
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{id} [get]
func (h *SubstitutionHandler) Get(c *gin.Context) {
	sub, err := h.service.Get(c.Request.Context(), branchFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Approve godoc
// @Summary Approve a requested substitution
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutions/{id}/approve [post]
func (h *SubstitutionHandler) Approve(c *gin.Context) {
	sub, err := h.service.Approve(c.Request.Context(), branchFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Complete godoc
// @Summary Complete an approved substitution after its date
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutions/{id}/complete [post]
func (h *SubstitutionHandler) Complete(c *gin.Context) {
	sub, err := h.service.Complete(c.Request.Context(), branchFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Cancel godoc
// @Summary Cancel a requested or approved substitution
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutions/{id}/cancel [post]
func (h *SubstitutionHandler) Cancel(c *gin.Context) {
	sub, err := h.service.Cancel(c.Request.Context(), branchFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Eligible godoc
// @Summary List teachers eligible to cover a period on a date
// @Tags Substitutions
// @Produce json
// @Param periodId path string true "Period ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions/eligible/{periodId} [get]
func (h *SubstitutionHandler) Eligible(c *gin.Context) {
	teachers, err := h.service.FindEligibleSubstitutes(c.Request.Context(), branchFromContext(c), c.Param("periodId"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}
