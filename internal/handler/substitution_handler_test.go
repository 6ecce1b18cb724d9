package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arka-edu/timetable-api/internal/models"
	"github.com/arka-edu/timetable-api/internal/service"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

type substitutionServiceMock struct {
	requestResp  *models.Substitution
	requestErr   error
	listResp     []models.Substitution
	listErr      error
	getResp      *models.Substitution
	getErr       error
	approveResp  *models.Substitution
	approveErr   error
	eligibleResp []models.EligibleSubstitute
	eligibleErr  error

	lastBranch string
	lastFilter models.SubstitutionFilter
	lastID     string
	lastDate   string
}

func (m *substitutionServiceMock) Request(ctx context.Context, branchID string, req service.RequestSubstitutionRequest) (*models.Substitution, error) {
	m.lastBranch = branchID
	return m.requestResp, m.requestErr
}

func (m *substitutionServiceMock) Get(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	m.lastBranch = branchID
	m.lastID = id
	return m.getResp, m.getErr
}

func (m *substitutionServiceMock) List(ctx context.Context, branchID string, filter models.SubstitutionFilter) ([]models.Substitution, *models.Pagination, error) {
	m.lastBranch = branchID
	m.lastFilter = filter
	return m.listResp, nil, m.listErr
}

func (m *substitutionServiceMock) Approve(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	m.lastID = id
	return m.approveResp, m.approveErr
}

func (m *substitutionServiceMock) Complete(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	m.lastID = id
	return m.approveResp, m.approveErr
}

func (m *substitutionServiceMock) Cancel(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	m.lastID = id
	return m.approveResp, m.approveErr
}

func (m *substitutionServiceMock) FindEligibleSubstitutes(ctx context.Context, branchID, periodID, date string) ([]models.EligibleSubstitute, error) {
	m.lastID = periodID
	m.lastDate = date
	return m.eligibleResp, m.eligibleErr
}

func TestSubstitutionHandlerRequest(t *testing.T) {
	mockSvc := &substitutionServiceMock{
		requestResp: &models.Substitution{ID: "sub-1", Status: models.SubstitutionRequested},
	}
	handler := NewSubstitutionHandler(mockSvc)

	payload, _ := json.Marshal(service.RequestSubstitutionRequest{
		PeriodID:            "p-1",
		SubstituteTeacherID: "t2",
		Date:                "2026-09-01",
	})
	c, w := testContext(t, http.MethodPost, "/substitutions", payload)

	handler.Request(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "b1", mockSvc.lastBranch)
}

func TestSubstitutionHandlerRequestConflict(t *testing.T) {
	mockSvc := &substitutionServiceMock{requestErr: appErrors.ErrSubstitutionExists}
	handler := NewSubstitutionHandler(mockSvc)

	payload, _ := json.Marshal(service.RequestSubstitutionRequest{
		PeriodID:            "p-1",
		SubstituteTeacherID: "t2",
		Date:                "2026-09-01",
	})
	c, w := testContext(t, http.MethodPost, "/substitutions", payload)

	handler.Request(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "SUBSTITUTION_EXISTS")
}

func TestSubstitutionHandlerListStatusFilter(t *testing.T) {
	mockSvc := &substitutionServiceMock{}
	handler := NewSubstitutionHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/substitutions?status=approved&page=2", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Status)
	assert.Equal(t, models.SubstitutionApproved, *mockSvc.lastFilter.Status)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
}

func TestSubstitutionHandlerListUnknownStatus(t *testing.T) {
	handler := NewSubstitutionHandler(&substitutionServiceMock{})

	c, w := testContext(t, http.MethodGet, "/substitutions?status=PENDING", nil)

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubstitutionHandlerCompleteTooEarly(t *testing.T) {
	mockSvc := &substitutionServiceMock{approveErr: appErrors.ErrTooEarly}
	handler := NewSubstitutionHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/substitutions/sub-1/complete", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	handler.Complete(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "TOO_EARLY")
	assert.Equal(t, "sub-1", mockSvc.lastID)
}

func TestSubstitutionHandlerEligible(t *testing.T) {
	mockSvc := &substitutionServiceMock{
		eligibleResp: []models.EligibleSubstitute{{TeacherID: "t3", FullName: "Cikgu Farah"}},
	}
	handler := NewSubstitutionHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/substitutions/eligible/p-1?date=2026-09-01", nil)
	c.Params = gin.Params{{Key: "periodId", Value: "p-1"}}

	handler.Eligible(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-1", mockSvc.lastID)
	assert.Equal(t, "2026-09-01", mockSvc.lastDate)
	assert.Contains(t, w.Body.String(), "Cikgu Farah")
}
