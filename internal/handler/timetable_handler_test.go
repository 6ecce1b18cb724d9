package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arka-edu/timetable-api/internal/middleware"
	"github.com/arka-edu/timetable-api/internal/models"
	"github.com/arka-edu/timetable-api/internal/service"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

type assignerServiceMock struct {
	assignResp *models.TimetablePeriod
	assignErr  error
	gridResp   *models.SectionGrid
	gridErr    error

	lastBranch string
	lastReq    service.AssignPeriodRequest
	deactErr   error
}

func (m *assignerServiceMock) AssignPeriod(ctx context.Context, branchID string, req service.AssignPeriodRequest) (*models.TimetablePeriod, error) {
	m.lastBranch = branchID
	m.lastReq = req
	return m.assignResp, m.assignErr
}

func (m *assignerServiceMock) DeactivatePeriod(ctx context.Context, branchID, periodID string) error {
	m.lastBranch = branchID
	return m.deactErr
}

func (m *assignerServiceMock) GetGrid(ctx context.Context, branchID, sectionID string) (*models.SectionGrid, error) {
	m.lastBranch = branchID
	return m.gridResp, m.gridErr
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", BranchID: "b1", Role: models.RoleScheduler})
	return c, w
}

func TestTimetableHandlerAssign(t *testing.T) {
	mockSvc := &assignerServiceMock{
		assignResp: &models.TimetablePeriod{ID: "p-1", SectionID: "sec-1"},
	}
	handler := NewTimetableHandler(mockSvc)

	payload, _ := json.Marshal(service.AssignPeriodRequest{
		SectionID:  "sec-1",
		SubjectID:  "subj-1",
		TeacherID:  "t1",
		TimeSlotID: "slot-1",
	})
	c, w := testContext(t, http.MethodPost, "/timetable/periods", payload)

	handler.Assign(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b1", mockSvc.lastBranch)
	assert.Equal(t, "sec-1", mockSvc.lastReq.SectionID)
}

func TestTimetableHandlerAssignInvalidBody(t *testing.T) {
	handler := NewTimetableHandler(&assignerServiceMock{})

	c, w := testContext(t, http.MethodPost, "/timetable/periods", []byte(`{"section_id":`))

	handler.Assign(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerAssignConflict(t *testing.T) {
	domainErr := &models.PeriodConflictError{
		Rule:     appErrors.ErrTeacherDoubleBooked.Code,
		Message:  appErrors.ErrTeacherDoubleBooked.Message,
		Conflict: &models.PeriodConflict{PeriodID: "p-2", Rule: appErrors.ErrTeacherDoubleBooked.Code},
	}
	mockSvc := &assignerServiceMock{
		assignErr: appErrors.Wrap(domainErr, appErrors.ErrTeacherDoubleBooked.Code, appErrors.ErrTeacherDoubleBooked.Status, appErrors.ErrTeacherDoubleBooked.Message),
	}
	handler := NewTimetableHandler(mockSvc)

	payload, _ := json.Marshal(service.AssignPeriodRequest{
		SectionID:  "sec-1",
		SubjectID:  "subj-1",
		TeacherID:  "t1",
		TimeSlotID: "slot-1",
	})
	c, w := testContext(t, http.MethodPost, "/timetable/periods", payload)

	handler.Assign(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "TEACHER_DOUBLE_BOOKED")
}

func TestTimetableHandlerDeactivate(t *testing.T) {
	mockSvc := &assignerServiceMock{}
	handler := NewTimetableHandler(mockSvc)

	c, w := testContext(t, http.MethodDelete, "/timetable/periods/p-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}

	handler.Deactivate(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "b1", mockSvc.lastBranch)
}

func TestTimetableHandlerGridNotFound(t *testing.T) {
	mockSvc := &assignerServiceMock{
		gridErr: appErrors.Clone(appErrors.ErrNotFound, "section not found"),
	}
	handler := NewTimetableHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/timetable/sections/sec-9/grid", nil)
	c.Params = gin.Params{{Key: "sectionId", Value: "sec-9"}}

	handler.Grid(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
