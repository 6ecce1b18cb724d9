package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arka-edu/timetable-api/internal/models"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

type mockTimeSlotRepo struct {
	slots   []models.TimeSlot
	refs    map[string]int
	created []*models.TimeSlot
	deleted []string
}

func (m *mockTimeSlotRepo) ListByBranch(ctx context.Context, branchID string) ([]models.TimeSlot, error) {
	var out []models.TimeSlot
	for _, s := range m.slots {
		if s.BranchID == branchID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockTimeSlotRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.TimeSlot, error) {
	for _, s := range m.slots {
		if s.ID == id && s.BranchID == branchID {
			cp := s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTimeSlotRepo) Create(ctx context.Context, slot *models.TimeSlot) error {
	slot.ID = "slot-new"
	cp := *slot
	m.created = append(m.created, &cp)
	m.slots = append(m.slots, cp)
	return nil
}

func (m *mockTimeSlotRepo) CountReferencingPeriods(ctx context.Context, branchID, slotID string) (int, error) {
	return m.refs[slotID], nil
}

func (m *mockTimeSlotRepo) Delete(ctx context.Context, branchID, slotID string) error {
	m.deleted = append(m.deleted, slotID)
	return nil
}

func newSlotCatalog() (*SlotCatalogService, *mockTimeSlotRepo) {
	repo := &mockTimeSlotRepo{
		slots: []models.TimeSlot{
			{ID: "slot-1", BranchID: "b1", DayOfWeek: 1, SlotOrder: 1, StartTime: "08:00", EndTime: "08:45", SlotType: models.SlotTypeRegular},
		},
		refs: map[string]int{},
	}
	return NewSlotCatalogService(repo, validator.New(), zap.NewNop()), repo
}

func TestCreateSlot(t *testing.T) {
	svc, repo := newSlotCatalog()

	slot, err := svc.CreateSlot(context.Background(), "b1", CreateTimeSlotRequest{
		DayOfWeek: 1,
		StartTime: "08:45",
		EndTime:   "09:30",
		SlotType:  "REGULAR",
		SlotOrder: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "slot-new", slot.ID)
	assert.Equal(t, models.SlotTypeRegular, slot.SlotType)
	assert.Len(t, repo.created, 1)
}

func TestCreateSlotRejectsOverlap(t *testing.T) {
	svc, _ := newSlotCatalog()

	_, err := svc.CreateSlot(context.Background(), "b1", CreateTimeSlotRequest{
		DayOfWeek: 1,
		StartTime: "08:30",
		EndTime:   "09:15",
		SlotType:  "REGULAR",
		SlotOrder: 2,
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestCreateSlotRejectsDuplicateOrder(t *testing.T) {
	svc, _ := newSlotCatalog()

	_, err := svc.CreateSlot(context.Background(), "b1", CreateTimeSlotRequest{
		DayOfWeek: 1,
		StartTime: "10:00",
		EndTime:   "10:45",
		SlotType:  "REGULAR",
		SlotOrder: 1,
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestCreateSlotBreakMayReuseOrder(t *testing.T) {
	// The (day, order) uniqueness rule applies to regular slots only.
	svc, repo := newSlotCatalog()

	_, err := svc.CreateSlot(context.Background(), "b1", CreateTimeSlotRequest{
		DayOfWeek: 1,
		StartTime: "10:00",
		EndTime:   "10:15",
		SlotType:  "BREAK",
		SlotOrder: 1,
	})
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}

func TestCreateSlotRejectsBadTimes(t *testing.T) {
	svc, _ := newSlotCatalog()

	cases := []CreateTimeSlotRequest{
		{DayOfWeek: 1, StartTime: "8:00", EndTime: "08:45", SlotType: "REGULAR", SlotOrder: 3},
		{DayOfWeek: 1, StartTime: "25:00", EndTime: "26:00", SlotType: "REGULAR", SlotOrder: 3},
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "09:00", SlotType: "REGULAR", SlotOrder: 3},
		{DayOfWeek: 1, StartTime: "09:30", EndTime: "09:00", SlotType: "REGULAR", SlotOrder: 3},
	}
	for _, req := range cases {
		_, err := svc.CreateSlot(context.Background(), "b1", req)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation), "%s-%s", req.StartTime, req.EndTime)
	}
}

func TestCreateSlotRejectsUnknownType(t *testing.T) {
	svc, _ := newSlotCatalog()

	_, err := svc.CreateSlot(context.Background(), "b1", CreateTimeSlotRequest{
		DayOfWeek: 2,
		StartTime: "09:00",
		EndTime:   "09:45",
		SlotType:  "LUNCH",
		SlotOrder: 1,
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestGetSlotCrossBranchIsNotFound(t *testing.T) {
	svc, _ := newSlotCatalog()

	_, err := svc.GetSlot(context.Background(), "b2", "slot-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestDeleteSlotRejectsReferenced(t *testing.T) {
	svc, repo := newSlotCatalog()
	repo.refs["slot-1"] = 4

	err := svc.DeleteSlot(context.Background(), "b1", "slot-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	assert.Empty(t, repo.deleted)
}

func TestDeleteSlotUnreferenced(t *testing.T) {
	svc, repo := newSlotCatalog()

	require.NoError(t, svc.DeleteSlot(context.Background(), "b1", "slot-1"))
	assert.Equal(t, []string{"slot-1"}, repo.deleted)
}
