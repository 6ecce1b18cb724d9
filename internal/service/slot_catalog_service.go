package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/arka-edu/timetable-api/internal/models"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

type timeSlotRepository interface {
	ListByBranch(ctx context.Context, branchID string) ([]models.TimeSlot, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.TimeSlot, error)
	Create(ctx context.Context, slot *models.TimeSlot) error
	CountReferencingPeriods(ctx context.Context, branchID, slotID string) (int, error)
	Delete(ctx context.Context, branchID, slotID string) error
}

// CreateTimeSlotRequest describes payload for registering a weekly slot.
type CreateTimeSlotRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"required,min=1,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	SlotType  string `json:"slot_type" validate:"required"`
	SlotOrder int    `json:"slot_order" validate:"min=0"`
}

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// SlotCatalogService owns the canonical weekly slot templates of a branch.
// Slot creation is an administrative setup operation, not on the hot path.
type SlotCatalogService struct {
	repo      timeSlotRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSlotCatalogService instantiates SlotCatalogService.
func NewSlotCatalogService(repo timeSlotRepository, validate *validator.Validate, logger *zap.Logger) *SlotCatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotCatalogService{repo: repo, validator: validate, logger: logger}
}

// ListSlots returns the branch's slots ordered by day then slot order.
func (s *SlotCatalogService) ListSlots(ctx context.Context, branchID string) ([]models.TimeSlot, error) {
	slots, err := s.repo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	return slots, nil
}

// GetSlot resolves one slot. A slot of another branch is NotFound, never
// leaked: cross-branch slot visibility would defeat tenant isolation.
func (s *SlotCatalogService) GetSlot(ctx context.Context, branchID, slotID string) (*models.TimeSlot, error) {
	slot, err := s.repo.FindByID(ctx, nil, branchID, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot")
	}
	return slot, nil
}

// CreateSlot registers a new weekly slot after catalog validation: valid
// HH:MM range, no time overlap within the day, and no duplicate
// (day_of_week, slot_order) among regular slots.
func (s *SlotCatalogService) CreateSlot(ctx context.Context, branchID string, req CreateTimeSlotRequest) (*models.TimeSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot payload")
	}
	if !hhmmPattern.MatchString(req.StartTime) || !hhmmPattern.MatchString(req.EndTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time and end_time must use HH:MM")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	slotType := models.SlotType(req.SlotType)
	if !slotType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot_type must be REGULAR, BREAK or ASSEMBLY")
	}

	slot := models.TimeSlot{
		BranchID:  branchID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		SlotType:  slotType,
		SlotOrder: req.SlotOrder,
	}

	existing, err := s.repo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing slots")
	}
	for _, other := range existing {
		if slot.OverlapsTime(other) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot overlaps existing slot %s-%s on day %d", other.StartTime, other.EndTime, other.DayOfWeek))
		}
		if slotType == models.SlotTypeRegular && other.SlotType == models.SlotTypeRegular &&
			other.DayOfWeek == req.DayOfWeek && other.SlotOrder == req.SlotOrder {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot order %d already taken on day %d", req.SlotOrder, req.DayOfWeek))
		}
	}

	if err := s.repo.Create(ctx, &slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create time slot")
	}
	return &slot, nil
}

// DeleteSlot removes a slot template. Slots referenced by any period, active
// or historical, are protected.
func (s *SlotCatalogService) DeleteSlot(ctx context.Context, branchID, slotID string) error {
	if _, err := s.GetSlot(ctx, branchID, slotID); err != nil {
		return err
	}

	refs, err := s.repo.CountReferencingPeriods(ctx, branchID, slotID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot references")
	}
	if refs > 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot is referenced by %d periods and cannot be deleted", refs))
	}

	if err := s.repo.Delete(ctx, branchID, slotID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete time slot")
	}
	return nil
}
