package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/arka-edu/timetable-api/internal/models"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

type roomRepository interface {
	List(ctx context.Context, branchID string, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Room, error)
	ExistsByCode(ctx context.Context, branchID, code string) (bool, error)
	Create(ctx context.Context, room *models.Room) error
}

// CreateRoomRequest describes payload for registering a room.
type CreateRoomRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=128"`
	Type     string `json:"type" validate:"required"`
	Capacity int    `json:"capacity" validate:"min=0"`
	Floor    int    `json:"floor"`
}

// RoomService manages the branch room catalog.
type RoomService struct {
	repo      roomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService instantiates RoomService.
func NewRoomService(repo roomRepository, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, validator: validate, logger: logger}
}

// List returns rooms with pagination metadata.
func (s *RoomService) List(ctx context.Context, branchID string, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, branchID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rooms, pagination, nil
}

// Get resolves a room within the branch.
func (s *RoomService) Get(ctx context.Context, branchID, roomID string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, nil, branchID, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create registers a new room. Codes are unique per branch.
func (s *RoomService) Create(ctx context.Context, branchID string, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	roomType := models.RoomType(req.Type)
	if !roomType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown room type")
	}

	taken, err := s.repo.ExistsByCode(ctx, branchID, req.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room code")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("room code %q already in use", req.Code))
	}

	room := models.Room{
		BranchID: branchID,
		Code:     req.Code,
		Name:     req.Name,
		Type:     roomType,
		Capacity: req.Capacity,
		Floor:    req.Floor,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, &room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return &room, nil
}
