package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/arka-edu/timetable-api/internal/models"
	"github.com/arka-edu/timetable-api/internal/repository"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type assignerPeriodRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.TimetablePeriod, error)
	FindActiveBySectionSlot(ctx context.Context, exec sqlx.ExtContext, branchID, sectionID, timeSlotID string) (*models.TimetablePeriod, error)
	ListActiveBySection(ctx context.Context, branchID, sectionID string) ([]models.TimetablePeriod, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, period *models.TimetablePeriod) error
	Update(ctx context.Context, exec sqlx.ExtContext, period *models.TimetablePeriod) error
	Deactivate(ctx context.Context, branchID, id string) error
}

type periodValidator interface {
	Validate(ctx context.Context, exec sqlx.ExtContext, p PeriodProposal) (*models.TimeSlot, error)
}

type gridSlotLister interface {
	ListByBranch(ctx context.Context, branchID string) ([]models.TimeSlot, error)
}

type gridCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string)
}

// AssignPeriodRequest describes payload for assigning a period to a slot.
type AssignPeriodRequest struct {
	SectionID  string  `json:"section_id" validate:"required"`
	SubjectID  string  `json:"subject_id" validate:"required"`
	TeacherID  string  `json:"teacher_id" validate:"required"`
	TimeSlotID string  `json:"time_slot_id" validate:"required"`
	RoomID     *string `json:"room_id,omitempty"`
}

// AssignerConfig bounds the retry loop and tunes the grid cache.
type AssignerConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AssignerService orchestrates period creation, update and deactivation.
// Each assignment validates and writes inside a single read-committed
// transaction; the partial unique indexes are the authoritative guard, and a
// violation triggers a bounded retry of the whole validate-then-write
// sequence before CONCURRENT_MODIFICATION is surfaced.
type AssignerService struct {
	tx        txProvider
	periods   assignerPeriodRepository
	conflicts periodValidator
	slots     gridSlotLister
	cache     gridCache
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cfg       AssignerConfig
}

// NewAssignerService wires assigner dependencies.
func NewAssignerService(
	tx txProvider,
	periods assignerPeriodRepository,
	conflicts periodValidator,
	slots gridSlotLister,
	cache gridCache,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg AssignerConfig,
) *AssignerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 50 * time.Millisecond
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &AssignerService{
		tx:        tx,
		periods:   periods,
		conflicts: conflicts,
		slots:     slots,
		cache:     cache,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// AssignPeriod creates or updates the period occupying (section, slot).
// Idempotent: repeating a call with identical arguments returns the existing
// period untouched; different arguments re-validate against all other
// periods and update in place. Conflicts are surfaced verbatim, never
// retried; only unique-constraint races consume the retry budget.
func (s *AssignerService) AssignPeriod(ctx context.Context, branchID string, req AssignPeriodRequest) (*models.TimetablePeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.ObserveAssignRetry()
			if err := sleepWithContext(ctx, s.cfg.RetryBackoff); err != nil {
				return nil, timeoutError(err)
			}
		}

		period, err := s.assignOnce(ctx, branchID, req)
		if err == nil {
			s.invalidateGrid(ctx, branchID, req.SectionID)
			return period, nil
		}
		if ctx.Err() != nil {
			return nil, timeoutError(ctx.Err())
		}
		if repository.IsUniqueViolation(err) {
			lastErr = err
			s.logger.Warn("assignment hit unique constraint, retrying",
				zap.String("branch_id", branchID),
				zap.String("section_id", req.SectionID),
				zap.String("time_slot_id", req.TimeSlotID),
				zap.Int("attempt", attempt+1))
			continue
		}
		if appErr := appErrors.FromError(err); appErr.Status == 409 || appErr.Status == 422 {
			s.metrics.ObserveConflict(appErr.Code)
		}
		return nil, err
	}

	s.metrics.ObserveRetryExhausted()
	return nil, appErrors.Wrap(lastErr, appErrors.ErrConcurrentModification.Code, appErrors.ErrConcurrentModification.Status, appErrors.ErrConcurrentModification.Message)
}

func (s *AssignerService) assignOnce(ctx context.Context, branchID string, req AssignPeriodRequest) (*models.TimetablePeriod, error) {
	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin assignment transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.periods.FindActiveBySectionSlot(ctx, tx, branchID, req.SectionID, req.TimeSlotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignment")
	}

	if existing != nil && existing.SubjectID == req.SubjectID && existing.TeacherID == req.TeacherID && sameRoomRef(existing.RoomID, req.RoomID) {
		// Identical repeat call: no-op by contract.
		return existing, nil
	}

	proposal := PeriodProposal{
		BranchID:   branchID,
		SectionID:  req.SectionID,
		SubjectID:  req.SubjectID,
		TeacherID:  req.TeacherID,
		TimeSlotID: req.TimeSlotID,
		RoomID:     req.RoomID,
	}
	if existing != nil {
		proposal.PeriodID = existing.ID
	}

	if _, err := s.conflicts.Validate(ctx, tx, proposal); err != nil {
		return nil, err
	}

	var period *models.TimetablePeriod
	if existing == nil {
		period = &models.TimetablePeriod{
			BranchID:   branchID,
			SectionID:  req.SectionID,
			SubjectID:  req.SubjectID,
			TeacherID:  req.TeacherID,
			TimeSlotID: req.TimeSlotID,
			RoomID:     req.RoomID,
		}
		if err := s.periods.Insert(ctx, tx, period); err != nil {
			return nil, err
		}
	} else {
		existing.SubjectID = req.SubjectID
		existing.TeacherID = req.TeacherID
		existing.RoomID = req.RoomID
		if err := s.periods.Update(ctx, tx, existing); err != nil {
			return nil, err
		}
		period = existing
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return period, nil
}

// DeactivatePeriod soft-deletes a period. Substitution history is preserved;
// deactivating an already inactive period is a no-op.
func (s *AssignerService) DeactivatePeriod(ctx context.Context, branchID, periodID string) error {
	period, err := s.periods.FindByID(ctx, nil, branchID, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	if !period.IsActive {
		return nil
	}

	if err := s.periods.Deactivate(ctx, branchID, periodID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate period")
	}

	s.invalidateGrid(ctx, branchID, period.SectionID)
	return nil
}

// GetGrid returns the section's timetable keyed by (day_of_week, slot_order),
// active periods only. The projection is cached per section with
// invalidation on every mutation.
func (s *AssignerService) GetGrid(ctx context.Context, branchID, sectionID string) (*models.SectionGrid, error) {
	key := repository.GridKey(branchID, sectionID)
	if s.cfg.CacheEnabled && s.cache != nil {
		var cached models.SectionGrid
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	slots, err := s.slots.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	periods, err := s.periods.ListActiveBySection(ctx, branchID, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section periods")
	}

	bySlot := make(map[string]models.TimetablePeriod, len(periods))
	for _, p := range periods {
		bySlot[p.TimeSlotID] = p
	}

	grid := &models.SectionGrid{BranchID: branchID, SectionID: sectionID, Cells: make([]models.GridCell, 0, len(slots))}
	for _, slot := range slots {
		cell := models.GridCell{
			DayOfWeek: slot.DayOfWeek,
			SlotOrder: slot.SlotOrder,
			SlotType:  slot.SlotType,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		}
		if p, ok := bySlot[slot.ID]; ok && slot.SlotType == models.SlotTypeRegular {
			period := p
			cell.Period = &period
		}
		grid.Cells = append(grid.Cells, cell)
	}

	if s.cfg.CacheEnabled && s.cache != nil {
		if err := s.cache.Set(ctx, key, grid, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("grid cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return grid, nil
}

func (s *AssignerService) invalidateGrid(ctx context.Context, branchID, sectionID string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, repository.GridKey(branchID, sectionID))
}

func sameRoomRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func timeoutError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
}
