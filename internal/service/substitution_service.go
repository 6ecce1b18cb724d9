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

type substitutionRepository interface {
	FindByID(ctx context.Context, branchID, id string) (*models.Substitution, error)
	List(ctx context.Context, branchID string, filter models.SubstitutionFilter) ([]models.Substitution, int, error)
	ActiveExistsForPeriodDate(ctx context.Context, exec sqlx.ExtContext, branchID, periodID, date string) (bool, error)
	ListActiveTeacherIDsBySlotDate(ctx context.Context, branchID, timeSlotID, date string) ([]string, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, sub *models.Substitution) error
	UpdateStatus(ctx context.Context, branchID, id string, from, to models.SubstitutionStatus) error
	ListApprovedBefore(ctx context.Context, date string, limit int) ([]models.Substitution, error)
}

type substitutionPeriodReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.TimetablePeriod, error)
	ListActiveTeacherIDsBySlot(ctx context.Context, branchID, timeSlotID string) ([]string, error)
}

type substitutionDirectory interface {
	FindTeacher(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Teacher, error)
	ListActiveTeachers(ctx context.Context, branchID string) ([]models.Teacher, error)
}

type substituteChecker interface {
	ValidateSubstitute(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID, timeSlotID, date string) error
}

type constraintExclusionLister interface {
	ExcludedTeacherIDs(ctx context.Context, branchID string, dayOfWeek, slotOrder int) (map[string]struct{}, error)
}

// RequestSubstitutionRequest describes payload for a one-date replacement.
type RequestSubstitutionRequest struct {
	PeriodID            string `json:"period_id" validate:"required"`
	SubstituteTeacherID string `json:"substitute_teacher_id" validate:"required"`
	Date                string `json:"date" validate:"required"`
	Reason              string `json:"reason" validate:"max=500"`
}

// SubstitutionConfig bounds the request retry loop.
type SubstitutionConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

const dateLayout = "2006-01-02"

// SubstitutionService manages the lifecycle of single-date teacher
// replacements: REQUESTED -> APPROVED -> COMPLETED, with cancellation from
// the two non-terminal states.
type SubstitutionService struct {
	tx          txProvider
	subs        substitutionRepository
	periods     substitutionPeriodReader
	directory   substitutionDirectory
	conflicts   substituteChecker
	constraints constraintExclusionLister
	slots       validatorSlotReader
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	cfg         SubstitutionConfig
	now         func() time.Time
}

// NewSubstitutionService wires coordinator dependencies.
func NewSubstitutionService(
	tx txProvider,
	subs substitutionRepository,
	periods substitutionPeriodReader,
	directory substitutionDirectory,
	conflicts substituteChecker,
	constraints constraintExclusionLister,
	slots validatorSlotReader,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg SubstitutionConfig,
) *SubstitutionService {
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
	return &SubstitutionService{
		tx:          tx,
		subs:        subs,
		periods:     periods,
		directory:   directory,
		conflicts:   conflicts,
		constraints: constraints,
		slots:       slots,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Request creates a substitution in REQUESTED after re-running the
// single-date availability check inside the same transaction as the insert.
// The partial unique index on (period_id, date) backs the at-most-one-active
// invariant under concurrency; a violation consumes the bounded retry budget
// exactly like period assignment.
func (s *SubstitutionService) Request(ctx context.Context, branchID string, req RequestSubstitutionRequest) (*models.Substitution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitution payload")
	}
	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, s.cfg.RetryBackoff); err != nil {
				return nil, timeoutError(err)
			}
		}

		sub, err := s.requestOnce(ctx, branchID, req)
		if err == nil {
			return sub, nil
		}
		if ctx.Err() != nil {
			return nil, timeoutError(ctx.Err())
		}
		if repository.IsUniqueViolation(err) {
			lastErr = err
			s.logger.Warn("substitution hit unique constraint, retrying",
				zap.String("branch_id", branchID),
				zap.String("period_id", req.PeriodID),
				zap.String("date", req.Date),
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

func (s *SubstitutionService) requestOnce(ctx context.Context, branchID string, req RequestSubstitutionRequest) (*models.Substitution, error) {
	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin substitution transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	period, err := s.periods.FindByID(ctx, tx, branchID, req.PeriodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	if !period.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot substitute on an inactive period")
	}
	if req.SubstituteTeacherID == period.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "substitute must differ from the period's regular teacher")
	}

	substitute, err := s.directory.FindTeacher(ctx, tx, branchID, req.SubstituteTeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitute teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute teacher")
	}
	if !substitute.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "substitute teacher is inactive")
	}

	exists, err := s.subs.ActiveExistsForPeriodDate(ctx, tx, branchID, req.PeriodID, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing substitution")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrSubstitutionExists, "")
	}

	if err := s.conflicts.ValidateSubstitute(ctx, tx, branchID, req.SubstituteTeacherID, period.TimeSlotID, req.Date); err != nil {
		return nil, err
	}

	sub := &models.Substitution{
		BranchID:            branchID,
		PeriodID:            period.ID,
		TimeSlotID:          period.TimeSlotID,
		SubstituteTeacherID: req.SubstituteTeacherID,
		Date:                req.Date,
		Reason:              req.Reason,
		Status:              models.SubstitutionRequested,
	}
	if err := s.subs.Insert(ctx, tx, sub); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return sub, nil
}

// Get loads a substitution within the branch.
func (s *SubstitutionService) Get(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	sub, err := s.subs.FindByID(ctx, branchID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution")
	}
	return sub, nil
}

// List returns substitutions with pagination metadata.
func (s *SubstitutionService) List(ctx context.Context, branchID string, filter models.SubstitutionFilter) ([]models.Substitution, *models.Pagination, error) {
	subs, total, err := s.subs.List(ctx, branchID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitutions")
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
	return subs, pagination, nil
}

// Approve confirms a REQUESTED substitution.
func (s *SubstitutionService) Approve(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	return s.transition(ctx, branchID, id, models.SubstitutionApproved, nil)
}

// Complete closes an APPROVED substitution once its date has passed in the
// branch-local calendar. Premature completion fails with TOO_EARLY.
func (s *SubstitutionService) Complete(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	today := s.now().Format(dateLayout)
	return s.transition(ctx, branchID, id, models.SubstitutionCompleted, func(sub *models.Substitution) error {
		if sub.Date >= today {
			return appErrors.Clone(appErrors.ErrTooEarly, "")
		}
		return nil
	})
}

// Cancel withdraws a substitution from REQUESTED or APPROVED.
func (s *SubstitutionService) Cancel(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	return s.transition(ctx, branchID, id, models.SubstitutionCancelled, nil)
}

func (s *SubstitutionService) transition(ctx context.Context, branchID, id string, next models.SubstitutionStatus, guard func(*models.Substitution) error) (*models.Substitution, error) {
	sub, err := s.Get(ctx, branchID, id)
	if err != nil {
		return nil, err
	}
	if !sub.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			string(sub.Status)+" -> "+string(next)+" is not a valid substitution transition")
	}
	if guard != nil {
		if err := guard(sub); err != nil {
			return nil, err
		}
	}

	// Conditional on the observed status: if a concurrent transition won the
	// race, zero rows match and the edge is rejected instead of overwriting.
	if err := s.subs.UpdateStatus(ctx, branchID, id, sub.Status, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "substitution status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update substitution status")
	}
	sub.Status = next
	return sub, nil
}

// FindEligibleSubstitutes lists the branch's teachers who could cover the
// period on the given date: active, not the period's own teacher, free of
// periods and substitutions in that slot, and not blocked out by constraint.
// Ordered by teacher name for deterministic output.
func (s *SubstitutionService) FindEligibleSubstitutes(ctx context.Context, branchID, periodID, date string) ([]models.EligibleSubstitute, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}

	period, err := s.periods.FindByID(ctx, nil, branchID, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}

	slot, err := s.slots.FindByID(ctx, nil, branchID, period.TimeSlotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot")
	}

	teachers, err := s.directory.ListActiveTeachers(ctx, branchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}

	busyPeriods, err := s.periods.ListActiveTeacherIDsBySlot(ctx, branchID, period.TimeSlotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot occupancy")
	}
	busySubs, err := s.subs.ListActiveTeacherIDsBySlotDate(ctx, branchID, period.TimeSlotID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute commitments")
	}
	excluded, err := s.constraints.ExcludedTeacherIDs(ctx, branchID, slot.DayOfWeek, slot.SlotOrder)
	if err != nil {
		return nil, err
	}

	busy := make(map[string]struct{}, len(busyPeriods)+len(busySubs)+1)
	busy[period.TeacherID] = struct{}{}
	for _, id := range busyPeriods {
		busy[id] = struct{}{}
	}
	for _, id := range busySubs {
		busy[id] = struct{}{}
	}

	eligible := make([]models.EligibleSubstitute, 0, len(teachers))
	for _, t := range teachers {
		if _, taken := busy[t.ID]; taken {
			continue
		}
		if _, blocked := excluded[t.ID]; blocked {
			continue
		}
		eligible = append(eligible, models.EligibleSubstitute{TeacherID: t.ID, FullName: t.FullName})
	}
	return eligible, nil
}

// SweepCompleted moves APPROVED substitutions whose date has passed to
// COMPLETED. Runs periodically on the background queue.
func (s *SubstitutionService) SweepCompleted(ctx context.Context) (int, error) {
	today := s.now().Format(dateLayout)
	due, err := s.subs.ListApprovedBefore(ctx, today, 0)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list due substitutions")
	}

	completed := 0
	for _, sub := range due {
		if !sub.Status.CanTransitionTo(models.SubstitutionCompleted) {
			continue
		}
		if err := s.subs.UpdateStatus(ctx, sub.BranchID, sub.ID, sub.Status, models.SubstitutionCompleted); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Lost a race with a cancel or an earlier sweep; nothing to do.
				continue
			}
			s.logger.Warn("substitution sweep update failed",
				zap.String("substitution_id", sub.ID),
				zap.String("branch_id", sub.BranchID),
				zap.Error(err))
			continue
		}
		completed++
	}
	if completed > 0 {
		s.logger.Info("substitution sweep finished", zap.Int("completed", completed))
	}
	return completed, nil
}
