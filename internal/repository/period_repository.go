package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arka-edu/timetable-api/internal/models"
)

// PeriodRepository persists timetable period assignments. Methods taking an
// sqlx.ExtContext participate in the caller's transaction; pass nil to run
// against the pool directly.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository creates a new period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

func (r *PeriodRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const periodColumns = `id, branch_id, section_id, subject_id, teacher_id, time_slot_id, room_id, is_active, created_at, updated_at`

// ListActiveBySlot returns all active periods occupying a time slot, ordered
// by creation so conflict reporting is deterministic.
func (r *PeriodRepository) ListActiveBySlot(ctx context.Context, exec sqlx.ExtContext, branchID, timeSlotID string) ([]models.TimetablePeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_periods WHERE branch_id = $1 AND time_slot_id = $2 AND is_active = TRUE ORDER BY created_at ASC, id ASC`, periodColumns)
	var periods []models.TimetablePeriod
	if err := sqlx.SelectContext(ctx, r.exec(exec), &periods, query, branchID, timeSlotID); err != nil {
		return nil, fmt.Errorf("list periods by slot: %w", err)
	}
	return periods, nil
}

// ListActiveBySection returns a section's active periods.
func (r *PeriodRepository) ListActiveBySection(ctx context.Context, branchID, sectionID string) ([]models.TimetablePeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_periods WHERE branch_id = $1 AND section_id = $2 AND is_active = TRUE`, periodColumns)
	var periods []models.TimetablePeriod
	if err := r.db.SelectContext(ctx, &periods, query, branchID, sectionID); err != nil {
		return nil, fmt.Errorf("list periods by section: %w", err)
	}
	return periods, nil
}

// FindByID loads a period by id within a branch.
func (r *PeriodRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.TimetablePeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_periods WHERE branch_id = $1 AND id = $2`, periodColumns)
	var period models.TimetablePeriod
	if err := sqlx.GetContext(ctx, r.exec(exec), &period, query, branchID, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindActiveBySectionSlot returns the section's active period in a slot, or
// nil when the cell is empty. This is the idempotence key for assignment.
func (r *PeriodRepository) FindActiveBySectionSlot(ctx context.Context, exec sqlx.ExtContext, branchID, sectionID, timeSlotID string) (*models.TimetablePeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_periods WHERE branch_id = $1 AND section_id = $2 AND time_slot_id = $3 AND is_active = TRUE`, periodColumns)
	var period models.TimetablePeriod
	if err := sqlx.GetContext(ctx, r.exec(exec), &period, query, branchID, sectionID, timeSlotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find period by section and slot: %w", err)
	}
	return &period, nil
}

// ListActiveTeacherIDsBySlot returns the distinct teachers already committed
// to a slot via an active period.
func (r *PeriodRepository) ListActiveTeacherIDsBySlot(ctx context.Context, branchID, timeSlotID string) ([]string, error) {
	const query = `SELECT DISTINCT teacher_id FROM timetable_periods WHERE branch_id = $1 AND time_slot_id = $2 AND is_active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, branchID, timeSlotID); err != nil {
		return nil, fmt.Errorf("list teacher ids by slot: %w", err)
	}
	return ids, nil
}

// HasActiveByTeacherSlot reports whether a teacher already holds an active
// period in the slot.
func (r *PeriodRepository) HasActiveByTeacherSlot(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID, timeSlotID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM timetable_periods WHERE branch_id = $1 AND teacher_id = $2 AND time_slot_id = $3 AND is_active = TRUE)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, branchID, teacherID, timeSlotID); err != nil {
		return false, fmt.Errorf("check teacher slot occupancy: %w", err)
	}
	return exists, nil
}

// Insert stores a new period inside the caller's transaction. The partial
// unique indexes on (branch_id, time_slot_id, teacher_id|section_id|room_id)
// are the authoritative double-booking guard.
func (r *PeriodRepository) Insert(ctx context.Context, exec sqlx.ExtContext, period *models.TimetablePeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now
	period.IsActive = true

	const query = `INSERT INTO timetable_periods (id, branch_id, section_id, subject_id, teacher_id, time_slot_id, room_id, is_active, created_at, updated_at)
VALUES (:id, :branch_id, :section_id, :subject_id, :teacher_id, :time_slot_id, :room_id, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, period); err != nil {
		return fmt.Errorf("insert period: %w", err)
	}
	return nil
}

// Update modifies the mutable fields of an existing period.
func (r *PeriodRepository) Update(ctx context.Context, exec sqlx.ExtContext, period *models.TimetablePeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_periods SET subject_id = :subject_id, teacher_id = :teacher_id, room_id = :room_id, updated_at = :updated_at
WHERE branch_id = :branch_id AND id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, period); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a period, preserving substitution history.
func (r *PeriodRepository) Deactivate(ctx context.Context, branchID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE timetable_periods SET is_active = FALSE, updated_at = $3 WHERE branch_id = $1 AND id = $2 AND is_active = TRUE`, branchID, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate period: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate period rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
