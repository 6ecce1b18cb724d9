package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arka-edu/timetable-api/internal/models"
)

// TimeSlotRepository provides persistence for weekly slot templates.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository creates a new time slot repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

func (r *TimeSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const timeSlotColumns = `id, branch_id, day_of_week, start_time, end_time, slot_type, slot_order, created_at, updated_at`

// ListByBranch returns all slots of a branch ordered by day then slot order.
func (r *TimeSlotRepository) ListByBranch(ctx context.Context, branchID string) ([]models.TimeSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_slots WHERE branch_id = $1 ORDER BY day_of_week ASC, slot_order ASC`, timeSlotColumns)
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, branchID); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// FindByID loads a slot by id within a branch. A slot belonging to another
// branch yields sql.ErrNoRows, never the foreign row.
func (r *TimeSlotRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.TimeSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_slots WHERE branch_id = $1 AND id = $2`, timeSlotColumns)
	var slot models.TimeSlot
	if err := sqlx.GetContext(ctx, r.exec(exec), &slot, query, branchID, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create stores a new slot template.
func (r *TimeSlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO time_slots (id, branch_id, day_of_week, start_time, end_time, slot_type, slot_order, created_at, updated_at)
VALUES (:id, :branch_id, :day_of_week, :start_time, :end_time, :slot_type, :slot_order, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create time slot: %w", err)
	}
	return nil
}

// CountReferencingPeriods returns the number of periods, active or not, that
// reference a slot. Slots with history are never deleted.
func (r *TimeSlotRepository) CountReferencingPeriods(ctx context.Context, branchID, slotID string) (int, error) {
	const query = `SELECT COUNT(*) FROM timetable_periods WHERE branch_id = $1 AND time_slot_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, branchID, slotID); err != nil {
		return 0, fmt.Errorf("count periods referencing slot: %w", err)
	}
	return count, nil
}

// Delete removes a slot template.
func (r *TimeSlotRepository) Delete(ctx context.Context, branchID, slotID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM time_slots WHERE branch_id = $1 AND id = $2`, branchID, slotID); err != nil {
		return fmt.Errorf("delete time slot: %w", err)
	}
	return nil
}
