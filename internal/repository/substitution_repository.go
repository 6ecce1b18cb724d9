package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arka-edu/timetable-api/internal/models"
)

// SubstitutionRepository persists one-date teacher substitutions.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository creates a new substitution repository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

func (r *SubstitutionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const substitutionColumns = `id, branch_id, period_id, time_slot_id, substitute_teacher_id, date, reason, status, created_at, updated_at`

// activeStatuses are the non-terminal-or-completed statuses that count toward
// the at-most-one-substitution-per-(period, date) invariant.
const activeStatuses = `('REQUESTED', 'APPROVED', 'COMPLETED')`

// FindByID loads a substitution by id within a branch.
func (r *SubstitutionRepository) FindByID(ctx context.Context, branchID, id string) (*models.Substitution, error) {
	query := fmt.Sprintf(`SELECT %s FROM substitutions WHERE branch_id = $1 AND id = $2`, substitutionColumns)
	var sub models.Substitution
	if err := r.db.GetContext(ctx, &sub, query, branchID, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// List returns substitutions of a branch with optional filtering.
func (r *SubstitutionRepository) List(ctx context.Context, branchID string, filter models.SubstitutionFilter) ([]models.Substitution, int, error) {
	base := "FROM substitutions WHERE branch_id = $1"
	args := []interface{}{branchID}
	var conditions []string

	if filter.PeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("period_id = $%d", len(args)+1))
		args = append(args, filter.PeriodID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("substitute_teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, filter.Date)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date DESC, created_at DESC LIMIT %d OFFSET %d", substitutionColumns, base, size, offset)
	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list substitutions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count substitutions: %w", err)
	}

	return subs, total, nil
}

// ActiveExistsForPeriodDate reports whether a non-cancelled substitution
// already covers the (period, date) pair.
func (r *SubstitutionRepository) ActiveExistsForPeriodDate(ctx context.Context, exec sqlx.ExtContext, branchID, periodID, date string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM substitutions WHERE branch_id = $1 AND period_id = $2 AND date = $3 AND status IN %s)`, activeStatuses)
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, branchID, periodID, date); err != nil {
		return false, fmt.Errorf("check substitution for period and date: %w", err)
	}
	return exists, nil
}

// ActiveExistsForTeacherSlotDate reports whether the teacher already holds a
// non-cancelled substitution in the slot on that date.
func (r *SubstitutionRepository) ActiveExistsForTeacherSlotDate(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID, timeSlotID, date string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM substitutions WHERE branch_id = $1 AND substitute_teacher_id = $2 AND time_slot_id = $3 AND date = $4 AND status IN %s)`, activeStatuses)
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, branchID, teacherID, timeSlotID, date); err != nil {
		return false, fmt.Errorf("check substitute slot commitment: %w", err)
	}
	return exists, nil
}

// ListActiveTeacherIDsBySlotDate returns the distinct substitutes already
// committed to a slot on the given date.
func (r *SubstitutionRepository) ListActiveTeacherIDsBySlotDate(ctx context.Context, branchID, timeSlotID, date string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT substitute_teacher_id FROM substitutions WHERE branch_id = $1 AND time_slot_id = $2 AND date = $3 AND status IN %s`, activeStatuses)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, branchID, timeSlotID, date); err != nil {
		return nil, fmt.Errorf("list substitute ids by slot and date: %w", err)
	}
	return ids, nil
}

// Insert stores a new substitution inside the caller's transaction. The
// partial unique index on (period_id, date) for non-cancelled statuses is
// the authoritative uniqueness guard.
func (r *SubstitutionRepository) Insert(ctx context.Context, exec sqlx.ExtContext, sub *models.Substitution) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.Status == "" {
		sub.Status = models.SubstitutionRequested
	}

	const query = `INSERT INTO substitutions (id, branch_id, period_id, time_slot_id, substitute_teacher_id, date, reason, status, created_at, updated_at)
VALUES (:id, :branch_id, :period_id, :time_slot_id, :substitute_teacher_id, :date, :reason, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, sub); err != nil {
		return fmt.Errorf("insert substitution: %w", err)
	}
	return nil
}

// UpdateStatus persists a lifecycle transition, conditional on the row still
// holding the status the caller observed. Zero rows affected means a
// concurrent transition won; the caller maps sql.ErrNoRows to
// INVALID_TRANSITION so a terminal state is never overwritten.
func (r *SubstitutionRepository) UpdateStatus(ctx context.Context, branchID, id string, from, to models.SubstitutionStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE substitutions SET status = $4, updated_at = $5 WHERE branch_id = $1 AND id = $2 AND status = $3`, branchID, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update substitution status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update substitution status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListApprovedBefore returns approved substitutions across branches whose
// date is strictly before the given day. Used by the completion sweeper.
func (r *SubstitutionRepository) ListApprovedBefore(ctx context.Context, date string, limit int) ([]models.Substitution, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`SELECT %s FROM substitutions WHERE status = 'APPROVED' AND date < $1 ORDER BY date ASC LIMIT %d`, substitutionColumns, limit)
	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query, date); err != nil {
		return nil, fmt.Errorf("list approved substitutions before date: %w", err)
	}
	return subs, nil
}
