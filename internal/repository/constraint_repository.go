package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arka-edu/timetable-api/internal/models"
)

// ConstraintRepository reads the administratively maintained exclusion rule
// tables. The engine never mutates them.
type ConstraintRepository struct {
	db *sqlx.DB
}

// NewConstraintRepository creates a new constraint repository.
func NewConstraintRepository(db *sqlx.DB) *ConstraintRepository {
	return &ConstraintRepository{db: db}
}

func (r *ConstraintRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// TeacherExcluded reports whether a blackout window blocks the teacher at
// (day_of_week, slot_order).
func (r *ConstraintRepository) TeacherExcluded(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID string, dayOfWeek, slotOrder int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM teacher_constraints WHERE branch_id = $1 AND teacher_id = $2 AND day_of_week = $3 AND slot_order = $4)`
	var excluded bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &excluded, query, branchID, teacherID, dayOfWeek, slotOrder); err != nil {
		return false, fmt.Errorf("check teacher constraint: %w", err)
	}
	return excluded, nil
}

// RoomExcluded reports whether a blackout window blocks the room at
// (day_of_week, slot_order).
func (r *ConstraintRepository) RoomExcluded(ctx context.Context, exec sqlx.ExtContext, branchID, roomID string, dayOfWeek, slotOrder int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM room_constraints WHERE branch_id = $1 AND room_id = $2 AND day_of_week = $3 AND slot_order = $4)`
	var excluded bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &excluded, query, branchID, roomID, dayOfWeek, slotOrder); err != nil {
		return false, fmt.Errorf("check room constraint: %w", err)
	}
	return excluded, nil
}

// FindSubjectGradeRule returns the grade range rule for a subject, or nil
// when the branch defines none.
func (r *ConstraintRepository) FindSubjectGradeRule(ctx context.Context, exec sqlx.ExtContext, branchID, subjectID string) (*models.SubjectGradeRule, error) {
	const query = `SELECT id, branch_id, subject_id, min_grade, max_grade FROM subject_grade_rules WHERE branch_id = $1 AND subject_id = $2`
	var rule models.SubjectGradeRule
	if err := sqlx.GetContext(ctx, r.exec(exec), &rule, query, branchID, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find subject grade rule: %w", err)
	}
	return &rule, nil
}

// ListExcludedTeacherIDs returns teachers with a blackout at the window.
func (r *ConstraintRepository) ListExcludedTeacherIDs(ctx context.Context, branchID string, dayOfWeek, slotOrder int) ([]string, error) {
	const query = `SELECT DISTINCT teacher_id FROM teacher_constraints WHERE branch_id = $1 AND day_of_week = $2 AND slot_order = $3`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, branchID, dayOfWeek, slotOrder); err != nil {
		return nil, fmt.Errorf("list excluded teacher ids: %w", err)
	}
	return ids, nil
}
