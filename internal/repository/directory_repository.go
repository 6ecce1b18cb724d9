package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arka-edu/timetable-api/internal/models"
)

// DirectoryRepository resolves teachers, sections and subjects. These tables
// are owned by the roster service; the engine reads them for display names,
// grade levels and activity flags only.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindTeacher loads a teacher by id within a branch.
func (r *DirectoryRepository) FindTeacher(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Teacher, error) {
	const query = `SELECT id, branch_id, full_name, email, active, created_at FROM teachers WHERE branch_id = $1 AND id = $2`
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, r.exec(exec), &teacher, query, branchID, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindSection loads a section by id within a branch.
func (r *DirectoryRepository) FindSection(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Section, error) {
	const query = `SELECT id, branch_id, name, grade_level, active, created_at FROM sections WHERE branch_id = $1 AND id = $2`
	var section models.Section
	if err := sqlx.GetContext(ctx, r.exec(exec), &section, query, branchID, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindSubject loads a subject by id within a branch.
func (r *DirectoryRepository) FindSubject(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Subject, error) {
	const query = `SELECT id, branch_id, code, name, active, created_at FROM subjects WHERE branch_id = $1 AND id = $2`
	var subject models.Subject
	if err := sqlx.GetContext(ctx, r.exec(exec), &subject, query, branchID, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListActiveTeachers returns a branch's active teachers ordered by name, the
// candidate pool for substitution eligibility.
func (r *DirectoryRepository) ListActiveTeachers(ctx context.Context, branchID string) ([]models.Teacher, error) {
	const query = `SELECT id, branch_id, full_name, email, active, created_at FROM teachers WHERE branch_id = $1 AND active = TRUE ORDER BY full_name ASC, id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, branchID); err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}
	return teachers, nil
}
