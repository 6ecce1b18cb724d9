package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/arka-edu/timetable-api/internal/models"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

type constraintRepository interface {
	TeacherExcluded(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID string, dayOfWeek, slotOrder int) (bool, error)
	RoomExcluded(ctx context.Context, exec sqlx.ExtContext, branchID, roomID string, dayOfWeek, slotOrder int) (bool, error)
	FindSubjectGradeRule(ctx context.Context, exec sqlx.ExtContext, branchID, subjectID string) (*models.SubjectGradeRule, error)
	ListExcludedTeacherIDs(ctx context.Context, branchID string, dayOfWeek, slotOrder int) ([]string, error)
}

// ConstraintStore exposes the exclusion rule tables as pure predicates.
// Reads run against the caller's transaction when an exec is supplied, so
// they stay snapshot-consistent with the enclosing validate-then-write.
type ConstraintStore struct {
	repo constraintRepository
}

// NewConstraintStore constructs a ConstraintStore.
func NewConstraintStore(repo constraintRepository) *ConstraintStore {
	return &ConstraintStore{repo: repo}
}

// IsSubjectEligible reports whether the subject may be taught at the grade
// level. A subject without a grade rule is unrestricted.
func (s *ConstraintStore) IsSubjectEligible(ctx context.Context, exec sqlx.ExtContext, branchID, subjectID string, gradeLevel int) (bool, error) {
	rule, err := s.repo.FindSubjectGradeRule(ctx, exec, branchID, subjectID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grade rule")
	}
	if rule == nil {
		return true, nil
	}
	return rule.Allows(gradeLevel), nil
}

// IsTeacherExcluded reports whether the teacher is blocked out of the window.
func (s *ConstraintStore) IsTeacherExcluded(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID string, dayOfWeek, slotOrder int) (bool, error) {
	excluded, err := s.repo.TeacherExcluded(ctx, exec, branchID, teacherID, dayOfWeek, slotOrder)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher blackout")
	}
	return excluded, nil
}

// IsRoomExcluded reports whether the room is blocked out of the window.
func (s *ConstraintStore) IsRoomExcluded(ctx context.Context, exec sqlx.ExtContext, branchID, roomID string, dayOfWeek, slotOrder int) (bool, error) {
	excluded, err := s.repo.RoomExcluded(ctx, exec, branchID, roomID, dayOfWeek, slotOrder)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room blackout")
	}
	return excluded, nil
}

// ExcludedTeacherIDs returns the set of teachers blocked out of the window,
// used to filter substitution candidates in bulk.
func (s *ConstraintStore) ExcludedTeacherIDs(ctx context.Context, branchID string, dayOfWeek, slotOrder int) (map[string]struct{}, error) {
	ids, err := s.repo.ListExcludedTeacherIDs(ctx, branchID, dayOfWeek, slotOrder)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list excluded teachers")
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
