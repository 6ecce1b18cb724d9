package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arka-edu/timetable-api/internal/models"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

type validatorSlotReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.TimeSlot, error)
}

type validatorDirectoryReader interface {
	FindSection(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Section, error)
	FindSubject(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Subject, error)
	FindTeacher(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Teacher, error)
}

type validatorRoomReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Room, error)
}

type validatorPeriodReader interface {
	ListActiveBySlot(ctx context.Context, exec sqlx.ExtContext, branchID, timeSlotID string) ([]models.TimetablePeriod, error)
	HasActiveByTeacherSlot(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID, timeSlotID string) (bool, error)
}

type validatorSubstitutionReader interface {
	ActiveExistsForTeacherSlotDate(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID, timeSlotID, date string) (bool, error)
}

type constraintPredicates interface {
	IsSubjectEligible(ctx context.Context, exec sqlx.ExtContext, branchID, subjectID string, gradeLevel int) (bool, error)
	IsTeacherExcluded(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID string, dayOfWeek, slotOrder int) (bool, error)
	IsRoomExcluded(ctx context.Context, exec sqlx.ExtContext, branchID, roomID string, dayOfWeek, slotOrder int) (bool, error)
}

// PeriodProposal is a candidate assignment to be validated before commit.
// PeriodID is set when an existing period is being updated, so the proposal
// is not checked against itself.
type PeriodProposal struct {
	BranchID   string
	PeriodID   string
	SectionID  string
	SubjectID  string
	TeacherID  string
	TimeSlotID string
	RoomID     *string
}

// ConflictValidator decides whether a proposed period can be committed. It is
// a pure decision component: all reads run on the exec the caller supplies,
// so inside a transaction the checks are snapshot-consistent with the write
// that follows. Checks run in a fixed order and report the first violation,
// making rejections reproducible for identical inputs.
type ConflictValidator struct {
	slots       validatorSlotReader
	directory   validatorDirectoryReader
	rooms       validatorRoomReader
	periods     validatorPeriodReader
	subs        validatorSubstitutionReader
	constraints constraintPredicates
}

// NewConflictValidator wires the validator's read dependencies.
func NewConflictValidator(
	slots validatorSlotReader,
	directory validatorDirectoryReader,
	rooms validatorRoomReader,
	periods validatorPeriodReader,
	subs validatorSubstitutionReader,
	constraints constraintPredicates,
) *ConflictValidator {
	return &ConflictValidator{
		slots:       slots,
		directory:   directory,
		rooms:       rooms,
		periods:     periods,
		subs:        subs,
		constraints: constraints,
	}
}

// Validate runs the full hard-constraint check for a proposal and returns the
// resolved time slot on acceptance. Every reference is resolved within the
// proposal's branch first, so entities of another branch are NotFound, never
// bookable. Check order: slot type, grade eligibility, slot occupancy
// (teacher, room, section per existing period in creation order), teacher
// blackout, room blackout.
func (v *ConflictValidator) Validate(ctx context.Context, exec sqlx.ExtContext, p PeriodProposal) (*models.TimeSlot, error) {
	slot, err := v.slots.FindByID(ctx, exec, p.BranchID, p.TimeSlotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot")
	}
	if slot.SlotType != models.SlotTypeRegular {
		return nil, conflictError(appErrors.ErrInvalidSlotType, nil)
	}

	section, err := v.directory.FindSection(ctx, exec, p.BranchID, p.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	if _, err := v.directory.FindSubject(ctx, exec, p.BranchID, p.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	teacher, err := v.directory.FindTeacher(ctx, exec, p.BranchID, p.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !teacher.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}

	if p.RoomID != nil {
		room, err := v.rooms.FindByID(ctx, exec, p.BranchID, *p.RoomID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
		}
		if !room.IsActive {
			return nil, appErrors.Clone(appErrors.ErrValidation, "room is inactive")
		}
	}

	eligible, err := v.constraints.IsSubjectEligible(ctx, exec, p.BranchID, p.SubjectID, section.GradeLevel)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, conflictError(appErrors.ErrGradeSubjectMismatch, nil)
	}

	occupants, err := v.periods.ListActiveBySlot(ctx, exec, p.BranchID, p.TimeSlotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot occupancy")
	}
	for _, occ := range occupants {
		if occ.ID == p.PeriodID {
			continue
		}
		if occ.TeacherID == p.TeacherID {
			return nil, conflictError(appErrors.ErrTeacherDoubleBooked, &occ)
		}
		if occ.SameRoom(p.RoomID) {
			return nil, conflictError(appErrors.ErrRoomDoubleBooked, &occ)
		}
		if occ.SectionID == p.SectionID {
			return nil, conflictError(appErrors.ErrSectionSlotOccupied, &occ)
		}
	}

	teacherBlocked, err := v.constraints.IsTeacherExcluded(ctx, exec, p.BranchID, p.TeacherID, slot.DayOfWeek, slot.SlotOrder)
	if err != nil {
		return nil, err
	}
	if teacherBlocked {
		return nil, conflictError(appErrors.ErrTeacherUnavailable, nil)
	}

	if p.RoomID != nil {
		roomBlocked, err := v.constraints.IsRoomExcluded(ctx, exec, p.BranchID, *p.RoomID, slot.DayOfWeek, slot.SlotOrder)
		if err != nil {
			return nil, err
		}
		if roomBlocked {
			return nil, conflictError(appErrors.ErrRoomUnavailable, nil)
		}
	}

	return slot, nil
}

// ValidateSubstitute is the single-date variant of the occupancy check: the
// substitute must hold no active period in the slot and no other active
// substitution in the slot on that date.
func (v *ConflictValidator) ValidateSubstitute(ctx context.Context, exec sqlx.ExtContext, branchID, teacherID, timeSlotID, date string) error {
	hasPeriod, err := v.periods.HasActiveByTeacherSlot(ctx, exec, branchID, teacherID, timeSlotID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check substitute periods")
	}
	if hasPeriod {
		return conflictError(appErrors.ErrSubstituteBooked, nil)
	}

	hasSub, err := v.subs.ActiveExistsForTeacherSlotDate(ctx, exec, branchID, teacherID, timeSlotID, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check substitute commitments")
	}
	if hasSub {
		return conflictError(appErrors.ErrSubstituteBooked, nil)
	}

	return nil
}

func conflictError(kind *appErrors.Error, existing *models.TimetablePeriod) error {
	domainErr := &models.PeriodConflictError{Rule: kind.Code, Message: kind.Message}
	if existing != nil {
		domainErr.Conflict = &models.PeriodConflict{
			PeriodID:   existing.ID,
			SectionID:  existing.SectionID,
			SubjectID:  existing.SubjectID,
			TeacherID:  existing.TeacherID,
			TimeSlotID: existing.TimeSlotID,
			RoomID:     existing.RoomID,
			Rule:       kind.Code,
		}
	}
	return appErrors.Wrap(domainErr, kind.Code, kind.Status, fmt.Sprintf("assignment rejected: %s", kind.Message))
}
