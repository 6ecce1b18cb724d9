package models

import "time"

// SubstitutionStatus is the closed lifecycle of a substitution.
type SubstitutionStatus string

const (
	SubstitutionRequested SubstitutionStatus = "REQUESTED"
	SubstitutionApproved  SubstitutionStatus = "APPROVED"
	SubstitutionCompleted SubstitutionStatus = "COMPLETED"
	SubstitutionCancelled SubstitutionStatus = "CANCELLED"
)

// Valid reports whether the status is one of the closed set.
func (s SubstitutionStatus) Valid() bool {
	switch s {
	case SubstitutionRequested, SubstitutionApproved, SubstitutionCompleted, SubstitutionCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s SubstitutionStatus) Terminal() bool {
	return s == SubstitutionCompleted || s == SubstitutionCancelled
}

// CanTransitionTo encodes the full state machine:
// REQUESTED -> APPROVED -> COMPLETED, with REQUESTED/APPROVED -> CANCELLED.
func (s SubstitutionStatus) CanTransitionTo(next SubstitutionStatus) bool {
	switch s {
	case SubstitutionRequested:
		return next == SubstitutionApproved || next == SubstitutionCancelled
	case SubstitutionApproved:
		return next == SubstitutionCompleted || next == SubstitutionCancelled
	default:
		return false
	}
}

// Substitution is a one-date override of the teacher for a TimetablePeriod.
// Date uses "YYYY-MM-DD" in the branch-local calendar.
type Substitution struct {
	ID                  string             `db:"id" json:"id"`
	BranchID            string             `db:"branch_id" json:"branch_id"`
	PeriodID            string             `db:"period_id" json:"period_id"`
	TimeSlotID          string             `db:"time_slot_id" json:"time_slot_id"`
	SubstituteTeacherID string             `db:"substitute_teacher_id" json:"substitute_teacher_id"`
	Date                string             `db:"date" json:"date"`
	Reason              string             `db:"reason" json:"reason"`
	Status              SubstitutionStatus `db:"status" json:"status"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// SubstitutionFilter captures filtering options for listing substitutions.
type SubstitutionFilter struct {
	PeriodID  string
	TeacherID string
	Date      string
	Status    *SubstitutionStatus
	Page      int
	PageSize  int
}

// EligibleSubstitute is one candidate replacement teacher, ordered by name
// for deterministic output.
type EligibleSubstitute struct {
	TeacherID string `db:"id" json:"teacher_id"`
	FullName  string `db:"full_name" json:"full_name"`
}
