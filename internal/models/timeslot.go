package models

import "time"

// SlotType classifies a weekly time slot. Only REGULAR slots accept subject
// assignments.
type SlotType string

const (
	SlotTypeRegular  SlotType = "REGULAR"
	SlotTypeBreak    SlotType = "BREAK"
	SlotTypeAssembly SlotType = "ASSEMBLY"
)

// Valid reports whether the slot type is one of the closed set.
func (t SlotType) Valid() bool {
	switch t {
	case SlotTypeRegular, SlotTypeBreak, SlotTypeAssembly:
		return true
	}
	return false
}

// Days of the school week. Sunday (0) is never valid for scheduling.
const (
	DayMonday   = 1
	DaySaturday = 6
)

// TimeSlot is a recurring weekly slot template scoped to a branch.
// StartTime/EndTime use "HH:MM".
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	SlotType  SlotType  `db:"slot_type" json:"slot_type"`
	SlotOrder int       `db:"slot_order" json:"slot_order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OverlapsTime reports whether two HH:MM ranges on the same day intersect.
// Lexicographic comparison is correct for zero-padded HH:MM strings.
func (s TimeSlot) OverlapsTime(other TimeSlot) bool {
	if s.DayOfWeek != other.DayOfWeek {
		return false
	}
	return s.StartTime < other.EndTime && other.StartTime < s.EndTime
}
