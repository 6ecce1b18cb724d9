package models

import "time"

// TimetablePeriod assigns a recurring TimeSlot to a (section, subject,
// teacher, room) tuple. Deactivated rows are kept to preserve substitution
// history.
type TimetablePeriod struct {
	ID         string    `db:"id" json:"id"`
	BranchID   string    `db:"branch_id" json:"branch_id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	RoomID     *string   `db:"room_id" json:"room_id,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SameRoom reports whether the period occupies the given room.
func (p TimetablePeriod) SameRoom(roomID *string) bool {
	if p.RoomID == nil || roomID == nil {
		return false
	}
	return *p.RoomID == *roomID
}

// GridCell is one entry of the section timetable projection, keyed by
// (day_of_week, slot_order).
type GridCell struct {
	DayOfWeek int             `json:"day_of_week"`
	SlotOrder int             `json:"slot_order"`
	SlotType  SlotType        `json:"slot_type"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Period    *TimetablePeriod `json:"period,omitempty"`
}

// SectionGrid is the display projection of a section's active periods.
type SectionGrid struct {
	BranchID  string     `json:"branch_id"`
	SectionID string     `json:"section_id"`
	Cells     []GridCell `json:"cells"`
}

// PeriodConflict describes the existing period that caused a rejection.
type PeriodConflict struct {
	PeriodID   string  `json:"period_id"`
	SectionID  string  `json:"section_id"`
	SubjectID  string  `json:"subject_id"`
	TeacherID  string  `json:"teacher_id"`
	TimeSlotID string  `json:"time_slot_id"`
	RoomID     *string `json:"room_id,omitempty"`
	Rule       string  `json:"rule"`
}

// PeriodConflictError is returned when a proposed assignment collides with an
// existing period or constraint rule.
type PeriodConflictError struct {
	Rule     string          `json:"rule"`
	Message  string          `json:"message"`
	Conflict *PeriodConflict `json:"conflict,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *PeriodConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
