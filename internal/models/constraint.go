package models

// TeacherConstraint blocks a teacher out of one (day_of_week, slot_order)
// window within a branch.
type TeacherConstraint struct {
	ID        string `db:"id" json:"id"`
	BranchID  string `db:"branch_id" json:"branch_id"`
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	DayOfWeek int    `db:"day_of_week" json:"day_of_week"`
	SlotOrder int    `db:"slot_order" json:"slot_order"`
	Reason    string `db:"reason" json:"reason"`
}

// RoomConstraint blocks a room out of one (day_of_week, slot_order) window.
type RoomConstraint struct {
	ID        string `db:"id" json:"id"`
	BranchID  string `db:"branch_id" json:"branch_id"`
	RoomID    string `db:"room_id" json:"room_id"`
	DayOfWeek int    `db:"day_of_week" json:"day_of_week"`
	SlotOrder int    `db:"slot_order" json:"slot_order"`
	Reason    string `db:"reason" json:"reason"`
}

// SubjectGradeRule restricts a subject to an inclusive grade range.
type SubjectGradeRule struct {
	ID        string `db:"id" json:"id"`
	BranchID  string `db:"branch_id" json:"branch_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
	MinGrade  int    `db:"min_grade" json:"min_grade"`
	MaxGrade  int    `db:"max_grade" json:"max_grade"`
}

// Allows reports whether the rule admits the given grade level.
func (r SubjectGradeRule) Allows(gradeLevel int) bool {
	return gradeLevel >= r.MinGrade && gradeLevel <= r.MaxGrade
}
