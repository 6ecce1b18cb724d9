package models

import "time"

// The directory entities are consumed read-only: the identity and roster
// services own them, the engine only resolves names and grade levels.

// Teacher represents an instructor record.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Section is a class group at a single grade level.
type Section struct {
	ID         string    `db:"id" json:"id"`
	BranchID   string    `db:"branch_id" json:"branch_id"`
	Name       string    `db:"name" json:"name"`
	GradeLevel int       `db:"grade_level" json:"grade_level"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Subject is a taught discipline.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
