package models

import "time"

// RoomType classifies a physical room.
type RoomType string

const (
	RoomTypeClassroom  RoomType = "CLASSROOM"
	RoomTypeLab        RoomType = "LAB"
	RoomTypeLibrary    RoomType = "LIBRARY"
	RoomTypeAuditorium RoomType = "AUDITORIUM"
	RoomTypeOffice     RoomType = "OFFICE"
	RoomTypeSports     RoomType = "SPORTS"
)

// Valid reports whether the room type is one of the closed set.
func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeClassroom, RoomTypeLab, RoomTypeLibrary, RoomTypeAuditorium, RoomTypeOffice, RoomTypeSports:
		return true
	}
	return false
}

// Room is a physical resource scoped to a branch. Code is unique per branch.
type Room struct {
	ID        string    `db:"id" json:"id"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Type      RoomType  `db:"type" json:"type"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Floor     int       `db:"floor" json:"floor"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RoomFilter captures filtering options for listing rooms.
type RoomFilter struct {
	Type     *RoomType
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
