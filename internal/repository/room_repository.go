package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arka-edu/timetable-api/internal/models"
)

// RoomRepository provides persistence for branch rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a new room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const roomColumns = `id, branch_id, code, name, type, capacity, floor, is_active, created_at, updated_at`

// List returns rooms of a branch with optional filtering and pagination.
func (r *RoomRepository) List(ctx context.Context, branchID string, filter models.RoomFilter) ([]models.Room, int, error) {
	base := "FROM rooms WHERE branch_id = $1"
	args := []interface{}{branchID}
	var conditions []string

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY code ASC LIMIT %d OFFSET %d", roomColumns, base, size, offset)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}

	return rooms, total, nil
}

// FindByID loads a room by id within a branch. A room belonging to another
// branch yields sql.ErrNoRows, never the foreign row.
func (r *RoomRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE branch_id = $1 AND id = $2`, roomColumns)
	var room models.Room
	if err := sqlx.GetContext(ctx, r.exec(exec), &room, query, branchID, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ExistsByCode reports whether a branch already uses the room code.
func (r *RoomRepository) ExistsByCode(ctx context.Context, branchID, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM rooms WHERE branch_id = $1 AND code = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, branchID, code); err != nil {
		return false, fmt.Errorf("check room code: %w", err)
	}
	return exists, nil
}

// Create stores a new room.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, branch_id, code, name, type, capacity, floor, is_active, created_at, updated_at)
VALUES (:id, :branch_id, :code, :name, :type, :capacity, :floor, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}
