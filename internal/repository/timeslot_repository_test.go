package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arka-edu/timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func timeSlotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "branch_id", "day_of_week", "start_time", "end_time", "slot_type", "slot_order", "created_at", "updated_at"})
}

func TestTimeSlotRepositoryListByBranch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeSlotRepository(db)

	rows := timeSlotRows().
		AddRow("s1", "b1", 1, "08:00", "08:45", "REGULAR", 1, time.Now(), time.Now()).
		AddRow("s2", "b1", 1, "08:45", "09:00", "BREAK", 2, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, branch_id, day_of_week, start_time, end_time, slot_type, slot_order, created_at, updated_at FROM time_slots WHERE branch_id = $1 ORDER BY day_of_week ASC, slot_order ASC")).
		WithArgs("b1").
		WillReturnRows(rows)

	slots, err := repo.ListByBranch(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, models.SlotTypeBreak, slots[1].SlotType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSlotRepositoryFindByIDScopesBranch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeSlotRepository(db)

	mock.ExpectQuery("SELECT .+ FROM time_slots WHERE branch_id = \\$1 AND id = \\$2").
		WithArgs("b2", "s1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), nil, "b2", "s1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSlotRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeSlotRepository(db)

	mock.ExpectExec("INSERT INTO time_slots").
		WithArgs(sqlmock.AnyArg(), "b1", 1, "08:00", "08:45", "REGULAR", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slot := &models.TimeSlot{BranchID: "b1", DayOfWeek: 1, StartTime: "08:00", EndTime: "08:45", SlotType: models.SlotTypeRegular, SlotOrder: 1}
	require.NoError(t, repo.Create(context.Background(), slot))
	assert.NotEmpty(t, slot.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSlotRepositoryCountReferencingPeriods(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeSlotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_periods WHERE branch_id = $1 AND time_slot_id = $2")).
		WithArgs("b1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountReferencingPeriods(context.Background(), "b1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
