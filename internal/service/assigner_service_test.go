package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arka-edu/timetable-api/internal/models"
	appErrors "github.com/arka-edu/timetable-api/pkg/errors"
)

func newTxProviderMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

type stubAssignerPeriods struct {
	existing  *models.TimetablePeriod
	byID      map[string]*models.TimetablePeriod
	bySection []models.TimetablePeriod

	insertErr   error
	updateErr   error
	inserted    []*models.TimetablePeriod
	updated     []*models.TimetablePeriod
	deactivated []string
}

func (s *stubAssignerPeriods) FindByID(ctx context.Context, exec sqlx.ExtContext, branchID, id string) (*models.TimetablePeriod, error) {
	if p, ok := s.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAssignerPeriods) FindActiveBySectionSlot(ctx context.Context, exec sqlx.ExtContext, branchID, sectionID, timeSlotID string) (*models.TimetablePeriod, error) {
	if s.existing == nil {
		return nil, nil
	}
	cp := *s.existing
	return &cp, nil
}

func (s *stubAssignerPeriods) ListActiveBySection(ctx context.Context, branchID, sectionID string) ([]models.TimetablePeriod, error) {
	return s.bySection, nil
}

func (s *stubAssignerPeriods) Insert(ctx context.Context, exec sqlx.ExtContext, period *models.TimetablePeriod) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	period.ID = "p-new"
	period.IsActive = true
	cp := *period
	s.inserted = append(s.inserted, &cp)
	return nil
}

func (s *stubAssignerPeriods) Update(ctx context.Context, exec sqlx.ExtContext, period *models.TimetablePeriod) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	cp := *period
	s.updated = append(s.updated, &cp)
	return nil
}

func (s *stubAssignerPeriods) Deactivate(ctx context.Context, branchID, id string) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

type stubPeriodValidator struct {
	err   error
	calls []PeriodProposal
}

func (s *stubPeriodValidator) Validate(ctx context.Context, exec sqlx.ExtContext, p PeriodProposal) (*models.TimeSlot, error) {
	s.calls = append(s.calls, p)
	if s.err != nil {
		return nil, s.err
	}
	return &models.TimeSlot{ID: p.TimeSlotID, BranchID: p.BranchID, SlotType: models.SlotTypeRegular}, nil
}

type stubGridCache struct {
	grid    *models.SectionGrid
	hit     bool
	sets    []string
	deletes []string
}

func (s *stubGridCache) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.hit {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.SectionGrid) = *s.grid
	return nil
}

func (s *stubGridCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.sets = append(s.sets, key)
	return nil
}

func (s *stubGridCache) Delete(ctx context.Context, key string) {
	s.deletes = append(s.deletes, key)
}

func assignRequest() AssignPeriodRequest {
	return AssignPeriodRequest{
		SectionID:  "sec-1",
		SubjectID:  "subj-1",
		TeacherID:  "t1",
		TimeSlotID: "slot-1",
	}
}

func newAssigner(db *sqlx.DB, periods *stubAssignerPeriods, conflicts *stubPeriodValidator, cache *stubGridCache, cfg AssignerConfig) *AssignerService {
	slots := &stubSlotReader{slots: map[string]*models.TimeSlot{
		"slot-1": {ID: "slot-1", BranchID: "b1", DayOfWeek: 1, SlotOrder: 1, StartTime: "08:00", EndTime: "08:45", SlotType: models.SlotTypeRegular},
		"slot-2": {ID: "slot-2", BranchID: "b1", DayOfWeek: 1, SlotOrder: 2, StartTime: "08:45", EndTime: "09:00", SlotType: models.SlotTypeBreak},
	}}
	return NewAssignerService(db, periods, conflicts, slots, cache, validator.New(), zap.NewNop(), nil, cfg)
}

func TestAssignPeriodCreatesNew(t *testing.T) {
	db, mock, cleanup := newTxProviderMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	periods := &stubAssignerPeriods{}
	conflicts := &stubPeriodValidator{}
	cache := &stubGridCache{}
	svc := newAssigner(db, periods, conflicts, cache, AssignerConfig{CacheEnabled: true})

	period, err := svc.AssignPeriod(context.Background(), "b1", assignRequest())
	require.NoError(t, err)
	assert.Equal(t, "p-new", period.ID)
	assert.True(t, period.IsActive)
	require.Len(t, conflicts.calls, 1)
	assert.Empty(t, conflicts.calls[0].PeriodID)
	assert.Len(t, periods.inserted, 1)
	assert.Contains(t, cache.deletes, "timetable:grid:b1:sec-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPeriodIdenticalRepeatIsNoOp(t *testing.T) {
	db, mock, cleanup := newTxProviderMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	periods := &stubAssignerPeriods{existing: &models.TimetablePeriod{
		ID: "p-1", BranchID: "b1", SectionID: "sec-1", SubjectID: "subj-1", TeacherID: "t1", TimeSlotID: "slot-1", IsActive: true,
	}}
	conflicts := &stubPeriodValidator{}
	svc := newAssigner(db, periods, conflicts, &stubGridCache{}, AssignerConfig{})

	period, err := svc.AssignPeriod(context.Background(), "b1", assignRequest())
	require.NoError(t, err)
	assert.Equal(t, "p-1", period.ID)
	assert.Empty(t, conflicts.calls)
	assert.Empty(t, periods.inserted)
	assert.Empty(t, periods.updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPeriodUpdatesInPlace(t *testing.T) {
	db, mock, cleanup := newTxProviderMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	periods := &stubAssignerPeriods{existing: &models.TimetablePeriod{
		ID: "p-1", BranchID: "b1", SectionID: "sec-1", SubjectID: "subj-old", TeacherID: "t9", TimeSlotID: "slot-1", IsActive: true,
	}}
	conflicts := &stubPeriodValidator{}
	svc := newAssigner(db, periods, conflicts, &stubGridCache{}, AssignerConfig{})

	period, err := svc.AssignPeriod(context.Background(), "b1", assignRequest())
	require.NoError(t, err)
	assert.Equal(t, "p-1", period.ID)
	assert.Equal(t, "subj-1", period.SubjectID)
	assert.Equal(t, "t1", period.TeacherID)
	// The proposal excludes the period being replaced from occupancy checks.
	require.Len(t, conflicts.calls, 1)
	assert.Equal(t, "p-1", conflicts.calls[0].PeriodID)
	assert.Len(t, periods.updated, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPeriodConflictNotRetried(t *testing.T) {
	db, mock, cleanup := newTxProviderMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	periods := &stubAssignerPeriods{}
	conflicts := &stubPeriodValidator{err: appErrors.Clone(appErrors.ErrTeacherDoubleBooked, "")}
	svc := newAssigner(db, periods, conflicts, &stubGridCache{}, AssignerConfig{MaxRetries: 3})

	_, err := svc.AssignPeriod(context.Background(), "b1", assignRequest())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTeacherDoubleBooked))
	assert.Len(t, conflicts.calls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPeriodRetryBudgetExhausted(t *testing.T) {
	db, mock, cleanup := newTxProviderMock(t)
	defer cleanup()
	// Initial attempt plus two retries, every one racing into the unique index.
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	periods := &stubAssignerPeriods{insertErr: &pq.Error{Code: "23505"}}
	conflicts := &stubPeriodValidator{}
	svc := newAssigner(db, periods, conflicts, &stubGridCache{}, AssignerConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})

	_, err := svc.AssignPeriod(context.Background(), "b1", assignRequest())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConcurrentModification))
	assert.Len(t, conflicts.calls, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPeriodValidationError(t *testing.T) {
	db, _, cleanup := newTxProviderMock(t)
	defer cleanup()

	svc := newAssigner(db, &stubAssignerPeriods{}, &stubPeriodValidator{}, &stubGridCache{}, AssignerConfig{})

	_, err := svc.AssignPeriod(context.Background(), "b1", AssignPeriodRequest{SectionID: "sec-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestDeactivatePeriod(t *testing.T) {
	db, _, cleanup := newTxProviderMock(t)
	defer cleanup()

	periods := &stubAssignerPeriods{byID: map[string]*models.TimetablePeriod{
		"p-1": {ID: "p-1", BranchID: "b1", SectionID: "sec-1", IsActive: true},
	}}
	cache := &stubGridCache{}
	svc := newAssigner(db, periods, &stubPeriodValidator{}, cache, AssignerConfig{})

	require.NoError(t, svc.DeactivatePeriod(context.Background(), "b1", "p-1"))
	assert.Equal(t, []string{"p-1"}, periods.deactivated)
	assert.Contains(t, cache.deletes, "timetable:grid:b1:sec-1")
}

func TestDeactivatePeriodAlreadyInactive(t *testing.T) {
	db, _, cleanup := newTxProviderMock(t)
	defer cleanup()

	periods := &stubAssignerPeriods{byID: map[string]*models.TimetablePeriod{
		"p-1": {ID: "p-1", BranchID: "b1", IsActive: false},
	}}
	svc := newAssigner(db, periods, &stubPeriodValidator{}, &stubGridCache{}, AssignerConfig{})

	require.NoError(t, svc.DeactivatePeriod(context.Background(), "b1", "p-1"))
	assert.Empty(t, periods.deactivated)
}

func TestDeactivatePeriodNotFound(t *testing.T) {
	db, _, cleanup := newTxProviderMock(t)
	defer cleanup()

	svc := newAssigner(db, &stubAssignerPeriods{}, &stubPeriodValidator{}, &stubGridCache{}, AssignerConfig{})

	err := svc.DeactivatePeriod(context.Background(), "b1", "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestGetGridAttachesPeriodsToRegularCells(t *testing.T) {
	db, _, cleanup := newTxProviderMock(t)
	defer cleanup()

	periods := &stubAssignerPeriods{bySection: []models.TimetablePeriod{
		{ID: "p-1", BranchID: "b1", SectionID: "sec-1", TimeSlotID: "slot-1", IsActive: true},
		{ID: "p-ghost", BranchID: "b1", SectionID: "sec-1", TimeSlotID: "slot-2", IsActive: true},
	}}
	cache := &stubGridCache{}
	svc := newAssigner(db, periods, &stubPeriodValidator{}, cache, AssignerConfig{CacheEnabled: true})

	grid, err := svc.GetGrid(context.Background(), "b1", "sec-1")
	require.NoError(t, err)
	assert.Len(t, grid.Cells, 2)

	for _, cell := range grid.Cells {
		if cell.SlotType == models.SlotTypeRegular {
			require.NotNil(t, cell.Period)
			assert.Equal(t, "p-1", cell.Period.ID)
		} else {
			// Break and assembly cells never carry a period.
			assert.Nil(t, cell.Period)
		}
	}
	assert.Contains(t, cache.sets, "timetable:grid:b1:sec-1")
}

func TestGetGridServedFromCache(t *testing.T) {
	db, _, cleanup := newTxProviderMock(t)
	defer cleanup()

	cached := &models.SectionGrid{BranchID: "b1", SectionID: "sec-1", Cells: []models.GridCell{{DayOfWeek: 1, SlotOrder: 1}}}
	cache := &stubGridCache{hit: true, grid: cached}
	svc := newAssigner(db, &stubAssignerPeriods{}, &stubPeriodValidator{}, cache, AssignerConfig{CacheEnabled: true})

	grid, err := svc.GetGrid(context.Background(), "b1", "sec-1")
	require.NoError(t, err)
	assert.Equal(t, cached.Cells, grid.Cells)
	assert.Empty(t, cache.sets)
}
