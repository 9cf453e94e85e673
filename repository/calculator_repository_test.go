package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings/events"
	"earnings/models"
	"earnings/repository/testutil"
)

var testPeriod = models.PeriodFor(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC))

func TestPlatformRepository_GetAll(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewPlatformRepository(testDB.DB)
	ctx := context.Background()

	_, err := testDB.DB.Exec(ctx, `UPDATE calculator_platforms SET active = FALSE WHERE id = 'mondo'`)
	require.NoError(t, err)

	active, err := repo.GetAll(ctx, false)
	require.NoError(t, err)
	all, err := repo.GetAll(ctx, true)
	require.NoError(t, err)

	assert.Len(t, all, 20)
	assert.Len(t, active, 19)
	for _, p := range active {
		assert.NotEqual(t, "mondo", p.ID)
	}
}

func TestPayoutConfigRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewPayoutConfigRepository(testDB.DB)
	ctx := context.Background()

	admin := testutil.InsertUser(t, testDB.DB, testutil.CreateTestUser(models.RoleAdmin, "admin"))
	model := testutil.InsertUser(t, testDB.DB, testutil.CreateTestUser(models.RoleModel, "model"))

	t.Run("no config", func(t *testing.T) {
		cfg, err := repo.GetActive(ctx, model.ID)
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("create and read", func(t *testing.T) {
		cfg := testutil.CreateTestConfig(model.ID, admin.ID, "big7", "aw")
		pct := decimal.NewFromInt(70)
		cfg.PercentageOverride = &pct
		require.NoError(t, repo.Create(ctx, cfg))
		assert.NotZero(t, cfg.ID)

		got, err := repo.GetActive(ctx, model.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []string{"big7", "aw"}, got.EnabledPlatforms)
		require.NotNil(t, got.PercentageOverride)
		assert.True(t, pct.Equal(*got.PercentageOverride))
		assert.Nil(t, got.GroupID)
	})

	t.Run("new version supersedes the old one", func(t *testing.T) {
		require.NoError(t, repo.DeactivateForModel(ctx, model.ID))
		require.NoError(t, repo.Create(ctx, testutil.CreateTestConfig(model.ID, admin.ID, "superfoon")))

		got, err := repo.GetActive(ctx, model.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"superfoon"}, got.EnabledPlatforms)

		active, err := repo.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("two active versions are rejected", func(t *testing.T) {
		err := repo.Create(ctx, testutil.CreateTestConfig(model.ID, admin.ID))
		assert.Error(t, err)
	})
}

func TestModelValueRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewModelValueRepository(testDB.DB)
	ctx := context.Background()

	model := testutil.InsertUser(t, testDB.DB, testutil.CreateTestUser(models.RoleModel, "model"))

	value := &models.ModelValue{
		ModelID:    model.ID,
		PlatformID: "big7",
		PeriodDate: testPeriod.Date,
		Value:      decimal.RequireFromString("10.50"),
	}
	require.NoError(t, repo.Upsert(ctx, value))
	firstID := value.ID

	value.Value = decimal.RequireFromString("12.25")
	require.NoError(t, repo.Upsert(ctx, value))
	assert.Equal(t, firstID, value.ID)

	require.NoError(t, repo.Upsert(ctx, &models.ModelValue{
		ModelID:    model.ID,
		PlatformID: "aw",
		PeriodDate: testPeriod.Date,
		Value:      decimal.NewFromInt(3),
	}))

	values, err := repo.GetByModelAndPeriod(ctx, model.ID, testPeriod.Date)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "aw", values[0].PlatformID)
	assert.True(t, values[1].Value.Equal(decimal.RequireFromString("12.25")))

	other, err := repo.GetByModelAndPeriod(ctx, model.ID, testPeriod.Next().Date)
	require.NoError(t, err)
	assert.Empty(t, other)

	locked, err := repo.LockByModelAndPeriod(ctx, model.ID, testPeriod.Date)
	require.NoError(t, err)
	require.Len(t, locked, 2)

	// a value written after the read survives the reset
	late := &models.ModelValue{
		ModelID:    model.ID,
		PlatformID: "onlyfans",
		PeriodDate: testPeriod.Date,
		Value:      decimal.NewFromInt(200),
	}
	require.NoError(t, repo.Upsert(ctx, late))

	deleted, err := repo.DeleteByIDs(ctx, model.ID, []int64{locked[0].ID, locked[1].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := repo.GetByModelAndPeriod(ctx, model.ID, testPeriod.Date)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, late.ID, remaining[0].ID)

	deleted, err = repo.DeleteByIDs(ctx, uuid.New(), []int64{late.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestHistoryRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewHistoryRepository(testDB.DB)
	ctx := context.Background()

	model := testutil.InsertUser(t, testDB.DB, testutil.CreateTestUser(models.RoleModel, "model"))

	full := testutil.CreateTestHistoryRecord(model.ID, "big7", testPeriod, "150")
	usd := decimal.NewFromInt(120)
	cop := decimal.NewFromInt(468000)
	rate := decimal.NewFromInt(3900)
	one := decimal.NewFromInt(1)
	full.ValueUSDBruto = &usd
	full.ValueUSDModelo = &usd
	full.ValueCOPModelo = &cop
	full.RateUSDCOP = &rate
	full.RateEURUSD = &one
	full.RateGBPUSD = &one

	legacy := testutil.CreateTestHistoryRecord(model.ID, "aw", testPeriod, "40")

	t.Run("batch insert skips already archived rows", func(t *testing.T) {
		inserted, err := repo.CreateBatch(ctx, []*models.HistoryRecord{full, legacy})
		require.NoError(t, err)
		assert.Equal(t, int64(2), inserted)

		again := testutil.CreateTestHistoryRecord(model.ID, "big7", testPeriod, "999")
		inserted, err = repo.CreateBatch(ctx, []*models.HistoryRecord{again})
		require.NoError(t, err)
		assert.Zero(t, inserted)

		records, err := repo.List(ctx, models.HistoryFilter{ModelID: &model.ID})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "aw", records[0].PlatformID)
		assert.True(t, records[1].Value.Equal(decimal.NewFromInt(150)))
	})

	t.Run("filters", func(t *testing.T) {
		next := testPeriod.Next()
		_, err := repo.CreateBatch(ctx, []*models.HistoryRecord{
			testutil.CreateTestHistoryRecord(model.ID, "big7", next, "5"),
		})
		require.NoError(t, err)

		records, err := repo.List(ctx, models.HistoryFilter{PeriodDate: &next.Date, PeriodType: next.Type})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, next.Type, records[0].PeriodType)

		limited, err := repo.List(ctx, models.HistoryFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.True(t, limited[0].PeriodDate.Equal(next.Date))
	})

	t.Run("backfill only fills nulls", func(t *testing.T) {
		missing, err := repo.ListMissingRates(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, missing, 2)
		for _, rec := range missing {
			assert.NotEqual(t, full.ID, rec.ID)
		}

		target := missing[0]
		filled := decimal.NewFromInt(4000)
		target.RateUSDCOP = &filled
		target.RateEURUSD = &one
		target.RateGBPUSD = &one
		target.ValueUSDBruto = &usd
		target.ValueUSDModelo = &usd
		target.ValueCOPModelo = &cop
		require.NoError(t, repo.FillMissing(ctx, target))

		remaining, err := repo.ListMissingRates(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.NotEqual(t, target.ID, remaining[0].ID)

		afterCursor, err := repo.ListMissingRates(ctx, remaining[0].ID, 10)
		require.NoError(t, err)
		assert.Empty(t, afterCursor)
	})
}

func TestFrozenPlatformRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewFrozenPlatformRepository(testDB.DB)
	ctx := context.Background()

	first := testutil.InsertUser(t, testDB.DB, testutil.CreateTestUser(models.RoleModel, "first"))
	second := testutil.InsertUser(t, testDB.DB, testutil.CreateTestUser(models.RoleModel, "second"))

	t.Run("freeze is idempotent and ignores unknown platforms", func(t *testing.T) {
		n, err := repo.Freeze(ctx, testPeriod.Date, first.ID, []string{"big7", "aw", "nope"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.Freeze(ctx, testPeriod.Date, first.ID, []string{"big7", "aw"})
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = repo.Freeze(ctx, testPeriod.Date, second.ID, []string{"big7"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("list by period and model", func(t *testing.T) {
		all, err := repo.List(ctx, testPeriod.Date, nil)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		mine, err := repo.List(ctx, testPeriod.Date, &first.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		other, err := repo.List(ctx, testPeriod.Next().Date, nil)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("delete selected platforms of one model", func(t *testing.T) {
		n, err := repo.Delete(ctx, testPeriod.Date, &first.ID, []string{"aw"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("delete everything", func(t *testing.T) {
		n, err := repo.Delete(ctx, testPeriod.Date, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestClosureStatusRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewClosureStatusRepository(testDB.DB)
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		status, err := repo.Get(ctx, testPeriod)
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("one row per period", func(t *testing.T) {
		status := &models.ClosureStatus{
			PeriodDate: testPeriod.Date,
			PeriodType: testPeriod.Type,
			Status:     models.ClosureStateEarlyFreezing,
		}
		require.NoError(t, repo.Upsert(ctx, status))
		firstID := status.ID

		status.Status = models.ClosureStateCompleted
		status.Metadata = map[string]interface{}{"models": 3}
		require.NoError(t, repo.Upsert(ctx, status))
		assert.Equal(t, firstID, status.ID)

		got, err := repo.Get(ctx, testPeriod)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsClosed())
		assert.Equal(t, float64(3), got.Metadata["models"])
	})

	t.Run("lock inside a transaction", func(t *testing.T) {
		tx, err := testDB.DB.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		got, err := newClosureStatusRepositoryWithTx(tx).GetForUpdate(ctx, testPeriod)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, testPeriod.Type, got.PeriodType)

		shared, err := newClosureStatusRepositoryWithTx(tx).GetForShare(ctx, testPeriod)
		require.NoError(t, err)
		require.NotNil(t, shared)
		assert.True(t, shared.IsClosing())
	})
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	model := testutil.InsertUser(t, testDB.DB, testutil.CreateTestUser(models.RoleModel, "model"))

	bus := newRecordingBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus.bus)

	t.Run("rollback discards writes and events", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))

		_, err := uow.FrozenPlatformRepository().Freeze(ctx, testPeriod.Date, model.ID, []string{"big7"})
		require.NoError(t, err)
		uow.EventBus().Publish(frozenEvent())
		require.NoError(t, uow.Rollback())

		records, err := NewFrozenPlatformRepository(testDB.DB).List(ctx, testPeriod.Date, nil)
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Never(t, bus.received, 200*time.Millisecond, 20*time.Millisecond)
	})

	t.Run("commit persists and emits", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))

		_, err := uow.FrozenPlatformRepository().Freeze(ctx, testPeriod.Date, model.ID, []string{"big7"})
		require.NoError(t, err)
		uow.EventBus().Publish(frozenEvent())
		require.NoError(t, uow.Commit())

		records, err := NewFrozenPlatformRepository(testDB.DB).List(ctx, testPeriod.Date, nil)
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Eventually(t, bus.received, time.Second, 10*time.Millisecond)
	})

	t.Run("getters panic before begin", func(t *testing.T) {
		uow := factory.Create()
		assert.Panics(t, func() { uow.HistoryRepository() })
		assert.NoError(t, uow.Rollback())
	})

	t.Run("double begin", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		assert.Error(t, uow.Begin(ctx))
	})
}

func frozenEvent() events.PlatformsFrozenEvent {
	return events.PlatformsFrozenEvent{Period: testPeriod, Rule: "test", Platforms: []string{"big7"}, Models: 1, Locks: 1}
}

type recordingBus struct {
	bus   *events.Bus
	mu    sync.Mutex
	count int
}

func newRecordingBus() *recordingBus {
	r := &recordingBus{bus: events.NewBus()}
	r.bus.Subscribe(events.EventTypePlatformsFrozen, func(ctx context.Context, event events.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.count++
	})
	return r
}

func (r *recordingBus) received() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count > 0
}
