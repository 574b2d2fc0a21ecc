package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nullptr0807/runhub/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return store
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func seedStrategy(t *testing.T, store *GormStore, name string) *core.Strategy {
	t.Helper()
	s := &core.Strategy{Name: name, Instrument: "ES"}
	require.NoError(t, store.CreateStrategy(context.Background(), s))
	return s
}

func seedRun(t *testing.T, store *GormStore, strategyID uint, start, end string) *core.Run {
	t.Helper()
	run := &core.Run{
		ID:          uuid.NewString(),
		StrategyID:  strategyID,
		Label:       "test run",
		PeriodStart: date(t, start),
		PeriodEnd:   date(t, end),
	}
	require.NoError(t, store.CreateRun(context.Background(), run, nil, nil))
	return run
}

func TestGormStore_StrategyCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := seedStrategy(t, store, "orb-breakout")

	got, err := store.GetStrategy(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "orb-breakout", got.Name)

	got.Description = "opening range breakout"
	require.NoError(t, store.UpdateStrategy(ctx, got))

	byName, err := store.GetStrategyByName(ctx, "orb-breakout")
	require.NoError(t, err)
	assert.Equal(t, "opening range breakout", byName.Description)

	all, err := store.ListStrategies(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteStrategy(ctx, s.ID))
	_, err = store.GetStrategy(ctx, s.ID)
	assert.ErrorIs(t, err, core.ErrStrategyNotFound)
}

func TestGormStore_StrategyDuplicateName(t *testing.T) {
	store := newTestStore(t)
	seedStrategy(t, store, "orb-breakout")

	err := store.CreateStrategy(context.Background(), &core.Strategy{Name: "orb-breakout"})
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
}

func TestGormStore_StrategyRename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := seedStrategy(t, store, "old-name")
	seedStrategy(t, store, "taken")

	s.Name = "new-name"
	s.Description = "tuned"
	require.NoError(t, store.UpdateStrategy(ctx, s))

	got, err := store.GetStrategy(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-name", got.Name)
	assert.Equal(t, "tuned", got.Description)

	_, err = store.GetStrategyByName(ctx, "old-name")
	assert.ErrorIs(t, err, core.ErrStrategyNotFound)

	// Renaming onto another strategy's name is rejected
	s.Name = "taken"
	assert.ErrorIs(t, store.UpdateStrategy(ctx, s), core.ErrAlreadyExists)
}

func TestGormStore_StrategyNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetStrategy(ctx, 999)
	assert.ErrorIs(t, err, core.ErrStrategyNotFound)
	assert.ErrorIs(t, store.UpdateStrategy(ctx, &core.Strategy{ID: 999}), core.ErrStrategyNotFound)
	assert.ErrorIs(t, store.DeleteStrategy(ctx, 999), core.ErrStrategyNotFound)
}

func TestGormStore_CreateRunWithChildren(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := seedStrategy(t, store, "orb-breakout")

	run := &core.Run{
		ID:          uuid.NewString(),
		StrategyID:  s.ID,
		PeriodStart: date(t, "2024-01-02"),
		PeriodEnd:   date(t, "2024-01-03"),
		Metrics:     core.RunMetrics{NetProfit: 150, TradingDays: 2},
	}
	daily := []core.DailyPnL{
		{Date: date(t, "2024-01-02"), NetProfit: 100, Trades: 3},
		{Date: date(t, "2024-01-03"), NetProfit: 50, Trades: 2},
	}
	params := []core.Parameter{
		{Name: "StopLossTicks", Value: "12"},
		{Name: "ProfitTargetTicks", Value: "24"},
	}
	require.NoError(t, store.CreateRun(ctx, run, daily, params))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Metrics.NetProfit)

	series, err := store.DailySeries(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 100.0, series[0].NetProfit)

	gotParams, err := store.Parameters(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, gotParams, 2)
	assert.Equal(t, "ProfitTargetTicks", gotParams[0].Name) // ordered by name
}

func TestGormStore_GetRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := seedStrategy(t, store, "orb-breakout")

	r1 := seedRun(t, store, s.ID, "2024-01-01", "2024-03-31")
	r2 := seedRun(t, store, s.ID, "2024-04-01", "2024-06-30")

	runs, err := store.GetRuns(ctx, []string{r2.ID, r1.ID})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, r2.ID, runs[0].ID) // request order preserved

	_, err = store.GetRuns(ctx, []string{r1.ID, "missing"})
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestGormStore_ListRunsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s1 := seedStrategy(t, store, "orb-breakout")
	s2 := seedStrategy(t, store, "mean-revert")

	r1 := seedRun(t, store, s1.ID, "2024-01-01", "2024-03-31")
	seedRun(t, store, s1.ID, "2024-04-01", "2024-06-30")
	seedRun(t, store, s2.ID, "2024-01-01", "2024-06-30")

	runs, err := store.ListRuns(ctx, ListFilter{StrategyID: s1.ID})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// Period overlap window covering only the first run
	runs, err = store.ListRuns(ctx, ListFilter{
		StrategyID: s1.ID,
		From:       date(t, "2024-02-01"),
		To:         date(t, "2024-03-01"),
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r1.ID, runs[0].ID)

	require.NoError(t, store.SetBaseline(ctx, s1.ID, r1.ID))
	runs, err = store.ListRuns(ctx, ListFilter{BaselineOnly: true})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r1.ID, runs[0].ID)

	runs, err = store.ListRuns(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestGormStore_BaselineSwitch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := seedStrategy(t, store, "orb-breakout")

	r1 := seedRun(t, store, s.ID, "2024-01-01", "2024-03-31")
	r2 := seedRun(t, store, s.ID, "2024-04-01", "2024-06-30")

	require.NoError(t, store.SetBaseline(ctx, s.ID, r1.ID))
	require.NoError(t, store.SetBaseline(ctx, s.ID, r2.ID))

	// Only one baseline may remain after the switch
	baseline, err := store.BaselineRun(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, r2.ID, baseline.ID)

	runs, err := store.ListRuns(ctx, ListFilter{StrategyID: s.ID, BaselineOnly: true})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, store.ClearBaseline(ctx, r2.ID))
	_, err = store.BaselineRun(ctx, s.ID)
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestGormStore_SetBaselineWrongStrategy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s1 := seedStrategy(t, store, "orb-breakout")
	s2 := seedStrategy(t, store, "mean-revert")

	run := seedRun(t, store, s1.ID, "2024-01-01", "2024-03-31")
	assert.ErrorIs(t, store.SetBaseline(ctx, s2.ID, run.ID), core.ErrRunNotFound)
}

func TestGormStore_DeleteRunCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := seedStrategy(t, store, "orb-breakout")

	run := &core.Run{
		ID:          uuid.NewString(),
		StrategyID:  s.ID,
		PeriodStart: date(t, "2024-01-02"),
		PeriodEnd:   date(t, "2024-01-02"),
	}
	daily := []core.DailyPnL{{Date: date(t, "2024-01-02"), NetProfit: 10}}
	params := []core.Parameter{{Name: "StopLossTicks", Value: "12"}}
	require.NoError(t, store.CreateRun(ctx, run, daily, params))
	require.NoError(t, store.AppendEvent(ctx, &core.Event{
		RunID: run.ID, Type: core.EventImported, OccurredAt: time.Now(),
	}))

	require.NoError(t, store.DeleteRun(ctx, run.ID))

	_, err := store.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, core.ErrRunNotFound)

	series, err := store.DailySeries(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, series)

	gotParams, err := store.Parameters(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, gotParams)

	events, err := store.Events(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGormStore_EventsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := seedStrategy(t, store, "orb-breakout")
	run := seedRun(t, store, s.ID, "2024-01-01", "2024-03-31")

	base := time.Now().Add(-time.Hour)
	require.NoError(t, store.AppendEvent(ctx, &core.Event{
		RunID: run.ID, Type: core.EventImported, OccurredAt: base,
	}))
	require.NoError(t, store.AppendEvent(ctx, &core.Event{
		RunID: run.ID, Type: core.EventBaselineSet, OccurredAt: base.Add(time.Minute),
	}))

	events, err := store.Events(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, core.EventBaselineSet, events[0].Type)
}

func TestGormStore_CountRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := seedStrategy(t, store, "orb-breakout")
	seedRun(t, store, s.ID, "2024-01-01", "2024-03-31")
	seedRun(t, store, s.ID, "2024-04-01", "2024-06-30")

	count, err := store.CountRuns(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
