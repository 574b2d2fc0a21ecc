package runstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nullptr0807/runhub/internal/core"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements Store on a gorm/sqlite database.
type GormStore struct {
	db *gorm.DB
}

// ensure GormStore implements the interface
var _ Store = (*GormStore)(nil)

// Open connects to the database and performs auto-migration.
func Open(dsn string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&core.Strategy{},
		&core.Run{},
		&core.DailyPnL{},
		&core.Parameter{},
		&core.Event{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &GormStore{db: db}, nil
}

// NewWithDB wraps an existing gorm connection (used by tests).
func NewWithDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (g *GormStore) CreateStrategy(ctx context.Context, s *core.Strategy) error {
	var count int64
	if err := g.db.WithContext(ctx).Model(&core.Strategy{}).
		Where("name = ?", s.Name).Count(&count).Error; err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if count > 0 {
		return core.WrapError(core.ErrAlreadyExists,
			fmt.Errorf("strategy %q", s.Name))
	}
	if err := g.db.WithContext(ctx).Create(s).Error; err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (g *GormStore) GetStrategy(ctx context.Context, id uint) (*core.Strategy, error) {
	var s core.Strategy
	err := g.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrStrategyNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &s, nil
}

func (g *GormStore) GetStrategyByName(ctx context.Context, name string) (*core.Strategy, error) {
	var s core.Strategy
	err := g.db.WithContext(ctx).Where("name = ?", name).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrStrategyNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &s, nil
}

func (g *GormStore) ListStrategies(ctx context.Context) ([]core.Strategy, error) {
	var strategies []core.Strategy
	if err := g.db.WithContext(ctx).Order("name").Find(&strategies).Error; err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return strategies, nil
}

func (g *GormStore) UpdateStrategy(ctx context.Context, s *core.Strategy) error {
	var count int64
	if err := g.db.WithContext(ctx).Model(&core.Strategy{}).
		Where("name = ? AND id <> ?", s.Name, s.ID).Count(&count).Error; err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if count > 0 {
		return core.WrapError(core.ErrAlreadyExists,
			fmt.Errorf("strategy %q", s.Name))
	}

	res := g.db.WithContext(ctx).Model(&core.Strategy{}).Where("id = ?", s.ID).
		Updates(map[string]any{
			"name":         s.Name,
			"description":  s.Description,
			"instrument":   s.Instrument,
			"account_size": s.AccountSize,
		})
	if res.Error != nil {
		return core.WrapError(core.ErrStorageFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrStrategyNotFound
	}
	return nil
}

func (g *GormStore) DeleteStrategy(ctx context.Context, id uint) error {
	res := g.db.WithContext(ctx).Delete(&core.Strategy{}, id)
	if res.Error != nil {
		return core.WrapError(core.ErrStorageFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrStrategyNotFound
	}
	return nil
}

func (g *GormStore) CountRuns(ctx context.Context, strategyID uint) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&core.Run{}).
		Where("strategy_id = ?", strategyID).Count(&count).Error
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	return count, nil
}

func (g *GormStore) CreateRun(ctx context.Context, run *core.Run, daily []core.DailyPnL, params []core.Parameter) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		for i := range daily {
			daily[i].RunID = run.ID
		}
		if len(daily) > 0 {
			if err := tx.CreateInBatches(daily, 200).Error; err != nil {
				return err
			}
		}
		for i := range params {
			params[i].RunID = run.ID
		}
		if len(params) > 0 {
			if err := tx.Create(&params).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (g *GormStore) GetRun(ctx context.Context, id string) (*core.Run, error) {
	var run core.Run
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &run, nil
}

// GetRuns fetches the given runs, preserving the requested order. A missing
// id yields ErrRunNotFound naming it.
func (g *GormStore) GetRuns(ctx context.Context, ids []string) ([]core.Run, error) {
	var runs []core.Run
	if err := g.db.WithContext(ctx).Where("id IN ?", ids).Find(&runs).Error; err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	byID := make(map[string]core.Run, len(runs))
	for _, r := range runs {
		byID[r.ID] = r
	}

	ordered := make([]core.Run, 0, len(ids))
	for _, id := range ids {
		run, ok := byID[id]
		if !ok {
			return nil, core.WrapError(core.ErrRunNotFound, fmt.Errorf("id %s", id))
		}
		ordered = append(ordered, run)
	}
	return ordered, nil
}

func (g *GormStore) ListRuns(ctx context.Context, filter ListFilter) ([]core.Run, error) {
	q := g.db.WithContext(ctx).Model(&core.Run{})

	if filter.StrategyID != 0 {
		q = q.Where("strategy_id = ?", filter.StrategyID)
	}
	if filter.BaselineOnly {
		q = q.Where("baseline = ?", true)
	}
	if !filter.From.IsZero() {
		q = q.Where("period_end >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("period_start <= ?", filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var runs []core.Run
	if err := q.Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return runs, nil
}

func (g *GormStore) UpdateRun(ctx context.Context, run *core.Run) error {
	res := g.db.WithContext(ctx).Model(&core.Run{}).Where("id = ?", run.ID).
		Updates(map[string]any{
			"label": run.Label,
			"notes": run.Notes,
		})
	if res.Error != nil {
		return core.WrapError(core.ErrStorageFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

func (g *GormStore) DeleteRun(ctx context.Context, id string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&core.Run{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrRunNotFound
		}
		if err := tx.Where("run_id = ?", id).Delete(&core.DailyPnL{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", id).Delete(&core.Parameter{}).Error; err != nil {
			return err
		}
		return tx.Where("run_id = ?", id).Delete(&core.Event{}).Error
	})
	if errors.Is(err, core.ErrRunNotFound) {
		return core.ErrRunNotFound
	}
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// SetBaseline switches the strategy's baseline to the given run. The clear
// and set happen in one transaction so two runs can never both be marked.
func (g *GormStore) SetBaseline(ctx context.Context, strategyID uint, runID string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&core.Run{}).
			Where("strategy_id = ? AND baseline = ?", strategyID, true).
			Update("baseline", false).Error; err != nil {
			return err
		}
		res := tx.Model(&core.Run{}).
			Where("id = ? AND strategy_id = ?", runID, strategyID).
			Update("baseline", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrRunNotFound
		}
		return nil
	})
	if errors.Is(err, core.ErrRunNotFound) {
		return core.ErrRunNotFound
	}
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (g *GormStore) ClearBaseline(ctx context.Context, runID string) error {
	res := g.db.WithContext(ctx).Model(&core.Run{}).
		Where("id = ?", runID).Update("baseline", false)
	if res.Error != nil {
		return core.WrapError(core.ErrStorageFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

func (g *GormStore) BaselineRun(ctx context.Context, strategyID uint) (*core.Run, error) {
	var run core.Run
	err := g.db.WithContext(ctx).
		Where("strategy_id = ? AND baseline = ?", strategyID, true).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &run, nil
}

func (g *GormStore) DailySeries(ctx context.Context, runID string) ([]core.DailyPnL, error) {
	var daily []core.DailyPnL
	err := g.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("date").Find(&daily).Error
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return daily, nil
}

func (g *GormStore) Parameters(ctx context.Context, runID string) ([]core.Parameter, error) {
	var params []core.Parameter
	err := g.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("name").Find(&params).Error
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return params, nil
}

func (g *GormStore) Events(ctx context.Context, runID string) ([]core.Event, error) {
	var events []core.Event
	err := g.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("occurred_at DESC, id DESC").Find(&events).Error
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return events, nil
}

func (g *GormStore) AppendEvent(ctx context.Context, event *core.Event) error {
	if err := g.db.WithContext(ctx).Create(event).Error; err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}
