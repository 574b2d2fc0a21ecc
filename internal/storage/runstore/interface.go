// internal/storage/runstore/interface.go
package runstore

import (
	"context"
	"time"

	"github.com/nullptr0807/runhub/internal/core"
)

// Store defines the interface for strategy run persistence.
type Store interface {
	// Strategies
	CreateStrategy(ctx context.Context, s *core.Strategy) error
	GetStrategy(ctx context.Context, id uint) (*core.Strategy, error)
	GetStrategyByName(ctx context.Context, name string) (*core.Strategy, error)
	ListStrategies(ctx context.Context) ([]core.Strategy, error)
	UpdateStrategy(ctx context.Context, s *core.Strategy) error
	DeleteStrategy(ctx context.Context, id uint) error
	CountRuns(ctx context.Context, strategyID uint) (int64, error)

	// Runs. CreateRun persists the run and its children in one transaction;
	// DeleteRun removes the run and cascades to children.
	CreateRun(ctx context.Context, run *core.Run, daily []core.DailyPnL, params []core.Parameter) error
	GetRun(ctx context.Context, id string) (*core.Run, error)
	GetRuns(ctx context.Context, ids []string) ([]core.Run, error)
	ListRuns(ctx context.Context, filter ListFilter) ([]core.Run, error)
	UpdateRun(ctx context.Context, run *core.Run) error
	DeleteRun(ctx context.Context, id string) error

	// SetBaseline clears any existing baseline for the strategy and marks the
	// given run, atomically. ClearBaseline unmarks the given run.
	SetBaseline(ctx context.Context, strategyID uint, runID string) error
	ClearBaseline(ctx context.Context, runID string) error
	BaselineRun(ctx context.Context, strategyID uint) (*core.Run, error)

	// Children
	DailySeries(ctx context.Context, runID string) ([]core.DailyPnL, error)
	Parameters(ctx context.Context, runID string) ([]core.Parameter, error)
	Events(ctx context.Context, runID string) ([]core.Event, error)
	AppendEvent(ctx context.Context, event *core.Event) error
}

// ListFilter defines criteria for listing runs.
type ListFilter struct {
	StrategyID   uint
	BaselineOnly bool
	From         time.Time // keep runs whose period ends on/after From
	To           time.Time // keep runs whose period starts on/before To
	Limit        int
	Offset       int
}
