package core

import "time"

// Strategy is a trading strategy that runs are recorded against.
type Strategy struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description"`
	Instrument  string    `json:"instrument"`
	AccountSize float64   `json:"account_size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunMetrics holds the summary statistics computed from a run's daily series.
type RunMetrics struct {
	NetProfit    float64 `json:"net_profit"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	WinRate      float64 `json:"win_rate"`
	TotalTrades  int     `json:"total_trades"`
	WinningDays  int     `json:"winning_days"`
	LosingDays   int     `json:"losing_days"`
	TradingDays  int     `json:"trading_days"`
}

// Run is one recorded backtest execution of a strategy.
type Run struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	StrategyID  uint       `gorm:"index;not null" json:"strategy_id"`
	Label       string     `json:"label"`
	SourceFile  string     `json:"source_file"`
	PeriodStart time.Time  `gorm:"type:date" json:"period_start"`
	PeriodEnd   time.Time  `gorm:"type:date" json:"period_end"`
	Baseline    bool       `gorm:"index" json:"baseline"`
	Notes       string     `json:"notes"`
	Metrics     RunMetrics `gorm:"embedded" json:"metrics"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DailyPnL is one trading day of a run.
type DailyPnL struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	RunID         string    `gorm:"size:36;not null;uniqueIndex:idx_run_date" json:"run_id"`
	Date          time.Time `gorm:"type:date;not null;uniqueIndex:idx_run_date" json:"date"`
	NetProfit     float64   `json:"net_profit"`
	Trades        int       `json:"trades"`
	WinningTrades int       `json:"winning_trades"`
}

// Parameter is a strategy input recorded with a run.
type Parameter struct {
	ID    uint   `gorm:"primaryKey" json:"-"`
	RunID string `gorm:"size:36;not null;uniqueIndex:idx_run_param" json:"run_id"`
	Name  string `gorm:"not null;uniqueIndex:idx_run_param" json:"name"`
	Value string `json:"value"`
}

// EventType classifies run lifecycle events.
type EventType string

const (
	EventImported        EventType = "imported"
	EventUpdated         EventType = "updated"
	EventNote            EventType = "note"
	EventBaselineSet     EventType = "baseline_set"
	EventBaselineCleared EventType = "baseline_cleared"
	EventMerged          EventType = "merged"
)

// Event is an audit-trail entry for a run.
type Event struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"size:36;not null;index" json:"run_id"`
	Type       EventType `gorm:"not null" json:"type"`
	Message    string    `json:"message"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`
}

// Overlaps reports whether the periods of two runs share at least one day.
func (r Run) Overlaps(other Run) bool {
	return !r.PeriodStart.After(other.PeriodEnd) && !other.PeriodStart.After(r.PeriodEnd)
}
