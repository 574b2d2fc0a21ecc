package hub

import (
	"context"

	"github.com/nullptr0807/runhub/internal/core"
	"github.com/nullptr0807/runhub/internal/merge"
	"github.com/nullptr0807/runhub/internal/stats"
)

// MetricDelta is one summary metric compared across two runs.
type MetricDelta struct {
	Name  string  `json:"name"`
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	Delta float64 `json:"delta"` // B - A
}

// Comparison is a metric-by-metric and parameter diff of two runs.
type Comparison struct {
	RunA           core.Run              `json:"run_a"`
	RunB           core.Run              `json:"run_b"`
	Metrics        []MetricDelta         `json:"metrics"`
	ParameterDiffs []merge.ParameterDiff `json:"parameter_diffs"`
}

// PnLSeries is a run's daily series with its equity curve.
type PnLSeries struct {
	RunID  string              `json:"run_id"`
	Daily  []core.DailyPnL     `json:"daily"`
	Equity []stats.EquityPoint `json:"equity_curve"`
}

// RunPnL returns the daily series and equity curve for a run.
func (h *Hub) RunPnL(ctx context.Context, runID string) (*PnLSeries, error) {
	if _, err := h.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	daily, err := h.store.DailySeries(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &PnLSeries{
		RunID:  runID,
		Daily:  daily,
		Equity: stats.EquityCurve(daily),
	}, nil
}

// Compare diffs two runs of the same strategy, metric by metric, with run A
// as the reference for the parameter diff.
func (h *Hub) Compare(ctx context.Context, idA, idB string) (*Comparison, error) {
	runs, params, err := h.loadMergeSet(ctx, []string{idA, idB})
	if err != nil {
		return nil, err
	}

	report, err := merge.Validate(runs, params)
	if err != nil {
		return nil, err
	}

	a, b := runs[0], runs[1]
	return &Comparison{
		RunA:           a,
		RunB:           b,
		Metrics:        metricDeltas(a.Metrics, b.Metrics),
		ParameterDiffs: report.ParameterDiffs,
	}, nil
}

func metricDeltas(a, b core.RunMetrics) []MetricDelta {
	rows := []struct {
		name string
		a, b float64
	}{
		{"net_profit", a.NetProfit, b.NetProfit},
		{"gross_profit", a.GrossProfit, b.GrossProfit},
		{"gross_loss", a.GrossLoss, b.GrossLoss},
		{"profit_factor", a.ProfitFactor, b.ProfitFactor},
		{"max_drawdown", a.MaxDrawdown, b.MaxDrawdown},
		{"sharpe_ratio", a.SharpeRatio, b.SharpeRatio},
		{"win_rate", a.WinRate, b.WinRate},
		{"total_trades", float64(a.TotalTrades), float64(b.TotalTrades)},
		{"trading_days", float64(a.TradingDays), float64(b.TradingDays)},
	}

	deltas := make([]MetricDelta, len(rows))
	for i, r := range rows {
		deltas[i] = MetricDelta{Name: r.name, A: r.a, B: r.b, Delta: r.b - r.a}
	}
	return deltas
}
