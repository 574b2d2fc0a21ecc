// Package stats computes run summary statistics from a daily P&L series.
package stats

import (
	"math"
	"time"

	"github.com/nullptr0807/runhub/internal/core"
)

// tradingDaysPerYear is used to annualize the Sharpe ratio.
const tradingDaysPerYear = 252

// EquityPoint is one point of the cumulative equity curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// Compute derives summary metrics from a daily series. The series is assumed
// sorted by date (as the ingest parser and store return it).
func Compute(daily []core.DailyPnL) core.RunMetrics {
	if len(daily) == 0 {
		return core.RunMetrics{}
	}

	m := core.RunMetrics{TradingDays: len(daily)}

	for _, d := range daily {
		m.NetProfit += d.NetProfit
		m.TotalTrades += d.Trades
		switch {
		case d.NetProfit > 0:
			m.GrossProfit += d.NetProfit
			m.WinningDays++
		case d.NetProfit < 0:
			m.GrossLoss += d.NetProfit
			m.LosingDays++
		}
	}

	if decided := m.WinningDays + m.LosingDays; decided > 0 {
		m.WinRate = float64(m.WinningDays) / float64(decided) * 100
	}
	if m.GrossLoss < 0 {
		m.ProfitFactor = m.GrossProfit / -m.GrossLoss
	}

	m.MaxDrawdown = maxDrawdown(daily)
	m.SharpeRatio = sharpeRatio(daily)

	return m
}

// EquityCurve returns the running cumulative profit per day.
func EquityCurve(daily []core.DailyPnL) []EquityPoint {
	curve := make([]EquityPoint, 0, len(daily))
	var equity float64
	for _, d := range daily {
		equity += d.NetProfit
		curve = append(curve, EquityPoint{Date: d.Date, Equity: equity})
	}
	return curve
}

// maxDrawdown finds the largest peak-to-trough decline of the equity curve,
// reported as a positive magnitude.
func maxDrawdown(daily []core.DailyPnL) float64 {
	var equity, peak, maxDD float64
	for _, d := range daily {
		equity += d.NetProfit
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio computes the annualized risk-adjusted return of the daily
// profits. Risk-free rate is taken as 0.
func sharpeRatio(daily []core.DailyPnL) float64 {
	if len(daily) < 2 {
		return 0
	}

	var sum float64
	for _, d := range daily {
		sum += d.NetProfit
	}
	mean := sum / float64(len(daily))

	var variance float64
	for _, d := range daily {
		variance += (d.NetProfit - mean) * (d.NetProfit - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(daily)-1))

	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(tradingDaysPerYear)
}
