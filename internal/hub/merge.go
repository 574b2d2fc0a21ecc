package hub

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nullptr0807/runhub/internal/core"
	"github.com/nullptr0807/runhub/internal/merge"
	"github.com/nullptr0807/runhub/internal/notifier/webhook"
	"github.com/nullptr0807/runhub/internal/stats"
	"github.com/nullptr0807/runhub/internal/storage/archive"
	"go.uber.org/zap"
)

// ValidateMerge fetches the candidate runs and reports whether they can be
// combined.
func (h *Hub) ValidateMerge(ctx context.Context, runIDs []string) (*merge.Report, error) {
	runs, params, err := h.loadMergeSet(ctx, runIDs)
	if err != nil {
		return nil, err
	}
	return merge.Validate(runs, params)
}

// MergeRuns validates and, if permitted, creates a new run covering the union
// of the source runs' daily series. Parameter differences block the merge
// unless force is set; overlapping periods always block it.
func (h *Hub) MergeRuns(ctx context.Context, runIDs []string, label string, force bool) (*core.Run, *merge.Report, error) {
	runs, params, err := h.loadMergeSet(ctx, runIDs)
	if err != nil {
		return nil, nil, err
	}

	report, err := merge.Validate(runs, params)
	if err != nil {
		return nil, nil, err
	}

	if !report.Mergeable {
		h.recordMerge("rejected_overlap")
		return nil, report, core.WrapError(core.ErrMergeOverlap,
			fmt.Errorf("%d overlapping pairs", len(report.Overlaps)))
	}
	if len(report.ParameterDiffs) > 0 && !force {
		h.recordMerge("rejected_parameters")
		return nil, report, core.WrapError(core.ErrParameterMismatch,
			fmt.Errorf("%d parameter differences; pass force to merge anyway", len(report.ParameterDiffs)))
	}

	series := make([][]core.DailyPnL, 0, len(runs))
	for _, r := range runs {
		daily, err := h.store.DailySeries(ctx, r.ID)
		if err != nil {
			return nil, nil, err
		}
		series = append(series, daily)
	}
	combined := merge.CombineDaily(series...)

	if label = strings.TrimSpace(label); label == "" {
		label = fmt.Sprintf("Merge of %d runs", len(runs))
	}

	merged := &core.Run{
		ID:          uuid.NewString(),
		StrategyID:  report.StrategyID,
		Label:       label,
		PeriodStart: combined[0].Date,
		PeriodEnd:   combined[len(combined)-1].Date,
		Metrics:     stats.Compute(combined),
	}

	// The merged run inherits the reference run's parameters.
	refParams := make([]core.Parameter, 0, len(params[report.ReferenceRun]))
	for _, p := range params[report.ReferenceRun] {
		refParams = append(refParams, core.Parameter{Name: p.Name, Value: p.Value})
	}

	daily := make([]core.DailyPnL, len(combined))
	for i, d := range combined {
		daily[i] = core.DailyPnL{
			Date:          d.Date,
			NetProfit:     d.NetProfit,
			Trades:        d.Trades,
			WinningTrades: d.WinningTrades,
		}
	}

	if err := h.store.CreateRun(ctx, merged, daily, refParams); err != nil {
		h.recordMerge("error")
		return nil, report, err
	}

	if h.archive != nil {
		key := archive.RunKey(merged.StrategyID, merged.ID)
		if err := h.archive.Write(ctx, key, renderExport(daily, refParams)); err != nil {
			h.logger.Warn("archiving merged run failed", zap.String("key", key), zap.Error(err))
		}
	}

	sources := strings.Join(runIDs, ", ")
	h.appendEvent(ctx, merged.ID, core.EventMerged,
		fmt.Sprintf("created from runs %s", sources))
	for _, r := range runs {
		h.appendEvent(ctx, r.ID, core.EventMerged,
			fmt.Sprintf("merged into run %s", merged.ID))
	}

	h.recordMerge("ok")
	h.notify(ctx, webhook.Event{
		Type:       webhook.EventRunsMerged,
		StrategyID: merged.StrategyID,
		RunID:      merged.ID,
		Label:      merged.Label,
		Message:    fmt.Sprintf("merged runs %s", sources),
	})

	return merged, report, nil
}

func (h *Hub) loadMergeSet(ctx context.Context, runIDs []string) ([]core.Run, map[string][]core.Parameter, error) {
	if len(runIDs) < 2 {
		return nil, nil, core.WrapError(core.ErrValidation,
			fmt.Errorf("merge needs at least 2 run ids"))
	}
	seen := make(map[string]struct{}, len(runIDs))
	for _, id := range runIDs {
		if _, dup := seen[id]; dup {
			return nil, nil, core.WrapError(core.ErrValidation,
				fmt.Errorf("duplicate run id %s", id))
		}
		seen[id] = struct{}{}
	}

	runs, err := h.store.GetRuns(ctx, runIDs)
	if err != nil {
		return nil, nil, err
	}

	params := make(map[string][]core.Parameter, len(runs))
	for _, r := range runs {
		p, err := h.store.Parameters(ctx, r.ID)
		if err != nil {
			return nil, nil, err
		}
		params[r.ID] = p
	}
	return runs, params, nil
}

func (h *Hub) recordMerge(status string) {
	if h.metrics != nil {
		h.metrics.RecordMerge(status)
	}
}

// renderExport writes a merged series back into the upload format so the
// archive always holds a re-importable payload.
func renderExport(daily []core.DailyPnL, params []core.Parameter) []byte {
	var b strings.Builder
	for _, p := range params {
		fmt.Fprintf(&b, "# %s=%s\n", p.Name, p.Value)
	}
	b.WriteString("Date,Net Profit,Trades,Winning Trades\n")
	for _, d := range daily {
		fmt.Fprintf(&b, "%s,%.2f,%d,%d\n",
			d.Date.Format("2006-01-02"), d.NetProfit, d.Trades, d.WinningTrades)
	}
	return []byte(b.String())
}
