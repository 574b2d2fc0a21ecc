// Package hub owns the business rules of the run store: imports, the
// single-baseline rule, merges, and the fan-out to archive and webhooks.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nullptr0807/runhub/internal/core"
	"github.com/nullptr0807/runhub/internal/ingest"
	"github.com/nullptr0807/runhub/internal/metrics"
	"github.com/nullptr0807/runhub/internal/notifier/webhook"
	"github.com/nullptr0807/runhub/internal/stats"
	"github.com/nullptr0807/runhub/internal/storage/archive"
	"github.com/nullptr0807/runhub/internal/storage/runstore"
	"go.uber.org/zap"
)

// Hub is the application orchestrator.
type Hub struct {
	store    runstore.Store
	archive  archive.Storage
	notifier *webhook.Notifier
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// New creates a Hub. archive, notifier, and metrics may be nil; the
// corresponding side effects are skipped.
func New(store runstore.Store, arch archive.Storage, notifier *webhook.Notifier, reg *metrics.Registry, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		store:    store,
		archive:  arch,
		notifier: notifier,
		metrics:  reg,
		logger:   logger,
	}
}

// Store exposes the underlying store for read-only handler queries.
func (h *Hub) Store() runstore.Store {
	return h.store
}

// ImportRequest describes a run upload.
type ImportRequest struct {
	StrategyID   uint
	StrategyName string // used when StrategyID is 0; unknown names create the strategy
	Label        string
	SourceFile   string
	Notes        string
	Payload      []byte
}

// ImportRun parses an export payload and persists it as a new run.
func (h *Hub) ImportRun(ctx context.Context, req ImportRequest) (*core.Run, error) {
	start := time.Now()
	run, err := h.importRun(ctx, req)
	if h.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		h.metrics.RecordImport(status, time.Since(start).Seconds())
	}
	return run, err
}

func (h *Hub) importRun(ctx context.Context, req ImportRequest) (*core.Run, error) {
	if len(req.Payload) == 0 {
		return nil, core.WrapError(core.ErrValidation, fmt.Errorf("payload is empty"))
	}

	strategy, err := h.resolveStrategy(ctx, req)
	if err != nil {
		return nil, err
	}

	export, err := ingest.Parse(req.Payload)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = req.SourceFile
	}
	if label == "" {
		label = fmt.Sprintf("%s %s to %s", strategy.Name,
			export.PeriodStart.Format("2006-01-02"), export.PeriodEnd.Format("2006-01-02"))
	}

	run := &core.Run{
		ID:          uuid.NewString(),
		StrategyID:  strategy.ID,
		Label:       label,
		SourceFile:  req.SourceFile,
		Notes:       req.Notes,
		PeriodStart: export.PeriodStart,
		PeriodEnd:   export.PeriodEnd,
		Metrics:     stats.Compute(export.Daily),
	}

	if err := h.store.CreateRun(ctx, run, export.Daily, export.Parameters); err != nil {
		return nil, err
	}

	if h.archive != nil {
		key := archive.RunKey(strategy.ID, run.ID)
		if err := h.archive.Write(ctx, key, req.Payload); err != nil {
			// The run row is already committed; a failed archive write is
			// logged rather than unwinding the import.
			h.logger.Error("archiving raw payload failed",
				zap.String("run_id", run.ID),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	h.appendEvent(ctx, run.ID, core.EventImported,
		fmt.Sprintf("imported %d trading days from %s", run.Metrics.TradingDays, displayName(req.SourceFile)))

	h.notify(ctx, webhook.Event{
		Type:       webhook.EventRunImported,
		StrategyID: strategy.ID,
		RunID:      run.ID,
		Label:      run.Label,
		Message:    fmt.Sprintf("net profit %.2f over %d days", run.Metrics.NetProfit, run.Metrics.TradingDays),
	})

	h.logger.Info("run imported",
		zap.String("run_id", run.ID),
		zap.String("strategy", strategy.Name),
		zap.Int("trading_days", run.Metrics.TradingDays),
		zap.Float64("net_profit", run.Metrics.NetProfit),
	)

	return run, nil
}

func (h *Hub) resolveStrategy(ctx context.Context, req ImportRequest) (*core.Strategy, error) {
	if req.StrategyID != 0 {
		return h.store.GetStrategy(ctx, req.StrategyID)
	}

	name := strings.TrimSpace(req.StrategyName)
	if name == "" {
		return nil, core.WrapError(core.ErrValidation,
			fmt.Errorf("strategy_id or strategy_name is required"))
	}

	strategy, err := h.store.GetStrategyByName(ctx, name)
	if err == nil {
		return strategy, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	strategy = &core.Strategy{Name: name}
	if err := h.store.CreateStrategy(ctx, strategy); err != nil {
		return nil, err
	}
	h.logger.Info("strategy created on import", zap.String("name", name))
	return strategy, nil
}

// UpdateRun changes a run's label and notes.
func (h *Hub) UpdateRun(ctx context.Context, id string, label, notes *string) (*core.Run, error) {
	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	if label != nil {
		run.Label = strings.TrimSpace(*label)
	}
	if notes != nil {
		run.Notes = *notes
	}
	if err := h.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	h.appendEvent(ctx, run.ID, core.EventUpdated, "label or notes updated")
	return run, nil
}

// DeleteRun removes a run, its children, and the archived payload.
func (h *Hub) DeleteRun(ctx context.Context, id string) error {
	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		return err
	}

	if err := h.store.DeleteRun(ctx, id); err != nil {
		return err
	}

	if h.archive != nil {
		key := archive.RunKey(run.StrategyID, run.ID)
		if err := h.archive.Delete(ctx, key); err != nil {
			h.logger.Warn("deleting archived payload failed",
				zap.String("key", key), zap.Error(err))
		}
	}

	h.notify(ctx, webhook.Event{
		Type:       webhook.EventRunDeleted,
		StrategyID: run.StrategyID,
		RunID:      run.ID,
		Label:      run.Label,
	})

	h.logger.Info("run deleted", zap.String("run_id", id))
	return nil
}

// SetBaseline designates the run as its strategy's baseline, displacing any
// previous baseline.
func (h *Hub) SetBaseline(ctx context.Context, runID string) (*core.Run, error) {
	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	previous, err := h.store.BaselineRun(ctx, run.StrategyID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	if err := h.store.SetBaseline(ctx, run.StrategyID, runID); err != nil {
		return nil, err
	}
	run.Baseline = true

	if previous != nil && previous.ID != runID {
		h.appendEvent(ctx, previous.ID, core.EventBaselineCleared,
			fmt.Sprintf("displaced by run %s", runID))
	}
	h.appendEvent(ctx, runID, core.EventBaselineSet, "designated baseline")

	if h.metrics != nil {
		h.metrics.RecordBaselineSwitch()
	}
	h.notify(ctx, webhook.Event{
		Type:       webhook.EventBaselineSet,
		StrategyID: run.StrategyID,
		RunID:      runID,
		Label:      run.Label,
	})

	h.logger.Info("baseline set",
		zap.String("run_id", runID),
		zap.Uint("strategy_id", run.StrategyID),
	)
	return run, nil
}

// ClearBaseline removes the baseline designation from the run.
func (h *Hub) ClearBaseline(ctx context.Context, runID string) error {
	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if !run.Baseline {
		return core.WrapError(core.ErrConflict,
			fmt.Errorf("run %s is not the baseline", runID))
	}

	if err := h.store.ClearBaseline(ctx, runID); err != nil {
		return err
	}

	h.appendEvent(ctx, runID, core.EventBaselineCleared, "baseline cleared")
	if h.metrics != nil {
		h.metrics.RecordBaselineSwitch()
	}
	h.notify(ctx, webhook.Event{
		Type:       webhook.EventBaselineCleared,
		StrategyID: run.StrategyID,
		RunID:      runID,
		Label:      run.Label,
	})
	return nil
}

// DeleteStrategy removes a strategy; rejected while runs still reference it.
func (h *Hub) DeleteStrategy(ctx context.Context, id uint) error {
	count, err := h.store.CountRuns(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return core.WrapError(core.ErrConflict,
			fmt.Errorf("strategy has %d runs; delete them first", count))
	}
	return h.store.DeleteStrategy(ctx, id)
}

func (h *Hub) appendEvent(ctx context.Context, runID string, typ core.EventType, msg string) {
	err := h.store.AppendEvent(ctx, &core.Event{
		RunID:      runID,
		Type:       typ,
		Message:    msg,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("recording event failed",
			zap.String("run_id", runID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

func (h *Hub) notify(ctx context.Context, ev webhook.Event) {
	if h.notifier == nil || !h.notifier.Enabled() {
		return
	}
	err := h.notifier.Send(ctx, ev)
	if h.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		h.metrics.RecordWebhookDelivery(status)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrRunNotFound) || errors.Is(err, core.ErrStrategyNotFound)
}

func displayName(sourceFile string) string {
	if sourceFile == "" {
		return "upload"
	}
	return sourceFile
}
