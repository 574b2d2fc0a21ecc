// internal/api/handler/api/strategies.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nullptr0807/runhub/internal/api/response"
	"github.com/nullptr0807/runhub/internal/core"
)

// StrategyStore defines the store operations the strategies handler needs.
type StrategyStore interface {
	CreateStrategy(ctx context.Context, s *core.Strategy) error
	GetStrategy(ctx context.Context, id uint) (*core.Strategy, error)
	ListStrategies(ctx context.Context) ([]core.Strategy, error)
	UpdateStrategy(ctx context.Context, s *core.Strategy) error
	CountRuns(ctx context.Context, strategyID uint) (int64, error)
	BaselineRun(ctx context.Context, strategyID uint) (*core.Run, error)
}

// StrategyDeleter removes a strategy, refusing while runs reference it.
type StrategyDeleter interface {
	DeleteStrategy(ctx context.Context, id uint) error
}

// StrategiesHandler handles strategy CRUD requests.
type StrategiesHandler struct {
	store   StrategyStore
	deleter StrategyDeleter
}

// NewStrategiesHandler creates a new strategies handler.
func NewStrategiesHandler(store StrategyStore, deleter StrategyDeleter) *StrategiesHandler {
	return &StrategiesHandler{store: store, deleter: deleter}
}

// StrategyRequest is the request body for creating or updating a strategy.
type StrategyRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Instrument  string   `json:"instrument,omitempty"`
	AccountSize *float64 `json:"account_size,omitempty"`
}

// StrategyView is a strategy with its run count and current baseline.
type StrategyView struct {
	core.Strategy
	RunCount      int64  `json:"run_count"`
	BaselineRunID string `json:"baseline_run_id,omitempty"`
}

// List returns all strategies with their run counts.
func (h *StrategiesHandler) List(w http.ResponseWriter, r *http.Request) {
	strategies, err := h.store.ListStrategies(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	views := make([]StrategyView, 0, len(strategies))
	for _, s := range strategies {
		count, err := h.store.CountRuns(r.Context(), s.ID)
		if err != nil {
			response.FromError(w, err)
			return
		}
		views = append(views, StrategyView{Strategy: s, RunCount: count})
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"strategies": views,
		"count":      len(views),
	})
}

// Create registers a new strategy.
func (h *StrategiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req StrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, err))
		return
	}
	if req.Name == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("name is required")))
		return
	}

	strategy := &core.Strategy{
		Name:        req.Name,
		Description: req.Description,
		Instrument:  req.Instrument,
	}
	if req.AccountSize != nil {
		strategy.AccountSize = *req.AccountSize
	}
	if err := h.store.CreateStrategy(r.Context(), strategy); err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, strategy)
}

// Get returns one strategy by id.
func (h *StrategiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}

	strategy, err := h.store.GetStrategy(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	count, err := h.store.CountRuns(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	view := StrategyView{Strategy: *strategy, RunCount: count}
	if baseline, err := h.store.BaselineRun(r.Context(), id); err == nil {
		view.BaselineRunID = baseline.ID
	} else if !errors.Is(err, core.ErrRunNotFound) {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, view)
}

// Update changes a strategy's name or description.
func (h *StrategiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}

	var req StrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, err))
		return
	}

	strategy, err := h.store.GetStrategy(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if req.Name != "" {
		strategy.Name = req.Name
	}
	if req.Description != "" {
		strategy.Description = req.Description
	}
	if req.Instrument != "" {
		strategy.Instrument = req.Instrument
	}
	if req.AccountSize != nil {
		strategy.AccountSize = *req.AccountSize
	}
	if err := h.store.UpdateStrategy(r.Context(), strategy); err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, strategy)
}

// Delete removes a strategy without runs.
func (h *StrategiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}

	if err := h.deleter.DeleteStrategy(r.Context(), id); err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"deleted": true,
	})
}

func strategyID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("invalid strategy id %q", raw)))
		return 0, false
	}
	return uint(id), true
}
