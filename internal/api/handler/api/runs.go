// internal/api/handler/api/runs.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nullptr0807/runhub/internal/api/response"
	"github.com/nullptr0807/runhub/internal/core"
	"github.com/nullptr0807/runhub/internal/hub"
	"github.com/nullptr0807/runhub/internal/storage/runstore"
)

// Uploads are small text files; the form is capped well above any real export.
const maxUploadBytes = 16 << 20

// RunHub defines the orchestrator operations the runs handler needs.
type RunHub interface {
	ImportRun(ctx context.Context, req hub.ImportRequest) (*core.Run, error)
	UpdateRun(ctx context.Context, id string, label, notes *string) (*core.Run, error)
	DeleteRun(ctx context.Context, id string) error
	SetBaseline(ctx context.Context, runID string) (*core.Run, error)
	ClearBaseline(ctx context.Context, runID string) error
	RunPnL(ctx context.Context, runID string) (*hub.PnLSeries, error)
	Compare(ctx context.Context, idA, idB string) (*hub.Comparison, error)
}

// RunStore defines the read-only store operations the runs handler needs.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*core.Run, error)
	ListRuns(ctx context.Context, filter runstore.ListFilter) ([]core.Run, error)
	Parameters(ctx context.Context, runID string) ([]core.Parameter, error)
	Events(ctx context.Context, runID string) ([]core.Event, error)
}

// RunsHandler handles run API requests.
type RunsHandler struct {
	hub   RunHub
	store RunStore
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(h RunHub, store RunStore) *RunsHandler {
	return &RunsHandler{hub: h, store: store}
}

// UploadRequest is the JSON request body for importing a run.
type UploadRequest struct {
	StrategyID   uint   `json:"strategy_id,omitempty"`
	StrategyName string `json:"strategy_name,omitempty"`
	Label        string `json:"label,omitempty"`
	SourceFile   string `json:"source_file,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Payload      string `json:"payload"`
}

// PatchRequest is the request body for updating a run.
type PatchRequest struct {
	Label *string `json:"label"`
	Notes *string `json:"notes"`
}

// Upload imports an export file as a new run. It accepts either a
// multipart form with a "file" field or a JSON body with an inline payload.
func (h *RunsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUpload(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, err))
		return
	}

	run, err := h.hub.ImportRun(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, run)
}

func decodeUpload(r *http.Request) (hub.ImportRequest, error) {
	ct := r.Header.Get("Content-Type")

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return hub.ImportRequest{}, fmt.Errorf("parsing form: %w", err)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			return hub.ImportRequest{}, fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()

		payload, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return hub.ImportRequest{}, fmt.Errorf("reading file: %w", err)
		}

		var strategyID uint
		if raw := r.FormValue("strategy_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				return hub.ImportRequest{}, fmt.Errorf("invalid strategy_id %q", raw)
			}
			strategyID = uint(id)
		}

		return hub.ImportRequest{
			StrategyID:   strategyID,
			StrategyName: r.FormValue("strategy_name"),
			Label:        r.FormValue("label"),
			Notes:        r.FormValue("notes"),
			SourceFile:   header.Filename,
			Payload:      payload,
		}, nil
	}

	var req UploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		return hub.ImportRequest{}, fmt.Errorf("decoding body: %w", err)
	}
	return hub.ImportRequest{
		StrategyID:   req.StrategyID,
		StrategyName: req.StrategyName,
		Label:        req.Label,
		SourceFile:   req.SourceFile,
		Notes:        req.Notes,
		Payload:      []byte(req.Payload),
	}, nil
}

// List returns runs matching the query filters.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, err))
		return
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func listFilter(r *http.Request) (runstore.ListFilter, error) {
	q := r.URL.Query()
	var filter runstore.ListFilter

	if raw := q.Get("strategy_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, fmt.Errorf("invalid strategy_id %q", raw)
		}
		filter.StrategyID = uint(id)
	}
	filter.BaselineOnly = q.Get("baseline") == "true"

	for _, span := range []struct {
		key string
		dst *time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		if raw := q.Get(span.key); raw != "" {
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return filter, fmt.Errorf("invalid %s date %q", span.key, raw)
			}
			*span.dst = d
		}
	}

	for _, num := range []struct {
		key string
		dst *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		if raw := q.Get(num.key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return filter, fmt.Errorf("invalid %s %q", num.key, raw)
			}
			*num.dst = n
		}
	}

	return filter, nil
}

// ListForStrategy returns all runs of one strategy, newest first.
func (h *RunsHandler) ListForStrategy(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("invalid strategy id %q", raw)))
		return
	}

	runs, err := h.store.ListRuns(r.Context(), runstore.ListFilter{StrategyID: uint(id)})
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"strategy_id": uint(id),
		"runs":        runs,
		"count":       len(runs),
	})
}

// RunDetail is a run with its recorded parameters inlined.
type RunDetail struct {
	core.Run
	Parameters []core.Parameter `json:"parameters"`
}

// Get returns one run by id, with its parameters.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	params, err := h.store.Parameters(r.Context(), run.ID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, RunDetail{Run: *run, Parameters: params})
}

// Patch updates a run's label or notes.
func (h *RunsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, err))
		return
	}

	run, err := h.hub.UpdateRun(r.Context(), r.PathValue("id"), req.Label, req.Notes)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, run)
}

// Delete removes a run and its children.
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.hub.DeleteRun(r.Context(), id); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"deleted": true,
	})
}

// PnL returns the run's daily series and equity curve.
func (h *RunsHandler) PnL(w http.ResponseWriter, r *http.Request) {
	series, err := h.hub.RunPnL(r.Context(), r.PathValue("id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, series)
}

// Parameters returns the run's recorded parameters.
func (h *RunsHandler) Parameters(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.GetRun(r.Context(), id); err != nil {
		response.FromError(w, err)
		return
	}

	params, err := h.store.Parameters(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"run_id":     id,
		"parameters": params,
	})
}

// Events returns the run's audit trail, newest first.
func (h *RunsHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.GetRun(r.Context(), id); err != nil {
		response.FromError(w, err)
		return
	}

	events, err := h.store.Events(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"run_id": id,
		"events": events,
	})
}

// SetBaseline marks the run as its strategy's baseline.
func (h *RunsHandler) SetBaseline(w http.ResponseWriter, r *http.Request) {
	run, err := h.hub.SetBaseline(r.Context(), r.PathValue("id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, run)
}

// ClearBaseline removes the baseline mark from the run.
func (h *RunsHandler) ClearBaseline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.hub.ClearBaseline(r.Context(), id); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"baseline": false,
	})
}

// Compare diffs the run against another run of the same strategy.
func (h *RunsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.hub.Compare(r.Context(), r.PathValue("id"), r.PathValue("other"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cmp)
}
