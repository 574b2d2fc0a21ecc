// internal/api/handler/api/merge.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nullptr0807/runhub/internal/api/response"
	"github.com/nullptr0807/runhub/internal/core"
	"github.com/nullptr0807/runhub/internal/merge"
)

// MergeHub defines the orchestrator operations the merge handler needs.
type MergeHub interface {
	ValidateMerge(ctx context.Context, runIDs []string) (*merge.Report, error)
	MergeRuns(ctx context.Context, runIDs []string, label string, force bool) (*core.Run, *merge.Report, error)
}

// MergeHandler handles merge validation and execution requests.
type MergeHandler struct {
	hub MergeHub
}

// NewMergeHandler creates a new merge handler.
func NewMergeHandler(h MergeHub) *MergeHandler {
	return &MergeHandler{hub: h}
}

// MergeRequest is the request body for validating or executing a merge.
type MergeRequest struct {
	RunIDs []string `json:"run_ids"`
	Label  string   `json:"label,omitempty"`
	Force  bool     `json:"force,omitempty"`
}

// MergeResult pairs the created run with the validation report.
type MergeResult struct {
	Run    *core.Run     `json:"run"`
	Report *merge.Report `json:"report"`
}

// Validate reports whether the given runs can be merged, without merging.
func (h *MergeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, err))
		return
	}

	report, err := h.hub.ValidateMerge(r.Context(), req.RunIDs)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, report)
}

// Merge combines the given runs into a new run. Rejections caused by
// overlapping periods or parameter differences still return the report so the
// caller can see what blocked the merge.
func (h *MergeHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, err))
		return
	}

	run, report, err := h.hub.MergeRuns(r.Context(), req.RunIDs, req.Label, req.Force)
	if err != nil {
		if report != nil && isMergeRejection(err) {
			writeRejection(w, err, report)
			return
		}
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, MergeResult{Run: run, Report: report})
}

func isMergeRejection(err error) bool {
	return errors.Is(err, core.ErrMergeOverlap) || errors.Is(err, core.ErrParameterMismatch)
}

// writeRejection keeps the error envelope but attaches the report, so clients
// do not need a second validate round-trip to learn why the merge failed.
func writeRejection(w http.ResponseWriter, err error, report *merge.Report) {
	detail := response.ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]any{
		"error":  detail,
		"report": report,
	})
}
