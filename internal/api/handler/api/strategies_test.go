// internal/api/handler/api/strategies_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/nullptr0807/runhub/internal/api/response"
	"github.com/nullptr0807/runhub/internal/core"
	"github.com/nullptr0807/runhub/internal/hub"
	"github.com/nullptr0807/runhub/internal/storage/runstore"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*hub.Hub, *runstore.GormStore) {
	t.Helper()
	store, err := runstore.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return hub.New(store, nil, nil, nil, zap.NewNop()), store
}

func TestStrategiesHandler_Create(t *testing.T) {
	h, _ := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	body := bytes.NewBufferString(`{"name": "orb-breakout", "instrument": "MNQ"}`)
	req := httptest.NewRequest("POST", "/api/v1/strategies", body)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["name"] != "orb-breakout" {
		t.Errorf("expected name in response, got %v", data["name"])
	}
	if data["instrument"] != "MNQ" {
		t.Errorf("expected instrument in response, got %v", data["instrument"])
	}
}

func TestStrategiesHandler_Create_EmptyName(t *testing.T) {
	h, _ := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	body := bytes.NewBufferString(`{"name": ""}`)
	req := httptest.NewRequest("POST", "/api/v1/strategies", body)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStrategiesHandler_Create_DuplicateName(t *testing.T) {
	h, store := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	if err := store.CreateStrategy(context.Background(), &core.Strategy{Name: "dup"}); err != nil {
		t.Fatalf("seeding strategy: %v", err)
	}

	body := bytes.NewBufferString(`{"name": "dup"}`)
	req := httptest.NewRequest("POST", "/api/v1/strategies", body)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestStrategiesHandler_List(t *testing.T) {
	h, store := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	store.CreateStrategy(context.Background(), &core.Strategy{Name: "a"})
	store.CreateStrategy(context.Background(), &core.Strategy{Name: "b"})

	req := httptest.NewRequest("GET", "/api/v1/strategies", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["count"].(float64) != 2 {
		t.Errorf("expected 2 strategies, got %v", data["count"])
	}
}

func TestStrategiesHandler_Get(t *testing.T) {
	h, store := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	s := &core.Strategy{Name: "a"}
	store.CreateStrategy(context.Background(), s)

	req := httptest.NewRequest("GET", "/api/v1/strategies/1", nil)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStrategiesHandler_Get_BaselineRunID(t *testing.T) {
	h, _ := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	run, err := h.ImportRun(context.Background(), hub.ImportRequest{
		StrategyName: "a",
		Payload:      []byte("Date,Net Profit,Trades\n2024-01-02,10.00,1\n"),
	})
	if err != nil {
		t.Fatalf("importing run: %v", err)
	}
	if _, err := h.SetBaseline(context.Background(), run.ID); err != nil {
		t.Fatalf("setting baseline: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/strategies/1", nil)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	handler.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["baseline_run_id"] != run.ID {
		t.Errorf("expected baseline run id %s, got %v", run.ID, data["baseline_run_id"])
	}
}

func TestStrategiesHandler_Get_NotFound(t *testing.T) {
	h, _ := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	req := httptest.NewRequest("GET", "/api/v1/strategies/42", nil)
	req.SetPathValue("id", "42")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestStrategiesHandler_Get_BadID(t *testing.T) {
	h, _ := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	req := httptest.NewRequest("GET", "/api/v1/strategies/abc", nil)
	req.SetPathValue("id", "abc")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStrategiesHandler_Update(t *testing.T) {
	h, store := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	s := &core.Strategy{Name: "old-name"}
	store.CreateStrategy(context.Background(), s)

	body := bytes.NewBufferString(`{"name": "new-name", "description": "tuned"}`)
	req := httptest.NewRequest("PATCH", "/api/v1/strategies/1", body)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()

	handler.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	got, err := store.GetStrategy(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if got.Name != "new-name" || got.Description != "tuned" {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestStrategiesHandler_Delete_WithRuns(t *testing.T) {
	h, store := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	s := &core.Strategy{Name: "busy"}
	store.CreateStrategy(context.Background(), s)
	_, err := h.ImportRun(context.Background(), hub.ImportRequest{
		StrategyID: s.ID,
		Payload:    []byte("Date,Net Profit,Trades\n2024-01-02,10.00,1\n"),
	})
	if err != nil {
		t.Fatalf("importing run: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/api/v1/strategies/1", nil)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while runs exist, got %d", w.Code)
	}
}

func TestStrategiesHandler_Delete(t *testing.T) {
	h, store := newTestHub(t)
	handler := NewStrategiesHandler(h.Store(), h)

	s := &core.Strategy{Name: "idle"}
	store.CreateStrategy(context.Background(), s)

	req := httptest.NewRequest("DELETE", "/api/v1/strategies/1", nil)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, err := store.GetStrategy(context.Background(), s.ID); err == nil {
		t.Error("expected strategy to be gone")
	}
}
