package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/batch"
	"github.com/starford/dagaz/internal/state"
)

// Handler holds API route handlers.
type Handler struct {
	exec *batch.Executor
	agg  *state.Aggregator
}

// NewHandler creates a new Handler.
func NewHandler(exec *batch.Executor, agg *state.Aggregator) *Handler {
	return &Handler{exec: exec, agg: agg}
}

// GraphBatch handles POST /api/graph/batch: an ordered sequence of graph
// operations applied as one transaction. The batch outcome is always
// reported with status 200; Success in the body distinguishes commit from
// rollback.
func (h *Handler) GraphBatch(w http.ResponseWriter, r *http.Request) {
	ops, ok := decodeBatchBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.exec.ApplyGraph(r.Context(), ops))
}

// DisplayBatch handles POST /api/display/batch.
func (h *Handler) DisplayBatch(w http.ResponseWriter, r *http.Request) {
	ops, ok := decodeBatchBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.exec.ApplyDisplay(r.Context(), ops))
}

func decodeBatchBody(w http.ResponseWriter, r *http.Request) ([]json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return nil, false
	}
	if len(req.Operations) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("operations must not be empty"))
		return nil, false
	}
	return req.Operations, true
}

// State handles GET /api/state: the full application state (graph + plans).
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	snap, err := h.agg.AppState(r.Context())
	if err != nil {
		slog.Error("app state failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Tasks handles GET /api/tasks: nodes, dependencies, and the cycle flag.
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	snap, err := h.agg.TaskState(r.Context())
	if err != nil {
		slog.Error("task state failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetNode handles GET /api/nodes/{id}: a single node with derived fields.
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	node, err := h.agg.GetNode(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get node failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, node)
}
