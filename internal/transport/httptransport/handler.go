package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/awmpietro/golang-workflow-engine-case/internal/app"
	"github.com/awmpietro/golang-workflow-engine-case/internal/transport/rundto"
)

type Handler struct {
	svc app.WorkflowService
}

func NewHandler(svc app.WorkflowService) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the graph endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/graph/create", h.CreateGraph)
	mux.HandleFunc("/graph/run", h.StartRun)
	mux.HandleFunc("/graph/run_sync", h.RunSync)
	mux.HandleFunc("/graph/state/", h.RunState)
}

func (h *Handler) CreateGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in rundto.CreateGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
		return
	}

	var graphID string
	var err error
	if in.GraphDOT != "" {
		graphID, err = h.svc.CreateGraphFromDOT(r.Context(), in.GraphDOT)
	} else {
		graphID, err = h.svc.CreateGraph(r.Context(), in.Definition())
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "create graph failed", "details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, rundto.CreateGraphResponse{GraphID: graphID})
}

func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in rundto.StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
		return
	}

	runID, err := h.svc.StartRun(r.Context(), in.GraphID, in.InitialState)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, startRunErrorBody(err))
		return
	}

	writeJSON(w, http.StatusOK, rundto.StartRunResponse{RunID: runID})
}

func (h *Handler) RunSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in rundto.StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
		return
	}

	run, err := h.svc.RunSync(r.Context(), in.GraphID, in.InitialState)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, startRunErrorBody(err))
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) RunState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/graph/state/")
	if runID == "" || strings.Contains(runID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "run_id is required"})
		return
	}

	run, ok, err := h.svc.GetRun(r.Context(), runID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "load run failed", "details": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "run_id not found"})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func startRunErrorBody(err error) map[string]any {
	if errors.Is(err, app.ErrGraphNotFound) {
		return map[string]any{"error": "graph_id not found"}
	}
	return map[string]any{"error": "run failed", "details": err.Error()}
}
