package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shockzort/tion-core/internal/automation"
)

const (
	defaultExecutionLimit = 50
	maxExecutionLimit     = 500
)

// handleExecuteScenario runs a scenario's action now, ignoring its trigger.
func (s *Server) handleExecuteScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	executed, err := s.operator.ExecuteScenario(r.Context(), id)
	if err != nil {
		s.requestLogger(r).Warn("scenario execution failed", "scenario_id", id, "error", err)
		writeOperatorError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"scenario_id": id, "success": executed})
}

// handleListExecutions returns the most recent runs of a scenario.
//
// Query parameters:
//   - limit: 1..500, default 50
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}
	if s.scenarios == nil {
		writeNotFound(w, "scenario not found")
		return
	}

	limit := defaultExecutionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxExecutionLimit {
			writeBadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	if _, err := s.scenarios.GetScenario(r.Context(), id); err != nil {
		if errors.Is(err, automation.ErrScenarioNotFound) {
			writeNotFound(w, "scenario not found")
			return
		}
		writeInternalError(w, "failed to get scenario")
		return
	}

	execs, err := s.scenarios.ListExecutions(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to list executions")
		return
	}
	if execs == nil {
		execs = []automation.Execution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs, "count": len(execs)})
}

func scenarioID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeBadRequest(w, "invalid scenario ID")
		return 0, false
	}
	return id, true
}
