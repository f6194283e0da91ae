package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurihome/aurihome-core/internal/automation"
)

// handleListScenarios returns all scenarios.
func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := s.scenarios.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list scenarios")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

// handleGetScenario returns a single scenario by ID.
func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	scn, err := s.scenarios.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, automation.ErrScenarioNotFound) {
			writeNotFound(w, "scenario not found")
			return
		}
		writeInternalError(w, "failed to get scenario")
		return
	}

	writeJSON(w, http.StatusOK, scn)
}

// handleCreateScenario creates a new scenario.
func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var scn automation.Scenario
	if err := json.NewDecoder(r.Body).Decode(&scn); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.scenarios.Create(r.Context(), &scn); err != nil {
		switch {
		case isScenarioValidationError(err):
			writeBadRequest(w, err.Error())
		case errors.Is(err, automation.ErrScenarioExists):
			writeConflict(w, err.Error())
		default:
			writeInternalError(w, "failed to create scenario")
		}
		return
	}

	s.reloadScheduler(r)
	writeJSON(w, http.StatusCreated, scn)
}

// handleUpdateScenario partially updates a scenario.
func (s *Server) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.scenarios.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, automation.ErrScenarioNotFound) {
			writeNotFound(w, "scenario not found")
			return
		}
		writeInternalError(w, "failed to get scenario")
		return
	}

	// Decode partial update onto existing scenario
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.scenarios.Update(r.Context(), existing); err != nil {
		if isScenarioValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update scenario")
		return
	}

	s.reloadScheduler(r)
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteScenario removes a scenario by ID.
func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.scenarios.Delete(r.Context(), id); err != nil {
		if errors.Is(err, automation.ErrScenarioNotFound) {
			writeNotFound(w, "scenario not found")
			return
		}
		writeInternalError(w, "failed to delete scenario")
		return
	}

	s.reloadScheduler(r)
	w.WriteHeader(http.StatusNoContent)
}

// handleRunScenario runs a scenario's logic immediately, regardless of its
// trigger type. The run is synchronous: by the time the response is written
// the logic blocks have been evaluated and their actions applied.
func (s *Server) handleRunScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	scn, err := s.scenarios.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, automation.ErrScenarioNotFound) {
			writeNotFound(w, "scenario not found")
			return
		}
		writeInternalError(w, "failed to get scenario")
		return
	}
	if !scn.Enabled {
		writeConflict(w, "scenario is disabled")
		return
	}

	if !s.engine.RunManual(r.Context(), id) {
		// Deleted or disabled between the check above and the run.
		writeConflict(w, "scenario is disabled")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenario_id": id,
		"status":      "completed",
	})
}

// reloadScheduler re-registers cron jobs after a scenario change.
func (s *Server) reloadScheduler(r *http.Request) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Reload(r.Context()); err != nil {
		s.logger.Warn("failed to reload scenario scheduler", "error", err)
	}
}

// isScenarioValidationError checks whether an error is a scenario validation
// error that should map to a 400 response.
func isScenarioValidationError(err error) bool {
	return errors.Is(err, automation.ErrInvalidScenario) ||
		errors.Is(err, automation.ErrInvalidName) ||
		errors.Is(err, automation.ErrInvalidTrigger) ||
		errors.Is(err, automation.ErrInvalidCondition) ||
		errors.Is(err, automation.ErrInvalidAction)
}
