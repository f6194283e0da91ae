package api

import (
	"net/http"
	"strconv"

	"github.com/aurihome/aurihome-core/internal/eventlog"
)

// handleListLogs returns event log entries, newest first.
//
// Query parameters:
//   - type: filter by event type (DEVICE_STATE, SCENARIO_TRIGGERED, SYSTEM, ERROR)
//   - device_id: filter by device
//   - limit: maximum entries to return (capped at the retention window)
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	var filter eventlog.Filter

	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		t := eventlog.EventType(typeStr)
		if !eventlog.ValidType(t) {
			writeBadRequest(w, "unknown event type: "+typeStr)
			return
		}
		filter.Type = t
	}

	filter.DeviceID = r.URL.Query().Get("device_id")

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := s.events.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "failed to list event log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
