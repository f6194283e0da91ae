package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurihome/aurihome-core/internal/device"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - room: filter by room
//   - type: filter by device type (LIGHT, SENSOR, etc.)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if room := r.URL.Query().Get("room"); room != "" {
		devices, err := s.devices.ListByRoom(ctx, room)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		devices, err := s.devices.ListByType(ctx, device.DeviceType(typeStr))
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.devices.List(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.devices.Create(r.Context(), &dev); err != nil {
		switch {
		case isDeviceValidationError(err):
			writeBadRequest(w, err.Error())
		case errors.Is(err, device.ErrDeviceExists), errors.Is(err, device.ErrTopicInUse):
			writeConflict(w, err.Error())
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	s.syncBridge(r)
	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice partially updates a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	// Decode partial update onto existing device
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.devices.Update(r.Context(), existing); err != nil {
		switch {
		case isDeviceValidationError(err):
			writeBadRequest(w, err.Error())
		case errors.Is(err, device.ErrTopicInUse):
			writeConflict(w, err.Error())
		default:
			writeInternalError(w, "failed to update device")
		}
		return
	}

	s.syncBridge(r)
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a device by ID.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	s.syncBridge(r)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetDeviceState returns the current state of a device.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": dev.ID,
		"state":     dev.State,
		"status":    dev.Status,
		"last_seen": dev.LastSeen,
	})
}

// handleSetDeviceState applies a desired-state delta to a device.
//
// The body is a partial state object, e.g. {"power": true, "brightness": 80}.
// The delta is merged into the stored state, logged, forwarded to the
// transport when the device is bound, and evaluated against event-triggered
// scenarios. The response carries the merged state.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var delta map[string]any
	if err := json.NewDecoder(r.Body).Decode(&delta); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(delta) == 0 {
		writeBadRequest(w, "state delta must not be empty")
		return
	}

	if err := s.pipeline.ApplyCommandDelta(r.Context(), id, delta); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrInvalidAttribute):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to apply state")
		}
		return
	}

	dev, err := s.devices.Get(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to read back device state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": dev.ID,
		"state":     dev.State,
		"status":    dev.Status,
		"last_seen": dev.LastSeen,
	})
}

// syncBridge refreshes transport subscriptions after a topic binding change.
func (s *Server) syncBridge(r *http.Request) {
	if s.bridge == nil {
		return
	}
	if err := s.bridge.SyncSubscriptions(r.Context()); err != nil {
		s.logger.Warn("failed to sync transport subscriptions", "error", err)
	}
}

// isDeviceValidationError checks whether an error is a device validation error
// that should map to a 400 response.
func isDeviceValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidDeviceType) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidStatus) ||
		errors.Is(err, device.ErrInvalidAttribute)
}
