package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aurihome/aurihome-core/internal/bridge"
)

// handleSystemStatus reports runtime state: transport connection, entity
// counts, and uptime.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	transportState := bridge.StateDisconnected
	subscriptions := 0
	if s.bridge != nil {
		transportState = s.bridge.State()
		subscriptions = s.bridge.SubscriptionCount()
	}

	logCount, err := s.events.Count(r.Context())
	if err != nil {
		writeInternalError(w, "failed to count event log")
		return
	}

	scheduledJobs := 0
	if s.scheduler != nil {
		scheduledJobs = s.scheduler.JobCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":        s.version,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"transport": map[string]any{
			"state":         transportState,
			"subscriptions": subscriptions,
		},
		"devices":        s.devices.Count(),
		"scenarios":      s.scenarios.Count(),
		"scheduled_jobs": scheduledJobs,
		"log_entries":    logCount,
	})
}

// handleGetSettings echoes the non-secret parts of the system settings:
// energy-cost parameters, telemetry sink, and broker connection. The
// MQTT password and telemetry token are never included.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.mqttMu.Lock()
	mqttCfg := s.mqttCfg
	s.mqttMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"energy": map[string]any{
			"cost_per_kwh":    s.energyCfg.CostPerKWh,
			"currency_symbol": s.energyCfg.CurrencySymbol,
		},
		"telemetry": map[string]any{
			"enabled": s.telemCfg.Enabled,
			"url":     s.telemCfg.URL,
			"org":     s.telemCfg.Org,
			"bucket":  s.telemCfg.Bucket,
		},
		"mqtt": map[string]any{
			"host":      mqttCfg.Broker.Host,
			"port":      mqttCfg.Broker.Port,
			"tls":       mqttCfg.Broker.TLS,
			"client_id": mqttCfg.Broker.ClientID,
			"username":  mqttCfg.Auth.Username,
			"qos":       mqttCfg.QoS,
		},
	})
}

// transportReconfigureRequest carries new broker settings. Pointer
// fields distinguish "not supplied" from zero values; omitted fields
// keep their current setting.
type transportReconfigureRequest struct {
	Host     *string `json:"host"`
	Port     *int    `json:"port"`
	TLS      *bool   `json:"tls"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// handleReconfigureTransport tears down the broker connection and
// re-establishes it with the supplied settings. Subscriptions are
// restored once the new connection is up.
func (s *Server) handleReconfigureTransport(w http.ResponseWriter, r *http.Request) {
	if s.transport == nil {
		writeConflict(w, "transport is not configured")
		return
	}

	var req transportReconfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	s.mqttMu.Lock()
	cfg := s.mqttCfg
	if req.Host != nil {
		cfg.Broker.Host = *req.Host
	}
	if req.Port != nil {
		cfg.Broker.Port = *req.Port
	}
	if req.TLS != nil {
		cfg.Broker.TLS = *req.TLS
	}
	if req.Username != nil {
		cfg.Auth.Username = *req.Username
	}
	if req.Password != nil {
		cfg.Auth.Password = *req.Password
	}

	if cfg.Broker.Host == "" || cfg.Broker.Port < 1 || cfg.Broker.Port > 65535 {
		s.mqttMu.Unlock()
		writeBadRequest(w, "broker host and a valid port are required")
		return
	}
	s.mqttCfg = cfg
	s.mqttMu.Unlock()

	s.logger.Info("reconfiguring transport", "host", cfg.Broker.Host, "port", cfg.Broker.Port)
	if err := s.transport.Reconfigure(cfg); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.syncBridge(r)

	state := ""
	if s.bridge != nil {
		state = string(s.bridge.State())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reconfigured",
		"broker": fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"state":  state,
	})
}

// factoryResetRequest is the body for a factory reset.
type factoryResetRequest struct {
	Confirm string `json:"confirm"`
}

// handleFactoryReset clears all devices, scenarios, and event log entries.
//
// This is a destructive operation: the request must include an exact
// confirmation string as a safety guard.
func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	var req factoryResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Safety guard: require exact confirmation string.
	if req.Confirm != "FACTORY RESET" {
		writeBadRequest(w, `confirm field must be exactly "FACTORY RESET"`)
		return
	}

	if err := s.pipeline.FactoryReset(r.Context()); err != nil {
		s.logger.Error("factory reset failed", "error", err)
		writeInternalError(w, "factory reset failed")
		return
	}

	s.reloadScheduler(r)
	s.syncBridge(r)

	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}
