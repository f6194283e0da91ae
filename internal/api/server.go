package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aurihome/aurihome-core/internal/automation"
	"github.com/aurihome/aurihome-core/internal/bridge"
	"github.com/aurihome/aurihome-core/internal/device"
	"github.com/aurihome/aurihome-core/internal/eventlog"
	"github.com/aurihome/aurihome-core/internal/infrastructure/config"
	"github.com/aurihome/aurihome-core/internal/infrastructure/logging"
	"github.com/aurihome/aurihome-core/internal/infrastructure/mqtt"
	"github.com/aurihome/aurihome-core/internal/pipeline"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig

	// MQTT, Energy, and Telemetry are echoed by the settings surface;
	// MQTT is also the baseline for transport reconfiguration.
	MQTT      config.MQTTConfig
	Energy    config.EnergyConfig
	Telemetry config.TelemetryConfig

	Logger    *logging.Logger
	Devices   *device.Registry
	Pipeline  *pipeline.Pipeline
	Scenarios *automation.Registry
	Engine    *automation.Engine
	Scheduler *automation.Scheduler // optional: scheduled triggers disabled when nil
	Events    eventlog.Repository
	Bridge    *bridge.Bridge // optional: transport status reported as unavailable when nil
	Transport *mqtt.Client   // optional: broker reconfiguration disabled when nil
	Version   string
}

// Server is the HTTP API server for AuriHome Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	energyCfg config.EnergyConfig
	telemCfg  config.TelemetryConfig
	logger    *logging.Logger
	devices   *device.Registry
	pipeline  *pipeline.Pipeline
	scenarios *automation.Registry
	engine    *automation.Engine
	scheduler *automation.Scheduler
	events    eventlog.Repository
	bridge    *bridge.Bridge
	transport *mqtt.Client
	version   string
	startedAt time.Time
	server    *http.Server

	// mqttCfg is mutated by transport reconfiguration.
	mqttMu  sync.Mutex
	mqttCfg config.MQTTConfig
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if deps.Scenarios == nil {
		return nil, fmt.Errorf("scenario registry is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("automation engine is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event log repository is required")
	}

	return &Server{
		cfg:       deps.Config,
		mqttCfg:   deps.MQTT,
		energyCfg: deps.Energy,
		telemCfg:  deps.Telemetry,
		startedAt: time.Now(),
		logger:    deps.Logger,
		devices:   deps.Devices,
		pipeline:  deps.Pipeline,
		scenarios: deps.Scenarios,
		engine:    deps.Engine,
		scheduler: deps.Scheduler,
		events:    deps.Events,
		bridge:    deps.Bridge,
		transport: deps.Transport,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The HTTP listener runs in a background goroutine; the server is stopped
// with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
