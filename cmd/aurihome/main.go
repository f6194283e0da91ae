// AuriHome Core - home automation control plane
//
// This is the main entry point for the AuriHome Core application. It
// wires the device store, event log, automation engine, MQTT transport
// bridge, and REST API together and keeps them running until a shutdown
// signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/aurihome/aurihome-core/migrations"

	"github.com/aurihome/aurihome-core/internal/api"
	"github.com/aurihome/aurihome-core/internal/automation"
	"github.com/aurihome/aurihome-core/internal/bridge"
	"github.com/aurihome/aurihome-core/internal/device"
	"github.com/aurihome/aurihome-core/internal/eventlog"
	"github.com/aurihome/aurihome-core/internal/infrastructure/config"
	"github.com/aurihome/aurihome-core/internal/infrastructure/database"
	"github.com/aurihome/aurihome-core/internal/infrastructure/influxdb"
	"github.com/aurihome/aurihome-core/internal/infrastructure/logging"
	"github.com/aurihome/aurihome-core/internal/infrastructure/mqtt"
	"github.com/aurihome/aurihome-core/internal/pipeline"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting AuriHome Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Stores and registries
	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	devices.SetLogger(log)
	if refreshErr := devices.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", devices.Count())

	scenarios := automation.NewRegistry(automation.NewSQLiteRepository(db.DB))
	scenarios.SetLogger(log)
	if refreshErr := scenarios.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading scenario registry: %w", refreshErr)
	}
	log.Info("scenario registry initialised", "scenarios", scenarios.Count())

	events := eventlog.NewSQLiteRepository(db.DB)

	// State pipeline: the single write path for all delta sources
	pipe := pipeline.New(devices, events, scenarios, log)

	// Connect to MQTT broker. An unreachable broker is not fatal: the
	// client keeps retrying and the bridge reports CONNECTING until the
	// broker appears.
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT client started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"connected", mqttClient.IsConnected(),
	)

	// Transport bridge
	br := bridge.New(mqttClient, devices, pipe, log)
	br.SetRecorder(pipe)
	if startErr := br.Start(ctx); startErr != nil {
		return fmt.Errorf("starting transport bridge: %w", startErr)
	}

	// Automation engine and scheduler
	engine := automation.NewEngine(scenarios, devices, pipe, log)
	engine.SetRecorder(pipe)
	defer engine.WaitIdle()

	scheduler := automation.NewScheduler(engine, scenarios, log)
	if startErr := scheduler.Start(ctx); startErr != nil {
		return fmt.Errorf("starting scenario scheduler: %w", startErr)
	}
	defer scheduler.Stop()
	log.Info("scenario scheduler started", "jobs", scheduler.JobCount())

	// Wire the pipeline's collaborators
	pipe.SetTrigger(engine)
	pipe.SetCommander(br)

	// Telemetry sink (optional)
	if cfg.Telemetry.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.Telemetry)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		pipe.SetTelemetry(influxClient)
		log.Info("InfluxDB connected", "url", cfg.Telemetry.URL, "bucket", cfg.Telemetry.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// REST API
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		MQTT:      cfg.MQTT,
		Energy:    cfg.Energy,
		Telemetry: cfg.Telemetry,
		Logger:    log,
		Devices:   devices,
		Pipeline:  pipe,
		Scenarios: scenarios,
		Engine:    engine,
		Scheduler: scheduler,
		Events:    events,
		Bridge:    br,
		Transport: mqttClient,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: database: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server (stop accepting requests)
	// 2. InfluxDB (if enabled)
	// 3. Scheduler (stop firing jobs)
	// 4. Engine (wait for in-flight evaluations)
	// 5. MQTT
	// 6. Database

	log.Info("AuriHome Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AURIHOME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AURIHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
