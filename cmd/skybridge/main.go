// Skybridge Core - Observatory Telescope Control
//
// This is the main entry point for the Skybridge Core service. Skybridge
// drives up to nine telescope mounts per site from one process:
//   - Numbered slots with persisted, operator-editable configuration
//   - TCP, serial, ASCOM Alpaca and spawned-server device channels
//   - REST + WebSocket control surface and MQTT command/telemetry topics
//   - Connection and command history with configurable retention
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/skybridge-obs/skybridge-core/migrations"

	"github.com/skybridge-obs/skybridge-core/internal/api"
	"github.com/skybridge-obs/skybridge-core/internal/catalog"
	"github.com/skybridge-obs/skybridge-core/internal/history"
	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/config"
	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/database"
	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/influxdb"
	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/logging"
	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/mqtt"
	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/tsdb"
	"github.com/skybridge-obs/skybridge-core/internal/telemetry"
	"github.com/skybridge-obs/skybridge-core/internal/telescope"
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

// registryStatsInterval is how often slot counts are written to the
// time-series backends.
const registryStatsInterval = 30 * time.Second

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
// It wires the slot registry to its consumers (history, API, MQTT,
// time-series sinks), starts the communication loop and blocks until the
// context is cancelled.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Skybridge Core",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Event history: repository plus the background recorder that
	// absorbs registry callbacks without blocking the tick.
	historyRepo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(historyRepo, log)
	defer recorder.Close()
	go pruneHistory(ctx, historyRepo, cfg, log)

	// Device model catalog (optional: slots using explicit server
	// executables work without it)
	models := loadCatalog(cfg, log)

	// Slot registry
	registry := telescope.New(telescope.Options{
		TelescopesPath:   cfg.TelescopesPath(),
		ConnectionsPath:  cfg.ConnectionsPath(),
		ServerLogs:       cfg.Core.ServerLogs,
		ServerLogDir:     cfg.ServerLogDir(),
		ServersDir:       cfg.Core.ServersDir,
		TickInterval:     cfg.TickInterval(),
		SampleInterval:   cfg.SampleInterval(),
		ReadinessTimeout: cfg.ReadinessTimeout(),
		StopGracePeriod:  cfg.StopGracePeriod(),
		Catalog:          models,
		Logger:           log,
	})
	registry.AddNotifier(recorder)
	log.Info("telescope registry initialised", "stored", registry.LoadStored())

	health := map[string]api.HealthChecker{
		"database": db,
	}
	var statsWriters []registryStatsWriter

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		health["mqtt"] = mqttClient

		// Outbound telemetry: retained per-slot status plus position
		// samples
		publisher := telemetry.NewPublisher(mqttClient, byte(cfg.MQTT.QoS), log)
		defer publisher.Close()
		registry.AddNotifier(publisher)
		registry.AddSampler(publisher)

		// Inbound goto/sync command topics
		if bindErr := telemetry.BindCommands(mqttClient, registry, byte(cfg.MQTT.QoS), log); bindErr != nil {
			return fmt.Errorf("subscribing to command topics: %w", bindErr)
		}
		log.Info("MQTT command topics bound")
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		health["influxdb"] = influxClient
		statsWriters = append(statsWriters, influxClient)

		sink := telemetry.NewSink(influxClient, log)
		defer sink.Close()
		registry.AddNotifier(sink)
		registry.AddSampler(sink)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to VictoriaMetrics (optional)
	if cfg.TSDB.Enabled {
		tsdbClient, connErr := tsdb.Connect(ctx, cfg.TSDB)
		if connErr != nil {
			return fmt.Errorf("connecting to TSDB: %w", connErr)
		}
		defer func() {
			log.Info("closing TSDB connection")
			if closeErr := tsdbClient.Close(); closeErr != nil {
				log.Error("error closing TSDB", "error", closeErr)
			}
		}()
		log.Info("TSDB connected", "url", cfg.TSDB.URL)
		health["tsdb"] = tsdbClient
		statsWriters = append(statsWriters, tsdbClient)

		sink := telemetry.NewSink(tsdbClient, log)
		defer sink.Close()
		registry.AddNotifier(sink)
		registry.AddSampler(sink)
	} else {
		log.Info("TSDB disabled")
	}

	// Verify all connections are healthy before opening the API
	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// HTTP API and WebSocket hub
	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: registry,
		Catalog:  models,
		History:  historyRepo,
		Health:   health,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	registry.AddNotifier(srv.Hub())
	registry.AddSampler(srv.Hub())

	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	if len(statsWriters) > 0 {
		go writeRegistryStats(ctx, registry, statsWriters)
	}

	log.Info("initialisation complete, communication loop running")

	// Blocks until ctx is cancelled; stops every active slot on the
	// way out.
	registry.Run(ctx)

	log.Info("shutdown signal received, cleaning up")

	if persistErr := registry.Persist(); persistErr != nil {
		log.Error("error persisting slot state", "error", persistErr)
	}

	// Deferred Close() calls run in reverse order:
	// API server, sinks, TSDB/InfluxDB/MQTT clients, recorder, database.

	log.Info("Skybridge Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SKYBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SKYBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the connected infrastructure components.
func healthCheck(ctx context.Context, components map[string]api.HealthChecker) error {
	for name, component := range components {
		if err := component.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// loadCatalog loads the device model catalog, restoring the embedded
// default list when no catalog file exists yet. A broken catalog
// degrades to nil rather than refusing to start: slots that name an
// explicit server executable do not need model lookups.
func loadCatalog(cfg *config.Config, log *logging.Logger) *catalog.Catalog {
	path := cfg.DeviceModelsPath()

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if restoreErr := catalog.Restore(path); restoreErr != nil {
			log.Warn("restoring default device models failed", "path", path, "error", restoreErr)
			return nil
		}
		log.Info("default device models restored", "path", path)
	}

	models, err := catalog.Load(path)
	if err != nil {
		log.Warn("device model catalog unavailable", "path", path, "error", err)
		return nil
	}
	for _, warning := range models.Warnings() {
		log.Warn("device model catalog", "warning", warning)
	}

	if cfg.Catalog.INDIDrivers != "" {
		if indiErr := models.LoadINDI(cfg.Catalog.INDIDrivers); indiErr != nil {
			log.Warn("INDI driver catalog unavailable", "path", cfg.Catalog.INDIDrivers, "error", indiErr)
		}
	}

	log.Info("device model catalog loaded", "models", models.Len())
	return models
}

// pruneHistory deletes expired history entries on the configured
// cadence, once at startup and then on a ticker.
func pruneHistory(ctx context.Context, repo history.Repository, cfg *config.Config, log *logging.Logger) {
	retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	interval := time.Duration(cfg.History.PruneInterval) * time.Hour

	prune := func() {
		pruned, err := repo.Prune(ctx, retention)
		if err != nil {
			log.Error("pruning event history failed", "error", err)
			return
		}
		if pruned > 0 {
			log.Info("event history pruned", "deleted", pruned, "retention_days", cfg.History.RetentionDays)
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// registryStatsWriter is satisfied by the time-series clients that
// accept periodic slot count gauges.
type registryStatsWriter interface {
	WriteRegistryStats(stored, active, connected int)
}

// writeRegistryStats periodically writes stored/active/connected slot
// counts to every enabled time-series backend.
func writeRegistryStats(ctx context.Context, registry *telescope.Core, writers []registryStatsWriter) {
	ticker := time.NewTicker(registryStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := registry.GetStats()
			for _, w := range writers {
				w.WriteRegistryStats(stats.Stored, stats.Active, stats.Connected)
			}
		}
	}
}
