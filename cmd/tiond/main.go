// tiond supervises Tion breezers reached through a BLE gateway.
//
// It keeps one live handle per registered device, polls their status,
// evaluates automation scenarios and serves a small ops HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/shockzort/tion-core/migrations"

	"github.com/shockzort/tion-core/internal/api"
	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/device"
	"github.com/shockzort/tion-core/internal/gateway"
	"github.com/shockzort/tion-core/internal/infrastructure/config"
	"github.com/shockzort/tion-core/internal/infrastructure/database"
	"github.com/shockzort/tion-core/internal/infrastructure/influxdb"
	"github.com/shockzort/tion-core/internal/infrastructure/logging"
	"github.com/shockzort/tion-core/internal/infrastructure/metrics"
	"github.com/shockzort/tion-core/internal/infrastructure/mqtt"
	"github.com/shockzort/tion-core/internal/operator"
	"github.com/shockzort/tion-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// shutdownTimeout bounds task cancellation and device disconnects.
	shutdownTimeout = 20 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting tiond",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	deviceRepo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(deviceRepo, deviceRepo)
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.GetDeviceCount())

	validator, err := automation.NewValidator()
	if err != nil {
		return fmt.Errorf("compiling scenario schemas: %w", err)
	}
	rules := automation.NewStore(automation.NewSQLiteRepository(db.DB), validator)
	rules.SetLogger(log)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	transport := gateway.New(mqttClient,
		gateway.WithTimeout(time.Duration(cfg.Gateway.RequestTimeout)*time.Second),
		gateway.WithQoS(mqttClient.QoS()),
		gateway.WithLogger(log),
	)
	if startErr := transport.Start(); startErr != nil {
		return fmt.Errorf("starting gateway transport: %w", startErr)
	}
	defer func() {
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing gateway transport", "error", closeErr)
		}
	}()

	sinks := []operator.Sink{telemetry.NewMQTTSink(mqttClient)}

	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sinks = append(sinks, telemetry.NewInfluxSink(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	collector := metrics.New()
	op := newOperator(cfg, registry, rules, device.NewFactory(transport), log, collector, sinks)

	if err := op.Initialize(ctx); err != nil {
		return fmt.Errorf("initialising operator: %w", err)
	}
	op.StartPolling(ctx, cfg.Operator.PollPeriod())
	op.StartScenarios(ctx, cfg.Operator.ScenarioPeriod())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := op.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("operator shutdown incomplete", "error", shutdownErr)
		}
	}()

	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}

		srv, srvErr := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log,
			Operator:  op,
			Devices:   registry,
			Scenarios: rules,
			Metrics:   collector.Handler(),
			Checks:    checks,
			Version:   version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	// Deferred cleanup runs in reverse: API server, operator, InfluxDB,
	// gateway transport, MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// newOperator builds the operator from the operator section of the config.
func newOperator(
	cfg *config.Config,
	registry operator.Registry,
	rules operator.RuleStore,
	factory device.Factory,
	log *logging.Logger,
	m operator.Metrics,
	sinks []operator.Sink,
) *operator.Operator {
	oc := cfg.Operator
	return operator.New(registry, rules, factory,
		operator.WithLogger(log.With("component", "operator")),
		operator.WithMetrics(m),
		operator.WithSinks(sinks...),
		operator.WithLocation(cfg.Location()),
		operator.WithConnectRetries(oc.ConnectRetries),
		operator.WithBackoffUnit(oc.BackoffUnitDuration()),
		operator.WithIOTimeout(oc.IOTimeoutDuration()),
		operator.WithConnectRate(oc.ConnectRate),
		operator.WithBreaker(operator.BreakerSettings{
			Failures:    oc.Breaker.Failures,
			OpenTimeout: time.Duration(oc.Breaker.OpenTimeout) * time.Second,
			Interval:    time.Duration(oc.Breaker.Interval) * time.Second,
		}),
	)
}

// getConfigPath returns TION_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("TION_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. influxClient may be
// nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
