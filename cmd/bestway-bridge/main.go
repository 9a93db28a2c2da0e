// Bestway Bridge - Lay-Z-Spa cloud bridge
//
// This is the main entry point for the Bestway bridge. The bridge polls
// the Bestway (Gizwits) cloud API for spa device state, keeps an
// optimistic local cache reconciled against it, and exposes the result
// over MQTT and a local HTTP/WebSocket API:
//   - Retained MQTT state and availability topics per device
//   - MQTT command topics with acknowledgements
//   - REST endpoints for devices, status, capabilities and commands
//   - WebSocket stream of state changes for dashboards
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calmwater/bestway-bridge/internal/api"
	"github.com/calmwater/bestway-bridge/internal/bestway"
	"github.com/calmwater/bestway-bridge/internal/bridge"
	"github.com/calmwater/bestway-bridge/internal/infrastructure/config"
	"github.com/calmwater/bestway-bridge/internal/infrastructure/logging"
	"github.com/calmwater/bestway-bridge/internal/infrastructure/mqtt"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Bestway bridge",
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

	// Cloud client holds the device registry and the reconciled cache
	spa := bestway.NewClient(cfg.ResolvedAPIRoot(), cfg.GetVendorTimeout())
	spa.SetLogger(log)
	log.Info("cloud client initialised",
		"api_root", cfg.ResolvedAPIRoot(),
		"region", cfg.Vendor.Region,
	)

	// Token manager logs in lazily on the first poll cycle, so a cloud
	// outage at boot does not prevent the bridge from starting
	tokens := bridge.NewTokenManager(
		cfg.ResolvedAPIRoot(),
		cfg.Vendor.Username,
		cfg.Vendor.Password,
		cfg.GetVendorTimeout(),
		cfg.GetTokenExpiryMargin(),
	)
	tokens.SetLogger(log)

	// Publishers receive every reconciled snapshot from the poller
	var publishers []bridge.Publisher

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

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publishers = append(publishers, bridge.NewMQTTPublisher(mqttClient, log))

		// Command topics dispatch into the cloud client
		listener := bridge.NewCommandListener(spa, mqttClient, log)
		if startErr := listener.Start(); startErr != nil {
			return fmt.Errorf("subscribing to command topics: %w", startErr)
		}
		log.Info("MQTT command listener started")
	} else {
		log.Info("MQTT disabled")
	}

	// Start HTTP API and WebSocket server (optional)
	if cfg.API.Enabled {
		// The hub is shared: the API serves it to WebSocket clients and
		// the poller publishes state changes into it
		hub := api.NewHub(cfg.WebSocket, log)
		go hub.Run(ctx)
		publishers = append(publishers, hub)

		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Spa:     spa,
			Hub:     hub,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started",
			"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		)
	} else {
		log.Info("API server disabled")
	}

	poller := bridge.NewPoller(spa, tokens, publishers, bridge.PollerOptions{
		StatusInterval:   cfg.GetStatusInterval(),
		BindingsInterval: cfg.GetBindingsInterval(),
		BackoffInitial:   time.Duration(cfg.Polling.Backoff.InitialDelay) * time.Second,
		BackoffMax:       time.Duration(cfg.Polling.Backoff.MaxDelay) * time.Second,
		Logger:           log,
	})

	log.Info("initialisation complete, polling",
		"status_interval", cfg.GetStatusInterval().String(),
		"bindings_interval", cfg.GetBindingsInterval().String(),
	)

	// Blocks until the context is cancelled. Deferred Close() calls
	// then run in reverse order: API server first, MQTT last.
	err = poller.Run(ctx)

	log.Info("Bestway bridge stopped")
	return err
}

// getConfigPath returns the configuration file path.
// Uses BESTWAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BESTWAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
