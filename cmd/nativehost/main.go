// nativehost is the native side of the desktop client: it spawns and
// supervises Gradle wrapper builds, answers filesystem and path queries, and
// streams build output to the shell over a loopback HTTP/WebSocket API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/nativehost/internal/api"
	"github.com/nerrad567/nativehost/internal/auth"
	"github.com/nerrad567/nativehost/internal/dialog"
	"github.com/nerrad567/nativehost/internal/dispatch"
	"github.com/nerrad567/nativehost/internal/history"
	"github.com/nerrad567/nativehost/internal/infrastructure/config"
	"github.com/nerrad567/nativehost/internal/infrastructure/influxdb"
	"github.com/nerrad567/nativehost/internal/infrastructure/logging"
	"github.com/nerrad567/nativehost/internal/infrastructure/mqtt"
	"github.com/nerrad567/nativehost/internal/javalocate"
	"github.com/nerrad567/nativehost/internal/nativeapi"
	"github.com/nerrad567/nativehost/internal/notify"
	"github.com/nerrad567/nativehost/internal/process"
	"github.com/nerrad567/nativehost/internal/release"
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

	// shellSubject names the desktop shell in issued tokens.
	shellSubject = "desktop-shell"

	pruneInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, serves until ctx is cancelled and then tears
// everything down in reverse order. Separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting nativehost",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath, allowMissing := getConfigPath()
	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing left to report to
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	checks := make(map[string]api.HealthChecker)

	// Run history (optional)
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(ctx, history.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
			Retention:   cfg.History.Retention,
		})
		if err != nil {
			return fmt.Errorf("opening run history: %w", err)
		}
		defer func() {
			log.Info("closing run history")
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing run history", "error", closeErr)
			}
		}()
		store.SetLogger(log.Component("history"))
		checks["history"] = store
		go pruneLoop(ctx, store, log)
		log.Info("run history opened", "path", cfg.History.Path)
	} else {
		log.Info("run history disabled")
	}

	// MQTT mirror (optional)
	var (
		mqttClient *mqtt.Client
		mqttSink   *notify.MQTTSink
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		checks["mqtt"] = mqttClient

		mqttSink = notify.NewMQTTSink(mqttClient, cfg.MQTT.QueueSize)
		mqttSink.SetLogger(log.Component("notify"))
		defer func() {
			mqttSink.Close()
			if dropped := mqttSink.Dropped(); dropped > 0 {
				log.Warn("MQTT events dropped", "count", dropped)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB run metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Supervisor, with the websocket hub as the primary sink
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	supervisor := newSupervisor(cfg.Process, hub, store, mqttSink, influxClient)
	supervisor.SetLogger(log.Component("process"))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Process.ShutdownTimeout)
		defer cancel()
		log.Info("stopping builds", "running", supervisor.Count())
		if stopErr := supervisor.Shutdown(shutdownCtx); stopErr != nil {
			log.Error("error stopping builds", "error", stopErr)
		}
	}()

	if mqttClient != nil {
		if subErr := notify.ListenForKills(mqttClient, supervisor); subErr != nil {
			log.Warn("remote kill topic unavailable", "error", subErr)
		}
	}

	// Operations
	dispatcher, err := buildDispatcher(cfg, supervisor, store, log)
	if err != nil {
		return err
	}

	tokenSecret, err := setupAuth(cfg.Security, log)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Invoker:     dispatcher,
		Processes:   supervisor,
		Hub:         hub,
		TokenSecret: tokenSecret,
		Checks:      checks,
		Version:     version,
	}
	if store != nil {
		deps.History = store
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", server.Addr(),
		"operations", len(dispatcher.Operations()),
	)

	<-ctx.Done()

	// Deferred calls run in reverse: API server, builds, InfluxDB, MQTT
	// sink and client, run history.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration path and whether a missing file
// is acceptable. Only the default path may be absent.
func getConfigPath() (string, bool) {
	if path := os.Getenv("NATIVEHOST_CONFIG"); path != "" {
		return path, false
	}
	return defaultConfigPath, true
}

// newSupervisor builds the supervisor. Nil optional components are left out.
func newSupervisor(cfg config.ProcessConfig, hub *api.Hub, store *history.Store, sink *notify.MQTTSink, influx *influxdb.Client) *process.Supervisor {
	sinks := notify.Fanout{hub}
	opts := []process.Option{}
	if store != nil {
		opts = append(opts, process.WithObserver(store))
	}
	if sink != nil {
		sinks = append(sinks, sink)
		opts = append(opts, process.WithObserver(sink))
	}
	if influx != nil {
		opts = append(opts, process.WithObserver(influx))
	}
	opts = append(opts, process.WithSink(sinks))

	return process.NewSupervisor(process.Config{
		KillGrace:    cfg.KillGrace,
		EventBuffer:  cfg.EventBuffer,
		MaxProcesses: cfg.MaxProcesses,
	}, opts...)
}

// buildDispatcher registers every operation with its collaborators.
func buildDispatcher(cfg *config.Config, supervisor *process.Supervisor, store *history.Store, log *logging.Logger) (*dispatch.Dispatcher, error) {
	javas := javalocate.New(javalocate.Config{
		SearchPaths:   cfg.Java.SearchPaths,
		VersionFilter: cfg.Java.VersionFilter,
		CacheTTL:      cfg.Java.CacheTTL,
	})
	javas.SetLogger(log.Component("javalocate"))

	releases := release.NewFetcher(cfg.Release.URLTemplate, cfg.Release.Timeout)
	releases.SetLogger(log.Component("release"))

	deps := nativeapi.Deps{
		Supervisor: supervisor,
		Javas:      javas,
		Releases:   releases,
	}
	picker, err := dialog.NewNativePicker(cfg.Dialog.Backend)
	switch {
	case err == nil:
		deps.Picker = picker
		log.Info("dialog backend selected", "backend", picker.Backend())
	case errors.Is(err, dialog.ErrNoBackend):
		log.Warn("no dialog backend available, dialog operations disabled", "backend", cfg.Dialog.Backend)
	default:
		return nil, fmt.Errorf("selecting dialog backend: %w", err)
	}
	if store != nil {
		deps.History = store
	}

	ops, err := nativeapi.New(deps)
	if err != nil {
		return nil, fmt.Errorf("building operations: %w", err)
	}
	d := dispatch.New()
	d.SetLogger(log.Component("dispatch"))
	ops.Register(d)
	return d, nil
}

// setupAuth returns the token secret for the API, or "" when auth is off.
// With a token file configured a shell token is issued and written there,
// generating a per-run secret if none is configured.
func setupAuth(cfg config.SecurityConfig, log *logging.Logger) (string, error) {
	secret := cfg.TokenSecret
	if cfg.TokenFile == "" {
		if secret == "" {
			log.Warn("API authentication disabled: no token secret configured")
		}
		return secret, nil
	}

	if secret == "" {
		var err error
		if secret, err = auth.GenerateSecret(); err != nil {
			return "", err
		}
		log.Info("generated per-run token secret")
	}
	ttl := time.Duration(cfg.TokenTTL) * time.Minute
	token, err := auth.GenerateToken(shellSubject, auth.ScopeShell, secret, ttl)
	if err != nil {
		return "", fmt.Errorf("issuing shell token: %w", err)
	}
	if err := auth.WriteTokenFile(cfg.TokenFile, token); err != nil {
		return "", err
	}
	log.Info("shell token written", "path", cfg.TokenFile, "ttl", ttl)
	return secret, nil
}

// pruneLoop deletes old runs at startup and then every pruneInterval.
func pruneLoop(ctx context.Context, store *history.Store, log *logging.Logger) {
	prune := func() {
		n, err := store.Prune(ctx, time.Now())
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn("pruning run history failed", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("pruned run history", "runs", n)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
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
