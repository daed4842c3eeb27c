package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"solarview/internal/discovery"
	"solarview/internal/handlers"
	"solarview/internal/ingest"
	"solarview/internal/logger"
	"solarview/internal/models"
	"solarview/internal/push"
	"solarview/internal/repository"
	"solarview/internal/repository/db"
	"solarview/internal/server"
	"solarview/internal/service"
	"solarview/internal/store"
	"solarview/internal/topology"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB for the system event log
	sqldb, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqldb.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqldb)
	src := topology.NewFileSource(viper.GetString("topology.path"))
	panelStore := store.New(src, log, store.Options{
		StaleAfter: viper.GetDuration("staleness_threshold"),
	})
	hub := push.NewManager(
		viper.GetDuration("ws.batch_interval"),
		viper.GetDuration("ws.heartbeat_interval"),
		log,
	)
	disc := discovery.New(discoveryRunner(log), log)
	services := service.NewService(panelStore, repos, disc, log)
	disc.SetEventRecorder(services.EventLog)
	apiHandler := handlers.NewHandler(services, hub, log)

	// Load the topology; a missing file is tolerated so the setup flow can
	// run against an unconfigured site.
	if err := panelStore.Load(); err != nil {
		if errors.Is(err, topology.ErrNotFound) {
			log.Infow("no topology file yet, starting unconfigured", "path", viper.GetString("topology.path"))
		} else {
			log.Errorw("failed to load topology", "err", err)
		}
	}

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// delivery cycles
	go hub.RunBatch(ctx)
	go hub.RunHeartbeat(ctx)

	// telemetry: live broker subscription, or the mock feed
	if viper.GetBool("mock.enabled") {
		log.Infow("running in mock data mode")
		feed := service.NewFeedService(panelStore, hub,
			viper.GetFloat64("mock.watts"), viper.GetFloat64("mock.voltage"), log)
		go feed.Run(ctx, viper.GetDuration("mock.refresh"))
	} else {
		bridge := service.NewTelemetryBridge(panelStore, hub)
		client := ingest.NewClient(liveIngestOptions(ctx, services.EventLog), ingest.NewRouter(bridge, log), log)
		go client.Run(ctx)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, disc, log)
}

func loadConfig() error {
	viper.SetDefault("port", "8080")
	viper.SetDefault("db.path", "app.db")
	viper.SetDefault("topology.path", "configs/topology.yaml")
	viper.SetDefault("staleness_threshold", 5*time.Minute)
	viper.SetDefault("ws.batch_interval", 500*time.Millisecond)
	viper.SetDefault("ws.heartbeat_interval", 30*time.Second)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.client_id", "solarview")
	viper.SetDefault("mqtt.prefix", "taptap")
	viper.SetDefault("mqtt.initial_retry", time.Second)
	viper.SetDefault("mqtt.max_retry", time.Minute)
	viper.SetDefault("mock.enabled", false)
	viper.SetDefault("mock.watts", 100.0)
	viper.SetDefault("mock.voltage", 45.0)
	viper.SetDefault("mock.refresh", 500*time.Millisecond)

	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		dbPath = "app.db"
	}
	return db.InitDB(dbPath)
}

// liveIngestOptions builds the main subscription options, recording broker
// connectivity transitions in the event log.
func liveIngestOptions(ctx context.Context, events service.EventLog) ingest.Options {
	return ingest.Options{
		BrokerURL:    viper.GetString("mqtt.broker"),
		ClientID:     viper.GetString("mqtt.client_id"),
		Username:     viper.GetString("mqtt.username"),
		Password:     viper.GetString("mqtt.password"),
		TopicPrefix:  viper.GetString("mqtt.prefix"),
		InitialDelay: viper.GetDuration("mqtt.initial_retry"),
		MaxDelay:     viper.GetDuration("mqtt.max_retry"),
		OnStatus: func(connected bool, err error) {
			if connected {
				events.Record(ctx, models.EventBrokerUp, "connected to telemetry broker", nil)
				return
			}
			meta := map[string]any{}
			if err != nil {
				meta["error"] = err.Error()
			}
			events.Record(ctx, models.EventBrokerDown, "telemetry broker unreachable", meta)
		},
	}
}

// discoveryRunner builds the state-only subscription factory used by the
// discovery session.
func discoveryRunner(log *logger.Logger) func(s *discovery.Service) discovery.Runner {
	return func(s *discovery.Service) discovery.Runner {
		opts := ingest.Options{
			BrokerURL:    viper.GetString("mqtt.broker"),
			ClientID:     viper.GetString("mqtt.client_id") + "-discovery",
			Username:     viper.GetString("mqtt.username"),
			Password:     viper.GetString("mqtt.password"),
			TopicPrefix:  viper.GetString("mqtt.prefix"),
			StateOnly:    true,
			InitialDelay: viper.GetDuration("mqtt.initial_retry"),
			MaxDelay:     30 * time.Second,
			OnStatus:     s.EmitConnectionStatus,
		}
		return ingest.NewClient(opts, ingest.NewRouter(s, log), log)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, disc *discovery.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	disc.Stop()
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
