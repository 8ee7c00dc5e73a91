package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fishda-monitor/internal/config"
	"fishda-monitor/internal/handlers"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/services"
	"fishda-monitor/internal/session"
	"fishda-monitor/internal/websocket"
	"fishda-monitor/pkg/database"
	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	loc, err := cfg.Monitor.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timezone: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("fishda-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(session.Options{
		Location:     loc,
		HistoryLimit: cfg.Monitor.HistoryLimit,
	})
	ctx = logging.WithSessionID(ctx, sess.ID())

	logger.Info(ctx, "[STARTUP] Starting FISHDA pond monitor API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
		"timezone":    cfg.Monitor.Timezone,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("fishda", prometheus.DefaultRegisterer)

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	pondRepo := repository.NewPondRepository(db, logger, metricsCollector)

	// Live event stream
	hub := websocket.NewHub(logger, metricsCollector)
	go hub.Run(ctx)

	deps := services.Deps{
		Repo:     pondRepo,
		Session:  sess,
		Notifier: hub,
		Logger:   logger,
		Metrics:  metricsCollector,
		Operator: cfg.Monitor.Operator,
	}

	// Initialize services
	configService := services.NewConfigService(deps, cfg.Monitor.WiFiConfirmTimeout)
	readingService := services.NewReadingService(deps, cfg.Monitor.AlertCooldown, cfg.Monitor.HistoryLimit)
	alertService := services.NewAlertService(deps)
	historyService := services.NewHistoryService(deps)

	// Thresholds must be loaded before readings so restored alerts classify consistently
	if err := configService.Load(ctx); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load device configuration", logging.Fields{}, err)
	}
	if err := readingService.Load(ctx); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load readings", logging.Fields{}, err)
	}
	if err := alertService.Load(ctx); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load alerts", logging.Fields{}, err)
	}

	handler := handlers.NewHandler(handlers.Options{
		Readings:  readingService,
		Alerts:    alertService,
		History:   historyService,
		Config:    configService,
		Health:    db,
		Websocket: http.HandlerFunc(hub.ServeWS),
		Logger:    logger,
		Metrics:   metricsCollector,
	})

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(shutdownCtx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
