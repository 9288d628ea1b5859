package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skyward/flighttrack/internal/api"
	"github.com/skyward/flighttrack/internal/config"
	"github.com/skyward/flighttrack/internal/coverage"
	"github.com/skyward/flighttrack/internal/digest"
	"github.com/skyward/flighttrack/internal/enrich"
	"github.com/skyward/flighttrack/internal/live"
	"github.com/skyward/flighttrack/internal/storage/sqlite"
	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/internal/websocket"
	"github.com/skyward/flighttrack/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting flighttrack server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the artifact store (snapshots, rollup reports, coverage record)
	var artifacts store.Store
	switch cfg.Store.Type {
	case "s3":
		artifacts, err = store.NewS3(ctx, store.S3Options{
			Endpoint:  cfg.Store.Endpoint,
			AccessKey: cfg.Store.AccessKey,
			SecretKey: cfg.Store.SecretKey,
			Bucket:    cfg.Store.Bucket,
			UseSSL:    cfg.Store.UseSSL,
		}, log)
	default:
		artifacts, err = store.NewFS(cfg.Store.Root, log)
	}
	if err != nil {
		log.Error("Failed to create artifact store", logger.Error(err))
		os.Exit(1)
	}

	// Create the PiAware client
	client := live.NewClient(cfg.Source.URL, 30*time.Second, log)

	// Receiver coordinates: config values, overridden by receiver.json when
	// requested
	lat, lon := cfg.Receiver.Latitude, cfg.Receiver.Longitude
	if cfg.Source.FetchReceiverOnStartup {
		if info, err := client.FetchReceiver(ctx); err != nil {
			log.Warn("Failed to fetch receiver.json, using configured coordinates", logger.Error(err))
		} else {
			lat, lon = info.Lat, info.Lon
			log.Info("Resolved receiver position",
				logger.Float64("lat", lat),
				logger.Float64("lon", lon))
		}
	}

	// Create daily SQLite query storage
	dbPath := sqlite.DailyDBPath(cfg.Storage.SQLiteBasePath, time.Now().UTC())
	if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.SQLiteBasePath))
		os.Exit(1)
	}
	flightDB, err := sqlite.NewFlightStorage(dbPath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer flightDB.Close()
	log.Info("Using daily database", logger.String("path", dbPath))

	// Load enrichment reference tables; missing tables degrade to Unknown
	enricher := enrich.New(log)
	if cfg.Enrichment.AirlineDBPath != "" {
		if err := enricher.LoadAirlines(cfg.Enrichment.AirlineDBPath); err != nil {
			log.Warn("Failed to load airline database", logger.Error(err))
		}
	}
	if cfg.Enrichment.AircraftDBPath != "" {
		if err := enricher.LoadAircraft(cfg.Enrichment.AircraftDBPath); err != nil {
			log.Warn("Failed to load aircraft database", logger.Error(err))
		}
	}

	// Coverage tracker resumes from the stored reception record
	cov := coverage.NewTracker(lat, lon, cfg.Receiver.ElevationFeet, log)
	if err := cov.Load(ctx, artifacts); err != nil {
		log.Warn("Failed to load reception record, starting fresh", logger.Error(err))
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// NATS publisher (if enabled)
	var publisher live.Publisher
	if cfg.Events.Enabled {
		natsPub, err := live.NewNATSPublisher(cfg.Events.URL, cfg.Events.Subject, log)
		if err != nil {
			log.Error("Failed to connect to NATS, continuing without event publishing", logger.Error(err))
		} else {
			publisher = natsPub
			defer natsPub.Close()
		}
	}

	// Create live tracking service
	liveService := live.NewService(client, artifacts, enricher, cov, wsServer, publisher,
		live.ServiceConfig{
			FetchInterval:     time.Duration(cfg.Source.FetchIntervalSecs) * time.Second,
			VisibilityTimeout: time.Duration(cfg.Source.VisibilityTimeoutSecs) * time.Second,
		}, log)
	if err := liveService.Start(ctx); err != nil {
		log.Error("Failed to start live tracking service", logger.Error(err))
		os.Exit(1)
	}

	// Create digest service (if enabled)
	var digestService *digest.Service
	if cfg.Digest.Enabled {
		digestService, err = digest.NewService(ctx, digest.Config{
			Enabled: true,
			APIKey:  cfg.Digest.APIKey,
			Model:   cfg.Digest.Model,
		}, log)
		if err != nil {
			log.Error("Failed to create digest service, continuing without it", logger.Error(err))
			digestService = nil
		}
	} else {
		log.Info("Digest service disabled in configuration")
	}

	// Create API router
	handler := api.NewHandler(artifacts, flightDB, liveService, cov, digestService, enricher, wsServer, log)
	router := api.NewRouter(handler, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first so the final minute flush and coverage
	// save happen before the store goes away
	log.Info("Stopping live tracking service...")
	liveService.Stop()
	log.Info("Live tracking service stopped.")

	// Cancel the main context
	cancel()

	// Shutdown the HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
