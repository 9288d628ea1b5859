package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skyward/flighttrack/internal/backfill"
	"github.com/skyward/flighttrack/internal/config"
	"github.com/skyward/flighttrack/internal/enrich"
	"github.com/skyward/flighttrack/internal/storage/sqlite"
	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	days := flag.Int("days", 7, "Number of days to process, ending today (UTC)")
	gapMinutes := flag.Int("gap-minutes", 0, "Silence gap in minutes that splits flights (overrides config)")
	noDB := flag.Bool("no-db", false, "Skip writing flights and transitions to the SQLite query store")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Cancel the run cleanly on interrupt; partial progress stays valid
	// because finished buckets are already written
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("Interrupt received, stopping after current file")
		cancel()
	}()

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

	var flightDB *sqlite.FlightStorage
	if !*noDB {
		if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err))
			os.Exit(1)
		}
		dbPath := sqlite.DailyDBPath(cfg.Storage.SQLiteBasePath, time.Now().UTC())
		flightDB, err = sqlite.NewFlightStorage(dbPath, log)
		if err != nil {
			log.Error("Failed to create SQLite storage", logger.Error(err))
			os.Exit(1)
		}
		defer flightDB.Close()
	}

	gap := time.Duration(cfg.Tracker.GapMinutes) * time.Minute
	if *gapMinutes > 0 {
		gap = time.Duration(*gapMinutes) * time.Minute
	}

	runner := backfill.NewRunner(artifacts, enricher, flightDB, backfill.Config{
		Days:         *days,
		GapThreshold: gap,
		MinDuration:  time.Duration(cfg.Tracker.MinDurationSec) * time.Second,
		Workers:      cfg.Tracker.Workers,
	}, log)

	report, err := runner.Run(ctx)
	if err != nil {
		log.Error("Backfill run failed", logger.Error(err))
		os.Exit(1)
	}

	fmt.Printf("Run %s: %d days, %d flights, %d transitions, %d files read, %d skipped, %d malformed records, %d write failures in %s\n",
		report.RunID, report.Days, report.Flights, report.Transitions,
		report.FilesRead, report.FilesSkipped, report.MalformedRecords,
		report.WriteFailures, report.Elapsed.Round(time.Millisecond))
}
