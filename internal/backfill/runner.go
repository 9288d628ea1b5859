// Package backfill rebuilds flight and squawk rollup reports from stored
// position snapshots. A run walks days oldest-first and, within a day, hours
// in order: daily reports are built by merging the hourly buckets, so the
// hour ordering is a correctness dependency.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyward/flighttrack/internal/enrich"
	"github.com/skyward/flighttrack/internal/storage/sqlite"
	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

const (
	defaultWorkers      = 4
	progressLogInterval = 100
	putRetries          = 3
	putRetryDelay       = 500 * time.Millisecond
)

// Config controls a backfill run
type Config struct {
	Days         int
	GapThreshold time.Duration
	MinDuration  time.Duration
	Workers      int
}

func (c *Config) withDefaults() {
	if c.Days <= 0 {
		c.Days = 7
	}
	if c.GapThreshold <= 0 {
		c.GapThreshold = tracker.DefaultGapThreshold
	}
	if c.MinDuration <= 0 {
		c.MinDuration = tracker.DefaultMinDuration
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
}

// Report summarizes one completed run
type Report struct {
	RunID            string        `json:"run_id"`
	Days             int           `json:"days"`
	Flights          int           `json:"flights"`
	Transitions      int           `json:"transitions"`
	FilesRead        int           `json:"files_read"`
	FilesSkipped     int           `json:"files_skipped"`
	MalformedRecords int           `json:"malformed_records"`
	WriteFailures    int           `json:"write_failures"`
	Elapsed          time.Duration `json:"-"`
}

// Runner executes backfill runs against an artifact store. The sqlite
// storage is optional; when present, flights and transitions are also
// inserted there for dashboard queries.
type Runner struct {
	store    store.Store
	enricher *enrich.Enricher
	db       *sqlite.FlightStorage
	cfg      Config
	logger   *logger.Logger
}

// NewRunner creates a Runner. db may be nil.
func NewRunner(s store.Store, e *enrich.Enricher, db *sqlite.FlightStorage, cfg Config, log *logger.Logger) *Runner {
	cfg.withDefaults()
	return &Runner{
		store:    s,
		enricher: e,
		db:       db,
		cfg:      cfg,
		logger:   log.Named("backfill"),
	}
}

// Run processes the configured number of days ending today (UTC). The only
// fatal condition is the store being unreachable at startup; every per-file
// and per-record failure is logged, counted, and skipped.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	// Startup availability probe: a dead store aborts the run
	if _, err := r.store.List(ctx, store.SnapshotPrefix); err != nil {
		return nil, fmt.Errorf("data source unavailable: %w", err)
	}

	report := &Report{
		RunID: uuid.NewString(),
		Days:  r.cfg.Days,
	}
	start := time.Now()

	r.logger.Info("Starting backfill run",
		logger.String("run_id", report.RunID),
		logger.Int("days", r.cfg.Days),
		logger.Duration("gap_threshold", r.cfg.GapThreshold))

	// One squawk tracker for the whole run: transition state carries across
	// hour and day boundaries the same way it does in live tracking
	squawks := tracker.NewSquawkTracker()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i := r.cfg.Days - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		day := today.AddDate(0, 0, -i)
		if err := r.processDay(ctx, day, squawks, report); err != nil {
			return report, err
		}
	}

	report.Elapsed = time.Since(start)
	r.logger.Info("Backfill run complete",
		logger.String("run_id", report.RunID),
		logger.Int("flights", report.Flights),
		logger.Int("transitions", report.Transitions),
		logger.Int("files_read", report.FilesRead),
		logger.Int("files_skipped", report.FilesSkipped),
		logger.Int("malformed_records", report.MalformedRecords),
		logger.Duration("elapsed", report.Elapsed))
	return report, nil
}

// processDay aggregates 24 hourly buckets and merges them into the daily
// reports
func (r *Runner) processDay(ctx context.Context, day time.Time, squawks *tracker.SquawkTracker, report *Report) error {
	r.logger.Info("Processing day", logger.String("day", day.Format("2006-01-02")))

	hourly := make([]*tracker.RollupBucket, 0, 24)
	var dayTransitions []tracker.SquawkTransition

	for hour := 0; hour < 24; hour++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		bucket, err := r.processHour(ctx, day.Add(time.Duration(hour)*time.Hour), squawks, report)
		if err != nil {
			return err
		}
		hourly = append(hourly, bucket)
		dayTransitions = append(dayTransitions, bucket.Transitions...)
	}

	daily := tracker.MergeBuckets(tracker.DayWindow(day), hourly)
	report.Flights += len(daily.Flights)
	report.Transitions += len(dayTransitions)

	if len(daily.Flights) > 0 {
		r.writeFlightReport(ctx, store.DailyFlightReportKey(day), daily.Flights, report)
	}
	if len(dayTransitions) > 0 {
		transitionReport := r.enricher.BuildTransitionReport(dayTransitions)
		data, err := json.Marshal(transitionReport)
		if err != nil {
			return fmt.Errorf("failed to encode transition report: %w", err)
		}
		r.putWithRetry(ctx, store.TransitionReportKey(day), data, report)
	}

	summary := daily.Summary()
	r.logger.Info("Day complete",
		logger.String("day", day.Format("2006-01-02")),
		logger.Int("flights", len(daily.Flights)),
		logger.Int("transitions", len(dayTransitions)),
		logger.Int("unique_aircraft", summary.UniqueAircraft))
	return nil
}

// processHour reads one hour's snapshots, segments flights per aircraft, and
// writes the hourly flight report. An hour with no snapshots yields an empty
// bucket, not an error.
func (r *Runner) processHour(ctx context.Context, hourStart time.Time, squawks *tracker.SquawkTracker, report *Report) (*tracker.RollupBucket, error) {
	window := tracker.HourWindow(hourStart)
	positions, err := r.readPositions(ctx, store.HourPrefix(hourStart), report)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return tracker.NewRollupBucket(window), nil
	}

	// Squawk observation is stateful and must see positions in time order
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].TimestampMs < positions[j].TimestampMs
	})
	transitions := squawks.ObserveAll(positions)

	flights := r.segmentFlights(positions)
	for i := range flights {
		r.enricher.EnrichFlight(&flights[i])
	}

	bucket := tracker.NewRollupBucket(window)
	for _, f := range flights {
		bucket.AddFlight(f)
	}
	for _, t := range transitions {
		bucket.AddTransition(t)
	}

	if len(bucket.Flights) > 0 {
		r.writeFlightReport(ctx, store.FlightReportKey(hourStart, hourStart.Hour()), bucket.Flights, report)
	}
	if r.db != nil {
		if err := r.db.UpsertFlights(bucket.Flights); err != nil {
			r.logger.Error("Failed to store flights", logger.Error(err))
		}
		if err := r.db.InsertTransitions(bucket.Transitions); err != nil {
			r.logger.Error("Failed to store transitions", logger.Error(err))
		}
	}
	return bucket, nil
}

// readPositions loads and normalizes every snapshot under a key prefix.
// Unreadable objects are logged and skipped; cancellation is honored between
// objects, never mid-parse.
func (r *Runner) readPositions(ctx context.Context, prefix string, report *Report) ([]tracker.PositionRecord, error) {
	objects, err := r.store.List(ctx, prefix)
	if err != nil {
		r.logger.Error("Failed to list snapshots",
			logger.String("prefix", prefix),
			logger.Error(err))
		report.FilesSkipped++
		return nil, nil
	}

	normalizer := tracker.NewNormalizer()
	var positions []tracker.PositionRecord
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := r.store.Get(ctx, obj.Key)
		if err != nil {
			r.logger.Warn("Skipping unreadable snapshot",
				logger.String("key", obj.Key),
				logger.Error(err))
			report.FilesSkipped++
			continue
		}
		recs, malformed := parseSnapshot(data, obj.LastModified, normalizer)
		positions = append(positions, recs...)
		report.MalformedRecords += malformed
		report.FilesRead++
		if report.FilesRead%progressLogInterval == 0 {
			r.logger.Info("Backfill progress",
				logger.Int("files_read", report.FilesRead),
				logger.Int("positions", len(positions)))
		}
	}
	return positions, nil
}

// parseSnapshot handles both snapshot layouts: a JSON array of records and
// newline-delimited JSON objects
func parseSnapshot(data []byte, modTime time.Time, n *tracker.Normalizer) ([]tracker.PositionRecord, int) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, 0
	}

	var raws []map[string]any
	malformed := 0
	if trimmed[0] == '[' {
		if err := json.Unmarshal([]byte(trimmed), &raws); err != nil {
			return nil, 1
		}
	} else {
		for _, line := range strings.Split(trimmed, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var raw map[string]any
			if err := json.Unmarshal([]byte(line), &raw); err != nil {
				malformed++
				continue
			}
			raws = append(raws, raw)
		}
	}

	var records []tracker.PositionRecord
	for _, raw := range raws {
		rec := n.Normalize(raw, modTime)
		if rec == nil {
			malformed++
			continue
		}
		records = append(records, *rec)
	}
	return records, malformed
}

// segmentFlights partitions positions by aircraft and runs segmentation on a
// bounded worker pool. Results are reduced in icao order so output is
// reproducible regardless of scheduling.
func (r *Runner) segmentFlights(positions []tracker.PositionRecord) []tracker.Flight {
	groups := make(map[string][]tracker.PositionRecord)
	for _, p := range positions {
		groups[p.IcaoHex] = append(groups[p.IcaoHex], p)
	}
	hexes := make([]string, 0, len(groups))
	for hex := range groups {
		hexes = append(hexes, hex)
	}
	sort.Strings(hexes)

	segCfg := tracker.SegmenterConfig{
		GapThreshold: r.cfg.GapThreshold,
		MinDuration:  r.cfg.MinDuration,
	}

	var mu sync.Mutex
	results := make(map[string][]tracker.Flight, len(groups))
	jobs := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for hex := range jobs {
				flights := tracker.SegmentFlights(groups[hex], segCfg)
				mu.Lock()
				results[hex] = flights
				mu.Unlock()
			}
		}()
	}
	for _, hex := range hexes {
		jobs <- hex
	}
	close(jobs)
	wg.Wait()

	var flights []tracker.Flight
	for _, hex := range hexes {
		flights = append(flights, results[hex]...)
	}
	return flights
}

// writeFlightReport encodes flights as the rollup wire format and persists
// it. Failures leave the bucket not-yet-computed for the next run.
func (r *Runner) writeFlightReport(ctx context.Context, key string, flights []tracker.Flight, report *Report) {
	records := make([]tracker.FlightRecord, 0, len(flights))
	for i := range flights {
		records = append(records, flights[i].Record())
	}
	data, err := json.Marshal(records)
	if err != nil {
		r.logger.Error("Failed to encode flight report",
			logger.String("key", key),
			logger.Error(err))
		report.WriteFailures++
		return
	}
	r.putWithRetry(ctx, key, data, report)
}

func (r *Runner) putWithRetry(ctx context.Context, key string, data []byte, report *Report) {
	var err error
	for attempt := 1; attempt <= putRetries; attempt++ {
		if err = r.store.Put(ctx, key, data); err == nil {
			return
		}
		r.logger.Warn("Failed to write rollup",
			logger.String("key", key),
			logger.Int("attempt", attempt),
			logger.Error(err))
		select {
		case <-ctx.Done():
			report.WriteFailures++
			return
		case <-time.After(putRetryDelay):
		}
	}
	report.WriteFailures++
	r.logger.Error("Giving up on rollup write, bucket stays pending",
		logger.String("key", key),
		logger.Error(err))
}
