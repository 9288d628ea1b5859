package live

import (
	"context"
	"sync"
	"time"

	"github.com/skyward/flighttrack/internal/coverage"
	"github.com/skyward/flighttrack/internal/enrich"
	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

// Alerter receives enriched squawk transitions for immediate push to
// connected dashboard clients
type Alerter interface {
	SquawkAlert(rec tracker.TransitionRecord)
}

// Publisher forwards enriched squawk transitions to an external event bus
type Publisher interface {
	PublishTransition(rec tracker.TransitionRecord) error
	Close()
}

// ServiceConfig controls the polling loop. The receiver position lives in the
// coverage tracker, not here.
type ServiceConfig struct {
	FetchInterval     time.Duration
	VisibilityTimeout time.Duration
}

func (c *ServiceConfig) withDefaults() {
	if c.FetchInterval <= 0 {
		c.FetchInterval = time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
}

// Status is the live-service state served on the status endpoint
type Status struct {
	LastFetch       time.Time      `json:"last_fetch"`
	FetchOK         bool           `json:"fetch_ok"`
	TrackedAircraft int            `json:"tracked_aircraft"`
	PendingRecords  int            `json:"pending_records"`
	LastUpload      time.Time      `json:"last_upload"`
	Transitions     int            `json:"transitions"`
	Positions       PositionCounts `json:"positions"`
}

type trackedAircraft struct {
	firstSeen time.Time
	lastSeen  time.Time
	callsign  string
}

// Service polls the receiver and maintains the live tracking state: minute
// snapshot uploads, hourly rollups, squawk transitions, coverage records,
// and position-rate statistics.
type Service struct {
	client     *Client
	store      store.Store
	enricher   *enrich.Enricher
	coverage   *coverage.Tracker
	squawks    *tracker.SquawkTracker
	normalizer *tracker.Normalizer
	stats      *PositionStats
	alerter    Alerter
	publisher  Publisher
	cfg        ServiceConfig
	logger     *logger.Logger

	mu               sync.RWMutex
	tracked          map[string]*trackedAircraft
	pending          []SnapshotRecord
	lastFetch        time.Time
	fetchOK          bool
	lastUpload       time.Time
	transitionsTotal int

	currentMinute time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewService creates the live service. alerter and publisher may be nil.
func NewService(client *Client, s store.Store, e *enrich.Enricher, cov *coverage.Tracker,
	alerter Alerter, publisher Publisher, cfg ServiceConfig, log *logger.Logger) *Service {
	cfg.withDefaults()
	return &Service{
		client:     client,
		store:      s,
		enricher:   e,
		coverage:   cov,
		squawks:    tracker.NewSquawkTracker(),
		normalizer: tracker.NewNormalizer(),
		stats:      NewPositionStats(),
		alerter:    alerter,
		publisher:  publisher,
		cfg:        cfg,
		logger:     log.Named("live"),
		tracked:    make(map[string]*trackedAircraft),
		stopCh:     make(chan struct{}),
	}
}

// Start begins polling. The first fetch runs inline so a dead receiver shows
// up in logs immediately; fetch failures are never fatal after that.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting live tracking",
		logger.Duration("fetch_interval", s.cfg.FetchInterval),
		logger.Duration("visibility_timeout", s.cfg.VisibilityTimeout))

	s.currentMinute = time.Now().UTC().Truncate(time.Minute)

	if err := s.fetchAndProcess(ctx); err != nil {
		s.logger.Error("Failed initial receiver fetch", logger.Error(err))
		s.setFetchStatus(false)
	} else {
		s.setFetchStatus(true)
	}

	s.wg.Add(1)
	go s.fetchLoop(ctx)
	return nil
}

// Stop stops polling and flushes buffered records
func (s *Service) Stop() {
	s.logger.Info("Stopping live tracking")
	close(s.stopCh)
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.flushMinute(ctx, s.currentMinute)
	if err := s.coverage.Save(ctx, s.store); err != nil {
		s.logger.Error("Failed to save coverage records", logger.Error(err))
	}
	s.logger.Info("Live tracking stopped")
}

func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.fetchAndProcess(ctx); err != nil {
				s.logger.Error("Failed to fetch receiver data", logger.Error(err))
				s.setFetchStatus(false)
			} else {
				s.setFetchStatus(true)
			}
			s.checkBoundaries(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fetchAndProcess runs one polling cycle
func (s *Service) fetchAndProcess(ctx context.Context) error {
	snap, err := s.client.FetchAircraft(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastFetch = now
	validPositions := 0

	for _, raw := range snap.Aircraft {
		rec := s.normalizer.Normalize(raw, now)
		if rec == nil {
			continue
		}
		validPositions++

		state, known := s.tracked[rec.IcaoHex]
		if !known {
			state = &trackedAircraft{firstSeen: now}
			s.tracked[rec.IcaoHex] = state
			s.logger.Debug("New aircraft",
				logger.String("hex", rec.IcaoHex),
				logger.String("callsign", rec.Callsign))
		}
		state.lastSeen = now
		if rec.Callsign != "" {
			state.callsign = rec.Callsign
		}

		transition := s.squawks.Observe(rec)
		if transition != nil {
			s.handleTransition(transition)
		}

		s.coverage.Observe(rec)
		s.pending = append(s.pending, newSnapshotRecord(rec, state.firstSeen, now, transition != nil))
	}

	s.stats.Record(now, validPositions)
	s.pruneTracked(now)
	return nil
}

// handleTransition enriches and fans out one squawk transition. Called with
// the service lock held.
func (s *Service) handleTransition(t *tracker.SquawkTransition) {
	s.transitionsTotal++
	rec := s.enricher.EnrichTransition(t)

	s.logger.Info("Squawk transition",
		logger.String("hex", t.IcaoHex),
		logger.String("from", t.FromCode),
		logger.String("to", t.ToCode),
		logger.String("category", string(tracker.Categorize(t.FromCode, t.ToCode))))

	if s.alerter != nil {
		s.alerter.SquawkAlert(rec)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishTransition(rec); err != nil {
			s.logger.Error("Failed to publish transition", logger.Error(err))
		}
	}
}

// pruneTracked drops aircraft unseen past the visibility timeout. Called with
// the service lock held.
func (s *Service) pruneTracked(now time.Time) {
	for hex, state := range s.tracked {
		if now.Sub(state.lastSeen) <= s.cfg.VisibilityTimeout {
			continue
		}
		duration := state.lastSeen.Sub(state.firstSeen).Minutes()
		s.logger.Debug("Aircraft departed",
			logger.String("hex", hex),
			logger.String("callsign", state.callsign),
			logger.Float64("visible_minutes", duration))
		delete(s.tracked, hex)
	}
}

// checkBoundaries flushes the minute buffer on minute change and rolls up
// minute files on hour change
func (s *Service) checkBoundaries(ctx context.Context) {
	now := time.Now().UTC()
	minute := now.Truncate(time.Minute)
	if minute.Equal(s.currentMinute) {
		return
	}
	prev := s.currentMinute
	s.currentMinute = minute

	s.flushMinute(ctx, prev)

	if prev.Hour() != minute.Hour() || !prev.Truncate(time.Hour).Equal(minute.Truncate(time.Hour)) {
		s.rollupHour(ctx, prev.Truncate(time.Hour))
		if err := s.coverage.Save(ctx, s.store); err != nil {
			s.logger.Error("Failed to save coverage records", logger.Error(err))
		}
	}
}

// flushMinute uploads the buffered records as the minute's snapshot object
func (s *Service) flushMinute(ctx context.Context, minute time.Time) {
	s.mu.Lock()
	records := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(records) == 0 {
		return
	}

	data, err := encodeNDJSON(records)
	if err != nil {
		s.logger.Error("Failed to encode minute snapshot", logger.Error(err))
		return
	}
	key := store.MinuteKey(minute)
	if err := s.store.Put(ctx, key, data); err != nil {
		s.logger.Error("Failed to upload minute snapshot",
			logger.String("key", key),
			logger.Error(err))
		// Put the records back so the next flush retries them
		s.mu.Lock()
		s.pending = append(records, s.pending...)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.lastUpload = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Debug("Uploaded minute snapshot",
		logger.String("key", key),
		logger.Int("records", len(records)))
}

// rollupHour merges the previous hour's minute files into one hourly object
// keyed on (ICAO, Last_Seen) and deletes the merged minute files
func (s *Service) rollupHour(ctx context.Context, hour time.Time) {
	objects, err := s.store.List(ctx, store.HourPrefix(hour))
	if err != nil {
		s.logger.Error("Failed to list minute snapshots for rollup",
			logger.String("hour", hour.Format("2006-01-02 15:00")),
			logger.Error(err))
		return
	}
	if len(objects) == 0 {
		return
	}

	var contents [][]byte
	var mergedKeys []string
	for _, obj := range objects {
		data, err := s.store.Get(ctx, obj.Key)
		if err != nil {
			s.logger.Warn("Skipping unreadable minute snapshot",
				logger.String("key", obj.Key),
				logger.Error(err))
			continue
		}
		contents = append(contents, data)
		mergedKeys = append(mergedKeys, obj.Key)
	}
	if len(contents) == 0 {
		return
	}

	merged, total, kept := dedupeLines(contents)
	hourlyKey := store.HourlyKey(hour)
	if err := s.store.Put(ctx, hourlyKey, merged); err != nil {
		s.logger.Error("Failed to write hourly rollup, keeping minute files",
			logger.String("key", hourlyKey),
			logger.Error(err))
		return
	}

	deleted := 0
	for _, key := range mergedKeys {
		// The minute-00 key is the rollup itself
		if store.IsHourlyKey(key) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to delete merged minute snapshot",
				logger.String("key", key),
				logger.Error(err))
			continue
		}
		deleted++
	}

	s.logger.Info("Rolled up hour",
		logger.String("key", hourlyKey),
		logger.Int("records_in", total),
		logger.Int("records_out", kept),
		logger.Int("minute_files_deleted", deleted))
}

func (s *Service) setFetchStatus(ok bool) {
	s.mu.Lock()
	s.fetchOK = ok
	s.mu.Unlock()
}

// GetStatus returns a snapshot of the live-service state
func (s *Service) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		LastFetch:       s.lastFetch,
		FetchOK:         s.fetchOK,
		TrackedAircraft: len(s.tracked),
		PendingRecords:  len(s.pending),
		LastUpload:      s.lastUpload,
		Transitions:     s.transitionsTotal,
		Positions:       s.stats.Counts(time.Now().UTC()),
	}
}

// PositionCountsNow returns the rolling position-report totals
func (s *Service) PositionCountsNow() PositionCounts {
	return s.stats.Counts(time.Now().UTC())
}
