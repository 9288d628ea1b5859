package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/skyward/flighttrack/internal/coverage"
	"github.com/skyward/flighttrack/internal/digest"
	"github.com/skyward/flighttrack/internal/enrich"
	"github.com/skyward/flighttrack/internal/live"
	"github.com/skyward/flighttrack/internal/storage/sqlite"
	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/internal/websocket"
	"github.com/skyward/flighttrack/pkg/logger"
)

// Handler contains the API handlers. liveService, flightDB, and
// digestService may be nil when the corresponding feature is not running;
// their endpoints then answer 503.
type Handler struct {
	artifacts     store.Store
	flightDB      *sqlite.FlightStorage
	liveService   *live.Service
	coverage      *coverage.Tracker
	digestService *digest.Service
	enricher      *enrich.Enricher
	wsServer      *websocket.Server
	logger        *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(artifacts store.Store, flightDB *sqlite.FlightStorage, liveService *live.Service,
	cov *coverage.Tracker, digestService *digest.Service, enricher *enrich.Enricher,
	wsServer *websocket.Server, log *logger.Logger) *Handler {
	return &Handler{
		artifacts:     artifacts,
		flightDB:      flightDB,
		liveService:   liveService,
		coverage:      cov,
		digestService: digestService,
		enricher:      enricher,
		wsServer:      wsServer,
		logger:        log.Named("api-handler"),
	}
}

// GetFlights serves a flight rollup: ?date=YYYY-MM-DD (default today, UTC)
// and optional &hour=H for the hourly report. The stored rollup artifact is
// the canonical answer; a missing artifact is an empty day, not an error.
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	day, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	key := store.DailyFlightReportKey(day)
	if hourParam := r.URL.Query().Get("hour"); hourParam != "" {
		hour, err := strconv.Atoi(hourParam)
		if err != nil || hour < 0 || hour > 23 {
			WriteJSONError(w, http.StatusBadRequest, "invalid hour, want 0-23")
			return
		}
		key = store.FlightReportKey(day, hour)
	}

	data, err := h.artifacts.Get(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		WriteJSON(w, http.StatusOK, []tracker.FlightRecord{})
		return
	}
	if err != nil {
		h.logger.Error("Failed to read flight report",
			logger.String("key", key),
			logger.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, "failed to read flight report")
		return
	}

	var records []tracker.FlightRecord
	if err := json.Unmarshal(data, &records); err != nil {
		h.logger.Error("Corrupt flight report artifact",
			logger.String("key", key),
			logger.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, "corrupt flight report")
		return
	}
	WriteJSON(w, http.StatusOK, records)
}

// GetSquawks serves the squawk transition report for a window:
// ?start=RFC3339&end=RFC3339, defaulting to the last 24 hours
func (h *Handler) GetSquawks(w http.ResponseWriter, r *http.Request) {
	if h.flightDB == nil {
		WriteJSONError(w, http.StatusServiceUnavailable, "query store not available")
		return
	}

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "invalid start, want RFC3339")
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "invalid end, want RFC3339")
			return
		}
	}
	if !start.Before(end) {
		WriteJSONError(w, http.StatusBadRequest, "start must precede end")
		return
	}

	transitions, err := h.flightDB.GetTransitions(start, end)
	if err != nil {
		h.logger.Error("Failed to query transitions", logger.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, "failed to query transitions")
		return
	}
	WriteJSON(w, http.StatusOK, h.enricher.BuildTransitionReport(transitions))
}

// GetPositionStats serves rolling position-report counts plus the chart
// resolution for the requested span (?span=6h style duration, default 1h)
func (h *Handler) GetPositionStats(w http.ResponseWriter, r *http.Request) {
	if h.liveService == nil {
		WriteJSONError(w, http.StatusServiceUnavailable, "live tracking not running")
		return
	}

	span := time.Hour
	if v := r.URL.Query().Get("span"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			WriteJSONError(w, http.StatusBadRequest, "invalid span, want a duration like 30m or 6h")
			return
		}
		span = parsed
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"span":               span.String(),
		"resolution_minutes": tracker.ResolutionMinutes(span),
		"counts":             h.liveService.PositionCountsNow(),
	})
}

// GetCoverage serves the sector/altitude-zone reception records
func (h *Handler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	records := h.coverage.Records()
	response := map[string]any{
		"count":   len(records),
		"records": records,
	}
	if best, ok := h.coverage.MaxSlant(); ok {
		response["max_slant"] = best
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetStatus serves the service status snapshot
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"time":       time.Now().UTC(),
		"ws_clients": h.wsServer.ClientCount(),
	}
	if h.liveService != nil {
		response["live"] = h.liveService.GetStatus()
	}
	if h.flightDB != nil {
		flights, transitions, err := h.flightDB.Counts()
		if err != nil {
			h.logger.Error("Failed to count stored rows", logger.Error(err))
		} else {
			response["stored_flights"] = flights
			response["stored_transitions"] = transitions
		}
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetDigest serves the LLM daily digest for ?date=YYYY-MM-DD (default today)
func (h *Handler) GetDigest(w http.ResponseWriter, r *http.Request) {
	if h.digestService == nil {
		WriteJSONError(w, http.StatusServiceUnavailable, "digest not enabled")
		return
	}
	if h.flightDB == nil {
		WriteJSONError(w, http.StatusServiceUnavailable, "query store not available")
		return
	}

	day, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	window := tracker.DayWindow(day)
	flights, err := h.flightDB.GetFlights(window.Start, window.End)
	if err != nil {
		h.logger.Error("Failed to query flights for digest", logger.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, "failed to query flights")
		return
	}
	transitions, err := h.flightDB.GetTransitions(window.Start, window.End)
	if err != nil {
		h.logger.Error("Failed to query transitions for digest", logger.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, "failed to query transitions")
		return
	}

	bucket := tracker.BuildBucket(window, flights, transitions)
	text, err := h.digestService.DailyDigest(r.Context(), day, bucket)
	if err != nil {
		h.logger.Error("Failed to generate digest", logger.Error(err))
		WriteJSONError(w, http.StatusBadGateway, "failed to generate digest")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"date":   day.Format("2006-01-02"),
		"digest": text,
	})
}

// GetHealth is the liveness probe
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleWebSocket upgrades to the event stream
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// parseDate parses YYYY-MM-DD, defaulting to today (UTC)
func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", v)
}
