package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skyward/flighttrack/internal/coverage"
	"github.com/skyward/flighttrack/internal/enrich"
	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/internal/websocket"
	"github.com/skyward/flighttrack/pkg/logger"
)

func testServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	log := logger.NewNop()

	artifacts, err := store.NewFS(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	handler := NewHandler(artifacts, nil, nil,
		coverage.NewTracker(43.6777, -79.6248, 569, log),
		nil, enrich.New(log), websocket.NewServer(log), log)
	srv := httptest.NewServer(NewRouter(handler, log).Routes())
	t.Cleanup(srv.Close)
	return srv, artifacts
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func TestGetFlightsMissingReportIsEmpty(t *testing.T) {
	srv, _ := testServer(t)

	var records []tracker.FlightRecord
	getJSON(t, srv.URL+"/api/v1/flights?date=2025-03-01", http.StatusOK, &records)
	if len(records) != 0 {
		t.Errorf("expected empty day, got %d records", len(records))
	}
}

func TestGetFlightsServesStoredReport(t *testing.T) {
	srv, artifacts := testServer(t)

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	stored := []tracker.FlightRecord{
		{Icao: "c01234", Callsign: "ACA881", StartTime: "2025-03-01T14:02:11Z", EndTime: "2025-03-01T14:40:55Z", DurationMin: "38.73"},
	}
	data, _ := json.Marshal(stored)
	if err := artifacts.Put(context.Background(), store.FlightReportKey(day, 14), data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var records []tracker.FlightRecord
	getJSON(t, srv.URL+"/api/v1/flights?date=2025-03-01&hour=14", http.StatusOK, &records)
	if len(records) != 1 || records[0].Icao != "c01234" {
		t.Fatalf("unexpected records: %+v", records)
	}

	// Daily key is distinct from the hourly one
	getJSON(t, srv.URL+"/api/v1/flights?date=2025-03-01", http.StatusOK, &records)
	if len(records) != 0 {
		t.Errorf("daily report should be empty, got %d records", len(records))
	}
}

func TestGetFlightsRejectsBadParams(t *testing.T) {
	srv, _ := testServer(t)

	getJSON(t, srv.URL+"/api/v1/flights?date=03/01/2025", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/v1/flights?date=2025-03-01&hour=24", http.StatusBadRequest, nil)
}

func TestGetSquawksWithoutQueryStore(t *testing.T) {
	srv, _ := testServer(t)
	getJSON(t, srv.URL+"/api/v1/squawks", http.StatusServiceUnavailable, nil)
}

func TestGetPositionStatsWithoutLiveService(t *testing.T) {
	srv, _ := testServer(t)
	getJSON(t, srv.URL+"/api/v1/stats/positions", http.StatusServiceUnavailable, nil)
}

func TestGetCoverageEmpty(t *testing.T) {
	srv, _ := testServer(t)

	var response struct {
		Count   int               `json:"count"`
		Records []coverage.Record `json:"records"`
	}
	getJSON(t, srv.URL+"/api/v1/coverage", http.StatusOK, &response)
	if response.Count != 0 {
		t.Errorf("expected no coverage records, got %d", response.Count)
	}
}

func TestGetStatusAndHealth(t *testing.T) {
	srv, _ := testServer(t)

	var status map[string]any
	getJSON(t, srv.URL+"/api/v1/status", http.StatusOK, &status)
	if _, ok := status["ws_clients"]; !ok {
		t.Error("status missing ws_clients")
	}

	var health map[string]string
	getJSON(t, srv.URL+"/api/v1/health", http.StatusOK, &health)
	if health["status"] != "ok" {
		t.Errorf("health = %q, want ok", health["status"])
	}
}

func TestGetDigestDisabled(t *testing.T) {
	srv, _ := testServer(t)
	getJSON(t, srv.URL+"/api/v1/digest", http.StatusServiceUnavailable, nil)
}
