package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skyward/flighttrack/internal/coverage"
	"github.com/skyward/flighttrack/internal/enrich"
	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

type captureAlerter struct {
	alerts []tracker.TransitionRecord
}

func (c *captureAlerter) SquawkAlert(rec tracker.TransitionRecord) {
	c.alerts = append(c.alerts, rec)
}

func newTestService(t *testing.T, sourceURL string, alerter Alerter) (*Service, store.Store) {
	t.Helper()
	fs, err := store.NewFS(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(sourceURL, time.Second, logger.NewNop())
	cov := coverage.NewTracker(43.6777, -79.6248, 569, logger.NewNop())
	svc := NewService(client, fs, enrich.New(logger.NewNop()), cov, alerter, nil,
		ServiceConfig{VisibilityTimeout: 30 * time.Second}, logger.NewNop())
	return svc, fs
}

func aircraftJSON(squawk string) string {
	return fmt.Sprintf(`{
		"now": 1740830400.0,
		"messages": 12345,
		"aircraft": [
			{"hex": "c0ffee", "flight": "ACA881 ", "squawk": %q, "lat": 43.9, "lon": -79.2, "alt_baro": 12000, "gs": 320},
			{"hex": "deadbf"}
		]
	}`, squawk)
}

func TestFetchAndProcess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, aircraftJSON("1200"))
	}))
	defer server.Close()

	svc, _ := newTestService(t, server.URL+"/data/aircraft.json", nil)
	if err := svc.fetchAndProcess(context.Background()); err != nil {
		t.Fatal(err)
	}

	status := svc.GetStatus()
	if status.TrackedAircraft != 1 {
		t.Errorf("TrackedAircraft = %d, want 1 (positionless aircraft dropped)", status.TrackedAircraft)
	}
	if status.PendingRecords != 1 {
		t.Errorf("PendingRecords = %d, want 1", status.PendingRecords)
	}
	if status.Positions.LastMinute != 1 {
		t.Errorf("Positions.LastMinute = %d, want 1", status.Positions.LastMinute)
	}
}

func TestSquawkTransitionFansOut(t *testing.T) {
	squawk := "1200"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, aircraftJSON(squawk))
	}))
	defer server.Close()

	alerter := &captureAlerter{}
	svc, _ := newTestService(t, server.URL+"/data/aircraft.json", alerter)

	ctx := context.Background()
	if err := svc.fetchAndProcess(ctx); err != nil {
		t.Fatal(err)
	}
	squawk = "7700"
	if err := svc.fetchAndProcess(ctx); err != nil {
		t.Fatal(err)
	}

	if len(alerter.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerter.alerts))
	}
	alert := alerter.alerts[0]
	if alert.From != "1200" || alert.To != "7700" {
		t.Errorf("alert = %s->%s, want 1200->7700", alert.From, alert.To)
	}
	if svc.GetStatus().Transitions != 1 {
		t.Errorf("Transitions = %d, want 1", svc.GetStatus().Transitions)
	}

	// The snapshot line for the transition cycle carries squawk_changed
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	if len(svc.pending) != 2 {
		t.Fatalf("pending = %d records, want 2", len(svc.pending))
	}
	if svc.pending[0].SquawkChanged || !svc.pending[1].SquawkChanged {
		t.Errorf("squawk_changed flags = %v/%v, want false/true",
			svc.pending[0].SquawkChanged, svc.pending[1].SquawkChanged)
	}
}

func TestFlushMinute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, aircraftJSON("1200"))
	}))
	defer server.Close()

	svc, fs := newTestService(t, server.URL+"/data/aircraft.json", nil)
	ctx := context.Background()
	if err := svc.fetchAndProcess(ctx); err != nil {
		t.Fatal(err)
	}

	minute := time.Date(2025, 3, 1, 12, 4, 0, 0, time.UTC)
	svc.flushMinute(ctx, minute)

	data, err := fs.Get(ctx, store.MinuteKey(minute))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]), &raw); err != nil {
		t.Fatal(err)
	}
	if raw["ICAO"] != "c0ffee" || raw["Ident"] != "ACA881" {
		t.Errorf("snapshot line = %v", raw)
	}
	if svc.GetStatus().PendingRecords != 0 {
		t.Error("flush left records pending")
	}
	if svc.GetStatus().LastUpload.IsZero() {
		t.Error("LastUpload not set after flush")
	}
}

func TestRollupHour(t *testing.T) {
	svc, fs := newTestService(t, "http://invalid.local/data/aircraft.json", nil)
	ctx := context.Background()
	hour := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	dup := `{"ICAO": "c0ffee", "Last_Seen": "2025-03-01T12:00:30Z"}`
	for min, content := range map[int]string{
		0:  dup + "\n",
		1:  dup + "\n" + `{"ICAO": "c0ffee", "Last_Seen": "2025-03-01T12:01:30Z"}` + "\n",
		59: `{"ICAO": "abc123", "Last_Seen": "2025-03-01T12:59:10Z"}` + "\n",
	} {
		key := store.MinuteKey(hour.Add(time.Duration(min) * time.Minute))
		if err := fs.Put(ctx, key, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	svc.rollupHour(ctx, hour)

	data, err := fs.Get(ctx, store.HourlyKey(hour))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Errorf("hourly rollup holds %d lines, want 3 deduplicated", len(lines))
	}

	// Minute files other than the hourly key are gone
	objects, err := fs.List(ctx, store.HourPrefix(hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 1 || objects[0].Key != store.HourlyKey(hour) {
		t.Errorf("remaining objects = %+v, want only the hourly rollup", objects)
	}
}
