package store

import (
	"testing"
	"time"
)

func TestMinuteKey(t *testing.T) {
	ts := time.Date(2025, 3, 1, 14, 7, 30, 0, time.UTC)
	if got := MinuteKey(ts); got != "piaware_aircraft_log_20250301_1407.json" {
		t.Errorf("MinuteKey = %q", got)
	}
	// Non-UTC input converts before formatting
	est := time.FixedZone("EST", -5*3600)
	if got := MinuteKey(ts.In(est)); got != "piaware_aircraft_log_20250301_1407.json" {
		t.Errorf("MinuteKey(EST) = %q", got)
	}
}

func TestHourlyKey(t *testing.T) {
	ts := time.Date(2025, 3, 1, 14, 59, 0, 0, time.UTC)
	if got := HourlyKey(ts); got != "piaware_aircraft_log_20250301_1400.json" {
		t.Errorf("HourlyKey = %q", got)
	}
	if !IsHourlyKey(HourlyKey(ts)) {
		t.Error("HourlyKey output not recognized by IsHourlyKey")
	}
	if IsHourlyKey(MinuteKey(ts)) {
		t.Error("minute-59 key misread as hourly")
	}
}

func TestParseSnapshotKey(t *testing.T) {
	ts, err := ParseSnapshotKey("piaware_aircraft_log_20250301_1407.json")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 3, 1, 14, 7, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("parsed %v, want %v", ts, want)
	}

	for _, bad := range []string{
		"reports/flights_20250301.json",
		"piaware_aircraft_log_garbage.json",
		"piaware_aircraft_log_20250301_1407.csv",
	} {
		if _, err := ParseSnapshotKey(bad); err == nil {
			t.Errorf("ParseSnapshotKey(%q) accepted a non-snapshot key", bad)
		}
	}
}

func TestHourPrefix(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if got := HourPrefix(ts); got != "piaware_aircraft_log_20250301_09" {
		t.Errorf("HourPrefix = %q", got)
	}
}

func TestReportKeys(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := FlightReportKey(day, 6); got != "reports/flights_20250301_0600.json" {
		t.Errorf("FlightReportKey = %q", got)
	}
	if got := DailyFlightReportKey(day); got != "reports/flights_20250301.json" {
		t.Errorf("DailyFlightReportKey = %q", got)
	}
	if got := TransitionReportKey(day); got != "reports/squawks_20250301.json" {
		t.Errorf("TransitionReportKey = %q", got)
	}
}
