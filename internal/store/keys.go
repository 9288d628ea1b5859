package store

import (
	"fmt"
	"strings"
	"time"
)

// SnapshotPrefix is the shared prefix of all position snapshot objects
const SnapshotPrefix = "piaware_aircraft_log_"

// ReceptionRecordKey is the object holding the sector/altitude reception
// records as tab-separated text
const ReceptionRecordKey = "piaware.reception.record"

const snapshotTimeLayout = "20060102_1504"

// MinuteKey returns the snapshot key for the minute containing t
func MinuteKey(t time.Time) string {
	return SnapshotPrefix + t.UTC().Format(snapshotTimeLayout) + ".json"
}

// HourlyKey returns the hourly rollup key for the hour containing t. It
// shares the name of the minute-00 snapshot: the rollup overwrites it.
func HourlyKey(t time.Time) string {
	return MinuteKey(t.UTC().Truncate(time.Hour))
}

// HourPrefix returns the key prefix matching every minute snapshot of the
// hour containing t
func HourPrefix(t time.Time) string {
	return SnapshotPrefix + t.UTC().Format("20060102_15")
}

// FlightReportKey returns the key of an hourly flight rollup report
func FlightReportKey(day time.Time, hour int) string {
	return fmt.Sprintf("reports/flights_%s_%02d00.json", day.UTC().Format("20060102"), hour)
}

// DailyFlightReportKey returns the key of a daily flight rollup report
func DailyFlightReportKey(day time.Time) string {
	return fmt.Sprintf("reports/flights_%s.json", day.UTC().Format("20060102"))
}

// TransitionReportKey returns the key of a daily squawk transition report
func TransitionReportKey(day time.Time) string {
	return fmt.Sprintf("reports/squawks_%s.json", day.UTC().Format("20060102"))
}

// ParseSnapshotKey extracts the UTC minute a snapshot key names
func ParseSnapshotKey(key string) (time.Time, error) {
	name := key[strings.LastIndex(key, "/")+1:]
	if !strings.HasPrefix(name, SnapshotPrefix) || !strings.HasSuffix(name, ".json") {
		return time.Time{}, fmt.Errorf("not a snapshot key: %s", key)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, SnapshotPrefix), ".json")
	t, err := time.ParseInLocation(snapshotTimeLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad snapshot timestamp in key %s: %w", key, err)
	}
	return t, nil
}

// IsHourlyKey reports whether a snapshot key names an hourly rollup
// (minute 00)
func IsHourlyKey(key string) bool {
	t, err := ParseSnapshotKey(key)
	return err == nil && t.Minute() == 0
}
