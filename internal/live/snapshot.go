package live

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skyward/flighttrack/internal/tracker"
)

// SnapshotRecord is the minute-file wire shape, one NDJSON line per record.
// Field names and the "N/A" sentinel match what the historical writer
// produced; the backfill normalizer depends on them through its alias tables.
type SnapshotRecord struct {
	ICAO              string  `json:"ICAO"`
	Ident             string  `json:"Ident"`
	Registration      string  `json:"Registration"`
	AircraftType      string  `json:"Aircraft_type"`
	Squawk            string  `json:"Squawk"`
	SquawkChanged     bool    `json:"squawk_changed"`
	AltitudeFt        any     `json:"Altitude_ft"`
	SpeedKt           any     `json:"Speed_kt"`
	Latitude          float64 `json:"Latitude"`
	Longitude         float64 `json:"Longitude"`
	FirstSeen         string  `json:"First_Seen"`
	LastSeen          string  `json:"Last_Seen"`
	PositionTimestamp int64   `json:"Position_Timestamp"`
}

const snapshotTimeLayout = "2006-01-02T15:04:05Z"

// newSnapshotRecord builds the wire record for one normalized position
func newSnapshotRecord(rec *tracker.PositionRecord, firstSeen, lastSeen time.Time, squawkChanged bool) SnapshotRecord {
	return SnapshotRecord{
		ICAO:              rec.IcaoHex,
		Ident:             orNA(rec.Callsign),
		Registration:      orNA(rec.Registration),
		AircraftType:      orNA(rec.AircraftType),
		Squawk:            orNA(rec.Squawk),
		SquawkChanged:     squawkChanged,
		AltitudeFt:        numOrNA(rec.AltitudeFt),
		SpeedKt:           numOrNA(rec.GroundSpeedKt),
		Latitude:          rec.Lat,
		Longitude:         rec.Lon,
		FirstSeen:         firstSeen.UTC().Format(snapshotTimeLayout),
		LastSeen:          lastSeen.UTC().Format(snapshotTimeLayout),
		PositionTimestamp: rec.TimestampMs / 1000,
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func numOrNA(v *float64) any {
	if v == nil {
		return "N/A"
	}
	return *v
}

// encodeNDJSON renders records as newline-delimited JSON
func encodeNDJSON(records []SnapshotRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return nil, fmt.Errorf("failed to encode snapshot record: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// dedupeLines merges NDJSON snapshot content keyed on (ICAO, Last_Seen),
// first occurrence wins. Unparseable lines are dropped. This is the hourly
// rollup reduction: concatenating a full hour of minute files repeats
// aircraft that were stationary across minutes.
func dedupeLines(contents [][]byte) ([]byte, int, int) {
	type dedupKey struct {
		icao     string
		lastSeen string
	}
	seen := make(map[dedupKey]bool)
	var out bytes.Buffer
	total := 0
	kept := 0

	for _, content := range contents {
		for _, line := range bytes.Split(content, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			total++
			var rec struct {
				ICAO     string `json:"ICAO"`
				LastSeen string `json:"Last_Seen"`
			}
			if err := json.Unmarshal(line, &rec); err != nil || rec.ICAO == "" {
				continue
			}
			key := dedupKey{icao: rec.ICAO, lastSeen: rec.LastSeen}
			if seen[key] {
				continue
			}
			seen[key] = true
			out.Write(line)
			out.WriteByte('\n')
			kept++
		}
	}
	return out.Bytes(), total, kept
}
