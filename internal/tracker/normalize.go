package tracker

import (
	"strconv"
	"strings"
	"time"
)

// Snapshot writers have gone through several field naming schemes over the
// years (live PiAware JSON, the NDJSON minute files, and older CSV-derived
// exports). Each canonical field resolves through an alias list, first
// present alias wins.
var (
	hexAliases          = []string{"hex", "ICAO", "icao"}
	callsignAliases     = []string{"flight", "Ident", "ident", "callsign"}
	registrationAliases = []string{"r", "Registration", "registration"}
	typeAliases         = []string{"t", "Aircraft_type", "aircraft_type", "type"}
	squawkAliases       = []string{"squawk", "Squawk"}
	latAliases          = []string{"lat", "Latitude", "latitude"}
	lonAliases          = []string{"lon", "Longitude", "longitude"}
	altitudeAliases     = []string{"alt_baro", "Altitude_ft", "altitude", "alt"}
	speedAliases        = []string{"gs", "Speed_kt", "speed"}
	timestampAliases    = []string{
		"Position_Timestamp", "position_timestamp",
		"lastSeen", "Last_Seen", "last_seen",
		"seen_time", "timestamp", "seen",
	}
)

// Numeric timestamps below this are Unix seconds rather than milliseconds
const millisecondThreshold = 1e12

// Numeric values below this many seconds are not epoch timestamps. Live
// PiAware records carry `seen` as an age in seconds since the last message
// (e.g. 12.3), which must fall through to the next alias or the file time.
const epochFloorSeconds = 1e6

// Timestamp string layouts seen in snapshot files
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2006-01-02 15:04:05 UTC",
	"2006-01-02 15:04:05",
}

// Normalizer maps heterogeneous raw snapshot objects into PositionRecords.
// It is stateless apart from a count of dropped records.
type Normalizer struct {
	dropped int
}

// NewNormalizer creates a Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Dropped returns how many records were rejected so far
func (n *Normalizer) Dropped() int {
	return n.dropped
}

// Normalize converts one raw snapshot object into a PositionRecord. fileTime
// is the snapshot file's modification time, used when the record carries no
// timestamp of its own. Returns nil when required fields are missing or
// unparseable; such records are counted, never fatal.
func (n *Normalizer) Normalize(raw map[string]any, fileTime time.Time) *PositionRecord {
	hex := stringField(raw, hexAliases)
	if hex == "" {
		n.dropped++
		return nil
	}

	lat, latOK := floatField(raw, latAliases)
	lon, lonOK := floatField(raw, lonAliases)
	if !latOK || !lonOK || !validPosition(lat, lon) {
		n.dropped++
		return nil
	}

	tsMs, ok := resolveTimestamp(raw, fileTime)
	if !ok {
		n.dropped++
		return nil
	}

	rec := &PositionRecord{
		IcaoHex:      strings.ToLower(strings.TrimSpace(hex)),
		Callsign:     strings.TrimSpace(stringField(raw, callsignAliases)),
		Registration: stringField(raw, registrationAliases),
		AircraftType: stringField(raw, typeAliases),
		TimestampMs:  tsMs,
		Lat:          lat,
		Lon:          lon,
		Squawk:       rawSquawk(raw),
	}
	if alt, ok := floatField(raw, altitudeAliases); ok {
		rec.AltitudeFt = &alt
	}
	if gs, ok := floatField(raw, speedAliases); ok {
		rec.GroundSpeedKt = &gs
	}
	return rec
}

// rawSquawk keeps the literal squawk string, including the "N/A" sentinel the
// minute-file writer emits when the code becomes unreadable. Only a missing
// field maps to "".
func rawSquawk(raw map[string]any) string {
	for _, key := range squawkAliases {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			return strings.TrimSpace(s)
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

// resolveTimestamp picks the record timestamp: explicit per-record value
// first, file modification time as fallback. Numeric values below the
// 10-digit threshold are seconds and get scaled to milliseconds; values below
// the epoch floor are relative ages, not timestamps, and are skipped.
func resolveTimestamp(raw map[string]any, fileTime time.Time) (int64, bool) {
	for _, key := range timestampAliases {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t < epochFloorSeconds {
				continue
			}
			if t < millisecondThreshold {
				return int64(t * 1000), true
			}
			return int64(t), true
		case string:
			s := strings.TrimSpace(t)
			if s == "" || s == "N/A" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				if f < epochFloorSeconds {
					continue
				}
				if f < millisecondThreshold {
					return int64(f * 1000), true
				}
				return int64(f), true
			}
			for _, layout := range timestampLayouts {
				if parsed, err := time.Parse(layout, s); err == nil {
					return parsed.UTC().UnixMilli(), true
				}
			}
		}
	}
	if fileTime.IsZero() {
		return 0, false
	}
	return fileTime.UTC().UnixMilli(), true
}

// stringField returns the first non-empty string alias, skipping "N/A"
func stringField(raw map[string]any, aliases []string) string {
	for _, key := range aliases {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" && s != "N/A" {
				return s
			}
		}
	}
	return ""
}

// floatField returns the first parseable numeric alias. Accepts numbers and
// numeric strings; "N/A", "ground" and other non-numeric markers are skipped.
func floatField(raw map[string]any, aliases []string) (float64, bool) {
	for _, key := range aliases {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		switch f := v.(type) {
		case float64:
			return f, true
		case string:
			s := strings.TrimSpace(f)
			if s == "" || s == "N/A" {
				continue
			}
			if parsed, err := strconv.ParseFloat(s, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func validPosition(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
