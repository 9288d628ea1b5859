// Package coverage maintains receiver reception records: for every 30-degree
// bearing sector and 5000 ft altitude zone, the longest slant range ever
// observed, with the aircraft that set it.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skyward/flighttrack/internal/geo"
	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

// Record is the longest-range reception for one sector/altitude-zone cell
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	Sector        int       `json:"sector"`
	AltitudeZone  int       `json:"altitude_zone"`
	BearingDeg    float64   `json:"bearing_deg"`
	MagBearingDeg float64   `json:"mag_bearing_deg"`
	SlantNM       float64   `json:"slant_nm"`
	SurfaceNM     float64   `json:"surface_nm"`
	AltitudeFt    float64   `json:"altitude_ft"`
	IcaoHex       string    `json:"hex"`
	Callsign      string    `json:"callsign"`
	Registration  string    `json:"registration"`
	Type          string    `json:"type"`
}

type cellKey struct {
	sector int
	zone   int
}

// Tracker accumulates reception records against a fixed receiver position
type Tracker struct {
	mu           sync.RWMutex
	records      map[cellKey]Record
	receiverLat  float64
	receiverLon  float64
	receiverAlt  float64
	magVariation float64
	dirty        bool
	logger       *logger.Logger
}

// NewTracker creates a Tracker for a receiver at the given position. The
// magnetic variation at the receiver is computed once and applied to every
// record's magnetic bearing.
func NewTracker(lat, lon, altFt float64, log *logger.Logger) *Tracker {
	return &Tracker{
		records:      make(map[cellKey]Record),
		receiverLat:  lat,
		receiverLon:  lon,
		receiverAlt:  altFt,
		magVariation: geo.MagneticVariation(lat, lon, altFt, time.Now().UTC()),
		logger:       log.Named("coverage"),
	}
}

// Observe checks one position against the records and returns true when it
// set a new one. Positions without altitude are skipped.
func (t *Tracker) Observe(rec *tracker.PositionRecord) bool {
	if rec.AltitudeFt == nil {
		return false
	}
	surface := geo.DistanceNM(t.receiverLat, t.receiverLon, rec.Lat, rec.Lon)
	bearing := geo.BearingDeg(t.receiverLat, t.receiverLon, rec.Lat, rec.Lon)
	slant := geo.SlantRangeNM(surface, *rec.AltitudeFt, t.receiverAlt)
	key := cellKey{sector: geo.Sector(bearing), zone: geo.AltitudeZone(*rec.AltitudeFt)}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.records[key]
	if ok && slant <= existing.SlantNM {
		return false
	}
	t.records[key] = Record{
		Timestamp:     time.UnixMilli(rec.TimestampMs).UTC(),
		Sector:        key.sector,
		AltitudeZone:  key.zone,
		BearingDeg:    bearing,
		MagBearingDeg: normalizeBearing(bearing - t.magVariation),
		SlantNM:       slant,
		SurfaceNM:     surface,
		AltitudeFt:    *rec.AltitudeFt,
		IcaoHex:       rec.IcaoHex,
		Callsign:      rec.Callsign,
		Registration:  rec.Registration,
		Type:          rec.AircraftType,
	}
	t.dirty = true
	return true
}

func normalizeBearing(b float64) float64 {
	for b < 0 {
		b += 360
	}
	for b >= 360 {
		b -= 360
	}
	return b
}

// Records returns all records sorted by sector, then altitude zone
func (t *Tracker) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sector != out[j].Sector {
			return out[i].Sector < out[j].Sector
		}
		return out[i].AltitudeZone < out[j].AltitudeZone
	})
	return out
}

// MaxSlant returns the all-time longest record, or false when none exist
func (t *Tracker) MaxSlant() (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best Record
	found := false
	for _, r := range t.records {
		if !found || r.SlantNM > best.SlantNM {
			best = r
			found = true
		}
	}
	return best, found
}

const recordTimeLayout = "2006-01-02 15:04:05 UTC"

// EncodeRecords renders records as the tab-separated artifact format
func EncodeRecords(records []Record) []byte {
	var b strings.Builder
	b.WriteString("Timestamp\tSector\tAlt Zone\tBearing\tSlant\tPos\tAlt\tHex\tFlight\tReg\tType\n")
	for _, r := range records {
		fields := []string{
			r.Timestamp.UTC().Format(recordTimeLayout),
			fmt.Sprintf("Sector %d (%d-%d°)", r.Sector, r.Sector*geo.SectorWidthDeg, (r.Sector+1)*geo.SectorWidthDeg-1),
			fmt.Sprintf("Alt Zone %d (%d-%d ft)", r.AltitudeZone, r.AltitudeZone*geo.AltitudeZoneFt, (r.AltitudeZone+1)*geo.AltitudeZoneFt-1),
			fmt.Sprintf("Bearing: %.1f°", r.BearingDeg),
			fmt.Sprintf("Slant: %.2f nm", r.SlantNM),
			fmt.Sprintf("Pos: %.2f nm", r.SurfaceNM),
			fmt.Sprintf("Alt: %.0f ft", r.AltitudeFt),
			"Hex: " + r.IcaoHex,
			"Flight: " + orNA(r.Callsign),
			"Reg: " + orNA(r.Registration),
			"Type: " + orNA(r.Type),
		}
		b.WriteString(strings.Join(fields, "\t"))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func fromNA(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}

// ParseRecords parses the tab-separated artifact format. Malformed lines are
// skipped.
func ParseRecords(data []byte) []Record {
	var records []Record
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 11 {
			continue
		}
		ts, err := time.Parse(recordTimeLayout, parts[0])
		if err != nil {
			continue
		}
		var r Record
		r.Timestamp = ts
		if _, err := fmt.Sscanf(parts[1], "Sector %d", &r.Sector); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(parts[2], "Alt Zone %d", &r.AltitudeZone); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(parts[3], "Bearing: %f", &r.BearingDeg); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(parts[4], "Slant: %f nm", &r.SlantNM); err != nil {
			continue
		}
		fmt.Sscanf(parts[5], "Pos: %f nm", &r.SurfaceNM)
		fmt.Sscanf(parts[6], "Alt: %f ft", &r.AltitudeFt)
		r.IcaoHex = strings.TrimPrefix(parts[7], "Hex: ")
		r.Callsign = fromNA(strings.TrimPrefix(parts[8], "Flight: "))
		r.Registration = fromNA(strings.TrimPrefix(parts[9], "Reg: "))
		r.Type = fromNA(strings.TrimPrefix(parts[10], "Type: "))
		records = append(records, r)
	}
	return records
}

// Load replaces the tracker's records from the store artifact. A missing
// artifact starts fresh.
func (t *Tracker) Load(ctx context.Context, s store.Store) error {
	data, err := s.Get(ctx, store.ReceptionRecordKey)
	if errors.Is(err, store.ErrNotFound) {
		t.logger.Info("No reception record artifact, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load reception records: %w", err)
	}

	records := ParseRecords(data)
	t.mu.Lock()
	for _, r := range records {
		key := cellKey{sector: r.Sector, zone: r.AltitudeZone}
		if existing, ok := t.records[key]; !ok || r.SlantNM > existing.SlantNM {
			t.records[key] = r
		}
	}
	t.mu.Unlock()

	t.logger.Info("Loaded reception records", logger.Int("count", len(records)))
	return nil
}

// Save writes the current records to the store when any changed since the
// last save
func (t *Tracker) Save(ctx context.Context, s store.Store) error {
	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return nil
	}
	t.dirty = false
	t.mu.Unlock()

	data := EncodeRecords(t.Records())
	if err := s.Put(ctx, store.ReceptionRecordKey, data); err != nil {
		t.mu.Lock()
		t.dirty = true
		t.mu.Unlock()
		return fmt.Errorf("failed to save reception records: %w", err)
	}
	return nil
}
