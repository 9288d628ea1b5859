package coverage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/skyward/flighttrack/internal/store"
	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

func newTestTracker() *Tracker {
	return NewTracker(43.6777, -79.6248, 569, logger.NewNop())
}

func posAt(hex string, lat, lon, altFt float64) *tracker.PositionRecord {
	return &tracker.PositionRecord{
		IcaoHex:     hex,
		TimestampMs: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Lat:         lat,
		Lon:         lon,
		AltitudeFt:  &altFt,
	}
}

func TestObserveSetsAndBeatsRecords(t *testing.T) {
	tr := newTestTracker()

	near := posAt("aaa111", 44.0, -79.6248, 20000) // due north, ~19 NM
	far := posAt("bbb222", 45.0, -79.6248, 21000)  // due north, ~79 NM, same zone

	if !tr.Observe(near) {
		t.Error("first position in an empty cell should set a record")
	}
	if !tr.Observe(far) {
		t.Error("longer slant in the same cell should beat the record")
	}
	if tr.Observe(near) {
		t.Error("shorter slant should not beat the record")
	}

	records := tr.Records()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (same sector and zone)", len(records))
	}
	if records[0].IcaoHex != "bbb222" {
		t.Errorf("record holder = %s, want bbb222", records[0].IcaoHex)
	}
	if records[0].Sector != 0 || records[0].AltitudeZone != 4 {
		t.Errorf("cell = sector %d zone %d, want 0/4", records[0].Sector, records[0].AltitudeZone)
	}
}

func TestObserveSkipsNoAltitude(t *testing.T) {
	tr := newTestTracker()
	rec := &tracker.PositionRecord{IcaoHex: "aaa111", Lat: 44, Lon: -79, TimestampMs: 1}
	if tr.Observe(rec) {
		t.Error("position without altitude set a record")
	}
}

func TestRecordsSorted(t *testing.T) {
	tr := newTestTracker()
	tr.Observe(posAt("aaa111", 44.0, -79.6248, 20000)) // sector 0
	tr.Observe(posAt("bbb222", 43.6777, -78.0, 20000)) // sector 2-3 (east)
	tr.Observe(posAt("ccc333", 44.0, -79.6248, 3000))  // sector 0, zone 0

	records := tr.Records()
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		a, b := records[i-1], records[i]
		if a.Sector > b.Sector || (a.Sector == b.Sector && a.AltitudeZone > b.AltitudeZone) {
			t.Errorf("records out of order at %d: %+v before %+v", i, a, b)
		}
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	tr := newTestTracker()
	tr.Observe(posAt("c0ffee", 44.5, -78.5, 33000))
	original := tr.Records()

	parsed := ParseRecords(EncodeRecords(original))
	if len(parsed) != 1 {
		t.Fatalf("parsed %d records, want 1", len(parsed))
	}
	got, want := parsed[0], original[0]
	if got.Sector != want.Sector || got.AltitudeZone != want.AltitudeZone {
		t.Errorf("cell %d/%d, want %d/%d", got.Sector, got.AltitudeZone, want.Sector, want.AltitudeZone)
	}
	if math.Abs(got.SlantNM-want.SlantNM) > 0.01 {
		t.Errorf("slant %.3f, want %.3f", got.SlantNM, want.SlantNM)
	}
	if got.IcaoHex != "c0ffee" {
		t.Errorf("hex = %q", got.IcaoHex)
	}
	if got.Callsign != "" {
		t.Errorf("empty callsign round-tripped as %q", got.Callsign)
	}
}

func TestParseRecordsSkipsMalformed(t *testing.T) {
	data := []byte("Timestamp\tSector\tAlt Zone\tBearing\tSlant\tPos\tAlt\tHex\tFlight\tReg\tType\n" +
		"garbage line\n" +
		"2025-03-01 12:00:00 UTC\tSector 3 (90-119°)\tAlt Zone 6 (30000-34999 ft)\tBearing: 95.2°\tSlant: 142.50 nm\tPos: 141.80 nm\tAlt: 33000 ft\tHex: c0ffee\tFlight: ACA881\tReg: C-FGDT\tType: A333\n")
	records := ParseRecords(data)
	if len(records) != 1 {
		t.Fatalf("parsed %d records, want 1", len(records))
	}
	if records[0].Sector != 3 || records[0].SlantNM != 142.50 {
		t.Errorf("record = %+v", records[0])
	}
}

func TestSaveLoadThroughStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewFS(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	tr := newTestTracker()
	tr.Observe(posAt("c0ffee", 44.5, -78.5, 33000))
	if err := tr.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	// Second save with no changes writes nothing and succeeds
	if err := tr.Save(ctx, s); err != nil {
		t.Fatal(err)
	}

	fresh := newTestTracker()
	if err := fresh.Load(ctx, s); err != nil {
		t.Fatal(err)
	}
	if len(fresh.Records()) != 1 {
		t.Fatalf("loaded %d records, want 1", len(fresh.Records()))
	}

	if _, ok := fresh.MaxSlant(); !ok {
		t.Error("MaxSlant found nothing after load")
	}
}

func TestLoadMissingArtifactStartsFresh(t *testing.T) {
	s, err := store.NewFS(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	tr := newTestTracker()
	if err := tr.Load(context.Background(), s); err != nil {
		t.Errorf("Load with no artifact = %v, want nil", err)
	}
}
