package tracker

import (
	"testing"
	"time"
)

func pos(hex string, tsMs int64) PositionRecord {
	return PositionRecord{IcaoHex: hex, TimestampMs: tsMs, Lat: 43.0, Lon: -79.0}
}

func posAt(hex string, tsMs int64, lat, lon float64) PositionRecord {
	return PositionRecord{IcaoHex: hex, TimestampMs: tsMs, Lat: lat, Lon: lon}
}

func TestSegmentSplitsOnGap(t *testing.T) {
	cfg := SegmenterConfig{GapThreshold: 5 * time.Minute, MinDuration: 30 * time.Second}

	// Two runs separated by a 10 minute gap
	positions := []PositionRecord{
		pos("abc123", 0),
		pos("abc123", 60_000),
		pos("abc123", 120_000),
		pos("abc123", 120_000+10*60_000),
		pos("abc123", 120_000+11*60_000),
	}

	segments := SegmentPositions(positions, cfg)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if len(segments[0]) != 3 || len(segments[1]) != 2 {
		t.Errorf("segment sizes = %d, %d, want 3, 2", len(segments[0]), len(segments[1]))
	}
}

func TestSegmentSortsUnorderedInput(t *testing.T) {
	cfg := DefaultSegmenterConfig()
	positions := []PositionRecord{
		pos("abc123", 120_000),
		pos("abc123", 0),
		pos("abc123", 60_000),
	}

	segments := SegmentPositions(positions, cfg)
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	for i := 1; i < len(segments[0]); i++ {
		if segments[0][i].TimestampMs < segments[0][i-1].TimestampMs {
			t.Fatal("segment positions not in timestamp order")
		}
	}
}

func TestSegmentDiscardsShortRuns(t *testing.T) {
	cfg := SegmenterConfig{GapThreshold: 5 * time.Minute, MinDuration: 30 * time.Second}

	// A 10 second blip, then a real run
	positions := []PositionRecord{
		pos("abc123", 0),
		pos("abc123", 10_000),
		pos("abc123", 20*60_000),
		pos("abc123", 21*60_000),
	}

	segments := SegmentPositions(positions, cfg)
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1 (blip discarded)", len(segments))
	}
	if segments[0][0].TimestampMs != 20*60_000 {
		t.Errorf("surviving segment starts at %d, want %d", segments[0][0].TimestampMs, 20*60_000)
	}
}

func TestSegmentProperties(t *testing.T) {
	cfg := SegmenterConfig{GapThreshold: 2 * time.Minute, MinDuration: 30 * time.Second}

	var positions []PositionRecord
	// Three runs with generous gaps
	for _, base := range []int64{0, 10 * 60_000, 30 * 60_000} {
		for i := int64(0); i < 5; i++ {
			positions = append(positions, pos("abc123", base+i*30_000))
		}
	}

	segments := SegmentPositions(positions, cfg)

	total := 0
	var prevStart int64 = -1
	var prevEnd int64 = -1
	for _, seg := range segments {
		total += len(seg)
		start := seg[0].TimestampMs
		end := seg[len(seg)-1].TimestampMs

		// Non-decreasing start order
		if start < prevStart {
			t.Error("segments out of start-time order")
		}
		// Gap between consecutive segments strictly exceeds threshold
		if prevEnd >= 0 && start-prevEnd <= cfg.GapThreshold.Milliseconds() {
			t.Errorf("gap between segments %d ms, want > %d", start-prevEnd, cfg.GapThreshold.Milliseconds())
		}
		// No segment shorter than MinDuration
		if end-start < cfg.MinDuration.Milliseconds() {
			t.Errorf("segment duration %d ms below minimum", end-start)
		}
		prevStart, prevEnd = start, end
	}

	// Every position belongs to exactly one segment
	if total != len(positions) {
		t.Errorf("segments hold %d positions, want %d", total, len(positions))
	}
}

func TestSegmentEndToEndScenario(t *testing.T) {
	// Positions at t=0, t=60000, t=400000. The largest inter-report gap is
	// 340000 ms, so a threshold just above that keeps the run as one flight.
	cfg := SegmenterConfig{GapThreshold: 400_000 * time.Millisecond, MinDuration: 30 * time.Second}

	alt1, alt2, alt3 := 3000.0, 3100.0, 5000.0
	positions := []PositionRecord{
		{IcaoHex: "abc123", TimestampMs: 0, Lat: 43, Lon: -79, Squawk: "1200", AltitudeFt: &alt1},
		{IcaoHex: "abc123", TimestampMs: 60_000, Lat: 43.1, Lon: -79.1, Squawk: "1200", AltitudeFt: &alt2},
		{IcaoHex: "abc123", TimestampMs: 400_000, Lat: 43.2, Lon: -79.2, Squawk: "4321", AltitudeFt: &alt3},
	}

	flights := SegmentFlights(positions, cfg)
	if len(flights) != 1 {
		t.Fatalf("got %d flights, want 1", len(flights))
	}
	f := flights[0]
	if f.StartTime.UnixMilli() != 0 || f.EndTime.UnixMilli() != 400_000 {
		t.Errorf("flight spans %d..%d, want 0..400000", f.StartTime.UnixMilli(), f.EndTime.UnixMilli())
	}
	if f.MaxAltitudeFt == nil || *f.MaxAltitudeFt != 5000 {
		t.Errorf("MaxAltitudeFt = %v, want 5000", f.MaxAltitudeFt)
	}

	tr := NewSquawkTracker()
	transitions := tr.ObserveAll(positions)
	if len(transitions) != 1 {
		t.Fatalf("got %d transitions, want 1", len(transitions))
	}
	got := transitions[0]
	if got.FromCode != "1200" || got.ToCode != "4321" {
		t.Errorf("transition %s->%s, want 1200->4321", got.FromCode, got.ToCode)
	}
	if got.TimestampMs != 400_000 {
		t.Errorf("transition at %d, want 400000", got.TimestampMs)
	}
	if c := Categorize(got.FromCode, got.ToCode); c != CategoryVFR {
		// 1200 on the from side makes this VFR under the precedence order
		t.Errorf("category = %s, want %s", c, CategoryVFR)
	}
	if c := Categorize("2100", "4321"); c != CategoryIFRHigh {
		t.Errorf("category(2100,4321) = %s, want %s (4321 is in 2000-7777)", c, CategoryIFRHigh)
	}
}
