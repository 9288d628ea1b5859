package tracker

import "testing"

func squawkPos(hex, code string, tsMs int64) PositionRecord {
	return PositionRecord{IcaoHex: hex, TimestampMs: tsMs, Lat: 43, Lon: -79, Squawk: code}
}

func TestTrackerFirstSquawkOnlySeeds(t *testing.T) {
	tr := NewSquawkTracker()
	rec := squawkPos("abc123", "1200", 0)
	if got := tr.Observe(&rec); got != nil {
		t.Errorf("first squawk fired a transition: %+v", got)
	}
	if tr.TrackedAircraft() != 1 {
		t.Errorf("TrackedAircraft = %d, want 1", tr.TrackedAircraft())
	}
}

func TestTrackerRepeatedCodesNeverFire(t *testing.T) {
	tr := NewSquawkTracker()
	codes := []string{"1200", "4521", "4521", "7000"}
	var fired []SquawkTransition
	for i, code := range codes {
		rec := squawkPos("abc123", code, int64(i)*60_000)
		if got := tr.Observe(&rec); got != nil {
			fired = append(fired, *got)
		}
	}
	if len(fired) != 2 {
		t.Fatalf("got %d transitions, want exactly 2", len(fired))
	}
	if fired[0].FromCode != "1200" || fired[0].ToCode != "4521" {
		t.Errorf("first transition %s->%s, want 1200->4521", fired[0].FromCode, fired[0].ToCode)
	}
	if fired[1].FromCode != "4521" || fired[1].ToCode != "7000" {
		t.Errorf("second transition %s->%s, want 4521->7000", fired[1].FromCode, fired[1].ToCode)
	}
}

func TestTrackerMinutesSinceLast(t *testing.T) {
	tr := NewSquawkTracker()
	recs := []PositionRecord{
		squawkPos("abc123", "1200", 0),
		squawkPos("abc123", "4521", 5*60_000),
		squawkPos("abc123", "7000", 8*60_000),
	}
	transitions := tr.ObserveAll(recs)
	if len(transitions) != 2 {
		t.Fatalf("got %d transitions, want 2", len(transitions))
	}
	if transitions[0].MinutesSinceLast != nil {
		t.Errorf("first transition MinutesSinceLast = %v, want nil", *transitions[0].MinutesSinceLast)
	}
	if transitions[1].MinutesSinceLast == nil || *transitions[1].MinutesSinceLast != 3 {
		t.Errorf("second transition MinutesSinceLast = %v, want 3", transitions[1].MinutesSinceLast)
	}
}

func TestTrackerMissingSquawkIgnored(t *testing.T) {
	tr := NewSquawkTracker()
	recs := []PositionRecord{
		squawkPos("abc123", "1200", 0),
		squawkPos("abc123", "", 60_000), // no squawk field at all
		squawkPos("abc123", "1200", 120_000),
	}
	if transitions := tr.ObserveAll(recs); len(transitions) != 0 {
		t.Errorf("got %d transitions, want 0 (missing squawk does not reset state)", len(transitions))
	}
}

func TestTrackerNASentinelFires(t *testing.T) {
	tr := NewSquawkTracker()
	recs := []PositionRecord{
		squawkPos("abc123", "1200", 0),
		squawkPos("abc123", "N/A", 60_000),
	}
	transitions := tr.ObserveAll(recs)
	if len(transitions) != 1 {
		t.Fatalf("got %d transitions, want 1", len(transitions))
	}
	if transitions[0].ToCode != "N/A" {
		t.Errorf("ToCode = %q, want N/A", transitions[0].ToCode)
	}
}

func TestTrackerIndependentAircraft(t *testing.T) {
	tr := NewSquawkTracker()
	recs := []PositionRecord{
		squawkPos("aaa111", "1200", 0),
		squawkPos("bbb222", "4521", 0),
		squawkPos("aaa111", "7000", 60_000),
		squawkPos("bbb222", "4521", 60_000),
	}
	transitions := tr.ObserveAll(recs)
	if len(transitions) != 1 {
		t.Fatalf("got %d transitions, want 1", len(transitions))
	}
	if transitions[0].IcaoHex != "aaa111" {
		t.Errorf("transition for %s, want aaa111", transitions[0].IcaoHex)
	}
}

func TestCategorizePrecedence(t *testing.T) {
	cases := []struct {
		from, to string
		want     Category
	}{
		{"7700", "1200", CategorySpecial}, // special beats VFR
		{"1200", "7500", CategorySpecial},
		{"7600", "0400", CategorySpecial},
		{"1200", "4521", CategoryVFR},     // VFR beats IFR-high
		{"0400", "1200", CategoryVFR},
		{"0400", "1500", CategoryIFRLow},
		{"1500", "4521", CategoryIFRLow},  // IFR-low beats IFR-high
		{"2100", "4321", CategoryIFRHigh},
		{"2000", "7777", CategoryIFRHigh},
		{"1850", "1900", CategoryOther},   // deliberate 1778-1999 gap
		{"N/A", "1850", CategoryOther},
		{"abcd", "efgh", CategoryOther},
	}
	for _, c := range cases {
		if got := Categorize(c.from, c.to); got != c.want {
			t.Errorf("Categorize(%q, %q) = %s, want %s", c.from, c.to, got, c.want)
		}
	}
}

func TestCategorizeMixedNumericAndSentinel(t *testing.T) {
	// One parseable side is enough to classify
	if got := Categorize("N/A", "4521"); got != CategoryIFRHigh {
		t.Errorf("Categorize(N/A, 4521) = %s, want %s", got, CategoryIFRHigh)
	}
	if got := Categorize("0123", "N/A"); got != CategoryIFRLow {
		t.Errorf("Categorize(0123, N/A) = %s, want %s", got, CategoryIFRLow)
	}
}
