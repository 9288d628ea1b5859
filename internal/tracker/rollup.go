package tracker

import (
	"fmt"
	"strings"
	"time"
)

// Window is a half-open [Start, End) time range
type Window struct {
	Start time.Time
	End   time.Time
}

// HourWindow returns the window covering the hour containing t
func HourWindow(t time.Time) Window {
	start := t.UTC().Truncate(time.Hour)
	return Window{Start: start, End: start.Add(time.Hour)}
}

// DayWindow returns the window covering the UTC day containing t
func DayWindow(t time.Time) Window {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.Add(24 * time.Hour)}
}

// Contains reports whether ts falls inside the window
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Span returns the window width
func (w Window) Span() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(isoTimeLayout), w.End.Format(isoTimeLayout))
}

// RollupBucket is the aggregate for one time window: the flights and squawk
// transitions that started inside it, plus uniqueness sets backing the
// summary counts. Buckets are write-once; a re-run replaces the whole bucket.
type RollupBucket struct {
	Window      Window
	Flights     []Flight
	Transitions []SquawkTransition

	aircraft  map[string]struct{}
	callsigns map[string]struct{}
	airlines  map[string]struct{}
}

// NewRollupBucket creates an empty bucket for the window
func NewRollupBucket(w Window) *RollupBucket {
	return &RollupBucket{
		Window:    w,
		aircraft:  make(map[string]struct{}),
		callsigns: make(map[string]struct{}),
		airlines:  make(map[string]struct{}),
	}
}

// AddFlight adds a flight whose start time falls inside the window.
// Out-of-window flights are ignored.
func (b *RollupBucket) AddFlight(f Flight) {
	if !b.Window.Contains(f.StartTime) {
		return
	}
	b.Flights = append(b.Flights, f)
	b.aircraft[f.IcaoHex] = struct{}{}
	if f.Callsign != "" {
		b.callsigns[f.Callsign] = struct{}{}
	}
	if code := airlineCodeOf(f); code != "" {
		b.airlines[code] = struct{}{}
	}
}

// AddTransition adds a squawk transition inside the window
func (b *RollupBucket) AddTransition(t SquawkTransition) {
	if !b.Window.Contains(t.Timestamp()) {
		return
	}
	b.Transitions = append(b.Transitions, t)
	b.aircraft[t.IcaoHex] = struct{}{}
}

// airlineCodeOf prefers the enriched code and falls back to the callsign
// prefix convention (first three characters, uppercased).
func airlineCodeOf(f Flight) string {
	if f.AirlineCode != "" {
		return f.AirlineCode
	}
	if len(f.Callsign) >= 3 {
		return strings.ToUpper(f.Callsign[:3])
	}
	return ""
}

// BucketSummary holds the per-window counts served to the dashboard
type BucketSummary struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	FlightCount     int       `json:"flight_count"`
	TransitionCount int       `json:"transition_count"`
	UniqueAircraft  int       `json:"unique_aircraft"`
	UniqueCallsigns int       `json:"unique_callsigns"`
	UniqueAirlines  int       `json:"unique_airlines"`
}

// Summary returns the bucket's counts
func (b *RollupBucket) Summary() BucketSummary {
	return BucketSummary{
		Start:           b.Window.Start,
		End:             b.Window.End,
		FlightCount:     len(b.Flights),
		TransitionCount: len(b.Transitions),
		UniqueAircraft:  len(b.aircraft),
		UniqueCallsigns: len(b.callsigns),
		UniqueAirlines:  len(b.airlines),
	}
}

// BuildBucket fills a bucket from flight and transition sources, keeping only
// entries inside the window
func BuildBucket(w Window, flights []Flight, transitions []SquawkTransition) *RollupBucket {
	b := NewRollupBucket(w)
	for _, f := range flights {
		b.AddFlight(f)
	}
	for _, t := range transitions {
		b.AddTransition(t)
	}
	return b
}

// MergeBuckets builds a wider bucket by concatenating already-computed
// narrower ones. Daily rollups are produced this way from the day's 24 hourly
// buckets instead of rescanning raw snapshots; the uniqueness sets are
// rebuilt from the concatenated entries so the merge is lossless.
func MergeBuckets(w Window, parts []*RollupBucket) *RollupBucket {
	merged := NewRollupBucket(w)
	for _, part := range parts {
		if part == nil {
			continue
		}
		for _, f := range part.Flights {
			merged.AddFlight(f)
		}
		for _, t := range part.Transitions {
			merged.AddTransition(t)
		}
	}
	return merged
}

// resolutionStep maps a maximum span to a sub-bucket width for time-series
// queries. The table is ordered; the first row whose span covers the request
// wins, and anything beyond the last row is capped at 60 minutes.
type resolutionStep struct {
	MaxSpan time.Duration
	Minutes int
}

var resolutionTable = []resolutionStep{
	{30 * time.Minute, 1},
	{1 * time.Hour, 2},
	{3 * time.Hour, 5},
	{6 * time.Hour, 10},
	{12 * time.Hour, 30},
}

const maxResolutionMinutes = 60

// ResolutionMinutes returns the time-series sub-bucket width, in minutes,
// for a requested span
func ResolutionMinutes(span time.Duration) int {
	for _, step := range resolutionTable {
		if span <= step.MaxSpan {
			return step.Minutes
		}
	}
	return maxResolutionMinutes
}

// SeriesPoint is one time-series sub-bucket
type SeriesPoint struct {
	Start          time.Time `json:"start"`
	Positions      int       `json:"positions"`
	UniqueAircraft int       `json:"unique_aircraft"`
}

// PositionSeries buckets position records into fixed-width sub-buckets across
// the window, width chosen from the resolution table. Every sub-bucket is
// present in the output, zero-filled when empty.
func PositionSeries(w Window, positions []PositionRecord) []SeriesPoint {
	width := time.Duration(ResolutionMinutes(w.Span())) * time.Minute
	n := int(w.Span() / width)
	if w.Span()%width != 0 {
		n++
	}
	if n <= 0 {
		return nil
	}

	points := make([]SeriesPoint, n)
	seen := make([]map[string]struct{}, n)
	for i := range points {
		points[i].Start = w.Start.Add(time.Duration(i) * width)
		seen[i] = make(map[string]struct{})
	}

	for _, rec := range positions {
		ts := rec.Timestamp()
		if !w.Contains(ts) {
			continue
		}
		idx := int(ts.Sub(w.Start) / width)
		if idx < 0 || idx >= n {
			continue
		}
		points[idx].Positions++
		seen[idx][rec.IcaoHex] = struct{}{}
	}
	for i := range points {
		points[i].UniqueAircraft = len(seen[i])
	}
	return points
}
