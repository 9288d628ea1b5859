package tracker

import (
	"sort"
	"time"
)

// Segmentation defaults. Live processing splits flights on a 5 minute gap;
// backfill runs typically widen this to 15 minutes because archived snapshot
// coverage is patchier.
const (
	DefaultGapThreshold = 5 * time.Minute
	DefaultMinDuration  = 30 * time.Second
)

// SegmenterConfig controls gap-based flight segmentation
type SegmenterConfig struct {
	GapThreshold time.Duration // gap larger than this starts a new flight
	MinDuration  time.Duration // segments shorter than this are noise, not flights
}

// DefaultSegmenterConfig returns the live-processing defaults
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		GapThreshold: DefaultGapThreshold,
		MinDuration:  DefaultMinDuration,
	}
}

// SegmentPositions groups one aircraft's position records into contiguous
// runs, splitting wherever the time gap between consecutive records exceeds
// the threshold. The input is sorted here; callers are never trusted to
// pre-sort. Runs shorter than MinDuration are discarded. Single pass, no
// backtracking.
func SegmentPositions(positions []PositionRecord, cfg SegmenterConfig) [][]PositionRecord {
	if len(positions) == 0 {
		return nil
	}
	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = DefaultGapThreshold
	}

	sorted := make([]PositionRecord, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})

	gapMs := cfg.GapThreshold.Milliseconds()
	var segments [][]PositionRecord
	current := []PositionRecord{sorted[0]}

	for _, rec := range sorted[1:] {
		prev := current[len(current)-1]
		if rec.TimestampMs-prev.TimestampMs > gapMs {
			segments = appendSegment(segments, current, cfg.MinDuration)
			current = []PositionRecord{rec}
			continue
		}
		current = append(current, rec)
	}
	return appendSegment(segments, current, cfg.MinDuration)
}

func appendSegment(segments [][]PositionRecord, run []PositionRecord, minDuration time.Duration) [][]PositionRecord {
	if len(run) == 0 {
		return segments
	}
	spanMs := run[len(run)-1].TimestampMs - run[0].TimestampMs
	if spanMs < minDuration.Milliseconds() {
		return segments
	}
	return append(segments, run)
}

// SegmentFlights segments one aircraft's positions and summarizes each run
// into a Flight. Flights come out in non-decreasing start-time order.
func SegmentFlights(positions []PositionRecord, cfg SegmenterConfig) []Flight {
	var flights []Flight
	for _, run := range SegmentPositions(positions, cfg) {
		if f := SummarizeFlight(run); f != nil {
			flights = append(flights, *f)
		}
	}
	return flights
}
