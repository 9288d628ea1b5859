package live

import (
	"sync"
	"time"
)

// PositionCounts is the rolling position-report totals served on the stats
// endpoint
type PositionCounts struct {
	LastMinute  int `json:"last_minute"`
	Last10Min   int `json:"last_10min"`
	LastHour    int `json:"last_hour"`
	Last24Hours int `json:"last_24h"`
}

// PositionStats counts position reports in per-minute buckets so the rolling
// windows stay cheap over a full day of data
type PositionStats struct {
	mu      sync.Mutex
	buckets map[int64]int // unix minute -> count
}

// NewPositionStats creates an empty counter
func NewPositionStats() *PositionStats {
	return &PositionStats{buckets: make(map[int64]int)}
}

// Record counts n position reports at time t
func (s *PositionStats) Record(t time.Time, n int) {
	if n <= 0 {
		return
	}
	minute := t.Unix() / 60

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[minute] += n

	cutoff := minute - 24*60
	for m := range s.buckets {
		if m < cutoff {
			delete(s.buckets, m)
		}
	}
}

// Counts returns the rolling totals as of now
func (s *PositionStats) Counts(now time.Time) PositionCounts {
	minute := now.Unix() / 60

	s.mu.Lock()
	defer s.mu.Unlock()

	var c PositionCounts
	for m, n := range s.buckets {
		age := minute - m
		if age < 0 || age >= 24*60 {
			continue
		}
		c.Last24Hours += n
		if age < 60 {
			c.LastHour += n
		}
		if age < 10 {
			c.Last10Min += n
		}
		if age < 1 {
			c.LastMinute += n
		}
	}
	return c
}
