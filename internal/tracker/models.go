package tracker

import (
	"strconv"
	"time"
)

// PositionRecord is the canonical shape of one aircraft state report after
// normalization. IcaoHex and TimestampMs are always present; records without
// a usable position never leave the normalizer.
type PositionRecord struct {
	IcaoHex       string
	Callsign      string
	Registration  string
	AircraftType  string
	TimestampMs   int64
	Lat           float64
	Lon           float64
	AltitudeFt    *float64
	GroundSpeedKt *float64
	Squawk        string // "" when the record carried no squawk; "N/A" is preserved as a code
}

// Timestamp returns the record time as a UTC time.Time
func (p *PositionRecord) Timestamp() time.Time {
	return time.UnixMilli(p.TimestampMs).UTC()
}

// Flight is one contiguous run of position reports for a single aircraft,
// reduced to a summary. Immutable once summarized.
type Flight struct {
	IcaoHex       string
	Callsign      string
	Registration  string
	AircraftType  string
	StartTime     time.Time
	EndTime       time.Time
	StartLat      float64
	StartLon      float64
	EndLat        float64
	EndLon        float64
	MaxAltitudeFt *float64
	MaxSpeedKt    *float64
	ReportCount   int

	// Attached by the enrichment pass
	AirlineCode string
	AirlineName string
}

// DurationMinutes returns the flight duration in minutes
func (f *Flight) DurationMinutes() float64 {
	return f.EndTime.Sub(f.StartTime).Minutes()
}

// FlightRecord is the wire shape of a Flight inside a rollup file. The
// start/end times are ISO-8601 and duration_min is a 2-decimal string;
// existing dashboard consumers depend on this exact formatting.
type FlightRecord struct {
	Icao         string   `json:"icao"`
	Callsign     string   `json:"callsign"`
	Registration string   `json:"registration"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	DurationMin  string   `json:"duration_min"`
	StartLat     float64  `json:"start_lat"`
	StartLon     float64  `json:"start_lon"`
	EndLat       float64  `json:"end_lat"`
	EndLon       float64  `json:"end_lon"`
	MaxAltFt     *float64 `json:"max_alt_ft"`
	MaxSpeedKt   *float64 `json:"max_speed_kt"`
	Reports      int      `json:"reports"`
	AirlineCode  string   `json:"airline_code"`
	AirlineName  string   `json:"airline_name"`
}

const isoTimeLayout = "2006-01-02T15:04:05Z"

// Record converts the flight to its wire shape
func (f *Flight) Record() FlightRecord {
	return FlightRecord{
		Icao:         f.IcaoHex,
		Callsign:     f.Callsign,
		Registration: f.Registration,
		StartTime:    f.StartTime.UTC().Format(isoTimeLayout),
		EndTime:      f.EndTime.UTC().Format(isoTimeLayout),
		DurationMin:  strconv.FormatFloat(f.DurationMinutes(), 'f', 2, 64),
		StartLat:     f.StartLat,
		StartLon:     f.StartLon,
		EndLat:       f.EndLat,
		EndLon:       f.EndLon,
		MaxAltFt:     f.MaxAltitudeFt,
		MaxSpeedKt:   f.MaxSpeedKt,
		Reports:      f.ReportCount,
		AirlineCode:  f.AirlineCode,
		AirlineName:  f.AirlineName,
	}
}

// SquawkTransition records one aircraft changing its transponder code.
// FromCode and ToCode always differ.
type SquawkTransition struct {
	IcaoHex          string
	Callsign         string
	Registration     string
	FromCode         string
	ToCode           string
	TimestampMs      int64
	MinutesSinceLast *float64 // nil for the aircraft's first transition
	AltitudeFt       *float64
}

// Timestamp returns the transition time as a UTC time.Time
func (t *SquawkTransition) Timestamp() time.Time {
	return time.UnixMilli(t.TimestampMs).UTC()
}

// TransitionRecord is the wire shape of a SquawkTransition in the squawk
// report object. Type/Manufacturer/Airline* are filled by enrichment.
type TransitionRecord struct {
	Hex              string   `json:"hex"`
	Flight           string   `json:"flight"`
	Registration     string   `json:"registration"`
	From             string   `json:"from"`
	To               string   `json:"to"`
	Timestamp        string   `json:"timestamp"`
	MinutesSinceLast *float64 `json:"minutesSinceLast"`
	Altitude         *float64 `json:"altitude"`
	Type             string   `json:"type"`
	Manufacturer     string   `json:"manufacturer"`
	AirlineCode      string   `json:"airlineCode"`
	AirlineName      string   `json:"airlineName"`
}

// TransitionReport is the squawk-transitions response for one query window
type TransitionReport struct {
	TotalTransitions int                `json:"totalTransitions"`
	Transitions      []TransitionRecord `json:"transitions"`
}

// Record converts the transition to its wire shape (enrichment fields empty)
func (t *SquawkTransition) Record() TransitionRecord {
	return TransitionRecord{
		Hex:              t.IcaoHex,
		Flight:           t.Callsign,
		Registration:     t.Registration,
		From:             t.FromCode,
		To:               t.ToCode,
		Timestamp:        t.Timestamp().Format(isoTimeLayout),
		MinutesSinceLast: t.MinutesSinceLast,
		Altitude:         t.AltitudeFt,
	}
}
