// Package enrich joins flights and squawk transitions against the read-only
// airline and aircraft reference tables to attach display metadata.
package enrich

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

// Unknown is the sentinel for fields with no matching reference entry
const Unknown = "Unknown"

// AirlineInfo is one entry of the airline reference table
type AirlineInfo struct {
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// AircraftInfo is one entry of the aircraft reference table, keyed by ICAO hex
type AircraftInfo struct {
	Registration string `json:"registration"`
	Manufacturer string `json:"manufacturer"`
	Type         string `json:"type"`
	BodyType     string `json:"bodyType"`
}

// Enricher holds the loaded reference tables. Lookups never fail: missing
// entries produce the Unknown sentinel.
type Enricher struct {
	airlines map[string]AirlineInfo
	aircraft map[string]AircraftInfo
	logger   *logger.Logger
}

// New creates an Enricher with empty tables
func New(log *logger.Logger) *Enricher {
	return &Enricher{
		airlines: make(map[string]AirlineInfo),
		aircraft: make(map[string]AircraftInfo),
		logger:   log.Named("enrich"),
	}
}

// LoadAirlines loads the airline table: a flat JSON object of
// airline code -> {name, logo}
func (e *Enricher) LoadAirlines(path string) error {
	e.logger.Info("Loading airline data from: " + path)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &e.airlines); err != nil {
		return err
	}

	e.logger.Info("Loaded airline data", logger.Int("count", len(e.airlines)))
	return nil
}

// LoadAircraft loads the aircraft table: a flat JSON object of
// lowercase ICAO hex -> {registration, manufacturer, type, bodyType}
func (e *Enricher) LoadAircraft(path string) error {
	e.logger.Info("Loading aircraft data from: " + path)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	raw := make(map[string]AircraftInfo)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for hex, info := range raw {
		e.aircraft[strings.ToLower(hex)] = info
	}

	e.logger.Info("Loaded aircraft data", logger.Int("count", len(e.aircraft)))
	return nil
}

// AirlineCode derives the airline code from a callsign: first three
// characters, uppercased. Returns "" for callsigns too short to carry one.
func AirlineCode(callsign string) string {
	cs := strings.TrimSpace(callsign)
	if len(cs) < 3 {
		return ""
	}
	return strings.ToUpper(cs[:3])
}

// Airline looks up an airline by callsign prefix
func (e *Enricher) Airline(callsign string) (string, AirlineInfo, bool) {
	code := AirlineCode(callsign)
	if code == "" {
		return "", AirlineInfo{}, false
	}
	info, ok := e.airlines[code]
	return code, info, ok
}

// Aircraft looks up aircraft metadata by ICAO hex
func (e *Enricher) Aircraft(icaoHex string) (AircraftInfo, bool) {
	info, ok := e.aircraft[strings.ToLower(icaoHex)]
	return info, ok
}

// EnrichFlight attaches airline fields to a flight in place
func (e *Enricher) EnrichFlight(f *tracker.Flight) {
	code, info, ok := e.Airline(f.Callsign)
	if !ok {
		f.AirlineCode = code
		f.AirlineName = Unknown
		return
	}
	f.AirlineCode = code
	f.AirlineName = info.Name
}

// EnrichTransition builds the wire record for a transition with aircraft
// type and airline metadata attached
func (e *Enricher) EnrichTransition(t *tracker.SquawkTransition) tracker.TransitionRecord {
	rec := t.Record()

	if info, ok := e.Aircraft(t.IcaoHex); ok {
		rec.Type = info.Type
		rec.Manufacturer = info.Manufacturer
		if rec.Registration == "" {
			rec.Registration = info.Registration
		}
	} else {
		rec.Type = Unknown
		rec.Manufacturer = Unknown
	}

	code, airline, ok := e.Airline(t.Callsign)
	rec.AirlineCode = code
	if ok {
		rec.AirlineName = airline.Name
	} else {
		rec.AirlineName = Unknown
	}
	return rec
}

// BuildTransitionReport enriches a set of transitions into the report object
// served for one query window
func (e *Enricher) BuildTransitionReport(transitions []tracker.SquawkTransition) tracker.TransitionReport {
	report := tracker.TransitionReport{
		TotalTransitions: len(transitions),
		Transitions:      make([]tracker.TransitionRecord, 0, len(transitions)),
	}
	for i := range transitions {
		report.Transitions = append(report.Transitions, e.EnrichTransition(&transitions[i]))
	}
	return report
}
