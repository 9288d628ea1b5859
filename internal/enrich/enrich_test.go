package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadedEnricher(t *testing.T) *Enricher {
	t.Helper()
	e := New(logger.NewNop())

	airlines := `{"ACA": {"name": "Air Canada", "logo": "aca.png"}, "UAL": {"name": "United Airlines", "logo": "ual.png"}}`
	if err := e.LoadAirlines(writeTemp(t, "airlines.json", airlines)); err != nil {
		t.Fatal(err)
	}

	aircraft := `{"c0ffee": {"registration": "C-FGDT", "manufacturer": "Airbus", "type": "A333", "bodyType": "wide"}}`
	if err := e.LoadAircraft(writeTemp(t, "aircraft.json", aircraft)); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestAirlineCode(t *testing.T) {
	cases := []struct {
		callsign string
		want     string
	}{
		{"ACA881", "ACA"},
		{"ual123", "UAL"},
		{" ACA881 ", "ACA"},
		{"AB", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := AirlineCode(c.callsign); got != c.want {
			t.Errorf("AirlineCode(%q) = %q, want %q", c.callsign, got, c.want)
		}
	}
}

func TestEnrichFlight(t *testing.T) {
	e := loadedEnricher(t)

	f := tracker.Flight{IcaoHex: "c0ffee", Callsign: "ACA881"}
	e.EnrichFlight(&f)
	if f.AirlineCode != "ACA" || f.AirlineName != "Air Canada" {
		t.Errorf("enriched = %q/%q, want ACA/Air Canada", f.AirlineCode, f.AirlineName)
	}

	// Unmatched prefix keeps the code but marks the name Unknown
	f = tracker.Flight{IcaoHex: "c0ffee", Callsign: "XYZ999"}
	e.EnrichFlight(&f)
	if f.AirlineCode != "XYZ" || f.AirlineName != Unknown {
		t.Errorf("enriched = %q/%q, want XYZ/%s", f.AirlineCode, f.AirlineName, Unknown)
	}
}

func TestEnrichTransition(t *testing.T) {
	e := loadedEnricher(t)

	tr := tracker.SquawkTransition{
		IcaoHex:     "C0FFEE",
		Callsign:    "ACA881",
		FromCode:    "1200",
		ToCode:      "4521",
		TimestampMs: 1740000000000,
	}
	rec := e.EnrichTransition(&tr)
	if rec.Type != "A333" || rec.Manufacturer != "Airbus" {
		t.Errorf("type/manufacturer = %q/%q, want A333/Airbus", rec.Type, rec.Manufacturer)
	}
	if rec.Registration != "C-FGDT" {
		t.Errorf("Registration = %q, want backfilled C-FGDT", rec.Registration)
	}
	if rec.AirlineName != "Air Canada" {
		t.Errorf("AirlineName = %q, want Air Canada", rec.AirlineName)
	}

	// Unknown hex never fails, only marks fields
	tr.IcaoHex = "deadbf"
	rec = e.EnrichTransition(&tr)
	if rec.Type != Unknown || rec.Manufacturer != Unknown {
		t.Errorf("type/manufacturer = %q/%q, want Unknown sentinels", rec.Type, rec.Manufacturer)
	}
}

func TestBuildTransitionReport(t *testing.T) {
	e := loadedEnricher(t)
	transitions := []tracker.SquawkTransition{
		{IcaoHex: "c0ffee", Callsign: "ACA881", FromCode: "1200", ToCode: "4521", TimestampMs: 1740000000000},
		{IcaoHex: "deadbf", Callsign: "", FromCode: "4521", ToCode: "N/A", TimestampMs: 1740000060000},
	}
	report := e.BuildTransitionReport(transitions)
	if report.TotalTransitions != 2 || len(report.Transitions) != 2 {
		t.Fatalf("report = %+v, want 2 transitions", report)
	}
	if report.Transitions[1].To != "N/A" {
		t.Errorf("To = %q, want N/A preserved", report.Transitions[1].To)
	}
}
