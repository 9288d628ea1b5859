package tracker

import "strconv"

// Category classifies a squawk transition at query time. It is derived from
// the from/to codes, never stored.
type Category string

const (
	CategorySpecial Category = "special"  // hijack / radio failure / emergency
	CategoryVFR     Category = "vfr"      // 1200
	CategoryIFRLow  Category = "ifr_low"  // 0000-1777
	CategoryIFRHigh Category = "ifr_high" // 2000-7777
	CategoryOther   Category = "other"    // non-numeric codes and the 1778-1999 gap
)

// Categorize applies the fixed precedence order: special > VFR > IFR-low >
// IFR-high > other. The first matching category wins even where the numeric
// ranges overlap. Codes in 1778-1999 and non-numeric codes (including the
// "N/A" sentinel) land in other; the 1778-1999 gap is deliberate and must
// not be folded into either IFR band.
func Categorize(from, to string) Category {
	if isSpecialCode(from) || isSpecialCode(to) {
		return CategorySpecial
	}

	fromN, fromOK := squawkValue(from)
	toN, toOK := squawkValue(to)

	if (fromOK && fromN == 1200) || (toOK && toN == 1200) {
		return CategoryVFR
	}
	if (fromOK && fromN >= 0 && fromN <= 1777) || (toOK && toN >= 0 && toN <= 1777) {
		return CategoryIFRLow
	}
	if (fromOK && fromN >= 2000 && fromN <= 7777) || (toOK && toN >= 2000 && toN <= 7777) {
		return CategoryIFRHigh
	}
	return CategoryOther
}

func isSpecialCode(code string) bool {
	return code == "7500" || code == "7600" || code == "7700"
}

func squawkValue(code string) (int, bool) {
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, false
	}
	return n, true
}

// squawkState is the per-aircraft state of the transition tracker
type squawkState struct {
	lastSquawk       string
	lastTransitionMs int64 // 0 until the first transition fires
}

// SquawkTracker is a per-aircraft last-value state machine. The first squawk
// seen for an aircraft only seeds its state; every later change emits a
// transition. State lives in the tracker instance, never in package globals,
// so independent runs (and tests) cannot contaminate each other.
type SquawkTracker struct {
	states map[string]*squawkState
}

// NewSquawkTracker creates a tracker with empty state
func NewSquawkTracker() *SquawkTracker {
	return &SquawkTracker{states: make(map[string]*squawkState)}
}

// Observe feeds one position record, in timestamp order per aircraft, and
// returns the transition it fired, or nil. Records without a squawk are
// ignored entirely: they neither fire nor reset state.
func (t *SquawkTracker) Observe(rec *PositionRecord) *SquawkTransition {
	if rec.Squawk == "" {
		return nil
	}

	state, ok := t.states[rec.IcaoHex]
	if !ok {
		t.states[rec.IcaoHex] = &squawkState{lastSquawk: rec.Squawk}
		return nil
	}

	var transition *SquawkTransition
	if state.lastSquawk != rec.Squawk {
		transition = &SquawkTransition{
			IcaoHex:      rec.IcaoHex,
			Callsign:     rec.Callsign,
			Registration: rec.Registration,
			FromCode:     state.lastSquawk,
			ToCode:       rec.Squawk,
			TimestampMs:  rec.TimestampMs,
			AltitudeFt:   rec.AltitudeFt,
		}
		if state.lastTransitionMs > 0 {
			mins := float64(rec.TimestampMs-state.lastTransitionMs) / 60000.0
			transition.MinutesSinceLast = &mins
		}
		state.lastTransitionMs = rec.TimestampMs
	}

	state.lastSquawk = rec.Squawk
	return transition
}

// ObserveAll runs a whole position stream through the tracker and collects
// the transitions. Positions must be in timestamp order per aircraft;
// interleaving across aircraft is fine.
func (t *SquawkTracker) ObserveAll(positions []PositionRecord) []SquawkTransition {
	var transitions []SquawkTransition
	for i := range positions {
		if tr := t.Observe(&positions[i]); tr != nil {
			transitions = append(transitions, *tr)
		}
	}
	return transitions
}

// Reset drops all per-aircraft state
func (t *SquawkTracker) Reset() {
	t.states = make(map[string]*squawkState)
}

// TrackedAircraft returns how many aircraft currently have seeded state
func (t *SquawkTracker) TrackedAircraft() int {
	return len(t.states)
}
