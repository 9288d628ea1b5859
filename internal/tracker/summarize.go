package tracker

// SummarizeFlight reduces one closed, ordered run of position records into a
// Flight summary. Returns nil for an empty run.
//
// Callsign is the most frequent non-empty callsign across the run (earliest
// seen wins a tie). Registration is the last non-empty value. End coordinates
// come from the last position that actually moved away from the start; a
// stationary or single-point run falls back to the literal last record.
func SummarizeFlight(run []PositionRecord) *Flight {
	if len(run) == 0 {
		return nil
	}

	first := run[0]
	last := run[len(run)-1]

	f := &Flight{
		IcaoHex:     first.IcaoHex,
		Callsign:    dominantCallsign(run),
		StartTime:   first.Timestamp(),
		EndTime:     last.Timestamp(),
		StartLat:    first.Lat,
		StartLon:    first.Lon,
		EndLat:      last.Lat,
		EndLon:      last.Lon,
		ReportCount: len(run),
	}

	for _, rec := range run {
		if rec.Registration != "" {
			f.Registration = rec.Registration
		}
		if rec.AircraftType != "" {
			f.AircraftType = rec.AircraftType
		}
		if rec.AltitudeFt != nil && (f.MaxAltitudeFt == nil || *rec.AltitudeFt > *f.MaxAltitudeFt) {
			alt := *rec.AltitudeFt
			f.MaxAltitudeFt = &alt
		}
		if rec.GroundSpeedKt != nil && (f.MaxSpeedKt == nil || *rec.GroundSpeedKt > *f.MaxSpeedKt) {
			gs := *rec.GroundSpeedKt
			f.MaxSpeedKt = &gs
		}
	}

	// Scan backward for the first position that differs from the start
	for i := len(run) - 1; i >= 0; i-- {
		if run[i].Lat != first.Lat || run[i].Lon != first.Lon {
			f.EndLat = run[i].Lat
			f.EndLon = run[i].Lon
			break
		}
	}

	return f
}

// dominantCallsign picks the mode of all non-empty callsigns in the run.
// Returns "" when no record carried one.
func dominantCallsign(run []PositionRecord) string {
	counts := make(map[string]int)
	order := make([]string, 0, 4)
	for _, rec := range run {
		if rec.Callsign == "" {
			continue
		}
		if _, seen := counts[rec.Callsign]; !seen {
			order = append(order, rec.Callsign)
		}
		counts[rec.Callsign]++
	}

	best := ""
	bestCount := 0
	for _, cs := range order {
		if counts[cs] > bestCount {
			best = cs
			bestCount = counts[cs]
		}
	}
	return best
}
