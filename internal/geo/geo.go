// Package geo holds the navigation math used by coverage tracking: great
// circle distance and bearing, slant range, and the sector/altitude-zone grid
// reception records are keyed on.
package geo

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

const (
	EarthRadiusNM = 3440.065 // Earth radius in nautical miles
	FeetPerNM     = 6076.12

	SectorWidthDeg = 30 // coverage sectors are 30 degrees wide, 12 around the compass
	SectorCount    = 12
	AltitudeZoneFt = 5000 // coverage altitude zones are 5000 ft bands
)

// DistanceNM returns the great-circle distance between two coordinates in
// nautical miles (haversine)
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusNM * c
}

// BearingDeg returns the initial bearing from point 1 to point 2 in degrees,
// normalized to 0-360
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	x := math.Sin(deltaLon) * math.Cos(lat2Rad)
	y := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	bearing := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// SlantRangeNM returns the 3D distance in nautical miles given the surface
// distance and the altitude difference in feet
func SlantRangeNM(surfaceNM, altitudeFt, receiverAltFt float64) float64 {
	altDiffNM := (altitudeFt - receiverAltFt) / FeetPerNM
	return math.Sqrt(surfaceNM*surfaceNM + altDiffNM*altDiffNM)
}

// Sector returns the coverage sector (0-11) for a bearing; sector 0 covers
// 0-29 degrees
func Sector(bearingDeg float64) int {
	return int(bearingDeg/SectorWidthDeg) % SectorCount
}

// AltitudeZone returns the coverage altitude zone for an altitude; zone 0
// covers 0-4999 ft, negative altitudes clamp to zone 0
func AltitudeZone(altitudeFt float64) int {
	if altitudeFt < 0 {
		return 0
	}
	return int(altitudeFt / AltitudeZoneFt)
}

// MagneticVariation returns the magnetic declination in degrees (+East,
// -West) at the given position and time, per the World Magnetic Model.
// Returns 0 when the model cannot be evaluated.
func MagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altFt*0.3048)
	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}
	return mag.D()
}
