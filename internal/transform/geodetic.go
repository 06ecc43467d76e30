package transform

import (
	"math"
	"time"
)

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// GeodeticPoint is a latitude/longitude in degrees and a height in metres
// above the WGS-84 ellipsoid.
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// ECEFToGeodetic converts ECEF metres to geodetic coordinates with
// Bowring's iteration.
func ECEFToGeodetic(p PositionECEF) GeodeticPoint {
	lon := math.Atan2(p.Y, p.X)
	r := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, r*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*n*sinLat, r)
	}

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = r/cosLat - n
	} else {
		// At the poles the horizontal distance carries no information.
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltM:   alt,
	}
}

// AltitudeKm returns the height above the WGS-84 ellipsoid, in km, of a
// TEME position observed at t.
func AltitudeKm(p PositionTEME, t time.Time) float64 {
	return ECEFToGeodetic(TEMEToECEF(p, t)).AltM / 1000.0
}
