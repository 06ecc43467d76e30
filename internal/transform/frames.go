// Package transform converts SGP4 output into quantities the decay
// estimator works with.
//
// SGP4 reports positions in TEME (True Equator Mean Equinox). Rotating by
// GMST alone gives PEF, which is treated as ECEF here; polar motion and the
// equation of the equinoxes are ignored. The resulting error is tens of
// metres, far below the resolution of a re-entry altitude threshold.
package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of J2000.0 (2000-01-01 12:00 TT).
const j2000 = 2451545.0

// PositionTEME is a position in the TEME frame, in km.
type PositionTEME struct {
	X, Y, Z float64
}

// PositionECEF is a position in the Earth-fixed frame, in metres.
type PositionECEF struct {
	X, Y, Z float64
}

// JulianDate converts a UTC time to a Julian Date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	dayFrac := (float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0) / 24.0

	// January and February count as months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + float64(t.Day()) + b - 1524.5 + dayFrac
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, Vallado 3-47).
func GMST(t time.Time) float64 {
	tu := (JulianDate(t) - j2000) / 36525.0

	// Seconds of time; 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tu +
		0.093104*tu*tu -
		6.2e-6*tu*tu*tu

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}

// TEMEToECEF rotates a TEME position (km) about Z by GMST at t and returns
// the Earth-fixed position in metres.
func TEMEToECEF(p PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(p, GMST(t))
}

// TEMEToECEFWithGMST is TEMEToECEF with a precomputed GMST angle.
func TEMEToECEFWithGMST(p PositionTEME, gmst float64) PositionECEF {
	c, s := math.Cos(gmst), math.Sin(gmst)
	return PositionECEF{
		X: (p.X*c + p.Y*s) * 1000.0,
		Y: (-p.X*s + p.Y*c) * 1000.0,
		Z: p.Z * 1000.0,
	}
}
