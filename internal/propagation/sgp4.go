package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/arcazj/openbexi-earth-orbit/internal/tle"
	"github.com/arcazj/openbexi-earth-orbit/internal/transform"
)

// Propagate takes the Satellite by value, so SGP4 error codes raised during
// propagation never reach the caller. Failures are detected from the output
// instead: non-finite components or a radius no bound orbit can have.
//
// minRadiusKm is one Earth radius for the WGS-84 constants SGP4 runs with,
// the bound below which SGP4 itself reports the satellite as decayed
// (error 6).
const (
	minRadiusKm = 6378.137
	maxRadiusKm = 1.5e6
)

// SGP4Propagator wraps go-satellite for one element set.
type SGP4Propagator struct {
	sat       satellite.Satellite
	catalogID string
	bstar     float64
}

// NewSGP4Propagator initialises SGP4 for an element set.
//
// The lines are validated first because go-satellite calls log.Fatal on
// malformed input.
func NewSGP4Propagator(set tle.ElementSet) (*SGP4Propagator, error) {
	if err := validateTLELines(set.Line1, set.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for catalog id %s: %w", set.CatalogID, err)
	}

	line1, line2 := numericCatalogField(set.Line1), numericCatalogField(set.Line2)
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for catalog id %s: code=%d %s", set.CatalogID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, catalogID: set.CatalogID, bstar: set.Bstar}, nil
}

// numericCatalogField blanks an Alpha-5 catalog number to zeros. go-satellite
// parses the field as an integer and exits the process when it cannot; SGP4
// itself never reads it.
func numericCatalogField(line string) string {
	if len(line) < 7 {
		return line
	}
	for i := 2; i < 7; i++ {
		if c := line[i]; c != ' ' && (c < '0' || c > '9') {
			return line[:2] + "00000" + line[7:]
		}
	}
	return line
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// PositionAt returns the TEME position (km) at t.
func (p *SGP4Propagator) PositionAt(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	teme := transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z}
	if err := checkPosition(teme); err != nil {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for catalog id %s: %w", p.catalogID, err)
	}
	return teme, nil
}

func checkPosition(pos transform.PositionTEME) error {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return fmt.Errorf("output is NaN/Inf")
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < minRadiusKm {
		return fmt.Errorf("position magnitude %.1f km is inside the Earth", mag)
	}
	if mag > maxRadiusKm {
		return fmt.Errorf("unreasonable position magnitude %.1f km", mag)
	}
	return nil
}

// AltitudeAt returns the height above the WGS-84 ellipsoid in km at t.
func (p *SGP4Propagator) AltitudeAt(t time.Time) (float64, error) {
	pos, err := p.PositionAt(t)
	if err != nil {
		return 0, err
	}
	return transform.AltitudeKm(pos, t), nil
}

// Bstar returns the element set's drag term.
func (p *SGP4Propagator) Bstar() float64 {
	return p.bstar
}

// CatalogID returns the catalog id the propagator was built for.
func (p *SGP4Propagator) CatalogID() string {
	return p.catalogID
}
