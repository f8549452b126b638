package astro

import "math"

// RotationElements holds IAU rotation elements for a body: the pole
// right ascension and declination as linear functions of Julian centuries
// since J2000 and the prime meridian angle W as a linear function of days.
// All angles are in degrees. Periodic nutation/libration terms are omitted.
type RotationElements struct {
	PoleRA0     float64 // deg
	PoleRARate  float64 // deg per Julian century
	PoleDec0    float64 // deg
	PoleDecRate float64 // deg per Julian century
	W0          float64 // deg
	WRate       float64 // deg per day
}

// Rotation elements from the IAU WGCCRE report as distributed in pck00011.
var (
	SunRotation = RotationElements{
		PoleRA0: 286.13, PoleDec0: 63.87,
		W0: 84.176, WRate: 14.1844000,
	}
	EarthRotation = RotationElements{
		PoleRA0: 0.00, PoleRARate: -0.641,
		PoleDec0: 90.00, PoleDecRate: -0.557,
		W0: 190.147, WRate: 360.9856235,
	}
	MoonRotation = RotationElements{
		PoleRA0: 269.9949, PoleRARate: 0.0031,
		PoleDec0: 66.5392, PoleDecRate: 0.0130,
		W0: 38.3213, WRate: 13.17635815,
	}
)

// RotationForNAIF returns the rotation elements for a NAIF body ID.
func RotationForNAIF(id int) (RotationElements, bool) {
	switch id {
	case 10:
		return SunRotation, true
	case 399:
		return EarthRotation, true
	case 301:
		return MoonRotation, true
	default:
		return RotationElements{}, false
	}
}

// PoleRADec returns the equatorial (ICRF) right ascension and declination
// of the north pole at the given TDB Julian Date.
func (e RotationElements) PoleRADec(jdTDB float64) (raDeg, decDeg float64) {
	T := JulianCenturiesSinceJ2000(jdTDB)
	return e.PoleRA0 + e.PoleRARate*T, e.PoleDec0 + e.PoleDecRate*T
}

// PoleVector returns the unit vector from the body center toward its north
// pole in ecliptic J2000 coordinates.
func (e RotationElements) PoleVector(jdTDB float64) Vec3 {
	ra, dec := e.PoleRADec(jdTDB)
	raRad, decRad := degToRad(ra), degToRad(dec)
	eq := Vec3{
		X: math.Cos(decRad) * math.Cos(raRad),
		Y: math.Cos(decRad) * math.Sin(raRad),
		Z: math.Sin(decRad),
	}
	return EquatorialToEcliptic(eq)
}

// W returns the prime meridian angle in degrees. The result is not wrapped
// to [0, 360).
func (e RotationElements) W(jdTDB float64) float64 {
	return e.W0 + e.WRate*(jdTDB-J2000JD)
}
