// Package astro provides vector math, time scales and reference-frame helpers
// shared by the ephemeris engine and its consumers.
package astro

import (
	"math"
)

// AU is the Astronomical Unit in kilometers.
const AU = 149597870.7

// Vec3 represents a 3D vector in any reference frame.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the magnitude of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized returns a unit vector in the same direction.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return Vec3{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}

// Scale returns the vector scaled by a factor.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Add returns the sum of two vectors.
func (v Vec3) Add(u Vec3) Vec3 {
	return Vec3{X: v.X + u.X, Y: v.Y + u.Y, Z: v.Z + u.Z}
}

// Sub returns the difference of two vectors.
func (v Vec3) Sub(u Vec3) Vec3 {
	return Vec3{X: v.X - u.X, Y: v.Y - u.Y, Z: v.Z - u.Z}
}

// Dot returns the scalar product of two vectors.
func (v Vec3) Dot(u Vec3) float64 {
	return v.X*u.X + v.Y*u.Y + v.Z*u.Z
}

// Lerp interpolates component-wise between a and b. The result is not
// renormalized.
func Lerp(a, b Vec3, u float64) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*u,
		Y: a.Y + (b.Y-a.Y)*u,
		Z: a.Z + (b.Z-a.Z)*u,
	}
}

// LerpScalar interpolates linearly between a and b.
func LerpScalar(a, b, u float64) float64 {
	return a + (b-a)*u
}

// ToYUp converts a Z-up ecliptic vector to the Y-up convention used by
// scene-graph renderers: (x, y, z) -> (x, z, -y).
func ToYUp(v Vec3) Vec3 {
	return Vec3{X: v.X, Y: v.Z, Z: -v.Y}
}

// ProjectedPoint represents a 2D projected position with metadata.
type ProjectedPoint struct {
	X float64 // Screen X coordinate (normalized)
	Y float64 // Screen Y coordinate (normalized)
	R float64 // Original radial distance in AU
	Z float64 // Original Z offset (for ecliptic latitude display)
}

// ScaleMode defines how radial distances are mapped to screen space.
type ScaleMode int

const (
	// ScaleLogR uses logarithmic scaling: r_display = log10(r_AU + 1)
	ScaleLogR ScaleMode = iota

	// ScaleLinear maps AU linearly; good for the inner system.
	ScaleLinear
)

// String returns the short mode name shown in the viewer HUD.
func (m ScaleMode) String() string {
	switch m {
	case ScaleLogR:
		return "log"
	case ScaleLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// ProjectionConfig configures the top-down ecliptic projection.
type ProjectionConfig struct {
	Scale float64   // Base scale factor
	Mode  ScaleMode // Scaling mode
}

// DefaultProjectionConfig returns a reasonable default configuration.
func DefaultProjectionConfig() ProjectionConfig {
	return ProjectionConfig{
		Scale: 1.0,
		Mode:  ScaleLinear,
	}
}

// ProjectEclipticTopDown projects a 3D ecliptic vector given in AU to 2D
// screen coordinates, looking down from the north ecliptic pole.
// X points toward the vernal equinox, Y 90 degrees east of it.
func ProjectEclipticTopDown(v Vec3, cfg ProjectionConfig) ProjectedPoint {
	rAU := math.Sqrt(v.X*v.X + v.Y*v.Y)
	rDisplay := scaleRadius(rAU, cfg)
	angle := math.Atan2(v.Y, v.X)

	return ProjectedPoint{
		X: rDisplay * math.Cos(angle) * cfg.Scale,
		Y: rDisplay * math.Sin(angle) * cfg.Scale,
		R: v.Norm(),
		Z: v.Z,
	}
}

func scaleRadius(rAU float64, cfg ProjectionConfig) float64 {
	switch cfg.Mode {
	case ScaleLinear:
		return rAU
	default:
		// log10(r + 1) gives 0 at origin, ~0.30 at 1 AU
		return math.Log10(rAU + 1)
	}
}

// KmToAU converts kilometers to Astronomical Units.
func KmToAU(km float64) float64 {
	return km / AU
}

// AUToKm converts Astronomical Units to kilometers.
func AUToKm(au float64) float64 {
	return au * AU
}

// EclipticLatitude returns the ecliptic latitude in degrees for a vector.
func EclipticLatitude(v Vec3) float64 {
	r := v.Norm()
	if r == 0 {
		return 0
	}
	return radToDeg(math.Asin(v.Z / r))
}

// EclipticLongitude returns the ecliptic longitude in degrees for a vector.
func EclipticLongitude(v Vec3) float64 {
	return WrapDegrees(radToDeg(math.Atan2(v.Y, v.X)))
}

// WrapDegrees maps an angle into [0, 360).
func WrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Obliquity of the ecliptic at J2000, radians.
const obliquityRad = 23.439291 * math.Pi / 180

// EquatorialToEcliptic converts equatorial XYZ to ecliptic XYZ.
// Input is in any units (km, AU, etc); output is in the same units.
func EquatorialToEcliptic(eq Vec3) Vec3 {
	cosE := math.Cos(obliquityRad)
	sinE := math.Sin(obliquityRad)

	return Vec3{
		X: eq.X,
		Y: eq.Y*cosE + eq.Z*sinE,
		Z: -eq.Y*sinE + eq.Z*cosE,
	}
}

// EclipticToEquatorial converts ecliptic XYZ to equatorial XYZ.
func EclipticToEquatorial(ecl Vec3) Vec3 {
	cosE := math.Cos(obliquityRad)
	sinE := math.Sin(obliquityRad)

	return Vec3{
		X: ecl.X,
		Y: ecl.Y*cosE - ecl.Z*sinE,
		Z: ecl.Y*sinE + ecl.Z*cosE,
	}
}

// LightTimeFromKm returns the one-way light time in seconds for a distance in km.
func LightTimeFromKm(km float64) float64 {
	return km / SpeedOfLightKmS
}

// SpeedOfLightKmS is the speed of light in km/s.
const SpeedOfLightKmS = 299792.458

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
