package ephem

import "github.com/litescript/ls-orrery/internal/astro"

// Orientation is an interpolated pole direction and prime meridian angle.
type Orientation struct {
	Pole astro.Vec3
	W    float64 // degrees
}

// InterpolateOrientation linearly interpolates the pole vector and W at
// tTDB. The pole is not renormalized and W is not unwrapped.
func InterpolateOrientation(b Bracket[OrientationSample], tTDB float64) Orientation {
	if b.Degenerate() {
		return Orientation{Pole: b.Start.Pole, W: b.Start.W}
	}
	u := astro.NormalizeTime(tTDB, b.Start.TimeTDB, b.End.TimeTDB)
	return Orientation{
		Pole: astro.Lerp(b.Start.Pole, b.End.Pole, u),
		W:    astro.LerpScalar(b.Start.W, b.End.W, u),
	}
}

// OrientationAtUTC brackets the series at a UTC Julian Date and interpolates.
func OrientationAtUTC(s *OrientationSeries, jdUTC float64) (Orientation, error) {
	b, err := BracketAtUTC(s, jdUTC)
	if err != nil {
		return Orientation{}, err
	}
	return InterpolateOrientation(b, b.QueryTDB(jdUTC)), nil
}
