package ephem

import "github.com/litescript/ls-orrery/internal/astro"

// StateVector is an interpolated position (km) and velocity (km/s).
type StateVector struct {
	Position astro.Vec3
	Velocity astro.Vec3
}

// InterpolateState evaluates the cubic Hermite spline through the bracket
// endpoints at tTDB. Position and velocity are continuous across brackets.
// A degenerate bracket returns its start sample unchanged.
func InterpolateState(b Bracket[EphemerisSample], tTDB float64) StateVector {
	if b.Degenerate() {
		return StateVector{Position: b.Start.Position, Velocity: b.Start.Velocity}
	}

	t0, t1 := b.Start.TimeTDB, b.End.TimeTDB
	u := astro.NormalizeTime(tTDB, t0, t1)
	dt := (t1 - t0) * astro.SecondsPerDay

	var out StateVector
	out.Position.X, out.Velocity.X = hermite(b.Start.Position.X, b.Start.Velocity.X, b.End.Position.X, b.End.Velocity.X, u, dt)
	out.Position.Y, out.Velocity.Y = hermite(b.Start.Position.Y, b.Start.Velocity.Y, b.End.Position.Y, b.End.Velocity.Y, u, dt)
	out.Position.Z, out.Velocity.Z = hermite(b.Start.Position.Z, b.Start.Velocity.Z, b.End.Position.Z, b.End.Velocity.Z, u, dt)
	return out
}

// hermite evaluates one axis. p0, p1 are positions, v0, v1 velocities per
// second, u the normalized time and dt the bracket length in seconds.
func hermite(p0, v0, p1, v1, u, dt float64) (p, v float64) {
	u2 := u * u
	u3 := u2 * u

	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2
	p = h00*p0 + h10*dt*v0 + h01*p1 + h11*dt*v1

	d00 := 6*u2 - 6*u
	d10 := 3*u2 - 4*u + 1
	d01 := -6*u2 + 6*u
	d11 := 3*u2 - 2*u
	v = (d00*p0+d01*p1)/dt + d10*v0 + d11*v1
	return p, v
}

// StateAtUTC brackets the series at a UTC Julian Date and interpolates.
func StateAtUTC(s *EphemerisSeries, jdUTC float64) (StateVector, error) {
	b, err := BracketAtUTC(s, jdUTC)
	if err != nil {
		return StateVector{}, err
	}
	return InterpolateState(b, b.QueryTDB(jdUTC)), nil
}
