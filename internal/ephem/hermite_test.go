package ephem

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/interp"

	"github.com/litescript/ls-orrery/internal/astro"
)

func TestInterpolateStateConstantVelocity(t *testing.T) {
	s, err := NewEphemerisSeries([]EphemerisSample{
		{TimeTDB: 100, Position: astro.Vec3{}, Velocity: astro.Vec3{X: 1}},
		{TimeTDB: 101, Position: astro.Vec3{X: 86400}, Velocity: astro.Vec3{X: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	b, err := FindBracket(s, 100.5)
	if err != nil {
		t.Fatal(err)
	}
	got := InterpolateState(b, 100.5)

	if want := (astro.Vec3{X: 43200}); got.Position != want {
		t.Errorf("Position = %v, want %v", got.Position, want)
	}
	if want := (astro.Vec3{X: 1}); got.Velocity != want {
		t.Errorf("Velocity = %v, want %v", got.Velocity, want)
	}
}

func TestInterpolateStateEndpoints(t *testing.T) {
	b := Bracket[EphemerisSample]{
		Start: EphemerisSample{
			TimeTDB:  2460000.5,
			Position: astro.Vec3{X: -2.6e7, Y: 1.44e8, Z: 4.1e3},
			Velocity: astro.Vec3{X: -29.7, Y: -5.3, Z: 0.001},
		},
		End: EphemerisSample{
			TimeTDB:  2460001.5,
			Position: astro.Vec3{X: -2.85e7, Y: 1.435e8, Z: 4.2e3},
			Velocity: astro.Vec3{X: -29.6, Y: -5.8, Z: 0.0012},
		},
	}

	tests := []struct {
		name string
		t    float64
		want EphemerisSample
	}{
		{"u=0", b.Start.TimeTDB, b.Start},
		{"u=1", b.End.TimeTDB, b.End},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpolateState(b, tt.t)
			assertVecClose(t, "Position", got.Position, tt.want.Position, 1e-9)
			assertVecClose(t, "Velocity", got.Velocity, tt.want.Velocity, 1e-9)
		})
	}
}

func TestInterpolateStateDegenerate(t *testing.T) {
	s := EphemerisSample{
		TimeTDB:  100,
		Position: astro.Vec3{X: 1, Y: 2, Z: 3},
		Velocity: astro.Vec3{X: 4, Y: 5, Z: 6},
	}
	b := Bracket[EphemerisSample]{Start: s, End: s}

	for _, q := range []float64{50, 100, 150} {
		got := InterpolateState(b, q)
		if got.Position != s.Position || got.Velocity != s.Velocity {
			t.Errorf("InterpolateState(degenerate, %v) = %+v, want start sample", q, got)
		}
	}
}

func TestInterpolateStateVelocityIsDerivative(t *testing.T) {
	b := Bracket[EphemerisSample]{
		Start: EphemerisSample{TimeTDB: 10, Position: astro.Vec3{X: 5, Y: -3, Z: 100}, Velocity: astro.Vec3{X: 0.2, Y: 0.01, Z: -0.5}},
		End:   EphemerisSample{TimeTDB: 10.5, Position: astro.Vec3{X: 9000, Y: 200, Z: -4000}, Velocity: astro.Vec3{X: 0.1, Y: 0.03, Z: -0.2}},
	}

	const h = 1e-6 // days
	for _, q := range []float64{10.1, 10.25, 10.4} {
		mid := InterpolateState(b, q)
		lo := InterpolateState(b, q-h)
		hi := InterpolateState(b, q+h)
		numeric := hi.Position.Sub(lo.Position).Scale(1 / (2 * h * astro.SecondsPerDay))
		assertVecClose(t, "Velocity", mid.Velocity, numeric, 1e-5)
	}
}

func TestInterpolateStateMatchesPiecewiseCubic(t *testing.T) {
	// Circular orbit of radius r and period P, sampled every 2 days.
	const (
		r = 1.5e8
		P = 365.25
	)
	omega := 2 * math.Pi / (P * astro.SecondsPerDay)

	var samples []EphemerisSample
	for jd := 0.0; jd <= 40; jd += 2 {
		th := omega * jd * astro.SecondsPerDay
		samples = append(samples, EphemerisSample{
			TimeTDB:  2451545 + jd,
			Position: astro.Vec3{X: r * math.Cos(th), Y: r * math.Sin(th)},
			Velocity: astro.Vec3{X: -r * omega * math.Sin(th), Y: r * omega * math.Cos(th)},
		})
	}
	s, err := NewEphemerisSeries(samples)
	if err != nil {
		t.Fatal(err)
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	dys := make([]float64, len(samples))
	for i, smp := range samples {
		xs[i] = (smp.TimeTDB - samples[0].TimeTDB) * astro.SecondsPerDay
		ys[i] = smp.Position.X
		dys[i] = smp.Velocity.X
	}
	var pc interp.PiecewiseCubic
	pc.FitWithDerivatives(xs, ys, dys)

	for q := samples[0].TimeTDB + 0.3; q < samples[len(samples)-1].TimeTDB; q += 0.77 {
		b, err := FindBracket(s, q)
		if err != nil {
			t.Fatal(err)
		}
		got := InterpolateState(b, q)
		x := (q - samples[0].TimeTDB) * astro.SecondsPerDay

		if want := pc.Predict(x); !scalar.EqualWithinAbsOrRel(got.Position.X, want, 1e-3, 1e-9) {
			t.Errorf("Position.X at %v = %v, want %v", q, got.Position.X, want)
		}
		if want := pc.PredictDerivative(x); !scalar.EqualWithinAbsOrRel(got.Velocity.X, want, 1e-9, 1e-7) {
			t.Errorf("Velocity.X at %v = %v, want %v", q, got.Velocity.X, want)
		}

		// Two-day steps keep the radius within a kilometre of the circle.
		if d := math.Abs(got.Position.Norm() - r); d > 1 {
			t.Errorf("radius error at %v = %v km", q, d)
		}
	}
}

func TestStateAtUTC(t *testing.T) {
	s, _ := NewEphemerisSeries([]EphemerisSample{
		{TimeTDB: 100, DeltaT: 43200, Velocity: astro.Vec3{X: 1}},
		{TimeTDB: 101, DeltaT: 43200, Position: astro.Vec3{X: 86400}, Velocity: astro.Vec3{X: 1}},
	})

	// Half a day of deltaT moves UTC 100.0 to TDB 100.5.
	got, err := StateAtUTC(s, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got.Position.X != 43200 {
		t.Errorf("Position.X = %v, want 43200", got.Position.X)
	}
}

func assertVecClose(t *testing.T, label string, got, want astro.Vec3, rel float64) {
	t.Helper()
	g := []float64{got.X, got.Y, got.Z}
	w := []float64{want.X, want.Y, want.Z}
	for i := range g {
		if !scalar.EqualWithinAbsOrRel(g[i], w[i], 1e-12, rel) {
			t.Errorf("%s = %v, want %v", label, got, want)
			return
		}
	}
}
