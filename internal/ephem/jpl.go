package ephem

import (
	"context"
	"fmt"
	"time"

	"github.com/mshafiee/jpleph"

	"github.com/litescript/ls-orrery/internal/astro"
)

// JPLBaker samples a JPL DE binary ephemeris into position/velocity tables.
type JPLBaker struct {
	path   string
	eph    *jpleph.Ephemeris
	deltaT float64
	auKm   float64
}

// OpenJPLBaker opens a DE binary file such as de440.bin.
func OpenJPLBaker(path string, deltaT float64) (*JPLBaker, error) {
	eph, err := jpleph.NewEphemeris(path, false)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	auKm := eph.GetEphemerisDouble(jpleph.AUinKM)
	if auKm <= 0 {
		auKm = astro.AU
	}
	return &JPLBaker{path: path, eph: eph, deltaT: deltaT, auKm: auKm}, nil
}

// Close releases the ephemeris file.
func (b *JPLBaker) Close() error {
	return b.eph.Close()
}

// Name implements Source.
func (b *JPLBaker) Name() string {
	return "JPL DE"
}

// Coverage returns the TDB Julian Date range of the file.
func (b *JPLBaker) Coverage() (start, end float64) {
	return b.eph.GetEphemerisDouble(jpleph.EphemerisStartJD), b.eph.GetEphemerisDouble(jpleph.EphemerisEndJD)
}

// Table implements Source. Rows are ecliptic J2000 km and km/s; sample
// instants are read as TDB calendar times.
func (b *JPLBaker) Table(ctx context.Context, req Request) (*Table, error) {
	if req.Kind != KindEphemeris {
		return nil, fmt.Errorf("%s source cannot produce %s tables", b.Name(), req.Kind)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	center, ok := jplCenter(req.Center)
	if !ok {
		return nil, fmt.Errorf("center %d not available in JPL DE files", req.Center)
	}

	first, last := b.Coverage()
	if js, je := astro.JulianDate(req.Start), astro.JulianDate(req.End); js < first || je > last {
		return nil, fmt.Errorf("window JD %.1f..%.1f outside file coverage %.1f..%.1f", js, je, first, last)
	}

	t := &Table{
		Name:     req.Body.Name,
		Command:  req.Body.HorizonsCommand(),
		TimeStep: formatStepSize(req.Step),
		Center:   HorizonsCenter(req.Center),
		Start:    req.Start.UTC().Format(time.DateOnly),
		End:      req.End.UTC().Format(time.DateOnly),
	}

	for ts := req.Start.UTC(); !ts.After(req.End); ts = ts.Add(req.Step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		jd := astro.JulianDate(ts)
		pos, vel, err := b.eph.CalculatePV(jd, req.Body.Planet, center, true)
		if err != nil {
			return nil, fmt.Errorf("%s at JD %.5f: %w", req.Body.Name, jd, err)
		}
		t.Data = append(t.Data, jplRecord(ts, b.deltaT, b.auKm,
			astro.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
			astro.Vec3{X: vel.DX, Y: vel.DY, Z: vel.DZ}))
	}

	return t, nil
}

// jplRecord converts one DE state (equatorial AU and AU/day) into a table
// row in ecliptic km and km/s. The calendar time ts is taken as TDB.
func jplRecord(ts time.Time, deltaT, auKm float64, posAU, velAUPerDay astro.Vec3) Record {
	rec := EphemerisRecord(EphemerisSample{
		TimeTDB:  astro.JulianDate(ts),
		DeltaT:   deltaT,
		Position: astro.EquatorialToEcliptic(posAU).Scale(auKm),
		Velocity: astro.EquatorialToEcliptic(velAUPerDay).Scale(auKm / astro.SecondsPerDay),
	})
	rec.Date = ts.Format(time.DateTime)
	return rec
}
