package ephem

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/litescript/ls-orrery/internal/astro"
)

// DefaultDeltaT is TDB-UTC in seconds since the 2017 leap second
// (32.184 s TT-TAI plus 37 s TAI-UTC).
const DefaultDeltaT = 69.184

// IAUModel generates orientation tables from IAU rotation elements.
type IAUModel struct {
	deltaT float64
}

// NewIAUModel returns a generator that stamps every row with deltaT.
func NewIAUModel(deltaT float64) *IAUModel {
	return &IAUModel{deltaT: deltaT}
}

// Name implements Source.
func (m *IAUModel) Name() string {
	return "IAU"
}

// Table implements Source. Only orientation tables are supported.
func (m *IAUModel) Table(ctx context.Context, req Request) (*Table, error) {
	if req.Kind != KindOrientation {
		return nil, fmt.Errorf("%s source cannot produce %s tables", m.Name(), req.Kind)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return BuildOrientationTable(ctx, req.Body, req.Start, req.End, req.Step, m.deltaT)
}

// BuildOrientationTable samples the body's IAU pole and prime meridian
// every step from start through end. Sample instants are read as TDB
// calendar times. W is left unwrapped.
func BuildOrientationTable(ctx context.Context, body BodyInfo, start, end time.Time, step time.Duration, deltaT float64) (*Table, error) {
	rot, ok := astro.RotationForNAIF(int(body.NAIFID))
	if !ok {
		return nil, fmt.Errorf("no rotation model for %s (%d)", body.Name, body.NAIFID)
	}

	t := &Table{
		Name:     body.Name,
		BodyID:   body.HorizonsCommand(),
		TimeStep: formatStepSize(step),
		Center:   HorizonsCenter(NAIFSolarSystemBarycenter),
		Start:    start.UTC().Format(time.DateOnly),
		End:      end.UTC().Format(time.DateOnly),
	}

	for ts := start.UTC(); !ts.After(end); ts = ts.Add(step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		jd := astro.JulianDate(ts)
		ra, dec := rot.PoleRADec(jd)
		s := OrientationSample{
			TimeTDB: jd,
			DeltaT:  deltaT,
			Pole:    rot.PoleVector(jd),
			W:       rot.W(jd),
		}
		t.Data = append(t.Data, OrientationRecord(s, ts.Format(time.DateTime), math.Mod(ra+360, 360), dec))
	}

	return t, nil
}

// BuildOrientationSeries is BuildOrientationTable followed by validation.
func BuildOrientationSeries(ctx context.Context, body BodyInfo, start, end time.Time, step time.Duration, deltaT float64) (*OrientationSeries, error) {
	t, err := BuildOrientationTable(ctx, body, start, end, step, deltaT)
	if err != nil {
		return nil, err
	}
	return t.OrientationSeries()
}

// FillRotation completes an orientation table acquired from Horizons,
// whose rows carry only the pole site position: x, y, z become a unit
// pole_vec and missing w values come from the IAU model.
func FillRotation(t *Table, id BodyID) error {
	rot, ok := astro.RotationForNAIF(int(id))
	if !ok {
		return fmt.Errorf("no rotation model for body %d", id)
	}
	for i := range t.Data {
		rec := &t.Data[i]
		if rec.JDTDB == nil {
			return fmt.Errorf("record %d: %w: missing jdTDB", i, ErrBadRecord)
		}
		if rec.PoleVec == nil {
			if rec.X == nil || rec.Y == nil || rec.Z == nil {
				return fmt.Errorf("record %d: %w: missing pole", i, ErrBadRecord)
			}
			p := astro.Vec3{X: *rec.X, Y: *rec.Y, Z: *rec.Z}.Normalized()
			rec.PoleVec = []float64{p.X, p.Y, p.Z}
			rec.X, rec.Y, rec.Z = nil, nil, nil
		}
		if rec.W == nil {
			rec.W = ptr(rot.W(*rec.JDTDB))
		}
	}
	return nil
}
