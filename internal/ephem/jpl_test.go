package ephem

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/litescript/ls-orrery/internal/astro"
)

// Set LS_ORRERY_DE_FILE to a DE binary (e.g. de440.bin) to run.
func TestJPLBakerEarth(t *testing.T) {
	path := os.Getenv("LS_ORRERY_DE_FILE")
	if path == "" {
		t.Skip("LS_ORRERY_DE_FILE not set")
	}

	b, err := OpenJPLBaker(path, DefaultDeltaT)
	if err != nil {
		t.Fatalf("OpenJPLBaker() error = %v", err)
	}
	defer b.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl, err := b.Table(context.Background(), Request{
		Body:   BodiesByNAIF[NAIFEarth],
		Center: NAIFSun,
		Start:  start,
		End:    start.Add(5 * 24 * time.Hour),
		Step:   24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	s, err := tbl.EphemerisSeries()
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < s.Len(); i++ {
		smp := s.At(i)
		if r := smp.Position.Norm() / astro.AU; r < 0.98 || r > 1.02 {
			t.Errorf("sample %d heliocentric distance = %.4f AU", i, r)
		}
		if v := smp.Velocity.Norm(); v < 29 || v > 31 {
			t.Errorf("sample %d speed = %.3f km/s", i, v)
		}
		// Ecliptic frame keeps Earth near the plane.
		if math.Abs(smp.Position.Z) > 1e5 {
			t.Errorf("sample %d Z = %.0f km", i, smp.Position.Z)
		}
	}
}

func TestJPLRecord(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// A point on the ecliptic Y axis and a velocity along the ecliptic pole,
	// both given in the equatorial frame as DE files report them.
	pos := astro.EclipticToEquatorial(astro.Vec3{Y: 1})
	vel := astro.EclipticToEquatorial(astro.Vec3{Z: 0.01})

	rec := jplRecord(ts, DefaultDeltaT, astro.AU, pos, vel)
	if rec.Date != "2024-01-01 00:00:00" {
		t.Errorf("Date = %q", rec.Date)
	}

	s, err := rec.ephemerisSample()
	if err != nil {
		t.Fatalf("ephemerisSample() error = %v", err)
	}
	if want := astro.JulianDate(ts); s.TimeTDB != want {
		t.Errorf("TimeTDB = %v, want %v", s.TimeTDB, want)
	}
	if s.DeltaT != DefaultDeltaT {
		t.Errorf("DeltaT = %v, want %v", s.DeltaT, DefaultDeltaT)
	}
	if want := (astro.Vec3{Y: astro.AU}); !vecNear(s.Position, want, 1e-3) {
		t.Errorf("Position = %+v, want %+v km", s.Position, want)
	}
	// 0.01 AU/day is about 17.3 km/s.
	if want := (astro.Vec3{Z: 0.01 * astro.AU / astro.SecondsPerDay}); !vecNear(s.Velocity, want, 1e-9) {
		t.Errorf("Velocity = %+v, want %+v km/s", s.Velocity, want)
	}
}

func TestJPLRecordRotatesEquator(t *testing.T) {
	// The equatorial Z axis is tilted by the obliquity in the ecliptic frame.
	rec := jplRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0, 1, astro.Vec3{Z: 1}, astro.Vec3{})
	s, err := rec.ephemerisSample()
	if err != nil {
		t.Fatal(err)
	}
	tilt := math.Acos(s.Position.Z) * 180 / math.Pi
	if math.Abs(tilt-23.439291) > 1e-6 {
		t.Errorf("tilt = %.6f°, want 23.439291°", tilt)
	}
	if s.Position.Y <= 0 {
		t.Errorf("Position.Y = %v, want positive", s.Position.Y)
	}
}

func vecNear(a, b astro.Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestOpenJPLBakerMissingFile(t *testing.T) {
	if _, err := OpenJPLBaker(t.TempDir()+"/none.bin", 0); err == nil {
		t.Error("expected error for missing file")
	}
}
