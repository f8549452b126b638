package astro

import (
	"math"
	"testing"
)

func TestEarthPoleAtJ2000(t *testing.T) {
	got := EarthRotation.PoleVector(J2000JD)
	want := Vec3{0, math.Sin(obliquityRad), math.Cos(obliquityRad)}
	if !vecClose(got, want, 1e-9) {
		t.Errorf("Earth pole = %v, want %v", got, want)
	}
}

func TestPoleVectorIsUnit(t *testing.T) {
	for _, id := range []int{10, 399, 301} {
		rot, ok := RotationForNAIF(id)
		if !ok {
			t.Fatalf("RotationForNAIF(%d) not found", id)
		}
		for _, jd := range []float64{J2000JD, J2000JD + 9000, J2000JD - 3000} {
			if n := rot.PoleVector(jd).Norm(); math.Abs(n-1) > 1e-12 {
				t.Errorf("body %d pole norm at %v = %v, want 1", id, jd, n)
			}
		}
	}
	if _, ok := RotationForNAIF(499); ok {
		t.Error("RotationForNAIF(499) should not be found")
	}
}

func TestPrimeMeridianAdvances(t *testing.T) {
	tests := []struct {
		name string
		rot  RotationElements
		days float64
		want float64
	}{
		{"earth one day", EarthRotation, 1, 190.147 + 360.9856235},
		{"sun ten days", SunRotation, 10, 84.176 + 141.844},
		{"moon at epoch", MoonRotation, 0, 38.3213},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rot.W(J2000JD + tt.days)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("W = %v, want %v", got, tt.want)
			}
		})
	}

	// W is not wrapped, so it keeps increasing.
	prev := EarthRotation.W(J2000JD)
	for d := 1.0; d <= 5; d++ {
		w := EarthRotation.W(J2000JD + d)
		if w <= prev {
			t.Errorf("W did not increase at day %v: %v <= %v", d, w, prev)
		}
		prev = w
	}
}
