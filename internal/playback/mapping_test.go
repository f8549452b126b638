package playback

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestSliderToSpeedBounds(t *testing.T) {
	tests := []struct {
		v    float64
		want float64
	}{
		{MinSlider, MinSpeed},
		{MaxSlider, MaxSpeed},
		{100.0 / 7, 1},
		{50, MinSpeed * math.Sqrt(MaxSpeed/MinSpeed)},
	}
	for _, tt := range tests {
		got := SliderToSpeed(tt.v)
		if !scalar.EqualWithinAbsOrRel(got, tt.want, 1e-12, 1e-9) {
			t.Errorf("SliderToSpeed(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestSliderSpeedRoundTrip(t *testing.T) {
	for v := MinSlider; v <= MaxSlider; v += 0.25 {
		back, err := SpeedToSlider(SliderToSpeed(v))
		if err != nil {
			t.Fatalf("SpeedToSlider: %v", err)
		}
		if !scalar.EqualWithinAbsOrRel(back, v, 1e-9, 1e-6) {
			t.Errorf("round trip of %v = %v", v, back)
		}
	}
}

func TestSliderIsMonotonic(t *testing.T) {
	prev := SliderToSpeed(MinSlider)
	for v := MinSlider + 1; v <= MaxSlider; v++ {
		s := SliderToSpeed(v)
		if s <= prev {
			t.Fatalf("SliderToSpeed(%v) = %v, not above %v", v, s, prev)
		}
		prev = s
	}
}

func TestSpeedToSliderRejectsInvalid(t *testing.T) {
	for _, s := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := SpeedToSlider(s); !errors.Is(err, ErrInvalidSpeed) {
			t.Errorf("SpeedToSlider(%v) error = %v, want ErrInvalidSpeed", s, err)
		}
	}
}

func TestRoundSpeed(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.14, 0.1},
		{0.15, 0.2},
		{1, 1},
		{2.345, 2.3},
		{9.96, 10},
		{10, 10},
		{10.4, 10},
		{10.5, 11},
		{316.227, 316},
		{99999.5, 100000},
	}
	for _, tt := range tests {
		if got := RoundSpeed(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("RoundSpeed(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, MinSpeed},
		{5, 5},
		{1e9, MaxSpeed},
		{math.NaN(), MinSpeed},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := ClampSlider(-3); got != MinSlider {
		t.Errorf("ClampSlider(-3) = %v", got)
	}
	if got := ClampSlider(250); got != MaxSlider {
		t.Errorf("ClampSlider(250) = %v", got)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		speed float64
		want  string
	}{
		{1, "1x (1 s/s)"},
		{0.5, "0.5x (0.5 s/s)"},
		{100, "100x (1.7 min/s)"},
		{3600, "3600x (1 h/s)"},
		{86400, "86400x (1 d/s)"},
		{2.345, "2.3x (2.3 s/s)"},
	}
	for _, tt := range tests {
		if got := Label(tt.speed); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.speed, got, tt.want)
		}
	}
}
