// Package playback maps a bounded UI slider onto a logarithmic playback
// speed scale and formats speed multipliers for display.
package playback

import (
	"errors"
	"fmt"
	"math"
)

// Slider and speed bounds. The slider is linear in log(speed).
const (
	MinSlider   = 0.0
	MaxSlider   = 100.0
	SliderRange = MaxSlider - MinSlider

	MinSpeed = 0.1
	MaxSpeed = 1_000_000.0
)

// ErrInvalidSpeed is returned for non-positive or non-finite multipliers.
var ErrInvalidSpeed = errors.New("playback speed must be a positive finite number")

// Validate reports whether speed is usable as a multiplier.
func Validate(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	return nil
}

// SliderToSpeed maps a slider position to a speed multiplier:
// MinSpeed * (MaxSpeed/MinSpeed)^((v-MinSlider)/SliderRange).
func SliderToSpeed(v float64) float64 {
	return MinSpeed * math.Pow(MaxSpeed/MinSpeed, (v-MinSlider)/SliderRange)
}

// SpeedToSlider is the inverse of SliderToSpeed.
func SpeedToSlider(speed float64) (float64, error) {
	if err := Validate(speed); err != nil {
		return 0, err
	}
	return MinSlider + SliderRange*math.Log(speed/MinSpeed)/math.Log(MaxSpeed/MinSpeed), nil
}

// RoundSpeed quantizes a multiplier for display: whole numbers above 10x,
// tenths at or below.
func RoundSpeed(speed float64) float64 {
	if speed > 10 {
		return math.Round(speed)
	}
	return math.Round(speed*10) / 10
}

// ClampSlider limits v to [MinSlider, MaxSlider].
func ClampSlider(v float64) float64 {
	return math.Max(MinSlider, math.Min(MaxSlider, v))
}

// Clamp limits speed to [MinSpeed, MaxSpeed]. NaN maps to MinSpeed.
func Clamp(speed float64) float64 {
	if math.IsNaN(speed) {
		return MinSpeed
	}
	return math.Max(MinSpeed, math.Min(MaxSpeed, speed))
}

var units = []struct {
	seconds float64
	label   string
}{
	{365.25 * 86400, "yr"},
	{30.4375 * 86400, "mo"},
	{7 * 86400, "wk"},
	{86400, "d"},
	{3600, "h"},
	{60, "min"},
	{1, "s"},
}

// Label renders a multiplier as "Nx (amount unit/s)", where the
// parenthesized part is simulated time elapsed per real second,
// e.g. "3600x (1 h/s)" or "0.5x (0.5 s/s)".
func Label(speed float64) string {
	speed = RoundSpeed(speed)
	return fmt.Sprintf("%sx (%s/s)", formatNumber(speed), PerSecond(speed))
}

// PerSecond expresses speed simulated seconds in the largest unit that
// keeps the amount at or above one.
func PerSecond(speed float64) string {
	for _, u := range units {
		if speed >= u.seconds {
			return formatNumber(roundTo(speed/u.seconds, 1)) + " " + u.label
		}
	}
	return formatNumber(roundTo(speed, 2)) + " s"
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	s := fmt.Sprintf("%.2f", v)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s
}
