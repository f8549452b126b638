package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type rgb struct{ r, g, b float64 }

func (c rgb) hex() string {
	return fmt.Sprintf("#%02X%02X%02X", channel(c.r), channel(c.g), channel(c.b))
}

func (c rgb) color() lipgloss.Color {
	return lipgloss.Color(c.hex())
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func mix(a, b rgb, t float64) rgb {
	return rgb{a.r + (b.r-a.r)*t, a.g + (b.g-a.g)*t, a.b + (b.b-a.b)*t}
}

// ramp is a list of evenly spaced color stops.
type ramp []rgb

// at samples the ramp at u, clamped to [0, 1].
func (r ramp) at(u float64) rgb {
	if len(r) == 1 || math.IsNaN(u) || u <= 0 {
		return r[0]
	}
	pos := math.Min(u, 1) * float64(len(r)-1)
	i := int(pos)
	if i >= len(r)-1 {
		return r[len(r)-1]
	}
	return mix(r[i], r[i+1], pos-float64(i))
}

// Sunlight fading out to deep space.
var titleRamp = ramp{
	{0xF5, 0xB7, 0x31},
	{0xE8, 0x6A, 0x3C},
	{0x9D, 0x4E, 0xDD},
	{0x3A, 0x5B, 0xD9},
}

var (
	shimmerBase = rgb{0x5A, 0x52, 0x7A}
	shimmerHigh = rgb{0xF0, 0xD8, 0xA0}
)

const shimmerHalfWidth = 4.0

// shineWeight is 1 at the highlight center and falls off to 0 at
// shimmerHalfWidth cells away.
func shineWeight(i, center int) float64 {
	d := math.Abs(float64(i-center)) / shimmerHalfWidth
	if d >= 1 {
		return 0
	}
	return 0.5 + 0.5*math.Cos(math.Pi*d)
}

// shimmer renders text with a highlight sweeping left to right as tick grows.
func shimmer(text string, tick int) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	pad := int(shimmerHalfWidth)
	center := tick%(len(runes)+2*pad) - pad

	var b strings.Builder
	for i, r := range runes {
		c := mix(shimmerBase, shimmerHigh, shineWeight(i, center))
		b.WriteString(lipgloss.NewStyle().Foreground(c.color()).Render(string(r)))
	}
	return b.String()
}
