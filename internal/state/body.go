package state

import (
	"fmt"
	"strings"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
)

// Capability is a rendering role a body exposes beyond its ephemeris.
type Capability uint8

const (
	// CapLightSource marks the body the others are lit by.
	CapLightSource Capability = 1 << iota
	// CapSunLit asks for a body-to-light-source direction each frame.
	CapSunLit
	// CapAtmosphere marks a body rendered with an atmosphere shell.
	CapAtmosphere
	// CapSelectable lets the viewer focus the body.
	CapSelectable
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapLightSource, "light-source"},
	{CapSunLit, "sun-lit"},
	{CapAtmosphere, "atmosphere"},
	{CapSelectable, "selectable"},
}

// Has reports whether all bits in want are set.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Names returns the capability names in a stable order.
func (c Capability) Names() []string {
	var names []string
	for _, cn := range capabilityNames {
		if c.Has(cn.cap) {
			names = append(names, cn.name)
		}
	}
	return names
}

// String joins the capability names with "|".
func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}

// ParseCapabilities combines named capabilities.
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		found := false
		for _, cn := range capabilityNames {
			if cn.name == n {
				c |= cn.cap
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown capability %q", n)
		}
	}
	return c, nil
}

// Body is one orbiting body: its tables plus the rendering capabilities
// it exposes. Series are read-only once the manager is ready.
type Body struct {
	Name        string
	NAIFID      ephem.BodyID
	RadiusKm    float64
	Ephemeris   *ephem.EphemerisSeries
	Orientation *ephem.OrientationSeries // optional
	Caps        Capability
}

// BodyState is the per-frame output for one body. Positions are km in the
// ecliptic J2000 frame, velocities km/s.
type BodyState struct {
	Name           string      `json:"name"`
	NAIFID         int         `json:"naifId"`
	RadiusKm       float64     `json:"radiusKm"`
	Position       astro.Vec3  `json:"position"`
	Velocity       astro.Vec3  `json:"velocity"`
	HasOrientation bool        `json:"hasOrientation"`
	Pole           astro.Vec3  `json:"pole"`
	W              float64     `json:"w"`
	SunDirection   *astro.Vec3 `json:"sunDirection,omitempty"`
	Capabilities   []string    `json:"capabilities,omitempty"`
}

// evaluate interpolates the body's tables at a UTC Julian Date.
func (b *Body) evaluate(jdUTC float64) (BodyState, error) {
	sv, err := ephem.StateAtUTC(b.Ephemeris, jdUTC)
	if err != nil {
		return BodyState{}, fmt.Errorf("%s ephemeris: %w", b.Name, err)
	}

	bs := BodyState{
		Name:         b.Name,
		NAIFID:       int(b.NAIFID),
		RadiusKm:     b.RadiusKm,
		Position:     sv.Position,
		Velocity:     sv.Velocity,
		Capabilities: b.Caps.Names(),
	}

	if b.Orientation != nil {
		o, err := ephem.OrientationAtUTC(b.Orientation, jdUTC)
		if err != nil {
			return BodyState{}, fmt.Errorf("%s orientation: %w", b.Name, err)
		}
		bs.HasOrientation = true
		bs.Pole = o.Pole
		bs.W = o.W
	}

	return bs, nil
}
