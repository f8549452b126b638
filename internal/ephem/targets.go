package ephem

import (
	"strconv"
	"strings"

	"github.com/mshafiee/jpleph"
)

// BodyID is a NAIF SPICE ID.
type BodyID int

// NAIF IDs of the bodies the orrery tabulates.
// Sourced from https://naif.jpl.nasa.gov/pub/naif/toolkit_docs/C/req/naif_ids.html
const (
	NAIFSolarSystemBarycenter BodyID = 0
	NAIFSun                   BodyID = 10
	NAIFMoon                  BodyID = 301
	NAIFEarth                 BodyID = 399
)

// BodyInfo maps a body to its identifiers in each data source.
type BodyInfo struct {
	Name     string
	NAIFID   BodyID
	RadiusKm float64
	Planet   jpleph.Planet // target index in JPL DE files
}

// Bodies is the canonical list of supported bodies.
var Bodies = []BodyInfo{
	{Name: "Sun", NAIFID: NAIFSun, RadiusKm: 696340, Planet: jpleph.Sun},
	{Name: "Earth", NAIFID: NAIFEarth, RadiusKm: 6371, Planet: jpleph.Earth},
	{Name: "Moon", NAIFID: NAIFMoon, RadiusKm: 1737.4, Planet: jpleph.Moon},
}

// BodiesByNAIF maps NAIF IDs to body info for quick lookup.
var BodiesByNAIF = func() map[BodyID]BodyInfo {
	m := make(map[BodyID]BodyInfo, len(Bodies))
	for _, b := range Bodies {
		m[b.NAIFID] = b
	}
	return m
}()

// LookupBody resolves a name (case-insensitive) or numeric NAIF ID.
func LookupBody(s string) (BodyInfo, bool) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		b, ok := BodiesByNAIF[BodyID(id)]
		return b, ok
	}
	for _, b := range Bodies {
		if strings.EqualFold(b.Name, s) {
			return b, true
		}
	}
	return BodyInfo{}, false
}

// HorizonsCommand returns the Horizons COMMAND for the body's center.
func (b BodyInfo) HorizonsCommand() string {
	return strconv.Itoa(int(b.NAIFID))
}

// HorizonsPoleCommand returns a COMMAND naming a geodetic site at the
// body's north pole, used to sample its pole direction.
func (b BodyInfo) HorizonsPoleCommand() string {
	return "'g:0,90,0@" + strconv.Itoa(int(b.NAIFID)) + "'"
}

// HorizonsCenter formats id as a Horizons CENTER value.
func HorizonsCenter(id BodyID) string {
	return "@" + strconv.Itoa(int(id))
}

// jplCenter maps a NAIF ID to a JPL DE center index.
func jplCenter(id BodyID) (jpleph.CenterBody, bool) {
	switch id {
	case NAIFSolarSystemBarycenter:
		return jpleph.CenterSolarSystemBarycenter, true
	case NAIFSun:
		return jpleph.CenterSun, true
	case NAIFEarth:
		return jpleph.CenterEarth, true
	case NAIFMoon:
		return jpleph.CenterMoon, true
	default:
		return 0, false
	}
}
