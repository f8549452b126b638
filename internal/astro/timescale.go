package astro

import (
	"math"
	"time"
)

const (
	// MsPerDay is the number of milliseconds in a day.
	MsPerDay = 86400000.0

	// SecondsPerDay is the number of SI seconds in a day.
	SecondsPerDay = 86400.0

	// UnixEpochJD is the Julian Date of 1970-01-01T00:00:00Z.
	UnixEpochJD = 2440587.5

	// J2000JD is the Julian Date of the J2000.0 epoch (2000-01-01 12:00 TDB).
	J2000JD = 2451545.0

	// DaysPerJulianCentury is the length of a Julian century in days.
	DaysPerJulianCentury = 36525.0
)

// UTCEpochMsToJulianDate converts milliseconds since the Unix epoch (UTC) to
// a Julian Date in UTC.
func UTCEpochMsToJulianDate(epochMs float64) float64 {
	return epochMs/MsPerDay + UnixEpochJD
}

// JulianDateToUTCEpochMs is the inverse of UTCEpochMsToJulianDate.
func JulianDateToUTCEpochMs(jdUTC float64) float64 {
	return (jdUTC - UnixEpochJD) * MsPerDay
}

// JulianDateUTCToTDB shifts a UTC Julian Date onto the TDB scale.
// deltaT is TDB-UT in seconds, as tabulated next to each ephemeris sample.
func JulianDateUTCToTDB(jdUTC, deltaT float64) float64 {
	return jdUTC + deltaT/SecondsPerDay
}

// JulianDateTDBToUTC is the inverse of JulianDateUTCToTDB for the same deltaT.
func JulianDateTDBToUTC(jdTDB, deltaT float64) float64 {
	return jdTDB - deltaT/SecondsPerDay
}

// UTCEpochMsToTDB converts Unix epoch milliseconds directly to a TDB Julian Date.
func UTCEpochMsToTDB(epochMs, deltaT float64) float64 {
	return JulianDateUTCToTDB(UTCEpochMsToJulianDate(epochMs), deltaT)
}

// NormalizeTime returns the interpolation parameter of t between start and
// end: 0 at start, 1 at end. The caller guarantees start != end.
func NormalizeTime(t, start, end float64) float64 {
	return (t - start) / (end - start)
}

// EpochMs returns t as fractional milliseconds since the Unix epoch.
func EpochMs(t time.Time) float64 {
	return float64(t.UnixMilli()) + float64(t.Nanosecond()%int(time.Millisecond))/1e6
}

// TimeFromEpochMs converts fractional Unix epoch milliseconds to a UTC time.
func TimeFromEpochMs(ms float64) time.Time {
	sec := math.Floor(ms / 1000)
	ns := math.Round((ms - sec*1000) * 1e6)
	return time.Unix(int64(sec), int64(ns)).UTC()
}

// JulianDate returns the UTC Julian Date of t.
func JulianDate(t time.Time) float64 {
	return UTCEpochMsToJulianDate(EpochMs(t))
}

// JulianCenturiesSinceJ2000 returns (jd - J2000) in Julian centuries.
func JulianCenturiesSinceJ2000(jd float64) float64 {
	return (jd - J2000JD) / DaysPerJulianCentury
}
