// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.3.0"

// Milestones:
// 0.3.0 - Streaming server, orrery viewer, IAU rotation baking
// 0.2.0 - Hermite interpolation over baked tables, simulation clock and playback slider
// 0.1.0 - Horizons vector fetch and JSON ephemeris tables
