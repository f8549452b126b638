package state

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/litescript/ls-orrery/internal/astro"
)

// FrameExport is the JSON-serializable representation of a frame,
// with derived distances added per body.
type FrameExport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Frame       Frame        `json:"frame"`
	Bodies      []BodyExport `json:"derived"`
	Events      []Event      `json:"events,omitempty"`
}

// BodyExport carries values derived from a body's state vector.
type BodyExport struct {
	Name         string  `json:"name"`
	DistanceKm   float64 `json:"distance_km"`
	DistanceAU   float64 `json:"distance_au"`
	SpeedKmS     float64 `json:"speed_km_s"`
	LightTimeSec float64 `json:"light_time_s"`
	EclLonDeg    float64 `json:"ecliptic_lon_deg"`
	EclLatDeg    float64 `json:"ecliptic_lat_deg"`
}

// ExportFrame converts a frame to an exportable format.
func ExportFrame(f Frame, events []Event, generatedAt time.Time) *FrameExport {
	export := &FrameExport{
		GeneratedAt: generatedAt,
		Frame:       f,
		Events:      events,
	}
	for _, b := range f.Bodies {
		export.Bodies = append(export.Bodies, deriveBody(b))
	}
	return export
}

func deriveBody(b BodyState) BodyExport {
	d := b.Position.Norm()
	return BodyExport{
		Name:         b.Name,
		DistanceKm:   d,
		DistanceAU:   astro.KmToAU(d),
		SpeedKmS:     b.Velocity.Norm(),
		LightTimeSec: astro.LightTimeFromKm(d),
		EclLonDeg:    astro.EclipticLongitude(b.Position),
		EclLatDeg:    astro.EclipticLatitude(b.Position),
	}
}

// WriteJSON writes the export as JSON to the given writer.
func (e *FrameExport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// WriteSummaryTable writes a text table of the frame to the given writer.
func WriteSummaryTable(w io.Writer, f Frame) {
	fmt.Fprintf(w, "Orrery @ %s  JD %.5f  %s", f.SimulatedTime.Format(time.RFC3339), f.JulianDateUTC, f.SpeedLabel)
	if f.Paused {
		fmt.Fprint(w, "  [paused]")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("─", 90))

	if len(f.Bodies) == 0 {
		fmt.Fprintln(w, "No bodies loaded")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Body", "NAIF", "Distance", "Speed", "Lon", "Lat", "W", "Caps"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, b := range f.Bodies {
		d := deriveBody(b)
		spin := "-"
		if b.HasOrientation {
			spin = fmt.Sprintf("%.2f°", astro.WrapDegrees(b.W))
		}
		table.Append([]string{
			b.Name,
			fmt.Sprintf("%d", b.NAIFID),
			formatDistance(d.DistanceKm),
			fmt.Sprintf("%.3f km/s", d.SpeedKmS),
			fmt.Sprintf("%.2f°", d.EclLonDeg),
			fmt.Sprintf("%+.2f°", d.EclLatDeg),
			spin,
			strings.Join(b.Capabilities, ","),
		})
	}
	table.Render()

	fmt.Fprintf(w, "\nTotal: %d bodies\n", len(f.Bodies))
}

// formatDistance picks km for nearby bodies and AU beyond a tenth of one.
func formatDistance(km float64) string {
	au := astro.KmToAU(km)
	if au >= 0.1 {
		return fmt.Sprintf("%.4f AU", au)
	}
	return fmt.Sprintf("%.0f km", km)
}
