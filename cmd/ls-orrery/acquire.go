package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/config"
	"github.com/litescript/ls-orrery/internal/ephem"
)

// windowFlags holds the acquisition window shared by fetch, bake and orient.
type windowFlags struct {
	from   string
	to     string
	step   time.Duration
	center string
	out    string
}

func (w *windowFlags) register(cmd *cobra.Command, step time.Duration) {
	cmd.Flags().StringVar(&w.from, "from", "1990-01-01", "First sample date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&w.to, "to", "2040-12-31", "Last sample date (YYYY-MM-DD)")
	cmd.Flags().DurationVar(&w.step, "step", step, "Sample spacing")
	cmd.Flags().StringVar(&w.center, "center", "0", "Center body name or NAIF ID")
	cmd.Flags().StringVarP(&w.out, "out", "o", "", "Output file (default <data-dir>/<body>_<kind>.json)")
}

// request resolves the body argument and window into an ephem.Request.
func (w *windowFlags) request(body string, kind ephem.TableKind) (ephem.Request, error) {
	info, ok := ephem.LookupBody(body)
	if !ok {
		return ephem.Request{}, fmt.Errorf("unknown body %q", body)
	}
	req := ephem.Request{Body: info, Step: w.step, Kind: kind}

	center, ok := parseCenter(w.center)
	if !ok {
		return ephem.Request{}, fmt.Errorf("unknown center %q", w.center)
	}
	req.Center = center

	var err error
	if req.Start, err = time.Parse(time.DateOnly, w.from); err != nil {
		return ephem.Request{}, fmt.Errorf("--from: %w", err)
	}
	if req.End, err = time.Parse(time.DateOnly, w.to); err != nil {
		return ephem.Request{}, fmt.Errorf("--to: %w", err)
	}
	return req, req.Validate()
}

func parseCenter(s string) (ephem.BodyID, bool) {
	if s == "0" || s == "ssb" {
		return ephem.NAIFSolarSystemBarycenter, true
	}
	info, ok := ephem.LookupBody(s)
	return info.NAIFID, ok
}

// outPath returns --out, else the file the config names for the body,
// else the conventional name under the data directory.
func (a *app) outPath(w *windowFlags, req ephem.Request) string {
	if w.out != "" {
		return w.out
	}
	if bc, ok := a.cfg.Body(req.Body.Name); ok {
		file := bc.Ephemeris
		if req.Kind == ephem.KindOrientation {
			file = bc.Orientation
		}
		if file != "" {
			return a.cfg.TablePath(file)
		}
	}
	return a.cfg.TablePath(config.TableFileName(req.Body.Name, req.Kind))
}

// acquire runs src for req and writes the table.
func (a *app) acquire(ctx context.Context, src ephem.Source, req ephem.Request, path string) error {
	a.logger.Info("acquiring table", "source", src.Name(), "body", req.Body.Name, "kind", req.Kind,
		"from", req.Start.Format(time.DateOnly), "to", req.End.Format(time.DateOnly), "step", req.Step)

	started := time.Now()
	t, err := src.Table(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", src.Name(), err)
	}
	if err := ephem.WriteFile(path, t); err != nil {
		return err
	}
	a.logger.Info("table written", "file", path, "rows", len(t.Data), "took", time.Since(started).Round(time.Millisecond))
	return nil
}

func (a *app) newFetchCmd() *cobra.Command {
	var (
		w      windowFlags
		orient bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <body>",
		Short: "Download a table from JPL Horizons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := ephem.KindEphemeris
			if orient {
				kind = ephem.KindOrientation
			}
			req, err := w.request(args[0], kind)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			src := ephem.NewHorizonsFetcher(
				ephem.WithURL(a.cfg.Horizons.URL),
				ephem.WithTimeout(a.cfg.Horizons.Timeout))
			return a.acquire(ctx, src, req, a.outPath(&w, req))
		},
	}
	w.register(cmd, 24*time.Hour)
	cmd.Flags().BoolVar(&orient, "orientation", false, "Fetch a pole orientation table instead of state vectors")
	cmd.Flags().String("horizons-url", ephem.HorizonsAPIURL, "Horizons API endpoint")
	cmd.Flags().Duration("horizons-timeout", ephem.RequestTimeout, "Horizons request timeout")
	return cmd
}

func (a *app) newBakeCmd() *cobra.Command {
	var (
		w  windowFlags
		de string
	)
	cmd := &cobra.Command{
		Use:   "bake <body>",
		Short: "Sample a local JPL DE file into an ephemeris table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if de == "" {
				return errors.New("--de is required")
			}
			req, err := w.request(args[0], ephem.KindEphemeris)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			baker, err := ephem.OpenJPLBaker(de, a.cfg.DeltaT)
			if err != nil {
				return err
			}
			defer baker.Close()
			first, last := baker.Coverage()
			a.logger.Debug("opened DE file", "file", de, "jd_start", first, "jd_end", last)

			return a.acquire(ctx, baker, req, a.outPath(&w, req))
		},
	}
	w.register(cmd, 6*time.Hour)
	cmd.Flags().StringVar(&de, "de", "", "Path to a JPL DE binary file (e.g. de440.bin)")
	return cmd
}

func (a *app) newOrientCmd() *cobra.Command {
	var w windowFlags
	cmd := &cobra.Command{
		Use:   "orient <body>",
		Short: "Generate an orientation table from the IAU rotation model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := w.request(args[0], ephem.KindOrientation)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.acquire(ctx, ephem.NewIAUModel(a.cfg.DeltaT), req, a.outPath(&w, req))
		},
	}
	w.register(cmd, time.Hour)
	return cmd
}

// tableStatus is one row of the validate report.
type tableStatus struct {
	Body    string
	Kind    ephem.TableKind
	Path    string
	Samples int
	Start   float64
	End     float64
	MeanGap float64 // days
	MaxGap  float64 // days
	Err     error
}

func (a *app) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check ephemeris and orientation tables",
		Long: `Validate loads every configured table (or the named ephemeris files)
and reports sample count, coverage and the first problem found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []tableStatus
			if len(args) > 0 {
				for _, path := range args {
					rows = append(rows, checkTable("", ephem.KindEphemeris, path))
				}
			} else {
				for _, bc := range a.cfg.Bodies {
					rows = append(rows, checkTable(bc.Name, ephem.KindEphemeris, a.cfg.TablePath(bc.Ephemeris)))
					if bc.Orientation != "" {
						rows = append(rows, checkTable(bc.Name, ephem.KindOrientation, a.cfg.TablePath(bc.Orientation)))
					}
				}
			}
			return writeValidateReport(os.Stdout, rows)
		},
	}
}

func checkTable(body string, kind ephem.TableKind, path string) tableStatus {
	st := tableStatus{Body: body, Kind: kind, Path: path}
	switch kind {
	case ephem.KindOrientation:
		s, err := ephem.LoadOrientationFile(path)
		if err != nil {
			st.Err = err
			return st
		}
		st.Samples = s.Len()
		st.Start, st.End = s.Span()
		st.MeanGap, st.MaxGap = spacing(sampleTimes(s.Samples()))
	default:
		s, err := ephem.LoadEphemerisFile(path)
		if err != nil {
			st.Err = err
			return st
		}
		st.Samples = s.Len()
		st.Start, st.End = s.Span()
		st.MeanGap, st.MaxGap = spacing(sampleTimes(s.Samples()))
	}
	return st
}

func sampleTimes[T ephem.Sample](samples []T) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.JDTDB()
	}
	return out
}

// spacing returns the mean and largest gap between consecutive times.
func spacing(times []float64) (mean, max float64) {
	if len(times) < 2 {
		return 0, 0
	}
	gaps := make([]float64, len(times)-1)
	floats.SubTo(gaps, times[1:], times[:len(times)-1])
	return stat.Mean(gaps, nil), floats.Max(gaps)
}

// formatStep renders a gap in days as a duration, e.g. "24h0m0s".
func formatStep(days float64) string {
	d := time.Duration(days * 24 * float64(time.Hour)).Round(time.Second)
	return d.String()
}

// writeValidateReport prints rows and returns an error when any failed.
// A missing orientation table is reported but not counted as a failure.
func writeValidateReport(w io.Writer, rows []tableStatus) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Body", "Kind", "File", "Samples", "From (TDB)", "To (TDB)", "Step", "Max Gap", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	failed := 0
	for _, r := range rows {
		status := "ok"
		from, to, step, gap := "-", "-", "-", "-"
		switch {
		case r.Err != nil && r.Kind == ephem.KindOrientation && errors.Is(r.Err, fs.ErrNotExist):
			status = "missing (optional)"
		case r.Err != nil:
			status = r.Err.Error()
			failed++
		default:
			from = astro.TimeFromEpochMs(astro.JulianDateToUTCEpochMs(r.Start)).Format(time.DateOnly)
			to = astro.TimeFromEpochMs(astro.JulianDateToUTCEpochMs(r.End)).Format(time.DateOnly)
			if r.Samples > 1 {
				step, gap = formatStep(r.MeanGap), formatStep(r.MaxGap)
			}
		}
		body := r.Body
		if body == "" {
			body = "-"
		}
		table.Append([]string{body, r.Kind.String(), r.Path, fmt.Sprintf("%d", r.Samples), from, to, step, gap, status})
	}
	table.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d tables invalid", failed, len(rows))
	}
	return nil
}
