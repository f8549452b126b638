package ephem

import (
	"context"
	"fmt"
	"time"
)

// Request describes a table to acquire from a Source.
type Request struct {
	Body   BodyInfo
	Center BodyID
	Start  time.Time
	End    time.Time
	Step   time.Duration
	Kind   TableKind
}

// Validate checks the request window.
func (r Request) Validate() error {
	if !r.End.After(r.Start) {
		return fmt.Errorf("end %s is not after start %s", r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	if r.Step <= 0 {
		return fmt.Errorf("step must be positive, got %s", r.Step)
	}
	return nil
}

// Source produces tables for the data-acquisition commands.
type Source interface {
	// Name returns the source name for display/logging.
	Name() string

	// Table acquires the requested table.
	Table(ctx context.Context, req Request) (*Table, error)
}

// Mode represents which acquisition source to use.
type Mode int

const (
	ModeHorizons Mode = iota // JPL Horizons API (default)
	ModeJPL                  // local JPL DE binary file
	ModeIAU                  // IAU rotation model, orientation tables only
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeHorizons:
		return "horizons"
	case ModeJPL:
		return "jpl"
	case ModeIAU:
		return "iau"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode string. Unknown input selects Horizons.
func ParseMode(s string) Mode {
	switch s {
	case "jpl":
		return ModeJPL
	case "iau":
		return ModeIAU
	default:
		return ModeHorizons
	}
}

// Table implements Source.
func (f *HorizonsFetcher) Table(ctx context.Context, req Request) (*Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	q := HorizonsQuery{
		Name:     req.Body.Name,
		Command:  req.Body.HorizonsCommand(),
		Center:   HorizonsCenter(req.Center),
		Start:    req.Start.UTC().Format(time.DateOnly),
		End:      req.End.UTC().Format(time.DateOnly),
		TimeStep: formatStepSize(req.Step),
		Kind:     req.Kind,
	}
	if req.Kind == KindOrientation {
		q.Command = req.Body.HorizonsPoleCommand()
		q.Center = req.Body.HorizonsCommand()
	}

	t, err := f.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if req.Kind == KindOrientation {
		if err := FillRotation(t, req.Body.NAIFID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FileName returns the conventional table file name, e.g.
// "Earth_ephemeris_1990-01-01_2040-12-31.json".
func (r Request) FileName() string {
	return fmt.Sprintf("%s_%s_%s_%s.json", r.Body.Name, r.Kind,
		r.Start.UTC().Format(time.DateOnly), r.End.UTC().Format(time.DateOnly))
}

// formatStepSize formats a duration as a Horizons step size.
func formatStepSize(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}
