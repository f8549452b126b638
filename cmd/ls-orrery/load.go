package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/charmbracelet/log"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/config"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/playback"
	"github.com/litescript/ls-orrery/internal/simclock"
	"github.com/litescript/ls-orrery/internal/state"
)

// newManager builds the clock and an empty manager from cfg.
func newManager(cfg config.Config, logger *log.Logger) (*state.Manager, error) {
	start, err := cfg.Start(time.Now())
	if err != nil {
		return nil, err
	}
	// Same policy as a live speed change.
	speed := playback.RoundSpeed(playback.Clamp(cfg.Speed))
	clock := simclock.New(astro.EpochMs(start),
		simclock.WithSpeed(speed),
		simclock.WithPaused(cfg.Paused))

	stateCfg := state.DefaultConfig()
	if cfg.MaxEvents > 0 {
		stateCfg.MaxEvents = cfg.MaxEvents
	}
	return state.NewManager(stateCfg, clock, logger), nil
}

// loadBody reads one configured body's tables.
func loadBody(cfg config.Config, bc config.BodyConfig, logger *log.Logger) (state.Body, error) {
	caps, err := state.ParseCapabilities(bc.Capabilities)
	if err != nil {
		return state.Body{}, fmt.Errorf("body %s: %w", bc.Name, err)
	}

	b := state.Body{
		Name:   bc.Name,
		NAIFID: ephem.BodyID(bc.NAIFID),
		Caps:   caps,
	}
	if info, ok := ephem.BodiesByNAIF[b.NAIFID]; ok {
		b.RadiusKm = info.RadiusKm
	}

	path := cfg.TablePath(bc.Ephemeris)
	b.Ephemeris, err = ephem.LoadEphemerisFile(path)
	if err != nil {
		return state.Body{}, fmt.Errorf("body %s: %w", bc.Name, err)
	}
	start, end := b.Ephemeris.Span()
	logger.Info("loaded ephemeris", "body", bc.Name, "file", path, "samples", b.Ephemeris.Len(), "start", start, "end", end)

	if bc.Orientation != "" {
		path := cfg.TablePath(bc.Orientation)
		orient, err := ephem.LoadOrientationFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("orientation table missing, body will not rotate", "body", bc.Name, "file", path)
		case err != nil:
			return state.Body{}, fmt.Errorf("body %s orientation: %w", bc.Name, err)
		default:
			b.Orientation = orient
			logger.Info("loaded orientation", "body", bc.Name, "file", path, "samples", orient.Len())
		}
	}

	return b, nil
}

// loadInto adds every configured body to mgr and opens the readiness gate.
// Any table error is fatal.
func loadInto(ctx context.Context, mgr *state.Manager, cfg config.Config, logger *log.Logger) error {
	for _, bc := range cfg.Bodies {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := loadBody(cfg, bc, logger)
		if err != nil {
			return err
		}
		if err := mgr.AddBody(b); err != nil {
			return err
		}
	}
	return mgr.MarkReady()
}
