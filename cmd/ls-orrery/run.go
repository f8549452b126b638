package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/litescript/ls-orrery/internal/logging"
	"github.com/litescript/ls-orrery/internal/state"
	"github.com/litescript/ls-orrery/internal/stream"
	"github.com/litescript/ls-orrery/internal/ui"
)

// addClockFlags registers the flags that seed the simulation clock.
func addClockFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "Simulated start time, RFC3339 (default now)")
	cmd.Flags().Float64("speed", 1, "Playback speed multiplier")
	cmd.Flags().Bool("paused", false, "Start paused")
	cmd.Flags().Duration("frame-interval", 50*time.Millisecond, "Time between frames")
}

func (a *app) newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the terminal orrery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runView(cmd.Context())
		},
	}
	addClockFlags(cmd)
	return cmd
}

func (a *app) runView(parent context.Context) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	// The TUI owns the terminal; table loading logs nowhere.
	logger := logging.Discard()
	mgr, err := newManager(a.cfg, logger)
	if err != nil {
		return err
	}

	p := tea.NewProgram(ui.New(mgr, a.cfg.FrameInterval), tea.WithAltScreen(), tea.WithContext(ctx))

	loadErr := make(chan error, 1)
	go func() {
		err := loadInto(ctx, mgr, a.cfg, logger)
		loadErr <- err
		if err != nil {
			p.Quit()
		}
	}()

	_, runErr := p.Run()
	select {
	case err := <-loadErr:
		if err != nil {
			return err
		}
	default:
	}
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("run TUI: %w", runErr)
	}
	return nil
}

func (a *app) newStateCmd() *cobra.Command {
	var (
		jsonPath string
		watch    time.Duration
		events   int
	)
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the current frame as a table or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runState(cmd.Context(), os.Stdout, jsonPath, watch, events)
		},
	}
	addClockFlags(cmd)
	cmd.Flags().StringVar(&jsonPath, "json", "", "Write the frame as JSON to a file (use - for stdout)")
	cmd.Flags().DurationVar(&watch, "watch", 0, "Repeat at interval (e.g., 1s)")
	cmd.Flags().IntVar(&events, "events", 0, "Also print the last N clock events")
	return cmd
}

func (a *app) runState(parent context.Context, out io.Writer, jsonPath string, watch time.Duration, events int) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	mgr, err := newManager(a.cfg, a.logger)
	if err != nil {
		return err
	}
	if err := loadInto(ctx, mgr, a.cfg, a.logger); err != nil {
		return err
	}

	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	outputOnce := func() error {
		f, err := mgr.FrameNow()
		if err != nil {
			return err
		}
		if jsonPath != "" {
			return writeFrameJSON(out, jsonPath, state.ExportFrame(f, mgr.RecentEvents(events), time.Now().UTC()))
		}
		state.WriteSummaryTable(out, f)
		if events > 0 {
			fmt.Fprintln(out)
			writeEvents(out, mgr.RecentEvents(events))
		}
		return nil
	}

	if watch == 0 {
		return outputOnce()
	}

	ticker := time.NewTicker(watch)
	defer ticker.Stop()
	for {
		if isTTY && jsonPath == "" {
			fmt.Fprint(out, "\033[H\033[2J")
		}
		if err := outputOnce(); err != nil {
			a.logger.Error("frame failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !isTTY {
				fmt.Fprintln(out)
			}
		}
	}
}

func writeFrameJSON(stdout io.Writer, path string, export *state.FrameExport) error {
	if path == "-" {
		if err := export.WriteJSON(stdout); err != nil {
			return fmt.Errorf("write JSON to stdout: %w", err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	defer f.Close()
	if err := export.WriteJSON(f); err != nil {
		return fmt.Errorf("write JSON to file: %w", err)
	}
	return nil
}

func writeEvents(w io.Writer, events []state.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events")
		return
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %-9s sim %s", e.Timestamp.Format("15:04:05"), e.Type, e.SimTime.Format(time.RFC3339))
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Fprintln(w, line)
	}
}

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream frames to a renderer over HTTP and WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}
	addClockFlags(cmd)
	cmd.Flags().String("listen", ":8080", "Listen address")
	return cmd
}

func (a *app) runServe(parent context.Context) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	mgr, err := newManager(a.cfg, a.logger)
	if err != nil {
		return err
	}

	// A load failure stops the server and becomes the command's error.
	loadErr := make(chan error, 1)
	go func() {
		err := loadInto(ctx, mgr, a.cfg, a.logger)
		loadErr <- err
		if err != nil {
			cancel()
		}
	}()

	srv := stream.NewServer(mgr, stream.Config{FrameInterval: a.cfg.FrameInterval}, a.logger)
	serveErr := srv.ListenAndServe(ctx, a.cfg.ListenAddr)

	select {
	case err := <-loadErr:
		if err != nil {
			return fmt.Errorf("load ephemeris: %w", err)
		}
	default:
	}
	return serveErr
}
