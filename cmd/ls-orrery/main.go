// Command ls-orrery plays back baked Sun, Earth and Moon ephemeris tables
// as a terminal orrery or as a frame stream for an external renderer, and
// acquires those tables from Horizons, JPL DE files or the IAU model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/litescript/ls-orrery/internal/config"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/logging"
	"github.com/litescript/ls-orrery/internal/version"
)

// app carries what every command needs after flags and config are read.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     config.Config
	logger  *log.Logger
}

// flagKeys maps config keys to the flags that override them. Flags a
// command does not define are skipped.
var flagKeys = map[string]string{
	"log_level":        "log-level",
	"log_format":       "log-format",
	"data_dir":         "data-dir",
	"delta_t":          "delta-t",
	"start_time":       "start",
	"speed":            "speed",
	"paused":           "paused",
	"listen_addr":      "listen",
	"frame_interval":   "frame-interval",
	"horizons.url":     "horizons-url",
	"horizons.timeout": "horizons-timeout",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "ls-orrery",
		Short:         "Sun, Earth and Moon ephemeris playback",
		Long:          `ls-orrery interpolates baked ephemeris tables under a controllable simulation clock.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default ./orrery.yaml or ~/.config/ls-orrery/orrery.yaml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json, logfmt)")
	pf.String("data-dir", "ephemeris", "Directory holding ephemeris tables")
	pf.Float64("delta-t", ephem.DefaultDeltaT, "TT-UTC seconds stamped on generated tables")

	root.AddCommand(
		a.newViewCmd(),
		a.newStateCmd(),
		a.newServeCmd(),
		a.newFetchCmd(),
		a.newBakeCmd(),
		a.newOrientCmd(),
		a.newValidateCmd(),
	)
	return root
}

// init reads config from file, env and flags and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	a.v = config.NewViper(a.cfgFile)
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}
	if err := config.ReadFile(a.v); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewWithOptions(os.Stderr, logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("config loaded", "file", used)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
