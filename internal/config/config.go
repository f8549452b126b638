// Package config loads ls-orrery settings from flags, LS_ORRERY_* env
// vars, an orrery.yaml file and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/exp/slices"

	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/playback"
)

// EnvPrefix is prepended to every environment override, e.g.
// LS_ORRERY_LISTEN_ADDR or LS_ORRERY_HORIZONS_TIMEOUT.
const EnvPrefix = "LS_ORRERY"

// MinFrameInterval is the fastest frame push the stream server allows.
const MinFrameInterval = 5 * time.Millisecond

// BodyConfig describes one body and the table files that feed it.
type BodyConfig struct {
	Name         string   `mapstructure:"name"`
	NAIFID       int      `mapstructure:"naif_id"`
	Ephemeris    string   `mapstructure:"ephemeris"`
	Orientation  string   `mapstructure:"orientation"`
	Capabilities []string `mapstructure:"capabilities"`
}

// HorizonsConfig configures the Horizons fetcher.
type HorizonsConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config holds all ls-orrery settings.
type Config struct {
	LogLevel      string         `mapstructure:"log_level"`
	LogFormat     string         `mapstructure:"log_format"`
	DataDir       string         `mapstructure:"data_dir"`
	Bodies        []BodyConfig   `mapstructure:"bodies"`
	StartTime     string         `mapstructure:"start_time"`
	Speed         float64        `mapstructure:"speed"`
	Paused        bool           `mapstructure:"paused"`
	ListenAddr    string         `mapstructure:"listen_addr"`
	FrameInterval time.Duration  `mapstructure:"frame_interval"`
	MaxEvents     int            `mapstructure:"max_events"`
	DeltaT        float64        `mapstructure:"delta_t"`
	Horizons      HorizonsConfig `mapstructure:"horizons"`
}

// Default returns the built-in configuration: the Sun, Earth and Moon
// read from tables under ./ephemeris.
func Default() Config {
	return Config{
		LogLevel:      "info",
		LogFormat:     "text",
		DataDir:       "ephemeris",
		Bodies:        DefaultBodies(),
		Speed:         1,
		ListenAddr:    ":8080",
		FrameInterval: 50 * time.Millisecond,
		MaxEvents:     50,
		DeltaT:        ephem.DefaultDeltaT,
		Horizons: HorizonsConfig{
			URL:     ephem.HorizonsAPIURL,
			Timeout: ephem.RequestTimeout,
		},
	}
}

// DefaultBodies returns the Sun, Earth and Moon body set.
func DefaultBodies() []BodyConfig {
	return []BodyConfig{
		{
			Name:         "Sun",
			NAIFID:       int(ephem.NAIFSun),
			Ephemeris:    TableFileName("Sun", ephem.KindEphemeris),
			Capabilities: []string{"light-source"},
		},
		{
			Name:         "Earth",
			NAIFID:       int(ephem.NAIFEarth),
			Ephemeris:    TableFileName("Earth", ephem.KindEphemeris),
			Orientation:  TableFileName("Earth", ephem.KindOrientation),
			Capabilities: []string{"sun-lit", "atmosphere", "selectable"},
		},
		{
			Name:         "Moon",
			NAIFID:       int(ephem.NAIFMoon),
			Ephemeris:    TableFileName("Moon", ephem.KindEphemeris),
			Orientation:  TableFileName("Moon", ephem.KindOrientation),
			Capabilities: []string{"sun-lit", "selectable"},
		},
	}
}

// TableFileName is the conventional file name for a body's table,
// e.g. "earth_ephemeris.json".
func TableFileName(body string, kind ephem.TableKind) string {
	return fmt.Sprintf("%s_%s.json", strings.ToLower(body), kind)
}

// SetDefaults registers every scalar default on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("start_time", d.StartTime)
	v.SetDefault("speed", d.Speed)
	v.SetDefault("paused", d.Paused)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("frame_interval", d.FrameInterval)
	v.SetDefault("max_events", d.MaxEvents)
	v.SetDefault("delta_t", d.DeltaT)
	v.SetDefault("horizons.url", d.Horizons.URL)
	v.SetDefault("horizons.timeout", d.Horizons.Timeout)
}

// NewViper returns a viper instance with defaults, env binding and the
// orrery.yaml search path set. configFile, when non-empty, replaces the
// search path.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("orrery")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ls-orrery"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads the config file if one is present. A missing file in
// the search path is not an error; a named file that cannot be read is.
func ReadFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Bodies) == 0 {
		cfg.Bodies = DefaultBodies()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks speed, frame interval, start time and body names.
func (c Config) Validate() error {
	if err := playback.Validate(c.Speed); err != nil {
		return fmt.Errorf("speed: %w", err)
	}
	if c.FrameInterval < MinFrameInterval {
		return fmt.Errorf("frame_interval %s is below %s", c.FrameInterval, MinFrameInterval)
	}
	if _, err := c.Start(time.Now()); err != nil {
		return err
	}

	names := make([]string, 0, len(c.Bodies))
	for i, b := range c.Bodies {
		if b.Name == "" {
			return fmt.Errorf("bodies[%d]: name is required", i)
		}
		if b.Ephemeris == "" {
			return fmt.Errorf("body %s: ephemeris file is required", b.Name)
		}
		if slices.Contains(names, b.Name) {
			return fmt.Errorf("body %s listed twice", b.Name)
		}
		names = append(names, b.Name)
	}
	return nil
}

// Start returns the configured start time, or now when none is set.
func (c Config) Start(now time.Time) (time.Time, error) {
	if strings.TrimSpace(c.StartTime) == "" {
		return now.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("start_time: %w", err)
	}
	return t.UTC(), nil
}

// TablePath resolves a table file against DataDir. Absolute paths are
// returned unchanged.
func (c Config) TablePath(file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.DataDir, file)
}

// Body returns the named body configuration.
func (c Config) Body(name string) (BodyConfig, bool) {
	i := slices.IndexFunc(c.Bodies, func(b BodyConfig) bool { return strings.EqualFold(b.Name, name) })
	if i < 0 {
		return BodyConfig{}, false
	}
	return c.Bodies[i], true
}
