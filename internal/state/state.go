// Package state owns the orbiting bodies, the readiness gate and the
// simulation clock, and turns them into per-frame output.
package state

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/logging"
	"github.com/litescript/ls-orrery/internal/playback"
	"github.com/litescript/ls-orrery/internal/simclock"
)

var (
	// ErrClockNotReady is returned by Frame until MarkReady has been called.
	// The frame should be skipped.
	ErrClockNotReady = errors.New("ephemeris data not ready")

	// ErrUnknownBody is returned for a body name that was never added.
	ErrUnknownBody = errors.New("unknown body")

	// ErrInvalidTime is returned for a non-finite absolute time.
	ErrInvalidTime = errors.New("invalid simulated time")
)

// EventType represents the type of state change event.
type EventType string

const (
	EventReady    EventType = "READY"
	EventTimeSkip EventType = "TIME_SKIP"
	EventSpeed    EventType = "SPEED"
	EventPause    EventType = "PAUSE"
	EventResume   EventType = "RESUME"
)

// Event records a state change for the event log.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SimTime   time.Time `json:"sim_time"`
	Speed     float64   `json:"speed,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Frame is everything a renderer needs for one animation frame.
type Frame struct {
	SimulatedTimeMs float64     `json:"simulatedTimeMs"`
	SimulatedTime   time.Time   `json:"simulatedTime"`
	JulianDateUTC   float64     `json:"jdUTC"`
	TimeSkipped     bool        `json:"timeSkipped"`
	SkipCount       uint64      `json:"skipCount"`
	Speed           float64     `json:"speed"`
	SpeedLabel      string      `json:"speedLabel"`
	Paused          bool        `json:"paused"`
	Bodies          []BodyState `json:"bodies"`
}

// Body returns the state of the named body in the frame.
func (f Frame) Body(name string) (BodyState, bool) {
	i := slices.IndexFunc(f.Bodies, func(b BodyState) bool { return b.Name == name })
	if i < 0 {
		return BodyState{}, false
	}
	return f.Bodies[i], true
}

// Cursor remembers how many time skips one frame consumer has seen, so
// every consumer gets its own timeSkipped frame after a jump. It is safe
// for concurrent use.
type Cursor struct {
	seen atomic.Uint64
}

// NewCursorAt returns a cursor that has already seen skips jumps.
func NewCursorAt(skips uint64) *Cursor {
	c := &Cursor{}
	c.seen.Store(skips)
	return c
}

// Seen returns the skip count the cursor last observed.
func (c *Cursor) Seen() uint64 {
	return c.seen.Load()
}

// observe records skips and reports whether it is newer than what the
// cursor had seen.
func (c *Cursor) observe(skips uint64) bool {
	for {
		old := c.seen.Load()
		if skips <= old {
			return false
		}
		if c.seen.CompareAndSwap(old, skips) {
			return true
		}
	}
}

// Config holds configuration for the state manager.
type Config struct {
	MaxEvents int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxEvents: 50,
	}
}

// Manager handles all shared application state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	clock  *simclock.Clock
	logger *log.Logger

	bodies []*Body
	ready  bool

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int

	cursor        *Cursor
	lastFrame     *Frame
	framesServed  uint64
	framesSkipped uint64
}

// NewManager creates a state manager driven by clock. A nil logger
// discards output.
func NewManager(cfg Config, clock *simclock.Clock, logger *log.Logger) *Manager {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	if logger == nil {
		logger = logging.Discard()
	}

	m := &Manager{
		clock:     clock,
		logger:    logger,
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		cursor:    NewCursorAt(clock.Skips()),
	}
	clock.AddListener(m.onClockEvent)
	return m
}

// Clock returns the simulation clock.
func (m *Manager) Clock() *simclock.Clock {
	return m.clock
}

// AddBody registers a body. Bodies can only be added before MarkReady.
func (m *Manager) AddBody(b Body) error {
	if b.Ephemeris.Len() == 0 {
		return fmt.Errorf("body %s: %w", b.Name, ephem.ErrEmptySeries)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready {
		return fmt.Errorf("body %s: cannot add bodies after ready", b.Name)
	}
	if slices.ContainsFunc(m.bodies, func(x *Body) bool { return x.Name == b.Name }) {
		return fmt.Errorf("body %s already added", b.Name)
	}

	m.bodies = append(m.bodies, &b)
	start, end := b.Ephemeris.Span()
	m.logger.Debug("body added", "body", b.Name, "samples", b.Ephemeris.Len(),
		"start", start, "end", end, "orientation", b.Orientation != nil, "caps", b.Caps)
	return nil
}

// MarkReady opens the readiness gate. It requires at least one body and
// takes effect once; later calls are no-ops.
func (m *Manager) MarkReady() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready {
		return nil
	}
	if len(m.bodies) == 0 {
		return fmt.Errorf("no bodies loaded: %w", ephem.ErrEmptySeries)
	}
	m.ready = true

	names := make([]string, len(m.bodies))
	for i, b := range m.bodies {
		names[i] = b.Name
	}
	m.addEvent(Event{
		Type:      EventReady,
		Timestamp: time.Now(),
		SimTime:   m.clock.Time(),
		Detail:    fmt.Sprintf("%d bodies", len(m.bodies)),
	})
	m.logger.Info("ephemeris ready", "bodies", names)
	return nil
}

// Ready reports whether the readiness gate is open.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// BodyNames returns the registered body names in insertion order.
func (m *Manager) BodyNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.bodies))
	for i, b := range m.bodies {
		names[i] = b.Name
	}
	return names
}

// Body returns the named body.
func (m *Manager) Body(name string) (*Body, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := slices.IndexFunc(m.bodies, func(b *Body) bool { return b.Name == name })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBody, name)
	}
	return m.bodies[i], nil
}

// NewCursor returns a cursor for a new frame consumer. Jumps made before
// the call are not reported to it.
func (m *Manager) NewCursor() *Cursor {
	return NewCursorAt(m.clock.Skips())
}

// Frame is FrameFor with the manager's own cursor, for a program with a
// single frame consumer.
func (m *Manager) Frame(wallNowMs float64) (Frame, error) {
	return m.FrameFor(m.cursor, wallNowMs)
}

// FrameFor advances the clock to wallNowMs and evaluates every body.
// TimeSkipped is set when the clock jumped since cur last saw a frame; a
// nil cursor never reports or consumes a skip. Before MarkReady it
// returns ErrClockNotReady without touching the clock.
func (m *Manager) FrameFor(cur *Cursor, wallNowMs float64) (Frame, error) {
	m.mu.RLock()
	ready := m.ready
	bodies := m.bodies
	m.mu.RUnlock()

	if !ready {
		m.mu.Lock()
		m.framesSkipped++
		m.mu.Unlock()
		return Frame{}, ErrClockNotReady
	}

	st := m.clock.Advance(wallNowMs)
	jdUTC := astro.UTCEpochMsToJulianDate(st.SimMs)

	f := Frame{
		SimulatedTimeMs: st.SimMs,
		SimulatedTime:   astro.TimeFromEpochMs(st.SimMs),
		JulianDateUTC:   jdUTC,
		SkipCount:       st.Skips,
		Speed:           st.Speed,
		SpeedLabel:      playback.Label(st.Speed),
		Paused:          st.Paused,
		Bodies:          make([]BodyState, 0, len(bodies)),
	}

	light := -1
	for i, b := range bodies {
		bs, err := b.evaluate(jdUTC)
		if err != nil {
			return Frame{}, err
		}
		if light < 0 && b.Caps.Has(CapLightSource) {
			light = i
		}
		f.Bodies = append(f.Bodies, bs)
	}

	if light >= 0 {
		src := f.Bodies[light].Position
		for i, b := range bodies {
			if i == light || !b.Caps.Has(CapSunLit) {
				continue
			}
			dir := src.Sub(f.Bodies[i].Position).Normalized()
			f.Bodies[i].SunDirection = &dir
		}
	}

	if cur != nil {
		f.TimeSkipped = cur.observe(st.Skips)
	}

	m.mu.Lock()
	m.lastFrame = &f
	m.framesServed++
	m.mu.Unlock()

	return f, nil
}

// FrameNow is Frame at the current wall time.
func (m *Manager) FrameNow() (Frame, error) {
	return m.Frame(astro.EpochMs(time.Now()))
}

// FrameNowFor is FrameFor at the current wall time.
func (m *Manager) FrameNowFor(cur *Cursor) (Frame, error) {
	return m.FrameFor(cur, astro.EpochMs(time.Now()))
}

// LastFrame returns the most recent frame, if any.
func (m *Manager) LastFrame() (Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastFrame == nil {
		return Frame{}, false
	}
	return *m.lastFrame, true
}

// FrameStats returns how many frames were produced and skipped.
func (m *Manager) FrameStats() (served, skipped uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.framesServed, m.framesSkipped
}

// SetPlaybackSpeed clamps and rounds multiplier, applies it and returns
// the applied value. Non-positive input is rejected and the previous
// speed is kept.
func (m *Manager) SetPlaybackSpeed(multiplier float64) (float64, error) {
	if err := playback.Validate(multiplier); err != nil {
		return m.clock.Speed(), err
	}
	speed := playback.RoundSpeed(playback.Clamp(multiplier))
	if err := m.clock.SetSpeed(speed); err != nil {
		return m.clock.Speed(), err
	}
	return speed, nil
}

// SetPlaybackSlider maps a slider position onto the speed scale.
func (m *Manager) SetPlaybackSlider(v float64) (float64, error) {
	if math.IsNaN(v) {
		return m.clock.Speed(), fmt.Errorf("%w: slider NaN", playback.ErrInvalidSpeed)
	}
	return m.SetPlaybackSpeed(playback.SliderToSpeed(playback.ClampSlider(v)))
}

// Slider returns the slider position for the current speed.
func (m *Manager) Slider() float64 {
	v, err := playback.SpeedToSlider(m.clock.Speed())
	if err != nil {
		return playback.MinSlider
	}
	return v
}

// SetTimeAbsolute jumps simulated time to epochMs (UTC milliseconds).
func (m *Manager) SetTimeAbsolute(epochMs float64) error {
	if math.IsNaN(epochMs) || math.IsInf(epochMs, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTime, epochMs)
	}
	m.clock.SetTime(epochMs)
	return nil
}

// SetTime jumps simulated time to t.
func (m *Manager) SetTime(t time.Time) error {
	return m.SetTimeAbsolute(astro.EpochMs(t))
}

// Pause freezes simulated time.
func (m *Manager) Pause() {
	m.clock.Pause()
}

// Resume restarts simulated time.
func (m *Manager) Resume() {
	m.clock.Resume()
}

// TogglePause flips pause state and reports whether the clock is now paused.
func (m *Manager) TogglePause() bool {
	return m.clock.Toggle()
}

// Paused reports whether the clock is paused.
func (m *Manager) Paused() bool {
	return m.clock.Paused()
}

// SpeedLabel returns the display label for the current speed,
// e.g. "3600x (1 h/s)".
func (m *Manager) SpeedLabel() string {
	return playback.Label(m.clock.Speed())
}

func (m *Manager) onClockEvent(ev simclock.Event) {
	e := Event{
		Timestamp: ev.At,
		SimTime:   astro.TimeFromEpochMs(ev.SimMs),
		Speed:     ev.Speed,
	}
	switch ev.Kind {
	case simclock.EventTimeSet:
		e.Type = EventTimeSkip
		e.Detail = e.SimTime.Format(time.RFC3339)
	case simclock.EventSpeed:
		e.Type = EventSpeed
		e.Detail = playback.Label(ev.Speed)
	case simclock.EventPause:
		e.Type = EventPause
	case simclock.EventResume:
		e.Type = EventResume
	default:
		return
	}

	m.mu.Lock()
	m.addEvent(e)
	m.mu.Unlock()

	m.logger.Debug("clock event", "type", e.Type, "sim", e.SimTime.Format(time.RFC3339), "speed", ev.Speed)
}

// addEvent adds an event to the ring buffer. Caller holds mu.
func (m *Manager) addEvent(e Event) {
	if len(m.events) < m.maxEvents {
		m.events = append(m.events, e)
	} else {
		m.events[m.eventWriteAt] = e
		m.eventWriteAt = (m.eventWriteAt + 1) % m.maxEvents
	}
}

// getEventsOrdered returns events in chronological order.
func (m *Manager) getEventsOrdered() []Event {
	if len(m.events) == 0 {
		return nil
	}

	if len(m.events) < m.maxEvents {
		result := make([]Event, len(m.events))
		copy(result, m.events)
		return result
	}

	result := make([]Event, m.maxEvents)
	for i := 0; i < m.maxEvents; i++ {
		idx := (m.eventWriteAt + i) % m.maxEvents
		result[i] = m.events[idx]
	}
	return result
}

// RecentEvents returns the last n events.
func (m *Manager) RecentEvents(n int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.getEventsOrdered()
	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}
