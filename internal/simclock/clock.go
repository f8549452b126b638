// Package simclock maintains simulated time as a function of elapsed wall
// time, playback speed and pause state.
package simclock

import (
	"sync"
	"time"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/playback"
)

// WallClock supplies real time. Tests inject a fake to control elapsed time.
type WallClock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// EventKind identifies a clock mutation.
type EventKind int

const (
	EventTimeSet EventKind = iota
	EventSpeed
	EventPause
	EventResume
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventTimeSet:
		return "time-set"
	case EventSpeed:
		return "speed"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Event describes a clock mutation after it has been applied.
type Event struct {
	Kind   EventKind
	SimMs  float64 // simulated UTC epoch ms at the moment of the change
	Speed  float64
	Paused bool
	At     time.Time // wall time of the change
}

// Listener receives clock events. It is called without the clock lock held.
type Listener func(Event)

// State is a point-in-time copy of the clock.
type State struct {
	SimMs  float64
	Speed  float64
	Paused bool
	Skips  uint64 // SetTime calls so far
}

// Clock is a simulated UTC clock anchored to wall time. Each mutation
// re-anchors (anchorSim, anchorWall) so simulated time is always one
// multiplication away from the latest anchor.
type Clock struct {
	mu sync.Mutex

	wall WallClock

	anchorSimMs  float64
	anchorWallMs float64
	speed        float64
	paused       bool
	lastSimMs    float64
	skips        uint64

	listeners []Listener
}

// Option configures a Clock.
type Option func(*Clock)

// WithWallClock sets the real-time source.
func WithWallClock(w WallClock) Option {
	return func(c *Clock) {
		c.wall = w
	}
}

// WithSpeed sets the initial playback multiplier. Invalid values are ignored.
func WithSpeed(speed float64) Option {
	return func(c *Clock) {
		if playback.Validate(speed) == nil {
			c.speed = speed
		}
	}
}

// WithPaused starts the clock paused.
func WithPaused(paused bool) Option {
	return func(c *Clock) {
		c.paused = paused
	}
}

// New creates a clock showing startMs (UTC epoch milliseconds) now.
func New(startMs float64, opts ...Option) *Clock {
	c := &Clock{
		wall:  realClock{},
		speed: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.anchorSimMs = startMs
	c.anchorWallMs = c.wallMs()
	c.lastSimMs = startMs
	return c
}

func (c *Clock) wallMs() float64 {
	return astro.EpochMs(c.wall.Now())
}

// simAt returns simulated time at the given wall time. Caller holds mu.
func (c *Clock) simAt(wallMs float64) float64 {
	if c.paused {
		return c.lastSimMs
	}
	return c.anchorSimMs + (wallMs-c.anchorWallMs)*c.speed
}

// Tick advances the clock to wallNowMs and returns simulated time.
// While paused it returns the frozen value.
func (c *Clock) Tick(wallNowMs float64) float64 {
	return c.Advance(wallNowMs).SimMs
}

// Advance is Tick returning the whole clock state read under one lock,
// so speed, pause and skip count belong to the returned instant.
func (c *Clock) Advance(wallNowMs float64) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSimMs = c.simAt(wallNowMs)
	return State{SimMs: c.lastSimMs, Speed: c.speed, Paused: c.paused, Skips: c.skips}
}

// Now returns simulated time at the current wall time without recording it.
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simAt(c.wallMs())
}

// Time returns Now as a time.Time.
func (c *Clock) Time() time.Time {
	return astro.TimeFromEpochMs(c.Now())
}

// SetTime jumps to absMs and bumps the skip count.
func (c *Clock) SetTime(absMs float64) {
	c.mu.Lock()
	now := c.wall.Now()
	c.anchorSimMs = absMs
	c.anchorWallMs = astro.EpochMs(now)
	c.lastSimMs = absMs
	c.skips++
	ev := c.eventLocked(EventTimeSet, now)
	c.mu.Unlock()

	c.notify(ev)
}

// SetSpeed changes the playback multiplier, re-anchoring at the current
// simulated time. Non-positive or non-finite values are rejected with
// playback.ErrInvalidSpeed and the previous speed is kept.
func (c *Clock) SetSpeed(speed float64) error {
	if err := playback.Validate(speed); err != nil {
		return err
	}

	c.mu.Lock()
	now := c.wall.Now()
	c.reanchorLocked(astro.EpochMs(now))
	c.speed = speed
	ev := c.eventLocked(EventSpeed, now)
	c.mu.Unlock()

	c.notify(ev)
	return nil
}

// Pause freezes simulated time at its current value. Pausing a paused
// clock is a no-op.
func (c *Clock) Pause() {
	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return
	}
	now := c.wall.Now()
	c.reanchorLocked(astro.EpochMs(now))
	c.paused = true
	ev := c.eventLocked(EventPause, now)
	c.mu.Unlock()

	c.notify(ev)
}

// Resume restarts the clock from the frozen value; paused wall time is
// not counted. Resuming a running clock is a no-op.
func (c *Clock) Resume() {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	now := c.wall.Now()
	c.paused = false
	c.anchorSimMs = c.lastSimMs
	c.anchorWallMs = astro.EpochMs(now)
	ev := c.eventLocked(EventResume, now)
	c.mu.Unlock()

	c.notify(ev)
}

// Toggle flips the pause state and reports whether the clock is now paused.
func (c *Clock) Toggle() bool {
	if c.Paused() {
		c.Resume()
		return false
	}
	c.Pause()
	return true
}

// Paused reports whether the clock is paused.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Speed returns the playback multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Snapshot returns the clock state at the current wall time.
func (c *Clock) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{SimMs: c.simAt(c.wallMs()), Speed: c.speed, Paused: c.paused, Skips: c.skips}
}

// Skips returns how many times SetTime has been called. Consumers that
// must resync after a jump compare it with the count they last saw.
func (c *Clock) Skips() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skips
}

// AddListener registers fn for every subsequent clock event.
func (c *Clock) AddListener(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// reanchorLocked moves the anchor to wallMs, preserving simulated time.
func (c *Clock) reanchorLocked(wallMs float64) {
	sim := c.simAt(wallMs)
	c.anchorSimMs = sim
	c.anchorWallMs = wallMs
	c.lastSimMs = sim
}

func (c *Clock) eventLocked(kind EventKind, at time.Time) Event {
	return Event{
		Kind:   kind,
		SimMs:  c.lastSimMs,
		Speed:  c.speed,
		Paused: c.paused,
		At:     at,
	}
}

func (c *Clock) notify(ev Event) {
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
