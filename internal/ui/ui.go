// Package ui provides the terminal orrery viewer using Bubble Tea.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/playback"
	"github.com/litescript/ls-orrery/internal/state"
	"github.com/litescript/ls-orrery/internal/version"
)

// SliderStep is how far one faster/slower key press moves the speed slider.
const SliderStep = 5.0

// Msg types for Bubble Tea
type (
	// FrameTickMsg requests a new simulation frame.
	FrameTickMsg time.Time

	// AnimTickMsg drives the loading spinner.
	AnimTickMsg time.Time
)

// Model is the root Bubble Tea model.
type Model struct {
	state *state.Manager
	keys  KeyMap
	help  help.Model
	input textinput.Model

	orrery OrreryModel

	cursor        *state.Cursor
	frame         state.Frame
	hasFrame      bool
	err           error
	frameInterval time.Duration
	now           func() time.Time

	width       int
	height      int
	ready       bool
	inputActive bool
	statusMsg   string
	animTick    int
}

// New creates the root model. Frames are requested every frameInterval.
func New(mgr *state.Manager, frameInterval time.Duration) Model {
	if frameInterval <= 0 {
		frameInterval = 50 * time.Millisecond
	}
	keys := DefaultKeyMap()

	ti := textinput.New()
	ti.Placeholder = "2024-03-20T03:06:00Z"
	ti.Prompt = "time> "
	ti.CharLimit = 40
	ti.Width = 32

	return Model{
		state:         mgr,
		keys:          keys,
		help:          help.New(),
		input:         ti,
		orrery:        NewOrreryModel(keys),
		cursor:        mgr.NewCursor(),
		frameInterval: frameInterval,
		now:           time.Now,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(frameTickCmd(m.frameInterval), animTickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputActive {
			return m.updateInput(msg)
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		cmds = append(cmds, m.handleKey(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		// Title 2 lines, status 2, footer 2
		m.orrery = m.orrery.SetSize(msg.Width, msg.Height-6)

	case FrameTickMsg:
		cmds = append(cmds, frameTickCmd(m.frameInterval))
		m.refresh()

	case AnimTickMsg:
		m.animTick++
		if !m.hasFrame {
			cmds = append(cmds, animTickCmd())
		}
	}

	return m, tea.Batch(cmds...)
}

// refresh pulls a frame from the manager. Frames requested before the
// tables are ready are skipped.
func (m *Model) refresh() {
	f, err := m.state.FrameFor(m.cursor, astro.EpochMs(m.now()))
	switch {
	case errors.Is(err, state.ErrClockNotReady):
		return
	case err != nil:
		m.err = err
		return
	}
	m.err = nil
	m.frame = f
	m.hasFrame = true
	m.orrery = m.orrery.UpdateFrame(f)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Pause):
		if m.state.TogglePause() {
			m.statusMsg = "Paused"
		} else {
			m.statusMsg = "Resumed"
		}
	case key.Matches(msg, m.keys.Faster):
		m.nudgeSlider(SliderStep)
	case key.Matches(msg, m.keys.Slower):
		m.nudgeSlider(-SliderStep)
	case key.Matches(msg, m.keys.Realtime):
		if _, err := m.state.SetPlaybackSpeed(1); err != nil {
			m.statusMsg = err.Error()
		} else {
			m.statusMsg = "Speed " + m.state.SpeedLabel()
		}
	case key.Matches(msg, m.keys.Now):
		m.setTime(m.now())
	case key.Matches(msg, m.keys.SetTime):
		m.inputActive = true
		m.input.SetValue("")
		return m.input.Focus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	default:
		var cmd tea.Cmd
		m.orrery, cmd = m.orrery.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) nudgeSlider(delta float64) {
	if _, err := m.state.SetPlaybackSlider(m.state.Slider() + delta); err != nil {
		m.statusMsg = err.Error()
		return
	}
	m.statusMsg = "Speed " + m.state.SpeedLabel()
}

func (m *Model) setTime(t time.Time) {
	if err := m.state.SetTime(t); err != nil {
		m.statusMsg = err.Error()
		return
	}
	m.statusMsg = "Jumped to " + t.UTC().Format(time.RFC3339)
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		t, err := ParseTimeInput(m.input.Value(), m.now())
		if err != nil {
			m.statusMsg = err.Error()
			return m, nil
		}
		m.setTime(t)
		m.inputActive = false
		m.input.Blur()
		return m, nil
	case tea.KeyEsc:
		m.inputActive = false
		m.input.Blur()
		m.statusMsg = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// timeLayouts are tried in order by ParseTimeInput.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseTimeInput reads an absolute time typed by the user. "now" and an
// empty string mean now; times without a zone are UTC.
func ParseTimeInput(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return now.UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (try 2024-03-20T03:06:00Z)", s)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var content string
	if m.hasFrame {
		content = m.orrery.View()
	} else {
		content = "\n  " + shimmer("Loading ephemeris tables...", m.animTick)
	}

	return m.renderTitle() + "\n" + m.renderStatusLine() + "\n" + content + "\n" + m.renderFooter()
}

func (m Model) renderTitle() string {
	title := " ls-orrery "
	runes := []rune(title)
	var b strings.Builder
	for col, r := range runes {
		c := titleRamp.at(float64(col) / float64(len(runes)-1))
		b.WriteString(lipgloss.NewStyle().Foreground(c.color()).Bold(true).Render(string(r)))
	}
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	b.WriteString(muted.Render(fmt.Sprintf(" Sun · Earth · Moon ephemeris viewer | v%s", version.Version)))
	return b.String()
}

func (m Model) renderStatusLine() string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	pausedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27")).Bold(true)
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD"))

	if !m.hasFrame {
		return labelStyle.Render("  waiting for ephemeris")
	}

	f := m.frame
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(valueStyle.Render(f.SimulatedTime.UTC().Format("2006-01-02 15:04:05 UTC")))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("JD "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.5f", f.JulianDateUTC)))
	b.WriteString("  ")
	b.WriteString(accentStyle.Render(renderSlider(m.state.Slider(), 20)))
	b.WriteString(" ")
	b.WriteString(valueStyle.Render(f.SpeedLabel))
	if f.Paused {
		b.WriteString("  ")
		b.WriteString(pausedStyle.Render("❚❚ PAUSED"))
	}
	return b.String()
}

// renderSlider draws the speed slider position as a bar of width cells.
func renderSlider(v float64, width int) string {
	pos := int((playback.ClampSlider(v) - playback.MinSlider) / playback.SliderRange * float64(width-1))
	var b strings.Builder
	b.WriteRune('[')
	for i := 0; i < width; i++ {
		switch {
		case i == pos:
			b.WriteRune('●')
		case i < pos:
			b.WriteRune('━')
		default:
			b.WriteRune('─')
		}
	}
	b.WriteRune(']')
	return b.String()
}

func (m Model) renderFooter() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))

	var b strings.Builder
	b.WriteString("  ")
	if m.inputActive {
		b.WriteString(m.input.View())
		b.WriteString(dimStyle.Render("  enter: jump | esc: cancel"))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	if m.err != nil {
		b.WriteString("\n  ")
		b.WriteString(errorStyle.Render("ERROR: " + m.err.Error()))
	} else if m.statusMsg != "" {
		b.WriteString("\n  ")
		b.WriteString(dimStyle.Render(m.statusMsg))
	}
	return b.String()
}

func frameTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return FrameTickMsg(t)
	})
}

func animTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return AnimTickMsg(t)
	})
}
