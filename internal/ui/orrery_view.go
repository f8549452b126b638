package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/exp/slices"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/state"
)

// LabelMode controls how body labels are displayed.
type LabelMode int

const (
	LabelNone    LabelMode = iota // No labels
	LabelFocused                  // Only the focused body
	LabelAll                      // Every body
)

// String returns the HUD name of the mode.
func (l LabelMode) String() string {
	switch l {
	case LabelNone:
		return "off"
	case LabelFocused:
		return "focus"
	default:
		return "all"
	}
}

// Discrete zoom levels. The deep levels separate a moon from its planet
// when the view follows the focused body.
var zoomLevels = []float64{0.25, 0.5, 0.75, 1.0, 1.5, 2.0, 3.0, 5.0, 10.0, 50.0, 200.0, 1000.0}

const defaultZoom = 3 // index of 1.0

// OrreryModel renders a top-down ecliptic view of the frame's bodies.
type OrreryModel struct {
	width  int
	height int
	frame  state.Frame
	keys   KeyMap

	focusIdx    int // index into frame.Bodies
	zoomLevel   int
	panX        float64
	panY        float64
	scaleMode   astro.ScaleMode
	labelMode   LabelMode
	followFocus bool // origin at the focused body instead of the light source
}

// NewOrreryModel creates a new orrery view model.
func NewOrreryModel(keys KeyMap) OrreryModel {
	return OrreryModel{
		keys:      keys,
		zoomLevel: defaultZoom,
		scaleMode: astro.ScaleLogR,
		labelMode: LabelAll,
	}
}

func (m OrreryModel) scale() float64 {
	if m.zoomLevel < 0 || m.zoomLevel >= len(zoomLevels) {
		return 1.0
	}
	return zoomLevels[m.zoomLevel]
}

// SetSize updates the viewport size.
func (m OrreryModel) SetSize(width, height int) OrreryModel {
	m.width = width
	m.height = height
	return m
}

// UpdateFrame replaces the rendered frame. Focus moves to the first
// selectable body the first time bodies appear.
func (m OrreryModel) UpdateFrame(f state.Frame) OrreryModel {
	first := len(m.frame.Bodies) == 0
	m.frame = f
	if first {
		for i, b := range f.Bodies {
			if hasCap(b, state.CapSelectable) {
				m.focusIdx = i
				break
			}
		}
	}
	if m.focusIdx >= len(f.Bodies) {
		m.focusIdx = 0
	}
	// A jump can move bodies far from where the user panned to.
	if f.TimeSkipped {
		m.panX, m.panY = 0, 0
	}
	return m
}

// Update handles view keys.
func (m OrreryModel) Update(msg tea.Msg) (OrreryModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, m.keys.FocusNext):
		m.cycleFocus(1)
	case key.Matches(km, m.keys.FocusPrev):
		m.cycleFocus(-1)
	case key.Matches(km, m.keys.ZoomIn):
		if m.zoomLevel < len(zoomLevels)-1 {
			m.zoomLevel++
		}
	case key.Matches(km, m.keys.ZoomOut):
		if m.zoomLevel > 0 {
			m.zoomLevel--
		}
	case key.Matches(km, m.keys.Scale):
		m.scaleMode = (m.scaleMode + 1) % 2
	case key.Matches(km, m.keys.Labels):
		m.labelMode = (m.labelMode + 1) % 3
	case key.Matches(km, m.keys.Center):
		m.followFocus = !m.followFocus
		m.panX, m.panY = 0, 0
	case key.Matches(km, m.keys.Pan):
		step := 0.1 / m.scale()
		switch km.String() {
		case "up":
			m.panY -= step
		case "down":
			m.panY += step
		case "left":
			m.panX += step
		case "right":
			m.panX -= step
		}
	case km.String() == "0":
		m.zoomLevel = defaultZoom
		m.panX, m.panY = 0, 0
	}
	return m, nil
}

func (m *OrreryModel) cycleFocus(dir int) {
	n := len(m.frame.Bodies)
	if n == 0 {
		return
	}
	m.focusIdx = ((m.focusIdx+dir)%n + n) % n
	m.panX, m.panY = 0, 0
}

// FocusedBody returns the focused body, if any.
func (m OrreryModel) FocusedBody() (state.BodyState, bool) {
	if m.focusIdx < 0 || m.focusIdx >= len(m.frame.Bodies) {
		return state.BodyState{}, false
	}
	return m.frame.Bodies[m.focusIdx], true
}

// lightSource returns the index of the body that lights the others, or -1.
func (m OrreryModel) lightSource() int {
	for i, b := range m.frame.Bodies {
		if hasCap(b, state.CapLightSource) {
			return i
		}
	}
	return -1
}

// origin is the position, in km, drawn at the canvas center before panning.
func (m OrreryModel) origin() astro.Vec3 {
	if m.followFocus {
		if b, ok := m.FocusedBody(); ok {
			return b.Position
		}
	}
	if i := m.lightSource(); i >= 0 {
		return m.frame.Bodies[i].Position
	}
	return astro.Vec3{}
}

// relativeAU returns p relative to the origin, in AU.
func (m OrreryModel) relativeAU(p astro.Vec3) astro.Vec3 {
	return p.Sub(m.origin()).Scale(1 / astro.AU)
}

// View renders the orrery.
func (m OrreryModel) View() string {
	if m.width < 40 || m.height < 10 {
		return "Terminal too small for orrery view"
	}
	if len(m.frame.Bodies) == 0 {
		return "No bodies"
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.buildCanvas(), m.renderHUD())
}

// bodyPos tracks a body's screen position for label rendering.
type bodyPos struct {
	x, y      int
	name      string
	isFocused bool
}

func (m OrreryModel) buildCanvas() string {
	canvasH := m.height - 3
	if canvasH < 5 {
		canvasH = 5
	}
	canvasW := m.width

	grid := make([][]rune, canvasH)
	for y := range grid {
		grid[y] = make([]rune, canvasW)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	cx, cy := canvasW/2, canvasH/2
	cfg := astro.ProjectionConfig{Scale: m.scale(), Mode: m.scaleMode}

	// log10(30 AU + 1) ~ 1.5 fills half the canvas at 1x.
	maxDisplayR := float64(min(cx, cy*2)) * 0.9
	displayScale := maxDisplayR / 1.5

	originX := cx + int(m.panX*displayScale)
	originY := cy - int(m.panY*displayScale)

	if !m.followFocus {
		m.drawOrbitRings(grid, originX, originY, displayScale, cfg)
	}

	var positions []bodyPos
	light := m.lightSource()

	// Focused body last so it stays on top.
	order := make([]int, 0, len(m.frame.Bodies))
	for i := range m.frame.Bodies {
		if i != m.focusIdx {
			order = append(order, i)
		}
	}
	order = append(order, m.focusIdx)

	for _, i := range order {
		b := m.frame.Bodies[i]
		proj := astro.ProjectEclipticTopDown(m.relativeAU(b.Position), cfg)
		sx := originX + int(math.Round(proj.X*displayScale))
		sy := originY - int(math.Round(proj.Y*displayScale*0.5))
		if sx < 0 || sx >= canvasW || sy < 0 || sy >= canvasH {
			continue
		}
		grid[sy][sx] = bodyGlyph(b, i == m.focusIdx, i == light)
		positions = append(positions, bodyPos{x: sx, y: sy, name: b.Name, isFocused: i == m.focusIdx})
	}

	m.renderLabels(grid, canvasW, canvasH, positions)
	return renderGrid(grid)
}

func (m OrreryModel) drawOrbitRings(grid [][]rune, cx, cy int, scale float64, cfg astro.ProjectionConfig) {
	for _, au := range []float64{0.5, 1, 1.5, 5} {
		proj := astro.ProjectEclipticTopDown(astro.Vec3{X: au}, cfg)
		drawCircle(grid, cx, cy, proj.X*scale)
	}
}

func drawCircle(grid [][]rune, cx, cy int, r float64) {
	if r < 1 {
		return
	}
	h := len(grid)
	w := len(grid[0])

	steps := int(2 * math.Pi * r)
	if steps < 8 {
		steps = 8
	}
	if steps > 360 {
		steps = 360
	}

	for i := 0; i < steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		x := cx + int(r*math.Cos(theta))
		y := cy - int(r*math.Sin(theta)*0.5) // Aspect ratio correction
		if x >= 0 && x < w && y >= 0 && y < h && grid[y][x] == ' ' {
			grid[y][x] = '·'
		}
	}
}

func (m OrreryModel) renderLabels(grid [][]rune, width, height int, positions []bodyPos) {
	if m.labelMode == LabelNone {
		return
	}
	for _, pos := range positions {
		if m.labelMode == LabelFocused && !pos.isFocused {
			continue
		}
		labelX := pos.x + 2
		if pos.y < 0 || pos.y >= height || labelX >= width {
			continue
		}
		text := pos.name
		if pos.isFocused {
			text = "◄ " + pos.name
		}
		for i, r := range []rune(text) {
			x := labelX + i
			if x >= width {
				break
			}
			if grid[pos.y][x] == ' ' || grid[pos.y][x] == '·' {
				grid[pos.y][x] = r
			}
		}
	}
}

func bodyGlyph(b state.BodyState, focused, light bool) rune {
	switch {
	case light:
		return '☉'
	case hasCap(b, state.CapAtmosphere):
		if focused {
			return '◉'
		}
		return '○'
	case focused:
		return '●'
	default:
		return '•'
	}
}

func renderGrid(grid [][]rune) string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	sunStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	planetStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	moonStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	focusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("249"))

	var b strings.Builder
	for _, row := range grid {
		for _, ch := range row {
			var style lipgloss.Style
			switch ch {
			case ' ':
				b.WriteRune(ch)
				continue
			case '·':
				style = dimStyle
			case '☉':
				style = sunStyle
			case '○':
				style = planetStyle
			case '•':
				style = moonStyle
			case '●', '◉', '◄':
				style = focusStyle
			default:
				style = labelStyle
			}
			b.WriteString(style.Render(string(ch)))
		}
		b.WriteRune('\n')
	}
	return b.String()
}

func (m OrreryModel) renderHUD() string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	if f, ok := m.FocusedBody(); ok {
		rel := f.Position
		ref := "origin"
		if i := m.lightSource(); i >= 0 && m.frame.Bodies[i].Name != f.Name {
			rel = f.Position.Sub(m.frame.Bodies[i].Position)
			ref = m.frame.Bodies[i].Name
		}
		d := rel.Norm()

		b.WriteString(headerStyle.Render("◆ " + f.Name))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render(fmt.Sprintf("from %s: ", ref)))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.4f AU", astro.KmToAU(d))))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("light: "))
		b.WriteString(valueStyle.Render(formatLightTime(astro.LightTimeFromKm(d))))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("v: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.3f km/s", f.Velocity.Norm())))
		b.WriteString("\n")

		b.WriteString(labelStyle.Render("Ecl lon: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.2f°", astro.EclipticLongitude(rel))))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("lat: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%+.2f°", astro.EclipticLatitude(rel))))
		if f.HasOrientation {
			b.WriteString("  ")
			b.WriteString(labelStyle.Render("W: "))
			b.WriteString(valueStyle.Render(fmt.Sprintf("%.2f°", astro.WrapDegrees(f.W))))
			b.WriteString("  ")
			b.WriteString(labelStyle.Render("pole: "))
			b.WriteString(valueStyle.Render(fmt.Sprintf("(%.3f, %.3f, %.3f)", f.Pole.X, f.Pole.Y, f.Pole.Z)))
		}
		b.WriteString("\n")
	}

	origin := "light source"
	if m.followFocus {
		origin = "focus"
	}
	b.WriteString(dimStyle.Render("Mode:"))
	b.WriteString(valueStyle.Render(m.scaleMode.String()))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("Zoom:"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.4gx", m.scale())))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("Labels:"))
	b.WriteString(valueStyle.Render(m.labelMode.String()))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("Origin:"))
	b.WriteString(valueStyle.Render(origin))

	return b.String()
}

// formatLightTime renders seconds as "8m 19s" or "1.28s".
func formatLightTime(sec float64) string {
	switch {
	case sec < 60:
		return fmt.Sprintf("%.2fs", sec)
	case sec < 3600:
		return fmt.Sprintf("%dm %02ds", int(sec)/60, int(sec)%60)
	default:
		return fmt.Sprintf("%dh %02dm", int(sec)/3600, (int(sec)%3600)/60)
	}
}

// hasCap checks a single capability against the frame's capability names.
func hasCap(b state.BodyState, c state.Capability) bool {
	return slices.Contains(b.Capabilities, c.String())
}
