package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the viewer's global bindings.
type KeyMap struct {
	Quit     key.Binding
	Pause    key.Binding
	Faster   key.Binding
	Slower   key.Binding
	Realtime key.Binding
	Now      key.Binding
	SetTime  key.Binding
	Help     key.Binding

	FocusNext key.Binding
	FocusPrev key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	Scale     key.Binding
	Labels    key.Binding
	Pan       key.Binding
	Center    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Pause:    key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause")),
		Faster:   key.NewBinding(key.WithKeys(">", "."), key.WithHelp(">", "faster")),
		Slower:   key.NewBinding(key.WithKeys("<", ","), key.WithHelp("<", "slower")),
		Realtime: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "1x")),
		Now:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "now")),
		SetTime:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "set time")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),

		FocusNext: key.NewBinding(key.WithKeys("k", "]"), key.WithHelp("j/k", "focus")),
		FocusPrev: key.NewBinding(key.WithKeys("j", "[")),
		ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "zoom")),
		ZoomOut:   key.NewBinding(key.WithKeys("-")),
		Scale:     key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "scale")),
		Labels:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "labels")),
		Pan:       key.NewBinding(key.WithKeys("up", "down", "left", "right"), key.WithHelp("arrows", "pan")),
		Center:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "center")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Slower, k.Faster, k.SetTime, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Slower, k.Faster, k.Realtime},
		{k.Now, k.SetTime},
		{k.FocusNext, k.ZoomIn, k.Scale, k.Labels},
		{k.Pan, k.Center, k.Help, k.Quit},
	}
}
