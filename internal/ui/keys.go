package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// busyKeyMap is shown while discovering or connecting
type busyKeyMap struct {
	Quit key.Binding
}

func (k busyKeyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k busyKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// failedKeyMap is shown after discovery or the connection failed
type failedKeyMap struct {
	Retry  key.Binding
	Manual key.Binding
	Quit   key.Binding
}

func (k failedKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Retry, k.Manual, k.Quit}
}

func (k failedKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// manualKeyMap is shown while typing an address
type manualKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (k manualKeyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Confirm, k.Cancel} }
func (k manualKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// readyKeyMap lists the remote buttons from the configured bindings
type readyKeyMap struct {
	Buttons []key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k readyKeyMap) ShortHelp() []key.Binding {
	short := []key.Binding{}
	for _, b := range k.Buttons {
		switch b.Keys()[0] {
		case "up", "enter", "backspace", "p", "+":
			short = append(short, b)
		}
	}
	return append(short, k.Help, k.Quit)
}

// FullHelp returns every button in columns of eight
func (k readyKeyMap) FullHelp() [][]key.Binding {
	const perColumn = 8
	var cols [][]key.Binding
	for i := 0; i < len(k.Buttons); i += perColumn {
		end := i + perColumn
		if end > len(k.Buttons) {
			end = len(k.Buttons)
		}
		cols = append(cols, k.Buttons[i:end])
	}
	return append(cols, []key.Binding{k.Help, k.Quit})
}

func newBusyKeys() busyKeyMap {
	return busyKeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func newFailedKeys() failedKeyMap {
	return failedKeyMap{
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "enter IP"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func newManualKeys() manualKeyMap {
	return manualKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// newReadyKeys builds one binding per bound terminal key. "q" and "?" stay
// reserved for quit and help unless the user binds them.
func newReadyKeys(bindings map[string]string) readyKeyMap {
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buttons := make([]key.Binding, 0, len(keys))
	for _, k := range keys {
		buttons = append(buttons, key.NewBinding(
			key.WithKeys(k),
			key.WithHelp(keyLabel(k), ButtonLabel(bindings[k])),
		))
	}

	return readyKeyMap{
		Buttons: buttons,
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "all keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ButtonLabel turns a key code into a short label: TR_KEY_VOL_UP -> "vol up"
func ButtonLabel(code string) string {
	label := strings.TrimPrefix(code, "TR_KEY_")
	return strings.ToLower(strings.ReplaceAll(label, "_", " "))
}

func keyLabel(k string) string {
	switch k {
	case "up":
		return "↑"
	case "down":
		return "↓"
	case "left":
		return "←"
	case "right":
		return "→"
	case "backspace":
		return "⌫"
	}
	return k
}
