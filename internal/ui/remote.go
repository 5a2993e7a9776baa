package ui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/novaremote/internal/command"
	"github.com/muurk/novaremote/internal/discovery"
	"github.com/muurk/novaremote/internal/neterr"
)

// RemoteState is the screen the interactive remote is showing
type RemoteState int

const (
	StateDiscovering RemoteState = iota
	StateConnecting
	StateReady
	StateFailed
	StateManualEntry
)

func (s RemoteState) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateManualEntry:
		return "manual entry"
	default:
		return fmt.Sprintf("RemoteState(%d)", int(s))
	}
}

// Remote is an open connection the model sends keys on
type Remote interface {
	SendKey(code command.KeyCode) error
	Close() error
}

// DiscoverFunc finds the TV
type DiscoverFunc func(ctx context.Context) (*discovery.Device, error)

// ConnectFunc opens a Remote to dev. onKeepAliveError must be wired to the
// connection's keep-alive failure callback.
type ConnectFunc func(ctx context.Context, dev *discovery.Device, onKeepAliveError func(error)) (Remote, error)

// RemoteOptions configures NewRemoteModel
type RemoteOptions struct {
	Discover DiscoverFunc
	Connect  ConnectFunc
	Device   *discovery.Device // Skips discovery when set
	Bindings map[string]string // Terminal key -> key code
	Version  string
}

// Messages
type (
	discoveredMsg struct {
		device *discovery.Device
		err    error
	}
	connectedMsg struct {
		remote Remote
		err    error
	}
	keySentMsg struct {
		code command.KeyCode
		err  error
	}
	keepAliveFailedMsg struct {
		err error
	}
)

// BindingsMsg replaces the key bindings of a running remote, e.g. after the
// config file changed on disk.
type BindingsMsg struct {
	Bindings map[string]string
}

// RemoteModel is the Bubble Tea model of the interactive remote:
// discovering -> connecting -> ready, with a failed state offering retry or
// a manually entered address.
type RemoteModel struct {
	State    RemoteState
	Device   *discovery.Device
	LastCode command.KeyCode
	Sent     int
	Err      error // Last discovery, connection or send failure

	Width   int
	Height  int
	Spinner spinner.Model
	IPInput textinput.Model
	Help    help.Model

	busyKeys   busyKeyMap
	failedKeys failedKeyMap
	manualKeys manualKeyMap
	readyKeys  readyKeyMap

	opts      RemoteOptions
	remote    Remote
	ctx       context.Context
	cancel    context.CancelFunc
	keepAlive chan error
	quitting  bool
}

// NewRemoteModel creates the interactive remote model
func NewRemoteModel(opts RemoteOptions) RemoteModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ipInput := textinput.New()
	ipInput.Placeholder = "192.168.1.50"
	ipInput.CharLimit = 64
	ipInput.Width = 30

	ctx, cancel := context.WithCancel(context.Background())

	m := RemoteModel{
		State:      StateDiscovering,
		Device:     opts.Device,
		Spinner:    s,
		IPInput:    ipInput,
		Help:       help.New(),
		busyKeys:   newBusyKeys(),
		failedKeys: newFailedKeys(),
		manualKeys: newManualKeys(),
		readyKeys:  newReadyKeys(opts.Bindings),
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		keepAlive:  make(chan error, 1),
	}
	if opts.Device != nil {
		m.State = StateConnecting
	}
	return m
}

// Init starts discovery, or connects straight away when a device was given
func (m RemoteModel) Init() tea.Cmd {
	if m.State == StateConnecting {
		return tea.Batch(m.connectCmd(m.Device), m.Spinner.Tick)
	}
	return tea.Batch(m.discoverCmd(), m.Spinner.Tick)
}

// Remote returns the open connection, if any
func (m RemoteModel) Remote() Remote {
	return m.remote
}

// Update handles messages and updates the model
func (m RemoteModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case discoveredMsg:
		if m.quitting {
			return m, nil
		}
		if msg.err != nil {
			m.State = StateFailed
			m.Err = msg.err
			return m, nil
		}
		m.Device = msg.device
		m.State = StateConnecting
		return m, m.connectCmd(msg.device)

	case connectedMsg:
		if m.quitting {
			if msg.remote != nil {
				_ = msg.remote.Close()
			}
			return m, nil
		}
		if msg.err != nil {
			m.State = StateFailed
			m.Err = msg.err
			return m, nil
		}
		m.remote = msg.remote
		m.State = StateReady
		m.Err = nil
		return m, m.waitKeepAliveCmd()

	case keySentMsg:
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.LastCode = msg.code
		m.Sent++
		m.Err = nil
		return m, nil

	case keepAliveFailedMsg:
		if m.remote != nil {
			_ = m.remote.Close()
			m.remote = nil
		}
		m.State = StateFailed
		m.Err = fmt.Errorf("connection lost: %w", msg.err)
		return m, nil

	case BindingsMsg:
		m.opts.Bindings = msg.Bindings
		m.readyKeys = newReadyKeys(msg.Bindings)
		return m, nil
	}

	return m, nil
}

func (m RemoteModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch m.State {
	case StateManualEntry:
		return m.updateManualEntry(msg)

	case StateFailed:
		switch msg.String() {
		case "q":
			return m.quit()
		case "r":
			m.Err = nil
			if m.Device != nil {
				m.State = StateConnecting
				return m, tea.Batch(m.connectCmd(m.Device), m.Spinner.Tick)
			}
			m.State = StateDiscovering
			return m, tea.Batch(m.discoverCmd(), m.Spinner.Tick)
		case "m":
			m.State = StateManualEntry
			m.IPInput.SetValue("")
			return m, m.IPInput.Focus()
		}
		return m, nil

	case StateReady:
		if code, ok := m.opts.Bindings[msg.String()]; ok && code != "" {
			return m, m.sendCmd(command.KeyCode(code))
		}
		switch msg.String() {
		case "q":
			return m.quit()
		case "?":
			m.Help.ShowAll = !m.Help.ShowAll
		}
		return m, nil

	default:
		if msg.String() == "q" {
			return m.quit()
		}
		return m, nil
	}
}

func (m RemoteModel) updateManualEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.IPInput.Blur()
		m.State = StateFailed
		return m, nil

	case "enter":
		addr := strings.TrimSpace(m.IPInput.Value())
		if !validAddress(addr) {
			m.Err = fmt.Errorf("%q is not an IP address or host:port", addr)
			return m, nil
		}
		m.IPInput.Blur()
		m.Err = nil
		m.Device = &discovery.Device{IP: addr, DiscoveredAt: time.Now()}
		m.State = StateConnecting
		return m, tea.Batch(m.connectCmd(m.Device), m.Spinner.Tick)
	}

	var cmd tea.Cmd
	m.IPInput, cmd = m.IPInput.Update(msg)
	return m, cmd
}

// quit closes the connection before leaving so the TV sees a clean close
func (m RemoteModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	if m.remote != nil {
		_ = m.remote.Close()
	}
	return m, tea.Quit
}

func (m RemoteModel) busy() bool {
	return m.State == StateDiscovering || m.State == StateConnecting
}

func (m RemoteModel) discoverCmd() tea.Cmd {
	ctx, discover := m.ctx, m.opts.Discover
	return func() tea.Msg {
		dev, err := discover(ctx)
		return discoveredMsg{device: dev, err: err}
	}
}

func (m RemoteModel) connectCmd(dev *discovery.Device) tea.Cmd {
	ctx, connect, ch := m.ctx, m.opts.Connect, m.keepAlive
	onKeepAliveError := func(err error) {
		select {
		case ch <- err:
		default:
		}
	}
	return func() tea.Msg {
		r, err := connect(ctx, dev, onKeepAliveError)
		return connectedMsg{remote: r, err: err}
	}
}

func (m RemoteModel) sendCmd(code command.KeyCode) tea.Cmd {
	r := m.remote
	return func() tea.Msg {
		return keySentMsg{code: code, err: r.SendKey(code)}
	}
}

func (m RemoteModel) waitKeepAliveCmd() tea.Cmd {
	ctx, ch := m.ctx, m.keepAlive
	return func() tea.Msg {
		select {
		case err := <-ch:
			return keepAliveFailedMsg{err: err}
		case <-ctx.Done():
			return nil
		}
	}
}

// View renders the remote
func (m RemoteModel) View() string {
	if m.quitting {
		return ""
	}

	width := m.Width
	if width == 0 {
		width = GetTerminalWidth()
	}
	width = clampWidth(width, nil)

	header := RenderHeader(m.subtitle(), m.deviceDetails(), width)

	var body string
	var helpView string
	switch m.State {
	case StateDiscovering:
		body = m.Spinner.View() + " " + StatusBusyStyle.Render("Searching for the TV...")
		helpView = m.Help.View(m.busyKeys)

	case StateConnecting:
		body = m.Spinner.View() + " " + StatusBusyStyle.Render("Connecting to "+m.Device.String()+"...")
		helpView = m.Help.View(m.busyKeys)

	case StateReady:
		body = m.renderReady()
		helpView = m.Help.View(m.readyKeys)

	case StateFailed:
		body = RenderError(m.failureTitle(), m.Err, width)
		helpView = m.Help.View(m.failedKeys)

	case StateManualEntry:
		lines := []string{"Enter the TV's IP address:", "", m.IPInput.View()}
		if m.Err != nil {
			lines = append(lines, "", ErrorMessageStyle.Render(m.Err.Error()))
		}
		body = strings.Join(lines, "\n")
		helpView = m.Help.View(m.manualKeys)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, HelpStyle.Render(helpView)) + "\n"
}

func (m RemoteModel) renderReady() string {
	lines := []string{StatusReadyStyle.Render(ReadyMarker + " Connected")}

	last := "none yet"
	if m.LastCode != "" {
		last = LastKeyStyle.Render(string(m.LastCode))
	}
	lines = append(lines, "", renderDetail(Detail{"Last key", last}))
	lines = append(lines, renderDetail(Detail{"Sent", fmt.Sprint(m.Sent)}))

	if m.Err != nil {
		lines = append(lines, "", ErrorMessageStyle.Render(neterr.ShortMessage(m.Err)))
	}
	return strings.Join(lines, "\n")
}

func (m RemoteModel) subtitle() string {
	if m.opts.Version != "" {
		return "interactive remote " + m.opts.Version
	}
	return "interactive remote"
}

func (m RemoteModel) deviceDetails() []Detail {
	if m.Device == nil {
		return nil
	}
	details := []Detail{{"Address", m.Device.IP}}
	if m.Device.Name != "" {
		details = append([]Detail{{"Device", m.Device.Name}}, details...)
	}
	return details
}

func (m RemoteModel) failureTitle() string {
	switch {
	case errors.Is(m.Err, discovery.ErrNotFound):
		return "No TV found"
	case m.Device == nil:
		return "Discovery failed"
	default:
		return "Cannot control " + m.Device.String()
	}
}

// validAddress accepts an IP, optionally with a port
func validAddress(addr string) bool {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(addr) != nil
}
