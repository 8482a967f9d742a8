// ABOUTME: Bubbletea model for the playback TUI
// ABOUTME: Defines stream state shown to the user and key handling
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/pcmout-go/pkg/pcmout"
)

// Model represents the TUI state
type Model struct {
	// Source
	source string
	format string

	// Stream
	state   string
	device  pcmout.DeviceInfo
	hasInfo bool

	// Playback
	volume int
	muted  bool
	paused bool

	// Stats
	stats   pcmout.Stats
	delayMs int

	// Debug
	showDebug bool

	controls *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderDevice()
	s += m.renderControls()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the source and stream state
func (m Model) renderHeader() string {
	source := m.source
	if source == "" {
		source = "(none)"
	}
	state := m.state
	if state == "" {
		state = "Created"
	}
	if m.paused {
		state += " (paused)"
	}

	return fmt.Sprintf(`┌─ PCM Player ─────────────────────────────────────────┐
│ Source: %-45s │
│ Format: %-45s │
│ State:  %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(source, 45), truncate(m.format, 45), state)
}

// renderDevice renders what the stream resolved its device to
func (m Model) renderDevice() string {
	if !m.hasInfo {
		return "│ Device: opening...                                   │\n"
	}

	name := m.device.Name
	if name == "" {
		name = "(none)"
	}
	status := "ok"
	switch {
	case m.device.HardStop:
		status = "stopped after error"
	case !m.device.Available:
		status = "unavailable"
	}

	s := fmt.Sprintf("│ Device: %-45s │\n", truncate(name, 45))
	s += fmt.Sprintf("│   %s, %dms latency%s%-20s │\n",
		channelName(m.device.Channels), m.device.Latency.Milliseconds(),
		downmixNote(m.device.Downmix), "")
	s += fmt.Sprintf("│   Status: %-43s │\n", status)
	return s
}

// renderControls renders volume
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	volumeBar := renderBar(m.volume, 100, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-17s │\n",
		volumeBar, m.volume, muteIcon, "")
}

// renderStats renders pump statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Frames: %d  Writes: %d  Device delay: %dms%-6s │
│ Recovered: %d  Empty fetches: %d%-16s │
`, m.stats.FramesWritten, m.stats.Writes, m.delayMs, "",
		m.stats.Recoveries, m.stats.EmptyFetches, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓ +/-:Volume  m:Mute  space:Pause  d:Debug  q:Quit│
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Fatal errors: %-36d │
│   Window: %dx%-38d │
`, m.stats.FatalErrors, m.width, m.height)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "up", "+", "=":
		if m.volume < 100 {
			m.volume += 5
			if m.volume > 100 {
				m.volume = 100
			}
			m.sendVolume()
		}
	case "down", "-":
		if m.volume > 0 {
			m.volume -= 5
			if m.volume < 0 {
				m.volume = 0
			}
			m.sendVolume()
		}
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case " ":
		m.paused = !m.paused
		m.controls.send(Command{Kind: CommandPause, Paused: m.paused})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) sendVolume() {
	m.controls.send(Command{Kind: CommandVolume, Volume: m.volume, Muted: m.muted})
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Source != "" {
		m.source = msg.Source
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Device != nil {
		m.device = *msg.Device
		m.hasInfo = true
	}
	if msg.Stats != nil {
		m.stats = *msg.Stats
		m.delayMs = msg.DelayMs
	}
}

// StatusMsg updates TUI state. Empty and nil fields are left unchanged.
type StatusMsg struct {
	Source  string
	Format  string
	State   string
	Device  *pcmout.DeviceInfo
	Stats   *pcmout.Stats
	DelayMs int
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	return bar.String()
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	case 5:
		return "5.0"
	case 6:
		return "5.1"
	case 0:
		return "-"
	}
	return fmt.Sprintf("%dch", channels)
}

func downmixNote(downmix bool) string {
	if downmix {
		return " (downmixed)"
	}
	return ""
}
