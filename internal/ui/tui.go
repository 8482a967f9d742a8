// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program and the command channel back to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// CommandKind identifies a user request.
type CommandKind int

const (
	CommandVolume CommandKind = iota
	CommandPause
)

// Command is a user request from the TUI.
type Command struct {
	Kind   CommandKind
	Volume int
	Muted  bool
	Paused bool
}

// Controls carries user requests from the TUI to the goroutine that owns
// the stream.
type Controls struct {
	Commands chan Command
	Quit     chan struct{}
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 10),
		Quit:     make(chan struct{}, 1),
	}
}

// send drops the command when nobody is keeping up.
func (c *Controls) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		controls: controls,
	}
}

// Run creates the TUI program. The caller runs it.
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
