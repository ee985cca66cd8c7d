// Package watchdog watches the kiosk for signs that the student left the exam
// (fullscreen lost, tab hidden) and reports them upward. It never decides
// disqualification.
package watchdog

import "fmt"

// Signal is one event raised by the platform.
type Signal string

const (
	FullscreenEntered Signal = "fullscreen_entered"
	FullscreenExited  Signal = "fullscreen_exited"
	VisibilityHidden  Signal = "visibility_hidden"
	VisibilityVisible Signal = "visibility_visible"
	ContextMenu       Signal = "context_menu"
)

// ParseSignal validates a signal name.
func ParseSignal(s string) (Signal, error) {
	switch sig := Signal(s); sig {
	case FullscreenEntered, FullscreenExited, VisibilityHidden, VisibilityVisible, ContextMenu:
		return sig, nil
	}
	return "", fmt.Errorf("unknown signal %q", s)
}

// Violation reasons sent to the portal.
const (
	ReasonFullscreenExited = "Fullscreen exited"
	ReasonTabSwitched      = "Tab switched"
)

// State of the watchdog.
type State int

const (
	// AwaitingFullscreen gates the exam until the kiosk first goes fullscreen.
	AwaitingFullscreen State = iota
	Active
	// Reasserting keeps asking for fullscreen until the kiosk is back in it.
	Reasserting
)

func (s State) String() string {
	switch s {
	case AwaitingFullscreen:
		return "awaiting_fullscreen"
	case Active:
		return "active"
	case Reasserting:
		return "reasserting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Effect is what the runner must do after a signal.
type Effect struct {
	// Reason is the violation to report, or empty.
	Reason string
	// Reassert asks for fullscreen to be requested now.
	Reassert bool
	// Suppressed is set for context-menu signals, which are swallowed.
	Suppressed bool
}

// Machine is the pure watchdog state machine. It is not safe for concurrent
// use; Watchdog serializes access to it.
type Machine struct {
	state      State
	suppressed int
}

// NewMachine returns a machine awaiting fullscreen.
func NewMachine() *Machine {
	return &Machine{state: AwaitingFullscreen}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Suppressed returns how many context-menu signals were swallowed.
func (m *Machine) Suppressed() int { return m.suppressed }

// Handle applies sig and returns the resulting effect.
func (m *Machine) Handle(sig Signal) Effect {
	switch sig {
	case ContextMenu:
		m.suppressed++
		return Effect{Suppressed: true}

	case FullscreenEntered:
		m.state = Active

	case FullscreenExited:
		if m.state == Active {
			m.state = Reasserting
			return Effect{Reason: ReasonFullscreenExited, Reassert: true}
		}

	case VisibilityHidden:
		if m.state != AwaitingFullscreen {
			return Effect{Reason: ReasonTabSwitched}
		}
	}
	return Effect{}
}
