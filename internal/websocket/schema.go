package websocket

// ─── Events (Kiosk → Client) ────────────────────────────────────────

type Event string

const (
	EventFullscreenEntered Event = "fullscreen_entered"
	EventFullscreenExited  Event = "fullscreen_exited"
	EventVisibilityHidden  Event = "visibility_hidden"
	EventVisibilityVisible Event = "visibility_visible"
	EventContextMenu       Event = "context_menu"
	EventPing              Event = "ping"
)

// EventMessage is sent by the kiosk page whenever the browser raises one of
// the watched DOM events.
type EventMessage struct {
	Event Event `json:"event"`
}

// ─── Commands (Client → Kiosk) ──────────────────────────────────────

type Command string

const (
	CommandRequestFullscreen Command = "request_fullscreen"
	CommandPong              Command = "pong"
	CommandError             Command = "error"
)

// CommandMessage tells the kiosk page to do something.
type CommandMessage struct {
	Command Command `json:"command"`
}

type ErrorMessage struct {
	Command Command `json:"command"`
	Error   string  `json:"error"`
}
