// Package proctor connects the watchdog to a kiosk browser window. The kiosk
// page streams fullscreen, visibility and context-menu events over a
// WebSocket and obeys fullscreen requests sent back.
package proctor

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/watchdog"
	ws "github.com/stemsi/exstem-client/internal/websocket"
)

// ErrNoKiosk is returned when a command is sent with no kiosk connected.
var ErrNoKiosk = errors.New("no kiosk connected")

type subscriber struct {
	ch   chan watchdog.Signal
	done chan struct{}
	once sync.Once
}

// Bridge is the watchdog.Platform backed by the kiosk connection.
type Bridge struct {
	log zerolog.Logger

	mu    sync.Mutex
	subs  map[*subscriber]struct{}
	conn  *websocket.Conn
	first chan struct{} // closed by the first connect

	writeMu sync.Mutex
}

var _ watchdog.Platform = (*Bridge)(nil)

// NewBridge creates a bridge with no kiosk attached.
func NewBridge(log zerolog.Logger) *Bridge {
	return &Bridge{
		log:   log.With().Str("component", "proctor_bridge").Logger(),
		subs:  make(map[*subscriber]struct{}),
		first: make(chan struct{}),
	}
}

// Subscribe attaches a listener for kiosk signals.
func (b *Bridge) Subscribe() (<-chan watchdog.Signal, func()) {
	s := &subscriber{
		ch:   make(chan watchdog.Signal, 16),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	return s.ch, func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.done)
		})
	}
}

// Subscribers returns how many listeners are attached.
func (b *Bridge) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// publish delivers sig to every subscriber, waiting on slow ones unless they
// detach or ctx ends.
func (b *Bridge) publish(ctx context.Context, sig watchdog.Signal) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- sig:
		case <-s.done:
		case <-ctx.Done():
			return
		}
	}
}

// RequestFullscreen asks the connected kiosk to enter fullscreen.
func (b *Bridge) RequestFullscreen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNoKiosk
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return ws.WriteCommand(conn, ws.CommandRequestFullscreen)
}

// Connected reports whether a kiosk is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// WaitKiosk blocks until a kiosk has connected at least once.
func (b *Bridge) WaitKiosk(ctx context.Context) error {
	select {
	case <-b.first:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attach makes conn the active kiosk, closing any previous one.
func (b *Bridge) attach(conn *websocket.Conn) {
	b.mu.Lock()
	prev := b.conn
	b.conn = conn
	select {
	case <-b.first:
	default:
		close(b.first)
	}
	b.mu.Unlock()

	if prev != nil {
		b.log.Warn().Msg("Kiosk replaced by a new connection")
		prev.Close()
	}
}

// detach forgets conn if it is still the active kiosk.
func (b *Bridge) detach(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == conn {
		b.conn = nil
	}
}

// write sends v to conn, serialized with fullscreen requests.
func (b *Bridge) write(conn *websocket.Conn, v interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return ws.WriteTyped(conn, v)
}

// closeKiosk drops the active kiosk connection, if any.
func (b *Bridge) closeKiosk() {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
