package dbus

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"
)

const nameOwnerChanged = "org.freedesktop.DBus.NameOwnerChanged"

// NameWatcher reports unique bus names that disconnect, so acquisitions
// held by a crashed or exited client can be released on its behalf.
type NameWatcher struct {
	conn   *dbus.Conn
	logger *slog.Logger

	onVanished func(name string)
}

// NewNameWatcher creates a NameWatcher on conn.
func NewNameWatcher(conn *dbus.Conn, logger *slog.Logger) *NameWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NameWatcher{
		conn:   conn,
		logger: logger,
	}
}

// SetVanishedHandler sets the callback for disconnected clients.
func (w *NameWatcher) SetVanishedHandler(handler func(name string)) {
	w.onVanished = handler
}

// Start subscribes to NameOwnerChanged. The watch ends when the connection
// is closed.
func (w *NameWatcher) Start() error {
	err := w.conn.AddMatchSignal(
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	)
	if err != nil {
		return fmt.Errorf("failed to add NameOwnerChanged match: %w", err)
	}

	ch := make(chan *dbus.Signal, 32)
	w.conn.Signal(ch)

	go func() {
		for sig := range ch {
			w.handleSignal(sig)
		}
		w.logger.Debug("name watcher stopped")
	}()

	w.logger.Debug("name watcher started")
	return nil
}

// handleSignal processes one signal from the connection. Other signals
// delivered on the same connection are ignored.
func (w *NameWatcher) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Name != nameOwnerChanged {
		return
	}

	// NameOwnerChanged(name, old_owner, new_owner)
	if len(sig.Body) != 3 {
		w.logger.Warn("malformed NameOwnerChanged", "body_len", len(sig.Body))
		return
	}
	name, ok1 := sig.Body[0].(string)
	newOwner, ok2 := sig.Body[2].(string)
	if !ok1 || !ok2 {
		w.logger.Warn("invalid NameOwnerChanged argument types")
		return
	}

	// Only unique names losing their owner mean a client went away.
	if !strings.HasPrefix(name, ":") || newOwner != "" {
		return
	}

	w.logger.Debug("client disconnected", "sender", name)
	if w.onVanished != nil {
		w.onVanished(name)
	}
}
