package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/overlayd/internal/metrics"
	"github.com/jmylchreest/overlayd/internal/model"
)

// ErrNotAcquired is returned by Handler.Release when the caller holds no
// acquisition.
var ErrNotAcquired = errors.New("caller holds no acquisition")

// Handler is the overlay service behind the bus object.
type Handler interface {
	Show(text string, priority model.Priority, duration time.Duration) string
	Dismiss(id string)
	ClearAll()
	// Acquire and Release are attributed to the caller's unique bus name.
	Acquire(sender string)
	Release(sender string) error
	// ClientVanished releases everything a disconnected caller still holds.
	ClientVanished(sender string)
	Current() *model.Content
	Status() Status
}

// Server exports the overlay interface on the session bus.
type Server struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	handler Handler
	names   *NameWatcher

	mu      sync.Mutex
	running bool
}

// NewServer creates a new Server.
func NewServer(handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:  logger,
		handler: handler,
	}
}

// Start connects to the session bus, exports the overlay object and claims
// the bus name.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	// A private connection so Stop can close it without affecting
	// other users of the shared session bus.
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(&object{handler: s.handler, logger: s.logger}, ObjectPath, Interface); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: overlayMethods(),
				Signals: overlaySignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("bus name %s already taken", BusName)
	}

	s.names = NewNameWatcher(conn, s.logger)
	s.names.SetVanishedHandler(s.handler.ClientVanished)
	if err := s.names.Start(); err != nil {
		// Without it crashed clients pin the overlay until restart.
		s.logger.Warn("client disconnect tracking unavailable", "error", err)
	}

	s.conn = conn
	s.running = true

	s.logger.Info("D-Bus overlay server started", "name", BusName, "path", ObjectPath)
	return nil
}

// Stop releases the bus name and closes the connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if _, err := s.conn.ReleaseName(BusName); err != nil {
		s.logger.Warn("failed to release bus name", "error", err)
	}
	err := s.conn.Close()
	s.conn = nil

	s.logger.Info("D-Bus overlay server stopped")
	return err
}

// object is the exported bus object. Only its methods are visible on the bus.
type object struct {
	handler Handler
	logger  *slog.Logger
}

// Show replaces the overlay content.
// D-Bus method: Show(s text, s priority, u duration_ms) -> s id
func (o *object) Show(sender dbus.Sender, text, priority string, durationMs uint32) (string, *dbus.Error) {
	metrics.DBusCalls.WithLabelValues("Show").Inc()

	p, err := model.ParsePriority(priority)
	if err != nil {
		o.logger.Debug("Show rejected", "sender", sender, "error", err)
		return "", dbus.NewError(ErrorInvalidPriority, []any{err.Error()})
	}

	id := o.handler.Show(text, p, millisToDuration(durationMs))
	o.logger.Debug("Show called", "sender", sender, "content_id", id, "priority", p)
	return id, nil
}

// Dismiss clears the overlay if id is still the active content.
// D-Bus method: Dismiss(s id)
func (o *object) Dismiss(sender dbus.Sender, id string) *dbus.Error {
	metrics.DBusCalls.WithLabelValues("Dismiss").Inc()
	o.logger.Debug("Dismiss called", "sender", sender, "content_id", id)
	o.handler.Dismiss(id)
	return nil
}

// ClearAll clears the overlay unconditionally.
// D-Bus method: ClearAll()
func (o *object) ClearAll(sender dbus.Sender) *dbus.Error {
	metrics.DBusCalls.WithLabelValues("ClearAll").Inc()
	o.logger.Debug("ClearAll called", "sender", sender)
	o.handler.ClearAll()
	return nil
}

// Acquire registers the caller's interest in the overlay.
// D-Bus method: Acquire()
func (o *object) Acquire(sender dbus.Sender) *dbus.Error {
	metrics.DBusCalls.WithLabelValues("Acquire").Inc()
	o.logger.Debug("Acquire called", "sender", sender)
	o.handler.Acquire(string(sender))
	return nil
}

// Release drops one of the caller's acquisitions.
// D-Bus method: Release()
func (o *object) Release(sender dbus.Sender) *dbus.Error {
	metrics.DBusCalls.WithLabelValues("Release").Inc()
	o.logger.Debug("Release called", "sender", sender)
	if err := o.handler.Release(string(sender)); err != nil {
		if errors.Is(err, ErrNotAcquired) {
			return dbus.NewError(ErrorNotAcquired, []any{err.Error()})
		}
		return dbus.MakeFailedError(err)
	}
	return nil
}

// GetCurrent returns the active content.
// D-Bus method: GetCurrent() -> (s id, s text, s priority, u duration_ms, x created_ms, b present)
func (o *object) GetCurrent() (string, string, string, uint32, int64, bool, *dbus.Error) {
	metrics.DBusCalls.WithLabelValues("GetCurrent").Inc()
	info := ContentInfoFrom(o.handler.Current())
	return info.ID, info.Text, info.Priority, durationToMillis(info.Duration), createdMillis(info.CreatedAt), info.Present, nil
}

// GetStatus returns the coordinator state.
// D-Bus method: GetStatus() -> (i refs, b observing)
func (o *object) GetStatus() (int32, bool, *dbus.Error) {
	metrics.DBusCalls.WithLabelValues("GetStatus").Inc()
	st := o.handler.Status()
	return int32(st.Refs), st.Observing, nil
}

// overlayMethods returns the D-Bus method introspection data.
func overlayMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Show",
			Args: []introspect.Arg{
				{Name: "text", Type: "s", Direction: "in"},
				{Name: "priority", Type: "s", Direction: "in"},
				{Name: "duration_ms", Type: "u", Direction: "in"},
				{Name: "id", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "Dismiss",
			Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
			},
		},
		{Name: "ClearAll"},
		{Name: "Acquire"},
		{Name: "Release"},
		{
			Name: "GetCurrent",
			Args: contentArgs("out"),
		},
		{
			Name: "GetStatus",
			Args: []introspect.Arg{
				{Name: "refs", Type: "i", Direction: "out"},
				{Name: "observing", Type: "b", Direction: "out"},
			},
		},
	}
}

// overlaySignals returns the D-Bus signal introspection data.
func overlaySignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "ContentChanged",
			Args: contentArgs(""),
		},
	}
}

func contentArgs(direction string) []introspect.Arg {
	return []introspect.Arg{
		{Name: "id", Type: "s", Direction: direction},
		{Name: "text", Type: "s", Direction: direction},
		{Name: "priority", Type: "s", Direction: direction},
		{Name: "duration_ms", Type: "u", Direction: direction},
		{Name: "created_ms", Type: "x", Direction: direction},
		{Name: "present", Type: "b", Direction: direction},
	}
}
