package dbus

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// Client calls a running overlayd over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Connect opens a private session bus connection to overlayd.
func Connect() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *dbus.Conn) *Client {
	return &Client{
		conn: conn,
		obj:  conn.Object(BusName, ObjectPath),
	}
}

// Close closes the connection. Acquisitions still held are released by
// the daemon when it sees the connection go away.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	return c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
}

// Show replaces the overlay content and returns its id.
func (c *Client) Show(ctx context.Context, text, priority string, duration time.Duration) (string, error) {
	var id string
	if err := c.call(ctx, "Show", text, priority, durationToMillis(duration)).Store(&id); err != nil {
		return "", fmt.Errorf("Show: %w", err)
	}
	return id, nil
}

// Dismiss clears the overlay if id is still active.
func (c *Client) Dismiss(ctx context.Context, id string) error {
	if err := c.call(ctx, "Dismiss", id).Err; err != nil {
		return fmt.Errorf("Dismiss: %w", err)
	}
	return nil
}

// ClearAll clears the overlay.
func (c *Client) ClearAll(ctx context.Context) error {
	if err := c.call(ctx, "ClearAll").Err; err != nil {
		return fmt.Errorf("ClearAll: %w", err)
	}
	return nil
}

// Acquire registers interest on behalf of this connection.
func (c *Client) Acquire(ctx context.Context) error {
	if err := c.call(ctx, "Acquire").Err; err != nil {
		return fmt.Errorf("Acquire: %w", err)
	}
	return nil
}

// Release drops one acquisition held by this connection.
func (c *Client) Release(ctx context.Context) error {
	if err := c.call(ctx, "Release").Err; err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

// Current returns the active content.
func (c *Client) Current(ctx context.Context) (ContentInfo, error) {
	var (
		id, text, priority string
		ms                 uint32
		created            int64
		present            bool
	)
	if err := c.call(ctx, "GetCurrent").Store(&id, &text, &priority, &ms, &created, &present); err != nil {
		return ContentInfo{}, fmt.Errorf("GetCurrent: %w", err)
	}
	return newContentInfo(id, text, priority, ms, created, present), nil
}

// Status returns the coordinator state.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var (
		refs      int32
		observing bool
	)
	if err := c.call(ctx, "GetStatus").Store(&refs, &observing); err != nil {
		return Status{}, fmt.Errorf("GetStatus: %w", err)
	}
	return Status{Refs: int(refs), Observing: observing}, nil
}

// Watch yields the current content and then every ContentChanged signal
// until ctx is done. The channel is closed when the watch ends.
func (c *Client) Watch(ctx context.Context) (<-chan ContentInfo, error) {
	// Subscribe before reading the current value so no change is missed.
	matches := []dbus.MatchOption{
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchMember("ContentChanged"),
	}
	if err := c.conn.AddMatchSignalContext(ctx, matches...); err != nil {
		return nil, fmt.Errorf("failed to subscribe to ContentChanged: %w", err)
	}

	signals := make(chan *dbus.Signal, 32)
	c.conn.Signal(signals)

	current, err := c.Current(ctx)
	if err != nil {
		c.conn.RemoveSignal(signals)
		_ = c.conn.RemoveMatchSignal(matches...)
		return nil, err
	}

	out := make(chan ContentInfo)
	go func() {
		defer close(out)
		defer func() {
			c.conn.RemoveSignal(signals)
			_ = c.conn.RemoveMatchSignal(matches...)
		}()

		select {
		case out <- current:
		case <-ctx.Done():
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Name != SignalContentChanged {
					continue
				}
				info, ok := contentInfoFromArgs(sig.Body)
				if !ok {
					continue
				}
				select {
				case out <- info:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
