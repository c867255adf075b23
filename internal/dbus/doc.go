// Package dbus exposes the overlay service on the session bus.
// The server side exports io.github.jmylchreest.Overlayd1 and emits
// ContentChanged whenever the slot changes; the client side wraps the same
// interface for overlayctl.
package dbus
