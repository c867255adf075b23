// Package daemon provides the main orchestration for overlayd.
// It wires the content slot, the lifecycle coordinator, the display
// backend, the D-Bus server, internal notices and configuration hot-reload.
package daemon
