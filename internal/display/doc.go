// Package display provides the platform surfaces the overlay coordinator
// drives. The terminal backend draws a styled box on a terminal and is
// always available; the GTK backend shows a layer-shell window on Wayland
// and is only compiled with the gtk build tag.
package display
