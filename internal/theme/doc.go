// Package theme resolves the CSS used by the GTK overlay surface. Themes
// are looked up in ~/.config/overlayd/themes/ first and fall back to the
// bundled set. Imports are inlined so the result can be loaded as one
// stylesheet.
package theme
