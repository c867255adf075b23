// Package output formats overlay state for overlayctl.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/overlayd/internal/dbus"
)

// Formatter formats overlay state for output.
type Formatter interface {
	// FormatStatus writes the daemon status and current content.
	FormatStatus(w io.Writer, s Status) error
	// FormatContent writes one content change. c is nil when the overlay
	// was cleared.
	FormatContent(w io.Writer, c *Content) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// FormatTypes lists the supported formats.
func FormatTypes() []FormatType {
	return []FormatType{FormatPlain, FormatJSON, FormatYAML}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (FormatType, error) {
	for _, f := range FormatTypes() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q, must be one of: %v", s, FormatTypes())
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template string // Custom template for plain content lines
	Compact  bool   // Single-line JSON, used when streaming
	TextMax  int    // Maximum text length in plain output (0 = unlimited)
	Now      func() time.Time
}

// DefaultFormatterOptions returns sensible defaults.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		TextMax: 0,
		Now:     time.Now,
	}
}

func (o FormatterOptions) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Status is the printable form of the daemon status.
type Status struct {
	Refs      int      `json:"refs" yaml:"refs"`
	Observing bool     `json:"observing" yaml:"observing"`
	Content   *Content `json:"content" yaml:"content"`
}

// Content is the printable form of overlay content.
type Content struct {
	ID         string     `json:"id" yaml:"id"`
	Text       string     `json:"text" yaml:"text"`
	Priority   string     `json:"priority" yaml:"priority"`
	DurationMs int64      `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// NewStatus builds a Status from bus replies.
func NewStatus(st dbus.Status, info dbus.ContentInfo) Status {
	return Status{
		Refs:      st.Refs,
		Observing: st.Observing,
		Content:   NewContent(info),
	}
}

// NewContent converts bus content. It returns nil when nothing is shown.
func NewContent(info dbus.ContentInfo) *Content {
	if !info.Present {
		return nil
	}
	c := &Content{
		ID:         info.ID,
		Text:       info.Text,
		Priority:   info.Priority,
		DurationMs: info.Duration.Milliseconds(),
		CreatedAt:  info.CreatedAt,
	}
	if exp := info.ExpiresAt(); !exp.IsZero() {
		c.ExpiresAt = &exp
	}
	return c
}
