// Package model defines the core data structures for overlayd.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Priority classifies how important a piece of overlay content is.
// It is carried through to the surface for styling and sound selection
// but never decides which content wins the slot.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// priorityNames maps priorities to their wire and CLI names.
var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityNormal:   "normal",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

// ErrUnknownPriority is returned by ParsePriority for unrecognised names.
var ErrUnknownPriority = errors.New("unknown priority")

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority converts a name such as "high" into a Priority.
// An empty string yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityNormal, nil
	}
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	return PriorityNormal, fmt.Errorf("%w %q, must be one of: %v", ErrUnknownPriority, s, Priorities())
}

// Priorities returns all priorities in ascending order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}
}

// Content is a single request to show text on the overlay.
// Values are immutable once created; share them by pointer.
type Content struct {
	ID        string        `json:"id" yaml:"id"`
	Text      string        `json:"text" yaml:"text"`
	Priority  Priority      `json:"-" yaml:"-"`
	Duration  time.Duration `json:"-" yaml:"-"` // Zero means no auto-dismiss
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
}

// NewContent creates content with a freshly generated ULID. Ids are
// monotonic within the process. Negative durations are treated as
// indefinite and unknown priorities as normal.
func NewContent(text string, priority Priority, duration time.Duration) *Content {
	now := time.Now()
	id := ulid.Make()
	if duration < 0 {
		duration = 0
	}
	if !priority.Valid() {
		priority = PriorityNormal
	}

	return &Content{
		ID:        id.String(),
		Text:      text,
		Priority:  priority,
		Duration:  duration,
		CreatedAt: now,
	}
}

// Indefinite reports whether the content stays until explicitly dismissed.
func (c *Content) Indefinite() bool {
	return c.Duration <= 0
}

// ExpiresAt returns when the auto-dismiss timer for this content fires.
// Returns the zero time for indefinite content.
func (c *Content) ExpiresAt() time.Time {
	if c.Indefinite() {
		return time.Time{}
	}
	return c.CreatedAt.Add(c.Duration)
}

// TextTruncated returns the text collapsed to one line and cut to maxLen runes.
func (c *Content) TextTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	text := []rune(strings.Join(strings.Fields(c.Text), " "))
	if len(text) <= maxLen {
		return string(text)
	}
	if maxLen <= 3 {
		return string(text[:maxLen])
	}
	return string(text[:maxLen-3]) + "..."
}
