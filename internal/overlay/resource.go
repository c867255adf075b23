package overlay

import (
	"github.com/jmylchreest/overlayd/internal/model"
)

// Handle is an opaque reference to an attached surface.
type Handle any

// Payload is what a surface displays.
type Payload struct {
	ID       string
	Text     string
	Priority model.Priority
}

// PayloadFor builds the payload for a piece of content.
func PayloadFor(c *model.Content) Payload {
	return Payload{
		ID:       c.ID,
		Text:     c.Text,
		Priority: c.Priority,
	}
}

// Resource is the platform surface behind the overlay.
// The coordinator calls it from a single goroutine, never concurrently.
// Implementations that need a UI thread must marshal onto it and return
// only once the operation has completed.
type Resource interface {
	// Attach creates and shows the surface with its initial payload.
	Attach(p Payload) (Handle, error)
	// Update replaces the payload of an attached surface.
	Update(h Handle, p Payload) error
	// Detach hides and destroys the surface.
	Detach(h Handle) error
}
