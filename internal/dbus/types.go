package dbus

import (
	"math"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/overlayd/internal/model"
)

const (
	// BusName is the well-known name claimed by overlayd.
	BusName = "io.github.jmylchreest.Overlayd1"
	// Interface is the overlay interface name.
	Interface = "io.github.jmylchreest.Overlayd1"
	// ObjectPath is the overlay object path.
	ObjectPath dbus.ObjectPath = "/io/github/jmylchreest/Overlayd1"

	// SignalContentChanged is emitted on every slot change.
	SignalContentChanged = Interface + ".ContentChanged"
)

// Error names returned to callers.
const (
	ErrorInvalidPriority = Interface + ".Error.InvalidPriority"
	ErrorNotAcquired     = Interface + ".Error.NotAcquired"
)

// ContentInfo is the wire form of the slot value.
// Present is false when the slot is empty; the other fields are then zero.
type ContentInfo struct {
	ID        string
	Text      string
	Priority  string
	Duration  time.Duration
	CreatedAt time.Time
	Present   bool
}

// ContentInfoFrom converts slot content to its wire form. nil yields an
// empty, non-present value.
func ContentInfoFrom(c *model.Content) ContentInfo {
	if c == nil {
		return ContentInfo{}
	}
	return ContentInfo{
		ID:        c.ID,
		Text:      c.Text,
		Priority:  c.Priority.String(),
		Duration:  c.Duration,
		CreatedAt: c.CreatedAt,
		Present:   true,
	}
}

// ExpiresAt returns when the content auto-dismisses, zero when indefinite.
func (i ContentInfo) ExpiresAt() time.Time {
	if !i.Present || i.Duration <= 0 || i.CreatedAt.IsZero() {
		return time.Time{}
	}
	return i.CreatedAt.Add(i.Duration)
}

// args returns the signal and GetCurrent argument list:
// (s id, s text, s priority, u duration_ms, x created_ms, b present).
func (i ContentInfo) args() []any {
	return []any{i.ID, i.Text, i.Priority, durationToMillis(i.Duration), createdMillis(i.CreatedAt), i.Present}
}

func createdMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// contentInfoFromArgs parses the argument list produced by args.
func contentInfoFromArgs(body []any) (ContentInfo, bool) {
	if len(body) != 6 {
		return ContentInfo{}, false
	}
	id, ok1 := body[0].(string)
	text, ok2 := body[1].(string)
	priority, ok3 := body[2].(string)
	ms, ok4 := body[3].(uint32)
	created, ok5 := body[4].(int64)
	present, ok6 := body[5].(bool)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return ContentInfo{}, false
	}
	return newContentInfo(id, text, priority, ms, created, present), true
}

func newContentInfo(id, text, priority string, ms uint32, createdMs int64, present bool) ContentInfo {
	if !present {
		return ContentInfo{}
	}
	info := ContentInfo{
		ID:       id,
		Text:     text,
		Priority: priority,
		Duration: millisToDuration(ms),
		Present:  true,
	}
	if createdMs > 0 {
		info.CreatedAt = time.UnixMilli(createdMs)
	}
	return info
}

// durationToMillis converts a duration to the wire's uint32 milliseconds,
// clamping negatives to 0 and overflow to the maximum. Positive durations
// under a millisecond become 1 so they still expire; 0 means indefinite.
func durationToMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	switch {
	case d <= 0:
		return 0
	case ms == 0:
		return 1
	case ms > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(ms)
	}
}

func millisToDuration(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Status is the coordinator state reported by GetStatus.
type Status struct {
	Refs      int
	Observing bool
}
