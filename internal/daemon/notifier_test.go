package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/model"
)

type shown struct {
	text     string
	priority model.Priority
	duration time.Duration
}

func newTestNotifier() (*InternalNotifier, *[]shown, *time.Time) {
	n := NewInternalNotifier(discardLogger())
	var got []shown
	n.SetShowFunc(func(text string, priority model.Priority, duration time.Duration) string {
		got = append(got, shown{text, priority, duration})
		return "id"
	})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	n.Configure(config.NotifierConfig{
		Enabled:     true,
		Duration:    config.Duration(3 * time.Second),
		MinInterval: config.Duration(2 * time.Second),
	})
	return n, &got, &now
}

func TestNotifier_ShowsWithLevelPriority(t *testing.T) {
	n, got, _ := newTestNotifier()

	assert.Equal(t, "id", n.NotifyStartup("v1.2.3"))
	assert.Equal(t, "id", n.NotifyConfigError(errors.New("bad position")))

	assert.Equal(t, []shown{
		{"overlayd v1.2.3 started", model.PriorityLow, 3 * time.Second},
		{"overlayd: configuration error: bad position", model.PriorityHigh, 3 * time.Second},
	}, *got)
}

func TestNotifier_RateLimitPerKey(t *testing.T) {
	n, got, now := newTestNotifier()

	n.NotifyConfigReloaded()
	assert.Empty(t, n.NotifyConfigReloaded(), "second notice inside interval is dropped")
	n.NotifyConfigError(errors.New("x"))
	assert.Len(t, *got, 2, "different keys are independent")

	*now = now.Add(2 * time.Second)
	n.NotifyConfigReloaded()
	assert.Len(t, *got, 3)
}

func TestNotifier_Disabled(t *testing.T) {
	n, got, _ := newTestNotifier()
	n.Configure(config.NotifierConfig{Enabled: false})

	assert.Empty(t, n.NotifyStartup("v"))
	assert.Empty(t, *got)
}

func TestNotifier_NoShowFunc(t *testing.T) {
	n := NewInternalNotifier(nil)
	assert.Empty(t, n.Notify("k", "text", NotificationLevelError))
}

func TestNotificationLevelPriority(t *testing.T) {
	assert.Equal(t, model.PriorityLow, NotificationLevelInfo.Priority())
	assert.Equal(t, model.PriorityHigh, NotificationLevelWarning.Priority())
	assert.Equal(t, model.PriorityCritical, NotificationLevelError.Priority())
}
