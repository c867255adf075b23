package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/model"
)

// NotificationLevel indicates the severity of an internal notice.
type NotificationLevel int

const (
	// NotificationLevelInfo is shown at low priority.
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is shown at high priority.
	NotificationLevelWarning
	// NotificationLevelError is shown at critical priority.
	NotificationLevelError
)

// Priority maps the level to the content priority used on the overlay.
func (l NotificationLevel) Priority() model.Priority {
	switch l {
	case NotificationLevelWarning:
		return model.PriorityHigh
	case NotificationLevelError:
		return model.PriorityCritical
	default:
		return model.PriorityLow
	}
}

// ShowFunc puts text on the overlay and returns the content id.
type ShowFunc func(text string, priority model.Priority, duration time.Duration) string

// InternalNotifier shows notices about overlayd's own events on the
// overlay. Notices with the same key are rate limited.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	show ShowFunc

	lastNotifyTime map[string]time.Time // key -> last notice time
	minInterval    time.Duration
	duration       time.Duration

	enabled bool
	now     func() time.Time
}

// NewInternalNotifier creates a new InternalNotifier.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		duration:       3 * time.Second,
		enabled:        true,
		now:            time.Now,
	}
}

// SetShowFunc sets the function used to put notices on the overlay.
func (n *InternalNotifier) SetShowFunc(show ShowFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.show = show
}

// Configure applies the [notifier] settings.
func (n *InternalNotifier) Configure(cfg config.NotifierConfig) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = cfg.Enabled
	n.minInterval = cfg.MinInterval.Duration()
	n.duration = cfg.Duration.Duration()
}

// Notify shows a notice unless disabled or rate limited. It returns the
// content id, or "" when nothing was shown.
func (n *InternalNotifier) Notify(key, text string, level NotificationLevel) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled {
		return ""
	}

	if n.show == nil {
		n.logger.Debug("internal notice skipped: no handler", "text", text)
		return ""
	}

	now := n.now()
	if lastTime, ok := n.lastNotifyTime[key]; ok {
		if now.Sub(lastTime) < n.minInterval {
			n.logger.Debug("internal notice rate-limited", "key", key)
			return ""
		}
	}
	n.lastNotifyTime[key] = now

	n.logger.Debug("showing internal notice", "key", key, "level", level)
	return n.show(text, level.Priority(), n.duration)
}

// NotifyConfigReloaded shows a notice about config being reloaded.
func (n *InternalNotifier) NotifyConfigReloaded() string {
	return n.Notify("config-reload", "overlayd: configuration reloaded", NotificationLevelInfo)
}

// NotifyConfigError shows a notice about a config that failed validation.
func (n *InternalNotifier) NotifyConfigError(err error) string {
	return n.Notify("config-error", "overlayd: configuration error: "+err.Error(), NotificationLevelWarning)
}

// NotifyStartup shows a notice that the daemon has started.
func (n *InternalNotifier) NotifyStartup(version string) string {
	return n.Notify("startup", "overlayd "+version+" started", NotificationLevelInfo)
}
