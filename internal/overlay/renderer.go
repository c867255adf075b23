package overlay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/overlayd/internal/metrics"
	"github.com/jmylchreest/overlayd/internal/model"
)

// renderer holds the per-task surface state: the attached handle and the
// pending auto-dismiss timer. It is owned by one observation goroutine.
type renderer struct {
	resource Resource
	source   Source
	logger   *slog.Logger

	handle Handle // Nil when nothing is attached
	timer  *time.Timer
}

func newRenderer(resource Resource, source Source, logger *slog.Logger) *renderer {
	return &renderer{
		resource: resource,
		source:   source,
		logger:   logger,
	}
}

// apply processes one emission to completion. Failures are logged and
// swallowed so the observation task keeps running.
func (r *renderer) apply(content *model.Content) {
	defer func() {
		if p := recover(); p != nil {
			metrics.OverlayResourceErrors.WithLabelValues("panic").Inc()
			r.logger.Error("overlay update panicked", "error", fmt.Errorf("panic: %v", p))
		}
	}()

	r.stopTimer()

	if content == nil {
		metrics.OverlayEmissions.WithLabelValues("empty").Inc()
		r.detach()
		return
	}

	metrics.OverlayEmissions.WithLabelValues("content").Inc()
	r.show(content)

	if content.Duration > 0 {
		r.scheduleDismiss(content.ID, content.Duration)
	}
}

// show attaches the surface if needed, otherwise updates it in place.
func (r *renderer) show(content *model.Content) {
	payload := PayloadFor(content)

	if r.handle == nil {
		h, err := r.resource.Attach(payload)
		if err != nil {
			metrics.OverlayResourceErrors.WithLabelValues("attach").Inc()
			r.logger.Error("failed to attach overlay", "content_id", content.ID, "error", err)
			return
		}
		r.handle = h
		r.logger.Debug("overlay attached", "content_id", content.ID)
		return
	}

	if err := r.resource.Update(r.handle, payload); err != nil {
		metrics.OverlayResourceErrors.WithLabelValues("update").Inc()
		r.logger.Error("failed to update overlay", "content_id", content.ID, "error", err)
		return
	}
	r.logger.Debug("overlay updated", "content_id", content.ID)
}

// detach removes the surface if attached. The handle is dropped even if
// the platform call fails.
func (r *renderer) detach() {
	if r.handle == nil {
		return
	}
	h := r.handle
	r.handle = nil

	if err := r.resource.Detach(h); err != nil {
		metrics.OverlayResourceErrors.WithLabelValues("detach").Inc()
		r.logger.Error("failed to detach overlay", "error", err)
		return
	}
	r.logger.Debug("overlay detached")
}

// scheduleDismiss arms the auto-dismiss timer for one specific content id.
// If other content has replaced it by the time the timer fires, the slot
// ignores the dismiss.
func (r *renderer) scheduleDismiss(id string, after time.Duration) {
	source := r.source
	logger := r.logger
	r.timer = time.AfterFunc(after, func() {
		metrics.OverlayAutoDismiss.WithLabelValues("fired").Inc()
		if source.Dismiss(id) {
			logger.Debug("auto-dismissed", "content_id", id)
		}
	})
	metrics.OverlayAutoDismiss.WithLabelValues("scheduled").Inc()
	r.logger.Debug("auto-dismiss scheduled", "content_id", id, "after", after)
}

func (r *renderer) stopTimer() {
	if r.timer == nil {
		return
	}
	if r.timer.Stop() {
		metrics.OverlayAutoDismiss.WithLabelValues("cancelled").Inc()
	}
	r.timer = nil
}

// teardown runs when the observation task exits.
func (r *renderer) teardown() {
	defer func() {
		if p := recover(); p != nil {
			metrics.OverlayResourceErrors.WithLabelValues("panic").Inc()
			r.logger.Error("overlay teardown panicked", "error", fmt.Errorf("panic: %v", p))
		}
	}()

	r.stopTimer()
	r.detach()
}
