package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/overlayd/internal/audio"
	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/display"
	"github.com/jmylchreest/overlayd/internal/metrics"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/overlay"
	"github.com/jmylchreest/overlayd/internal/slot"
)

// Bus publishes the service to clients.
type Bus interface {
	Start() error
	Stop() error
	EmitContentChanged(c *model.Content) error
}

// Options configure a Daemon. Zero values select the real implementations.
type Options struct {
	// ConfigPath is watched for hot reload. Empty disables reloading.
	ConfigPath string
	Version    string
	Logger     *slog.Logger
	// LevelVar, when set, follows the [log] level on reload.
	LevelVar *slog.LevelVar

	Backend display.Backend
	Bus     Bus
	Player  audio.Sounder
}

// Daemon owns every long-lived component of overlayd.
type Daemon struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	cfg       *config.DaemonConfig
	keepAlive bool // Daemon holds its own acquisition

	slot     *slot.Slot
	backend  display.Backend
	chime    *audio.Chime
	player   audio.Sounder
	coord    *overlay.Coordinator
	service  *Service
	bus      Bus
	notifier *InternalNotifier
	watcher  *ConfigWatcher
	metrics  *metrics.Server

	forwardCancel context.CancelFunc
	forwardDone   chan struct{}

	busStarted bool
	stopOnce   sync.Once
}

// New builds a daemon from cfg. Nothing runs until Run.
func New(cfg *config.DaemonConfig, opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = display.New(cfg, logger.With("component", "display"))
		if err != nil {
			return nil, fmt.Errorf("failed to create display backend: %w", err)
		}
	}

	player := opts.Player
	if player == nil {
		player = audio.NewPlayer(logger.With("component", "audio"))
	}

	d := &Daemon{
		opts:    opts,
		logger:  logger,
		cfg:     cfg,
		slot:    slot.New(logger.With("component", "slot")),
		backend: backend,
		player:  player,
	}

	d.chime = audio.NewChime(backend, player, logger.With("component", "audio"))
	d.coord = overlay.NewCoordinator(d.slot, d.chime, logger.With("component", "overlay"))
	d.service = NewService(d.slot, d.coord, logger.With("component", "service"))

	d.bus = opts.Bus
	if d.bus == nil {
		d.bus = dbus.NewServer(d.service, logger.With("component", "dbus"))
	}

	d.notifier = NewInternalNotifier(logger.With("component", "notifier"))
	d.notifier.SetShowFunc(d.slot.Show)

	if opts.ConfigPath != "" {
		d.watcher = NewConfigWatcher(opts.ConfigPath, logger.With("component", "config"))
		d.watcher.SetReloadCallback(func(newConfig *config.DaemonConfig) {
			d.applyConfig(newConfig)
			d.notifier.NotifyConfigReloaded()
		})
		d.watcher.SetErrorCallback(func(err error) {
			d.notifier.NotifyConfigError(err)
		})
	}

	if cfg.Metrics.Listen != "" {
		d.metrics = metrics.NewServer(cfg.Metrics.Listen, logger.With("component", "metrics"))
	}

	d.configure(cfg)
	return d, nil
}

// Service returns the bus-facing service.
func (d *Daemon) Service() *Service {
	return d.service
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.DaemonConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Run runs the daemon inside the display backend's event loop until ctx
// is done.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting overlayd", "version", d.opts.Version, "backend", d.backend.Name())

	err := d.backend.Run(ctx, display.Hooks{
		OnReady:    d.start,
		OnShutdown: d.stop,
		OnDismiss:  d.dismiss,
	})
	d.stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	d.logger.Info("overlayd stopped")
	return nil
}

// start brings up everything that talks to the outside world. A bus
// failure is fatal; the rest degrade with a warning.
func (d *Daemon) start() error {
	if err := d.bus.Start(); err != nil {
		return fmt.Errorf("failed to start bus: %w", err)
	}
	d.mu.Lock()
	d.busStarted = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.mu.Lock()
	d.forwardCancel = cancel
	d.forwardDone = done
	d.mu.Unlock()
	go func() {
		defer close(done)
		if err := d.service.Forward(ctx, d.bus.EmitContentChanged); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("content forwarding stopped", "error", err)
		}
	}()

	if d.metrics != nil {
		d.metrics.Start()
	}

	cfg := d.Config()
	if d.watcher != nil {
		if err := d.watcher.Start(cfg); err != nil {
			d.logger.Warn("config hot reload unavailable", "error", err)
		}
	}

	d.setKeepAlive(cfg.Behavior.KeepAlive)
	d.notifier.NotifyStartup(d.opts.Version)

	d.logger.Info("overlayd ready", "bus_name", dbus.BusName)
	return nil
}

// stop tears components down in reverse dependency order. Safe to call
// more than once.
func (d *Daemon) stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("shutting down")

		d.mu.Lock()
		cancel, done := d.forwardCancel, d.forwardDone
		busStarted := d.busStarted
		d.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
		if d.watcher != nil {
			d.watcher.Stop()
		}

		// No new Acquire may arrive once the coordinator is shut down.
		if busStarted {
			if err := d.bus.Stop(); err != nil {
				d.logger.Warn("failed to stop bus", "error", err)
			}
		}

		d.setKeepAlive(false)
		d.coord.Shutdown()
		d.chime.Wait()
		if d.metrics != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := d.metrics.Stop(ctx); err != nil {
				d.logger.Warn("failed to stop metrics server", "error", err)
			}
			cancel()
		}
		if closer, ok := d.player.(interface{ Close() }); ok {
			closer.Close()
		}
		d.slot.Close()
	})
}

// dismiss handles a dismissal from the surface itself.
func (d *Daemon) dismiss(id string) {
	if d.slot.Dismiss(id) {
		d.logger.Debug("dismissed from surface", "content_id", id)
	}
}

// configure pushes cfg to the components that can change at runtime.
func (d *Daemon) configure(cfg *config.DaemonConfig) {
	if d.opts.LevelVar != nil {
		d.opts.LevelVar.Set(cfg.LogLevel())
	}
	d.notifier.Configure(cfg.Notifier)
	d.chime.Configure(cfg)
}

// applyConfig handles a hot-reloaded config.
func (d *Daemon) applyConfig(cfg *config.DaemonConfig) {
	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if cfg.Display.Backend != old.Display.Backend {
		d.logger.Warn("display backend change requires restart",
			"running", old.Display.Backend, "configured", cfg.Display.Backend)
	}
	if cfg.Metrics.Listen != old.Metrics.Listen {
		d.logger.Warn("metrics listen address change requires restart",
			"running", old.Metrics.Listen, "configured", cfg.Metrics.Listen)
	}

	d.configure(cfg)
	d.backend.Configure(cfg)
	d.setKeepAlive(cfg.Behavior.KeepAlive)
}

// setKeepAlive takes or drops the daemon's own acquisition.
func (d *Daemon) setKeepAlive(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if on == d.keepAlive {
		return
	}
	d.keepAlive = on
	if on {
		d.coord.Acquire()
		d.logger.Debug("keep-alive acquisition taken")
		return
	}
	d.coord.Release()
	d.logger.Debug("keep-alive acquisition dropped")
}
