//go:build gtk

package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/overlay"
	"github.com/jmylchreest/overlayd/internal/theme"
)

const (
	appID     = "io.github.jmylchreest.overlayd"
	namespace = "overlayd"
)

var errLoopStopped = errors.New("gtk main loop is not running")

// GTK shows the overlay as a layer-shell window. All widget work happens
// on the GTK main thread; Resource calls marshal onto it and wait.
type GTK struct {
	logger *slog.Logger

	mu  sync.Mutex
	cfg *config.DaemonConfig

	app      *adw.Application
	provider *gtk.CSSProvider
	watcher  *theme.Watcher
	themeDir string

	onDismiss func(id string)

	stopped chan struct{} // Closed when the main loop exits
}

// gtkSurface is the Handle returned by GTK.Attach. Fields are only
// touched on the main thread.
type gtkSurface struct {
	id       string
	priority string
	window   *gtk.Window
	box      *gtk.Box
	label    *gtk.Label
}

func newGTK(cfg *config.DaemonConfig, logger *slog.Logger) (Backend, error) {
	if os.Getenv("WAYLAND_DISPLAY") == "" {
		return nil, &DisplayError{Message: "gtk backend requires a Wayland session"}
	}
	dir, err := theme.ThemesDir()
	if err != nil {
		logger.Warn("cannot determine themes directory", "error", err)
	}
	return &GTK{
		logger:   logger,
		cfg:      cfg,
		themeDir: dir,
		stopped:  make(chan struct{}),
	}, nil
}

// Name returns "gtk".
func (g *GTK) Name() string {
	return config.BackendGTK
}

// Run runs the GTK application until ctx is done. OnShutdown runs while
// the main loop is still alive so the coordinator can detach.
func (g *GTK) Run(ctx context.Context, hooks Hooks) error {
	g.onDismiss = hooks.OnDismiss
	g.app = adw.NewApplication(appID, 0)

	var (
		shutdownOnce sync.Once
		activated    bool
	)
	readyErr := make(chan error, 1)
	shutdown := func() {
		shutdownOnce.Do(func() {
			if hooks.OnShutdown != nil {
				hooks.OnShutdown()
			}
		})
	}

	g.app.ConnectActivate(func() {
		if activated {
			g.logger.Warn("application already running")
			return
		}
		activated = true

		if gdk.DisplayGetDefault() == nil {
			readyErr <- &DisplayError{Message: "no display available"}
			g.app.Quit()
			return
		}

		g.applyColorScheme()
		g.loadTheme()

		// GTK applications quit when their last window closes.
		keepAlive := gtk.NewWindow()
		keepAlive.SetApplication(&g.app.Application)
		keepAlive.SetDefaultSize(1, 1)
		keepAlive.SetDecorated(false)
		keepAlive.SetVisible(false)

		if hooks.OnReady != nil {
			go func() {
				if err := hooks.OnReady(); err != nil {
					readyErr <- err
					glib.IdleAdd(func() { g.app.Quit() })
				}
			}()
		}
	})

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			shutdown()
			glib.IdleAdd(func() { g.app.Quit() })
		case <-exited:
		}
	}()

	status := g.app.Run([]string{os.Args[0]})
	close(g.stopped)
	close(exited)

	shutdown()
	g.stopWatcher()

	select {
	case err := <-readyErr:
		return err
	default:
	}
	if status != 0 {
		return &DisplayError{Message: fmt.Sprintf("gtk application exited with status %d", status)}
	}
	return nil
}

// Configure applies theme, color scheme and placement changes.
func (g *GTK) Configure(cfg *config.DaemonConfig) {
	g.mu.Lock()
	themeChanged := cfg.Theme.Name != g.cfg.Theme.Name
	g.cfg = cfg
	g.mu.Unlock()

	glib.IdleAdd(func() {
		g.applyColorScheme()
		if themeChanged {
			g.loadTheme()
		}
	})
}

func (g *GTK) config() *config.DaemonConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// Attach creates and presents the window.
func (g *GTK) Attach(p overlay.Payload) (overlay.Handle, error) {
	var surface *gtkSurface
	err := g.invoke(func() error {
		surface = g.newSurface(p)
		surface.window.Present()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return surface, nil
}

// Update replaces the text and priority class of the window.
func (g *GTK) Update(h overlay.Handle, p overlay.Payload) error {
	surface, ok := h.(*gtkSurface)
	if !ok {
		return fmt.Errorf("unknown gtk surface %v", h)
	}
	return g.invoke(func() error {
		surface.id = p.ID
		surface.label.SetText(p.Text)
		surface.setPriority(priorityClass(p.Priority))
		g.placeWindow(surface.window)
		return nil
	})
}

// Detach destroys the window.
func (g *GTK) Detach(h overlay.Handle) error {
	surface, ok := h.(*gtkSurface)
	if !ok {
		return fmt.Errorf("unknown gtk surface %v", h)
	}
	return g.invoke(func() error {
		surface.window.Destroy()
		return nil
	})
}

// invoke runs fn on the main thread and waits for it.
func (g *GTK) invoke(fn func() error) error {
	select {
	case <-g.stopped:
		return errLoopStopped
	default:
	}

	result := make(chan error, 1)
	glib.IdleAdd(func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("panic on gtk main thread: %v", r)
			}
		}()
		result <- fn()
	})

	select {
	case err := <-result:
		return err
	case <-g.stopped:
		return errLoopStopped
	}
}

func (g *GTK) newSurface(p overlay.Payload) *gtkSurface {
	cfg := g.config()

	window := gtk.NewWindow()
	window.SetApplication(&g.app.Application)
	window.SetDecorated(false)
	window.SetResizable(false)
	window.SetDefaultSize(cfg.Display.Width, -1)
	window.AddCSSClass("overlayd")

	layershell.InitForWindow(window)
	layershell.SetLayer(window, layershell.LayerShellLayerOverlay)
	layershell.SetExclusiveZone(window, 0)
	layershell.SetKeyboardMode(window, layershell.LayerShellKeyboardModeNone)
	layershell.SetNamespace(window, namespace)

	box := gtk.NewBox(gtk.OrientationVertical, 0)
	box.AddCSSClass("overlay-surface")
	box.AddCSSClass(g.colorSchemeClass())
	if cfg.Display.Opacity < 1.0 {
		box.AddCSSClass("translucent")
		window.SetOpacity(cfg.Display.Opacity)
	}

	label := gtk.NewLabel(p.Text)
	label.AddCSSClass("overlay-text")
	label.SetWrap(true)
	box.Append(label)
	window.SetChild(box)

	surface := &gtkSurface{
		id:     p.ID,
		window: window,
		box:    box,
		label:  label,
	}
	surface.setPriority(priorityClass(p.Priority))

	click := gtk.NewGestureClick()
	click.SetButton(0)
	click.ConnectReleased(func(nPress int, x, y float64) {
		id := surface.id
		if g.onDismiss != nil {
			go g.onDismiss(id)
		}
	})
	window.AddController(click)

	g.placeWindow(window)
	return surface
}

func (s *gtkSurface) setPriority(class string) {
	if s.priority == class {
		return
	}
	for _, c := range priorityClasses() {
		s.box.RemoveCSSClass(c)
	}
	s.box.AddCSSClass(class)
	s.priority = class
}

// placeWindow sets the layer-shell anchors and margins based on config.
func (g *GTK) placeWindow(window *gtk.Window) {
	cfg := g.config()
	offsetX := cfg.Display.OffsetX
	offsetY := cfg.Display.OffsetY

	for _, edge := range []layershell.LayerShellEdge{
		layershell.LayerShellEdgeTop,
		layershell.LayerShellEdgeBottom,
		layershell.LayerShellEdgeLeft,
		layershell.LayerShellEdgeRight,
	} {
		layershell.SetAnchor(window, edge, false)
		layershell.SetMargin(window, edge, 0)
	}

	anchor := func(edge layershell.LayerShellEdge, margin int) {
		layershell.SetAnchor(window, edge, true)
		layershell.SetMargin(window, edge, margin)
	}

	switch config.Position(cfg.Display.Position) {
	case config.PositionTopRight:
		anchor(layershell.LayerShellEdgeTop, offsetY)
		anchor(layershell.LayerShellEdgeRight, offsetX)
	case config.PositionTopLeft:
		anchor(layershell.LayerShellEdgeTop, offsetY)
		anchor(layershell.LayerShellEdgeLeft, offsetX)
	case config.PositionTopCenter:
		anchor(layershell.LayerShellEdgeTop, offsetY)
	case config.PositionBottomRight:
		anchor(layershell.LayerShellEdgeBottom, offsetY)
		anchor(layershell.LayerShellEdgeRight, offsetX)
	case config.PositionBottomLeft:
		anchor(layershell.LayerShellEdgeBottom, offsetY)
		anchor(layershell.LayerShellEdgeLeft, offsetX)
	case config.PositionBottomCenter:
		anchor(layershell.LayerShellEdgeBottom, offsetY)
	case config.PositionCenter:
		// No anchors centers the surface.
	}
}

// applyColorScheme forces libadwaita's scheme when one is configured.
func (g *GTK) applyColorScheme() {
	manager := adw.StyleManagerGetDefault()
	switch config.ColorScheme(g.config().Theme.ColorScheme) {
	case config.ColorSchemeLight:
		manager.SetColorScheme(adw.ColorSchemeForceLight)
	case config.ColorSchemeDark:
		manager.SetColorScheme(adw.ColorSchemeForceDark)
	default:
		manager.SetColorScheme(adw.ColorSchemeDefault)
	}
}

func (g *GTK) colorSchemeClass() string {
	if adw.StyleManagerGetDefault().Dark() {
		return "dark"
	}
	return "light"
}

// loadTheme resolves the configured theme into the CSS provider and
// restarts hot reload for user themes. Main thread only.
func (g *GTK) loadTheme() {
	name := g.config().Theme.Name

	t, found, err := theme.Resolve(name, g.themeDir)
	if err != nil {
		g.logger.Warn("failed to load user theme", "error", err)
	}
	if !found {
		g.logger.Warn("theme not found, using default", "theme", name)
	}

	if g.provider == nil {
		g.provider = gtk.NewCSSProvider()
		gtk.StyleContextAddProviderForDisplay(
			gdk.DisplayGetDefault(),
			g.provider,
			gtk.STYLE_PROVIDER_PRIORITY_APPLICATION,
		)
	}
	g.provider.LoadFromString(t.CSS)
	g.logger.Debug("theme applied", "theme", t.Name, "bundled", t.Bundled())

	g.stopWatcher()
	if t.Bundled() {
		return
	}
	w := theme.NewWatcher(t, g.logger)
	w.SetChangeCallback(func(css string) {
		glib.IdleAdd(func() {
			g.provider.LoadFromString(css)
			g.logger.Info("hot-reloaded theme", "theme", t.Name)
		})
	})
	if err := w.Start(); err != nil {
		g.logger.Warn("failed to watch theme", "error", err)
		return
	}
	g.mu.Lock()
	g.watcher = w
	g.mu.Unlock()
}

func (g *GTK) stopWatcher() {
	g.mu.Lock()
	w := g.watcher
	g.watcher = nil
	g.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}
