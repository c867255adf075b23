package audio

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/overlay"
)

// Sounder plays sound files. *Player implements it.
type Sounder interface {
	Play(path string) error
	SetVolume(volume float64)
}

// Chime wraps an overlay.Resource and plays the priority's sound whenever
// new content is put on the surface. Playback never blocks the surface.
type Chime struct {
	overlay.Resource

	player Sounder
	logger *slog.Logger

	mu      sync.Mutex
	enabled bool
	sounds  map[model.Priority]string
	lastID  string

	wg sync.WaitGroup
}

// NewChime wraps resource. Chimes are off until Configure enables them.
func NewChime(resource overlay.Resource, player Sounder, logger *slog.Logger) *Chime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chime{
		Resource: resource,
		player:   player,
		logger:   logger,
		sounds:   make(map[model.Priority]string),
	}
}

// Configure applies the [audio] settings.
func (c *Chime) Configure(cfg *config.DaemonConfig) {
	sounds := make(map[model.Priority]string, len(model.Priorities()))
	for _, p := range model.Priorities() {
		if path := cfg.SoundFor(p); path != "" {
			sounds[p] = path
		}
	}

	c.mu.Lock()
	c.enabled = cfg.Audio.Enabled
	c.sounds = sounds
	c.mu.Unlock()

	c.player.SetVolume(float64(cfg.Audio.Volume) / 100.0)
	c.logger.Debug("chime configured", "enabled", cfg.Audio.Enabled, "sounds", len(sounds))

	if cfg.Audio.Enabled {
		c.preload(sounds)
	}
}

// preload decodes the configured sounds in the background when the player
// supports it, so the first chime is not delayed by decoding.
func (c *Chime) preload(sounds map[model.Priority]string) {
	pl, ok := c.player.(interface{ Preload(path string) error })
	if !ok || len(sounds) == 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for p, path := range sounds {
			if err := pl.Preload(path); err != nil {
				c.logger.Warn("failed to preload chime", "priority", p, "path", path, "error", err)
			}
		}
	}()
}

// Attach attaches the surface and chimes on success.
func (c *Chime) Attach(p overlay.Payload) (overlay.Handle, error) {
	h, err := c.Resource.Attach(p)
	if err != nil {
		return nil, err
	}
	c.chime(p)
	return h, nil
}

// Update updates the surface and chimes if the content changed.
func (c *Chime) Update(h overlay.Handle, p overlay.Payload) error {
	if err := c.Resource.Update(h, p); err != nil {
		return err
	}
	c.chime(p)
	return nil
}

// Detach detaches the surface. The next Attach chimes even for the same
// content.
func (c *Chime) Detach(h overlay.Handle) error {
	c.mu.Lock()
	c.lastID = ""
	c.mu.Unlock()
	return c.Resource.Detach(h)
}

// Wait blocks until pending playback calls have returned.
func (c *Chime) Wait() {
	c.wg.Wait()
}

func (c *Chime) chime(p overlay.Payload) {
	c.mu.Lock()
	if p.ID == c.lastID {
		c.mu.Unlock()
		return
	}
	c.lastID = p.ID
	path := c.sounds[p.Priority]
	enabled := c.enabled
	c.mu.Unlock()

	if !enabled || path == "" {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.player.Play(path); err != nil {
			c.logger.Warn("failed to play chime", "priority", p.Priority, "path", path, "error", err)
		}
	}()
}
