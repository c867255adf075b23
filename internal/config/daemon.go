package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/overlayd/internal/model"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "1m", "1h30m", or integer milliseconds.
// A value of "0" or 0 means indefinite.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for overlayd.
// Loaded from ~/.config/overlayd/overlayd.toml
type DaemonConfig struct {
	Display  DisplayConfig  `toml:"display"`
	Terminal TerminalConfig `toml:"terminal"`
	Behavior BehaviorConfig `toml:"behavior"`
	Notifier NotifierConfig `toml:"notifier"`
	Audio    AudioConfig    `toml:"audio"`
	Theme    ThemeConfig    `toml:"theme"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
}

// DisplayConfig selects and places the overlay surface.
type DisplayConfig struct {
	Backend  string  `toml:"backend"`  // "terminal" or "gtk"
	Position string  `toml:"position"` // "top-right", "bottom-center", etc.
	OffsetX  int     `toml:"offset_x"` // Pixels from screen edge
	OffsetY  int     `toml:"offset_y"`
	Width    int     `toml:"width"`   // Surface width in pixels
	Opacity  float64 `toml:"opacity"` // 0.0-1.0
}

// TerminalConfig styles the terminal backend.
type TerminalConfig struct {
	Output      string `toml:"output"` // "stdout", "stderr" or a tty path
	Border      string `toml:"border"` // "rounded", "normal", "thick", "double", "hidden"
	Width       int    `toml:"width"`  // Columns, 0 = fit content
	Foreground  string `toml:"foreground"`
	Background  string `toml:"background"`
	AccentColor string `toml:"accent_color"` // Border color for high and critical content
}

// BehaviorConfig contains lifecycle settings.
type BehaviorConfig struct {
	// KeepAlive makes the daemon hold its own acquisition so the surface
	// follows the slot even with no clients attached.
	KeepAlive bool `toml:"keep_alive"`
}

// NotifierConfig controls the daemon's own notices.
type NotifierConfig struct {
	Enabled     bool     `toml:"enabled"`
	Duration    Duration `toml:"duration"`
	MinInterval Duration `toml:"min_interval"` // Rate limit between notices
}

// AudioConfig contains chime settings.
type AudioConfig struct {
	Enabled bool        `toml:"enabled"`
	Volume  int         `toml:"volume"` // 0-100
	Sounds  SoundConfig `toml:"sounds"`
}

// SoundConfig contains per-priority sound file paths.
type SoundConfig struct {
	Low      string `toml:"low"`
	Normal   string `toml:"normal"`
	High     string `toml:"high"`
	Critical string `toml:"critical"`
}

// ThemeConfig contains theme settings.
type ThemeConfig struct {
	Name        string `toml:"name"`         // Theme name without .css extension
	ColorScheme string `toml:"color_scheme"` // "system", "light", or "dark"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `toml:"listen"` // Empty disables the endpoint
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
}

// Backend names.
const (
	BackendTerminal = "terminal"
	BackendGTK      = "gtk"
)

// ColorScheme represents the color scheme preference.
type ColorScheme string

const (
	ColorSchemeSystem ColorScheme = "system"
	ColorSchemeLight  ColorScheme = "light"
	ColorSchemeDark   ColorScheme = "dark"
)

// ValidColorSchemes returns all valid color scheme values.
func ValidColorSchemes() []ColorScheme {
	return []ColorScheme{ColorSchemeSystem, ColorSchemeLight, ColorSchemeDark}
}

// Position represents the overlay position on screen.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopRight     Position = "top-right"
	PositionTopCenter    Position = "top-center"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomRight  Position = "bottom-right"
	PositionBottomCenter Position = "bottom-center"
	PositionCenter       Position = "center"
)

// ValidPositions returns all valid position values.
func ValidPositions() []Position {
	return []Position{
		PositionTopLeft,
		PositionTopRight,
		PositionTopCenter,
		PositionBottomLeft,
		PositionBottomRight,
		PositionBottomCenter,
		PositionCenter,
	}
}

var validBorders = []string{"rounded", "normal", "thick", "double", "hidden"}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Display: DisplayConfig{
			Backend:  BackendTerminal,
			Position: string(PositionTopCenter),
			OffsetX:  0,
			OffsetY:  24,
			Width:    420,
			Opacity:  0.95,
		},
		Terminal: TerminalConfig{
			Output:      "stderr",
			Border:      "rounded",
			Width:       0,
			Foreground:  "#E0E0E0",
			Background:  "",
			AccentColor: "#FF5F87",
		},
		Behavior: BehaviorConfig{
			KeepAlive: false,
		},
		Notifier: NotifierConfig{
			Enabled:     true,
			Duration:    Duration(3 * time.Second),
			MinInterval: Duration(2 * time.Second),
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  80,
		},
		Theme: ThemeConfig{
			Name:        "default",
			ColorScheme: string(ColorSchemeSystem),
		},
		Metrics: MetricsConfig{
			Listen: "",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "overlayd", "overlayd.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from the default path.
// If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig() (*DaemonConfig, error) {
	path, err := DaemonConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadDaemonConfigFrom(path)
}

// LoadDaemonConfigFrom loads the daemon configuration from path.
func LoadDaemonConfigFrom(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveDaemonConfig writes the configuration to path, or to the default
// path when path is empty.
func SaveDaemonConfig(config *DaemonConfig, path string) error {
	if path == "" {
		p, err := DaemonConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	switch c.Display.Backend {
	case BackendTerminal, BackendGTK:
	default:
		return fmt.Errorf("%w: backend %q, must be %q or %q", ErrInvalid, c.Display.Backend, BackendTerminal, BackendGTK)
	}

	validPos := false
	for _, p := range ValidPositions() {
		if c.Display.Position == string(p) {
			validPos = true
			break
		}
	}
	if !validPos {
		return fmt.Errorf("%w: position %q, must be one of: %v", ErrInvalid, c.Display.Position, ValidPositions())
	}

	if c.Display.Width < 100 || c.Display.Width > 2000 {
		return fmt.Errorf("%w: width must be between 100 and 2000, got %d", ErrInvalid, c.Display.Width)
	}
	if c.Display.Opacity < 0 || c.Display.Opacity > 1 {
		return fmt.Errorf("%w: opacity must be between 0.0 and 1.0, got %g", ErrInvalid, c.Display.Opacity)
	}

	validBorder := false
	for _, b := range validBorders {
		if c.Terminal.Border == b {
			validBorder = true
			break
		}
	}
	if !validBorder {
		return fmt.Errorf("%w: terminal border %q, must be one of: %v", ErrInvalid, c.Terminal.Border, validBorders)
	}
	if c.Terminal.Width < 0 {
		return fmt.Errorf("%w: terminal width must not be negative", ErrInvalid)
	}

	if c.Notifier.Duration < 0 || c.Notifier.MinInterval < 0 {
		return fmt.Errorf("%w: notifier durations must not be negative", ErrInvalid)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("%w: volume must be between 0 and 100, got %d", ErrInvalid, c.Audio.Volume)
	}

	validScheme := false
	for _, s := range ValidColorSchemes() {
		if c.Theme.ColorScheme == string(s) {
			validScheme = true
			break
		}
	}
	if !validScheme {
		return fmt.Errorf("%w: color scheme %q, must be one of: %v", ErrInvalid, c.Theme.ColorScheme, ValidColorSchemes())
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return nil
}

// SoundFor returns the sound file path for the given priority, with ~ expanded.
// Empty means no sound.
func (c *DaemonConfig) SoundFor(p model.Priority) string {
	var path string
	switch p {
	case model.PriorityLow:
		path = c.Audio.Sounds.Low
	case model.PriorityHigh:
		path = c.Audio.Sounds.High
	case model.PriorityCritical:
		path = c.Audio.Sounds.Critical
	default:
		path = c.Audio.Sounds.Normal
	}
	return expandPath(path)
}

// LogLevel returns the configured slog level. Validate guarantees it parses.
func (c *DaemonConfig) LogLevel() slog.Level {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
