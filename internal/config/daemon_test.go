package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlayd/internal/model"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"5s", 5 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"1500", 1500 * time.Millisecond, false},
		{"0", 0, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestDefaultDaemonConfig_Valid(t *testing.T) {
	cfg := DefaultDaemonConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendTerminal, cfg.Display.Backend)
	assert.False(t, cfg.Behavior.KeepAlive)
	assert.True(t, cfg.Notifier.Enabled)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoadDaemonConfigFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlayd.toml")

	content := `
[display]
backend = "gtk"
position = "bottom-right"
width = 500

[behavior]
keep_alive = true

[notifier]
duration = "1s"
min_interval = 250

[audio]
enabled = true

[audio.sounds]
critical = "/usr/share/sounds/alarm.oga"

[metrics]
listen = "127.0.0.1:9273"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadDaemonConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, BackendGTK, cfg.Display.Backend)
	assert.Equal(t, string(PositionBottomRight), cfg.Display.Position)
	assert.Equal(t, 500, cfg.Display.Width)
	assert.True(t, cfg.Behavior.KeepAlive)
	assert.Equal(t, time.Second, cfg.Notifier.Duration.Duration())
	assert.Equal(t, 250*time.Millisecond, cfg.Notifier.MinInterval.Duration())
	assert.Equal(t, "127.0.0.1:9273", cfg.Metrics.Listen)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "/usr/share/sounds/alarm.oga", cfg.SoundFor(model.PriorityCritical))
	assert.Empty(t, cfg.SoundFor(model.PriorityLow))

	// Untouched sections keep defaults
	assert.Equal(t, "rounded", cfg.Terminal.Border)
	assert.Equal(t, 80, cfg.Audio.Volume)
}

func TestLoadDaemonConfigFrom_Missing(t *testing.T) {
	cfg, err := LoadDaemonConfigFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig(), cfg)
}

func TestLoadDaemonConfigFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", `[display`},
		{"unknown backend", "[display]\nbackend = \"x11\""},
		{"bad position", "[display]\nposition = \"middle-ish\""},
		{"narrow", "[display]\nwidth = 10"},
		{"opacity", "[display]\nopacity = 1.5"},
		{"border", "[terminal]\nborder = \"zigzag\""},
		{"volume", "[audio]\nvolume = 101"},
		{"scheme", "[theme]\ncolor_scheme = \"sepia\""},
		{"log level", "[log]\nlevel = \"chatty\""},
		{"negative notifier", "[notifier]\nduration = \"-1s\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "overlayd.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := LoadDaemonConfigFrom(path)
			assert.Error(t, err)
		})
	}
}

func TestValidate_WrapsErrInvalid(t *testing.T) {
	cfg := DefaultDaemonConfig()
	cfg.Display.Backend = "wayland"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestSaveDaemonConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "overlayd.toml")

	cfg := DefaultDaemonConfig()
	cfg.Behavior.KeepAlive = true
	cfg.Notifier.Duration = Duration(1500 * time.Millisecond)

	require.NoError(t, SaveDaemonConfig(cfg, path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := LoadDaemonConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSoundFor_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg := DefaultDaemonConfig()
	cfg.Audio.Sounds.Normal = "~/sounds/pop.wav"
	assert.Equal(t, filepath.Join(home, "sounds", "pop.wav"), cfg.SoundFor(model.PriorityNormal))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}
