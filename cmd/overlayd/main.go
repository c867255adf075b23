// Package main is the entry point for the overlayd daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/daemon"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/overlayd/overlayd.toml)")
	initConfig := flag.Bool("init-config", false, "Write the default config file and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("overlayd %s (commit: %s)\n", version, commit)
		return
	}

	// The level follows [log] level, including on hot reload.
	levelVar := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelVar,
	}))
	slog.SetDefault(logger)

	path := *configPath
	if path == "" {
		var err error
		path, err = config.DaemonConfigPath()
		if err != nil {
			logger.Error("failed to determine config path", "error", err)
			os.Exit(1)
		}
	}

	if *initConfig {
		if err := writeDefaultConfig(path); err != nil {
			logger.Error("failed to write config", "path", path, "error", err)
			os.Exit(1)
		}
		fmt.Println(path)
		return
	}

	cfg, err := config.LoadDaemonConfigFrom(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	levelVar.Set(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(cfg, daemon.Options{
		ConfigPath: path,
		Version:    version,
		Logger:     logger,
		LevelVar:   levelVar,
	})
	if err != nil {
		logger.Error("failed to initialise daemon", "error", err)
		os.Exit(1)
	}

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

// writeDefaultConfig refuses to overwrite an existing file.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return config.SaveDaemonConfig(config.DefaultDaemonConfig(), path)
}
