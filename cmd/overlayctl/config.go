package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlayd/internal/config"
)

var configOpts struct {
	force  bool
	daemon bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage overlayctl and overlayd config files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configOpts.force {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		if configOpts.daemon {
			err = config.SaveDaemonConfig(config.DefaultDaemonConfig(), path)
		} else {
			err = config.DefaultConfig().Save(path)
		}
		if err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configCmd.PersistentFlags().BoolVar(&configOpts.daemon, "daemon", false, "Use the overlayd config instead of overlayctl's")
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false, "Overwrite an existing file")
}

func configFilePath() (string, error) {
	if configOpts.daemon {
		return config.DaemonConfigPath()
	}
	if globalOpts.configPath != "" {
		return globalOpts.configPath, nil
	}
	if path := config.ConfigPath(); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("cannot determine config path")
}
