package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlayd/internal/adapter/output"
	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/tui"
)

var watchOpts struct {
	plain bool
	hold  bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow overlay content as it changes",
	Long: `Show the current overlay content and every change after it.

On a terminal this opens an interactive view where d dismisses, c clears
and y copies the text. When stdout is not a terminal, or with --plain,
each change is printed as one record (compact JSON with --format json).

With --hold the overlay surface is kept open for as long as the watch
runs.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchOpts.plain, "plain", false, "Stream records instead of the interactive view")
	watchCmd.Flags().BoolVar(&watchOpts.hold, "hold", false, "Hold the overlay surface open while watching")
	watchCmd.Flags().StringVarP(&statusOpts.format, "format", "f", "", "Stream format: plain, json, yaml")
	watchCmd.Flags().StringVar(&statusOpts.template, "template", "", "Go template for plain records")
	watchCmd.Flags().IntVar(&statusOpts.textMax, "text-max", 0, "Truncate text in plain records (0 = unlimited)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if watchOpts.hold {
		if err := acquire(ctx, client); err != nil {
			return err
		}
		defer release(client)
	}

	events, err := client.Watch(ctx)
	if err != nil {
		return err
	}

	if !watchOpts.plain && isatty.IsTerminal(os.Stdout.Fd()) {
		return tui.Run(ctx, client, events, cfg.Watch.ShowHelp)
	}
	return streamChanges(cmd, events)
}

// streamChanges prints one record per change until the stream ends.
func streamChanges(cmd *cobra.Command, events <-chan dbus.ContentInfo) error {
	formatter, err := statusFormatter(true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for info := range events {
		if err := formatter.FormatContent(out, output.NewContent(info)); err != nil {
			return err
		}
	}
	return nil
}

func acquire(ctx context.Context, client *dbus.Client) error {
	callCtx, cancel := callContext(ctx)
	defer cancel()
	if err := client.Acquire(callCtx); err != nil {
		return err
	}
	logger.Debug("overlay acquired")
	return nil
}

// release runs on the way out, after the command context may already be
// cancelled.
func release(client *dbus.Client) {
	ctx, cancel := callContext(context.Background())
	defer cancel()
	if err := client.Release(ctx); err != nil {
		logger.Warn("failed to release overlay", "error", err)
		return
	}
	logger.Debug("overlay released")
}
