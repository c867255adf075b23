package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var holdCmd = &cobra.Command{
	Use:   "hold [-- COMMAND [ARGS...]]",
	Short: "Hold the overlay surface open",
	Long: `Acquire the overlay so its surface stays up, then release it.

Without COMMAND the hold lasts until interrupted. With COMMAND the hold
lasts while the command runs and overlayctl exits with its status.

Examples:
  overlayctl hold
  overlayctl hold -- ./deploy.sh production`,
	RunE: runHold,
}

func init() {
	rootCmd.AddCommand(holdCmd)
}

func runHold(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := acquire(ctx, client); err != nil {
		return err
	}
	defer release(client)

	if len(args) == 0 {
		<-ctx.Done()
		return nil
	}

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Stdin = cmd.InOrStdin()
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()
	if err := child.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}
